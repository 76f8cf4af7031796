package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"api-aggregator/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Server    ServerConfig    `mapstructure:"server"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Monitor   MonitorConfig   `mapstructure:"monitor"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// ServerConfig governs the HTTP listener exposed by the run command.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// CacheConfig selects and tunes the cache backend. An empty redis_addr keeps
// everything in process memory.
type CacheConfig struct {
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	DialTimeout   time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout   time.Duration `mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity for the anomaly audit
// store. Persistence is disabled when DSN is empty.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// ProvidersConfig carries the per-source upstream settings.
type ProvidersConfig struct {
	Weather WeatherProviderConfig `mapstructure:"weather"`
	News    ProviderConfig        `mapstructure:"news"`
	Books   ProviderConfig        `mapstructure:"books"`
	Prompt  PromptProviderConfig  `mapstructure:"prompt"`
}

// ProviderConfig is the declarative applicability and query-building spec for
// one upstream data source.
type ProviderConfig struct {
	BaseURL        string            `mapstructure:"base_url"`
	APIKey         string            `mapstructure:"api_key"`
	APIKeyParam    string            `mapstructure:"api_key_param"`
	RequestTimeout time.Duration     `mapstructure:"request_timeout"`
	CacheTTL       time.Duration     `mapstructure:"cache_ttl"`
	Required       []string          `mapstructure:"required"`
	Filters        map[string]string `mapstructure:"filters"`
	Parameters     []string          `mapstructure:"parameters"`
	SortParameter  string            `mapstructure:"sort_parameter"`
	SortMappings   map[string]string `mapstructure:"sort_mappings"`
}

// WeatherProviderConfig extends ProviderConfig with the secondary geocoding
// upstream used to resolve location names to coordinates.
type WeatherProviderConfig struct {
	ProviderConfig `mapstructure:",squash"`
	GeoBaseURL     string        `mapstructure:"geo_base_url"`
	GeoCacheTTL    time.Duration `mapstructure:"geo_cache_ttl"`
}

// PromptProviderConfig configures the LLM prompt generator. The provider is
// applicable whenever APIKey is set.
type PromptProviderConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	Model          string        `mapstructure:"model"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// MonitorConfig tunes the anomaly detection loop.
type MonitorConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	CheckInterval    time.Duration `mapstructure:"check_interval"`
	RecentWindow     time.Duration `mapstructure:"recent_window"`
	AnomalyThreshold float64       `mapstructure:"anomaly_threshold_pct"`
	StartupDelay     time.Duration `mapstructure:"startup_delay"`
}

// AlertingConfig defines anomaly alert routing.
type AlertingConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig describes the Telegram delivery channel.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("APIAGG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "api-aggregator")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("cache.dial_timeout", "5s")
	v.SetDefault("cache.read_timeout", "3s")
	v.SetDefault("cache.write_timeout", "3s")

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")

	v.SetDefault("providers.weather.base_url", "https://api.open-meteo.com/v1")
	v.SetDefault("providers.weather.geo_base_url", "https://geocoding-api.open-meteo.com/v1")
	v.SetDefault("providers.weather.request_timeout", "10s")
	v.SetDefault("providers.weather.cache_ttl", "10m")
	v.SetDefault("providers.weather.geo_cache_ttl", "24h")
	v.SetDefault("providers.weather.api_key_param", "appid")
	v.SetDefault("providers.weather.required", []string{"location"})
	v.SetDefault("providers.weather.filters", map[string]string{"query": "location"})

	v.SetDefault("providers.news.base_url", "https://newsapi.org/v2")
	v.SetDefault("providers.news.request_timeout", "10s")
	v.SetDefault("providers.news.cache_ttl", "5m")
	v.SetDefault("providers.news.api_key_param", "apiKey")
	v.SetDefault("providers.news.required", []string{"q"})
	v.SetDefault("providers.news.filters", map[string]string{"query": "q", "language": "language", "country": "country"})
	v.SetDefault("providers.news.parameters", []string{"pageSize", "page"})
	v.SetDefault("providers.news.sort_parameter", "sortBy")
	v.SetDefault("providers.news.sort_mappings", map[string]string{
		"relevance":  "relevancy",
		"newest":     "publishedAt",
		"popularity": "popularity",
	})

	v.SetDefault("providers.books.base_url", "https://openlibrary.org")
	v.SetDefault("providers.books.request_timeout", "10s")
	v.SetDefault("providers.books.cache_ttl", "1h")
	v.SetDefault("providers.books.required", []string{"q", "title", "author"})
	v.SetDefault("providers.books.filters", map[string]string{"query": "q", "language": "lang"})
	v.SetDefault("providers.books.parameters", []string{"limit", "page"})
	v.SetDefault("providers.books.sort_parameter", "sort")
	v.SetDefault("providers.books.sort_mappings", map[string]string{
		"newest": "new",
		"oldest": "old",
	})

	v.SetDefault("providers.prompt.base_url", "https://api.openai.com/v1")
	v.SetDefault("providers.prompt.model", "gpt-4o-mini")
	v.SetDefault("providers.prompt.request_timeout", "30s")

	v.SetDefault("monitor.enabled", true)
	v.SetDefault("monitor.check_interval", "1m")
	v.SetDefault("monitor.recent_window", "5m")
	v.SetDefault("monitor.anomaly_threshold_pct", 50.0)
	v.SetDefault("monitor.startup_delay", "0s")

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("export.max_data_points", 100000)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// knownFilters are the request fields a provider filter may map from.
var knownFilters = map[string]struct{}{
	"query":    {},
	"country":  {},
	"language": {},
}

// Validate performs sanity checks on the configuration values. Malformed
// provider filter targets are a startup error, not a runtime branch.
func (c *Config) Validate() error {
	if c.Monitor.CheckInterval <= 0 {
		return fmt.Errorf("monitor.check_interval must be greater than zero")
	}
	if c.Monitor.RecentWindow <= 0 {
		return fmt.Errorf("monitor.recent_window must be greater than zero")
	}
	if c.Monitor.AnomalyThreshold < 0 {
		return fmt.Errorf("monitor.anomaly_threshold_pct cannot be negative")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}

	for name, spec := range map[string]ProviderConfig{
		"weather": c.Providers.Weather.ProviderConfig,
		"news":    c.Providers.News,
		"books":   c.Providers.Books,
	} {
		if err := validateProvider(name, spec); err != nil {
			return err
		}
	}

	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token is required when telegram is enabled")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id is required when telegram is enabled")
		}
	}
	return nil
}

func validateProvider(name string, spec ProviderConfig) error {
	if spec.BaseURL == "" {
		return fmt.Errorf("providers.%s.base_url is required", name)
	}
	for filter, target := range spec.Filters {
		if _, ok := knownFilters[strings.ToLower(filter)]; !ok {
			return fmt.Errorf("providers.%s.filters: unknown filter %q", name, filter)
		}
		if strings.TrimSpace(target) == "" {
			return fmt.Errorf("providers.%s.filters: filter %q maps to an empty parameter", name, filter)
		}
	}
	for sort := range spec.SortMappings {
		if _, err := parseSortName(sort); err != nil {
			return fmt.Errorf("providers.%s.sort_mappings: %w", name, err)
		}
	}
	return nil
}

func parseSortName(s string) (string, error) {
	switch strings.ToLower(s) {
	case "relevance", "newest", "oldest", "popularity":
		return strings.ToLower(s), nil
	default:
		return "", fmt.Errorf("unknown sort option %q", s)
	}
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
