package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"api-aggregator/internal/model"
)

var (
	queryText     string
	queryCountry  string
	queryLanguage string
	querySort     string
	queryParams   []string
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Run one aggregation across all applicable providers",
	RunE: func(cmd *cobra.Command, args []string) error {
		sort, err := model.ParseSortOption(querySort)
		if err != nil {
			return err
		}

		params := make(map[string]string, len(queryParams))
		for _, raw := range queryParams {
			key, value, found := strings.Cut(raw, "=")
			if !found || key == "" {
				return fmt.Errorf("invalid --param %q, expected key=value", raw)
			}
			params[key] = value
		}

		req := model.AggregationRequest{
			Sort:       sort,
			Query:      queryText,
			Country:    queryCountry,
			Language:   queryLanguage,
			Parameters: params,
		}
		return getApp().Query(cmd.Context(), req)
	},
}

func init() {
	queryCmd.Flags().StringVar(&queryText, "query", "", "Free-text query")
	queryCmd.Flags().StringVar(&queryCountry, "country", "", "ISO 3166 country code")
	queryCmd.Flags().StringVar(&queryLanguage, "language", "", "ISO 639-1 language code")
	queryCmd.Flags().StringVar(&querySort, "sort", "relevance", "Sort order: relevance, newest, oldest, popularity")
	queryCmd.Flags().StringArrayVar(&queryParams, "param", nil, "Provider-specific parameter (key=value, repeatable)")
}
