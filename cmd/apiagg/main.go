package main

import "api-aggregator/internal/cli"

func main() {
	cli.Execute()
}
