package main

import "github.com/covid-insights/backend/internal/cli"

func main() {
	cli.Execute()
}
