package main

import "github.com/geofront/geofront-cli/internal/cli"

func main() {
	cli.Execute()
}
