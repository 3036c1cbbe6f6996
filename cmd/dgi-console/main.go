package main

import "github.com/hypernova-labs/dgi-console/internal/cli"

func main() {
	cli.Execute()
}
