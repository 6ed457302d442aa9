package main

import "github.com/cctally/cctally/internal/cli"

func main() {
	cli.Execute()
}
