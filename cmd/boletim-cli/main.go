package main

import "boletim/internal/cli"

func main() {
	cli.Execute()
}
