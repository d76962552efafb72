package main

import "etwtap/internal/cli"

func main() {
	cli.Execute()
}
