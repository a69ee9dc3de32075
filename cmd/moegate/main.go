package main

import "github.com/moegate/moegate/internal/cli"

func main() {
	cli.Execute()
}
