package main

import (
	"vault-rebalancer/internal/cli"
)

func main() {
	cli.Execute()
}
