package main

import "github.com/kylejryan/claims-manager/internal/cli"

func main() {
	cli.Execute()
}
