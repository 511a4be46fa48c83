package main

import "github.com/VrindaBansal/mevscope/internal/cli"

func main() {
	cli.Execute()
}
