package main

import (
	"os"

	"github.com/llmrelay/llmrelay/internal/cli"
)

func main() {
	cli.InitCLI()
	os.Exit(cli.ExecuteWithErrorCode(os.Args[1:]))
}
