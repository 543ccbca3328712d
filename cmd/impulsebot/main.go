package main

import (
	"os"

	"impulsebot/cmd/impulsebot/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
