package main

import (
	"os"

	"github.com/absolutelyright/server/internal/cli"
	"github.com/tillberg/autorestart"
)

func main() {
	if os.Getenv("ABSOLUTELYRIGHT_AUTORESTART") != "" {
		go autorestart.RestartOnChange()
	}

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
