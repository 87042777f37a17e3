package main

import (
	"budget/internal/cli"
	"budget/internal/config"
	"budget/internal/log"
)

func setup() (*config.Config, *log.Logger) {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	return cfg, cli.SetupLogger(cfg, log.ComponentCLI)
}
