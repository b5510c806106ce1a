package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

const version = "0.1.0"

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("failed to load .env file, continuing with system environment")
	}

	app := &cli.App{
		Name:    "agricare",
		Usage:   "Emotional-support chat backend for farmers",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Load configuration from `FILE` (defaults to ./agricare.toml when present)",
				EnvVars: []string{"AGRICARE_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			chatCommand(),
		},
		DefaultCommand: "serve",
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
