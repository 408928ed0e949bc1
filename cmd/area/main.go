package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dukex/area/pkg/client"
	cli "github.com/urfave/cli/v3"
)

const (
	defaultAPIURL       = "http://localhost:8000/api"
	defaultAppURL       = "http://localhost:3000"
	defaultCallbackAddr = "127.0.0.1:8765"
)

func main() {
	cmd := &cli.Command{
		Name:                  "area",
		Usage:                 "Build and manage AREA automations",
		EnableShellCompletion: true,
		Commands: []*cli.Command{
			NewLoginCommand(),
			NewLogoutCommand(),
			NewWhoamiCommand(),
			NewAreasCommand(),
			NewServicesCommand(),
			NewWebhooksCommand(),
			NewApplyCommand(),
			NewOptionsCommand(),
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "api-url",
				Usage:   "Base URL of the AREA REST API",
				Value:   defaultAPIURL,
				Sources: cli.EnvVars("AREA_API_URL"),
			},
			&cli.StringFlag{
				Name:    "app-url",
				Usage:   "Base URL of the AREA web app hosting /auth/initiate",
				Value:   defaultAppURL,
				Sources: cli.EnvVars("AREA_APP_URL"),
			},
			&cli.StringFlag{
				Name:    "session-file",
				Usage:   "Path of the stored session (defaults to the user config dir)",
				Sources: cli.EnvVars("AREA_SESSION_FILE"),
			},
			&cli.StringFlag{
				Name:    "cache-url",
				Usage:   "Service definition cache URL (redis://...), in memory when empty",
				Sources: cli.EnvVars("AREA_CACHE_URL"),
			},
			&cli.StringFlag{
				Name:    "callback-addr",
				Usage:   "Local address receiving OAuth completions",
				Value:   defaultCallbackAddr,
				Sources: cli.EnvVars("AREA_CALLBACK_ADDR"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Export traces over OTLP/HTTP",
				Sources: cli.EnvVars("AREA_TRACING"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "warn",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "Log format (text, json)",
				Value:   "text",
				Sources: cli.EnvVars("LOG_FORMAT"),
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", describe(err))
		os.Exit(1)
	}
}

// describe prefers the backend message of API errors.
func describe(err error) string {
	if message := client.Message(err); message != client.GenericMessage {
		return message
	}

	return err.Error()
}
