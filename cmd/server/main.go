// TripSync - Real-time Itinerary Collaboration Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tripsync

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/tomtom215/tripsync/internal/config"
	"github.com/tomtom215/tripsync/internal/logging"
)

const appName = "tripsync-relay"

// version is overridden at build time with -ldflags "-X main.version=...".
var version = ""

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		stop()
		logging.Fatal().Err(err).Msg("tripsync-relay exited with error")
	}
}

// cliOptions holds global flag values.
type cliOptions struct {
	ConfigPath string
	LogLevel   string
}

func newApp() *cli.App {
	opts := &cliOptions{}

	return &cli.App{
		Name:    appName,
		Usage:   "real-time itinerary collaboration relay",
		Version: buildVersion(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "YAML config file layered between defaults and environment",
				Destination: &opts.ConfigPath,
			},
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "override the configured log level (trace, debug, info, warn, error)",
				Destination: &opts.LogLevel,
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			return runServer(c.Context, cfg)
		},
		Commands: []*cli.Command{
			{
				Name:  "check-config",
				Usage: "load and validate configuration, print the effective settings and exit",
				Action: func(c *cli.Context) error {
					cfg, err := opts.load()
					if err != nil {
						return err
					}
					printConfigSummary(c.App.Writer, cfg)
					return nil
				},
			},
		},
	}
}

// load reads configuration and applies flag overrides.
func (o *cliOptions) load() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if o.ConfigPath != "" {
		cfg, err = config.LoadFile(o.ConfigPath)
	} else {
		cfg, err = config.LoadWithKoanf()
	}
	if err != nil {
		return nil, err
	}

	if o.LogLevel != "" {
		if !logging.ValidLevel(o.LogLevel) {
			return nil, fmt.Errorf("invalid --log-level %q", o.LogLevel)
		}
		cfg.Logging.Level = o.LogLevel
	}
	return cfg, nil
}

func buildVersion() string {
	if version != "" {
		return version
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" {
				return setting.Value
			}
		}
		return info.Main.Version
	}
	return "unknown"
}
