// submodule cmd contains command definitions
package main

import (
	"github.com/teremich/spotify-true-random/internal/formatter"
	"github.com/urfave/cli/v3"
)

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

// serveCommand runs the web service.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the web service",
		Flags: []cli.Flag{
			configFlag(),
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to listen on (overrides config and STR__PORT)",
			},
			&cli.BoolFlag{
				Name:  "open",
				Usage: "Open the login page in the default browser",
			},
		},
		Action: r.Serve,
	}
}

// setupCommand creates the config file and the history database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create config.toml and initialize the history database",
		Flags:  []cli.Flag{configFlag()},
		Action: r.Setup,
	}
}

// keygenCommand prints a fresh session key.
func keygenCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "keygen",
		Usage:  "Print a new session key for STR__SESSION_KEY or [session] key",
		Action: r.Keygen,
	}
}

// historyCommand lists recorded replay runs.
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "history",
		Aliases: []string{"runs"},
		Usage:   "List recent replay runs",
		Flags: []cli.Flag{
			configFlag(),
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Maximum number of runs to show",
				Value:   20,
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: text, csv, markdown or json",
				Value:   string(formatter.FormatText),
			},
			&cli.StringFlag{
				Name:  "status",
				Usage: "Only show runs with this status",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write to a file instead of stdout",
			},
		},
		Action: r.History,
	}
}
