package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/five82/tickbox/internal/app"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	root := &cli.Command{
		Name:    "tickbox",
		Usage:   "Check off todos without waiting on the network",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config.toml (default ~/.config/tickbox/config.toml)",
			},
			&cli.StringFlag{
				Name:  "prefs",
				Usage: "Path to prefs.toml (default ~/.config/tickbox/prefs.toml)",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Override log_level (debug, info, warn, error)",
			},
		},
		Action: runTUI,
		Commands: []*cli.Command{
			{
				Name:   "tui",
				Usage:  "Open the interactive todo list (default)",
				Action: runTUI,
			},
			{
				Name:  "serve",
				Usage: "Run the demo todo service",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return app.Serve(ctx, options(cmd))
				},
			},
			{
				Name:    "ls",
				Aliases: []string{"list"},
				Usage:   "List todos",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return app.List(ctx, options(cmd), cmd.Bool("json"))
				},
			},
			{
				Name:      "add",
				Usage:     "Create todos",
				ArgsUsage: "<name>...",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return app.Add(ctx, options(cmd), cmd.Args().Slice())
				},
			},
			{
				Name:      "rm",
				Usage:     "Delete todos by id or name",
				ArgsUsage: "<id|name>...",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return app.Remove(ctx, options(cmd), cmd.Args().Slice())
				},
			},
			{
				Name:      "toggle",
				Usage:     "Flip todos by id or name; naming one twice cancels out",
				ArgsUsage: "<id|name>...",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return app.Toggle(ctx, options(cmd), cmd.Args().Slice())
				},
			},
			{
				Name:  "logs",
				Usage: "Show the TUI log file",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "lines",
						Aliases: []string{"n"},
						Usage:   "Number of lines to show (0 for all)",
						Value:   50,
					},
					&cli.StringFlag{
						Name:  "level",
						Usage: "Only show entries at or above this level",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return app.Logs(options(cmd), int(cmd.Int("lines")), cmd.String("level"))
				},
			},
		},
	}

	if err := root.Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "tickbox: %v\n", err)
		return 1
	}
	return 0
}

func runTUI(ctx context.Context, cmd *cli.Command) error {
	return app.Run(ctx, options(cmd))
}

func options(cmd *cli.Command) app.Options {
	return app.Options{
		ConfigPath: cmd.String("config"),
		PrefsPath:  cmd.String("prefs"),
		LogLevel:   cmd.String("log-level"),
	}
}
