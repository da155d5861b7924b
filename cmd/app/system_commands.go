package main

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/chainsensors/capsules/cmd/app/commands"
	"github.com/chainsensors/capsules/internal/app"
	"github.com/chainsensors/capsules/internal/config"
)

func getSystemCommands(version string) []*cli.Command {
	return []*cli.Command{
		{
			Name:  "server",
			Usage: "Start the HTTP server, the event correlator and the finalize worker",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return commands.RunServer(ctx, version)
			},
		},
		{
			Name:  "migrate",
			Usage: "Apply pending database migrations, or revert the latest one with --down",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "dir",
					Value: "migrations",
					Usage: "Directory holding the postgresql and mysql migration sets",
				},
				&cli.BoolFlag{
					Name:  "down",
					Usage: "Revert the most recent migration",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				return commands.RunMigrations(container.Logger(), os.Stdout, commands.MigrateOptions{
					Driver:           cfg.DBDriver,
					ConnectionString: cfg.DBConnectionString,
					Dir:              cmd.String("dir"),
					Down:             cmd.Bool("down"),
				})
			},
		},
	}
}
