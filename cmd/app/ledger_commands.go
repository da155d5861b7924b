package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/chainsensors/capsules/cmd/app/commands"
	"github.com/chainsensors/capsules/internal/app"
	"github.com/chainsensors/capsules/internal/config"
)

func getLedgerCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "derive-address",
			Usage: "Print the accounts a reseal_dek invocation binds",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "program-id",
					Usage: "Marketplace program id (defaults to PROGRAM_ID)",
				},
				&cli.StringFlag{
					Name:     "payer",
					Required: true,
					Usage:    "Fee payer address (base58)",
				},
				&cli.StringFlag{
					Name:     "listing",
					Aliases:  []string{"l"},
					Required: true,
					Usage:    "Listing account address (base58)",
				},
				&cli.StringFlag{
					Name:     "record",
					Aliases:  []string{"r"},
					Required: true,
					Usage:    "Purchase record address (base58)",
				},
				&cli.StringFlag{
					Name:  "admin",
					Usage: "Marketplace admin; prints the marketplace account when set",
				},
				&cli.StringFlag{
					Name:  "circuit",
					Usage: "Computation definition name (defaults to ARCIUM_RESEAL_COMP_NAME)",
				},
				&cli.Uint64Flag{
					Name:     "computation-offset",
					Required: true,
					Usage:    "Per-invocation computation offset",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				deriver, err := container.Deriver()
				if err != nil {
					return err
				}

				in := commands.DeriveAddressInput{
					ProgramID:         cmd.String("program-id"),
					Payer:             cmd.String("payer"),
					Listing:           cmd.String("listing"),
					Record:            cmd.String("record"),
					Admin:             cmd.String("admin"),
					CircuitName:       cmd.String("circuit"),
					ClusterOffset:     cfg.ClusterOffset,
					ComputationOffset: cmd.Uint64("computation-offset"),
				}
				if in.ProgramID == "" {
					in.ProgramID = cfg.ProgramID
				}
				if in.CircuitName == "" {
					in.CircuitName = cfg.ResealCircuitName
				}

				return commands.RunDeriveAddress(commands.DefaultIO().Writer, deriver, in, cmd.String("format"))
			},
		},
	}
}
