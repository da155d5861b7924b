package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/chainsensors/capsules/cmd/app/commands"
	"github.com/chainsensors/capsules/internal/app"
	buyerUseCase "github.com/chainsensors/capsules/internal/buyer/usecase"
	"github.com/chainsensors/capsules/internal/config"
)

func withUnsealer(
	ctx context.Context,
	fn func(unsealer buyerUseCase.Unsealer, container *app.Container) error,
) error {
	container := app.NewContainer(config.Load())
	defer func() { _ = container.Shutdown(ctx) }()

	unsealer, err := container.Unsealer()
	if err != nil {
		return err
	}
	return fn(unsealer, container)
}

func purchaseFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "listing",
			Aliases:  []string{"l"},
			Required: true,
			Usage:    "Listing account address (base58)",
		},
		&cli.StringFlag{
			Name:     "buyer",
			Aliases:  []string{"b"},
			Required: true,
			Usage:    "Buyer wallet address (base58)",
		},
	}
}

func getBuyerCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "buyer-keygen",
			Usage: "Generate the ephemeral x25519 key for a purchase and print its public half",
			Flags: append(purchaseFlags(), formatFlag()),
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return withUnsealer(ctx, func(unsealer buyerUseCase.Unsealer, container *app.Container) error {
					return commands.RunBuyerKeygen(
						ctx,
						unsealer,
						container.Logger(),
						commands.DefaultIO().Writer,
						cmd.String("listing"),
						cmd.String("buyer"),
						cmd.String("format"),
					)
				})
			},
		},
		{
			Name:  "buyer-keys",
			Usage: "List the ephemeral keys held for a listing",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "listing",
					Aliases:  []string{"l"},
					Required: true,
					Usage:    "Listing account address (base58)",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return withUnsealer(ctx, func(unsealer buyerUseCase.Unsealer, _ *app.Container) error {
					return commands.RunBuyerKeys(
						ctx, unsealer, commands.DefaultIO().Writer, cmd.String("listing"), cmd.String("format"),
					)
				})
			},
		},
		{
			Name:  "buyer-unseal",
			Usage: "Recover the DEK from a resealed result read from stdin",
			Flags: purchaseFlags(),
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return withUnsealer(ctx, func(unsealer buyerUseCase.Unsealer, _ *app.Container) error {
					return commands.RunBuyerUnseal(
						ctx, unsealer, commands.DefaultIO(), cmd.String("listing"), cmd.String("buyer"),
					)
				})
			},
		},
		{
			Name:  "buyer-decrypt",
			Usage: "Decrypt envelopes (one JSON object per line on stdin) with a purchased DEK",
			Flags: append(purchaseFlags(),
				&cli.StringFlag{
					Name:     "device-id",
					Aliases:  []string{"d"},
					Required: true,
					Usage:    "Device that produced the records",
				},
				&cli.StringFlag{
					Name:     "result",
					Aliases:  []string{"r"},
					Required: true,
					Usage:    "Path to the resealed result JSON",
				},
			),
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return withUnsealer(ctx, func(unsealer buyerUseCase.Unsealer, _ *app.Container) error {
					return commands.RunBuyerDecrypt(
						ctx,
						unsealer,
						commands.DefaultIO(),
						cmd.String("listing"),
						cmd.String("buyer"),
						cmd.String("device-id"),
						cmd.String("result"),
					)
				})
			},
		},
		{
			Name:  "buyer-forget",
			Usage: "Delete the ephemeral key of a purchase",
			Flags: purchaseFlags(),
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return withUnsealer(ctx, func(unsealer buyerUseCase.Unsealer, container *app.Container) error {
					return commands.RunBuyerForget(
						ctx, unsealer, container.Logger(), cmd.String("listing"), cmd.String("buyer"),
					)
				})
			},
		},
	}
}
