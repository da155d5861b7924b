package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/chainsensors/capsules/cmd/app/commands"
	"github.com/chainsensors/capsules/internal/app"
	"github.com/chainsensors/capsules/internal/config"
	deviceUseCase "github.com/chainsensors/capsules/internal/device/usecase"
)

// withDevice runs fn with the device use case of a fresh container.
func withDevice(
	ctx context.Context,
	fn func(device deviceUseCase.DeviceUseCase, container *app.Container) error,
) error {
	container := app.NewContainer(config.Load())
	defer func() { _ = container.Shutdown(ctx) }()

	device, err := container.DeviceUseCase()
	if err != nil {
		return err
	}
	return fn(device, container)
}

func getDeviceCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "device-init",
			Usage: "Create the device's first DEK (idempotent)",
			Flags: []cli.Flag{formatFlag()},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return withDevice(ctx, func(device deviceUseCase.DeviceUseCase, container *app.Container) error {
					return commands.RunDeviceInit(
						ctx, device, container.Logger(), commands.DefaultIO().Writer, cmd.String("format"),
					)
				})
			},
		},
		{
			Name:  "device-register",
			Usage: "Seal the current DEK and register it with the backend",
			Flags: []cli.Flag{formatFlag()},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return withDevice(ctx, func(device deviceUseCase.DeviceUseCase, container *app.Container) error {
					return commands.RunDeviceRegister(
						ctx, device, container.Logger(), commands.DefaultIO().Writer, cmd.String("format"),
					)
				})
			},
		},
		{
			Name:  "device-rotate",
			Usage: "Generate a new DEK generation and register it",
			Flags: []cli.Flag{formatFlag()},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return withDevice(ctx, func(device deviceUseCase.DeviceUseCase, container *app.Container) error {
					return commands.RunDeviceRotate(
						ctx, device, container.Logger(), commands.DefaultIO().Writer, cmd.String("format"),
					)
				})
			},
		},
		{
			Name:  "device-status",
			Usage: "Show the device's DEK generations",
			Flags: []cli.Flag{formatFlag()},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return withDevice(ctx, func(device deviceUseCase.DeviceUseCase, _ *app.Container) error {
					return commands.RunDeviceStatus(ctx, device, commands.DefaultIO().Writer, cmd.String("format"))
				})
			},
		},
		{
			Name:  "device-encrypt",
			Usage: "Encrypt one JSON record read from stdin into an envelope",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return withDevice(ctx, func(device deviceUseCase.DeviceUseCase, _ *app.Container) error {
					return commands.RunDeviceEncrypt(ctx, device, commands.DefaultIO())
				})
			},
		},
		{
			Name:  "device-decrypt",
			Usage: "Decrypt one envelope read from stdin",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return withDevice(ctx, func(device deviceUseCase.DeviceUseCase, _ *app.Container) error {
					return commands.RunDeviceDecrypt(ctx, device, commands.DefaultIO())
				})
			},
		},
	}
}
