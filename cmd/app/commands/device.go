package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	cryptoDomain "github.com/chainsensors/capsules/internal/crypto/domain"
	deviceDomain "github.com/chainsensors/capsules/internal/device/domain"
	deviceUseCase "github.com/chainsensors/capsules/internal/device/usecase"
)

// generationOutput is the JSON form of a device generation. The wrapped DEK is never printed.
type generationOutput struct {
	Number       uint32     `json:"number"`
	BlobID       string     `json:"blob_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	RegisteredAt *time.Time `json:"registered_at,omitempty"`
	SupersededAt *time.Time `json:"superseded_at,omitempty"`
}

func toGenerationOutput(gen *deviceDomain.Generation) generationOutput {
	return generationOutput{
		Number:       gen.Number,
		BlobID:       gen.BlobID,
		CreatedAt:    gen.CreatedAt,
		RegisteredAt: gen.RegisteredAt,
		SupersededAt: gen.SupersededAt,
	}
}

// RunDeviceInit creates the device's first DEK, or reports the current one when the device
// is already initialized.
func RunDeviceInit(
	ctx context.Context,
	device deviceUseCase.DeviceUseCase,
	logger *slog.Logger,
	writer io.Writer,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	gen, err := device.Init(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize device: %w", err)
	}
	logger.Info("device ready", slog.Uint64("generation", uint64(gen.Number)))

	return writeGeneration(writer, gen, format)
}

// RunDeviceRegister stores the current DEK with the capsule store and prints its blob id.
func RunDeviceRegister(
	ctx context.Context,
	device deviceUseCase.DeviceUseCase,
	logger *slog.Logger,
	writer io.Writer,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	blobID, err := device.Register(ctx)
	if err != nil {
		return fmt.Errorf("failed to register capsule: %w", err)
	}
	logger.Info("capsule registered", slog.String("blob_id", blobID))

	if format == "json" {
		return writeJSON(writer, map[string]string{"blob_id": blobID})
	}
	_, err = fmt.Fprintf(writer, "Capsule registered: %s\n", blobID)
	return err
}

// RunDeviceRotate makes a fresh DEK current and registers it. Records written under
// earlier generations stay readable.
func RunDeviceRotate(
	ctx context.Context,
	device deviceUseCase.DeviceUseCase,
	logger *slog.Logger,
	writer io.Writer,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	gen, err := device.Rotate(ctx)
	if err != nil {
		// A generation that advanced but failed to register is still returned.
		if gen != nil {
			logger.Warn("rotated without registering",
				slog.Uint64("generation", uint64(gen.Number)),
				slog.Any("error", err))
		}
		return fmt.Errorf("failed to rotate DEK: %w", err)
	}
	logger.Info("DEK rotated", slog.Uint64("generation", uint64(gen.Number)))

	return writeGeneration(writer, gen, format)
}

// RunDeviceStatus prints every generation of the device.
func RunDeviceStatus(
	ctx context.Context,
	device deviceUseCase.DeviceUseCase,
	writer io.Writer,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	state, err := device.State(ctx)
	if err != nil {
		return fmt.Errorf("failed to load device state: %w", err)
	}

	if format == "json" {
		out := struct {
			DeviceID    string             `json:"device_id"`
			Current     uint32             `json:"current"`
			Generations []generationOutput `json:"generations"`
		}{
			DeviceID:    state.DeviceID,
			Current:     state.Current,
			Generations: make([]generationOutput, 0, len(state.Generations)),
		}
		for _, gen := range state.Generations {
			out.Generations = append(out.Generations, toGenerationOutput(gen))
		}
		return writeJSON(writer, out)
	}

	if _, err := fmt.Fprintf(writer, "Device %s (current generation %d)\n", state.DeviceID, state.Current); err != nil {
		return err
	}
	for _, gen := range state.Generations {
		registered := "unregistered"
		if gen.Registered() {
			registered = gen.BlobID
		}
		if _, err := fmt.Fprintf(writer, "  generation %d: %s\n", gen.Number, registered); err != nil {
			return err
		}
	}
	return nil
}

// RunDeviceEncrypt reads one JSON record from the reader and writes its envelope.
func RunDeviceEncrypt(ctx context.Context, device deviceUseCase.DeviceUseCase, stdio IOTuple) error {
	var record json.RawMessage
	if err := json.NewDecoder(stdio.Reader).Decode(&record); err != nil {
		return fmt.Errorf("failed to read record: %w", err)
	}

	env, err := device.EncryptRecord(ctx, record)
	if err != nil {
		return fmt.Errorf("failed to encrypt record: %w", err)
	}
	return json.NewEncoder(stdio.Writer).Encode(env)
}

// RunDeviceDecrypt reads one envelope from the reader and writes the record it protects.
func RunDeviceDecrypt(ctx context.Context, device deviceUseCase.DeviceUseCase, stdio IOTuple) error {
	var env cryptoDomain.Envelope
	if err := json.NewDecoder(stdio.Reader).Decode(&env); err != nil {
		return fmt.Errorf("failed to read envelope: %w", err)
	}

	var record json.RawMessage
	if err := device.DecryptRecord(ctx, &env, &record); err != nil {
		return fmt.Errorf("failed to decrypt record: %w", err)
	}
	_, err := fmt.Fprintln(stdio.Writer, string(record))
	return err
}

func writeGeneration(writer io.Writer, gen *deviceDomain.Generation, format string) error {
	if format == "json" {
		return writeJSON(writer, toGenerationOutput(gen))
	}
	_, err := fmt.Fprintf(writer, "DEK generation %d\n", gen.Number)
	return err
}
