package usecase

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/chainsensors/capsules/internal/config"
	cryptoDomain "github.com/chainsensors/capsules/internal/crypto/domain"
	cryptoService "github.com/chainsensors/capsules/internal/crypto/service"
	deviceDomain "github.com/chainsensors/capsules/internal/device/domain"
	"github.com/chainsensors/capsules/internal/errors"
)

// DeviceConfig configures a DeviceUseCase.
type DeviceConfig struct {
	DeviceID string
	// UploadMode is config.DeviceUploadCapsule (seal locally) or config.DeviceUploadDEK.
	UploadMode string
	// MXEPublicKey is required in capsule mode.
	MXEPublicKey *[cryptoDomain.PublicKeySize]byte
}

type deviceUseCase struct {
	config    DeviceConfig
	state     StateRepository
	wrapper   KeyWrapper
	sealer    cryptoService.CapsuleSealer
	codec     *cryptoService.RecordCodec
	registrar Registrar
	random    io.Reader
	logger    *slog.Logger
}

// NewDeviceUseCase creates a DeviceUseCase.
func NewDeviceUseCase(
	cfg DeviceConfig,
	state StateRepository,
	wrapper KeyWrapper,
	sealer cryptoService.CapsuleSealer,
	codec *cryptoService.RecordCodec,
	registrar Registrar,
	logger *slog.Logger,
) (DeviceUseCase, error) {
	if cfg.DeviceID == "" {
		return nil, deviceDomain.ErrInvalidDeviceID
	}
	switch cfg.UploadMode {
	case "":
		cfg.UploadMode = config.DeviceUploadCapsule
	case config.DeviceUploadCapsule, config.DeviceUploadDEK:
	default:
		return nil, errors.Wrap(deviceDomain.ErrUnsupportedUploadMode, cfg.UploadMode)
	}

	return &deviceUseCase{
		config:    cfg,
		state:     state,
		wrapper:   wrapper,
		sealer:    sealer,
		codec:     codec,
		registrar: registrar,
		random:    rand.Reader,
		logger:    logger,
	}, nil
}

func (d *deviceUseCase) Init(ctx context.Context) (*deviceDomain.Generation, error) {
	gen, err := d.state.Current(ctx, d.config.DeviceID)
	if err == nil {
		return gen, nil
	}
	if !errors.Is(err, deviceDomain.ErrNotInitialized) {
		return nil, err
	}

	gen, err = d.advance(ctx, deviceDomain.FirstGeneration)
	if errors.Is(err, deviceDomain.ErrGenerationConflict) {
		// initialized concurrently
		return d.state.Current(ctx, d.config.DeviceID)
	}
	if err != nil {
		return nil, err
	}

	d.logger.Info("device initialized", slog.String("device_id", d.config.DeviceID))
	return gen, nil
}

// advance creates a fresh DEK as generation number and makes it current.
func (d *deviceUseCase) advance(ctx context.Context, number uint32) (*deviceDomain.Generation, error) {
	var dek [cryptoDomain.KeySize]byte
	if _, err := io.ReadFull(d.random, dek[:]); err != nil {
		return nil, fmt.Errorf("failed to generate DEK: %w", err)
	}
	defer cryptoDomain.Zero32(&dek)

	wrapped, err := d.wrapper.Wrap(ctx, dek)
	if err != nil {
		return nil, err
	}

	gen := &deviceDomain.Generation{
		Number:     number,
		WrappedDEK: wrapped,
		CreatedAt:  time.Now().UTC(),
	}
	if err := d.state.Advance(ctx, d.config.DeviceID, gen); err != nil {
		return nil, err
	}
	return gen, nil
}

func (d *deviceUseCase) EncryptRecord(ctx context.Context, record any) (*cryptoDomain.Envelope, error) {
	gen, err := d.state.Current(ctx, d.config.DeviceID)
	if err != nil {
		return nil, err
	}

	dek, err := d.wrapper.Unwrap(ctx, gen.WrappedDEK)
	if err != nil {
		return nil, err
	}
	defer cryptoDomain.Zero32(&dek)

	env, err := d.codec.Encrypt(dek[:], d.config.DeviceID, record)
	if err != nil {
		return nil, err
	}
	env.KeyGeneration = gen.Number
	return env, nil
}

func (d *deviceUseCase) DecryptRecord(ctx context.Context, env *cryptoDomain.Envelope, out any) error {
	if err := env.Validate(); err != nil {
		return err
	}

	number := env.KeyGeneration
	if number == 0 {
		number = deviceDomain.FirstGeneration
	}
	gen, err := d.state.Get(ctx, d.config.DeviceID, number)
	if err != nil {
		return err
	}

	dek, err := d.wrapper.Unwrap(ctx, gen.WrappedDEK)
	if err != nil {
		return err
	}
	defer cryptoDomain.Zero32(&dek)

	return d.codec.Decrypt(dek[:], d.config.DeviceID, env, out)
}

func (d *deviceUseCase) Register(ctx context.Context) (string, error) {
	gen, err := d.state.Current(ctx, d.config.DeviceID)
	if err != nil {
		return "", err
	}
	return d.register(ctx, gen)
}

func (d *deviceUseCase) register(ctx context.Context, gen *deviceDomain.Generation) (string, error) {
	if gen.Registered() {
		d.logger.Debug("capsule already registered",
			slog.Uint64("generation", uint64(gen.Number)),
			slog.String("blob_id", gen.BlobID),
		)
		return gen.BlobID, nil
	}

	dek, err := d.wrapper.Unwrap(ctx, gen.WrappedDEK)
	if err != nil {
		return "", err
	}
	defer cryptoDomain.Zero32(&dek)

	var blobID string
	switch d.config.UploadMode {
	case config.DeviceUploadDEK:
		blobID, err = d.registrar.RegisterDEK(ctx, dek[:])
	default:
		blobID, err = d.registerCapsule(ctx, dek)
	}
	if err != nil {
		return "", err
	}

	if err := d.state.SetBlobID(ctx, d.config.DeviceID, gen.Number, blobID, time.Now().UTC()); err != nil {
		return "", err
	}

	d.logger.Info("capsule registered",
		slog.String("device_id", d.config.DeviceID),
		slog.Uint64("generation", uint64(gen.Number)),
		slog.String("blob_id", blobID),
		slog.String("mode", d.config.UploadMode),
	)
	return blobID, nil
}

func (d *deviceUseCase) registerCapsule(ctx context.Context, dek [cryptoDomain.KeySize]byte) (string, error) {
	if d.config.MXEPublicKey == nil {
		return "", deviceDomain.ErrMXEKeyNotConfigured
	}
	capsule, err := d.sealer.Seal(*d.config.MXEPublicKey, dek)
	if err != nil {
		return "", err
	}
	content, err := capsule.MarshalBinary()
	if err != nil {
		return "", err
	}
	return d.registrar.RegisterCapsule(ctx, content)
}

func (d *deviceUseCase) Rotate(ctx context.Context) (*deviceDomain.Generation, error) {
	current, err := d.state.Current(ctx, d.config.DeviceID)
	if err != nil {
		return nil, err
	}

	gen, err := d.advance(ctx, current.Number+1)
	if err != nil {
		return nil, err
	}
	d.logger.Info("DEK rotated",
		slog.String("device_id", d.config.DeviceID),
		slog.Uint64("generation", uint64(gen.Number)),
	)

	blobID, err := d.register(ctx, gen)
	if err != nil {
		return gen, fmt.Errorf("rotated to generation %d but registration failed: %w", gen.Number, err)
	}
	gen.BlobID = blobID
	return gen, nil
}

func (d *deviceUseCase) State(ctx context.Context) (*deviceDomain.State, error) {
	return d.state.List(ctx, d.config.DeviceID)
}
