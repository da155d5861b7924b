package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/chainsensors/capsules/internal/crypto/domain"
	deviceDomain "github.com/chainsensors/capsules/internal/device/domain"
	deviceMocks "github.com/chainsensors/capsules/internal/device/usecase/mocks"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func TestRunDeviceInit(t *testing.T) {
	ctx := context.Background()
	gen := &deviceDomain.Generation{
		Number:     deviceDomain.FirstGeneration,
		WrappedDEK: []byte("wrapped"),
		CreatedAt:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	t.Run("text", func(t *testing.T) {
		device := &deviceMocks.MockDeviceUseCase{}
		device.On("Init", ctx).Return(gen, nil)

		var out bytes.Buffer
		require.NoError(t, RunDeviceInit(ctx, device, testLogger(), &out, "text"))
		require.Equal(t, "DEK generation 1\n", out.String())
		device.AssertExpectations(t)
	})

	t.Run("json omits wrapped dek", func(t *testing.T) {
		device := &deviceMocks.MockDeviceUseCase{}
		device.On("Init", ctx).Return(gen, nil)

		var out bytes.Buffer
		require.NoError(t, RunDeviceInit(ctx, device, testLogger(), &out, "json"))
		require.Contains(t, out.String(), `"number": 1`)
		require.NotContains(t, out.String(), "wrapped")
	})

	t.Run("invalid format", func(t *testing.T) {
		device := &deviceMocks.MockDeviceUseCase{}
		err := RunDeviceInit(ctx, device, testLogger(), &bytes.Buffer{}, "yaml")
		require.Error(t, err)
		require.Contains(t, err.Error(), "invalid format")
		device.AssertNotCalled(t, "Init", mock.Anything)
	})

	t.Run("use case error", func(t *testing.T) {
		device := &deviceMocks.MockDeviceUseCase{}
		device.On("Init", ctx).Return(nil, errors.New("kms unavailable"))

		err := RunDeviceInit(ctx, device, testLogger(), &bytes.Buffer{}, "text")
		require.Error(t, err)
		require.Contains(t, err.Error(), "failed to initialize device")
	})
}

func TestRunDeviceRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("text", func(t *testing.T) {
		device := &deviceMocks.MockDeviceUseCase{}
		device.On("Register", ctx).Return("blob-123", nil)

		var out bytes.Buffer
		require.NoError(t, RunDeviceRegister(ctx, device, testLogger(), &out, "text"))
		require.Equal(t, "Capsule registered: blob-123\n", out.String())
	})

	t.Run("json", func(t *testing.T) {
		device := &deviceMocks.MockDeviceUseCase{}
		device.On("Register", ctx).Return("blob-123", nil)

		var out bytes.Buffer
		require.NoError(t, RunDeviceRegister(ctx, device, testLogger(), &out, "json"))

		var decoded map[string]string
		require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
		require.Equal(t, "blob-123", decoded["blob_id"])
	})

	t.Run("error", func(t *testing.T) {
		device := &deviceMocks.MockDeviceUseCase{}
		device.On("Register", ctx).Return("", errors.New("store down"))

		err := RunDeviceRegister(ctx, device, testLogger(), &bytes.Buffer{}, "text")
		require.ErrorContains(t, err, "failed to register capsule")
	})
}

func TestRunDeviceRotate(t *testing.T) {
	ctx := context.Background()
	gen := &deviceDomain.Generation{Number: 2, BlobID: "blob-2", CreatedAt: time.Now()}

	t.Run("success", func(t *testing.T) {
		device := &deviceMocks.MockDeviceUseCase{}
		device.On("Rotate", ctx).Return(gen, nil)

		var out bytes.Buffer
		require.NoError(t, RunDeviceRotate(ctx, device, testLogger(), &out, "text"))
		require.Equal(t, "DEK generation 2\n", out.String())
	})

	t.Run("registration failure keeps the generation", func(t *testing.T) {
		device := &deviceMocks.MockDeviceUseCase{}
		device.On("Rotate", ctx).Return(&deviceDomain.Generation{Number: 2}, errors.New("store down"))

		var logs bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&logs, nil))
		var out bytes.Buffer

		err := RunDeviceRotate(ctx, device, logger, &out, "text")
		require.ErrorContains(t, err, "failed to rotate DEK")
		require.Empty(t, out.String())
		require.Contains(t, logs.String(), "rotated without registering")
	})
}

func TestRunDeviceStatus(t *testing.T) {
	ctx := context.Background()
	superseded := time.Now()
	state := &deviceDomain.State{
		DeviceID: "sensor-7",
		Current:  2,
		Generations: []*deviceDomain.Generation{
			{Number: 1, BlobID: "blob-1", SupersededAt: &superseded},
			{Number: 2},
		},
	}

	t.Run("text", func(t *testing.T) {
		device := &deviceMocks.MockDeviceUseCase{}
		device.On("State", ctx).Return(state, nil)

		var out bytes.Buffer
		require.NoError(t, RunDeviceStatus(ctx, device, &out, "text"))
		require.Contains(t, out.String(), "Device sensor-7 (current generation 2)")
		require.Contains(t, out.String(), "generation 1: blob-1")
		require.Contains(t, out.String(), "generation 2: unregistered")
	})

	t.Run("json", func(t *testing.T) {
		device := &deviceMocks.MockDeviceUseCase{}
		device.On("State", ctx).Return(state, nil)

		var out bytes.Buffer
		require.NoError(t, RunDeviceStatus(ctx, device, &out, "json"))

		var decoded struct {
			DeviceID    string             `json:"device_id"`
			Current     uint32             `json:"current"`
			Generations []generationOutput `json:"generations"`
		}
		require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
		require.Equal(t, "sensor-7", decoded.DeviceID)
		require.Len(t, decoded.Generations, 2)
		require.NotNil(t, decoded.Generations[0].SupersededAt)
	})
}

func TestRunDeviceEncryptDecrypt(t *testing.T) {
	ctx := context.Background()
	env := &cryptoDomain.Envelope{
		Nonce:         []byte("nonce-nonce!"),
		AAD:           []byte("sensor-7"),
		Ciphertext:    []byte("cipher"),
		Tag:           []byte("0123456789abcdef"),
		Algorithm:     cryptoDomain.AESGCM,
		DeviceID:      "sensor-7",
		KeyGeneration: 1,
	}

	t.Run("encrypt", func(t *testing.T) {
		device := &deviceMocks.MockDeviceUseCase{}
		device.On("EncryptRecord", ctx, mock.MatchedBy(func(record json.RawMessage) bool {
			return string(record) == `{"temp":21.5}`
		})).Return(env, nil)

		var out bytes.Buffer
		stdio := IOTuple{Reader: strings.NewReader(`{"temp":21.5}`), Writer: &out}
		require.NoError(t, RunDeviceEncrypt(ctx, device, stdio))

		var decoded cryptoDomain.Envelope
		require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
		require.Equal(t, "sensor-7", decoded.DeviceID)
		device.AssertExpectations(t)
	})

	t.Run("encrypt rejects malformed input", func(t *testing.T) {
		device := &deviceMocks.MockDeviceUseCase{}
		stdio := IOTuple{Reader: strings.NewReader(`{not json`), Writer: &bytes.Buffer{}}
		require.ErrorContains(t, RunDeviceEncrypt(ctx, device, stdio), "failed to read record")
	})

	t.Run("decrypt", func(t *testing.T) {
		device := &deviceMocks.MockDeviceUseCase{}
		device.On("DecryptRecord", ctx, mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) {
				out := args.Get(2).(*json.RawMessage)
				*out = json.RawMessage(`{"temp":21.5}`)
			}).
			Return(nil)

		raw, err := json.Marshal(env)
		require.NoError(t, err)

		var out bytes.Buffer
		stdio := IOTuple{Reader: bytes.NewReader(raw), Writer: &out}
		require.NoError(t, RunDeviceDecrypt(ctx, device, stdio))
		require.Equal(t, "{\"temp\":21.5}\n", out.String())
	})

	t.Run("decrypt error", func(t *testing.T) {
		device := &deviceMocks.MockDeviceUseCase{}
		device.On("DecryptRecord", ctx, mock.Anything, mock.Anything).Return(cryptoDomain.ErrDecryptionFailed)

		raw, err := json.Marshal(env)
		require.NoError(t, err)

		stdio := IOTuple{Reader: bytes.NewReader(raw), Writer: &bytes.Buffer{}}
		err = RunDeviceDecrypt(ctx, device, stdio)
		require.ErrorIs(t, err, cryptoDomain.ErrDecryptionFailed)
	})
}
