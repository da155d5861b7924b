package app

import (
	"fmt"

	"github.com/dgraph-io/badger/v4"

	buyerRepository "github.com/chainsensors/capsules/internal/buyer/repository"
	buyerUseCase "github.com/chainsensors/capsules/internal/buyer/usecase"
	"github.com/chainsensors/capsules/internal/database"
	deviceClient "github.com/chainsensors/capsules/internal/device/client"
	deviceRepository "github.com/chainsensors/capsules/internal/device/repository"
	deviceUseCase "github.com/chainsensors/capsules/internal/device/usecase"
)

// DeviceUseCase returns the device DEK lifecycle use case backed by the local badger store.
func (c *Container) DeviceUseCase() (deviceUseCase.DeviceUseCase, error) {
	var err error
	c.deviceUseCaseInit.Do(func() {
		c.deviceUseCase, err = c.initDeviceUseCase()
		if err != nil {
			c.initErrors["deviceUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["deviceUseCase"]; exists {
		return nil, storedErr
	}
	return c.deviceUseCase, nil
}

// Unsealer returns the buyer unsealer backed by the local badger key store.
func (c *Container) Unsealer() (buyerUseCase.Unsealer, error) {
	var err error
	c.unsealerInit.Do(func() {
		c.unsealer, err = c.initUnsealer()
		if err != nil {
			c.initErrors["unsealer"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["unsealer"]; exists {
		return nil, storedErr
	}
	return c.unsealer, nil
}

func (c *Container) openDeviceDB() (*badger.DB, error) {
	var err error
	c.deviceDBInit.Do(func() {
		c.deviceDB, err = database.OpenBadger(c.config.DeviceStatePath)
		if err != nil {
			err = fmt.Errorf("failed to open device state store: %w", err)
			c.initErrors["deviceDB"] = err
		}
	})
	if storedErr, exists := c.initErrors["deviceDB"]; exists {
		return nil, storedErr
	}
	return c.deviceDB, err
}

func (c *Container) openBuyerDB() (*badger.DB, error) {
	var err error
	c.buyerDBInit.Do(func() {
		c.buyerDB, err = database.OpenBadger(c.config.BuyerKeyStorePath)
		if err != nil {
			err = fmt.Errorf("failed to open buyer key store: %w", err)
			c.initErrors["buyerDB"] = err
		}
	})
	if storedErr, exists := c.initErrors["buyerDB"]; exists {
		return nil, storedErr
	}
	return c.buyerDB, err
}

func (c *Container) initDeviceUseCase() (deviceUseCase.DeviceUseCase, error) {
	db, err := c.openDeviceDB()
	if err != nil {
		return nil, err
	}
	wrapper, err := c.KeyWrapper()
	if err != nil {
		return nil, err
	}
	mxeKey, err := c.MXEPublicKey()
	if err != nil {
		return nil, err
	}
	backend, err := deviceClient.NewBackendClient(deviceClient.BackendConfig{
		URL:     c.config.BackendURL,
		Timeout: c.config.BlobStoreTimeout,
		Logger:  c.Logger(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create backend client: %w", err)
	}

	return deviceUseCase.NewDeviceUseCase(
		deviceUseCase.DeviceConfig{
			DeviceID:     c.config.DeviceID,
			UploadMode:   c.config.DeviceUploadMode,
			MXEPublicKey: mxeKey,
		},
		deviceRepository.NewBadgerStateRepository(db),
		wrapper,
		c.CapsuleSealer(),
		c.RecordCodec(),
		backend,
		c.Logger(),
	)
}

func (c *Container) initUnsealer() (buyerUseCase.Unsealer, error) {
	db, err := c.openBuyerDB()
	if err != nil {
		return nil, err
	}
	wrapper, err := c.KeyWrapper()
	if err != nil {
		return nil, err
	}

	return buyerUseCase.NewUnsealer(
		buyerRepository.NewBadgerKeyRepository(db),
		wrapper,
		c.CapsuleSealer(),
		c.RecordCodec(),
		c.Logger(),
	), nil
}
