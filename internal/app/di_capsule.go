package app

import (
	"context"
	"fmt"

	capsuleHTTP "github.com/chainsensors/capsules/internal/capsule/http"
	"github.com/chainsensors/capsules/internal/capsule/repository/bucket"
	"github.com/chainsensors/capsules/internal/capsule/repository/walrus"
	capsuleUseCase "github.com/chainsensors/capsules/internal/capsule/usecase"
	"github.com/chainsensors/capsules/internal/config"
)

// BlobStore returns the capsule blob back-end selected by CAPSULE_STORE.
func (c *Container) BlobStore() (capsuleUseCase.BlobStore, error) {
	var err error
	c.blobStoreInit.Do(func() {
		c.blobStore, err = c.initBlobStore()
		if err != nil {
			c.initErrors["blobStore"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["blobStore"]; exists {
		return nil, storedErr
	}
	return c.blobStore, nil
}

// CapsuleUseCase returns the capsule store use case.
func (c *Container) CapsuleUseCase() (capsuleUseCase.CapsuleUseCase, error) {
	var err error
	c.capsuleUseCaseInit.Do(func() {
		c.capsuleUseCase, err = c.initCapsuleUseCase()
		if err != nil {
			c.initErrors["capsuleUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["capsuleUseCase"]; exists {
		return nil, storedErr
	}
	return c.capsuleUseCase, nil
}

// CapsuleHandler returns the HTTP handler for capsule uploads and fetches.
func (c *Container) CapsuleHandler() (*capsuleHTTP.CapsuleHandler, error) {
	var err error
	c.capsuleHandlerInit.Do(func() {
		var uc capsuleUseCase.CapsuleUseCase
		uc, err = c.CapsuleUseCase()
		if err != nil {
			err = fmt.Errorf("failed to get capsule use case for capsule handler: %w", err)
			c.initErrors["capsuleHandler"] = err
			return
		}
		c.capsuleHandler = capsuleHTTP.NewCapsuleHandler(uc, c.Logger())
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["capsuleHandler"]; exists {
		return nil, storedErr
	}
	return c.capsuleHandler, nil
}

func (c *Container) initBlobStore() (capsuleUseCase.BlobStore, error) {
	switch c.config.CapsuleStore {
	case config.CapsuleStoreWalrus:
		store, err := walrus.NewStore(walrus.Config{
			PublisherURL:  c.config.WalrusPublisherURL,
			AggregatorURL: c.config.WalrusAggregatorURL,
			Timeout:       c.config.BlobStoreTimeout,
			Logger:        c.Logger(),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create walrus store: %w", err)
		}
		return store, nil
	case config.CapsuleStoreBucket:
		store, err := bucket.Open(context.Background(), c.config.BlobBucketURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open blob bucket: %w", err)
		}
		c.blobCloser = store.Close
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported capsule store: %s", c.config.CapsuleStore)
	}
}

func (c *Container) initCapsuleUseCase() (capsuleUseCase.CapsuleUseCase, error) {
	store, err := c.BlobStore()
	if err != nil {
		return nil, fmt.Errorf("failed to get blob store for capsule use case: %w", err)
	}

	mxeKey, err := c.MXEPublicKey()
	if err != nil {
		return nil, err
	}

	baseUseCase := capsuleUseCase.NewCapsuleUseCase(
		store,
		c.CapsuleSealer(),
		mxeKey,
		c.config.WalrusEpochs,
		c.Logger(),
	)

	if c.config.MetricsEnabled {
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for capsule use case: %w", err)
		}
		return capsuleUseCase.NewCapsuleUseCaseWithMetrics(baseUseCase, businessMetrics), nil
	}

	return baseUseCase, nil
}
