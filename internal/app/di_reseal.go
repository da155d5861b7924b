package app

import (
	"fmt"

	ledgerDomain "github.com/chainsensors/capsules/internal/ledger/domain"
	outboxRepository "github.com/chainsensors/capsules/internal/outbox/repository"
	outboxUsecase "github.com/chainsensors/capsules/internal/outbox/usecase"
	resealDomain "github.com/chainsensors/capsules/internal/reseal/domain"
	resealHTTP "github.com/chainsensors/capsules/internal/reseal/http"
	resealRepository "github.com/chainsensors/capsules/internal/reseal/repository"
	resealUseCase "github.com/chainsensors/capsules/internal/reseal/usecase"
)

// RequestRepository returns the reseal request repository for the configured driver.
func (c *Container) RequestRepository() (resealUseCase.RequestRepository, error) {
	var err error
	c.requestRepoInit.Do(func() {
		c.requestRepo, err = c.initRequestRepository()
		if err != nil {
			c.initErrors["requestRepo"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["requestRepo"]; exists {
		return nil, storedErr
	}
	return c.requestRepo, nil
}

// ResealedCapsuleRepository returns the delivered result repository for the configured driver.
func (c *Container) ResealedCapsuleRepository() (resealUseCase.ResealedCapsuleRepository, error) {
	var err error
	c.resultRepoInit.Do(func() {
		c.resultRepo, err = c.initResealedCapsuleRepository()
		if err != nil {
			c.initErrors["resultRepo"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["resultRepo"]; exists {
		return nil, storedErr
	}
	return c.resultRepo, nil
}

// OutboxRepository returns the outbox event repository instance.
func (c *Container) OutboxRepository() (outboxUsecase.OutboxEventRepository, error) {
	var err error
	c.outboxRepoInit.Do(func() {
		c.outboxRepo, err = c.initOutboxRepository()
		if err != nil {
			c.initErrors["outboxRepo"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["outboxRepo"]; exists {
		return nil, storedErr
	}
	return c.outboxRepo, nil
}

// Correlator returns the event correlator. Its Run loop is started by the server command.
func (c *Container) Correlator() (resealUseCase.Correlator, error) {
	var err error
	c.correlatorInit.Do(func() {
		c.correlator, err = c.initCorrelator()
		if err != nil {
			c.initErrors["correlator"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["correlator"]; exists {
		return nil, storedErr
	}
	return c.correlator, nil
}

// ResealUseCase returns the reseal use case.
func (c *Container) ResealUseCase() (resealUseCase.ResealUseCase, error) {
	var err error
	c.resealUseCaseInit.Do(func() {
		c.resealUseCase, err = c.initResealUseCase()
		if err != nil {
			c.initErrors["resealUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["resealUseCase"]; exists {
		return nil, storedErr
	}
	return c.resealUseCase, nil
}

// FinalizeProcessor returns the outbox processor that stores buyer capsules and finalizes
// purchases.
func (c *Container) FinalizeProcessor() (*resealUseCase.FinalizeProcessor, error) {
	var err error
	c.finalizeProcessorInit.Do(func() {
		c.finalizeProcessor, err = c.initFinalizeProcessor()
		if err != nil {
			c.initErrors["finalizeProcessor"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["finalizeProcessor"]; exists {
		return nil, storedErr
	}
	return c.finalizeProcessor, nil
}

// OutboxUseCase returns the outbox use case instance.
func (c *Container) OutboxUseCase() (outboxUsecase.UseCase, error) {
	var err error
	c.outboxUseCaseInit.Do(func() {
		c.outboxUseCase, err = c.initOutboxUseCase()
		if err != nil {
			c.initErrors["outboxUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["outboxUseCase"]; exists {
		return nil, storedErr
	}
	return c.outboxUseCase, nil
}

// ResealHandler returns the HTTP handler for reseal submissions and queries.
func (c *Container) ResealHandler() (*resealHTTP.ResealHandler, error) {
	var err error
	c.resealHandlerInit.Do(func() {
		var uc resealUseCase.ResealUseCase
		uc, err = c.ResealUseCase()
		if err != nil {
			err = fmt.Errorf("failed to get reseal use case for reseal handler: %w", err)
			c.initErrors["resealHandler"] = err
			return
		}
		c.resealHandler = resealHTTP.NewResealHandler(uc, c.Logger())
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["resealHandler"]; exists {
		return nil, storedErr
	}
	return c.resealHandler, nil
}

func (c *Container) initRequestRepository() (resealUseCase.RequestRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for request repository: %w", err)
	}

	switch c.config.DBDriver {
	case "mysql":
		return resealRepository.NewMySQLRequestRepository(db), nil
	case "postgres":
		return resealRepository.NewPostgreSQLRequestRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

func (c *Container) initResealedCapsuleRepository() (resealUseCase.ResealedCapsuleRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for resealed capsule repository: %w", err)
	}

	switch c.config.DBDriver {
	case "mysql":
		return resealRepository.NewMySQLResealedCapsuleRepository(db), nil
	case "postgres":
		return resealRepository.NewPostgreSQLResealedCapsuleRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initOutboxRepository creates the outbox event repository instance.
func (c *Container) initOutboxRepository() (outboxUsecase.OutboxEventRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for outbox repository: %w", err)
	}

	switch c.config.DBDriver {
	case "mysql":
		return outboxRepository.NewMySQLOutboxEventRepository(db), nil
	case "postgres":
		return outboxRepository.NewPostgreSQLOutboxEventRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

func (c *Container) initCorrelator() (resealUseCase.Correlator, error) {
	programID, err := c.ProgramID()
	if err != nil {
		return nil, err
	}
	source, err := c.LogSubscriber()
	if err != nil {
		return nil, err
	}
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for correlator: %w", err)
	}
	requests, err := c.RequestRepository()
	if err != nil {
		return nil, err
	}
	results, err := c.ResealedCapsuleRepository()
	if err != nil {
		return nil, err
	}
	outbox, err := c.OutboxRepository()
	if err != nil {
		return nil, err
	}
	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for correlator: %w", err)
	}

	return resealUseCase.NewCorrelator(
		resealUseCase.CorrelatorConfig{
			ProgramID:    programID,
			DedupSize:    c.config.CorrelatorDedupSize,
			ReconnectMin: c.config.CorrelatorReconnectMin,
			ReconnectMax: c.config.CorrelatorReconnectMax,
		},
		source,
		txManager,
		requests,
		results,
		outbox,
		businessMetrics,
		c.Logger(),
	)
}

func (c *Container) initResealUseCase() (resealUseCase.ResealUseCase, error) {
	programID, err := c.ProgramID()
	if err != nil {
		return nil, err
	}
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for reseal use case: %w", err)
	}
	requests, err := c.RequestRepository()
	if err != nil {
		return nil, err
	}
	results, err := c.ResealedCapsuleRepository()
	if err != nil {
		return nil, err
	}
	store, err := c.CapsuleUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get capsule use case for reseal use case: %w", err)
	}
	submitter, err := c.Submitter()
	if err != nil {
		return nil, err
	}
	deriver, err := c.Deriver()
	if err != nil {
		return nil, err
	}
	correlator, err := c.Correlator()
	if err != nil {
		return nil, err
	}

	baseUseCase := resealUseCase.NewResealUseCase(
		resealUseCase.ResealConfig{
			ProgramID:     programID,
			CircuitName:   c.config.ResealCircuitName,
			ClusterOffset: c.config.ClusterOffset,
			SubmitTimeout: c.config.SubmitTimeout,
			MaxAttempts:   c.config.SubmitMaxAttempts,
		},
		txManager,
		requests,
		results,
		store,
		submitter,
		deriver,
		correlator,
		c.Logger(),
	)

	if c.config.MetricsEnabled {
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for reseal use case: %w", err)
		}
		return resealUseCase.NewResealUseCaseWithMetrics(baseUseCase, businessMetrics), nil
	}

	return baseUseCase, nil
}

func (c *Container) initFinalizeProcessor() (*resealUseCase.FinalizeProcessor, error) {
	programID, err := c.ProgramID()
	if err != nil {
		return nil, err
	}
	admin, err := ledgerDomain.ParsePublicKey(c.config.MarketplaceAdmin)
	if err != nil {
		return nil, fmt.Errorf("invalid MARKETPLACE_ADMIN: %w", err)
	}
	results, err := c.ResealedCapsuleRepository()
	if err != nil {
		return nil, err
	}
	store, err := c.CapsuleUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get capsule use case for finalize processor: %w", err)
	}
	submitter, err := c.Submitter()
	if err != nil {
		return nil, err
	}

	return resealUseCase.NewFinalizeProcessor(programID, admin, results, store, submitter, c.Logger())
}

// initOutboxUseCase creates the outbox use case with all its dependencies.
func (c *Container) initOutboxUseCase() (outboxUsecase.UseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for outbox use case: %w", err)
	}

	outboxRepo, err := c.OutboxRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get outbox repository for outbox use case: %w", err)
	}

	finalize, err := c.FinalizeProcessor()
	if err != nil {
		return nil, fmt.Errorf("failed to get finalize processor for outbox use case: %w", err)
	}

	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for outbox use case: %w", err)
	}

	dispatcher := outboxUsecase.NewDispatcher()
	dispatcher.Register(resealDomain.EventTypeResealOutput, finalize)

	useCaseConfig := outboxUsecase.Config{
		Interval:      c.config.OutboxInterval,
		BatchSize:     c.config.OutboxBatchSize,
		MaxRetries:    c.config.OutboxMaxRetries,
		RetryInterval: c.config.OutboxRetryInterval,
	}

	return outboxUsecase.NewOutboxUseCase(
		useCaseConfig,
		txManager,
		outboxRepo,
		dispatcher,
		businessMetrics,
		c.Logger(),
	), nil
}
