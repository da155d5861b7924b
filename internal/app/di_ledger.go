package app

import (
	"fmt"

	ledgerClient "github.com/chainsensors/capsules/internal/ledger/client"
	ledgerDomain "github.com/chainsensors/capsules/internal/ledger/domain"
	ledgerService "github.com/chainsensors/capsules/internal/ledger/service"
)

// ProgramID parses the marketplace program address.
func (c *Container) ProgramID() (ledgerDomain.PublicKey, error) {
	programID, err := ledgerDomain.ParsePublicKey(c.config.ProgramID)
	if err != nil {
		return ledgerDomain.PublicKey{}, fmt.Errorf("invalid PROGRAM_ID: %w", err)
	}
	return programID, nil
}

// RPCClient returns the ledger JSON-RPC client.
func (c *Container) RPCClient() (*ledgerClient.RPCClient, error) {
	var err error
	c.rpcClientInit.Do(func() {
		c.rpcClient, err = ledgerClient.NewRPCClient(ledgerClient.RPCConfig{
			URL:     c.config.LedgerRPCURL,
			Timeout: c.config.SubmitTimeout,
			Logger:  c.Logger(),
		})
		if err != nil {
			err = fmt.Errorf("failed to create ledger rpc client: %w", err)
			c.initErrors["rpcClient"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["rpcClient"]; exists {
		return nil, storedErr
	}
	return c.rpcClient, nil
}

// Submitter returns the transaction submitter signing with the payer key.
func (c *Container) Submitter() (*ledgerClient.Submitter, error) {
	var err error
	c.submitterInit.Do(func() {
		c.submitter, err = c.initSubmitter()
		if err != nil {
			c.initErrors["submitter"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["submitter"]; exists {
		return nil, storedErr
	}
	return c.submitter, nil
}

// LogSubscriber returns the websocket log subscriber for the marketplace program.
func (c *Container) LogSubscriber() (*ledgerClient.LogSubscriber, error) {
	var err error
	c.logSubscriberInit.Do(func() {
		var programID ledgerDomain.PublicKey
		programID, err = c.ProgramID()
		if err != nil {
			c.initErrors["logSubscriber"] = err
			return
		}
		c.logSubscriber = ledgerClient.NewLogSubscriber(ledgerClient.SubscriberConfig{
			URL:       c.config.LedgerWSURL,
			ProgramID: programID,
			Logger:    c.Logger(),
		})
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["logSubscriber"]; exists {
		return nil, storedErr
	}
	return c.logSubscriber, nil
}

// Deriver returns the address deriver for the configured network program.
func (c *Container) Deriver() (*ledgerService.Deriver, error) {
	var err error
	c.deriverInit.Do(func() {
		var network ledgerDomain.PublicKey
		network, err = ledgerDomain.ParsePublicKey(c.config.NetworkProgramID)
		if err != nil {
			err = fmt.Errorf("invalid NETWORK_PROGRAM_ID: %w", err)
			c.initErrors["deriver"] = err
			return
		}
		c.deriver = ledgerService.NewDeriver(network)
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["deriver"]; exists {
		return nil, storedErr
	}
	return c.deriver, nil
}

func (c *Container) initSubmitter() (*ledgerClient.Submitter, error) {
	rpc, err := c.RPCClient()
	if err != nil {
		return nil, err
	}
	if c.config.PayerPrivateKey == "" {
		return nil, fmt.Errorf("PAYER_PRIVATE_KEY is required")
	}
	key, err := ledgerDomain.ParsePrivateKey(c.config.PayerPrivateKey)
	if err != nil {
		return nil, fmt.Errorf("invalid PAYER_PRIVATE_KEY: %w", err)
	}
	return ledgerClient.NewSubmitter(rpc, key, c.Logger()), nil
}
