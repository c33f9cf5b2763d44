// Package chain connects a wallet to an EVM network and exposes the random
// winner game contract through a typed gateway.
package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Backend is the subset of *ethclient.Client used by the connector and the
// gateway.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
	ChainID(ctx context.Context) (*big.Int, error)
	Close()
}

// Dialer opens a Backend for an RPC endpoint.
type Dialer func(ctx context.Context, rawURL string) (Backend, error)

// Config holds connector configuration.
type Config struct {
	RPCURL  string
	ChainID int64  // expected chain id, e.g. Mumbai: 80001
	Network string // human-readable network name used in alerts
	Timeout time.Duration
}

// DialEthereum dials a JSON-RPC endpoint with go-ethereum's client.
func DialEthereum(ctx context.Context, rawURL string) (Backend, error) {
	client, err := ethclient.DialContext(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func (c Config) validate() (Config, error) {
	if c.RPCURL == "" {
		return c, fmt.Errorf("RPC URL required")
	}
	if c.ChainID <= 0 {
		return c, fmt.Errorf("expected chain id required")
	}
	if c.Network == "" {
		c.Network = fmt.Sprintf("chain %d", c.ChainID)
	}
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
	return c, nil
}
