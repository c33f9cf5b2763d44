// Package config loads client settings from a .env file, the process
// environment and the networks file.
package config

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"

	"github.com/R3E-Network/random-winner-game/internal/errors"
)

// MinPollInterval is the smallest supported poll period.
const MinPollInterval = time.Second

// Env holds the raw environment settings.
type Env struct {
	Network            string        `env:"RWG_NETWORK"`
	NetworksFile       string        `env:"RWG_NETWORKS_FILE"`
	RPCURL             string        `env:"RWG_RPC_URL"`
	QuickNodeURL       string        `env:"QUICKNODE_HTTP_URL"`
	PrivateKey         string        `env:"PRIVATE_KEY"`
	KeystorePath       string        `env:"RWG_KEYSTORE"`
	KeystorePassphrase string        `env:"RWG_KEYSTORE_PASSPHRASE"`
	ContractAddress    string        `env:"RWG_CONTRACT_ADDRESS"`
	SubgraphURL        string        `env:"RWG_SUBGRAPH_URL"`
	PollInterval       time.Duration `env:"RWG_POLL_INTERVAL,default=2s"`
	IndexerRPS         float64       `env:"RWG_INDEXER_RPS,default=0"`
	IndexerTimeout     time.Duration `env:"RWG_INDEXER_TIMEOUT,default=15s"`
	LogLevel           string        `env:"RWG_LOG_LEVEL,default=info"`
	LogFormat          string        `env:"RWG_LOG_FORMAT,default=text"`
	LogFile            string        `env:"RWG_LOG_FILE"`
	HTTPAddr           string        `env:"RWG_HTTP_ADDR"`
	HTTPAllowedOrigins []string      `env:"RWG_HTTP_ALLOWED_ORIGINS"`
	HTTPRPS            float64       `env:"RWG_HTTP_RPS,default=0"`
}

// Config is the resolved client configuration.
type Config struct {
	Env
	Network  *Network
	Solidity string
}

// Load reads envFile (a missing file is not an error), decodes the
// environment and resolves the selected network.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load env (%s): %w", envFile, err)
		}
	}

	var env Env
	if err := envdecode.Decode(&env); err != nil && !stderrors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decode environment: %w", err)
	}

	return Resolve(env)
}

// Resolve merges env over the networks file.
func Resolve(env Env) (*Config, error) {
	networks, err := LoadNetworksOrDefault(env.NetworksFile)
	if err != nil {
		return nil, err
	}

	network, err := networks.Lookup(env.Network)
	if err != nil {
		return nil, errors.InvalidConfig("RWG_NETWORK", err.Error())
	}

	switch {
	case env.RPCURL != "":
		network.URL = env.RPCURL
	case env.QuickNodeURL != "":
		network.URL = env.QuickNodeURL
	}
	if env.ContractAddress != "" {
		network.Contract = env.ContractAddress
	}
	if env.SubgraphURL != "" {
		network.Subgraph = env.SubgraphURL
	}
	if env.PollInterval == 0 {
		env.PollInterval = 2 * time.Second
	}

	return &Config{Env: env, Network: network, Solidity: networks.Solidity}, nil
}

// Validate checks the settings every chain-facing command needs.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Network.URL) == "" {
		return errors.InvalidConfig("RWG_RPC_URL", "RPC endpoint required")
	}
	if !common.IsHexAddress(c.Network.Contract) {
		return errors.InvalidConfig("RWG_CONTRACT_ADDRESS", fmt.Sprintf("not a hex address: %q", c.Network.Contract))
	}
	if strings.TrimSpace(c.Network.Subgraph) == "" {
		return errors.InvalidConfig("RWG_SUBGRAPH_URL", "subgraph endpoint required")
	}
	if c.PollInterval < MinPollInterval {
		return errors.InvalidConfig("RWG_POLL_INTERVAL", fmt.Sprintf("must be at least %s", MinPollInterval))
	}
	if c.IndexerRPS < 0 {
		return errors.InvalidConfig("RWG_INDEXER_RPS", "must not be negative")
	}
	if c.HTTPRPS < 0 {
		return errors.InvalidConfig("RWG_HTTP_RPS", "must not be negative")
	}
	if c.PrivateKey == "" && c.KeystorePath == "" {
		return errors.InvalidConfig("PRIVATE_KEY", "set PRIVATE_KEY or RWG_KEYSTORE")
	}
	return nil
}

// Contract returns the parsed contract address. Call Validate first.
func (c *Config) Contract() common.Address {
	return common.HexToAddress(c.Network.Contract)
}
