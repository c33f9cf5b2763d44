package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"os"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/R3E-Network/random-winner-game/internal/errors"
	"github.com/R3E-Network/random-winner-game/internal/logging"
	"github.com/R3E-Network/random-winner-game/internal/metrics"
)

// Provider is a wallet: it owns one account and can sign for it.
type Provider interface {
	Account() common.Address
	Transactor(chainID *big.Int) (*bind.TransactOpts, error)
}

// ApprovalRequest describes an account exposure the user must authorize.
type ApprovalRequest struct {
	Account common.Address
	Network string
	ChainID int64
}

// Approver asks the user whether the wallet may be used.
type Approver interface {
	Approve(ctx context.Context, req ApprovalRequest) (bool, error)
}

// ApproverFunc adapts a function to Approver.
type ApproverFunc func(ctx context.Context, req ApprovalRequest) (bool, error)

// Approve implements Approver.
func (f ApproverFunc) Approve(ctx context.Context, req ApprovalRequest) (bool, error) {
	return f(ctx, req)
}

// AutoApprove authorizes every request.
var AutoApprove = ApproverFunc(func(context.Context, ApprovalRequest) (bool, error) { return true, nil })

// Alerter shows a blocking notice to the user.
type Alerter interface {
	Alert(message string)
}

// AlerterFunc adapts a function to Alerter.
type AlerterFunc func(message string)

// Alert implements Alerter.
func (f AlerterFunc) Alert(message string) { f(message) }

// KeyProvider signs with a raw secp256k1 private key.
type KeyProvider struct {
	key *ecdsa.PrivateKey
}

// NewKeyProvider parses a hex private key, with or without 0x prefix.
func NewKeyProvider(hexKey string) (*KeyProvider, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, errors.InvalidConfig("PRIVATE_KEY", err.Error())
	}
	return &KeyProvider{key: key}, nil
}

// NewKeystoreProvider decrypts a go-ethereum JSON keystore file.
func NewKeystoreProvider(path, passphrase string) (*KeyProvider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.InvalidConfig("RWG_KEYSTORE", err.Error())
	}
	key, err := keystore.DecryptKey(data, passphrase)
	if err != nil {
		return nil, errors.InvalidConfig("RWG_KEYSTORE_PASSPHRASE", err.Error())
	}
	return &KeyProvider{key: key.PrivateKey}, nil
}

// Account returns the address derived from the key.
func (p *KeyProvider) Account() common.Address {
	return crypto.PubkeyToAddress(p.key.PublicKey)
}

// Transactor returns EIP-155 signing options for chainID.
func (p *KeyProvider) Transactor(chainID *big.Int) (*bind.TransactOpts, error) {
	return bind.NewKeyedTransactorWithChainID(p.key, chainID)
}

// Handle is a validated connection: the backend is on the expected chain and
// the user authorized the account.
type Handle struct {
	Backend Backend
	ChainID *big.Int
	Account common.Address
	Network string

	signer *bind.TransactOpts
}

// CanSign reports whether the handle carries signing capability.
func (h *Handle) CanSign() bool {
	return h.signer != nil
}

func (h *Handle) callOpts(ctx context.Context) *bind.CallOpts {
	return &bind.CallOpts{Context: ctx, From: h.Account}
}

func (h *Handle) transactOpts(ctx context.Context, value *big.Int) (*bind.TransactOpts, error) {
	if h.signer == nil {
		return nil, fmt.Errorf("handle for %s has no signer", h.Account.Hex())
	}
	opts := *h.signer
	opts.Context = ctx
	opts.Value = value
	return &opts, nil
}

// Option configures a Connector.
type Option func(*Connector)

// WithApprover sets the approval prompt. Defaults to AutoApprove.
func WithApprover(a Approver) Option {
	return func(c *Connector) { c.approver = a }
}

// WithAlerter sets the network mismatch notice sink.
func WithAlerter(a Alerter) Option {
	return func(c *Connector) { c.alerter = a }
}

// WithDialer replaces DialEthereum.
func WithDialer(d Dialer) Option {
	return func(c *Connector) { c.dial = d }
}

// WithLogger sets the connector logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *Connector) { c.log = l }
}

// Connector turns a wallet provider into validated handles.
type Connector struct {
	cfg      Config
	provider Provider
	approver Approver
	alerter  Alerter
	dial     Dialer
	log      *logging.Logger

	mu         sync.Mutex
	backend    Backend
	authorized bool
}

// NewConnector creates a connector for provider on the network in cfg.
func NewConnector(cfg Config, provider Provider, opts ...Option) (*Connector, error) {
	cfg, err := cfg.validate()
	if err != nil {
		return nil, errors.InvalidConfig("network", err.Error())
	}
	if provider == nil {
		return nil, errors.InvalidConfig("wallet", "provider required")
	}
	c := &Connector{
		cfg:      cfg,
		provider: provider,
		approver: AutoApprove,
		alerter:  AlerterFunc(func(string) {}),
		dial:     DialEthereum,
		log:      logging.NewDiscard("wallet"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Account returns the provider's account.
func (c *Connector) Account() common.Address {
	return c.provider.Account()
}

// Connect prompts for authorization if needed and returns a read-only
// handle. Declining yields USER_REJECTED; the wrong chain yields
// NETWORK_MISMATCH after a single alert.
func (c *Connector) Connect(ctx context.Context) (*Handle, error) {
	return c.Handle(ctx, false)
}

// Handle re-validates the chain and returns a fresh handle. With needSigner
// the handle can submit transactions.
func (c *Connector) Handle(ctx context.Context, needSigner bool) (*Handle, error) {
	if err := c.authorize(ctx); err != nil {
		return nil, err
	}

	backend, err := c.backendFor(ctx)
	if err != nil {
		return nil, err
	}

	chainID, err := backend.ChainID(ctx)
	if err != nil {
		return nil, errors.Internal("read chain id", err)
	}
	if chainID.Cmp(big.NewInt(c.cfg.ChainID)) != 0 {
		metrics.RecordNetworkMismatch()
		c.log.WithFields(map[string]interface{}{
			"expected": c.cfg.ChainID,
			"actual":   chainID.String(),
		}).Warn("wallet is on the wrong network")
		c.alerter.Alert(fmt.Sprintf("Change the network to %s", c.cfg.Network))
		return nil, errors.NetworkMismatch(c.cfg.ChainID, chainID.Int64())
	}

	h := &Handle{
		Backend: backend,
		ChainID: chainID,
		Account: c.provider.Account(),
		Network: c.cfg.Network,
	}
	if needSigner {
		signer, err := c.provider.Transactor(chainID)
		if err != nil {
			return nil, errors.Internal("build transactor", err)
		}
		h.signer = signer
	}
	return h, nil
}

// Close releases the RPC connection.
func (c *Connector) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.backend != nil {
		c.backend.Close()
		c.backend = nil
	}
}

func (c *Connector) authorize(ctx context.Context) error {
	c.mu.Lock()
	authorized := c.authorized
	c.mu.Unlock()
	if authorized {
		return nil
	}

	ok, err := c.approver.Approve(ctx, ApprovalRequest{
		Account: c.provider.Account(),
		Network: c.cfg.Network,
		ChainID: c.cfg.ChainID,
	})
	if err != nil {
		return errors.UserRejected(err)
	}
	if !ok {
		return errors.UserRejected(nil)
	}

	c.mu.Lock()
	c.authorized = true
	c.mu.Unlock()
	c.log.WithField("account", c.provider.Account().Hex()).Info("wallet connected")
	return nil
}

func (c *Connector) backendFor(ctx context.Context) (Backend, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.backend != nil {
		return c.backend, nil
	}

	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()
	backend, err := c.dial(dialCtx, c.cfg.RPCURL)
	if err != nil {
		return nil, errors.Internal("dial "+c.cfg.Network, err)
	}
	c.backend = backend
	return backend, nil
}
