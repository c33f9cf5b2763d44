package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/R3E-Network/random-winner-game/internal/chain"
	"github.com/R3E-Network/random-winner-game/internal/config"
	"github.com/R3E-Network/random-winner-game/internal/controller"
	"github.com/R3E-Network/random-winner-game/internal/httpapi"
	"github.com/R3E-Network/random-winner-game/internal/indexer"
	"github.com/R3E-Network/random-winner-game/internal/logging"
)

// app is the wired client: wallet, gateway, indexer and controller.
type app struct {
	cfg       *config.Config
	log       *logging.Logger
	connector *chain.Connector
	ctrl      *controller.Controller
	hub       *httpapi.Hub

	logFile io.Closer
}

type appOptions struct {
	envFile  string
	network  string
	approver chain.Approver
	alerter  chain.Alerter
	// quiet discards logs unless RWG_LOG_FILE is set.
	quiet bool
}

func loadConfig(opts appOptions) (*config.Config, error) {
	if opts.network != "" {
		if err := os.Setenv("RWG_NETWORK", opts.network); err != nil {
			return nil, err
		}
	}
	return config.Load(opts.envFile)
}

func newApp(opts appOptions) (*app, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &app{cfg: cfg}
	a.log, a.logFile, err = newLogger(cfg, opts.quiet)
	if err != nil {
		return nil, err
	}

	provider, err := newProvider(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	connOpts := []chain.Option{chain.WithLogger(a.log)}
	if opts.approver != nil {
		connOpts = append(connOpts, chain.WithApprover(opts.approver))
	}
	if opts.alerter != nil {
		connOpts = append(connOpts, chain.WithAlerter(opts.alerter))
	}
	a.connector, err = chain.NewConnector(chain.Config{
		RPCURL:  cfg.Network.URL,
		ChainID: cfg.Network.ChainID,
		Network: cfg.Network.Name,
	}, provider, connOpts...)
	if err != nil {
		a.Close()
		return nil, err
	}

	contract, err := chain.NewContract(cfg.Contract(), a.log)
	if err != nil {
		a.Close()
		return nil, err
	}
	source, err := indexer.New(indexer.Config{
		URL:     cfg.Network.Subgraph,
		Timeout: cfg.IndexerTimeout,
		RPS:     cfg.IndexerRPS,
	}, a.log)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.ctrl = controller.New(a.connector, contract, source, controller.Config{PollInterval: cfg.PollInterval}, a.log)
	a.hub = httpapi.NewHub()
	go forward(a.ctrl.Updates(), a.hub)

	a.log.WithFields(map[string]interface{}{
		"network":  cfg.Network.Name,
		"chain_id": cfg.Network.ChainID,
		"contract": cfg.Network.Contract,
		"account":  a.connector.Account().Hex(),
	}).Debug("client configured")
	return a, nil
}

func newLogger(cfg *config.Config, quiet bool) (*logging.Logger, io.Closer, error) {
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		log := logging.New("randomwinner", cfg.LogLevel, cfg.LogFormat)
		log.SetOutput(f)
		return log, f, nil
	}
	if quiet {
		return logging.NewDiscard("randomwinner"), nil, nil
	}
	return logging.New("randomwinner", cfg.LogLevel, cfg.LogFormat), nil, nil
}

func newProvider(cfg *config.Config) (*chain.KeyProvider, error) {
	if cfg.KeystorePath != "" {
		return chain.NewKeystoreProvider(cfg.KeystorePath, cfg.KeystorePassphrase)
	}
	return chain.NewKeyProvider(cfg.PrivateKey)
}

// forward relays controller signals to the hub until the controller closes.
func forward(updates <-chan struct{}, hub *httpapi.Hub) {
	for range updates {
		hub.Notify()
	}
	hub.Close()
}

// serveStatus runs the status API when RWG_HTTP_ADDR is set.
func (a *app) serveStatus(ctx context.Context) <-chan error {
	errCh := make(chan error, 1)
	if a.cfg.HTTPAddr == "" {
		close(errCh)
		return errCh
	}
	handler := httpapi.NewHandler(a.ctrl, a.hub, httpapi.Options{
		Currency:          a.cfg.Network.Currency,
		AllowedOrigins:    a.cfg.HTTPAllowedOrigins,
		RequestsPerSecond: a.cfg.HTTPRPS,
	}, a.log)
	go func() {
		errCh <- httpapi.Serve(ctx, a.cfg.HTTPAddr, handler, a.hub, a.log)
		close(errCh)
	}()
	return errCh
}

func (a *app) Close() {
	if a.ctrl != nil {
		a.ctrl.Close()
	}
	if a.connector != nil {
		a.connector.Close()
	}
	if a.logFile != nil {
		_ = a.logFile.Close()
	}
}
