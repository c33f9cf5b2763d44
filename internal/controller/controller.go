// Package controller drives the game view: it connects the wallet, polls the
// contract and the indexer, derives UiState and performs the owner and
// player writes.
package controller

import (
	"context"
	stderrors "errors"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/R3E-Network/random-winner-game/internal/chain"
	"github.com/R3E-Network/random-winner-game/internal/domain/game"
	"github.com/R3E-Network/random-winner-game/internal/errors"
	"github.com/R3E-Network/random-winner-game/internal/indexer"
	"github.com/R3E-Network/random-winner-game/internal/logging"
	"github.com/R3E-Network/random-winner-game/internal/metrics"
)

// DefaultPollInterval matches the refresh cadence of the web page.
const DefaultPollInterval = 2 * time.Second

// Wallet hands out validated chain handles.
type Wallet interface {
	Connect(ctx context.Context) (*chain.Handle, error)
	Handle(ctx context.Context, needSigner bool) (*chain.Handle, error)
}

// Config configures the controller.
type Config struct {
	PollInterval time.Duration
}

// Controller owns UiState. All methods are safe for concurrent use.
type Controller struct {
	wallet  Wallet
	game    chain.Game
	indexer indexer.Source
	log     *logging.Logger
	cfg     Config
	now     func() time.Time

	mu      sync.Mutex
	state   UiState
	closed  bool
	updates chan struct{}

	poller     *cron.Cron
	pollCtx    context.Context
	pollCancel context.CancelFunc
}

// New creates a disconnected controller.
func New(wallet Wallet, g chain.Game, source indexer.Source, cfg Config, log *logging.Logger) *Controller {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if log == nil {
		log = logging.NewDiscard("controller")
	}
	pollCtx, cancel := context.WithCancel(context.Background())
	return &Controller{
		wallet:     wallet,
		game:       g,
		indexer:    source,
		log:        log,
		cfg:        cfg,
		now:        time.Now,
		state:      UiState{Phase: PhaseDisconnected, Logs: []string{}},
		updates:    make(chan struct{}, 1),
		pollCtx:    pollCtx,
		pollCancel: cancel,
	}
}

// State returns a copy of the current state.
func (c *Controller) State() UiState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// Updates signals state changes. Signals coalesce; receivers should call
// State. The channel is closed by Close.
func (c *Controller) Updates() <-chan struct{} {
	return c.updates
}

// Connect authorizes the wallet, reads the owner and the first snapshot, and
// arms the poll task. On failure the controller stays disconnected.
func (c *Controller) Connect(ctx context.Context) error {
	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return errors.Internal("controller closed", nil)
	case c.state.Phase == PhaseConnecting:
		c.mu.Unlock()
		return errors.Busy("connect")
	case c.state.WalletConnected:
		c.mu.Unlock()
		return nil
	}
	c.state.Phase = PhaseConnecting
	c.notifyLocked()
	c.mu.Unlock()

	h, err := c.wallet.Connect(ctx)
	if err != nil {
		c.log.WithContext(ctx).WithError(err).Warn("wallet connection failed")
		c.mu.Lock()
		c.state.Phase = PhaseDisconnected
		c.state.setError(err)
		c.notifyLocked()
		c.mu.Unlock()
		return err
	}

	c.mu.Lock()
	c.state.Phase = PhaseIdle
	c.state.WalletConnected = true
	c.state.Account = h.Account
	c.state.ChainID = h.ChainID.Int64()
	c.state.setError(nil)
	c.notifyLocked()
	c.mu.Unlock()

	c.log.WithFields(map[string]interface{}{
		"account":  h.Account.Hex(),
		"chain_id": h.ChainID.String(),
	}).Info("wallet connected")

	var g errgroup.Group
	g.Go(func() error { return c.checkOwner(ctx, h) })
	g.Go(func() error { return c.Refresh(ctx) })
	if err := g.Wait(); err != nil {
		c.log.WithError(err).Warn("initial reads failed, polling continues")
	}

	c.startPolling()
	return nil
}

func (c *Controller) checkOwner(ctx context.Context, h *chain.Handle) error {
	owner, err := c.game.Owner(ctx, h)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.state.IsOwner = owner == h.Account
	c.notifyLocked()
	c.mu.Unlock()
	return nil
}

func (c *Controller) startPolling() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.poller != nil {
		return
	}
	p := newPoller(c.log)
	p.Schedule(cron.Every(c.cfg.PollInterval), cron.FuncJob(c.tick))
	p.Start()
	c.poller = p
	c.log.WithField("interval", c.cfg.PollInterval.String()).Debug("poll task armed")
}

func (c *Controller) tick() {
	start := time.Now()
	err := c.Refresh(c.pollCtx)
	result := metrics.ResultOK
	if err != nil {
		result = metrics.ResultError
	}
	metrics.RecordPollTick(result, time.Since(start))
}

// Refresh reads the game-started flag and the latest game, and replaces the
// derived state. A failure aborts this refresh only.
func (c *Controller) Refresh(ctx context.Context) error {
	if !c.State().WalletConnected {
		return errors.NotConnected()
	}

	h, err := c.wallet.Handle(ctx, false)
	if err != nil {
		return c.refreshFailed(ctx, err)
	}
	started, err := c.game.GameStarted(ctx, h)
	if err != nil {
		return c.refreshFailed(ctx, err)
	}

	snap, err := c.indexer.FetchLatestGame(ctx)
	if stderrors.Is(err, game.ErrNoGame) {
		c.mu.Lock()
		c.state.GameStarted = started
		c.state.Logs = []string{}
		c.state.Players = nil
		c.state.LastRefresh = c.now()
		c.notifyLocked()
		c.mu.Unlock()
		return nil
	}
	if err != nil {
		return c.refreshFailed(ctx, err)
	}
	snap.Started = started

	c.mu.Lock()
	c.apply(snap)
	c.notifyLocked()
	c.mu.Unlock()
	return nil
}

// apply merges snap into state. Caller holds mu.
func (c *Controller) apply(snap game.Snapshot) {
	s := &c.state
	s.GameID = snap.ID
	s.GameStarted = snap.Started
	s.Players = append([]common.Address(nil), snap.Players...)
	s.Logs = BuildLogs(snap)
	s.LastRefresh = c.now()

	if snap.Started {
		s.MaxPlayers = snap.MaxPlayers
		if snap.EntryFee != nil {
			s.EntryFee = new(big.Int).Set(snap.EntryFee)
		}
		s.Winner = nil
		return
	}
	if snap.Winner != nil {
		w := *snap.Winner
		s.Winner = &w
	}
}

func (c *Controller) refreshFailed(ctx context.Context, err error) error {
	c.log.WithContext(ctx).WithError(err).Warn("refresh failed")
	c.mu.Lock()
	c.state.setError(err)
	c.notifyLocked()
	c.mu.Unlock()
	return err
}

// StartGame starts a game for maxPlayers players at entryFee whole currency
// units ("0.01"). Only the contract owner succeeds.
func (c *Controller) StartGame(ctx context.Context, maxPlayers int, entryFee string) error {
	if maxPlayers < 1 || maxPlayers > 255 {
		return errors.InvalidInput("maxPlayers", "must be between 1 and 255")
	}
	fee, err := chain.ParseUnits(entryFee)
	if err != nil {
		return err
	}

	return c.write(ctx, chain.MethodStartGame, func(h *chain.Handle) error {
		_, err := c.game.StartGame(ctx, h, uint8(maxPlayers), fee)
		return err
	})
}

// JoinGame joins the running game paying its entry fee.
func (c *Controller) JoinGame(ctx context.Context) error {
	st := c.State()
	if st.WalletConnected && (!st.GameStarted || st.EntryFee == nil) {
		return errors.InvalidInput("game", "no game is accepting players")
	}

	return c.write(ctx, chain.MethodJoinGame, func(h *chain.Handle) error {
		_, err := c.game.JoinGame(ctx, h, st.EntryFee)
		return err
	})
}

// write runs fn with a signing handle while Loading is set. Loading is reset
// on settlement whatever the outcome.
func (c *Controller) write(ctx context.Context, method string, fn func(h *chain.Handle) error) error {
	c.mu.Lock()
	switch {
	case !c.state.WalletConnected:
		c.mu.Unlock()
		return errors.NotConnected()
	case c.state.Loading:
		c.mu.Unlock()
		return errors.Busy(method)
	}
	c.state.Loading = true
	c.state.Phase = PhaseLoading
	c.notifyLocked()
	c.mu.Unlock()

	err := c.signAndRun(ctx, fn)

	entry := c.log.WithContext(ctx).WithField("method", method)
	if err != nil {
		entry.WithError(err).Warn("transaction failed")
	} else {
		entry.Info("transaction confirmed")
	}

	c.mu.Lock()
	c.state.Loading = false
	c.state.Phase = PhaseIdle
	c.state.setError(err)
	c.notifyLocked()
	c.mu.Unlock()
	return err
}

func (c *Controller) signAndRun(ctx context.Context, fn func(h *chain.Handle) error) error {
	h, err := c.wallet.Handle(ctx, true)
	if err != nil {
		return err
	}
	return fn(h)
}

// Close cancels the poll task and waits for a running refresh to finish.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	poller := c.poller
	c.mu.Unlock()

	c.pollCancel()
	if poller != nil {
		<-poller.Stop().Done()
	}

	c.mu.Lock()
	close(c.updates)
	c.mu.Unlock()
	c.log.Debug("controller closed")
}

// notifyLocked signals Updates without blocking. Caller holds mu.
func (c *Controller) notifyLocked() {
	if c.closed {
		return
	}
	select {
	case c.updates <- struct{}{}:
	default:
	}
}
