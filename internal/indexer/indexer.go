// Package indexer queries the game subgraph for the most recent game.
package indexer

import (
	"context"
	stderrors "errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/R3E-Network/random-winner-game/internal/domain/game"
	"github.com/R3E-Network/random-winner-game/internal/errors"
	"github.com/R3E-Network/random-winner-game/internal/httputil"
	"github.com/R3E-Network/random-winner-game/internal/logging"
	"github.com/R3E-Network/random-winner-game/internal/metrics"
)

// LatestGameQuery selects the game with the highest id.
const LatestGameQuery = `{
  games(orderBy: id, orderDirection: desc, first: 1) {
    id
    maxPlayers
    entryFee
    winner
    players
  }
}`

// Source returns the latest game snapshot.
type Source interface {
	FetchLatestGame(ctx context.Context) (game.Snapshot, error)
}

// Config configures the subgraph client.
type Config struct {
	URL     string
	Timeout time.Duration
	// RPS caps queries per second. Zero means unlimited.
	RPS float64
}

// Client is a Source backed by a GraphQL subgraph endpoint.
type Client struct {
	http    *httputil.Client
	limiter *rate.Limiter
	log     *logging.Logger
}

var _ Source = (*Client)(nil)

// New creates a subgraph client.
func New(cfg Config, log *logging.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.InvalidConfig("RWG_SUBGRAPH_URL", "subgraph endpoint required")
	}
	if cfg.RPS < 0 {
		return nil, errors.InvalidConfig("RWG_INDEXER_RPS", "must not be negative")
	}
	if log == nil {
		log = logging.NewDiscard("indexer")
	}

	limit := rate.Inf
	if cfg.RPS > 0 {
		limit = rate.Limit(cfg.RPS)
	}

	return &Client{
		http: httputil.NewClient(httputil.ClientConfig{
			BaseURL:   cfg.URL,
			Timeout:   cfg.Timeout,
			UserAgent: "random-winner-game",
		}),
		limiter: rate.NewLimiter(limit, 1),
		log:     log,
	}, nil
}

// FetchLatestGame fetches the newest game. It returns game.ErrNoGame when the
// subgraph has no games yet and an INDEXER_FETCH_FAILED error otherwise.
func (c *Client) FetchLatestGame(ctx context.Context) (game.Snapshot, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		metrics.RecordIndexerRequest(metrics.ResultError)
		return game.Snapshot{}, errors.IndexerFetchFailed(err)
	}

	resp, err := c.http.Post(ctx, "", map[string]string{"query": LatestGameQuery})
	if err != nil {
		return c.fail(err)
	}
	body, err := httputil.ReadResponse(resp)
	if err != nil {
		return c.fail(err)
	}

	snap, err := ParseLatestGame(body)
	switch {
	case stderrors.Is(err, game.ErrNoGame):
		metrics.RecordIndexerRequest(metrics.ResultEmpty)
		return game.Snapshot{}, err
	case err != nil:
		return c.fail(err)
	}

	metrics.RecordIndexerRequest(metrics.ResultOK)
	return snap, nil
}

func (c *Client) fail(err error) (game.Snapshot, error) {
	metrics.RecordIndexerRequest(metrics.ResultError)
	c.log.WithError(err).Debug("indexer query failed")
	return game.Snapshot{}, errors.IndexerFetchFailed(err)
}

// ParseLatestGame extracts the first game of a subgraph response.
func ParseLatestGame(body []byte) (game.Snapshot, error) {
	if !gjson.ValidBytes(body) {
		return game.Snapshot{}, fmt.Errorf("response is not valid JSON")
	}
	doc := gjson.ParseBytes(body)

	if errs := doc.Get("errors"); errs.IsArray() && len(errs.Array()) > 0 {
		msgs := make([]string, 0, len(errs.Array()))
		for _, e := range errs.Array() {
			msgs = append(msgs, e.Get("message").String())
		}
		return game.Snapshot{}, fmt.Errorf("subgraph errors: %s", strings.Join(msgs, "; "))
	}

	games := doc.Get("data.games")
	if !games.IsArray() {
		return game.Snapshot{}, fmt.Errorf("response has no data.games array")
	}
	first := games.Get("0")
	if !first.Exists() {
		return game.Snapshot{}, game.ErrNoGame
	}

	snap := game.Snapshot{
		ID:         first.Get("id").String(),
		MaxPlayers: int(first.Get("maxPlayers").Int()),
	}

	fee := first.Get("entryFee")
	if fee.Exists() && fee.Type != gjson.Null {
		v, ok := new(big.Int).SetString(fee.String(), 10)
		if !ok || v.Sign() < 0 {
			return game.Snapshot{}, fmt.Errorf("game %s: malformed entryFee %q", snap.ID, fee.String())
		}
		snap.EntryFee = v
	}

	if w := first.Get("winner"); w.Exists() && w.Type != gjson.Null && w.String() != "" {
		if !common.IsHexAddress(w.String()) {
			return game.Snapshot{}, fmt.Errorf("game %s: malformed winner %q", snap.ID, w.String())
		}
		winner := common.HexToAddress(w.String())
		snap.Winner = &winner
	}

	players := first.Get("players").Array()
	snap.Players = make([]common.Address, 0, len(players))
	for _, p := range players {
		if !common.IsHexAddress(p.String()) {
			return game.Snapshot{}, fmt.Errorf("game %s: malformed player %q", snap.ID, p.String())
		}
		snap.Players = append(snap.Players, common.HexToAddress(p.String()))
	}

	return snap, nil
}
