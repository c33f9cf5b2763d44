package controller

import (
	"context"
	"math/big"
	"strconv"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/R3E-Network/random-winner-game/internal/chain"
	"github.com/R3E-Network/random-winner-game/internal/domain/game"
	"github.com/R3E-Network/random-winner-game/internal/errors"
)

var (
	owner = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	alice = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	bob   = common.HexToAddress("0x00000000000000000000000000000000000000c3")
)

// fakeWallet hands out handles for one account.
type fakeWallet struct {
	account   common.Address
	connErr   error
	handleErr error
}

func (w *fakeWallet) Connect(ctx context.Context) (*chain.Handle, error) {
	if w.connErr != nil {
		return nil, w.connErr
	}
	return w.Handle(ctx, false)
}

func (w *fakeWallet) Handle(context.Context, bool) (*chain.Handle, error) {
	if w.handleErr != nil {
		return nil, w.handleErr
	}
	return &chain.Handle{Account: w.account, ChainID: big.NewInt(80001), Network: "mumbai"}, nil
}

// fakeChain plays both the contract and the subgraph so several controllers
// can observe the same game.
type fakeChain struct {
	mu         sync.Mutex
	owner      common.Address
	started    bool
	gameID     int
	maxPlayers int
	entryFee   *big.Int
	players    []common.Address
	winner     *common.Address

	readErr    error
	indexErr   error
	writeErr   error
	fetches    int
	block      chan struct{}
	joinValues []*big.Int
}

func newFakeChain() *fakeChain {
	return &fakeChain{owner: owner}
}

func (f *fakeChain) Owner(context.Context, *chain.Handle) (common.Address, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return common.Address{}, f.readErr
	}
	return f.owner, nil
}

func (f *fakeChain) GameStarted(context.Context, *chain.Handle) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return false, f.readErr
	}
	return f.started, nil
}

func (f *fakeChain) StartGame(ctx context.Context, h *chain.Handle, maxPlayers uint8, entryFee *big.Int) (*types.Receipt, error) {
	f.mu.Lock()
	block := f.block
	f.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, errors.ContractCallFailed(chain.MethodStartGame, ctx.Err())
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return nil, f.writeErr
	}
	if h.Account != f.owner || f.started {
		return nil, errors.ContractCallFailed(chain.MethodStartGame, nil)
	}
	f.started = true
	f.gameID++
	f.maxPlayers = int(maxPlayers)
	f.entryFee = new(big.Int).Set(entryFee)
	f.players = nil
	f.winner = nil
	return &types.Receipt{Status: types.ReceiptStatusSuccessful}, nil
}

func (f *fakeChain) JoinGame(_ context.Context, h *chain.Handle, entryFee *big.Int) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.joinValues = append(f.joinValues, new(big.Int).Set(entryFee))
	if f.writeErr != nil {
		return nil, f.writeErr
	}
	if !f.started || entryFee.Cmp(f.entryFee) != 0 || len(f.players) >= f.maxPlayers {
		return nil, errors.ContractCallFailed(chain.MethodJoinGame, nil)
	}
	f.players = append(f.players, h.Account)
	return &types.Receipt{Status: types.ReceiptStatusSuccessful}, nil
}

// endGame simulates the randomness callback picking a winner.
func (f *fakeChain) endGame(winner common.Address) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = false
	f.winner = &winner
}

func (f *fakeChain) FetchLatestGame(context.Context) (game.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.indexErr != nil {
		return game.Snapshot{}, f.indexErr
	}
	if f.gameID == 0 {
		return game.Snapshot{}, game.ErrNoGame
	}
	snap := game.Snapshot{
		ID:         strconv.Itoa(f.gameID),
		Players:    append([]common.Address(nil), f.players...),
		MaxPlayers: f.maxPlayers,
		EntryFee:   new(big.Int).Set(f.entryFee),
	}
	if f.winner != nil {
		w := *f.winner
		snap.Winner = &w
	}
	return snap, nil
}

func (f *fakeChain) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}
