// Package game defines the snapshot of the latest random winner game.
package game

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ErrNoGame is returned when the indexer has no game record yet.
var ErrNoGame = errors.New("no game has been created yet")

// Snapshot is the latest game as seen on one poll tick. It is produced
// fresh every tick and never persisted.
type Snapshot struct {
	ID         string           `json:"id"`
	Players    []common.Address `json:"players"`
	MaxPlayers int              `json:"max_players"`
	EntryFee   *big.Int         `json:"entry_fee"`
	Started    bool             `json:"started"`
	Winner     *common.Address  `json:"winner,omitempty"`
}

// HasWinner reports whether the game recorded a winner.
func (s Snapshot) HasWinner() bool {
	return s.Winner != nil
}

// Full reports whether every seat is taken.
func (s Snapshot) Full() bool {
	return s.MaxPlayers > 0 && len(s.Players) >= s.MaxPlayers
}

// Joined reports whether addr is already in the roster.
func (s Snapshot) Joined(addr common.Address) bool {
	for _, p := range s.Players {
		if p == addr {
			return true
		}
	}
	return false
}

// Clone returns a deep copy.
func (s Snapshot) Clone() Snapshot {
	cp := s
	if s.Players != nil {
		cp.Players = append([]common.Address(nil), s.Players...)
	}
	if s.EntryFee != nil {
		cp.EntryFee = new(big.Int).Set(s.EntryFee)
	}
	if s.Winner != nil {
		w := *s.Winner
		cp.Winner = &w
	}
	return cp
}
