package controller

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/R3E-Network/random-winner-game/internal/domain/game"
	"github.com/R3E-Network/random-winner-game/internal/errors"
)

// Phase is the connection state of the controller.
type Phase int

const (
	PhaseDisconnected Phase = iota
	PhaseConnecting
	PhaseIdle
	PhaseLoading
)

func (p Phase) String() string {
	switch p {
	case PhaseDisconnected:
		return "disconnected"
	case PhaseConnecting:
		return "connecting"
	case PhaseIdle:
		return "idle"
	case PhaseLoading:
		return "loading"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Panel is the single action surface shown for a state.
type Panel string

const (
	PanelConnectWallet  Panel = "connect_wallet"
	PanelChoosingWinner Panel = "choosing_winner"
	PanelLoading        Panel = "loading"
	PanelJoinGame       Panel = "join_game"
	PanelStartGameForm  Panel = "start_game_form"
	PanelNone           Panel = "none"
)

// Disabled reports whether the panel's control accepts no input.
func (p Panel) Disabled() bool {
	return p == PanelChoosingWinner || p == PanelLoading
}

// UiState is everything a renderer needs. Readers receive copies.
type UiState struct {
	Phase           Phase
	WalletConnected bool
	Loading         bool
	IsOwner         bool
	Account         common.Address
	ChainID         int64

	GameID      string
	GameStarted bool
	EntryFee    *big.Int
	MaxPlayers  int
	Players     []common.Address
	Winner      *common.Address
	Logs        []string

	LastRefresh   time.Time
	LastError     string
	LastErrorCode errors.ErrorCode
}

// setError records err as the last failure, or clears it when err is nil.
func (s *UiState) setError(err error) {
	if err == nil {
		s.LastError = ""
		s.LastErrorCode = ""
		return
	}
	s.LastError = err.Error()
	s.LastErrorCode = errors.CodeOf(err)
}

// Panel returns the panel for the state.
func (s UiState) Panel() Panel {
	return SelectPanel(s)
}

// Full reports whether the started game has every seat taken.
func (s UiState) Full() bool {
	return s.MaxPlayers > 0 && len(s.Players) >= s.MaxPlayers
}

// Joined reports whether the connected account is in the roster.
func (s UiState) Joined() bool {
	for _, p := range s.Players {
		if p == s.Account {
			return true
		}
	}
	return false
}

func (s UiState) clone() UiState {
	cp := s
	if s.EntryFee != nil {
		cp.EntryFee = new(big.Int).Set(s.EntryFee)
	}
	if s.Players != nil {
		cp.Players = append([]common.Address(nil), s.Players...)
	}
	if s.Winner != nil {
		w := *s.Winner
		cp.Winner = &w
	}
	if s.Logs != nil {
		cp.Logs = append([]string(nil), s.Logs...)
	}
	return cp
}

// SelectPanel picks the panel for s. A started game with a full roster is
// shown as choosing winner whatever the owner and loading flags say.
func SelectPanel(s UiState) Panel {
	switch {
	case !s.WalletConnected:
		return PanelConnectWallet
	case s.GameStarted && s.Full():
		return PanelChoosingWinner
	case s.Loading:
		return PanelLoading
	case s.GameStarted:
		return PanelJoinGame
	case s.IsOwner:
		return PanelStartGameForm
	default:
		return PanelNone
	}
}

// BuildLogs derives the log panel lines for a snapshot.
func BuildLogs(snap game.Snapshot) []string {
	switch {
	case snap.Started:
		logs := []string{fmt.Sprintf("Game %s has started", snap.ID)}
		if len(snap.Players) > 0 {
			logs = append(logs, fmt.Sprintf("%d/%d players joined", len(snap.Players), snap.MaxPlayers))
			for _, p := range snap.Players {
				logs = append(logs, fmt.Sprintf("%s joined", p.Hex()))
			}
		}
		return logs
	case snap.HasWinner():
		return []string{
			fmt.Sprintf("Last game %s has ended", snap.ID),
			fmt.Sprintf("Winner is %s", snap.Winner.Hex()),
			"Waiting for the host to start a new game",
		}
	default:
		return []string{}
	}
}
