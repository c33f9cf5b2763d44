package httpapi

import (
	"time"

	"github.com/R3E-Network/random-winner-game/internal/chain"
	"github.com/R3E-Network/random-winner-game/internal/controller"
)

// StateView is the wire form of controller.UiState.
type StateView struct {
	Phase           string           `json:"phase"`
	Panel           controller.Panel `json:"panel"`
	Disabled        bool             `json:"disabled"`
	WalletConnected bool             `json:"wallet_connected"`
	Loading         bool             `json:"loading"`
	IsOwner         bool             `json:"is_owner"`
	Account         string           `json:"account,omitempty"`
	ChainID         int64            `json:"chain_id,omitempty"`
	GameID          string           `json:"game_id,omitempty"`
	GameStarted     bool             `json:"game_started"`
	EntryFee        string           `json:"entry_fee,omitempty"`
	EntryFeeDisplay string           `json:"entry_fee_display,omitempty"`
	Currency        string           `json:"currency,omitempty"`
	MaxPlayers      int              `json:"max_players"`
	Players         []string         `json:"players"`
	Winner          string           `json:"winner,omitempty"`
	Logs            []string         `json:"logs"`
	LastRefresh     *time.Time       `json:"last_refresh,omitempty"`
	LastError       string           `json:"last_error,omitempty"`
	LastErrorCode   string           `json:"last_error_code,omitempty"`
}

// NewStateView renders s. Amounts are given both in base units and in whole
// currency units.
func NewStateView(s controller.UiState, currency string) StateView {
	panel := s.Panel()
	v := StateView{
		Phase:           s.Phase.String(),
		Panel:           panel,
		Disabled:        panel.Disabled(),
		WalletConnected: s.WalletConnected,
		Loading:         s.Loading,
		IsOwner:         s.IsOwner,
		ChainID:         s.ChainID,
		GameID:          s.GameID,
		GameStarted:     s.GameStarted,
		MaxPlayers:      s.MaxPlayers,
		Players:         make([]string, 0, len(s.Players)),
		Logs:            s.Logs,
		LastError:       s.LastError,
		LastErrorCode:   string(s.LastErrorCode),
	}
	if v.Logs == nil {
		v.Logs = []string{}
	}
	if s.WalletConnected {
		v.Account = s.Account.Hex()
	}
	if s.EntryFee != nil {
		v.EntryFee = s.EntryFee.String()
		v.EntryFeeDisplay = chain.FormatUnits(s.EntryFee)
		v.Currency = currency
	}
	for _, p := range s.Players {
		v.Players = append(v.Players, p.Hex())
	}
	if s.Winner != nil {
		v.Winner = s.Winner.Hex()
	}
	if !s.LastRefresh.IsZero() {
		t := s.LastRefresh.UTC()
		v.LastRefresh = &t
	}
	return v
}
