package chain

import (
	"context"
	_ "embed"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/R3E-Network/random-winner-game/internal/errors"
	"github.com/R3E-Network/random-winner-game/internal/logging"
	"github.com/R3E-Network/random-winner-game/internal/metrics"
)

//go:embed abi/RandomWinnerGame.json
var randomWinnerGameABI string

// Contract method names.
const (
	MethodOwner       = "owner"
	MethodGameStarted = "gameStarted"
	MethodStartGame   = "startGame"
	MethodJoinGame    = "joinGame"
)

// Game is the typed surface of the RandomWinnerGame contract. Writes block
// until the transaction is mined.
type Game interface {
	Owner(ctx context.Context, h *Handle) (common.Address, error)
	GameStarted(ctx context.Context, h *Handle) (bool, error)
	StartGame(ctx context.Context, h *Handle, maxPlayers uint8, entryFee *big.Int) (*types.Receipt, error)
	JoinGame(ctx context.Context, h *Handle, entryFee *big.Int) (*types.Receipt, error)
}

// Contract binds Game to a deployed address.
type Contract struct {
	address common.Address
	abi     abi.ABI
	log     *logging.Logger
}

var _ Game = (*Contract)(nil)

// NewContract parses the embedded ABI and binds it to address.
func NewContract(address common.Address, log *logging.Logger) (*Contract, error) {
	parsed, err := abi.JSON(strings.NewReader(randomWinnerGameABI))
	if err != nil {
		return nil, fmt.Errorf("parse RandomWinnerGame ABI: %w", err)
	}
	if log == nil {
		log = logging.NewDiscard("contract")
	}
	return &Contract{address: address, abi: parsed, log: log}, nil
}

// Address returns the bound contract address.
func (c *Contract) Address() common.Address {
	return c.address
}

func (c *Contract) bound(h *Handle) *bind.BoundContract {
	return bind.NewBoundContract(c.address, c.abi, h.Backend, h.Backend, h.Backend)
}

// Owner reads owner().
func (c *Contract) Owner(ctx context.Context, h *Handle) (common.Address, error) {
	var out []interface{}
	if err := c.bound(h).Call(h.callOpts(ctx), &out, MethodOwner); err != nil {
		return common.Address{}, errors.ContractCallFailed(MethodOwner, err)
	}
	return *abi.ConvertType(out[0], new(common.Address)).(*common.Address), nil
}

// GameStarted reads gameStarted().
func (c *Contract) GameStarted(ctx context.Context, h *Handle) (bool, error) {
	var out []interface{}
	if err := c.bound(h).Call(h.callOpts(ctx), &out, MethodGameStarted); err != nil {
		return false, errors.ContractCallFailed(MethodGameStarted, err)
	}
	return *abi.ConvertType(out[0], new(bool)).(*bool), nil
}

// StartGame submits startGame(maxPlayers, entryFee) and waits for it.
func (c *Contract) StartGame(ctx context.Context, h *Handle, maxPlayers uint8, entryFee *big.Int) (*types.Receipt, error) {
	if maxPlayers == 0 {
		return nil, errors.InvalidInput("maxPlayers", "must be at least 1")
	}
	if entryFee == nil || entryFee.Sign() < 0 {
		return nil, errors.InvalidInput("entryFee", "must not be negative")
	}
	return c.transact(ctx, h, MethodStartGame, nil, maxPlayers, new(big.Int).Set(entryFee))
}

// JoinGame submits joinGame() paying entryFee and waits for it.
func (c *Contract) JoinGame(ctx context.Context, h *Handle, entryFee *big.Int) (*types.Receipt, error) {
	if entryFee == nil || entryFee.Sign() < 0 {
		return nil, errors.InvalidInput("entryFee", "must not be negative")
	}
	return c.transact(ctx, h, MethodJoinGame, new(big.Int).Set(entryFee))
}

func (c *Contract) transact(ctx context.Context, h *Handle, method string, value *big.Int, args ...interface{}) (receipt *types.Receipt, err error) {
	defer func() { metrics.RecordContractWrite(method, err == nil) }()

	opts, err := h.transactOpts(ctx, value)
	if err != nil {
		return nil, errors.ContractCallFailed(method, err)
	}
	tx, err := c.bound(h).Transact(opts, method, args...)
	if err != nil {
		return nil, errors.ContractCallFailed(method, err)
	}

	entry := c.log.WithFields(map[string]interface{}{
		"method":  method,
		"tx_hash": tx.Hash().Hex(),
	})
	entry.Info("transaction submitted")

	receipt, err = bind.WaitMined(ctx, h.Backend, tx)
	if err != nil {
		return nil, errors.ContractCallFailed(method, err).WithDetails("tx_hash", tx.Hash().Hex())
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, errors.ContractCallFailed(method, fmt.Errorf("transaction %s reverted", tx.Hash().Hex())).
			WithDetails("tx_hash", tx.Hash().Hex())
	}
	entry.WithField("block", receipt.BlockNumber).Info("transaction mined")
	return receipt, nil
}
