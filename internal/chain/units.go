package chain

import (
	"math/big"
	"strings"

	sdkmath "cosmossdk.io/math"

	"github.com/R3E-Network/random-winner-game/internal/errors"
)

// Decimals of the native currency.
const Decimals = 18

// ParseUnits converts a decimal amount of whole native units ("0.01") to
// base units.
func ParseUnits(amount string) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return nil, errors.InvalidInput("entryFee", "amount required")
	}
	if i := strings.IndexByte(amount, '.'); i >= 0 && len(amount)-i-1 > Decimals {
		return nil, errors.InvalidInput("entryFee", "more than 18 decimal places")
	}
	dec, err := sdkmath.LegacyNewDecFromStr(amount)
	if err != nil {
		return nil, errors.InvalidInput("entryFee", err.Error())
	}
	if dec.IsNegative() {
		return nil, errors.InvalidInput("entryFee", "must not be negative")
	}
	wei := dec.BigInt()
	if wei.BitLen() > 256 {
		return nil, errors.InvalidInput("entryFee", "exceeds uint256")
	}
	return wei, nil
}

// FormatUnits renders base units as a decimal amount without trailing zeros.
func FormatUnits(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	s := sdkmath.LegacyNewDecFromBigIntWithPrec(new(big.Int).Set(wei), Decimals).String()
	if strings.Contains(s, ".") {
		s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	}
	return s
}
