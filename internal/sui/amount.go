package sui

import (
	"fmt"
	"math"
	"math/big"
	"regexp"
	"strconv"
	"strings"

	xerrors "PasskeyWallet/internal/errors"
)

// Decimals is the number of fractional digits of one SUI.
const Decimals = 9

// MistPerSUI is the scale factor between SUI and its minimal unit (MIST).
var MistPerSUI = big.NewInt(1_000_000_000)

var (
	amountPattern = regexp.MustCompile(`^\+?(\d+\.?\d*|\.\d+)([eE]([+-]?\d+))?$`)
	maxU64        = new(big.Int).SetUint64(math.MaxUint64)
)

// maxExponent bounds scientific notation so parsing cannot allocate
// arbitrarily large numbers.
const maxExponent = 30

// ParseAmount converts a decimal SUI amount into MIST, flooring any digits
// beyond the ninth decimal place. The amount must be a finite number strictly
// greater than zero that still amounts to at least one MIST.
func ParseAmount(raw string) (*big.Int, error) {
	text := strings.TrimSpace(raw)
	m := amountPattern.FindStringSubmatch(text)
	if m == nil {
		return nil, invalidAmount(raw, "must be a positive number")
	}
	if m[3] != "" {
		exp, err := strconv.Atoi(m[3])
		if err != nil || exp > maxExponent || exp < -maxExponent {
			return nil, invalidAmount(raw, "exponent out of range")
		}
	}

	value, ok := new(big.Rat).SetString(strings.TrimPrefix(text, "+"))
	if !ok {
		return nil, invalidAmount(raw, "must be a positive number")
	}
	if value.Sign() <= 0 {
		return nil, invalidAmount(raw, "must be greater than zero")
	}

	scaled := new(big.Rat).Mul(value, new(big.Rat).SetInt(MistPerSUI))
	mist := new(big.Int).Quo(scaled.Num(), scaled.Denom())
	if mist.Sign() == 0 {
		return nil, invalidAmount(raw, "is smaller than 1 MIST (0.000000001 SUI)")
	}
	if mist.Cmp(maxU64) > 0 {
		return nil, invalidAmount(raw, "exceeds the largest transferable amount")
	}
	return mist, nil
}

func invalidAmount(raw, reason string) error {
	return xerrors.New(xerrors.CodeValidation,
		fmt.Sprintf("invalid amount %q: %s", raw, reason),
		xerrors.WithMetadata("amount", raw))
}

// MistToSUI returns the exact SUI value of a MIST amount.
func MistToSUI(mist *big.Int) *big.Rat {
	if mist == nil {
		return new(big.Rat)
	}
	return new(big.Rat).SetFrac(mist, MistPerSUI)
}

// FormatBalance renders MIST as SUI rounded to four decimal places.
func FormatBalance(mist *big.Int) string {
	return MistToSUI(mist).FloatString(4)
}

// FormatAmount renders MIST as SUI with trailing zeros removed.
func FormatAmount(mist *big.Int) string {
	s := MistToSUI(mist).FloatString(Decimals)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
