// Package units converts JSON-RPC hex quantities expressed in the chain's
// smallest unit into human readable native-currency decimals.
package units

import (
	"fmt"
	"math/big"
	"strings"

	"cosmossdk.io/math"
)

// NativeDecimals is the fixed scale of the native currency (wei-equivalent).
const NativeDecimals = 18

// BalancePrecision is the number of fraction digits shown for wallet balances.
const BalancePrecision = 6

// MaxQuantityBits is the width of an EVM word; no valid quantity is wider.
const MaxQuantityBits = 256

// ParseQuantity parses a hex quantity such as "0xde0b6b3a7640000".
// Upper-case digits and leading zeros are accepted; an empty quantity or a
// bare "0x" is zero.
func ParseQuantity(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	digits := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if digits == "" {
		return new(big.Int), nil
	}

	v, ok := new(big.Int).SetString(digits, 16)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("invalid hex quantity %q", s)
	}
	if v.BitLen() > MaxQuantityBits {
		return nil, fmt.Errorf("hex quantity %q exceeds %d bits", s, MaxQuantityBits)
	}
	return v, nil
}

// FromWei returns the exact native-currency value of an amount in the
// smallest unit.
func FromWei(wei *big.Int) math.LegacyDec {
	if wei == nil {
		return math.LegacyZeroDec()
	}
	return math.LegacyNewDecFromBigIntWithPrec(wei, NativeDecimals)
}

// FormatFixed renders wei with exactly precision fraction digits, rounding
// half up.
func FormatFixed(wei *big.Int, precision int) string {
	if wei == nil {
		wei = new(big.Int)
	}
	if precision < 0 {
		precision = 0
	}

	scaled := new(big.Int).Set(wei)
	if shift := NativeDecimals - precision; shift > 0 {
		divisor := pow10(shift)
		q, r := new(big.Int).QuoRem(scaled, divisor, new(big.Int))
		if r.Lsh(r, 1).Cmp(divisor) >= 0 {
			q.Add(q, big.NewInt(1))
		}
		scaled = q
	} else if shift < 0 {
		scaled.Mul(scaled, pow10(-shift))
	}

	if precision == 0 {
		return scaled.String()
	}

	whole, frac := new(big.Int).QuoRem(scaled, pow10(precision), new(big.Int))
	fracDigits := frac.String()
	if pad := precision - len(fracDigits); pad > 0 {
		fracDigits = strings.Repeat("0", pad) + fracDigits
	}
	return whole.String() + "." + fracDigits
}

// FormatCompact renders wei as the shortest exact decimal ("1", "0.5").
func FormatCompact(wei *big.Int) string {
	return trimDecimal(FromWei(wei).String())
}

// GasFee computes gasUsed * effectiveGasPrice scaled by 10^18. The scale is
// fixed regardless of the chain's configured decimals.
func GasFee(gasUsed, effectiveGasPrice *big.Int) math.LegacyDec {
	if gasUsed == nil || effectiveGasPrice == nil {
		return math.LegacyZeroDec()
	}
	return FromWei(new(big.Int).Mul(gasUsed, effectiveGasPrice))
}

func trimDecimal(s string) string {
	if !strings.Contains(s, ".") {
		return s
	}
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

func pow10(n int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}
