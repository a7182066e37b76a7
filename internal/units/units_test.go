package units

import (
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQuantity(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "one ether upper case", input: "0xDE0B6B3A7640000", want: "1000000000000000000"},
		{name: "lower case", input: "0xde0b6b3a7640000", want: "1000000000000000000"},
		{name: "leading zeros", input: "0x01", want: "1"},
		{name: "zero", input: "0x0", want: "0"},
		{name: "bare prefix", input: "0x", want: "0"},
		{name: "empty", input: "", want: "0"},
		{name: "not hex", input: "0xzz", wantErr: true},
		{name: "max word", input: "0x" + strings.Repeat("f", 64), want: "115792089237316195423570985008687907853269984665640564039457584007913129639935"},
		{name: "wider than a word", input: "0x1" + strings.Repeat("0", 64), wantErr: true},
		{name: "far too wide", input: "0x" + strings.Repeat("f", 80), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseQuantity(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestFormatFixed(t *testing.T) {
	oneEther, _ := new(big.Int).SetString("1000000000000000000", 10)
	half, _ := new(big.Int).SetString("500000000000000000", 10)
	dust := big.NewInt(1)
	tiny, _ := new(big.Int).SetString("1234567000000", 10) // 0.000001234567

	assert.Equal(t, "1.000000", FormatFixed(oneEther, BalancePrecision))
	assert.Equal(t, "0.500000", FormatFixed(half, BalancePrecision))
	assert.Equal(t, "0.000000", FormatFixed(dust, BalancePrecision))
	assert.Equal(t, "0.000001", FormatFixed(tiny, BalancePrecision))
	assert.Equal(t, "0.000000", FormatFixed(new(big.Int), BalancePrecision))
	assert.Equal(t, "1", FormatFixed(oneEther, 0))
	assert.Equal(t, "1", FormatFixed(half, 0))
	assert.Equal(t, "0.000002", FormatFixed(big.NewInt(1500000000000), BalancePrecision))
	assert.Equal(t, "1.000000000000000000000", FormatFixed(oneEther, 21))
}

func TestFormatFixed_MaxWord(t *testing.T) {
	maxWord := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	assert.Equal(t,
		"115792089237316195423570985008687907853269984665640564039457.584008",
		FormatFixed(maxWord, BalancePrecision))
}

func TestFormatFixed_HexBalance(t *testing.T) {
	wei, err := ParseQuantity("0xDE0B6B3A7640000")
	require.NoError(t, err)
	assert.Equal(t, "1.000000", FormatFixed(wei, BalancePrecision))
}

func TestFormatCompact(t *testing.T) {
	oneEther, _ := new(big.Int).SetString("1000000000000000000", 10)
	half, _ := new(big.Int).SetString("500000000000000000", 10)
	odd, _ := new(big.Int).SetString("1234500000000000000", 10)

	assert.Equal(t, "1", FormatCompact(oneEther))
	assert.Equal(t, "0.5", FormatCompact(half))
	assert.Equal(t, "1.2345", FormatCompact(odd))
	assert.Equal(t, "0", FormatCompact(new(big.Int)))
	assert.Equal(t, "0.000000000000000001", FormatCompact(big.NewInt(1)))
}

func TestGasFee(t *testing.T) {
	// 21000 gas at 1 gwei = 0.000021 native
	fee := GasFee(big.NewInt(21000), big.NewInt(1_000_000_000))
	assert.Equal(t, "0.000021000000000000", fee.String())

	assert.True(t, GasFee(big.NewInt(21000), nil).IsZero())
	assert.True(t, GasFee(nil, big.NewInt(1)).IsZero())
}
