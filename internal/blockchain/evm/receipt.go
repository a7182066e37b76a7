package evm

import (
	"encoding/json"
	"fmt"

	"cosmossdk.io/math"

	"nftmarket/offchain/internal/units"
)

// ReceiptStatusSuccess is the receipt status value of a successful transaction
const ReceiptStatusSuccess = "0x1"

// Receipt holds the receipt fields the gateway interprets. Everything else
// is relayed to the caller untouched.
type Receipt struct {
	Status            string `json:"status"`
	BlockNumber       string `json:"blockNumber"`
	GasUsed           string `json:"gasUsed"`
	EffectiveGasPrice string `json:"effectiveGasPrice"`
}

// DecodeReceipt extracts the interpreted fields from a raw receipt
func DecodeReceipt(raw json.RawMessage) (*Receipt, error) {
	var r Receipt
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("failed to decode receipt: %w", err)
	}
	return &r, nil
}

// Succeeded reports whether the receipt status is exactly 0x1. Any other
// value, including a missing status, counts as failure.
func (r *Receipt) Succeeded() bool {
	return r.Status == ReceiptStatusSuccess
}

// Block returns the block number the transaction was included in
func (r *Receipt) Block() (int64, error) {
	n, err := units.ParseQuantity(r.BlockNumber)
	if err != nil {
		return 0, fmt.Errorf("invalid blockNumber: %w", err)
	}
	if !n.IsInt64() {
		return 0, fmt.Errorf("blockNumber out of range: %s", n.String())
	}
	return n.Int64(), nil
}

// GasFee returns gasUsed * effectiveGasPrice in native currency. A missing
// effectiveGasPrice counts as zero.
func (r *Receipt) GasFee() (math.LegacyDec, error) {
	gasUsed, err := units.ParseQuantity(r.GasUsed)
	if err != nil {
		return math.LegacyDec{}, fmt.Errorf("invalid gasUsed: %w", err)
	}
	price, err := units.ParseQuantity(r.EffectiveGasPrice)
	if err != nil {
		return math.LegacyDec{}, fmt.Errorf("invalid effectiveGasPrice: %w", err)
	}
	return units.GasFee(gasUsed, price), nil
}
