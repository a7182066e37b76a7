package models

import "time"

// TransactionStatus represents the on-chain outcome of a tracked transaction
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusConfirmed TransactionStatus = "confirmed"
	TransactionStatusFailed    TransactionStatus = "failed"
)

// User represents a wallet that has connected to the storefront
type User struct {
	WalletAddress string    `db:"wallet_address" json:"walletAddress"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time `db:"updated_at" json:"updatedAt"`
}

// Transaction represents a marketplace transaction tracked by hash
type Transaction struct {
	TransactionHash string            `db:"transaction_hash" json:"transactionHash"`
	Status          TransactionStatus `db:"status" json:"status"`
	BlockNumber     *int64            `db:"block_number" json:"blockNumber"`
	GasFee          *string           `db:"gas_fee" json:"gasFee"` // native currency, 18 decimals
	CreatedAt       time.Time         `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time         `db:"updated_at" json:"updatedAt"`
}

// TransactionUpdate holds the fields written when a receipt is observed
type TransactionUpdate struct {
	Hash        string
	Status      TransactionStatus
	BlockNumber int64
	GasFee      string
}
