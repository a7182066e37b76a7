package database

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"nftmarket/offchain/internal/models"
)

// ErrTransactionNotFound is returned when an update targets a hash that has
// no transaction row.
var ErrTransactionNotFound = errors.New("transaction not found")

// ==================== User Queries ====================

// UpsertUser registers a wallet address, or touches updated_at if it is
// already known. Addresses are stored lowercase.
func (db *DB) UpsertUser(ctx context.Context, walletAddress string) error {
	address := strings.ToLower(walletAddress)
	query := db.Rebind(`
		INSERT INTO users (wallet_address, created_at, updated_at)
		VALUES (?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT (wallet_address) DO UPDATE SET updated_at = CURRENT_TIMESTAMP
	`)
	if _, err := db.ExecContext(ctx, query, address); err != nil {
		return &PersistenceError{Op: "upsert user", Key: address, Err: err}
	}
	return nil
}

// GetUser retrieves a user by wallet address
func (db *DB) GetUser(ctx context.Context, walletAddress string) (*models.User, error) {
	var user models.User
	query := db.Rebind(`SELECT wallet_address, created_at, updated_at FROM users WHERE wallet_address = ?`)
	err := db.GetContext(ctx, &user, query, strings.ToLower(walletAddress))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// ==================== Transaction Queries ====================

// GetTransaction retrieves a transaction by hash
func (db *DB) GetTransaction(ctx context.Context, hash string) (*models.Transaction, error) {
	var tx models.Transaction
	query := db.Rebind(`
		SELECT transaction_hash, status, block_number, gas_fee, created_at, updated_at
		FROM transactions
		WHERE transaction_hash = ?
	`)
	err := db.GetContext(ctx, &tx, query, hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// GetPendingTransactions returns up to limit transactions still awaiting a
// receipt, oldest first
func (db *DB) GetPendingTransactions(ctx context.Context, limit int) ([]models.Transaction, error) {
	var txs []models.Transaction
	query := db.Rebind(`
		SELECT transaction_hash, status, block_number, gas_fee, created_at, updated_at
		FROM transactions
		WHERE status = ?
		ORDER BY created_at ASC
		LIMIT ?
	`)
	err := db.SelectContext(ctx, &txs, query, models.TransactionStatusPending, limit)
	return txs, err
}

// UpdateTransactionStatus records the outcome of a mined transaction. Rows
// are never created here; a missing row yields ErrTransactionNotFound.
func (db *DB) UpdateTransactionStatus(ctx context.Context, update models.TransactionUpdate) error {
	query := db.Rebind(`
		UPDATE transactions
		SET status = ?, block_number = ?, gas_fee = ?, updated_at = CURRENT_TIMESTAMP
		WHERE transaction_hash = ?
	`)
	res, err := db.ExecContext(ctx, query, update.Status, update.BlockNumber, update.GasFee, update.Hash)
	if err != nil {
		return &PersistenceError{Op: "update transaction", Key: update.Hash, Err: err}
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return &PersistenceError{Op: "update transaction", Key: update.Hash, Err: err}
	}
	if rows == 0 {
		return &PersistenceError{Op: "update transaction", Key: update.Hash, Err: ErrTransactionNotFound}
	}
	return nil
}
