package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"nftmarket/offchain/internal/blockchain/evm"
	"nftmarket/offchain/internal/database"
	"nftmarket/offchain/internal/models"
	"nftmarket/offchain/internal/units"
)

// persistTimeout bounds best-effort writes that run detached from the request
const persistTimeout = 10 * time.Second

// ChainReader is the subset of the EVM client used by ChainService
type ChainReader interface {
	GetBalance(ctx context.Context, address common.Address) (*big.Int, error)
	GetTransactionByHash(ctx context.Context, hash common.Hash) (json.RawMessage, error)
	GetTransactionReceipt(ctx context.Context, hash common.Hash) (json.RawMessage, error)
	SendRawTransaction(ctx context.Context, signedTx hexutil.Bytes) (string, error)
	CallContract(ctx context.Context, to common.Address, data hexutil.Bytes) (hexutil.Bytes, error)
}

// TransactionStore persists verification outcomes
type TransactionStore interface {
	UpdateTransactionStatus(ctx context.Context, update models.TransactionUpdate) error
}

// ValidationError marks a request parameter problem (reported as 400)
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

// TransactionDetails is the result of GetTransaction
type TransactionDetails struct {
	Transaction json.RawMessage
	Receipt     json.RawMessage
}

// Verification is the result of VerifyTransaction
type Verification struct {
	Verified bool
	Status   models.TransactionStatus
	Receipt  json.RawMessage
}

// ChainService implements the gateway actions on top of the upstream node
type ChainService struct {
	chain    ChainReader
	store    TransactionStore
	metadata *MetadataService
	logger   *zap.Logger
}

// NewChainService creates a new chain service
func NewChainService(chain ChainReader, store TransactionStore, metadata *MetadataService, logger *zap.Logger) *ChainService {
	return &ChainService{
		chain:    chain,
		store:    store,
		metadata: metadata,
		logger:   logger,
	}
}

// GetBalance returns the native balance of address as a compact decimal
func (s *ChainService) GetBalance(ctx context.Context, address string) (string, error) {
	addr, err := parseAddress("address", address)
	if err != nil {
		return "", err
	}

	wei, err := s.chain.GetBalance(ctx, addr)
	if err != nil {
		return "", err
	}
	return units.FormatCompact(wei), nil
}

// GetTransaction returns the transaction and its receipt (either may be nil).
// Both lookups run concurrently.
func (s *ChainService) GetTransaction(ctx context.Context, hash string) (*TransactionDetails, error) {
	txHash, err := parseHash(hash)
	if err != nil {
		return nil, err
	}

	var details TransactionDetails
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		tx, err := s.chain.GetTransactionByHash(gctx, txHash)
		details.Transaction = tx
		return err
	})
	g.Go(func() error {
		receipt, err := s.chain.GetTransactionReceipt(gctx, txHash)
		details.Receipt = receipt
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &details, nil
}

// SendTransaction broadcasts a pre-signed transaction blob
func (s *ChainService) SendTransaction(ctx context.Context, signedTransaction string) (string, error) {
	if signedTransaction == "" {
		return "", &ValidationError{Field: "signedTransaction", Message: "is required"}
	}
	blob, err := hexutil.Decode(signedTransaction)
	if err != nil {
		return "", &ValidationError{Field: "signedTransaction", Message: "must be 0x-prefixed hex"}
	}

	txHash, err := s.chain.SendRawTransaction(ctx, blob)
	if err != nil {
		return "", err
	}

	s.logger.Info("Transaction relayed", zap.String("tx_hash", txHash))
	return txHash, nil
}

// GetContractData performs a read-only call. method is the already encoded
// call data; no ABI encoding happens here.
func (s *ChainService) GetContractData(ctx context.Context, contractAddress, method string) (string, error) {
	to, err := parseAddress("contractAddress", contractAddress)
	if err != nil {
		return "", err
	}
	if method == "" {
		return "", &ValidationError{Field: "method", Message: "is required"}
	}
	data, err := hexutil.Decode(method)
	if err != nil {
		return "", &ValidationError{Field: "method", Message: "must be 0x-prefixed hex call data"}
	}

	out, err := s.chain.CallContract(ctx, to, data)
	if err != nil {
		return "", err
	}
	return out.String(), nil
}

// VerifyTransaction checks whether a transaction has been mined and records
// the outcome. A pending transaction causes no write. The store update is
// best-effort: failures are logged and never returned.
func (s *ChainService) VerifyTransaction(ctx context.Context, hash string) (*Verification, error) {
	txHash, err := parseHash(hash)
	if err != nil {
		return nil, err
	}

	raw, err := s.chain.GetTransactionReceipt(ctx, txHash)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return &Verification{Verified: false, Status: models.TransactionStatusPending}, nil
	}

	receipt, err := evm.DecodeReceipt(raw)
	if err != nil {
		return nil, err
	}

	status := models.TransactionStatusFailed
	if receipt.Succeeded() {
		status = models.TransactionStatusConfirmed
	}

	s.recordOutcome(hash, status, receipt)

	return &Verification{
		Verified: true,
		Status:   status,
		Receipt:  raw,
	}, nil
}

// GetNFTMetadata resolves a token URI to its JSON metadata
func (s *ChainService) GetNFTMetadata(ctx context.Context, tokenURI string) (json.RawMessage, error) {
	if tokenURI == "" {
		return nil, &ValidationError{Field: "tokenURI", Message: "is required"}
	}
	return s.metadata.Resolve(ctx, tokenURI)
}

// recordOutcome writes the verification result on a detached context so the
// write completes even if the caller stops waiting.
func (s *ChainService) recordOutcome(hash string, status models.TransactionStatus, receipt *evm.Receipt) {
	if s.store == nil {
		return
	}

	logger := s.logger.With(zap.String("tx_hash", hash))

	block, err := receipt.Block()
	if err != nil {
		logger.Error("Failed to read receipt block number", zap.Error(err))
		return
	}
	fee, err := receipt.GasFee()
	if err != nil {
		logger.Error("Failed to compute gas fee", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	err = s.store.UpdateTransactionStatus(ctx, models.TransactionUpdate{
		Hash:        hash,
		Status:      status,
		BlockNumber: block,
		GasFee:      fee.String(),
	})
	switch {
	case errors.Is(err, database.ErrTransactionNotFound):
		logger.Warn("No transaction record to update")
	case err != nil:
		logger.Error("Failed to update transaction", zap.Error(err))
	default:
		logger.Info("Transaction verified",
			zap.String("status", string(status)),
			zap.Int64("block_number", block),
			zap.String("gas_fee", fee.String()))
	}
}

func parseAddress(field, s string) (common.Address, error) {
	if s == "" {
		return common.Address{}, &ValidationError{Field: field, Message: "is required"}
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, &ValidationError{Field: field, Message: "must be a hex address"}
	}
	return common.HexToAddress(s), nil
}

func parseHash(s string) (common.Hash, error) {
	if s == "" {
		return common.Hash{}, &ValidationError{Field: "hash", Message: "is required"}
	}
	b, err := hexutil.Decode(s)
	if err != nil || len(b) != common.HashLength {
		return common.Hash{}, &ValidationError{Field: "hash", Message: "must be a 32-byte hex hash"}
	}
	return common.BytesToHash(b), nil
}

// NormalizeAddress returns the lowercase form of a valid hex address
func NormalizeAddress(s string) (string, error) {
	addr, err := parseAddress("address", s)
	if err != nil {
		return "", err
	}
	return strings.ToLower(addr.Hex()), nil
}
