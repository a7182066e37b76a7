package api

import (
	"encoding/json"

	"nftmarket/offchain/internal/models"
)

// Gateway actions
const (
	ActionGetBalance        = "getBalance"
	ActionGetTransaction    = "getTransaction"
	ActionSendTransaction   = "sendTransaction"
	ActionGetContractData   = "getContractData"
	ActionVerifyTransaction = "verifyTransaction"
	ActionGetNFTMetadata    = "getNFTMetadata"
)

// ==================== Chain Actions ====================

// ChainRequest is the body of every gateway call. Only the fields the action
// needs are read.
type ChainRequest struct {
	Action            string          `json:"action"`
	Address           string          `json:"address,omitempty"`
	Hash              string          `json:"hash,omitempty"`
	SignedTransaction string          `json:"signedTransaction,omitempty"`
	ContractAddress   string          `json:"contractAddress,omitempty"`
	Method            string          `json:"method,omitempty"`
	Params            json.RawMessage `json:"params,omitempty"` // accepted, not forwarded
	TokenURI          string          `json:"tokenURI,omitempty"`
}

// BalanceResponse is returned by getBalance
type BalanceResponse struct {
	Balance string `json:"balance"`
}

// TransactionResponse is returned by getTransaction. Both fields are the
// node's objects verbatim and may be null.
type TransactionResponse struct {
	Transaction json.RawMessage `json:"transaction"`
	Receipt     json.RawMessage `json:"receipt"`
}

// SendTransactionResponse is returned by sendTransaction
type SendTransactionResponse struct {
	TransactionHash string `json:"transactionHash"`
}

// ContractDataResponse is returned by getContractData
type ContractDataResponse struct {
	Data string `json:"data"`
}

// VerifyTransactionResponse is returned by verifyTransaction. Receipt is
// omitted while the transaction is pending.
type VerifyTransactionResponse struct {
	Verified bool                     `json:"verified"`
	Status   models.TransactionStatus `json:"status"`
	Receipt  json.RawMessage          `json:"receipt,omitempty"`
}

// MetadataResponse is returned by getNFTMetadata
type MetadataResponse struct {
	Metadata json.RawMessage `json:"metadata"`
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// ==================== Users ====================

// UpsertUserRequest registers a connected wallet
type UpsertUserRequest struct {
	WalletAddress string `json:"walletAddress"`
}

// ==================== Health Check ====================

// HealthResponse represents health check response
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version,omitempty"`
	Database string `json:"database,omitempty"`
}
