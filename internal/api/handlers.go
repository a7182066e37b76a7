package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"nftmarket/offchain/internal/blockchain/evm"
	"nftmarket/offchain/internal/models"
	"nftmarket/offchain/internal/service"
)

const (
	version = "1.0.0"

	msgInvalidAction    = "Invalid action"
	msgInvalidBody      = "Invalid request body"
	msgBodyTooLarge     = "Request body too large"
	msgChainUnreachable = "Failed to reach chain node"

	// maxRequestBodySize caps JSON request bodies
	maxRequestBodySize = 1 << 20
)

// Store is the persistence the handlers read and write directly
type Store interface {
	UpsertUser(ctx context.Context, walletAddress string) error
	GetUser(ctx context.Context, walletAddress string) (*models.User, error)
	GetTransaction(ctx context.Context, hash string) (*models.Transaction, error)
	Ping() error
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	store        Store
	chainService *service.ChainService
	metrics      *Metrics
	logger       *zap.Logger
}

// NewHandler creates a new API handler. store may be nil, in which case the
// user and transaction routes report 503.
func NewHandler(
	store Store,
	chainService *service.ChainService,
	metrics *Metrics,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		store:        store,
		chainService: chainService,
		metrics:      metrics,
		logger:       logger,
	}
}

// ==================== Health Check ====================

// HandleHealth returns service health status
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:  "ok",
		Version: version,
	}
	if h.store != nil {
		response.Database = "ok"
		if err := h.store.Ping(); err != nil {
			h.logger.Warn("Database ping failed", zap.Error(err))
			response.Status = "degraded"
			response.Database = "unreachable"
		}
	}
	respondJSON(w, http.StatusOK, response)
}

// ==================== Chain Actions ====================

// HandleChain handles POST /api/v1/chain (and POST /).
// Dispatches on the action field of the request body.
func (h *Handler) HandleChain(w http.ResponseWriter, r *http.Request) {
	var req ChainRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.logger.Debug("Failed to decode request", zap.Error(err))
		respondDecodeError(w, err)
		return
	}

	ctx := r.Context()
	logger := h.logger.With(
		zap.String("request_id", RequestID(ctx)),
		zap.String("action", req.Action))

	var (
		response interface{}
		err      error
	)

	switch req.Action {
	case ActionGetBalance:
		var balance string
		balance, err = h.chainService.GetBalance(ctx, req.Address)
		response = BalanceResponse{Balance: balance}

	case ActionGetTransaction:
		var details *service.TransactionDetails
		details, err = h.chainService.GetTransaction(ctx, req.Hash)
		if err == nil {
			response = TransactionResponse{Transaction: details.Transaction, Receipt: details.Receipt}
		}

	case ActionSendTransaction:
		var txHash string
		txHash, err = h.chainService.SendTransaction(ctx, req.SignedTransaction)
		response = SendTransactionResponse{TransactionHash: txHash}

	case ActionGetContractData:
		var data string
		data, err = h.chainService.GetContractData(ctx, req.ContractAddress, req.Method)
		response = ContractDataResponse{Data: data}

	case ActionVerifyTransaction:
		var result *service.Verification
		result, err = h.chainService.VerifyTransaction(ctx, req.Hash)
		if err == nil {
			response = VerifyTransactionResponse{
				Verified: result.Verified,
				Status:   result.Status,
				Receipt:  result.Receipt,
			}
		}

	case ActionGetNFTMetadata:
		var metadata json.RawMessage
		metadata, err = h.chainService.GetNFTMetadata(ctx, req.TokenURI)
		response = MetadataResponse{Metadata: metadata}

	default:
		h.metrics.observeAction("invalid", "rejected")
		respondError(w, http.StatusBadRequest, msgInvalidAction)
		return
	}

	if err != nil {
		h.respondActionError(w, logger, req.Action, err)
		return
	}

	h.metrics.observeAction(req.Action, "ok")
	respondJSON(w, http.StatusOK, response)
}

// respondActionError maps a service error to a status code and message
func (h *Handler) respondActionError(w http.ResponseWriter, logger *zap.Logger, action string, err error) {
	var (
		validationErr *service.ValidationError
		rpcErr        *evm.ChainRPCError
		transportErr  *evm.TransportError
	)

	switch {
	case errors.As(err, &validationErr):
		h.metrics.observeAction(action, "rejected")
		respondError(w, http.StatusBadRequest, validationErr.Error())

	case errors.As(err, &rpcErr):
		logger.Warn("Chain node returned an error",
			zap.String("method", rpcErr.Method),
			zap.Int("code", rpcErr.Code),
			zap.String("message", rpcErr.Message))
		h.metrics.observeAction(action, "rpc_error")
		respondError(w, http.StatusInternalServerError, rpcErr.Message)

	case errors.As(err, &transportErr):
		logger.Error("Chain node unreachable", zap.Error(err))
		h.metrics.observeAction(action, "transport_error")
		respondError(w, http.StatusInternalServerError, msgChainUnreachable)

	default:
		logger.Error("Action failed", zap.Error(err))
		h.metrics.observeAction(action, "error")
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}

// ==================== Users ====================

// HandleUpsertUser handles POST /api/v1/users
// Records a connected wallet; repeated calls only touch updated_at
func (h *Handler) HandleUpsertUser(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		respondError(w, http.StatusServiceUnavailable, "Persistence is not configured")
		return
	}

	var req UpsertUserRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondDecodeError(w, err)
		return
	}

	address, err := service.NormalizeAddress(req.WalletAddress)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	if err := h.store.UpsertUser(ctx, address); err != nil {
		h.logger.Error("Failed to upsert user", zap.String("wallet_address", address), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to save user")
		return
	}

	user, err := h.store.GetUser(ctx, address)
	if err != nil || user == nil {
		h.logger.Error("Failed to read back user", zap.String("wallet_address", address), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to load user")
		return
	}

	respondJSON(w, http.StatusOK, user)
}

// ==================== Transactions ====================

// HandleGetTransactionRecord handles GET /api/v1/transactions/{hash}
func (h *Handler) HandleGetTransactionRecord(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		respondError(w, http.StatusServiceUnavailable, "Persistence is not configured")
		return
	}

	hash := mux.Vars(r)["hash"]

	tx, err := h.store.GetTransaction(r.Context(), hash)
	if err != nil {
		h.logger.Error("Failed to get transaction", zap.String("tx_hash", hash), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to load transaction")
		return
	}
	if tx == nil {
		respondError(w, http.StatusNotFound, "Transaction not found")
		return
	}

	respondJSON(w, http.StatusOK, tx)
}

// ==================== Helper Functions ====================

// respondJSON sends a JSON response
// decodeBody decodes a JSON request body of at most maxRequestBodySize bytes
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	return json.NewDecoder(r.Body).Decode(v)
}

func respondDecodeError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		respondError(w, http.StatusRequestEntityTooLarge, msgBodyTooLarge)
		return
	}
	respondError(w, http.StatusBadRequest, msgInvalidBody)
}

func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}
