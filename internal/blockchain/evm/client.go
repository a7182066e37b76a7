package evm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"

	"nftmarket/offchain/internal/units"
)

// Client relays JSON-RPC 2.0 calls to a single fixed EVM node over HTTP
type Client struct {
	rpcClient *rpc.Client
	endpoint  string
	logger    *zap.Logger
}

// NewClient creates a new client for the node at endpoint. No connection is
// made until the first call; timeout bounds each HTTP exchange.
func NewClient(ctx context.Context, endpoint string, timeout time.Duration, logger *zap.Logger) (*Client, error) {
	httpClient := &http.Client{Timeout: timeout}

	rpcClient, err := rpc.DialOptions(ctx, endpoint, rpc.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create RPC client for %s: %w", endpoint, err)
	}

	logger.Info("EVM client initialized",
		zap.String("endpoint", endpoint),
		zap.Duration("timeout", timeout))

	return &Client{
		rpcClient: rpcClient,
		endpoint:  endpoint,
		logger:    logger,
	}, nil
}

// Close closes the underlying RPC client
func (c *Client) Close() {
	c.rpcClient.Close()
}

// Endpoint returns the upstream node URL
func (c *Client) Endpoint() string {
	return c.endpoint
}

// call issues one JSON-RPC request. Every chain call goes through here so
// that errors are classified the same way.
func (c *Client) call(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	start := time.Now()
	err := c.rpcClient.CallContext(ctx, result, method, args...)

	c.logger.Debug("RPC call",
		zap.String("method", method),
		zap.Duration("duration", time.Since(start)),
		zap.Error(err))

	return classifyError(method, err)
}

// GetBalance returns the native balance of an address at the latest block,
// in the smallest unit
func (c *Client) GetBalance(ctx context.Context, address common.Address) (*big.Int, error) {
	var quantity string
	if err := c.call(ctx, &quantity, "eth_getBalance", address, "latest"); err != nil {
		return nil, err
	}

	balance, err := units.ParseQuantity(quantity)
	if err != nil {
		return nil, &TransportError{Method: "eth_getBalance", Err: err}
	}
	return balance, nil
}

// GetTransactionByHash returns the node's transaction object verbatim, or nil
// if the node does not know the hash
func (c *Client) GetTransactionByHash(ctx context.Context, hash common.Hash) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.call(ctx, &raw, "eth_getTransactionByHash", hash); err != nil {
		return nil, err
	}
	return nullToNil(raw), nil
}

// GetTransactionReceipt returns the node's receipt verbatim, or nil if the
// transaction has not been mined yet
func (c *Client) GetTransactionReceipt(ctx context.Context, hash common.Hash) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.call(ctx, &raw, "eth_getTransactionReceipt", hash); err != nil {
		return nil, err
	}
	return nullToNil(raw), nil
}

// SendRawTransaction broadcasts a pre-signed transaction and returns its hash
func (c *Client) SendRawTransaction(ctx context.Context, signedTx hexutil.Bytes) (string, error) {
	var txHash string
	if err := c.call(ctx, &txHash, "eth_sendRawTransaction", signedTx); err != nil {
		return "", err
	}
	return txHash, nil
}

// CallContract executes a read-only call against the latest block
func (c *Client) CallContract(ctx context.Context, to common.Address, data hexutil.Bytes) (hexutil.Bytes, error) {
	msg := map[string]interface{}{
		"to":   to,
		"data": data,
	}

	var result hexutil.Bytes
	if err := c.call(ctx, &result, "eth_call", msg, "latest"); err != nil {
		return nil, err
	}
	return result, nil
}

func nullToNil(raw json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	return raw
}
