package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"nftmarket/offchain/internal/blockchain/evm"
	"nftmarket/offchain/internal/blockchain/evm/evmtest"
	"nftmarket/offchain/internal/database"
	"nftmarket/offchain/internal/models"
)

const (
	testHash    = "0x5c504ed432cb51138bcf09aa5e8a410dd4a1e204ef84bfed1be16dfba1b22060"
	testAddress = "0x742d35Cc6634C0532925a3b844Bc9e7595f0bEb0"
)

type fakeStore struct {
	mu      sync.Mutex
	updates []models.TransactionUpdate
	err     error
}

func (s *fakeStore) UpdateTransactionStatus(_ context.Context, update models.TransactionUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, update)
	return s.err
}

func (s *fakeStore) Updates() []models.TransactionUpdate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.TransactionUpdate(nil), s.updates...)
}

func newTestChainService(t *testing.T, node *evmtest.Node, store TransactionStore) *ChainService {
	t.Helper()
	client, err := evm.NewClient(context.Background(), node.URL, 5*time.Second, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(client.Close)

	metadata := NewMetadataService("https://ipfs.io/ipfs/", 5*time.Second, nil, zap.NewNop())
	return NewChainService(client, store, metadata, zap.NewNop())
}

func TestChainService_GetBalance(t *testing.T) {
	tests := []struct {
		name     string
		quantity string
		expected string
	}{
		{name: "one native unit", quantity: "0xDE0B6B3A7640000", expected: "1"},
		{name: "half", quantity: "0x6f05b59d3b20000", expected: "0.5"},
		{name: "zero", quantity: "0x0", expected: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node := evmtest.NewNode(t)
			node.Result("eth_getBalance", tt.quantity)
			svc := newTestChainService(t, node, nil)

			balance, err := svc.GetBalance(context.Background(), testAddress)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, balance)
		})
	}
}

func TestChainService_GetBalance_InvalidAddress(t *testing.T) {
	node := evmtest.NewNode(t)
	svc := newTestChainService(t, node, nil)

	for _, addr := range []string{"", "0x1234", "not-an-address"} {
		_, err := svc.GetBalance(context.Background(), addr)
		var validationErr *ValidationError
		assert.True(t, errors.As(err, &validationErr), "address %q: expected ValidationError, got %v", addr, err)
	}
	assert.Empty(t, node.Calls())
}

func TestChainService_GetTransaction(t *testing.T) {
	node := evmtest.NewNode(t)
	node.Result("eth_getTransactionByHash", map[string]interface{}{"hash": testHash, "nonce": "0x1"})
	node.Result("eth_getTransactionReceipt", nil)
	svc := newTestChainService(t, node, nil)

	details, err := svc.GetTransaction(context.Background(), testHash)
	require.NoError(t, err)
	assert.JSONEq(t, `{"hash":"`+testHash+`","nonce":"0x1"}`, string(details.Transaction))
	assert.Nil(t, details.Receipt)
	assert.Equal(t, 1, node.CallCount("eth_getTransactionByHash"))
	assert.Equal(t, 1, node.CallCount("eth_getTransactionReceipt"))
}

func TestChainService_GetTransaction_UpstreamError(t *testing.T) {
	node := evmtest.NewNode(t)
	node.Result("eth_getTransactionByHash", nil)
	node.Fail("eth_getTransactionReceipt", -32000, "header not found")
	svc := newTestChainService(t, node, nil)

	_, err := svc.GetTransaction(context.Background(), testHash)
	var rpcErr *evm.ChainRPCError
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, "header not found", rpcErr.Error())
}

func TestChainService_SendTransaction(t *testing.T) {
	node := evmtest.NewNode(t)
	node.Handle("eth_sendRawTransaction", func(params []json.RawMessage) (interface{}, *evmtest.Error) {
		var blob string
		json.Unmarshal(params[0], &blob)
		if blob != "0xf86b01" {
			return nil, &evmtest.Error{Code: -32602, Message: "unexpected blob " + blob}
		}
		return testHash, nil
	})
	svc := newTestChainService(t, node, nil)

	txHash, err := svc.SendTransaction(context.Background(), "0xf86b01")
	require.NoError(t, err)
	assert.Equal(t, testHash, txHash)

	_, err = svc.SendTransaction(context.Background(), "f86b01")
	var validationErr *ValidationError
	assert.True(t, errors.As(err, &validationErr))
	assert.Equal(t, 1, node.CallCount("eth_sendRawTransaction"))
}

func TestChainService_GetContractData(t *testing.T) {
	node := evmtest.NewNode(t)
	node.Handle("eth_call", func(params []json.RawMessage) (interface{}, *evmtest.Error) {
		var msg map[string]string
		json.Unmarshal(params[0], &msg)
		var tag string
		json.Unmarshal(params[1], &tag)
		if msg["data"] != "0x06fdde03" || tag != "latest" {
			return nil, &evmtest.Error{Code: -32602, Message: "unexpected call"}
		}
		return "0x01", nil
	})
	svc := newTestChainService(t, node, nil)

	data, err := svc.GetContractData(context.Background(), "0x1111111111111111111111111111111111111111", "0x06fdde03")
	require.NoError(t, err)
	assert.Equal(t, "0x01", data)

	_, err = svc.GetContractData(context.Background(), "0x1111111111111111111111111111111111111111", "name()")
	var validationErr *ValidationError
	assert.True(t, errors.As(err, &validationErr))
}

func TestChainService_VerifyTransaction(t *testing.T) {
	tests := []struct {
		name           string
		receipt        interface{}
		expectVerified bool
		expectStatus   models.TransactionStatus
		expectUpdate   *models.TransactionUpdate
	}{
		{
			name:           "pending",
			receipt:        nil,
			expectVerified: false,
			expectStatus:   models.TransactionStatusPending,
		},
		{
			name: "confirmed",
			receipt: map[string]string{
				"status":            "0x1",
				"blockNumber":       "0x1234",
				"gasUsed":           "0x5208",
				"effectiveGasPrice": "0x3b9aca00",
			},
			expectVerified: true,
			expectStatus:   models.TransactionStatusConfirmed,
			expectUpdate: &models.TransactionUpdate{
				Hash:        testHash,
				Status:      models.TransactionStatusConfirmed,
				BlockNumber: 0x1234,
				GasFee:      "0.000021000000000000",
			},
		},
		{
			name: "reverted",
			receipt: map[string]string{
				"status":            "0x0",
				"blockNumber":       "0x10",
				"gasUsed":           "0x5208",
				"effectiveGasPrice": "0x3b9aca00",
			},
			expectVerified: true,
			expectStatus:   models.TransactionStatusFailed,
			expectUpdate: &models.TransactionUpdate{
				Hash:        testHash,
				Status:      models.TransactionStatusFailed,
				BlockNumber: 16,
				GasFee:      "0.000021000000000000",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node := evmtest.NewNode(t)
			node.Result("eth_getTransactionReceipt", tt.receipt)
			store := &fakeStore{}
			svc := newTestChainService(t, node, store)

			result, err := svc.VerifyTransaction(context.Background(), testHash)
			require.NoError(t, err)
			assert.Equal(t, tt.expectVerified, result.Verified)
			assert.Equal(t, tt.expectStatus, result.Status)

			if tt.expectUpdate == nil {
				assert.Nil(t, result.Receipt)
				assert.Empty(t, store.Updates())
				return
			}

			assert.NotNil(t, result.Receipt)
			updates := store.Updates()
			require.Len(t, updates, 1)
			assert.Equal(t, *tt.expectUpdate, updates[0])
		})
	}
}

func TestChainService_VerifyTransaction_StoreFailureIgnored(t *testing.T) {
	for _, storeErr := range []error{
		&database.PersistenceError{Op: "update transaction", Key: testHash, Err: database.ErrTransactionNotFound},
		errors.New("connection reset"),
	} {
		node := evmtest.NewNode(t)
		node.Result("eth_getTransactionReceipt", map[string]string{
			"status":      "0x1",
			"blockNumber": "0x1",
			"gasUsed":     "0x1",
		})
		store := &fakeStore{err: storeErr}
		svc := newTestChainService(t, node, store)

		result, err := svc.VerifyTransaction(context.Background(), testHash)
		require.NoError(t, err)
		assert.True(t, result.Verified)
		assert.Equal(t, models.TransactionStatusConfirmed, result.Status)

		updates := store.Updates()
		require.Len(t, updates, 1)
		// no effectiveGasPrice in the receipt
		assert.Equal(t, "0.000000000000000000", updates[0].GasFee)
	}
}

func TestChainService_VerifyTransaction_InvalidHash(t *testing.T) {
	node := evmtest.NewNode(t)
	svc := newTestChainService(t, node, &fakeStore{})

	_, err := svc.VerifyTransaction(context.Background(), "0x1234")
	var validationErr *ValidationError
	assert.True(t, errors.As(err, &validationErr))
	assert.Empty(t, node.Calls())
}

func TestNormalizeAddress(t *testing.T) {
	addr, err := NormalizeAddress(testAddress)
	require.NoError(t, err)
	assert.Equal(t, "0x742d35cc6634c0532925a3b844bc9e7595f0beb0", addr)

	_, err = NormalizeAddress("0xzz")
	assert.Error(t, err)
}
