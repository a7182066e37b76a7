package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"nftmarket/offchain/internal/blockchain/evm"
	"nftmarket/offchain/internal/blockchain/evm/evmtest"
	"nftmarket/offchain/internal/database"
	"nftmarket/offchain/internal/service"
)

const testHash = "0x5c504ed432cb51138bcf09aa5e8a410dd4a1e204ef84bfed1be16dfba1b22060"

type testServer struct {
	router http.Handler
	node   *evmtest.Node
	db     *database.DB
}

func newTestServer(t *testing.T, endpoint string) *testServer {
	t.Helper()
	logger := zap.NewNop()

	var node *evmtest.Node
	if endpoint == "" {
		node = evmtest.NewNode(t)
		endpoint = node.URL
	}

	client, err := evm.NewClient(context.Background(), endpoint, 5*time.Second, logger)
	require.NoError(t, err)
	t.Cleanup(client.Close)

	db, err := database.Connect(database.Config{Driver: "sqlite3", Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.RunMigrations(db))

	metadata := service.NewMetadataService("https://ipfs.io/ipfs/", 5*time.Second, nil, logger)
	chainService := service.NewChainService(client, db, metadata, logger)
	metrics := NewMetrics()
	handler := NewHandler(db, chainService, metrics, logger)

	return &testServer{
		router: SetupRouter(handler, metrics, logger),
		node:   node,
		db:     db,
	}
}

func (s *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func assertCORS(t *testing.T, w *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "authorization, x-client-info, apikey, content-type", w.Header().Get("Access-Control-Allow-Headers"))
}

func TestHandleHealth(t *testing.T) {
	logger := zap.NewNop()
	handler := NewHandler(nil, nil, nil, logger)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	handler.HandleHealth(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	var response HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if response.Status != "ok" {
		t.Errorf("expected status 'ok', got '%s'", response.Status)
	}

	if response.Version != "1.0.0" {
		t.Errorf("expected version '1.0.0', got '%s'", response.Version)
	}
}

func TestHandleChain(t *testing.T) {
	tests := []struct {
		name           string
		setup          func(node *evmtest.Node)
		body           string
		expectedStatus int
		expectedBody   string
		expectNoCalls  bool
	}{
		{
			name:           "unknown action",
			body:           `{"action":"mintNFT"}`,
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"error":"Invalid action"}`,
			expectNoCalls:  true,
		},
		{
			name:           "malformed body",
			body:           `{"action":`,
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"error":"Invalid request body"}`,
			expectNoCalls:  true,
		},
		{
			name:           "missing address",
			body:           `{"action":"getBalance"}`,
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"error":"address is required"}`,
			expectNoCalls:  true,
		},
		{
			name: "balance",
			setup: func(node *evmtest.Node) {
				node.Result("eth_getBalance", "0xDE0B6B3A7640000")
			},
			body:           `{"action":"getBalance","address":"0x742d35Cc6634C0532925a3b844Bc9e7595f0bEb0"}`,
			expectedStatus: http.StatusOK,
			expectedBody:   `{"balance":"1"}`,
		},
		{
			name: "chain error relayed verbatim",
			setup: func(node *evmtest.Node) {
				node.Fail("eth_sendRawTransaction", -32000, "insufficient funds for gas * price + value")
			},
			body:           `{"action":"sendTransaction","signedTransaction":"0xf86b01"}`,
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `{"error":"insufficient funds for gas * price + value"}`,
		},
		{
			name: "send transaction",
			setup: func(node *evmtest.Node) {
				node.Result("eth_sendRawTransaction", testHash)
			},
			body:           `{"action":"sendTransaction","signedTransaction":"0xf86b01"}`,
			expectedStatus: http.StatusOK,
			expectedBody:   `{"transactionHash":"` + testHash + `"}`,
		},
		{
			name: "transaction with pending receipt",
			setup: func(node *evmtest.Node) {
				node.Result("eth_getTransactionByHash", map[string]string{"hash": testHash})
				node.Result("eth_getTransactionReceipt", nil)
			},
			body:           `{"action":"getTransaction","hash":"` + testHash + `"}`,
			expectedStatus: http.StatusOK,
			expectedBody:   `{"transaction":{"hash":"` + testHash + `"},"receipt":null}`,
		},
		{
			name: "contract data",
			setup: func(node *evmtest.Node) {
				node.Result("eth_call", "0x2a")
			},
			body:           `{"action":"getContractData","contractAddress":"0x1111111111111111111111111111111111111111","method":"0x18160ddd","params":[]}`,
			expectedStatus: http.StatusOK,
			expectedBody:   `{"data":"0x2a"}`,
		},
		{
			name: "verify pending",
			setup: func(node *evmtest.Node) {
				node.Result("eth_getTransactionReceipt", nil)
			},
			body:           `{"action":"verifyTransaction","hash":"` + testHash + `"}`,
			expectedStatus: http.StatusOK,
			expectedBody:   `{"verified":false,"status":"pending"}`,
		},
		{
			name: "verify confirmed",
			setup: func(node *evmtest.Node) {
				node.Result("eth_getTransactionReceipt", map[string]string{"status": "0x1", "blockNumber": "0x2", "gasUsed": "0x1"})
			},
			body:           `{"action":"verifyTransaction","hash":"` + testHash + `"}`,
			expectedStatus: http.StatusOK,
			expectedBody:   `{"verified":true,"status":"confirmed","receipt":{"status":"0x1","blockNumber":"0x2","gasUsed":"0x1"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, "")
			if tt.setup != nil {
				tt.setup(srv.node)
			}

			w := srv.do(http.MethodPost, "/api/v1/chain", tt.body)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.JSONEq(t, tt.expectedBody, w.Body.String())
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			assertCORS(t, w)
			if tt.expectNoCalls {
				assert.Empty(t, srv.node.Calls())
			}
		})
	}
}

func TestHandleChain_TransportError(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	endpoint := dead.URL
	dead.Close()

	srv := newTestServer(t, endpoint)

	w := srv.do(http.MethodPost, "/", `{"action":"getBalance","address":"0x742d35Cc6634C0532925a3b844Bc9e7595f0bEb0"}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Failed to reach chain node"}`, w.Body.String())
	assertCORS(t, w)
}

func TestHandleChain_RootAlias(t *testing.T) {
	srv := newTestServer(t, "")
	srv.node.Result("eth_getBalance", "0x0")

	w := srv.do(http.MethodPost, "/", `{"action":"getBalance","address":"0x742d35Cc6634C0532925a3b844Bc9e7595f0bEb0"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"balance":"0"}`, w.Body.String())
}

func TestHandleBody_TooLarge(t *testing.T) {
	oversized := strings.Repeat("ab", maxRequestBodySize)

	tests := []struct {
		name string
		path string
		body string
	}{
		{
			name: "chain action",
			path: "/api/v1/chain",
			body: `{"action":"sendTransaction","signedTransaction":"0x` + oversized + `"}`,
		},
		{
			name: "upsert user",
			path: "/api/v1/users",
			body: `{"walletAddress":"` + oversized + `"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, "")

			w := srv.do(http.MethodPost, tt.path, tt.body)

			assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
			assert.JSONEq(t, `{"error":"Request body too large"}`, w.Body.String())
			assertCORS(t, w)
			assert.Empty(t, srv.node.Calls())
		})
	}
}

func TestCORS(t *testing.T) {
	srv := newTestServer(t, "")

	tests := []struct {
		name           string
		method         string
		path           string
		expectedStatus int
	}{
		{name: "preflight on action endpoint", method: http.MethodOptions, path: "/api/v1/chain", expectedStatus: http.StatusOK},
		{name: "preflight on root", method: http.MethodOptions, path: "/", expectedStatus: http.StatusOK},
		{name: "preflight on unknown path", method: http.MethodOptions, path: "/does/not/exist", expectedStatus: http.StatusOK},
		{name: "not found", method: http.MethodPost, path: "/does/not/exist", expectedStatus: http.StatusNotFound},
		{name: "method not allowed", method: http.MethodGet, path: "/", expectedStatus: http.StatusMethodNotAllowed},
		{name: "health", method: http.MethodGet, path: "/health", expectedStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := srv.do(tt.method, tt.path, "")
			assert.Equal(t, tt.expectedStatus, w.Code)
			assertCORS(t, w)
			if tt.method == http.MethodOptions {
				assert.Empty(t, w.Body.String())
			}
		})
	}
	assert.Empty(t, srv.node.Calls())
}

func TestRequestID(t *testing.T) {
	srv := newTestServer(t, "")

	w := srv.do(http.MethodGet, "/health", "")
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	w = httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(requestIDHeader))
}

func TestHandleUpsertUser(t *testing.T) {
	srv := newTestServer(t, "")

	body, _ := json.Marshal(UpsertUserRequest{WalletAddress: "0x742d35Cc6634C0532925a3b844Bc9e7595f0bEb0"})
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/users", bytes.NewReader(body))
		w := httptest.NewRecorder()
		srv.router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var user struct {
			WalletAddress string `json:"walletAddress"`
		}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&user))
		assert.Equal(t, "0x742d35cc6634c0532925a3b844bc9e7595f0beb0", user.WalletAddress)
	}

	var count int
	require.NoError(t, srv.db.Get(&count, `SELECT COUNT(*) FROM users`))
	assert.Equal(t, 1, count)

	w := srv.do(http.MethodPost, "/api/v1/users", `{"walletAddress":"0x12"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleGetTransactionRecord(t *testing.T) {
	srv := newTestServer(t, "")

	w := srv.do(http.MethodGet, "/api/v1/transactions/"+testHash, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	_, err := srv.db.Exec(`INSERT INTO transactions (transaction_hash) VALUES (?)`, testHash)
	require.NoError(t, err)

	// verification updates the tracked row
	srv.node.Result("eth_getTransactionReceipt", map[string]string{
		"status":            "0x0",
		"blockNumber":       "0x10",
		"gasUsed":           "0x5208",
		"effectiveGasPrice": "0x3b9aca00",
	})
	w = srv.do(http.MethodPost, "/api/v1/chain", `{"action":"verifyTransaction","hash":"`+testHash+`"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = srv.do(http.MethodGet, "/api/v1/transactions/"+testHash, "")
	require.Equal(t, http.StatusOK, w.Code)

	var record struct {
		TransactionHash string  `json:"transactionHash"`
		Status          string  `json:"status"`
		BlockNumber     *int64  `json:"blockNumber"`
		GasFee          *string `json:"gasFee"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&record))
	assert.Equal(t, testHash, record.TransactionHash)
	assert.Equal(t, "failed", record.Status)
	require.NotNil(t, record.BlockNumber)
	assert.Equal(t, int64(16), *record.BlockNumber)
	require.NotNil(t, record.GasFee)
	assert.Equal(t, "0.000021000000000000", *record.GasFee)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, "")
	srv.do(http.MethodPost, "/api/v1/chain", `{"action":"nope"}`)

	w := srv.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `gateway_chain_actions_total{action="invalid",outcome="rejected"} 1`)
	assert.Contains(t, w.Body.String(), "gateway_http_requests_total")
}
