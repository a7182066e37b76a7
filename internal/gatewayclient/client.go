// Package gatewayclient calls the chain gateway over HTTP.
package gatewayclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"nftmarket/offchain/internal/models"
)

const defaultTimeout = 30 * time.Second

// APIError is a non-2xx gateway response
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gateway returned %d: %s", e.StatusCode, e.Message)
}

// Verification is the gateway's verifyTransaction result
type Verification struct {
	Verified bool                     `json:"verified"`
	Status   models.TransactionStatus `json:"status"`
	Receipt  json.RawMessage          `json:"receipt,omitempty"`
}

// Client talks to a gateway deployment
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a client for the gateway at baseURL
// (e.g. http://localhost:8080)
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

// Balance returns the native balance of address as reported by the gateway
func (c *Client) Balance(ctx context.Context, address string) (string, error) {
	var resp struct {
		Balance string `json:"balance"`
	}
	err := c.action(ctx, map[string]string{"action": "getBalance", "address": address}, &resp)
	if err != nil {
		return "", errors.Wrap(err, "getBalance")
	}
	return resp.Balance, nil
}

// VerifyTransaction asks the gateway to check a transaction's receipt
func (c *Client) VerifyTransaction(ctx context.Context, hash string) (*Verification, error) {
	var resp Verification
	err := c.action(ctx, map[string]string{"action": "verifyTransaction", "hash": hash}, &resp)
	if err != nil {
		return nil, errors.Wrap(err, "verifyTransaction")
	}
	return &resp, nil
}

// NFTMetadata resolves a token URI through the gateway
func (c *Client) NFTMetadata(ctx context.Context, tokenURI string) (json.RawMessage, error) {
	var resp struct {
		Metadata json.RawMessage `json:"metadata"`
	}
	err := c.action(ctx, map[string]string{"action": "getNFTMetadata", "tokenURI": tokenURI}, &resp)
	if err != nil {
		return nil, errors.Wrap(err, "getNFTMetadata")
	}
	return resp.Metadata, nil
}

// UpsertUser registers a connected wallet address
func (c *Client) UpsertUser(ctx context.Context, walletAddress string) error {
	body := map[string]string{"walletAddress": walletAddress}
	if err := c.post(ctx, "/api/v1/users", body, nil); err != nil {
		return errors.Wrap(err, "upsert user")
	}
	return nil
}

func (c *Client) action(ctx context.Context, body interface{}, out interface{}) error {
	return c.post(ctx, "/api/v1/chain", body, out)
}

func (c *Client) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "failed to encode request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, "failed to build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil || errResp.Error == "" {
			errResp.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "failed to decode response")
	}
	return nil
}
