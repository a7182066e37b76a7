// Package evmtest provides an in-process JSON-RPC node for tests, served by
// go-ethereum's rpc.Server over HTTP.
package evmtest

import (
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/require"
)

// Handler answers one method. Returning a non-nil *Error produces a JSON-RPC
// error envelope instead of a result.
type Handler func(params []json.RawMessage) (interface{}, *Error)

// Error is a JSON-RPC error object
type Error struct {
	Code    int
	Message string
}

func (e *Error) Error() string  { return e.Message }
func (e *Error) ErrorCode() int { return e.Code }

// Call records one request received by the node
type Call struct {
	Method string
	Params []json.RawMessage
}

// Node is a fake upstream node. Its eth_ methods are answered by handlers
// registered per method.
type Node struct {
	*httptest.Server

	mu       sync.Mutex
	handlers map[string]Handler
	calls    []Call
}

// NewNode starts a node that is closed when the test ends. Methods without a
// handler answer with error -32601.
func NewNode(t *testing.T) *Node {
	t.Helper()

	n := &Node{handlers: make(map[string]Handler)}

	server := rpc.NewServer()
	require.NoError(t, server.RegisterName("eth", &ethService{node: n}))

	n.Server = httptest.NewServer(server)
	t.Cleanup(func() {
		n.Server.Close()
		server.Stop()
	})
	return n
}

// Handle registers the handler for method
func (n *Node) Handle(method string, h Handler) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.handlers[method] = h
}

// Result registers a handler that always returns result
func (n *Node) Result(method string, result interface{}) {
	n.Handle(method, func([]json.RawMessage) (interface{}, *Error) {
		return result, nil
	})
}

// Fail registers a handler that always returns a JSON-RPC error
func (n *Node) Fail(method string, code int, message string) {
	n.Handle(method, func([]json.RawMessage) (interface{}, *Error) {
		return nil, &Error{Code: code, Message: message}
	})
}

// Calls returns the requests received so far
func (n *Node) Calls() []Call {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Call, len(n.calls))
	copy(out, n.calls)
	return out
}

// CallCount returns how many times method was requested
func (n *Node) CallCount(method string) int {
	count := 0
	for _, c := range n.Calls() {
		if c.Method == method {
			count++
		}
	}
	return count
}

func (n *Node) dispatch(method string, params ...json.RawMessage) (interface{}, error) {
	n.mu.Lock()
	n.calls = append(n.calls, Call{Method: method, Params: params})
	h, ok := n.handlers[method]
	n.mu.Unlock()

	if !ok {
		return nil, &Error{Code: -32601, Message: fmt.Sprintf("the method %s does not exist/is not available", method)}
	}
	result, rpcErr := h(params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	return result, nil
}

// ethService exposes the eth_ methods the gateway relays
type ethService struct {
	node *Node
}

func (s *ethService) ChainId() (interface{}, error) {
	return s.node.dispatch("eth_chainId")
}

func (s *ethService) GetBalance(address, block json.RawMessage) (interface{}, error) {
	return s.node.dispatch("eth_getBalance", address, block)
}

func (s *ethService) GetTransactionByHash(hash json.RawMessage) (interface{}, error) {
	return s.node.dispatch("eth_getTransactionByHash", hash)
}

func (s *ethService) GetTransactionReceipt(hash json.RawMessage) (interface{}, error) {
	return s.node.dispatch("eth_getTransactionReceipt", hash)
}

func (s *ethService) SendRawTransaction(data json.RawMessage) (interface{}, error) {
	return s.node.dispatch("eth_sendRawTransaction", data)
}

func (s *ethService) Call(msg, block json.RawMessage) (interface{}, error) {
	return s.node.dispatch("eth_call", msg, block)
}
