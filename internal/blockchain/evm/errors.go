package evm

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rpc"
)

// ChainRPCError is returned when the node answered but the JSON-RPC envelope
// carried an error object. Message is the upstream message verbatim.
type ChainRPCError struct {
	Method  string
	Code    int
	Message string
}

func (e *ChainRPCError) Error() string {
	return e.Message
}

// TransportError is returned when the node could not be reached or its reply
// could not be read as a JSON-RPC response.
type TransportError struct {
	Method string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport failure: %v", e.Method, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// classifyError maps an error from the rpc client onto the gateway taxonomy.
func classifyError(method string, err error) error {
	if err == nil {
		return nil
	}

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return &ChainRPCError{
			Method:  method,
			Code:    rpcErr.ErrorCode(),
			Message: rpcErr.Error(),
		}
	}

	return &TransportError{Method: method, Err: err}
}
