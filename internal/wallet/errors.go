package wallet

import (
	"fmt"

	"github.com/pkg/errors"
)

// EIP-1193 provider error codes
const (
	CodeUserRejected = 4001
	CodeUnknownChain = 4902
)

var (
	// ErrProviderUnavailable means no wallet provider was found
	ErrProviderUnavailable = errors.New("no wallet provider available")

	// ErrNoAccounts means the provider authorized no accounts
	ErrNoAccounts = errors.New("no accounts found")

	// ErrConnectInProgress is returned by Connect while another connect is in flight
	ErrConnectInProgress = errors.New("connect already in progress")

	// ErrAlreadyStarted is returned by Start on a running manager
	ErrAlreadyStarted = errors.New("session manager already started")
)

// ProviderError is an error reported by the wallet provider itself
type ProviderError struct {
	Code    int
	Message string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error %d: %s", e.Code, e.Message)
}

// NetworkSwitchError means the provider could not be moved to the target chain
type NetworkSwitchError struct {
	ChainID string
	Err     error
}

func (e *NetworkSwitchError) Error() string {
	return fmt.Sprintf("failed to switch to chain %s: %v", e.ChainID, e.Err)
}

func (e *NetworkSwitchError) Unwrap() error {
	return e.Err
}

// providerCode extracts the EIP-1193 code from err, if any
func providerCode(err error) (int, bool) {
	var perr *ProviderError
	if errors.As(err, &perr) {
		return perr.Code, true
	}
	return 0, false
}
