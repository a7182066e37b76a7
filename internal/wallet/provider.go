// Package wallet manages a single wallet session on top of an EIP-1193 style
// provider: connecting, switching to the target chain, reading balances, and
// following the provider's account and chain notifications.
package wallet

import (
	"context"
	"encoding/json"

	"github.com/ethereum/go-ethereum/event"
	"github.com/pkg/errors"
)

// Provider is the capability a wallet exposes: JSON-RPC requests plus
// account and chain change notifications
type Provider interface {
	Request(ctx context.Context, method string, params ...interface{}) (json.RawMessage, error)
	SubscribeAccountsChanged(ch chan<- []string) event.Subscription
	SubscribeChainChanged(ch chan<- string) event.Subscription
}

// ProviderKind identifies which provider Discover selected
type ProviderKind int

const (
	KindUnavailable ProviderKind = iota
	KindShardeum
	KindEthereum
)

func (k ProviderKind) String() string {
	switch k {
	case KindShardeum:
		return "shardeum"
	case KindEthereum:
		return "ethereum"
	default:
		return "unavailable"
	}
}

// ProviderSource selects a provider at the moment one is needed
type ProviderSource interface {
	Discover() (Provider, ProviderKind, error)
}

// Environment holds the providers present in the host. Either may be nil.
type Environment struct {
	Shardeum Provider
	Ethereum Provider
}

// Discover prefers the chain-specific provider, then the generic one
func (e Environment) Discover() (Provider, ProviderKind, error) {
	switch {
	case e.Shardeum != nil:
		return e.Shardeum, KindShardeum, nil
	case e.Ethereum != nil:
		return e.Ethereum, KindEthereum, nil
	default:
		return nil, KindUnavailable, ErrProviderUnavailable
	}
}

func requestStrings(ctx context.Context, p Provider, method string, params ...interface{}) ([]string, error) {
	raw, err := p.Request(ctx, method, params...)
	if err != nil {
		return nil, err
	}
	var out []string
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, errors.Wrapf(err, "decode %s result", method)
		}
	}
	return out, nil
}

func requestString(ctx context.Context, p Provider, method string, params ...interface{}) (string, error) {
	raw, err := p.Request(ctx, method, params...)
	if err != nil {
		return "", err
	}
	var out string
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", errors.Wrapf(err, "decode %s result", method)
	}
	return out, nil
}
