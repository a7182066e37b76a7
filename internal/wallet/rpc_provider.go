package wallet

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// RPCProvider is a Provider backed by a JSON-RPC wallet endpoint such as a
// local signer. Notifications are only available over transports that
// support eth_subscribe (WebSocket, IPC, in-process).
type RPCProvider struct {
	client *rpc.Client
	logger *zap.Logger

	accountsFeed event.Feed
	chainFeed    event.Feed

	mu       sync.Mutex
	watching bool
	subs     []*rpc.ClientSubscription
	wg       sync.WaitGroup
}

// DialProvider connects to the wallet endpoint at url
func DialProvider(ctx context.Context, url string, logger *zap.Logger) (*RPCProvider, error) {
	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, errors.Wrapf(err, "dial wallet provider %s", url)
	}
	return NewRPCProvider(client, logger), nil
}

// NewRPCProvider wraps an existing client
func NewRPCProvider(client *rpc.Client, logger *zap.Logger) *RPCProvider {
	return &RPCProvider{
		client: client,
		logger: logger.Named("provider"),
	}
}

// Request performs one JSON-RPC call. Errors reported by the wallet are
// returned as *ProviderError so callers can inspect the EIP-1193 code.
func (p *RPCProvider) Request(ctx context.Context, method string, params ...interface{}) (json.RawMessage, error) {
	var raw json.RawMessage
	err := p.client.CallContext(ctx, &raw, method, params...)
	if err != nil {
		var rpcErr rpc.Error
		if errors.As(err, &rpcErr) {
			return nil, &ProviderError{Code: rpcErr.ErrorCode(), Message: rpcErr.Error()}
		}
		return nil, errors.Wrapf(err, "%s", method)
	}
	return raw, nil
}

// SubscribeAccountsChanged delivers account lists reported by the wallet
func (p *RPCProvider) SubscribeAccountsChanged(ch chan<- []string) event.Subscription {
	return p.accountsFeed.Subscribe(ch)
}

// SubscribeChainChanged delivers chain ids reported by the wallet
func (p *RPCProvider) SubscribeChainChanged(ch chan<- string) event.Subscription {
	return p.chainFeed.Subscribe(ch)
}

// Watch subscribes to the wallet's accountsChanged and chainChanged streams
// and forwards them to feed subscribers until Close. Over HTTP this returns
// rpc.ErrNotificationsUnsupported.
func (p *RPCProvider) Watch(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.watching {
		return nil
	}

	accounts := make(chan []string, 16)
	accountsSub, err := p.client.EthSubscribe(ctx, accounts, "accountsChanged")
	if err != nil {
		return errors.Wrap(err, "subscribe accountsChanged")
	}

	chains := make(chan string, 16)
	chainSub, err := p.client.EthSubscribe(ctx, chains, "chainChanged")
	if err != nil {
		accountsSub.Unsubscribe()
		return errors.Wrap(err, "subscribe chainChanged")
	}

	p.subs = []*rpc.ClientSubscription{accountsSub, chainSub}
	p.watching = true

	p.wg.Add(2)
	go func() {
		defer p.wg.Done()
		forward(p.logger, accountsSub, accounts, &p.accountsFeed)
	}()
	go func() {
		defer p.wg.Done()
		forward(p.logger, chainSub, chains, &p.chainFeed)
	}()

	return nil
}

func forward[T any](logger *zap.Logger, sub *rpc.ClientSubscription, in <-chan T, feed *event.Feed) {
	for {
		select {
		case v := <-in:
			feed.Send(v)
		case err := <-sub.Err():
			if err != nil {
				logger.Warn("Provider subscription ended", zap.Error(err))
			}
			return
		}
	}
}

// Close stops watching and closes the client
func (p *RPCProvider) Close() {
	p.mu.Lock()
	for _, sub := range p.subs {
		sub.Unsubscribe()
	}
	p.subs = nil
	p.watching = false
	p.mu.Unlock()

	p.wg.Wait()
	p.client.Close()
}
