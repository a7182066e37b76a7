package wallet

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/event"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"nftmarket/offchain/internal/units"
)

const (
	registryTimeout = 10 * time.Second
	eventBuffer     = 16
)

// UserRegistry records connected wallets. Calls are best-effort.
type UserRegistry interface {
	UpsertUser(ctx context.Context, walletAddress string) error
}

// Option configures a Manager
type Option func(*Manager)

// WithChain sets the chain Connect switches to (default ShardeumSphinx)
func WithChain(params ChainParams) Option {
	return func(m *Manager) { m.chain = params }
}

// WithUserRegistry sets where connected wallets are recorded
func WithUserRegistry(registry UserRegistry) Option {
	return func(m *Manager) { m.registry = registry }
}

// WithNotifier sets the receiver of user-facing messages
func WithNotifier(notifier Notifier) Option {
	return func(m *Manager) { m.notifier = notifier }
}

// Manager owns the wallet session. It is the only writer of the session;
// consumers read it through Session().
type Manager struct {
	source   ProviderSource
	chain    ChainParams
	registry UserRegistry
	notifier Notifier
	logger   *zap.Logger

	session    sessionStore
	connecting atomic.Bool

	// lifecycle of the notification loop
	mu       sync.Mutex
	scope    *event.SubscriptionScope
	cancel   context.CancelFunc
	loopDone chan struct{}

	background sync.WaitGroup
}

// NewManager creates a session manager that discovers its provider from source
func NewManager(source ProviderSource, logger *zap.Logger, opts ...Option) *Manager {
	logger = logger.Named("wallet")
	m := &Manager{
		source: source,
		chain:  ShardeumSphinx(),
		logger: logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.notifier == nil {
		m.notifier = NewLogNotifier(logger)
	}
	return m
}

// Session returns the read-only view of the session
func (m *Manager) Session() SessionView {
	return &m.session
}

// Chain returns the target chain parameters
func (m *Manager) Chain() ChainParams {
	return m.chain
}

// Connect requests account access, moves the wallet to the target chain and
// writes the connected session. On failure the session is left as it was,
// except that IsConnecting is cleared.
func (m *Manager) Connect(ctx context.Context) error {
	if !m.connecting.CompareAndSwap(false, true) {
		return ErrConnectInProgress
	}
	defer m.connecting.Store(false)

	provider, kind, err := m.source.Discover()
	if err != nil {
		m.notifier.Error("Please install MetaMask or a Shardeum-compatible wallet")
		return err
	}

	m.logger.Debug("Connecting wallet", zap.Stringer("provider", kind))
	m.session.update(func(s Session) Session {
		s.IsConnecting = true
		return s
	})

	session, err := m.connect(ctx, provider)
	if err != nil {
		m.session.update(func(s Session) Session {
			s.IsConnecting = false
			return s
		})
		m.reportConnectError(err)
		return err
	}

	m.session.update(func(Session) Session { return session })
	m.registerUser(session.Address)

	m.logger.Info("Wallet connected",
		zap.String("address", session.Address),
		zap.String("chain_id", session.ChainID))
	m.notifier.Success("Wallet connected successfully!")
	return nil
}

func (m *Manager) connect(ctx context.Context, provider Provider) (Session, error) {
	accounts, err := requestStrings(ctx, provider, "eth_requestAccounts")
	if err != nil {
		return Session{}, errors.Wrap(err, "request accounts")
	}
	if len(accounts) == 0 {
		return Session{}, ErrNoAccounts
	}
	address := strings.ToLower(accounts[0])

	if err := m.switchChain(ctx, provider); err != nil {
		return Session{}, err
	}

	chainID, err := requestString(ctx, provider, "eth_chainId")
	if err != nil {
		return Session{}, errors.Wrap(err, "read chain id")
	}

	return Session{
		Address: address,
		Balance: m.balanceOf(ctx, provider, address),
		ChainID: chainID,
	}, nil
}

func (m *Manager) reportConnectError(err error) {
	m.logger.Warn("Failed to connect wallet", zap.Error(err))

	var switchErr *NetworkSwitchError
	var providerErr *ProviderError
	switch {
	case errors.As(err, &switchErr):
		// already reported by switchChain
	case errors.Is(err, ErrNoAccounts):
		m.notifier.Error("No accounts found")
	case errors.As(err, &providerErr) && providerErr.Message != "":
		m.notifier.Error(providerErr.Message)
	default:
		m.notifier.Error("Failed to connect wallet")
	}
}

// Disconnect clears the session. The provider is not contacted.
func (m *Manager) Disconnect() {
	m.session.update(func(Session) Session { return Session{} })
	m.logger.Info("Wallet disconnected")
	m.notifier.Success("Wallet disconnected")
}

// SwitchToShardeum asks the provider to switch to the target chain, adding
// the chain first if the provider does not know it
func (m *Manager) SwitchToShardeum(ctx context.Context) error {
	provider, _, err := m.source.Discover()
	if err != nil {
		return err
	}
	return m.switchChain(ctx, provider)
}

func (m *Manager) switchChain(ctx context.Context, provider Provider) error {
	switchParams := map[string]string{"chainId": m.chain.ChainID}

	_, err := provider.Request(ctx, "wallet_switchEthereumChain", switchParams)
	if err == nil {
		return nil
	}

	if code, ok := providerCode(err); !ok || code != CodeUnknownChain {
		m.logger.Warn("Failed to switch network", zap.String("chain_id", m.chain.ChainID), zap.Error(err))
		m.notifier.Warn(fmt.Sprintf("Failed to switch to %s network", m.chain.ChainName))
		return &NetworkSwitchError{ChainID: m.chain.ChainID, Err: err}
	}

	m.logger.Info("Chain unknown to wallet, adding it", zap.String("chain_id", m.chain.ChainID))
	if _, err := provider.Request(ctx, "wallet_addEthereumChain", m.chain); err != nil {
		m.logger.Warn("Failed to add network", zap.String("chain_id", m.chain.ChainID), zap.Error(err))
		m.notifier.Warn(fmt.Sprintf("Failed to add %s network", m.chain.ChainName))
		return &NetworkSwitchError{ChainID: m.chain.ChainID, Err: err}
	}

	if _, err := provider.Request(ctx, "wallet_switchEthereumChain", switchParams); err != nil {
		m.logger.Warn("Failed to switch network after adding it", zap.String("chain_id", m.chain.ChainID), zap.Error(err))
		m.notifier.Warn(fmt.Sprintf("Failed to switch to %s network", m.chain.ChainName))
		return &NetworkSwitchError{ChainID: m.chain.ChainID, Err: err}
	}
	return nil
}

// GetBalance returns the balance of address in native currency with fixed
// precision, or "0" if it cannot be read
func (m *Manager) GetBalance(ctx context.Context, address string) string {
	provider, _, err := m.source.Discover()
	if err != nil {
		return "0"
	}
	return m.balanceOf(ctx, provider, address)
}

func (m *Manager) balanceOf(ctx context.Context, provider Provider, address string) string {
	quantity, err := requestString(ctx, provider, "eth_getBalance", address, "latest")
	if err != nil {
		m.logger.Warn("Failed to get balance", zap.String("address", address), zap.Error(err))
		return "0"
	}
	wei, err := units.ParseQuantity(quantity)
	if err != nil {
		m.logger.Warn("Invalid balance quantity", zap.String("quantity", quantity), zap.Error(err))
		return "0"
	}
	return units.FormatFixed(wei, units.BalancePrecision)
}

// Sync re-derives the session from the accounts the provider has already
// authorized, without prompting. With no authorized accounts the session is
// left unchanged.
func (m *Manager) Sync(ctx context.Context) error {
	provider, _, err := m.source.Discover()
	if err != nil {
		return err
	}

	accounts, err := requestStrings(ctx, provider, "eth_accounts")
	if err != nil {
		m.logger.Warn("Failed to check wallet connection", zap.Error(err))
		return errors.Wrap(err, "read accounts")
	}
	if len(accounts) == 0 {
		return nil
	}
	address := strings.ToLower(accounts[0])

	chainID, err := requestString(ctx, provider, "eth_chainId")
	if err != nil {
		m.logger.Warn("Failed to check wallet connection", zap.Error(err))
		return errors.Wrap(err, "read chain id")
	}
	balance := m.balanceOf(ctx, provider, address)

	m.session.update(func(s Session) Session {
		return Session{
			Address:      address,
			IsConnecting: s.IsConnecting,
			Balance:      balance,
			ChainID:      chainID,
		}
	})
	return nil
}

// Start syncs the session and follows the provider's notifications until
// Close. An account change to an empty list disconnects; any other account or
// chain change re-syncs. If a provider subscription fails the loop stops with
// a warning and Start may be called again to resubscribe.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.scope != nil {
		select {
		case <-m.loopDone:
			// the loop stopped on a subscription error; start over
			m.teardown()
		default:
			return ErrAlreadyStarted
		}
	}

	provider, kind, err := m.source.Discover()
	if err != nil {
		return err
	}

	scope := new(event.SubscriptionScope)
	accounts := make(chan []string, eventBuffer)
	chains := make(chan string, eventBuffer)
	accountsSub := scope.Track(provider.SubscribeAccountsChanged(accounts))
	chainSub := scope.Track(provider.SubscribeChainChanged(chains))

	if err := m.Sync(ctx); err != nil {
		m.logger.Warn("Initial sync failed", zap.Error(err))
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	m.scope = scope
	m.cancel = cancel
	done := make(chan struct{})
	m.loopDone = done

	go m.loop(loopCtx, done, accounts, chains, accountsSub, chainSub)

	m.logger.Info("Session manager started", zap.Stringer("provider", kind))
	return nil
}

func (m *Manager) loop(ctx context.Context, done chan<- struct{}, accounts <-chan []string, chains <-chan string, accountsSub, chainSub event.Subscription) {
	defer close(done)

	for {
		select {
		case list := <-accounts:
			if len(list) == 0 {
				m.Disconnect()
				continue
			}
			if err := m.Sync(ctx); err != nil {
				m.logger.Debug("Sync after account change failed", zap.Error(err))
			}

		case chainID := <-chains:
			m.logger.Debug("Chain changed", zap.String("chain_id", chainID))
			if err := m.Sync(ctx); err != nil {
				m.logger.Debug("Sync after chain change failed", zap.Error(err))
			}

		case err := <-accountsSub.Err():
			m.subscriptionEnded(ctx, "accounts", err)
			return

		case err := <-chainSub.Err():
			m.subscriptionEnded(ctx, "chain", err)
			return

		case <-ctx.Done():
			return
		}
	}
}

func (m *Manager) subscriptionEnded(ctx context.Context, stream string, err error) {
	if ctx.Err() != nil {
		return
	}
	m.logger.Warn("Provider subscription ended", zap.String("stream", stream), zap.Error(err))
	m.notifier.Warn("Stopped following wallet changes")
}

// Following reports whether the notification loop is running
func (m *Manager) Following() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.scope == nil {
		return false
	}
	select {
	case <-m.loopDone:
		return false
	default:
		return true
	}
}

// Close unsubscribes from the provider and waits for the notification loop
// and any pending user registrations
func (m *Manager) Close() {
	m.mu.Lock()
	if m.scope != nil {
		m.cancel()
		<-m.loopDone
		m.teardown()
	}
	m.mu.Unlock()

	m.background.Wait()
}

// teardown releases the loop's subscriptions. m.mu must be held and the
// loop must have exited.
func (m *Manager) teardown() {
	m.cancel()
	m.scope.Close()
	m.scope = nil
}

func (m *Manager) registerUser(address string) {
	if m.registry == nil {
		return
	}

	m.background.Add(1)
	go func() {
		defer m.background.Done()

		ctx, cancel := context.WithTimeout(context.Background(), registryTimeout)
		defer cancel()

		if err := m.registry.UpsertUser(ctx, address); err != nil {
			m.logger.Warn("Failed to save user", zap.String("address", address), zap.Error(err))
		}
	}()
}
