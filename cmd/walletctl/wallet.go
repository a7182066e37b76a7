package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"nftmarket/offchain/internal/wallet"
)

func newConnectCmd(opts *options) *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Connect the wallet and switch it to Shardeum Sphinx",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := opts.logger()
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			provider, err := wallet.DialProvider(ctx, opts.providerURL, logger)
			if err != nil {
				return err
			}
			defer provider.Close()

			manager := wallet.NewManager(
				wallet.Environment{Ethereum: provider},
				logger,
				wallet.WithUserRegistry(opts.gateway()),
				wallet.WithNotifier(printNotifier{cmd: cmd}),
			)
			defer manager.Close()

			if err := manager.Connect(ctx); err != nil {
				return err
			}
			printSession(cmd.OutOrStdout(), manager.Chain(), manager.Session().Snapshot())

			if !watch {
				return nil
			}
			return watchSession(ctx, cmd.OutOrStdout(), provider, manager, logger)
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Follow account and chain changes until interrupted")
	return cmd
}

func newSwitchCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "switch",
		Short: "Switch the wallet to Shardeum Sphinx, adding the network if needed",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := opts.logger()
			if err != nil {
				return err
			}
			defer logger.Sync()

			provider, err := wallet.DialProvider(cmd.Context(), opts.providerURL, logger)
			if err != nil {
				return err
			}
			defer provider.Close()

			manager := wallet.NewManager(wallet.Environment{Ethereum: provider}, logger,
				wallet.WithNotifier(printNotifier{cmd: cmd}))
			if err := manager.SwitchToShardeum(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Switched to %s\n", manager.Chain().ChainName)
			return nil
		},
	}
}

func watchSession(ctx context.Context, out io.Writer, provider *wallet.RPCProvider, manager *wallet.Manager, logger *zap.Logger) error {
	if err := provider.Watch(ctx); err != nil {
		return err
	}

	updates := make(chan wallet.Session, 16)
	sub := manager.Session().SubscribeUpdates(updates)
	defer sub.Unsubscribe()

	if err := manager.Start(ctx); err != nil {
		return err
	}
	logger.Debug("Watching wallet notifications")

	for {
		select {
		case session := <-updates:
			printSession(out, manager.Chain(), session)
		case <-ctx.Done():
			return nil
		}
	}
}

func printSession(out io.Writer, chain wallet.ChainParams, session wallet.Session) {
	if !session.IsConnected() {
		fmt.Fprintf(out, "state:   %s\n", session.State())
		return
	}

	network := "wrong network"
	if chain.IsTargetChain(session.ChainID) {
		network = chain.ChainName
	}

	fmt.Fprintf(out, "account: %s\n", wallet.ShortAddress(session.Address))
	fmt.Fprintf(out, "balance: %s %s\n", session.Balance, chain.NativeCurrency.Symbol)
	fmt.Fprintf(out, "network: %s (%s)\n", network, session.ChainID)
	if link := chain.ExplorerAddressURL(session.Address); link != "" {
		fmt.Fprintf(out, "explorer: %s\n", link)
	}
}
