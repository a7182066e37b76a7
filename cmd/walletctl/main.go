// Command walletctl drives a wallet session against a JSON-RPC wallet
// endpoint and queries the chain gateway.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"nftmarket/offchain/internal/gatewayclient"
)

type options struct {
	providerURL string
	gatewayURL  string
	verbose     bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:          "walletctl",
		Short:        "Wallet session and chain gateway tools",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.providerURL, "provider", envOr("WALLET_PROVIDER_URL", "ws://127.0.0.1:8546"), "Wallet JSON-RPC endpoint (ws:// for notifications)")
	cmd.PersistentFlags().StringVar(&opts.gatewayURL, "gateway", envOr("GATEWAY_URL", "http://localhost:8080"), "Chain gateway base URL")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")

	cmd.AddCommand(
		newConnectCmd(opts),
		newSwitchCmd(opts),
		newBalanceCmd(opts),
		newVerifyCmd(opts),
		newMetadataCmd(opts),
	)
	return cmd
}

func (o *options) logger() (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	if !o.verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	}
	return cfg.Build()
}

func (o *options) gateway() *gatewayclient.Client {
	return gatewayclient.NewClient(o.gatewayURL)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// printNotifier shows wallet notifications on the terminal
type printNotifier struct {
	cmd *cobra.Command
}

func (n printNotifier) Success(msg string) { fmt.Fprintln(n.cmd.OutOrStdout(), msg) }
func (n printNotifier) Warn(msg string)    { fmt.Fprintln(n.cmd.ErrOrStderr(), "warning:", msg) }
func (n printNotifier) Error(msg string)   { fmt.Fprintln(n.cmd.ErrOrStderr(), "error:", msg) }
