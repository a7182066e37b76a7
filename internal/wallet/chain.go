package wallet

import (
	"fmt"
	"strings"

	"nftmarket/offchain/internal/units"
)

// NativeCurrency describes a chain's native token
type NativeCurrency struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

// ChainParams is the payload of wallet_addEthereumChain
type ChainParams struct {
	ChainID           string         `json:"chainId"`
	ChainName         string         `json:"chainName"`
	NativeCurrency    NativeCurrency `json:"nativeCurrency"`
	RPCURLs           []string       `json:"rpcUrls"`
	BlockExplorerURLs []string       `json:"blockExplorerUrls"`
}

// ShardeumSphinx returns the parameters of the Shardeum Sphinx testnet
func ShardeumSphinx() ChainParams {
	return ChainParams{
		ChainID:   "0x1F92", // 8082
		ChainName: "Shardeum Sphinx Testnet",
		NativeCurrency: NativeCurrency{
			Name:     "Shardeum",
			Symbol:   "SHM",
			Decimals: units.NativeDecimals,
		},
		RPCURLs:           []string{"https://api-testnet.shardeum.org"},
		BlockExplorerURLs: []string{"https://explorer-sphinx.shardeum.org"},
	}
}

// IsTargetChain reports whether chainID (hex, any case or zero padding)
// identifies this chain
func (p ChainParams) IsTargetChain(chainID string) bool {
	want, err := units.ParseQuantity(p.ChainID)
	if err != nil {
		return false
	}
	got, err := units.ParseQuantity(chainID)
	if err != nil || chainID == "" {
		return false
	}
	return want.Cmp(got) == 0
}

// ExplorerAddressURL links to address on the chain's block explorer
func (p ChainParams) ExplorerAddressURL(address string) string {
	if len(p.BlockExplorerURLs) == 0 {
		return ""
	}
	return fmt.Sprintf("%s/address/%s", strings.TrimRight(p.BlockExplorerURLs[0], "/"), address)
}

// ShortAddress abbreviates an address for display (0x742d...bEb0)
func ShortAddress(address string) string {
	if len(address) <= 10 {
		return address
	}
	return address[:6] + "..." + address[len(address)-4:]
}
