package x402

// NetworkType broadly classifies a network by its CAIP-2 namespace.
type NetworkType string

const (
	NetworkTypeEVM NetworkType = "evm"
	NetworkTypeSVM NetworkType = "svm"
)

// Well-known CAIP-2 network identifiers.
const (
	NetworkBase          Network = "eip155:8453"
	NetworkBaseSepolia   Network = "eip155:84532"
	NetworkPolygon       Network = "eip155:137"
	NetworkPolygonAmoy   Network = "eip155:80002"
	NetworkAvalanche     Network = "eip155:43114"
	NetworkAvalancheFuji Network = "eip155:43113"
	NetworkSolana        Network = "solana:mainnet"
	NetworkSolanaDevnet  Network = "solana:devnet"
	NetworkFamilyEVM     Network = "eip155:*"
	NetworkFamilySVM     Network = "solana:*"
)

// ChainConfig describes a supported network and its canonical USDC asset.
type ChainConfig struct {
	Network      Network
	Name         string
	Type         NetworkType
	Testnet      bool
	USDCAddress  string
	USDCName     string
	USDCVersion  string
	USDCDecimals int32
}

// chainCatalog holds the built-in networks with a default stablecoin.
var chainCatalog = map[Network]ChainConfig{
	NetworkBase: {
		Network:      NetworkBase,
		Name:         "Base",
		Type:         NetworkTypeEVM,
		USDCAddress:  "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
		USDCName:     "USD Coin",
		USDCVersion:  "2",
		USDCDecimals: 6,
	},
	NetworkBaseSepolia: {
		Network:      NetworkBaseSepolia,
		Name:         "Base Sepolia",
		Type:         NetworkTypeEVM,
		Testnet:      true,
		USDCAddress:  "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
		USDCName:     "USDC",
		USDCVersion:  "2",
		USDCDecimals: 6,
	},
	NetworkPolygon: {
		Network:      NetworkPolygon,
		Name:         "Polygon",
		Type:         NetworkTypeEVM,
		USDCAddress:  "0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359",
		USDCName:     "USD Coin",
		USDCVersion:  "2",
		USDCDecimals: 6,
	},
	NetworkPolygonAmoy: {
		Network:      NetworkPolygonAmoy,
		Name:         "Polygon Amoy",
		Type:         NetworkTypeEVM,
		Testnet:      true,
		USDCAddress:  "0x41E94Eb019C0762f9Bfcf9Fb1E58725BfB0e7582",
		USDCName:     "USDC",
		USDCVersion:  "2",
		USDCDecimals: 6,
	},
	NetworkAvalanche: {
		Network:      NetworkAvalanche,
		Name:         "Avalanche",
		Type:         NetworkTypeEVM,
		USDCAddress:  "0xB97EF9Ef8734C71904D8002F8b6Bc66Dd9c48a6E",
		USDCName:     "USD Coin",
		USDCVersion:  "2",
		USDCDecimals: 6,
	},
	NetworkAvalancheFuji: {
		Network:      NetworkAvalancheFuji,
		Name:         "Avalanche Fuji",
		Type:         NetworkTypeEVM,
		Testnet:      true,
		USDCAddress:  "0x5425890298aed601595a70AB815c96711a31Bc65",
		USDCName:     "USD Coin",
		USDCVersion:  "2",
		USDCDecimals: 6,
	},
	NetworkSolana: {
		Network:      NetworkSolana,
		Name:         "Solana",
		Type:         NetworkTypeSVM,
		USDCAddress:  "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
		USDCName:     "USD Coin",
		USDCDecimals: 6,
	},
	NetworkSolanaDevnet: {
		Network:      NetworkSolanaDevnet,
		Name:         "Solana Devnet",
		Type:         NetworkTypeSVM,
		Testnet:      true,
		USDCAddress:  "4zMMC9srt5Ri5X14GAgXhaHii3GnPAEERYPJgZJDncDU",
		USDCName:     "USDC",
		USDCDecimals: 6,
	},
}

// GetChainConfig returns the built-in configuration for a network.
func GetChainConfig(network Network) (ChainConfig, bool) {
	cfg, ok := chainCatalog[network]
	return cfg, ok
}

// GetNetworkType classifies a network by its CAIP-2 namespace.
func GetNetworkType(network Network) (NetworkType, bool) {
	switch network.Namespace() {
	case "eip155":
		return NetworkTypeEVM, true
	case "solana":
		return NetworkTypeSVM, true
	}
	return "", false
}

// USDCAsset returns the default USDC asset for a network, or false when the
// network has no built-in stablecoin.
func USDCAsset(network Network) (ChainConfig, bool) {
	cfg, ok := chainCatalog[network]
	if !ok || cfg.USDCAddress == "" {
		return ChainConfig{}, false
	}
	return cfg, ok
}

// SupportedNetworks lists the built-in networks.
func SupportedNetworks() []Network {
	out := make([]Network, 0, len(chainCatalog))
	for n := range chainCatalog {
		out = append(out, n)
	}
	return out
}
