package config

// DefaultMempoolSize caps the number of pending transactions.
const DefaultMempoolSize = 5000

// DefaultMainnet returns the default configuration for mainnet.
func DefaultMainnet() *Config {
	return &Config{
		Network: Mainnet,
		DataDir: DefaultDataDir(),
		RPC: RPCConfig{
			Enabled:    true,
			Addr:       "127.0.0.1",
			Port:       8545,
			AllowedIPs: []string{"127.0.0.1"},
		},
		Index: IndexConfig{
			TxIndex:   true,
			AddrIndex: true,
		},
		Mempool: MempoolConfig{
			MaxSize: DefaultMempoolSize,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// DefaultTestnet returns the default configuration for testnet.
func DefaultTestnet() *Config {
	cfg := DefaultMainnet()
	cfg.Network = Testnet
	cfg.RPC.Port = 8645
	return cfg
}

// Default returns the default configuration for the given network.
func Default(network NetworkType) *Config {
	if network == Testnet {
		return DefaultTestnet()
	}
	return DefaultMainnet()
}
