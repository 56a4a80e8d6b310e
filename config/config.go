// Package config handles daemon configuration.
//
// Settings come from three layers, later layers winning:
//   - built-in defaults per network
//   - the <datadir>/addrindex.conf file
//   - command-line flags
package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// NetworkType identifies mainnet or testnet.
type NetworkType string

const (
	Mainnet NetworkType = "mainnet"
	Testnet NetworkType = "testnet"
)

// ConfigFileName is the name of the config file inside the data directory.
const ConfigFileName = "addrindex.conf"

// Config holds the daemon's runtime configuration.
type Config struct {
	Network NetworkType `conf:"network"`
	DataDir string      `conf:"datadir"`

	RPC     RPCConfig
	Index   IndexConfig
	Query   QueryConfig
	Mempool MempoolConfig
	Metrics MetricsConfig
	Log     LogConfig
}

// RPCConfig holds RPC server settings.
type RPCConfig struct {
	Enabled     bool     `conf:"rpc.enabled"`
	Addr        string   `conf:"rpc.addr"`
	Port        int      `conf:"rpc.port"`
	AllowedIPs  []string `conf:"rpc.allowed"`
	CORSOrigins []string `conf:"rpc.cors"` // "*" = all
}

// IndexConfig selects which on-disk indexes are maintained. Address queries
// need both; with either disabled the node runs in reduced-index mode.
// ReadOnly serves a frozen copy of the index: the store is opened without
// the write lock and block or transaction ingest is refused.
type IndexConfig struct {
	TxIndex   bool `conf:"index.txindex"`
	AddrIndex bool `conf:"index.addrindex"`
	ReadOnly  bool `conf:"index.readonly"`
}

// Reduced reports whether the address query methods are unavailable.
func (c IndexConfig) Reduced() bool {
	return !c.TxIndex || !c.AddrIndex
}

// QueryConfig tunes the address query engine.
type QueryConfig struct {
	Parallelism int `conf:"query.parallelism"` // 0 = GOMAXPROCS
}

// MempoolConfig holds pending pool limits.
type MempoolConfig struct {
	MaxSize int `conf:"mempool.maxsize"`
}

// MetricsConfig controls the prometheus /metrics endpoint on the RPC listener.
type MetricsConfig struct {
	Enabled bool `conf:"metrics.enabled"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `conf:"log.level"`
	File  string `conf:"log.file"`
	JSON  bool   `conf:"log.json"`
}

// DefaultDataDir returns the platform-specific default data directory.
//
//	Linux:   ~/.addrindex
//	macOS:   ~/Library/Application Support/AddrIndex
//	Windows: %APPDATA%\AddrIndex
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".addrindex"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "AddrIndex")
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "AddrIndex")
		}
		return filepath.Join(home, "AppData", "Roaming", "AddrIndex")
	default:
		return filepath.Join(home, ".addrindex")
	}
}

// NetworkDir returns the network-specific data directory.
func (c *Config) NetworkDir() string {
	return filepath.Join(c.DataDir, string(c.Network))
}

// IndexDir returns the badger directory holding the tx and address indexes.
func (c *Config) IndexDir() string {
	return filepath.Join(c.NetworkDir(), "index")
}

// LogsDir returns the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// ConfigFile returns the config file path.
func (c *Config) ConfigFile() string {
	return filepath.Join(c.DataDir, ConfigFileName)
}
