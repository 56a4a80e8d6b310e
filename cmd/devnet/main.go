// Command devnet boots an in-process address index seeded with synthetic
// activity and serves the RPC.
//
// Usage: go run ./cmd/devnet/ [--rpc-port=18545] [--blocks=5]
//
// It generates three keys (A, B, C), funds A in the first block, has A pay B
// in the second, mines empty blocks up to --blocks, and leaves one signed
// B -> C spend unconfirmed in the mempool. Query it with addrindex-cli.
// Ctrl+C to stop.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Klingon-tech/klingnet-addrindex/config"
	klog "github.com/Klingon-tech/klingnet-addrindex/internal/log"
	"github.com/Klingon-tech/klingnet-addrindex/internal/node"
	"github.com/Klingon-tech/klingnet-addrindex/internal/storage"
	"github.com/Klingon-tech/klingnet-addrindex/pkg/types"
)

func main() {
	port := flag.Int("rpc-port", 18545, "RPC listen port")
	blocks := flag.Int("blocks", 5, "Number of blocks to mine (min 2)")
	logLevel := flag.String("log-level", "info", "Log level")
	flag.Parse()

	klog.Init(*logLevel, false, "")
	logger := klog.WithComponent("devnet")
	types.SetAddressHRP(types.TestnetHRP)

	cfg := config.Default(config.Testnet)
	cfg.RPC.Port = *port
	cfg.RPC.AllowedIPs = []string{"127.0.0.1", "::1"}

	n, err := node.NewWithStorage(cfg, storage.NewMemory())
	if err != nil {
		logger.Fatal().Err(err).Msg("build node")
	}
	if err := n.Start(); err != nil {
		logger.Fatal().Err(err).Msg("start node")
	}
	defer n.Stop()

	sc, err := seed(n, *blocks)
	if err != nil {
		logger.Fatal().Err(err).Msg("seed devnet")
	}

	logger.Info().
		Uint64("height", n.Height()).
		Int("mempool", n.Pool().Count()).
		Str("rpc", n.RPCAddr()).
		Msg("Devnet ready")

	url := "http://" + n.RPCAddr()
	fmt.Printf("\nAddresses:\n  A  %s\n  B  %s\n  C  %s\n", sc.a, sc.b, sc.c)
	fmt.Printf("\nTry:\n")
	fmt.Printf("  addrindex-cli --rpc %s txids %s\n", url, sc.a)
	fmt.Printf("  addrindex-cli --rpc %s deltas %s %s\n", url, sc.a, sc.b)
	fmt.Printf("  addrindex-cli --rpc %s balance %s\n", url, sc.b)
	fmt.Printf("  addrindex-cli --rpc %s mempool %s\n\n", url, sc.c)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info().Msg("Shutting down")
}
