// Address index daemon.
//
// Usage:
//
//	addrindexd [--testnet] [--datadir=...]  Run daemon
//	addrindexd --help                       Show help
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Klingon-tech/klingnet-addrindex/config"
	klog "github.com/Klingon-tech/klingnet-addrindex/internal/log"
	"github.com/Klingon-tech/klingnet-addrindex/internal/node"
)

func main() {
	cfg, flags, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if flags.Help {
		config.PrintUsage()
		return
	}
	if flags.Version {
		fmt.Println("addrindexd version " + config.Version)
		return
	}

	n, err := node.New(cfg)
	if err != nil {
		klog.Fatal().Err(err).Msg("Failed to initialize node")
	}

	if err := n.Start(); err != nil {
		klog.Error().Err(err).Msg("Failed to start node")
		n.Stop()
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	klog.Info().Str("signal", sig.String()).Msg("Shutting down")

	n.Stop()
}
