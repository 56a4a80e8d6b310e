// Package node assembles the address index daemon: storage, the tx and
// address indexes, the mempool, the query service and the RPC server.
package node

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Klingon-tech/klingnet-addrindex/config"
	"github.com/Klingon-tech/klingnet-addrindex/internal/addrquery"
	"github.com/Klingon-tech/klingnet-addrindex/internal/chainview"
	"github.com/Klingon-tech/klingnet-addrindex/internal/index"
	klog "github.com/Klingon-tech/klingnet-addrindex/internal/log"
	"github.com/Klingon-tech/klingnet-addrindex/internal/mempool"
	"github.com/Klingon-tech/klingnet-addrindex/internal/rpc"
	"github.com/Klingon-tech/klingnet-addrindex/internal/storage"
	"github.com/Klingon-tech/klingnet-addrindex/pkg/block"
	"github.com/Klingon-tech/klingnet-addrindex/pkg/tx"
	"github.com/Klingon-tech/klingnet-addrindex/pkg/types"
)

// statsInterval is how often Start logs index and mempool statistics.
const statsInterval = time.Minute

// Node is a fully-initialized address index daemon.
type Node struct {
	cfg    *config.Config
	logger zerolog.Logger

	db      storage.DB
	index   *index.Index
	pool    *mempool.Pool
	view    *chainview.View
	queries *addrquery.Service

	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New sets the network, initializes logging, opens the badger store under
// the data directory and assembles the node. It does NOT start background
// goroutines. Call Start() for that.
func New(cfg *config.Config) (*Node, error) {
	// ── 1. Set address HRP ──────────────────────────────────────────
	if cfg.Network == config.Testnet {
		types.SetAddressHRP(types.TestnetHRP)
	} else {
		types.SetAddressHRP(types.MainnetHRP)
	}

	// ── 2. Init logger ──────────────────────────────────────────────
	logFile := expandHome(cfg.Log.File)
	if logFile == "" {
		logsDir := cfg.LogsDir()
		if err := os.MkdirAll(logsDir, 0755); err != nil {
			return nil, fmt.Errorf("creating logs dir: %w", err)
		}
		logFile = filepath.Join(logsDir, "addrindexd.log")
	}
	if err := klog.Init(cfg.Log.Level, cfg.Log.JSON, logFile); err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}

	// ── 3. Open storage ─────────────────────────────────────────────
	dir := cfg.IndexDir()
	db, err := storage.OpenBadger(dir, storage.BadgerOptions{ReadOnly: cfg.Index.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("open database at %s: %w", dir, err)
	}
	klog.Storage.Info().Str("path", dir).Bool("readonly", cfg.Index.ReadOnly).Msg("Database opened")

	n, err := NewWithStorage(cfg, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return n, nil
}

// NewWithStorage assembles a node over an already opened store. The node
// takes ownership of db and closes it on Stop.
func NewWithStorage(cfg *config.Config, db storage.DB) (*Node, error) {
	logger := klog.Node
	logger.Info().
		Str("network", string(cfg.Network)).
		Bool("txindex", cfg.Index.TxIndex).
		Bool("addrindex", cfg.Index.AddrIndex).
		Msg("Starting address index node")

	// ── 4. Indexes ──────────────────────────────────────────────────
	ix, err := index.New(db, index.Options{TxIndex: cfg.Index.TxIndex, AddrIndex: cfg.Index.AddrIndex})
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	if height, hash, ok := ix.Tip(); ok {
		logger.Info().Uint64("height", height).Str("tip", hash.String()).Msg("Index loaded")
	}
	if ix.IsReducedMode() {
		logger.Warn().Msg("Reduced-index mode: address queries are disabled")
	}

	// ── 5. Mempool + query service ──────────────────────────────────
	pool := mempool.New(ix, cfg.Mempool.MaxSize)
	view := chainview.New(ix, pool)
	queries := addrquery.New(view.Deps(), addrquery.Options{Parallelism: cfg.Query.Parallelism})

	ctx, cancel := context.WithCancel(context.Background())
	n := &Node{
		cfg:     cfg,
		logger:  logger,
		db:      db,
		index:   ix,
		pool:    pool,
		view:    view,
		queries: queries,
		ctx:     ctx,
		cancel:  cancel,
	}

	// ── 6. RPC server ───────────────────────────────────────────────
	if cfg.RPC.Enabled {
		rpcAddr := fmt.Sprintf("%s:%d", cfg.RPC.Addr, cfg.RPC.Port)
		n.rpcServer = rpc.New(rpcAddr, queries, ix, pool, cfg.RPC)
		if cfg.Metrics.Enabled {
			n.rpcServer.EnableMetrics()
		}
		if !cfg.Index.ReadOnly {
			n.rpcServer.SetIngester(n)
		}
		if err := n.rpcServer.Start(); err != nil {
			cancel()
			return nil, fmt.Errorf("start RPC at %s: %w", rpcAddr, err)
		}
		logger.Info().
			Str("addr", n.rpcServer.Addr()).
			Bool("metrics", cfg.Metrics.Enabled).
			Bool("ingest", !cfg.Index.ReadOnly).
			Msg("RPC server started")
	} else {
		logger.Warn().Msg("RPC disabled by config")
	}

	return n, nil
}

// Start launches background goroutines.
func (n *Node) Start() error {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.runStatsLoop(statsInterval)
	}()
	return nil
}

// Stop shuts down the RPC server, waits for background goroutines and
// closes the store.
func (n *Node) Stop() {
	n.cancel()
	n.wg.Wait()

	if n.rpcServer != nil {
		if err := n.rpcServer.Stop(); err != nil {
			n.logger.Warn().Err(err).Msg("RPC shutdown")
		}
	}
	if n.db != nil {
		if err := n.db.Close(); err != nil {
			n.logger.Warn().Err(err).Msg("Closing database")
		}
	}
	n.logger.Info().Msg("Goodbye!")
}

// RPCAddr returns the address the RPC server is listening on.
func (n *Node) RPCAddr() string {
	if n.rpcServer == nil {
		return ""
	}
	return n.rpcServer.Addr()
}

// Height returns the height of the last indexed block.
func (n *Node) Height() uint64 {
	h, _, _ := n.index.Tip()
	return h
}

// Queries returns the address query service.
func (n *Node) Queries() *addrquery.Service { return n.queries }

// Index returns the tx and address index.
func (n *Node) Index() *index.Index { return n.index }

// Pool returns the mempool.
func (n *Node) Pool() *mempool.Pool { return n.pool }

// ConnectBlock indexes blk and drops its transactions (and any pending
// spends conflicting with them) from the mempool.
func (n *Node) ConnectBlock(blk *block.Block) error {
	if err := n.index.ConnectBlock(blk); err != nil {
		return fmt.Errorf("connect block %d: %w", blk.Header.Height, err)
	}
	removed := n.pool.RemoveConfirmed(blk.Transactions)
	n.logger.Debug().
		Uint64("height", blk.Header.Height).
		Int("txs", len(blk.Transactions)).
		Int("mempool_removed", removed).
		Msg("Block indexed")
	return nil
}

// DisconnectBlock removes the tip block from the index and returns its
// non-coinbase transactions to the mempool.
func (n *Node) DisconnectBlock(blk *block.Block) error {
	if err := n.index.DisconnectBlock(blk); err != nil {
		return fmt.Errorf("disconnect block %d: %w", blk.Header.Height, err)
	}
	reinserted := 0
	for _, t := range blk.Transactions {
		if t.IsCoinbase() {
			continue
		}
		if err := n.pool.Add(t); err == nil {
			reinserted++
		}
	}
	if reinserted > 0 {
		n.logger.Info().
			Int("reverted", len(blk.Transactions)).
			Int("reinserted", reinserted).
			Msg("Reverted transactions returned to mempool")
	}
	return nil
}

// SubmitTransaction admits a pending transaction to the mempool.
func (n *Node) SubmitTransaction(t *tx.Transaction) error {
	if err := n.pool.Add(t); err != nil {
		if errors.Is(err, mempool.ErrAlreadyExists) {
			return nil
		}
		return fmt.Errorf("mempool add %s: %w", t.Hash(), err)
	}
	return nil
}

func (n *Node) runStatsLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-n.ctx.Done():
			return
		case <-ticker.C:
			height, _, _ := n.index.Tip()
			n.logger.Info().
				Uint64("height", height).
				Int("mempool", n.pool.Count()).
				Msg("Status")
		}
	}
}
