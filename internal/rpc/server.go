// Package rpc implements the JSON-RPC API server.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/Klingon-tech/klingnet-addrindex/config"
	"github.com/Klingon-tech/klingnet-addrindex/internal/addrquery"
	"github.com/Klingon-tech/klingnet-addrindex/internal/index"
	klog "github.com/Klingon-tech/klingnet-addrindex/internal/log"
	"github.com/Klingon-tech/klingnet-addrindex/internal/mempool"
	"github.com/Klingon-tech/klingnet-addrindex/pkg/block"
	"github.com/Klingon-tech/klingnet-addrindex/pkg/tx"
)

// maxBodySize is the maximum allowed request body size (1 MB).
const maxBodySize = 1 << 20

// Ingester applies chain updates pushed by the process that follows the
// chain.
type Ingester interface {
	ConnectBlock(blk *block.Block) error
	DisconnectBlock(blk *block.Block) error
	SubmitTransaction(t *tx.Transaction) error
}

// Server is the JSON-RPC HTTP server.
type Server struct {
	addr        string
	queries     *addrquery.Service
	index       *index.Index   // For index_getInfo (nil = disabled).
	pool        *mempool.Pool  // For mempool_* (nil = disabled).
	ingest      Ingester       // For tx_submit and index_*Block (nil = read-only).
	mux         *http.ServeMux
	server      *http.Server
	logger      zerolog.Logger
	ln          net.Listener
	allowedNets []*net.IPNet // Empty = allow all.
	corsOrigins []string     // Empty = no CORS headers.
}

// New creates a new RPC server. The rpcCfg parameter controls IP filtering
// and CORS. A zero-value RPCConfig allows all IPs and disables CORS.
func New(addr string, queries *addrquery.Service, ix *index.Index, pool *mempool.Pool, rpcCfg ...config.RPCConfig) *Server {
	initMetrics()
	s := &Server{
		addr:    addr,
		queries: queries,
		index:   ix,
		pool:    pool,
		logger:  klog.WithComponent("rpc"),
	}

	if len(rpcCfg) > 0 {
		s.allowedNets = parseAllowedIPs(rpcCfg[0].AllowedIPs)
		s.corsOrigins = rpcCfg[0].CORSOrigins
	}

	s.mux = http.NewServeMux()
	s.mux.HandleFunc("/", s.handleRequest)

	s.server = &http.Server{
		Handler:      s.mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
	}
	return s
}

// EnableMetrics serves the prometheus registry at /metrics. Call before Start.
func (s *Server) EnableMetrics() {
	metrics := promhttp.Handler()
	s.mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		if !s.allowRemote(w, r) {
			return
		}
		metrics.ServeHTTP(w, r)
	})
}

// SetIngester enables the block and transaction submission methods.
func (s *Server) SetIngester(in Ingester) {
	s.ingest = in
}

// parseAllowedIPs converts string IP/CIDR entries into net.IPNet.
// Entries that are neither are skipped.
func parseAllowedIPs(entries []string) []*net.IPNet {
	var nets []*net.IPNet
	for _, entry := range entries {
		if _, ipNet, err := net.ParseCIDR(entry); err == nil {
			nets = append(nets, ipNet)
			continue
		}
		ip := net.ParseIP(entry)
		if ip == nil {
			continue
		}
		bits := 32
		if ip.To4() == nil {
			bits = 128
		}
		nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
	}
	return nets
}

// Start begins listening and serving in a background goroutine.
// It returns immediately after the listener is bound.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("rpc listen: %w", err)
	}
	s.ln = ln

	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("RPC server error")
		}
	}()
	return nil
}

// Addr returns the listener address (useful when bound to :0).
func (s *Server) Addr() string {
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.addr
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// allowRemote applies the IP allowlist, writing 403 when the peer is refused.
func (s *Server) allowRemote(w http.ResponseWriter, r *http.Request) bool {
	if len(s.allowedNets) == 0 {
		return true
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		http.Error(w, "forbidden", http.StatusForbidden)
		return false
	}
	ip := net.ParseIP(host)
	if ip == nil || !s.isIPAllowed(ip) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return false
	}
	return true
}

// handleRequest is the main HTTP handler for JSON-RPC requests.
func (s *Server) handleRequest(w http.ResponseWriter, r *http.Request) {
	if !s.allowRemote(w, r) {
		return
	}

	s.setCORSHeaders(w, r)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if r.Method != http.MethodPost {
		writeError(w, nil, CodeInvalidRequest, "only POST method is allowed")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		writeError(w, nil, CodeParseError, "failed to read request body")
		return
	}
	if len(body) > maxBodySize {
		writeError(w, nil, CodeInvalidRequest, "request body too large")
		return
	}

	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, nil, CodeParseError, "invalid JSON")
		return
	}

	switch req.JSONRPC {
	case "", "1.0", "2.0":
	default:
		writeError(w, req.ID, CodeInvalidRequest, `jsonrpc must be "1.0" or "2.0"`)
		return
	}
	if req.Method == "" {
		writeError(w, req.ID, CodeInvalidRequest, "method required")
		return
	}

	start := time.Now()
	result, rpcErr := s.dispatch(r.Context(), &req)
	observeRequest(req.Method, rpcErr, time.Since(start))

	if rpcErr != nil {
		writeJSON(w, Response{JSONRPC: req.JSONRPC, Error: rpcErr, ID: req.ID})
		return
	}
	writeJSON(w, Response{JSONRPC: req.JSONRPC, Result: result, ID: req.ID})
}

// dispatch routes a request to the appropriate handler.
func (s *Server) dispatch(ctx context.Context, req *Request) (interface{}, *Error) {
	switch req.Method {
	case addrquery.MethodTxIDs:
		return s.handleGetAddressTxIDs(ctx, req)
	case addrquery.MethodDeltas:
		return s.handleGetAddressDeltas(ctx, req)
	case addrquery.MethodBalance:
		return s.handleGetAddressBalance(ctx, req)
	case addrquery.MethodUtxos:
		return s.handleGetAddressUtxos(ctx, req)
	case addrquery.MethodMempool:
		return s.handleGetAddressMempool(ctx, req)
	case "help":
		return s.handleHelp(req)
	case "index_getInfo":
		return s.handleIndexGetInfo(req)
	case "mempool_getInfo":
		return s.handleMempoolGetInfo(req)
	case "mempool_getContent":
		return s.handleMempoolGetContent(req)
	case "tx_submit":
		return s.handleTxSubmit(req)
	case "index_submitBlock":
		return s.handleSubmitBlock(req)
	case "index_disconnectBlock":
		return s.handleDisconnectBlock(req)
	default:
		return nil, &Error{Code: CodeMethodNotFound, Message: fmt.Sprintf("method %q not found", req.Method)}
	}
}

// writeJSON writes a JSON-RPC response.
func writeJSON(w http.ResponseWriter, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// writeError writes a JSON-RPC error response.
func writeError(w http.ResponseWriter, id interface{}, code int, message string) {
	writeJSON(w, Response{
		JSONRPC: "2.0",
		Error:   &Error{Code: code, Message: message},
		ID:      id,
	})
}

// isIPAllowed checks if the IP is in the allowed networks list.
func (s *Server) isIPAllowed(ip net.IP) bool {
	for _, n := range s.allowedNets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// setCORSHeaders adds CORS headers based on the configured origins.
func (s *Server) setCORSHeaders(w http.ResponseWriter, r *http.Request) {
	if len(s.corsOrigins) == 0 {
		return
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return
	}

	allowed := false
	for _, o := range s.corsOrigins {
		if o == "*" {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			allowed = true
			break
		}
		if o == origin {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			allowed = true
			break
		}
	}
	if allowed {
		w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	}
}

// parseParams unmarshals the request params into target. Params may be the
// object itself or a positional array whose first element is the object.
// Absent or null params leave target untouched.
func parseParams(req *Request, target interface{}) *Error {
	raw := bytes.TrimSpace(req.Params)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}

	if raw[0] == '[' {
		var positional []json.RawMessage
		if err := json.Unmarshal(raw, &positional); err != nil {
			return &Error{Code: CodeInvalidParams, Message: fmt.Sprintf("invalid params: %v", err)}
		}
		if len(positional) == 0 {
			return nil
		}
		raw = bytes.TrimSpace(positional[0])
		if bytes.Equal(raw, []byte("null")) {
			return nil
		}
	}

	if len(raw) == 0 || raw[0] != '{' {
		return &Error{Code: CodeInvalidParams, Message: "invalid params: expected an object"}
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return &Error{Code: CodeInvalidParams, Message: fmt.Sprintf("invalid params: %v", err)}
	}
	return nil
}
