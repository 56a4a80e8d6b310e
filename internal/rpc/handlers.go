package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Klingon-tech/klingnet-addrindex/internal/addrquery"
	"github.com/Klingon-tech/klingnet-addrindex/pkg/block"
)

// reducedModeMessage is the error text returned by the address methods when
// either index is disabled.
const reducedModeMessage = "Cannot get TX in reduced-index mode."

// ── Address endpoints ───────────────────────────────────────────────────

func (s *Server) handleGetAddressTxIDs(ctx context.Context, req *Request) (interface{}, *Error) {
	q, rpcErr := addressQuery(req)
	if rpcErr != nil {
		return nil, rpcErr
	}
	ids, err := s.queries.TxIDs(ctx, q)
	if err != nil {
		return nil, s.queryError(req.Method, err)
	}
	return ids, nil
}

func (s *Server) handleGetAddressDeltas(ctx context.Context, req *Request) (interface{}, *Error) {
	q, rpcErr := addressQuery(req)
	if rpcErr != nil {
		return nil, rpcErr
	}
	deltas, err := s.queries.Deltas(ctx, q)
	if err != nil {
		return nil, s.queryError(req.Method, err)
	}
	return deltas, nil
}

func (s *Server) handleGetAddressBalance(ctx context.Context, req *Request) (interface{}, *Error) {
	q, rpcErr := addressQuery(req)
	if rpcErr != nil {
		return nil, rpcErr
	}
	bal, err := s.queries.Balance(ctx, q)
	if err != nil {
		return nil, s.queryError(req.Method, err)
	}
	return bal, nil
}

func (s *Server) handleGetAddressUtxos(ctx context.Context, req *Request) (interface{}, *Error) {
	q, rpcErr := addressQuery(req)
	if rpcErr != nil {
		return nil, rpcErr
	}
	utxos, err := s.queries.Utxos(ctx, q)
	if err != nil {
		return nil, s.queryError(req.Method, err)
	}
	return utxos, nil
}

func (s *Server) handleGetAddressMempool(ctx context.Context, req *Request) (interface{}, *Error) {
	q, rpcErr := addressQuery(req)
	if rpcErr != nil {
		return nil, rpcErr
	}
	deltas, err := s.queries.Mempool(ctx, q)
	if err != nil {
		return nil, s.queryError(req.Method, err)
	}
	return deltas, nil
}

// addressQuery decodes the shared argument object of the address methods.
func addressQuery(req *Request) (addrquery.Request, *Error) {
	var p AddressQueryParam
	if err := parseParams(req, &p); err != nil {
		return addrquery.Request{}, err
	}
	return addrquery.Request{
		Addresses: p.Addresses,
		Start:     p.Start,
		End:       p.End,
		Help:      p.Help,
	}, nil
}

// queryError maps an address query failure onto a bitcoind-style error code.
func (s *Server) queryError(method string, err error) *Error {
	var usageErr *addrquery.UsageError
	var argErr *addrquery.ArgumentError
	switch {
	case errors.As(err, &usageErr):
		return &Error{Code: CodeMisc, Message: usageErr.Usage}
	case errors.Is(err, addrquery.ErrUnsupportedMode):
		return &Error{Code: CodeMisc, Message: reducedModeMessage}
	case errors.Is(err, addrquery.ErrInvalidAddress) && errors.As(err, &argErr):
		return &Error{Code: CodeInvalidAddressOrKey, Message: argErr.Msg}
	case errors.Is(err, addrquery.ErrInvalidArgument) && errors.As(err, &argErr):
		return &Error{Code: CodeTypeError, Message: argErr.Msg}
	case errors.Is(err, addrquery.ErrTxUnresolvable):
		return &Error{Code: CodeInvalidAddressOrKey, Message: txNotFoundMessage(err)}
	default:
		s.logger.Warn().Err(err).Str("method", method).Msg("Address query failed")
		return &Error{Code: CodeInternalError, Message: err.Error()}
	}
}

// txNotFoundMessage renders "Transaction not found: <txid>" from a wrapped
// ErrTxUnresolvable.
func txNotFoundMessage(err error) string {
	msg := err.Error()
	if i := strings.Index(msg, addrquery.ErrTxUnresolvable.Error()); i >= 0 {
		msg = msg[i+len(addrquery.ErrTxUnresolvable.Error()):]
	}
	return "Transaction not found" + msg
}

// ── Help ────────────────────────────────────────────────────────────────

var addressMethods = []string{
	addrquery.MethodBalance,
	addrquery.MethodDeltas,
	addrquery.MethodMempool,
	addrquery.MethodTxIDs,
	addrquery.MethodUtxos,
}

// handleHelp returns the call signature of one method, or of every address
// method when no command is given. Accepts ["<method>"] or {"command": ...}.
func (s *Server) handleHelp(req *Request) (interface{}, *Error) {
	var command string
	raw := bytes.TrimSpace(req.Params)
	switch {
	case len(raw) == 0 || bytes.Equal(raw, []byte("null")):
	case raw[0] == '[':
		var positional []string
		if err := json.Unmarshal(raw, &positional); err != nil {
			return nil, &Error{Code: CodeInvalidParams, Message: "invalid params: expected [\"<method>\"]"}
		}
		if len(positional) > 0 {
			command = positional[0]
		}
	default:
		var p HelpParam
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, &Error{Code: CodeInvalidParams, Message: "invalid params: expected {\"command\": ...}"}
		}
		command = p.Command
	}

	if command == "" {
		lines := make([]string, 0, len(addressMethods))
		for _, m := range addressMethods {
			lines = append(lines, addrquery.Usage(m))
		}
		sort.Strings(lines)
		return strings.Join(lines, "\n"), nil
	}
	u := addrquery.Usage(command)
	if u == "" {
		return "help: unknown command: " + command, nil
	}
	return u, nil
}

// ── Index / mempool endpoints ───────────────────────────────────────────

func (s *Server) handleIndexGetInfo(_ *Request) (interface{}, *Error) {
	if s.index == nil {
		return nil, &Error{Code: CodeMethodNotFound, Message: "index not available"}
	}
	opts := s.index.Options()
	res := &IndexInfoResult{
		TxIndex:     opts.TxIndex,
		AddrIndex:   opts.AddrIndex,
		ReducedMode: s.index.IsReducedMode(),
	}
	if height, hash, ok := s.index.Tip(); ok {
		res.Height = height
		res.TipHash = hash.String()
	}
	return res, nil
}

func (s *Server) handleMempoolGetInfo(_ *Request) (interface{}, *Error) {
	if s.pool == nil {
		return nil, &Error{Code: CodeMethodNotFound, Message: "mempool not available"}
	}
	return &MempoolInfoResult{Count: s.pool.Count()}, nil
}

func (s *Server) handleMempoolGetContent(_ *Request) (interface{}, *Error) {
	if s.pool == nil {
		return nil, &Error{Code: CodeMethodNotFound, Message: "mempool not available"}
	}
	hashes := s.pool.Hashes()
	hexHashes := make([]string, len(hashes))
	for i, h := range hashes {
		hexHashes[i] = h.String()
	}
	return &MempoolContentResult{Hashes: hexHashes}, nil
}

// ── Ingest ──────────────────────────────────────────────────────────────

// errReadOnly is returned by the ingest methods when no ingester is set.
var errReadOnly = &Error{Code: CodeMisc, Message: "index is read-only"}

func (s *Server) handleTxSubmit(req *Request) (interface{}, *Error) {
	if s.ingest == nil {
		return nil, errReadOnly
	}
	var params TxSubmitParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	if params.Transaction == nil {
		return nil, &Error{Code: CodeInvalidParams, Message: "transaction is required"}
	}
	if err := s.ingest.SubmitTransaction(params.Transaction); err != nil {
		return nil, &Error{Code: CodeInvalidParams, Message: fmt.Sprintf("rejected: %v", err)}
	}
	return &TxSubmitResult{TxHash: params.Transaction.Hash().String()}, nil
}

func (s *Server) blockParam(req *Request) (*block.Block, *Error) {
	if s.ingest == nil {
		return nil, errReadOnly
	}
	var params BlockParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	if params.Block == nil || params.Block.Header == nil {
		return nil, &Error{Code: CodeInvalidParams, Message: "block is required"}
	}
	return params.Block, nil
}

func (s *Server) handleSubmitBlock(req *Request) (interface{}, *Error) {
	blk, rpcErr := s.blockParam(req)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := blk.Validate(); err != nil {
		return nil, &Error{Code: CodeInvalidParams, Message: fmt.Sprintf("block rejected: %v", err)}
	}
	if err := s.ingest.ConnectBlock(blk); err != nil {
		return nil, &Error{Code: CodeInvalidParams, Message: fmt.Sprintf("block rejected: %v", err)}
	}
	return s.tipResult(), nil
}

func (s *Server) handleDisconnectBlock(req *Request) (interface{}, *Error) {
	blk, rpcErr := s.blockParam(req)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.ingest.DisconnectBlock(blk); err != nil {
		return nil, &Error{Code: CodeInvalidParams, Message: fmt.Sprintf("disconnect rejected: %v", err)}
	}
	return s.tipResult(), nil
}

func (s *Server) tipResult() *BlockResult {
	res := &BlockResult{}
	if s.index == nil {
		return res
	}
	if height, hash, ok := s.index.Tip(); ok {
		res.Height, res.Hash = height, hash.String()
	}
	return res
}
