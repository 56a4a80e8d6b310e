package rpc

import (
	"encoding/json"

	"github.com/Klingon-tech/klingnet-addrindex/pkg/block"
	"github.com/Klingon-tech/klingnet-addrindex/pkg/tx"
)

// JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// bitcoind-compatible application error codes used by the address methods.
const (
	CodeMisc                = -1
	CodeTypeError           = -3
	CodeInvalidAddressOrKey = -5
)

// Request is a JSON-RPC request. Both 1.0 (no jsonrpc member) and 2.0
// envelopes are accepted.
type Request struct {
	JSONRPC string          `json:"jsonrpc,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      interface{}     `json:"id"`
}

// Response is a JSON-RPC response. JSONRPC echoes the request version.
type Response struct {
	JSONRPC string      `json:"jsonrpc,omitempty"`
	Result  interface{} `json:"result,omitempty"`
	Error   *Error      `json:"error,omitempty"`
	ID      interface{} `json:"id"`
}

// Error is a JSON-RPC error object.
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *Error) Error() string { return e.Message }

// ── Param types ─────────────────────────────────────────────────────────

// AddressQueryParam is the argument object of the getaddress* methods. It
// may be sent bare or wrapped in a one-element array.
type AddressQueryParam struct {
	Addresses []string `json:"addresses"`
	Start     *int64   `json:"start,omitempty"`
	End       *int64   `json:"end,omitempty"`
	Help      bool     `json:"help,omitempty"`
}

// HelpParam is the argument of the help method.
type HelpParam struct {
	Command string `json:"command"`
}

// TxSubmitParam is used by tx_submit.
type TxSubmitParam struct {
	Transaction *tx.Transaction `json:"transaction"`
}

// BlockParam is used by index_submitBlock and index_disconnectBlock.
type BlockParam struct {
	Block *block.Block `json:"block"`
}

// ── Result types ────────────────────────────────────────────────────────

// IndexInfoResult is returned by index_getInfo.
type IndexInfoResult struct {
	Height      uint64 `json:"height"`
	TipHash     string `json:"tip_hash,omitempty"`
	TxIndex     bool   `json:"txindex"`
	AddrIndex   bool   `json:"addrindex"`
	ReducedMode bool   `json:"reduced_mode"`
}

// MempoolInfoResult is returned by mempool_getInfo.
type MempoolInfoResult struct {
	Count int `json:"count"`
}

// MempoolContentResult is returned by mempool_getContent.
type MempoolContentResult struct {
	Hashes []string `json:"hashes"`
}

// TxSubmitResult is returned by tx_submit.
type TxSubmitResult struct {
	TxHash string `json:"tx_hash"`
}

// BlockResult is returned by index_submitBlock and index_disconnectBlock.
// Height and Hash describe the index tip after the call.
type BlockResult struct {
	Height uint64 `json:"height"`
	Hash   string `json:"hash"`
}
