// Package rpcclient provides a JSON-RPC client for addrindex daemons.
package rpcclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Klingon-tech/klingnet-addrindex/internal/addrquery"
	"github.com/Klingon-tech/klingnet-addrindex/pkg/block"
	"github.com/Klingon-tech/klingnet-addrindex/pkg/tx"
)

// Client is a JSON-RPC 2.0 HTTP client.
type Client struct {
	endpoint string
	http     *http.Client
}

// New creates a new RPC client targeting the given endpoint URL.
func New(endpoint string) *Client {
	return NewWithTimeout(endpoint, 30*time.Second)
}

// NewWithTimeout creates a new RPC client with a custom HTTP timeout.
func NewWithTimeout(endpoint string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: timeout},
	}
}

type request struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
	ID      int         `json:"id"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
	ID      interface{}     `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// RPCError is returned when the server responds with an error.
type RPCError struct {
	Code    int
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Call invokes a JSON-RPC method and unmarshals the result into the provided pointer.
// If result is nil, the response result is discarded.
func (c *Client) Call(method string, params, result interface{}) error {
	return c.CallContext(context.Background(), method, params, result)
}

// CallContext is Call with a request context.
func (c *Client) CallContext(ctx context.Context, method string, params, result interface{}) error {
	body, err := json.Marshal(request{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      1,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("http request: %s", resp.Status)
	}

	var rpcResp response
	if err := json.Unmarshal(data, &rpcResp); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if rpcResp.Error != nil {
		return &RPCError{Code: rpcResp.Error.Code, Message: rpcResp.Error.Message}
	}

	if result != nil && rpcResp.Result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return fmt.Errorf("decode result: %w", err)
		}
	}
	return nil
}

// Query is the argument of the address methods. Start and End are only sent
// when set.
type Query struct {
	Addresses []string `json:"addresses"`
	Start     *int64   `json:"start,omitempty"`
	End       *int64   `json:"end,omitempty"`
}

// Params are sent positionally, the way bitcore clients do.
func (q Query) params() []interface{} {
	return []interface{}{q}
}

// TxIDs calls getaddresstxids.
func (c *Client) TxIDs(ctx context.Context, q Query) ([]string, error) {
	var ids []string
	err := c.CallContext(ctx, addrquery.MethodTxIDs, q.params(), &ids)
	return ids, err
}

// Deltas calls getaddressdeltas.
func (c *Client) Deltas(ctx context.Context, q Query) ([]addrquery.Delta, error) {
	var deltas []addrquery.Delta
	err := c.CallContext(ctx, addrquery.MethodDeltas, q.params(), &deltas)
	return deltas, err
}

// Balance calls getaddressbalance. Start and End are ignored by the server.
func (c *Client) Balance(ctx context.Context, q Query) (addrquery.Balance, error) {
	var bal addrquery.Balance
	err := c.CallContext(ctx, addrquery.MethodBalance, q.params(), &bal)
	return bal, err
}

// Utxos calls getaddressutxos.
func (c *Client) Utxos(ctx context.Context, q Query) ([]addrquery.Utxo, error) {
	var utxos []addrquery.Utxo
	err := c.CallContext(ctx, addrquery.MethodUtxos, q.params(), &utxos)
	return utxos, err
}

// Mempool calls getaddressmempool.
func (c *Client) Mempool(ctx context.Context, q Query) ([]addrquery.MempoolDelta, error) {
	var deltas []addrquery.MempoolDelta
	err := c.CallContext(ctx, addrquery.MethodMempool, q.params(), &deltas)
	return deltas, err
}

// Help returns the usage of method, or of every address method when method
// is empty.
func (c *Client) Help(ctx context.Context, method string) (string, error) {
	var params interface{}
	if method != "" {
		params = []string{method}
	}
	var text string
	err := c.CallContext(ctx, "help", params, &text)
	return text, err
}

// Tip is the index tip reported after a block submission.
type Tip struct {
	Height uint64 `json:"height"`
	Hash   string `json:"hash"`
}

// SubmitTransaction calls tx_submit and returns the transaction ID.
func (c *Client) SubmitTransaction(ctx context.Context, t *tx.Transaction) (string, error) {
	var res struct {
		TxHash string `json:"tx_hash"`
	}
	err := c.CallContext(ctx, "tx_submit", map[string]interface{}{"transaction": t}, &res)
	return res.TxHash, err
}

// SubmitBlock calls index_submitBlock.
func (c *Client) SubmitBlock(ctx context.Context, blk *block.Block) (Tip, error) {
	var tip Tip
	err := c.CallContext(ctx, "index_submitBlock", map[string]interface{}{"block": blk}, &tip)
	return tip, err
}

// DisconnectBlock calls index_disconnectBlock.
func (c *Client) DisconnectBlock(ctx context.Context, blk *block.Block) (Tip, error) {
	var tip Tip
	err := c.CallContext(ctx, "index_disconnectBlock", map[string]interface{}{"block": blk}, &tip)
	return tip, err
}
