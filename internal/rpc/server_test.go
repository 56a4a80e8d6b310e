package rpc

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/Klingon-tech/klingnet-addrindex/config"
	"github.com/Klingon-tech/klingnet-addrindex/internal/addrquery"
	"github.com/Klingon-tech/klingnet-addrindex/internal/chainview"
	"github.com/Klingon-tech/klingnet-addrindex/internal/index"
	klog "github.com/Klingon-tech/klingnet-addrindex/internal/log"
	"github.com/Klingon-tech/klingnet-addrindex/internal/mempool"
	"github.com/Klingon-tech/klingnet-addrindex/internal/storage"
	"github.com/Klingon-tech/klingnet-addrindex/pkg/block"
	"github.com/Klingon-tech/klingnet-addrindex/pkg/crypto"
	"github.com/Klingon-tech/klingnet-addrindex/pkg/tx"
	"github.com/Klingon-tech/klingnet-addrindex/pkg/types"
)

const coin = 100_000_000

// testEnv holds all components for an RPC test.
type testEnv struct {
	server  *Server
	index   *index.Index
	pool    *mempool.Pool
	addrA   types.Address
	addrB   types.Address
	funding *tx.Transaction // pays A 50 coins at height 0
	spend   *tx.Transaction // A -> B 25, change 24, confirmed at height 1
	pending *tx.Transaction // A -> B 10, change 13, in the mempool
	url     string
}

func p2pkh(addr types.Address, value uint64) tx.Output {
	return tx.Output{Value: value, Script: types.Script{Type: types.ScriptTypeP2PKH, Data: addr[:]}}
}

func mine(t *testing.T, ix *index.Index, pool *mempool.Pool, txs ...*tx.Transaction) {
	t.Helper()
	var hdr block.Header
	if height, hash, ok := ix.Tip(); ok {
		hdr.Height, hdr.PrevHash = height+1, hash
	}
	hdr.Timestamp = 1700000000 + hdr.Height*60
	blk := block.NewBlock(&hdr, append([]*tx.Transaction{tx.NewCoinbase(hdr.Height + 1000)}, txs...))
	if err := ix.ConnectBlock(blk); err != nil {
		t.Fatalf("connect block %d: %v", hdr.Height, err)
	}
	pool.RemoveConfirmed(blk.Transactions)
}

func setupTestEnv(t *testing.T) *testEnv {
	return setupTestEnvWithConfig(t, config.RPCConfig{}, index.Options{TxIndex: true, AddrIndex: true})
}

func setupTestEnvWithConfig(t *testing.T, rpcCfg config.RPCConfig, opts index.Options) *testEnv {
	t.Helper()
	klog.Init("error", false, "")

	ix, err := index.New(storage.NewMemory(), opts)
	if err != nil {
		t.Fatalf("index: %v", err)
	}
	pool := mempool.New(ix, 100)
	pool.SetClock(func() time.Time { return time.Unix(1700000500, 0) })

	keyA, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	env := &testEnv{index: ix, pool: pool, addrA: keyA.Address(), addrB: types.Address{0xbb, 0x01}}

	env.funding = tx.NewCoinbase(0, p2pkh(env.addrA, 50*coin))
	env.spend = &tx.Transaction{
		Version: 1,
		Inputs:  []tx.Input{{PrevOut: types.Outpoint{TxID: env.funding.Hash(), Index: 0}}},
		Outputs: []tx.Output{p2pkh(env.addrB, 25*coin), p2pkh(env.addrA, 24*coin)},
	}
	if err := env.spend.Sign(keyA); err != nil {
		t.Fatalf("sign: %v", err)
	}
	env.pending = &tx.Transaction{
		Version: 1,
		Inputs:  []tx.Input{{PrevOut: types.Outpoint{TxID: env.spend.Hash(), Index: 1}}},
		Outputs: []tx.Output{p2pkh(env.addrB, 10*coin), p2pkh(env.addrA, 13*coin)},
	}
	if err := env.pending.Sign(keyA); err != nil {
		t.Fatalf("sign: %v", err)
	}

	if opts.TxIndex {
		mine(t, ix, pool, env.funding)
		mine(t, ix, pool, env.spend)
		if err := pool.Add(env.pending); err != nil {
			t.Fatalf("pool add: %v", err)
		}
	}

	view := chainview.New(ix, pool)
	svc := addrquery.New(view.Deps(), addrquery.Options{Parallelism: 4})
	env.server = New("127.0.0.1:0", svc, ix, pool, rpcCfg)
	env.server.EnableMetrics()
	if err := env.server.Start(); err != nil {
		t.Fatalf("start rpc: %v", err)
	}
	t.Cleanup(func() { env.server.Stop() })
	env.url = "http://" + env.server.Addr()
	return env
}

// rpcCall posts a JSON-RPC 2.0 request and decodes the response.
func rpcCall(t *testing.T, url, method string, params interface{}) Response {
	t.Helper()
	payload := map[string]interface{}{
		"jsonrpc": "2.0",
		"method":  method,
		"id":      1,
	}
	if params != nil {
		payload["params"] = params
	}
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	return postRaw(t, url, body)
}

func postRaw(t *testing.T, url string, body []byte) Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()

	var rpcResp Response
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return rpcResp
}

func decodeResult(t *testing.T, resp Response, target interface{}) {
	t.Helper()
	if resp.Error != nil {
		t.Fatalf("unexpected error %d: %s", resp.Error.Code, resp.Error.Message)
	}
	data, err := json.Marshal(resp.Result)
	if err != nil {
		t.Fatalf("marshal result: %v", err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
}

func addrs(as ...types.Address) map[string]interface{} {
	list := make([]string, len(as))
	for i, a := range as {
		list[i] = a.String()
	}
	return map[string]interface{}{"addresses": list}
}

// ── Tests ───────────────────────────────────────────────────────────────

func TestRPC_GetAddressTxIDs(t *testing.T) {
	env := setupTestEnv(t)

	var ids []string
	decodeResult(t, rpcCall(t, env.url, "getaddresstxids", []interface{}{addrs(env.addrA)}), &ids)

	want := []string{env.pending.Hash().String(), env.funding.Hash().String(), env.spend.Hash().String()}
	if len(ids) != len(want) {
		t.Fatalf("txids = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("txids[%d] = %s, want %s", i, ids[i], want[i])
		}
	}
}

func TestRPC_GetAddressTxIDs_Range(t *testing.T) {
	env := setupTestEnv(t)

	params := addrs(env.addrA)
	params["start"] = 1
	params["end"] = 1
	var ids []string
	decodeResult(t, rpcCall(t, env.url, "getaddresstxids", params), &ids)
	if len(ids) != 1 || ids[0] != env.spend.Hash().String() {
		t.Fatalf("txids = %v, want [%s]", ids, env.spend.Hash())
	}
}

func TestRPC_GetAddressDeltas(t *testing.T) {
	env := setupTestEnv(t)

	var deltas []addrquery.Delta
	decodeResult(t, rpcCall(t, env.url, "getaddressdeltas", []interface{}{addrs(env.addrA, env.addrB)}), &deltas)

	// funding +50 (A), spend -50 +24 (A), spend +25 (B)
	if len(deltas) != 4 {
		t.Fatalf("got %d deltas, want 4: %+v", len(deltas), deltas)
	}
	var sumA, sumB int64
	for i, d := range deltas {
		if i > 0 && d.Height < deltas[i-1].Height {
			t.Errorf("deltas not ordered by height at %d", i)
		}
		switch d.Address {
		case env.addrA.String():
			sumA += d.Satoshis
		case env.addrB.String():
			sumB += d.Satoshis
		}
	}
	if sumA != 24*coin || sumB != 25*coin {
		t.Errorf("sums = %d/%d, want %d/%d", sumA, sumB, 24*coin, 25*coin)
	}
}

func TestRPC_GetAddressBalance(t *testing.T) {
	env := setupTestEnv(t)

	var bal addrquery.Balance
	decodeResult(t, rpcCall(t, env.url, "getaddressbalance", addrs(env.addrA)), &bal)
	if bal.Balance != 24*coin {
		t.Errorf("balance = %d, want %d", bal.Balance, 24*coin)
	}
	if bal.Received != 74*coin {
		t.Errorf("received = %d, want %d", bal.Received, 74*coin)
	}
}

func TestRPC_GetAddressUtxos(t *testing.T) {
	env := setupTestEnv(t)

	var utxos []addrquery.Utxo
	decodeResult(t, rpcCall(t, env.url, "getaddressutxos", []interface{}{addrs(env.addrB)}), &utxos)
	if len(utxos) != 1 {
		t.Fatalf("got %d utxos, want 1", len(utxos))
	}
	u := utxos[0]
	if u.TxID != env.spend.Hash().String() || u.OutputIndex != 0 || u.Satoshis != 25*coin || u.Height != 1 {
		t.Errorf("utxo = %+v", u)
	}
	if !strings.HasPrefix(u.Script, "01") {
		t.Errorf("script = %s, want p2pkh type prefix", u.Script)
	}
}

func TestRPC_GetAddressMempool(t *testing.T) {
	env := setupTestEnv(t)

	var deltas []addrquery.MempoolDelta
	decodeResult(t, rpcCall(t, env.url, "getaddressmempool", []interface{}{addrs(env.addrB)}), &deltas)
	if len(deltas) != 1 {
		t.Fatalf("got %d mempool deltas, want 1", len(deltas))
	}
	d := deltas[0]
	if d.TxID != env.pending.Hash().String() || d.Satoshis != 10*coin || d.Timestamp != 1700000500 {
		t.Errorf("delta = %+v", d)
	}
	if d.PrevTxID != nil {
		t.Errorf("credit should carry no prevtxid")
	}
}

func TestRPC_JSONRPC1Envelope(t *testing.T) {
	env := setupTestEnv(t)

	body := `{"method":"getaddressbalance","params":[{"addresses":["` + env.addrB.String() + `"]}],"id":"x"}`
	resp := postRaw(t, env.url, []byte(body))
	var bal addrquery.Balance
	decodeResult(t, resp, &bal)
	if bal.Balance != 25*coin {
		t.Errorf("balance = %d", bal.Balance)
	}
	if resp.JSONRPC != "" {
		t.Errorf("jsonrpc = %q, want empty for 1.0 request", resp.JSONRPC)
	}
	if resp.ID != "x" {
		t.Errorf("id = %v", resp.ID)
	}
}

func TestRPC_MissingAddresses(t *testing.T) {
	env := setupTestEnv(t)

	for _, params := range []interface{}{nil, []interface{}{}, map[string]interface{}{}} {
		resp := rpcCall(t, env.url, "getaddresstxids", params)
		if resp.Error == nil {
			t.Fatalf("params %v: expected error", params)
		}
		if resp.Error.Code != CodeTypeError || resp.Error.Message != "Missing addresses parameter." {
			t.Errorf("params %v: error = %d %q", params, resp.Error.Code, resp.Error.Message)
		}
	}
}

func TestRPC_InvalidAddress(t *testing.T) {
	env := setupTestEnv(t)

	resp := rpcCall(t, env.url, "getaddressdeltas", map[string]interface{}{"addresses": []string{"not-an-address"}})
	if resp.Error == nil {
		t.Fatal("expected error")
	}
	if resp.Error.Code != CodeInvalidAddressOrKey {
		t.Errorf("code = %d, want %d", resp.Error.Code, CodeInvalidAddressOrKey)
	}
	if !strings.HasPrefix(resp.Error.Message, "Invalid address: not-an-address") {
		t.Errorf("message = %q", resp.Error.Message)
	}
}

func TestRPC_InvalidParams(t *testing.T) {
	env := setupTestEnv(t)

	for _, params := range []interface{}{"oops", []interface{}{42}, map[string]interface{}{"addresses": "x"}} {
		resp := rpcCall(t, env.url, "getaddressbalance", params)
		if resp.Error == nil || resp.Error.Code != CodeInvalidParams {
			t.Errorf("params %v: error = %+v, want code %d", params, resp.Error, CodeInvalidParams)
		}
	}
}

func TestRPC_HelpFlag(t *testing.T) {
	env := setupTestEnv(t)

	resp := rpcCall(t, env.url, "getaddressutxos", map[string]interface{}{"help": true})
	if resp.Error == nil {
		t.Fatal("expected usage error")
	}
	if resp.Error.Code != CodeMisc || resp.Error.Message != addrquery.Usage("getaddressutxos") {
		t.Errorf("error = %d %q", resp.Error.Code, resp.Error.Message)
	}
}

func TestRPC_HelpMethod(t *testing.T) {
	env := setupTestEnv(t)

	var text string
	decodeResult(t, rpcCall(t, env.url, "help", []string{"getaddressdeltas"}), &text)
	if text != addrquery.Usage("getaddressdeltas") {
		t.Errorf("help = %q", text)
	}

	decodeResult(t, rpcCall(t, env.url, "help", nil), &text)
	for _, m := range addressMethods {
		if !strings.Contains(text, m) {
			t.Errorf("help listing missing %s", m)
		}
	}
}

func TestRPC_ReducedMode(t *testing.T) {
	env := setupTestEnvWithConfig(t, config.RPCConfig{}, index.Options{AddrIndex: true})

	resp := rpcCall(t, env.url, "getaddresstxids", addrs(types.Address{0x01}))
	if resp.Error == nil {
		t.Fatal("expected error in reduced-index mode")
	}
	if resp.Error.Code != CodeMisc || resp.Error.Message != reducedModeMessage {
		t.Errorf("error = %d %q", resp.Error.Code, resp.Error.Message)
	}

	var info IndexInfoResult
	decodeResult(t, rpcCall(t, env.url, "index_getInfo", nil), &info)
	if !info.ReducedMode || info.TxIndex {
		t.Errorf("info = %+v", info)
	}
}

func TestRPC_IndexGetInfo(t *testing.T) {
	env := setupTestEnv(t)

	var info IndexInfoResult
	decodeResult(t, rpcCall(t, env.url, "index_getInfo", nil), &info)
	if info.Height != 1 || info.ReducedMode || !info.TxIndex || !info.AddrIndex {
		t.Errorf("info = %+v", info)
	}
	if info.TipHash == "" {
		t.Error("tip hash missing")
	}
}

func TestRPC_MempoolGetInfo(t *testing.T) {
	env := setupTestEnv(t)

	var info MempoolInfoResult
	decodeResult(t, rpcCall(t, env.url, "mempool_getInfo", nil), &info)
	if info.Count != 1 {
		t.Errorf("count = %d, want 1", info.Count)
	}

	var content MempoolContentResult
	decodeResult(t, rpcCall(t, env.url, "mempool_getContent", nil), &content)
	if len(content.Hashes) != 1 || content.Hashes[0] != env.pending.Hash().String() {
		t.Errorf("content = %v", content.Hashes)
	}
}

// poolIngester feeds the test index and mempool the way the daemon does.
type poolIngester struct {
	ix   *index.Index
	pool *mempool.Pool
}

func (p *poolIngester) ConnectBlock(blk *block.Block) error {
	if err := p.ix.ConnectBlock(blk); err != nil {
		return err
	}
	p.pool.RemoveConfirmed(blk.Transactions)
	return nil
}

func (p *poolIngester) DisconnectBlock(blk *block.Block) error {
	if err := p.ix.DisconnectBlock(blk); err != nil {
		return err
	}
	for _, t := range blk.Transactions {
		if !t.IsCoinbase() {
			p.pool.Add(t)
		}
	}
	return nil
}

func (p *poolIngester) SubmitTransaction(t *tx.Transaction) error {
	return p.pool.Add(t)
}

func nextTipBlock(env *testEnv, txs ...*tx.Transaction) *block.Block {
	height, hash, _ := env.index.Tip()
	hdr := &block.Header{Height: height + 1, PrevHash: hash, Timestamp: 1700000000 + (height+1)*60}
	cb := tx.NewCoinbase(hdr.Height, p2pkh(env.addrA, coin))
	return block.NewBlock(hdr, append([]*tx.Transaction{cb}, txs...))
}

func TestRPC_IngestReadOnly(t *testing.T) {
	env := setupTestEnv(t)

	for _, method := range []string{"tx_submit", "index_submitBlock", "index_disconnectBlock"} {
		resp := rpcCall(t, env.url, method, map[string]interface{}{})
		if resp.Error == nil || resp.Error.Code != CodeMisc {
			t.Errorf("%s error = %+v, want read-only", method, resp.Error)
		}
	}
}

func TestRPC_Ingest(t *testing.T) {
	env := setupTestEnv(t)
	env.server.SetIngester(&poolIngester{ix: env.index, pool: env.pool})

	env.pool.Remove(env.pending.Hash())
	var sub TxSubmitResult
	decodeResult(t, rpcCall(t, env.url, "tx_submit", map[string]interface{}{"transaction": env.pending}), &sub)
	if sub.TxHash != env.pending.Hash().String() {
		t.Errorf("tx_hash = %s, want %s", sub.TxHash, env.pending.Hash())
	}
	if !env.pool.Has(env.pending.Hash()) {
		t.Fatal("submitted tx should be pooled")
	}

	resp := rpcCall(t, env.url, "tx_submit", map[string]interface{}{"transaction": env.pending})
	if resp.Error == nil || resp.Error.Code != CodeInvalidParams {
		t.Errorf("duplicate submit error = %+v, want invalid params", resp.Error)
	}

	blk := nextTipBlock(env, env.pending)
	var tip BlockResult
	decodeResult(t, rpcCall(t, env.url, "index_submitBlock", map[string]interface{}{"block": blk}), &tip)
	if tip.Height != 2 || tip.Hash != blk.Hash().String() {
		t.Errorf("tip = %+v, want height 2", tip)
	}
	if env.pool.Count() != 0 {
		t.Errorf("mempool count = %d after confirm", env.pool.Count())
	}

	bad := nextTipBlock(env)
	bad.Header.MerkleRoot = types.Hash{0x01}
	resp = rpcCall(t, env.url, "index_submitBlock", map[string]interface{}{"block": bad})
	if resp.Error == nil || resp.Error.Code != CodeInvalidParams || !strings.Contains(resp.Error.Message, "merkle") {
		t.Errorf("bad block error = %+v, want merkle rejection", resp.Error)
	}

	resp = rpcCall(t, env.url, "index_submitBlock", map[string]interface{}{})
	if resp.Error == nil || resp.Error.Message != "block is required" {
		t.Errorf("empty submit error = %+v", resp.Error)
	}

	decodeResult(t, rpcCall(t, env.url, "index_disconnectBlock", map[string]interface{}{"block": blk}), &tip)
	if tip.Height != 1 {
		t.Errorf("tip after disconnect = %+v, want height 1", tip)
	}
	if !env.pool.Has(env.pending.Hash()) {
		t.Error("disconnected tx should return to the mempool")
	}
}

func TestRPC_MethodNotFound(t *testing.T) {
	env := setupTestEnv(t)

	resp := rpcCall(t, env.url, "nonexistent_method", nil)
	if resp.Error == nil || resp.Error.Code != CodeMethodNotFound {
		t.Fatalf("error = %+v, want method not found", resp.Error)
	}
}

func TestRPC_InvalidJSON(t *testing.T) {
	env := setupTestEnv(t)

	resp := postRaw(t, env.url, []byte("{not json"))
	if resp.Error == nil || resp.Error.Code != CodeParseError {
		t.Fatalf("error = %+v, want parse error", resp.Error)
	}
}

func TestRPC_BadVersion(t *testing.T) {
	env := setupTestEnv(t)

	resp := postRaw(t, env.url, []byte(`{"jsonrpc":"3.0","method":"help","id":1}`))
	if resp.Error == nil || resp.Error.Code != CodeInvalidRequest {
		t.Fatalf("error = %+v, want invalid request", resp.Error)
	}
}

func TestRPC_GetMethodNotAllowed(t *testing.T) {
	env := setupTestEnv(t)

	resp, err := http.Get(env.url)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	var rpcResp Response
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rpcResp.Error == nil || rpcResp.Error.Code != CodeInvalidRequest {
		t.Fatalf("error = %+v, want invalid request", rpcResp.Error)
	}
}

func TestRPC_Metrics(t *testing.T) {
	env := setupTestEnv(t)
	rpcCall(t, env.url, "getaddressbalance", addrs(env.addrA))

	resp, err := http.Get(env.url + "/metrics")
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	for _, name := range []string{"addrindex_rpc_requests_total", "addrindex_query_duration_seconds"} {
		if !strings.Contains(string(body), name) {
			t.Errorf("metrics missing %s", name)
		}
	}
}

func TestRPC_IPFilter_Allowed(t *testing.T) {
	env := setupTestEnvWithConfig(t, config.RPCConfig{AllowedIPs: []string{"127.0.0.1"}}, index.Options{TxIndex: true, AddrIndex: true})

	resp := rpcCall(t, env.url, "mempool_getInfo", nil)
	if resp.Error != nil {
		t.Fatalf("unexpected error: %s", resp.Error.Message)
	}
}

func TestRPC_IPFilter_Blocked(t *testing.T) {
	env := setupTestEnvWithConfig(t, config.RPCConfig{AllowedIPs: []string{"10.0.0.0/8"}}, index.Options{TxIndex: true, AddrIndex: true})

	for _, path := range []string{"/", "/metrics"} {
		resp, err := http.Post(env.url+path, "application/json", strings.NewReader(`{"jsonrpc":"2.0","method":"help","id":1}`))
		if err != nil {
			t.Fatalf("post: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusForbidden {
			t.Errorf("%s: status = %d, want 403", path, resp.StatusCode)
		}
	}
}

func TestRPC_CORS_SpecificOrigin(t *testing.T) {
	env := setupTestEnvWithConfig(t, config.RPCConfig{CORSOrigins: []string{"http://localhost:3000"}}, index.Options{TxIndex: true, AddrIndex: true})

	req, _ := http.NewRequest(http.MethodOptions, env.url, nil)
	req.Header.Set("Origin", "http://localhost:3000")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("preflight: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want 204", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("allow-origin = %q", got)
	}

	req, _ = http.NewRequest(http.MethodOptions, env.url, nil)
	req.Header.Set("Origin", "http://evil.example")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("preflight: %v", err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("unlisted origin got allow-origin %q", got)
	}
}

func TestParseParams(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    int
		wantErr bool
	}{
		{"absent", ``, 0, false},
		{"null", `null`, 0, false},
		{"object", `{"addresses":["a","b"]}`, 2, false},
		{"positional", `[{"addresses":["a"]}]`, 1, false},
		{"empty array", `[]`, 0, false},
		{"positional null", `[null]`, 0, false},
		{"scalar", `7`, 0, true},
		{"positional scalar", `["a"]`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p AddressQueryParam
			err := parseParams(&Request{Params: json.RawMessage(tt.raw)}, &p)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if len(p.Addresses) != tt.want {
				t.Errorf("addresses = %v", p.Addresses)
			}
		})
	}
}

func TestTxNotFoundMessage(t *testing.T) {
	err := addrquery.ErrTxUnresolvable
	if got := txNotFoundMessage(err); got != "Transaction not found" {
		t.Errorf("bare = %q", got)
	}
}
