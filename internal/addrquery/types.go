package addrquery

import (
	"math"

	"github.com/Klingon-tech/klingnet-addrindex/pkg/types"
)

// Height is a block height. Unconfirmed marks a mempool transaction.
type Height int64

// Height sentinels.
const (
	Unconfirmed Height = -1
	MaxHeight   Height = math.MaxInt64
)

// Range is an inclusive height interval.
type Range struct {
	Start Height
	End   Height
}

// Contains reports whether start <= h <= end.
func (r Range) Contains(h Height) bool {
	return r.Start <= h && h <= r.End
}

// boundOr returns *v as a height, or def when v is unset.
func boundOr(v *int64, def Height) Height {
	if v == nil {
		return def
	}
	return Height(*v)
}

// Record locates a transaction that touches an address. Height is
// Unconfirmed and Index is -1 for mempool transactions.
type Record struct {
	TxID   types.Hash
	Height Height
	Index  int32
}

// Coin is a previously created output as seen from the input spending it.
type Coin struct {
	Address string // canonical address, empty if the script has none
	Value   uint64
}

// CoinView holds the spent outputs of one transaction.
type CoinView struct {
	coins map[types.Outpoint]Coin
}

// NewCoinView returns an empty view.
func NewCoinView() *CoinView {
	return &CoinView{coins: make(map[types.Outpoint]Coin)}
}

// Add records the coin spent at op.
func (v *CoinView) Add(op types.Outpoint, c Coin) {
	v.coins[op] = c
}

// Get returns the coin spent at op, if it was resolved.
func (v *CoinView) Get(op types.Outpoint) (Coin, bool) {
	if v == nil {
		return Coin{}, false
	}
	c, ok := v.coins[op]
	return c, ok
}

// Len returns the number of resolved coins.
func (v *CoinView) Len() int {
	if v == nil {
		return 0
	}
	return len(v.coins)
}

// Input is a resolved transaction input. Coin is nil when the spent output
// could not be resolved (coinbase, or pruned data).
type Input struct {
	PrevOut types.Outpoint
	Coin    *Coin
}

// Output is a resolved transaction output.
type Output struct {
	Address string // canonical address, empty if the script has none
	Value   uint64
	Script  types.Script
}

// ResolvedTx is a transaction with its location and spent outputs attached.
// Time is unix seconds; zero means unknown.
type ResolvedTx struct {
	Hash    types.Hash
	Height  Height
	Index   int32
	Time    int64
	Inputs  []Input
	Outputs []Output
}

// Entry pairs a queried address with one of its records.
type Entry struct {
	Address string
	Record  Record
}

// View pairs a queried address with a resolved transaction.
type View struct {
	Address string
	Tx      *ResolvedTx
}

// Movement is one signed value change for an address within a transaction.
// PrevOut is set on debits only.
type Movement struct {
	Index    int
	Satoshis int64
	PrevOut  *types.Outpoint
}

// Delta is a confirmed-history movement (getaddressdeltas).
type Delta struct {
	TxID       string `json:"txid"`
	Height     int64  `json:"height"`
	BlockIndex int32  `json:"blockIndex"`
	Address    string `json:"address"`
	Index      int    `json:"index"`
	Satoshis   int64  `json:"satoshis"`
}

// MempoolDelta is an unconfirmed movement (getaddressmempool). Debits carry
// the outpoint they spend.
type MempoolDelta struct {
	TxID      string  `json:"txid"`
	Timestamp int64   `json:"timestamp"`
	Address   string  `json:"address"`
	Index     int     `json:"index"`
	Satoshis  int64   `json:"satoshis"`
	PrevTxID  *string `json:"prevtxid,omitempty"`
	PrevOut   *uint32 `json:"prevout,omitempty"`
}

// Balance aggregates all movements of the queried addresses.
type Balance struct {
	Balance  int64 `json:"balance"`
	Received int64 `json:"received"`
}

// Utxo is an output paid to a queried address. It is listed whether or not
// it has since been spent.
type Utxo struct {
	Address     string `json:"address"`
	TxID        string `json:"txid"`
	OutputIndex int    `json:"outputIndex"`
	Script      string `json:"script"`
	Satoshis    int64  `json:"satoshis"`
	Height      int64  `json:"height"`
}

// Request carries the arguments shared by every address query. Start and End
// are nil when the caller did not supply them.
type Request struct {
	Addresses []string `json:"addresses"`
	Start     *int64   `json:"start,omitempty"`
	End       *int64   `json:"end,omitempty"`
	Help      bool     `json:"-"`
}
