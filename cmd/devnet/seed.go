package main

import (
	"fmt"
	"time"

	"github.com/Klingon-tech/klingnet-addrindex/internal/node"
	"github.com/Klingon-tech/klingnet-addrindex/pkg/block"
	"github.com/Klingon-tech/klingnet-addrindex/pkg/crypto"
	"github.com/Klingon-tech/klingnet-addrindex/pkg/tx"
	"github.com/Klingon-tech/klingnet-addrindex/pkg/types"
)

const coin = 100_000_000

// blockReward is paid to the miner address by every block after the first.
const blockReward = 1 * coin

// scenario records what seed produced.
type scenario struct {
	a, b, c types.Address
	miner   types.Address
	funding *tx.Transaction // coinbase paying 50 to A at height 0
	payment *tx.Transaction // A -> B 25, change 24, at height 1
	pending *tx.Transaction // B -> C 10, change 15, unconfirmed
}

func p2pkh(addr types.Address, value uint64) tx.Output {
	return tx.Output{Value: value, Script: types.Script{Type: types.ScriptTypeP2PKH, Data: addr[:]}}
}

// nextHeader returns a header extending the node's tip.
func nextHeader(n *node.Node) block.Header {
	hdr := block.Header{Version: 1, Timestamp: uint64(time.Now().Unix())}
	if height, hash, ok := n.Index().Tip(); ok {
		hdr.Height, hdr.PrevHash = height+1, hash
	}
	return hdr
}

// mine connects a block on top of the node's tip holding coinbase plus txs.
// A nil coinbase pays blockReward to miner.
func mine(n *node.Node, miner types.Address, coinbase *tx.Transaction, txs ...*tx.Transaction) error {
	hdr := nextHeader(n)
	if coinbase == nil {
		coinbase = tx.NewCoinbase(hdr.Height, p2pkh(miner, blockReward))
	}
	blk := block.NewBlock(&hdr, append([]*tx.Transaction{coinbase}, txs...))
	if err := blk.Validate(); err != nil {
		return fmt.Errorf("block %d: %w", hdr.Height, err)
	}
	return n.ConnectBlock(blk)
}

// seed mines at least two blocks of activity between three generated keys
// and leaves one spend pending.
func seed(n *node.Node, blocks int) (*scenario, error) {
	keys := make([]*crypto.PrivateKey, 4)
	for i := range keys {
		k, err := crypto.GenerateKey()
		if err != nil {
			return nil, fmt.Errorf("generate key: %w", err)
		}
		keys[i] = k
	}
	sc := &scenario{a: keys[0].Address(), b: keys[1].Address(), c: keys[2].Address(), miner: keys[3].Address()}

	sc.funding = tx.NewCoinbase(nextHeader(n).Height, p2pkh(sc.a, 50*coin))
	if err := mine(n, sc.miner, sc.funding); err != nil {
		return nil, err
	}

	sc.payment = &tx.Transaction{
		Version: 1,
		Inputs:  []tx.Input{{PrevOut: types.Outpoint{TxID: sc.funding.Hash(), Index: 0}}},
		Outputs: []tx.Output{p2pkh(sc.b, 25*coin), p2pkh(sc.a, 24*coin)},
	}
	if err := sc.payment.Sign(keys[0]); err != nil {
		return nil, fmt.Errorf("sign payment: %w", err)
	}
	if err := n.SubmitTransaction(sc.payment); err != nil {
		return nil, err
	}
	if err := mine(n, sc.miner, nil, sc.payment); err != nil {
		return nil, err
	}

	for i := 2; i < blocks; i++ {
		if err := mine(n, sc.miner, nil); err != nil {
			return nil, err
		}
	}

	sc.pending = &tx.Transaction{
		Version: 1,
		Inputs:  []tx.Input{{PrevOut: types.Outpoint{TxID: sc.payment.Hash(), Index: 0}}},
		Outputs: []tx.Output{p2pkh(sc.c, 10*coin), p2pkh(sc.b, 15*coin)},
	}
	if err := sc.pending.Sign(keys[1]); err != nil {
		return nil, fmt.Errorf("sign pending: %w", err)
	}
	if err := n.SubmitTransaction(sc.pending); err != nil {
		return nil, err
	}
	return sc, nil
}
