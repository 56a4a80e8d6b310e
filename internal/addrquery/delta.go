package addrquery

// Movements returns the value changes of address in rtx: a debit for each
// input spending a coin owned by address, in input order, followed by a
// credit for each output paying address, in output order.
func Movements(address string, rtx *ResolvedTx) []Movement {
	var out []Movement
	for i, in := range rtx.Inputs {
		if in.Coin == nil || in.Coin.Address == "" || in.Coin.Address != address {
			continue
		}
		prev := in.PrevOut
		out = append(out, Movement{
			Index:    i,
			Satoshis: -int64(in.Coin.Value),
			PrevOut:  &prev,
		})
	}
	for i, o := range rtx.Outputs {
		if o.Address == "" || o.Address != address {
			continue
		}
		out = append(out, Movement{Index: i, Satoshis: int64(o.Value)})
	}
	return out
}

func toDelta(v View, m Movement) Delta {
	return Delta{
		TxID:       v.Tx.Hash.String(),
		Height:     int64(v.Tx.Height),
		BlockIndex: v.Tx.Index,
		Address:    v.Address,
		Index:      m.Index,
		Satoshis:   m.Satoshis,
	}
}

func toMempoolDelta(v View, m Movement) MempoolDelta {
	d := MempoolDelta{
		TxID:      v.Tx.Hash.String(),
		Timestamp: v.Tx.Time,
		Address:   v.Address,
		Index:     m.Index,
		Satoshis:  m.Satoshis,
	}
	if m.PrevOut != nil {
		txid := m.PrevOut.TxID.String()
		idx := m.PrevOut.Index
		d.PrevTxID = &txid
		d.PrevOut = &idx
	}
	return d
}
