// Package tx defines the transaction model consumed by the address index.
package tx

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/Klingon-tech/klingnet-addrindex/pkg/crypto"
	"github.com/Klingon-tech/klingnet-addrindex/pkg/types"
)

// Transaction errors.
var (
	ErrNoOutputs        = errors.New("transaction has no outputs")
	ErrDuplicateInput   = errors.New("transaction spends the same outpoint twice")
	ErrMissingSignature = errors.New("input is missing signature or public key")
	ErrBadSignature     = errors.New("input signature does not verify")
	ErrValueOutOfRange  = errors.New("output value exceeds the maximum amount")
)

// Transaction represents a blockchain transaction.
type Transaction struct {
	Version  uint32   `json:"version"`
	Inputs   []Input  `json:"inputs"`
	Outputs  []Output `json:"outputs"`
	LockTime uint64   `json:"locktime"`
}

// Input references an output being spent.
type Input struct {
	PrevOut   types.Outpoint `json:"prevout"`
	Signature []byte         `json:"signature"`
	PubKey    []byte         `json:"pubkey"`
}

type inputJSON struct {
	PrevOut   types.Outpoint `json:"prevout"`
	Signature string         `json:"signature,omitempty"`
	PubKey    string         `json:"pubkey,omitempty"`
}

// MarshalJSON encodes the input with hex-encoded signature and pubkey.
func (in Input) MarshalJSON() ([]byte, error) {
	return json.Marshal(inputJSON{
		PrevOut:   in.PrevOut,
		Signature: hex.EncodeToString(in.Signature),
		PubKey:    hex.EncodeToString(in.PubKey),
	})
}

// UnmarshalJSON decodes an input with hex-encoded signature and pubkey.
func (in *Input) UnmarshalJSON(data []byte) error {
	var j inputJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	sig, err := decodeHexField(j.Signature)
	if err != nil {
		return fmt.Errorf("signature: %w", err)
	}
	pub, err := decodeHexField(j.PubKey)
	if err != nil {
		return fmt.Errorf("pubkey: %w", err)
	}
	in.PrevOut, in.Signature, in.PubKey = j.PrevOut, sig, pub
	return nil
}

func decodeHexField(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	return hex.DecodeString(s)
}

// Output defines a new spendable output.
type Output struct {
	Value  uint64       `json:"value"`
	Script types.Script `json:"script"`
}

// NewCoinbase builds the reward transaction of a block. The height is carried
// in the input signature field so every coinbase has a distinct ID.
func NewCoinbase(height uint64, outputs ...Output) *Transaction {
	return &Transaction{
		Version: 1,
		Inputs:  []Input{{Signature: binary.LittleEndian.AppendUint64(nil, height)}},
		Outputs: outputs,
	}
}

// IsCoinbase reports whether the transaction creates coins from nothing.
func (tx *Transaction) IsCoinbase() bool {
	return len(tx.Inputs) == 1 && tx.Inputs[0].PrevOut.IsZero()
}

// Hash computes the transaction ID (BLAKE3 hash of the signing bytes).
func (tx *Transaction) Hash() types.Hash {
	return crypto.Hash(tx.SigningBytes())
}

// SigningBytes returns the canonical byte representation used for hashing.
// Signatures are excluded except for coinbase data.
func (tx *Transaction) SigningBytes() []byte {
	var buf []byte
	buf = binary.LittleEndian.AppendUint32(buf, tx.Version)

	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(tx.Inputs)))
	for _, in := range tx.Inputs {
		buf = append(buf, in.PrevOut.TxID[:]...)
		buf = binary.LittleEndian.AppendUint32(buf, in.PrevOut.Index)
		if in.PrevOut.IsZero() && len(in.Signature) > 0 {
			buf = binary.LittleEndian.AppendUint32(buf, uint32(len(in.Signature)))
			buf = append(buf, in.Signature...)
		}
	}

	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(tx.Outputs)))
	for _, out := range tx.Outputs {
		buf = binary.LittleEndian.AppendUint64(buf, out.Value)
		buf = append(buf, byte(out.Script.Type))
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(out.Script.Data)))
		buf = append(buf, out.Script.Data...)
	}

	return binary.LittleEndian.AppendUint64(buf, tx.LockTime)
}

// Sign signs every input with key. All inputs share one signing hash.
func (tx *Transaction) Sign(key *crypto.PrivateKey) error {
	h := tx.Hash()
	sig, err := key.Sign(h[:])
	if err != nil {
		return err
	}
	pub := key.PublicKey()
	for i := range tx.Inputs {
		tx.Inputs[i].Signature = sig
		tx.Inputs[i].PubKey = pub
	}
	return nil
}

// Validate checks transaction structure and input signatures. It does not
// look up the outputs being spent.
func (tx *Transaction) Validate() error {
	if len(tx.Outputs) == 0 {
		return ErrNoOutputs
	}
	if _, err := tx.TotalOutputValue(); err != nil {
		return err
	}
	if tx.IsCoinbase() {
		return nil
	}

	seen := make(map[types.Outpoint]struct{}, len(tx.Inputs))
	for i, in := range tx.Inputs {
		if _, dup := seen[in.PrevOut]; dup {
			return fmt.Errorf("input %d: %w", i, ErrDuplicateInput)
		}
		seen[in.PrevOut] = struct{}{}
	}

	h := tx.Hash()
	for i, in := range tx.Inputs {
		if len(in.Signature) == 0 || len(in.PubKey) == 0 {
			return fmt.Errorf("input %d: %w", i, ErrMissingSignature)
		}
		if !crypto.VerifySignature(h[:], in.Signature, in.PubKey) {
			return fmt.Errorf("input %d: %w", i, ErrBadSignature)
		}
	}
	return nil
}

// TotalOutputValue returns the sum of all output values. Each value and the
// sum must fit in an int64 so address deltas keep their sign.
func (tx *Transaction) TotalOutputValue() (uint64, error) {
	var total uint64
	for i, out := range tx.Outputs {
		if out.Value > math.MaxInt64 {
			return 0, fmt.Errorf("output %d: %w", i, ErrValueOutOfRange)
		}
		if total > math.MaxInt64-out.Value {
			return 0, fmt.Errorf("output total: %w", ErrValueOutOfRange)
		}
		total += out.Value
	}
	return total, nil
}
