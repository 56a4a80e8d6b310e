package mempool

import (
	"fmt"

	"github.com/Klingon-tech/klingnet-addrindex/pkg/tx"
)

// Structural limits applied before a transaction is pooled.
const (
	DefaultMaxTxSize = 100_000
	MaxTxInputs      = 2_500
	MaxTxOutputs     = 2_500
	MaxScriptData    = 10_000
)

// Policy defines structural acceptance rules. It does not look at fees.
type Policy struct {
	MaxTxSize int // Maximum transaction size in signing bytes.
}

// DefaultPolicy returns a policy with the default limits.
func DefaultPolicy() *Policy {
	return &Policy{MaxTxSize: DefaultMaxTxSize}
}

// Check validates a transaction against the policy limits.
func (p *Policy) Check(transaction *tx.Transaction) error {
	size := len(transaction.SigningBytes())
	if p.MaxTxSize > 0 && size > p.MaxTxSize {
		return fmt.Errorf("transaction too large: %d bytes, max %d", size, p.MaxTxSize)
	}
	if len(transaction.Inputs) > MaxTxInputs {
		return fmt.Errorf("too many inputs: %d, max %d", len(transaction.Inputs), MaxTxInputs)
	}
	if len(transaction.Outputs) > MaxTxOutputs {
		return fmt.Errorf("too many outputs: %d, max %d", len(transaction.Outputs), MaxTxOutputs)
	}
	for i, out := range transaction.Outputs {
		if len(out.Script.Data) > MaxScriptData {
			return fmt.Errorf("output %d script data too large: %d bytes, max %d", i, len(out.Script.Data), MaxScriptData)
		}
	}
	return nil
}
