package tinypay

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Transferor releases value out of the custodial ledger: withdrawals
// back to users, payment proceeds to recipients, claimed fees to the
// admin. Implementations must be atomic-or-error and must not call back
// into the engine; a callback during an in-flight transfer is rejected
// with reentrant_call.
type Transferor interface {
	Transfer(ctx context.Context, asset Asset, to common.Address, amount *big.Int) error
}

// NopTransferor discards outbound transfers. It is the default when no
// Transferor is configured, for deployments where the environment moves
// value itself and only the ledger state matters.
type NopTransferor struct{}

func (NopTransferor) Transfer(ctx context.Context, asset Asset, to common.Address, amount *big.Int) error {
	return nil
}

// MemoryTransferor records outbound transfers in memory. Intended for
// tests and examples that need to observe what recipients were paid.
type MemoryTransferor struct {
	mu   sync.Mutex
	paid map[accountKey]*big.Int
}

// NewMemoryTransferor creates an empty recording transferor
func NewMemoryTransferor() *MemoryTransferor {
	return &MemoryTransferor{paid: make(map[accountKey]*big.Int)}
}

func (m *MemoryTransferor) Transfer(ctx context.Context, asset Asset, to common.Address, amount *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := accountKey{to, asset}
	total, ok := m.paid[key]
	if !ok {
		total = new(big.Int)
		m.paid[key] = total
	}
	total.Add(total, amount)
	return nil
}

// Paid returns the cumulative amount transferred to (to, asset)
func (m *MemoryTransferor) Paid(to common.Address, asset Asset) *big.Int {
	m.mu.Lock()
	defer m.mu.Unlock()

	if total, ok := m.paid[accountKey{to, asset}]; ok {
		return new(big.Int).Set(total)
	}
	return new(big.Int)
}
