package tinypay

import (
	"github.com/ethereum/go-ethereum/common"
)

// precommitKey identifies the single honorable precommit slot for a
// (asset, payer, recipient) triple
type precommitKey struct {
	asset     Asset
	payer     common.Address
	recipient common.Address
}

// PrecommitRegistry holds merchant-declared commit hashes. A new
// precommit for the same key overwrites the old one; a matching payment
// consumes the entry exactly once.
type PrecommitRegistry struct {
	pending map[precommitKey]common.Hash
}

// NewPrecommitRegistry creates an empty registry
func NewPrecommitRegistry() *PrecommitRegistry {
	return &PrecommitRegistry{pending: make(map[precommitKey]common.Hash)}
}

// Set stores (overwriting) the commit hash for the key
func (r *PrecommitRegistry) Set(asset Asset, payer, recipient common.Address, hash common.Hash) {
	r.pending[precommitKey{asset, payer, recipient}] = hash
}

// Get returns the pending commit hash for the key, if any
func (r *PrecommitRegistry) Get(asset Asset, payer, recipient common.Address) (common.Hash, bool) {
	hash, ok := r.pending[precommitKey{asset, payer, recipient}]
	return hash, ok
}

// Consume deletes the entry iff it exists and matches expected.
// On any mismatch state is left untouched.
func (r *PrecommitRegistry) Consume(asset Asset, payer, recipient common.Address, expected common.Hash) bool {
	key := precommitKey{asset, payer, recipient}
	stored, ok := r.pending[key]
	if !ok || stored != expected {
		return false
	}
	delete(r.pending, key)
	return true
}

// restore reinstates a consumed entry during rollback
func (r *PrecommitRegistry) restore(asset Asset, payer, recipient common.Address, hash common.Hash) {
	r.pending[precommitKey{asset, payer, recipient}] = hash
}
