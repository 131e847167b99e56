package tinypay

import (
	"crypto/sha256"
	"encoding/hex"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ReceiptCache retains completed-payment receipts for a bounded window
// so that merchants who lost a response can re-fetch the outcome instead
// of re-submitting. Entries expire after the configured TTL with lazy
// cleanup on insert.
type ReceiptCache struct {
	mu      sync.Mutex
	results map[string]*PaymentReceipt
	expiry  map[string]time.Time
	ttl     time.Duration
}

// NewReceiptCache creates a receipt cache with the specified TTL.
func NewReceiptCache(ttl time.Duration) *ReceiptCache {
	return &ReceiptCache{
		results: make(map[string]*PaymentReceipt),
		expiry:  make(map[string]time.Time),
		ttl:     ttl,
	}
}

// GenerateReceiptKey creates the lookup key for one settled payment.
// The commit hash already binds payer, recipient, amount, opt and asset,
// so hashing it together with the key triple is unique per payment.
func GenerateReceiptKey(asset Asset, payer, recipient common.Address, amount *big.Int, commitHash common.Hash) string {
	h := sha256.New()
	h.Write(asset.Bytes())
	h.Write(payer.Bytes())
	h.Write(recipient.Bytes())
	if amount != nil {
		h.Write(amount.Bytes())
	}
	h.Write(commitHash.Bytes())
	return hex.EncodeToString(h.Sum(nil))
}

// Put caches a receipt under the given key
func (c *ReceiptCache) Put(key string, receipt *PaymentReceipt) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.results[key] = receipt
	c.expiry[key] = time.Now().Add(c.ttl)

	c.cleanupExpiredLocked()
}

// Get retrieves a cached receipt if it exists and hasn't expired
func (c *ReceiptCache) Get(key string) (*PaymentReceipt, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiry, exists := c.expiry[key]
	if !exists {
		return nil, false
	}

	if time.Now().After(expiry) {
		// Expired - clean it up
		delete(c.results, key)
		delete(c.expiry, key)
		return nil, false
	}

	return c.results[key], true
}

// cleanupExpiredLocked removes expired entries. Must be called with lock held.
func (c *ReceiptCache) cleanupExpiredLocked() {
	now := time.Now()
	for key, expiry := range c.expiry {
		if now.After(expiry) {
			delete(c.results, key)
			delete(c.expiry, key)
		}
	}
}
