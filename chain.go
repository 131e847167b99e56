package tinypay

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
)

// SecretChain is a client-side one-way hash chain. Secrets are revealed
// front to back: hash(Secret(0)) equals Tail(), and after Secret(i) is
// spent the stored tail becomes Secret(i) itself, so Secret(i+1) must
// satisfy hash(Secret(i+1)) == Secret(i).
type SecretChain struct {
	secrets [][]byte
}

// NewSecretChain derives a chain of length n from a random final secret.
// n must be at least 1.
func NewSecretChain(n int) (*SecretChain, error) {
	if n < 1 {
		return nil, fmt.Errorf("chain length must be >= 1, got %d", n)
	}
	last := make([]byte, 32)
	if _, err := rand.Read(last); err != nil {
		return nil, err
	}
	return NewSecretChainFromSeed(last, n), nil
}

// NewSecretChainFromSeed derives a deterministic chain whose final secret
// is the given seed. Useful for tests and for wallets that re-derive
// chains from stored entropy.
func NewSecretChainFromSeed(seed []byte, n int) *SecretChain {
	secrets := make([][]byte, n)
	cur := append([]byte(nil), seed...)
	for i := n - 1; i >= 0; i-- {
		secrets[i] = cur
		sum := sha256.Sum256(cur)
		cur = sum[:]
	}
	return &SecretChain{secrets: secrets}
}

// Len returns the number of spendable secrets in the chain
func (c *SecretChain) Len() int {
	return len(c.secrets)
}

// Tail returns the initial commitment to arm the chain with
func (c *SecretChain) Tail() Tail {
	return TailDigest(c.secrets[0])
}

// Secret returns the i-th secret to reveal, in spend order
func (c *SecretChain) Secret(i int) []byte {
	return append([]byte(nil), c.secrets[i]...)
}
