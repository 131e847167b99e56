package tinypay

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecretChainLinks(t *testing.T) {
	chain := NewSecretChainFromSeed([]byte("seed"), 5)
	require.Equal(t, 5, chain.Len())

	// the armed tail commits to the first secret
	assert.True(t, bytes.Equal(chain.Tail(), TailDigest(chain.Secret(0))))

	// each revealed secret is the commitment the next one must open
	for i := 0; i < chain.Len()-1; i++ {
		assert.True(t, bytes.Equal(chain.Secret(i), TailDigest(chain.Secret(i+1))),
			"link %d must be the digest of link %d", i, i+1)
	}
}

func TestSecretChainDeterministicFromSeed(t *testing.T) {
	a := NewSecretChainFromSeed([]byte("entropy"), 3)
	b := NewSecretChainFromSeed([]byte("entropy"), 3)
	assert.Equal(t, a.Tail(), b.Tail())
	assert.Equal(t, a.Secret(2), b.Secret(2))
}

func TestSecretChainRandom(t *testing.T) {
	a, err := NewSecretChain(2)
	require.NoError(t, err)
	b, err := NewSecretChain(2)
	require.NoError(t, err)
	assert.NotEqual(t, a.Tail(), b.Tail())

	_, err = NewSecretChain(0)
	require.Error(t, err)
}

func TestSecretChainSecretIsCopy(t *testing.T) {
	chain := NewSecretChainFromSeed([]byte("seed"), 2)
	s := chain.Secret(0)
	s[0] ^= 0xff
	assert.True(t, bytes.Equal(chain.Tail(), TailDigest(chain.Secret(0))),
		"mutating a returned secret must not corrupt the chain")
}
