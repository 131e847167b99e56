package tinypay

import (
	"bytes"
	"crypto/sha256"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeCommitHashDeterministic(t *testing.T) {
	payer := common.HexToAddress("0x01")
	recipient := common.HexToAddress("0x02")
	amount := big.NewInt(12345)
	opt := []byte("secret")

	a, err := ComputeCommitHash(payer, recipient, amount, opt, NativeAsset)
	require.NoError(t, err)
	b, err := ComputeCommitHash(payer, recipient, amount, opt, NativeAsset)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.NotEqual(t, common.Hash{}, a)
}

func TestComputeCommitHashBindsEveryField(t *testing.T) {
	payer := common.HexToAddress("0x01")
	recipient := common.HexToAddress("0x02")
	amount := big.NewInt(12345)
	opt := []byte("secret")
	token := Asset(common.HexToAddress("0x03"))

	base, err := ComputeCommitHash(payer, recipient, amount, opt, token)
	require.NoError(t, err)

	variants := []struct {
		name string
		hash func() (common.Hash, error)
	}{
		{"payer", func() (common.Hash, error) {
			return ComputeCommitHash(recipient, recipient, amount, opt, token)
		}},
		{"recipient", func() (common.Hash, error) {
			return ComputeCommitHash(payer, payer, amount, opt, token)
		}},
		{"amount", func() (common.Hash, error) {
			return ComputeCommitHash(payer, recipient, big.NewInt(12346), opt, token)
		}},
		{"opt", func() (common.Hash, error) {
			return ComputeCommitHash(payer, recipient, amount, []byte("Secret"), token)
		}},
		{"asset", func() (common.Hash, error) {
			return ComputeCommitHash(payer, recipient, amount, opt, NativeAsset)
		}},
	}
	for _, v := range variants {
		h, err := v.hash()
		require.NoError(t, err)
		assert.NotEqual(t, base, h, "changing %s must change the commit hash", v.name)
	}
}

func TestTailDigest(t *testing.T) {
	opt := []byte("preimage")
	want := sha256.Sum256(opt)
	assert.True(t, bytes.Equal(TailDigest(opt), want[:]))
}
