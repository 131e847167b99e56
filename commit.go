package tinypay

import (
	"crypto/sha256"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// commitArgs is the ABI tuple hashed into a commit hash:
// (address payer, address recipient, uint256 amount, bytes opt, address token)
var commitArgs = abi.Arguments{
	{Type: mustABIType("address")},
	{Type: mustABIType("address")},
	{Type: mustABIType("uint256")},
	{Type: mustABIType("bytes")},
	{Type: mustABIType("address")},
}

func mustABIType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(err)
	}
	return typ
}

// ComputeCommitHash derives the commit hash a merchant precommit stores
// and a completing payment must reproduce. The encoding is the ABI tuple
// above followed by a sha256 digest.
func ComputeCommitHash(payer, recipient common.Address, amount *big.Int, opt []byte, asset Asset) (common.Hash, error) {
	if amount == nil {
		amount = new(big.Int)
	}
	packed, err := commitArgs.Pack(payer, recipient, amount, opt, common.Address(asset))
	if err != nil {
		return common.Hash{}, err
	}
	return common.Hash(sha256.Sum256(packed)), nil
}

// TailDigest returns the tail that commits to the given secret,
// i.e. the value a user stores before revealing opt to spend.
func TailDigest(opt []byte) Tail {
	sum := sha256.Sum256(opt)
	return Tail(sum[:])
}
