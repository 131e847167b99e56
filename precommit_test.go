package tinypay

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

var (
	pcAsset     = Asset(common.HexToAddress("0xE000000000000000000000000000000000000001"))
	pcPayer     = common.HexToAddress("0xE000000000000000000000000000000000000002")
	pcRecipient = common.HexToAddress("0xE000000000000000000000000000000000000003")
)

func TestPrecommitConsumeOnce(t *testing.T) {
	r := NewPrecommitRegistry()
	hash := common.HexToHash("0x01")

	r.Set(pcAsset, pcPayer, pcRecipient, hash)
	if _, ok := r.Get(pcAsset, pcPayer, pcRecipient); !ok {
		t.Fatal("Expected precommit to be stored")
	}

	if !r.Consume(pcAsset, pcPayer, pcRecipient, hash) {
		t.Fatal("Expected matching consume to succeed")
	}
	if r.Consume(pcAsset, pcPayer, pcRecipient, hash) {
		t.Fatal("Expected second consume to fail")
	}
}

func TestPrecommitMismatchLeavesEntry(t *testing.T) {
	r := NewPrecommitRegistry()
	hash := common.HexToHash("0x01")

	r.Set(pcAsset, pcPayer, pcRecipient, hash)
	if r.Consume(pcAsset, pcPayer, pcRecipient, common.HexToHash("0x02")) {
		t.Fatal("Expected mismatched consume to fail")
	}
	if _, ok := r.Get(pcAsset, pcPayer, pcRecipient); !ok {
		t.Fatal("Expected mismatched consume to leave the entry")
	}
}

func TestPrecommitOverwrite(t *testing.T) {
	r := NewPrecommitRegistry()
	old := common.HexToHash("0x01")
	newer := common.HexToHash("0x02")

	r.Set(pcAsset, pcPayer, pcRecipient, old)
	r.Set(pcAsset, pcPayer, pcRecipient, newer)

	// only the most recent declaration is honorable
	if r.Consume(pcAsset, pcPayer, pcRecipient, old) {
		t.Fatal("Expected overwritten precommit to be gone")
	}
	if !r.Consume(pcAsset, pcPayer, pcRecipient, newer) {
		t.Fatal("Expected latest precommit to consume")
	}
}

func TestPrecommitKeysAreIndependent(t *testing.T) {
	r := NewPrecommitRegistry()
	hash := common.HexToHash("0x01")
	other := common.HexToAddress("0xE000000000000000000000000000000000000004")

	r.Set(pcAsset, pcPayer, pcRecipient, hash)
	if r.Consume(pcAsset, pcPayer, other, hash) {
		t.Fatal("Expected different recipient key to miss")
	}
	if !r.Consume(pcAsset, pcPayer, pcRecipient, hash) {
		t.Fatal("Expected original key to still consume")
	}
}
