package tinypay

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

func TestReceiptCachePutGet(t *testing.T) {
	cache := NewReceiptCache(time.Minute)
	receipt := &PaymentReceipt{ID: "r-1", Amount: big.NewInt(10), Fee: big.NewInt(1)}

	cache.Put("key-1", receipt)

	got, ok := cache.Get("key-1")
	if !ok {
		t.Fatal("Expected cached receipt")
	}
	if got.ID != "r-1" {
		t.Fatalf("Expected receipt r-1, got %s", got.ID)
	}

	if _, ok := cache.Get("missing"); ok {
		t.Fatal("Expected miss for unknown key")
	}
}

func TestReceiptCacheExpiry(t *testing.T) {
	cache := NewReceiptCache(10 * time.Millisecond)
	cache.Put("key-1", &PaymentReceipt{ID: "r-1"})

	time.Sleep(25 * time.Millisecond)

	if _, ok := cache.Get("key-1"); ok {
		t.Fatal("Expected entry to expire")
	}
}

func TestGenerateReceiptKeyUniqueness(t *testing.T) {
	payer := common.HexToAddress("0x01")
	recipient := common.HexToAddress("0x02")
	amount := big.NewInt(100)
	hash := common.HexToHash("0xaa")

	base := GenerateReceiptKey(NativeAsset, payer, recipient, amount, hash)
	if base == GenerateReceiptKey(NativeAsset, payer, recipient, amount, common.HexToHash("0xbb")) {
		t.Fatal("Expected different commit hashes to produce different keys")
	}
	if base == GenerateReceiptKey(NativeAsset, recipient, payer, amount, hash) {
		t.Fatal("Expected swapped parties to produce different keys")
	}
	if base != GenerateReceiptKey(NativeAsset, payer, recipient, big.NewInt(100), hash) {
		t.Fatal("Expected identical payments to produce identical keys")
	}
}
