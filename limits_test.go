package tinypay

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

var limitUser = common.HexToAddress("0xF000000000000000000000000000000000000001")

func TestLimitsDefaultUnlimited(t *testing.T) {
	p := NewLimitPolicy()

	if !p.AllowsPayment(limitUser, big.NewInt(1<<50)) {
		t.Fatal("Expected unconfigured user to be unlimited")
	}
	if !p.AllowsRefresh(limitUser, 1<<40) {
		t.Fatal("Expected unconfigured refresh quota to be unlimited")
	}
}

func TestPaymentLimitBoundary(t *testing.T) {
	p := NewLimitPolicy()
	p.SetPaymentLimit(limitUser, big.NewInt(100))

	if !p.AllowsPayment(limitUser, big.NewInt(100)) {
		t.Fatal("Expected amount at the limit to pass")
	}
	if p.AllowsPayment(limitUser, big.NewInt(101)) {
		t.Fatal("Expected amount above the limit to fail")
	}

	// setting back to zero lifts the ceiling
	p.SetPaymentLimit(limitUser, big.NewInt(0))
	if !p.AllowsPayment(limitUser, big.NewInt(101)) {
		t.Fatal("Expected zero limit to mean unlimited")
	}
}

func TestRefreshQuotaBoundary(t *testing.T) {
	p := NewLimitPolicy()
	p.SetTailUpdateLimit(limitUser, 3)

	if !p.AllowsRefresh(limitUser, 2) {
		t.Fatal("Expected refresh below the quota to pass")
	}
	if p.AllowsRefresh(limitUser, 3) {
		t.Fatal("Expected refresh at the quota to fail")
	}
}
