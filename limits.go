package tinypay

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

type limitRecord struct {
	paymentLimit    *big.Int
	tailUpdateLimit uint64
}

// LimitPolicy holds the self-service per-user ceilings. A zero limit
// means unlimited.
type LimitPolicy struct {
	records map[common.Address]*limitRecord
}

// NewLimitPolicy creates an empty policy store
func NewLimitPolicy() *LimitPolicy {
	return &LimitPolicy{records: make(map[common.Address]*limitRecord)}
}

func (p *LimitPolicy) record(user common.Address) *limitRecord {
	rec, ok := p.records[user]
	if !ok {
		rec = &limitRecord{paymentLimit: new(big.Int)}
		p.records[user] = rec
	}
	return rec
}

// SetPaymentLimit sets the maximum single-payment amount for user
func (p *LimitPolicy) SetPaymentLimit(user common.Address, limit *big.Int) {
	p.record(user).paymentLimit.Set(limit)
}

// SetTailUpdateLimit sets the maximum number of tail refreshes for user
func (p *LimitPolicy) SetTailUpdateLimit(user common.Address, limit uint64) {
	p.record(user).tailUpdateLimit = limit
}

// PaymentLimit returns the configured single-payment ceiling (0 = unlimited)
func (p *LimitPolicy) PaymentLimit(user common.Address) *big.Int {
	if rec, ok := p.records[user]; ok {
		return new(big.Int).Set(rec.paymentLimit)
	}
	return new(big.Int)
}

// TailUpdateLimit returns the configured refresh ceiling (0 = unlimited)
func (p *LimitPolicy) TailUpdateLimit(user common.Address) uint64 {
	if rec, ok := p.records[user]; ok {
		return rec.tailUpdateLimit
	}
	return 0
}

// AllowsPayment reports whether amount clears the user's payment ceiling
func (p *LimitPolicy) AllowsPayment(user common.Address, amount *big.Int) bool {
	rec, ok := p.records[user]
	if !ok || rec.paymentLimit.Sign() == 0 {
		return true
	}
	return amount.Cmp(rec.paymentLimit) <= 0
}

// AllowsRefresh reports whether one more tail refresh fits the quota,
// given the number of refreshes already performed.
func (p *LimitPolicy) AllowsRefresh(user common.Address, performed uint64) bool {
	rec, ok := p.records[user]
	if !ok || rec.tailUpdateLimit == 0 {
		return true
	}
	return performed < rec.tailUpdateLimit
}
