package tinypay

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// accountKey identifies one custodial balance line
type accountKey struct {
	user  common.Address
	asset Asset
}

type assetStats struct {
	totalDeposited *big.Int
	totalWithdrawn *big.Int
}

// BalanceLedger holds per-(user, asset) custodial balances, the
// system-wide deposit/withdrawal counters and the claimable fee pool.
// It is a pure data store: callers are responsible for ordering and
// for locking at the operation level.
type BalanceLedger struct {
	accounts map[accountKey]*big.Int
	stats    map[Asset]*assetStats
	feePool  map[Asset]*big.Int
}

// NewBalanceLedger creates an empty ledger
func NewBalanceLedger() *BalanceLedger {
	return &BalanceLedger{
		accounts: make(map[accountKey]*big.Int),
		stats:    make(map[Asset]*assetStats),
		feePool:  make(map[Asset]*big.Int),
	}
}

// Balance returns the custodial balance for (user, asset).
// Accounts are created implicitly; an unknown account reads as zero.
func (l *BalanceLedger) Balance(user common.Address, asset Asset) *big.Int {
	if bal, ok := l.accounts[accountKey{user, asset}]; ok {
		return new(big.Int).Set(bal)
	}
	return new(big.Int)
}

// Credit adds amount to (user, asset)
func (l *BalanceLedger) Credit(user common.Address, asset Asset, amount *big.Int) {
	key := accountKey{user, asset}
	bal, ok := l.accounts[key]
	if !ok {
		bal = new(big.Int)
		l.accounts[key] = bal
	}
	bal.Add(bal, amount)
}

// Debit subtracts amount from (user, asset). It fails with
// insufficient_balance when the account would go negative.
func (l *BalanceLedger) Debit(user common.Address, asset Asset, amount *big.Int) error {
	key := accountKey{user, asset}
	bal, ok := l.accounts[key]
	if !ok || bal.Cmp(amount) < 0 {
		return NewEngineError(ErrCodeInsufficientBalance, "balance too low for debit", map[string]interface{}{
			"user":   user.Hex(),
			"amount": amount.String(),
		})
	}
	bal.Sub(bal, amount)
	return nil
}

// AddDeposited bumps the cumulative deposit counter for asset
func (l *BalanceLedger) AddDeposited(asset Asset, amount *big.Int) {
	l.assetStats(asset).totalDeposited.Add(l.assetStats(asset).totalDeposited, amount)
}

// AddWithdrawn bumps the cumulative withdrawal counter for asset
func (l *BalanceLedger) AddWithdrawn(asset Asset, amount *big.Int) {
	l.assetStats(asset).totalWithdrawn.Add(l.assetStats(asset).totalWithdrawn, amount)
}

// SubWithdrawn reverses a withdrawal counter bump during rollback
func (l *BalanceLedger) SubWithdrawn(asset Asset, amount *big.Int) {
	l.assetStats(asset).totalWithdrawn.Sub(l.assetStats(asset).totalWithdrawn, amount)
}

// Stats returns the cumulative counters for asset
func (l *BalanceLedger) Stats(asset Asset) (totalDeposited, totalWithdrawn *big.Int) {
	s := l.assetStats(asset)
	return new(big.Int).Set(s.totalDeposited), new(big.Int).Set(s.totalWithdrawn)
}

// AccrueFee adds amount to the claimable fee pool for asset
func (l *BalanceLedger) AccrueFee(asset Asset, amount *big.Int) {
	pool, ok := l.feePool[asset]
	if !ok {
		pool = new(big.Int)
		l.feePool[asset] = pool
	}
	pool.Add(pool, amount)
}

// SubFee reverses a fee accrual during rollback
func (l *BalanceLedger) SubFee(asset Asset, amount *big.Int) {
	if pool, ok := l.feePool[asset]; ok {
		pool.Sub(pool, amount)
	}
}

// FeePool returns the accrued, unclaimed fees for asset
func (l *BalanceLedger) FeePool(asset Asset) *big.Int {
	if pool, ok := l.feePool[asset]; ok {
		return new(big.Int).Set(pool)
	}
	return new(big.Int)
}

// DrainFeePool zeroes the fee pool for asset and returns what it held
func (l *BalanceLedger) DrainFeePool(asset Asset) *big.Int {
	pool, ok := l.feePool[asset]
	if !ok {
		return new(big.Int)
	}
	drained := new(big.Int).Set(pool)
	pool.SetInt64(0)
	return drained
}

// RestoreFeePool puts a drained amount back during rollback
func (l *BalanceLedger) RestoreFeePool(asset Asset, amount *big.Int) {
	l.AccrueFee(asset, amount)
}

func (l *BalanceLedger) assetStats(asset Asset) *assetStats {
	s, ok := l.stats[asset]
	if !ok {
		s = &assetStats{totalDeposited: new(big.Int), totalWithdrawn: new(big.Int)}
		l.stats[asset] = s
	}
	return s
}
