package tinypay

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Asset identifies a fungible asset held by the ledger.
// The zero address is the environment's native currency.
type Asset = common.Address

// NativeAsset is the allow-listed-by-default native currency identifier
var NativeAsset = Asset{}

// FeeDenominator is the basis-point denominator for fee math
const FeeDenominator = 10000

// MaxFeeRateBps is the highest fee rate InitSystem accepts (100%)
const MaxFeeRateBps = 10000

// Tail is a one-way hash-chain commitment. A spend must reveal the
// preimage whose sha256 digest equals the stored tail.
type Tail []byte

// SystemStats reports the cumulative per-asset deposit/withdrawal
// counters together with the global fee rate.
type SystemStats struct {
	TotalDeposited *big.Int `json:"totalDeposited"`
	TotalWithdrawn *big.Int `json:"totalWithdrawn"`
	FeeRateBps     uint64   `json:"feeRateBps"`
}

// UserLimits reports a user's configured ceilings alongside the number
// of tail refreshes already consumed.
type UserLimits struct {
	PaymentLimit    *big.Int `json:"paymentLimit"`    // 0 = unlimited
	TailRefreshes   uint64   `json:"tailRefreshes"`   // refreshes performed so far
	TailUpdateLimit uint64   `json:"tailUpdateLimit"` // 0 = unlimited
}

// PaymentReceipt is the durable record of one completed payment
type PaymentReceipt struct {
	ID              string         `json:"id"`
	Asset           Asset          `json:"asset"`
	Payer           common.Address `json:"payer"`
	Recipient       common.Address `json:"recipient"`
	Amount          *big.Int       `json:"amount"`
	Fee             *big.Int       `json:"fee"`
	CommitHash      common.Hash    `json:"commitHash"`
	PaymasterBypass bool           `json:"paymasterBypass"`
	Timestamp       time.Time      `json:"timestamp"`
}

// ============================================================================
// Observable Events
// ============================================================================

// PrecommitEvent is emitted when a merchant declares intended payment terms
type PrecommitEvent struct {
	ID         string         `json:"id"`
	Asset      Asset          `json:"asset"`
	Payer      common.Address `json:"payer"`
	Recipient  common.Address `json:"recipient"`
	Amount     *big.Int       `json:"amount"`
	CommitHash common.Hash    `json:"commitHash"`
	Merchant   common.Address `json:"merchant"`
	Timestamp  time.Time      `json:"timestamp"`
}

// DepositEvent is emitted after a successful deposit
type DepositEvent struct {
	ID        string         `json:"id"`
	Asset     Asset          `json:"asset"`
	User      common.Address `json:"user"`
	Amount    *big.Int       `json:"amount"`
	TailSet   bool           `json:"tailSet"`
	Timestamp time.Time      `json:"timestamp"`
}

// WithdrawEvent is emitted after a successful withdrawal
type WithdrawEvent struct {
	ID        string         `json:"id"`
	Asset     Asset          `json:"asset"`
	User      common.Address `json:"user"`
	Amount    *big.Int       `json:"amount"`
	Timestamp time.Time      `json:"timestamp"`
}

func cloneAmount(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}

// validAmount reports whether v is a usable monetary quantity (> 0)
func validAmount(v *big.Int) bool {
	return v != nil && v.Sign() > 0
}
