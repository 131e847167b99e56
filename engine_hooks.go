package tinypay

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ============================================================================
// Payment Hook Context Types
// ============================================================================

// PaymentContext contains information passed to payment hooks
type PaymentContext struct {
	Ctx        context.Context
	Caller     common.Address
	Asset      Asset
	Payer      common.Address
	Recipient  common.Address
	Amount     *big.Int
	CommitHash common.Hash
	Timestamp  time.Time
}

// PaymentResultContext contains the completed payment and its context
type PaymentResultContext struct {
	PaymentContext
	Receipt *PaymentReceipt
}

// PaymentFailureContext contains a failed payment attempt and its context
type PaymentFailureContext struct {
	PaymentContext
	Error error
}

// BeforePaymentHookResult represents the result of a "before" hook.
// If Abort is true, the payment is rejected with the given Reason.
type BeforePaymentHookResult struct {
	Abort  bool
	Reason string
}

// ============================================================================
// Hook Function Types
// ============================================================================

// BeforePaymentHook runs after the engine resolved the authorization path
// but before any check or mutation. Returning Abort rejects the payment.
type BeforePaymentHook func(PaymentContext) (*BeforePaymentHookResult, error)

// AfterPaymentHook runs after a payment fully settled.
// Errors are ignored and do not affect the settled state.
type AfterPaymentHook func(PaymentResultContext) error

// OnPaymentFailureHook observes a rejected or failed payment attempt.
// It cannot recover the payment: every failure is final for that call.
type OnPaymentFailureHook func(PaymentFailureContext)

// DepositListener observes successful deposits
type DepositListener func(DepositEvent)

// WithdrawListener observes successful withdrawals
type WithdrawListener func(WithdrawEvent)

// PrecommitListener observes merchant precommits
type PrecommitListener func(PrecommitEvent)

// ============================================================================
// Hook Registration
// ============================================================================

func (e *Engine) OnBeforePayment(hook BeforePaymentHook) *Engine {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.beforePaymentHooks = append(e.beforePaymentHooks, hook)
	return e
}

func (e *Engine) OnAfterPayment(hook AfterPaymentHook) *Engine {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.afterPaymentHooks = append(e.afterPaymentHooks, hook)
	return e
}

func (e *Engine) OnPaymentFailure(hook OnPaymentFailureHook) *Engine {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.paymentFailureHooks = append(e.paymentFailureHooks, hook)
	return e
}

func (e *Engine) OnDeposit(l DepositListener) *Engine {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.depositListeners = append(e.depositListeners, l)
	return e
}

func (e *Engine) OnWithdraw(l WithdrawListener) *Engine {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.withdrawListeners = append(e.withdrawListeners, l)
	return e
}

func (e *Engine) OnPrecommit(l PrecommitListener) *Engine {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.precommitListeners = append(e.precommitListeners, l)
	return e
}
