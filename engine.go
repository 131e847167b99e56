// Package tinypay implements an escrow and payment-authorization engine.
// Users deposit funds into a custodial ledger and authorize individual
// payments to merchants with a rotating one-time-secret hash chain
// instead of a per-payment signature. The engine consumes the caller
// identity and transferred value from its environment and applies every
// operation atomically against its in-memory ledger state.
package tinypay

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// DefaultReceiptTTL bounds how long completed-payment receipts stay
// queryable when no TTL is configured.
const DefaultReceiptTTL = 15 * time.Minute

// Engine orchestrates the balance ledger, tail chain, precommit
// registry and limit policy behind one serialized entry point. All
// ledger structures are owned by the engine instance; independent
// engines share nothing.
type Engine struct {
	mu sync.Mutex

	// settling is up while an external transfer is in flight. Any
	// mutating call entering during that window is rejected instead of
	// interleaving with the not-yet-final operation.
	settling bool

	initialized bool
	admin       common.Address
	paymaster   common.Address
	feeRateBps  uint64
	supported   map[Asset]bool

	ledger     *BalanceLedger
	tails      *TailChain
	precommits *PrecommitRegistry
	limits     *LimitPolicy
	receipts   *ReceiptCache
	transferor Transferor

	beforePaymentHooks  []BeforePaymentHook
	afterPaymentHooks   []AfterPaymentHook
	paymentFailureHooks []OnPaymentFailureHook
	depositListeners    []DepositListener
	withdrawListeners   []WithdrawListener
	precommitListeners  []PrecommitListener
}

// Option configures an Engine instance
type Option func(*Engine)

// WithTransferor sets the external value mover
func WithTransferor(t Transferor) Option {
	return func(e *Engine) {
		e.transferor = t
	}
}

// WithReceiptTTL sets how long payment receipts stay queryable
func WithReceiptTTL(ttl time.Duration) Option {
	return func(e *Engine) {
		e.receipts = NewReceiptCache(ttl)
	}
}

// NewEngine creates an uninitialized engine. InitSystem must run before
// any state-mutating operation succeeds.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		supported:  make(map[Asset]bool),
		ledger:     NewBalanceLedger(),
		tails:      NewTailChain(),
		precommits: NewPrecommitRegistry(),
		limits:     NewLimitPolicy(),
		receipts:   NewReceiptCache(DefaultReceiptTTL),
		transferor: NopTransferor{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// lockMutating acquires the state lock for a mutating operation,
// rejecting calls that arrive while an external transfer is in flight.
func (e *Engine) lockMutating() error {
	e.mu.Lock()
	if e.settling {
		e.mu.Unlock()
		return NewEngineError(ErrCodeReentrantCall, "operation in flight, call rejected", nil)
	}
	return nil
}

func (e *Engine) requireInitializedLocked() error {
	if !e.initialized {
		return NewEngineError(ErrCodeNotInitialized, "system not initialized", nil)
	}
	return nil
}

// ============================================================================
// AdminConfig
// ============================================================================

// InitSystem performs the one-time system initialization. The caller
// becomes the admin; the paymaster and fee rate come from the
// arguments. The native asset is allow-listed immediately.
func (e *Engine) InitSystem(caller, paymaster common.Address, feeRateBps uint64) error {
	if err := e.lockMutating(); err != nil {
		return err
	}
	defer e.mu.Unlock()

	if e.initialized {
		return NewEngineError(ErrCodeAlreadyInitialized, "system already initialized", nil)
	}
	if feeRateBps > MaxFeeRateBps {
		return NewEngineError(ErrCodeInvalidFeeRate, "fee rate above 10000 bps", map[string]interface{}{
			"feeRateBps": feeRateBps,
		})
	}

	e.admin = caller
	e.paymaster = paymaster
	e.feeRateBps = feeRateBps
	e.supported[NativeAsset] = true
	e.initialized = true
	return nil
}

// AddSupportedAsset allow-lists an asset. Admin only.
func (e *Engine) AddSupportedAsset(caller common.Address, asset Asset) error {
	if err := e.lockMutating(); err != nil {
		return err
	}
	defer e.mu.Unlock()

	if err := e.requireInitializedLocked(); err != nil {
		return err
	}
	if caller != e.admin {
		return NewEngineError(ErrCodeUnauthorized, "only admin may manage assets", nil)
	}
	e.supported[asset] = true
	return nil
}

// RemoveSupportedAsset drops an asset from the allow-list. Existing
// balances stay withdrawable; new deposits and payments are refused.
func (e *Engine) RemoveSupportedAsset(caller common.Address, asset Asset) error {
	if err := e.lockMutating(); err != nil {
		return err
	}
	defer e.mu.Unlock()

	if err := e.requireInitializedLocked(); err != nil {
		return err
	}
	if caller != e.admin {
		return NewEngineError(ErrCodeUnauthorized, "only admin may manage assets", nil)
	}
	delete(e.supported, asset)
	return nil
}

// ============================================================================
// Deposits & Withdrawals
// ============================================================================

// Deposit credits the caller's custodial balance. For the native asset
// transferredValue must equal amount. A non-empty tail arms (or
// re-arms) the caller's hash chain in the same operation and counts
// against the tail-update quota; the whole deposit aborts if the quota
// is exhausted.
func (e *Engine) Deposit(ctx context.Context, caller common.Address, asset Asset, amount, transferredValue *big.Int, tail Tail) error {
	if err := e.lockMutating(); err != nil {
		return err
	}

	var event DepositEvent
	err := func() error {
		defer e.mu.Unlock()

		if err := e.requireInitializedLocked(); err != nil {
			return err
		}
		if !validAmount(amount) {
			return NewEngineError(ErrCodeInvalidAmount, "deposit amount must be positive", nil)
		}
		if !e.supported[asset] {
			return NewEngineError(ErrCodeAssetNotSupported, "asset not in allow-list", map[string]interface{}{
				"asset": asset.Hex(),
			})
		}
		if asset == NativeAsset && (transferredValue == nil || transferredValue.Cmp(amount) != 0) {
			return NewEngineError(ErrCodeValueMismatch, "transferred value does not match amount", nil)
		}
		tailSet := len(tail) > 0
		if tailSet && !e.limits.AllowsRefresh(caller, e.tails.RefreshCount(caller)) {
			return NewEngineError(ErrCodeTailUpdateLimitExceeded, "tail update quota exhausted", nil)
		}

		e.ledger.Credit(caller, asset, amount)
		e.ledger.AddDeposited(asset, amount)
		if tailSet {
			e.tails.Refresh(caller, tail)
		}

		event = DepositEvent{
			ID:        uuid.NewString(),
			Asset:     asset,
			User:      caller,
			Amount:    cloneAmount(amount),
			TailSet:   tailSet,
			Timestamp: time.Now(),
		}
		return nil
	}()
	if err != nil {
		return err
	}

	for _, l := range e.snapshotDepositListeners() {
		l(event)
	}
	return nil
}

// Withdraw debits the caller's custodial balance and releases the
// amount through the Transferor. Ledger state is mutated before the
// external transfer runs; a transfer failure rolls the debit back.
func (e *Engine) Withdraw(ctx context.Context, caller common.Address, asset Asset, amount *big.Int) error {
	if err := e.lockMutating(); err != nil {
		return err
	}

	if err := e.requireInitializedLocked(); err != nil {
		e.mu.Unlock()
		return err
	}
	if !validAmount(amount) {
		e.mu.Unlock()
		return NewEngineError(ErrCodeInvalidAmount, "withdraw amount must be positive", nil)
	}
	if err := e.ledger.Debit(caller, asset, amount); err != nil {
		e.mu.Unlock()
		return err
	}
	e.ledger.AddWithdrawn(asset, amount)

	e.settling = true
	e.mu.Unlock()

	transferErr := e.transferor.Transfer(ctx, asset, caller, amount)

	e.mu.Lock()
	e.settling = false
	if transferErr != nil {
		e.ledger.Credit(caller, asset, amount)
		e.ledger.SubWithdrawn(asset, amount)
		e.mu.Unlock()
		return NewEngineError(ErrCodeTransferFailed, "external transfer failed", map[string]interface{}{
			"cause": transferErr.Error(),
		})
	}
	e.mu.Unlock()

	event := WithdrawEvent{
		ID:        uuid.NewString(),
		Asset:     asset,
		User:      caller,
		Amount:    cloneAmount(amount),
		Timestamp: time.Now(),
	}
	for _, l := range e.snapshotWithdrawListeners() {
		l(event)
	}
	return nil
}

// ============================================================================
// TailChain & LimitPolicy
// ============================================================================

// RefreshTail replaces the caller's stored tail unconditionally, subject
// only to the tail-update quota. This is the arm operation a trusted
// device performs before payments; no preimage knowledge is required.
func (e *Engine) RefreshTail(caller common.Address, newTail Tail) error {
	if err := e.lockMutating(); err != nil {
		return err
	}
	defer e.mu.Unlock()

	if err := e.requireInitializedLocked(); err != nil {
		return err
	}
	if len(newTail) == 0 {
		return NewEngineError(ErrCodeInvalidTail, "tail must not be empty", nil)
	}
	if !e.limits.AllowsRefresh(caller, e.tails.RefreshCount(caller)) {
		return NewEngineError(ErrCodeTailUpdateLimitExceeded, "tail update quota exhausted", nil)
	}
	e.tails.Refresh(caller, newTail)
	return nil
}

// SetPaymentLimit sets the caller's own single-payment ceiling (0 = unlimited)
func (e *Engine) SetPaymentLimit(caller common.Address, limit *big.Int) error {
	if err := e.lockMutating(); err != nil {
		return err
	}
	defer e.mu.Unlock()

	if err := e.requireInitializedLocked(); err != nil {
		return err
	}
	if limit == nil || limit.Sign() < 0 {
		return NewEngineError(ErrCodeInvalidAmount, "limit must be >= 0", nil)
	}
	e.limits.SetPaymentLimit(caller, limit)
	return nil
}

// SetTailUpdatesLimit sets the caller's own tail-refresh ceiling (0 = unlimited)
func (e *Engine) SetTailUpdatesLimit(caller common.Address, limit uint64) error {
	if err := e.lockMutating(); err != nil {
		return err
	}
	defer e.mu.Unlock()

	if err := e.requireInitializedLocked(); err != nil {
		return err
	}
	e.limits.SetTailUpdateLimit(caller, limit)
	return nil
}

// ============================================================================
// PrecommitRegistry
// ============================================================================

// MerchantPrecommit declares intended payment terms and stores their
// commit hash keyed by (asset, payer, recipient), overwriting any prior
// declaration for the same key. No funds are reserved at this stage.
func (e *Engine) MerchantPrecommit(ctx context.Context, caller common.Address, asset Asset, payer, recipient common.Address, amount *big.Int, opt []byte) (common.Hash, error) {
	commitHash, err := ComputeCommitHash(payer, recipient, amount, opt, asset)
	if err != nil {
		return common.Hash{}, err
	}

	if lockErr := e.lockMutating(); lockErr != nil {
		return common.Hash{}, lockErr
	}

	var event PrecommitEvent
	err = func() error {
		defer e.mu.Unlock()

		if err := e.requireInitializedLocked(); err != nil {
			return err
		}
		if !validAmount(amount) {
			return NewEngineError(ErrCodeInvalidAmount, "precommit amount must be positive", nil)
		}
		e.precommits.Set(asset, payer, recipient, commitHash)

		event = PrecommitEvent{
			ID:         uuid.NewString(),
			Asset:      asset,
			Payer:      payer,
			Recipient:  recipient,
			Amount:     cloneAmount(amount),
			CommitHash: commitHash,
			Merchant:   caller,
			Timestamp:  time.Now(),
		}
		return nil
	}()
	if err != nil {
		return common.Hash{}, err
	}

	for _, l := range e.snapshotPrecommitListeners() {
		l(event)
	}
	return commitHash, nil
}

// ============================================================================
// PaymentEngine
// ============================================================================

// CompletePayment settles one payment. The paymaster skips precommit
// verification entirely; every other caller must present the commit
// hash of a live precommit for (asset, payer, recipient). The payer's
// revealed secret must be the preimage of their stored tail. All checks
// run before any mutation, so the first failing check aborts with zero
// state change; the external payout runs after the internal mutations
// and rolls them back on failure.
func (e *Engine) CompletePayment(ctx context.Context, caller common.Address, asset Asset, opt []byte, payer, recipient common.Address, amount *big.Int, commitHash common.Hash) (*PaymentReceipt, error) {
	hookCtx := PaymentContext{
		Ctx:        ctx,
		Caller:     caller,
		Asset:      asset,
		Payer:      payer,
		Recipient:  recipient,
		Amount:     cloneAmount(amount),
		CommitHash: commitHash,
		Timestamp:  time.Now(),
	}

	for _, hook := range e.snapshotBeforePaymentHooks() {
		result, err := hook(hookCtx)
		if err != nil {
			return nil, e.failPayment(hookCtx, err)
		}
		if result != nil && result.Abort {
			return nil, e.failPayment(hookCtx, NewEngineError(ErrCodePaymentAborted, result.Reason, nil))
		}
	}

	receipt, receiptKey, payout, rb, err := e.settlePayment(ctx, caller, asset, opt, payer, recipient, amount, commitHash)
	if err != nil {
		return nil, e.failPayment(hookCtx, err)
	}

	transferErr := e.transferor.Transfer(ctx, asset, recipient, payout)

	e.mu.Lock()
	e.settling = false
	if transferErr != nil {
		e.rollbackPaymentLocked(asset, payer, recipient, amount, receipt.Fee, rb)
		e.mu.Unlock()
		return nil, e.failPayment(hookCtx, NewEngineError(ErrCodeTransferFailed, "external transfer failed", map[string]interface{}{
			"cause": transferErr.Error(),
		}))
	}
	e.mu.Unlock()

	e.receipts.Put(receiptKey, receipt)

	resultCtx := PaymentResultContext{PaymentContext: hookCtx, Receipt: receipt}
	for _, hook := range e.snapshotAfterPaymentHooks() {
		_ = hook(resultCtx) // observers must not affect the settled state
	}
	return receipt, nil
}

// paymentRollback captures what a failed external payout must reverse
type paymentRollback struct {
	prevTail      Tail
	hadPrecommit  bool
	precommitHash common.Hash
}

// settlePayment runs the ordered checks and, if all pass, applies every
// internal mutation. It returns with the settling guard up; the caller
// performs the external payout and clears the guard.
func (e *Engine) settlePayment(ctx context.Context, caller common.Address, asset Asset, opt []byte, payer, recipient common.Address, amount *big.Int, commitHash common.Hash) (*PaymentReceipt, string, *big.Int, *paymentRollback, error) {
	if err := e.lockMutating(); err != nil {
		return nil, "", nil, nil, err
	}

	fail := func(err error) (*PaymentReceipt, string, *big.Int, *paymentRollback, error) {
		e.mu.Unlock()
		return nil, "", nil, nil, err
	}

	if err := e.requireInitializedLocked(); err != nil {
		return fail(err)
	}
	if !validAmount(amount) {
		return fail(NewEngineError(ErrCodeInvalidAmount, "payment amount must be positive", nil))
	}
	if !e.supported[asset] {
		return fail(NewEngineError(ErrCodeAssetNotSupported, "asset not in allow-list", map[string]interface{}{
			"asset": asset.Hex(),
		}))
	}

	bypass := caller == e.paymaster

	// Check 1: precommit, unless the paymaster is settling
	var expected common.Hash
	if !bypass {
		var err error
		expected, err = ComputeCommitHash(payer, recipient, amount, opt, asset)
		if err != nil {
			return fail(err)
		}
		if commitHash != expected {
			return fail(NewEngineError(ErrCodePrecommitMismatch, "commit hash does not match payment terms", nil))
		}
		stored, ok := e.precommits.Get(asset, payer, recipient)
		if !ok {
			return fail(NewEngineError(ErrCodeNoPrecommit, "no live precommit for payment key", nil))
		}
		if stored != expected {
			return fail(NewEngineError(ErrCodePrecommitMismatch, "stored precommit does not match payment terms", nil))
		}
	}

	// Check 2: payment ceiling
	if !e.limits.AllowsPayment(payer, amount) {
		return fail(NewEngineError(ErrCodePaymentLimitExceeded, "amount above payer's payment limit", nil))
	}

	// Check 3: tail preimage
	if !e.tails.Matches(payer, opt) {
		return fail(NewEngineError(ErrCodeInvalidOpt, "revealed secret does not match stored tail", nil))
	}

	// Check 4: funds
	if e.ledger.Balance(payer, asset).Cmp(amount) < 0 {
		return fail(NewEngineError(ErrCodeInsufficientBalance, "payer balance below amount", nil))
	}

	// All checks passed: mutate together
	if !bypass {
		e.precommits.Consume(asset, payer, recipient, expected)
	}
	prevTail := e.tails.Tail(payer)
	e.tails.Advance(payer, opt)

	fee := new(big.Int).Mul(amount, new(big.Int).SetUint64(e.feeRateBps))
	fee.Div(fee, big.NewInt(FeeDenominator))
	payout := new(big.Int).Sub(amount, fee)

	if err := e.ledger.Debit(payer, asset, amount); err != nil {
		// unreachable after check 4; restore the tail defensively
		e.tails.restore(payer, prevTail)
		if !bypass {
			e.precommits.restore(asset, payer, recipient, expected)
		}
		return fail(err)
	}
	e.ledger.AccrueFee(asset, fee)
	e.ledger.AddWithdrawn(asset, amount)

	receipt := &PaymentReceipt{
		ID:              uuid.NewString(),
		Asset:           asset,
		Payer:           payer,
		Recipient:       recipient,
		Amount:          cloneAmount(amount),
		Fee:             fee,
		CommitHash:      commitHash,
		PaymasterBypass: bypass,
		Timestamp:       time.Now(),
	}
	rb := &paymentRollback{
		prevTail:      prevTail,
		hadPrecommit:  !bypass,
		precommitHash: expected,
	}
	receiptKey := GenerateReceiptKey(asset, payer, recipient, amount, commitHash)

	e.settling = true
	e.mu.Unlock()
	return receipt, receiptKey, payout, rb, nil
}

// rollbackPaymentLocked reverses every internal mutation of a payment
// whose external payout failed. Must be called with the lock held.
func (e *Engine) rollbackPaymentLocked(asset Asset, payer, recipient common.Address, amount, fee *big.Int, rb *paymentRollback) {
	e.ledger.Credit(payer, asset, amount)
	e.ledger.SubFee(asset, fee)
	e.ledger.SubWithdrawn(asset, amount)
	e.tails.restore(payer, rb.prevTail)
	if rb.hadPrecommit {
		e.precommits.restore(asset, payer, recipient, rb.precommitHash)
	}
}

func (e *Engine) failPayment(hookCtx PaymentContext, err error) error {
	failureCtx := PaymentFailureContext{PaymentContext: hookCtx, Error: err}
	for _, hook := range e.snapshotPaymentFailureHooks() {
		hook(failureCtx)
	}
	return err
}

// ClaimFees drains the accrued fee pool for an asset to the admin
// through the Transferor. Admin only.
func (e *Engine) ClaimFees(ctx context.Context, caller common.Address, asset Asset) (*big.Int, error) {
	if err := e.lockMutating(); err != nil {
		return nil, err
	}

	if err := e.requireInitializedLocked(); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	if caller != e.admin {
		e.mu.Unlock()
		return nil, NewEngineError(ErrCodeUnauthorized, "only admin may claim fees", nil)
	}
	drained := e.ledger.DrainFeePool(asset)
	if drained.Sign() == 0 {
		e.mu.Unlock()
		return drained, nil
	}
	admin := e.admin

	e.settling = true
	e.mu.Unlock()

	transferErr := e.transferor.Transfer(ctx, asset, admin, drained)

	e.mu.Lock()
	e.settling = false
	if transferErr != nil {
		e.ledger.RestoreFeePool(asset, drained)
		e.mu.Unlock()
		return nil, NewEngineError(ErrCodeTransferFailed, "external transfer failed", map[string]interface{}{
			"cause": transferErr.Error(),
		})
	}
	e.mu.Unlock()
	return drained, nil
}

// ============================================================================
// Reads
// ============================================================================

// Balance returns the custodial balance for (user, asset)
func (e *Engine) Balance(user common.Address, asset Asset) *big.Int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.Balance(user, asset)
}

// UserTail returns the user's stored tail, nil when unset
func (e *Engine) UserTail(user common.Address) Tail {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tails.Tail(user)
}

// SystemStats returns the cumulative counters for asset and the fee rate
func (e *Engine) SystemStats(asset Asset) SystemStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	deposited, withdrawn := e.ledger.Stats(asset)
	return SystemStats{
		TotalDeposited: deposited,
		TotalWithdrawn: withdrawn,
		FeeRateBps:     e.feeRateBps,
	}
}

// GetUserLimits returns the user's ceilings and consumed tail refreshes
func (e *Engine) GetUserLimits(user common.Address) UserLimits {
	e.mu.Lock()
	defer e.mu.Unlock()
	return UserLimits{
		PaymentLimit:    e.limits.PaymentLimit(user),
		TailRefreshes:   e.tails.RefreshCount(user),
		TailUpdateLimit: e.limits.TailUpdateLimit(user),
	}
}

// IsAssetSupported reports whether asset is on the allow-list
func (e *Engine) IsAssetSupported(asset Asset) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.supported[asset]
}

// FeePool returns the accrued, unclaimed fees for asset
func (e *Engine) FeePool(asset Asset) *big.Int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.FeePool(asset)
}

// Receipt returns the cached receipt for a settled payment, if present
func (e *Engine) Receipt(key string) (*PaymentReceipt, bool) {
	return e.receipts.Get(key)
}

// Admin returns the admin identity
func (e *Engine) Admin() common.Address {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.admin
}

// Paymaster returns the privileged bypass identity
func (e *Engine) Paymaster() common.Address {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paymaster
}

// FeeRate returns the global fee rate in basis points
func (e *Engine) FeeRate() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.feeRateBps
}

// Initialized reports whether InitSystem has run
func (e *Engine) Initialized() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.initialized
}

// ============================================================================
// Hook snapshots
// ============================================================================

func (e *Engine) snapshotBeforePaymentHooks() []BeforePaymentHook {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]BeforePaymentHook(nil), e.beforePaymentHooks...)
}

func (e *Engine) snapshotAfterPaymentHooks() []AfterPaymentHook {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]AfterPaymentHook(nil), e.afterPaymentHooks...)
}

func (e *Engine) snapshotPaymentFailureHooks() []OnPaymentFailureHook {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]OnPaymentFailureHook(nil), e.paymentFailureHooks...)
}

func (e *Engine) snapshotDepositListeners() []DepositListener {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]DepositListener(nil), e.depositListeners...)
}

func (e *Engine) snapshotWithdrawListeners() []WithdrawListener {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]WithdrawListener(nil), e.withdrawListeners...)
}

func (e *Engine) snapshotPrecommitListeners() []PrecommitListener {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]PrecommitListener(nil), e.precommitListeners...)
}
