package tinypay

import (
	"bytes"

	"github.com/ethereum/go-ethereum/common"
)

type tailRecord struct {
	tail         Tail
	refreshCount uint64
}

// TailChain stores the per-user rotating secret commitment. A user's
// tail starts unset; explicit refreshes and tail-carrying deposits set
// it and count against the tail-update quota, while a successful
// payment advances it to the just-revealed secret without counting.
type TailChain struct {
	records map[common.Address]*tailRecord
}

// NewTailChain creates an empty tail store
func NewTailChain() *TailChain {
	return &TailChain{records: make(map[common.Address]*tailRecord)}
}

// Tail returns the stored commitment for user, nil when unset
func (t *TailChain) Tail(user common.Address) Tail {
	if rec, ok := t.records[user]; ok {
		return append(Tail(nil), rec.tail...)
	}
	return nil
}

// RefreshCount returns how many explicit tail sets user has performed
func (t *TailChain) RefreshCount(user common.Address) uint64 {
	if rec, ok := t.records[user]; ok {
		return rec.refreshCount
	}
	return 0
}

// Refresh replaces the stored tail and consumes one refresh
func (t *TailChain) Refresh(user common.Address, tail Tail) {
	rec, ok := t.records[user]
	if !ok {
		rec = &tailRecord{}
		t.records[user] = rec
	}
	rec.tail = append(Tail(nil), tail...)
	rec.refreshCount++
}

// Matches reports whether sha256(opt) equals the stored tail.
// An unset tail matches nothing.
func (t *TailChain) Matches(user common.Address, opt []byte) bool {
	rec, ok := t.records[user]
	if !ok || len(rec.tail) == 0 {
		return false
	}
	return bytes.Equal(TailDigest(opt), rec.tail)
}

// Advance rotates the stored tail to the revealed secret. The revealed
// value becomes the commitment the next spend must find a preimage for.
func (t *TailChain) Advance(user common.Address, opt []byte) {
	rec, ok := t.records[user]
	if !ok {
		rec = &tailRecord{}
		t.records[user] = rec
	}
	rec.tail = append(Tail(nil), opt...)
}

// VerifyAndAdvance combines Matches and Advance: on a preimage match the
// tail rotates and true is returned, otherwise state is untouched.
func (t *TailChain) VerifyAndAdvance(user common.Address, opt []byte) bool {
	if !t.Matches(user, opt) {
		return false
	}
	t.Advance(user, opt)
	return true
}

// restore reinstates a previous tail during rollback, without touching
// the refresh counter.
func (t *TailChain) restore(user common.Address, tail Tail) {
	if rec, ok := t.records[user]; ok {
		rec.tail = tail
	}
}
