package main

import (
	"math"
	"time"
)

const secondsPerDay = 86400

// balanceAnchor is the energy balance state: Value (kcal, positive = net
// deficit, negative = net surplus) was true at Timestamp, and burn accrues from
// there at CapBasis kcal/day. Allowance is today's buffer, which raises the cap
// but not the accrual rate.
//
// WrittenAt is when the anchor was last written, which can be later than
// Timestamp (a backdated reinitialize). Reconciliation orders anchors by it.
//
// All methods are pure functions of (anchor, now); nothing here reads a clock.
type balanceAnchor struct {
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
	CapBasis  float64   `json:"cap_basis"`
	Allowance float64   `json:"allowance"`
	WrittenAt time.Time `json:"written_at"`
}

// burnPerSecond is the accrual rate. A non-positive basis accrues nothing.
func (a balanceAnchor) burnPerSecond() float64 {
	if a.CapBasis <= 0 {
		return 0
	}
	return a.CapBasis / secondsPerDay
}

// elapsedBurn is the burn accrued between the anchor and now, never negative.
func (a balanceAnchor) elapsedBurn(now time.Time) float64 {
	elapsed := now.Sub(a.Timestamp).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return elapsed * a.burnPerSecond()
}

// cap is the upper bound on the displayed balance. Only the deficit side is
// capped; a surplus can grow without limit.
func (a balanceAnchor) cap() float64 {
	return a.CapBasis + a.Allowance
}

// query returns the live balance at now: min(value + elapsed burn, cap).
func (a balanceAnchor) query(now time.Time) float64 {
	return math.Min(a.Value+a.elapsedBurn(now), a.cap())
}

// applyFoodDelta re-anchors at now from the just-computed live value. Positive
// delta is food added (balance drops), negative is food removed.
func (a balanceAnchor) applyFoodDelta(delta float64, now time.Time) balanceAnchor {
	next := a
	next.Value = a.query(now) - delta
	next.Timestamp = now
	return next
}

// applyBurnCatchup advances a persisted anchor to now after an absence, adopting
// capBasis as the rate from here on and clamping to the new cap, which
// includes today's allowance.
func (a balanceAnchor) applyBurnCatchup(now time.Time, capBasis, allowance float64) balanceAnchor {
	next := a
	next.Value = a.Value + a.elapsedBurn(now)
	if !now.After(a.Timestamp) {
		next.Timestamp = a.Timestamp
	} else {
		next.Timestamp = now
	}
	next.CapBasis = capBasis
	next.Allowance = allowance
	next.Value = math.Min(next.Value, next.cap())
	return next
}

// changeCapBasis re-anchors at the current live value so burn already accrued
// at the old rate is kept and future burn accrues at the new one.
func (a balanceAnchor) changeCapBasis(capBasis float64, now time.Time) balanceAnchor {
	next := a
	next.Value = a.query(now)
	next.Timestamp = now
	next.CapBasis = capBasis
	return next
}

// withAllowance returns a copy with today's buffer applied to the cap.
func (a balanceAnchor) withAllowance(allowance float64) balanceAnchor {
	a.Allowance = allowance
	return a
}

// reinitializeBalance starts a fresh anchor at zero. New users anchor at
// midnight of their tracking-start day; restarts anchor at the restart instant.
func reinitializeBalance(start time.Time, capBasis float64) balanceAnchor {
	return balanceAnchor{Value: 0, Timestamp: start, CapBasis: capBasis}
}

/* ─── Persisted anchor ───────────────────────────────────────────────── */

// persistedAnchor reads the anchor stored on the user row. ok=false when
// either column is missing or the value is not a finite number; callers then
// choose between reinitializing and failing. Rows without a write time count
// as written at their anchor timestamp.
func persistedAnchor(u *user, capBasis float64) (balanceAnchor, bool) {
	if u.CumulativeNetCalories == nil || u.LastBalanceUpdateDate == nil {
		return balanceAnchor{}, false
	}
	v := *u.CumulativeNetCalories
	if math.IsNaN(v) || math.IsInf(v, 0) || u.LastBalanceUpdateDate.IsZero() {
		return balanceAnchor{}, false
	}
	a := balanceAnchor{Value: v, Timestamp: *u.LastBalanceUpdateDate, CapBasis: capBasis, WrittenAt: *u.LastBalanceUpdateDate}
	if u.BalanceWrittenAt != nil && !u.BalanceWrittenAt.IsZero() {
		a.WrittenAt = *u.BalanceWrittenAt
	}
	return a, true
}

// anchorFields is the partial user update that persists an anchor.
func anchorFields(a balanceAnchor) userUpdate {
	return userUpdate{
		"cumulative_net_calories":  a.Value,
		"last_balance_update_date": a.Timestamp,
		"balance_written_at":       a.WrittenAt,
	}
}

// setAnchorColumns mirrors a just-written anchor onto an in-memory user row.
func setAnchorColumns(u *user, a balanceAnchor) {
	v, ts, written := a.Value, a.Timestamp, a.WrittenAt
	u.CumulativeNetCalories = &v
	u.LastBalanceUpdateDate = &ts
	u.BalanceWrittenAt = &written
}

// writtenAfter reports whether a was written after b. Equal write times fall
// back to the anchor timestamps.
func (a balanceAnchor) writtenAfter(b balanceAnchor) bool {
	if !a.WrittenAt.Equal(b.WrittenAt) {
		return a.WrittenAt.After(b.WrittenAt)
	}
	return a.Timestamp.After(b.Timestamp)
}

// reconcileBalance picks the one anchor that is authoritative for display and
// applies today's allowance to it. The session-held anchor wins unless the
// persisted one was written later (a mutation from another process or
// device), in which case the persisted one is caught up to now. Elapsed burn
// is never applied from both, so the same interval cannot be counted twice.
func reconcileBalance(local *balanceAnchor, remote *balanceAnchor, capBasis, allowance float64, now time.Time) (balanceAnchor, bool) {
	switch {
	case local == nil && remote == nil:
		return balanceAnchor{}, false
	case local == nil:
		return remote.applyBurnCatchup(now, capBasis, allowance), true
	case remote == nil:
		return local.withAllowance(allowance), true
	case remote.writtenAfter(*local):
		return remote.applyBurnCatchup(now, capBasis, allowance), true
	default:
		return local.withAllowance(allowance), true
	}
}
