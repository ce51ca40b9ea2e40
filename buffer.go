package main

import (
	"context"
	"fmt"
	"math"
)

// Reasons a day-end run grants no buffer.
const (
	bufferReasonExceededTDEE = "exceeded_tdee"
	bufferReasonMetGoal      = "met_or_exceeded_goal"
)

// bufferAllowance is a single-use calorie allowance valid only on ForDate.
type bufferAllowance struct {
	Amount  int    `json:"amount"`
	ForDate string `json:"for_date"`
}

// bufferDecision is the outcome of one day-end buffer run.
type bufferDecision struct {
	Set     bool   `json:"set"`
	Amount  int    `json:"amount,omitempty"`
	ForDate string `json:"for_date,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Cleared bool   `json:"cleared"`
}

// computeBuffer decides the allowance for forDate from the previous day's
// intake. Eating under both the goal and TDEE earns the unspent goal calories.
// Otherwise no buffer is granted, and any existing buffer dated on or before
// forDate is cleared; buffers scheduled further out are left alone.
//
// Dates are YYYY-MM-DD keys, so string comparison is calendar order. The
// function is idempotent for the same inputs.
func computeBuffer(consumed, goalOrTDEE, tdee float64, forDate string, existing *bufferAllowance) bufferDecision {
	if consumed < goalOrTDEE && consumed < tdee {
		return bufferDecision{
			Set:     true,
			Amount:  int(math.Round(goalOrTDEE - consumed)),
			ForDate: forDate,
		}
	}

	d := bufferDecision{Reason: bufferReasonMetGoal}
	if consumed >= tdee {
		d.Reason = bufferReasonExceededTDEE
	}
	if existing != nil && existing.ForDate <= forDate {
		d.Cleared = true
	}
	return d
}

// bufferFields is the partial user update that applies a decision.
// A decision that neither sets nor clears produces no update.
func bufferFields(d bufferDecision) userUpdate {
	switch {
	case d.Set:
		return userUpdate{"buffer_amount": d.Amount, "buffer_for_date": d.ForDate}
	case d.Cleared:
		return userUpdate{"buffer_amount": nil, "buffer_for_date": nil}
	default:
		return nil
	}
}

// storedBuffer reads the buffer columns off the user row.
func storedBuffer(u *user) *bufferAllowance {
	if u.BufferAmount == nil || u.BufferForDate == nil {
		return nil
	}
	return &bufferAllowance{Amount: *u.BufferAmount, ForDate: *u.BufferForDate}
}

// activeAllowance is the buffer that applies on today, or 0. A buffer for any
// other date is ignored even if it has not been cleared yet.
func activeAllowance(b *bufferAllowance, today string) int {
	if b == nil || b.ForDate != today {
		return 0
	}
	return b.Amount
}

// closeDay runs the buffer calculation for a finished calendar day (in the
// user's timezone) and stores the outcome for the following day.
func closeDay(ctx context.Context, s store, u *user, date string) (bufferDecision, error) {
	rates, ok := ratesFor(u)
	if !ok {
		return bufferDecision{}, errProfileIncomplete
	}
	loc := u.location()
	day, next, err := dayBounds(date, loc)
	if err != nil {
		return bufferDecision{}, validationError("invalid date, expected YYYY-MM-DD")
	}

	items, err := s.FoodItemsInRange(ctx, u.ID, day, next)
	if err != nil {
		return bufferDecision{}, fmt.Errorf("load food for %s: %w", date, err)
	}
	var consumed float64
	for _, it := range items {
		consumed += it.Calories
	}

	d := computeBuffer(consumed, float64(rates.Budget), float64(rates.MetabolicBurn), dayKey(next, loc), storedBuffer(u))
	if fields := bufferFields(d); fields != nil {
		updated, err := s.UpdateUserFields(ctx, u.ID, fields)
		if err != nil {
			return bufferDecision{}, fmt.Errorf("store buffer: %w", err)
		}
		*u = updated
	}
	return d, nil
}
