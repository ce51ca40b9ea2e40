package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeBuffer(t *testing.T) {
	cases := []struct {
		name                 string
		consumed, goal, tdee float64
		existing             *bufferAllowance
		want                 bufferDecision
	}{
		{
			name:     "under goal and tdee earns the unspent goal",
			consumed: 1500, goal: 1800, tdee: 2100,
			want: bufferDecision{Set: true, Amount: 300, ForDate: "2026-10-18"},
		},
		{
			name:     "over tdee",
			consumed: 2200, goal: 1800, tdee: 2100,
			want: bufferDecision{Reason: bufferReasonExceededTDEE},
		},
		{
			name:     "exactly the goal earns nothing",
			consumed: 1800, goal: 1800, tdee: 2100,
			want: bufferDecision{Reason: bufferReasonMetGoal},
		},
		{
			name:     "between goal and tdee",
			consumed: 1900, goal: 1800, tdee: 2100,
			want: bufferDecision{Reason: bufferReasonMetGoal},
		},
		{
			name:     "exactly tdee counts as exceeded",
			consumed: 2100, goal: 1800, tdee: 2100,
			want: bufferDecision{Reason: bufferReasonExceededTDEE},
		},
		{
			name:     "stale buffer is cleared",
			consumed: 2200, goal: 1800, tdee: 2100,
			existing: &bufferAllowance{Amount: 200, ForDate: "2026-10-17"},
			want:     bufferDecision{Reason: bufferReasonExceededTDEE, Cleared: true},
		},
		{
			name:     "buffer for the same date is cleared",
			consumed: 2200, goal: 1800, tdee: 2100,
			existing: &bufferAllowance{Amount: 200, ForDate: "2026-10-18"},
			want:     bufferDecision{Reason: bufferReasonExceededTDEE, Cleared: true},
		},
		{
			name:     "buffer dated later is kept",
			consumed: 2200, goal: 1800, tdee: 2100,
			existing: &bufferAllowance{Amount: 200, ForDate: "2026-10-20"},
			want:     bufferDecision{Reason: bufferReasonExceededTDEE},
		},
		{
			name:     "fractional remainder rounds",
			consumed: 1499.6, goal: 1800, tdee: 2100,
			want: bufferDecision{Set: true, Amount: 300, ForDate: "2026-10-18"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := computeBuffer(tc.consumed, tc.goal, tc.tdee, "2026-10-18", tc.existing)
			assert.Equal(t, tc.want, got)
			// Same inputs, same outcome.
			assert.Equal(t, got, computeBuffer(tc.consumed, tc.goal, tc.tdee, "2026-10-18", tc.existing))
		})
	}
}

func TestBufferFields(t *testing.T) {
	assert.Nil(t, bufferFields(bufferDecision{Reason: bufferReasonMetGoal}))
	assert.Equal(t,
		userUpdate{"buffer_amount": 300, "buffer_for_date": "2026-10-18"},
		bufferFields(bufferDecision{Set: true, Amount: 300, ForDate: "2026-10-18"}))
	assert.Equal(t,
		userUpdate{"buffer_amount": nil, "buffer_for_date": nil},
		bufferFields(bufferDecision{Cleared: true}))
}

func TestActiveAllowance(t *testing.T) {
	b := &bufferAllowance{Amount: 250, ForDate: "2026-10-18"}
	assert.Equal(t, 250, activeAllowance(b, "2026-10-18"))
	assert.Equal(t, 0, activeAllowance(b, "2026-10-17"))
	assert.Equal(t, 0, activeAllowance(b, "2026-10-19"))
	assert.Equal(t, 0, activeAllowance(nil, "2026-10-18"))
}
