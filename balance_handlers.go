package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

/* ─── Anchor resolution ──────────────────────────────────────────────── */

// capBasisFor is the rate the balance accrues at: the budget rate, or 0 while
// onboarding is incomplete.
func capBasisFor(u *user) float64 {
	if r, ok := ratesFor(u); ok {
		return float64(r.Budget)
	}
	return 0
}

// anchorFor reconciles this process's session anchor with the persisted one
// and applies today's buffer. ok=false when the user has no anchor anywhere.
func (h *Handler) anchorFor(u *user, now time.Time) (balanceAnchor, bool) {
	capBasis := capBasisFor(u)
	var remote *balanceAnchor
	if a, ok := persistedAnchor(u, capBasis); ok {
		remote = &a
	}
	allowance := activeAllowance(storedBuffer(u), dayKey(now, u.location()))
	return reconcileBalance(h.sessions.get(u.ID), remote, capBasis, float64(allowance), now)
}

// initialAnchorStart is where a brand-new balance starts accruing: midnight
// of the tracking-start day, or midnight today before tracking has started.
func initialAnchorStart(u *user, now time.Time) time.Time {
	loc := u.location()
	if u.FastingTrackingStartDate != nil {
		return startOfDay(*u.FastingTrackingStartDate, loc)
	}
	return startOfDay(now, loc)
}

// mutateBalance applies fn to the user's current anchor (creating one if the
// user has none), makes the result the session anchor, and persists it. A
// failed write is logged and does not undo the session anchor: the session
// stays authoritative for display and the next successful write catches the
// store up.
func (h *Handler) mutateBalance(ctx context.Context, u *user, now time.Time, fn func(balanceAnchor) balanceAnchor) balanceAnchor {
	a, ok := h.anchorFor(u, now)
	if !ok {
		allowance := activeAllowance(storedBuffer(u), dayKey(now, u.location()))
		a = reinitializeBalance(initialAnchorStart(u, now), capBasisFor(u)).withAllowance(float64(allowance))
	}
	return h.persistAnchor(ctx, u, fn(a))
}

// persistAnchor stamps the anchor's write time, records it in the session and,
// best-effort, the store. u is updated in place so a response built from it
// shows the new anchor.
func (h *Handler) persistAnchor(ctx context.Context, u *user, a balanceAnchor) balanceAnchor {
	a.WrittenAt = h.now()
	h.sessions.set(u.ID, a)
	setAnchorColumns(u, a)
	if _, err := h.store.UpdateUserFields(ctx, u.ID, anchorFields(a)); err != nil {
		h.log.Warnf("[persistAnchor] balance write failed for user %d: %v", u.ID, err)
	}
	return a
}

/* ─── Responses ──────────────────────────────────────────────────────── */

// balanceResponse is the response shape for GET /api/balance.
type balanceResponse struct {
	Balance             float64   `json:"balance"`
	Cap                 float64   `json:"cap"`
	BudgetRate          int       `json:"budget_rate"`
	MetabolicBurnRate   int       `json:"metabolic_burn_rate"`
	CaloriesBurnedToday float64   `json:"calories_burned_today"`
	ActiveBuffer        int       `json:"active_buffer"`
	AnchorValue         float64   `json:"anchor_value"`
	AnchorTimestamp     time.Time `json:"anchor_timestamp"`
	OnboardingRequired  bool      `json:"onboarding_required"`
	At                  time.Time `json:"at"`
}

// buildBalance computes the live balance for u at now. Users with no anchor
// yet report a zero balance anchored at now without persisting anything.
func (h *Handler) buildBalance(u *user, now time.Time) balanceResponse {
	a, ok := h.anchorFor(u, now)
	if !ok {
		a = reinitializeBalance(now, capBasisFor(u))
	}
	resp := balanceResponse{
		Balance:            a.query(now),
		Cap:                a.cap(),
		ActiveBuffer:       int(a.Allowance),
		AnchorValue:        a.Value,
		AnchorTimestamp:    a.Timestamp,
		OnboardingRequired: !profileComplete(u),
		At:                 now,
	}
	if r, ok := ratesFor(u); ok {
		resp.BudgetRate = r.Budget
		resp.MetabolicBurnRate = r.MetabolicBurn
		// Burned-so-far uses TDEE, not the budget rate.
		elapsed := now.Sub(startOfDay(now, u.location())).Seconds()
		resp.CaloriesBurnedToday = float64(r.MetabolicBurn) * elapsed / secondsPerDay
	}
	return resp
}

/* ─── Handlers ───────────────────────────────────────────────────────── */

// getBalance returns the live energy balance.
// GET /api/balance.
func (h *Handler) getBalance(c *gin.Context) {
	userID := c.GetInt("user_id")
	u, err := h.store.GetUser(c, userID)
	if err != nil {
		h.respondError(c, err, "failed to fetch user")
		return
	}
	c.JSON(http.StatusOK, h.buildBalance(&u, h.now()))
}

// reinitializeBalance resets the balance to zero at the given instant
// (default now). POST /api/balance/reinitialize. Body: { "start"?: RFC3339 }.
func (h *Handler) reinitializeBalance(c *gin.Context) {
	userID := c.GetInt("user_id")

	var body struct {
		Start *time.Time `json:"start"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			apiError(c, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	unlock := h.sessions.lock(userID)
	defer unlock()

	u, err := h.store.GetUser(c, userID)
	if err != nil {
		h.respondError(c, err, "failed to fetch user")
		return
	}
	now := h.now()
	start := now
	if body.Start != nil {
		if body.Start.After(now) {
			apiError(c, http.StatusBadRequest, "start must not be in the future")
			return
		}
		start = *body.Start
	}
	h.persistAnchor(c, &u, reinitializeBalance(start, capBasisFor(&u)))
	c.JSON(http.StatusOK, h.buildBalance(&u, now))
}

// getBuffer returns the stored buffer and whether it applies today.
// GET /api/buffer.
func (h *Handler) getBuffer(c *gin.Context) {
	userID := c.GetInt("user_id")
	u, err := h.store.GetUser(c, userID)
	if err != nil {
		h.respondError(c, err, "failed to fetch user")
		return
	}
	today := dayKey(h.now(), u.location())
	buf := storedBuffer(&u)
	c.JSON(http.StatusOK, gin.H{
		"buffer": buf,
		"today":  today,
		"active": activeAllowance(buf, today),
	})
}

// closeDay runs the day-end buffer calculation for a finished day.
// POST /api/buffer/close-day. Body: { "date"?: "YYYY-MM-DD" } (defaults to yesterday).
func (h *Handler) closeDay(c *gin.Context) {
	userID := c.GetInt("user_id")

	var body struct {
		Date string `json:"date"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			apiError(c, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	unlock := h.sessions.lock(userID)
	defer unlock()

	u, err := h.store.GetUser(c, userID)
	if err != nil {
		h.respondError(c, err, "failed to fetch user")
		return
	}
	date := body.Date
	if date == "" {
		date = dayKey(h.now().In(u.location()).AddDate(0, 0, -1), u.location())
	}

	decision, err := closeDay(c, h.store, &u, date)
	if err != nil {
		h.respondError(c, err, "failed to close day")
		return
	}
	c.JSON(http.StatusOK, decision)
}
