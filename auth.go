package main

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

// dummyHash is checked when the username is unknown so a miss costs the same
// bcrypt round as a hit.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("dummy"), bcrypt.DefaultCost)

type loginRequest struct {
	Username string `json:"username" validate:"required,max=100"`
	Password string `json:"password" validate:"required"`
}

// loginResponse also tells the client whether to route to onboarding.
type loginResponse struct {
	Token              string `json:"token"`
	UserID             int    `json:"user_id"`
	Timezone           string `json:"timezone"`
	OnboardingRequired bool   `json:"onboarding_required"`
}

// login exchanges username/password for the user's auth token.
// POST /api/login (public).
func (h *Handler) login(c *gin.Context) {
	var body loginRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		apiError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validateRequest(&body); err != nil {
		h.respondError(c, err, "invalid request body")
		return
	}

	u, lookupErr := h.store.GetUserByUsername(c, strings.TrimSpace(body.Username))
	hash := dummyHash
	if lookupErr == nil {
		hash = []byte(u.Password)
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(body.Password)); err != nil || lookupErr != nil {
		h.log.Infof("[login] rejected login for %q", body.Username)
		apiError(c, http.StatusUnauthorized, "invalid credentials")
		return
	}

	c.JSON(http.StatusOK, loginResponse{
		Token:              u.AuthToken,
		UserID:             u.ID,
		Timezone:           u.Timezone,
		OnboardingRequired: !profileComplete(&u),
	})
}

// tokenFrom reads the bearer token from the Authorization header, falling back
// to the access_token query param (browsers cannot set headers on a websocket
// handshake).
func tokenFrom(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); header != "" {
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			return ""
		}
		return strings.TrimSpace(token)
	}
	return c.Query("access_token")
}

// authMiddleware resolves the token to a user and sets user_id on the context.
func (h *Handler) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := tokenFrom(c)
		if token == "" {
			apiError(c, http.StatusUnauthorized, "missing or invalid authorization header")
			c.Abort()
			return
		}

		userID, err := h.store.UserIDByToken(c, token)
		if err != nil {
			apiError(c, http.StatusUnauthorized, "invalid token")
			c.Abort()
			return
		}

		c.Set("user_id", userID)
		c.Next()
	}
}
