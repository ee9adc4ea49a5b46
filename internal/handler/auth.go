package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"presensi/internal/auth"
	"presensi/internal/presence"
	"presensi/internal/session"
)

type credentials struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) SignIn(c *gin.Context) {
	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, errors.New("email and password are required"))
		return
	}
	s, err := h.auth.SignInWithPassword(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	h.announce(c, session.Event{Type: session.SignedIn, UserID: s.User.ID, Email: s.User.Email})
	c.JSON(http.StatusOK, gin.H{
		"access_token":   s.AccessToken,
		"token_type":     s.TokenType,
		"expires_in":     s.ExpiresIn,
		"refresh_token":  s.RefreshToken,
		"user":           s.User,
		"email_verified": s.User.EmailVerified(),
	})
}

type signUpRequest struct {
	Email           string `json:"email" binding:"required,email"`
	Password        string `json:"password" binding:"required,min=6"`
	ConfirmPassword string `json:"confirm_password" binding:"required"`
	Name            string `json:"name"`
	Institution     string `json:"institution"`
}

func (h *Handler) SignUp(c *gin.Context) {
	var req signUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, errors.New("email, password (at least 6 characters) and confirmation are required"))
		return
	}
	if req.Password != req.ConfirmPassword {
		badRequest(c, errors.New("password and confirmation do not match"))
		return
	}
	meta := map[string]any{}
	if req.Name != "" {
		meta["name"] = req.Name
	}
	if req.Institution != "" {
		meta["institution"] = req.Institution
	}
	u, err := h.auth.SignUp(c.Request.Context(), req.Email, req.Password, meta)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"user":    u,
		"message": "registration successful, check your email to verify the account",
	})
}

func (h *Handler) Resend(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, errors.New("no email to verify"))
		return
	}
	if err := h.auth.ResendVerification(c.Request.Context(), req.Email); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "verification email sent"})
}

func (h *Handler) SignOut(c *gin.Context) {
	cl := claims(c)
	if err := h.auth.SignOut(c.Request.Context(), auth.AccessToken(c)); err != nil {
		writeError(c, err)
		return
	}
	h.announce(c, session.Event{Type: session.SignedOut, UserID: cl.UserID(), Email: cl.Email})
	c.Status(http.StatusNoContent)
}

func (h *Handler) Session(c *gin.Context) {
	cl := claims(c)
	now := h.clock.Now()
	body := gin.H{
		"user_id":        cl.UserID(),
		"email":          cl.Email,
		"admin":          cl.IsAdmin(),
		"email_verified": h.emailConfirmed(c),
		"greeting":       presence.Greeting(now, h.svc.Policy().Location),
	}
	if cl.ExpiresAt != nil {
		body["expires_at"] = cl.ExpiresAt.Time
	}
	c.JSON(http.StatusOK, body)
}

// emailConfirmed asks the confirmer; a failed lookup reads as unconfirmed.
func (h *Handler) emailConfirmed(c *gin.Context) bool {
	ok, err := h.confirmer.EmailConfirmed(c.Request.Context(), auth.AccessToken(c))
	if err != nil {
		log.Printf("email confirmation lookup failed: %v", err)
		return false
	}
	return ok
}

func (h *Handler) announce(c *gin.Context, ev session.Event) {
	ev.At = h.clock.Now().UTC()
	if err := h.events.Publish(c.Request.Context(), ev); err != nil {
		log.Printf("session event publish failed: %v", err)
	}
}
