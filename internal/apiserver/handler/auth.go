package handler

import (
	"net/http"

	"github.com/clearvault/clearvault/internal/apiserver/database"
	"github.com/clearvault/clearvault/internal/common/errorx"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/bcrypt"
)

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login authenticates a user and issues a JWT bound to a fresh session ID.
// The token always starts with the second-factor flag unset; VerifyTwoFactor
// upgrades it after a TOTP proof.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(errorx.ErrInvalidInput.HTTPStatus, errorx.ErrInvalidInput)
		return
	}

	user, err := h.db.GetUserByUsername(c.Request.Context(), req.Username)
	if err != nil {
		c.JSON(errorx.ErrInvalidCredentials.HTTPStatus, errorx.ErrInvalidCredentials)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		c.JSON(errorx.ErrInvalidCredentials.HTTPStatus, errorx.ErrInvalidCredentials)
		return
	}

	if user.Status != database.UserActive {
		c.JSON(errorx.ErrAccessDenied.HTTPStatus, errorx.ErrAccessDenied)
		return
	}

	sessionID := uuid.NewString()
	token, err := h.jwt.GenerateToken(user.ID, user.Username, sessionID, false)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":     token,
		"sessionId": sessionID,
		"user":      user,
	})
}

type verifyTwoFactorRequest struct {
	Code string `json:"code" binding:"required"`
}

// VerifyTwoFactor validates a TOTP code against the account's enrolled secret
// and re-issues the session token with the second-factor flag set. The flag
// is never accepted from the client directly.
func (h *Handler) VerifyTwoFactor(c *gin.Context) {
	claims, ok := h.claims(c)
	if !ok {
		return
	}

	var req verifyTwoFactorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(errorx.ErrInvalidInput.HTTPStatus, errorx.ErrInvalidInput)
		return
	}

	user, err := h.db.GetUser(c.Request.Context(), claims.UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if user.TwoFactorSecret == "" || !totp.Validate(req.Code, user.TwoFactorSecret) {
		c.JSON(errorx.ErrInvalidCredentials.HTTPStatus, errorx.ErrInvalidCredentials)
		return
	}

	token, err := h.jwt.GenerateToken(user.ID, user.Username, claims.SessionID, true)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":     token,
		"sessionId": claims.SessionID,
	})
}

// HashPassword hashes a plaintext password for storage
func HashPassword(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
