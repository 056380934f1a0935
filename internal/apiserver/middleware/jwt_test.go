package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/clearvault/clearvault/internal/auth/jwt"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthRouter(t *testing.T) (*gin.Engine, *jwt.Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc, err := jwt.NewService(jwt.Config{
		SecretKey: "0123456789abcdef0123456789abcdef",
		Duration:  time.Hour,
	})
	require.NoError(t, err)

	r := gin.New()
	r.GET("/protected", JWTAuthMiddleware(svc), func(c *gin.Context) {
		claims, ok := ClaimsFromContext(c)
		require.True(t, ok)
		c.JSON(http.StatusOK, gin.H{"user": claims.Username})
	})
	return r, svc
}

func TestJWTAuthMiddleware_ValidToken(t *testing.T) {
	r, svc := newAuthRouter(t)

	tok, err := svc.GenerateToken(1, "alice", "sess", false)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "alice")
}

func TestJWTAuthMiddleware_Rejections(t *testing.T) {
	r, _ := newAuthRouter(t)

	cases := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"no bearer prefix", "token abc"},
		{"garbage token", "Bearer garbage"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			r.ServeHTTP(w, req)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}
