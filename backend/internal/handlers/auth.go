package handlers

import (
	"errors"
	"io"
	"net/http"

	"taskledger/backend/internal/middleware"
	"taskledger/backend/internal/services"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	authService services.AuthService
}

func NewAuthHandler(authService services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Token logs a user in and returns a fresh access/refresh pair.
func (h *AuthHandler) Token(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequestBody(c)
		return
	}

	ctx := c.Request.Context()
	user, err := h.authService.LoginUser(ctx, req.Username, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	pair, err := h.authService.GenerateToken(ctx, user.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, pair)
}

func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequestBody(c)
		return
	}
	if req.RefreshToken == "" {
		respondError(c, services.ErrUnauthenticated)
		return
	}

	pair, err := h.authService.RefreshToken(c.Request.Context(), req.RefreshToken)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, pair)
}

// Logout revokes the caller's access token and, when given, the refresh
// token in the body.
func (h *AuthHandler) Logout(c *gin.Context) {
	var req refreshRequest
	if c.Request.Body != nil && c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			badRequestBody(c)
			return
		}
	}

	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		respondError(c, services.ErrUnauthenticated)
		return
	}

	if err := h.authService.RevokeToken(c.Request.Context(), req.RefreshToken, identity); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}
