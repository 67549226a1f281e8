// internal/handlers/auth/auth_handler.go
package auth

import (
	"errors"
	"net/http"

	"prospect-service/internal/domain/staff"
	"prospect-service/internal/middleware"
	xerrors "prospect-service/internal/pkg/errors"
	"prospect-service/internal/pkg/response"
	service "prospect-service/internal/service/auth"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	authService *service.AuthService
}

func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
	}
}

// Login authenticates a dashboard user
func (h *AuthHandler) Login(c *gin.Context) {
	var req staff.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	result, err := h.authService.Login(c.Request.Context(), &req, c.ClientIP(), c.GetHeader("User-Agent"))
	if err != nil {
		switch {
		case errors.Is(err, xerrors.ErrRateLimited):
			response.Error(c, http.StatusTooManyRequests, "too many login attempts", nil)
		case errors.Is(err, xerrors.ErrUnauthorized):
			response.Error(c, http.StatusUnauthorized, "invalid credentials", nil)
		default:
			response.Error(c, http.StatusInternalServerError, "login failed", err)
		}
		return
	}

	response.Success(c, http.StatusOK, "logged in", result)
}

// Logout closes the current session
func (h *AuthHandler) Logout(c *gin.Context) {
	userID := middleware.MustGetUserID(c)
	jti := middleware.MustGetJTI(c)

	if err := h.authService.Logout(c.Request.Context(), userID, jti); err != nil {
		response.Error(c, http.StatusInternalServerError, "logout failed", err)
		return
	}

	response.Success(c, http.StatusOK, "logged out", nil)
}

// Me returns the logged-in user's profile
func (h *AuthHandler) Me(c *gin.Context) {
	userID := middleware.MustGetUserID(c)

	user, err := h.authService.GetProfile(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, http.StatusNotFound, "user not found", err)
		return
	}

	response.Success(c, http.StatusOK, "profile", user)
}

// ChangePassword rotates the user's password
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	userID := middleware.MustGetUserID(c)

	var req staff.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	if err := h.authService.ChangePassword(c.Request.Context(), userID, &req); err != nil {
		if errors.Is(err, xerrors.ErrUnauthorized) {
			response.Error(c, http.StatusUnauthorized, "current password is wrong", nil)
			return
		}
		response.Error(c, http.StatusInternalServerError, "failed to change password", err)
		return
	}

	response.Success(c, http.StatusOK, "password changed", nil)
}
