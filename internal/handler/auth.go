package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ecommerce-backend/internal/middleware"
	"github.com/iliyamo/ecommerce-backend/internal/repository"
	"github.com/iliyamo/ecommerce-backend/internal/service"
	"github.com/iliyamo/ecommerce-backend/internal/token"
)

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Auth *service.AuthService
}

func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{Auth: auth}
}

// ----- DTOs -----

type registerReq struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type oauthLoginReq struct {
	Provider   string `json:"provider"`
	ProviderID string `json:"provider_id"`
	Email      string `json:"email"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type changePasswordReq struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type tokenPairResp struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// Register: create a customer account and return tokens immediately.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return respondErr(c, http.StatusBadRequest, "invalid body")
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		return respondErr(c, http.StatusBadRequest, "valid email required")
	}
	if len(req.Password) < 8 {
		return respondErr(c, http.StatusBadRequest, "password must be at least 8 characters")
	}
	if strings.TrimSpace(req.FirstName) == "" || strings.TrimSpace(req.LastName) == "" {
		return respondErr(c, http.StatusBadRequest, "first_name and last_name required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	res, err := h.Auth.Register(ctx, service.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
	})
	if err != nil {
		if err == repository.ErrEmailExists {
			return respondErr(c, http.StatusConflict, "email already registered")
		}
		return respondErr(c, http.StatusInternalServerError, "registration failed")
	}
	return respondOK(c, http.StatusCreated, res)
}

// Login: verify credentials and return a new pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return respondErr(c, http.StatusBadRequest, "invalid body")
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return respondErr(c, http.StatusBadRequest, "email/password required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	res, err := h.Auth.Login(ctx, req.Email, req.Password)
	if err != nil {
		if err == service.ErrInvalidCredentials {
			return respondErr(c, http.StatusUnauthorized, "invalid credentials")
		}
		return respondErr(c, http.StatusInternalServerError, "login failed")
	}
	return respondOK(c, http.StatusOK, res)
}

// OAuthLogin: sign in through a trusted identity provider.  The gateway
// has already exchanged the provider code; we only receive the verified
// identity.
func (h *AuthHandler) OAuthLogin(c echo.Context) error {
	var req oauthLoginReq
	if err := c.Bind(&req); err != nil {
		return respondErr(c, http.StatusBadRequest, "invalid body")
	}
	provider := strings.ToLower(strings.TrimSpace(req.Provider))
	if provider != "google" && provider != "facebook" {
		return respondErr(c, http.StatusBadRequest, "unsupported provider")
	}
	if strings.TrimSpace(req.ProviderID) == "" || strings.TrimSpace(req.Email) == "" {
		return respondErr(c, http.StatusBadRequest, "provider_id and email required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	res, err := h.Auth.OAuthLogin(ctx, provider, strings.TrimSpace(req.ProviderID), req.Email, req.FirstName, req.LastName)
	if err != nil {
		return respondErr(c, http.StatusInternalServerError, "oauth login failed")
	}
	return respondOK(c, http.StatusOK, res)
}

// Refresh: rotate the refresh token and return a new pair.  A consumed or
// revoked token is rejected with 401; replay also burns the whole family.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return respondErr(c, http.StatusBadRequest, "refresh_token required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	pair, err := h.Auth.Refresh(ctx, strings.TrimSpace(req.RefreshToken))
	if err != nil {
		if errors.Is(err, token.ErrInvalid) || errors.Is(err, token.ErrRevoked) {
			return respondErr(c, http.StatusUnauthorized, "invalid refresh token")
		}
		return respondErr(c, http.StatusInternalServerError, "refresh failed")
	}
	return respondOK(c, http.StatusOK, tokenPairResp{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    h.Auth.AccessTTLSeconds(),
	})
}

// Logout: revoke the presented refresh token.  Succeeds even when the
// token is already dead, so logging out twice is harmless.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return respondErr(c, http.StatusBadRequest, "refresh_token required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Auth.Logout(ctx, strings.TrimSpace(req.RefreshToken)); err != nil {
		return respondErr(c, http.StatusInternalServerError, "logout failed")
	}
	return c.NoContent(http.StatusNoContent)
}

// ChangePassword: verify the current password, store the new hash and log
// out every session (protected).
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	var req changePasswordReq
	if err := c.Bind(&req); err != nil {
		return respondErr(c, http.StatusBadRequest, "invalid body")
	}
	if req.CurrentPassword == "" {
		return respondErr(c, http.StatusBadRequest, "current_password required")
	}
	if len(req.NewPassword) < 8 {
		return respondErr(c, http.StatusBadRequest, "new password must be at least 8 characters")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	err := h.Auth.ChangePassword(ctx, middleware.UserID(c), req.CurrentPassword, req.NewPassword)
	switch err {
	case nil:
		return respondOK(c, http.StatusOK, echo.Map{"message": "password changed"})
	case service.ErrInvalidCurrentPassword:
		return respondErr(c, http.StatusUnauthorized, "current password is incorrect")
	case service.ErrOAuthOnlyAccount:
		return respondErr(c, http.StatusBadRequest, "account has no password set")
	case service.ErrUserNotFound:
		return respondErr(c, http.StatusNotFound, "user not found")
	default:
		return respondErr(c, http.StatusInternalServerError, "change password failed")
	}
}

// Me: return the profile of the authenticated user.
func (h *AuthHandler) Me(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Auth.GetProfile(ctx, middleware.UserID(c))
	if err != nil {
		if err == service.ErrUserNotFound {
			return respondErr(c, http.StatusNotFound, "user not found")
		}
		return respondErr(c, http.StatusInternalServerError, "load profile failed")
	}
	return respondOK(c, http.StatusOK, u)
}
