package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ecommerce-backend/internal/middleware"
	"github.com/iliyamo/ecommerce-backend/internal/service"
)

// UserHandler serves the profile endpoints of the authenticated user.
type UserHandler struct {
	Auth *service.AuthService
}

func NewUserHandler(auth *service.AuthService) *UserHandler {
	return &UserHandler{Auth: auth}
}

type updateProfileReq struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Phone     *string `json:"phone"`
}

// UpdateProfile: patch semantics, only the fields present in the body are
// touched.
func (h *UserHandler) UpdateProfile(c echo.Context) error {
	var req updateProfileReq
	if err := c.Bind(&req); err != nil {
		return respondErr(c, http.StatusBadRequest, "invalid body")
	}
	if req.FirstName == nil && req.LastName == nil && req.Phone == nil {
		return respondErr(c, http.StatusBadRequest, "nothing to update")
	}
	if req.FirstName != nil && strings.TrimSpace(*req.FirstName) == "" {
		return respondErr(c, http.StatusBadRequest, "first_name cannot be empty")
	}
	if req.LastName != nil && strings.TrimSpace(*req.LastName) == "" {
		return respondErr(c, http.StatusBadRequest, "last_name cannot be empty")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Auth.UpdateProfile(ctx, middleware.UserID(c), req.FirstName, req.LastName, req.Phone)
	if err != nil {
		if err == service.ErrUserNotFound {
			return respondErr(c, http.StatusNotFound, "user not found")
		}
		return respondErr(c, http.StatusInternalServerError, "update profile failed")
	}
	return respondOK(c, http.StatusOK, u)
}

// DeleteAccount: revoke every session and remove the account.
func (h *UserHandler) DeleteAccount(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Auth.DeleteAccount(ctx, middleware.UserID(c)); err != nil {
		return respondErr(c, http.StatusInternalServerError, "delete account failed")
	}
	return c.NoContent(http.StatusNoContent)
}
