package middleware // middleware provides reusable request processing for handlers

import (
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/ecommerce-backend/internal/token"
)

// AccessVerifier checks a raw bearer token and returns its claims.  The
// token issuer implements it.
type AccessVerifier interface {
    VerifyAccessToken(raw string) (token.AccessClaims, error)
}

// JWTAuth returns an Echo middleware that validates a Bearer access token
// and injects the subject, email and role claims into the request context.
// Handlers on protected routes read them via c.Get("user_id"),
// c.Get("email") and c.Get("role").  Why a token failed (expired,
// malformed, bad signature) is never revealed; every failure is the same
// 401.
func JWTAuth(verifier AccessVerifier) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            auth := c.Request().Header.Get("Authorization")
            if !strings.HasPrefix(auth, "Bearer ") {
                return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "error": "missing bearer token"})
            }
            claims, err := verifier.VerifyAccessToken(strings.TrimPrefix(auth, "Bearer "))
            if err != nil {
                return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "error": "invalid or expired token"})
            }
            c.Set("user_id", claims.Subject)
            c.Set("email", claims.Email)
            c.Set("role", claims.Role)
            return next(c)
        }
    }
}

// UserID extracts the authenticated user's id from the context.  It is
// empty when JWTAuth did not run.
func UserID(c echo.Context) string {
    id, _ := c.Get("user_id").(string)
    return id
}

// Role extracts the authenticated user's role from the context.
func Role(c echo.Context) string {
    role, _ := c.Get("role").(string)
    return role
}
