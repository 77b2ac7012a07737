package router

import (
	"database/sql"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/ecommerce-backend/internal/config"
	"github.com/iliyamo/ecommerce-backend/internal/handler"
	"github.com/iliyamo/ecommerce-backend/internal/middleware"
	"github.com/iliyamo/ecommerce-backend/internal/model"
)

// Deps collects everything route registration needs.
type Deps struct {
	DB        *sql.DB
	Redis     *redis.Client
	RateLimit config.RateLimitConfig
	Verifier  middleware.AccessVerifier
	Auth      *handler.AuthHandler
	Users     *handler.UserHandler
	Carts     *handler.CartHandler
	Orders    *handler.OrderHandler
}

// Register wires every route.  Unauthenticated operations live under
// /v1/auth (rate limited per client), protected endpoints under /v1, and
// admin endpoints additionally require the admin role.
func Register(e *echo.Echo, d Deps) {
	e.GET("/healthz", handler.Health)
	e.GET("/readyz", handler.Ready(d.DB))

	limiter := middleware.NewTokenBucket(d.RateLimit, d.Redis)

	// Session establishment and teardown; no access token required.
	authGroup := e.Group("/v1/auth", limiter)
	authGroup.POST("/register", d.Auth.Register)
	authGroup.POST("/login", d.Auth.Login)
	authGroup.POST("/oauth", d.Auth.OAuthLogin)
	authGroup.POST("/refresh", d.Auth.Refresh)
	authGroup.POST("/logout", d.Auth.Logout)

	// Everything below needs a valid access token.
	v1 := e.Group("/v1", middleware.JWTAuth(d.Verifier))

	v1.GET("/me", d.Auth.Me)
	v1.POST("/auth/password", d.Auth.ChangePassword)
	v1.PATCH("/users/me", d.Users.UpdateProfile)
	v1.DELETE("/users/me", d.Users.DeleteAccount)

	v1.GET("/cart", d.Carts.Get)
	v1.POST("/cart/items", d.Carts.AddItem)
	v1.PATCH("/cart/items", d.Carts.UpdateItem)
	v1.DELETE("/cart/items/:productID", d.Carts.RemoveItem)
	v1.DELETE("/cart", d.Carts.Clear)
	v1.GET("/cart/validate", d.Carts.Validate)

	v1.POST("/orders", d.Orders.Create)
	v1.GET("/orders", d.Orders.List)
	v1.GET("/orders/stats", d.Orders.Stats)
	v1.GET("/orders/number/:orderNumber", d.Orders.GetByNumber)
	v1.GET("/orders/:id", d.Orders.Get)
	v1.POST("/orders/:id/cancel", d.Orders.Cancel)

	// Admin surface: lifecycle transitions and the global search.
	admin := v1.Group("", middleware.RequireRole(model.RoleAdmin))
	admin.GET("/admin/orders", d.Orders.Search)
	admin.PATCH("/orders/:id/status", d.Orders.UpdateStatus)
	admin.PATCH("/orders/:id/payment", d.Orders.UpdatePayment)
}
