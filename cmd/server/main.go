package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/ecommerce-backend/internal/config"
	"github.com/iliyamo/ecommerce-backend/internal/database"
	"github.com/iliyamo/ecommerce-backend/internal/handler"
	"github.com/iliyamo/ecommerce-backend/internal/queue"
	"github.com/iliyamo/ecommerce-backend/internal/repository"
	"github.com/iliyamo/ecommerce-backend/internal/router"
	"github.com/iliyamo/ecommerce-backend/internal/service"
	"github.com/iliyamo/ecommerce-backend/internal/token"
	"github.com/iliyamo/ecommerce-backend/internal/worker"
)

func main() {
	// .env is a development convenience; in production the variables come
	// from the environment directly.
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Refresh-token revocation lives in Redis and fails closed: without it
	// every rotation would be rejected, so there is no point starting.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Fatal("redis: unavailable, refusing to start without a revocation store")
	}
	defer rdb.Close()

	users := repository.NewUserRepo(db)
	carts := repository.NewCartRepo(db, time.Duration(cfg.CartTTLHours)*time.Hour)
	orders := repository.NewOrderRepo(db)

	issuer := token.NewIssuer(cfg.AccessSecret, cfg.RefreshSecret,
		cfg.AccessTTLMin, cfg.RefreshTTLDays, token.NewRedisStore(rdb), users)

	// The broker is a degraded-mode dependency: order flows keep working
	// without it, events are just logged and dropped.
	publisher, err := queue.NewPublisher(queue.BrokerURL())
	if err != nil {
		log.Printf("queue: broker unavailable, events disabled: %v", err)
	} else {
		defer publisher.Close()
	}

	catalog := service.NewProductClient(cfg.ProductServiceURL)
	authSvc := service.NewAuthService(users, issuer, cfg.BcryptCost)
	cartSvc := service.NewCartService(carts, catalog)
	var pub service.EventPublisher
	if publisher != nil {
		pub = publisher
	}
	orderSvc := service.NewOrderService(orders, carts, catalog, pub)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.Logger())

	router.Register(e, router.Deps{
		DB:        db,
		Redis:     rdb,
		RateLimit: config.LoadRateLimitConfig(),
		Verifier:  issuer,
		Auth:      handler.NewAuthHandler(authSvc),
		Users:     handler.NewUserHandler(authSvc),
		Carts:     handler.NewCartHandler(cartSvc),
		Orders:    handler.NewOrderHandler(orderSvc),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go worker.StartCartReaper(ctx, carts, time.Hour)
	go func() {
		if err := queue.StartOrderConsumer(); err != nil {
			log.Printf("queue: consumer stopped: %v", err)
		}
	}()

	go func() {
		addr := ":" + cfg.Port
		log.Printf("listening on %s (env=%s)", addr, cfg.Env)
		if err := e.Start(addr); err != nil {
			log.Printf("server: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
