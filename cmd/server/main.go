package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/mptx4869/store/internal/auth"
	"github.com/mptx4869/store/internal/cart"
	"github.com/mptx4869/store/internal/config"
	storehttp "github.com/mptx4869/store/internal/http"
	"github.com/mptx4869/store/internal/inventory"
	"github.com/mptx4869/store/internal/order"
	"github.com/mptx4869/store/internal/outbox"
	"github.com/mptx4869/store/internal/repository"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})

	cfg := config.Load()
	log.Info().
		Str("port", cfg.HTTPPort).
		Str("postgres", cfg.Postgres.Host).
		Str("redis", cfg.RedisAddr).
		Strs("kafka", cfg.KafkaBrokers).
		Msg("starting store server")

	repo, err := repository.New(&cfg.Postgres)
	must(err)
	defer repo.Close()
	must(repo.RunMigrations(&cfg.Postgres))

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	cartCache := cart.NewRedisCache(redisClient)

	inventorySvc := inventory.NewService(repo, log.With().Str("component", "inventory").Logger())
	cartSvc := cart.NewService(repo, cartCache, log.With().Str("component", "cart").Logger())
	orderSvc := order.NewService(repo, cartCache, log.With().Str("component", "order").Logger())
	authSvc := auth.NewService(repo, log.With().Str("component", "auth").Logger())

	poller := outbox.NewPoller(repo, cfg.KafkaBrokers, log.With().Str("component", "outbox").Logger())
	defer poller.Close()
	pollerCtx, stopPoller := context.WithCancel(context.Background())
	defer stopPoller()
	go poller.Run(pollerCtx)

	router := storehttp.NewRouter(storehttp.RouterDeps{
		Auth:      authSvc,
		Accounts:  storehttp.NewAuthHandler(authSvc),
		Catalog:   storehttp.NewCatalogHandler(repo, inventorySvc),
		Cart:      storehttp.NewCartHandler(cartSvc),
		Orders:    storehttp.NewOrderHandler(orderSvc),
		Admin:     storehttp.NewAdminHandler(orderSvc, inventorySvc),
		Timeout:   cfg.RequestTimeout,
		MaxBodySz: cfg.MaxRequestBodySize,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(router, "store"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Warn().Msg("shutting down...")
	stopPoller()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}
	log.Info().Msg("server exited")
}

func must(err error) {
	if err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
}
