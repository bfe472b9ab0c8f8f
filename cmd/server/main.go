package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/castfund/backend/docs"
	"github.com/castfund/backend/internal/audit"
	"github.com/castfund/backend/internal/config"
	"github.com/castfund/backend/internal/database"
	"github.com/castfund/backend/internal/events"
	"github.com/castfund/backend/internal/handlers"
	"github.com/castfund/backend/internal/logger"
	"github.com/castfund/backend/internal/metrics"
	mW "github.com/castfund/backend/internal/middleware"
	"github.com/castfund/backend/internal/services"
	"github.com/castfund/backend/internal/store"
	"github.com/castfund/backend/internal/store/memory"
	"github.com/castfund/backend/internal/store/postgres"
)

// @title CastFund Backend API
// @version 1.0
// @description Episode crowdfunding, paid critic reviews and real-time sync
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	config.Init(".env")
	serverCfg := config.LoadServerConfig()
	streamCfg := config.LoadStreamConfig()

	log := logger.New(serverCfg.Env)
	slog.SetDefault(log)
	metrics.Init()

	docs.SwaggerInfo.Host = serverCfg.SwaggerHost

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, serverCfg.StoreDriver, log)
	if err != nil {
		log.Error("[STARTUP] store unavailable", "driver", serverCfg.StoreDriver, "error", err)
		os.Exit(1)
	}
	defer st.Close()

	dispatcher := events.NewDispatcher(streamCfg.QueueSize, log)
	defer dispatcher.Close()

	var publisher events.Publisher = dispatcher
	if redisClient := database.InitRedis(log); redisClient != nil {
		defer redisClient.Close()
		bridge := events.NewRedisBridge(redisClient, streamCfg.RedisChannel, dispatcher, log)
		publisher = bridge
		go bridge.Serve(ctx, 500*time.Millisecond, 30*time.Second)
	} else {
		log.Info("[STREAM] redis unavailable, events stay on this instance")
	}

	economy := config.LoadEconomyConfig()
	ledger := services.NewLedgerService(st, publisher, config.LoadRetryConfig(), audit.NewLogger(log), log)
	deposits := services.NewDepositService(ledger, config.LoadGatewayConfig())
	catalog := services.NewCatalogService(ledger, economy)

	api := &handlers.API{
		Wallet:  handlers.NewWalletHandler(ledger, deposits, log),
		Videos:  handlers.NewVideoHandler(services.NewFundingService(ledger), catalog, log),
		Reviews: handlers.NewReviewHandler(services.NewReviewService(ledger, economy), log),
		Events:  handlers.NewEventsHandler(dispatcher, publisher, streamCfg.Heartbeat, log),
	}

	// Setup router
	r := chi.NewRouter()

	r.Use(mW.SecurityHeaders)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(mW.HTTPMetrics)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Gateway-Signature"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"status":      "healthy",
			"subscribers": dispatcher.Len(),
		})
	})
	r.Handle("/metrics", metrics.Handler())
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	api.Mount(r, mW.Auth(serverCfg.JWTSecret), 60*time.Second)

	// No WriteTimeout: event streams stay open. Other routes are bounded
	// by the request timeout middleware.
	server := &http.Server{
		Addr:              ":" + serverCfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("[STARTUP] server listening", "port", serverCfg.Port, "store", serverCfg.StoreDriver, "env", serverCfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("[STARTUP] server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("[SHUTDOWN] server shutting down")

	// Streams never finish on their own; end them before draining.
	dispatcher.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), serverCfg.ShutdownGrace)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("[SHUTDOWN] forced shutdown", "error", err)
	}
	log.Info("[SHUTDOWN] server stopped")
}

func openStore(ctx context.Context, driver string, log *slog.Logger) (store.Store, error) {
	switch driver {
	case "memory":
		log.Warn("[STARTUP] using in-memory store, state is lost on restart")
		return memory.New(), nil
	case "postgres":
		db, err := database.InitDB(log)
		if err != nil {
			return nil, err
		}
		if err := database.RunMigrations(ctx, db, log); err != nil {
			db.Close()
			return nil, err
		}
		return postgres.New(db), nil
	}
	return nil, errors.New("unknown store driver " + driver)
}
