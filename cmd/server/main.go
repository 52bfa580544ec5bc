package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"flightbooking/internal/cache"
	"flightbooking/internal/config"
	"flightbooking/internal/db"
	"flightbooking/internal/events"
	"flightbooking/internal/handlers"
	"flightbooking/internal/logger"
	"flightbooking/internal/services"
	"flightbooking/internal/store"
	"flightbooking/internal/websocket"

	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.AppEnv)
	defer func() { _ = log.Sync() }()

	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("failed to connect database", zap.Error(err))
	}
	defer database.Close()

	users := store.NewUserStore(database)
	accounts := store.NewAccountStore(database)
	transactions := store.NewTransactionStore(database)
	flights := store.NewFlightStore(database)
	bookings := store.NewBookingStore(database)
	messages := store.NewMessageStore(database)
	audit := store.NewAuditStore(database)
	txRunner := db.NewTxRunner(database)
	hub := websocket.NewHub()

	var searchCache services.SearchCache = cache.Nop{}
	if cfg.RedisAddr != "" {
		redisCache := cache.NewSearchCache(cache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB), cfg.SearchCacheTTL)
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := redisCache.Ping(pingCtx); err != nil {
			log.Warn("redis unavailable, search cache disabled", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		} else {
			searchCache = redisCache
			defer redisCache.Close()
		}
		cancel()
	}

	var publisher services.EventPublisher = events.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		producer := events.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic, log.Named("events"))
		publisher = producer
		defer producer.Close()
	}

	effects := services.NewSideEffects(hub, publisher, searchCache, log.Named("effects"))
	ledger := services.NewLedger(accounts, transactions)
	accountService := services.NewAccountService(txRunner, users, ledger, audit, effects)
	flightService := services.NewFlightService(txRunner, flights, bookings, users, audit, effects)
	bookingService := services.NewBookingService(txRunner, flights, bookings, ledger, audit, effects)
	messageService := services.NewMessageService(messages, users, flights, effects)

	handler := handlers.New(cfg, log.Named("http"), accountService, flightService, bookingService, messageService, hub)
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("flight booking API listening", zap.String("addr", server.Addr), zap.String("env", cfg.AppEnv))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	<-shutdown

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error("shutdown error", zap.Error(err))
	}
}
