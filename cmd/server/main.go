package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/Script-By-Lin-226/Auth/internal/authn"
	"github.com/Script-By-Lin-226/Auth/internal/config"
	"github.com/Script-By-Lin-226/Auth/internal/events"
	"github.com/Script-By-Lin-226/Auth/internal/handlers"
	"github.com/Script-By-Lin-226/Auth/internal/logging"
	"github.com/Script-By-Lin-226/Auth/internal/revocation"
	"github.com/Script-By-Lin-226/Auth/internal/search"
	"github.com/Script-By-Lin-226/Auth/internal/token"
	httpserver "github.com/Script-By-Lin-226/Auth/internal/transport/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := logging.New(cfg.LogLevel)

	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}

	tokens, err := token.NewService(token.Config{
		SecretKey:        cfg.SecretKey,
		RefreshSecretKey: cfg.RefreshSecretKey,
		Algorithm:        cfg.Algorithm,
		AccessTTL:        cfg.AccessTTL,
		RefreshTTL:       cfg.RefreshTTL,
	})
	if err != nil {
		log.Fatalf("token service error: %v", err)
	}

	var brokers []string
	if cfg.KafkaAddress != "" {
		brokers = []string{cfg.KafkaAddress}
	}
	producer := events.NewProducer(brokers)

	accessBlacklist := revocation.NewMemoryRegistry()
	refreshBlacklist := revocation.NewMemoryRegistry()

	resolver := &authn.Resolver{DB: db, Tokens: tokens, Revoked: accessBlacklist}

	postHandler := &handlers.PostHandler{DB: db, Producer: producer, Index: "post"}
	if cfg.ESURL != "" {
		es, err := search.NewClient(cfg)
		if err != nil {
			log.Fatalf("elasticsearch error: %v", err)
		}
		postHandler.ES = es
	}

	deps := httpserver.Deps{
		AuthHandler: &handlers.AuthHandler{
			DB:               db,
			Tokens:           tokens,
			AccessBlacklist:  accessBlacklist,
			RefreshBlacklist: refreshBlacklist,
			Producer:         producer,
		},
		PostHandler:     postHandler,
		AdminHandler:    &handlers.AdminHandler{DB: db},
		Resolver:        resolver,
		LoginRatePerMin: cfg.LoginRatePerMin,
	}

	e := echo.New()
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID(), logging.RequestLogger(logger))

	httpserver.Register(e, &deps)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Printf("db close error: %v", err)
		}
	}

	if err := producer.Close(); err != nil {
		log.Printf("kafka close error: %v", err)
	}

	log.Println("shutdown complete")
}
