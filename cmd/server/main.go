package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pastelaria/backend/internal/config"
	"pastelaria/backend/internal/forecast"
	"pastelaria/backend/internal/httpapi"
	"pastelaria/backend/internal/service"
	"pastelaria/backend/internal/store"
	"pastelaria/backend/internal/store/memory"
	pgstore "pastelaria/backend/internal/store/postgres"
)

func main() {
	cfg := config.Load()
	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatalf("invalid security configuration: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("postgres unavailable (%v) and DATABASE_URL is set; refusing to start with in-memory fallback", err)
		} else {
			repo = pg
			closers = append(closers, pg.Close)
			log.Println("repository: postgres")
		}
	} else {
		repo = memory.NewSeeded()
		log.Println("repository: in-memory")
	}

	cacheStore := forecast.Cache(forecast.NoopCache{})
	if cfg.RedisAddr != "" {
		redisCache := forecast.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			log.Printf("redis unavailable (%v), using noop cache", err)
		} else {
			cacheStore = redisCache
			closers = append(closers, redisCache.Close)
			log.Println("forecast cache: redis")
		}
	} else {
		log.Println("forecast cache: noop")
	}

	var advisor forecast.Advisor = forecast.Heuristic{}
	if cfg.AdvisorURL != "" {
		advisor = forecast.NewHTTPAdvisor(cfg.AdvisorURL, 0)
		log.Println("forecast advisor: remote")
	} else {
		log.Println("forecast advisor: heuristic")
	}
	advisor = forecast.NewCached(advisor, cacheStore, time.Duration(cfg.ForecastTTLSeconds)*time.Second)

	svc := service.New(repo, advisor, cfg.StrictCombos)
	auth, err := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.SessionTTLHours)*time.Hour, cfg.AccessKey)
	if err != nil {
		log.Fatalf("auth setup: %v", err)
	}
	api := httpapi.New(svc, auth, cfg.AllowedOrigin, cfg.SecureCookies)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("pastelaria backend listening on %s", cfg.Address())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Printf("close error: %v", err)
		}
	}

	log.Println("server stopped")
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if len(cfg.AccessKey) < 8 {
		return fmt.Errorf("ACCESS_KEY must be set and at least 8 characters")
	}
	if err := validateAccessKeyStrength(cfg.AccessKey); err != nil {
		return fmt.Errorf("ACCESS_KEY is too weak: %w", err)
	}
	return nil
}

// validateAccessKeyStrength rejects keys from a known-weak list and keys
// composed of a single repeated character.
func validateAccessKeyStrength(key string) error {
	known := map[string]bool{
		"12345678": true, "password": true, "senha123": true,
		"pastel123": true, "00000000": true, "qwertyui": true,
	}
	if known[key] {
		return fmt.Errorf("common access key not allowed")
	}

	allSame := true
	for i := 1; i < len(key); i++ {
		if key[i] != key[0] {
			allSame = false
			break
		}
	}
	if allSame {
		return fmt.Errorf("repeated-character access key not allowed")
	}

	return nil
}
