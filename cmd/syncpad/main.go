package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/agentworkforce/syncpad/internal/httpapi"
	"github.com/agentworkforce/syncpad/internal/syncpad"
)

func main() {
	addr := os.Getenv("SYNCPAD_ADDR")
	if addr == "" {
		addr = ":3030"
	}
	db, err := buildDatabaseFromEnv()
	if err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}

	registry := syncpad.NewRegistry(syncpad.RegistryOptions{
		Database:       db,
		Expiry:         durationEnv("SYNCPAD_EXPIRY", 0),
		DebounceWindow: durationEnv("SYNCPAD_PERSIST_DEBOUNCE", 0),
		SweepInterval:  durationEnv("SYNCPAD_SWEEP_INTERVAL", 0),
	})
	server := httpapi.NewServerWithConfig(registry, httpapi.ServerConfig{
		MaxMessageBytes: int64Env("SYNCPAD_MAX_MESSAGE_BYTES", 0),
	})

	httpServer := &http.Server{Addr: addr, Handler: server}
	go func() {
		log.Printf("syncpad listening on %s", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Printf("syncpad shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(ctx)
	if err := registry.Close(); err != nil {
		log.Printf("flush on shutdown failed: %v", err)
	}
	if db != nil {
		_ = db.Close()
	}
}

func buildDatabaseFromEnv() (syncpad.Database, error) {
	dsn := strings.TrimSpace(os.Getenv("SYNCPAD_DATABASE_DSN"))
	if dsn == "" {
		profileDSN, err := storageProfileDefaultsFromEnv()
		if err != nil {
			return nil, err
		}
		dsn = profileDSN
	}
	return syncpad.BuildDatabaseFromDSN(dsn)
}

func storageProfileDefaultsFromEnv() (string, error) {
	profile := strings.ToLower(strings.TrimSpace(os.Getenv("SYNCPAD_BACKEND_PROFILE")))
	dataDir := strings.TrimSpace(os.Getenv("SYNCPAD_DATA_DIR"))
	if dataDir == "" {
		dataDir = ".syncpad"
	}
	switch profile {
	case "", "custom":
		return "", nil
	case "memory", "inmemory":
		return "memory://", nil
	case "production", "prod":
		productionDSN := strings.TrimSpace(os.Getenv("SYNCPAD_POSTGRES_DSN"))
		if productionDSN == "" {
			return "", fmt.Errorf("SYNCPAD_POSTGRES_DSN is required when SYNCPAD_BACKEND_PROFILE=%s", profile)
		}
		return productionDSN, nil
	case "durable-local", "local-durable":
		return "file://" + filepath.Join(dataDir, "documents.json"), nil
	default:
		return "", fmt.Errorf("unsupported SYNCPAD_BACKEND_PROFILE: %s", profile)
	}
}

func int64Env(name string, fallback int64) int64 {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		log.Printf("invalid %s=%q, using fallback %d", name, raw, fallback)
		return fallback
	}
	return value
}

func durationEnv(name string, fallback time.Duration) time.Duration {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("invalid %s=%q, using fallback %s", name, raw, fallback.String())
		return fallback
	}
	return value
}
