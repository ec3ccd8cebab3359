package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"documenta.app/internal/audit"
	"documenta.app/internal/auth"
	"documenta.app/internal/config"
	"documenta.app/internal/httpapi"
	"documenta.app/internal/obs"
	"documenta.app/internal/tenant"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	var db *sql.DB
	if cfg.DatabaseURL != "" {
		db, err = sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
	}
	if db == nil {
		log.Fatal("missing DSN: set DOCUMENTA_PG_DSN")
	}

	registry, err := auth.NewSecretRegistry(cfg.AuthSecret, cfg.AuthSecretLegacy)
	if err != nil {
		log.Fatalf("secrets: %v", err)
	}

	tenants, err := tenant.NewDirectory(tenant.NewPGStore(db))
	if err != nil {
		log.Fatalf("tenant directory: %v", err)
	}

	codec := auth.NewCodec("documenta", auth.WithTTL(cfg.SessionTTL()))
	authSvc, err := auth.NewService(auth.NewPGUserStore(db), tenants, codec, registry, audit.Sink{})
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}

	api := httpapi.New(httpapi.ReadyProbe{DB: db}, authSvc, tenants, httpapi.Options{
		Version:      version,
		SecureCookie: cfg.Production(),
		RateBurst:    cfg.RateBurst,
		RatePerSec:   cfg.RatePerSec,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting documenta-auth %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	_ = db.Close()
	log.Println("Stopped")
}
