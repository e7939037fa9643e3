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

	"jobgate.org/internal/auth"
	"jobgate.org/internal/config"
	"jobgate.org/internal/httpapi"
	"jobgate.org/internal/mail"
	"jobgate.org/internal/obs"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	obs.Init()
	obs.InitBuildInfo(version, commit)

	// Without a DSN the service runs on the in-memory store; useful for local
	// development, useless in production.
	var db *sql.DB
	var store auth.Store
	if cfg.PostgresDSN != "" {
		db, err = sql.Open("pgx", cfg.PostgresDSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
		store = auth.NewPGStore(db)
	} else {
		log.Print("no JOBGATE_PG_DSN set, using in-memory store")
		store = auth.NewMemStore()
	}

	issuer, err := auth.NewTokenIssuer(cfg.Auth.SigningSecret, cfg.Auth.Issuer, cfg.Auth.AccessTTL)
	if err != nil {
		log.Fatalf("token issuer: %v", err)
	}

	var transport mail.Mailer = mail.LogMailer{}
	if cfg.SMTP.Host != "" {
		transport = mail.NewSMTPMailer(
			cfg.SMTP.Host, cfg.SMTP.Port,
			cfg.SMTP.Username, cfg.SMTP.Password,
			cfg.SMTP.FromName, cfg.SMTP.FromAddress,
		)
	}

	svc, err := auth.NewService(store, issuer,
		auth.WithRefreshTTL(cfg.Auth.RefreshTTL),
		auth.WithOTPTTL(cfg.Auth.OTPTTL),
		auth.WithResetMailer(mail.NewCodeSender(transport)),
		auth.WithMailTimeout(cfg.SMTP.SendTimeout),
	)
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}

	api := httpapi.New(svc, httpapi.ReadyProbe{DB: db}, httpapi.Options{
		Version:       version,
		SecureCookies: cfg.Production(),
		RateBurst:     cfg.RateLimit.Burst,
		RatePerSecond: cfg.RateLimit.PerSecond,
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting jobgate-company-auth %s on %s", version, srv.Addr)

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
	if db != nil {
		_ = db.Close()
	}
	log.Println("Stopped")
}
