package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"projector_reservation/config"
	"projector_reservation/db"
	"projector_reservation/identity"
	"projector_reservation/log"
	"projector_reservation/notify"
	"projector_reservation/services"
	"projector_reservation/session"
	"projector_reservation/storage"

	"github.com/gin-gonic/gin"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Short aliases for handlers.
type Ctx = gin.Context
type H = gin.H

// App aggregates every dependency a handler may need.
type App struct {
	Router *gin.Engine
	DB     *gorm.DB
	RDB    *redis.Client
	WA     *webauthn.WebAuthn
	Config config.Config

	Repo       *db.Repo
	Gate       *services.Gate
	Ledger     *services.Ledger
	Registry   *services.Registry
	Outbox     *services.Outbox
	Directory  *services.Directory
	Verifier   identity.Verifier
	Storage    *storage.LocalStorage
	Dispatcher *notify.Dispatcher

	appSess  *session.AppSessionStore
	ceremony *session.Store
	signer   *session.TokenSigner
	closers  []io.Closer
}

// Deps are the externally owned pieces App is assembled from. Tests pass an
// in-memory database, miniredis and a fake verifier.
type Deps struct {
	DB       *gorm.DB
	RDB      *redis.Client
	Verifier identity.Verifier
	Sinks    []notify.Sink
	Closers  []io.Closer
}

func (a *App) AppSessions() *session.AppSessionStore { return a.appSess }
func (a *App) Ceremonies() *session.Store            { return a.ceremony }
func (a *App) Tokens() *session.TokenSigner          { return a.signer }

// MustNew connects to the configured infrastructure and exits on failure.
func MustNew(cfg config.Config) *App {
	a, err := New(cfg)
	if err != nil {
		log.Logger.Fatal("init app", zap.Error(err))
	}
	return a
}

func New(cfg config.Config) (*App, error) {
	dbConn, err := db.ConnectDB(cfg)
	if err != nil {
		return nil, err
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}

	deps := Deps{DB: dbConn, RDB: rdb, Verifier: identity.NewGoogle(cfg.Auth.GoogleClientID)}
	if cfg.Mail.MailgunDomain != "" {
		deps.Sinks = append(deps.Sinks, notify.NewMailgunSink(cfg.Mail.MailgunDomain, cfg.Mail.MailgunAPIKey, cfg.Mail.From))
	}
	if cfg.Events.AMQPURL != "" {
		sink, err := notify.DialAMQP(cfg.Events.AMQPURL, cfg.Events.Exchange)
		if err != nil {
			return nil, err
		}
		deps.Sinks = append(deps.Sinks, sink)
		deps.Closers = append(deps.Closers, sink)
	}
	return Build(cfg, deps)
}

// Build wires services and the router on top of deps.
func Build(cfg config.Config, deps Deps) (*App, error) {
	wa, err := webauthn.New(&webauthn.Config{
		RPDisplayName: cfg.WebAuthn.RPDisplayName,
		RPID:          cfg.WebAuthn.RPID,
		RPOrigins:     cfg.WebAuthn.RPOrigins,
	})
	if err != nil {
		return nil, fmt.Errorf("webauthn: %w", err)
	}

	store, err := storage.NewLocalStorage(cfg.Storage.Path, cfg.Storage.BaseURL, cfg.Storage.MaxUploadBytes, cfg.Storage.AllowedTypes)
	if err != nil {
		return nil, err
	}

	if cfg.Server.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger())
	useCORS(r, cfg)

	repo := db.NewRepo(deps.DB)
	gate := services.NewGate()
	dispatcher := notify.NewDispatcher(deps.Sinks, cfg.Notify.Workers, cfg.Notify.QueueSize)

	a := &App{
		Router: r, DB: deps.DB, RDB: deps.RDB, WA: wa, Config: cfg,
		Repo:       repo,
		Gate:       gate,
		Ledger:     services.NewLedger(repo, gate, dispatcher),
		Registry:   services.NewRegistry(repo, gate),
		Outbox:     services.NewOutbox(repo, gate, dispatcher),
		Directory:  services.NewDirectory(repo, gate, services.DirectoryConfig{AllowedDomains: cfg.Auth.AllowedDomains, AdminEmails: cfg.Auth.AdminEmails}),
		Verifier:   deps.Verifier,
		Storage:    store,
		Dispatcher: dispatcher,
		appSess:    session.NewAppSessionStore(deps.RDB, cfg.Auth.SessionTTL.Duration),
		ceremony:   session.NewStore(deps.RDB, cfg.WebAuthn.CeremonyTTL.Duration),
		signer:     session.NewTokenSigner(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, cfg.Auth.SessionTTL.Duration),
		closers:    deps.Closers,
	}
	return a, nil
}

// Close drains pending deliveries and releases connections.
func (a *App) Close(ctx context.Context) {
	if err := a.Dispatcher.Shutdown(ctx); err != nil {
		log.Logger.Warn("notification dispatcher shutdown", zap.Error(err))
	}
	for _, c := range a.closers {
		_ = c.Close()
	}
	_ = a.RDB.Close()
	if sqlDB, err := a.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
