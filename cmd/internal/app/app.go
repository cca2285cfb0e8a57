package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"pinggo/cmd/internal/auth"
	"pinggo/cmd/internal/chat"
	"pinggo/cmd/internal/realtime"
	"pinggo/cmd/internal/social"
)

// App wires the configured components together and runs the HTTP server.
type App struct {
	cfg Config
	log *slog.Logger

	metrics *Metrics
	pool    *pgxpool.Pool

	verifier *auth.Verifier

	relay   *realtime.Relay
	gateway *realtime.WSGateway

	chatStore chat.Store
	chatAPI   *chat.Handler
	socialAPI *social.Handler
}

// New constructs the application. When PINGGO_DATABASE_URL is unset the app
// runs with an in-memory message store and without the social API, which is
// enough for local realtime development.
func New(ctx context.Context, cfg Config, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}

	a := &App{
		cfg:     cfg,
		log:     log,
		metrics: NewMetrics(),
	}

	if cfg.AuthJWTSecret != "" {
		v, err := auth.NewVerifier(cfg.AuthJWTSecret, cfg.AuthJWTIssuer)
		if err != nil {
			return nil, fmt.Errorf("auth verifier: %w", err)
		}
		a.verifier = v
	}

	a.relay = realtime.NewRelay(log, realtime.NewMetrics(a.metrics.Registerer()))

	// A typed-nil *auth.Verifier in the interface would defeat the gateway's
	// nil check, so only assign when configured.
	var idVerifier realtime.IdentityVerifier
	if a.verifier != nil {
		idVerifier = a.verifier
	}
	a.gateway = realtime.NewWSGateway(log, a.relay, idVerifier)

	if cfg.DatabaseURL != "" {
		pool, err := NewDBPool(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("db pool: %w", err)
		}
		a.pool = pool

		cs, err := chat.NewPostgresStore(pool, chat.WithSchema(cfg.DBSchema))
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("chat store: %w", err)
		}
		a.chatStore = cs

		ss, err := social.NewPostgresStore(pool, social.WithSchema(cfg.DBSchema))
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("social store: %w", err)
		}
		a.socialAPI = social.NewHandler(log, ss)
	} else {
		log.Warn("app.db.disabled", "reason", "PINGGO_DATABASE_URL not set; using in-memory message store")
		a.chatStore = chat.NewMemoryStore()
	}

	var notifier chat.Notifier
	if a.socialAPI != nil {
		notifier = a.socialAPI
	}
	a.chatAPI = chat.NewHandler(log, a.chatStore, a.relay, notifier)

	return a, nil
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    a.cfg.HTTPAddr,
		Handler: a.handler(),

		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("http.listen", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		a.close()
		return err
	case <-ctx.Done():
	}

	a.log.Info("http.shutdown.begin")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := srv.Shutdown(shutdownCtx)
	a.close()
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	a.log.Info("http.shutdown.done")
	return <-errCh
}

func (a *App) close() {
	if a.chatStore != nil {
		if err := a.chatStore.Close(); err != nil {
			a.log.Warn("app.close.chat_store", "err", err)
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
}

func nonZeroDuration(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

func nonZeroInt(n, def int) int {
	if n <= 0 {
		return def
	}
	return n
}
