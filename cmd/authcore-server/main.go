// Command authcore-server serves the authcore engine over HTTP.
//
// Configuration comes from the environment (and an optional .env file), see
// internal/envconfig. With DEV=true and no REDIS_ADDR it runs against an
// in-process miniredis; without DB_DSN principals live in memory.
//
// Endpoints:
//
//	POST /v1/login          JSON {"email":"...","password":"..."}; failed
//	                        attempts are throttled per client address
//	POST /v1/refresh        refresh token from cookie or X-Refresh-Token
//	POST /v1/logout         bearer access token and/or refresh token
//	POST /v1/logout-all     guarded; deletes every refresh token of the caller
//	GET  /v1/me             guarded; echoes verified claims
//	GET  /v1/reports        guarded; requires reports:read
//	GET  /v1/admin/security guarded; requires the admin role
//	GET  /healthz           security report
//	GET  /metrics           Prometheus exposition
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/internal/envconfig"
	"github.com/MrEthical07/authcore/internal/rate"
	promexport "github.com/MrEthical07/authcore/metrics/export/prometheus"
	"github.com/MrEthical07/authcore/refresh"
	"github.com/MrEthical07/authcore/store/memory"
	"github.com/MrEthical07/authcore/store/postgres"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// defaultRoles is the catalogue seeded in dev mode and registered with the
// engine so route guards can validate their permission names.
var defaultRoles = []authcore.Role{
	{Name: "admin", Description: "full access", Permissions: []authcore.Permission{
		{Name: "reports:read"}, {Name: "reports:write"}, {Name: "users:manage"},
	}},
	{Name: "editor", Description: "edits reports", Permissions: []authcore.Permission{
		{Name: "reports:read"}, {Name: "reports:write"},
	}},
	{Name: "viewer", Description: "reads reports", Permissions: []authcore.Permission{
		{Name: "reports:read"},
	}},
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "authcore-server:", err)
		os.Exit(1)
	}
}

func run() error {
	env, err := envconfig.Load()
	if err != nil {
		return err
	}
	logger := env.Logger()
	slog.SetDefault(logger)

	cfg, err := env.EngineConfig()
	if err != nil {
		return fmt.Errorf("engine config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---------- redis ----------
	redisAddr := env.Redis.Addr
	if redisAddr == "" {
		if !env.Dev {
			return errors.New("REDIS_ADDR is required outside dev mode")
		}
		mr, err := miniredis.Run()
		if err != nil {
			return fmt.Errorf("start miniredis: %w", err)
		}
		defer mr.Close()
		redisAddr = mr.Addr()
		logger.Warn("using in-process redis; state is lost on exit", "addr", redisAddr)
	}
	rdb := redis.NewClient(&redis.Options{Addr: redisAddr, Password: env.Redis.Password, DB: env.Redis.DB})
	defer rdb.Close()

	// ---------- principal + refresh stores ----------
	builder := authcore.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithLogger(logger).
		WithRoles(defaultRoles...)

	var (
		db   *sql.DB
		seed func(context.Context, authcore.Principal) error
		pg   *postgres.Store
	)
	if env.Postgres.DSN != "" {
		db, err = postgres.Open(ctx, env.Postgres.DSN)
		if err != nil {
			return err
		}
		defer db.Close()
		if env.Postgres.Migrate {
			if err := postgres.Migrate(ctx, db); err != nil {
				return err
			}
			if _, err := db.ExecContext(ctx, refresh.Schema); err != nil {
				return fmt.Errorf("migrate refresh table: %w", err)
			}
		}
		pg = postgres.New(db)
		builder = builder.
			WithPrincipalStore(pg).
			WithRefreshStore(refresh.NewSQLStore(db, refresh.Config{TTL: cfg.Refresh.TTL}))
		seed = func(ctx context.Context, p authcore.Principal) error {
			for _, role := range defaultRoles {
				if _, err := pg.UpsertRole(ctx, role); err != nil {
					return err
				}
			}
			_, err := pg.Create(ctx, p)
			if errors.Is(err, postgres.ErrDuplicateEmail) {
				return nil
			}
			return err
		}
	} else {
		mem := memory.New()
		builder = builder.WithPrincipalStore(mem)
		seed = func(_ context.Context, p authcore.Principal) error {
			_, err := mem.Add(p)
			return err
		}
	}

	// ---------- audit ----------
	switch env.Audit.Sink {
	case "postgres":
		if db == nil {
			return errors.New("AUDIT_SINK=postgres requires DB_DSN")
		}
		builder = builder.WithAuditSink(postgres.NewAuditSink(db))
	default:
		builder = builder.WithAuditSink(authcore.NewSlogAuditSink(logger.With("component", "audit")))
	}

	engine, err := builder.Build()
	if err != nil {
		return fmt.Errorf("engine build: %w", err)
	}
	defer engine.Close()

	if err := seedPrincipal(ctx, env, engine, seed); err != nil {
		return fmt.Errorf("seed principal: %w", err)
	}

	engine.StartSweeper(ctx, cfg.Refresh.SweepInterval)

	// ---------- http ----------
	var metrics http.Handler
	if env.Metrics.Enabled {
		metrics = promexport.NewExporter(engine).Handler()
	}
	srv := &server{engine: engine, logger: logger}
	if env.Throttle.Enabled && env.Throttle.MaxAttempts > 0 {
		srv.throttle = rate.New(rdb, rate.Config{
			MaxAttempts: env.Throttle.MaxAttempts,
			Window:      env.Throttle.Window,
		})
	}
	mux, err := srv.routes(metrics, env.Metrics.Path)
	if err != nil {
		return err
	}

	httpSrv := &http.Server{
		Addr:              env.HTTP.Addr,
		Handler:           mux,
		ReadHeaderTimeout: env.HTTP.ReadHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", env.HTTP.Addr, "report", engine.SecurityReport())
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), env.HTTP.ShutdownTimeout)
	defer cancel()
	logger.Info("shutting down")
	return httpSrv.Shutdown(shutdownCtx)
}

func seedPrincipal(ctx context.Context, env envconfig.Env, engine *authcore.Engine, seed func(context.Context, authcore.Principal) error) error {
	if !env.Dev || env.Seed.Email == "" || env.Seed.Password == "" {
		return nil
	}
	hash, err := engine.HashPassword(env.Seed.Password)
	if err != nil {
		return err
	}

	roles := make([]authcore.Role, 0, len(env.Seed.Roles))
	for _, name := range env.Seed.Roles {
		for _, r := range defaultRoles {
			if r.Name == name {
				roles = append(roles, r)
			}
		}
	}
	return seed(ctx, authcore.Principal{
		Email:        env.Seed.Email,
		PasswordHash: hash,
		Enabled:      true,
		Roles:        roles,
	})
}
