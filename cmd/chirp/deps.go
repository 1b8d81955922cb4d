package main

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/oops"

	"github.com/alphabot-ai/chirp/internal/auth"
	"github.com/alphabot-ai/chirp/internal/config"
	httpapp "github.com/alphabot-ai/chirp/internal/http"
	"github.com/alphabot-ai/chirp/internal/posts"
	"github.com/alphabot-ai/chirp/internal/rate"
	"github.com/alphabot-ai/chirp/internal/store"
	"github.com/alphabot-ai/chirp/internal/store/postgres"
	"github.com/alphabot-ai/chirp/internal/store/sqlite"
	"github.com/alphabot-ai/chirp/internal/upload"
	"github.com/alphabot-ai/chirp/internal/users"
)

// ServeDeps contains injectable dependencies for the serve command.
// Nil fields use their default implementations.
type ServeDeps struct {
	// StoreFactory opens the configured store.
	// Default: openStore
	StoreFactory func(ctx context.Context, cfg config.Config) (store.Store, error)

	// Registry collects process and application metrics.
	// Default: a fresh prometheus.Registry with Go and process collectors
	Registry *prometheus.Registry
}

func (d *ServeDeps) setDefaults() {
	if d.StoreFactory == nil {
		d.StoreFactory = openStore
	}
	if d.Registry == nil {
		d.Registry = prometheus.NewRegistry()
		d.Registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
}

func openStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	switch cfg.DBDriver {
	case config.DriverPostgres:
		return postgres.Open(ctx, cfg.DBDSN)
	case config.DriverSQLite:
		return sqlite.Open(cfg.DBDSN)
	}
	return nil, oops.Code("CONFIG_INVALID").Errorf("unknown db_driver %q", cfg.DBDriver)
}

// application is the wired server and the resources it owns.
type application struct {
	store   store.Store
	handler http.Handler
}

func (a *application) Close() error {
	return a.store.Close()
}

func buildApplication(ctx context.Context, cfg config.Config, logger *slog.Logger, deps ServeDeps) (*application, error) {
	deps.setDefaults()

	policy, err := auth.ParseFallbackPolicy(cfg.FallbackPolicy)
	if err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}
	codec, err := auth.NewCodec(cfg.JWTSecret)
	if err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}
	uploads, err := upload.New(cfg.UploadDir, cfg.PublicBaseURL, cfg.MaxUploadBytes)
	if err != nil {
		return nil, oops.Code("UPLOAD_DIR_FAILED").With("dir", cfg.UploadDir).Wrap(err)
	}

	st, err := deps.StoreFactory(ctx, cfg)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("driver", cfg.DBDriver).Wrap(err)
	}

	authSvc, err := auth.NewService(st, codec,
		auth.Config{AppName: cfg.AppName, SessionTTL: cfg.SessionTTL, ChallengeTTL: cfg.ChallengeTTL},
		auth.WithHasher(auth.NewBcryptHasher(cfg.BcryptCost)),
		auth.WithVerifier(auth.NewSignatureVerifier(auth.Secp256k1Recoverer, policy, logger)),
		auth.WithLogger(logger),
	)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	auth.RegisterMetrics(deps.Registry)
	httpapp.RegisterMetrics(deps.Registry)

	server, err := httpapp.NewServer(httpapp.Deps{
		Auth:    authSvc,
		Posts:   posts.NewService(st, uploads.URL),
		Users:   users.NewService(st, uploads.URL),
		Uploads: uploads,
		Limiter: rate.NewMemory(),
		Logger:  logger,
		Metrics: promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}),
	}, cfg)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	return &application{store: st, handler: server.Handler()}, nil
}
