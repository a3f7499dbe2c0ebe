package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jcmexdev/order-desk/internal/api/httpx"
	"github.com/jcmexdev/order-desk/internal/catalog"
	"github.com/jcmexdev/order-desk/internal/docstore"
	"github.com/jcmexdev/order-desk/internal/docstore/memory"
	"github.com/jcmexdev/order-desk/internal/docstore/redisstore"
	"github.com/jcmexdev/order-desk/internal/docstore/sqlite"
	"github.com/jcmexdev/order-desk/internal/identity"
	"github.com/jcmexdev/order-desk/internal/occ"
	"github.com/jcmexdev/order-desk/internal/ordering"
	"github.com/jcmexdev/order-desk/internal/pkg/config"
)

// app holds the services built from one configuration.
type app struct {
	health httpx.HealthCheck
	close  func() error

	users    *identity.Directory
	verifier *identity.Verifier
	catalog  *catalog.Service
	orders   *ordering.Service
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	store, health, closeStore, err := openStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	retrier := occ.New(occ.WithMaxAttempts(cfg.Retry.MaxAttempts))
	products := catalog.NewRepository(store, cfg.Store.Collection)
	orders := ordering.NewRepository(store, cfg.Store.Collection)
	users := identity.NewDirectory(store, cfg.Store.Collection)

	return &app{
		health:   health,
		close:    closeStore,
		users:    users,
		verifier: identity.NewVerifier(users, []byte(cfg.Auth.JWTKey), cfg.Auth.JWTIssuer, cfg.Auth.TokenTTL),
		catalog:  catalog.NewService(products, retrier),
		orders:   ordering.NewService(products, orders, retrier),
	}, nil
}

func (a *app) handler() *httpx.Handler {
	return httpx.NewHandler(a.verifier, a.catalog, a.orders, a.users, a.health)
}

// openStore selects the document backend. Remote backends are pinged so a
// bad address fails at startup rather than on the first request.
func openStore(ctx context.Context, cfg config.StoreConfig) (docstore.Store, httpx.HealthCheck, func() error, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		slog.WarnContext(ctx, "using in-memory store, data is lost on exit")
		return memory.New(), nil, func() error { return nil }, nil

	case config.DriverSQLite:
		s, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, nil, err
		}
		slog.InfoContext(ctx, "using sqlite store", "path", cfg.SQLitePath)
		return s, s.Ping, s.Close, nil

	case config.DriverRedis:
		s := redisstore.Dial(cfg.RedisAddr, cfg.RedisPrefix)
		if err := s.Ping(ctx); err != nil {
			return nil, nil, nil, errors.Join(err, s.Close())
		}
		slog.InfoContext(ctx, "using redis store", "addr", cfg.RedisAddr, "prefix", cfg.RedisPrefix)
		return s, s.Ping, s.Close, nil
	}
	return nil, nil, nil, fmt.Errorf("cli: unknown store driver %q", cfg.Driver)
}
