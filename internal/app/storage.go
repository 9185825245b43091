package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/geocoder89/attendhub/internal/config"
	"github.com/geocoder89/attendhub/internal/db"
	"github.com/geocoder89/attendhub/internal/http/handlers"
	"github.com/geocoder89/attendhub/internal/observability"
	"github.com/geocoder89/attendhub/internal/repo/memory"
	"github.com/geocoder89/attendhub/internal/repo/mongodb"
	"github.com/geocoder89/attendhub/internal/repo/postgres"
)

// Storage is the selected backend behind the repository contracts.
type Storage struct {
	Events handlers.EventsRepo
	Users  handlers.UsersRepo
	Pinger handlers.Pinger
	Close  func(ctx context.Context)
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

// OpenStorage connects the backend named by STORE_DRIVER.
func OpenStorage(ctx context.Context, cfg config.Config, prom *observability.Prom, log *slog.Logger) (*Storage, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		pool, err := db.NewPool(ctx, cfg.DBURL, db.PoolConfig{})
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		log.Info("storage connected", "driver", cfg.StoreDriver)

		return &Storage{
			Events: postgres.NewEventsRepo(pool, prom),
			Users:  postgres.NewUsersRepo(pool, prom),
			Pinger: pingFunc(func(ctx context.Context) error { return postgres.Ping(ctx, pool) }),
			Close:  func(context.Context) { pool.Close() },
		}, nil

	case config.StoreDriverMongo:
		store, err := mongodb.Connect(ctx, mongodb.Config{
			URI:          cfg.MongoURI,
			Database:     cfg.MongoDB,
			Transactions: cfg.MongoTransactions,
		}, prom)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureIndexes(ctx); err != nil {
			_ = store.Close(context.Background())
			return nil, err
		}
		log.Info("storage connected", "driver", cfg.StoreDriver, "transactions", cfg.MongoTransactions)

		return &Storage{
			Events: store.Events(),
			Users:  store.Users(),
			Pinger: store,
			Close: func(ctx context.Context) {
				if err := store.Close(ctx); err != nil {
					log.Error("mongo disconnect failed", "err", err)
				}
			},
		}, nil

	case config.StoreDriverMemory:
		store := memory.NewStore()
		log.Warn("using in-memory storage; data is lost on restart")

		return &Storage{
			Events: store.Events(),
			Users:  store.Users(),
			Pinger: store,
			Close:  func(context.Context) {},
		}, nil
	}

	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}
