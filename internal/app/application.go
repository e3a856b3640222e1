// Package app assembles the storage backends, pipeline services and HTTP
// surface into a runnable application.
package app

import (
	"database/sql"
	"fmt"
	"net/http"

	"github.com/go-redis/redis/v8"

	"github.com/potipress/insideout/internal/app/httpapi"
	"github.com/potipress/insideout/internal/app/metrics"
	"github.com/potipress/insideout/internal/app/services/assistant"
	"github.com/potipress/insideout/internal/app/services/auditlog"
	"github.com/potipress/insideout/internal/app/services/palette"
	"github.com/potipress/insideout/internal/app/services/quota"
	"github.com/potipress/insideout/internal/app/services/respond"
	"github.com/potipress/insideout/internal/app/services/vision"
	"github.com/potipress/insideout/internal/app/storage"
	"github.com/potipress/insideout/internal/app/storage/memory"
	"github.com/potipress/insideout/internal/app/storage/postgres"
	"github.com/potipress/insideout/internal/app/storage/redisstore"
	supabasestore "github.com/potipress/insideout/internal/app/storage/supabase"
	"github.com/potipress/insideout/internal/config"
	"github.com/potipress/insideout/internal/database"
	"github.com/potipress/insideout/pkg/logger"
)

// Stores groups the persistence collaborators. Nil fields fall back to a
// shared in-memory store, which keeps tests and local runs dependency-free.
type Stores struct {
	Overrides storage.OverrideStore
	Quota     storage.QuotaStore
	Audit     storage.AuditStore
}

func (s *Stores) fillDefaults() {
	var mem *memory.Store
	ensure := func() *memory.Store {
		if mem == nil {
			mem = memory.New()
		}
		return mem
	}
	if s.Overrides == nil {
		s.Overrides = ensure()
	}
	if s.Quota == nil {
		s.Quota = ensure()
	}
	if s.Audit == nil {
		s.Audit = ensure()
	}
}

// Application is the assembled service.
type Application struct {
	Handler   http.Handler
	Collector *metrics.Collector
	Log       *logger.Logger

	db *sql.DB
}

// Close releases resources held by the storage layer.
func (a *Application) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

// NewStores opens the persistence backend named by the configuration. The
// returned *sql.DB is non-nil only for the postgres driver.
func NewStores(cfg *config.Config, log *logger.Logger) (Stores, *sql.DB, error) {
	if log == nil {
		log = logger.NewDefault("storage")
	}
	switch cfg.Database.Driver {
	case "memory", "":
		return Stores{}, nil, nil

	case "postgres":
		db, err := sql.Open("postgres", cfg.Database.DSN)
		if err != nil {
			return Stores{}, nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := postgres.Migrate(db); err != nil {
			db.Close()
			return Stores{}, nil, fmt.Errorf("migrate: %w", err)
		}
		store := postgres.New(db)
		log.Infof("postgres store ready, migrations applied")
		return Stores{Overrides: store, Quota: store, Audit: store}, db, nil

	case "supabase":
		client, err := database.NewClient(database.Config{
			URL:        cfg.Supabase.URL,
			ServiceKey: cfg.Supabase.ServiceKey,
		})
		if err != nil {
			return Stores{}, nil, fmt.Errorf("supabase client: %w", err)
		}
		store := supabasestore.New(client)
		return Stores{Overrides: store, Quota: store, Audit: store}, nil, nil

	default:
		return Stores{}, nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

// New assembles the application from configuration and stores. When the
// Redis address is set, quota counters move to Redis regardless of the
// primary driver.
func New(cfg *config.Config, stores Stores, db *sql.DB, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.New(cfg.Logging)
	}

	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		stores.Quota = redisstore.NewQuotaStore(client)
		log.WithComponent("app").Infof("quota counters backed by redis at %s", cfg.Redis.Addr)
	}
	stores.fillDefaults()

	var classifier vision.Classifier
	if cfg.Engines.ClassifierEndpoint != "" {
		c, err := vision.NewHTTPClassifier(nil, cfg.Engines.ClassifierEndpoint, log.WithComponent("vision"))
		if err != nil {
			return nil, fmt.Errorf("classifier: %w", err)
		}
		classifier = c
	}

	var generator respond.Generator
	if cfg.Engines.GeneratorBin != "" {
		g, err := respond.NewCommandGenerator(cfg.Engines.GeneratorBin, cfg.Engines.GeneratorModel, cfg.Engines.GeneratorTimeout)
		if err != nil {
			return nil, fmt.Errorf("generator: %w", err)
		}
		generator = g
	}

	collector := metrics.NewCollector("insideout")

	paletteSvc := palette.New(stores.Overrides, log.WithComponent("palette"))
	quotaSvc := quota.New(stores.Quota, log.WithComponent("quota"))
	pipeline := assistant.New(
		vision.NewAdapter(classifier, log.WithComponent("vision")),
		paletteSvc,
		respond.NewSynthesizer(generator, log.WithComponent("respond")),
		quotaSvc,
		collector,
		log.WithComponent("assistant"),
	)
	recorder := auditlog.New(stores.Audit, log.WithComponent("audit"))

	handler := httpapi.NewHandler(pipeline, paletteSvc, quotaSvc, recorder, log.WithComponent("httpapi"))
	router := httpapi.NewRouter(handler, collector, log, httpapi.RouterConfig{
		AuthSecret:         cfg.Auth.Secret,
		CORSOrigins:        cfg.Server.CORSOrigins,
		RateLimitPerSecond: cfg.Server.RateLimit,
		RateLimitBurst:     cfg.Server.RateLimitBurst,
	})

	return &Application{Handler: router, Collector: collector, Log: log, db: db}, nil
}
