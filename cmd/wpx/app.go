package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"wpx-extend/internal/cache"
	"wpx-extend/internal/config"
	"wpx-extend/internal/lifecycle"
	"wpx-extend/internal/logger"
	"wpx-extend/internal/metadata"
	"wpx-extend/internal/metrics"
	"wpx-extend/internal/pipeline"
	"wpx-extend/internal/registration"
	"wpx-extend/internal/seed"
	"wpx-extend/internal/store"
)

// app holds the wired components shared by every command.
type app struct {
	cfg      *config.Config
	log      zerolog.Logger
	promReg  *prometheus.Registry
	metrics  *metrics.Metrics
	store    *store.Store
	cache    *cache.Cache
	registry *metadata.Registry
	pipeline *pipeline.Pipeline
	importer *seed.Importer
	hooks    *lifecycle.Hooks
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	log := logger.New(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(promReg)

	db, err := store.New(ctx, cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := db.Bootstrap(ctx); err != nil {
		db.Close()
		return nil, err
	}

	var backend cache.Backend = cache.NewMemoryBackend()
	if cfg.Cache.Backend == "database" {
		backend = store.NewTransientBackend(db)
	}
	c := cache.New(backend,
		cache.WithTTL(cfg.Cache.TTL),
		cache.WithMultisite(cfg.Multisite),
		cache.WithLogger(log),
		cache.WithMetrics(m),
	)

	reg := metadata.NewRegistry()
	p := pipeline.New(db, c, registration.NewEmitter(reg, log, m),
		pipeline.WithMetaboxes(cfg.Pipeline.Metaboxes),
		pipeline.WithLogger(log),
		pipeline.WithMetrics(m),
		pipeline.WithReset(reg.Reset),
	)
	im := seed.NewImporter(db, c, func(ctx context.Context) error {
		_, err := p.Run(ctx)
		return err
	}, log, m)

	return &app{
		cfg:      cfg,
		log:      log,
		promReg:  promReg,
		metrics:  m,
		store:    db,
		cache:    c,
		registry: reg,
		pipeline: p,
		importer: im,
		hooks:    lifecycle.New(db, c, reg, log),
	}, nil
}

func (a *app) Close() {
	a.store.Close()
}
