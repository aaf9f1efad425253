package server

import (
	"fmt"
	"log/slog"

	"github.com/etpamelo/gallerybox/internal/server/catalog"
	"github.com/etpamelo/gallerybox/internal/server/generation"
	"github.com/etpamelo/gallerybox/internal/server/manifest"
	"github.com/etpamelo/gallerybox/internal/server/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const metricsNamespace = "gallerybox"

type Services struct {
	Store      store.Store
	Manifest   *manifest.Manager
	Catalog    *catalog.Service
	Generation *generation.Proxy
	Metrics    *prometheus.Registry
}

func NewServices(config *Config) (*Services, error) {
	backend, err := store.New(&config.Store)
	if err != nil {
		return nil, fmt.Errorf("create store: %w", err)
	}

	manifestPath := config.ManifestPath
	if manifestPath == "" {
		manifestPath = manifest.DefaultPath
	}

	// the in-memory backend starts empty, give it a catalog to work on
	if mem, ok := backend.(*store.MemoryStore); ok {
		mem.Seed(manifestPath, []byte(`{"models": []}`))
		slog.Warn("using in-memory store, catalog changes are lost on exit")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	observer, err := store.NewObserver(metricsNamespace, registry)
	if err != nil {
		return nil, err
	}
	st := store.Instrument(backend, observer)

	manifestMgr := manifest.NewManager(st, manifestPath)
	catalogSvc := catalog.NewService(st, manifestMgr)

	generationProxy := generation.New(&config.Generation)
	if !generationProxy.IsConfigured() {
		slog.Warn("generation upstream not configured, generation routes will fail")
	} else {
		slog.Info("generation upstream", "mode", generationProxy.Mode())
	}

	return &Services{
		Store:      st,
		Manifest:   manifestMgr,
		Catalog:    catalogSvc,
		Generation: generationProxy,
		Metrics:    registry,
	}, nil
}
