package services

import (
	"context"
	"time"

	"conta-luz-chatbot/internal/config"
	"conta-luz-chatbot/internal/embedding"
	"conta-luz-chatbot/internal/logger"
	"conta-luz-chatbot/internal/session"

	"github.com/go-co-op/gocron"
)

// Maintenance runs the advisory background jobs: the session sweep
// (memory reclaim only; Touch re-checks expiry regardless), embedding
// cache flush retries, the age-based cache prune and the periodic index
// rebuild that picks up faturas written after boot.
type Maintenance struct {
	scheduler *gocron.Scheduler
	registry  *session.Registry
	cache     *embedding.Cache
	indexer   *Indexer
	cfg       *config.Config
}

func NewMaintenance(registry *session.Registry, cache *embedding.Cache, indexer *Indexer, cfg *config.Config) *Maintenance {
	return &Maintenance{
		scheduler: gocron.NewScheduler(time.UTC),
		registry:  registry,
		cache:     cache,
		indexer:   indexer,
		cfg:       cfg,
	}
}

func (m *Maintenance) Start() error {
	if _, err := m.scheduler.Every(m.cfg.SessaoSweep).Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		m.registry.Sweep(ctx)
	}); err != nil {
		return err
	}

	if _, err := m.scheduler.Every(time.Hour).Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := m.cache.Flush(ctx); err != nil {
			logger.Warn("flush do cache de embeddings falhou", "error", err)
		}
	}); err != nil {
		return err
	}

	if _, err := m.scheduler.Every(24 * time.Hour).Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if _, err := m.cache.Prune(ctx, m.cfg.CacheMaxIdade); err != nil {
			logger.Warn("poda do cache de embeddings falhou", "error", err)
		}
	}); err != nil {
		return err
	}

	if _, err := m.scheduler.Every(m.cfg.IndexRebuild).Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if err := m.indexer.Rebuild(ctx); err != nil {
			// The previous snapshot keeps serving searches.
			logger.Warn("reconstrucao periodica do indice falhou", "error", err)
		}
	}); err != nil {
		return err
	}

	m.scheduler.StartAsync()
	logger.Info("manutencao agendada", "sweep", m.cfg.SessaoSweep.String(), "index_rebuild", m.cfg.IndexRebuild.String())
	return nil
}

func (m *Maintenance) Stop() {
	m.scheduler.Stop()
}
