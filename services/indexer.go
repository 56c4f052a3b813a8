package services

import (
	"context"
	"fmt"

	"conta-luz-chatbot/internal/embedding"
	"conta-luz-chatbot/internal/index"
	"conta-luz-chatbot/internal/logger"
	"conta-luz-chatbot/internal/store"
	"conta-luz-chatbot/internal/telemetry"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// Indexer rebuilds the vector index from the document store, embedding
// every fatura through the cache. Rebuilds are batch-only and atomic:
// searches in flight keep the previous snapshot until Build swaps it.
type Indexer struct {
	store   store.BillingStore
	cache   *embedding.Cache
	idx     *index.Index
	metrics *telemetry.Metrics
}

// NewIndexer wires the rebuild path. metrics may be nil.
func NewIndexer(billing store.BillingStore, cache *embedding.Cache, idx *index.Index, metrics *telemetry.Metrics) *Indexer {
	return &Indexer{store: billing, cache: cache, idx: idx, metrics: metrics}
}

// Rebuild embeds the whole corpus and installs a fresh snapshot. On any
// failure the previous snapshot stays in place untouched.
func (ix *Indexer) Rebuild(ctx context.Context) error {
	tracer := otel.Tracer("indexer")
	ctx, span := tracer.Start(ctx, "indexer.rebuild")
	defer span.End()

	faturas, err := ix.store.Todas(ctx)
	if err != nil {
		ix.recordRebuild(false, 0)
		return fmt.Errorf("failed to load corpus: %w", err)
	}
	span.SetAttributes(attribute.Int("indexer.documents", len(faturas)))

	entradas := make([]index.Entry, 0, len(faturas))
	for _, f := range faturas {
		texto := f.TextoIndexavel()
		vetor, err := ix.cache.GetOrCompute(ctx, texto)
		if err != nil {
			ix.recordRebuild(false, 0)
			return fmt.Errorf("failed to embed fatura %s/%s: %w", f.Matricula, f.Periodo(), err)
		}
		entradas = append(entradas, index.Entry{
			Fingerprint: ix.cache.Fingerprint(texto),
			Ref:         f.Ref(),
			Vector:      vetor,
		})
	}

	if err := ix.idx.Build(entradas); err != nil {
		ix.recordRebuild(false, len(entradas))
		return fmt.Errorf("failed to build index: %w", err)
	}

	ix.recordRebuild(true, len(entradas))
	logger.Info("indice vetorial reconstruido", "entradas", len(entradas), "cache", ix.cache.Tamanho())
	return nil
}

func (ix *Indexer) recordRebuild(success bool, docs int) {
	if ix.metrics != nil {
		ix.metrics.RecordIndexRebuild(success, docs)
	}
}
