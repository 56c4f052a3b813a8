package embedding

import (
	"context"
	"sync"
	"time"

	"conta-luz-chatbot/internal/logger"
	"conta-luz-chatbot/models"
	"conta-luz-chatbot/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/singleflight"
)

// Cache is the content-addressed embedding cache. Lookups are keyed by
// fingerprint, never by document identity: two faturas with identical
// normalized text share one vector and cost one provider call.
//
// Writes go through to MongoDB so the cache survives restarts; a failed
// write is retried by Flush. Entries are removed only by Prune.
type Cache struct {
	mu       sync.RWMutex
	entradas map[string]models.EmbeddingRecord
	sujas    map[string]struct{}

	provider Provider
	col      *mongo.Collection
	timeout  time.Duration
	grupo    singleflight.Group
	agora    func() time.Time
}

// NewCache wires the cache to its provider and persistence collection.
// col may be nil, which disables persistence (used in tests).
func NewCache(provider Provider, col *mongo.Collection, timeout time.Duration) *Cache {
	return &Cache{
		entradas: make(map[string]models.EmbeddingRecord),
		sujas:    make(map[string]struct{}),
		provider: provider,
		col:      col,
		timeout:  timeout,
		agora:    time.Now,
	}
}

// Load restores persisted entries at startup.
func (c *Cache) Load(ctx context.Context) error {
	if c.col == nil {
		return nil
	}
	cur, err := c.col.Find(ctx, bson.M{})
	if err != nil {
		return err
	}
	defer cur.Close(ctx)

	count := 0
	c.mu.Lock()
	defer c.mu.Unlock()
	for cur.Next(ctx) {
		var rec models.EmbeddingRecord
		if err := cur.Decode(&rec); err != nil {
			logger.Warn("entrada de cache corrompida ignorada", "error", err)
			continue
		}
		c.entradas[rec.Fingerprint] = rec
		count++
	}
	logger.Info("cache de embeddings carregado", "entradas", count)
	return cur.Err()
}

// GetOrCompute returns the cached vector for the text's fingerprint,
// computing it at most once. Concurrent callers for the same fingerprint
// coalesce onto a single provider call; all of them observe the owning
// call's result, success or failure. A failure caches nothing.
func (c *Cache) GetOrCompute(ctx context.Context, texto string) ([]float32, error) {
	fp := utils.Fingerprint(texto, c.provider.Modelo())

	c.mu.RLock()
	rec, ok := c.entradas[fp]
	c.mu.RUnlock()
	if ok {
		return rec.Vector, nil
	}

	v, err, _ := c.grupo.Do(fp, func() (interface{}, error) {
		// A racing caller may have filled the entry before we got here.
		c.mu.RLock()
		rec, ok := c.entradas[fp]
		c.mu.RUnlock()
		if ok {
			return rec.Vector, nil
		}

		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		vetor, err := c.provider.Embed(callCtx, texto)
		if err != nil {
			return nil, err
		}

		novo := models.EmbeddingRecord{
			Fingerprint: fp,
			Vector:      vetor,
			Modelo:      c.provider.Modelo(),
			CriadoEm:    c.agora(),
		}
		c.mu.Lock()
		c.entradas[fp] = novo
		c.mu.Unlock()

		c.persistir(ctx, novo)
		return vetor, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]float32), nil
}

// Fingerprint exposes the cache key for a text under the active model.
// The indexer uses it to tag index entries consistently with the cache.
func (c *Cache) Fingerprint(texto string) string {
	return utils.Fingerprint(texto, c.provider.Modelo())
}

// Tamanho returns the number of cached entries.
func (c *Cache) Tamanho() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entradas)
}

// Prune is the explicit maintenance policy: it deterministically drops
// every entry older than maxIdade, in memory and in MongoDB, and returns
// how many were removed. Nothing else ever evicts entries.
func (c *Cache) Prune(ctx context.Context, maxIdade time.Duration) (int, error) {
	limite := c.agora().Add(-maxIdade)

	c.mu.Lock()
	removidas := 0
	for fp, rec := range c.entradas {
		if rec.CriadoEm.Before(limite) {
			delete(c.entradas, fp)
			delete(c.sujas, fp)
			removidas++
		}
	}
	c.mu.Unlock()

	if c.col != nil {
		if _, err := c.col.DeleteMany(ctx, bson.M{"criado_em": bson.M{"$lt": limite}}); err != nil {
			return removidas, err
		}
	}
	if removidas > 0 {
		logger.Info("cache de embeddings podado", "removidas", removidas)
	}
	return removidas, nil
}

// Flush retries persistence for entries whose write-through failed.
// Called periodically and on shutdown.
func (c *Cache) Flush(ctx context.Context) error {
	if c.col == nil {
		return nil
	}

	c.mu.RLock()
	pendentes := make([]models.EmbeddingRecord, 0, len(c.sujas))
	for fp := range c.sujas {
		if rec, ok := c.entradas[fp]; ok {
			pendentes = append(pendentes, rec)
		}
	}
	c.mu.RUnlock()

	for _, rec := range pendentes {
		if err := c.upsert(ctx, rec); err != nil {
			return err
		}
		c.mu.Lock()
		delete(c.sujas, rec.Fingerprint)
		c.mu.Unlock()
	}
	return nil
}

// persistir write-through; on failure the entry is marked dirty for Flush.
func (c *Cache) persistir(ctx context.Context, rec models.EmbeddingRecord) {
	if c.col == nil {
		return
	}
	if err := c.upsert(ctx, rec); err != nil {
		logger.Warn("falha ao persistir embedding", "fingerprint", rec.Fingerprint, "error", err)
		c.mu.Lock()
		c.sujas[rec.Fingerprint] = struct{}{}
		c.mu.Unlock()
	}
}

func (c *Cache) upsert(ctx context.Context, rec models.EmbeddingRecord) error {
	_, err := c.col.ReplaceOne(ctx,
		bson.M{"_id": rec.Fingerprint},
		rec,
		options.Replace().SetUpsert(true),
	)
	return err
}
