package models

import "time"

// EmbeddingRecord is one content-addressed cache entry. The fingerprint
// already encodes the embedding model, so switching models never reuses
// stale vectors. Entries are removed only by explicit maintenance.
type EmbeddingRecord struct {
	Fingerprint string    `bson:"_id" json:"fingerprint"`
	Vector      []float32 `bson:"vector" json:"vector"`
	Modelo      string    `bson:"modelo" json:"modelo"`
	CriadoEm    time.Time `bson:"criado_em" json:"criado_em"`
}
