package index

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync/atomic"

	"conta-luz-chatbot/models"
)

// ErrDimensao rejects a query vector whose dimensionality does not match
// the index.
var ErrDimensao = errors.New("dimensao do vetor incompativel com o indice")

// Entry registers one embedded document into the index. The index owns
// only the vector and the back-reference, never document content.
type Entry struct {
	Fingerprint string
	Ref         models.DocumentRef
	Vector      []float32
}

// Result is one similarity match, highest score first.
type Result struct {
	Ref   models.DocumentRef
	Score float64
}

// snapshot is immutable after construction. Readers search whichever
// snapshot they load; Build installs a fresh one atomically.
type snapshot struct {
	entradas []Entry
}

// Index performs brute-force cosine similarity search over an immutable
// snapshot. Rebuilds are batch-only: queries in flight during Build see
// either the old or the new snapshot, never a partial one.
type Index struct {
	dim  int
	snap atomic.Pointer[snapshot]
}

// New creates an empty index for vectors of the given dimension.
func New(dim int) (*Index, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("invalid dimension %d", dim)
	}
	idx := &Index{dim: dim}
	idx.snap.Store(&snapshot{})
	return idx, nil
}

// Dimensao returns the configured vector dimensionality.
func (idx *Index) Dimensao() int { return idx.dim }

// Tamanho returns the number of entries in the current snapshot.
func (idx *Index) Tamanho() int { return len(idx.snap.Load().entradas) }

// Build replaces the index contents atomically. Entry vectors are
// L2-normalized into a private copy so later mutation of the caller's
// slices cannot corrupt the snapshot.
func (idx *Index) Build(entradas []Entry) error {
	novas := make([]Entry, 0, len(entradas))
	for _, e := range entradas {
		if len(e.Vector) != idx.dim {
			return fmt.Errorf("%w: entrada %s tem %d, indice espera %d",
				ErrDimensao, e.Fingerprint, len(e.Vector), idx.dim)
		}
		copia := e
		copia.Vector = normalizar(e.Vector)
		novas = append(novas, copia)
	}

	idx.snap.Store(&snapshot{entradas: novas})
	return nil
}

// Search returns up to k entries by descending cosine similarity.
// Ties break by document recency (period desc) then matricula, so the
// ordering is deterministic for a fixed snapshot and input.
func (idx *Index) Search(vetor []float32, k int) ([]Result, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	if len(vetor) != idx.dim {
		return nil, fmt.Errorf("%w: consulta tem %d, indice espera %d",
			ErrDimensao, len(vetor), idx.dim)
	}

	snap := idx.snap.Load()
	consulta := normalizar(vetor)

	resultados := make([]Result, 0, len(snap.entradas))
	for _, e := range snap.entradas {
		resultados = append(resultados, Result{Ref: e.Ref, Score: dot(e.Vector, consulta)})
	}

	sort.Slice(resultados, func(i, j int) bool {
		if resultados[i].Score != resultados[j].Score {
			return resultados[i].Score > resultados[j].Score
		}
		if resultados[i].Ref.Periodo != resultados[j].Ref.Periodo {
			return resultados[i].Ref.Periodo > resultados[j].Ref.Periodo
		}
		return resultados[i].Ref.Matricula < resultados[j].Ref.Matricula
	})

	if k > len(resultados) {
		k = len(resultados)
	}
	return resultados[:k], nil
}

func normalizar(v []float32) []float32 {
	var soma float64
	for _, x := range v {
		soma += float64(x) * float64(x)
	}
	norma := math.Sqrt(soma)
	out := make([]float32, len(v))
	if norma == 0 {
		copy(out, v)
		return out
	}
	for i, x := range v {
		out[i] = float32(float64(x) / norma)
	}
	return out
}

func dot(a, b []float32) float64 {
	var soma float64
	for i := range a {
		soma += float64(a[i]) * float64(b[i])
	}
	return soma
}
