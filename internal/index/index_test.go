package index

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"conta-luz-chatbot/models"
)

func entrada(matricula, periodo string, vetor []float32) Entry {
	return Entry{
		Fingerprint: matricula + "-" + periodo,
		Ref:         models.DocumentRef{Matricula: matricula, Periodo: periodo},
		Vector:      vetor,
	}
}

func TestNewRejeitaDimensaoInvalida(t *testing.T) {
	if _, err := New(0); err == nil {
		t.Error("New(0) must fail")
	}
	if _, err := New(-5); err == nil {
		t.Error("New(-5) must fail")
	}
}

func TestSearchOrdenaPorSimilaridade(t *testing.T) {
	idx, err := New(3)
	if err != nil {
		t.Fatal(err)
	}

	err = idx.Build([]Entry{
		entrada("111111111", "2024-01", []float32{1, 0, 0}),
		entrada("111111111", "2024-02", []float32{0.9, 0.1, 0}),
		entrada("111111111", "2024-03", []float32{0, 1, 0}),
		entrada("111111111", "2024-04", []float32{0, 0, 1}),
	})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	resultados, err := idx.Search([]float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(resultados) != 2 {
		t.Fatalf("got %d results, want 2", len(resultados))
	}
	if resultados[0].Ref.Periodo != "2024-01" {
		t.Errorf("best match = %s, want 2024-01", resultados[0].Ref.Periodo)
	}
	if resultados[1].Ref.Periodo != "2024-02" {
		t.Errorf("second match = %s, want 2024-02", resultados[1].Ref.Periodo)
	}
	if resultados[0].Score < resultados[1].Score {
		t.Error("results must be in descending score order")
	}
}

func TestSearchDesempateDeterministico(t *testing.T) {
	idx, _ := New(2)

	// Identical vectors: order falls back to period desc, matricula asc.
	err := idx.Build([]Entry{
		entrada("222222222", "2024-01", []float32{1, 0}),
		entrada("111111111", "2024-03", []float32{1, 0}),
		entrada("111111111", "2024-01", []float32{1, 0}),
	})
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 10; i++ {
		resultados, err := idx.Search([]float32{1, 0}, 3)
		if err != nil {
			t.Fatal(err)
		}
		got := fmt.Sprintf("%s|%s %s|%s %s|%s",
			resultados[0].Ref.Matricula, resultados[0].Ref.Periodo,
			resultados[1].Ref.Matricula, resultados[1].Ref.Periodo,
			resultados[2].Ref.Matricula, resultados[2].Ref.Periodo)
		want := "111111111|2024-03 111111111|2024-01 222222222|2024-01"
		if got != want {
			t.Fatalf("iteration %d: order %q, want %q", i, got, want)
		}
	}
}

func TestSearchDimensaoIncompativel(t *testing.T) {
	idx, _ := New(3)

	if _, err := idx.Search([]float32{1, 0}, 5); !errors.Is(err, ErrDimensao) {
		t.Fatalf("Search with wrong dim = %v, want ErrDimensao", err)
	}
}

func TestBuildDimensaoIncompativel(t *testing.T) {
	idx, _ := New(3)

	if err := idx.Build([]Entry{entrada("111111111", "2024-01", []float32{1, 0})}); !errors.Is(err, ErrDimensao) {
		t.Fatalf("Build with wrong dim = %v, want ErrDimensao", err)
	}
	if idx.Tamanho() != 0 {
		t.Error("failed Build must not alter the snapshot")
	}
}

func TestSearchIndiceVazio(t *testing.T) {
	idx, _ := New(3)

	resultados, err := idx.Search([]float32{1, 0, 0}, 5)
	if err != nil {
		t.Fatalf("Search on empty index failed: %v", err)
	}
	if len(resultados) != 0 {
		t.Errorf("empty index returned %d results", len(resultados))
	}
}

func TestSearchKMaiorQueIndice(t *testing.T) {
	idx, _ := New(2)
	idx.Build([]Entry{entrada("111111111", "2024-01", []float32{1, 0})})

	resultados, err := idx.Search([]float32{1, 0}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(resultados) != 1 {
		t.Errorf("got %d results, want 1", len(resultados))
	}
}

func TestBuildCopiaVetores(t *testing.T) {
	idx, _ := New(2)
	vetor := []float32{1, 0}
	idx.Build([]Entry{entrada("111111111", "2024-01", vetor)})

	// Mutating the caller's slice must not affect the snapshot.
	vetor[0] = 0
	vetor[1] = 1

	resultados, _ := idx.Search([]float32{1, 0}, 1)
	if resultados[0].Score < 0.99 {
		t.Errorf("snapshot shares memory with caller slice, score = %f", resultados[0].Score)
	}
}

func TestSearchDuranteRebuild(t *testing.T) {
	idx, _ := New(2)
	idx.Build([]Entry{
		entrada("111111111", "2024-01", []float32{1, 0}),
		entrada("111111111", "2024-02", []float32{1, 0}),
	})

	var wg sync.WaitGroup
	parar := make(chan struct{})

	// Readers must always observe a complete snapshot: either 2 or 3
	// entries worth of results, never a partial state.
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-parar:
					return
				default:
				}
				resultados, err := idx.Search([]float32{1, 0}, 10)
				if err != nil {
					t.Errorf("Search during rebuild failed: %v", err)
					return
				}
				if n := len(resultados); n != 2 && n != 3 {
					t.Errorf("observed partial snapshot with %d results", n)
					return
				}
			}
		}()
	}

	for i := 0; i < 100; i++ {
		err := idx.Build([]Entry{
			entrada("111111111", "2024-01", []float32{1, 0}),
			entrada("111111111", "2024-02", []float32{1, 0}),
			entrada("111111111", "2024-03", []float32{1, 0}),
		})
		if err != nil {
			t.Fatal(err)
		}
		err = idx.Build([]Entry{
			entrada("111111111", "2024-01", []float32{1, 0}),
			entrada("111111111", "2024-02", []float32{1, 0}),
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	close(parar)
	wg.Wait()
}
