package semantic

import (
	"errors"
	"math"
	"testing"

	"github.com/EgorSmi/hack-fake-news/internal/corpus"
	apperrors "github.com/EgorSmi/hack-fake-news/pkg/errors"
)

func fiveDocCorpus(t *testing.T) *Prefilter {
	t.Helper()
	store := corpus.NewStore()
	embeddings := [][]float32{
		{1, 0},
		{0.9, 0.1},
		{0, 1},
		{-1, 0},
		{0.5, 0.5},
	}
	for id, emb := range embeddings {
		store.Add(&corpus.Document{ID: id, Embedding: emb})
	}
	p, err := Build(store)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return p
}

func TestSearchReturnsMinKCorpusSize(t *testing.T) {
	p := fiveDocCorpus(t)

	hits, err := p.Search([]float32{1, 0}, 2)
	if err != nil {
		t.Fatalf("Search(k=2): %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("Search(k=2) returned %d hits, want 2", len(hits))
	}

	hits, err = p.Search([]float32{1, 0}, 10)
	if err != nil {
		t.Fatalf("Search(k=10): %v", err)
	}
	if len(hits) != 5 {
		t.Fatalf("Search(k=10) returned %d hits, want full corpus of 5", len(hits))
	}

	seen := make(map[int]bool)
	for i, hit := range hits {
		if seen[hit.DocID] {
			t.Errorf("duplicate doc %d in results", hit.DocID)
		}
		seen[hit.DocID] = true
		if i > 0 && hits[i-1].Score < hit.Score {
			t.Errorf("results not sorted by similarity: %v before %v", hits[i-1], hit)
		}
	}
	if hits[0].DocID != 0 {
		t.Errorf("nearest to (1,0) is doc %d, want 0", hits[0].DocID)
	}
}

func TestSearchTieBreakByDocID(t *testing.T) {
	store := corpus.NewStore()
	// Same direction, different magnitude: identical cosine.
	store.Add(&corpus.Document{ID: 3, Embedding: []float32{2, 0}})
	store.Add(&corpus.Document{ID: 1, Embedding: []float32{4, 0}})
	p, err := Build(store)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	hits, err := p.Search([]float32{1, 0}, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if hits[0].DocID != 1 || hits[1].DocID != 3 {
		t.Errorf("equal scores must break ties ascending by id, got %v", hits)
	}
}

func TestSearchInvalidK(t *testing.T) {
	p := fiveDocCorpus(t)
	if _, err := p.Search([]float32{1, 0}, 0); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("Search(k=0) = %v, want ErrInvalidInput", err)
	}
}

func TestSearchDimensionMismatch(t *testing.T) {
	p := fiveDocCorpus(t)
	if _, err := p.Search([]float32{1, 0, 0}, 2); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("Search with wrong dimension = %v, want ErrInvalidInput", err)
	}
}

func TestBuildRejectsMissingEmbedding(t *testing.T) {
	store := corpus.NewStore()
	store.Add(&corpus.Document{ID: 0})
	if _, err := Build(store); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("Build without embeddings = %v, want ErrInvalidInput", err)
	}
}

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2}, []float32{1, 2}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Cosine(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Cosine = %v, want %v", got, tt.want)
			}
		})
	}
}
