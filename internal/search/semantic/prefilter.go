// Package semantic implements the nearest-neighbor prefilter over
// whole-document embeddings. It exists purely to bound the cost of lexical
// ranking and cross-encoder scoring by narrowing the candidate universe
// cheaply first.
package semantic

import (
	"fmt"
	"math"
	"sort"

	"github.com/EgorSmi/hack-fake-news/internal/corpus"
	apperrors "github.com/EgorSmi/hack-fake-news/pkg/errors"
)

// Hit is one prefilter result: a document and its cosine similarity to the
// query embedding.
type Hit struct {
	DocID int
	Score float64
}

// Prefilter holds a frozen copy of the corpus embeddings for brute-force
// cosine search.
type Prefilter struct {
	ids        []int
	embeddings [][]float32
	dim        int
}

// Build indexes the embeddings of every stored document, in ascending id
// order. Documents without an embedding are rejected: a corpus that was
// built without the embedding collaborator cannot serve semantic search.
func Build(store *corpus.Store) (*Prefilter, error) {
	p := &Prefilter{}
	for _, id := range store.Keys() {
		doc, _ := store.Get(id)
		if len(doc.Embedding) == 0 {
			return nil, fmt.Errorf("document %d has no embedding: %w", id, apperrors.ErrInvalidInput)
		}
		if p.dim == 0 {
			p.dim = len(doc.Embedding)
		} else if len(doc.Embedding) != p.dim {
			return nil, fmt.Errorf("document %d embedding dimension %d, corpus uses %d: %w",
				id, len(doc.Embedding), p.dim, apperrors.ErrInvalidInput)
		}
		p.ids = append(p.ids, id)
		p.embeddings = append(p.embeddings, doc.Embedding)
	}
	return p, nil
}

// Search returns the k documents nearest to query by cosine similarity,
// sorted descending, ties broken by ascending doc id. When k exceeds the
// corpus size the full corpus is returned.
func (p *Prefilter) Search(query []float32, k int) ([]Hit, error) {
	if k < 1 {
		return nil, fmt.Errorf("prefilter k must be positive, got %d: %w", k, apperrors.ErrInvalidInput)
	}
	if len(p.ids) > 0 && len(query) != p.dim {
		return nil, fmt.Errorf("query embedding dimension %d, corpus uses %d: %w",
			len(query), p.dim, apperrors.ErrInvalidInput)
	}
	hits := make([]Hit, len(p.ids))
	for i, emb := range p.embeddings {
		hits[i] = Hit{DocID: p.ids[i], Score: Cosine(query, emb)}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].DocID < hits[j].DocID
	})
	if k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

// Size returns the number of indexed documents.
func (p *Prefilter) Size() int {
	return len(p.ids)
}

// Cosine returns the cosine similarity of two equal-length vectors. A zero
// vector yields 0 rather than NaN.
func Cosine(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
