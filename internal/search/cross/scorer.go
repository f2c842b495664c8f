// Package cross implements the fine-grained sentence-pair scoring stage.
// For every lexical candidate it embeds the sentences around each shared
// entity on both sides and measures how well the best-aligned pair agrees,
// producing a per-document distance that the pipeline fuses into the final
// verdict.
package cross

import (
	"context"
	"fmt"
	"sort"

	"github.com/EgorSmi/hack-fake-news/internal/nlp"
	"github.com/EgorSmi/hack-fake-news/internal/search/lexical"
	"github.com/EgorSmi/hack-fake-news/internal/search/semantic"
)

// Result is the cross-scoring outcome for one candidate document.
// Distance is the weighted average of per-entity distances; Figure is
// 1 - Distance and lives in [-1, 1]. It is never clamped: strongly
// contradictory sentence pairs are allowed to push it negative.
type Result struct {
	DocID    int
	Distance float64
	Figure   float64
	Entities map[string]float64
}

// Scorer computes sentence-level agreement between a query and its lexical
// candidates.
type Scorer struct {
	embedder nlp.Embedder
}

// NewScorer creates a Scorer backed by the given embedding collaborator.
func NewScorer(embedder nlp.Embedder) *Scorer {
	return &Scorer{embedder: embedder}
}

// Score evaluates every candidate. The per-entity distance is
// 1 - max cosine over all (query sentence, source sentence) pairs for that
// entity, so one well-aligned pair is enough to call the entity covered.
// Entity distances are averaged weighted by the lexical per-entity scores;
// a candidate whose usable entities have zero total weight is excluded from
// the result rather than reported with an undefined aggregate.
//
// All sentences across all candidates are embedded in a single collaborator
// call; query sentences repeat across candidates and are deduplicated.
func (s *Scorer) Score(ctx context.Context, candidates []lexical.Candidate) ([]Result, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	vectors, err := s.embedSentences(ctx, candidates)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(candidates))
	for _, cand := range candidates {
		res := Result{DocID: cand.DocID, Entities: make(map[string]float64)}
		var weighted, totalWeight float64
		for _, entity := range sortedEntities(cand.Entities) {
			ev := cand.Entities[entity]
			dist, ok := entityDistance(ev, vectors)
			if !ok {
				continue
			}
			res.Entities[entity] = dist
			weighted += ev.Score * dist
			totalWeight += ev.Score
		}
		if totalWeight == 0 {
			continue
		}
		res.Distance = weighted / totalWeight
		res.Figure = 1 - res.Distance
		results = append(results, res)
	}
	return results, nil
}

// entityDistance returns the best-pair distance for one entity, or ok=false
// when either side has no sentences to compare.
func entityDistance(ev lexical.EntityScore, vectors map[string][]float32) (float64, bool) {
	if len(ev.QuerySentences) == 0 || len(ev.SourceSentences) == 0 {
		return 0, false
	}
	best := -1.0
	for _, qs := range ev.QuerySentences {
		qv := vectors[qs]
		for _, ss := range ev.SourceSentences {
			if sim := semantic.Cosine(qv, vectors[ss]); sim > best {
				best = sim
			}
		}
	}
	return 1 - best, true
}

// embedSentences collects every distinct sentence referenced by the
// candidates, embeds them in one batch, and returns a sentence-to-vector
// map.
func (s *Scorer) embedSentences(ctx context.Context, candidates []lexical.Candidate) (map[string][]float32, error) {
	seen := make(map[string]struct{})
	var sentences []string
	add := func(list []string) {
		for _, sentence := range list {
			if _, ok := seen[sentence]; ok {
				continue
			}
			seen[sentence] = struct{}{}
			sentences = append(sentences, sentence)
		}
	}
	for _, cand := range candidates {
		for _, ev := range cand.Entities {
			add(ev.QuerySentences)
			add(ev.SourceSentences)
		}
	}
	if len(sentences) == 0 {
		return map[string][]float32{}, nil
	}

	vecs, err := s.embedder.Embed(ctx, sentences)
	if err != nil {
		return nil, fmt.Errorf("embedding %d evidence sentences: %w", len(sentences), err)
	}
	out := make(map[string][]float32, len(sentences))
	for i, sentence := range sentences {
		out[sentence] = vecs[i]
	}
	return out, nil
}

func sortedEntities(m map[string]lexical.EntityScore) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
