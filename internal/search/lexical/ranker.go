// Package lexical ranks indexed documents against a query's entity profile
// using the inverted index, in one of two modes: BM25 with
// document-length normalization, or a coarser idf-sum over the entity
// intersection that is robust to rephrased articles.
package lexical

import (
	"fmt"
	"math"
	"sort"

	"github.com/EgorSmi/hack-fake-news/internal/index"
	apperrors "github.com/EgorSmi/hack-fake-news/pkg/errors"
)

// Okapi BM25 parameters, fixed by the scoring contract.
const (
	k1 = 1.5
	b  = 0.75
)

// Mode selects the lexical scoring formula.
type Mode int

const (
	ModeBM25 Mode = iota
	ModeIntersection
)

// ParseMode maps a config string to a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "bm25":
		return ModeBM25, nil
	case "intersection":
		return ModeIntersection, nil
	}
	return 0, fmt.Errorf("unknown scoring mode %q: %w", s, apperrors.ErrInvalidInput)
}

// QueryProfile is the ephemeral per-query analogue of a document's entity
// fields, computed from the submitted article. Entities keeps first-seen
// order explicitly; map iteration order is never relied on where order is
// meaningful.
type QueryProfile struct {
	Entities        []string
	EntityFrequency map[string]int
	EntityContext   map[string][]string
}

// TotalFrequency returns the sum of all entity occurrence counts in the
// query.
func (p *QueryProfile) TotalFrequency() int {
	var total int
	for _, freq := range p.EntityFrequency {
		total += freq
	}
	return total
}

// EntityScore is the per-entity slice of a candidate's score together with
// the sentences backing it on both sides.
type EntityScore struct {
	Score           float64
	SourceSentences []string
	QuerySentences  []string
}

// Candidate is one ranked document with its per-entity breakdown, consumed
// downstream by the cross scorer and the evidence assembler.
type Candidate struct {
	DocID    int
	Score    float64
	Entities map[string]EntityScore
}

// Ranker scores candidates against the inverted index.
type Ranker struct {
	index *index.InvertedIndex
}

// NewRanker creates a Ranker over a finalized index.
func NewRanker(ix *index.InvertedIndex) *Ranker {
	return &Ranker{index: ix}
}

// Rank returns candidates sorted by score descending, ties broken by
// ascending doc id, truncated to topK. A non-nil subset (from the semantic
// prefilter) restricts the candidate universe; an empty overlap yields an
// empty result, not an error.
func (r *Ranker) Rank(profile *QueryProfile, mode Mode, topK int, subset map[int]struct{}) ([]Candidate, error) {
	if topK < 1 {
		return nil, fmt.Errorf("topK must be positive, got %d: %w", topK, apperrors.ErrInvalidInput)
	}
	if profile == nil || len(profile.Entities) == 0 {
		return nil, nil
	}
	postings, err := r.index.Lookup(profile.Entities)
	if err != nil {
		return nil, err
	}

	docIDs := make(map[int]struct{})
	for _, list := range postings {
		for _, app := range list {
			if subset != nil {
				if _, ok := subset[app.DocID]; !ok {
					continue
				}
			}
			docIDs[app.DocID] = struct{}{}
		}
	}
	if len(docIDs) == 0 {
		return nil, nil
	}

	candidates := make([]Candidate, 0, len(docIDs))
	for docID := range docIDs {
		var cand Candidate
		switch mode {
		case ModeBM25:
			cand, err = r.scoreBM25(profile, postings, docID)
		case ModeIntersection:
			cand, err = r.scoreIntersection(profile, postings, docID)
		default:
			return nil, fmt.Errorf("unknown mode %d: %w", mode, apperrors.ErrInvalidInput)
		}
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, cand)
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].DocID < candidates[j].DocID
	})
	if topK < len(candidates) {
		candidates = candidates[:topK]
	}
	return candidates, nil
}

// idf is ln((N-df)/df) with no smoothing: it goes non-positive once an
// entity appears in at least half the corpus, and that behavior is part of
// the scoring contract. The df == N case would be ln(0); such an entity
// carries no discriminative signal, so its contribution is defined as zero
// instead of propagating -Inf.
func (r *Ranker) idf(entity string) (float64, error) {
	df, err := r.index.DocumentFrequency(entity)
	if err != nil {
		return 0, err
	}
	n := r.index.TotalDocuments()
	if df == 0 || n == 0 {
		return 0, fmt.Errorf("idf of %q with df=%d n=%d: %w", entity, df, n, apperrors.ErrInvalidInput)
	}
	if df == n {
		return 0, nil
	}
	return math.Log(float64(n-df) / float64(df)), nil
}

// scoreBM25 sums per-entity BM25 contributions. Term frequency is the
// entity's share of the document's total entity occurrences; document
// length enters through the Okapi denominator. Each contribution is scaled
// by the query's total entity occurrence count, a deliberate deviation from
// textbook BM25 carried forward for score compatibility.
func (r *Ranker) scoreBM25(profile *QueryProfile, postings map[string][]index.Appearance, docID int) (Candidate, error) {
	doc, ok := r.index.Store().Get(docID)
	if !ok {
		return Candidate{}, fmt.Errorf("candidate document %d: %w", docID, apperrors.ErrDocumentNotFound)
	}
	avgLen, err := r.index.AvgDocumentLen()
	if err != nil {
		return Candidate{}, err
	}
	if avgLen == 0 {
		return Candidate{}, fmt.Errorf("average document length is zero: %w", apperrors.ErrInvalidInput)
	}
	var docTotalFreq int
	for _, freq := range doc.EntityFrequency {
		docTotalFreq += freq
	}
	if docTotalFreq == 0 {
		return Candidate{}, fmt.Errorf("candidate document %d has no entity occurrences: %w", docID, apperrors.ErrInvalidInput)
	}

	queryTotal := float64(profile.TotalFrequency())
	cand := Candidate{DocID: docID, Entities: make(map[string]EntityScore)}
	for _, entity := range profile.Entities {
		if _, inIndex := postings[entity]; !inIndex {
			continue
		}
		docFreq := doc.EntityFrequency[entity]
		if docFreq == 0 {
			continue
		}
		entityIDF, err := r.idf(entity)
		if err != nil {
			return Candidate{}, err
		}
		tf := float64(docFreq) / float64(docTotalFreq)
		lengthRatio := float64(doc.TextLen) / avgLen
		bm25 := entityIDF * (tf * (k1 + 1)) / (tf + k1*(1-b+b*lengthRatio))
		entityScore := bm25 * queryTotal
		cand.Entities[entity] = EntityScore{
			Score:           entityScore,
			SourceSentences: doc.EntityContext[entity],
			QuerySentences:  profile.EntityContext[entity],
		}
		cand.Score += entityScore
	}
	return cand, nil
}

// scoreIntersection sums the idf of every entity shared between the query
// and the document, ignoring term frequency entirely.
func (r *Ranker) scoreIntersection(profile *QueryProfile, postings map[string][]index.Appearance, docID int) (Candidate, error) {
	doc, ok := r.index.Store().Get(docID)
	if !ok {
		return Candidate{}, fmt.Errorf("candidate document %d: %w", docID, apperrors.ErrDocumentNotFound)
	}
	cand := Candidate{DocID: docID, Entities: make(map[string]EntityScore)}
	for _, entity := range profile.Entities {
		if _, inIndex := postings[entity]; !inIndex {
			continue
		}
		if doc.EntityFrequency[entity] == 0 {
			continue
		}
		entityIDF, err := r.idf(entity)
		if err != nil {
			return Candidate{}, err
		}
		cand.Entities[entity] = EntityScore{
			Score:           entityIDF,
			SourceSentences: doc.EntityContext[entity],
			QuerySentences:  profile.EntityContext[entity],
		}
		cand.Score += entityIDF
	}
	return cand, nil
}
