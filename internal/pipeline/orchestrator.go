// Package pipeline composes the verification stages into one query flow:
// profile the submitted article, prefilter the corpus semantically, rank the
// survivors lexically, cross-score the sentence evidence, and fuse the
// results into a verdict.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/EgorSmi/hack-fake-news/internal/nlp"
	"github.com/EgorSmi/hack-fake-news/internal/search/cross"
	"github.com/EgorSmi/hack-fake-news/internal/search/lexical"
	"github.com/EgorSmi/hack-fake-news/internal/search/semantic"
	"github.com/EgorSmi/hack-fake-news/pkg/logger"
	"github.com/EgorSmi/hack-fake-news/pkg/metrics"
)

// State is the orchestrator's position in the query flow. NoMatch and Done
// are terminal.
type State int

const (
	StateIdle State = iota
	StatePrefiltering
	StateLexicalRanking
	StateCrossScoring
	StateFusing
	StateNoMatch
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePrefiltering:
		return "prefiltering"
	case StateLexicalRanking:
		return "lexical_ranking"
	case StateCrossScoring:
		return "cross_scoring"
	case StateFusing:
		return "fusing"
	case StateNoMatch:
		return "no_match"
	case StateDone:
		return "done"
	}
	return "unknown"
}

// Params are the per-deployment pipeline tunables. PrefilterK and TopK bound
// the cost of the cross-scoring stage, which is quadratic in sentences per
// shared entity.
type Params struct {
	Mode          lexical.Mode
	PrefilterK    int
	TopK          int
	HighlightTopN int
}

// DisplayHit is one entry of the evidence display list: a document and its
// raw semantic similarity to the query.
type DisplayHit struct {
	DocID int
	Score float64
}

// Verdict is the outcome of one check. When State is NoMatch, BestDocID is
// -1 and Score is 0.
//
// Display is ordered by raw semantic-prefilter similarity while Score comes
// from the fused lexical and cross-encoder signal. The two orderings can
// disagree; that is a product decision, not a bug.
type Verdict struct {
	State      State
	BestDocID  int
	Score      float64
	Entities   []string
	Display    []DisplayHit
	Candidates []lexical.Candidate
	Cross      []cross.Result
}

// Orchestrator runs queries against one frozen index snapshot. It holds no
// mutable state of its own, so any number of Check calls may run
// concurrently.
type Orchestrator struct {
	profiles  *ProfileBuilder
	embedder  nlp.Embedder
	prefilter *semantic.Prefilter
	ranker    *lexical.Ranker
	scorer    *cross.Scorer
	params    Params
	metrics   *metrics.Metrics
}

// NewOrchestrator wires the pipeline stages together. metrics may be nil in
// tests.
func NewOrchestrator(
	profiles *ProfileBuilder,
	embedder nlp.Embedder,
	prefilter *semantic.Prefilter,
	ranker *lexical.Ranker,
	scorer *cross.Scorer,
	params Params,
	m *metrics.Metrics,
) *Orchestrator {
	return &Orchestrator{
		profiles:  profiles,
		embedder:  embedder,
		prefilter: prefilter,
		ranker:    ranker,
		scorer:    scorer,
		params:    params,
		metrics:   m,
	}
}

// Check verifies one article text against the corpus. Collaborator failures
// surface as errors wrapping ErrCollaboratorUnavailable; an article with no
// extractable entities or no lexical overlap resolves to a NoMatch verdict
// with score 0.
func (o *Orchestrator) Check(ctx context.Context, text string) (*Verdict, error) {
	log := logger.FromContext(ctx).With("component", "pipeline")

	// Prefiltering.
	profile, hits, err := o.runPrefilter(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(profile.Entities) == 0 {
		log.Info("no entities extracted, resolving to no match")
		return o.noMatch(profile), nil
	}

	// Lexical ranking against the prefiltered subset.
	subset := make(map[int]struct{}, len(hits))
	semScore := make(map[int]float64, len(hits))
	for _, hit := range hits {
		subset[hit.DocID] = struct{}{}
		semScore[hit.DocID] = hit.Score
	}
	candidates, err := o.runLexical(profile, subset)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		log.Info("no lexical candidates, resolving to no match", "entities", len(profile.Entities))
		return o.noMatch(profile), nil
	}

	// Cross scoring.
	results, err := o.runCross(ctx, candidates)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		log.Info("all candidates excluded by zero entity weight, resolving to no match")
		return o.noMatch(profile), nil
	}

	// Fusing.
	verdict := o.fuse(profile, candidates, results, semScore)
	log.Info("check complete",
		"best_doc", verdict.BestDocID,
		"score", verdict.Score,
		"candidates", len(candidates),
	)
	return verdict, nil
}

func (o *Orchestrator) runPrefilter(ctx context.Context, text string) (*lexical.QueryProfile, []semantic.Hit, error) {
	defer o.observeStage("prefilter", time.Now())
	profile, err := o.profiles.Build(ctx, text)
	if err != nil {
		return nil, nil, err
	}
	if len(profile.Entities) == 0 {
		return profile, nil, nil
	}
	vectors, err := o.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, nil, fmt.Errorf("embedding query: %w", err)
	}
	hits, err := o.prefilter.Search(vectors[0], o.params.PrefilterK)
	if err != nil {
		return nil, nil, fmt.Errorf("semantic prefilter: %w", err)
	}
	o.observeCandidates("prefilter", len(hits))
	return profile, hits, nil
}

func (o *Orchestrator) runLexical(profile *lexical.QueryProfile, subset map[int]struct{}) ([]lexical.Candidate, error) {
	defer o.observeStage("lexical", time.Now())
	candidates, err := o.ranker.Rank(profile, o.params.Mode, o.params.TopK, subset)
	if err != nil {
		return nil, fmt.Errorf("lexical ranking: %w", err)
	}
	o.observeCandidates("lexical", len(candidates))
	return candidates, nil
}

func (o *Orchestrator) runCross(ctx context.Context, candidates []lexical.Candidate) ([]cross.Result, error) {
	defer o.observeStage("cross", time.Now())
	results, err := o.scorer.Score(ctx, candidates)
	if err != nil {
		return nil, fmt.Errorf("cross scoring: %w", err)
	}
	o.observeCandidates("cross", len(results))
	return results, nil
}

// fuse picks the best document by cross-scoring figure and builds the
// display list ordered by raw semantic similarity.
func (o *Orchestrator) fuse(profile *lexical.QueryProfile, candidates []lexical.Candidate, results []cross.Result, semScore map[int]float64) *Verdict {
	defer o.observeStage("fuse", time.Now())

	best := results[0]
	for _, res := range results[1:] {
		if res.Figure > best.Figure || (res.Figure == best.Figure && res.DocID < best.DocID) {
			best = res
		}
	}

	display := make([]DisplayHit, 0, len(candidates))
	for _, cand := range candidates {
		display = append(display, DisplayHit{DocID: cand.DocID, Score: semScore[cand.DocID]})
	}
	sort.Slice(display, func(i, j int) bool {
		if display[i].Score != display[j].Score {
			return display[i].Score > display[j].Score
		}
		return display[i].DocID < display[j].DocID
	})
	if o.params.HighlightTopN < len(display) {
		display = display[:o.params.HighlightTopN]
	}

	return &Verdict{
		State:      StateDone,
		BestDocID:  best.DocID,
		Score:      best.Figure,
		Entities:   profile.Entities,
		Display:    display,
		Candidates: candidates,
		Cross:      results,
	}
}

func (o *Orchestrator) noMatch(profile *lexical.QueryProfile) *Verdict {
	return &Verdict{
		State:     StateNoMatch,
		BestDocID: -1,
		Score:     0,
		Entities:  profile.Entities,
	}
}

func (o *Orchestrator) observeStage(stage string, start time.Time) {
	if o.metrics != nil {
		o.metrics.StageLatency.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	}
}

func (o *Orchestrator) observeCandidates(stage string, n int) {
	if o.metrics != nil {
		o.metrics.CandidateCount.WithLabelValues(stage).Observe(float64(n))
	}
}
