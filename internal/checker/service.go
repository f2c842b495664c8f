// Package checker is the serving layer of the verification pipeline: it
// owns the currently loaded index snapshot, runs checks against it through
// the orchestrator, caches verdicts in Redis, and exposes the public HTTP
// surface.
package checker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/EgorSmi/hack-fake-news/internal/corpus"
	"github.com/EgorSmi/hack-fake-news/internal/index"
	"github.com/EgorSmi/hack-fake-news/internal/nlp"
	"github.com/EgorSmi/hack-fake-news/internal/pipeline"
	"github.com/EgorSmi/hack-fake-news/internal/search/cross"
	"github.com/EgorSmi/hack-fake-news/internal/search/lexical"
	"github.com/EgorSmi/hack-fake-news/internal/search/semantic"
	apperrors "github.com/EgorSmi/hack-fake-news/pkg/errors"
	"github.com/EgorSmi/hack-fake-news/pkg/logger"
	"github.com/EgorSmi/hack-fake-news/pkg/metrics"
)

// snapshot bundles everything serving a query needs from one index build.
// It is immutable once constructed; Service swaps whole snapshots
// atomically, so in-flight checks always see a consistent corpus.
type snapshot struct {
	store        *corpus.Store
	orchestrator *pipeline.Orchestrator
}

// Service runs article checks against the current snapshot.
type Service struct {
	current atomic.Pointer[snapshot]

	extractor         nlp.EntityExtractor
	lemmatizer        nlp.Lemmatizer
	embedder          nlp.Embedder
	sentiment         nlp.SentimentClassifier
	params            pipeline.Params
	lemmatizerVersion string
	metrics           *metrics.Metrics
}

// NewService creates a Service with no snapshot loaded. Checks fail with
// ErrIndexNotReady until LoadSnapshot succeeds.
func NewService(
	extractor nlp.EntityExtractor,
	lemmatizer nlp.Lemmatizer,
	embedder nlp.Embedder,
	sentiment nlp.SentimentClassifier,
	params pipeline.Params,
	lemmatizerVersion string,
	m *metrics.Metrics,
) *Service {
	return &Service{
		extractor:         extractor,
		lemmatizer:        lemmatizer,
		embedder:          embedder,
		sentiment:         sentiment,
		params:            params,
		lemmatizerVersion: lemmatizerVersion,
		metrics:           m,
	}
}

// LoadSnapshot reads a persisted index from path and installs it as the
// serving snapshot. The swap is atomic relative to in-flight checks. The
// snapshot's recorded lemmatizer version must match the configured one.
func (s *Service) LoadSnapshot(path string) error {
	store, ix, err := index.LoadSnapshot(path, s.lemmatizerVersion)
	if err != nil {
		s.countSnapshotLoad(err)
		return fmt.Errorf("loading snapshot: %w", err)
	}
	if err := s.Install(store, ix); err != nil {
		s.countSnapshotLoad(err)
		return err
	}
	s.countSnapshotLoad(nil)
	return nil
}

// Install builds the query stages over a finalized store and index and
// swaps them in as the serving snapshot.
func (s *Service) Install(store *corpus.Store, ix *index.InvertedIndex) error {
	if !ix.Ready() {
		return fmt.Errorf("installing snapshot: %w", apperrors.ErrIndexNotReady)
	}
	prefilter, err := semantic.Build(store)
	if err != nil {
		return fmt.Errorf("building semantic prefilter: %w", err)
	}
	orchestrator := pipeline.NewOrchestrator(
		pipeline.NewProfileBuilder(s.extractor, s.lemmatizer),
		s.embedder,
		prefilter,
		lexical.NewRanker(ix),
		cross.NewScorer(s.embedder),
		s.params,
		s.metrics,
	)
	s.current.Store(&snapshot{store: store, orchestrator: orchestrator})
	if s.metrics != nil {
		s.metrics.IndexedDocuments.Set(float64(store.Len()))
	}
	logger.WithComponent("checker").Info("snapshot installed", "documents", store.Len())
	return nil
}

// Ready reports whether a snapshot is installed. Wired into the readiness
// check so a checker without an index never receives traffic.
func (s *Service) Ready() bool {
	return s.current.Load() != nil
}

// CheckResult is the outcome of one article check, shaped for the public
// surface: a 0-100 credibility score, the detected entities, the query
// sentiment, and per-source evidence.
type CheckResult struct {
	Result    int               `json:"result"`
	Matched   bool              `json:"matched"`
	Entities  []string          `json:"ner"`
	Sentiment corpus.Sentiment  `json:"sentiment"`
	Articles  []EvidenceArticle `json:"articles"`
}

// EvidenceArticle is one trusted source backing the verdict. Pattern is the
// submitted text with the matched sentences wrapped in <h> markers, for
// highlighting in the client. Rating is the source's fixed trust rating.
type EvidenceArticle struct {
	Name      string           `json:"name"`
	Href      string           `json:"href"`
	Pattern   string           `json:"pattern"`
	Rating    int              `json:"rating"`
	Score     float64          `json:"score"`
	Entities  []string         `json:"ner"`
	Sentiment corpus.Sentiment `json:"sentiment"`
}

// sourceRating is the trust rating reported for every corpus source; the
// corpus carries only pre-vetted outlets, so the rating is uniform.
const sourceRating = 50

// Check verifies an article against the current snapshot. The title and
// content are checked as one text. The query's own sentiment is classified
// for display; a sentiment collaborator failure fails the check the same
// way any collaborator failure does.
func (s *Service) Check(ctx context.Context, title, content string) (*CheckResult, error) {
	snap := s.current.Load()
	if snap == nil {
		return nil, apperrors.ErrIndexNotReady
	}
	text := content
	if title != "" {
		text = title + "\n" + content
	}

	verdict, err := snap.orchestrator.Check(ctx, text)
	if err != nil {
		return nil, err
	}
	querySentiment, err := s.sentiment.Predict(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("classifying query sentiment: %w", err)
	}

	result := &CheckResult{
		Result:    int(verdict.Score * 100),
		Matched:   verdict.State == pipeline.StateDone,
		Entities:  verdict.Entities,
		Sentiment: querySentiment,
		Articles:  []EvidenceArticle{},
	}
	if verdict.State == pipeline.StateNoMatch {
		result.Result = 0
		return result, nil
	}

	for _, ev := range pipeline.BuildEvidence(snap.store, verdict) {
		result.Articles = append(result.Articles, EvidenceArticle{
			Name:      ev.Title,
			Href:      ev.URL,
			Pattern:   MarkSentences(text, ev.QuerySentences),
			Rating:    sourceRating,
			Score:     ev.Score,
			Entities:  ev.Entities,
			Sentiment: ev.Sentiment,
		})
	}
	return result, nil
}

// MarkSentences wraps each occurrence of the given sentences in the text
// with <h> markers. Longer sentences are marked first, and a sentence
// contained in an already marked one is skipped so markers never nest.
func MarkSentences(text string, sentences []string) string {
	ordered := make([]string, len(sentences))
	copy(ordered, sentences)
	sort.Slice(ordered, func(i, j int) bool {
		return len(ordered[i]) > len(ordered[j])
	})
	var marked []string
	for _, sentence := range ordered {
		if sentence == "" {
			continue
		}
		contained := false
		for _, m := range marked {
			if strings.Contains(m, sentence) {
				contained = true
				break
			}
		}
		if contained || !strings.Contains(text, sentence) {
			continue
		}
		text = strings.ReplaceAll(text, sentence, "<h>"+sentence+"</h>")
		marked = append(marked, sentence)
	}
	return text
}

func (s *Service) countSnapshotLoad(err error) {
	if s.metrics == nil {
		return
	}
	status := "ok"
	switch {
	case err == nil:
	case errors.Is(err, apperrors.ErrLemmatizerMismatch):
		status = "mismatch"
	default:
		status = "malformed"
	}
	s.metrics.SnapshotLoadsTotal.WithLabelValues(status).Inc()
}
