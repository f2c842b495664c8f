package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/EgorSmi/hack-fake-news/internal/corpus"
	"github.com/EgorSmi/hack-fake-news/internal/nlp"
	apperrors "github.com/EgorSmi/hack-fake-news/pkg/errors"
)

// SourceDocument is one crawled trusted article entering the bulk build.
// Entity surface forms and the whole-document embedding are precomputed by
// the external collaborators before the build, so document analysis is
// embarrassingly parallel.
type SourceDocument struct {
	URL         string           `json:"url"`
	Title       string           `json:"title"`
	PublishedAt string           `json:"published_at"`
	Text        string           `json:"text"`
	RawEntities []string         `json:"raw_entities"`
	Embedding   []float32        `json:"embedding"`
	Sentiment   corpus.Sentiment `json:"sentiment"`
}

// BuildReport summarises a bulk build.
type BuildReport struct {
	Indexed int
	Skipped int
}

// Builder runs the bulk index build: parallel per-shard document analysis,
// a sequential merge, and a single Finalize. Ingestion is fail-open: a
// malformed document or a per-document normalization failure is skipped and
// reported, never aborting the batch.
type Builder struct {
	lemmatizer nlp.Lemmatizer
	shards     int
	logger     *slog.Logger

	normMu    sync.Mutex
	normCache map[string]string
}

// NewBuilder creates a Builder that analyzes documents across the given
// number of shards.
func NewBuilder(lemmatizer nlp.Lemmatizer, shards int) *Builder {
	if shards < 1 {
		shards = 1
	}
	return &Builder{
		lemmatizer: lemmatizer,
		shards:     shards,
		logger:     slog.Default().With("component", "index-builder"),
		normCache:  make(map[string]string),
	}
}

type analyzed struct {
	doc         *corpus.Document
	appearances map[string]int
	err         error
}

// Build assigns sequential ids, analyzes all documents in parallel shards,
// merges the shard results in id order into one index, and finalizes it.
// The returned store and index form an immutable serving snapshot.
func (b *Builder) Build(ctx context.Context, sources []SourceDocument) (*corpus.Store, *InvertedIndex, BuildReport, error) {
	store := corpus.NewStore()
	ix := New(store)

	results := make([]analyzed, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.shards)
	for i := range sources {
		g.Go(func() error {
			results[i] = b.analyzeSource(gctx, i, sources[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, BuildReport{}, fmt.Errorf("analyzing corpus: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, BuildReport{}, fmt.Errorf("build cancelled: %w", err)
	}

	// Merge in id order so posting lists stay sorted by doc id.
	var report BuildReport
	for i, res := range results {
		if res.err != nil {
			// Skipping is for per-document damage only. A collaborator outage
			// fails every document the same way, and skipping them all would
			// finalize and publish an empty index.
			if errors.Is(res.err, apperrors.ErrCollaboratorUnavailable) {
				return nil, nil, report, fmt.Errorf("analyzing document %d: %w", i, res.err)
			}
			b.logger.Warn("skipping document", "doc_id", i, "error", res.err)
			report.Skipped++
			continue
		}
		if err := ix.Insert(res.doc, res.appearances); err != nil {
			return nil, nil, report, fmt.Errorf("merging document %d: %w", i, err)
		}
		report.Indexed++
	}
	if err := ix.Finalize(); err != nil {
		return nil, nil, report, fmt.Errorf("finalizing index: %w", err)
	}
	b.logger.Info("bulk build complete",
		"indexed", report.Indexed,
		"skipped", report.Skipped,
		"entities", len(ix.Entities()),
	)
	return store, ix, report, nil
}

func (b *Builder) analyzeSource(ctx context.Context, id int, src SourceDocument) analyzed {
	doc := &corpus.Document{
		ID:        id,
		URL:       src.URL,
		Title:     src.Title,
		Text:      src.Text,
		Embedding: src.Embedding,
		Sentiment: src.Sentiment,
	}
	if src.PublishedAt != "" {
		if published, err := time.Parse(time.RFC3339, src.PublishedAt); err == nil {
			doc.Published = published
		}
	}
	entities := make([]RawEntity, 0, len(src.RawEntities))
	for _, surface := range src.RawEntities {
		normalized, err := b.normalize(ctx, surface)
		if err != nil {
			return analyzed{err: fmt.Errorf("normalizing %q: %w", surface, err)}
		}
		entities = append(entities, RawEntity{Surface: surface, Normalized: normalized})
	}
	appearances, err := AnalyzeDocument(doc, entities)
	if err != nil {
		return analyzed{err: err}
	}
	return analyzed{doc: doc, appearances: appearances}
}

// normalize memoizes lemmatizer calls; surface forms repeat heavily across
// a corpus.
func (b *Builder) normalize(ctx context.Context, surface string) (string, error) {
	b.normMu.Lock()
	cached, ok := b.normCache[surface]
	b.normMu.Unlock()
	if ok {
		return cached, nil
	}
	normalized, err := b.lemmatizer.Normalize(ctx, surface)
	if err != nil {
		return "", err
	}
	b.normMu.Lock()
	b.normCache[surface] = normalized
	b.normMu.Unlock()
	return normalized, nil
}
