package pipeline

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/EgorSmi/hack-fake-news/internal/corpus"
	"github.com/EgorSmi/hack-fake-news/internal/index"
	"github.com/EgorSmi/hack-fake-news/internal/nlp"
	"github.com/EgorSmi/hack-fake-news/internal/search/cross"
	"github.com/EgorSmi/hack-fake-news/internal/search/lexical"
	"github.com/EgorSmi/hack-fake-news/internal/search/semantic"
	apperrors "github.com/EgorSmi/hack-fake-news/pkg/errors"
)

type fixtureDoc struct {
	text      string
	entities  []string
	embedding []float32
}

func buildFixture(t *testing.T, docs []fixtureDoc) (*corpus.Store, *index.InvertedIndex, *semantic.Prefilter) {
	t.Helper()
	store := corpus.NewStore()
	ix := index.New(store)
	for id, d := range docs {
		raw := make([]index.RawEntity, 0, len(d.entities))
		for _, e := range d.entities {
			raw = append(raw, index.RawEntity{Surface: e, Normalized: e})
		}
		doc := &corpus.Document{ID: id, Text: d.text, Embedding: d.embedding}
		if err := ix.IndexDocument(doc, raw); err != nil {
			t.Fatalf("IndexDocument(%d): %v", id, err)
		}
	}
	if err := ix.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	prefilter, err := semantic.Build(store)
	if err != nil {
		t.Fatalf("semantic.Build: %v", err)
	}
	return store, ix, prefilter
}

func newTestOrchestrator(
	t *testing.T,
	docs []fixtureDoc,
	extractor nlp.EntityExtractor,
	embedder nlp.Embedder,
	params Params,
) (*Orchestrator, *corpus.Store) {
	t.Helper()
	store, ix, prefilter := buildFixture(t, docs)
	orchestrator := NewOrchestrator(
		NewProfileBuilder(extractor, &nlp.FakeLemmatizer{}),
		embedder,
		prefilter,
		lexical.NewRanker(ix),
		cross.NewScorer(embedder),
		params,
		nil,
	)
	return orchestrator, store
}

// cityFixture holds москва in two documents of five so its idf stays
// positive.
func cityFixture() []fixtureDoc {
	return []fixtureDoc{
		{"москва растёт.", []string{"москва"}, []float32{1, 0}},
		{"москва ждёт.", []string{"москва"}, []float32{0.6, 0.8}},
		{"париж спит.", []string{"париж"}, []float32{0, -1}},
		{"берлин шумит.", []string{"берлин"}, []float32{-1, 0}},
		{"рим молчит.", []string{"рим"}, []float32{-0.6, -0.8}},
	}
}

func defaultParams() Params {
	return Params{Mode: lexical.ModeBM25, PrefilterK: 10, TopK: 5, HighlightTopN: 2}
}

func TestCheckMatch(t *testing.T) {
	query := "москва строится."
	extractor := &nlp.FakeExtractor{ByText: map[string][]string{query: {"москва"}}}
	embedder := &nlp.FakeEmbedder{
		ByText: map[string][]float32{
			query:             {0, 1},
			"москва строится": {1, 0},
			"москва растёт":   {1, 0},
			"москва ждёт":     {-1, 0},
		},
	}
	orchestrator, _ := newTestOrchestrator(t, cityFixture(), extractor, embedder, defaultParams())

	verdict, err := orchestrator.Check(context.Background(), query)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if verdict.State != StateDone {
		t.Fatalf("state = %v, want done", verdict.State)
	}
	// Doc 0's evidence sentence aligns perfectly, doc 1's is opposite.
	if verdict.BestDocID != 0 {
		t.Errorf("best doc = %d, want 0", verdict.BestDocID)
	}
	if math.Abs(verdict.Score-1) > 1e-9 {
		t.Errorf("score = %v, want 1", verdict.Score)
	}
	if len(verdict.Candidates) != 2 {
		t.Errorf("candidates = %d, want docs 0 and 1", len(verdict.Candidates))
	}
}

func TestCheckDisplayOrderedBySemanticSimilarity(t *testing.T) {
	query := "москва строится."
	extractor := &nlp.FakeExtractor{ByText: map[string][]string{query: {"москва"}}}
	embedder := &nlp.FakeEmbedder{
		ByText: map[string][]float32{
			query:             {0, 1},
			"москва строится": {1, 0},
			"москва растёт":   {1, 0},
			"москва ждёт":     {-1, 0},
		},
	}
	orchestrator, _ := newTestOrchestrator(t, cityFixture(), extractor, embedder, defaultParams())

	verdict, err := orchestrator.Check(context.Background(), query)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	// The verdict picks doc 0 (best cross figure), but the display list is
	// ordered by raw semantic similarity, where doc 1 (cosine 0.8) beats
	// doc 0 (cosine 0). The orderings deliberately disagree.
	if verdict.BestDocID != 0 {
		t.Fatalf("best doc = %d, want 0", verdict.BestDocID)
	}
	if len(verdict.Display) != 2 || verdict.Display[0].DocID != 1 || verdict.Display[1].DocID != 0 {
		t.Errorf("display = %v, want [doc1, doc0] by semantic score", verdict.Display)
	}
	if math.Abs(verdict.Display[0].Score-0.8) > 1e-6 {
		t.Errorf("display[0] semantic score = %v, want 0.8", verdict.Display[0].Score)
	}
}

func TestCheckCrossFigureNotClamped(t *testing.T) {
	query := "москва строится."
	extractor := &nlp.FakeExtractor{ByText: map[string][]string{query: {"москва"}}}
	embedder := &nlp.FakeEmbedder{
		ByText: map[string][]float32{
			query:             {0, 1},
			"москва строится": {1, 0},
			"москва растёт":   {1, 0},
			"москва ждёт":     {-1, 0},
		},
	}
	orchestrator, _ := newTestOrchestrator(t, cityFixture(), extractor, embedder, defaultParams())

	verdict, err := orchestrator.Check(context.Background(), query)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	var doc1Figure float64
	for _, res := range verdict.Cross {
		if res.DocID == 1 {
			doc1Figure = res.Figure
		}
	}
	// Opposite sentence vectors give distance 2 and figure -1; the value
	// is reported as is.
	if math.Abs(doc1Figure-(-1)) > 1e-9 {
		t.Errorf("doc 1 figure = %v, want -1 unclamped", doc1Figure)
	}
}

func TestCheckNoEntitiesIsNoMatch(t *testing.T) {
	extractor := &nlp.FakeExtractor{}
	embedder := &nlp.FakeEmbedder{Default: []float32{1, 0}}
	orchestrator, _ := newTestOrchestrator(t, cityFixture(), extractor, embedder, defaultParams())

	verdict, err := orchestrator.Check(context.Background(), "текст без сущностей.")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if verdict.State != StateNoMatch || verdict.Score != 0 || verdict.BestDocID != -1 {
		t.Errorf("verdict = %+v, want terminal no-match with score 0", verdict)
	}
}

func TestCheckNoLexicalOverlapIsNoMatch(t *testing.T) {
	query := "прага цветёт."
	extractor := &nlp.FakeExtractor{ByText: map[string][]string{query: {"прага"}}}
	embedder := &nlp.FakeEmbedder{Default: []float32{1, 0}}
	orchestrator, _ := newTestOrchestrator(t, cityFixture(), extractor, embedder, defaultParams())

	verdict, err := orchestrator.Check(context.Background(), query)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if verdict.State != StateNoMatch || verdict.Score != 0 {
		t.Errorf("verdict = %+v, want no-match", verdict)
	}
}

func TestCheckEmbedderFailure(t *testing.T) {
	query := "москва строится."
	extractor := &nlp.FakeExtractor{ByText: map[string][]string{query: {"москва"}}}
	orchestrator, _ := newTestOrchestrator(t, cityFixture(), extractor, unavailableEmbedder{}, defaultParams())

	_, err := orchestrator.Check(context.Background(), query)
	if !errors.Is(err, apperrors.ErrCollaboratorUnavailable) {
		t.Errorf("Check with failing embedder = %v, want ErrCollaboratorUnavailable", err)
	}
}

type unavailableEmbedder struct{}

func (unavailableEmbedder) Embed(context.Context, []string) ([][]float32, error) {
	return nil, apperrors.ErrCollaboratorUnavailable
}
