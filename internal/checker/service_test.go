package checker

import (
	"context"
	"errors"
	"testing"

	"github.com/EgorSmi/hack-fake-news/internal/corpus"
	"github.com/EgorSmi/hack-fake-news/internal/index"
	"github.com/EgorSmi/hack-fake-news/internal/nlp"
	"github.com/EgorSmi/hack-fake-news/internal/pipeline"
	"github.com/EgorSmi/hack-fake-news/internal/search/lexical"
	apperrors "github.com/EgorSmi/hack-fake-news/pkg/errors"
)

const testQuery = "москва строится."

func testService(t *testing.T) *Service {
	t.Helper()
	extractor := &nlp.FakeExtractor{ByText: map[string][]string{
		testQuery: {"москва"},
	}}
	embedder := &nlp.FakeEmbedder{
		Default: []float32{0, 1},
		ByText: map[string][]float32{
			"москва строится": {1, 0},
			"москва растёт":   {1, 0},
			"москва ждёт":     {-1, 0},
		},
	}
	service := NewService(
		extractor,
		&nlp.FakeLemmatizer{},
		embedder,
		&nlp.FakeSentiment{Result: corpus.Sentiment{Neutral: 1}},
		pipeline.Params{Mode: lexical.ModeBM25, PrefilterK: 10, TopK: 5, HighlightTopN: 2},
		"pymorphy2-0.9.1",
		nil,
	)

	store := corpus.NewStore()
	ix := index.New(store)
	docs := []struct {
		text      string
		embedding []float32
	}{
		{"москва растёт.", []float32{1, 0}},
		{"москва ждёт.", []float32{0.6, 0.8}},
		{"париж спит.", []float32{0, -1}},
		{"берлин шумит.", []float32{-1, 0}},
		{"рим молчит.", []float32{-0.6, -0.8}},
	}
	for id, d := range docs {
		doc := &corpus.Document{
			ID:        id,
			URL:       "https://example.org/" + string(rune('a'+id)),
			Title:     "Источник",
			Text:      d.text,
			Embedding: d.embedding,
		}
		surface := []index.RawEntity{{Surface: "москва", Normalized: "москва"}}
		if id == 2 {
			surface = []index.RawEntity{{Surface: "париж", Normalized: "париж"}}
		}
		if id > 2 {
			surface = nil
		}
		if err := ix.IndexDocument(doc, surface); err != nil {
			t.Fatalf("IndexDocument(%d): %v", id, err)
		}
	}
	if err := ix.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if err := service.Install(store, ix); err != nil {
		t.Fatalf("Install: %v", err)
	}
	return service
}

func TestServiceCheckMatch(t *testing.T) {
	service := testService(t)
	result, err := service.Check(context.Background(), "", testQuery)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !result.Matched {
		t.Fatal("expected a match against the corpus")
	}
	if result.Result != 100 {
		t.Errorf("result = %d, want 100 for a perfectly aligned source", result.Result)
	}
	if len(result.Entities) != 1 || result.Entities[0] != "москва" {
		t.Errorf("entities = %v, want [москва]", result.Entities)
	}
	if result.Sentiment.Neutral != 1 {
		t.Errorf("sentiment = %+v, want the classifier output", result.Sentiment)
	}
	if len(result.Articles) == 0 {
		t.Fatal("no evidence articles returned")
	}
	for _, article := range result.Articles {
		if article.Rating != sourceRating {
			t.Errorf("article rating = %d, want %d", article.Rating, sourceRating)
		}
	}
}

func TestServiceCheckNotReady(t *testing.T) {
	service := NewService(
		&nlp.FakeExtractor{},
		&nlp.FakeLemmatizer{},
		&nlp.FakeEmbedder{},
		&nlp.FakeSentiment{},
		pipeline.Params{Mode: lexical.ModeBM25, PrefilterK: 1, TopK: 1, HighlightTopN: 1},
		"v1",
		nil,
	)
	if service.Ready() {
		t.Fatal("service reports ready without a snapshot")
	}
	_, err := service.Check(context.Background(), "", "текст.")
	if !errors.Is(err, apperrors.ErrIndexNotReady) {
		t.Errorf("Check without snapshot = %v, want ErrIndexNotReady", err)
	}
}

func TestServiceCheckNoMatch(t *testing.T) {
	service := testService(t)
	result, err := service.Check(context.Background(), "", "текст без сущностей.")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if result.Matched || result.Result != 0 {
		t.Errorf("result = %+v, want unmatched with score 0", result)
	}
	if result.Articles == nil || len(result.Articles) != 0 {
		t.Errorf("articles = %v, want an empty list, not null", result.Articles)
	}
}

func TestMarkSentences(t *testing.T) {
	text := "Москва спит. Париж тоже спит."
	got := MarkSentences(text, []string{"Москва спит"})
	want := "<h>Москва спит</h>. Париж тоже спит."
	if got != want {
		t.Errorf("MarkSentences = %q, want %q", got, want)
	}
}

func TestMarkSentencesLongestFirst(t *testing.T) {
	text := "Москва спит крепко."
	got := MarkSentences(text, []string{"Москва спит", "Москва спит крепко"})
	want := "<h>Москва спит крепко</h>."
	if got != want {
		t.Errorf("MarkSentences = %q, want the longer sentence marked once", got)
	}
}

func TestMarkSentencesEmpty(t *testing.T) {
	if got := MarkSentences("текст.", nil); got != "текст." {
		t.Errorf("MarkSentences with no sentences = %q, want unchanged text", got)
	}
}
