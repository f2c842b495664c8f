package index

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/EgorSmi/hack-fake-news/internal/nlp"
	apperrors "github.com/EgorSmi/hack-fake-news/pkg/errors"
)

func TestBuilderBuild(t *testing.T) {
	builder := NewBuilder(&nlp.FakeLemmatizer{}, 3)
	docs := []SourceDocument{
		{
			URL:         "https://example.org/0",
			Title:       "Река",
			PublishedAt: "2023-04-01T12:00:00Z",
			Text:        "Волга впадает в море.",
			RawEntities: []string{"Волга"},
			Embedding:   []float32{1, 0},
		},
		{
			URL:         "https://example.org/1",
			Text:        "Волга и Дон текут.",
			RawEntities: []string{"Волга", "Дон"},
			Embedding:   []float32{0, 1},
		},
	}
	store, ix, report, err := builder.Build(context.Background(), docs)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if report.Indexed != 2 || report.Skipped != 0 {
		t.Fatalf("report = %+v, want 2 indexed, 0 skipped", report)
	}
	if !ix.Ready() {
		t.Fatal("index not finalized after Build")
	}

	doc0, ok := store.Get(0)
	if !ok {
		t.Fatal("document 0 missing")
	}
	if doc0.Published.IsZero() {
		t.Error("published_at was not parsed")
	}
	// FakeLemmatizer lower-cases surfaces.
	if doc0.EntityFrequency["волга"] != 1 {
		t.Errorf("doc0 frequency = %v, want волга:1", doc0.EntityFrequency)
	}

	postings, err := ix.Lookup([]string{"волга", "дон"})
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if len(postings["волга"]) != 2 {
		t.Errorf("волга appears in %d documents, want 2", len(postings["волга"]))
	}
	// Posting lists are merged in id order regardless of shard scheduling.
	list := postings["волга"]
	if list[0].DocID != 0 || list[1].DocID != 1 {
		t.Errorf("posting list out of id order: %v", list)
	}
}

func TestBuilderSkipsMalformedDocuments(t *testing.T) {
	builder := NewBuilder(&nlp.FakeLemmatizer{}, 2)
	docs := []SourceDocument{
		{URL: "https://example.org/ok", Text: "Нева течёт.", RawEntities: []string{"Нева"}},
		{URL: "https://example.org/blank", Text: "   "},
		{URL: "https://example.org/also-ok", Text: "Нева замёрзла.", RawEntities: []string{"Нева"}},
	}
	store, ix, report, err := builder.Build(context.Background(), docs)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if report.Indexed != 2 || report.Skipped != 1 {
		t.Fatalf("report = %+v, want 2 indexed, 1 skipped", report)
	}
	if store.Len() != 2 {
		t.Errorf("store has %d documents, want 2", store.Len())
	}
	if df, _ := ix.DocumentFrequency("нева"); df != 2 {
		t.Errorf("DocumentFrequency(нева) = %d, want 2", df)
	}
}

func TestBuilderAbortsOnCollaboratorOutage(t *testing.T) {
	down := fmt.Errorf("lemmatizer: %w", apperrors.ErrCollaboratorUnavailable)
	builder := NewBuilder(&nlp.FakeLemmatizer{Err: down}, 2)
	docs := []SourceDocument{
		{URL: "https://example.org/0", Text: "Нева течёт.", RawEntities: []string{"Нева"}},
		{URL: "https://example.org/1", Text: "Нева замёрзла.", RawEntities: []string{"Нева"}},
		{URL: "https://example.org/2", Text: "Нева судоходна.", RawEntities: []string{"Нева"}},
	}
	_, _, _, err := builder.Build(context.Background(), docs)
	if !errors.Is(err, apperrors.ErrCollaboratorUnavailable) {
		t.Fatalf("Build during collaborator outage = %v, want ErrCollaboratorUnavailable", err)
	}
}

func TestBuilderCancelled(t *testing.T) {
	builder := NewBuilder(&nlp.FakeLemmatizer{}, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, _, err := builder.Build(ctx, []SourceDocument{
		{Text: "Текст.", RawEntities: []string{"Текст"}},
	})
	if err == nil {
		t.Error("Build with cancelled context succeeded, want error")
	}
}
