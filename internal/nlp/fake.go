package nlp

import (
	"context"
	"strings"

	"github.com/EgorSmi/hack-fake-news/internal/corpus"
)

// The fakes below are deterministic in-process collaborators for tests and
// local development without the model services.

// FakeExtractor returns a fixed entity list per text, falling back to
// Default when no mapping exists.
type FakeExtractor struct {
	ByText  map[string][]string
	Default []string
}

func (f *FakeExtractor) Extract(_ context.Context, text string) ([]string, error) {
	if entities, ok := f.ByText[text]; ok {
		return entities, nil
	}
	return f.Default, nil
}

// FakeLemmatizer lower-cases surface forms, with optional explicit
// overrides. A non-nil Err fails every call, simulating an outage.
type FakeLemmatizer struct {
	Overrides map[string]string
	Err       error
}

func (f *FakeLemmatizer) Normalize(_ context.Context, surface string) (string, error) {
	if f.Err != nil {
		return "", f.Err
	}
	if f.Overrides != nil {
		if normalized, ok := f.Overrides[surface]; ok {
			return normalized, nil
		}
	}
	return strings.ToLower(surface), nil
}

// FakeEmbedder returns preset vectors by text, or Default for unknown
// texts.
type FakeEmbedder struct {
	ByText  map[string][]float32
	Default []float32
}

func (f *FakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		if vec, ok := f.ByText[text]; ok {
			vectors[i] = vec
		} else {
			vectors[i] = f.Default
		}
	}
	return vectors, nil
}

// FakeSentiment returns a fixed prediction.
type FakeSentiment struct {
	Result corpus.Sentiment
}

func (f *FakeSentiment) Predict(context.Context, string) (corpus.Sentiment, error) {
	return f.Result, nil
}
