// Package nlp defines the interfaces to the out-of-process NLP
// collaborators (entity extraction, lemmatization, embeddings, sentiment)
// and their HTTP client implementations. Collaborator calls are the only
// suspension points of a query: every call carries the caller's context and
// a configured timeout, and a failure surfaces as a retrievable error
// instead of partial output.
package nlp

import (
	"context"

	"github.com/EgorSmi/hack-fake-news/internal/corpus"
)

// EntityExtractor produces raw entity surface forms from text, ordered by
// first occurrence. Duplicates are allowed.
type EntityExtractor interface {
	Extract(ctx context.Context, text string) ([]string, error)
}

// Lemmatizer canonicalizes a surface form to its dictionary base form. The
// identical lemmatizer version must serve index build and query time, or
// scores across the two sides are meaningless.
type Lemmatizer interface {
	Normalize(ctx context.Context, surface string) (string, error)
}

// Embedder produces fixed-dimension vectors for texts. It serves both
// whole-document vectors for the semantic prefilter and per-sentence
// vectors for the cross scorer; dimensionality must match across corpus and
// query.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// SentimentClassifier predicts sentiment class probabilities for a text.
// Consumed only by the evidence assembler, never by ranking.
type SentimentClassifier interface {
	Predict(ctx context.Context, text string) (corpus.Sentiment, error)
}
