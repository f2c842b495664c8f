// Package corpus holds the document model and the in-memory store of
// indexed trusted articles.
package corpus

import "time"

// Sentiment holds the class probabilities produced by the sentiment
// collaborator. It is carried for evidence display only and never feeds
// ranking.
type Sentiment struct {
	Skip     float64 `json:"skip"`
	Neutral  float64 `json:"neutral"`
	Negative float64 `json:"negative"`
	Positive float64 `json:"positive"`
}

// Document is one indexed trusted article. Ids are assigned sequentially at
// index-build time and are immutable afterwards. A Document is frozen once
// indexed: the only mutation path is Remove plus re-Add during a rebuild.
type Document struct {
	ID        int       `json:"id"`
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	Published time.Time `json:"published"`
	Text      string    `json:"text"`

	// TextLen is the whitespace word count of Text, used for BM25 length
	// normalization.
	TextLen int `json:"text_len"`

	// EntityFrequency maps a normalized entity to its occurrence count in
	// Text.
	EntityFrequency map[string]int `json:"entity_frequency"`

	// EntityContext maps a normalized entity to the distinct sentences of
	// Text containing it, ordered by first occurrence. Order matters for
	// reproducible evidence output, so this is a slice rather than a set.
	EntityContext map[string][]string `json:"entity_context"`

	// Embedding is the whole-document vector from the embedding
	// collaborator. Its dimension must match the query side.
	Embedding []float32 `json:"embedding"`

	Sentiment Sentiment `json:"sentiment"`
}
