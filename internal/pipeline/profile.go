package pipeline

import (
	"context"
	"fmt"

	"github.com/EgorSmi/hack-fake-news/internal/index"
	"github.com/EgorSmi/hack-fake-news/internal/nlp"
	"github.com/EgorSmi/hack-fake-news/internal/search/lexical"
)

// ProfileBuilder turns a submitted article into a query profile using the
// same occurrence and sentence rules the index build applies, so the two
// sides of every comparison are computed identically.
type ProfileBuilder struct {
	extractor  nlp.EntityExtractor
	lemmatizer nlp.Lemmatizer
}

// NewProfileBuilder creates a ProfileBuilder over the extraction and
// normalization collaborators.
func NewProfileBuilder(extractor nlp.EntityExtractor, lemmatizer nlp.Lemmatizer) *ProfileBuilder {
	return &ProfileBuilder{extractor: extractor, lemmatizer: lemmatizer}
}

// Build extracts entities from text, normalizes them, and collects
// per-entity occurrence counts and context sentences. Entity order is first
// occurrence in the extractor output. A text with no extractable entities
// yields a profile with no entities, which the orchestrator resolves to a
// no-match verdict rather than an error.
func (b *ProfileBuilder) Build(ctx context.Context, text string) (*lexical.QueryProfile, error) {
	surfaces, err := b.extractor.Extract(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("extracting entities: %w", err)
	}

	profile := &lexical.QueryProfile{
		EntityFrequency: make(map[string]int),
		EntityContext:   make(map[string][]string),
	}
	// The extractor reports one surface form per occurrence, so repeats are
	// expected; each distinct surface is scanned once to avoid counting the
	// same text offsets twice.
	seen := make(map[string]struct{}, len(surfaces))
	for _, surface := range surfaces {
		if _, dup := seen[surface]; dup {
			continue
		}
		seen[surface] = struct{}{}
		entity, err := b.lemmatizer.Normalize(ctx, surface)
		if err != nil {
			return nil, fmt.Errorf("normalizing %q: %w", surface, err)
		}
		if entity == "" {
			continue
		}
		for _, offset := range index.FindOccurrences(text, surface) {
			if profile.EntityFrequency[entity] == 0 {
				profile.Entities = append(profile.Entities, entity)
			}
			profile.EntityFrequency[entity]++
			sentence := index.ExtractSentence(text, offset)
			if sentence == "" {
				continue
			}
			if !containsSentence(profile.EntityContext[entity], sentence) {
				profile.EntityContext[entity] = append(profile.EntityContext[entity], sentence)
			}
		}
	}
	return profile, nil
}

func containsSentence(sentences []string, s string) bool {
	for _, have := range sentences {
		if have == s {
			return true
		}
	}
	return false
}
