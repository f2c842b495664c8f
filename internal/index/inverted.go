// Package index implements the inverted entity index over the trusted
// corpus: per-entity appearance lists, corpus statistics, the parallel bulk
// builder, and the persisted snapshot format.
package index

import (
	"fmt"
	"sort"
	"strings"

	"github.com/EgorSmi/hack-fake-news/internal/corpus"
	apperrors "github.com/EgorSmi/hack-fake-news/pkg/errors"
)

// Appearance records one entity's occurrence count in one document. It lives
// only inside per-entity posting lists.
type Appearance struct {
	DocID     int `json:"doc_id"`
	Frequency int `json:"frequency"`
}

// RawEntity pairs an entity surface form, as produced by the extraction
// collaborator, with its normalized form from the lemmatizer.
type RawEntity struct {
	Surface    string
	Normalized string
}

// InvertedIndex maps normalized entities to ordered appearance lists and
// carries the corpus statistics derived by Finalize. It is built once over
// the full corpus and read-only while serving.
type InvertedIndex struct {
	store    *corpus.Store
	postings map[string][]Appearance
	indexed  map[int]struct{}

	docFreq   map[string]int
	avgDocLen float64
	finalized bool
}

// New creates an empty index over the given store.
func New(store *corpus.Store) *InvertedIndex {
	return &InvertedIndex{
		store:    store,
		postings: make(map[string][]Appearance),
		indexed:  make(map[int]struct{}),
	}
}

// AnalyzeDocument scans the document text for every word-boundary occurrence
// of each raw entity, filling the document's entity frequency, entity
// context (distinct sentences, first-occurrence order), and word count. It
// returns the per-normalized-entity occurrence counts. The document is not
// stored; pair with Insert, or use IndexDocument for both steps.
func AnalyzeDocument(doc *corpus.Document, entities []RawEntity) (map[string]int, error) {
	if strings.TrimSpace(doc.Text) == "" {
		return nil, fmt.Errorf("document %d has empty text: %w", doc.ID, apperrors.ErrInvalidInput)
	}
	appearances := make(map[string]int)
	doc.EntityContext = make(map[string][]string)
	for _, entity := range entities {
		if entity.Normalized == "" {
			continue
		}
		for _, offset := range FindOccurrences(doc.Text, entity.Surface) {
			appearances[entity.Normalized]++
			sentence := ExtractSentence(doc.Text, offset)
			if sentence == "" {
				continue
			}
			if !containsSentence(doc.EntityContext[entity.Normalized], sentence) {
				doc.EntityContext[entity.Normalized] = append(doc.EntityContext[entity.Normalized], sentence)
			}
		}
	}
	doc.EntityFrequency = appearances
	doc.TextLen = len(strings.Fields(doc.Text))
	return appearances, nil
}

// Insert stores an analyzed document and appends its appearances to the
// posting lists. Re-inserting an id is an error: without this guard a
// duplicate would silently double the document's appearance entries and
// corrupt document frequencies.
func (ix *InvertedIndex) Insert(doc *corpus.Document, appearances map[string]int) error {
	if ix.finalized {
		return fmt.Errorf("inserting document %d into finalized index: %w", doc.ID, apperrors.ErrInvalidInput)
	}
	if _, dup := ix.indexed[doc.ID]; dup {
		return fmt.Errorf("document %d: %w", doc.ID, apperrors.ErrDocumentExists)
	}
	entities := make([]string, 0, len(appearances))
	for entity := range appearances {
		entities = append(entities, entity)
	}
	sort.Strings(entities)
	for _, entity := range entities {
		ix.postings[entity] = append(ix.postings[entity], Appearance{
			DocID:     doc.ID,
			Frequency: appearances[entity],
		})
	}
	ix.store.Add(doc)
	ix.indexed[doc.ID] = struct{}{}
	return nil
}

// IndexDocument analyzes and inserts in one step. Must be called exactly
// once per document id.
func (ix *InvertedIndex) IndexDocument(doc *corpus.Document, entities []RawEntity) error {
	appearances, err := AnalyzeDocument(doc, entities)
	if err != nil {
		return err
	}
	return ix.Insert(doc, appearances)
}

// Finalize derives document frequencies and the mean document length over
// the full store. It must run exactly once, after all inserts and before
// any Lookup.
func (ix *InvertedIndex) Finalize() error {
	if ix.finalized {
		return fmt.Errorf("index already finalized: %w", apperrors.ErrInvalidInput)
	}
	ix.docFreq = make(map[string]int, len(ix.postings))
	for entity, list := range ix.postings {
		ix.docFreq[entity] = len(list)
	}
	var totalLen int
	for _, id := range ix.store.Keys() {
		doc, _ := ix.store.Get(id)
		totalLen += doc.TextLen
	}
	if n := ix.store.Len(); n > 0 {
		ix.avgDocLen = float64(totalLen) / float64(n)
	}
	ix.finalized = true
	return nil
}

// Ready reports whether Finalize has run.
func (ix *InvertedIndex) Ready() bool {
	return ix.finalized
}

// Lookup returns the appearance lists for the given normalized entities.
// Entities absent from the index are silently omitted. Queries against a
// non-finalized index fail fast rather than read stale-zero statistics.
func (ix *InvertedIndex) Lookup(entities []string) (map[string][]Appearance, error) {
	if !ix.finalized {
		return nil, apperrors.ErrIndexNotReady
	}
	found := make(map[string][]Appearance)
	for _, entity := range entities {
		if list, ok := ix.postings[entity]; ok {
			found[entity] = list
		}
	}
	return found, nil
}

// DocumentFrequency returns the number of documents containing the entity.
func (ix *InvertedIndex) DocumentFrequency(entity string) (int, error) {
	if !ix.finalized {
		return 0, apperrors.ErrIndexNotReady
	}
	return ix.docFreq[entity], nil
}

// AvgDocumentLen returns the mean word count over the stored corpus.
func (ix *InvertedIndex) AvgDocumentLen() (float64, error) {
	if !ix.finalized {
		return 0, apperrors.ErrIndexNotReady
	}
	return ix.avgDocLen, nil
}

// TotalDocuments returns the corpus size.
func (ix *InvertedIndex) TotalDocuments() int {
	return ix.store.Len()
}

// Store returns the underlying document store.
func (ix *InvertedIndex) Store() *corpus.Store {
	return ix.store
}

// Entities returns all indexed normalized entities in sorted order.
func (ix *InvertedIndex) Entities() []string {
	entities := make([]string, 0, len(ix.postings))
	for entity := range ix.postings {
		entities = append(entities, entity)
	}
	sort.Strings(entities)
	return entities
}

func containsSentence(sentences []string, s string) bool {
	for _, have := range sentences {
		if have == s {
			return true
		}
	}
	return false
}
