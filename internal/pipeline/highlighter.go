package pipeline

import (
	"sort"

	"github.com/EgorSmi/hack-fake-news/internal/corpus"
	"github.com/EgorSmi/hack-fake-news/internal/search/lexical"
)

// Evidence is the user-facing explanation for one displayed source: where it
// was published, its sentiment, the displayed similarity, the entities it
// shares with the submitted article, and the query-side sentences those
// entities appeared in. The sentences come from the submitted article, not
// the source document; they drive markup of the user's own text.
type Evidence struct {
	DocID          int              `json:"doc_id"`
	URL            string           `json:"url"`
	Title          string           `json:"title"`
	Sentiment      corpus.Sentiment `json:"sentiment"`
	Score          float64          `json:"score"`
	Entities       []string         `json:"entities"`
	QuerySentences []string         `json:"query_sentences"`
}

// BuildEvidence assembles evidence for every document in the verdict's
// display list. A display entry without a matching candidate breakdown, or
// one whose document is missing from the store, is skipped silently rather
// than reported; display and candidates come from differently ordered stages
// and are not guaranteed to agree.
func BuildEvidence(store *corpus.Store, verdict *Verdict) []Evidence {
	byID := make(map[int]lexical.Candidate, len(verdict.Candidates))
	for _, cand := range verdict.Candidates {
		byID[cand.DocID] = cand
	}

	evidence := make([]Evidence, 0, len(verdict.Display))
	for _, hit := range verdict.Display {
		cand, ok := byID[hit.DocID]
		if !ok {
			continue
		}
		doc, ok := store.Get(hit.DocID)
		if !ok {
			continue
		}
		ev := Evidence{
			DocID:     hit.DocID,
			URL:       doc.URL,
			Title:     doc.Title,
			Sentiment: doc.Sentiment,
			Score:     hit.Score,
		}
		for entity, es := range cand.Entities {
			ev.Entities = append(ev.Entities, entity)
			for _, sentence := range es.QuerySentences {
				if !containsSentence(ev.QuerySentences, sentence) {
					ev.QuerySentences = append(ev.QuerySentences, sentence)
				}
			}
		}
		sort.Strings(ev.Entities)
		sort.Strings(ev.QuerySentences)
		evidence = append(evidence, ev)
	}
	return evidence
}
