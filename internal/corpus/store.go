package corpus

import "sort"

// Store owns indexed documents by id. It is populated during the bulk build
// and read-only while serving, so queries need no locking: they run against
// a frozen Store handle that is only ever swapped as a whole.
type Store struct {
	docs map[int]*Document
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{docs: make(map[int]*Document)}
}

// Add inserts or overwrites a document by its id.
func (s *Store) Add(doc *Document) {
	s.docs[doc.ID] = doc
}

// Get returns the document for id, or nil and false when absent.
func (s *Store) Get(id int) (*Document, bool) {
	doc, ok := s.docs[id]
	return doc, ok
}

// Remove deletes the document for id and returns the prior value, or nil
// and false when absent. The query path never calls this; it exists for
// rebuild tooling.
func (s *Store) Remove(id int) (*Document, bool) {
	doc, ok := s.docs[id]
	if ok {
		delete(s.docs, id)
	}
	return doc, ok
}

// Keys returns all document ids in ascending order. Iteration order carries
// no meaning but is deterministic for reproducible statistics and tests.
func (s *Store) Keys() []int {
	ids := make([]int, 0, len(s.docs))
	for id := range s.docs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Len returns the number of stored documents.
func (s *Store) Len() int {
	return len(s.docs)
}
