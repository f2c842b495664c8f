package index

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"

	"github.com/EgorSmi/hack-fake-news/internal/corpus"
	apperrors "github.com/EgorSmi/hack-fake-news/pkg/errors"
)

// Snapshot file layout: a fixed header (magic, version, payload length),
// a JSON payload with every document plus the posting lists and derived
// statistics, and a CRC32 footer over the payload. Loading is
// all-or-nothing; any structural damage surfaces as ErrMalformedSnapshot.
const (
	snapshotMagic   uint32 = 0x464E4958 // "FNIX"
	snapshotVersion uint32 = 1
	headerSize             = 16
)

type snapshotPayload struct {
	LemmatizerVersion string                  `json:"lemmatizer_version"`
	AvgDocLen         float64                 `json:"avg_document_len"`
	Documents         []*corpus.Document      `json:"documents"`
	Postings          map[string][]Appearance `json:"postings"`
	DocFreq           map[string]int          `json:"document_frequency"`
}

// WriteSnapshot persists a finalized index to path atomically (temp file
// plus rename). The lemmatizer version is recorded so a load against a
// different normalizer fails instead of producing meaningless scores.
func WriteSnapshot(path string, ix *InvertedIndex, lemmatizerVersion string) error {
	if !ix.finalized {
		return fmt.Errorf("writing snapshot: %w", apperrors.ErrIndexNotReady)
	}
	docs := make([]*corpus.Document, 0, ix.store.Len())
	for _, id := range ix.store.Keys() {
		doc, _ := ix.store.Get(id)
		docs = append(docs, doc)
	}
	payload, err := json.Marshal(snapshotPayload{
		LemmatizerVersion: lemmatizerVersion,
		AvgDocLen:         ix.avgDocLen,
		Documents:         docs,
		Postings:          ix.postings,
		DocFreq:           ix.docFreq,
	})
	if err != nil {
		return fmt.Errorf("marshaling snapshot payload: %w", err)
	}

	var buf bytes.Buffer
	header := make([]byte, headerSize)
	binary.LittleEndian.PutUint32(header[0:4], snapshotMagic)
	binary.LittleEndian.PutUint32(header[4:8], snapshotVersion)
	binary.LittleEndian.PutUint64(header[8:16], uint64(len(payload)))
	buf.Write(header)
	buf.Write(payload)

	footer := make([]byte, 4)
	binary.LittleEndian.PutUint32(footer, crc32.ChecksumIEEE(payload))
	buf.Write(footer)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing snapshot temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming snapshot file: %w", err)
	}
	return nil
}

// LoadSnapshot reads a snapshot and reconstructs a finalized store and
// index. wantLemmatizerVersion must equal the version recorded at build
// time; "" skips the check (tooling only).
func LoadSnapshot(path string, wantLemmatizerVersion string) (*corpus.Store, *InvertedIndex, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading snapshot %s: %w", path, err)
	}
	if len(data) < headerSize+4 {
		return nil, nil, fmt.Errorf("snapshot %s truncated at %d bytes: %w", path, len(data), apperrors.ErrMalformedSnapshot)
	}
	if magic := binary.LittleEndian.Uint32(data[0:4]); magic != snapshotMagic {
		return nil, nil, fmt.Errorf("snapshot %s has bad magic %#x: %w", path, magic, apperrors.ErrMalformedSnapshot)
	}
	if version := binary.LittleEndian.Uint32(data[4:8]); version != snapshotVersion {
		return nil, nil, fmt.Errorf("snapshot %s has unsupported version %d: %w", path, version, apperrors.ErrMalformedSnapshot)
	}
	payloadLen := binary.LittleEndian.Uint64(data[8:16])
	if uint64(len(data)) != headerSize+payloadLen+4 {
		return nil, nil, fmt.Errorf("snapshot %s length mismatch: %w", path, apperrors.ErrMalformedSnapshot)
	}
	payloadBytes := data[headerSize : headerSize+payloadLen]
	wantCRC := binary.LittleEndian.Uint32(data[headerSize+payloadLen:])
	if got := crc32.ChecksumIEEE(payloadBytes); got != wantCRC {
		return nil, nil, fmt.Errorf("snapshot %s checksum mismatch: %w", path, apperrors.ErrMalformedSnapshot)
	}

	var payload snapshotPayload
	if err := json.Unmarshal(payloadBytes, &payload); err != nil {
		return nil, nil, fmt.Errorf("snapshot %s payload: %v: %w", path, err, apperrors.ErrMalformedSnapshot)
	}
	if wantLemmatizerVersion != "" && payload.LemmatizerVersion != wantLemmatizerVersion {
		return nil, nil, fmt.Errorf("snapshot built with lemmatizer %q, configured %q: %w",
			payload.LemmatizerVersion, wantLemmatizerVersion, apperrors.ErrLemmatizerMismatch)
	}

	store := corpus.NewStore()
	ix := New(store)
	for _, doc := range payload.Documents {
		store.Add(doc)
		ix.indexed[doc.ID] = struct{}{}
	}
	ix.postings = payload.Postings
	if ix.postings == nil {
		ix.postings = make(map[string][]Appearance)
	}
	ix.docFreq = payload.DocFreq
	if ix.docFreq == nil {
		ix.docFreq = make(map[string]int)
	}
	ix.avgDocLen = payload.AvgDocLen
	ix.finalized = true
	return store, ix, nil
}
