package index

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// isSentenceEnd reports whether r terminates a sentence.
func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?', '…':
		return true
	}
	return false
}

// isWordRune mirrors the word-character class used for entity boundaries:
// letters, digits, and underscore, in any script.
func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

// ExtractSentence returns the sentence of text containing the byte offset
// idx, trimmed of surrounding whitespace. It scans left and right from idx
// until a sentence terminator or a text boundary. The same routine serves
// index build and query-time context extraction so both sides agree on
// sentence boundaries.
func ExtractSentence(text string, idx int) string {
	if idx < 0 || idx >= len(text) {
		return ""
	}
	left := idx
	for left > 0 {
		r, size := utf8.DecodeLastRuneInString(text[:left])
		if isSentenceEnd(r) {
			break
		}
		left -= size
	}
	right := idx
	for right < len(text) {
		r, size := utf8.DecodeRuneInString(text[right:])
		if isSentenceEnd(r) {
			break
		}
		right += size
	}
	return strings.TrimSpace(text[left:right])
}

// FindOccurrences returns the byte offsets of every word-boundary-anchored
// occurrence of surface in text. A boundary is the text edge or any
// non-word rune, so "Париж" matches in "в Париж?" but not inside
// "Парижский". Matches do not overlap.
func FindOccurrences(text, surface string) []int {
	if surface == "" {
		return nil
	}
	var offsets []int
	for from := 0; from <= len(text)-len(surface); {
		rel := strings.Index(text[from:], surface)
		if rel < 0 {
			break
		}
		at := from + rel
		if boundedAt(text, at, len(surface)) {
			offsets = append(offsets, at)
			from = at + len(surface)
		} else {
			_, size := utf8.DecodeRuneInString(text[at:])
			from = at + size
		}
	}
	return offsets
}

// boundedAt reports whether the occurrence of length n at byte offset at is
// flanked by word boundaries on both sides.
func boundedAt(text string, at, n int) bool {
	if at > 0 {
		r, _ := utf8.DecodeLastRuneInString(text[:at])
		if isWordRune(r) {
			return false
		}
	}
	if at+n < len(text) {
		r, _ := utf8.DecodeRuneInString(text[at+n:])
		if isWordRune(r) {
			return false
		}
	}
	return true
}
