package ingest

import (
	"testing"

	"github.com/EgorSmi/hack-fake-news/internal/index"
)

func TestArticleBufferDrain(t *testing.T) {
	buffer := NewArticleBuffer()
	buffer.Add(index.SourceDocument{URL: "https://example.org/1"})
	buffer.Add(index.SourceDocument{URL: "https://example.org/2"})

	if buffer.Len() != 2 {
		t.Fatalf("Len = %d, want 2", buffer.Len())
	}
	select {
	case <-buffer.Notify():
	default:
		t.Error("Notify channel carries no tick after Add")
	}

	drained := buffer.Drain()
	if len(drained) != 2 || drained[0].URL != "https://example.org/1" {
		t.Errorf("Drain = %v", drained)
	}
	if buffer.Len() != 0 {
		t.Errorf("Len after Drain = %d, want 0", buffer.Len())
	}
	if drained := buffer.Drain(); len(drained) != 0 {
		t.Errorf("second Drain = %v, want empty", drained)
	}
}
