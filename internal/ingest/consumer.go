package ingest

import (
	"context"
	"sync"

	"github.com/EgorSmi/hack-fake-news/internal/index"
	"github.com/EgorSmi/hack-fake-news/pkg/config"
	"github.com/EgorSmi/hack-fake-news/pkg/kafka"
	"github.com/EgorSmi/hack-fake-news/pkg/logger"
)

// ArticleBuffer accumulates articles arriving over Kafka between index
// rebuilds. The index itself is a bulk, single-pass build, so incremental
// arrivals are buffered and folded into the corpus at the next rebuild
// rather than mutating the serving snapshot.
type ArticleBuffer struct {
	mu       sync.Mutex
	pending  []index.SourceDocument
	notifyCh chan struct{}
}

// NewArticleBuffer creates an empty buffer. Notify returns a channel that
// receives a tick when new articles arrive.
func NewArticleBuffer() *ArticleBuffer {
	return &ArticleBuffer{notifyCh: make(chan struct{}, 1)}
}

// Add appends an article to the pending set.
func (b *ArticleBuffer) Add(doc index.SourceDocument) {
	b.mu.Lock()
	b.pending = append(b.pending, doc)
	b.mu.Unlock()
	select {
	case b.notifyCh <- struct{}{}:
	default:
	}
}

// Drain returns the pending articles and resets the buffer.
func (b *ArticleBuffer) Drain() []index.SourceDocument {
	b.mu.Lock()
	defer b.mu.Unlock()
	pending := b.pending
	b.pending = nil
	return pending
}

// Len returns the number of buffered articles.
func (b *ArticleBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Notify returns the channel signalled on new arrivals.
func (b *ArticleBuffer) Notify() <-chan struct{} {
	return b.notifyCh
}

// NewArticleConsumer creates a Kafka consumer on the article-ingest topic
// that decodes crawled articles into the buffer. Undecodable messages are
// acknowledged and dropped; redelivering them cannot make them parse.
func NewArticleConsumer(cfg config.KafkaConfig, buffer *ArticleBuffer) *kafka.Consumer {
	handler := func(ctx context.Context, key, value []byte) error {
		doc, err := kafka.DecodeJSON[index.SourceDocument](value)
		if err != nil {
			logger.FromContext(ctx).Warn("dropping undecodable article event",
				"key", string(key), "error", err)
			return nil
		}
		buffer.Add(doc)
		return nil
	}
	return kafka.NewConsumer(cfg, cfg.Topics.ArticleIngest, handler)
}

// SnapshotEvent announces a freshly written index snapshot so serving
// instances reload it.
type SnapshotEvent struct {
	Path              string `json:"path"`
	Documents         int    `json:"documents"`
	Skipped           int    `json:"skipped"`
	LemmatizerVersion string `json:"lemmatizer_version"`
}

// PublishSnapshot announces a new snapshot on the snapshot-publish topic.
func PublishSnapshot(ctx context.Context, producer *kafka.Producer, event SnapshotEvent) error {
	return producer.Publish(ctx, kafka.Event{Key: event.Path, Value: event})
}
