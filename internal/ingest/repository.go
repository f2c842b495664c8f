// Package ingest feeds the bulk index builder: a Postgres repository over
// the crawled trusted-article corpus and a Kafka consumer for incremental
// article events between rebuilds.
package ingest

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/EgorSmi/hack-fake-news/internal/corpus"
	"github.com/EgorSmi/hack-fake-news/internal/index"
	"github.com/EgorSmi/hack-fake-news/pkg/logger"
	"github.com/EgorSmi/hack-fake-news/pkg/postgres"
)

// Repository reads crawled articles from the corpus database. The crawler
// pipeline stores entity surface forms, the document embedding, and
// sentiment probabilities as JSON columns, precomputed by the collaborators
// at crawl time.
type Repository struct {
	client *postgres.Client
	table  string
}

// NewRepository creates a Repository over the given articles table.
func NewRepository(client *postgres.Client, table string) *Repository {
	return &Repository{client: client, table: table}
}

// FetchAll returns every crawled article ordered by publication time. Rows
// with undecodable JSON columns are skipped and logged, matching the
// fail-open ingestion policy; a failing query is an error.
func (r *Repository) FetchAll(ctx context.Context) ([]index.SourceDocument, error) {
	log := logger.FromContext(ctx).With("component", "corpus-repository")
	query := fmt.Sprintf(
		`SELECT url, title, published_at, text, entities, embedding, sentiment FROM %s ORDER BY published_at, url`,
		r.table,
	)
	rows, err := r.client.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", r.table, err)
	}
	defer rows.Close()

	var docs []index.SourceDocument
	var skipped int
	for rows.Next() {
		var (
			doc          index.SourceDocument
			published    sql.NullTime
			rawEntities  []byte
			rawEmbedding []byte
			rawSentiment []byte
		)
		if err := rows.Scan(&doc.URL, &doc.Title, &published, &doc.Text, &rawEntities, &rawEmbedding, &rawSentiment); err != nil {
			return nil, fmt.Errorf("scanning article row: %w", err)
		}
		if published.Valid {
			doc.PublishedAt = published.Time.Format(time.RFC3339)
		}
		if err := decodeColumns(&doc, rawEntities, rawEmbedding, rawSentiment); err != nil {
			log.Warn("skipping article with undecodable columns", "url", doc.URL, "error", err)
			skipped++
			continue
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating article rows: %w", err)
	}
	log.Info("corpus fetched", "articles", len(docs), "skipped", skipped)
	return docs, nil
}

func decodeColumns(doc *index.SourceDocument, rawEntities, rawEmbedding, rawSentiment []byte) error {
	if len(rawEntities) > 0 {
		if err := json.Unmarshal(rawEntities, &doc.RawEntities); err != nil {
			return fmt.Errorf("entities column: %w", err)
		}
	}
	if len(rawEmbedding) > 0 {
		if err := json.Unmarshal(rawEmbedding, &doc.Embedding); err != nil {
			return fmt.Errorf("embedding column: %w", err)
		}
	}
	if len(rawSentiment) > 0 {
		var sentiment corpus.Sentiment
		if err := json.Unmarshal(rawSentiment, &sentiment); err != nil {
			return fmt.Errorf("sentiment column: %w", err)
		}
		doc.Sentiment = sentiment
	}
	return nil
}
