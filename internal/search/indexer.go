// Package search keeps created announcements in an Elasticsearch index and
// serves full-text lookups over them.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"teamhub-notifications/internal/common/logger"
	"teamhub-notifications/internal/models"
	"teamhub-notifications/internal/notifications"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

var (
	ErrIndexFailed  = errors.New("SEARCH_INDEX_FAILED")
	ErrSearchFailed = errors.New("SEARCH_QUERY_FAILED")
)

const DefaultIndex = "notifications"

const indexMapping = `{
	"mappings": {
		"properties": {
			"id":        {"type": "keyword"},
			"type":      {"type": "keyword"},
			"category":  {"type": "keyword"},
			"priority":  {"type": "keyword"},
			"teamId":    {"type": "keyword"},
			"createdBy": {"type": "keyword"},
			"title":     {"type": "text"},
			"message":   {"type": "text"},
			"createdAt": {"type": "date"}
		}
	}
}`

// Document is the indexed form of a notification.
type Document struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Category  string    `json:"category"`
	Priority  string    `json:"priority"`
	TeamID    string    `json:"teamId,omitempty"`
	CreatedBy string    `json:"createdBy,omitempty"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

type Hit struct {
	Document
	Score float64 `json:"score"`
}

type Result struct {
	Total int64 `json:"total"`
	Hits  []Hit `json:"hits"`
}

// Indexer implements notifications.Indexer.
type Indexer struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
}

func NewIndexer(client *elasticsearch.Client, index string, log logger.Logger) *Indexer {
	if index == "" {
		index = DefaultIndex
	}
	return &Indexer{
		client: client,
		index:  index,
		logger: log.WithFields(map[string]interface{}{"component": "search-indexer", "index": index}),
	}
}

// EnsureIndex creates the index with its mapping when it does not exist.
func (ix *Indexer) EnsureIndex(ctx context.Context) error {
	res, err := esapi.IndicesExistsRequest{Index: []string{ix.index}}.Do(ctx, ix.client)
	if err != nil {
		return fmt.Errorf("%w: check index: %v", ErrIndexFailed, err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}

	res, err = esapi.IndicesCreateRequest{
		Index: ix.index,
		Body:  strings.NewReader(indexMapping),
	}.Do(ctx, ix.client)
	if err != nil {
		return fmt.Errorf("%w: create index: %v", ErrIndexFailed, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("%w: create index: %s", ErrIndexFailed, res.String())
	}
	ix.logger.Info("search index created", nil)
	return nil
}

// Index writes items with one bulk request.
func (ix *Indexer) Index(ctx context.Context, items []notifications.Notification) error {
	if len(items) == 0 {
		return nil
	}

	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	for _, n := range items {
		meta := map[string]interface{}{"index": map[string]string{"_index": ix.index, "_id": n.ID}}
		if err := enc.Encode(meta); err != nil {
			return fmt.Errorf("%w: %v", ErrIndexFailed, err)
		}
		if err := enc.Encode(DocumentFrom(n)); err != nil {
			return fmt.Errorf("%w: %v", ErrIndexFailed, err)
		}
	}

	res, err := esapi.BulkRequest{Body: &body}.Do(ctx, ix.client)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIndexFailed, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("%w: %s", ErrIndexFailed, res.String())
	}

	var bulk struct {
		Errors bool `json:"errors"`
		Items  []map[string]struct {
			ID     string `json:"_id"`
			Status int    `json:"status"`
		} `json:"items"`
	}
	if err := json.NewDecoder(res.Body).Decode(&bulk); err != nil {
		return fmt.Errorf("%w: decode bulk response: %v", ErrIndexFailed, err)
	}
	if bulk.Errors {
		failed := 0
		for _, item := range bulk.Items {
			for _, r := range item {
				if r.Status >= 300 {
					failed++
				}
			}
		}
		return fmt.Errorf("%w: %d of %d documents rejected", ErrIndexFailed, failed, len(items))
	}

	ix.logger.Debug("documents indexed", map[string]interface{}{"count": len(items)})
	return nil
}

// Remove deletes one document. A missing document is not an error.
func (ix *Indexer) Remove(ctx context.Context, id string) error {
	res, err := esapi.DeleteRequest{Index: ix.index, DocumentID: id}.Do(ctx, ix.client)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIndexFailed, err)
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotFound {
		return nil
	}
	if res.IsError() {
		return fmt.Errorf("%w: %s", ErrIndexFailed, res.String())
	}
	return nil
}

// Search runs a full-text query over title and message. A non-empty teamID
// limits results to that team plus global announcements.
func (ix *Indexer) Search(ctx context.Context, teamID, query string, limit int) (*Result, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	boolQuery := map[string]interface{}{}
	if q := strings.TrimSpace(query); q != "" {
		boolQuery["must"] = []interface{}{
			map[string]interface{}{
				"multi_match": map[string]interface{}{
					"query":  q,
					"fields": []string{"title^2", "message"},
				},
			},
		}
	}
	if teamID != "" {
		boolQuery["filter"] = []interface{}{
			map[string]interface{}{
				"bool": map[string]interface{}{
					"should": []interface{}{
						map[string]interface{}{"term": map[string]interface{}{"teamId": teamID}},
						map[string]interface{}{"bool": map[string]interface{}{
							"must_not": map[string]interface{}{"exists": map[string]interface{}{"field": "teamId"}},
						}},
					},
					"minimum_should_match": 1,
				},
			},
		}
	}

	body, err := json.Marshal(map[string]interface{}{
		"size":  limit,
		"query": map[string]interface{}{"bool": boolQuery},
		"sort":  []interface{}{"_score", map[string]interface{}{"createdAt": "desc"}},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}

	res, err := esapi.SearchRequest{
		Index: []string{ix.index},
		Body:  bytes.NewReader(body),
	}.Do(ctx, ix.client)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("%w: %s", ErrSearchFailed, res.String())
	}

	var r struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Score  float64  `json:"_score"`
				Source Document `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrSearchFailed, err)
	}

	out := &Result{Total: r.Hits.Total.Value, Hits: make([]Hit, 0, len(r.Hits.Hits))}
	for _, h := range r.Hits.Hits {
		out.Hits = append(out.Hits, Hit{Document: h.Source, Score: h.Score})
	}
	return out, nil
}

// DocumentFrom flattens a notification. The team and author are read from the
// announcement row carried in Data.
func DocumentFrom(n notifications.Notification) Document {
	doc := Document{
		ID:        n.ID,
		Type:      string(n.Type),
		Category:  string(n.Category),
		Priority:  string(n.Priority),
		Title:     n.Title,
		Message:   n.Message,
		CreatedAt: n.CreatedAt,
	}
	if a, ok := n.Data.(models.Announcement); ok {
		doc.TeamID = a.TeamIDValue()
		doc.CreatedBy = a.CreatedBy
	}
	return doc
}
