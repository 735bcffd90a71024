package search

import (
	"bytes"
	"context"
	"encoding/json"
	"io"

	"github.com/elastic/go-elasticsearch/v7"
	"github.com/elastic/go-elasticsearch/v7/esapi"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/eazyy/fulfillment/config"
	"example.com/eazyy/fulfillment/internal/models"
)

// ElasticClient indexes order timeline documents
type ElasticClient struct {
	client *elasticsearch.Client
	config config.ElasticConfig
}

// NewElasticClient creates a new Elasticsearch client
func NewElasticClient(cfg config.ElasticConfig) (*ElasticClient, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Elasticsearch client")
	}

	return &ElasticClient{client: client, config: cfg}, nil
}

func (c *ElasticClient) indexName() string {
	return config.FormatIndex(c.config, c.config.Index)
}

// IndexTimelineEntry writes one timeline document keyed by the entry id
func (c *ElasticClient) IndexTimelineEntry(ctx context.Context, entry models.TimelineEntry) error {
	doc, err := json.Marshal(entry)
	if err != nil {
		return errors.Wrap(err, "failed to marshal timeline document")
	}

	req := esapi.IndexRequest{
		Index:      c.indexName(),
		DocumentID: entry.ID,
		Body:       bytes.NewReader(doc),
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return errors.Wrap(err, "failed to execute Elasticsearch index request")
	}
	defer res.Body.Close()

	if res.IsError() {
		return responseError("index", res.Body)
	}

	log.Debug().Str("order_id", entry.OrderID.String()).Str("kind", entry.Kind).Msg("Timeline entry indexed")
	return nil
}

// SearchTimeline returns the indexed timeline of an order, oldest first
func (c *ElasticClient) SearchTimeline(ctx context.Context, orderID uuid.UUID) ([]models.TimelineEntry, error) {
	query := map[string]interface{}{
		"query": map[string]interface{}{
			"term": map[string]interface{}{
				"order_id": orderID.String(),
			},
		},
		"sort": []interface{}{
			map[string]interface{}{"occurred_at": map[string]string{"order": "asc"}},
		},
		"size": 500,
	}
	body, err := json.Marshal(query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal search query")
	}

	req := esapi.SearchRequest{
		Index: []string{c.indexName()},
		Body:  bytes.NewReader(body),
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return nil, errors.Wrap(err, "failed to execute Elasticsearch search request")
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, responseError("search", res.Body)
	}

	var result struct {
		Hits struct {
			Hits []struct {
				Source models.TimelineEntry `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return nil, errors.Wrap(err, "failed to parse Elasticsearch search response")
	}

	entries := make([]models.TimelineEntry, 0, len(result.Hits.Hits))
	for _, hit := range result.Hits.Hits {
		entries = append(entries, hit.Source)
	}
	return entries, nil
}

func responseError(op string, body io.Reader) error {
	var e map[string]interface{}
	if err := json.NewDecoder(body).Decode(&e); err != nil {
		return errors.Wrap(err, "failed to parse Elasticsearch error response")
	}
	return errors.Errorf("Elasticsearch %s error: %v", op, e)
}
