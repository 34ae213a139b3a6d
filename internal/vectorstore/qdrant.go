package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"document-vector-platform/internal/logger"
)

// Named vectors stored per point. Both share the collection's dimension
// and distance metric; they are queried independently.
const (
	VectorSummary = "summary_vector"
	VectorContent = "content_vector"
)

// Point is a persisted unit: one integer id, two named vectors and a
// payload carrying owner, filename, page_number, summary, content plus
// per-chunk metadata.
type Point struct {
	ID            int64
	SummaryVector []float32
	ContentVector []float32
	Payload       map[string]any
}

// Record is a point read back without vectors.
type Record struct {
	ID      int64
	Payload map[string]any
}

// ScoredPoint is a search hit with its raw similarity score.
type ScoredPoint struct {
	ID      int64
	Score   float64
	Payload map[string]any
}

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Dimension  int
	Timeout    time.Duration
}

// Client is a minimal REST client to Qdrant covering the operations the
// ingestion and retrieval pipeline needs: idempotent collection creation
// with dual named vectors, batched upsert, filtered scroll/delete and
// named-vector search. Cosine distance is assumed.
type Client struct {
	url        string
	apiKey     string
	collection string
	dimension  int
	http       *http.Client
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		dimension:  cfg.Dimension,
		http:       &http.Client{Timeout: timeout},
	}
}

// Collection returns the collection name this client operates on.
func (c *Client) Collection() string {
	return c.collection
}

// EnsureCollection creates the collection with the two fixed-size named
// vectors if it does not exist yet. An existing collection is reused
// unchanged; its schema is never altered.
func (c *Client) EnsureCollection(ctx context.Context) error {
	if c.dimension <= 0 {
		return errors.New("invalid vector dimension")
	}

	status, err := c.do(ctx, http.MethodGet, c.collectionURL(""), nil, nil)
	if err != nil {
		return fmt.Errorf("check collection %s: %w", c.collection, err)
	}
	if status == http.StatusOK {
		return nil
	}
	if status != http.StatusNotFound {
		return fmt.Errorf("check collection %s: unexpected status %d", c.collection, status)
	}

	body := map[string]any{
		"vectors": map[string]any{
			VectorSummary: map[string]any{"size": c.dimension, "distance": "Cosine"},
			VectorContent: map[string]any{"size": c.dimension, "distance": "Cosine"},
		},
	}
	status, err = c.do(ctx, http.MethodPut, c.collectionURL(""), body, nil)
	if err != nil {
		return fmt.Errorf("create collection %s: %w", c.collection, err)
	}
	if status >= 300 {
		return fmt.Errorf("create collection %s: status %d", c.collection, status)
	}
	logger.Info("Created collection with dual named vectors", "collection", c.collection, "dimension", c.dimension)
	return nil
}

// UpsertBatch writes the given points with wait=true so a following read
// sees them.
func (c *Client) UpsertBatch(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	wire := make([]map[string]any, len(points))
	for i, p := range points {
		wire[i] = map[string]any{
			"id": p.ID,
			"vector": map[string]any{
				VectorSummary: p.SummaryVector,
				VectorContent: p.ContentVector,
			},
			"payload": p.Payload,
		}
	}

	status, err := c.do(ctx, http.MethodPut, c.collectionURL("/points?wait=true"), map[string]any{"points": wire}, nil)
	if err != nil {
		return fmt.Errorf("upsert %d points: %w", len(points), err)
	}
	if status >= 300 {
		return fmt.Errorf("upsert %d points: status %d", len(points), status)
	}
	return nil
}

// SearchNamed runs a nearest-neighbor search against one named vector.
// An empty owner means no owner filter.
func (c *Client) SearchNamed(ctx context.Context, vectorName string, vector []float32, limit int, owner string) ([]ScoredPoint, error) {
	if limit <= 0 {
		limit = 5
	}

	req := map[string]any{
		"vector": map[string]any{
			"name":   vectorName,
			"vector": vector,
		},
		"limit":        limit,
		"with_payload": true,
	}
	if owner != "" {
		req["filter"] = exactFilter(map[string]any{"owner": owner})
	}

	var resp struct {
		Result []struct {
			ID      int64          `json:"id"`
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	status, err := c.do(ctx, http.MethodPost, c.collectionURL("/points/search"), req, &resp)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", vectorName, err)
	}
	if status >= 300 {
		return nil, fmt.Errorf("search %s: status %d", vectorName, status)
	}

	hits := make([]ScoredPoint, 0, len(resp.Result))
	for _, r := range resp.Result {
		hits = append(hits, ScoredPoint{ID: r.ID, Score: r.Score, Payload: r.Payload})
	}
	return hits, nil
}

// ScrollExact returns up to limit points whose payload matches every
// key/value pair in match exactly.
func (c *Client) ScrollExact(ctx context.Context, match map[string]any, limit int) ([]Record, error) {
	records, _, err := c.scrollPage(ctx, exactFilter(match), limit, true, nil)
	return records, err
}

// DeleteByDocument removes every point belonging to (filename, owner)
// using scroll-then-bulk-delete. Finding nothing is not an error.
func (c *Client) DeleteByDocument(ctx context.Context, filename, owner string) (int, error) {
	filter := exactFilter(map[string]any{"filename": filename, "owner": owner})

	var ids []int64
	var offset any
	for {
		records, next, err := c.scrollPage(ctx, filter, 1024, false, offset)
		if err != nil {
			return 0, fmt.Errorf("scroll points of %s: %w", filename, err)
		}
		for _, r := range records {
			ids = append(ids, r.ID)
		}
		if next == nil {
			break
		}
		offset = next
	}

	if len(ids) == 0 {
		logger.Debug("No existing points to delete", "filename", filename, "owner", owner)
		return 0, nil
	}

	status, err := c.do(ctx, http.MethodPost, c.collectionURL("/points/delete?wait=true"), map[string]any{"points": ids}, nil)
	if err != nil {
		return 0, fmt.Errorf("delete %d points of %s: %w", len(ids), filename, err)
	}
	if status >= 300 {
		return 0, fmt.Errorf("delete %d points of %s: status %d", len(ids), filename, status)
	}
	logger.Info("Deleted existing points", "filename", filename, "owner", owner, "count", len(ids))
	return len(ids), nil
}

// MaxPointID scans the whole collection and returns the highest point id.
// found is false when the collection holds no points.
func (c *Client) MaxPointID(ctx context.Context) (maxID int64, found bool, err error) {
	var offset any
	for {
		records, next, err := c.scrollPage(ctx, nil, 1024, false, offset)
		if err != nil {
			return 0, false, fmt.Errorf("scan point ids: %w", err)
		}
		for _, r := range records {
			if !found || r.ID > maxID {
				maxID = r.ID
				found = true
			}
		}
		if next == nil {
			break
		}
		offset = next
	}
	return maxID, found, nil
}

// scrollPage fetches one page of the scroll API. The returned offset is
// nil when there are no further pages.
func (c *Client) scrollPage(ctx context.Context, filter map[string]any, limit int, withPayload bool, offset any) ([]Record, any, error) {
	req := map[string]any{
		"limit":        limit,
		"with_payload": withPayload,
		"with_vectors": false,
	}
	if filter != nil {
		req["filter"] = filter
	}
	if offset != nil {
		req["offset"] = offset
	}

	var resp struct {
		Result struct {
			Points []struct {
				ID      int64          `json:"id"`
				Payload map[string]any `json:"payload"`
			} `json:"points"`
			NextPageOffset any `json:"next_page_offset"`
		} `json:"result"`
	}
	status, err := c.do(ctx, http.MethodPost, c.collectionURL("/points/scroll"), req, &resp)
	if err != nil {
		return nil, nil, err
	}
	if status >= 300 {
		return nil, nil, fmt.Errorf("scroll: status %d", status)
	}

	records := make([]Record, 0, len(resp.Result.Points))
	for _, p := range resp.Result.Points {
		records = append(records, Record{ID: p.ID, Payload: p.Payload})
	}
	return records, resp.Result.NextPageOffset, nil
}

// exactFilter builds an equality-conjunction filter over payload fields.
func exactFilter(match map[string]any) map[string]any {
	must := make([]map[string]any, 0, len(match))
	for key, value := range match {
		must = append(must, map[string]any{
			"key":   key,
			"match": map[string]any{"value": value},
		})
	}
	return map[string]any{"must": must}
}

func (c *Client) collectionURL(suffix string) string {
	return fmt.Sprintf("%s/collections/%s%s", c.url, c.collection, suffix)
}

func (c *Client) do(ctx context.Context, method, url string, body any, out any) (int, error) {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("api-key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}
