package services

import (
	"context"
	"fmt"

	"document-vector-platform/internal/vectorstore"
)

// SearchMode selects which vector space a query runs against.
type SearchMode string

const (
	SearchModeDual    SearchMode = "dual"
	SearchModeSummary SearchMode = "summary"
	SearchModeContent SearchMode = "content"
)

const defaultSearchLimit = 5

// SearchResultEntry is one ranked hit.
type SearchResultEntry struct {
	Rank          int     `json:"rank"`
	Score         float64 `json:"score"`
	Filename      string  `json:"filename"`
	PageNumber    int     `json:"page_number"`
	Summary       string  `json:"summary"`
	Content       string  `json:"content"`
	RetrievalPath string  `json:"retrieval_path"`
}

// SearchResults groups hits by retrieval path. Dual mode fills both
// lists; the single-path modes fill only their own.
type SearchResults struct {
	SummaryResults []SearchResultEntry `json:"summary_results,omitempty"`
	ContentResults []SearchResultEntry `json:"content_results,omitempty"`
}

// unitFields is the set of payload fields GetUnits may return.
var unitFields = map[string]bool{
	"filename":    true,
	"page_number": true,
	"summary":     true,
	"content":     true,
	"owner":       true,
}

// Search embeds the query once and runs it against the requested vector
// space(s). An empty owner skips owner filtering.
func (v *DocumentVectorizer) Search(ctx context.Context, query string, mode SearchMode, limit int, owner string) (*SearchResults, error) {
	switch mode {
	case SearchModeDual, SearchModeSummary, SearchModeContent:
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidSearchMode, mode)
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	queryVec, err := v.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	results := &SearchResults{}
	if mode == SearchModeDual || mode == SearchModeSummary {
		hits, err := v.store.SearchNamed(ctx, vectorstore.VectorSummary, queryVec, limit, owner)
		if err != nil {
			return nil, fmt.Errorf("summary search failed: %w", err)
		}
		results.SummaryResults = toEntries(hits, "summary")
	}
	if mode == SearchModeDual || mode == SearchModeContent {
		hits, err := v.store.SearchNamed(ctx, vectorstore.VectorContent, queryVec, limit, owner)
		if err != nil {
			return nil, fmt.Errorf("content search failed: %w", err)
		}
		results.ContentResults = toEntries(hits, "content")
	}
	return results, nil
}

// GetUnits fetches payload fields for specific positions of a document.
// Omitted fields mean the whole payload; unknown fields fail before any
// store access; positions with no stored point are silently omitted.
func (v *DocumentVectorizer) GetUnits(ctx context.Context, filename string, positions []int, fields []string, owner string) ([]map[string]any, error) {
	for _, f := range fields {
		if !unitFields[f] {
			return nil, fmt.Errorf("%w: %q", ErrInvalidField, f)
		}
	}

	units := make([]map[string]any, 0, len(positions))
	for _, pos := range positions {
		match := map[string]any{"filename": filename, "page_number": pos}
		if owner != "" {
			match["owner"] = owner
		}
		records, err := v.store.ScrollExact(ctx, match, 1)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch unit %d of %s: %w", pos, filename, err)
		}
		if len(records) == 0 {
			continue
		}
		var unit map[string]any
		if len(fields) == 0 {
			unit = make(map[string]any, len(records[0].Payload))
			for k, val := range records[0].Payload {
				unit[k] = val
			}
		} else {
			unit = make(map[string]any, len(fields))
			for _, f := range fields {
				if val, ok := records[0].Payload[f]; ok {
					unit[f] = val
				}
			}
		}
		units = append(units, unit)
	}
	return units, nil
}

func toEntries(hits []vectorstore.ScoredPoint, path string) []SearchResultEntry {
	entries := make([]SearchResultEntry, 0, len(hits))
	for i, hit := range hits {
		entry := SearchResultEntry{
			Rank:          i + 1,
			Score:         hit.Score,
			RetrievalPath: path,
		}
		if s, ok := hit.Payload["filename"].(string); ok {
			entry.Filename = s
		}
		// JSON-decoded payloads carry float64, in-process ones carry int.
		switch n := hit.Payload["page_number"].(type) {
		case float64:
			entry.PageNumber = int(n)
		case int:
			entry.PageNumber = n
		case int64:
			entry.PageNumber = int(n)
		}
		if s, ok := hit.Payload["summary"].(string); ok {
			entry.Summary = s
		}
		if s, ok := hit.Payload["content"].(string); ok {
			entry.Content = s
		}
		entries = append(entries, entry)
	}
	return entries
}
