package services

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"document-vector-platform/internal/logger"
	"document-vector-platform/internal/vectorstore"
	"document-vector-platform/models"
)

// Embedder produces a vector for a piece of text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Summarizer condenses text into a short summary between minChars and
// maxChars characters.
type Summarizer interface {
	Summarize(ctx context.Context, text string, minChars, maxChars int) (string, error)
}

// VectorStore is the persistence surface the pipeline needs. The Qdrant
// client satisfies it.
type VectorStore interface {
	Collection() string
	EnsureCollection(ctx context.Context) error
	UpsertBatch(ctx context.Context, points []vectorstore.Point) error
	SearchNamed(ctx context.Context, vectorName string, vector []float32, limit int, owner string) ([]vectorstore.ScoredPoint, error)
	ScrollExact(ctx context.Context, match map[string]any, limit int) ([]vectorstore.Record, error)
	DeleteByDocument(ctx context.Context, filename, owner string) (int, error)
	MaxPointID(ctx context.Context) (int64, bool, error)
}

// IngestOptions tunes one ingestion run.
type IngestOptions struct {
	// DisplayFilename overrides the stored filename; defaults to the
	// base name of the source path.
	DisplayFilename string
	EnableSummary   bool
	MinChineseChars int
	SummaryColumns  []string
	// Tracker receives progress updates; optional.
	Tracker *ProgressTracker
	// CollectText asks for the concatenated chunk text back in the
	// result, for archival.
	CollectText bool
}

// IngestResult describes a finished ingestion.
type IngestResult struct {
	Filename       string `json:"filename"`
	Owner          string `json:"owner"`
	TotalUnits     int    `json:"total_units"`
	ProcessedUnits int    `json:"processed_units"`
	Collection     string `json:"collection"`
	FileType       string `json:"file_type"`
	ExtractedText  string `json:"-"`
}

// DocumentVectorizer runs the full pipeline: parse a source file into
// chunks, embed each chunk's summary and content, and upsert the points
// under sequential ids. Re-ingesting the same (owner, filename) replaces
// the previous points before new ones are written.
type DocumentVectorizer struct {
	store     VectorStore
	embedder  Embedder
	builders  map[string]ChunkBuilder
	batchSize int

	// ingestMu serializes ingestion runs so that id allocation from
	// MaxPointID cannot race between concurrent documents.
	ingestMu sync.Mutex
}

func NewDocumentVectorizer(store VectorStore, embedder Embedder, summarizer Summarizer, batchSize int) *DocumentVectorizer {
	if batchSize <= 0 {
		batchSize = 100
	}
	pdfBuilder := NewPDFChunkBuilder(summarizer)
	excelBuilder := NewExcelChunkBuilder(summarizer)
	return &DocumentVectorizer{
		store:    store,
		embedder: embedder,
		builders: map[string]ChunkBuilder{
			".pdf":  pdfBuilder,
			".xlsx": excelBuilder,
			".xls":  excelBuilder,
		},
		batchSize: batchSize,
	}
}

// Ingest processes one source file for an owner. The file type is
// dispatched on the path extension; an unsupported extension fails
// before any state is touched.
func (v *DocumentVectorizer) Ingest(ctx context.Context, path, owner string, opts IngestOptions) (*IngestResult, error) {
	ext := strings.ToLower(filepath.Ext(path))
	builder, ok := v.builders[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFileType, ext)
	}

	filename := opts.DisplayFilename
	if filename == "" {
		filename = filepath.Base(path)
	}

	v.ingestMu.Lock()
	defer v.ingestMu.Unlock()

	tracker := opts.Tracker
	if tracker == nil {
		tracker = NewProgressTracker()
	}
	tracker.Reset()
	tracker.Enter(StageInit, "preparing collection", "init", 0)
	tracker.SetData(map[string]any{"filename": filename, "owner": owner})

	fail := func(err error) (*IngestResult, error) {
		tracker.Fail(err)
		return nil, err
	}

	if err := v.store.EnsureCollection(ctx); err != nil {
		return fail(fmt.Errorf("failed to ensure collection: %w", err))
	}

	// Replace-before-write keeps re-ingestion idempotent.
	tracker.Enter(StageInit, "removing previous version", "dedup", 5)
	removed, err := v.store.DeleteByDocument(ctx, filename, owner)
	if err != nil {
		return fail(fmt.Errorf("failed to remove previous points: %w", err))
	}
	if removed > 0 {
		logger.Info("replaced previous document points",
			"filename", filename, "owner", owner, "removed", removed)
	}

	tracker.Enter(StageParsing, "parsing source file", "parse", 5)
	buildOpts := BuildOptions{
		EnableSummary:   opts.EnableSummary,
		MinChineseChars: opts.MinChineseChars,
		SummaryColumns:  opts.SummaryColumns,
	}
	chunks, err := builder.Build(ctx, path, buildOpts, func(current, total int) {
		percent := 5.0
		if total > 0 {
			percent = 5 + float64(current)/float64(total)*10
		}
		tracker.Advance(current, total, "parsing source file", "parse", percent, nil)
	})
	if err != nil {
		return fail(fmt.Errorf("failed to parse %s: %w", filename, err))
	}

	result := &IngestResult{
		Filename:   filename,
		Owner:      owner,
		TotalUnits: len(chunks),
		Collection: v.store.Collection(),
		FileType:   strings.TrimPrefix(ext, "."),
	}
	if len(chunks) == 0 {
		tracker.Complete("no content to index", map[string]any{"filename": filename})
		return result, nil
	}

	maxID, found, err := v.store.MaxPointID(ctx)
	if err != nil {
		return fail(fmt.Errorf("failed to scan existing point ids: %w", err))
	}
	nextID := int64(0)
	if found {
		nextID = maxID + 1
	}

	tracker.Enter(StageProcessing, "embedding chunks", "embed", 15)
	points := make([]vectorstore.Point, 0, len(chunks))
	var texts []string
	total := len(chunks)
	for i, chunk := range chunks {
		base := 15 + float64(i)/float64(total)*70
		tracker.Advance(i+1, total, fmt.Sprintf("embedding chunk %d of %d", i+1, total), "embed", base, nil)

		summaryVec, err := v.embedder.Embed(ctx, chunk.Summary)
		if err != nil {
			return fail(fmt.Errorf("failed to embed summary of chunk %d: %w", i+1, err))
		}
		tracker.Advance(i+1, total, fmt.Sprintf("embedding chunk %d of %d", i+1, total), "embed",
			base+70/float64(total)*0.6, nil)
		contentVec, err := v.embedder.Embed(ctx, chunk.Content)
		if err != nil {
			return fail(fmt.Errorf("failed to embed content of chunk %d: %w", i+1, err))
		}

		points = append(points, vectorstore.Point{
			ID:            nextID + int64(i),
			SummaryVector: summaryVec,
			ContentVector: contentVec,
			Payload:       buildPayload(chunk, filename, owner, i),
		})
		if opts.CollectText {
			texts = append(texts, chunk.Content)
		}
	}

	tracker.Enter(StageStoring, "storing vectors", "store", 90)
	for start := 0; start < len(points); start += v.batchSize {
		end := start + v.batchSize
		if end > len(points) {
			end = len(points)
		}
		if err := v.store.UpsertBatch(ctx, points[start:end]); err != nil {
			return fail(fmt.Errorf("failed to store points %d..%d: %w", start, end-1, err))
		}
	}

	result.ProcessedUnits = len(points)
	if opts.CollectText {
		result.ExtractedText = strings.Join(texts, "\n\n")
	}
	tracker.Complete(fmt.Sprintf("indexed %d chunks", len(points)), map[string]any{
		"filename":    filename,
		"total_units": len(points),
	})
	logger.Info("document ingested",
		"filename", filename, "owner", owner,
		"chunks", len(points), "collection", result.Collection)
	return result, nil
}

// Delete removes every point of a document. The count of removed points
// is returned; deleting an unknown document is not an error.
func (v *DocumentVectorizer) Delete(ctx context.Context, filename, owner string) (int, error) {
	return v.store.DeleteByDocument(ctx, filename, owner)
}

// buildPayload flattens a chunk into the stored payload. The positional
// metadata keys collapse into the single page_number field; remaining
// metadata entries are kept as extra payload fields.
func buildPayload(chunk models.Chunk, filename, owner string, ordinal int) map[string]any {
	payload := map[string]any{
		"owner":       owner,
		"filename":    filename,
		"page_number": chunkPosition(chunk.Metadata, ordinal),
		"summary":     chunk.Summary,
		"content":     chunk.Content,
	}
	for k, v := range chunk.Metadata {
		switch k {
		case "page_number", "row_number", "start_row", "end_row":
			continue
		}
		payload[k] = v
	}
	return payload
}

func chunkPosition(metadata map[string]any, ordinal int) int {
	for _, key := range []string{"page_number", "row_number", "start_row"} {
		if raw, ok := metadata[key]; ok {
			switch n := raw.(type) {
			case int:
				return n
			case int64:
				return int(n)
			case float64:
				return int(n)
			}
		}
	}
	return ordinal
}
