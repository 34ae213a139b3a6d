package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/hibiken/asynq"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"document-vector-platform/internal/logger"
	"document-vector-platform/models"
	"document-vector-platform/services"
	"document-vector-platform/utils"
)

const (
	TaskVectorizeDocument = "document:vectorize"
)

// VectorizePayload carries everything the worker needs to run one
// ingestion. The document id keys the registry record and the mirrored
// progress snapshots.
type VectorizePayload struct {
	DocumentID      string   `json:"document_id"`
	Owner           string   `json:"owner"`
	FilePath        string   `json:"file_path"`
	Filename        string   `json:"filename"`
	EnableSummary   bool     `json:"enable_summary"`
	MinChineseChars int      `json:"min_chinese_chars"`
	SummaryColumns  []string `json:"summary_columns,omitempty"`
}

func NewVectorizeTask(payload VectorizePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskVectorizeDocument,
		data,
		asynq.MaxRetry(3),
		asynq.Timeout(15*time.Minute),
		asynq.Queue("ingest"),
	), nil
}

// TaskHandler runs ingestion jobs and keeps the document registry and
// the progress mirror in sync. The same Run path serves both the asynq
// worker and the API's synchronous mode.
type TaskHandler struct {
	vectorizer *services.DocumentVectorizer
	documents  *mongo.Collection
	progress   *services.ProgressStore
}

func NewTaskHandler(vectorizer *services.DocumentVectorizer, documents *mongo.Collection, progress *services.ProgressStore) *TaskHandler {
	return &TaskHandler{
		vectorizer: vectorizer,
		documents:  documents,
		progress:   progress,
	}
}

func (h *TaskHandler) HandleVectorize(ctx context.Context, t *asynq.Task) error {
	var payload VectorizePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal vectorize payload: %w", asynq.SkipRetry)
	}
	return h.Run(ctx, payload)
}

// Run executes one ingestion end to end: registry status transitions,
// mirrored progress, vectorization, text archival and source file
// cleanup. The progress mirror key is the document id.
func (h *TaskHandler) Run(ctx context.Context, payload VectorizePayload) error {
	docID, err := primitive.ObjectIDFromHex(payload.DocumentID)
	if err != nil {
		return fmt.Errorf("invalid document id %q: %w", payload.DocumentID, asynq.SkipRetry)
	}

	logger.Info("ingestion started",
		"document_id", payload.DocumentID, "owner", payload.Owner, "filename", payload.Filename)

	h.updateDocument(docID, bson.M{"status": models.StatusProcessing, "progress": 0, "error_message": ""})

	tracker := services.NewProgressTracker()
	stopMirror := h.progress.StartMirror(payload.DocumentID, tracker, 500*time.Millisecond)

	result, err := h.vectorizer.Ingest(ctx, payload.FilePath, payload.Owner, services.IngestOptions{
		DisplayFilename: payload.Filename,
		EnableSummary:   payload.EnableSummary,
		MinChineseChars: payload.MinChineseChars,
		SummaryColumns:  payload.SummaryColumns,
		Tracker:         tracker,
		CollectText:     true,
	})
	stopMirror()

	if err != nil {
		h.updateDocument(docID, bson.M{
			"status":        models.StatusFailed,
			"error_message": err.Error(),
		})
		logger.Error("ingestion failed",
			"document_id", payload.DocumentID, "filename", payload.Filename, "error", err)
		return err
	}

	update := bson.M{
		"status":       models.StatusCompleted,
		"progress":     100,
		"chunk_count":  result.ProcessedUnits,
		"processed_at": time.Now(),
	}
	if result.ExtractedText != "" {
		archived, cErr := utils.CompressText(result.ExtractedText, utils.CompressionGzip)
		if cErr != nil {
			logger.Warn("failed to archive extracted text",
				"document_id", payload.DocumentID, "error", cErr)
		} else {
			update["archived_text"] = archived
			update["archive_algorithm"] = string(utils.CompressionGzip)
		}
	}
	h.updateDocument(docID, update)

	// The source file has served its purpose once the vectors are stored.
	if rmErr := os.Remove(payload.FilePath); rmErr != nil && !os.IsNotExist(rmErr) {
		logger.Warn("failed to remove ingested source file",
			"path", payload.FilePath, "error", rmErr)
	}

	logger.Info("ingestion completed",
		"document_id", payload.DocumentID, "filename", payload.Filename,
		"chunks", result.ProcessedUnits)
	return nil
}

func (h *TaskHandler) updateDocument(id primitive.ObjectID, fields bson.M) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := h.documents.UpdateByID(ctx, id, bson.M{"$set": fields}); err != nil {
		logger.Error("failed to update document record", "document_id", id.Hex(), "error", err)
	}
}
