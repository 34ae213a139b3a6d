package routes

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"document-vector-platform/internal/config"
	"document-vector-platform/internal/logger"
	"document-vector-platform/internal/queue"
	"document-vector-platform/middleware"
	"document-vector-platform/models"
	"document-vector-platform/services"
	"document-vector-platform/utils"
)

var allowedExtensions = map[string]string{
	".pdf":  "pdf",
	".xlsx": "excel",
	".xls":  "excel",
}

// DocumentHandler serves the upload, status and lifecycle endpoints of
// the document registry.
type DocumentHandler struct {
	cfg         *config.Config
	documents   *mongo.Collection
	asynqClient *asynq.Client
	tasks       *queue.TaskHandler
	progress    *services.ProgressStore
	vectorizer  *services.DocumentVectorizer
}

func NewDocumentHandler(cfg *config.Config, documents *mongo.Collection, asynqClient *asynq.Client, tasks *queue.TaskHandler, progress *services.ProgressStore, vectorizer *services.DocumentVectorizer) *DocumentHandler {
	return &DocumentHandler{
		cfg:         cfg,
		documents:   documents,
		asynqClient: asynqClient,
		tasks:       tasks,
		progress:    progress,
		vectorizer:  vectorizer,
	}
}

func (h *DocumentHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/documents", h.Upload)
	rg.GET("/documents", h.List)
	rg.GET("/documents/:id/progress", h.Progress)
	rg.GET("/documents/:id/export", h.Export)
	rg.DELETE("/documents/:id", h.Delete)
}

// Upload accepts a multipart source file and either processes it in the
// background of this process (small files) or enqueues it for the
// worker. Re-uploading identical content under the same owner short
// circuits to the existing record.
func (h *DocumentHandler) Upload(c *gin.Context) {
	owner := middleware.GetOwner(c)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		utils.RespondWithBadRequest(c, "A file is required", gin.H{"field": "file"})
		return
	}
	if fileHeader.Size > h.cfg.MaxFileSize {
		utils.RespondWithBadRequest(c, "File exceeds the maximum allowed size", gin.H{
			"max_bytes": h.cfg.MaxFileSize,
			"size":      fileHeader.Size,
		})
		return
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	fileType, ok := allowedExtensions[ext]
	if !ok {
		utils.RespondWithBadRequest(c, "Unsupported file type", gin.H{
			"extension": ext,
			"supported": []string{".pdf", ".xlsx", ".xls"},
		})
		return
	}

	displayName := strings.TrimSpace(c.PostForm("filename"))
	if displayName == "" {
		displayName = filepath.Base(fileHeader.Filename)
	}

	storedPath, fileHash, err := h.storeUpload(fileHeader, ext)
	if err != nil {
		logger.Error("failed to store upload", "filename", displayName, "error", err)
		utils.RespondWithInternalError(c, "Failed to store uploaded file", nil)
		return
	}

	// The extension alone is spoofable; PDFs must carry the magic bytes.
	if ext == ".pdf" && !looksLikePDF(storedPath) {
		os.Remove(storedPath)
		utils.RespondWithBadRequest(c, "File content does not match the PDF format", gin.H{
			"extension": ext,
		})
		return
	}

	ctx := c.Request.Context()

	// Identical content under the same owner is already indexed.
	var existing models.Document
	err = h.documents.FindOne(ctx, bson.M{
		"owner":     owner,
		"file_hash": fileHash,
		"status":    models.StatusCompleted,
	}).Decode(&existing)
	if err == nil {
		os.Remove(storedPath)
		c.JSON(http.StatusOK, models.UploadResponse{
			ID:       existing.ID.Hex(),
			Filename: existing.Filename,
			Status:   existing.Status,
			Async:    false,
			Message:  "document already ingested",
		})
		return
	}

	async := fileHeader.Size > h.cfg.SyncProcessingLimit
	if v := c.PostForm("async"); v != "" {
		async, _ = strconv.ParseBool(v)
	}

	doc := models.Document{
		Owner:        owner,
		Filename:     displayName,
		OriginalName: fileHeader.Filename,
		FilePath:     storedPath,
		FileHash:     fileHash,
		FileType:     fileType,
		Status:       models.StatusPending,
		UploadedAt:   time.Now(),
	}
	res, err := h.documents.InsertOne(ctx, doc)
	if err != nil {
		os.Remove(storedPath)
		logger.Error("failed to insert document record", "filename", displayName, "error", err)
		utils.RespondWithInternalError(c, "Failed to register document", nil)
		return
	}
	docID := res.InsertedID.(primitive.ObjectID)

	payload := queue.VectorizePayload{
		DocumentID: docID.Hex(),
		Owner:      owner,
		FilePath:   storedPath,
		Filename:   displayName,
	}
	applyIngestForm(c, h.cfg, &payload)

	if async {
		task, err := queue.NewVectorizeTask(payload)
		if err == nil {
			_, err = h.asynqClient.Enqueue(task)
		}
		if err != nil {
			logger.Error("failed to enqueue ingestion", "document_id", docID.Hex(), "error", err)
			utils.RespondWithInternalError(c, "Failed to schedule ingestion", nil)
			return
		}
	} else {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
			defer cancel()
			if err := h.tasks.Run(ctx, payload); err != nil {
				logger.Error("foreground ingestion failed",
					"document_id", payload.DocumentID, "error", err)
			}
		}()
	}

	c.JSON(http.StatusAccepted, models.UploadResponse{
		ID:       docID.Hex(),
		Filename: displayName,
		Status:   models.StatusPending,
		Async:    async,
		Message:  "document accepted for processing",
	})
}

// Progress returns the live snapshot for a document while it processes,
// falling back to the registry record once the snapshot expires.
func (h *DocumentHandler) Progress(c *gin.Context) {
	owner := middleware.GetOwner(c)
	doc, ok := h.findOwnedDocument(c, owner)
	if !ok {
		return
	}

	snap, err := h.progress.Load(c.Request.Context(), doc.ID.Hex())
	if err == nil {
		c.JSON(http.StatusOK, gin.H{
			"id":       doc.ID.Hex(),
			"filename": doc.Filename,
			"status":   doc.Status,
			"progress": snap,
		})
		return
	}
	if err != services.ErrProgressNotFound {
		logger.Warn("failed to load progress snapshot", "document_id", doc.ID.Hex(), "error", err)
	}

	c.JSON(http.StatusOK, gin.H{
		"id":          doc.ID.Hex(),
		"filename":    doc.Filename,
		"status":      doc.Status,
		"chunk_count": doc.ChunkCount,
		"error":       doc.ErrorMessage,
	})
}

// List returns the owner's documents, newest first.
func (h *DocumentHandler) List(c *gin.Context) {
	owner := middleware.GetOwner(c)

	opts := options.Find().SetSort(bson.D{{Key: "uploaded_at", Value: -1}})
	cursor, err := h.documents.Find(c.Request.Context(), bson.M{"owner": owner}, opts)
	if err != nil {
		logger.Error("failed to list documents", "owner", owner, "error", err)
		utils.RespondWithInternalError(c, "Failed to list documents", nil)
		return
	}
	defer cursor.Close(c.Request.Context())

	docs := []models.Document{}
	if err := cursor.All(c.Request.Context(), &docs); err != nil {
		logger.Error("failed to decode documents", "owner", owner, "error", err)
		utils.RespondWithInternalError(c, "Failed to list documents", nil)
		return
	}

	c.JSON(http.StatusOK, gin.H{"documents": docs, "count": len(docs)})
}

// Export returns the archived parsed text of a completed document.
func (h *DocumentHandler) Export(c *gin.Context) {
	owner := middleware.GetOwner(c)
	doc, ok := h.findOwnedDocument(c, owner)
	if !ok {
		return
	}
	if len(doc.ArchivedText) == 0 {
		utils.RespondWithNotFound(c, "No archived text for this document")
		return
	}

	text, err := utils.DecompressText(doc.ArchivedText, utils.CompressionAlgorithm(doc.ArchiveAlgorithm))
	if err != nil {
		logger.Error("failed to decompress archived text", "document_id", doc.ID.Hex(), "error", err)
		utils.RespondWithInternalError(c, "Failed to decode archived text", nil)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Filename+".txt"))
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(text))
}

// Delete removes the document's vectors, its registry record and any
// remaining source file.
func (h *DocumentHandler) Delete(c *gin.Context) {
	owner := middleware.GetOwner(c)
	doc, ok := h.findOwnedDocument(c, owner)
	if !ok {
		return
	}

	removed, err := h.vectorizer.Delete(c.Request.Context(), doc.Filename, owner)
	if err != nil {
		logger.Error("failed to delete document vectors", "document_id", doc.ID.Hex(), "error", err)
		utils.RespondWithInternalError(c, "Failed to delete document vectors", nil)
		return
	}

	if _, err := h.documents.DeleteOne(c.Request.Context(), bson.M{"_id": doc.ID}); err != nil {
		logger.Error("failed to delete document record", "document_id", doc.ID.Hex(), "error", err)
		utils.RespondWithInternalError(c, "Failed to delete document record", nil)
		return
	}

	if doc.FilePath != "" {
		if err := os.Remove(doc.FilePath); err != nil && !os.IsNotExist(err) {
			logger.Warn("failed to remove source file", "path", doc.FilePath, "error", err)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"id":              doc.ID.Hex(),
		"filename":        doc.Filename,
		"removed_vectors": removed,
	})
}

// storeUpload writes the upload under a random name in the storage dir
// and returns its path and content hash.
func (h *DocumentHandler) storeUpload(fileHeader *multipart.FileHeader, ext string) (string, string, error) {
	if err := os.MkdirAll(h.cfg.FileStorageDir, 0o755); err != nil {
		return "", "", fmt.Errorf("create storage dir: %w", err)
	}

	src, err := fileHeader.Open()
	if err != nil {
		return "", "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	path := filepath.Join(h.cfg.FileStorageDir, uuid.NewString()+ext)
	dst, err := os.Create(path)
	if err != nil {
		return "", "", fmt.Errorf("create stored file: %w", err)
	}
	defer dst.Close()

	hasher := sha256.New()
	if _, err := io.Copy(io.MultiWriter(dst, hasher), src); err != nil {
		os.Remove(path)
		return "", "", fmt.Errorf("write stored file: %w", err)
	}

	return path, hex.EncodeToString(hasher.Sum(nil)), nil
}

func (h *DocumentHandler) findOwnedDocument(c *gin.Context, owner string) (*models.Document, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.RespondWithBadRequest(c, "Invalid document id", nil)
		return nil, false
	}

	var doc models.Document
	err = h.documents.FindOne(c.Request.Context(), bson.M{"_id": id, "owner": owner}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		utils.RespondWithNotFound(c, "Document not found")
		return nil, false
	}
	if err != nil {
		logger.Error("failed to load document record", "document_id", id.Hex(), "error", err)
		utils.RespondWithInternalError(c, "Failed to load document", nil)
		return nil, false
	}
	return &doc, true
}

// looksLikePDF reports whether the stored file starts with the PDF
// header bytes.
func looksLikePDF(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	header := make([]byte, 5)
	if _, err := io.ReadFull(f, header); err != nil {
		return false
	}
	return string(header) == "%PDF-"
}

// applyIngestForm fills the tunable ingestion fields from the upload
// form. Summarization stays off unless explicitly requested, since it
// costs one generation call per chunk.
func applyIngestForm(c *gin.Context, cfg *config.Config, payload *queue.VectorizePayload) {
	payload.EnableSummary = parseBoolDefault(c.PostForm("enable_summary"), false)
	payload.MinChineseChars = parseIntDefault(c.PostForm("min_chinese_chars"), cfg.MinChineseChars)
	payload.SummaryColumns = splitCSV(c.PostForm("summary_columns"))
}

func parseBoolDefault(s string, def bool) bool {
	if s == "" {
		return def
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return def
	}
	return v
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

func splitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
