package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Document processing status values
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Document is the registry record for an uploaded file. The vector store
// holds the chunks; this record tracks upload metadata, processing status
// and an optional compressed archive of the parsed text.
type Document struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Owner            string             `bson:"owner" json:"owner"`
	Filename         string             `bson:"filename" json:"filename"` // display name used in the vector store
	OriginalName     string             `bson:"original_name" json:"original_name"`
	FilePath         string             `bson:"file_path" json:"-"`
	FileHash         string             `bson:"file_hash" json:"file_hash"` // For deduplication
	FileType         string             `bson:"file_type" json:"file_type"` // pdf, excel
	Status           string             `bson:"status" json:"status"`
	Progress         int                `bson:"progress" json:"progress"`
	ChunkCount       int                `bson:"chunk_count" json:"chunk_count"`
	ErrorMessage     string             `bson:"error_message,omitempty" json:"error_message,omitempty"`
	ArchivedText     []byte             `bson:"archived_text,omitempty" json:"-"` // compressed parsed text
	ArchiveAlgorithm string             `bson:"archive_algorithm,omitempty" json:"-"`
	UploadedAt       time.Time          `bson:"uploaded_at" json:"uploaded_at"`
	ProcessedAt      *time.Time         `bson:"processed_at,omitempty" json:"processed_at,omitempty"`
}

// UploadResponse is returned after a successful upload
type UploadResponse struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Status   string `json:"status"`
	Async    bool   `json:"async"`
	Message  string `json:"message"`
}
