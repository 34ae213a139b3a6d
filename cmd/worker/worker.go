package main

import (
	"context"
	"log"

	"document-vector-platform/internal/ai"
	"document-vector-platform/internal/config"
	"document-vector-platform/internal/logger"
	"document-vector-platform/internal/queue"
	"document-vector-platform/internal/vectorstore"
	"document-vector-platform/services"

	"github.com/hibiken/asynq"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	// Connect to MongoDB
	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer mongoClient.Disconnect(context.Background())
	documents := mongoClient.Database(cfg.DBName).Collection("documents")

	// Connect to Redis for progress snapshots
	rdb, err := config.NewRedisClient(cfg)
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer rdb.Close()

	// Gemini client
	aiClient, err := ai.NewClient(context.Background(), cfg)
	if err != nil {
		log.Fatal("Failed to initialize Gemini client:", err)
	}
	defer aiClient.Close()

	// Vector store and pipeline
	store := vectorstore.NewClient(vectorstore.Config{
		URL:        cfg.QdrantURL,
		APIKey:     cfg.QdrantAPIKey,
		Collection: cfg.CollectionName,
		Dimension:  cfg.VectorDimensions,
	})
	vectorizer := services.NewDocumentVectorizer(store, aiClient, aiClient, cfg.UpsertBatchSize)
	progressStore := services.NewProgressStore(rdb)
	tasks := queue.NewTaskHandler(vectorizer, documents, progressStore)

	// Create Asynq server. Concurrency 1 keeps point id allocation
	// serialized across the whole deployment when a single worker runs.
	server := asynq.NewServer(
		config.AsynqRedisOpt(cfg),
		asynq.Config{
			Concurrency: 1,
			Queues: map[string]int{
				"ingest": 1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("Task failed", "type", task.Type(), "error", err)
			}),
		},
	)

	// Create mux and register handlers
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TaskVectorizeDocument, tasks.HandleVectorize)

	logger.Info("Starting ingestion worker", "queue", "ingest", "concurrency", 1)

	// Start the server
	if err := server.Run(mux); err != nil {
		log.Fatal("Failed to start worker:", err)
	}
}
