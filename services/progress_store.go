package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"document-vector-platform/internal/logger"

	"github.com/redis/go-redis/v9"
)

// ErrProgressNotFound is returned when no snapshot exists for a job id.
var ErrProgressNotFound = errors.New("progress not found")

const progressKeyPrefix = "ingest:progress:"

// ProgressStore mirrors tracker snapshots into Redis so a different
// process (the API serving a polling client) can observe an ingestion
// running in this one.
type ProgressStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewProgressStore(rdb *redis.Client) *ProgressStore {
	return &ProgressStore{rdb: rdb, ttl: time.Hour}
}

// Save writes one snapshot under the job id with a TTL.
func (s *ProgressStore) Save(ctx context.Context, jobID string, snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal progress: %w", err)
	}
	return s.rdb.Set(ctx, progressKeyPrefix+jobID, data, s.ttl).Err()
}

// Load reads the latest snapshot for a job id.
func (s *ProgressStore) Load(ctx context.Context, jobID string) (Snapshot, error) {
	data, err := s.rdb.Get(ctx, progressKeyPrefix+jobID).Bytes()
	if err == redis.Nil {
		return Snapshot{}, ErrProgressNotFound
	}
	if err != nil {
		return Snapshot{}, err
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("unmarshal progress: %w", err)
	}
	return snap, nil
}

// StartMirror samples the tracker on an interval and writes each snapshot
// to Redis. The returned stop function writes one final snapshot and must
// be called when the run ends, successfully or not.
func (s *ProgressStore) StartMirror(jobID string, tracker *ProgressTracker, interval time.Duration) func() {
	done := make(chan struct{})
	finished := make(chan struct{})

	go func() {
		defer close(finished)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.save(jobID, tracker.Snapshot())
			case <-done:
				return
			}
		}
	}()

	return func() {
		close(done)
		<-finished
		s.save(jobID, tracker.Snapshot())
	}
}

func (s *ProgressStore) save(jobID string, snap Snapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Save(ctx, jobID, snap); err != nil {
		logger.Warn("Failed to mirror progress snapshot", "job_id", jobID, "error", err)
	}
}
