package services

import (
	"os"
	"path/filepath"
	"time"

	"document-vector-platform/internal/logger"
)

// TempFileSweeper periodically removes uploaded source files that were
// left behind by crashed or abandoned ingestion runs.
type TempFileSweeper struct {
	dir      string
	maxAge   time.Duration
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
}

func NewTempFileSweeper(dir string, maxAge time.Duration) *TempFileSweeper {
	return &TempFileSweeper{
		dir:      dir,
		maxAge:   maxAge,
		interval: time.Hour,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the sweep loop in its own goroutine. The first sweep
// runs immediately.
func (s *TempFileSweeper) Start() {
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.sweep()
		for {
			select {
			case <-ticker.C:
				s.sweep()
			case <-s.stop:
				return
			}
		}
	}()
	logger.Info("temp file sweeper started", "dir", s.dir, "max_age", s.maxAge.String())
}

// Stop ends the loop and waits for the in-flight sweep to finish.
func (s *TempFileSweeper) Stop() {
	close(s.stop)
	<-s.done
}

func (s *TempFileSweeper) sweep() {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("temp file sweep failed to list dir", "dir", s.dir, "error", err.Error())
		}
		return
	}

	cutoff := time.Now().Add(-s.maxAge)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		if err := os.Remove(path); err != nil {
			logger.Warn("failed to remove stale temp file", "path", path, "error", err.Error())
			continue
		}
		removed++
	}
	if removed > 0 {
		logger.Info("removed stale temp files", "dir", s.dir, "count", removed)
	}
}
