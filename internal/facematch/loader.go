package facematch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ModelSource loads the face detection and descriptor models.
type ModelSource interface {
	LoadModel(ctx context.Context) error
}

// ModelLoader loads the face models once per process. Concurrent first
// callers block on the single in-flight load. A failed load is retried by
// the next caller.
type ModelLoader struct {
	source ModelSource
	logger *slog.Logger

	mu     sync.Mutex
	loaded bool
	loads  int
}

// NewModelLoader creates a loader for source.
func NewModelLoader(source ModelSource, logger *slog.Logger) *ModelLoader {
	if logger == nil {
		logger = slog.Default()
	}
	return &ModelLoader{
		source: source,
		logger: logger.With(slog.String("component", "model_loader")),
	}
}

// Ensure loads the models unless a previous call already succeeded.
func (l *ModelLoader) Ensure(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.loaded {
		return nil
	}

	start := time.Now()
	l.loads++
	if err := l.source.LoadModel(ctx); err != nil {
		return fmt.Errorf("loading face models: %w", err)
	}
	l.loaded = true

	l.logger.Info("face models loaded", slog.Duration("took", time.Since(start)))
	return nil
}

// Loaded reports whether the models are ready.
func (l *ModelLoader) Loaded() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loaded
}

// LoadCount returns how many load attempts reached the model source.
func (l *ModelLoader) LoadCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loads
}
