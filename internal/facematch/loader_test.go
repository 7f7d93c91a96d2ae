package facematch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeModelSource struct {
	calls atomic.Int32
	delay time.Duration
	err   error
}

func (f *fakeModelSource) LoadModel(ctx context.Context) error {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.err
}

func TestModelLoader_ConcurrentFirstUseLoadsOnce(t *testing.T) {
	src := &fakeModelSource{delay: 20 * time.Millisecond}
	loader := NewModelLoader(src, discardLogger())

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- loader.Ensure(context.Background())
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("Ensure failed: %v", err)
		}
	}
	if got := loader.LoadCount(); got != 1 {
		t.Errorf("expected exactly 1 load, got %d", got)
	}
	if got := src.calls.Load(); got != 1 {
		t.Errorf("expected source to be called once, got %d", got)
	}
	if !loader.Loaded() {
		t.Error("expected loader to report loaded")
	}
}

func TestModelLoader_SequentialCallsAreMemoized(t *testing.T) {
	src := &fakeModelSource{}
	loader := NewModelLoader(src, discardLogger())

	for range 3 {
		if err := loader.Ensure(context.Background()); err != nil {
			t.Fatalf("Ensure failed: %v", err)
		}
	}
	if got := loader.LoadCount(); got != 1 {
		t.Errorf("expected 1 load, got %d", got)
	}
}

func TestModelLoader_FailureIsRetried(t *testing.T) {
	boom := errors.New("cdn unreachable")
	src := &fakeModelSource{err: boom}
	loader := NewModelLoader(src, discardLogger())

	err := loader.Ensure(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped load error, got %v", err)
	}
	if loader.Loaded() {
		t.Fatal("failed load must not be memoized")
	}

	src.err = nil
	if err := loader.Ensure(context.Background()); err != nil {
		t.Fatalf("second Ensure failed: %v", err)
	}
	if got := loader.LoadCount(); got != 2 {
		t.Errorf("expected 2 load attempts, got %d", got)
	}
}
