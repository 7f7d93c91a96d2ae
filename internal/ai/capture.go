package ai

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Capture writes raw oracle responses to a directory so they can be replayed in tests.
// A nil *Capture is valid and discards everything.
type Capture struct {
	dir string
}

type capturedResponse struct {
	Provider   string    `json:"provider"`
	CapturedAt time.Time `json:"captured_at"`
	Text       string    `json:"text"`
}

// NewCapture returns a Capture writing to dir, or nil when dir is empty.
func NewCapture(dir string) (*Capture, error) {
	if dir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating capture dir: %w", err)
	}
	return &Capture{dir: dir}, nil
}

// Save stores one raw response and returns the written path.
func (c *Capture) Save(provider, text string) (string, error) {
	if c == nil {
		return "", nil
	}
	data, err := json.MarshalIndent(capturedResponse{
		Provider:   provider,
		CapturedAt: time.Now().UTC(),
		Text:       text,
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding capture: %w", err)
	}
	path := filepath.Join(c.dir, uuid.New().String()+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing capture: %w", err)
	}
	return path, nil
}
