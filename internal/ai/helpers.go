package ai

import (
	_ "embed"
	"log/slog"

	"github.com/kozaktomas/lookalike/internal/embedding"
)

//go:embed prompts/lookalike.txt
var lookalikePrompt string

// buildLookalikePrompt returns the embedded classification instruction.
// This is shared across all AI providers.
func buildLookalikePrompt() string {
	return lookalikePrompt
}

// preparePhoto downsizes the photo to save tokens. Images the decoder does not
// understand are sent unchanged so the oracle can still try.
func preparePhoto(photo []byte, maxSize int, logger *slog.Logger) ([]byte, string) {
	resized, err := ResizeImage(photo, maxSize)
	if err != nil {
		logger.Debug("sending photo without resize", slog.String("error", err.Error()))
		return photo, embedding.DetectMIMEType(photo)
	}
	return resized, "image/jpeg"
}
