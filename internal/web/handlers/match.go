package handlers

import (
	"bytes"
	"context"
	"errors"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"mime"
	"net/http"

	"github.com/google/uuid"
	_ "golang.org/x/image/webp"

	"github.com/kozaktomas/lookalike/internal/facematch"
	"github.com/kozaktomas/lookalike/internal/match"
	"github.com/kozaktomas/lookalike/internal/resolver"
)

// MaxPhotoSize is the largest accepted upload.
const MaxPhotoSize = 10 << 20

// multipart framing on top of the photo itself
const multipartOverhead = 1 << 20

const errNoFace = "no face detected in your photo"

var (
	errPhotoMissing  = errors.New("photo is required")
	errPhotoTooLarge = errors.New("photo exceeds 10MB")
	errPhotoInvalid  = errors.New("photo is not a supported image (jpeg, png, gif, webp)")
)

// MatchResolver resolves a photo into a footballer match.
type MatchResolver interface {
	ResolveDetailed(ctx context.Context, photo []byte) (*match.Record, *resolver.Outcome, error)
}

// MatchHandler handles lookalike requests.
type MatchHandler struct {
	resolver MatchResolver
	logger   *slog.Logger
}

func NewMatchHandler(r MatchResolver, logger *slog.Logger) *MatchHandler {
	return &MatchHandler{
		resolver: r,
		logger:   logger.With(slog.String("component", "match_handler")),
	}
}

type matchResponse struct {
	ID      string            `json:"id"`
	Match   *match.Record     `json:"match"`
	Outcome *resolver.Outcome `json:"outcome"`
}

// Match accepts a photo as multipart field "photo" or as the raw request body.
func (h *MatchHandler) Match(w http.ResponseWriter, r *http.Request) {
	photo, err := readPhoto(w, r)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errPhotoTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		respondError(w, status, err.Error())
		return
	}

	id := uuid.NewString()
	rec, outcome, err := h.resolver.ResolveDetailed(r.Context(), photo)
	if errors.Is(err, facematch.ErrNoFaceDetected) {
		h.logger.Info("no face in uploaded photo", slog.String("id", id))
		respondJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: errNoFace, Retryable: true})
		return
	}
	if err != nil {
		h.logger.Error("resolve failed", slog.String("id", id), slog.String("error", sanitizeForLog(err.Error())))
		respondError(w, http.StatusInternalServerError, "failed to resolve match")
		return
	}

	respondJSON(w, http.StatusOK, matchResponse{ID: id, Match: rec, Outcome: outcome})
}

func readPhoto(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxPhotoSize+multipartOverhead)

	var src io.Reader = r.Body
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(MaxPhotoSize); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return nil, errPhotoTooLarge
			}
			return nil, errPhotoMissing
		}
		file, _, err := r.FormFile("photo")
		if err != nil {
			return nil, errPhotoMissing
		}
		defer file.Close()
		src = file
	}

	data, err := io.ReadAll(io.LimitReader(src, MaxPhotoSize+1))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, errPhotoTooLarge
		}
		return nil, errPhotoMissing
	}
	if len(data) == 0 {
		return nil, errPhotoMissing
	}
	if len(data) > MaxPhotoSize {
		return nil, errPhotoTooLarge
	}
	if _, _, err := image.DecodeConfig(bytes.NewReader(data)); err != nil {
		return nil, errPhotoInvalid
	}
	return data, nil
}
