package facematch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/kozaktomas/lookalike/internal/embedding"
)

// ErrNoFaceDetected is returned when the user's own photo contains no face.
var ErrNoFaceDetected = errors.New("no face detected")

const (
	defaultPortraitTimeout = 10 * time.Second
	maxPortraitBytes       = 10 << 20
	portraitUserAgent      = "lookalike/1.0 (footballer lookalike portrait fetch)"
)

// Extractor detects faces and returns their descriptors.
type Extractor interface {
	ComputeFaceEmbeddings(ctx context.Context, imageData []byte) (*embedding.FaceResponse, error)
}

// ComparatorOptions tunes a Comparator. Zero values select defaults.
type ComparatorOptions struct {
	ZeroDistance float64
	HTTPClient   *http.Client
	Logger       *slog.Logger
}

// Comparator scores how closely the user's face matches a reference portrait.
type Comparator struct {
	loader    *ModelLoader
	extractor Extractor
	http      *http.Client
	zeroAt    float64
	logger    *slog.Logger
}

func NewComparator(loader *ModelLoader, extractor Extractor, opts ComparatorOptions) *Comparator {
	if opts.ZeroDistance <= 0 {
		opts.ZeroDistance = DefaultZeroDistance
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: defaultPortraitTimeout}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Comparator{
		loader:    loader,
		extractor: extractor,
		http:      opts.HTTPClient,
		zeroAt:    opts.ZeroDistance,
		logger:    opts.Logger.With(slog.String("component", "comparator")),
	}
}

// Compare returns a 0..100 similarity between the face in photo and the face
// in the portrait at portraitURL.
//
// ErrNoFaceDetected is the only error: the user's photo has no face. Every
// other problem (models unavailable, portrait unreachable, no face in the
// portrait) reports ok=false so the caller keeps its existing score.
func (c *Comparator) Compare(ctx context.Context, photo []byte, portraitURL string) (int, bool, error) {
	if err := c.loader.Ensure(ctx); err != nil {
		c.logger.Warn("skipping face comparison", slog.String("error", err.Error()))
		return 0, false, nil
	}

	userFaces, err := c.extractor.ComputeFaceEmbeddings(ctx, photo)
	if err != nil {
		c.logger.Warn("face extraction failed for user photo", slog.String("error", err.Error()))
		return 0, false, nil
	}
	user := primaryFace(userFaces.Faces)
	if user == nil {
		return 0, false, ErrNoFaceDetected
	}

	portrait, err := c.download(ctx, portraitURL)
	if err != nil {
		c.logger.Warn("portrait download failed", slog.String("url", portraitURL), slog.String("error", err.Error()))
		return 0, false, nil
	}

	refFaces, err := c.extractor.ComputeFaceEmbeddings(ctx, portrait)
	if err != nil {
		c.logger.Warn("face extraction failed for portrait", slog.String("url", portraitURL), slog.String("error", err.Error()))
		return 0, false, nil
	}
	ref := primaryFace(refFaces.Faces)
	if ref == nil {
		c.logger.Debug("no face in portrait", slog.String("url", portraitURL))
		return 0, false, nil
	}

	d, err := EuclideanDistance(user, ref)
	if err != nil {
		c.logger.Warn("descriptors not comparable",
			slog.Int("user_dim", len(user)), slog.Int("portrait_dim", len(ref)))
		return 0, false, nil
	}

	score := ScoreFromDistance(d, c.zeroAt)
	c.logger.Debug("faces compared", slog.Float64("distance", d), slog.Int("score", score))
	return score, true, nil
}

func (c *Comparator) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", portraitUserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPortraitBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	if len(data) > maxPortraitBytes {
		return nil, fmt.Errorf("portrait exceeds %d bytes", maxPortraitBytes)
	}
	if len(data) == 0 {
		return nil, errors.New("empty portrait")
	}
	return data, nil
}
