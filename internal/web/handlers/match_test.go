package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/lookalike/internal/facematch"
	"github.com/kozaktomas/lookalike/internal/match"
	"github.com/kozaktomas/lookalike/internal/resolver"
)

type fakeResolver struct {
	rec     *match.Record
	outcome *resolver.Outcome
	err     error
	got     []byte
}

func (f *fakeResolver) ResolveDetailed(_ context.Context, photo []byte) (*match.Record, *resolver.Outcome, error) {
	f.got = photo
	return f.rec, f.outcome, f.err
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := range 8 {
		img.Set(x, x, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode failed: %v", err)
	}
	return buf.Bytes()
}

func multipartRequest(t *testing.T, field string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile(field, "me.png")
	if err != nil {
		t.Fatalf("CreateFormFile failed: %v", err)
	}
	fw.Write(data)
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/match", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func successResolver() *fakeResolver {
	return &fakeResolver{
		rec: &match.Record{
			PlayerName:      "Kevin De Bruyne",
			SimilarityScore: 88,
			Club:            "Manchester City",
			Position:        "Midfielder",
			Reasoning:       "Embedding similarity: 88%. Ginger hair.",
			PlayerImageURLs: []string{"https://upload.wikimedia.org/kdb.jpg"},
			Stats:           match.Stats{Appearances: "100", Goals: "30", Assists: "N/A"},
		},
		outcome: &resolver.Outcome{Source: resolver.SourceOracle, PortraitFound: true, ScoreOverridden: true},
	}
}

func TestMatch_Multipart(t *testing.T) {
	fake := successResolver()
	h := NewMatchHandler(fake, discardLogger())
	photo := pngBytes(t)

	recorder := httptest.NewRecorder()
	h.Match(recorder, multipartRequest(t, "photo", photo))

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
	if !bytes.Equal(fake.got, photo) {
		t.Error("resolver did not receive the uploaded bytes")
	}

	var resp struct {
		ID      string           `json:"id"`
		Match   match.Record     `json:"match"`
		Outcome resolver.Outcome `json:"outcome"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.ID == "" {
		t.Error("expected a response id")
	}
	if resp.Match.PlayerName != "Kevin De Bruyne" || resp.Match.SimilarityScore != 88 {
		t.Errorf("unexpected match %+v", resp.Match)
	}
	if !resp.Outcome.ScoreOverridden {
		t.Errorf("unexpected outcome %+v", resp.Outcome)
	}
}

func TestMatch_RawBody(t *testing.T) {
	fake := successResolver()
	h := NewMatchHandler(fake, discardLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/match", bytes.NewReader(pngBytes(t)))
	req.Header.Set("Content-Type", "image/png")
	recorder := httptest.NewRecorder()
	h.Match(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
}

func TestMatch_BadUploads(t *testing.T) {
	tests := []struct {
		name   string
		req    func(t *testing.T) *http.Request
		status int
	}{
		{
			name: "empty body",
			req: func(t *testing.T) *http.Request {
				return httptest.NewRequest(http.MethodPost, "/api/v1/match", nil)
			},
			status: http.StatusBadRequest,
		},
		{
			name: "wrong field",
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, "image", pngBytes(t))
			},
			status: http.StatusBadRequest,
		},
		{
			name: "not an image",
			req: func(t *testing.T) *http.Request {
				return httptest.NewRequest(http.MethodPost, "/api/v1/match", bytes.NewReader([]byte("hello there")))
			},
			status: http.StatusBadRequest,
		},
		{
			name: "too large",
			req: func(t *testing.T) *http.Request {
				return httptest.NewRequest(http.MethodPost, "/api/v1/match", bytes.NewReader(make([]byte, MaxPhotoSize+10)))
			},
			status: http.StatusRequestEntityTooLarge,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fake := successResolver()
			h := NewMatchHandler(fake, discardLogger())

			recorder := httptest.NewRecorder()
			h.Match(recorder, tc.req(t))

			if recorder.Code != tc.status {
				t.Errorf("expected %d, got %d: %s", tc.status, recorder.Code, recorder.Body.String())
			}
			if fake.got != nil {
				t.Error("resolver should not be called for a rejected upload")
			}
		})
	}
}

func TestMatch_NoFaceDetected(t *testing.T) {
	fake := &fakeResolver{err: facematch.ErrNoFaceDetected}
	h := NewMatchHandler(fake, discardLogger())

	recorder := httptest.NewRecorder()
	h.Match(recorder, multipartRequest(t, "photo", pngBytes(t)))

	if recorder.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", recorder.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp["error"] != errNoFace || resp["retryable"] != true {
		t.Errorf("unexpected body %v", resp)
	}
}

func TestMatch_UnexpectedError(t *testing.T) {
	fake := &fakeResolver{err: errors.New("boom\ninjected")}
	h := NewMatchHandler(fake, discardLogger())

	recorder := httptest.NewRecorder()
	h.Match(recorder, multipartRequest(t, "photo", pngBytes(t)))

	if recorder.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", recorder.Code)
	}
}
