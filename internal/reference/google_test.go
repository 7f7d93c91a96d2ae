package reference

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func newGoogleServer(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		q := r.URL.Query()
		w.Header().Set("Content-Type", "application/json")

		if q.Get("key") != "key" {
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(`{"error":{"code":403,"message":"API key not valid"}}`))
			return
		}
		if q.Get("searchType") != "image" || q.Get("num") != "1" || q.Get("cx") != "cx" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if strings.Contains(q.Get("q"), "Haaland") {
			w.Write([]byte(`{"kind":"customsearch#search","items":[{"title":"Haaland","link":"https://images.example/haaland.jpg","mime":"image/jpeg"}]}`))
			return
		}
		w.Write([]byte(`{"kind":"customsearch#search","searchInformation":{"totalResults":"0"}}`))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestGoogleImages_SearchImage(t *testing.T) {
	srv, _ := newGoogleServer(t)
	g := NewGoogleImagesWithEndpoint(srv.URL, "key", "cx", time.Second, discardLogger())

	got, err := g.SearchImage(context.Background(), "Erling Haaland football portrait professional")
	if err != nil {
		t.Fatalf("SearchImage: %v", err)
	}
	if got != "https://images.example/haaland.jpg" {
		t.Errorf("unexpected link %q", got)
	}

	if _, err := g.SearchImage(context.Background(), "Nobody"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestGoogleImages_APIError(t *testing.T) {
	srv, _ := newGoogleServer(t)
	g := NewGoogleImagesWithEndpoint(srv.URL, "wrong", "cx", time.Second, discardLogger())

	_, err := g.SearchImage(context.Background(), "Erling Haaland")
	var ue *UnavailableError
	if !errors.As(err, &ue) {
		t.Fatalf("expected *UnavailableError, got %v", err)
	}
	if !strings.Contains(err.Error(), "API key not valid") {
		t.Errorf("expected API message in error, got %v", err)
	}
}

func TestGoogleImages_TransportErrorHidesKey(t *testing.T) {
	const secret = "AIzaSecretKey123"
	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := srv.URL
	srv.Close()

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	google := NewGoogleImagesWithEndpoint(endpoint, secret, "cx", time.Second, logger)

	_, err := google.SearchImage(context.Background(), "Erling Haaland")
	var ue *UnavailableError
	if !errors.As(err, &ue) {
		t.Fatalf("expected *UnavailableError, got %v", err)
	}
	if strings.Contains(err.Error(), secret) {
		t.Errorf("error leaks API key: %v", err)
	}

	f := NewPortraitFinder([]PortraitSource{
		NewGooglePortraits(google, &fakeGuard{allow: true}),
	}, nil, time.Hour, logger)
	if _, ok := f.FindPortrait(context.Background(), "Erling Haaland"); ok {
		t.Fatal("expected no portrait from an unreachable endpoint")
	}
	if !strings.Contains(logs.String(), "portrait lookup failed") {
		t.Fatalf("expected the failure to be logged, got %q", logs.String())
	}
	if strings.Contains(logs.String(), secret) {
		t.Errorf("log output leaks API key: %q", logs.String())
	}
}
