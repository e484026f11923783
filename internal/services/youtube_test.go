package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/desertthunder/sentisounds/internal/shared"
	"google.golang.org/api/option"
)

func newTestYouTube(t *testing.T, handler http.HandlerFunc) *YouTubeService {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	svc, err := NewYouTubeService(context.Background(), shared.YouTubeConfig{}, time.Second, nil,
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	if err != nil {
		t.Fatalf("failed to create youtube service: %v", err)
	}
	return svc
}

func TestYouTubeService(t *testing.T) {
	ctx := context.Background()

	t.Run("Missing API Key", func(t *testing.T) {
		_, err := NewYouTubeService(ctx, shared.YouTubeConfig{}, time.Second, nil)
		if !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})

	t.Run("SearchVideo", func(t *testing.T) {
		var query map[string]string
		svc := newTestYouTube(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/youtube/v3/search" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			q := r.URL.Query()
			query = map[string]string{"q": q.Get("q"), "type": q.Get("type"), "maxResults": q.Get("maxResults")}
			json.NewEncoder(w).Encode(map[string]any{
				"items": []map[string]any{{"id": map[string]string{"kind": "youtube#video", "videoId": "dQw4w9WgXcQ"}}},
			})
		})

		got, err := svc.SearchVideo(ctx, "Never Gonna Give You Up Rick Astley")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != "https://www.youtube.com/watch?v=dQw4w9WgXcQ" {
			t.Errorf("unexpected url %q", got)
		}
		if query["q"] != "Never Gonna Give You Up Rick Astley" || query["type"] != "video" || query["maxResults"] != "1" {
			t.Errorf("unexpected query %v", query)
		}
	})

	t.Run("No Results", func(t *testing.T) {
		svc := newTestYouTube(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"items": []}`))
		})

		got, err := svc.SearchVideo(ctx, "obscure b-side")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != "" {
			t.Errorf("expected empty url, got %q", got)
		}
	})

	t.Run("Empty Query", func(t *testing.T) {
		svc := newTestYouTube(t, func(w http.ResponseWriter, r *http.Request) {
			t.Error("provider should not be called")
		})
		if _, err := svc.SearchVideo(ctx, "   "); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("Quota Exceeded", func(t *testing.T) {
		svc := newTestYouTube(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(`{"error":{"code":403,"message":"quota","errors":[{"reason":"quotaExceeded","message":"quota"}]}}`))
		})
		if _, err := svc.SearchVideo(ctx, "song"); !errors.Is(err, shared.ErrRateLimited) {
			t.Errorf("expected ErrRateLimited, got %v", err)
		}
	})

	t.Run("Server Error", func(t *testing.T) {
		svc := newTestYouTube(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})
		if _, err := svc.SearchVideo(ctx, "song"); !errors.Is(err, shared.ErrUpstreamUnavailable) {
			t.Errorf("expected ErrUpstreamUnavailable, got %v", err)
		}
	})
}
