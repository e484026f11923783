package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/sentisounds/internal/models"
	"github.com/desertthunder/sentisounds/internal/shared"
	"github.com/sashabaranov/go-openai"
)

func newOpenAITestServer(t *testing.T, status int, content string, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			calls.Add(1)
		}
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected authorization header %q", got)
		}

		var req openai.ChatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		if req.ResponseFormat == nil || req.ResponseFormat.Type != openai.ChatCompletionResponseFormatTypeJSONObject {
			t.Errorf("expected json_object response format, got %+v", req.ResponseFormat)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Role != "user" {
			t.Errorf("unexpected messages %+v", req.Messages)
		}

		w.WriteHeader(status)
		if status == http.StatusOK {
			json.NewEncoder(w).Encode(map[string]any{
				"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": content}}},
			})
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestOpenAI(t *testing.T, url string, timeout time.Duration) *OpenAIService {
	t.Helper()
	svc, err := NewOpenAIService(OpenAIOpts{
		Config:  shared.OpenAIConfig{APIKey: "test-key", BaseURL: url, SystemPrompt: "genres please"},
		Timeout: timeout,
	})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	return svc
}

func TestSanitizePrompt(t *testing.T) {
	tc := []struct {
		name    string
		prompt  string
		want    string
		wantErr bool
	}{
		{name: "valid", prompt: "  happy summer day  ", want: "happy summer day"},
		{name: "empty", prompt: "   ", wantErr: true},
		{name: "exactly five", prompt: "sunny", wantErr: true},
		{name: "six chars", prompt: "sunny!", want: "sunny!"},
		{name: "too long", prompt: strings.Repeat("a", 200), wantErr: true},
		{name: "just under limit", prompt: strings.Repeat("a", 199), want: strings.Repeat("a", 199)},
		{name: "banned caret", prompt: "happy ^ day", wantErr: true},
		{name: "banned pipe", prompt: "happy | day", wantErr: true},
		{name: "banned backslash", prompt: `happy \ day`, wantErr: true},
		{name: "banned semicolon", prompt: "happy; drop table", wantErr: true},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SanitizePrompt(tt.prompt, DefaultMaxPromptLength)
			if tt.wantErr {
				if !errors.Is(err, shared.ErrInvalidPrompt) {
					t.Errorf("expected ErrInvalidPrompt, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestOpenAIService(t *testing.T) {
	ctx := context.Background()

	t.Run("Missing API Key", func(t *testing.T) {
		if _, err := NewOpenAIService(OpenAIOpts{}); !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})

	t.Run("DeriveGenres", func(t *testing.T) {
		srv := newOpenAITestServer(t, http.StatusOK, `{"genres": ["Pop", "Indie Rock", "funk", "disco", "soul"]}`, nil)
		svc := newTestOpenAI(t, srv.URL, time.Second)

		genres, err := svc.DeriveGenres(ctx, "happy summer day")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := models.GenreSet{"pop", "indie rock", "funk", "disco", "soul"}
		if !slices.Equal(genres, want) {
			t.Errorf("expected %v, got %v", want, genres)
		}
	})

	t.Run("Invalid Prompt Skips Provider", func(t *testing.T) {
		var calls atomic.Int32
		srv := newOpenAITestServer(t, http.StatusOK, `{}`, &calls)
		svc := newTestOpenAI(t, srv.URL, time.Second)

		if _, err := svc.DeriveGenres(ctx, "hi"); !errors.Is(err, shared.ErrInvalidPrompt) {
			t.Errorf("expected ErrInvalidPrompt, got %v", err)
		}
		if calls.Load() != 0 {
			t.Errorf("expected no provider call, got %d", calls.Load())
		}
	})

	malformed := []struct {
		name    string
		content string
	}{
		{"four genres", `{"genres": ["a", "b", "c", "d"]}`},
		{"six genres", `{"genres": ["a", "b", "c", "d", "e", "f"]}`},
		{"wrong key", `{"styles": ["a", "b", "c", "d", "e"]}`},
		{"not json", `pop, rock, jazz, funk, soul`},
		{"not a list", `{"genres": "pop"}`},
		{"duplicates", `{"genres": ["pop", "Pop", "c", "d", "e"]}`},
		{"empty content", ``},
	}
	for _, tt := range malformed {
		t.Run("Malformed "+tt.name, func(t *testing.T) {
			srv := newOpenAITestServer(t, http.StatusOK, tt.content, nil)
			svc := newTestOpenAI(t, srv.URL, time.Second)

			if _, err := svc.DeriveGenres(ctx, "happy summer day"); !errors.Is(err, shared.ErrMalformedResponse) {
				t.Errorf("expected ErrMalformedResponse, got %v", err)
			}
		})
	}

	t.Run("Non Success Status", func(t *testing.T) {
		var calls atomic.Int32
		srv := newOpenAITestServer(t, http.StatusInternalServerError, "", &calls)
		svc := newTestOpenAI(t, srv.URL, time.Second)

		if _, err := svc.DeriveGenres(ctx, "happy summer day"); !errors.Is(err, shared.ErrUpstreamUnavailable) {
			t.Errorf("expected ErrUpstreamUnavailable, got %v", err)
		}
		if calls.Load() != 1 {
			t.Errorf("expected exactly one call without retry, got %d", calls.Load())
		}
	})

	t.Run("Timeout", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}))
		defer srv.Close()
		svc := newTestOpenAI(t, srv.URL, 50*time.Millisecond)

		if _, err := svc.DeriveGenres(ctx, "happy summer day"); !errors.Is(err, shared.ErrUpstreamUnavailable) {
			t.Errorf("expected ErrUpstreamUnavailable on timeout, got %v", err)
		}
	})

	t.Run("Default Instruction Template", func(t *testing.T) {
		system := make(chan string, 1)
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req openai.ChatCompletionRequest
			json.NewDecoder(r.Body).Decode(&req)
			if len(req.Messages) > 0 {
				system <- req.Messages[0].Content
			}
			if req.Model != openai.GPT3Dot5Turbo {
				t.Errorf("expected default model, got %q", req.Model)
			}
			json.NewEncoder(w).Encode(map[string]any{
				"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": `{"genres": ["a", "b", "c", "d", "e"]}`}}},
			})
		}))
		defer srv.Close()

		svc, err := NewOpenAIService(OpenAIOpts{
			Config: shared.OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL, SystemPrompt: "   "},
		})
		if err != nil {
			t.Fatalf("failed to create service: %v", err)
		}
		if _, err := svc.DeriveGenres(ctx, "happy summer day"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		got := <-system
		if got != DefaultSystemPrompt {
			t.Errorf("expected the default template, got %q", got)
		}
		if !strings.Contains(got, `"genres"`) || !strings.Contains(got, "exactly 5") {
			t.Errorf("template must name the genres key and the count, got %q", got)
		}
	})

	t.Run("API Error Body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error": {"message": "quota exceeded", "type": "insufficient_quota"}}`))
		}))
		defer srv.Close()
		svc := newTestOpenAI(t, srv.URL, time.Second)

		_, err := svc.DeriveGenres(ctx, "happy summer day")
		if !errors.Is(err, shared.ErrUpstreamUnavailable) {
			t.Errorf("expected ErrUpstreamUnavailable, got %v", err)
		}
		if err != nil && !strings.Contains(err.Error(), "quota exceeded") {
			t.Errorf("expected provider message in error, got %v", err)
		}
	})

	t.Run("Transport Error", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()
		svc := newTestOpenAI(t, url, time.Second)

		if _, err := svc.DeriveGenres(ctx, "happy summer day"); !errors.Is(err, shared.ErrUpstreamUnavailable) {
			t.Errorf("expected ErrUpstreamUnavailable, got %v", err)
		}
	})
}
