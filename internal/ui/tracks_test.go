package ui

import (
	"strings"
	"testing"

	"github.com/desertthunder/sentisounds/internal/models"
	"github.com/desertthunder/sentisounds/internal/tasks"
)

func TestRenderTracks(t *testing.T) {
	t.Run("renders one row per track", func(t *testing.T) {
		out := RenderTracks([]models.Track{
			{ID: "t1", Title: "Walking on Sunshine", Artists: []models.Artist{{Name: "Katrina"}}, Popularity: 77, LikedByUser: true},
			{ID: "t2", Title: "Good Vibrations", Artists: []models.Artist{{Name: "The Beach Boys"}}, Popularity: 70, VideoURL: "https://www.youtube.com/watch?v=x"},
		})

		for _, want := range []string{"Title", "Walking on Sunshine", "The Beach Boys", "t2", "https://www.youtube.com/watch?v=x", "♥"} {
			if !strings.Contains(out, want) {
				t.Errorf("expected %q in table:\n%s", want, out)
			}
		}
	})

	t.Run("empty", func(t *testing.T) {
		if out := RenderTracks(nil); !strings.Contains(out, "No tracks") {
			t.Errorf("unexpected output %q", out)
		}
	})

	t.Run("truncates long titles", func(t *testing.T) {
		long := strings.Repeat("a", maxCell+10)
		out := RenderTracks([]models.Track{{ID: "t1", Title: long}})
		if strings.Contains(out, long) {
			t.Error("expected long title to be truncated")
		}
	})
}

func TestRenderProgress(t *testing.T) {
	out := RenderProgress(tasks.ProgressUpdate{Phase: tasks.SearchGenres, Step: 2, Total: 5, Message: "searching funk"})
	for _, want := range []string{"search_genres", "2/5", "searching funk"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in %q", want, out)
		}
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"exactly", 7, "exactly"},
		{"toolong", 4, "too…"},
		{"ñandú ñandú", 6, "ñandú…"},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}
