package tasks

import (
	"fmt"

	"github.com/desertthunder/sentisounds/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data
}

// Operation phase enumeration
type Phase int

const (
	DeriveGenres Phase = iota
	SearchGenres
	ResolveVideos
	CreatePlaylist
	AddTracks
)

func (p Phase) String() string {
	switch p {
	case DeriveGenres:
		return "derive_genres"
	case SearchGenres:
		return "search_genres"
	case ResolveVideos:
		return "resolve_videos"
	case CreatePlaylist:
		return "create_playlist"
	case AddTracks:
		return "add_tracks"
	default:
		return ""
	}
}

func deriveGenresUpdate(prompt string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   DeriveGenres,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Deriving genres for %q...", prompt),
	}
}

func searchGenreUpdate(step, total int, genre string, found int, err error) ProgressUpdate {
	msg := fmt.Sprintf("Found %d tracks for %s", found, genre)
	if err != nil {
		msg = fmt.Sprintf("Search for %s failed: %v", genre, err)
	}
	return ProgressUpdate{
		Phase:   SearchGenres,
		Step:    step,
		Total:   total,
		Message: msg,
		Data:    genre,
	}
}

func resolveVideosUpdate(total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ResolveVideos,
		Step:    0,
		Total:   total,
		Message: fmt.Sprintf("Resolving video links for %d tracks...", total),
	}
}

func createPlaylistUpdate(name string, url string) ProgressUpdate {
	msg := fmt.Sprintf("Creating playlist %q...", name)
	if url != "" {
		msg = fmt.Sprintf("Created playlist %q", name)
	}
	return ProgressUpdate{
		Phase:   CreatePlaylist,
		Step:    1,
		Total:   1,
		Message: msg,
		Data:    url,
	}
}

func addTracksUpdate(step, total, added int, batch []string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   AddTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Added batch %d/%d (%d tracks)", step, total, added),
		Data:    batch,
	}
}

func tracksFoundUpdate(tracks []models.Track) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SearchGenres,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Merged %d unique tracks", len(tracks)),
		Data:    len(tracks),
	}
}
