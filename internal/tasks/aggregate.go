package tasks

import "github.com/desertthunder/sentisounds/internal/models"

// LikedSet is a user's liked track ids.
type LikedSet map[string]struct{}

// NewLikedSet builds a set from ids.
func NewLikedSet(ids []string) LikedSet {
	s := make(LikedSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has reports membership. A nil set has no members.
func (s LikedSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Aggregate flattens per-genre results in genre order, keeps the first occurrence of each track id,
// and marks tracks found in liked.
func Aggregate(genreResults [][]models.Track, liked LikedSet) []models.Track {
	n := 0
	for _, tracks := range genreResults {
		n += len(tracks)
	}

	seen := make(map[string]struct{}, n)
	out := make([]models.Track, 0, n)
	for _, tracks := range genreResults {
		for _, t := range tracks {
			if t.ID == "" {
				continue
			}
			if _, dup := seen[t.ID]; dup {
				continue
			}
			seen[t.ID] = struct{}{}
			t.LikedByUser = liked.Has(t.ID)
			out = append(out, t)
		}
	}
	return out
}
