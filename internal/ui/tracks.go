package ui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/desertthunder/sentisounds/internal/models"
	"github.com/desertthunder/sentisounds/internal/tasks"
)

const maxCell = 40

var (
	headerStyle = NewBold("#7D56F4").Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	likedStyle  = NewBold("#04B575").Padding(0, 1)
)

// RenderTracks draws tracks as a bordered table. Liked rows are highlighted.
func RenderTracks(tracks []models.Track) string {
	if len(tracks) == 0 {
		return Styles.Warn("No tracks matched.")
	}

	rows := make([][]string, 0, len(tracks))
	for i, t := range tracks {
		liked := ""
		if t.LikedByUser {
			liked = "♥"
		}
		video := "-"
		if t.VideoURL != "" {
			video = t.VideoURL
		}
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			truncate(t.Title, maxCell),
			truncate(strings.Join(t.ArtistNames(), ", "), maxCell),
			strconv.Itoa(t.Popularity),
			t.ID,
			video,
			liked,
		})
	}

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(NewStyle("#626262")).
		Headers("#", "Title", "Artists", "Pop", "ID", "Video", "♥").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case row >= 0 && row < len(tracks) && tracks[row].LikedByUser:
				return likedStyle
			default:
				return cellStyle
			}
		})

	return tbl.Render()
}

// RenderProgress formats one pipeline event as a status line.
func RenderProgress(u tasks.ProgressUpdate) string {
	prefix := Styles.Help(fmt.Sprintf("[%s]", u.Phase))
	if u.Total > 0 {
		prefix += Styles.Help(fmt.Sprintf(" %d/%d", u.Step, u.Total))
	}
	return prefix + " " + u.Message
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
