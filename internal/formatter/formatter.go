// package formatter renders recommendation results in the CLI output formats (JSON, CSV, Markdown, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/desertthunder/sentisounds/internal/models"
)

// Format names accepted by [Render].
const (
	FormatJSON     = "json"
	FormatCSV      = "csv"
	FormatMarkdown = "markdown"
	FormatText     = "txt"
)

// Formats lists the file formats in the order shown in help text.
var Formats = []string{FormatJSON, FormatCSV, FormatMarkdown, FormatText}

// Report is one recommendation result as presented to a user.
type Report struct {
	Prompt       string         `json:"prompt"`
	Floor        int            `json:"popularity_floor"`
	Genres       []string       `json:"genres"`
	FailedGenres []string       `json:"failed_genres,omitempty"`
	Tracks       []models.Track `json:"songs"`
}

// Render dispatches on format. An unknown format is an error.
func Render(report *Report, format string) ([]byte, error) {
	switch strings.ToLower(format) {
	case FormatJSON, "":
		return ExportToJSON(report, true)
	case FormatCSV:
		return ExportToCSV(report.Tracks)
	case FormatMarkdown, "md":
		return ExportToMarkdown(report)
	case FormatText, "text":
		return ExportToText(report)
	default:
		return nil, fmt.Errorf("unknown format %q (want one of %s)", format, strings.Join(Formats, ", "))
	}
}

// ExportToJSON marshals the report, indented when pretty is set.
func ExportToJSON(report *Report, pretty bool) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if pretty {
		data, err = json.MarshalIndent(report, "", "  ")
	} else {
		data, err = json.Marshal(report)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}
	return append(data, '\n'), nil
}

// ExportToCSV converts tracks to CSV with columns: ID, Title, Artists, Album, Popularity, Preview, Video, Liked
func ExportToCSV(tracks []models.Track) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Title", "Artists", "Album", "Popularity", "Preview", "Video", "Liked"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, track := range tracks {
		record := []string{
			track.ID,
			track.Title,
			strings.Join(track.ArtistNames(), "; "),
			track.Album.Name,
			strconv.Itoa(track.Popularity),
			track.PreviewURL,
			track.VideoURL,
			strconv.FormatBool(track.LikedByUser),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts a report to Markdown with a genre summary and one list item per track.
func ExportToMarkdown(report *Report) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", report.Prompt)
	fmt.Fprintf(&buf, "**Genres**: %s\n", strings.Join(report.Genres, ", "))
	if len(report.FailedGenres) > 0 {
		fmt.Fprintf(&buf, "**Unavailable**: %s\n", strings.Join(report.FailedGenres, ", "))
	}
	fmt.Fprintf(&buf, "**Popularity floor**: %d\n", report.Floor)
	fmt.Fprintf(&buf, "**Tracks**: %d\n\n", len(report.Tracks))

	buf.WriteString("## Tracks\n\n")
	for i, track := range report.Tracks {
		title := track.Title
		if track.URL != "" {
			title = fmt.Sprintf("[%s](%s)", track.Title, track.URL)
		}
		albumPart := ""
		if track.Album.Name != "" {
			albumPart = fmt.Sprintf(" (%s)", track.Album.Name)
		}
		fmt.Fprintf(&buf, "%d. %s - %s%s [%d]", i+1, strings.Join(track.ArtistNames(), ", "), title, albumPart, track.Popularity)
		if track.VideoURL != "" {
			fmt.Fprintf(&buf, " · [video](%s)", track.VideoURL)
		}
		if track.LikedByUser {
			buf.WriteString(" ♥")
		}
		buf.WriteString("\n")
	}

	return buf.Bytes(), nil
}

// ExportToText converts a report to plain text.
func ExportToText(report *Report) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Prompt: %s\n", report.Prompt)
	fmt.Fprintf(&buf, "Genres: %s\n", strings.Join(report.Genres, ", "))
	fmt.Fprintf(&buf, "Tracks: %d\n\n", len(report.Tracks))

	for i, track := range report.Tracks {
		fmt.Fprintf(&buf, "%d. %s - %s\n", i+1, strings.Join(track.ArtistNames(), ", "), track.Title)
	}

	return buf.Bytes(), nil
}

// WriteReport renders the report and writes it to path, creating or truncating the file.
func WriteReport(report *Report, format, path string) error {
	if path == "" {
		return fmt.Errorf("output path is required")
	}

	data, err := Render(report, format)
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
