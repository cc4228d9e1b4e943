// package formatter renders playlists and favorites as JSON, CSV, Markdown or plain text
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/desertthunder/orbitune/internal/models"
	"github.com/desertthunder/orbitune/internal/shared"
)

// Format is an output encoding.
type Format string

const (
	JSON     Format = "json"
	CSV      Format = "csv"
	Markdown Format = "markdown"
	Text     Format = "text"
)

// ParseFormat accepts a format name, case-insensitively. "md" and "txt" are aliases.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return JSON, nil
	case "csv":
		return CSV, nil
	case "markdown", "md":
		return Markdown, nil
	case "text", "txt", "":
		return Text, nil
	default:
		return "", fmt.Errorf("%w: format %q", shared.ErrInvalidFlag, s)
	}
}

// TracksToCSV writes tracks with columns: ID, Title, Artist, Album, Duration, External ID
func TracksToCSV(tracks []models.Track) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Title", "Artist", "Album", "Duration", "External ID"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, track := range tracks {
		record := []string{
			track.ID.String(),
			track.Title,
			track.Artist,
			track.Album,
			strconv.Itoa(track.Duration),
			track.ExternalID,
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

// PlaylistsToCSV writes one row per playlist. Unknown counts are left empty.
func PlaylistsToCSV(playlists []models.Playlist) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write([]string{"ID", "External ID", "Title", "Tracks"}); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, pl := range playlists {
		count := ""
		if pl.TrackCount != nil {
			count = strconv.Itoa(*pl.TrackCount)
		}
		if err := writer.Write([]string{pl.ID.String(), pl.ExternalID, pl.Title, count}); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

func writeTrackLines(buf *bytes.Buffer, tracks []models.Track, offset int, markdown bool) {
	for i, track := range tracks {
		line := track.Title
		if track.Artist != "" {
			line = track.Artist + " - " + track.Title
		}
		if markdown && track.Album != "" {
			line += fmt.Sprintf(" (%s)", track.Album)
		}
		if markdown && track.Duration > 0 {
			line += fmt.Sprintf(" [%s]", shared.FormatDuration(track.Duration))
		}
		fmt.Fprintf(buf, "%d. %s\n", offset+i+1, line)
	}
}

// PlaylistToMarkdown renders one playlist with its tracks, when hydrated.
func PlaylistToMarkdown(pl models.Playlist) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", pl.Title)
	if pl.Description != "" {
		fmt.Fprintf(&buf, "**Description**: %s\n\n", pl.Description)
	}
	fmt.Fprintf(&buf, "**Tracks**: %s\n\n", models.FormatCount(pl.TrackCount))

	if pl.HasTracks() {
		buf.WriteString("## Tracks\n\n")
		writeTrackLines(&buf, pl.Tracks, 0, true)
	}
	return buf.Bytes()
}

// PlaylistsToMarkdown renders a playlist list as a table.
func PlaylistsToMarkdown(p models.Platform, playlists []models.Playlist) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s playlists\n\n", p)
	buf.WriteString("| # | Title | Tracks |\n|---|---|---|\n")
	for i, pl := range playlists {
		title := strings.ReplaceAll(pl.Title, "|", `\|`)
		fmt.Fprintf(&buf, "| %d | %s | %s |\n", i+1, title, models.FormatCount(pl.TrackCount))
	}
	return buf.Bytes()
}

// FavoritesToMarkdown renders the loaded part of a favorites collection.
func FavoritesToMarkdown(fav models.FavoritesCollection) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s favorites\n\n", fav.Platform)
	fmt.Fprintf(&buf, "**Loaded**: %d of %d\n\n", fav.LoadedOffset, fav.TotalCount)
	writeTrackLines(&buf, fav.Tracks, 0, true)
	return buf.Bytes()
}

// PlaylistToText renders one playlist as plain text.
func PlaylistToText(pl models.Playlist) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Playlist: %s\n", pl.Title)
	if pl.Description != "" {
		fmt.Fprintf(&buf, "Description: %s\n", pl.Description)
	}
	fmt.Fprintf(&buf, "Tracks: %s\n", models.FormatCount(pl.TrackCount))
	if pl.HasTracks() {
		buf.WriteString("\n")
		writeTrackLines(&buf, pl.Tracks, 0, false)
	}
	return buf.Bytes()
}

// PlaylistsToText renders a playlist list, one per line.
func PlaylistsToText(playlists []models.Playlist) []byte {
	var buf bytes.Buffer
	for _, pl := range playlists {
		fmt.Fprintf(&buf, "%-8s %-40s %s tracks\n", pl.ID, pl.Title, models.FormatCount(pl.TrackCount))
	}
	return buf.Bytes()
}

// FavoritesToText renders the loaded favorites as plain text.
func FavoritesToText(fav models.FavoritesCollection) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Favorites (%s): %d of %d loaded\n\n", fav.Platform, fav.LoadedOffset, fav.TotalCount)
	writeTrackLines(&buf, fav.Tracks, 0, false)
	return buf.Bytes()
}

// ToJSON encodes v as indented JSON.
func ToJSON(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode JSON: %w", err)
	}
	return append(data, '\n'), nil
}

// Render encodes v in format. Supported values are a playlist, a playlist list and a favorites collection.
func Render(format Format, p models.Platform, v any) ([]byte, error) {
	if format == JSON {
		return ToJSON(v)
	}

	switch v := v.(type) {
	case models.Playlist:
		switch format {
		case CSV:
			return TracksToCSV(v.Tracks)
		case Markdown:
			return PlaylistToMarkdown(v), nil
		default:
			return PlaylistToText(v), nil
		}
	case []models.Playlist:
		switch format {
		case CSV:
			return PlaylistsToCSV(v)
		case Markdown:
			return PlaylistsToMarkdown(p, v), nil
		default:
			return PlaylistsToText(v), nil
		}
	case models.FavoritesCollection:
		switch format {
		case CSV:
			return TracksToCSV(v.Tracks)
		case Markdown:
			return FavoritesToMarkdown(v), nil
		default:
			return FavoritesToText(v), nil
		}
	default:
		return nil, fmt.Errorf("%w: cannot render %T", shared.ErrNotImplemented, v)
	}
}

// Write renders v and writes it to w.
func Write(w io.Writer, format Format, p models.Platform, v any) error {
	data, err := Render(format, p, v)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
