// package formatter renders replay history in various formats (plain text, CSV, Markdown, JSON)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/samber/lo"
	"github.com/teremich/spotify-true-random/internal/models"
	"github.com/teremich/spotify-true-random/internal/shared"
	"github.com/teremich/spotify-true-random/internal/ui"
)

// Format is an output format of the history command.
type Format string

const (
	FormatText     Format = "text"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
)

// Formats lists every supported format.
var Formats = []Format{FormatText, FormatCSV, FormatMarkdown, FormatJSON}

// ParseFormat validates a format name. "md" is accepted for Markdown.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if f == "md" {
		return FormatMarkdown, nil
	}
	if !lo.Contains(Formats, f) {
		return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, s)
	}
	return f, nil
}

// RunRecord is the exported shape of a [models.ReplayRun].
type RunRecord struct {
	ID            string    `json:"id"`
	Sequence      int       `json:"sequence"`
	Selector      string    `json:"selector"`
	Status        string    `json:"status"`
	DeviceID      string    `json:"device_id,omitempty"`
	DeviceName    string    `json:"device_name,omitempty"`
	TotalTracks   int       `json:"total_tracks"`
	Played        int       `json:"played"`
	Queued        int       `json:"queued"`
	Refreshed     bool      `json:"refreshed"`
	PlaybackError string    `json:"playback_error,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// NewRunRecord flattens a run for export.
func NewRunRecord(run *models.ReplayRun) RunRecord {
	return RunRecord{
		ID:            run.ID(),
		Sequence:      run.Sequence(),
		Selector:      run.Selector(),
		Status:        string(run.Status()),
		DeviceID:      run.DeviceID(),
		DeviceName:    run.DeviceName(),
		TotalTracks:   run.TotalTracks(),
		Played:        run.Played(),
		Queued:        run.Queued(),
		Refreshed:     run.Refreshed(),
		PlaybackError: run.PlaybackError(),
		CreatedAt:     run.CreatedAt(),
	}
}

// Write renders runs in the given format to w.
func Write(w io.Writer, format Format, runs []*models.ReplayRun) error {
	var (
		data []byte
		err  error
	)

	switch format {
	case FormatText:
		data, err = ExportToText(runs)
	case FormatCSV:
		data, err = ExportToCSV(runs)
	case FormatMarkdown:
		data, err = ExportToMarkdown(runs)
	case FormatJSON:
		data, err = ExportToJSON(runs)
	default:
		return fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, format)
	}
	if err != nil {
		return err
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write %s output: %w", format, err)
	}
	return nil
}

// WriteFile renders runs to path, creating parent directories as needed.
func WriteFile(path string, format Format, runs []*models.ReplayRun) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := Write(f, format, runs); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ExportToCSV converts runs to CSV with columns: Sequence, ID, Created, Selector, Status, Device, Tracks, Played, Queued, Refreshed, Playback Error
func ExportToCSV(runs []*models.ReplayRun) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Sequence", "ID", "Created", "Selector", "Status", "Device", "Tracks", "Played", "Queued", "Refreshed", "Playback Error"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, run := range runs {
		record := []string{
			strconv.Itoa(run.Sequence()),
			run.ID(),
			run.CreatedAt().UTC().Format(time.RFC3339),
			run.Selector(),
			string(run.Status()),
			run.DeviceName(),
			strconv.Itoa(run.TotalTracks()),
			strconv.Itoa(run.Played()),
			strconv.Itoa(run.Queued()),
			strconv.FormatBool(run.Refreshed()),
			run.PlaybackError(),
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

// ExportToMarkdown converts runs to a Markdown table.
func ExportToMarkdown(runs []*models.ReplayRun) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("# Replay History\n\n")
	fmt.Fprintf(&buf, "**Runs**: %d\n\n", len(runs))

	if len(runs) == 0 {
		return buf.Bytes(), nil
	}

	buf.WriteString("| # | Created | Selector | Status | Device | Played | Queued | Tracks |\n")
	buf.WriteString("|---|---------|----------|--------|--------|--------|--------|--------|\n")
	for _, run := range runs {
		fmt.Fprintf(&buf, "| %d | %s | %s | %s | %s | %d | %d | %d |\n",
			run.Sequence(),
			run.CreatedAt().UTC().Format(time.DateTime),
			markdownCell(run.Selector()),
			run.Status(),
			markdownCell(lo.CoalesceOrEmpty(run.DeviceName(), "-")),
			run.Played(),
			run.Queued(),
			run.TotalTracks(),
		)
	}

	return buf.Bytes(), nil
}

// ExportToText renders runs for the terminal, colored with the [ui] palette.
func ExportToText(runs []*models.ReplayRun) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(ui.Styles.Title("Replay history") + "\n\n")
	if len(runs) == 0 {
		buf.WriteString(ui.Styles.Help("No runs recorded yet.") + "\n")
		return buf.Bytes(), nil
	}

	for _, run := range runs {
		fmt.Fprintf(&buf, "%d. %s  %s  %s\n",
			run.Sequence(),
			run.CreatedAt().Local().Format(time.DateTime),
			run.Selector(),
			ui.Styles.Status(run.Status()),
		)

		line := fmt.Sprintf("played %d, queued %d of %d tracks", run.Played(), run.Queued(), run.TotalTracks())
		if run.DeviceName() != "" {
			line += " on " + run.DeviceName()
		}
		if run.Refreshed() {
			line += " (token refreshed)"
		}
		buf.WriteString("   " + ui.Styles.Help(line) + "\n")

		if run.PlaybackError() != "" {
			buf.WriteString("   " + ui.Styles.Err(run.PlaybackError()) + "\n")
		}
	}

	return buf.Bytes(), nil
}

// ExportToJSON converts runs to an indented JSON array.
func ExportToJSON(runs []*models.ReplayRun) ([]byte, error) {
	records := lo.Map(runs, func(run *models.ReplayRun, _ int) RunRecord { return NewRunRecord(run) })

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal runs: %w", err)
	}
	return append(data, '\n'), nil
}

func markdownCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
