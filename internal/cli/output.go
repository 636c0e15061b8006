// Package cli formats kotae results for the terminal.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat maps a flag value to an OutputFormat.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text":
		return OutputText, nil
	case "json":
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text or json)", s)
	}
}

const (
	sourcePreviewLen = 160
	rule             = "─────────────────────────────────────────────────────────"
)

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteAnswer writes answer to w. With showSources, text output lists the retrieved chunks.
func WriteAnswer(w io.Writer, answer models.Answer, format OutputFormat, showSources bool) error {
	if format == OutputJSON {
		return writeJSON(w, answer)
	}
	fmt.Fprintln(w, answer.Text)
	if !showSources || len(answer.Sources) == 0 {
		return nil
	}
	fmt.Fprintf(w, "\n%s\nSources (%d) in %s\n", rule, len(answer.Sources), answer.Duration.Round(time.Millisecond))
	for i, src := range answer.Sources {
		fmt.Fprintf(w, "[%d] score %.4f, chars %d-%d\n    %s\n",
			i+1, src.Score, src.Chunk.Start, src.Chunk.End(),
			utils.Truncate(utils.SingleLine(src.Chunk.Text), sourcePreviewLen))
	}
	return nil
}

// WriteIngestResult writes the outcome of an ingestion.
func WriteIngestResult(w io.Writer, result *models.IngestResult, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, result)
	}
	fmt.Fprintf(w, "Loaded %s: %d chunks, %d dimensions (%s)\n",
		displaySource(result.Source, result.DocumentID), result.Chunks, result.Dimensions,
		result.Duration.Round(time.Millisecond))
	return nil
}

// WriteStatus writes a status report.
func WriteStatus(w io.Writer, report models.StatusReport, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, report)
	}
	idx := report.Index
	fmt.Fprintf(w, "State:        %s\n", idx.State)
	if idx.State == models.StateReady {
		fmt.Fprintf(w, "Document:     %s\n", displaySource(idx.Source, idx.DocumentID))
		fmt.Fprintf(w, "Chunks:       %d\n", idx.Chunks)
		fmt.Fprintf(w, "Dimensions:   %d\n", idx.Dimensions)
		if !idx.IngestedAt.IsZero() {
			fmt.Fprintf(w, "Ingested at:  %s\n", idx.IngestedAt.Format(time.RFC3339))
		}
	}
	fmt.Fprintf(w, "Chunking:     %d runes, %d overlap\n", idx.ChunkSize, idx.ChunkOverlap)
	fmt.Fprintf(w, "Top K:        %d\n", idx.TopK)
	if h := report.History; h != nil {
		fmt.Fprintf(w, "Ingestions:   %d\n", h.Ingestions)
		fmt.Fprintf(w, "Questions:    %d\n", h.Questions)
		fmt.Fprintf(w, "History size: %s\n", FormatBytes(h.DatabaseBytes))
	}
	return nil
}

// WriteHistory writes question records, newest first.
func WriteHistory(w io.Writer, records []*models.QuestionRecord, format OutputFormat) error {
	if format == OutputJSON {
		if records == nil {
			records = []*models.QuestionRecord{}
		}
		return writeJSON(w, records)
	}
	if len(records) == 0 {
		fmt.Fprintln(w, "No questions recorded.")
		return nil
	}
	for _, rec := range records {
		fmt.Fprintln(w, rule)
		fmt.Fprintf(w, "%s  [%s]  %dms\n", rec.CreatedAt.Local().Format("2006-01-02 15:04:05"), rec.Status, rec.DurationMs)
		fmt.Fprintf(w, "Q: %s\n", utils.SingleLine(rec.Question))
		if rec.Error != "" {
			fmt.Fprintf(w, "E: %s\n", rec.Error)
		} else {
			fmt.Fprintf(w, "A: %s\n", utils.Truncate(utils.SingleLine(rec.Answer), 200))
		}
	}
	return nil
}

// FormatBytes renders n with a binary unit suffix.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func displaySource(source, id string) string {
	if source != "" {
		return source
	}
	return id
}
