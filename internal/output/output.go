// Package output provides CLI status messages and the result-set
// formatters behind qmd's `--files|--json|--csv|--md|--xml` output
// selectors (spec.md §6).
package output

import (
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// Writer prints status messages to the CLI.
type Writer struct {
	out io.Writer
}

// New creates a Writer over out.
func New(out io.Writer) *Writer {
	return &Writer{out: out}
}

// Status prints a status message with an icon. An empty icon indents
// under a prior Status line instead of prefixing one of its own.
func (w *Writer) Status(icon, msg string) {
	if icon != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
	} else {
		_, _ = fmt.Fprintf(w.out, "   %s\n", msg)
	}
}

// Statusf prints a formatted status message with an icon.
func (w *Writer) Statusf(icon, format string, args ...any) {
	w.Status(icon, fmt.Sprintf(format, args...))
}

// Success prints a success message.
func (w *Writer) Success(msg string) { w.Status("✓", msg) }

// Warning prints a warning message.
func (w *Writer) Warning(msg string) { w.Status("!", msg) }

// Error prints an error message.
func (w *Writer) Error(msg string) { w.Status("✗", msg) }

// Newline prints an empty line.
func (w *Writer) Newline() { _, _ = fmt.Fprintln(w.out) }

// Format selects a result-set serialization (spec.md §6's output
// selectors).
type Format string

const (
	FormatText  Format = "text"
	FormatFiles Format = "files"
	FormatJSON  Format = "json"
	FormatCSV   Format = "csv"
	FormatMD    Format = "md"
	FormatXML   Format = "xml"
)

// ParseFormat maps --json/--csv/--md/--xml/--files flags to a Format,
// defaulting to FormatText when none is set.
func ParseFormat(files, jsonOut, csvOut, md, xmlOut bool) Format {
	switch {
	case files:
		return FormatFiles
	case jsonOut:
		return FormatJSON
	case csvOut:
		return FormatCSV
	case md:
		return FormatMD
	case xmlOut:
		return FormatXML
	default:
		return FormatText
	}
}

// Row is one line of a formatted result set: a docid, a file path, a
// score, and a highlighted excerpt. Every search verb's output collapses
// to this shape regardless of which search mode produced it.
type Row struct {
	Docid    string  `json:"docid" xml:"docid"`
	FilePath string  `json:"file_path" xml:"file_path"`
	Score    float64 `json:"score" xml:"score"`
	Snippet  string  `json:"snippet,omitempty" xml:"snippet,omitempty"`
}

type xmlRows struct {
	XMLName xml.Name `xml:"results"`
	Rows    []Row    `xml:"result"`
}

// WriteRows renders rows in the selected format to w.
func WriteRows(w io.Writer, format Format, rows []Row) error {
	switch format {
	case FormatFiles:
		for _, r := range rows {
			if _, err := fmt.Fprintln(w, r.FilePath); err != nil {
				return err
			}
		}
		return nil

	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)

	case FormatCSV:
		cw := csv.NewWriter(w)
		if err := cw.Write([]string{"docid", "file_path", "score", "snippet"}); err != nil {
			return err
		}
		for _, r := range rows {
			if err := cw.Write([]string{r.Docid, r.FilePath, fmt.Sprintf("%.4f", r.Score), r.Snippet}); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()

	case FormatMD:
		if _, err := fmt.Fprintln(w, "| docid | score | file | snippet |"); err != nil {
			return err
		}
		if _, err := fmt.Fprintln(w, "|---|---|---|---|"); err != nil {
			return err
		}
		for _, r := range rows {
			snippet := strings.ReplaceAll(r.Snippet, "|", "\\|")
			if _, err := fmt.Fprintf(w, "| %s | %.4f | %s | %s |\n", r.Docid, r.Score, r.FilePath, snippet); err != nil {
				return err
			}
		}
		return nil

	case FormatXML:
		enc := xml.NewEncoder(w)
		enc.Indent("", "  ")
		if err := enc.Encode(xmlRows{Rows: rows}); err != nil {
			return err
		}
		_, err := fmt.Fprintln(w)
		return err

	default:
		for i, r := range rows {
			location := r.FilePath
			if r.Docid != "" {
				location = fmt.Sprintf("%s #%s", location, r.Docid)
			}
			if _, err := fmt.Fprintf(w, "%d. %s (score: %.3f)\n", i+1, location, r.Score); err != nil {
				return err
			}
			if r.Snippet != "" {
				if _, err := fmt.Fprintf(w, "   %s\n", r.Snippet); err != nil {
					return err
				}
			}
		}
		return nil
	}
}
