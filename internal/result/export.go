package result

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"task-api/internal/task"
)

var ErrUnknownFormat = errors.New("unknown export format")

type Lister interface {
	List(ctx context.Context) ([]task.Task, error)
}

type Exporter struct{ src Lister }

func NewExporter(src Lister) *Exporter { return &Exporter{src: src} }

// ContentType returns the MIME type of an export format.
func ContentType(format string) string {
	switch strings.ToLower(format) {
	case "csv":
		return "text/csv"
	case "pdf":
		return "application/pdf"
	default:
		return "application/json"
	}
}

func (e *Exporter) Export(ctx context.Context, format string) ([]byte, error) {
	format = strings.ToLower(format)
	switch format {
	case "json", "csv", "pdf":
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownFormat, format)
	}
	all, err := e.src.List(ctx)
	if err != nil {
		return nil, err
	}
	switch format {
	case "json":
		return json.MarshalIndent(all, "", "  ")
	case "csv":
		var b bytes.Buffer
		w := csv.NewWriter(&b)
		_ = w.Write([]string{"id", "title", "done"})
		for _, t := range all {
			_ = w.Write([]string{strconv.FormatInt(t.ID, 10), t.Title, strconv.FormatBool(t.Done)})
		}
		w.Flush()
		return b.Bytes(), w.Error()
	default:
		return renderPDF(all)
	}
}

func renderPDF(all []task.Task) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 14)
	pdf.Cell(40, 10, "Task Report")
	pdf.Ln(12)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(20, 7, "ID", "1", 0, "C", false, 0, "")
	pdf.CellFormat(140, 7, "Title", "1", 0, "L", false, 0, "")
	pdf.CellFormat(25, 7, "Done", "1", 1, "C", false, 0, "")

	pdf.SetFont("Arial", "", 10)
	var done int
	for _, t := range all {
		mark := ""
		if t.Done {
			mark = "yes"
			done++
		}
		pdf.CellFormat(20, 6, strconv.FormatInt(t.ID, 10), "1", 0, "C", false, 0, "")
		pdf.CellFormat(140, 6, asciiOnly(t.Title), "1", 0, "L", false, 0, "")
		pdf.CellFormat(25, 6, mark, "1", 1, "C", false, 0, "")
	}
	pdf.Ln(4)
	pdf.Cell(40, 6, fmt.Sprintf("%d tasks, %d done", len(all), done))

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// asciiOnly replaces runes the core PDF fonts cannot draw.
func asciiOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if r > 126 || (r < 32 && r != '\t') {
			return '?'
		}
		return r
	}, s)
}
