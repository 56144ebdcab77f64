package report

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"kasirpos/backend/internal/poserr"
)

// ErrNoData refuses an export of an empty result.
var ErrNoData = &poserr.ValidationError{Field: "report", Message: "no transactions match the selected filters"}

type Renderer interface {
	Format() string
	ContentType() string
	Render(w io.Writer, doc Document) error
}

// RendererFor returns the renderer for format. An empty format means PDF.
func RendererFor(format string) (Renderer, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "pdf":
		return PDFRenderer{}, nil
	case "xlsx", "excel":
		return XLSXRenderer{}, nil
	case "csv":
		return CSVRenderer{}, nil
	case "html":
		return HTMLRenderer{}, nil
	}
	return nil, poserr.Invalid("format", fmt.Sprintf("unsupported export format %q", format))
}

// Export renders doc into w. Nothing is written to w unless rendering
// completes, so a failed export never leaves a partial document.
func Export(w io.Writer, doc Document, r Renderer) error {
	if len(doc.Rows) == 0 {
		return ErrNoData
	}

	var buf bytes.Buffer
	if err := r.Render(&buf, doc); err != nil {
		return &poserr.ExportError{Format: r.Format(), Err: err}
	}
	if _, err := buf.WriteTo(w); err != nil {
		return &poserr.ExportError{Format: r.Format(), Err: err}
	}
	return nil
}

func Filename(r Renderer, generatedAt time.Time) string {
	return fmt.Sprintf("sales-report-%s.%s", generatedAt.Format("20060102-150405"), r.Format())
}
