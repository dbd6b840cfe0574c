package inspect

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDFInspector pulls the page count out of uploaded PDFs. Other file types
// report zero pages; the pipeline fills in what the parser finds.
type PDFInspector struct{}

func New() *PDFInspector { return &PDFInspector{} }

func (i *PDFInspector) PageCount(fileName string, data []byte) (int, error) {
	if strings.ToLower(filepath.Ext(fileName)) != ".pdf" {
		return 0, nil
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("open pdf: %w", err)
	}
	return reader.NumPage(), nil
}
