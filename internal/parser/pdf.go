package parser

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/ledongthuc/pdf"
)

type PDFParser struct{}

func (p *PDFParser) SupportedFormats() []string { return []string{"pdf"} }

// Parse extracts plain text page by page. Pages that fail to extract are skipped.
func (p *PDFParser) Parse(ctx context.Context, path string) (*ParseResult, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer f.Close()

	var sections []Section
	for i := 1; i <= reader.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			log.Printf("Warning: skipping page %d of %s: %v", i, path, err)
			continue
		}

		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		sections = append(sections, Section{Content: text, PageNumber: i})
	}

	if len(sections) == 0 {
		return nil, fmt.Errorf("no extractable text in %s", path)
	}
	return &ParseResult{Sections: sections}, nil
}
