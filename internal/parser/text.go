package parser

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// TextParser handles plain text and markdown reports.
type TextParser struct{}

func (p *TextParser) SupportedFormats() []string { return []string{"txt", "md"} }

func (p *TextParser) Parse(ctx context.Context, path string) (*ParseResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading text file: %w", err)
	}
	return FromText(string(data)), nil
}

// FromText splits raw report text into sections at markdown headings.
func FromText(text string) *ParseResult {
	var sections []Section
	var current strings.Builder
	heading := ""

	flush := func() {
		if content := strings.TrimSpace(current.String()); content != "" {
			sections = append(sections, Section{Heading: heading, Content: content, PageNumber: 1})
		}
		current.Reset()
	}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			flush()
			heading = strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
			continue
		}
		current.WriteString(line)
		current.WriteString("\n")
	}
	flush()

	return &ParseResult{Sections: sections, Format: "txt"}
}
