package parser

import "context"

// ParseResult is what a parser produces from a report file.
type ParseResult struct {
	Sections []Section
	Format   string
}

// Section is a logical block of report text.
type Section struct {
	Heading    string
	Content    string
	PageNumber int
}

// Parser can parse a specific report format.
type Parser interface {
	Parse(ctx context.Context, path string) (*ParseResult, error)
	SupportedFormats() []string
}

// Text joins section contents with blank lines.
func (r *ParseResult) Text() string {
	var out []byte
	for i, s := range r.Sections {
		if i > 0 {
			out = append(out, '\n', '\n')
		}
		out = append(out, s.Content...)
	}
	return string(out)
}
