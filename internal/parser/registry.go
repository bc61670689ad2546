package parser

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

type Registry struct {
	parsers map[string]Parser
}

func NewRegistry() *Registry {
	r := &Registry{parsers: make(map[string]Parser)}
	for _, p := range []Parser{&PDFParser{}, &TextParser{}} {
		for _, f := range p.SupportedFormats() {
			r.parsers[f] = p
		}
	}
	return r
}

func (r *Registry) Get(format string) (Parser, error) {
	p, ok := r.parsers[format]
	if !ok {
		return nil, fmt.Errorf("no parser for format: %s", format)
	}
	return p, nil
}

func (r *Registry) Register(format string, p Parser) {
	r.parsers[format] = p
}

// ParseFile picks a parser from the file extension.
func (r *Registry) ParseFile(ctx context.Context, path string) (*ParseResult, error) {
	format := FormatOf(path)
	p, err := r.Get(format)
	if err != nil {
		return nil, err
	}
	res, err := p.Parse(ctx, path)
	if err != nil {
		return nil, err
	}
	res.Format = format
	return res, nil
}

func FormatOf(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}
