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
	// Register built-in parsers
	for _, p := range []Parser{&JSONParser{}, &JSONLParser{}, &XLSXParser{}, &TextParser{}} {
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

// ParseFile picks the parser from the file extension.
func (r *Registry) ParseFile(ctx context.Context, path string) (*ParseResult, error) {
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	p, err := r.Get(format)
	if err != nil {
		return nil, err
	}
	return p.Parse(ctx, path)
}
