// Package extract pulls plain text and basic metadata out of uploaded
// document bytes. Format is chosen from the file extension.
package extract

import (
	"context"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/upb/medrag/services"
)

// Result is the text and metadata pulled from one document
type Result struct {
	Text     string
	Metadata map[string]interface{}
}

// Extractor handles one file format
type Extractor interface {
	Extract(ctx context.Context, data []byte, filename string) (*Result, error)
}

// Registry maps lower-case extensions (with dot) to extractors
type Registry struct {
	extractors map[string]Extractor
}

// NewRegistry returns a registry with the PDF, DOCX, Markdown and text extractors
func NewRegistry() *Registry {
	return &Registry{
		extractors: map[string]Extractor{
			".pdf":  pdfExtractor{},
			".docx": docxExtractor{},
			".md":   markdownExtractor{},
			".txt":  textExtractor{},
		},
	}
}

// Supports reports whether filename has a known extension
func (r *Registry) Supports(filename string) bool {
	_, ok := r.extractors[Extension(filename)]
	return ok
}

// Extract dispatches on the extension. Unknown extensions yield an
// unsupported-format error without reading data.
func (r *Registry) Extract(ctx context.Context, data []byte, filename string) (*Result, error) {
	ext := Extension(filename)
	e, ok := r.extractors[ext]
	if !ok {
		return nil, services.UnsupportedFormat(ext)
	}

	res, err := e.Extract(ctx, data, filename)
	if err != nil {
		return nil, err
	}
	if res.Metadata == nil {
		res.Metadata = map[string]interface{}{}
	}
	res.Metadata["file_type"] = strings.TrimPrefix(ext, ".")
	res.Metadata["file_size"] = len(data)
	res.Metadata["char_count"] = utf8.RuneCountInString(res.Text)
	return res, nil
}

// Extension returns the lower-cased extension including the dot
func Extension(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}

// normalizePlainText unifies line endings and strips trailing blanks per line
func normalizePlainText(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func firstNonEmptyLine(content string) string {
	for _, line := range strings.Split(content, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
