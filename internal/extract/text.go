package extract

import (
	"context"
	"strings"
)

type textExtractor struct{}

func (textExtractor) Extract(_ context.Context, data []byte, _ string) (*Result, error) {
	text := normalizePlainText(string(data))
	return &Result{
		Text: text,
		Metadata: map[string]interface{}{
			"line_count": lineCount(text),
		},
	}, nil
}

type markdownExtractor struct{}

// Extract keeps the markdown source as-is; the first heading becomes the title
func (markdownExtractor) Extract(_ context.Context, data []byte, _ string) (*Result, error) {
	text := normalizePlainText(string(data))

	metadata := map[string]interface{}{
		"line_count": lineCount(text),
	}
	headings := 0
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "#") {
			continue
		}
		headings++
		if _, ok := metadata["title"]; !ok {
			if title := strings.TrimSpace(strings.TrimLeft(trimmed, "#")); title != "" {
				metadata["title"] = title
			}
		}
	}
	metadata["heading_count"] = headings
	if _, ok := metadata["title"]; !ok {
		if first := firstNonEmptyLine(text); first != "" {
			metadata["title"] = first
		}
	}

	return &Result{Text: text, Metadata: metadata}, nil
}

func lineCount(text string) int {
	if text == "" {
		return 0
	}
	return strings.Count(text, "\n") + 1
}
