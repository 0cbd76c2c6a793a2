package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/antchfx/xmlquery"

	"github.com/upb/medrag/services"
)

const docxBodyPart = "word/document.xml"

type docxExtractor struct{}

// Extract reads word/document.xml and emits one line per paragraph.
// Tabs and explicit breaks inside a paragraph are kept.
func (docxExtractor) Extract(_ context.Context, data []byte, _ string) (*Result, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, services.WrapProcessing("Failed to read DOCX document", fmt.Errorf("open docx: %w", err))
	}

	var body *zip.File
	for _, f := range zr.File {
		if f.Name == docxBodyPart {
			body = f
			break
		}
	}
	if body == nil {
		return nil, services.WrapProcessing("Failed to read DOCX document", fmt.Errorf("docx: missing %s", docxBodyPart))
	}

	rc, err := body.Open()
	if err != nil {
		return nil, services.WrapProcessing("Failed to read DOCX document", fmt.Errorf("open %s: %w", docxBodyPart, err))
	}
	defer rc.Close()

	paragraphs, err := parseDocumentXML(rc)
	if err != nil {
		return nil, services.WrapProcessing("Failed to extract DOCX text", err)
	}

	return &Result{
		Text: strings.TrimSpace(strings.Join(paragraphs, "\n")),
		Metadata: map[string]interface{}{
			"paragraph_count": len(paragraphs),
		},
	}, nil
}

// parseDocumentXML selects every w:p paragraph under w:body and joins its
// w:t text runs
func parseDocumentXML(r io.Reader) ([]string, error) {
	doc, err := xmlquery.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", docxBodyPart, err)
	}

	var paragraphs []string
	for _, p := range xmlquery.Find(doc, "//w:body//w:p") {
		var b strings.Builder
		collectRuns(&b, p)
		if text := strings.TrimSpace(b.String()); text != "" {
			paragraphs = append(paragraphs, text)
		}
	}
	return paragraphs, nil
}

// collectRuns writes the text of n's descendants in document order. Nested
// paragraphs (text boxes) are skipped; the outer query visits them itself.
func collectRuns(b *strings.Builder, n *xmlquery.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != xmlquery.ElementNode {
			continue
		}
		switch c.Data {
		case "t":
			b.WriteString(c.InnerText())
		case "tab":
			b.WriteByte('\t')
		case "br", "cr":
			b.WriteByte('\n')
		case "p":
		default:
			collectRuns(b, c)
		}
	}
}
