package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/ledongthuc/pdf"

	"github.com/upb/medrag/services"
)

type pdfExtractor struct{}

// Extract reads the plain text of every page. The PDF lexer reports
// malformed objects and content streams by panicking; those panics become
// processing errors.
func (pdfExtractor) Extract(_ context.Context, data []byte, _ string) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = services.WrapProcessing("Failed to read PDF document", fmt.Errorf("malformed pdf: %v", r))
		}
	}()

	doc, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, services.WrapProcessing("Failed to read PDF document", fmt.Errorf("open pdf: %w", err))
	}

	plain, err := doc.GetPlainText()
	if err != nil {
		return nil, services.WrapProcessing("Failed to extract PDF text", fmt.Errorf("extract pdf text: %w", err))
	}

	buf := &bytes.Buffer{}
	if _, err := io.Copy(buf, plain); err != nil {
		return nil, services.WrapProcessing("Failed to extract PDF text", fmt.Errorf("read pdf text: %w", err))
	}

	metadata := map[string]interface{}{
		"page_count": doc.NumPage(),
	}
	if title := doc.Trailer().Key("Info").Key("Title").Text(); title != "" {
		metadata["title"] = title
	}

	return &Result{
		Text:     normalizePlainText(buf.String()),
		Metadata: metadata,
	}, nil
}
