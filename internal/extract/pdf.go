package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/ledongthuc/pdf"
)

// PDF extracts the text layer of a PDF with github.com/ledongthuc/pdf.
type PDF struct{}

func (PDF) Extract(ctx context.Context, path string, mediaType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read pdf: %w", err)
	}
	text, err := extractPDF(data)
	if err != nil {
		return "", fmt.Errorf("parse pdf: %w", err)
	}
	return text, nil
}

func extractPDF(data []byte) (text string, err error) {
	// The parser panics on some malformed inputs.
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("malformed pdf: %v", rec)
		}
	}()
	reader := bytes.NewReader(data)
	pdfReader, err := pdf.NewReader(reader, int64(len(data)))
	if err != nil {
		return "", err
	}
	plain, err := pdfReader.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", err
	}
	return buf.String(), nil
}
