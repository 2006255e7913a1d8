package interfaces

import (
	"context"
)

// PDFPageContent represents extracted content from a single PDF page
type PDFPageContent struct {
	PageNumber int    `json:"page_number"`
	Text       string `json:"text"`
}

// PDFExtractor turns a source PDF (dashboard or bulletin) into plain text for the extraction prompt
type PDFExtractor interface {
	// ExtractFile returns the text of every page, separated by page markers
	ExtractFile(ctx context.Context, path string) (string, error)

	// ExtractPages returns the text page by page
	ExtractPages(ctx context.Context, path string) ([]PDFPageContent, error)
}
