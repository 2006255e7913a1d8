// Package pdf reads the text layer of the source PDFs (dashboard and
// bulletin) with pdfcpu so it can be handed to the extraction prompt.
package pdf

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/macrolens/internal/interfaces"
)

// Extractor implements the PDFExtractor interface using pdfcpu
type Extractor struct {
	logger arbor.ILogger
}

var _ interfaces.PDFExtractor = (*Extractor)(nil)

// NewExtractor creates a new PDF extractor
func NewExtractor(logger arbor.ILogger) *Extractor {
	return &Extractor{logger: logger}
}

// ExtractFile returns the text of all pages joined with page markers
func (e *Extractor) ExtractFile(ctx context.Context, path string) (string, error) {
	pages, err := e.ExtractPages(ctx, path)
	if err != nil {
		return "", err
	}
	return JoinPages(pages), nil
}

// ExtractPages extracts the content stream of every page and decodes its text operators
func (e *Extractor) ExtractPages(ctx context.Context, path string) ([]interfaces.PDFPageContent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pdfCtx, err := api.ReadContextFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF %s: %w", path, err)
	}

	outDir, err := os.MkdirTemp("", "macrolens-pdf-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	conf := model.NewDefaultConfiguration()
	if err := api.ExtractContentFile(path, outDir, nil, conf); err != nil {
		return nil, fmt.Errorf("failed to extract PDF content from %s: %w", path, err)
	}

	streams, err := readContentFiles(outDir)
	if err != nil {
		return nil, err
	}

	pages := make([]interfaces.PDFPageContent, 0, pdfCtx.PageCount)
	chars := 0
	for n := 1; n <= pdfCtx.PageCount; n++ {
		text := ContentText(streams[n])
		chars += len(text)
		pages = append(pages, interfaces.PDFPageContent{PageNumber: n, Text: text})
	}

	e.logger.Debug().
		Str("path", path).
		Int("page_count", pdfCtx.PageCount).
		Int("chars", chars).
		Msg("Extracted PDF text")

	return pages, nil
}

// readContentFiles maps page number to content stream. pdfcpu names the
// files "<base>_Content_page_<n>.txt" (with an extra "_<i>" for multiple streams).
func readContentFiles(dir string) (map[int]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read extracted content: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	streams := make(map[int]string)
	for _, name := range names {
		page, ok := pageOf(name)
		if !ok {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		streams[page] += string(data) + "\n"
	}
	return streams, nil
}

func pageOf(name string) (int, bool) {
	i := strings.LastIndex(name, "Content_page_")
	if i < 0 {
		return 0, false
	}
	var page int
	if _, err := fmt.Sscanf(name[i:], "Content_page_%d", &page); err != nil {
		return 0, false
	}
	return page, true
}

// JoinPages concatenates page texts with "--- Page N ---" separators
func JoinPages(pages []interfaces.PDFPageContent) string {
	var b strings.Builder
	for i, page := range pages {
		if i > 0 {
			fmt.Fprintf(&b, "\n\n--- Page %d ---\n\n", page.PageNumber)
		}
		b.WriteString(page.Text)
	}
	return b.String()
}
