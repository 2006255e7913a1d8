package report

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/ternarybob/macrolens/internal/models"
	"github.com/yuin/goldmark/ast"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

const (
	pdfFont       = "Arial"
	pdfBodySize   = 9.0
	pdfLineHeight = 5.0
	pdfPageWidth  = 190.0 // A4 minus 10mm margins
	pdfPageBottom = 297.0 - 15.0

	tableFontSize   = 8.0
	tableLineHeight = 4.0
	tableMaxLines   = 8
	tableMinCol     = 12.0
)

// RenderPDF renders the run's markdown document to PDF bytes.
func (r *Renderer) RenderPDF(run *models.AuditRun) ([]byte, error) {
	source := []byte(r.Markdown(run))
	doc := r.md.Parser().Parse(text.NewReader(source))

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(r.Title(run), true)
	pdf.SetCreator("macrolens", true)
	pdf.SetMargins(10, 10, 10)
	pdf.SetAutoPageBreak(true, 297.0-pdfPageBottom)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont(pdfFont, "I", 7)
		pdf.SetTextColor(127, 140, 141)
		pdf.CellFormat(pdfPageWidth-20, 4, tr(DisclaimerNotice), "", 0, "L", false, 0, "")
		pdf.CellFormat(20, 4, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "R", false, 0, "")
		pdf.SetTextColor(0, 0, 0)
	})
	pdf.AddPage()
	pdf.SetFont(pdfFont, "", pdfBodySize)

	w := &pdfWriter{
		pdf:    pdf,
		source: source,
		tr:     tr,
	}
	if err := ast.Walk(doc, w.walk); err != nil {
		return nil, fmt.Errorf("failed to lay out PDF: %w", err)
	}

	pdf.Ln(pdfLineHeight)
	pdf.SetFont(pdfFont, "I", 7)
	pdf.SetTextColor(127, 140, 141)
	for _, line := range []string{disclaimerSources, disclaimerAdvice, disclaimerErrors} {
		pdf.MultiCell(pdfPageWidth, 3.5, tr(line), "", "L", false)
	}
	pdf.SetTextColor(0, 0, 0)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		r.logger.Error().Err(err).Str("run_id", run.ID).Msg("Failed to generate PDF output")
		return nil, fmt.Errorf("failed to generate PDF output: %w", err)
	}

	r.logger.Debug().
		Str("run_id", run.ID).
		Int("pdf_size", buf.Len()).
		Msg("PDF report rendered")
	return buf.Bytes(), nil
}

// pdfWriter walks a goldmark AST and writes it with fpdf core fonts.
type pdfWriter struct {
	pdf       *fpdf.Fpdf
	source    []byte
	tr        func(string) string
	bold      bool
	italic    bool
	listDepth int
}

func (w *pdfWriter) setFont() {
	style := ""
	if w.bold {
		style += "B"
	}
	if w.italic {
		style += "I"
	}
	w.pdf.SetFont(pdfFont, style, pdfBodySize)
}

func (w *pdfWriter) write(s string) {
	w.pdf.Write(pdfLineHeight, w.tr(s))
}

func (w *pdfWriter) walk(n ast.Node, entering bool) (ast.WalkStatus, error) {
	switch node := n.(type) {
	case *ast.Heading:
		w.heading(node, entering)
	case *ast.Paragraph, *ast.TextBlock:
		if !entering {
			w.pdf.Ln(pdfLineHeight + 2)
		}
	case *ast.Text:
		if entering {
			w.write(string(node.Segment.Value(w.source)))
			if node.SoftLineBreak() {
				w.write(" ")
			}
			if node.HardLineBreak() {
				w.pdf.Ln(pdfLineHeight)
			}
		}
	case *ast.Emphasis:
		if node.Level == 2 {
			w.bold = entering
		} else {
			w.italic = entering
		}
		w.setFont()
	case *ast.CodeSpan:
		if entering {
			w.pdf.SetFont("Courier", "", pdfBodySize)
			w.write(string(node.Text(w.source)))
			w.setFont()
		}
		return ast.WalkSkipChildren, nil
	case *ast.FencedCodeBlock:
		if entering {
			w.codeBlock(node.Lines())
		}
		return ast.WalkSkipChildren, nil
	case *ast.CodeBlock:
		if entering {
			w.codeBlock(node.Lines())
		}
		return ast.WalkSkipChildren, nil
	case *ast.HTMLBlock, *ast.RawHTML:
		// Section anchors have no place in print.
		return ast.WalkSkipChildren, nil
	case *ast.List:
		if entering {
			w.listDepth++
		} else {
			w.listDepth--
			if w.listDepth == 0 {
				w.pdf.Ln(2)
			}
		}
	case *ast.ListItem:
		if entering {
			w.pdf.Ln(pdfLineHeight)
			w.pdf.SetX(10 + float64(w.listDepth)*5)
			w.write("- ")
		}
	case *ast.ThematicBreak:
		if entering {
			w.pdf.Ln(2)
			w.pdf.Line(10, w.pdf.GetY(), 10+pdfPageWidth, w.pdf.GetY())
			w.pdf.Ln(3)
		}
	case *extast.Table:
		if entering {
			w.table(w.tableRows(node))
		}
		return ast.WalkSkipChildren, nil
	}
	return ast.WalkContinue, nil
}

func (w *pdfWriter) heading(n *ast.Heading, entering bool) {
	if !entering {
		w.pdf.Ln(pdfLineHeight + 1)
		w.setFont()
		return
	}
	size := 10.0
	switch n.Level {
	case 1:
		size = 14
	case 2:
		size = 12
	case 3:
		size = 11
	}
	w.pdf.Ln(4)
	w.pdf.SetFont(pdfFont, "B", size)
}

func (w *pdfWriter) codeBlock(lines *text.Segments) {
	w.pdf.Ln(2)
	w.pdf.SetFont("Courier", "", pdfBodySize)
	w.pdf.SetFillColor(245, 245, 245)
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		line := strings.TrimRight(string(seg.Value(w.source)), "\n")
		w.pdf.MultiCell(0, pdfLineHeight, w.tr(line), "", "L", true)
	}
	w.pdf.SetFillColor(255, 255, 255)
	w.setFont()
	w.pdf.Ln(2)
}

func (w *pdfWriter) tableRows(t *extast.Table) [][]string {
	var rows [][]string
	for child := t.FirstChild(); child != nil; child = child.NextSibling() {
		switch child.(type) {
		case *extast.TableHeader, *extast.TableRow:
			var row []string
			for cell := child.FirstChild(); cell != nil; cell = cell.NextSibling() {
				row = append(row, w.tr(cellText(cell, w.source)))
			}
			rows = append(rows, row)
		}
	}
	return rows
}

// cellText flattens a cell's inline children, skipping raw HTML.
func cellText(n ast.Node, source []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		case *ast.Text:
			b.Write(t.Segment.Value(source))
		case *ast.String:
			b.Write(t.Value)
		case *ast.CodeSpan:
			b.Write(t.Text(source))
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(b.String())
}

func (w *pdfWriter) table(rows [][]string) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return
	}
	cols := len(rows[0])
	widths := w.columnWidths(rows, cols)

	w.pdf.Ln(2)
	for i, row := range rows {
		style := ""
		if i == 0 {
			style = "B"
			w.pdf.SetFillColor(230, 230, 230)
		}
		w.pdf.SetFont(pdfFont, style, tableFontSize)

		wrapped := make([][]string, cols)
		lines := 1
		for j := 0; j < cols; j++ {
			cell := ""
			if j < len(row) {
				cell = row[j]
			}
			wrapped[j] = w.wrap(cell, widths[j]-2)
			if len(wrapped[j]) > lines {
				lines = len(wrapped[j])
			}
		}
		if lines > tableMaxLines {
			lines = tableMaxLines
		}

		height := float64(lines)*tableLineHeight + 2
		x, y := w.pdf.GetX(), w.pdf.GetY()
		if y+height > pdfPageBottom {
			w.pdf.AddPage()
			y = w.pdf.GetY()
		}

		cx := x
		for j := 0; j < cols; j++ {
			border := "D"
			if i == 0 {
				border = "FD"
			}
			w.pdf.Rect(cx, y, widths[j], height, border)
			w.pdf.SetXY(cx+1, y+1)
			for k, line := range wrapped[j] {
				if k == lines {
					break
				}
				if k == lines-1 && len(wrapped[j]) > lines {
					line = w.truncate(line, widths[j]-2)
				}
				w.pdf.CellFormat(widths[j]-2, tableLineHeight, line, "", 2, "L", false, 0, "")
			}
			cx += widths[j]
		}
		w.pdf.SetXY(x, y+height)
	}

	w.pdf.SetFillColor(255, 255, 255)
	w.pdf.Ln(3)
	w.setFont()
}

// columnWidths sizes columns to their widest cell, then fits them to the page.
func (w *pdfWriter) columnWidths(rows [][]string, cols int) []float64 {
	widths := make([]float64, cols)
	for i, row := range rows {
		style := ""
		if i == 0 {
			style = "B"
		}
		w.pdf.SetFont(pdfFont, style, tableFontSize)
		for j := 0; j < cols && j < len(row); j++ {
			if cw := w.pdf.GetStringWidth(row[j]) + 4; cw > widths[j] {
				widths[j] = cw
			}
		}
	}

	maxCol := pdfPageWidth / 3
	total := 0.0
	for j := range widths {
		if widths[j] < tableMinCol {
			widths[j] = tableMinCol
		}
		if widths[j] > maxCol {
			widths[j] = maxCol
		}
		total += widths[j]
	}

	var scale float64
	switch {
	case total > pdfPageWidth:
		scale = pdfPageWidth / total
	case total < pdfPageWidth*0.9:
		scale = pdfPageWidth * 0.95 / total
		if scale > 1.5 {
			scale = 1.5
		}
	default:
		return widths
	}
	for j := range widths {
		widths[j] *= scale
	}
	return widths
}

// wrap splits text into lines no wider than width at the current font.
func (w *pdfWriter) wrap(s string, width float64) []string {
	words := strings.Fields(s)
	if len(words) == 0 {
		return []string{""}
	}

	space := w.pdf.GetStringWidth(" ")
	var lines []string
	line := words[0]
	lineWidth := w.pdf.GetStringWidth(line)
	for _, word := range words[1:] {
		ww := w.pdf.GetStringWidth(word)
		if lineWidth+space+ww <= width {
			line += " " + word
			lineWidth += space + ww
			continue
		}
		lines = append(lines, line)
		line, lineWidth = word, ww
	}
	return append(lines, line)
}

func (w *pdfWriter) truncate(line string, width float64) string {
	for len(line) > 3 && w.pdf.GetStringWidth(line+"...") > width {
		line = line[:len(line)-1]
	}
	return line + "..."
}
