package document

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strings"

	pdf "github.com/ledongthuc/pdf"

	"github.com/aradaody/defi-technique/internal/domain"
)

// TextExtractor reads the plain text of a document file.
type TextExtractor interface {
	Extract(ctx context.Context, path string, kind Kind) (string, error)
}

// FileTextExtractor extracts PDF text page by page and DOCX text paragraph by paragraph.
// Lines are separated by "\n".
type FileTextExtractor struct{}

var _ TextExtractor = FileTextExtractor{}

func (FileTextExtractor) Extract(ctx context.Context, path string, kind Kind) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	switch kind.DocumentType {
	case domain.DocumentTypePDF:
		return extractPDF(path)
	case domain.DocumentTypeDOCX:
		return extractDOCX(path)
	default:
		return "", nil
	}
}

func extractPDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("pdf reader: %w", err)
	}
	defer f.Close()

	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		for _, line := range pdfLines(page.Content().Text) {
			sb.WriteString(line)
			sb.WriteByte('\n')
		}
	}
	return sb.String(), nil
}

// pdfLines rebuilds text lines from positioned glyphs, top to bottom and left to right.
// Glyphs whose baselines are closer than half a font size share a line. Content() positions
// glyphs for Td, TD, T* and Tm moves alike; GetTextByRow only tracks Tm.
func pdfLines(glyphs []pdf.Text) []string {
	if len(glyphs) == 0 {
		return nil
	}
	sorted := append([]pdf.Text(nil), glyphs...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Y > sorted[j].Y })

	var (
		lines [][]pdf.Text
		cur   []pdf.Text
		lineY float64
	)
	for _, g := range sorted {
		if len(cur) > 0 && lineY-g.Y > lineTolerance(g) {
			lines = append(lines, cur)
			cur = nil
		}
		if len(cur) == 0 {
			lineY = g.Y
		}
		cur = append(cur, g)
	}
	lines = append(lines, cur)

	out := make([]string, 0, len(lines))
	for _, line := range lines {
		sort.SliceStable(line, func(i, j int) bool { return line[i].X < line[j].X })

		var sb strings.Builder
		for k, g := range line {
			if k > 0 {
				prev := line[k-1]
				gap := g.X - (prev.X + prev.W)
				if gap > lineTolerance(prev)/2 && prev.S != " " && g.S != " " {
					sb.WriteByte(' ')
				}
			}
			sb.WriteString(g.S)
		}
		out = append(out, sb.String())
	}
	return out
}

// lineTolerance half the glyph's font size, 1 point when the size is unknown.
func lineTolerance(g pdf.Text) float64 {
	if g.FontSize > 0 {
		return g.FontSize / 2
	}
	return 1
}

func extractDOCX(path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("docx container: %w", err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("docx open %s: %w", f.Name, err)
		}
		defer rc.Close()
		return docxParagraphs(rc)
	}
	return "", fmt.Errorf("docx: word/document.xml not found")
}

// docxParagraphs one line per <w:p>; <w:tab/> becomes a tab, <w:br/> and <w:cr/> a line break.
func docxParagraphs(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var (
		sb     strings.Builder
		inRun  bool
		inText bool
		paras  []string
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("docx xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "r":
				inRun = true
			case "t":
				inText = true
			case "tab":
				// tab stops in paragraph properties are also named tab
				if inRun {
					sb.WriteByte('\t')
				}
			case "br", "cr":
				if inRun {
					sb.WriteByte('\n')
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "r":
				inRun = false
			case "t":
				inText = false
			case "p":
				paras = append(paras, sb.String())
				sb.Reset()
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}
	if sb.Len() > 0 {
		paras = append(paras, sb.String())
	}
	return strings.Join(paras, "\n"), nil
}
