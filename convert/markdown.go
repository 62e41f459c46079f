package convert

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jung-kurt/gofpdf"
	"github.com/russross/blackfriday/v2"
	"golang.org/x/net/html"
)

// MarkdownConverter renders markdown documents to PDF natively, without the
// office suite round trip: markdown -> HTML -> walked DOM -> typeset pages.
type MarkdownConverter struct {
	headingFont string
	textFont    string
}

func NewMarkdownConverter() *MarkdownConverter {
	return &MarkdownConverter{
		headingFont: "Arial",
		textFont:    "Times",
	}
}

func (c *MarkdownConverter) Accepts(ext string) bool {
	return ext == ".md" || ext == ".markdown"
}

func (c *MarkdownConverter) Convert(ctx context.Context, src, outDir string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	content, err := os.ReadFile(src)
	if err != nil {
		return "", fmt.Errorf("convert: reading %s: %w", src, err)
	}

	doc, err := html.Parse(bytes.NewReader(blackfriday.Run(content)))
	if err != nil {
		return "", fmt.Errorf("convert: parsing markdown output: %w", err)
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont(c.textFont, "", 12)

	r := &markdownTypesetter{pdf: pdf, headingFont: c.headingFont, textFont: c.textFont}
	r.render(doc)

	produced := filepath.Join(outDir, pdfName(src))
	if err := pdf.OutputFileAndClose(produced); err != nil {
		return "", fmt.Errorf("convert: writing %s: %w", produced, err)
	}
	return produced, nil
}

type markdownTypesetter struct {
	pdf         *gofpdf.Fpdf
	headingFont string
	textFont    string
}

func (t *markdownTypesetter) render(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		text := collapseSpace(n.Data)
		if strings.TrimSpace(text) != "" {
			t.pdf.Write(5, text)
		}
		return
	case html.ElementNode:
		switch n.Data {
		case "h1":
			t.pdf.SetFont(t.headingFont, "B", 24)
			t.renderChildren(n)
			t.pdf.Ln(12)
			t.body()
		case "h2":
			t.pdf.Ln(8)
			t.pdf.SetFont(t.headingFont, "B", 18)
			t.renderChildren(n)
			t.pdf.Ln(8)
			t.body()
		case "h3", "h4":
			t.pdf.Ln(6)
			t.pdf.SetFont(t.headingFont, "B", 14)
			t.renderChildren(n)
			t.pdf.Ln(6)
			t.body()
		case "p":
			t.body()
			t.renderChildren(n)
			t.pdf.Ln(8)
		case "em":
			t.pdf.SetFont(t.textFont, "I", 12)
			t.renderChildren(n)
			t.body()
		case "strong":
			t.pdf.SetFont(t.textFont, "B", 12)
			t.renderChildren(n)
			t.body()
		case "ul", "ol":
			t.pdf.Ln(3)
			t.renderChildren(n)
			t.pdf.Ln(3)
		case "li":
			t.pdf.SetX(t.pdf.GetX() + 6)
			t.pdf.Write(5, "• ")
			t.renderChildren(n)
			t.pdf.Ln(5)
		case "code", "pre":
			t.pdf.SetFont("Courier", "", 11)
			t.renderChildren(n)
			t.body()
			if n.Data == "pre" {
				t.pdf.Ln(6)
			}
		default:
			t.renderChildren(n)
		}
		return
	}
	t.renderChildren(n)
}

func (t *markdownTypesetter) renderChildren(n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		t.render(c)
	}
}

func (t *markdownTypesetter) body() {
	t.pdf.SetFont(t.textFont, "", 12)
}

func collapseSpace(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return s
	}
	out := strings.Join(fields, " ")
	if strings.HasPrefix(s, " ") || strings.HasPrefix(s, "\n") {
		out = " " + out
	}
	if strings.HasSuffix(s, " ") || strings.HasSuffix(s, "\n") {
		out = out + " "
	}
	return out
}
