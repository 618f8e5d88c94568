// Package render provides an optional PDF export of a synthesized answer.
// Not part of the core; a convenience export wired into cmd/docsearch's
// --render-pdf flag.
package render

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"github.com/arcturian/docsearch/internal/searchengine"
)

var linkRe = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`) // [text](url)

const (
	bodyFont = "Helvetica"
	codeFont = "Courier"
	bodySize = 11.0
	codeSize = 9.0
	lineHt   = 5.0
)

// WriteSimplePDF renders a search Result's synthesized answer to a minimal
// PDF at outPath. The synthesizer is instructed to preserve code blocks and
// API signatures, so fenced blocks render in a monospace face instead of
// being reflowed as prose; headings, bullet items, and markdown links carry
// through, and a citations footer is appended from result.Sources and
// result.PagesExplored — the same provenance stats cmd/docsearch prints to
// stderr after a search.
func WriteSimplePDF(result searchengine.Result, outPath string) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont(bodyFont, "", bodySize)
	pdf.AddPage()

	writeAnswerBody(pdf, result.Content)
	writeCitationsFooter(pdf, result)

	return pdf.OutputFileAndClose(outPath)
}

// inlineSpan is one run of answer text, optionally carrying a link target.
type inlineSpan struct {
	text string
	href string
}

// splitInline decomposes a prose line into spans at markdown link
// boundaries. Fragment-only targets degrade to plain text since a flat PDF
// has no in-document anchors to point them at.
func splitInline(s string) []inlineSpan {
	var spans []inlineSpan
	pos := 0
	for _, m := range linkRe.FindAllStringSubmatchIndex(s, -1) {
		if m[0] > pos {
			spans = append(spans, inlineSpan{text: s[pos:m[0]]})
		}
		text, href := s[m[2]:m[3]], s[m[4]:m[5]]
		if strings.HasPrefix(href, "#") {
			href = ""
		}
		spans = append(spans, inlineSpan{text: text, href: href})
		pos = m[1]
	}
	if pos < len(s) {
		spans = append(spans, inlineSpan{text: s[pos:]})
	}
	return spans
}

// headingLevel returns the markdown heading depth of a trimmed line, or 0
// when the line is not a heading.
func headingLevel(s string) int {
	level := 0
	for level < len(s) && s[level] == '#' {
		level++
	}
	if level == 0 || level >= len(s) || s[level] != ' ' {
		return 0
	}
	return level
}

func writeAnswerBody(pdf *gofpdf.Fpdf, markdown string) {
	inCode := false
	for _, line := range strings.Split(markdown, "\n") {
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "```") {
			inCode = !inCode
			pdf.Ln(2)
			continue
		}
		if inCode {
			// Untrimmed: indentation inside a code block is significant.
			pdf.SetFont(codeFont, "", codeSize)
			pdf.MultiCell(0, 4, line, "", "L", false)
			pdf.SetFont(bodyFont, "", bodySize)
			continue
		}

		if trimmed == "" {
			pdf.Ln(lineHt)
			continue
		}

		if level := headingLevel(trimmed); level > 0 {
			size := bodySize + 1
			switch level {
			case 1:
				size = 15
			case 2:
				size = 13
			}
			pdf.SetFont(bodyFont, "B", size)
			pdf.MultiCell(0, size*0.6, strings.TrimSpace(trimmed[level:]), "", "L", false)
			pdf.SetFont(bodyFont, "", bodySize)
			continue
		}

		text := trimmed
		if strings.HasPrefix(trimmed, "- ") || strings.HasPrefix(trimmed, "* ") {
			pdf.Write(lineHt, "  • ")
			text = trimmed[2:]
		}
		for _, sp := range splitInline(text) {
			if sp.href == "" {
				pdf.Write(lineHt, sp.text)
			} else {
				pdf.WriteLinkString(lineHt, sp.text, sp.href)
			}
		}
		pdf.Ln(lineHt + 1)
	}
}

// writeCitationsFooter appends the sources and exploration stats that
// cmd/docsearch already prints to stderr after a search (main.go's
// "pages_explored=..." line), so the PDF carries the same provenance as
// the console output instead of being a bare rendering of the answer text.
func writeCitationsFooter(pdf *gofpdf.Fpdf, result searchengine.Result) {
	if len(result.Sources) == 0 && result.PagesExplored == 0 {
		return
	}
	pdf.Ln(8)
	pdf.SetFont(bodyFont, "B", 12)
	pdf.CellFormat(0, 8, "Sources", "", 1, "L", false, 0, "")
	pdf.SetFont(bodyFont, "", 10)
	pdf.MultiCell(0, lineHt, fmt.Sprintf("Pages explored: %d", result.PagesExplored), "", "L", false)
	for i, src := range result.Sources {
		pdf.WriteLinkString(lineHt, fmt.Sprintf("%d. %s", i+1, src), src)
		pdf.Ln(lineHt + 1)
	}
}
