package feed

import (
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/unicode/norm"
)

const DefaultSummaryLength = 200

// ExtractSummary reduces an HTML fragment to plain text of at most maxLength
// characters. It prefers to cut on a word boundary and falls back to a hard
// cut when the last boundary would drop more than half of the allowance.
func ExtractSummary(html string, maxLength int) string {
	if maxLength <= 0 {
		maxLength = DefaultSummaryLength
	}

	text := norm.NFC.String(collapseWhitespace(plainText(html)))

	runes := []rune(text)
	if len(runes) <= maxLength {
		return text
	}

	cut := runes[:maxLength]
	if unicode.IsSpace(runes[maxLength]) {
		return strings.TrimRightFunc(string(cut), unicode.IsSpace)
	}

	boundary := -1
	for i := len(cut) - 1; i >= 0; i-- {
		if unicode.IsSpace(cut[i]) {
			boundary = i
			break
		}
	}

	if boundary >= maxLength/2 {
		cut = cut[:boundary]
	}

	return strings.TrimRightFunc(string(cut), unicode.IsSpace)
}

func plainText(html string) string {
	if strings.TrimSpace(html) == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}

	doc.Find("script, style, noscript").Remove()
	// Block elements and line breaks must not glue neighbouring words together.
	doc.Find("br, p, div, li, h1, h2, h3, h4, h5, h6, blockquote, pre, tr, td, th, figcaption").Each(func(_ int, s *goquery.Selection) {
		s.AfterHtml(" ")
	})

	return doc.Text()
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
