package htmltext

import (
	"bytes"
	"errors"
	"io"
	"strings"

	"golang.org/x/net/html"
)

var skipped = map[string]struct{}{
	"script":   {},
	"style":    {},
	"noscript": {},
	"head":     {},
}

var blocks = map[string]struct{}{
	"p": {}, "div": {}, "section": {}, "article": {}, "li": {}, "tr": {},
	"h1": {}, "h2": {}, "h3": {}, "h4": {}, "h5": {}, "h6": {},
	"br": {}, "table": {}, "ul": {}, "ol": {}, "blockquote": {},
}

type Parser struct{}

func New() *Parser {
	return &Parser{}
}

// Parse strips markup and emits a blank line at block element boundaries.
func (p *Parser) Parse(raw []byte) (string, error) {
	z := html.NewTokenizer(bytes.NewReader(raw))

	paragraphs := make([]string, 0)
	var current strings.Builder
	flush := func() {
		text := strings.Join(strings.Fields(current.String()), " ")
		if text != "" {
			paragraphs = append(paragraphs, text)
		}
		current.Reset()
	}

	depth := 0
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if err := z.Err(); !errors.Is(err, io.EOF) {
				return "", err
			}
			flush()
			return strings.Join(paragraphs, "\n\n"), nil
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if _, ok := skipped[tag]; ok {
				if tt == html.StartTagToken {
					depth++
				}
				continue
			}
			if _, ok := blocks[tag]; ok {
				flush()
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if _, ok := skipped[tag]; ok {
				if depth > 0 {
					depth--
				}
				continue
			}
			if _, ok := blocks[tag]; ok {
				flush()
			}
		case html.TextToken:
			if depth == 0 {
				current.Write(z.Text())
				current.WriteByte(' ')
			}
		}
	}
}
