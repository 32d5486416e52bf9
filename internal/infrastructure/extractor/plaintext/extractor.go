package plaintext

import (
	"errors"
	"strings"
	"unicode/utf8"
)

type Parser struct{}

func New() *Parser {
	return &Parser{}
}

// Parse accepts UTF-8 text and normalises Windows line endings so blank
// lines still separate paragraphs.
func (p *Parser) Parse(raw []byte) (string, error) {
	if !utf8.Valid(raw) {
		return "", errors.New("not valid utf-8 text")
	}
	text := strings.ReplaceAll(string(raw), "\r\n", "\n")
	return strings.TrimSpace(text), nil
}
