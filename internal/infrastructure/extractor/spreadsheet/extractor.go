package spreadsheet

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

type Parser struct{}

func New() *Parser {
	return &Parser{}
}

// Parse renders every sheet as one paragraph per row, cells joined by
// " | ", with a blank line between rows so each row can be packed
// independently by the chunker.
func (p *Parser) Parse(raw []byte) (string, error) {
	book, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("open workbook: %w", err)
	}
	defer book.Close()

	paragraphs := make([]string, 0)
	for _, sheet := range book.GetSheetList() {
		rows, err := book.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("read sheet %s: %w", sheet, err)
		}
		for _, row := range rows {
			cells := make([]string, 0, len(row))
			for _, cell := range row {
				if cell = strings.TrimSpace(cell); cell != "" {
					cells = append(cells, cell)
				}
			}
			if len(cells) == 0 {
				continue
			}
			paragraphs = append(paragraphs, sheet+": "+strings.Join(cells, " | "))
		}
	}
	return strings.Join(paragraphs, "\n\n"), nil
}
