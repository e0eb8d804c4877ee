package extract

import (
	"encoding/csv"
	"errors"
	"io"
	"strings"
	"unicode/utf8"
)

// PlainText handles .txt and .md
type PlainText struct{}

// Extensions implements Extractor
func (PlainText) Extensions() []string {
	return []string{".txt", ".md"}
}

// Extract implements Extractor
func (PlainText) Extract(content []byte, filename string) (*Document, error) {
	return &Document{
		Content:    decodeText(content),
		SourceType: "text",
		Metadata:   map[string]interface{}{},
	}, nil
}

// CSV renders a CSV file as a markdown table
type CSV struct{}

// Extensions implements Extractor
func (CSV) Extensions() []string {
	return []string{".csv"}
}

// Extract implements Extractor
func (CSV) Extract(content []byte, filename string) (*Document, error) {
	r := csv.NewReader(strings.NewReader(decodeText(content)))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var records [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, corrupt(filename, "failed to parse CSV file", err)
		}
		records = append(records, rec)
	}
	if len(records) == 0 {
		return nil, corrupt(filename, "failed to parse CSV file: no columns to parse", nil)
	}

	return &Document{
		Content:    markdownTable(records[0], records[1:]),
		SourceType: "csv",
		Metadata: map[string]interface{}{
			"row_count":    len(records) - 1,
			"column_count": len(records[0]),
		},
	}, nil
}

// decodeText reads UTF-8 and falls back to Latin-1, where every byte is a code point
func decodeText(content []byte) string {
	if utf8.Valid(content) {
		return string(content)
	}
	runes := make([]rune, len(content))
	for i, b := range content {
		runes[i] = rune(b)
	}
	return string(runes)
}

// markdownTable renders a header and rows, padding short rows
func markdownTable(header []string, rows [][]string) string {
	width := len(header)
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}

	var b strings.Builder
	writeRow := func(cells []string) {
		b.WriteString("|")
		for i := 0; i < width; i++ {
			cell := ""
			if i < len(cells) {
				cell = escapeCell(cells[i])
			}
			b.WriteString(" ")
			b.WriteString(cell)
			b.WriteString(" |")
		}
		b.WriteString("\n")
	}

	writeRow(header)
	b.WriteString("|")
	b.WriteString(strings.Repeat("---|", width))
	b.WriteString("\n")
	for _, row := range rows {
		writeRow(row)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	s = strings.ReplaceAll(s, "\r\n", " ")
	return strings.ReplaceAll(s, "\n", " ")
}
