package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Word handles Office Open XML documents (.docx)
type Word struct{}

// Extensions implements Extractor
func (Word) Extensions() []string {
	return []string{".docx"}
}

// Extract implements Extractor
func (Word) Extract(content []byte, filename string) (*Document, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, corrupt(filename, "failed to read Word document", err)
	}

	var body *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			body = f
			break
		}
	}
	if body == nil {
		return nil, corrupt(filename, "failed to read Word document: word/document.xml is missing", nil)
	}

	rc, err := body.Open()
	if err != nil {
		return nil, corrupt(filename, "failed to read Word document", err)
	}
	defer rc.Close()

	blocks, tables, err := parseDocumentXML(rc)
	if err != nil {
		return nil, corrupt(filename, "failed to read Word document", err)
	}

	return &Document{
		Content:    strings.Join(blocks, "\n\n"),
		SourceType: "docx",
		Metadata: map[string]interface{}{
			"table_count": tables,
		},
	}, nil
}

type docxParser struct {
	blocks []string
	tables int

	para  strings.Builder
	style string
	inT   bool

	depth int
	rows  [][]string
	row   []string
	cell  strings.Builder
}

// parseDocumentXML returns paragraphs and tables in document order
func parseDocumentXML(r io.Reader) ([]string, int, error) {
	dec := xml.NewDecoder(r)
	p := &docxParser{}

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, 0, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			p.start(t)
		case xml.EndElement:
			p.end(t)
		case xml.CharData:
			if p.inT {
				p.para.Write(t)
			}
		}
	}

	if p.depth != 0 {
		return nil, 0, fmt.Errorf("unterminated table")
	}
	return p.blocks, p.tables, nil
}

func (p *docxParser) start(t xml.StartElement) {
	switch t.Name.Local {
	case "tbl":
		p.depth++
		if p.depth == 1 {
			p.rows = nil
		}
	case "tr":
		if p.depth == 1 {
			p.row = nil
		}
	case "tc":
		if p.depth == 1 {
			p.cell.Reset()
		}
	case "p":
		p.para.Reset()
		p.style = ""
	case "pStyle":
		for _, a := range t.Attr {
			if a.Name.Local == "val" {
				p.style = a.Value
			}
		}
	case "t":
		p.inT = true
	case "tab":
		p.para.WriteString("\t")
	case "br", "cr":
		p.para.WriteString("\n")
	}
}

func (p *docxParser) end(t xml.EndElement) {
	switch t.Name.Local {
	case "t":
		p.inT = false
	case "p":
		text := p.para.String()
		if p.depth > 0 {
			text = strings.TrimSpace(text)
			if text != "" {
				if p.cell.Len() > 0 {
					p.cell.WriteString(" ")
				}
				p.cell.WriteString(text)
			}
			return
		}
		if level, ok := headingLevel(p.style); ok {
			p.blocks = append(p.blocks, strings.Repeat("#", level)+" "+text)
		} else if strings.TrimSpace(text) != "" {
			p.blocks = append(p.blocks, text)
		}
	case "tc":
		if p.depth == 1 {
			p.row = append(p.row, p.cell.String())
		}
	case "tr":
		if p.depth == 1 {
			p.rows = append(p.rows, p.row)
		}
	case "tbl":
		if p.depth == 1 && len(p.rows) > 0 {
			p.blocks = append(p.blocks, markdownTable(p.rows[0], p.rows[1:]))
			p.tables++
		}
		p.depth--
	}
}

// headingLevel maps style ids such as "Heading2" or "Heading 2" to a level
func headingLevel(style string) (int, bool) {
	if style == "Title" {
		return 1, true
	}
	if !strings.HasPrefix(style, "Heading") {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(style, "Heading")))
	if err != nil || n < 1 {
		return 1, true
	}
	if n > 6 {
		n = 6
	}
	return n, true
}
