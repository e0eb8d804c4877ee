package extract

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/segmentio/parquet-go"
)

const parquetBatchSize = 128

// Parquet renders the leaf columns of a Parquet file as a markdown table
type Parquet struct{}

// Extensions implements Extractor
func (Parquet) Extensions() []string {
	return []string{".parquet"}
}

// Extract implements Extractor
func (Parquet) Extract(content []byte, filename string) (doc *Document, err error) {
	// parquet-go panics on some malformed pages
	defer func() {
		if r := recover(); r != nil {
			doc, err = nil, corrupt(filename, "failed to read Parquet file", fmt.Errorf("%v", r))
		}
	}()

	f, err := parquet.OpenFile(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, corrupt(filename, "failed to read Parquet file", err)
	}

	columns := f.Schema().Columns()
	header := make([]string, len(columns))
	for i, path := range columns {
		header[i] = strings.Join(path, ".")
	}

	var rows [][]string
	for _, rg := range f.RowGroups() {
		groupRows, err := readRowGroup(rg, len(columns))
		if err != nil {
			return nil, corrupt(filename, "failed to read Parquet file", err)
		}
		rows = append(rows, groupRows...)
	}

	return &Document{
		Content:    markdownTable(header, rows),
		SourceType: "parquet",
		Metadata: map[string]interface{}{
			"row_count":       len(rows),
			"column_count":    len(columns),
			"row_group_count": len(f.RowGroups()),
		},
	}, nil
}

func readRowGroup(rg parquet.RowGroup, width int) ([][]string, error) {
	reader := rg.Rows()
	defer reader.Close()

	var out [][]string
	buf := make([]parquet.Row, parquetBatchSize)
	for {
		n, err := reader.ReadRows(buf)
		for _, row := range buf[:n] {
			out = append(out, formatRow(row, width))
		}
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return out, nil
		}
	}
}

// formatRow groups values by leaf column; repeated values are joined
func formatRow(row parquet.Row, width int) []string {
	cells := make([][]string, width)
	for _, v := range row {
		col := v.Column()
		if col < 0 || col >= width || v.IsNull() {
			continue
		}
		cells[col] = append(cells[col], v.String())
	}

	out := make([]string, width)
	for i, values := range cells {
		out[i] = strings.Join(values, ", ")
	}
	return out
}
