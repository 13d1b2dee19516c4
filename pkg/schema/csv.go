package schema

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

var ErrEmptyTable = errors.New("table has no header row")

// ReadCSV loads a delimited table. The delimiter is detected from the header
// line among comma, semicolon and tab. Plain numbers become float64, blank
// cells become nil and everything else stays a string. maxRows <= 0 reads all.
func ReadCSV(r io.Reader, maxRows int) (ResultSet, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(4096)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return ResultSet{}, err
	}

	cr := csv.NewReader(br)
	cr.Comma = detectDelimiter(string(head))
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return ResultSet{}, ErrEmptyTable
	}
	if err != nil {
		return ResultSet{}, fmt.Errorf("read header: %w", err)
	}
	columns := make([]string, len(header))
	for i, h := range header {
		columns[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if columns[i] == "" {
			columns[i] = fmt.Sprintf("column_%d", i+1)
		}
	}

	var rows []Row
	for maxRows <= 0 || len(rows) < maxRows {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return ResultSet{}, fmt.Errorf("read row %d: %w", len(rows)+1, err)
		}
		row := make(Row, len(columns))
		for i, col := range columns {
			if i < len(record) {
				row[col] = cell(record[i])
			} else {
				row[col] = nil
			}
		}
		rows = append(rows, row)
	}
	return NewResultSet(columns, rows), nil
}

func detectDelimiter(head string) rune {
	line := head
	if i := strings.IndexAny(head, "\r\n"); i >= 0 {
		line = head[:i]
	}
	best, bestCount := ',', strings.Count(line, ",")
	for _, d := range []rune{';', '\t'} {
		if n := strings.Count(line, string(d)); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}

func cell(raw string) interface{} {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}
