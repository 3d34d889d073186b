package main

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/iota-uz/orgflow/modules/orgchart/domain/record"
)

func openCSV(path string) (*csv.Reader, func() error, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	br := bufio.NewReader(f)
	br = stripUTF8BOM(br)

	r := csv.NewReader(br)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = false
	return r, f.Close, nil
}

func stripUTF8BOM(r *bufio.Reader) *bufio.Reader {
	b, err := r.Peek(3)
	if err == nil && len(b) == 3 && b[0] == 0xEF && b[1] == 0xBB && b[2] == 0xBF {
		_, _ = r.Discard(3)
	}
	return r
}

func readHeader(r *csv.Reader) ([]string, error) {
	h, err := r.Read()
	if err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("missing header")
		}
		return nil, err
	}
	return cleanHeader(h)
}

func cleanHeader(h []string) ([]string, error) {
	for i := range h {
		h[i] = strings.TrimSpace(h[i])
		if !utf8.ValidString(h[i]) {
			return nil, fmt.Errorf("invalid header encoding")
		}
	}
	return h, nil
}

// readCSVRows returns one map per non-blank data row, keyed by header and
// tagged with its file line.
func readCSVRows(path string) ([]map[string]string, error) {
	r, closeFn, err := openCSV(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = closeFn() }()

	header, err := readHeader(r)
	if err != nil {
		return nil, err
	}
	var out []map[string]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if row, ok := rowMap(header, rec); ok {
			line, _ := r.FieldPos(0)
			row[record.SourceRowKey] = strconv.Itoa(line)
			out = append(out, row)
		}
	}
	if out == nil {
		out = []map[string]string{}
	}
	return out, nil
}

// rowMap pairs cells with header names. Cells beyond the header are ignored,
// missing cells read as empty. The first column wins on repeated headers.
func rowMap(header, cells []string) (map[string]string, bool) {
	row := make(map[string]string, len(header))
	blank := true
	for i, name := range header {
		if name == "" {
			continue
		}
		if _, dup := row[name]; dup {
			continue
		}
		v := ""
		if i < len(cells) {
			v = cells[i]
		}
		if strings.TrimSpace(v) != "" {
			blank = false
		}
		row[name] = v
	}
	return row, !blank
}
