// Package table loads the delimited source table whose rows drive a batch run.
package table

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/book-expert/seta-tts/internal/core"
)

// DefaultDelimiter separates cells when none is configured.
const DefaultDelimiter = ';'

var (
	// ErrNoHeader indicates an input without a header row.
	ErrNoHeader = errors.New("table has no header row")
	// ErrInvalidDelimiter indicates a delimiter that is not a single character.
	ErrInvalidDelimiter = errors.New("delimiter must be a single character")
)

const (
	errFmtReadTable  = "failed to read table %s: %w"
	errFmtParseTable = "failed to parse table: %w"
	errFmtDelimiter  = "%w: %q"
)

// Table is a parsed source table. Rows keep source order.
type Table struct {
	Columns []string
	Rows    []core.Row
}

// Len returns the number of data rows.
func (t Table) Len() int {
	return len(t.Rows)
}

// ParseDelimiter converts a configured delimiter string to a rune. An empty
// string selects DefaultDelimiter.
func ParseDelimiter(value string) (rune, error) {
	if value == "" {
		return DefaultDelimiter, nil
	}

	if utf8.RuneCountInString(value) != 1 {
		return 0, fmt.Errorf(errFmtDelimiter, ErrInvalidDelimiter, value)
	}

	delimiter, _ := utf8.DecodeRuneInString(value)

	return delimiter, nil
}

// Load reads and parses the table at path.
func Load(path string, delimiter rune) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Table{}, fmt.Errorf(errFmtReadTable, path, err)
	}

	return Parse(data, delimiter)
}

// Parse reads a header row followed by data rows. Header names are trimmed and
// duplicates keep their first occurrence; missing trailing cells become "".
func Parse(data []byte, delimiter rune) (Table, error) {
	normalized := bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))
	normalized = bytes.ReplaceAll(normalized, []byte("\r"), []byte("\n"))
	normalized = bytes.TrimPrefix(normalized, []byte("\ufeff"))
	normalized = bytes.TrimSpace(normalized)

	if len(normalized) == 0 {
		return Table{}, ErrNoHeader
	}

	reader := csv.NewReader(bytes.NewReader(normalized))
	reader.Comma = delimiter
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return Table{}, fmt.Errorf(errFmtParseTable, err)
	}

	header := records[0]
	columns := make([]string, 0, len(header))
	positions := make(map[string]int, len(header))

	for i, raw := range header {
		name := strings.TrimSpace(raw)
		if name == "" {
			continue
		}

		if _, seen := positions[name]; seen {
			continue
		}

		positions[name] = i
		columns = append(columns, name)
	}

	if len(columns) == 0 {
		return Table{}, ErrNoHeader
	}

	rows := make([]core.Row, 0, len(records)-1)

	for _, record := range records[1:] {
		row := make(core.Row, len(columns))

		for _, name := range columns {
			position := positions[name]
			if position < len(record) {
				row[name] = record[position]
			} else {
				row[name] = ""
			}
		}

		rows = append(rows, row)
	}

	return Table{Columns: columns, Rows: rows}, nil
}
