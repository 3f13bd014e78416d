package text

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"github.com/valyala/fastjson"
)

// ErrMalformedTable indicates a pronunciation table that is not a JSON object of strings.
var ErrMalformedTable = errors.New("malformed pronunciation table")

const (
	errFmtReadTable   = "failed to read pronunciation table %s: %w"
	errFmtParseTable  = "%w: %v"
	errFmtTableObject = "%w: top-level value must be an object"
	errFmtTableValue  = "%w: value of %q must be a string"
)

//go:embed resources/pronunciation.json
var defaultTableJSON []byte

// Entry is one abbreviation and the text it is spoken as.
type Entry struct {
	Abbreviation string
	Expansion    string
}

// Table is an ordered pronunciation table. Order is the document order of the
// source resource; expansion applies the first matching entry.
type Table []Entry

// Len returns the number of entries.
func (t Table) Len() int {
	return len(t)
}

// LoadTable reads and parses the pronunciation table stored at path.
func LoadTable(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf(errFmtReadTable, path, err)
	}

	return ParseTable(data)
}

// DefaultTable parses the pronunciation table embedded in the binary.
func DefaultTable() (Table, error) {
	return ParseTable(defaultTableJSON)
}

// ParseTable parses a JSON object mapping abbreviations to expansions, keeping
// the key order of the document. Entries with an empty abbreviation are dropped.
func ParseTable(data []byte) (Table, error) {
	var parser fastjson.Parser

	value, err := parser.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf(errFmtParseTable, ErrMalformedTable, err)
	}

	object, err := value.Object()
	if err != nil {
		return nil, fmt.Errorf(errFmtTableObject, ErrMalformedTable)
	}

	table := make(Table, 0, object.Len())

	var visitErr error

	object.Visit(func(key []byte, v *fastjson.Value) {
		if visitErr != nil {
			return
		}

		expansion, stringErr := v.StringBytes()
		if stringErr != nil {
			visitErr = fmt.Errorf(errFmtTableValue, ErrMalformedTable, string(key))

			return
		}

		if len(key) == 0 {
			return
		}

		table = append(table, Entry{Abbreviation: string(key), Expansion: string(expansion)})
	})

	if visitErr != nil {
		return nil, visitErr
	}

	return table, nil
}
