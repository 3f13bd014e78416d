package table_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/book-expert/seta-tts/internal/core"
	"github.com/book-expert/seta-tts/internal/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Parallel()

	data := []byte(" text ;name\r\nNext stop;stop1\r\nP.zza Duomo;duomo\r\n")

	parsed, err := table.Parse(data, table.DefaultDelimiter)
	require.NoError(t, err)

	assert.Equal(t, []string{"text", "name"}, parsed.Columns)
	require.Equal(t, 2, parsed.Len())
	assert.Equal(t, core.Row{"text": "Next stop", "name": "stop1"}, parsed.Rows[0])
	assert.Equal(t, core.Row{"text": "P.zza Duomo", "name": "duomo"}, parsed.Rows[1])
}

func TestParse_ShortRowsAndDuplicates(t *testing.T) {
	t.Parallel()

	data := []byte("a;b;a;c\n1;2;3\n4\n")

	parsed, err := table.Parse(data, ';')
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c"}, parsed.Columns)
	assert.Equal(t, core.Row{"a": "1", "b": "2", "c": ""}, parsed.Rows[0])
	assert.Equal(t, core.Row{"a": "4", "b": "", "c": ""}, parsed.Rows[1])
}

func TestParse_QuotedCells(t *testing.T) {
	t.Parallel()

	data := []byte("text,name\n\"Hello, world\",greet\nsay \"hi\",hi\n")

	parsed, err := table.Parse(data, ',')
	require.NoError(t, err)

	require.Equal(t, 2, parsed.Len())
	assert.Equal(t, "Hello, world", parsed.Rows[0]["text"])
	assert.Equal(t, `say "hi"`, parsed.Rows[1]["text"])
}

func TestParse_HeaderOnly(t *testing.T) {
	t.Parallel()

	parsed, err := table.Parse([]byte("text;name\n"), ';')
	require.NoError(t, err)

	assert.Equal(t, 0, parsed.Len())
	assert.Equal(t, []string{"text", "name"}, parsed.Columns)
}

func TestParse_Empty(t *testing.T) {
	t.Parallel()

	_, err := table.Parse([]byte("  \r\n "), ';')
	require.ErrorIs(t, err, table.ErrNoHeader)
}

func TestLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "stops.csv")
	require.NoError(t, os.WriteFile(path, []byte("text;name\nNext stop;stop1\n"), 0o600))

	parsed, err := table.Load(path, ';')
	require.NoError(t, err)
	assert.Equal(t, 1, parsed.Len())

	_, err = table.Load(filepath.Join(t.TempDir(), "missing.csv"), ';')
	require.Error(t, err)
}

func TestParseDelimiter(t *testing.T) {
	t.Parallel()

	delimiter, err := table.ParseDelimiter("")
	require.NoError(t, err)
	assert.Equal(t, ';', delimiter)

	delimiter, err = table.ParseDelimiter("\t")
	require.NoError(t, err)
	assert.Equal(t, '\t', delimiter)

	_, err = table.ParseDelimiter(";;")
	require.ErrorIs(t, err, table.ErrInvalidDelimiter)
}
