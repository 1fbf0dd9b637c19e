package spreadsheet

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestSupported(t *testing.T) {
	assert.True(t, Supported("data.csv"))
	assert.True(t, Supported("Data.XLSX"))
	assert.False(t, Supported("data.ods"))
	assert.False(t, Supported("data"))
}

func TestReadCSV(t *testing.T) {
	input := "email,first_name,age\nada@example.com,Ada,36\nbob@example.com,Bob\n"

	table, err := ReadReader(strings.NewReader(input), ".csv")
	require.NoError(t, err)

	assert.Equal(t, []string{"email", "first_name", "age"}, table.Headers)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, []string{"ada@example.com", "Ada", "36"}, table.Rows[0])
	// Short rows are padded to the header width.
	assert.Equal(t, []string{"bob@example.com", "Bob", ""}, table.Rows[1])
}

func TestReadEmptyCSV(t *testing.T) {
	table, err := ReadReader(strings.NewReader(""), ".csv")
	require.NoError(t, err)
	assert.Empty(t, table.Headers)
	assert.Empty(t, table.Rows)
}

func TestReadUnsupportedFormat(t *testing.T) {
	_, err := ReadReader(strings.NewReader("x"), ".ods")
	assert.Error(t, err)
}

func TestReadXLSX(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "email"))
	require.NoError(t, f.SetCellValue("Sheet1", "B1", "age"))
	require.NoError(t, f.SetCellValue("Sheet1", "A2", "ada@example.com"))
	require.NoError(t, f.SetCellValue("Sheet1", "B2", 36))

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	require.NoError(t, f.Close())

	table, err := ReadReader(&buf, ".xlsx")
	require.NoError(t, err)
	assert.Equal(t, []string{"email", "age"}, table.Headers)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, []string{"ada@example.com", "36"}, table.Rows[0])
}

func TestReadFromPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.csv")
	require.NoError(t, WriteCSV(path, []string{"a", "b"}, []map[string]string{{"a": "1", "b": "2"}}))

	table, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, table.Headers)
	assert.Equal(t, [][]string{{"1", "2"}}, table.Rows)
}
