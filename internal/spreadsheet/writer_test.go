package spreadsheet

import (
	"bytes"
	"encoding/csv"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestUnionHeaders(t *testing.T) {
	rows := []map[string]string{
		{"email": "a@b.c", "tags[0].name": "x"},
		{"email": "d@e.f", "age": "3", "tags[1].name": "y"},
	}

	headers := UnionHeaders(rows, []string{"email", "age"})

	// Preferred keys first, then the rest in deterministic order.
	assert.Equal(t, []string{"email", "age", "tags[0].name", "tags[1].name"}, headers)
}

func TestUnionHeadersSkipsUnusedPreferred(t *testing.T) {
	rows := []map[string]string{{"a": "1"}}
	assert.Equal(t, []string{"a"}, UnionHeaders(rows, []string{"z", "a"}))
}

func TestWriteCSVTo(t *testing.T) {
	var buf bytes.Buffer
	err := WriteCSVTo(&buf,
		[]string{"email", "age"},
		[]map[string]string{
			{"email": "a@b.c", "age": "3"},
			{"email": "d@e.f"},
		},
	)
	require.NoError(t, err)

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"email", "age"},
		{"a@b.c", "3"},
		{"d@e.f", ""},
	}, records)
}

func TestWriteReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "out.xlsx")

	successes := []map[string]string{{"email": "a@b.c", "age": "3"}}
	failures := []map[string]string{{"email": "bad", "errors": `{"email":"invalid email"}`}}
	require.NoError(t, WriteReport(path, successes, failures))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.ElementsMatch(t, []string{SheetSuccessful, SheetFailed}, f.GetSheetList())

	ok, err := f.GetRows(SheetSuccessful)
	require.NoError(t, err)
	require.Len(t, ok, 2)
	assert.ElementsMatch(t, []string{"age", "email"}, ok[0])

	failed, err := f.GetRows(SheetFailed)
	require.NoError(t, err)
	require.Len(t, failed, 2)
	assert.Contains(t, failed[0], "errors")
}
