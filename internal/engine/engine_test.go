package engine_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clubops/querycsv/internal/engine"
	"github.com/clubops/querycsv/internal/flatten"
	"github.com/clubops/querycsv/internal/mapping"
	"github.com/clubops/querycsv/internal/schema"
	"github.com/clubops/querycsv/internal/spreadsheet"
)

// memStore is an in-memory RecordStore for pipeline tests.
type memStore struct {
	records []flatten.Structured
	nextID  int
}

func (m *memStore) FindMatching(ctx context.Context, filters []engine.FieldFilter) (engine.Record, error) {
	for i, rec := range m.records {
		for _, f := range filters {
			v, ok := rec[f.Field]
			if !ok || v == nil {
				continue
			}
			if fmt.Sprint(v) == f.Value {
				return i, nil
			}
		}
	}
	return nil, nil
}

func (m *memStore) Create(ctx context.Context, data flatten.Structured) (engine.Record, error) {
	rec := flatten.Structured{}
	for k, v := range data {
		rec[k] = v
	}
	m.nextID++
	rec["id"] = fmt.Sprintf("%d", m.nextID)
	m.records = append(m.records, rec)
	return len(m.records) - 1, nil
}

func (m *memStore) Update(ctx context.Context, existing engine.Record, data flatten.Structured) (engine.Record, error) {
	idx := existing.(int)
	for k, v := range data {
		m.records[idx][k] = v
	}
	return idx, nil
}

func (m *memStore) ToStructured(rec engine.Record) flatten.Structured {
	out := flatten.Structured{}
	for k, v := range m.records[rec.(int)] {
		out[k] = v
	}
	return out
}

func (m *memStore) List(ctx context.Context) ([]engine.Record, error) {
	out := make([]engine.Record, len(m.records))
	for i := range m.records {
		out[i] = i
	}
	return out, nil
}

func contactSchema() *schema.Schema {
	return &schema.Schema{
		Name: "contacts",
		Fields: []schema.Field{
			{Name: "id", Unique: true, ReadOnly: true},
			{Name: "email", Required: true, Unique: true},
			{Name: "first_name", Required: true},
			{Name: "age", Type: schema.KindInt},
			{Name: "phones", Many: true},
			{Name: "tags", Many: true, Fields: []schema.Field{
				{Name: "name"},
				{Name: "value"},
			}},
		},
	}
}

func newEngine(t *testing.T) (*engine.Engine, *memStore) {
	t.Helper()
	store := &memStore{}
	eng, err := engine.New(contactSchema(), store)
	require.NoError(t, err)
	return eng, store
}

func table(headers []string, rows ...[]string) *spreadsheet.Table {
	return &spreadsheet.Table{Headers: headers, Rows: rows}
}

func TestUploadCreatesRecords(t *testing.T) {
	eng, store := newEngine(t)

	result, err := eng.Upload(context.Background(),
		table(
			[]string{"email", "first_name", "age"},
			[]string{"ada@example.com", "Ada", "36"},
			[]string{"bob@example.com", "Bob", ""},
		),
		nil,
	)
	require.NoError(t, err)

	assert.Len(t, result.Successes, 2)
	assert.Empty(t, result.Failures)
	require.Len(t, store.records, 2)
	assert.Equal(t, int64(36), store.records[0]["age"])
	// Blank optional cells must not land as empty strings.
	_, ok := store.records[1]["age"]
	assert.False(t, ok)
}

func TestUploadIsIdempotent(t *testing.T) {
	eng, store := newEngine(t)

	tbl := table(
		[]string{"email", "first_name"},
		[]string{"ada@example.com", "Ada"},
	)

	_, err := eng.Upload(context.Background(), tbl, nil)
	require.NoError(t, err)
	_, err = eng.Upload(context.Background(), tbl, nil)
	require.NoError(t, err)

	assert.Len(t, store.records, 1)
}

func TestUploadUpdatesByUniqueField(t *testing.T) {
	eng, store := newEngine(t)

	_, err := eng.Upload(context.Background(),
		table([]string{"email", "first_name"}, []string{"ada@example.com", "Ada"}),
		nil,
	)
	require.NoError(t, err)

	result, err := eng.Upload(context.Background(),
		table([]string{"email", "first_name", "age"}, []string{"ada@example.com", "Lady Ada", "36"}),
		nil,
	)
	require.NoError(t, err)

	assert.Len(t, result.Successes, 1)
	require.Len(t, store.records, 1)
	assert.Equal(t, "Lady Ada", store.records[0]["first_name"])
	assert.Equal(t, int64(36), store.records[0]["age"])
}

func TestUploadMatchesOnReadOnlyUniqueField(t *testing.T) {
	eng, store := newEngine(t)

	_, err := eng.Upload(context.Background(),
		table([]string{"email", "first_name"}, []string{"ada@example.com", "Ada"}),
		nil,
	)
	require.NoError(t, err)

	// Match by id while changing the email; id itself is read-only and
	// must not be overwritten by the row value.
	result, err := eng.Upload(context.Background(),
		table([]string{"id", "email", "first_name"}, []string{"1", "new@example.com", "Ada"}),
		nil,
	)
	require.NoError(t, err)

	assert.Len(t, result.Successes, 1)
	require.Len(t, store.records, 1)
	assert.Equal(t, "new@example.com", store.records[0]["email"])
	assert.Equal(t, "1", store.records[0]["id"])
}

func TestUploadPartialFailure(t *testing.T) {
	eng, store := newEngine(t)

	result, err := eng.Upload(context.Background(),
		table(
			[]string{"email", "first_name", "age"},
			[]string{"ada@example.com", "Ada", "36"},
			[]string{"", "Bob", "40"},
			[]string{"eve@example.com", "Eve", "not-a-number"},
		),
		nil,
	)
	require.NoError(t, err)

	assert.Len(t, result.Successes, 1)
	require.Len(t, result.Failures, 2)
	assert.Equal(t, "this field is required", result.Failures[0].Errors["email"])
	assert.Equal(t, `invalid integer value "not-a-number"`, result.Failures[1].Errors["age"])
	assert.Len(t, store.records, 1)
}

func TestUploadWithColumnMappings(t *testing.T) {
	eng, store := newEngine(t)

	result, err := eng.Upload(context.Background(),
		table(
			[]string{"E-mail", "First Name", "Tag", "Tag"},
			[]string{"ada@example.com", "Ada", "vip", "beta"},
		),
		[]mapping.FieldMapping{
			{ColumnName: "E-mail", FieldName: "email"},
			{ColumnName: "Tag", FieldName: "tags[n].name"},
			{ColumnName: "Tag", FieldName: "tags[n].name"},
		},
	)
	require.NoError(t, err)

	assert.Empty(t, result.Failures)
	require.Len(t, store.records, 1)
	assert.Equal(t, []any{
		map[string]any{"name": "vip"},
		map[string]any{"name": "beta"},
	}, store.records[0]["tags"])
}

func TestUploadAutoMapsHeaders(t *testing.T) {
	eng, store := newEngine(t)

	result, err := eng.Upload(context.Background(),
		table([]string{"Email", "First Name"}, []string{"ada@example.com", "Ada"}),
		nil,
	)
	require.NoError(t, err)

	assert.Empty(t, result.Failures)
	assert.Len(t, store.records, 1)
}

func TestUploadDropsUnknownColumns(t *testing.T) {
	eng, store := newEngine(t)

	result, err := eng.Upload(context.Background(),
		table(
			[]string{"email", "first_name", "internal notes"},
			[]string{"ada@example.com", "Ada", "ignore me"},
		),
		nil,
	)
	require.NoError(t, err)

	assert.Len(t, result.Successes, 1)
	_, ok := store.records[0]["internal notes"]
	assert.False(t, ok)
}

func TestUploadSplitsScalarListCells(t *testing.T) {
	eng, store := newEngine(t)

	_, err := eng.Upload(context.Background(),
		table([]string{"email", "first_name", "phones"}, []string{"ada@example.com", "Ada", "123, 456"}),
		nil,
	)
	require.NoError(t, err)

	require.Len(t, store.records, 1)
	assert.Equal(t, []any{"123", "456"}, store.records[0]["phones"])
}

func TestUploadMatchesUniqueValueIgnoringWhitespace(t *testing.T) {
	eng, store := newEngine(t)

	_, err := eng.Upload(context.Background(),
		table([]string{"email", "first_name"}, []string{"ada@example.com", "Ada"}),
		nil,
	)
	require.NoError(t, err)

	result, err := eng.Upload(context.Background(),
		table([]string{"email", "first_name"}, []string{"  ada@example.com  ", "Lady Ada"}),
		nil,
	)
	require.NoError(t, err)

	assert.Len(t, result.Successes, 1)
	require.Len(t, store.records, 1)
	assert.Equal(t, "ada@example.com", store.records[0]["email"])
	assert.Equal(t, "Lady Ada", store.records[0]["first_name"])
}

func TestUploadRequiresNestedSubFields(t *testing.T) {
	store := &memStore{}
	s := &schema.Schema{
		Name: "contacts",
		Fields: []schema.Field{
			{Name: "email", Required: true, Unique: true},
			{Name: "address", Fields: []schema.Field{
				{Name: "city", Required: true},
				{Name: "state"},
			}},
			{Name: "tags", Many: true, Fields: []schema.Field{
				{Name: "name", Required: true},
				{Name: "value"},
			}},
		},
	}
	eng, err := engine.New(s, store)
	require.NoError(t, err)

	result, err := eng.Upload(context.Background(),
		table(
			[]string{"email", "address.state", "tags[0].value"},
			[]string{"ada@example.com", "OS", "gold"},
		),
		nil,
	)
	require.NoError(t, err)

	assert.Empty(t, result.Successes)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, "this field is required", result.Failures[0].Errors["address.city"])
	assert.Equal(t, "this field is required", result.Failures[0].Errors["tags[0].name"])
	assert.Empty(t, store.records)
}

func TestUploadNestedObjectRoundTrip(t *testing.T) {
	store := &memStore{}
	s := &schema.Schema{
		Name: "contacts",
		Fields: []schema.Field{
			{Name: "email", Required: true, Unique: true},
			{Name: "address", Fields: []schema.Field{
				{Name: "city"},
				{Name: "state"},
			}},
		},
	}
	eng, err := engine.New(s, store)
	require.NoError(t, err)

	result, err := eng.Upload(context.Background(),
		table(
			[]string{"email", "address.city", "address.state"},
			[]string{"ada@example.com", "Oslo", "OS"},
		),
		nil,
	)
	require.NoError(t, err)

	assert.Empty(t, result.Failures)
	require.Len(t, store.records, 1)
	assert.Equal(t, map[string]any{"city": "Oslo", "state": "OS"}, store.records[0]["address"])

	records, err := store.List(context.Background())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, eng.DownloadTo(context.Background(), records, &buf))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)

	idx := map[string]int{}
	for i, h := range rows[0] {
		idx[h] = i
	}
	assert.Equal(t, "Oslo", rows[1][idx["address.city"]])
	assert.Equal(t, "OS", rows[1][idx["address.state"]])
}

func TestDownloadTo(t *testing.T) {
	eng, store := newEngine(t)

	_, err := eng.Upload(context.Background(),
		table(
			[]string{"email", "first_name", "phones"},
			[]string{"ada@example.com", "Ada", "123, 456"},
			[]string{"bob@example.com", "Bob", ""},
		),
		nil,
	)
	require.NoError(t, err)

	records, err := store.List(context.Background())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, eng.DownloadTo(context.Background(), records, &buf))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	header := rows[0]
	idx := map[string]int{}
	for i, h := range header {
		idx[h] = i
	}
	assert.Equal(t, "ada@example.com", rows[1][idx["email"]])
	assert.Equal(t, "123, 456", rows[1][idx["phones"]])
	assert.Equal(t, "Bob", rows[2][idx["first_name"]])
}

func TestTemplate(t *testing.T) {
	eng, _ := newEngine(t)

	assert.Equal(t, []string{"email", "first_name"}, eng.Template(engine.TemplateRequired))
	assert.NotContains(t, eng.Template(engine.TemplateWritable), "id")
	assert.Contains(t, eng.Template(engine.TemplateAll), "id")
}
