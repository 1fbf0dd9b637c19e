package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func contactSchema() *Schema {
	return &Schema{
		Name: "contacts",
		Fields: []Field{
			{Name: "id", Unique: true, ReadOnly: true},
			{Name: "email", Required: true, Unique: true},
			{Name: "first_name", Required: true},
			{Name: "age", Type: KindInt},
			{Name: "phones", Many: true},
			{Name: "address", Fields: []Field{
				{Name: "street"},
				{Name: "city"},
			}},
			{Name: "tags", Many: true, Fields: []Field{
				{Name: "name", Required: true},
				{Name: "value"},
			}},
		},
	}
}

func TestClassifyKeys(t *testing.T) {
	ff := Classify(contactSchema())

	assert.Equal(t, []string{
		"id",
		"email",
		"first_name",
		"age",
		"phones",
		"address.street",
		"address.city",
		"tags[n].name",
		"tags[n].value",
	}, ff.Keys())
}

func TestClassifyFlags(t *testing.T) {
	ff := Classify(contactSchema())

	id, ok := ff.Get("id")
	require.True(t, ok)
	assert.False(t, id.Writable)
	assert.True(t, id.Readable)
	assert.True(t, id.Unique)

	phones, ok := ff.Get("phones")
	require.True(t, ok)
	assert.True(t, phones.Many)
	assert.False(t, phones.IsListItem())

	tagName, ok := ff.Get("tags[n].name")
	require.True(t, ok)
	require.True(t, tagName.IsListItem())
	assert.Equal(t, "tags", tagName.List.ParentKey)
	assert.Equal(t, "name", tagName.List.SubKey)
	assert.Equal(t, UnresolvedIndex, tagName.List.Index)
	assert.True(t, tagName.Required)
}

func TestResolveConcreteListKey(t *testing.T) {
	ff := Classify(contactSchema())

	f, ok := ff.Resolve("tags[2].name")
	require.True(t, ok)
	assert.Equal(t, "tags[2].name", f.Key)
	assert.Equal(t, 2, f.List.Index)

	// The stored generic descriptor must not be mutated by resolution.
	generic, ok := ff.Get("tags[n].name")
	require.True(t, ok)
	assert.Equal(t, UnresolvedIndex, generic.List.Index)
}

func TestResolveScalarListSlot(t *testing.T) {
	ff := Classify(contactSchema())

	f, ok := ff.Resolve("phones[1]")
	require.True(t, ok)
	require.True(t, f.IsListItem())
	assert.Equal(t, "phones", f.List.ParentKey)
	assert.Equal(t, 1, f.List.Index)
	assert.Equal(t, "phones[n]", f.List.GenericKey)
}

func TestResolveUnknown(t *testing.T) {
	ff := Classify(contactSchema())

	_, ok := ff.Resolve("nonexistent")
	assert.False(t, ok)
	_, ok = ff.Resolve("nonexistent[0].x")
	assert.False(t, ok)
	// age is not a list field, indexed access must not resolve.
	_, ok = ff.Resolve("age[0]")
	assert.False(t, ok)
}

func TestFieldSets(t *testing.T) {
	ff := Classify(contactSchema())

	assert.Equal(t, []string{"id", "email"}, ff.UniqueFields())
	assert.Equal(t, []string{"email", "first_name"}, ff.RequiredFields())
	assert.Equal(t, []string{"email", "first_name", "tags[n].name"}, ff.RequiredKeys())
	assert.NotContains(t, ff.WritableKeys(), "id")
	assert.Contains(t, ff.ReadableKeys(), "id")
}

func TestSchemaValidate(t *testing.T) {
	s := contactSchema()
	require.NoError(t, s.Validate())

	dup := &Schema{Name: "x", Fields: []Field{{Name: "a"}, {Name: "a"}}}
	assert.Error(t, dup.Validate())

	deep := &Schema{Name: "x", Fields: []Field{
		{Name: "a", Fields: []Field{
			{Name: "b", Fields: []Field{{Name: "c"}}},
		}},
	}}
	assert.Error(t, deep.Validate())

	unnamed := &Schema{Fields: []Field{{Name: "a"}}}
	assert.Error(t, unnamed.Validate())
}
