package schema

import "fmt"

// FlatFields is the result of classifying a schema: an ordered mapping from
// flat key to field descriptor. List-of-object fields appear under their
// generic key ("tags[n].label"); scalar-list fields under their own name.
type FlatFields struct {
	keys   []string
	fields map[string]*FlatField
	schema *Schema
}

// Classify derives the flat-field descriptors for a schema. Classification
// is pure: it depends only on the schema, never on a record instance.
func Classify(s *Schema) *FlatFields {
	ff := &FlatFields{fields: make(map[string]*FlatField), schema: s}

	for _, f := range s.Fields {
		switch {
		case f.Nested() && f.Many:
			for _, sf := range f.Fields {
				key := fmt.Sprintf("%s[n].%s", f.Name, sf.Name)
				ff.add(&FlatField{
					Key:      key,
					Readable: true,
					Writable: !f.ReadOnly && !sf.ReadOnly,
					Required: sf.Required,
					Unique:   sf.Unique,
					List: &ListItem{
						ParentKey:  f.Name,
						Index:      UnresolvedIndex,
						SubKey:     sf.Name,
						GenericKey: key,
					},
				})
			}
		case f.Nested():
			for _, sf := range f.Fields {
				ff.add(&FlatField{
					Key:      f.Name + "." + sf.Name,
					Readable: true,
					Writable: !f.ReadOnly && !sf.ReadOnly,
					Required: sf.Required,
					Unique:   sf.Unique,
				})
			}
		default:
			ff.add(&FlatField{
				Key:      f.Name,
				Readable: true,
				Writable: !f.ReadOnly,
				Required: f.Required,
				Unique:   f.Unique,
				Many:     f.Many,
			})
		}
	}
	return ff
}

func (ff *FlatFields) add(f *FlatField) {
	ff.keys = append(ff.keys, f.Key)
	ff.fields[f.Key] = f
}

// Keys returns the flat keys in schema declaration order.
func (ff *FlatFields) Keys() []string {
	return ff.keys
}

// Len returns the number of classified fields.
func (ff *FlatFields) Len() int {
	return len(ff.keys)
}

// Get returns the descriptor stored under the exact flat key.
func (ff *FlatFields) Get(key string) (*FlatField, bool) {
	f, ok := ff.fields[key]
	return f, ok
}

// Resolve looks a key up, accepting concrete list indices for generic
// descriptors ("tags[0].label" resolves against "tags[n].label") and
// indexed slots of scalar-list fields ("tags[0]"). The returned descriptor
// is a copy carrying the concrete index when one was present in the key.
func (ff *FlatFields) Resolve(key string) (*FlatField, bool) {
	if f, ok := ff.fields[key]; ok {
		return f, true
	}

	lk, ok := ParseListKey(key)
	if !ok {
		return nil, false
	}

	if f, ok := ff.fields[GenericListKey(key)]; ok {
		clone := f.Clone()
		if lk.Resolved {
			clone.SetIndex(lk.Index)
		}
		return clone, true
	}

	// Indexed slot of a scalar-list field: the classifier stores the field
	// under its bare name, the spreadsheet may still address "tags[0]".
	if lk.SubKey == "" {
		if parent, ok := ff.fields[lk.Parent]; ok && parent.Many {
			clone := &FlatField{
				Key:      key,
				Readable: parent.Readable,
				Writable: parent.Writable,
				Required: parent.Required,
				Unique:   parent.Unique,
				List: &ListItem{
					ParentKey:  lk.Parent,
					Index:      lk.Index,
					SubKey:     "",
					GenericKey: lk.Parent + "[n]",
				},
			}
			return clone, true
		}
	}

	return nil, false
}

// UniqueFields returns the names of top-level fields usable to identify an
// existing record.
func (ff *FlatFields) UniqueFields() []string {
	var out []string
	for _, f := range ff.schema.Fields {
		if f.Unique && !f.Nested() && !f.Many {
			out = append(out, f.Name)
		}
	}
	return out
}

// RequiredFields returns the names of top-level fields that must be present
// on create.
func (ff *FlatFields) RequiredFields() []string {
	var out []string
	for _, f := range ff.schema.Fields {
		if f.Required {
			out = append(out, f.Name)
		}
	}
	return out
}

// WritableKeys returns flat keys of fields accepted on upload.
func (ff *FlatFields) WritableKeys() []string {
	var out []string
	for _, key := range ff.keys {
		if ff.fields[key].Writable {
			out = append(out, key)
		}
	}
	return out
}

// ReadableKeys returns flat keys of fields included on download.
func (ff *FlatFields) ReadableKeys() []string {
	var out []string
	for _, key := range ff.keys {
		if ff.fields[key].Readable {
			out = append(out, key)
		}
	}
	return out
}

// RequiredKeys returns flat keys of required writable fields, used for the
// minimal upload template.
func (ff *FlatFields) RequiredKeys() []string {
	var out []string
	for _, key := range ff.keys {
		f := ff.fields[key]
		if f.Required && f.Writable {
			out = append(out, key)
		}
	}
	return out
}

// Schema returns the schema this classification was derived from.
func (ff *FlatFields) Schema() *Schema {
	return ff.schema
}
