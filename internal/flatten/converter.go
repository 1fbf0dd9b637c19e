// Package flatten converts between the nested structured representation of
// a record and the flat key/value representation of one spreadsheet row.
//
// Flat keys encode list positions and nested paths with bracket/dot
// notation: "tags[0].label" is the label of the first tags element,
// "address.city" is a field of a nested object. Scalar-list fields occupy a
// single column holding a comma-delimited value.
package flatten

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/clubops/querycsv/internal/schema"
)

// Structured is the nested in-memory shape of one record: scalar values,
// nested objects (map[string]any) and lists of either.
type Structured = map[string]any

// Flat is one spreadsheet row. Values are strings, except for list-item
// columns the upload pipeline has already split into []string.
type Flat = map[string]any

// ListSeparator joins scalar-list values into one cell on download.
const ListSeparator = ", "

// Converter flattens and unflattens records for one schema.
type Converter struct {
	fields *schema.FlatFields
}

func NewConverter(fields *schema.FlatFields) *Converter {
	return &Converter{fields: fields}
}

// Flatten produces the one-row spreadsheet shape of a record. Scalars copy
// through, scalar lists are comma-joined, nested objects expand to dotted
// keys and lists of objects expand to indexed bracket keys.
func (c *Converter) Flatten(record Structured) map[string]string {
	out := make(map[string]string)

	for _, f := range c.fields.Schema().Fields {
		value, ok := record[f.Name]
		if ok && value == nil {
			ok = false
		}
		if !ok {
			continue
		}

		switch {
		case f.Nested() && f.Many:
			for i, elem := range asList(value) {
				obj, ok := asMap(elem)
				if !ok {
					continue
				}
				for _, sf := range f.Fields {
					if sub, ok := obj[sf.Name]; ok && sub != nil {
						out[fmt.Sprintf("%s[%d].%s", f.Name, i, sf.Name)] = stringify(sub)
					}
				}
			}
		case f.Nested():
			obj, ok := asMap(value)
			if !ok {
				continue
			}
			for _, sf := range f.Fields {
				if sub, ok := obj[sf.Name]; ok && sub != nil {
					out[f.Name+"."+sf.Name] = stringify(sub)
				}
			}
		case f.Many:
			items := asList(value)
			parts := make([]string, 0, len(items))
			for _, item := range items {
				parts = append(parts, stringify(item))
			}
			out[f.Name] = strings.Join(parts, ListSeparator)
		default:
			out[f.Name] = stringify(value)
		}
	}

	return out
}

// Unflatten rebuilds the nested record from one flat row. Four key shapes
// are distinguished: bracketed list slots, comma-delimited scalar-list
// cells, scalar-list cells already split into a slice, and plain scalars.
// Dotted keys of known nested-object fields rebuild the nested object.
// Lists are grown with placeholders so values land at their exact index;
// fully empty placeholders are pruned afterwards.
func (c *Converter) Unflatten(flat Flat) (Structured, error) {
	out := Structured{}

	for key, raw := range flat {
		lk, isListKey := schema.ParseListKey(key)

		switch {
		case isListKey && lk.Resolved:
			if err := c.setListSlot(out, lk, raw); err != nil {
				return nil, err
			}

		case c.isWriteMany(key):
			switch v := raw.(type) {
			case string:
				out[key] = coerceList(SplitList(v), c.kindOf(key))
			case []string:
				out[key] = coerceList(v, c.kindOf(key))
			case []any:
				out[key] = v
			default:
				out[key] = []any{raw}
			}

		default:
			if parent, sub, ok := c.nestedObjectKey(key); ok {
				obj, err := objectAt(out, parent)
				if err != nil {
					return nil, err
				}
				obj[sub] = c.scalar(raw, c.subKind(parent, sub))
				continue
			}
			out[key] = c.scalar(raw, c.kindOf(key))
		}
	}

	pruneEmpty(out)
	return out, nil
}

// setListSlot places a value at an exact list position, growing the list
// with placeholders when earlier indices were never supplied.
func (c *Converter) setListSlot(out Structured, lk schema.ListKey, raw any) error {
	existing, ok := out[lk.Parent]
	var list []any
	if ok {
		list, ok = existing.([]any)
		if !ok {
			return fmt.Errorf("inconsistent types for field %s", lk.Parent)
		}
	}

	if lk.SubKey != "" {
		for len(list) <= lk.Index {
			list = append(list, map[string]any{})
		}
		obj, ok := list[lk.Index].(map[string]any)
		if !ok {
			return fmt.Errorf("inconsistent types for field %s[%d]", lk.Parent, lk.Index)
		}
		// Pre-split cells with a single segment collapse back to a scalar.
		if segments, ok := raw.([]string); ok && len(segments) == 1 {
			raw = segments[0]
		}
		obj[lk.SubKey] = c.scalar(raw, c.subKind(lk.Parent, lk.SubKey))
		out[lk.Parent] = list
		return nil
	}

	// Bare slot of a scalar list. A pre-split cell may carry several
	// segments; they fill consecutive slots starting at the index.
	values := splitRaw(raw)
	kind := c.kindOf(lk.Parent)
	for i, v := range values {
		for len(list) <= lk.Index+i {
			list = append(list, "")
		}
		list[lk.Index+i] = coerceScalar(strings.TrimSpace(v), kind)
	}
	out[lk.Parent] = list
	return nil
}

// objectAt returns the nested object stored under parent, creating it on
// first use.
func objectAt(out Structured, parent string) (map[string]any, error) {
	existing, ok := out[parent]
	if !ok {
		obj := map[string]any{}
		out[parent] = obj
		return obj, nil
	}
	obj, ok := existing.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("inconsistent types for field %s", parent)
	}
	return obj, nil
}

func (c *Converter) isWriteMany(key string) bool {
	f, ok := c.fields.Get(key)
	return ok && f.Many && f.Writable
}

func (c *Converter) nestedObjectKey(key string) (parent, sub string, ok bool) {
	parent, sub, found := strings.Cut(key, ".")
	if !found || strings.Contains(parent, "[") {
		return "", "", false
	}
	f, ok := c.fields.Schema().Field(parent)
	if !ok || !f.Nested() || f.Many {
		return "", "", false
	}
	return parent, sub, true
}

func (c *Converter) kindOf(name string) schema.Kind {
	if f, ok := c.fields.Schema().Field(name); ok {
		return f.Kind()
	}
	return schema.KindString
}

func (c *Converter) subKind(parent, sub string) schema.Kind {
	f, ok := c.fields.Schema().Field(parent)
	if !ok {
		return schema.KindString
	}
	for _, sf := range f.Fields {
		if sf.Name == sub {
			return sf.Kind()
		}
	}
	return schema.KindString
}

func (c *Converter) scalar(raw any, kind schema.Kind) any {
	if s, ok := raw.(string); ok {
		return coerceScalar(strings.TrimSpace(s), kind)
	}
	return raw
}

// SplitList splits a comma-delimited cell into trimmed, non-empty segments.
func SplitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func splitRaw(raw any) []string {
	switch v := raw.(type) {
	case string:
		return SplitList(v)
	case []string:
		return v
	default:
		return []string{stringify(raw)}
	}
}

func coerceList(values []string, kind schema.Kind) []any {
	out := make([]any, 0, len(values))
	for _, v := range values {
		out = append(out, coerceScalar(strings.TrimSpace(v), kind))
	}
	return out
}

// coerceScalar converts a cell to its declared scalar type when possible.
// Unparseable values stay strings so that validation can report them
// per-field instead of the whole row failing here.
func coerceScalar(value string, kind schema.Kind) any {
	switch kind {
	case schema.KindInt:
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			return n
		}
	case schema.KindFloat:
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	case schema.KindBool:
		if b, err := strconv.ParseBool(strings.ToLower(value)); err == nil {
			return b
		}
	}
	return value
}

// pruneEmpty drops placeholder entries left behind by exact-index growth:
// objects with zero populated keys and empty scalar slots.
func pruneEmpty(out Structured) {
	for key, value := range out {
		list, ok := value.([]any)
		if !ok {
			continue
		}
		kept := make([]any, 0, len(list))
		for _, elem := range list {
			switch e := elem.(type) {
			case map[string]any:
				if len(e) > 0 {
					kept = append(kept, e)
				}
			case string:
				if e != "" {
					kept = append(kept, e)
				}
			default:
				kept = append(kept, e)
			}
		}
		out[key] = kept
	}
}

func asList(value any) []any {
	switch v := value.(type) {
	case []any:
		return v
	case []map[string]any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = e
		}
		return out
	case []string:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = e
		}
		return out
	default:
		return nil
	}
}

func asMap(value any) (map[string]any, bool) {
	m, ok := value.(map[string]any)
	return m, ok
}

func stringify(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}

// SortedKeys returns the keys of a flat row in deterministic order, used by
// writers that need stable column ordering for ad-hoc rows.
func SortedKeys(row map[string]string) []string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
