package schema

import "fmt"

// Kind is the scalar type of a field value.
type Kind string

const (
	KindString Kind = "string"
	KindInt    Kind = "int"
	KindFloat  Kind = "float"
	KindBool   Kind = "bool"
)

// Field describes one field of a record type. A field is either a scalar, a
// list of scalars (Many without Fields), a nested object (Fields without
// Many) or a list of nested objects (Many with Fields).
type Field struct {
	Name     string  `json:"name"`
	Type     Kind    `json:"type,omitempty"`
	Required bool    `json:"required,omitempty"`
	Unique   bool    `json:"unique,omitempty"`
	ReadOnly bool    `json:"readOnly,omitempty"`
	Many     bool    `json:"many,omitempty"`
	Fields   []Field `json:"fields,omitempty"`
}

// Nested reports whether the field holds an object (or list of objects)
// rather than scalar values.
func (f Field) Nested() bool {
	return len(f.Fields) > 0
}

// Kind returns the declared scalar type, defaulting to string.
func (f Field) Kind() Kind {
	if f.Type == "" {
		return KindString
	}
	return f.Type
}

// Schema is the statically declared description of one record type.
type Schema struct {
	Name   string  `json:"name"`
	Fields []Field `json:"fields"`
}

// Field returns the top-level field with the given name.
func (s *Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Validate checks that the schema is well formed enough to classify.
func (s *Schema) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("schema has no name")
	}
	seen := make(map[string]struct{}, len(s.Fields))
	for _, f := range s.Fields {
		if f.Name == "" {
			return fmt.Errorf("schema %s: field with empty name", s.Name)
		}
		if _, ok := seen[f.Name]; ok {
			return fmt.Errorf("schema %s: duplicate field %s", s.Name, f.Name)
		}
		seen[f.Name] = struct{}{}
		if f.Nested() {
			sub := make(map[string]struct{}, len(f.Fields))
			for _, sf := range f.Fields {
				if sf.Name == "" {
					return fmt.Errorf("schema %s: field %s has a sub-field with empty name", s.Name, f.Name)
				}
				if _, ok := sub[sf.Name]; ok {
					return fmt.Errorf("schema %s: field %s has duplicate sub-field %s", s.Name, f.Name, sf.Name)
				}
				sub[sf.Name] = struct{}{}
				if sf.Nested() {
					return fmt.Errorf("schema %s: field %s.%s: nesting deeper than one level is not supported", s.Name, f.Name, sf.Name)
				}
			}
		}
	}
	return nil
}
