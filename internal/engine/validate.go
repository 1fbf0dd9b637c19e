package engine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/clubops/querycsv/internal/flatten"
	"github.com/clubops/querycsv/internal/schema"
)

// validate checks a structured candidate against the schema: required
// fields present and non-empty, values coercible to their declared scalar
// types. Uniqueness is not checked here; it is resolved against the store,
// not within the batch.
func (e *Engine) validate(candidate flatten.Structured) RowError {
	errs := RowError{}

	for _, f := range e.schema.Fields {
		value, ok := candidate[f.Name]

		if f.Required && (!ok || isEmpty(value)) {
			errs[f.Name] = "this field is required"
			continue
		}
		if !ok || value == nil {
			continue
		}

		switch {
		case f.Nested() && f.Many:
			list, ok := value.([]any)
			if !ok {
				errs[f.Name] = "expected a list value"
				continue
			}
			for i, elem := range list {
				obj, ok := elem.(map[string]any)
				if !ok {
					errs[fmt.Sprintf("%s[%d]", f.Name, i)] = "expected an object value"
					continue
				}
				for _, sf := range f.Fields {
					sub, ok := obj[sf.Name]
					if sf.Required && (!ok || isEmpty(sub)) {
						errs[fmt.Sprintf("%s[%d].%s", f.Name, i, sf.Name)] = "this field is required"
						continue
					}
					if !ok || sub == nil {
						continue
					}
					if msg := checkKind(sub, sf.Kind()); msg != "" {
						errs[fmt.Sprintf("%s[%d].%s", f.Name, i, sf.Name)] = msg
					}
				}
			}
		case f.Nested():
			obj, ok := value.(map[string]any)
			if !ok {
				errs[f.Name] = "expected an object value"
				continue
			}
			for _, sf := range f.Fields {
				sub, ok := obj[sf.Name]
				if sf.Required && (!ok || isEmpty(sub)) {
					errs[f.Name+"."+sf.Name] = "this field is required"
					continue
				}
				if !ok || sub == nil {
					continue
				}
				if msg := checkKind(sub, sf.Kind()); msg != "" {
					errs[f.Name+"."+sf.Name] = msg
				}
			}
		case f.Many:
			list, ok := value.([]any)
			if !ok {
				errs[f.Name] = "expected a list value"
				continue
			}
			for i, elem := range list {
				if msg := checkKind(elem, f.Kind()); msg != "" {
					errs[fmt.Sprintf("%s[%d]", f.Name, i)] = msg
				}
			}
		default:
			if msg := checkKind(value, f.Kind()); msg != "" {
				errs[f.Name] = msg
			}
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

// checkKind verifies that a value matches its declared scalar type. The
// converter already coerced parseable cells, so a leftover string under a
// typed field means the cell was not parseable.
func checkKind(value any, kind schema.Kind) string {
	switch kind {
	case schema.KindInt:
		switch value.(type) {
		case int64, int:
			return ""
		}
		return fmt.Sprintf("invalid integer value %q", valueString(value))
	case schema.KindFloat:
		switch value.(type) {
		case float64, int64, int:
			return ""
		}
		return fmt.Sprintf("invalid number value %q", valueString(value))
	case schema.KindBool:
		if _, ok := value.(bool); ok {
			return ""
		}
		return fmt.Sprintf("invalid boolean value %q", valueString(value))
	default:
		return ""
	}
}

func isEmpty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []any:
		return len(v) == 0
	case map[string]any:
		return len(v) == 0
	default:
		return false
	}
}

func valueString(value any) string {
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
