// Package mapping resolves user-supplied spreadsheet column mappings to
// concrete flat field keys, disambiguating which numbered list slot an
// un-indexed column refers to.
package mapping

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/thoas/go-funk"
	"go.uber.org/zap"

	"github.com/clubops/querycsv/internal/schema"
)

// FieldMapping pairs one raw spreadsheet column with a schema field.
type FieldMapping struct {
	ColumnName string `json:"columnName"`
	FieldName  string `json:"fieldName"`
}

// ActionSkip is a control entry a reviewer may map a column to instead of a
// field; the column is recognized but left untouched.
const ActionSkip = "SKIP"

// Actions lists the recognized non-field mapping targets.
var Actions = []string{ActionSkip}

var (
	digitRegex      = regexp.MustCompile(`\d+`)
	whitespaceRegex = regexp.MustCompile(`\s+`)
)

// Resolver renames spreadsheet columns to flat field keys for one upload
// pass. All disambiguation state is scoped to a single Resolve call.
type Resolver struct {
	fields *schema.FlatFields
}

func NewResolver(fields *schema.FlatFields) *Resolver {
	return &Resolver{fields: fields}
}

// Resolve returns a new header row with mapped columns renamed to their
// flat keys. Spreadsheet authors either embed the slot number in the header
// text ("Tag 2") or repeat anonymous headers relying on column order
// ("Tag", "Tag"); both are supported. Each mapping pair consumes the
// leftmost not-yet-renamed occurrence of its column name, so repeated
// headers resolve in column order.
//
// Mappings naming an unknown field or a control action rename nothing.
// A column name containing more than one digit group cannot be assigned a
// slot and is skipped rather than failing the pass.
func (r *Resolver) Resolve(headers []string, mappings []FieldMapping) []string {
	resolved := make([]string, len(headers))
	copy(resolved, headers)
	renamed := make([]bool, len(headers))

	// Slots already taken per generic key, scoped to this invocation.
	used := make(map[string]map[int]bool)

	for _, m := range mappings {
		if funk.ContainsString(Actions, m.FieldName) {
			continue
		}

		field, ok := r.fields.Resolve(m.FieldName)
		if !ok {
			zap.S().Named("mapping").Debugf("skipping mapping for unknown field %q", m.FieldName)
			continue
		}

		col := columnIndex(headers, resolved, renamed, m.ColumnName)
		if col < 0 {
			continue
		}

		if !field.IsListItem() {
			resolved[col] = field.Key
			renamed[col] = true
			continue
		}

		generic := field.List.GenericKey
		if used[generic] == nil {
			used[generic] = make(map[int]bool)
		}

		index, ok := extractIndex(m.ColumnName)
		if !ok {
			zap.S().Named("mapping").Warnf("column %q contains more than one number, mapping skipped", m.ColumnName)
			continue
		}
		if index < 0 {
			index = nextFreeIndex(used[generic])
		}
		used[generic][index] = true

		item := field.Clone()
		item.SetIndex(index)
		resolved[col] = item.Key
		renamed[col] = true
	}

	return resolved
}

// AutoMap guesses mappings for headers not covered by the supplied pairs by
// normalizing each header to lower-case/underscored form and checking it
// against the known flat field keys.
func (r *Resolver) AutoMap(headers []string, existing []FieldMapping) []FieldMapping {
	covered := make(map[string]bool, len(existing))
	for _, m := range existing {
		covered[m.ColumnName] = true
	}

	out := make([]FieldMapping, 0, len(headers))
	out = append(out, existing...)

	for _, h := range headers {
		if covered[h] {
			continue
		}
		normalized := NormalizeHeader(h)
		if normalized == h {
			continue // already a literal key, nothing to rename
		}
		if _, ok := r.fields.Resolve(normalized); ok {
			out = append(out, FieldMapping{ColumnName: h, FieldName: normalized})
		}
	}
	return out
}

// NormalizeHeader lowers a raw header and collapses whitespace to
// underscores, the form flat field keys use.
func NormalizeHeader(header string) string {
	h := strings.ToLower(strings.TrimSpace(header))
	return whitespaceRegex.ReplaceAllString(h, "_")
}

// extractIndex digit-scans a raw column name. Returns -1 when no number is
// embedded; ok is false when more than one digit group was found.
func extractIndex(columnName string) (int, bool) {
	numbers := digitRegex.FindAllString(columnName, -1)
	switch len(numbers) {
	case 0:
		return -1, true
	case 1:
		n, err := strconv.Atoi(numbers[0])
		if err != nil {
			return -1, false
		}
		return n, true
	default:
		return -1, false
	}
}

func nextFreeIndex(used map[int]bool) int {
	for i := 0; ; i++ {
		if !used[i] {
			return i
		}
	}
}

// columnIndex finds the leftmost occurrence of name that has not been
// renamed yet during this pass.
func columnIndex(original, resolved []string, renamed []bool, name string) int {
	for i := range original {
		if renamed[i] {
			continue
		}
		if resolved[i] == name {
			return i
		}
	}
	return -1
}
