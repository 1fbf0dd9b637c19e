package schema

import (
	"fmt"
	"regexp"
	"strconv"
)

// UnresolvedIndex marks a list-item descriptor whose position has not been
// assigned yet by the header mapping resolver.
const UnresolvedIndex = -1

var (
	listKeyRegex = regexp.MustCompile(`^([A-Za-z0-9_-]+)\[(\d+|n)\](?:\.(.+))?$`)
	indexRegex   = regexp.MustCompile(`\[(?:\d+|n)\]`)
)

// ListKey is the parsed form of a flat key addressing a list slot, e.g.
// "tags[0].label" or "members[2]".
type ListKey struct {
	Parent   string
	Index    int // UnresolvedIndex when the key used the "n" wildcard
	SubKey   string
	Resolved bool
}

// ParseListKey parses a bracketed flat key. The second return value is false
// when the key does not address a list slot at all.
func ParseListKey(key string) (ListKey, bool) {
	m := listKeyRegex.FindStringSubmatch(key)
	if m == nil {
		return ListKey{}, false
	}
	lk := ListKey{Parent: m[1], Index: UnresolvedIndex, SubKey: m[3]}
	if m[2] != "n" {
		idx, err := strconv.Atoi(m[2])
		if err != nil {
			return ListKey{}, false
		}
		lk.Index = idx
		lk.Resolved = true
	}
	return lk, true
}

// GenericListKey normalizes any concrete index in key to the "n" wildcard.
func GenericListKey(key string) string {
	return indexRegex.ReplaceAllString(key, "[n]")
}

// ListItem carries the extra positioning state of a flat field that belongs
// to a list-valued schema field. SubKey is empty when the list holds bare
// scalar values.
type ListItem struct {
	ParentKey  string
	Index      int
	SubKey     string
	GenericKey string
}

// FlatField describes one spreadsheet column worth of a record schema.
type FlatField struct {
	Key      string
	Readable bool
	Writable bool
	Required bool
	Unique   bool

	// Many marks a scalar-list field whose single column carries a
	// comma-delimited value.
	Many bool

	// List is non-nil when the field addresses one slot of a list field.
	List *ListItem
}

// IsListItem reports whether the field addresses a slot of a list field.
func (f *FlatField) IsListItem() bool {
	return f.List != nil
}

func (f *FlatField) String() string {
	return f.Key
}

// Matches compares keys, treating any concrete list index as equal to the
// wildcard form. "tags[0].label" matches a descriptor for "tags[n].label".
func (f *FlatField) Matches(key string) bool {
	if f.Key == key {
		return true
	}
	if f.List == nil {
		return false
	}
	return GenericListKey(key) == f.List.GenericKey
}

// SetIndex assigns the concrete list position and rewrites the key. It is
// called at most once per upload pass, by the header mapping resolver.
func (f *FlatField) SetIndex(index int) {
	if f.List == nil {
		return
	}
	f.List.Index = index
	f.Key = fmt.Sprintf("%s[%d]", f.List.ParentKey, index)
	if f.List.SubKey != "" {
		f.Key += "." + f.List.SubKey
	}
}

// Clone returns a copy safe to mutate with SetIndex.
func (f *FlatField) Clone() *FlatField {
	clone := *f
	if f.List != nil {
		item := *f.List
		clone.List = &item
	}
	return &clone
}
