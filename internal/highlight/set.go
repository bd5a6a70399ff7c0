package highlight

import (
	"sort"
	"strconv"

	"github.com/jward/shade/internal/span"
)

// Key is the structural identity of a highlighted node: the path of its
// scope, its syntactic role, its name and its ordinal among nodes sharing
// the first three. A node keeps its key across edits that shift it without
// changing what precedes it in its own scope.
type Key struct {
	Scope   string `json:"scope"`
	Role    string `json:"role"`
	Name    string `json:"name"`
	Ordinal int    `json:"ordinal"`
}

func (k Key) String() string {
	return k.Scope + "|" + k.Role + ":" + k.Name + "#" + strconv.Itoa(k.Ordinal)
}

// Entry is what a key renders as.
type Entry struct {
	Category Category   `json:"category"`
	Range    span.Range `json:"range"`
	Name     string     `json:"name"`
}

// Set is the full snapshot of a buffer's highlights.
type Set map[Key]Entry

// Item is one element of a sorted Set.
type Item struct {
	Key Key `json:"key"`
	Entry
}

// Sorted returns the entries ordered by range, then key.
func (s Set) Sorted() []Item {
	items := make([]Item, 0, len(s))
	for k, e := range s {
		items = append(items, Item{Key: k, Entry: e})
	}
	sort.Slice(items, func(i, j int) bool {
		if c := items[i].Range.Compare(items[j].Range); c != 0 {
			return c < 0
		}
		return items[i].Key.String() < items[j].Key.String()
	})
	return items
}

// Without returns the subset of s whose categories are not excluded. s
// itself is returned when nothing is excluded.
func (s Set) Without(excluded []Category) Set {
	if len(excluded) == 0 {
		return s
	}
	skip := make(map[Category]bool, len(excluded))
	for _, c := range excluded {
		skip[c] = true
	}
	out := make(Set, len(s))
	for k, e := range s {
		if !skip[e.Category] {
			out[k] = e
		}
	}
	return out
}

// Equal reports whether s and o hold the same entries under the same keys.
func (s Set) Equal(o Set) bool {
	if len(s) != len(o) {
		return false
	}
	for k, e := range s {
		if oe, ok := o[k]; !ok || oe != e {
			return false
		}
	}
	return true
}

// Count returns the number of entries per category.
func (s Set) Count() map[Category]int {
	out := make(map[Category]int)
	for _, e := range s {
		out[e.Category]++
	}
	return out
}
