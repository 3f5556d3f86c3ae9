// Package registry assigns stable place identifiers to place labels.
package registry

import (
	"fmt"
	"strconv"
	"strings"
)

// IDPrefix prefixes every place identifier
const IDPrefix = "place_"

// Entry maps a trimmed place label to its identifier
type Entry struct {
	PlaceLabel string `json:"place_label"`
	PlaceID    string `json:"place_id"`
}

// Registry maps trimmed place labels to place_<n> identifiers.
//
// Identifiers are handed out in first-seen order starting at place_1 and are
// never reused. A Registry is not safe for concurrent use; the driver owns it.
type Registry struct {
	ids     map[string]string
	entries []Entry
	counter int // next number to hand out
}

// New returns an empty registry
func New() *Registry {
	return &Registry{
		ids:     make(map[string]string),
		counter: 1,
	}
}

// NewSeeded returns a registry preloaded with entries from an earlier run.
// Entries must be in assignment order and use the place_<n> form.
func NewSeeded(entries []Entry) (*Registry, error) {
	r := New()
	for _, e := range entries {
		key := Key(e.PlaceLabel)
		if _, exists := r.ids[key]; exists {
			return nil, fmt.Errorf("duplicate label %q in seed", key)
		}
		n, err := parseID(e.PlaceID)
		if err != nil {
			return nil, err
		}
		r.ids[key] = e.PlaceID
		r.entries = append(r.entries, Entry{PlaceLabel: key, PlaceID: e.PlaceID})
		if n >= r.counter {
			r.counter = n + 1
		}
	}
	return r, nil
}

// Key normalizes a label into its lookup key
func Key(label string) string {
	return strings.TrimSpace(label)
}

// Resolve returns the identifier for label, assigning the next one if the
// trimmed label has not been seen before.
func (r *Registry) Resolve(label string) string {
	key := Key(label)
	if id, ok := r.ids[key]; ok {
		return id
	}

	id := IDPrefix + strconv.Itoa(r.counter)
	r.counter++
	r.ids[key] = id
	r.entries = append(r.entries, Entry{PlaceLabel: key, PlaceID: id})
	return id
}

// Lookup returns the identifier for label without assigning one
func (r *Registry) Lookup(label string) (string, bool) {
	id, ok := r.ids[Key(label)]
	return id, ok
}

// Len returns the number of distinct places
func (r *Registry) Len() int {
	return len(r.entries)
}

// Entries returns a copy of all entries in assignment order
func (r *Registry) Entries() []Entry {
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Since returns the entries assigned after the first n
func (r *Registry) Since(n int) []Entry {
	if n >= len(r.entries) {
		return nil
	}
	out := make([]Entry, len(r.entries)-n)
	copy(out, r.entries[n:])
	return out
}

func parseID(id string) (int, error) {
	num, ok := strings.CutPrefix(id, IDPrefix)
	if !ok {
		return 0, fmt.Errorf("invalid place id %q", id)
	}
	n, err := strconv.Atoi(num)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid place id %q", id)
	}
	return n, nil
}
