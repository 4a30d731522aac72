// Package table implements the open-addressing hash table used for both
// string interning and the VM's global-name table. Keys are *value.String
// references compared by identity — sound because strings are interned —
// and collisions are resolved by linear probing with load factor 0.75.
//
// This is a named core component of the language runtime (it backs the
// interning and GC-reachability guarantees spelled out in the testable
// properties), so unlike the rest of the VM's ambient bookkeeping it is not
// a place to reach for a library hash map: its exact probing, tombstone and
// find_string behavior is the contract other components (the GC sweep, the
// interner) depend on.
package table

import "github.com/emberlang/ember/lang/value"

const maxLoad = 0.75

type entry struct {
	key   *value.String // nil means empty-or-tombstone
	value value.Value   // Nil for an empty slot, Bool(true) for a tombstone
}

// Table is an open-addressing hash table keyed by interned strings.
type Table struct {
	count   int // occupied slots, including tombstones
	entries []entry
}

// New returns an empty Table.
func New() *Table {
	return &Table{}
}

// Len reports the number of live (non-tombstone) entries.
func (t *Table) Len() int {
	return t.count - t.tombstones()
}

func (t *Table) tombstones() int {
	n := 0
	for _, e := range t.entries {
		if e.key == nil && !e.value.IsNil() {
			n++
		}
	}
	return n
}

// Set stores value under key, growing the table first if doing so would
// exceed the load factor. It returns true if key was not already present
// (a "new key"), matching the source's table_set contract used to detect
// assignment to an undefined global.
func (t *Table) Set(key *value.String, v value.Value) bool {
	if float64(t.count+1) > float64(len(t.entries))*maxLoad {
		t.grow(growCapacity(len(t.entries)))
	}
	e := t.findEntry(t.entries, key)
	isNewKey := e.key == nil
	if isNewKey && e.value.IsNil() {
		t.count++
	}
	e.key = key
	e.value = v
	return isNewKey
}

// Get looks up key, returning its value and whether it was found.
func (t *Table) Get(key *value.String) (value.Value, bool) {
	if t.count == 0 {
		return value.Nil, false
	}
	e := t.findEntry(t.entries, key)
	if e.key == nil {
		return value.Nil, false
	}
	return e.value, true
}

// Delete removes key, leaving a tombstone in its slot so that later probes
// for colliding keys keep working. Returns whether key was present.
func (t *Table) Delete(key *value.String) bool {
	if t.count == 0 {
		return false
	}
	e := t.findEntry(t.entries, key)
	if e.key == nil {
		return false
	}
	e.key = nil
	e.value = value.Bool(true) // tombstone marker
	return true
}

// AddAll copies every live entry of from into t.
func (t *Table) AddAll(from *Table) {
	for i := range from.entries {
		e := &from.entries[i]
		if e.key != nil {
			t.Set(e.key, e.value)
		}
	}
}

// FindString looks up an interned string by its raw bytes and precomputed
// hash, without allocating a String to do so. It is the mechanism the VM
// uses to avoid ever holding two distinct String objects with equal bytes.
func (t *Table) FindString(chars string, hash uint32) *value.String {
	if t.count == 0 {
		return nil
	}
	mask := uint32(len(t.entries) - 1)
	idx := hash & mask
	for {
		e := &t.entries[idx]
		if e.key == nil {
			if e.value.IsNil() {
				return nil
			}
		} else if e.key.Hash == hash && len(e.key.Chars) == len(chars) && e.key.Chars == chars {
			return e.key
		}
		idx = (idx + 1) & mask
	}
}

// Each calls fn for every live entry. fn must not mutate the table.
func (t *Table) Each(fn func(key *value.String, v value.Value)) {
	for i := range t.entries {
		e := &t.entries[i]
		if e.key != nil {
			fn(e.key, e.value)
		}
	}
}

// findEntry is the shared linear-probing routine used by Set, Get and
// Delete. It returns the slot matching key, or the first empty slot
// (preferring the earliest tombstone seen) if key is absent.
func (t *Table) findEntry(entries []entry, key *value.String) *entry {
	mask := uint32(len(entries) - 1)
	idx := key.Hash & mask
	var tombstone *entry
	for {
		e := &entries[idx]
		if e.key == nil {
			if e.value.IsNil() {
				if tombstone != nil {
					return tombstone
				}
				return e
			}
			if tombstone == nil {
				tombstone = e
			}
		} else if e.key == key {
			return e
		}
		idx = (idx + 1) & mask
	}
}

func (t *Table) grow(capacity int) {
	entries := make([]entry, capacity)
	t.count = 0
	for i := range t.entries {
		e := &t.entries[i]
		if e.key == nil {
			continue
		}
		dest := t.findEntry(entries, e.key)
		dest.key = e.key
		dest.value = e.value
		t.count++
	}
	t.entries = entries
}

func growCapacity(capacity int) int {
	if capacity < 8 {
		return 8
	}
	return capacity * 2
}
