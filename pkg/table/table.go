// Package table implements the open-addressing hash table that backs
// global-variable storage: linear probing, FNV-1a hashing, and tombstones
// so deletions don't break probe chains.
package table

import "github.com/mray/scriptvm/pkg/value"

const (
	initialCapacity = 8
	// growNumerator/growDenominator encode the 4*(count+1) >= 3*capacity
	// load factor threshold checked before each insert.
	growNumerator   = 4
	growDenominator = 3
)

type slotState int

const (
	slotVacant slotState = iota
	slotTombstone
	slotOccupied
)

type entry struct {
	state slotState
	key   string
	hash  uint32
	value value.Value
}

// Table is a hash map from string keys to Values.
type Table struct {
	entries []entry
	count   int // occupied entries, including tombstones not yet reclaimed
}

// New returns an empty table. The zero Table is also valid and behaves the
// same as New(); New exists for symmetry with the rest of the package API.
func New() *Table {
	return &Table{}
}

// hashFNV1a computes the 32-bit FNV-1a hash of a key's bytes.
func hashFNV1a(s string) uint32 {
	var h uint32 = 2166136261
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}
	return h
}

func (t *Table) capacity() int {
	return len(t.entries)
}

// find walks the probe sequence for key, returning the index of the slot
// that operations for key should use: the occupied slot with the same key
// if present, otherwise the first tombstone seen, otherwise the first
// vacant slot.
func (t *Table) find(key string, hash uint32) int {
	cap := t.capacity()
	index := int(hash) % cap
	tombstone := -1
	for {
		e := &t.entries[index]
		switch e.state {
		case slotVacant:
			if tombstone != -1 {
				return tombstone
			}
			return index
		case slotTombstone:
			if tombstone == -1 {
				tombstone = index
			}
		case slotOccupied:
			if e.key == key {
				return index
			}
		}
		index = (index + 1) % cap
	}
}

func (t *Table) grow(newCapacity int) {
	old := t.entries
	t.entries = make([]entry, newCapacity)
	t.count = 0
	for _, e := range old {
		if e.state != slotOccupied {
			continue
		}
		idx := t.find(e.key, e.hash)
		t.entries[idx] = e
		t.count++
	}
}

// Set inserts or overwrites key's value. Returns true if the key was new to
// the table.
func (t *Table) Set(key string, v value.Value) bool {
	if growNumerator*(t.count+1) >= growDenominator*t.capacity() {
		newCapacity := initialCapacity
		if t.capacity() >= initialCapacity {
			newCapacity = t.capacity() * 2
		}
		t.grow(newCapacity)
	}

	hash := hashFNV1a(key)
	idx := t.find(key, hash)
	e := &t.entries[idx]
	isNew := e.state != slotOccupied
	if e.state == slotVacant {
		t.count++
	}
	*e = entry{state: slotOccupied, key: key, hash: hash, value: v}
	return isNew
}

// Get returns the value stored for key, if any.
func (t *Table) Get(key string) (value.Value, bool) {
	if t.capacity() == 0 {
		return value.Nil, false
	}
	idx := t.find(key, hashFNV1a(key))
	e := &t.entries[idx]
	if e.state != slotOccupied {
		return value.Nil, false
	}
	return e.value, true
}

// Has reports whether key is present.
func (t *Table) Has(key string) bool {
	_, ok := t.Get(key)
	return ok
}

// Delete removes key, leaving a tombstone so other keys' probe chains stay
// intact. count is deliberately not decremented: tombstones still consume
// probe-chain budget until the next grow() reclaims them. Returns the
// deleted value, if key was present.
func (t *Table) Delete(key string) (value.Value, bool) {
	if t.capacity() == 0 {
		return value.Nil, false
	}
	idx := t.find(key, hashFNV1a(key))
	e := &t.entries[idx]
	if e.state != slotOccupied {
		return value.Nil, false
	}
	v := e.value
	*e = entry{state: slotTombstone}
	return v, true
}
