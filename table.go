package oba

// tableMaxLoad is the load factor Table grows at, mirroring the
// reference symbol table (resize at 75% full).
const tableMaxLoad = 0.75

type tableEntry struct {
	key   *ObjString
	value Value
}

// Table is an open-addressing, linear-probe hash map from an interned
// *ObjString to a Value. Keys are compared by pointer identity, which
// is sound because every ObjString the VM ever produces is interned
// (see Heap.InternString): two strings with the same bytes are always
// the same *ObjString.
//
// Deleted entries leave a tombstone behind ({key: nil, value: true})
// so probe chains past them stay intact; a tombstone is distinguished
// from a never-used slot by its non-nil Value.
type Table struct {
	count   int
	entries []tableEntry
}

// NewTable creates an empty Table.
func NewTable() *Table {
	return &Table{}
}

// Count returns the number of occupied slots used for the load-factor
// check: live entries plus any tombstones left by Delete since the
// last resize (a resize drops tombstones and recounts live entries).
func (t *Table) Count() int { return t.count }

// Get looks up key and reports whether it was found.
func (t *Table) Get(key *ObjString) (Value, bool) {
	if len(t.entries) == 0 {
		return NilVal(), false
	}
	entry := t.findEntry(t.entries, key)
	if entry.key == nil {
		return NilVal(), false
	}
	return entry.value, true
}

// Set inserts or overwrites key's value, growing the table first if
// doing so would reach the max load factor. It reports whether this
// created a brand new key.
func (t *Table) Set(key *ObjString, value Value) bool {
	if float64(len(t.entries))*tableMaxLoad <= float64(t.count+1) {
		t.adjustCapacity(growCapacity(len(t.entries)))
	}

	entry := t.findEntry(t.entries, key)
	isNewKey := entry.key == nil
	if isNewKey && entry.value.IsNil() {
		t.count++
	}
	entry.key = key
	entry.value = value
	return isNewKey
}

// Delete removes key, leaving a tombstone. Reports whether key was
// present.
func (t *Table) Delete(key *ObjString) bool {
	if len(t.entries) == 0 {
		return false
	}
	entry := t.findEntry(t.entries, key)
	if entry.key == nil {
		return false
	}
	entry.key = nil
	entry.value = BoolVal(true)
	return true
}

// Each calls fn for every live entry, in bucket order. Used by the GC
// to mark roots and by module/global formatting.
func (t *Table) Each(fn func(key *ObjString, value Value)) {
	for _, e := range t.entries {
		if e.key != nil {
			fn(e.key, e.value)
		}
	}
}

func growCapacity(capacity int) int {
	if capacity < 8 {
		return 8
	}
	return capacity * 2
}

func (t *Table) findEntry(entries []tableEntry, key *ObjString) *tableEntry {
	index := key.Hash % uint32(len(entries))
	var tombstone *tableEntry

	for {
		entry := &entries[index]
		if entry.key == nil {
			if entry.value.IsNil() {
				// Truly empty: return the tombstone we passed, if
				// any, so re-insertion reuses its slot.
				if tombstone != nil {
					return tombstone
				}
				return entry
			}
			if tombstone == nil {
				tombstone = entry
			}
		} else if entry.key == key {
			return entry
		}
		index = (index + 1) % uint32(len(entries))
	}
}

func (t *Table) adjustCapacity(capacity int) {
	entries := make([]tableEntry, capacity)
	for i := range entries {
		entries[i] = tableEntry{value: NilVal()}
	}

	count := 0
	for _, e := range t.entries {
		if e.key == nil {
			continue
		}
		dest := t.findEntry(entries, e.key)
		dest.key = e.key
		dest.value = e.value
		count++
	}

	t.entries = entries
	t.count = count
}
