package components

// FactorEntry represents a single factor for rendering.
type FactorEntry struct {
	ID     string
	Status string
	Detail string
}

// FactorList keeps the most recent factor entries in arrival order.
type FactorList struct {
	entries []FactorEntry
	limit   int
}

// NewFactorList constructs a list holding at most limit entries; a
// non-positive limit keeps everything.
func NewFactorList(limit int) FactorList {
	return FactorList{limit: limit}
}

// Push appends an entry, evicting the oldest one past the limit.
func (l FactorList) Push(entry FactorEntry) FactorList {
	entries := append(append([]FactorEntry(nil), l.entries...), entry)
	if l.limit > 0 && len(entries) > l.limit {
		entries = entries[len(entries)-l.limit:]
	}
	return FactorList{entries: entries, limit: l.limit}
}

// Entries returns the ordered entries.
func (l FactorList) Entries() []FactorEntry {
	clone := make([]FactorEntry, len(l.entries))
	copy(clone, l.entries)
	return clone
}
