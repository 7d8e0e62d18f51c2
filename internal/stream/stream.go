package stream

import "errors"

// ErrWrongType mirrors the WRONGTYPE error a String-holding key produces
// when a stream operation targets it, and vice versa.
var ErrWrongType = errors.New("WRONGTYPE Operation against a key holding the wrong kind of value")

// FieldValue is one field→value pair of a stream entry. A slice rather than
// a map preserves the insertion order XRANGE replies must reproduce.
type FieldValue struct {
	Field string
	Value string
}

// Entry is one stream record.
type Entry struct {
	ID     ID
	Fields []FieldValue
}

// Stream holds entries in strictly increasing id order. Appends are always
// at the tail since ids must increase, so a sorted slice needs no
// rebalancing on insert — simpler than a tree while preserving the same
// ordering and range-query guarantees.
type Stream struct {
	entries []Entry
	hasLast bool
	last    ID
}

// New returns an empty stream.
func New() *Stream {
	return &Stream{}
}

// Add resolves rawID against the stream's current last id and appends the
// entry, returning the resolved id's string form.
func (s *Stream) Add(rawID string, fields []FieldValue) (string, error) {
	id, err := resolveID(rawID, s.last, s.hasLast)
	if err != nil {
		return "", err
	}
	s.entries = append(s.entries, Entry{ID: id, Fields: fields})
	s.last = id
	s.hasLast = true
	return id.String(), nil
}

// Range returns entries with ids in [start, end] inclusive, per the "-"/"+"/
// bare-ms shorthand rules.
func (s *Stream) Range(startRaw, endRaw string) ([]Entry, error) {
	start, err := parseRangeBound(startRaw, false)
	if err != nil {
		return nil, err
	}
	end, err := parseRangeBound(endRaw, true)
	if err != nil {
		return nil, err
	}

	lo := searchFirst(s.entries, start)
	out := make([]Entry, 0)
	for i := lo; i < len(s.entries); i++ {
		if end.Less(s.entries[i].ID) {
			break
		}
		out = append(out, s.entries[i])
	}
	return out, nil
}

// searchFirst returns the index of the first entry with id >= target, via
// binary search over the id-sorted slice.
func searchFirst(entries []Entry, target ID) int {
	lo, hi := 0, len(entries)
	for lo < hi {
		mid := (lo + hi) / 2
		if entries[mid].ID.Less(target) {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}
