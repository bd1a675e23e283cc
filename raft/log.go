package raft

// Log is the bounded-left, unbounded-right sequence of log entries
// described in spec.md section 4.2. baseIndex is the first retained index
// (>= 1, increases only on compaction); entries[0] holds the entry at
// baseIndex.
type Log struct {
	baseIndex Index
	entries   []Entry
	cap       Capability
}

func newLog(cap Capability) *Log {
	return &Log{baseIndex: 1, cap: cap}
}

// BaseIndex is the first retained index.
func (l *Log) BaseIndex() Index { return l.baseIndex }

// LastIndex is the index of the most recently appended entry, or
// baseIndex-1 when the log (since the last compaction) is empty.
func (l *Log) LastIndex() Index {
	return l.baseIndex - 1 + Index(len(l.entries))
}

// Get returns the entry at index, if retained.
func (l *Log) Get(index Index) (*Entry, bool) {
	if index < l.baseIndex || index > l.LastIndex() {
		return nil, false
	}
	e := l.entries[index-l.baseIndex]
	return &e, true
}

// TermAt returns the term of the entry at index. Index 0 always reports
// term 0 (the term of "no previous entry").
func (l *Log) TermAt(index Index) (Term, bool) {
	if index == 0 {
		return 0, true
	}
	e, ok := l.Get(index)
	if !ok {
		return 0, false
	}
	return e.Term, true
}

// Slice returns up to count entries starting at from, clamped to what is
// retained. The returned slice is a copy safe for the caller to mutate.
func (l *Log) Slice(from Index, count int) []Entry {
	if count <= 0 || from > l.LastIndex() {
		return nil
	}
	if from < l.baseIndex {
		from = l.baseIndex
	}
	start := int(from - l.baseIndex)
	end := start + count
	if end > len(l.entries) {
		end = len(l.entries)
	}
	if start >= end {
		return nil
	}
	out := make([]Entry, end-start)
	copy(out, l.entries[start:end])
	return out
}

// Append assigns e the next index, invokes log_offer, and on success adds
// it to the retained sequence. e.Index is mutated in place.
func (l *Log) Append(e *Entry) error {
	idx := l.LastIndex() + 1
	e.Index = idx
	if err := l.cap.LogOffer(e, idx); err != nil {
		return err
	}
	l.entries = append(l.entries, *e)
	return nil
}

// TruncateFrom drops the suffix of the log starting at index, invoking
// log_pop once per dropped entry from the tail backward (so a caller
// reversing membership effects sees them in the same order the original
// offers could not have produced them in). It refuses to touch anything
// strictly before baseIndex.
func (l *Log) TruncateFrom(index Index) ([]Entry, error) {
	if index < l.baseIndex {
		index = l.baseIndex
	}
	var popped []Entry
	for l.LastIndex() >= index && len(l.entries) > 0 {
		last := l.LastIndex()
		e := l.entries[len(l.entries)-1]
		if err := l.cap.LogPop(&e, last); err != nil {
			return popped, err
		}
		l.entries = l.entries[:len(l.entries)-1]
		popped = append(popped, e)
	}
	return popped, nil
}

// PopFront drops the oldest retained entry, invoking log_poll. Used only by
// compaction.
func (l *Log) PopFront() error {
	if len(l.entries) == 0 {
		return nil
	}
	e := l.entries[0]
	if err := l.cap.LogPoll(&e, l.baseIndex); err != nil {
		return err
	}
	l.entries = l.entries[1:]
	l.baseIndex++
	return nil
}

// ReplayAppend appends e during startup replay, bypassing log_offer.
func (l *Log) ReplayAppend(e Entry) {
	l.entries = append(l.entries, e)
}

// ReplaySetBase sets baseIndex during startup replay (after a snapshot was
// loaded), bypassing log_poll.
func (l *Log) ReplaySetBase(base Index) {
	l.baseIndex = base
}
