package sat

import "sync"

// SharedClause is a learnt clause published to the shared database. Its
// literal slice is immutable once published: workers copy the literals when
// importing and never write through the shared reference.
type SharedClause struct {
	Literals []Literal
	LBD      uint32
	Owner    int
}

// sharedEntry wraps a published clause with the number of workers that have
// not yet moved their read cursor past it.
type sharedEntry struct {
	clause SharedClause
	refs   int
}

// SharedDB is the clause exchange layer of the portfolio. Publications form a
// single append-only sequence; each worker owns a cursor into that sequence
// and receives every foreign publication exactly once, in publication order.
// Entries are reclaimed once the cursor of every worker other than the
// publisher has moved past them.
type SharedDB struct {
	mu sync.Mutex

	workers int
	entries []sharedEntry
	base    int64 // sequence number of entries[0]
	cursors []int64

	published int64
	reclaimed int64
}

// NewSharedDB returns a database for the given number of workers. Worker IDs
// must be in [0, workers).
func NewSharedDB(workers int) *SharedDB {
	return &SharedDB{
		workers: workers,
		cursors: make([]int64, workers),
	}
}

// Publish appends a batch of clauses to the database. The batch entries must
// carry the publishing worker's ID and must not be modified afterwards.
func (db *SharedDB) Publish(batch []SharedClause) {
	if len(batch) == 0 {
		return
	}
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, sc := range batch {
		db.entries = append(db.entries, sharedEntry{
			clause: sc,
			// The publisher never re-imports its own clause, so only the
			// other workers hold a reference.
			refs: db.workers - 1,
		})
	}
	db.published += int64(len(batch))
	if db.workers == 1 {
		db.compact()
	}
}

// Drain appends to buf every clause published since the worker's cursor,
// skipping the worker's own publications, and advances the cursor to the
// current head. The returned clauses must be treated as read-only.
func (db *SharedDB) Drain(worker int, buf []SharedClause) []SharedClause {
	db.mu.Lock()
	defer db.mu.Unlock()

	head := db.base + int64(len(db.entries))
	// Entries below base are reclaimed; the only ones this worker had not
	// passed are its own publications, which it never imports.
	start := db.cursors[worker]
	if start < db.base {
		start = db.base
	}
	for seq := start; seq < head; seq++ {
		e := &db.entries[seq-db.base]
		if e.clause.Owner == worker {
			continue
		}
		buf = append(buf, e.clause)
		e.refs--
	}
	db.cursors[worker] = head
	db.compact()
	return buf
}

// Detach releases the worker's interest in all pending entries. It must be
// called exactly once per worker, when the worker stops importing.
func (db *SharedDB) Detach(worker int) {
	db.mu.Lock()
	defer db.mu.Unlock()

	head := db.base + int64(len(db.entries))
	start := db.cursors[worker]
	if start < db.base {
		start = db.base
	}
	for seq := start; seq < head; seq++ {
		e := &db.entries[seq-db.base]
		if e.clause.Owner != worker {
			e.refs--
		}
	}
	db.cursors[worker] = head
	db.compact()
}

// compact drops the reclaimable prefix: entries that the cursor of every
// worker other than the publisher has passed. Callers must hold the mutex.
func (db *SharedDB) compact() {
	n := 0
	for n < len(db.entries) && db.entries[n].refs == 0 {
		n++
	}
	if n == 0 {
		return
	}
	m := copy(db.entries, db.entries[n:])
	for i := m; i < len(db.entries); i++ {
		db.entries[i] = sharedEntry{} // release the literal slices
	}
	db.entries = db.entries[:m]
	db.base += int64(n)
	db.reclaimed += int64(n)
}

// Pending returns the number of entries not yet reclaimed.
func (db *SharedDB) Pending() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.entries)
}

// Published returns the total number of clauses ever published.
func (db *SharedDB) Published() int64 {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.published
}

// Reclaimed returns the total number of entries dropped by reclamation.
func (db *SharedDB) Reclaimed() int64 {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.reclaimed
}
