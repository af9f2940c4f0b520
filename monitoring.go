package flatidx

import (
	"github.com/puzpuzpuz/xsync/v3"
)

// FieldCounters count the activity of one index field since the database was
// opened.
type FieldCounters struct {
	Docs    *xsync.Counter // documents written that contributed to the field
	Values  *xsync.Counter // values written, before duplicate removal
	Removed *xsync.Counter // stale entries deleted on update or delete
}

func newFieldCounters() *FieldCounters {
	return &FieldCounters{
		Docs:    xsync.NewCounter(),
		Values:  xsync.NewCounter(),
		Removed: xsync.NewCounter(),
	}
}

type fieldDelta struct {
	docs, values, removed int64
}

func (tx *Tx) delta(field string) *fieldDelta {
	if tx.pending == nil {
		tx.pending = make(map[string]*fieldDelta)
	}
	d := tx.pending[field]
	if d == nil {
		d = &fieldDelta{}
		tx.pending[field] = d
	}
	return d
}

func (db *DB) applyDeltas(pending map[string]*fieldDelta) {
	for field, d := range pending {
		c, _ := db.fieldStats.LoadOrCompute(field, newFieldCounters)
		c.Docs.Add(d.docs)
		c.Values.Add(d.values)
		c.Removed.Add(d.removed)
	}
}

// FieldCounters returns the counters of an index field, or nil if nothing
// was written to it since the database was opened.
func (db *DB) FieldCounters(field string) *FieldCounters {
	c, _ := db.fieldStats.Load(field)
	return c
}

type FieldStats struct {
	Name      string
	Postings  int
	DocValues int

	Docs    int64
	Values  int64
	Removed int64
}

type Stats struct {
	Docs   int
	Fields []FieldStats
}

// Stats reports key counts of every bucket together with the in-memory
// field counters.
func (tx *Tx) Stats() *Stats {
	s := &Stats{}
	if b := tx.bucket(docsBucket, ""); b != nil {
		s.Docs = b.KeyCount()
	}
	for _, name := range tx.db.schema.fieldNames() {
		fs := FieldStats{Name: name}
		if b := tx.bucket(postingsBucket, name); b != nil {
			fs.Postings = b.KeyCount()
		}
		if b := tx.bucket(docValuesBucket, name); b != nil {
			fs.DocValues = b.KeyCount()
		}
		if c := tx.db.FieldCounters(name); c != nil {
			fs.Docs = c.Docs.Value()
			fs.Values = c.Values.Value()
			fs.Removed = c.Removed.Value()
		}
		s.Fields = append(s.Fields, fs)
	}
	return s
}
