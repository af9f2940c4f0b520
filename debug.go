package flatidx

import (
	"fmt"
	"strings"
)

type DumpFlags uint64

const (
	DumpHeaders = DumpFlags(1 << iota)
	DumpDocs
	DumpStats
	DumpPostings
	DumpDocValues

	DumpAll = DumpFlags(0xFFFFFFFFFFFFFFFF)
)

var (
	dumpSep1 = strings.Repeat("=", 80)
	dumpSep2 = strings.Repeat("-", 60)
)

func (f DumpFlags) Contains(v DumpFlags) bool {
	return (f & v) == v
}

// Dump renders the contents of the database for debugging.
func (tx *Tx) Dump(f DumpFlags) string {
	var buf strings.Builder
	s := tx.Stats()
	if f.Contains(DumpHeaders) {
		fmt.Fprintln(&buf, dumpSep1)
		fmt.Fprintf(&buf, "docs (%d)\n", s.Docs)
	}
	if f.Contains(DumpDocs) {
		tx.dumpDocs(&buf)
	}
	for _, fs := range s.Fields {
		if f.Contains(DumpHeaders) {
			fmt.Fprintln(&buf, dumpSep1)
			fmt.Fprintf(&buf, "%s (%d postings, %d doc values)\n", fs.Name, fs.Postings, fs.DocValues)
		}
		if f.Contains(DumpStats) {
			fmt.Fprintf(&buf, "%s.stats: docs = %d, values = %d, removed = %d\n", fs.Name, fs.Docs, fs.Values, fs.Removed)
		}
		if f.Contains(DumpPostings) {
			tx.dumpBucket(&buf, fs.Name+".t", postingsBucket, fs.Name)
		}
		if f.Contains(DumpDocValues) {
			tx.dumpBucket(&buf, fs.Name+".dv", docValuesBucket, fs.Name)
		}
	}
	return buf.String()
}

func (tx *Tx) dumpDocs(w *strings.Builder) {
	b := tx.bucket(docsBucket, "")
	if b == nil {
		return
	}
	fmt.Fprintln(w, dumpSep2)
	c := b.Cursor()
	var pos int
	for k, v := c.First(); k != nil; k, v = c.Next() {
		pos++
		var vle value
		if err := vle.decode(v); err != nil {
			fmt.Fprintf(w, "docs.%d %q ** ERROR: %v\n", pos, k, err)
			continue
		}
		fmt.Fprintf(w, "docs.%d %q = (%v)\n", pos, k, &vle)
	}
}

func (tx *Tx) dumpBucket(w *strings.Builder, prefix string, name, sub string) {
	b := tx.bucket(name, sub)
	if b == nil {
		return
	}
	fmt.Fprintln(w, dumpSep2)
	c := b.Cursor()
	var pos int
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		pos++
		a, z, err := decodePair(k)
		if err != nil {
			fmt.Fprintf(w, "%s.%d %s ** ERROR: %v\n", prefix, pos, hexstr(k), err)
			continue
		}
		fmt.Fprintf(w, "%s.%d: %s | %s\n", prefix, pos, printable(a), printable(z))
	}
}
