package flatidx

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

const trackTxns = true

const (
	docsBucket      = "docs"
	postingsBucket  = "t"
	docValuesBucket = "dv"
)

type DB struct {
	st          storage
	schema      *Schema
	logger      *slog.Logger
	verbose     bool
	strict      bool
	compression Compression

	fieldStats *xsync.MapOf[string, *FieldCounters]

	ReaderCount atomic.Int64
	WriterCount atomic.Int64
	ReadCount   atomic.Uint64
	WriteCount  atomic.Uint64

	txns     []*Tx
	txnsLock sync.Mutex
}

type Options struct {
	Backend     Backend
	Logger      *slog.Logger
	Verbose     bool
	IsTesting   bool
	MmapSize    int
	Compression Compression
}

// Open opens the database at path using the given backend. The Memory
// backend ignores path; the Badger backend runs in memory when path is empty.
func Open(path string, schema *Schema, opt Options) (*DB, error) {
	if schema == nil {
		return nil, mappingErrf("", "schema required")
	}
	if opt.Logger == nil {
		opt.Logger = slog.Default()
	}
	if opt.Compression > maxCompression {
		return nil, fmt.Errorf("flatidx: unsupported compression %v", opt.Compression)
	}

	var st storage
	var err error
	switch opt.Backend {
	case Bolt:
		st, err = openBoltStorage(path, opt)
	case Badger:
		st, err = openBadgerStorage(path, opt)
	case Memory:
		st = newMemStorage()
	default:
		err = fmt.Errorf("unknown backend %v", opt.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("flatidx: %w", err)
	}

	db := &DB{
		st:          st,
		schema:      schema,
		logger:      opt.Logger,
		verbose:     opt.Verbose,
		strict:      opt.IsTesting,
		compression: opt.Compression,
		fieldStats:  xsync.NewMapOf[string, *FieldCounters](),
	}

	err = db.Update(func(tx *Tx) error {
		_, err := tx.stx.CreateBucket(docsBucket, "")
		if err != nil {
			return err
		}
		for _, name := range schema.fieldNames() {
			if _, err := tx.stx.CreateBucket(postingsBucket, name); err != nil {
				return err
			}
			if _, err := tx.stx.CreateBucket(docValuesBucket, name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("flatidx: preparing buckets: %w", err)
	}
	if db.verbose {
		db.logger.Debug("flatidx: opened", "path", path, "backend", opt.Backend, "fields", len(schema.fieldNames()))
	}
	return db, nil
}

func (db *DB) Schema() *Schema {
	return db.schema
}

func (db *DB) Close() {
	err := db.st.Close()
	if err != nil {
		panic(fmt.Errorf("flatidx: closing: %w", err))
	}
}

func (db *DB) addTx(tx *Tx) {
	if !trackTxns {
		return
	}
	db.txnsLock.Lock()
	defer db.txnsLock.Unlock()
	db.txns = append(db.txns, tx)
}

func (db *DB) removeTx(tx *Tx) {
	if !trackTxns {
		return
	}
	db.txnsLock.Lock()
	defer db.txnsLock.Unlock()

	found := slices.Index(db.txns, tx)
	if found < 0 {
		panic("tx not found in list")
	}

	n := len(db.txns)
	db.txns[found] = db.txns[n-1]
	db.txns[n-1] = nil
	db.txns = db.txns[:n-1]
}

func (db *DB) DescribeOpenTxns() string {
	if !trackTxns {
		return "OPEN TX TRACKING DISABLED"
	}

	db.txnsLock.Lock()
	txns := slices.Clone(db.txns)
	db.txnsLock.Unlock()

	if len(txns) == 0 {
		return "NO OPEN TRANSACTIONS"
	}

	slices.SortFunc(txns, func(a, b *Tx) int {
		return a.startTime.Compare(b.startTime)
	})

	now := time.Now()

	var buf strings.Builder
	fmt.Fprintf(&buf, "%d OPEN TRANSACTIONS:\n", len(txns))
	for _, tx := range txns {
		ms := now.Sub(tx.startTime).Milliseconds()
		if ms < 100 {
			fmt.Fprintf(&buf, "\n---\nopen for %d ms\n", ms)
		} else {
			fmt.Fprintf(&buf, "\n---\nopen for %d ms:\n%s", ms, tx.stack)
		}
	}
	return buf.String()
}
