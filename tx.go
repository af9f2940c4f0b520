package flatidx

import (
	"fmt"
	"runtime/debug"
	"time"
)

type Tx struct {
	db       *DB
	stx      storageTx
	managed  bool
	closed   bool
	writable bool
	written  bool

	startTime time.Time
	stack     []byte

	pending map[string]*fieldDelta

	keyBufs   [][]byte
	valueBufs [][]byte
}

func (db *DB) newTx(stx storageTx, managed bool) *Tx {
	tx := &Tx{
		db:        db,
		stx:       stx,
		managed:   managed,
		writable:  stx.Writable(),
		startTime: time.Now(),
	}
	if db.strict {
		tx.stack = debug.Stack()
	}
	if tx.writable {
		db.WriterCount.Add(1)
		db.WriteCount.Add(1)
	} else {
		db.ReaderCount.Add(1)
		db.ReadCount.Add(1)
	}
	db.addTx(tx)
	return tx
}

func (tx *Tx) DB() *DB {
	return tx.db
}

func (tx *Tx) Schema() *Schema {
	return tx.db.schema
}

func (tx *Tx) IsWritable() bool {
	return tx.writable
}

type panicked struct {
	reason any
	stack  string
}

func (p panicked) Error() string {
	return fmt.Sprintf("panic: %v\n\n%s", p.reason, p.stack)
}

func (p panicked) Unwrap() error {
	err, _ := p.reason.(error)
	return err
}

func safelyCall(fn func(*Tx) error, tx *Tx) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = panicked{p, string(debug.Stack())}
		}
	}()
	return fn(tx)
}

// Update runs f in a writable transaction and commits it if f returns nil.
// Panics inside f, including storage failures, are returned as errors and
// roll the transaction back.
func (db *DB) Update(f func(tx *Tx) error) error {
	stx, err := db.st.BeginTx(true)
	if err != nil {
		return fmt.Errorf("flatidx: begin: %w", err)
	}
	tx := db.newTx(stx, true)
	defer tx.Close()
	if err := safelyCall(f, tx); err != nil {
		return err
	}
	return tx.Commit()
}

// View runs f in a read-only transaction.
func (db *DB) View(f func(tx *Tx) error) error {
	stx, err := db.st.BeginTx(false)
	if err != nil {
		return fmt.Errorf("flatidx: begin: %w", err)
	}
	tx := db.newTx(stx, true)
	defer tx.Close()
	return safelyCall(f, tx)
}

func (db *DB) BeginRead() *Tx {
	stx, err := db.st.BeginTx(false)
	if err != nil {
		panic(fmt.Errorf("failed to start reading: %w", err))
	}
	return db.newTx(stx, false)
}

func (db *DB) Read(f func(tx *Tx)) {
	tx := db.BeginRead()
	defer tx.Close()
	f(tx)
}

func (db *DB) Write(f func(tx *Tx)) {
	tx := db.BeginUpdate()
	defer tx.Close()
	f(tx)
	err := tx.Commit()
	if err != nil {
		panic(fmt.Errorf("commit: %w", err))
	}
}

func (db *DB) BeginUpdate() *Tx {
	stx, err := db.st.BeginTx(true)
	if err != nil {
		panic(fmt.Errorf("db.BeginTx(true) failed: %w", err))
	}
	return db.newTx(stx, false)
}

func (tx *Tx) markWritten() {
	tx.written = true
}

// Commit commits a writable transaction. Field counters of the operations
// performed in it are published only after a successful commit.
func (tx *Tx) Commit() error {
	if tx.closed {
		return fmt.Errorf("tx already closed")
	}
	if !tx.writable {
		return fmt.Errorf("tx not writable")
	}
	err := tx.stx.Commit()
	if err != nil {
		return err
	}
	tx.db.applyDeltas(tx.pending)
	tx.pending = nil
	if tx.db.verbose && tx.written {
		tx.db.logger.Debug("flatidx: committed", "duration", time.Since(tx.startTime))
	}
	return nil
}

// Close rolls back the transaction unless it has been committed. It is safe
// to call Close multiple times.
func (tx *Tx) Close() {
	if tx.closed {
		return
	}
	tx.closed = true
	ensure(tx.stx.Rollback())
	if tx.writable {
		tx.db.WriterCount.Add(-1)
	} else {
		tx.db.ReaderCount.Add(-1)
	}
	tx.db.removeTx(tx)
	tx.release()
}

func (tx *Tx) keepKeyBuf(buf []byte) {
	tx.keyBufs = append(tx.keyBufs, buf)
}

func (tx *Tx) keepValueBuf(buf []byte) {
	tx.valueBufs = append(tx.valueBufs, buf)
}

func (tx *Tx) release() {
	for _, buf := range tx.keyBufs {
		releaseKeyBytes(buf)
	}
	for _, buf := range tx.valueBufs {
		releaseValueBytes(buf)
	}
	tx.keyBufs, tx.valueBufs = nil, nil
}

func (tx *Tx) bucket(name, sub string) storageBucket {
	return tx.stx.Bucket(name, sub)
}

func (tx *Tx) fieldBucket(kind FieldKind, field string) storageBucket {
	switch kind {
	case Searchable:
		return tx.bucket(postingsBucket, field)
	case DocValues:
		return tx.bucket(docValuesBucket, field)
	default:
		panic(fmt.Errorf("invalid field kind %v", kind))
	}
}

// writableFieldBucket returns the bucket of an index field, creating it if
// the stored document references a field no longer in the schema.
func (tx *Tx) writableFieldBucket(kind FieldKind, field string) storageBucket {
	if b := tx.fieldBucket(kind, field); b != nil {
		return b
	}
	name := postingsBucket
	if kind == DocValues {
		name = docValuesBucket
	}
	return must(tx.stx.CreateBucket(name, field))
}
