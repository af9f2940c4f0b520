package flatidx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
)

// badgerStorage maps buckets onto Badger's flat keyspace. Every key is
// prefixed with varbytes(name) varbytes(sub); the bare prefix is stored as a
// marker so that empty buckets exist.
type badgerStorage struct {
	db *badger.DB
	// Badger transactions are optimistic; writers are serialized here to get
	// the same single-writer semantics as Bolt.
	writeMu sync.Mutex
}

func openBadgerStorage(path string, opt Options) (storage, error) {
	bopt := badger.DefaultOptions(path)
	if path == "" {
		bopt = bopt.WithInMemory(true)
	}
	bopt.Compression = options.None // sources are compressed before they get here
	bopt.Logger = &badgerLogger{logger: opt.Logger, label: path}
	if opt.IsTesting {
		bopt = bopt.WithSyncWrites(false).WithNumVersionsToKeep(1)
	}
	db, err := badger.Open(bopt)
	if err != nil {
		return nil, fmt.Errorf("badger: %w", err)
	}
	return &badgerStorage{db: db}, nil
}

func (s *badgerStorage) BeginTx(writable bool) (storageTx, error) {
	if s.db.IsClosed() {
		return nil, badger.ErrDBClosed
	}
	if writable {
		s.writeMu.Lock()
	}
	return &badgerTx{s: s, txn: s.db.NewTransaction(writable), writable: writable}, nil
}

func (s *badgerStorage) Close() error {
	return s.db.Close()
}

type badgerTx struct {
	s         *badgerStorage
	txn       *badger.Txn
	writable  bool
	iterators []*badger.Iterator
	closed    bool
}

func (tx *badgerTx) Writable() bool { return tx.writable }

func badgerBucketPrefix(name, sub string) []byte {
	buf := make([]byte, 0, len(name)+len(sub)+4)
	buf = appendUvarint(buf, uint64(len(name)))
	buf = appendString(buf, name)
	buf = appendUvarint(buf, uint64(len(sub)))
	buf = appendString(buf, sub)
	return buf
}

func (tx *badgerTx) Bucket(name, sub string) storageBucket {
	prefix := badgerBucketPrefix(name, sub)
	if _, err := tx.txn.Get(prefix); err != nil {
		return nil
	}
	return &badgerBucket{tx: tx, prefix: prefix}
}

func (tx *badgerTx) CreateBucket(name, sub string) (storageBucket, error) {
	if !tx.writable {
		return nil, fmt.Errorf("tx not writable")
	}
	if sub != "" {
		if err := tx.ensureMarker(badgerBucketPrefix(name, "")); err != nil {
			return nil, err
		}
	}
	prefix := badgerBucketPrefix(name, sub)
	if err := tx.ensureMarker(prefix); err != nil {
		return nil, err
	}
	return &badgerBucket{tx: tx, prefix: prefix}, nil
}

func (tx *badgerTx) ensureMarker(prefix []byte) error {
	_, err := tx.txn.Get(prefix)
	if err == nil {
		return nil
	} else if !errors.Is(err, badger.ErrKeyNotFound) {
		return err
	}
	return tx.txn.Set(prefix, nil)
}

func (tx *badgerTx) DeleteBucket(name, sub string) error {
	if !tx.writable {
		return fmt.Errorf("tx not writable")
	}
	if sub == "" {
		return ErrBucketNotFound
	}
	prefix := badgerBucketPrefix(name, sub)
	if _, err := tx.txn.Get(prefix); errors.Is(err, badger.ErrKeyNotFound) {
		return ErrBucketNotFound
	} else if err != nil {
		return err
	}

	var keys [][]byte
	it := tx.txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	it.Close()
	for _, k := range keys {
		if err := tx.txn.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

func (tx *badgerTx) closeIterators() {
	for _, it := range tx.iterators {
		it.Close()
	}
	tx.iterators = nil
}

func (tx *badgerTx) finish() {
	tx.closed = true
	if tx.writable {
		tx.s.writeMu.Unlock()
	}
}

func (tx *badgerTx) Commit() error {
	if tx.closed {
		return nil
	}
	tx.closeIterators()
	defer tx.finish()
	return tx.txn.Commit()
}

func (tx *badgerTx) Rollback() error {
	if tx.closed {
		return nil
	}
	tx.closeIterators()
	tx.txn.Discard()
	tx.finish()
	return nil
}

type badgerBucket struct {
	tx     *badgerTx
	prefix []byte
}

func (b *badgerBucket) fullKey(key []byte) []byte {
	buf := make([]byte, 0, len(b.prefix)+len(key))
	buf = append(buf, b.prefix...)
	return append(buf, key...)
}

func (b *badgerBucket) Get(key []byte) []byte {
	item, err := b.tx.txn.Get(b.fullKey(key))
	if err != nil {
		return nil
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return nil
	}
	if val == nil {
		val = []byte{}
	}
	return val
}

func (b *badgerBucket) Put(key, value []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("key required")
	}
	return b.tx.txn.Set(b.fullKey(key), bytes.Clone(value))
}

func (b *badgerBucket) Delete(key []byte) error {
	return b.tx.txn.Delete(b.fullKey(key))
}

func (b *badgerBucket) Cursor() storageCursor {
	// Iterators must be closed before the transaction ends.
	it := b.tx.txn.NewIterator(badger.IteratorOptions{
		PrefetchValues: true,
		PrefetchSize:   100,
		Prefix:         b.prefix,
	})
	b.tx.iterators = append(b.tx.iterators, it)
	return &badgerCursor{it: it, prefix: b.prefix}
}

func (b *badgerBucket) KeyCount() int {
	it := b.tx.txn.NewIterator(badger.IteratorOptions{Prefix: b.prefix})
	defer it.Close()
	var n int
	for it.Seek(b.prefix); it.ValidForPrefix(b.prefix); it.Next() {
		if len(it.Item().Key()) > len(b.prefix) {
			n++
		}
	}
	return n
}

type badgerCursor struct {
	it     *badger.Iterator
	prefix []byte
}

func (c *badgerCursor) current() ([]byte, []byte) {
	for c.it.ValidForPrefix(c.prefix) {
		item := c.it.Item()
		if len(item.Key()) == len(c.prefix) {
			c.it.Next() // bucket marker
			continue
		}
		key := item.KeyCopy(nil)[len(c.prefix):]
		val, err := item.ValueCopy(nil)
		if err != nil {
			return nil, nil
		}
		if val == nil {
			val = []byte{}
		}
		return key, val
	}
	return nil, nil
}

func (c *badgerCursor) First() ([]byte, []byte) {
	c.it.Seek(c.prefix)
	return c.current()
}

func (c *badgerCursor) Seek(seek []byte) ([]byte, []byte) {
	full := make([]byte, 0, len(c.prefix)+len(seek))
	full = append(full, c.prefix...)
	c.it.Seek(append(full, seek...))
	return c.current()
}

func (c *badgerCursor) Next() ([]byte, []byte) {
	if !c.it.ValidForPrefix(c.prefix) {
		return nil, nil
	}
	c.it.Next()
	return c.current()
}

// badgerLogger routes Badger's printf-style logging into slog.
type badgerLogger struct {
	logger *slog.Logger
	label  string
}

func (l *badgerLogger) log(level slog.Level, format string, args []any) {
	if l.logger == nil || !l.logger.Enabled(context.Background(), level) {
		return
	}
	l.logger.Log(context.Background(), level, strings.TrimSpace(fmt.Sprintf(format, args...)), "component", "badger", "path", l.label)
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.log(slog.LevelError, format, args)
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.log(slog.LevelWarn, format, args)
}

// Badger is chatty at Info, so it is demoted to Debug.
func (l *badgerLogger) Infof(format string, args ...any) {
	l.log(slog.LevelDebug, format, args)
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.log(slog.LevelDebug-4, format, args)
}
