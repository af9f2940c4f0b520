package flatidx

import (
	"errors"
	"slices"
	"sort"
	"sync"
)

var errMemClosed = errors.New("memory storage closed")

type bucketKey struct {
	name, sub string
}

// memStorage keeps committed buckets in a map that is replaced wholesale on
// commit. Readers keep the map they started with; the single writer copies
// a bucket the first time it modifies it.
type memStorage struct {
	writeMu sync.Mutex

	mu      sync.Mutex
	buckets map[bucketKey]*memBucket
	closed  bool
}

// newMemStorage returns a transient in-memory storage for tests.
func newMemStorage() storage {
	return &memStorage{buckets: make(map[bucketKey]*memBucket)}
}

func (s *memStorage) BeginTx(writable bool) (storageTx, error) {
	if writable {
		s.writeMu.Lock()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		if writable {
			s.writeMu.Unlock()
		}
		return nil, errMemClosed
	}
	tx := &memTx{s: s, writable: writable}
	if writable {
		tx.buckets = make(map[bucketKey]*memBucket, len(s.buckets))
		for k, b := range s.buckets {
			tx.buckets[k] = b
		}
		tx.owned = make(map[bucketKey]bool)
	} else {
		tx.buckets = s.buckets
	}
	return tx, nil
}

func (s *memStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

type memTx struct {
	s        *memStorage
	writable bool
	done     bool
	buckets  map[bucketKey]*memBucket
	owned    map[bucketKey]bool // buckets already copied by this tx
}

func (tx *memTx) Writable() bool { return tx.writable }

func (tx *memTx) Bucket(name, sub string) storageBucket {
	k := bucketKey{name, sub}
	if tx.buckets[k] == nil {
		return nil
	}
	return memBucketRef{tx, k}
}

func (tx *memTx) CreateBucket(name, sub string) (storageBucket, error) {
	if !tx.writable {
		return nil, errors.New("tx not writable")
	}
	for _, k := range []bucketKey{{name, ""}, {name, sub}} {
		if tx.buckets[k] == nil {
			tx.buckets[k] = &memBucket{data: make(map[string][]byte)}
			tx.owned[k] = true
		}
	}
	return memBucketRef{tx, bucketKey{name, sub}}, nil
}

func (tx *memTx) DeleteBucket(name, sub string) error {
	if !tx.writable {
		return errors.New("tx not writable")
	}
	k := bucketKey{name, sub}
	if sub == "" || tx.buckets[k] == nil {
		return ErrBucketNotFound
	}
	delete(tx.buckets, k)
	delete(tx.owned, k)
	return nil
}

// mutable returns the bucket of k owned by this tx, copying the committed
// one on first use.
func (tx *memTx) mutable(k bucketKey) *memBucket {
	b := tx.buckets[k]
	if !tx.owned[k] {
		b = b.clone()
		tx.buckets[k] = b
		tx.owned[k] = true
	}
	return b
}

func (tx *memTx) Commit() error {
	if tx.done {
		return errors.New("tx already finished")
	}
	if !tx.writable {
		return errors.New("tx not writable")
	}
	// committed buckets are shared by readers and must not change lazily
	for k := range tx.owned {
		tx.buckets[k].sortedKeys()
	}
	tx.s.mu.Lock()
	closed := tx.s.closed
	if !closed {
		tx.s.buckets = tx.buckets
	}
	tx.s.mu.Unlock()
	tx.finish()
	if closed {
		return errMemClosed
	}
	return nil
}

func (tx *memTx) Rollback() error {
	if !tx.done {
		tx.finish()
	}
	return nil
}

func (tx *memTx) finish() {
	tx.done = true
	tx.buckets, tx.owned = nil, nil
	if tx.writable {
		tx.s.writeMu.Unlock()
	}
}

type memBucket struct {
	data map[string][]byte
	keys []string // sorted keys of data; nil after a new key is added
}

func (b *memBucket) clone() *memBucket {
	c := &memBucket{data: make(map[string][]byte, len(b.data))}
	for k, v := range b.data {
		c.data[k] = v
	}
	c.keys = b.keys
	return c
}

func (b *memBucket) sortedKeys() []string {
	if b.keys == nil {
		keys := make([]string, 0, len(b.data))
		for k := range b.data {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		b.keys = keys
	}
	return b.keys
}

// memBucketRef resolves the bucket through the tx on every call, so writes
// made after the tx copied the bucket are seen by earlier handles.
type memBucketRef struct {
	tx *memTx
	k  bucketKey
}

func (r memBucketRef) Get(key []byte) []byte {
	return r.tx.buckets[r.k].data[string(key)]
}

func (r memBucketRef) Put(key, value []byte) error {
	if !r.tx.writable {
		return errors.New("tx not writable")
	}
	b := r.tx.mutable(r.k)
	if _, exists := b.data[string(key)]; !exists {
		b.keys = nil
	}
	// values are never modified in place, so copies of the bucket share them
	b.data[string(key)] = append([]byte{}, value...)
	return nil
}

func (r memBucketRef) Delete(key []byte) error {
	if !r.tx.writable {
		return errors.New("tx not writable")
	}
	if _, exists := r.tx.buckets[r.k].data[string(key)]; !exists {
		return nil
	}
	b := r.tx.mutable(r.k)
	delete(b.data, string(key))
	if b.keys != nil {
		i, _ := slices.BinarySearch(b.keys, string(key))
		b.keys = slices.Delete(slices.Clone(b.keys), i, i+1)
	}
	return nil
}

func (r memBucketRef) Cursor() storageCursor {
	b := r.tx.buckets[r.k]
	return &memCursor{b: b, keys: b.sortedKeys(), pos: -1}
}

func (r memBucketRef) KeyCount() int { return len(r.tx.buckets[r.k].data) }

// memCursor walks the keys the bucket had when the cursor was created.
type memCursor struct {
	b    *memBucket
	keys []string
	pos  int
}

func (c *memCursor) at(i int) ([]byte, []byte) {
	c.pos = i
	if i >= len(c.keys) {
		return nil, nil
	}
	k := c.keys[i]
	return []byte(k), c.b.data[k]
}

func (c *memCursor) First() ([]byte, []byte) { return c.at(0) }

func (c *memCursor) Seek(seek []byte) ([]byte, []byte) {
	return c.at(sort.SearchStrings(c.keys, string(seek)))
}

func (c *memCursor) Next() ([]byte, []byte) { return c.at(c.pos + 1) }
