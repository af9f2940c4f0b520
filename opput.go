package flatidx

import (
	"bytes"
	"slices"

	"github.com/cespare/xxhash/v2"
)

// Put stores a document and indexes its flattened fields, replacing any
// document with the same ID. The source is decoded with the token reader of
// the given format; parse errors are returned before anything is written.
func (tx *Tx) Put(id string, format Format, source []byte) error {
	return tx.put(id, format, source, false)
}

// put with reindexing set rewrites index entries unconditionally and keeps
// the modification count; the caller has already dropped the old entries.
func (tx *Tx) put(id string, format Format, source []byte, reindexing bool) error {
	if id == "" {
		return docErrf(id, nil, "document ID required")
	}
	if !tx.writable {
		return docErrf(id, nil, "tx not writable")
	}
	r, err := NewReader(format, source)
	if err != nil {
		return docErrf(id, err, "reading %v", format)
	}

	fields, err := tx.db.schema.appendFields(fieldsPool.Get().([]Field), r)
	defer releaseFields(fields)
	if err != nil {
		return docErrf(id, err, "parsing %v", format)
	}

	idRaw := []byte(id)
	keyBuf := keyBytesPool.Get().([]byte)
	rows := indexRowsPool.Get().(indexRows)
	defer func() {
		releaseIndexRows(rows)
	}()
	for _, f := range fields {
		off := len(keyBuf)
		switch f.Kind {
		case Searchable:
			keyBuf = termKey(keyBuf, f.Value, idRaw)
		case DocValues:
			keyBuf = docValueKey(keyBuf, idRaw, f.Value)
		}
		rows = append(rows, indexRow{f.Kind, f.Name, keyBuf[off:len(keyBuf):len(keyBuf)]})
	}
	rows = rows.finalize()
	// Bolt requires keys and values to stay intact until the tx ends.
	tx.keepKeyBuf(keyBuf)

	docs := nonNil(tx.bucket(docsBucket, ""))
	var old value
	oldRaw := docs.Get(idRaw)
	if oldRaw != nil {
		oldRaw = bytes.Clone(oldRaw)
		if err := old.decode(oldRaw); err != nil {
			return docErrf(id, err, "decoding stored document")
		}
	}

	indexBytes := appendIndexKeys(nil, rows)
	if oldRaw != nil && !reindexing && old.Flags.format() == format && old.RawSize == len(source) && old.Checksum == xxhash.Sum64(source) && bytes.Equal(indexBytes, old.Index) {
		if tx.db.verbose {
			tx.db.logger.Debug("flatidx: PUT.NOOP", "id", id, "mod", old.ModCount)
		}
		return nil
	}

	newModCount := old.ModCount + 1
	if reindexing && oldRaw != nil {
		newModCount = old.ModCount
	}
	valueRaw := encodeValue(valueBytesPool.Get().([]byte), source, format, tx.db.compression, newModCount, rows)
	tx.keepValueBuf(valueRaw)
	tx.markWritten()
	ensure(docs.Put(idRaw, valueRaw))

	if oldRaw != nil && !reindexing {
		ensure(findRemovedIndexKeys(old.Index, rows, func(row indexRow) {
			tx.deleteIndexRow(row)
		}))
	}

	var prevField string
	var prevKind FieldKind
	var b storageBucket
	for _, row := range rows {
		if b == nil || row.Field != prevField || row.Kind != prevKind {
			b = tx.writableFieldBucket(row.Kind, row.Field)
			prevField, prevKind = row.Field, row.Kind
		}
		ensure(b.Put(row.KeyRaw, emptyIndexValue))
	}

	tx.countFields(fields)
	if tx.db.verbose {
		tx.db.logger.Debug("flatidx: PUT", "id", id, "format", format, "mod", newModCount, "fields", len(fields), "rows", len(rows), "size", len(valueRaw))
	}
	return nil
}

func (tx *Tx) deleteIndexRow(row indexRow) {
	b := tx.fieldBucket(row.Kind, row.Field)
	if b == nil {
		return
	}
	ensure(b.Delete(row.KeyRaw))
	tx.delta(row.Field).removed++
	if tx.db.verbose {
		tx.db.logger.Debug("flatidx: UNINDEX", "field", row.Field, "kind", row.Kind, hexAttr("key", row.KeyRaw))
	}
}

func (tx *Tx) countFields(fields []Field) {
	var seen []string
	for _, f := range fields {
		tx.delta(f.Name).values++
		if !slices.Contains(seen, f.Name) {
			seen = append(seen, f.Name)
			tx.delta(f.Name).docs++
		}
	}
}
