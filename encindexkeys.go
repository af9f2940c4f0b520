package flatidx

import (
	"bytes"
	"cmp"
	"encoding/binary"
	"slices"
)

// indexRow is one storage entry contributed by a document: a postings key or
// a doc values key in the bucket of Field.
type indexRow struct {
	Kind   FieldKind
	Field  string
	KeyRaw []byte
}

type indexRows []indexRow

func compareIndexRows(a, b indexRow) int {
	if c := cmp.Compare(a.Kind, b.Kind); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Field, b.Field); c != 0 {
		return c
	}
	return bytes.Compare(a.KeyRaw, b.KeyRaw)
}

// finalize sorts the rows and drops duplicates, which repeated leaves of a
// multi-valued field produce.
func (rows indexRows) finalize() indexRows {
	slices.SortFunc(rows, compareIndexRows)
	return slices.CompactFunc(rows, func(a, b indexRow) bool {
		return compareIndexRows(a, b) == 0
	})
}

func appendIndexKeys(buf []byte, rows indexRows) []byte {
	var total = binary.MaxVarintLen32 + len(rows)*(3*binary.MaxVarintLen32)
	for _, row := range rows {
		total += len(row.Field) + len(row.KeyRaw)
	}

	buf = ensureCapacity(buf, len(buf)+total)
	buf = appendUvarint(buf, uint64(len(rows)))
	for _, row := range rows {
		buf = appendUvarint(buf, uint64(row.Kind))
		buf = appendUvarint(buf, uint64(len(row.Field)))
		buf = appendString(buf, row.Field)
		buf = appendVarbytes(buf, row.KeyRaw)
	}
	return buf
}

func decodeIndexKeys(data []byte, f func(row indexRow)) error {
	d := makeByteDecoder(data)
	n, err := d.Uvarinti()
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		kind, err := d.Uvarint()
		if err != nil {
			return err
		}
		field, err := d.VarBytes()
		if err != nil {
			return err
		}
		key, err := d.VarBytes()
		if err != nil {
			return err
		}
		f(indexRow{FieldKind(kind), string(field), key})
	}
	if len(d.Buf) != 0 {
		return dataErrf(data, d.Off(), nil, "%d trailing bytes after index keys", len(d.Buf))
	}
	return nil
}

type indexDiffer struct {
	newRows indexRows
}

func (d *indexDiffer) checkOldKey(old indexRow) bool {
	// Look for a new row that's >= old row.
	for len(d.newRows) > 0 {
		c := compareIndexRows(old, d.newRows[0])
		if c < 0 {
			return false
		} else if c == 0 {
			return true // found exact match
		}
		d.newRows = d.newRows[1:] // shift to next new row and compare again
	}
	return false // no more new rows, so remaining old rows have been deleted
}

// findRemovedIndexKeys calls removed for every row in oldData that is not in
// newRows. newRows must be finalized.
func findRemovedIndexKeys(oldData []byte, newRows indexRows, removed func(row indexRow)) error {
	d := indexDiffer{newRows}
	return decodeIndexKeys(oldData, func(row indexRow) {
		if !d.checkOldKey(row) {
			removed(row)
		}
	})
}
