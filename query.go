package flatidx

import (
	"bytes"
	"slices"
	"strings"
)

func (tx *Tx) searchableMapping(field string) (*Mapping, error) {
	m := tx.db.schema.Mapping(field)
	if m == nil {
		return nil, mappingErrf(field, "unknown flattened field")
	}
	if !m.IsSearchable() {
		return nil, mappingErrf(field, "field is not searchable, enable index to query it")
	}
	return m, nil
}

func (tx *Tx) docValuesMapping(field string) (*Mapping, error) {
	m := tx.db.schema.Mapping(field)
	if m == nil {
		return nil, mappingErrf(field, "unknown flattened field")
	}
	if !m.HasDocValues() {
		return nil, mappingErrf(field, "field has no doc values")
	}
	return m, nil
}

// checkKey rejects keys that would be ambiguous inside a keyed value.
func checkKey(field, key string) error {
	if strings.IndexByte(key, Separator) >= 0 {
		return mappingErrf(field, "key %q contains the reserved character \\0", key)
	}
	return nil
}

// Term returns the sorted IDs of documents having a leaf whose value is
// exactly value, under any key.
func (tx *Tx) Term(field, value string) ([]string, error) {
	m, err := tx.searchableMapping(field)
	if err != nil {
		return nil, err
	}
	return tx.scanPostings(m.name, []byte(value), true), nil
}

// KeyedTerm returns the sorted IDs of documents having value at key.
func (tx *Tx) KeyedTerm(field, key, value string) ([]string, error) {
	if err := checkKey(field, key); err != nil {
		return nil, err
	}
	m, err := tx.searchableMapping(field)
	if err != nil {
		return nil, err
	}
	return tx.scanPostings(m.keyedName, EncodeKeyedValue(key, value), true), nil
}

// KeyedPrefix returns the sorted IDs of documents having a value at key that
// starts with prefix.
func (tx *Tx) KeyedPrefix(field, key, prefix string) ([]string, error) {
	if err := checkKey(field, key); err != nil {
		return nil, err
	}
	m, err := tx.searchableMapping(field)
	if err != nil {
		return nil, err
	}
	return tx.scanPostings(m.keyedName, EncodeKeyedValue(key, prefix), false), nil
}

// Exists returns the sorted IDs of documents having any value at key. An
// empty key matches documents having any leaf in the field.
func (tx *Tx) Exists(field, key string) ([]string, error) {
	if err := checkKey(field, key); err != nil {
		return nil, err
	}
	m, err := tx.searchableMapping(field)
	if err != nil {
		return nil, err
	}
	if key == "" {
		return tx.scanPostings(m.name, nil, false), nil
	}
	return tx.scanPostings(m.keyedName, KeyedPrefix(key), false), nil
}

// scanPostings collects IDs from the postings bucket of an index field whose
// term equals (exact) or starts with term.
func (tx *Tx) scanPostings(indexField string, term []byte, exact bool) []string {
	b := tx.bucket(postingsBucket, indexField)
	if b == nil {
		return nil
	}
	var ids []string
	c := b.Cursor()
	for k, _ := c.Seek(term); k != nil && bytes.HasPrefix(k, term); k, _ = c.Next() {
		t, id := must2(decodePair(k))
		if exact {
			if !bytes.Equal(t, term) {
				continue
			}
		} else if !bytes.HasPrefix(t, term) {
			continue
		}
		ids = append(ids, string(id))
	}
	slices.Sort(ids)
	ids = slices.Compact(ids)
	if tx.db.verbose {
		tx.db.logger.Debug("flatidx: SCAN", "field", indexField, "term", printable(term), "exact", exact, "hits", len(ids))
	}
	return ids
}

// Values returns the sorted distinct doc values of a document's field.
func (tx *Tx) Values(field, id string) ([]string, error) {
	m, err := tx.docValuesMapping(field)
	if err != nil {
		return nil, err
	}
	var result []string
	tx.scanDocValues(m.name, id, func(v []byte) {
		result = append(result, string(v))
	})
	slices.Sort(result)
	return slices.Compact(result), nil
}

// KeyedValues returns the sorted distinct values a document has at key.
func (tx *Tx) KeyedValues(field, key, id string) ([]string, error) {
	if err := checkKey(field, key); err != nil {
		return nil, err
	}
	m, err := tx.docValuesMapping(field)
	if err != nil {
		return nil, err
	}
	var result []string
	tx.scanDocValues(m.keyedName, id, func(kv []byte) {
		if string(ExtractKey(kv)) == key {
			result = append(result, string(ExtractValue(kv)))
		}
	})
	slices.Sort(result)
	return slices.Compact(result), nil
}

func (tx *Tx) scanDocValues(indexField, id string, f func(v []byte)) {
	b := tx.bucket(docValuesBucket, indexField)
	if b == nil {
		return
	}
	idRaw := []byte(id)
	c := b.Cursor()
	for k, _ := c.Seek(idRaw); k != nil && bytes.HasPrefix(k, idRaw); k, _ = c.Next() {
		docID, v := must2(decodePair(k))
		if bytes.Equal(docID, idRaw) {
			f(v)
		}
	}
}
