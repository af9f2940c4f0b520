package flatidx

import "fmt"

// Reindex rebuilds every index bucket from the stored document sources. Use
// it after changing mappings of an existing database. Returns the number of
// documents indexed.
func (tx *Tx) Reindex() (int, error) {
	if !tx.writable {
		return 0, fmt.Errorf("tx not writable")
	}
	for _, name := range tx.db.schema.fieldNames() {
		for _, bucket := range []string{postingsBucket, docValuesBucket} {
			err := tx.stx.DeleteBucket(bucket, name)
			if err != nil && err != ErrBucketNotFound {
				return 0, err
			}
			if _, err := tx.stx.CreateBucket(bucket, name); err != nil {
				return 0, err
			}
		}
	}

	var docs []*Document
	var firstErr error
	tx.Documents(func(doc *Document, err error) bool {
		if err != nil {
			firstErr = err
			return false
		}
		docs = append(docs, doc)
		return true
	})
	if firstErr != nil {
		return 0, firstErr
	}

	for _, doc := range docs {
		if err := tx.put(doc.ID, doc.Format, doc.Source, true); err != nil {
			return 0, err
		}
	}
	if tx.db.verbose {
		tx.db.logger.Debug("flatidx: REINDEX", "docs", len(docs))
	}
	return len(docs), nil
}
