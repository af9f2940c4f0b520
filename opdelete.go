package flatidx

import "bytes"

// Delete removes a document along with every index entry it contributed.
// Returns false if there is no such document.
func (tx *Tx) Delete(id string) bool {
	docs := nonNil(tx.bucket(docsBucket, ""))
	idRaw := []byte(id)
	oldRaw := docs.Get(idRaw)
	if oldRaw == nil {
		if tx.db.verbose {
			tx.db.logger.Debug("flatidx: DELETE.NOOP", "id", id)
		}
		return false
	}
	oldRaw = bytes.Clone(oldRaw)

	var old value
	if err := old.decode(oldRaw); err != nil {
		panic(docErrf(id, err, "decoding stored document"))
	}

	tx.markWritten()
	ensure(docs.Delete(idRaw))
	ensure(decodeIndexKeys(old.Index, func(row indexRow) {
		tx.deleteIndexRow(row)
	}))

	if tx.db.verbose {
		tx.db.logger.Debug("flatidx: DELETE", "id", id, "mod", old.ModCount)
	}
	return true
}
