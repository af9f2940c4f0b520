package flatidx

import "bytes"

// Document is a stored document as returned by Get.
type Document struct {
	ID       string
	Format   Format
	Source   []byte
	ModCount uint64
}

// Reader returns a token reader over the document source.
func (doc *Document) Reader() (TokenReader, error) {
	return NewReader(doc.Format, doc.Source)
}

// Get returns the stored document with the given ID, or nil if there is
// none. A stored value that fails to decode or verify yields an error
// wrapping *DataError.
func (tx *Tx) Get(id string) (*Document, error) {
	docs := tx.bucket(docsBucket, "")
	if docs == nil {
		return nil, nil
	}
	raw := docs.Get([]byte(id))
	if raw == nil {
		if tx.db.verbose {
			tx.db.logger.Debug("flatidx: GET.NOTFOUND", "id", id)
		}
		return nil, nil
	}

	var vle value
	if err := vle.decode(raw); err != nil {
		return nil, docErrf(id, err, "decoding stored document")
	}
	src, err := vle.source()
	if err != nil {
		return nil, docErrf(id, err, "reading stored document")
	}
	if vle.Flags.compression() == NoCompression {
		src = bytes.Clone(src) // raw points into storage memory
	}
	if tx.db.verbose {
		tx.db.logger.Debug("flatidx: GET", "id", id, "value", vle.String())
	}
	return &Document{
		ID:       id,
		Format:   vle.Flags.format(),
		Source:   src,
		ModCount: vle.ModCount,
	}, nil
}

// Has reports whether a document with the given ID is stored.
func (tx *Tx) Has(id string) bool {
	docs := tx.bucket(docsBucket, "")
	return docs != nil && docs.Get([]byte(id)) != nil
}

// Documents calls f for every stored document in ID order until f returns
// false. Documents that fail to decode are passed with a nil *Document and
// the error.
func (tx *Tx) Documents(f func(doc *Document, err error) bool) {
	docs := tx.bucket(docsBucket, "")
	if docs == nil {
		return
	}
	c := docs.Cursor()
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		doc, err := tx.Get(string(k))
		if !f(doc, err) {
			return
		}
	}
}
