/*
Package flatidx indexes documents by flattening object-valued fields into
(key, value) leaf pairs, and stores them on top of a key-value store (Bolt,
Badger, or memory).

A flattened field holds an arbitrary JSON-like object. Parser walks it and
produces one pair per scalar leaf, where the key is the dotted path of field
names leading to the leaf (array elements reuse their field's key). Each pair
becomes two index fields: the root field holding the bare value, and the
keyed field (name + "._keyed") holding key, a 0x00 separator, and the value.
Leaves longer than the ignore-above limit are dropped; nesting deeper than the
depth limit fails the whole document.

Documents can be read from JSON, MessagePack, or YAML through TokenReader.

# Technical Details

**Buckets.**
"docs" maps document IDs to stored values. Every index field has a postings
bucket (nested under "t") and a doc values bucket (nested under "dv").
Badger has no buckets, so they are simulated by key prefixes.

## Binary encoding

**Key encoding**.
Keys are encoded using a _tuple encoding_: elements, then their lengths in
reverse varint form, then the element count. Postings keys are (term, id);
doc values keys are (id, value). Values of index entries are empty.

**Value**: value header, then the source data, then the index key records.

**Value header**:
1. Flags (uvarint): format version, compression, source format.
2. Modification count (uvarint).
3. Raw source size (uvarint).
4. xxhash64 of the raw source (8 bytes).
5. Data size (uvarint).
6. Index size (uvarint).

**Value data**: the document source as given to Put, possibly compressed
with zstd, s2 or lz4.

**Index key records** (inside a value) record the keys contributed by this
document, so that updating or deleting it can remove entries that no longer
apply. Format:
1. Number of entries (uvarint).
2. For each entry: field kind (uvarint), index field name length (uvarint),
   name bytes, key length (uvarint), key bytes.
*/
package flatidx
