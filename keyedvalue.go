package flatidx

import "bytes"

// Separator splits the key from the value inside a keyed value. Keys produced
// by the walker never contain it; values may.
const Separator byte = 0x00

const separatorString = "\x00"

// EncodeKeyedValue returns key, Separator and value concatenated.
func EncodeKeyedValue(key, value string) []byte {
	return AppendKeyedValue(make([]byte, 0, len(key)+1+len(value)), key, value)
}

// AppendKeyedValue is the append form of EncodeKeyedValue.
func AppendKeyedValue(buf []byte, key, value string) []byte {
	off, buf := grow(buf, len(key)+1+len(value))
	off += copy(buf[off:], key)
	buf[off] = Separator
	copy(buf[off+1:], value)
	return buf
}

// KeyedPrefix returns the prefix shared by every keyed value of the given key.
func KeyedPrefix(key string) []byte {
	return AppendKeyedValue(make([]byte, 0, len(key)+1), key, "")
}

// ExtractKey returns the part of keyedValue before the first separator, or
// all of it if there is no separator.
func ExtractKey(keyedValue []byte) []byte {
	return keyedValue[:separatorIndex(keyedValue)]
}

// ExtractValue returns the part of keyedValue after the first separator, or
// an empty slice if there is no separator.
func ExtractValue(keyedValue []byte) []byte {
	i := separatorIndex(keyedValue)
	if i == len(keyedValue) {
		return keyedValue[i:]
	}
	return keyedValue[i+1:]
}

// SplitKeyedValue returns both halves of keyedValue. ok is false if there is
// no separator, in which case key is the whole input.
func SplitKeyedValue(keyedValue []byte) (key, value []byte, ok bool) {
	i := separatorIndex(keyedValue)
	if i == len(keyedValue) {
		return keyedValue, keyedValue[i:], false
	}
	return keyedValue[:i], keyedValue[i+1:], true
}

// separatorIndex is the single scan shared by all decoders; returns
// len(keyedValue) when there is no separator.
func separatorIndex(keyedValue []byte) int {
	i := bytes.IndexByte(keyedValue, Separator)
	if i < 0 {
		return len(keyedValue)
	}
	return i
}
