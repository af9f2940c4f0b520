package flatidx

import (
	"bytes"
	"encoding/hex"
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestTuple(t *testing.T) {
	l1024 := longhex(1024)
	tests := []struct {
		input    string
		expected string
	}{
		{"", "01"},
		{"4241", "424101"},
		{l1024, l1024 + "01"},
		{"4241|393837", "42413938370202"},
		{"1122|334455|66778899", "112233445566778899020303"},
		{l1024 + "|" + l1024, l1024 + l1024 + "088002"},
		{"|", "0002"},
		{"||", "000003"},
		{"|||", "00000004"},
		{"||||", "0000000005"},
	}
	for _, tt := range tests {
		src := parseTupleString(tt.input)
		if src.String() != tt.input {
			t.Errorf("** parseTupleString(%q).String() does not round-trip", tt.input)
			continue
		}

		encoded := src.encode(nil)
		encodedStr := hex.EncodeToString(encoded)
		if encodedStr != tt.expected {
			t.Errorf("** tuple(%q).encode() = %q, wanted %q", tt.input, encodedStr, tt.expected)
		} else {
			decoded := must(decodeTuple(encoded))
			if !reflect.DeepEqual(src, decoded) {
				t.Errorf("** decodeTuple(%q) = %s, wanted %s", encodedStr, decoded.String(), tt.input)
			}
		}
	}
}

func TestTuple_Invalid(t *testing.T) {
	for _, input := range []string{"05", "ff", "41410502"} {
		_, err := decodeTuple(must(hex.DecodeString(input)))
		if err == nil {
			t.Errorf("** decodeTuple(%s) err = nil, wanted error", input)
		}
	}

	_, _, err := decodePair(tuple{[]byte("a")}.encode(nil))
	var de *DataError
	if !errors.As(err, &de) {
		t.Fatalf("decodePair(1-tuple) err = %T %v, wanted *DataError", err, err)
	}
}

func TestTermKey(t *testing.T) {
	key := termKey(nil, []byte("env\x00prod"), []byte("doc1"))
	if !bytes.HasPrefix(key, []byte("env\x00prod")) {
		t.Fatalf("termKey = %x, wanted term prefix", key)
	}
	term, id := must2(decodePair(key))
	if string(term) != "env\x00prod" || string(id) != "doc1" {
		t.Fatalf("decodePair = (%q, %q), wanted (env\\0prod, doc1)", term, id)
	}

	key = docValueKey(nil, []byte("doc1"), []byte(""))
	id, v := must2(decodePair(key))
	if string(id) != "doc1" || len(v) != 0 {
		t.Fatalf("decodePair(docValueKey) = (%q, %q), wanted (doc1, empty)", id, v)
	}
}

func TestRuvarint(t *testing.T) {
	for _, v := range []uint32{0, 1, 127, 128, 300, 1 << 20, 1<<32 - 1} {
		buf := appendRuvarint([]byte{0xEE}, v)
		got, rest, err := decodeRuvarint(buf)
		if err != nil || got != v || !bytes.Equal(rest, []byte{0xEE}) {
			t.Errorf("** decodeRuvarint(appendRuvarint(%d)) = (%d, %x, %v)", v, got, rest, err)
		}
	}
	if _, _, err := decodeRuvarint(nil); err == nil {
		t.Fatalf("decodeRuvarint(nil) err = nil, wanted error")
	}
}

func parseTupleString(s string) tuple {
	els := strings.Split(s, "|")
	tup := make(tuple, len(els))
	for i, el := range els {
		tup[i] = must(hex.DecodeString(el))
	}
	return tup
}

func longhex(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i)
	}
	return hex.EncodeToString(b)
}
