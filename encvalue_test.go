package flatidx

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestValueFlags(t *testing.T) {
	vf := makeValueFlags(LZ4, YAML)
	if vf.ver() != vfVer1 || vf.compression() != LZ4 || vf.format() != YAML {
		t.Fatalf("flags = (%v, %v, %v), wanted (1, lz4, yaml)", vf.ver(), vf.compression(), vf.format())
	}
	if (vf & ^vfSupportedMask) != 0 {
		t.Fatalf("flags %x have unsupported bits", vf)
	}
}

func TestValue_RoundTrip(t *testing.T) {
	source := []byte(strings.Repeat(`{"labels":{"env":"prod","tier":"web"}}`, 20))
	rows := parseIndexKeys("1:f:a 2:f:b").finalize()
	for _, c := range []Compression{NoCompression, Zstd, S2, LZ4} {
		raw := encodeValue(nil, source, JSON, c, 7, rows)

		var vle value
		if err := vle.decode(raw); err != nil {
			t.Fatalf("%v: decode failed: %v", c, err)
		}
		if vle.ModCount != 7 || vle.RawSize != len(source) || vle.Flags.format() != JSON {
			t.Fatalf("%v: decoded %v", c, &vle)
		}
		if vle.Flags.compression() != c {
			t.Fatalf("%v: compression = %v, wanted %v", c, vle.Flags.compression(), c)
		}
		if c != NoCompression && len(vle.Data) >= len(source) {
			t.Fatalf("%v: data is %d bytes, source %d bytes", c, len(vle.Data), len(source))
		}
		src, err := vle.source()
		if err != nil {
			t.Fatalf("%v: source failed: %v", c, err)
		}
		if !bytes.Equal(src, source) {
			t.Fatalf("%v: source = %q, wanted %q", c, src, source)
		}
		if !bytes.Equal(vle.Index, appendIndexKeys(nil, rows)) {
			t.Fatalf("%v: index = %x", c, vle.Index)
		}
	}
}

func TestValue_Incompressible(t *testing.T) {
	source := []byte("{}")
	for _, c := range []Compression{Zstd, S2, LZ4} {
		raw := encodeValue(nil, source, JSON, c, 1, nil)
		var vle value
		ensure(vle.decode(raw))
		if vle.Flags.compression() != NoCompression {
			t.Errorf("** %v: compression = %v, wanted none for tiny input", c, vle.Flags.compression())
		}
	}
}

func TestValue_Corrupted(t *testing.T) {
	source := []byte(`{"a":{"b":"c"}}`)
	raw := encodeValue(nil, source, JSON, NoCompression, 1, nil)

	var vle value
	ensure(vle.decode(raw))
	vle.Data = bytes.Clone(vle.Data)
	vle.Data[3] ^= 0xFF
	_, err := vle.source()
	var de *DataError
	if !errors.As(err, &de) {
		t.Fatalf("source(corrupted) err = %T %v, wanted *DataError", err, err)
	}

	for _, bad := range [][]byte{
		raw[:5],
		raw[:len(raw)-1],
		append(bytes.Clone(raw), 1),
		append([]byte{0xFF, 0x7F}, raw[1:]...),
	} {
		if err := vle.decode(bad); !errors.As(err, &de) {
			t.Errorf("** decode(%x) err = %T %v, wanted *DataError", bad, err, err)
		}
	}
}

func TestParseCompression(t *testing.T) {
	for _, c := range []Compression{NoCompression, Zstd, S2, LZ4} {
		parsed, err := ParseCompression(c.String())
		if err != nil || parsed != c {
			t.Errorf("** ParseCompression(%q) = %v, %v, wanted %v", c.String(), parsed, err, c)
		}
	}
	if _, err := ParseCompression("brotli"); err == nil {
		t.Fatalf("ParseCompression(brotli) err = nil, wanted error")
	}
}
