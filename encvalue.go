package flatidx

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

const (
	valueFormatVer1      = 1
	valueFormatVerLatest = valueFormatVer1
)

type valueFlags uint64

const (
	vfVerBit0 = valueFlags(1 << iota)
	vfVerBit1
	vfVerBit2
	vfVerBit3
	vfCompressionBit0
	vfCompressionBit1
	vfFormatBit0
	vfFormatBit1

	vfVerMask          = (vfVerBit0 | vfVerBit1 | vfVerBit2 | vfVerBit3)
	vfCompressionMask  = (vfCompressionBit0 | vfCompressionBit1)
	vfFormatMask       = (vfFormatBit0 | vfFormatBit1)
	vfCompressionShift = 4
	vfFormatShift      = 6
	vfVer1             = vfVerBit0
	vfSupportedMask    = (vfVerMask | vfCompressionMask | vfFormatMask)

	minValueSize = 13
)

func makeValueFlags(c Compression, f Format) valueFlags {
	return vfVer1 | valueFlags(c)<<vfCompressionShift | valueFlags(f)<<vfFormatShift
}

func (vf valueFlags) ver() valueFlags {
	return vf & vfVerMask
}

func (vf valueFlags) compression() Compression {
	return Compression((vf & vfCompressionMask) >> vfCompressionShift)
}

func (vf valueFlags) format() Format {
	return Format((vf & vfFormatMask) >> vfFormatShift)
}

// value is the stored form of a document.
//
// Format: flags (uvarint), mod count (uvarint), raw size (uvarint), xxhash64
// of the raw source (8 bytes, big endian), data size (uvarint), index size
// (uvarint), then data (the possibly compressed source) and index (the
// document's index key records).
type value struct {
	Flags    valueFlags
	ModCount uint64
	RawSize  int
	Checksum uint64
	Data     []byte
	Index    []byte
}

func encodeValue(buf []byte, source []byte, format Format, compression Compression, modCount uint64, rows indexRows) []byte {
	data := compression.compress(nil, source)
	if compression != NoCompression && (len(source) == 0 || len(data) == 0 || len(data) >= len(source)) {
		compression, data = NoCompression, source
	}
	index := appendIndexKeys(nil, rows)

	buf = appendUvarint(buf, uint64(makeValueFlags(compression, format)))
	buf = appendUvarint(buf, modCount)
	buf = appendUvarint(buf, uint64(len(source)))
	buf = appendUint64(buf, xxhash.Sum64(source))
	buf = appendUvarint(buf, uint64(len(data)))
	buf = appendUvarint(buf, uint64(len(index)))
	buf = appendRaw(buf, data)
	buf = appendRaw(buf, index)
	return buf
}

func (vle *value) decode(data []byte) error {
	if len(data) < minValueSize {
		return dataErrf(data, 0, nil, "invalid value: at least %d bytes required", minValueSize)
	}
	d := makeByteDecoder(data)

	v, err := d.Uvarint()
	if err != nil {
		return err
	}
	if (v & ^uint64(vfSupportedMask)) != 0 {
		return dataErrf(data, 0, nil, "invalid value: unsupported flags %x", v)
	}
	vle.Flags = valueFlags(v)
	if vle.Flags.ver() != valueFormatVerLatest {
		return dataErrf(data, 0, nil, "invalid value: unsupported format version %d", vle.Flags.ver())
	}
	if vle.Flags.compression() > maxCompression {
		return dataErrf(data, 0, nil, "invalid value: unsupported compression %d", vle.Flags.compression())
	}

	if vle.ModCount, err = d.Uvarint(); err != nil {
		return err
	}
	if vle.RawSize, err = d.Uvarinti(); err != nil {
		return err
	}
	if vle.Checksum, err = d.Uint64(); err != nil {
		return err
	}
	dataSize, err := d.Uvarinti()
	if err != nil {
		return err
	}
	indexSize, err := d.Uvarinti()
	if err != nil {
		return err
	}
	if len(d.Buf) != dataSize+indexSize {
		return dataErrf(data, d.Off(), nil, "invalid value: got %d bytes for data+index, expected %d bytes", len(d.Buf), dataSize+indexSize)
	}
	vle.Data = d.Buf[:dataSize]
	vle.Index = d.Buf[dataSize:]
	return nil
}

// source decompresses the stored document and verifies its checksum.
func (vle *value) source() ([]byte, error) {
	raw, err := vle.Flags.compression().decompress(vle.Data, vle.RawSize)
	if err != nil {
		return nil, dataErrf(vle.Data, 0, err, "decompressing %v document", vle.Flags.compression())
	}
	if len(raw) != vle.RawSize {
		return nil, dataErrf(vle.Data, 0, nil, "document size mismatch: got %d bytes, expected %d", len(raw), vle.RawSize)
	}
	if sum := xxhash.Sum64(raw); sum != vle.Checksum {
		return nil, dataErrf(vle.Data, 0, nil, "document checksum mismatch: got %016x, expected %016x", sum, vle.Checksum)
	}
	return raw, nil
}

func (vle *value) String() string {
	return fmt.Sprintf("v%d %v %v m%d raw=%d data=%d index=%d", vle.Flags.ver(), vle.Flags.format(), vle.Flags.compression(), vle.ModCount, vle.RawSize, len(vle.Data), len(vle.Index))
}
