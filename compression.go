package flatidx

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects how document sources are compressed at rest.
type Compression uint8

const (
	NoCompression Compression = iota
	Zstd
	S2
	LZ4

	maxCompression = LZ4
)

func (c Compression) String() string {
	switch c {
	case NoCompression:
		return "none"
	case Zstd:
		return "zstd"
	case S2:
		return "s2"
	case LZ4:
		return "lz4"
	default:
		return fmt.Sprintf("Compression(%d)", int(c))
	}
}

func ParseCompression(s string) (Compression, error) {
	switch s {
	case "none", "":
		return NoCompression, nil
	case "zstd":
		return Zstd, nil
	case "s2":
		return S2, nil
	case "lz4":
		return LZ4, nil
	default:
		return 0, fmt.Errorf("unknown compression %q", s)
	}
}

var zstdDecoderPool = sync.Pool{
	New: func() any {
		decoder, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
		if err != nil {
			panic(fmt.Sprintf("failed to create zstd decoder: %v", err))
		}
		return decoder
	},
}

var zstdEncoderPool = sync.Pool{
	New: func() any {
		encoder, err := zstd.NewWriter(nil,
			zstd.WithEncoderLevel(zstd.SpeedDefault),
			zstd.WithEncoderCRC(false))
		if err != nil {
			panic(fmt.Sprintf("failed to create zstd encoder: %v", err))
		}
		return encoder
	},
}

var lz4CompressorPool = sync.Pool{
	New: func() any {
		return &lz4.Compressor{}
	},
}

// compress appends the compressed form of data to buf.
func (c Compression) compress(buf, data []byte) []byte {
	switch c {
	case NoCompression:
		return appendRaw(buf, data)
	case Zstd:
		encoder := zstdEncoderPool.Get().(*zstd.Encoder)
		defer zstdEncoderPool.Put(encoder)
		return encoder.EncodeAll(data, buf)
	case S2:
		off, buf := grow(buf, s2.MaxEncodedLen(len(data)))
		n := len(s2.Encode(buf[off:], data))
		return buf[:off+n]
	case LZ4:
		off, buf := grow(buf, lz4.CompressBlockBound(len(data)))
		lc := lz4CompressorPool.Get().(*lz4.Compressor)
		defer lz4CompressorPool.Put(lc)
		n, err := lc.CompressBlock(data, buf[off:])
		if err != nil {
			panic(fmt.Errorf("lz4: %w", err))
		}
		if n == 0 {
			// incompressible
			return buf[:off]
		}
		return buf[:off+n]
	default:
		panic(fmt.Errorf("unsupported compression %v", c))
	}
}

// decompress returns the original data, which is known to be rawSize bytes long.
func (c Compression) decompress(data []byte, rawSize int) ([]byte, error) {
	switch c {
	case NoCompression:
		return data, nil
	case Zstd:
		decoder := zstdDecoderPool.Get().(*zstd.Decoder)
		defer zstdDecoderPool.Put(decoder)
		return decoder.DecodeAll(data, make([]byte, 0, rawSize))
	case S2:
		return s2.Decode(make([]byte, rawSize), data)
	case LZ4:
		out := make([]byte, rawSize)
		n, err := lz4.UncompressBlock(data, out)
		if err != nil {
			return nil, err
		}
		return out[:n], nil
	default:
		return nil, fmt.Errorf("unsupported compression %v", c)
	}
}
