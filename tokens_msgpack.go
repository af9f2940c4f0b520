package flatidx

import (
	"encoding/base64"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"
)

type msgpackFrame struct {
	object    bool
	expectKey bool
	remaining int
}

// MsgPackReader reads tokens from a single MessagePack value.
type MsgPackReader struct {
	dec     *msgpack.Decoder
	stack   []msgpackFrame
	tok     Token
	name    string
	text    string
	started bool
}

func NewMsgPackReader(r io.Reader) *MsgPackReader {
	return &MsgPackReader{dec: msgpack.NewDecoder(r)}
}

func (mr *MsgPackReader) Token() Token { return mr.tok }
func (mr *MsgPackReader) Name() string { return mr.name }
func (mr *MsgPackReader) Text() string { return mr.text }

func (mr *MsgPackReader) Next() (Token, error) {
	tok, err := mr.next()
	if err != nil {
		mr.tok = TokenNone
		return TokenNone, err
	}
	mr.tok = tok
	return tok, nil
}

func (mr *MsgPackReader) next() (Token, error) {
	n := len(mr.stack)
	if n == 0 {
		if mr.started {
			return TokenNone, io.EOF
		}
		mr.started = true
		return mr.readValue()
	}

	top := &mr.stack[n-1]
	if top.object && top.expectKey {
		if top.remaining == 0 {
			mr.stack = mr.stack[:n-1]
			return EndObject, nil
		}
		key, err := mr.dec.DecodeInterfaceLoose()
		if err != nil {
			return TokenNone, noEOF(err)
		}
		name, err := msgpackScalarText(key)
		if err != nil {
			return TokenNone, fmt.Errorf("msgpack: map key: %w", err)
		}
		top.expectKey = false
		mr.name = name
		return FieldName, nil
	}

	if top.remaining == 0 {
		mr.stack = mr.stack[:n-1]
		return EndArray, nil
	}
	top.remaining--
	if top.object {
		top.expectKey = true
	}
	return mr.readValue()
}

func (mr *MsgPackReader) readValue() (Token, error) {
	c, err := mr.dec.PeekCode()
	if err != nil {
		return TokenNone, noEOF(err)
	}
	switch {
	case c == msgpcode.Nil:
		if err := mr.dec.DecodeNil(); err != nil {
			return TokenNone, noEOF(err)
		}
		mr.text = ""
		return ValueNull, nil
	case msgpcode.IsFixedMap(c) || c == msgpcode.Map16 || c == msgpcode.Map32:
		n, err := mr.dec.DecodeMapLen()
		if err != nil {
			return TokenNone, noEOF(err)
		}
		mr.stack = append(mr.stack, msgpackFrame{object: true, expectKey: true, remaining: n})
		return StartObject, nil
	case msgpcode.IsFixedArray(c) || c == msgpcode.Array16 || c == msgpcode.Array32:
		n, err := mr.dec.DecodeArrayLen()
		if err != nil {
			return TokenNone, noEOF(err)
		}
		mr.stack = append(mr.stack, msgpackFrame{remaining: n})
		return StartArray, nil
	case c == msgpcode.Float:
		f, err := mr.dec.DecodeFloat32()
		if err != nil {
			return TokenNone, noEOF(err)
		}
		mr.text = strconv.FormatFloat(float64(f), 'g', -1, 32)
		return ValueScalar, nil
	}

	v, err := mr.dec.DecodeInterfaceLoose()
	if err != nil {
		return TokenNone, noEOF(err)
	}
	mr.text, err = msgpackScalarText(v)
	if err != nil {
		return TokenNone, fmt.Errorf("msgpack: %w", err)
	}
	return ValueScalar, nil
}

func msgpackScalarText(v any) (string, error) {
	switch v := v.(type) {
	case string:
		return v, nil
	case bool:
		return strconv.FormatBool(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case uint64:
		return strconv.FormatUint(v, 10), nil
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64), nil
	case []byte:
		return base64.StdEncoding.EncodeToString(v), nil
	case time.Time:
		return v.UTC().Format(time.RFC3339Nano), nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("unsupported scalar %T", v)
	}
}
