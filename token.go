package flatidx

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

type Token int

const (
	TokenNone Token = iota
	StartObject
	EndObject
	StartArray
	EndArray
	FieldName
	ValueScalar
	ValueNull
)

var tokenNames = [...]string{
	TokenNone:   "NONE",
	StartObject: "START_OBJECT",
	EndObject:   "END_OBJECT",
	StartArray:  "START_ARRAY",
	EndArray:    "END_ARRAY",
	FieldName:   "FIELD_NAME",
	ValueScalar: "VALUE_SCALAR",
	ValueNull:   "VALUE_NULL",
}

func (t Token) String() string {
	if t >= 0 && int(t) < len(tokenNames) {
		return tokenNames[t]
	}
	return fmt.Sprintf("Token(%d)", int(t))
}

// TokenReader is a pull parser over a JSON-like document.
//
// Next advances to the next token and returns it; after the root value has
// been consumed it returns TokenNone and io.EOF. Name is valid while the
// current token is FieldName, Text while it is ValueScalar.
type TokenReader interface {
	Token() Token
	Next() (Token, error)
	Name() string
	Text() string
}

// Format identifies the encoding of a stored document source.
type Format uint8

const (
	JSON Format = iota
	MsgPack
	YAML
)

func (f Format) String() string {
	switch f {
	case JSON:
		return "json"
	case MsgPack:
		return "msgpack"
	case YAML:
		return "yaml"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

func ParseFormat(s string) (Format, error) {
	switch s {
	case "json", "":
		return JSON, nil
	case "msgpack", "mp":
		return MsgPack, nil
	case "yaml", "yml":
		return YAML, nil
	default:
		return 0, fmt.Errorf("unknown document format %q", s)
	}
}

// NewReader returns a token reader for source encoded in the given format.
func NewReader(format Format, source []byte) (TokenReader, error) {
	switch format {
	case JSON:
		return NewJSONReader(bytes.NewReader(source)), nil
	case MsgPack:
		return NewMsgPackReader(bytes.NewReader(source)), nil
	case YAML:
		return NewYAMLReader(source)
	default:
		return nil, fmt.Errorf("unsupported document format %v", format)
	}
}

// SkipValue consumes the value starting at the current token, including
// everything nested inside it.
func SkipValue(r TokenReader) error {
	var depth int
	switch r.Token() {
	case StartObject, StartArray:
		depth = 1
	case ValueScalar, ValueNull:
		return nil
	default:
		return fmt.Errorf("cannot skip value starting at %v", r.Token())
	}
	for depth > 0 {
		tok, err := r.Next()
		if err != nil {
			return noEOF(err)
		}
		switch tok {
		case StartObject, StartArray:
			depth++
		case EndObject, EndArray:
			depth--
		}
	}
	return nil
}

// noEOF turns a premature io.EOF into io.ErrUnexpectedEOF.
func noEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
