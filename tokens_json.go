package flatidx

import (
	"encoding/json"
	"fmt"
	"io"
)

type jsonFrame struct {
	object    bool
	expectKey bool
}

// JSONReader reads tokens from a single JSON value.
type JSONReader struct {
	dec   *json.Decoder
	stack []jsonFrame
	tok   Token
	name  string
	text  string
	done  bool
}

func NewJSONReader(r io.Reader) *JSONReader {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	return &JSONReader{dec: dec}
}

func (jr *JSONReader) Token() Token { return jr.tok }
func (jr *JSONReader) Name() string { return jr.name }
func (jr *JSONReader) Text() string { return jr.text }

func (jr *JSONReader) Next() (Token, error) {
	if jr.done {
		jr.tok = TokenNone
		return TokenNone, io.EOF
	}
	raw, err := jr.dec.Token()
	if err != nil {
		jr.tok = TokenNone
		if err == io.EOF && len(jr.stack) > 0 {
			err = io.ErrUnexpectedEOF
		}
		return TokenNone, err
	}

	if n := len(jr.stack); n > 0 {
		top := &jr.stack[n-1]
		if top.object && top.expectKey {
			if d, ok := raw.(json.Delim); ok && d == '}' {
				jr.stack = jr.stack[:n-1]
				return jr.valueDone(EndObject), nil
			}
			name, ok := raw.(string)
			if !ok {
				return TokenNone, fmt.Errorf("json: expected object key, got %T", raw)
			}
			top.expectKey = false
			jr.name = name
			jr.tok = FieldName
			return FieldName, nil
		}
	}

	switch v := raw.(type) {
	case json.Delim:
		switch v {
		case '{':
			jr.stack = append(jr.stack, jsonFrame{object: true, expectKey: true})
			jr.tok = StartObject
			return StartObject, nil
		case '[':
			jr.stack = append(jr.stack, jsonFrame{})
			jr.tok = StartArray
			return StartArray, nil
		case ']':
			jr.stack = jr.stack[:len(jr.stack)-1]
			return jr.valueDone(EndArray), nil
		default:
			return TokenNone, fmt.Errorf("json: unexpected delimiter %v", v)
		}
	case nil:
		jr.text = ""
		return jr.valueDone(ValueNull), nil
	case string:
		jr.text = v
	case json.Number:
		jr.text = v.String()
	case bool:
		if v {
			jr.text = "true"
		} else {
			jr.text = "false"
		}
	default:
		return TokenNone, fmt.Errorf("json: unsupported token %T", raw)
	}
	return jr.valueDone(ValueScalar), nil
}

// valueDone records that a complete value (or the end of a container) has
// been read, so the enclosing object expects a key next.
func (jr *JSONReader) valueDone(tok Token) Token {
	jr.tok = tok
	if n := len(jr.stack); n > 0 {
		if top := &jr.stack[n-1]; top.object {
			top.expectKey = true
		}
	} else {
		jr.done = true
	}
	return tok
}
