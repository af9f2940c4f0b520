package flatidx

import (
	"fmt"
	"strings"
)

// Parser flattens the object value of one flattened field. A Parser holds no
// per-document state and may be used from multiple goroutines.
type Parser struct {
	mapping *Mapping
}

func NewParser(m *Mapping) (*Parser, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &Parser{mapping: m}, nil
}

func (p *Parser) Mapping() *Mapping {
	return p.mapping
}

// Parse walks the object r is positioned at and returns the resulting fields
// in document order. A reader that has not been advanced yet is moved to its
// first token. On error no fields are returned.
func (p *Parser) Parse(r TokenReader) ([]Field, error) {
	return p.AppendFields(nil, r)
}

// AppendFields is like Parse but appends to buf. On error, buf is returned
// truncated back to its original length.
func (p *Parser) AppendFields(buf []Field, r TokenReader) ([]Field, error) {
	n := len(buf)
	w := walker{m: p.mapping, r: r}
	w.emit = func(key, value string) {
		buf = p.appendLeaf(buf, key, value)
	}
	if err := w.run(); err != nil {
		clear(buf[n:])
		return buf[:n], err
	}
	return buf, nil
}

// Flatten walks like Parse but returns the bare (key, value) leaf pairs,
// regardless of which field variants the mapping enables.
func (p *Parser) Flatten(r TokenReader) ([]Pair, error) {
	var pairs []Pair
	w := walker{m: p.mapping, r: r}
	w.emit = func(key, value string) {
		pairs = append(pairs, Pair{key, value})
	}
	if err := w.run(); err != nil {
		return nil, err
	}
	return pairs, nil
}

func (p *Parser) appendLeaf(buf []Field, key, value string) []Field {
	m := p.mapping
	keyed := EncodeKeyedValue(key, value)
	raw := []byte(value)
	if m.index {
		buf = append(buf,
			Field{m.name, raw, Searchable},
			Field{m.keyedName, keyed, Searchable})
	}
	if m.docValues {
		buf = append(buf,
			Field{m.name, raw, DocValues},
			Field{m.keyedName, keyed, DocValues})
	}
	return buf
}

type walker struct {
	m    *Mapping
	r    TokenReader
	path *contentPath
	emit func(key, value string)
}

func (w *walker) run() error {
	tok := w.r.Token()
	if tok == TokenNone {
		var err error
		tok, err = w.r.Next()
		if err != nil {
			return w.readErr(err)
		}
	}
	if tok != StartObject {
		return &StructureError{Field: w.m.name, Token: tok}
	}

	w.path = acquirePath()
	defer releasePath(w.path)
	return w.parseObject()
}

func (w *walker) parseObject() error {
	var currentName string
	for {
		tok, err := w.r.Next()
		if err != nil {
			return w.readErr(err)
		}
		switch tok {
		case EndObject:
			return nil
		case FieldName:
			currentName = w.r.Name()
		default:
			if err := w.parseFieldValue(tok, currentName); err != nil {
				return err
			}
		}
	}
}

func (w *walker) parseArray(currentName string) error {
	for {
		tok, err := w.r.Next()
		if err != nil {
			return w.readErr(err)
		}
		if tok == EndArray {
			return nil
		}
		if err := w.parseFieldValue(tok, currentName); err != nil {
			return err
		}
	}
}

func (w *walker) parseFieldValue(tok Token, currentName string) error {
	switch tok {
	case StartObject:
		w.path.Push(currentName)
		if w.path.Len()+1 > w.m.depthLimit {
			return &DepthExceededError{Field: w.m.name, Limit: w.m.depthLimit}
		}
		if err := w.parseObject(); err != nil {
			return err
		}
		w.path.Pop()
		return nil
	case StartArray:
		return w.parseArray(currentName)
	case ValueScalar:
		return w.addField(currentName, w.r.Text())
	case ValueNull:
		if w.m.nullValue != nil {
			return w.addField(currentName, *w.m.nullValue)
		}
		return nil
	default:
		return &UnexpectedTokenError{Field: w.m.name, Token: tok}
	}
}

func (w *walker) addField(currentName, value string) error {
	if exceedsLength(value, w.m.ignoreAbove) {
		return nil
	}
	key := w.path.Text(currentName)
	if strings.IndexByte(key, Separator) >= 0 {
		return &ReservedCharacterError{Field: w.m.name, Key: key}
	}
	w.emit(key, value)
	return nil
}

func (w *walker) readErr(err error) error {
	return fmt.Errorf("flattened field [%s]: %w", w.m.name, noEOF(err))
}

// exceedsLength reports whether s is longer than limit UTF-16 code units,
// so characters outside the Basic Multilingual Plane count twice.
func exceedsLength(s string, limit int) bool {
	// a UTF-16 unit takes at least one byte of UTF-8
	if len(s) <= limit {
		return false
	}
	var n int
	for _, r := range s {
		if r > 0xFFFF {
			n += 2
		} else {
			n++
		}
		if n > limit {
			return true
		}
	}
	return false
}
