package flatidx

import (
	"fmt"
	"slices"
)

// Schema lists the flattened fields of a document. Top-level document fields
// without a mapping are ignored.
type Schema struct {
	parsers []*Parser
	byName  map[string]*Parser
	byField map[string]*Parser
}

func NewSchema(mappings ...*Mapping) (*Schema, error) {
	scm := &Schema{
		byName:  make(map[string]*Parser),
		byField: make(map[string]*Parser),
	}
	for _, m := range mappings {
		if err := scm.add(m); err != nil {
			return nil, err
		}
	}
	return scm, nil
}

func MustSchema(mappings ...*Mapping) *Schema {
	return must(NewSchema(mappings...))
}

func (scm *Schema) add(m *Mapping) error {
	p, err := NewParser(m)
	if err != nil {
		return err
	}
	for _, name := range []string{m.name, m.keyedName} {
		if other := scm.byField[name]; other != nil {
			return mappingErrf(m.name, "index field %q is already used by mapping [%s]", name, other.mapping.name)
		}
	}
	scm.parsers = append(scm.parsers, p)
	scm.byName[m.name] = p
	scm.byField[m.name] = p
	scm.byField[m.keyedName] = p
	return nil
}

func (scm *Schema) Mappings() []*Mapping {
	result := make([]*Mapping, len(scm.parsers))
	for i, p := range scm.parsers {
		result[i] = p.mapping
	}
	return result
}

// Mapping returns the mapping of the given top-level field, or nil.
func (scm *Schema) Mapping(name string) *Mapping {
	if p := scm.byName[name]; p != nil {
		return p.mapping
	}
	return nil
}

// Parser returns the parser of the given top-level field, or nil.
func (scm *Schema) Parser(name string) *Parser {
	return scm.byName[name]
}

// fieldNames returns every index field name in a stable order.
func (scm *Schema) fieldNames() []string {
	names := make([]string, 0, len(scm.byField))
	for name := range scm.byField {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Fields walks a whole document and returns the fields of every mapped
// flattened field, in document order.
func (scm *Schema) Fields(r TokenReader) ([]Field, error) {
	return scm.appendFields(nil, r)
}

func (scm *Schema) appendFields(buf []Field, r TokenReader) ([]Field, error) {
	n := len(buf)
	buf, err := scm.walkDocument(buf, r)
	if err != nil {
		clear(buf[n:])
		return buf[:n], err
	}
	return buf, nil
}

func (scm *Schema) walkDocument(buf []Field, r TokenReader) ([]Field, error) {
	tok, err := r.Next()
	if err != nil {
		return buf, fmt.Errorf("document: %w", noEOF(err))
	}
	if tok != StartObject {
		return buf, &StructureError{Token: tok}
	}
	for {
		tok, err := r.Next()
		if err != nil {
			return buf, fmt.Errorf("document: %w", noEOF(err))
		}
		if tok == EndObject {
			return buf, nil
		}
		if tok != FieldName {
			return buf, &UnexpectedTokenError{Token: tok}
		}
		p := scm.byName[r.Name()]
		if _, err := r.Next(); err != nil {
			return buf, fmt.Errorf("document: %w", noEOF(err))
		}
		if p == nil {
			if err := SkipValue(r); err != nil {
				return buf, fmt.Errorf("document: %w", err)
			}
			continue
		}
		buf, err = p.appendRootValue(buf, r)
		if err != nil {
			return buf, err
		}
	}
}

// appendRootValue handles the value of a mapped top-level field: objects are
// flattened, nulls skipped, arrays handled element by element.
func (p *Parser) appendRootValue(buf []Field, r TokenReader) ([]Field, error) {
	switch r.Token() {
	case ValueNull:
		return buf, nil
	case StartArray:
		for {
			tok, err := r.Next()
			if err != nil {
				return buf, fmt.Errorf("flattened field [%s]: %w", p.mapping.name, noEOF(err))
			}
			if tok == EndArray {
				return buf, nil
			}
			buf, err = p.appendRootValue(buf, r)
			if err != nil {
				return buf, err
			}
		}
	default:
		return p.AppendFields(buf, r)
	}
}
