package flatidx

import "fmt"

type FieldKind uint8

const (
	// Searchable fields are indexed as exact terms.
	Searchable FieldKind = iota + 1
	// DocValues fields are stored per document for sorting and enumeration.
	DocValues
)

func (k FieldKind) String() string {
	switch k {
	case Searchable:
		return "searchable"
	case DocValues:
		return "doc_values"
	default:
		return fmt.Sprintf("FieldKind(%d)", int(k))
	}
}

// Field is one entry produced for the index.
type Field struct {
	Name  string
	Value []byte
	Kind  FieldKind
}

func (f Field) String() string {
	return fmt.Sprintf("%s/%v=%q", f.Name, f.Kind, f.Value)
}

// Pair is a flattened leaf: the dotted key path and the value text.
type Pair struct {
	Key   string
	Value string
}
