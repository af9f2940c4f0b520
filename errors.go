package flatidx

import (
	"fmt"
	"strconv"
)

// StructureError is returned when a flattened field value is not an object.
type StructureError struct {
	Field string
	Token Token
}

func (e *StructureError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("document must be an object, got %v", e.Token)
	}
	return fmt.Sprintf("flattened field [%s] must be an object, got %v", e.Field, e.Token)
}

// DepthExceededError is returned when objects nest deeper than the mapping's
// depth limit.
type DepthExceededError struct {
	Field string
	Limit int
}

func (e *DepthExceededError) Error() string {
	return fmt.Sprintf("the provided [flattened] field [%s] exceeds the maximum depth limit of [%d]", e.Field, e.Limit)
}

// ReservedCharacterError is returned when a flattened key contains Separator.
type ReservedCharacterError struct {
	Field string
	Key   string
}

func (e *ReservedCharacterError) Error() string {
	return fmt.Sprintf("keys in [flattened] field [%s] cannot contain the reserved character \\0, offending key: [%s]", e.Field, strconv.Quote(e.Key))
}

// UnexpectedTokenError means the token reader produced a token that cannot
// appear at the current position. Well-formed readers never trigger it.
type UnexpectedTokenError struct {
	Field string
	Token Token
}

func (e *UnexpectedTokenError) Error() string {
	return fmt.Sprintf("flattened field [%s]: encountered unexpected token [%v]", e.Field, e.Token)
}

// MappingError reports an invalid mapping, or an operation the mapping does
// not support.
type MappingError struct {
	Field string
	Msg   string
}

func mappingErrf(field string, format string, args ...any) error {
	return &MappingError{field, fmt.Sprintf(format, args...)}
}

func (e *MappingError) Error() string {
	if e.Field == "" {
		return "mapping: " + e.Msg
	}
	return fmt.Sprintf("mapping [%s]: %s", e.Field, e.Msg)
}

// DataError reports stored data that cannot be decoded.
type DataError struct {
	Data []byte
	Off  int
	Err  error
	Msg  string
}

func dataErrf(data []byte, off int, err error, format string, args ...any) error {
	return &DataError{data, off, err, fmt.Sprintf(format, args...)}
}

func (e *DataError) Unwrap() error {
	return e.Err
}

func (e *DataError) Error() string {
	const prefixLen = 64
	const suffixLen = 32
	n := len(e.Data)
	if n <= prefixLen+suffixLen {
		if e.Err != nil {
			return fmt.Sprintf("%s: %v: (%d) %x", e.Msg, e.Err, n, e.Data)
		} else {
			return fmt.Sprintf("%s: (%d) %x", e.Msg, n, e.Data)
		}
	} else {
		p, s := e.Data[:prefixLen], e.Data[n-suffixLen:]
		if e.Err != nil {
			return fmt.Sprintf("%s: %v: (%d) %x...%x", e.Msg, e.Err, n, p, s)
		} else {
			return fmt.Sprintf("%s: (%d) %x...%x", e.Msg, n, p, s)
		}
	}
}

// DocumentError ties a failure to the document that caused it.
type DocumentError struct {
	ID  string
	Msg string
	Err error
}

func docErrf(id string, err error, format string, args ...any) error {
	return &DocumentError{id, fmt.Sprintf(format, args...), err}
}

func (e *DocumentError) Unwrap() error {
	return e.Err
}

func (e *DocumentError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("document %q: %s", e.ID, e.Msg)
	}
	return fmt.Sprintf("document %q: %s: %v", e.ID, e.Msg, e.Err)
}
