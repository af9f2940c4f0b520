package flatidx

import (
	"math"
	"strings"
)

const (
	DefaultDepthLimit  = 20
	DefaultIgnoreAbove = math.MaxInt

	keyedSuffix = "._keyed"
)

// Mapping configures how one flattened field is indexed. Build it with
// NewMapping and the With* methods; a Mapping is immutable once a Parser or a
// Schema holds it.
type Mapping struct {
	name        string
	keyedName   string
	depthLimit  int
	ignoreAbove int
	nullValue   *string
	index       bool
	docValues   bool
}

func NewMapping(name string) *Mapping {
	return &Mapping{
		name:        name,
		keyedName:   name + keyedSuffix,
		depthLimit:  DefaultDepthLimit,
		ignoreAbove: DefaultIgnoreAbove,
		index:       true,
		docValues:   true,
	}
}

func (m *Mapping) clone() *Mapping {
	c := *m
	return &c
}

func (m *Mapping) WithKeyedName(name string) *Mapping {
	c := m.clone()
	c.keyedName = name
	return c
}

func (m *Mapping) WithDepthLimit(limit int) *Mapping {
	c := m.clone()
	c.depthLimit = limit
	return c
}

func (m *Mapping) WithIgnoreAbove(n int) *Mapping {
	c := m.clone()
	c.ignoreAbove = n
	return c
}

func (m *Mapping) WithNullValue(v string) *Mapping {
	c := m.clone()
	c.nullValue = &v
	return c
}

func (m *Mapping) WithoutNullValue() *Mapping {
	c := m.clone()
	c.nullValue = nil
	return c
}

func (m *Mapping) WithIndex(enabled bool) *Mapping {
	c := m.clone()
	c.index = enabled
	return c
}

func (m *Mapping) WithDocValues(enabled bool) *Mapping {
	c := m.clone()
	c.docValues = enabled
	return c
}

func (m *Mapping) Name() string      { return m.name }
func (m *Mapping) KeyedName() string { return m.keyedName }
func (m *Mapping) DepthLimit() int   { return m.depthLimit }
func (m *Mapping) IgnoreAbove() int  { return m.ignoreAbove }
func (m *Mapping) IsSearchable() bool {
	return m.index
}
func (m *Mapping) HasDocValues() bool {
	return m.docValues
}

// NullValue returns the text substituted for nulls and whether one is set.
func (m *Mapping) NullValue() (string, bool) {
	if m.nullValue == nil {
		return "", false
	}
	return *m.nullValue, true
}

func (m *Mapping) Validate() error {
	if m.name == "" {
		return mappingErrf("", "field name is required")
	}
	if strings.IndexByte(m.name, Separator) >= 0 {
		return mappingErrf(m.name, "field name cannot contain the reserved character \\0")
	}
	if m.keyedName == "" {
		return mappingErrf(m.name, "keyed field name is required")
	}
	if m.keyedName == m.name {
		return mappingErrf(m.name, "keyed field name must differ from the field name")
	}
	if strings.IndexByte(m.keyedName, Separator) >= 0 {
		return mappingErrf(m.name, "keyed field name cannot contain the reserved character \\0")
	}
	if m.depthLimit < 1 {
		return mappingErrf(m.name, "depth_limit must be at least 1, got %d", m.depthLimit)
	}
	if m.ignoreAbove < 0 {
		return mappingErrf(m.name, "ignore_above must not be negative, got %d", m.ignoreAbove)
	}
	return nil
}
