package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/goccy/go-yaml"
	"github.com/theory/jsonpath"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/andreyvit/flatidx"
)

type flattenCmd struct {
	File        string `arg:"positional" help:"document file, - for stdin"`
	Format      string `arg:"-f,--format" default:"json" help:"document format: json, yaml or msgpack"`
	Field       string `help:"flatten only this top-level field"`
	Select      string `help:"JSONPath selecting the objects to flatten"`
	DepthLimit  int    `arg:"--depth-limit" help:"maximum nesting depth"`
	IgnoreAbove int    `arg:"--ignore-above" help:"skip values longer than this many characters"`
	NullValue   string `arg:"--null-value" help:"index nulls as this value"`
	Fields      bool   `help:"print index fields instead of key/value pairs"`
}

func (c *flattenCmd) mapping(cfg *config) (*flatidx.Mapping, error) {
	name := c.Field
	if name == "" {
		name = "doc"
	}
	m := flatidx.NewMapping(name)
	if c.Field != "" {
		scm, err := cfg.schema()
		if err != nil {
			return nil, err
		}
		if configured := scm.Mapping(c.Field); configured != nil {
			m = configured
		}
	}
	if c.DepthLimit != 0 {
		m = m.WithDepthLimit(c.DepthLimit)
	}
	if c.IgnoreAbove != 0 {
		m = m.WithIgnoreAbove(c.IgnoreAbove)
	}
	if c.NullValue != "" {
		m = m.WithNullValue(c.NullValue)
	}
	return m, nil
}

func (c *flattenCmd) run(cfg *config, stdin io.Reader, stdout io.Writer) error {
	format, err := flatidx.ParseFormat(c.Format)
	if err != nil {
		return err
	}
	data, err := readInput(c.File, stdin)
	if err != nil {
		return err
	}
	m, err := c.mapping(cfg)
	if err != nil {
		return err
	}
	p, err := flatidx.NewParser(m)
	if err != nil {
		return err
	}

	expr := c.Select
	if expr == "" && c.Field != "" {
		expr = "$[" + strconv.Quote(c.Field) + "]"
	}
	if expr == "" {
		r, err := flatidx.NewReader(format, data)
		if err != nil {
			return err
		}
		return c.print(p, r, stdout)
	}

	path, err := jsonpath.Parse(expr)
	if err != nil {
		return fmt.Errorf("invalid JSONPath %s: %w", expr, err)
	}
	doc, err := decodeAny(format, data)
	if err != nil {
		return err
	}
	nodes := path.Select(doc)
	if len(nodes) == 0 {
		return fmt.Errorf("%s: no match", expr)
	}
	for _, node := range nodes {
		src, err := json.Marshal(node)
		if err != nil {
			return err
		}
		r, err := flatidx.NewReader(flatidx.JSON, src)
		if err != nil {
			return err
		}
		if err := c.print(p, r, stdout); err != nil {
			return err
		}
	}
	return nil
}

func (c *flattenCmd) print(p *flatidx.Parser, r flatidx.TokenReader, w io.Writer) error {
	if c.Fields {
		fields, err := p.Parse(r)
		if err != nil {
			return err
		}
		for _, f := range fields {
			fmt.Fprintln(w, f.String())
		}
		return nil
	}
	pairs, err := p.Flatten(r)
	if err != nil {
		return err
	}
	printPairs(w, pairs)
	return nil
}

// decodeAny decodes a document into the generic form JSONPath selects from.
func decodeAny(format flatidx.Format, data []byte) (any, error) {
	var doc any
	switch format {
	case flatidx.JSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("json: %w", err)
		}
	case flatidx.YAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("yaml: %w", err)
		}
	case flatidx.MsgPack:
		if err := msgpack.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("msgpack: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported format %v", format)
	}
	return doc, nil
}
