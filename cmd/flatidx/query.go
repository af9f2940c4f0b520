package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/andreyvit/flatidx"
)

type queryCmd struct {
	DB     string  `arg:"--db" help:"database path [default: $FLATIDX_DB]"`
	Field  string  `arg:"required" help:"flattened field to search"`
	Key    string  `help:"dotted key within the field"`
	Term   *string `help:"match documents having this exact value"`
	Prefix *string `help:"match documents having a value at --key starting with this"`
	Exists bool    `help:"match documents having any value at --key"`
	Values string  `help:"print the doc values of this document instead of searching"`
}

func (c *queryCmd) validate() error {
	var modes int
	if c.Term != nil {
		modes++
	}
	if c.Prefix != nil {
		modes++
		if c.Key == "" {
			return errors.New("--prefix requires --key")
		}
	}
	if c.Exists {
		modes++
	}
	if c.Values != "" {
		modes++
	}
	if modes != 1 {
		return errors.New("specify exactly one of --term, --prefix, --exists or --values")
	}
	return nil
}

func (c *queryCmd) run(cfg *config, stdout io.Writer) error {
	if err := c.validate(); err != nil {
		return err
	}
	db, err := cfg.openDB(c.DB)
	if err != nil {
		return err
	}
	defer db.Close()

	return db.View(func(tx *flatidx.Tx) error {
		var result []string
		var err error
		switch {
		case c.Values != "" && c.Key == "":
			result, err = tx.Values(c.Field, c.Values)
		case c.Values != "":
			result, err = tx.KeyedValues(c.Field, c.Key, c.Values)
		case c.Term != nil && c.Key == "":
			result, err = tx.Term(c.Field, *c.Term)
		case c.Term != nil:
			result, err = tx.KeyedTerm(c.Field, c.Key, *c.Term)
		case c.Prefix != nil:
			result, err = tx.KeyedPrefix(c.Field, c.Key, *c.Prefix)
		default:
			result, err = tx.Exists(c.Field, c.Key)
		}
		if err != nil {
			return err
		}
		if c.Values != "" {
			for _, v := range result {
				fmt.Fprintln(stdout, v)
			}
		} else {
			printIDs(stdout, result)
		}
		return nil
	})
}
