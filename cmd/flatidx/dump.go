package main

import (
	"fmt"
	"io"

	"github.com/andreyvit/flatidx"
)

type dumpCmd struct {
	DB    string `arg:"--db" help:"database path [default: $FLATIDX_DB]"`
	Stats bool   `help:"print only per-field statistics"`
}

func (c *dumpCmd) run(cfg *config, stdout io.Writer) error {
	db, err := cfg.openDB(c.DB)
	if err != nil {
		return err
	}
	defer db.Close()

	db.Read(func(tx *flatidx.Tx) {
		if !c.Stats {
			io.WriteString(stdout, tx.Dump(flatidx.DumpAll))
			return
		}
		s := tx.Stats()
		fmt.Fprintf(stdout, "docs\t%s\n", countColor.Sprint(s.Docs))
		for _, fs := range s.Fields {
			fmt.Fprintf(stdout, "%s\t%s postings\t%s doc values\n", keyColor.Sprint(fs.Name), countColor.Sprint(fs.Postings), countColor.Sprint(fs.DocValues))
		}
	})
	return nil
}

type reindexCmd struct {
	DB string `arg:"--db" help:"database path [default: $FLATIDX_DB]"`
}

func (c *reindexCmd) run(cfg *config, stdout io.Writer) error {
	db, err := cfg.openDB(c.DB)
	if err != nil {
		return err
	}
	defer db.Close()

	var n int
	err = db.Update(func(tx *flatidx.Tx) error {
		var err error
		n, err = tx.Reindex()
		return err
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "reindexed %s documents\n", countColor.Sprint(n))
	return nil
}
