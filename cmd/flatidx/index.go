package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/andreyvit/flatidx"
)

const maxLineSize = 64 * 1024 * 1024

type indexCmd struct {
	DB      string   `arg:"--db" help:"database path [default: $FLATIDX_DB]"`
	IDField string   `arg:"--id-field" help:"top-level field holding document IDs; random UUIDs are assigned otherwise"`
	Rate    float64  `help:"maximum documents per second, 0 for unlimited"`
	Batch   int      `default:"100" help:"documents per transaction"`
	Files   []string `arg:"positional" help:"newline-delimited JSON files, - for stdin"`
}

type pendingDoc struct {
	id  string
	src []byte
}

func newLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(perSecond), 1)
}

func (c *indexCmd) run(ctx context.Context, cfg *config, stdin io.Reader, stdout io.Writer) error {
	db, err := cfg.openDB(c.DB)
	if err != nil {
		return err
	}
	defer db.Close()

	ix := &indexer{
		db:      db,
		cmd:     c,
		limiter: newLimiter(c.Rate),
	}
	files := c.Files
	if len(files) == 0 {
		files = []string{"-"}
	}
	for _, fn := range files {
		err = ix.indexFile(ctx, fn, stdin)
		if err != nil {
			break
		}
	}
	if ferr := ix.flush(); ferr != nil && err == nil {
		err = ferr
	}
	fmt.Fprintf(stdout, "indexed %s documents\n", countColor.Sprint(ix.count))
	if err != nil && ctx.Err() != nil {
		return fmt.Errorf("interrupted after %d documents: %w", ix.count, ctx.Err())
	}
	return err
}

type indexer struct {
	db      *flatidx.DB
	cmd     *indexCmd
	limiter *rate.Limiter
	pending []pendingDoc
	count   int
}

func (ix *indexer) indexFile(ctx context.Context, fn string, stdin io.Reader) error {
	var r io.Reader = stdin
	if fn != "-" {
		f, err := os.Open(fn)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	var lineNo int
	for sc.Scan() {
		lineNo++
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		if err := ix.limiter.Wait(ctx); err != nil {
			return err
		}
		id, err := ix.cmd.documentID(line)
		if err != nil {
			return fmt.Errorf("%s:%d: %w", fn, lineNo, err)
		}
		ix.pending = append(ix.pending, pendingDoc{id, bytes.Clone(line)})
		if len(ix.pending) >= max(ix.cmd.Batch, 1) {
			if err := ix.flush(); err != nil {
				return fmt.Errorf("%s:%d: %w", fn, lineNo, err)
			}
		}
	}
	return sc.Err()
}

func (ix *indexer) flush() error {
	if len(ix.pending) == 0 {
		return nil
	}
	// a failed batch is dropped, retrying it would fail the same way
	batch := ix.pending
	ix.pending = ix.pending[:0]
	err := ix.db.Update(func(tx *flatidx.Tx) error {
		for _, d := range batch {
			if err := tx.Put(d.id, flatidx.JSON, d.src); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	ix.count += len(batch)
	return nil
}

func (c *indexCmd) documentID(line []byte) (string, error) {
	if c.IDField == "" {
		return uuid.New().String(), nil
	}
	var top map[string]json.RawMessage
	if err := json.Unmarshal(line, &top); err != nil {
		return "", err
	}
	raw, ok := top[c.IDField]
	if !ok {
		return "", fmt.Errorf("missing %q", c.IDField)
	}
	var id string
	if err := json.Unmarshal(raw, &id); err != nil {
		// numbers and other scalars are used verbatim
		id = string(bytes.TrimSpace(raw))
	}
	if id == "" || id == "null" {
		return "", fmt.Errorf("empty %q", c.IDField)
	}
	return id, nil
}
