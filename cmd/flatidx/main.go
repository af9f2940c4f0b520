// Command flatidx flattens JSON, YAML and MessagePack documents and keeps a
// searchable store of them.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/alexflint/go-arg"
)

type args struct {
	Flatten *flattenCmd `arg:"subcommand:flatten" help:"print the flattened key/value pairs of a document"`
	Index   *indexCmd   `arg:"subcommand:index" help:"store and index newline-delimited JSON documents"`
	Query   *queryCmd   `arg:"subcommand:query" help:"find documents by flattened field values"`
	Dump    *dumpCmd    `arg:"subcommand:dump" help:"print the database contents"`
	Reindex *reindexCmd `arg:"subcommand:reindex" help:"rebuild all index entries after a mapping change"`

	Verbose bool `arg:"-v,--verbose" help:"log every storage operation"`
}

func (args) Description() string {
	return "flatidx indexes arbitrary JSON objects as flattened keyed fields.\n"
}

func main() {
	var a args
	p := arg.MustParse(&a)
	if p.Subcommand() == nil {
		p.Fail("missing subcommand")
	}

	cfg, err := loadConfig(nil)
	if err != nil {
		fatal(err)
	}
	if a.Verbose {
		cfg.Verbose = true
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, &a, cfg, os.Stdin, os.Stdout); err != nil {
		stop()
		fatal(err)
	}
}

func run(ctx context.Context, a *args, cfg *config, stdin io.Reader, stdout io.Writer) error {
	switch {
	case a.Flatten != nil:
		return a.Flatten.run(cfg, stdin, stdout)
	case a.Index != nil:
		return a.Index.run(ctx, cfg, stdin, stdout)
	case a.Query != nil:
		return a.Query.run(cfg, stdout)
	case a.Dump != nil:
		return a.Dump.run(cfg, stdout)
	case a.Reindex != nil:
		return a.Reindex.run(cfg, stdout)
	default:
		return errors.New("missing subcommand")
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "%s %v\n", errorColor.Sprint("error:"), err)
	os.Exit(1)
}

// readInput returns the contents of a file, or of stdin for "-" and "".
func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}
