package main

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alexflint/go-arg"
	"github.com/fatih/color"
	"github.com/stretchr/testify/require"

	"github.com/andreyvit/flatidx"
)

func init() {
	color.NoColor = true
}

func testConfig(t *testing.T, vars envMap) *config {
	t.Helper()
	if vars == nil {
		vars = envMap{}
	}
	if _, ok := vars["FLATIDX_DB"]; !ok {
		vars["FLATIDX_DB"] = filepath.Join(t.TempDir(), "cli.db")
	}
	cfg, err := loadConfig(vars)
	require.NoError(t, err)
	return cfg
}

func runCLI(ctx context.Context, t *testing.T, cfg *config, stdin string, argv ...string) (string, error) {
	t.Helper()
	var a args
	p, err := arg.NewParser(arg.Config{Program: "flatidx"}, &a)
	require.NoError(t, err)
	require.NoError(t, p.Parse(argv))

	var out bytes.Buffer
	err = run(ctx, &a, cfg, strings.NewReader(stdin), &out)
	return out.String(), err
}

func mustRun(t *testing.T, cfg *config, stdin string, argv ...string) string {
	t.Helper()
	out, err := runCLI(context.Background(), t, cfg, stdin, argv...)
	require.NoError(t, err)
	return out
}

func TestLoadConfig(t *testing.T) {
	cfg, err := loadConfig(envMap{})
	require.NoError(t, err)
	require.Equal(t, "flatidx.db", cfg.DB)
	require.Equal(t, "bolt", cfg.Backend)
	require.Equal(t, "zstd", cfg.Compression)
	require.Equal(t, []string{"labels"}, cfg.Fields)
	require.False(t, cfg.Verbose)

	cfg, err = loadConfig(envMap{
		"FLATIDX_BACKEND": "badger",
		"FLATIDX_FIELDS":  "labels tags",
		"FLATIDX_VERBOSE": "true",
	})
	require.NoError(t, err)
	require.Equal(t, "badger", cfg.Backend)
	require.Equal(t, []string{"labels", "tags"}, cfg.Fields)
	require.True(t, cfg.Verbose)

	scm, err := cfg.schema()
	require.NoError(t, err)
	require.NotNil(t, scm.Mapping("labels"))
	require.NotNil(t, scm.Mapping("tags"))
}

func TestParseMappingFile(t *testing.T) {
	scm, err := parseMappingFile([]byte(`
fields:
  - name: labels
    ignore_above: 16
    null_value: "NULL"
  - name: meta
    keyed_name: meta_kv
    depth_limit: 3
    index: false
`))
	require.NoError(t, err)

	labels := scm.Mapping("labels")
	require.NotNil(t, labels)
	require.Equal(t, 16, labels.IgnoreAbove())
	nv, ok := labels.NullValue()
	require.True(t, ok)
	require.Equal(t, "NULL", nv)
	require.True(t, labels.IsSearchable())

	meta := scm.Mapping("meta")
	require.NotNil(t, meta)
	require.Equal(t, "meta_kv", meta.KeyedName())
	require.Equal(t, 3, meta.DepthLimit())
	require.False(t, meta.IsSearchable())
	require.True(t, meta.HasDocValues())

	_, err = parseMappingFile([]byte("fields: []\n"))
	require.Error(t, err)

	_, err = parseMappingFile([]byte("fields:\n  - name: a\n    depth_limit: -1\n"))
	var me *flatidx.MappingError
	require.True(t, errors.As(err, &me), "got %v", err)
}

func TestFlatten(t *testing.T) {
	cfg := testConfig(t, nil)
	doc := `{"labels":{"env":"prod","team":{"name":"web"}},"id":"d1"}`

	out := mustRun(t, cfg, doc, "flatten")
	require.Equal(t, "labels.env\tprod\nlabels.team.name\tweb\nid\td1\n", out)

	out = mustRun(t, cfg, doc, "flatten", "--field", "labels")
	require.Equal(t, "env\tprod\nteam.name\tweb\n", out)

	out = mustRun(t, cfg, `{"items":[{"a":1},{"a":[2,3]}]}`, "flatten", "--select", "$.items[*]")
	require.Equal(t, "a\t1\na\t2\na\t3\n", out)

	out = mustRun(t, cfg, `{"a":null,"b":"x"}`, "flatten", "--null-value", "N/A")
	require.Equal(t, "a\tN/A\nb\tx\n", out)

	out = mustRun(t, cfg, `{"a":"long value","b":"short"}`, "flatten", "--ignore-above", "5")
	require.Equal(t, "b\tshort\n", out)

	out = mustRun(t, cfg, "labels:\n  env: prod\n", "flatten", "--format", "yaml", "--field", "labels")
	require.Equal(t, "env\tprod\n", out)

	out = mustRun(t, cfg, `{"a":"b"}`, "flatten", "--fields")
	require.Contains(t, out, `doc/searchable="b"`)
	require.Contains(t, out, `doc._keyed/searchable="a\x00b"`)
	require.Contains(t, out, `doc._keyed/doc_values="a\x00b"`)

	_, err := runCLI(context.Background(), t, cfg, `{"a":{"b":{"c":"d"}}}`, "flatten", "--depth-limit", "2")
	var de *flatidx.DepthExceededError
	require.True(t, errors.As(err, &de), "got %v", err)

	_, err = runCLI(context.Background(), t, cfg, `{"a":1}`, "flatten", "--select", "$.missing")
	require.ErrorContains(t, err, "no match")

	_, err = runCLI(context.Background(), t, cfg, `{}`, "flatten", "--format", "xml")
	require.Error(t, err)
}

func TestIndexAndQuery(t *testing.T) {
	cfg := testConfig(t, nil)
	input := strings.Join([]string{
		`{"id":"d1","labels":{"env":"prod","team":"web"}}`,
		``,
		`{"id":"d2","labels":{"env":"dev"}}`,
		`{"id":3,"labels":{"env":"prod"}}`,
	}, "\n")

	out := mustRun(t, cfg, input, "index", "--id-field", "id", "--batch", "2")
	require.Equal(t, "indexed 3 documents\n", out)

	require.Equal(t, "3\nd1\n", mustRun(t, cfg, "", "query", "--field", "labels", "--term", "prod"))
	require.Equal(t, "d2\n", mustRun(t, cfg, "", "query", "--field", "labels", "--key", "env", "--term", "dev"))
	require.Equal(t, "3\nd1\n", mustRun(t, cfg, "", "query", "--field", "labels", "--key", "env", "--prefix", "pr"))
	require.Equal(t, "d1\n", mustRun(t, cfg, "", "query", "--field", "labels", "--key", "team", "--exists"))
	require.Equal(t, "prod\nweb\n", mustRun(t, cfg, "", "query", "--field", "labels", "--values", "d1"))
	require.Equal(t, "web\n", mustRun(t, cfg, "", "query", "--field", "labels", "--key", "team", "--values", "d1"))
	require.Equal(t, "", mustRun(t, cfg, "", "query", "--field", "labels", "--term", "nope"))

	_, err := runCLI(context.Background(), t, cfg, "", "query", "--field", "other", "--term", "x")
	var me *flatidx.MappingError
	require.True(t, errors.As(err, &me), "got %v", err)

	out = mustRun(t, cfg, "", "dump", "--stats")
	require.Contains(t, out, "docs\t3\n")
	require.Contains(t, out, "labels._keyed\t4 postings\t4 doc values\n")

	out = mustRun(t, cfg, "", "dump")
	require.Contains(t, out, "labels._keyed.t.1: env=dev | d2\n")

	require.Equal(t, "reindexed 3 documents\n", mustRun(t, cfg, "", "reindex"))
	require.Equal(t, "3\nd1\n", mustRun(t, cfg, "", "query", "--field", "labels", "--term", "prod"))
}

func TestIndex_GeneratedIDs(t *testing.T) {
	cfg := testConfig(t, nil)
	out := mustRun(t, cfg, "{\"labels\":{\"a\":\"1\"}}\n{\"labels\":{\"a\":\"1\"}}\n", "index")
	require.Equal(t, "indexed 2 documents\n", out)

	ids := strings.Fields(mustRun(t, cfg, "", "query", "--field", "labels", "--term", "1"))
	require.Len(t, ids, 2)
	for _, id := range ids {
		require.Len(t, id, 36)
	}
}

func TestIndex_Errors(t *testing.T) {
	cfg := testConfig(t, nil)

	_, err := runCLI(context.Background(), t, cfg, `{"labels":{"a":"1"}}`, "index", "--id-field", "id")
	require.ErrorContains(t, err, `missing "id"`)

	_, err = runCLI(context.Background(), t, cfg, `{"id":"x","labels":["not","objects"]}`, "index", "--id-field", "id")
	var se *flatidx.StructureError
	require.True(t, errors.As(err, &se), "got %v", err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out, err := runCLI(ctx, t, cfg, `{"id":"x","labels":{"a":"1"}}`, "index", "--id-field", "id", "--rate", "10")
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, "indexed 0 documents\n", out)
}

func TestQuery_Validate(t *testing.T) {
	cfg := testConfig(t, nil)
	for _, argv := range [][]string{
		{"query", "--field", "labels"},
		{"query", "--field", "labels", "--term", "a", "--exists"},
		{"query", "--field", "labels", "--prefix", "a"},
	} {
		_, err := runCLI(context.Background(), t, cfg, "", argv...)
		require.Error(t, err, "%v", argv)
	}
}

func TestIndexer_FailedBatchIsDropped(t *testing.T) {
	cfg := testConfig(t, nil)
	db, err := cfg.openDB("")
	require.NoError(t, err)
	defer db.Close()

	ix := &indexer{db: db, cmd: &indexCmd{Batch: 10}, limiter: newLimiter(0)}
	ix.pending = append(ix.pending,
		pendingDoc{"good", []byte(`{"labels":{"a":"1"}}`)},
		pendingDoc{"bad", []byte(`{"labels":["x"]}`)})

	var se *flatidx.StructureError
	require.True(t, errors.As(ix.flush(), &se))
	require.Empty(t, ix.pending)
	require.Equal(t, 0, ix.count)

	require.NoError(t, ix.flush())
	require.Equal(t, 0, ix.count)
}
