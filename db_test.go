package flatidx

import (
	"errors"
	"log/slog"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/vmihailenco/msgpack/v5"
)

func init() {
	slog.SetLogLoggerLevel(slog.LevelDebug)
}

var basicSchema = MustSchema(
	NewMapping("labels"),
	NewMapping("meta").WithIndex(false).WithNullValue("null"),
	NewMapping("tags").WithDocValues(false).WithIgnoreAbove(10),
)

func setup(t testing.TB, schema *Schema, backend Backend, compression Compression) *DB {
	t.Helper()

	var path string
	switch backend {
	case Bolt:
		path = filepath.Join(t.TempDir(), "db_test.db")
		t.Logf("DB: %s", path)
	case Badger:
		path = "" // in memory
	}
	db := must(Open(path, schema, Options{
		Backend:     backend,
		IsTesting:   true,
		Verbose:     true,
		Compression: compression,
	}))
	t.Cleanup(db.Close)
	return db
}

func forEachBackend(t *testing.T, f func(t *testing.T, db *DB)) {
	for i, backend := range allBackends {
		compression := Compression(i % int(maxCompression+1))
		t.Run(backend.String(), func(t *testing.T) {
			f(t, setup(t, basicSchema, backend, compression))
		})
	}
}

func deepEqual[T any](t testing.TB, a, e T) {
	if !reflect.DeepEqual(a, e) {
		t.Helper()
		t.Errorf("** got %v, wanted %v", a, e)
	}
}

func isempty[T any, S ~[]T](t testing.TB, a S) {
	if len(a) > 0 {
		t.Helper()
		t.Errorf("** got %v, wanted empty slice", a)
	}
}

func putJSON(t testing.TB, db *DB, docs map[string]string) {
	t.Helper()
	err := db.Update(func(tx *Tx) error {
		for id, src := range docs {
			if err := tx.Put(id, JSON, []byte(src)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
}

func ids(t testing.TB) func(v []string, err error) []string {
	return func(v []string, err error) []string {
		t.Helper()
		if err != nil {
			t.Fatalf("query failed: %v", err)
		}
		return v
	}
}

func TestDB(t *testing.T) {
	forEachBackend(t, func(t *testing.T, db *DB) {
		putJSON(t, db, map[string]string{
			"d1": `{"labels":{"env":"prod","team":{"name":"web"}},"tags":{"t":["a","b"]}}`,
			"d2": `{"labels":{"env":"dev","team":{"name":"web"}},"meta":{"owner":null}}`,
			"d3": `{"labels":[{"env":"prod"},{"region":"eu"}],"other":{"x":1}}`,
		})

		db.Read(func(tx *Tx) {
			q := ids(t)
			deepEqual(t, q(tx.Term("labels", "prod")), []string{"d1", "d3"})
			deepEqual(t, q(tx.Term("labels", "web")), []string{"d1", "d2"})
			deepEqual(t, q(tx.KeyedTerm("labels", "team.name", "web")), []string{"d1", "d2"})
			deepEqual(t, q(tx.KeyedTerm("labels", "env", "prod")), []string{"d1", "d3"})
			isempty(t, q(tx.KeyedTerm("labels", "env", "pro")))
			isempty(t, q(tx.KeyedTerm("labels", "team", "web")))
			deepEqual(t, q(tx.KeyedPrefix("labels", "env", "pr")), []string{"d1", "d3"})
			deepEqual(t, q(tx.KeyedPrefix("labels", "env", "")), []string{"d1", "d2", "d3"})
			deepEqual(t, q(tx.Exists("labels", "region")), []string{"d3"})
			deepEqual(t, q(tx.Exists("labels", "team.name")), []string{"d1", "d2"})
			isempty(t, q(tx.Exists("labels", "team")))
			deepEqual(t, q(tx.Exists("labels", "")), []string{"d1", "d2", "d3"})
			deepEqual(t, q(tx.Term("tags", "a")), []string{"d1"})

			deepEqual(t, q(tx.Values("labels", "d1")), []string{"prod", "web"})
			deepEqual(t, q(tx.KeyedValues("labels", "env", "d3")), []string{"prod"})
			deepEqual(t, q(tx.KeyedValues("labels", "region", "d3")), []string{"eu"})
			isempty(t, q(tx.KeyedValues("labels", "env", "d4")))
			deepEqual(t, q(tx.KeyedValues("meta", "owner", "d2")), []string{"null"})

			doc := must(tx.Get("d2"))
			if doc == nil || doc.ID != "d2" || doc.Format != JSON || doc.ModCount != 1 {
				t.Fatalf("Get(d2) = %+v", doc)
			}
			if !strings.Contains(string(doc.Source), `"owner":null`) {
				t.Fatalf("Get(d2).Source = %s", doc.Source)
			}
			if doc, err := tx.Get("nope"); doc != nil || err != nil {
				t.Fatalf("Get(nope) = %v, %v, wanted nil, nil", doc, err)
			}
			if !tx.Has("d1") || tx.Has("nope") {
				t.Fatalf("Has returned unexpected results")
			}
		})
	})
}

func TestDB_MappingErrors(t *testing.T) {
	forEachBackend(t, func(t *testing.T, db *DB) {
		db.Read(func(tx *Tx) {
			var me *MappingError
			if _, err := tx.Term("meta", "x"); !errors.As(err, &me) {
				t.Errorf("** Term(meta) err = %v, wanted *MappingError", err)
			}
			if _, err := tx.Values("tags", "d1"); !errors.As(err, &me) {
				t.Errorf("** Values(tags) err = %v, wanted *MappingError", err)
			}
			if _, err := tx.KeyedTerm("unknown", "a", "b"); !errors.As(err, &me) {
				t.Errorf("** KeyedTerm(unknown) err = %v, wanted *MappingError", err)
			}
			if _, err := tx.Exists("labels._keyed", ""); !errors.As(err, &me) {
				t.Errorf("** Exists(labels._keyed) err = %v, wanted *MappingError", err)
			}
		})
	})
}

func TestDB_Update(t *testing.T) {
	forEachBackend(t, func(t *testing.T, db *DB) {
		putJSON(t, db, map[string]string{
			"d1": `{"labels":{"env":"prod","team":"web"}}`,
		})
		putJSON(t, db, map[string]string{
			"d1": `{"labels":{"env":"dev","team":"web"}}`,
		})

		db.Read(func(tx *Tx) {
			q := ids(t)
			isempty(t, q(tx.Term("labels", "prod")))
			isempty(t, q(tx.KeyedTerm("labels", "env", "prod")))
			deepEqual(t, q(tx.KeyedTerm("labels", "env", "dev")), []string{"d1"})
			deepEqual(t, q(tx.KeyedTerm("labels", "team", "web")), []string{"d1"})
			deepEqual(t, q(tx.Values("labels", "d1")), []string{"dev", "web"})
			if doc := must(tx.Get("d1")); doc.ModCount != 2 {
				t.Fatalf("ModCount = %d, wanted 2", doc.ModCount)
			}
		})

		// putting the same document again is a no-op
		putJSON(t, db, map[string]string{
			"d1": `{"labels":{"env":"dev","team":"web"}}`,
		})
		db.Read(func(tx *Tx) {
			if doc := must(tx.Get("d1")); doc.ModCount != 2 {
				t.Fatalf("ModCount after no-op put = %d, wanted 2", doc.ModCount)
			}
		})

		c := db.FieldCounters("labels._keyed")
		if c == nil || c.Docs.Value() != 2 || c.Removed.Value() < 1 {
			t.Fatalf("FieldCounters(labels._keyed) = %+v", c)
		}
	})
}

func TestDB_Delete(t *testing.T) {
	forEachBackend(t, func(t *testing.T, db *DB) {
		putJSON(t, db, map[string]string{
			"d1": `{"labels":{"env":"prod"}}`,
			"d2": `{"labels":{"env":"prod"}}`,
		})

		var deleted, again bool
		db.Write(func(tx *Tx) {
			deleted = tx.Delete("d1")
			again = tx.Delete("d1")
		})
		if !deleted || again {
			t.Fatalf("Delete = %v then %v, wanted true then false", deleted, again)
		}

		db.Read(func(tx *Tx) {
			q := ids(t)
			deepEqual(t, q(tx.Term("labels", "prod")), []string{"d2"})
			isempty(t, q(tx.Values("labels", "d1")))
			if doc := must(tx.Get("d1")); doc != nil {
				t.Fatalf("Get(d1) after delete = %+v", doc)
			}
			s := tx.Stats()
			if s.Docs != 1 {
				t.Fatalf("Stats.Docs = %d, wanted 1", s.Docs)
			}
			for _, fs := range s.Fields {
				switch fs.Name {
				case "labels", "labels._keyed":
					if fs.Postings != 1 || fs.DocValues != 1 {
						t.Errorf("** %s stats = %+v, wanted 1 posting and 1 doc value", fs.Name, fs)
					}
				default:
					if fs.Postings != 0 || fs.DocValues != 0 {
						t.Errorf("** %s stats = %+v, wanted empty", fs.Name, fs)
					}
				}
			}
		})
	})
}

func TestDB_AllOrNothing(t *testing.T) {
	forEachBackend(t, func(t *testing.T, db *DB) {
		err := db.Update(func(tx *Tx) error {
			return tx.Put("bad", JSON, []byte(`{"labels":{"ok":"1","a\u0000b":"x"}}`))
		})
		var re *ReservedCharacterError
		if !errors.As(err, &re) {
			t.Fatalf("Put err = %T %v, wanted *ReservedCharacterError", err, err)
		}

		err = db.Update(func(tx *Tx) error {
			if err := tx.Put("good", JSON, []byte(`{"labels":{"ok":"1"}}`)); err != nil {
				return err
			}
			return tx.Put("bad", JSON, []byte(`["not an object"]`))
		})
		var se *StructureError
		if !errors.As(err, &se) {
			t.Fatalf("Put err = %T %v, wanted *StructureError", err, err)
		}

		db.Read(func(tx *Tx) {
			isempty(t, ids(t)(tx.Term("labels", "1")))
			if tx.Has("good") || tx.Has("bad") {
				t.Fatalf("documents from failed transactions were stored")
			}
		})
	})
}

func TestDB_Formats(t *testing.T) {
	forEachBackend(t, func(t *testing.T, db *DB) {
		err := db.Update(func(tx *Tx) error {
			if err := tx.Put("y", YAML, []byte(sampleYAMLDoc)); err != nil {
				return err
			}
			return tx.Put("m", MsgPack, sampleMsgPackDoc(t))
		})
		if err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		db.Read(func(tx *Tx) {
			deepEqual(t, ids(t)(tx.KeyedTerm("labels", "env", "prod")), []string{"m", "y"})
			doc := must(tx.Get("y"))
			if doc.Format != YAML || string(doc.Source) != sampleYAMLDoc {
				t.Fatalf("Get(y) = %+v", doc)
			}
			fields := must(tx.Schema().Fields(must(doc.Reader())))
			if len(fields) != 4 {
				t.Fatalf("Fields(stored y) = %v, wanted 4 fields", fields)
			}
		})
	})
}

const sampleYAMLDoc = `labels:
  env: prod
`

func sampleMsgPackDoc(t testing.TB) []byte {
	b, err := msgpack.Marshal(map[string]any{
		"labels": map[string]any{"env": "prod"},
	})
	if err != nil {
		t.Fatalf("msgpack encode: %v", err)
	}
	return b
}

func TestDB_Reindex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reindex.db")
	db := must(Open(path, MustSchema(NewMapping("labels").WithDocValues(false)), Options{IsTesting: true}))
	putJSON(t, db, map[string]string{
		"d1": `{"labels":{"env":"prod"},"extra":{"k":"v"}}`,
	})
	db.Close()

	db = must(Open(path, MustSchema(NewMapping("labels"), NewMapping("extra")), Options{IsTesting: true}))
	defer db.Close()
	db.Read(func(tx *Tx) {
		isempty(t, ids(t)(tx.Term("extra", "v")))
	})
	var n int
	err := db.Update(func(tx *Tx) error {
		var err error
		n, err = tx.Reindex()
		return err
	})
	if err != nil || n != 1 {
		t.Fatalf("Reindex = %d, %v, wanted 1, nil", n, err)
	}
	db.Read(func(tx *Tx) {
		deepEqual(t, ids(t)(tx.KeyedTerm("extra", "k", "v")), []string{"d1"})
		deepEqual(t, ids(t)(tx.Values("labels", "d1")), []string{"prod"})
		if doc := must(tx.Get("d1")); doc.ModCount != 1 {
			t.Fatalf("ModCount after reindex = %d, wanted 1", doc.ModCount)
		}
	})
}

func TestDB_Dump(t *testing.T) {
	db := setup(t, basicSchema, Memory, NoCompression)
	putJSON(t, db, map[string]string{
		"d1": `{"labels":{"env":"prod"}}`,
	})
	db.Read(func(tx *Tx) {
		out := tx.Dump(DumpAll)
		for _, want := range []string{
			"docs (1)",
			`docs.1 "d1"`,
			"labels._keyed.t.1: env=prod | d1",
			"labels.dv.1: d1 | prod",
		} {
			if !strings.Contains(out, want) {
				t.Errorf("** Dump does not contain %q:\n%s", want, out)
			}
		}
	})
}

func TestDB_Panics(t *testing.T) {
	db := setup(t, basicSchema, Memory, NoCompression)
	err := db.Update(func(tx *Tx) error {
		panic("boom")
	})
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("Update err = %v, wanted panic error", err)
	}
	if s := db.DescribeOpenTxns(); s != "NO OPEN TRANSACTIONS" {
		t.Fatalf("DescribeOpenTxns = %q", s)
	}
}

func TestDB_ReservedCharacterInQueryKey(t *testing.T) {
	forEachBackend(t, func(t *testing.T, db *DB) {
		putJSON(t, db, map[string]string{
			"d1": `{"labels":{"a":"xyz"}}`,
		})
		db.Read(func(tx *Tx) {
			var me *MappingError
			if _, err := tx.KeyedPrefix("labels", "a\x00x", ""); !errors.As(err, &me) {
				t.Errorf("** KeyedPrefix(a\\0x) err = %v, wanted *MappingError", err)
			}
			if _, err := tx.KeyedTerm("labels", "a\x00xyz", ""); !errors.As(err, &me) {
				t.Errorf("** KeyedTerm(a\\0xyz) err = %v, wanted *MappingError", err)
			}
			if _, err := tx.Exists("labels", "a\x00"); !errors.As(err, &me) {
				t.Errorf("** Exists(a\\0) err = %v, wanted *MappingError", err)
			}
			if _, err := tx.KeyedValues("labels", "a\x00", "d1"); !errors.As(err, &me) {
				t.Errorf("** KeyedValues(a\\0) err = %v, wanted *MappingError", err)
			}
			deepEqual(t, ids(t)(tx.KeyedPrefix("labels", "a", "x")), []string{"d1"})
		})
	})
}
