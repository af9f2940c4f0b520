package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/goccy/go-yaml"
	"go-simpler.org/env"

	"github.com/andreyvit/flatidx"
)

type config struct {
	DB          string   `env:"FLATIDX_DB" default:"flatidx.db" usage:"database path"`
	Backend     string   `env:"FLATIDX_BACKEND" default:"bolt" usage:"storage backend: bolt, badger or memory"`
	Compression string   `env:"FLATIDX_COMPRESSION" default:"zstd" usage:"document compression: none, zstd, s2 or lz4"`
	Mapping     string   `env:"FLATIDX_MAPPING" usage:"YAML file listing the flattened fields"`
	Fields      []string `env:"FLATIDX_FIELDS" default:"labels" usage:"flattened fields with default settings, used when there is no mapping file"`
	Verbose     bool     `env:"FLATIDX_VERBOSE" default:"false" usage:"log every storage operation"`
}

// envMap is an env.Source backed by a map.
type envMap map[string]string

func (m envMap) LookupEnv(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// loadConfig reads the configuration from the process environment, or from
// src when it is not nil.
func loadConfig(src env.Source) (*config, error) {
	cfg := &config{}
	var opt *env.Options
	if src != nil {
		opt = &env.Options{Source: src}
	}
	if err := env.Load(cfg, opt); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

type mappingFile struct {
	Fields []mappingEntry `yaml:"fields"`
}

type mappingEntry struct {
	Name        string  `yaml:"name"`
	KeyedName   string  `yaml:"keyed_name"`
	DepthLimit  int     `yaml:"depth_limit"`
	IgnoreAbove int     `yaml:"ignore_above"`
	NullValue   *string `yaml:"null_value"`
	Index       *bool   `yaml:"index"`
	DocValues   *bool   `yaml:"doc_values"`
}

func (e *mappingEntry) mapping() *flatidx.Mapping {
	m := flatidx.NewMapping(e.Name)
	if e.KeyedName != "" {
		m = m.WithKeyedName(e.KeyedName)
	}
	if e.DepthLimit != 0 {
		m = m.WithDepthLimit(e.DepthLimit)
	}
	if e.IgnoreAbove != 0 {
		m = m.WithIgnoreAbove(e.IgnoreAbove)
	}
	if e.NullValue != nil {
		m = m.WithNullValue(*e.NullValue)
	}
	if e.Index != nil {
		m = m.WithIndex(*e.Index)
	}
	if e.DocValues != nil {
		m = m.WithDocValues(*e.DocValues)
	}
	return m
}

func parseMappingFile(data []byte) (*flatidx.Schema, error) {
	var mf mappingFile
	if err := yaml.Unmarshal(data, &mf); err != nil {
		return nil, err
	}
	if len(mf.Fields) == 0 {
		return nil, fmt.Errorf("no fields defined")
	}
	mappings := make([]*flatidx.Mapping, 0, len(mf.Fields))
	for i := range mf.Fields {
		mappings = append(mappings, mf.Fields[i].mapping())
	}
	return flatidx.NewSchema(mappings...)
}

func (cfg *config) schema() (*flatidx.Schema, error) {
	if cfg.Mapping == "" {
		mappings := make([]*flatidx.Mapping, 0, len(cfg.Fields))
		for _, name := range cfg.Fields {
			mappings = append(mappings, flatidx.NewMapping(name))
		}
		return flatidx.NewSchema(mappings...)
	}
	data, err := os.ReadFile(cfg.Mapping)
	if err != nil {
		return nil, err
	}
	scm, err := parseMappingFile(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cfg.Mapping, err)
	}
	return scm, nil
}

func (cfg *config) logger() *slog.Logger {
	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// openDB opens the configured database; dbPath overrides the configured path
// when not empty.
func (cfg *config) openDB(dbPath string) (*flatidx.DB, error) {
	if dbPath == "" {
		dbPath = cfg.DB
	}
	backend, err := flatidx.ParseBackend(cfg.Backend)
	if err != nil {
		return nil, err
	}
	compression, err := flatidx.ParseCompression(cfg.Compression)
	if err != nil {
		return nil, err
	}
	scm, err := cfg.schema()
	if err != nil {
		return nil, err
	}
	return flatidx.Open(dbPath, scm, flatidx.Options{
		Backend:     backend,
		Logger:      cfg.logger(),
		Verbose:     cfg.Verbose,
		Compression: compression,
	})
}
