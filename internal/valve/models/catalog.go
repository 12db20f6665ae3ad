// Package models holds the catalog of valve hardware models: the built-in
// tables plus any table files listed under valves.model_paths.
package models

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/nerrad567/benchlink-core/internal/valve"
)

// Logger defines the logging interface used by the Catalog.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// SourceBuiltin marks entries compiled into the binary.
const SourceBuiltin = "builtin"

// Entry is one validated model with its derived geometry and labels.
// Entries are immutable once registered.
type Entry struct {
	Model    valve.Model
	Geometry *valve.Geometry
	Labels   *valve.Labeler
	Source   string
}

// Catalog maps model names to validated entries.
//
// All public methods are thread-safe.
type Catalog struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	codec   *Codec
	logger  Logger
}

// NewCatalog creates a catalog preloaded with every built-in model.
// A broken built-in table is a programming error and fails construction.
func NewCatalog() (*Catalog, error) {
	codec, err := NewCodec()
	if err != nil {
		return nil, err
	}

	c := &Catalog{
		entries: make(map[string]*Entry),
		codec:   codec,
		logger:  noopLogger{},
	}

	builtin, err := Builtin()
	if err != nil {
		return nil, fmt.Errorf("generating built-in models: %w", err)
	}
	for _, m := range builtin {
		if err := c.Add(m, SourceBuiltin); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// SetLogger sets the logger for the catalog.
func (c *Catalog) SetLogger(logger Logger) {
	c.logger = logger
}

// Codec returns the file codec used by LoadFile.
func (c *Catalog) Codec() *Codec {
	return c.codec
}

// Add validates a model and registers it.
// Returns ErrDuplicateModel if the name is taken.
func (c *Catalog) Add(m valve.Model, source string) error {
	g, labels, err := m.Build()
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if prev, ok := c.entries[m.Name]; ok {
		return fmt.Errorf("%w: %q (already loaded from %s)", ErrDuplicateModel, m.Name, prev.Source)
	}
	c.entries[m.Name] = &Entry{Model: m, Geometry: g, Labels: labels, Source: source}
	return nil
}

// Get returns the entry registered under name.
func (c *Catalog) Get(name string) (*Entry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrModelNotFound, name)
	}
	return e, nil
}

// List returns every entry sorted by name.
func (c *Catalog) List() []*Entry {
	c.mu.RLock()
	out := make([]*Entry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e)
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Model.Name < out[j].Model.Name })
	return out
}

// LoadFile decodes one table file and registers the model.
func (c *Catalog) LoadFile(path string) (*Entry, error) {
	m, err := c.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := c.Add(m, path); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	c.logger.Info("valve model loaded", "model", m.Name, "path", path, "positions", len(m.Rotor))
	return c.Get(m.Name)
}

// ReadFile decodes a table file without registering it.
func (c *Catalog) ReadFile(path string) (valve.Model, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return valve.Model{}, fmt.Errorf("%s: %w", path, err)
	}
	data, err := os.ReadFile(path) //nolint:gosec // path comes from operator config
	if err != nil {
		return valve.Model{}, fmt.Errorf("reading model file: %w", err)
	}
	m, err := c.codec.Decode(data, format)
	if err != nil {
		return valve.Model{}, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// LoadPaths loads every model file named in paths. A directory contributes
// all of its .yaml, .yml, .json and .toml files (not recursive).
//
// Returns the number of models loaded. Loading stops at the first error.
func (c *Catalog) LoadPaths(paths []string) (int, error) {
	loaded := 0
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return loaded, fmt.Errorf("model path: %w", err)
		}

		files := []string{p}
		if info.IsDir() {
			files, err = modelFiles(p)
			if err != nil {
				return loaded, err
			}
		}

		for _, f := range files {
			if _, err := c.LoadFile(f); err != nil {
				return loaded, err
			}
			loaded++
		}
	}
	return loaded, nil
}

func modelFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading model directory: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, err := FormatFromPath(e.Name()); err != nil {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}
