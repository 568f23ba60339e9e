package report

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/plazalab/plaza-insights/internal/core/aggregate"
	"github.com/plazalab/plaza-insights/internal/record"
	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned when no definition exists for a domain.
var ErrNotFound = errors.New("report definition not found")

const defaultTopN = 10

// Column maps one detail-table column to a record field.
type Column struct {
	Header string `yaml:"header"`
	Field  string `yaml:"field"`
}

// Definition describes how one parking domain (plazas, reservations,
// transactions, users, reports) is fetched and reported. Definitions are
// loaded at startup from YAML files, one per file — no hot reload.
type Definition struct {
	Name      string   `yaml:"name"`
	Endpoint  string   `yaml:"endpoint"`
	Dimension string   `yaml:"dimension"`
	Measure   string   `yaml:"measure"`
	Timestamp string   `yaml:"timestamp"` // optional; empty means no per-record timestamps
	SortBy    string   `yaml:"sort_by"`   // optional; defaults to sum
	TopN      int      `yaml:"top_n"`     // optional; defaults to 10
	Columns   []Column `yaml:"columns"`
}

// Validate checks the definition for structural problems.
func (d Definition) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("definition name is required")
	}
	if !strings.HasPrefix(d.Endpoint, "/") {
		return fmt.Errorf("definition %q: endpoint must be an absolute path, got %q", d.Name, d.Endpoint)
	}
	if strings.TrimSpace(d.Dimension) == "" {
		return fmt.Errorf("definition %q: dimension field is required", d.Name)
	}
	if strings.TrimSpace(d.Measure) == "" {
		return fmt.Errorf("definition %q: measure field is required", d.Name)
	}
	if d.SortBy != "" && !aggregate.ValidSortMeasure(d.SortBy) {
		return fmt.Errorf("definition %q: unknown sort measure %q", d.Name, d.SortBy)
	}
	if d.TopN < 0 {
		return fmt.Errorf("definition %q: top_n must be >= 0", d.Name)
	}
	if len(d.Columns) == 0 {
		return fmt.Errorf("definition %q: at least one column is required", d.Name)
	}
	for i, c := range d.Columns {
		if strings.TrimSpace(c.Header) == "" || strings.TrimSpace(c.Field) == "" {
			return fmt.Errorf("definition %q: column %d needs both header and field", d.Name, i)
		}
	}
	return nil
}

// Options returns the ranking options the definition implies.
func (d Definition) Options() aggregate.Options {
	opts := aggregate.Options{TopN: d.TopN, SortBy: d.SortBy}
	if opts.TopN == 0 {
		opts.TopN = defaultTopN
	}
	if opts.SortBy == "" {
		opts.SortBy = aggregate.SortBySum
	}
	return opts
}

// RecordColumns adapts the definition's column list into a CSV column
// extractor over raw records.
type RecordColumns struct {
	cols []Column
}

// RecordColumns builds the extractor for this definition.
func (d Definition) RecordColumns() RecordColumns {
	return RecordColumns{cols: d.Columns}
}

func (c RecordColumns) Headers() []string {
	out := make([]string, len(c.cols))
	for i, col := range c.cols {
		out[i] = col.Header
	}
	return out
}

func (c RecordColumns) Row(rec record.Record) []string {
	out := make([]string, len(c.cols))
	for i, col := range c.cols {
		out[i] = rec.Cell(col.Field)
	}
	return out
}

// Repository is the read interface over loaded definitions.
type Repository interface {
	// Get returns the definition for a domain, or ErrNotFound.
	Get(name string) (*Definition, error)

	// List returns all loaded definitions sorted by name.
	List() []Definition
}

// FileSystemRepository loads report definitions from *.yaml files in a
// directory. Each file holds exactly one definition. Loaded once at
// startup and cached in memory.
type FileSystemRepository struct {
	dir         string
	definitions map[string]Definition
}

// NewFileSystemRepository creates a repository and eagerly loads all
// definitions from dir. A missing directory is valid and yields zero
// definitions; a malformed or duplicate definition is an error.
func NewFileSystemRepository(dir string) (*FileSystemRepository, error) {
	repo := &FileSystemRepository{
		dir:         dir,
		definitions: make(map[string]Definition),
	}
	if err := repo.load(); err != nil {
		return nil, err
	}
	return repo, nil
}

func (r *FileSystemRepository) load() error {
	info, err := os.Stat(r.dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("report definition dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("report definition path %q is not a directory", r.dir)
	}

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return fmt.Errorf("reading report definition dir: %w", err)
	}

	for _, e := range entries {
		if e.IsDir() || (!strings.HasSuffix(e.Name(), ".yaml") && !strings.HasSuffix(e.Name(), ".yml")) {
			continue
		}

		path := filepath.Join(r.dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading definition file %s: %w", path, err)
		}

		var def Definition
		if err := yaml.Unmarshal(data, &def); err != nil {
			return fmt.Errorf("parsing definition file %s: %w", path, err)
		}
		if err := def.Validate(); err != nil {
			return fmt.Errorf("invalid definition file %s: %w", path, err)
		}
		if _, dup := r.definitions[def.Name]; dup {
			return fmt.Errorf("duplicate definition name %q in %s", def.Name, path)
		}
		r.definitions[def.Name] = def
	}
	return nil
}

func (r *FileSystemRepository) Get(name string) (*Definition, error) {
	def, ok := r.definitions[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return &def, nil
}

func (r *FileSystemRepository) List() []Definition {
	out := make([]Definition, 0, len(r.definitions))
	for _, def := range r.definitions {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
