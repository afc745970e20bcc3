// Package queries loads named nQL query definitions.
package queries

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/aevon-lab/nqlflow/internal/core/nql"
)

// ErrNotFound is returned when no definition has the requested name.
var ErrNotFound = errors.New("query definition not found")

// Definition is one named query. Queries that fail to compile are kept with
// CompileErr set so they can be reported, and never run.
type Definition struct {
	Name        string
	Query       string
	Description string
	Enabled     bool
	Path        string
	Fingerprint string // SHA-256 of the source file, or of the query text for in-memory definitions

	Compiled   nql.Query
	CompileErr error
}

// Runnable reports whether the definition is enabled and compiled.
func (d Definition) Runnable() bool {
	return d.Enabled && d.Compiled != nil
}

// rawDefinition is the on-disk YAML shape. enabled defaults to true.
type rawDefinition struct {
	Name        string `yaml:"name"`
	Query       string `yaml:"query"`
	Description string `yaml:"description"`
	Enabled     *bool  `yaml:"enabled"`
}

// Repository provides query definitions.
type Repository interface {
	// Get returns the definition with the given name, or ErrNotFound.
	Get(ctx context.Context, name string) (*Definition, error)

	// List returns all definitions ordered by name.
	List(ctx context.Context) ([]Definition, error)

	// Runnable returns the enabled, compiled definitions ordered by name.
	Runnable() []Definition
}

// MemoryRepository holds definitions in memory, ordered by name.
type MemoryRepository struct {
	defs  map[string]Definition
	names []string
}

// NewMemoryRepository compiles defs and rejects duplicate or empty names.
func NewMemoryRepository(defs []Definition) (*MemoryRepository, error) {
	r := &MemoryRepository{defs: make(map[string]Definition, len(defs))}
	for _, d := range defs {
		if err := r.add(d); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// FromTexts builds a repository of enabled queries named query-1, query-2...
func FromTexts(texts []string) (*MemoryRepository, error) {
	defs := make([]Definition, len(texts))
	for i, text := range texts {
		defs[i] = Definition{Name: fmt.Sprintf("query-%d", i+1), Query: text, Enabled: true}
	}
	return NewMemoryRepository(defs)
}

func (r *MemoryRepository) add(d Definition) error {
	if d.Name == "" {
		return fmt.Errorf("query definition: name must not be empty")
	}
	if strings.TrimSpace(d.Query) == "" {
		return fmt.Errorf("query %q: query must not be empty", d.Name)
	}
	if _, exists := r.defs[d.Name]; exists {
		return fmt.Errorf("query %q: duplicate query name (check multiple YAML files)", d.Name)
	}
	if d.Fingerprint == "" {
		d.Fingerprint = fmt.Sprintf("%x", sha256.Sum256([]byte(d.Query)))
	}
	d.Compiled, d.CompileErr = nql.Compile(d.Query)

	r.defs[d.Name] = d
	r.names = append(r.names, d.Name)
	sort.Strings(r.names)
	return nil
}

// Get returns the definition with the given name, or ErrNotFound.
func (r *MemoryRepository) Get(_ context.Context, name string) (*Definition, error) {
	d, ok := r.defs[name]
	if !ok {
		return nil, fmt.Errorf("query %q: %w", name, ErrNotFound)
	}
	return &d, nil
}

// List returns all definitions ordered by name.
func (r *MemoryRepository) List(_ context.Context) ([]Definition, error) {
	out := make([]Definition, 0, len(r.names))
	for _, name := range r.names {
		out = append(out, r.defs[name])
	}
	return out, nil
}

// Runnable returns the enabled, compiled definitions ordered by name.
func (r *MemoryRepository) Runnable() []Definition {
	var out []Definition
	for _, name := range r.names {
		if d := r.defs[name]; d.Runnable() {
			out = append(out, d)
		}
	}
	return out
}

// LoadDir reads every *.yaml / *.yml file in dir, one definition per file.
// A missing directory yields an empty repository. Files without a name are
// skipped as comment-only. Compile failures are recorded, not returned.
func LoadDir(dir string) (*MemoryRepository, error) {
	r := &MemoryRepository{defs: make(map[string]Definition)}

	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return r, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("query path %q is not a directory", dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading query dir: %w", err)
	}

	for _, e := range entries {
		if e.IsDir() || (!strings.HasSuffix(e.Name(), ".yaml") && !strings.HasSuffix(e.Name(), ".yml")) {
			continue
		}

		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading query file %s: %w", path, err)
		}

		var raw rawDefinition
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parsing query file %s: %w", path, err)
		}
		if raw.Name == "" {
			continue
		}

		enabled := true
		if raw.Enabled != nil {
			enabled = *raw.Enabled
		}
		err = r.add(Definition{
			Name:        raw.Name,
			Query:       raw.Query,
			Description: raw.Description,
			Enabled:     enabled,
			Path:        path,
			Fingerprint: fmt.Sprintf("%x", sha256.Sum256(data)),
		})
		if err != nil {
			return nil, err
		}
	}
	return r, nil
}
