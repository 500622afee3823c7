package catalog

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/crawlplan/internal/index"
	"github.com/roach88/crawlplan/internal/planner"
	"github.com/roach88/crawlplan/internal/schema"
)

//go:embed schema.cue
var schemaCUE []byte

//go:embed crawler.cue
var crawlerCUE []byte

// Type is one compiled record type.
type Type struct {
	Name  string
	Table string

	// LabelPath is the repeated label field label selectors apply to; empty
	// when the type has none.
	LabelPath string

	Message    *schema.Message
	Descriptor *schema.Descriptor
	Registry   *index.Registry
}

// PlannerOptions returns the planner options for requests over t.
func (t *Type) PlannerOptions(logger *slog.Logger) []planner.Option {
	opts := []planner.Option{planner.WithLogger(logger)}
	if t.LabelPath != "" {
		opts = append(opts, planner.WithLabelPath(t.LabelPath))
	}
	return opts
}

// Catalog is the set of record types of one deployment.
type Catalog struct {
	types  []*Type
	byName map[string]*Type
}

// New assembles a catalog from record types declared in Go. Type names and
// tables must be unique.
func New(types ...*Type) (*Catalog, error) {
	cat := &Catalog{byName: make(map[string]*Type)}
	tables := make(map[string]string)
	for _, t := range types {
		if t.Registry == nil || t.Descriptor == nil {
			return nil, fmt.Errorf("type %s: missing descriptor or registry", t.Name)
		}
		if _, dup := cat.byName[t.Name]; dup {
			return nil, fmt.Errorf("duplicate type %s", t.Name)
		}
		if other, dup := tables[t.Table]; dup {
			return nil, fmt.Errorf("table %q already used by %s", t.Table, other)
		}
		tables[t.Table] = t.Name
		cat.types = append(cat.types, t)
		cat.byName[t.Name] = t
	}
	return cat, nil
}

// Types returns the record types in declaration order.
func (c *Catalog) Types() []*Type { return c.types }

// Lookup finds a record type by type name or table name.
func (c *Catalog) Lookup(name string) (*Type, error) {
	if t, ok := c.byName[name]; ok {
		return t, nil
	}
	for _, t := range c.types {
		if t.Table == name {
			return t, nil
		}
	}
	known := make([]string, len(c.types))
	for i, t := range c.types {
		known[i] = t.Name
	}
	return nil, &UnknownTypeError{Name: name, Known: known}
}

// Crawler returns the embedded crawler control plane catalog.
func Crawler() (*Catalog, error) {
	return Load("crawler.cue", crawlerCUE)
}

// LoadFile compiles the catalog file at path.
func LoadFile(path string) (*Catalog, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Load(filepath.Base(path), src)
}

// Load compiles catalog source. filename is used in error positions.
func Load(filename string, src []byte) (*Catalog, error) {
	ctx := cuecontext.New()
	constraints := ctx.CompileBytes(schemaCUE, cue.Filename("schema.cue"))
	if err := constraints.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return Compile(constraints.Unify(v))
}
