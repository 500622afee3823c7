package index

import (
	"fmt"
	"slices"
	"sort"

	"github.com/roach88/crawlplan/internal/schema"
)

// Registry is the index table of one record type.
type Registry struct {
	table   string
	desc    *schema.Descriptor
	primary *Index

	all       []*Index
	byName    map[string]*Index
	byPath    map[string][]*Index
	collation map[string]bool
}

// NewRegistry creates a registry for table with a primary key index on
// primaryPath.
func NewRegistry(table string, desc *schema.Descriptor, primaryPath string) (*Registry, error) {
	node, err := desc.Node(primaryPath)
	if err != nil {
		return nil, fmt.Errorf("primary key: %w", err)
	}
	if node.Repeated || node.Kind == schema.KindMessage {
		return nil, fmt.Errorf("primary key %q must be a scalar field", primaryPath)
	}

	r := &Registry{
		table:     table,
		desc:      desc,
		byName:    make(map[string]*Index),
		byPath:    make(map[string][]*Index),
		collation: make(map[string]bool),
	}
	r.primary = &Index{Name: primaryPath, Paths: []string{primaryPath}, Primary: true}
	r.add(r.primary)
	return r, nil
}

// Register validates and adds a secondary index.
func (r *Registry) Register(idx Index) (*Index, error) {
	if idx.Name == "" {
		return nil, fmt.Errorf("index name is required")
	}
	if _, dup := r.byName[idx.Name]; dup {
		return nil, fmt.Errorf("duplicate index %q on %s", idx.Name, r.table)
	}
	if len(idx.Paths) == 0 {
		return nil, fmt.Errorf("index %q has no paths", idx.Name)
	}
	if idx.Primary {
		return nil, fmt.Errorf("index %q: primary index is implicit", idx.Name)
	}

	repeated := -1
	for i, p := range idx.Paths {
		node, err := r.desc.Node(p)
		if err != nil {
			return nil, fmt.Errorf("index %q: %w", idx.Name, err)
		}
		if !node.Repeated {
			if node.Kind == schema.KindMessage {
				return nil, fmt.Errorf("index %q: path %q is a message", idx.Name, p)
			}
			continue
		}
		if repeated >= 0 {
			return nil, fmt.Errorf("index %q: more than one repeated path", idx.Name)
		}
		repeated = i
		if i != len(idx.Paths)-1 {
			return nil, fmt.Errorf("index %q: repeated path %q must be the last component", idx.Name, p)
		}
		if node.Kind == schema.KindMessage && len(idx.Elem) == 0 {
			return nil, fmt.Errorf("index %q: repeated message %q needs elem fields", idx.Name, p)
		}
	}
	for _, p := range idx.Paths {
		for _, other := range r.byPath[p] {
			if other.IgnoreCase != idx.IgnoreCase {
				return nil, fmt.Errorf("index %q: path %q is already indexed by %q with a different collation", idx.Name, p, other.Name)
			}
		}
	}
	if repeated < 0 && len(idx.Elem) > 0 {
		return nil, fmt.Errorf("index %q: elem fields need a repeated message path", idx.Name)
	}
	if repeated >= 0 && !idx.Multi {
		return nil, fmt.Errorf("index %q: index over repeated path must be multi", idx.Name)
	}
	if repeated < 0 && idx.Multi {
		return nil, fmt.Errorf("index %q: multi index needs a repeated path", idx.Name)
	}

	registered := idx
	registered.Paths = append([]string(nil), idx.Paths...)
	registered.Elem = append([]string(nil), idx.Elem...)
	r.add(&registered)
	return &registered, nil
}

// MustRegister is Register for static tables; it panics on error.
func (r *Registry) MustRegister(idx Index) *Index {
	registered, err := r.Register(idx)
	if err != nil {
		panic(err)
	}
	return registered
}

func (r *Registry) add(idx *Index) {
	r.all = append(r.all, idx)
	r.byName[idx.Name] = idx
	for _, p := range idx.Paths {
		r.byPath[p] = append(r.byPath[p], idx)
		if idx.IgnoreCase {
			r.collation[p] = true
		}
	}
}

// Table returns the table name.
func (r *Registry) Table() string { return r.table }

// Descriptor returns the record type descriptor.
func (r *Registry) Descriptor() *schema.Descriptor { return r.desc }

// Primary returns the primary key index.
func (r *Registry) Primary() *Index { return r.primary }

// Indexes returns every index, primary first, in registration order.
func (r *Registry) Indexes() []*Index { return slices.Clone(r.all) }

// ByName returns the named index.
func (r *Registry) ByName(name string) (*Index, bool) {
	idx, ok := r.byName[name]
	return idx, ok
}

// On returns the indexes registered under path.
func (r *Registry) On(path string) []*Index { return slices.Clone(r.byPath[path]) }

// IgnoreCase reports whether path collates case-insensitively, that is,
// whether any case-insensitive index was declared over it.
func (r *Registry) IgnoreCase(path string) bool { return r.collation[path] }

// BestIndex returns the index for the first requested path that has any.
// Among that path's indexes the one sharing the most component paths with
// the request wins; ties go to registration order. Later paths are not
// considered once a candidate is found. Returns nil when no requested path
// is indexed.
func (r *Registry) BestIndex(paths ...string) *Index {
	requested := pathSet(paths)
	for _, p := range paths {
		var best *Index
		bestCount := -1
		for _, idx := range r.byPath[p] {
			if n := matchCount(idx, requested); n > bestCount {
				best, bestCount = idx, n
			}
		}
		if best != nil {
			return best
		}
	}
	return nil
}

// BestIndexes returns every index registered under the first path ordered
// by specificity: more components shared with the request first, then
// single-field before compound, then registration order.
func (r *Registry) BestIndexes(paths ...string) []*Index {
	if len(paths) == 0 {
		return nil
	}
	requested := pathSet(paths)
	out := append([]*Index(nil), r.byPath[paths[0]]...)
	sort.SliceStable(out, func(i, j int) bool {
		ci, cj := matchCount(out[i], requested), matchCount(out[j], requested)
		if ci != cj {
			return ci > cj
		}
		return len(out[i].Paths) < len(out[j].Paths)
	})
	return out
}

// StripSecondary returns a registry with the same table, primary key and
// collation but no secondary indexes. Plans built against it are pure
// filter plans.
func (r *Registry) StripSecondary() *Registry {
	stripped := &Registry{
		table:     r.table,
		desc:      r.desc,
		primary:   r.primary,
		byName:    map[string]*Index{r.primary.Name: r.primary},
		byPath:    map[string][]*Index{r.primary.First(): {r.primary}},
		collation: make(map[string]bool, len(r.collation)),
		all:       []*Index{r.primary},
	}
	for p, v := range r.collation {
		stripped.collation[p] = v
	}
	return stripped
}

func pathSet(paths []string) map[string]bool {
	set := make(map[string]bool, len(paths))
	for _, p := range paths {
		set[p] = true
	}
	return set
}

func matchCount(idx *Index, requested map[string]bool) int {
	n := 0
	for _, p := range idx.Paths {
		if requested[p] {
			n++
		}
	}
	return n
}
