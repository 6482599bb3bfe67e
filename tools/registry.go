package tools

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Func is the body of a tool. Arguments are already validated.
type Func func(ctx context.Context, args Args) (any, error)

// CategoryDynamic groups tools created at runtime. It is always offered to
// the planner regardless of intent.
const CategoryDynamic = "Dynamic"

// Definition describes one callable tool.
type Definition struct {
	Name        string
	Description string
	Category    string
	Schema      Schema
	Func        Func
	Dynamic     bool
	// Timeout overrides the executor's per-call timeout when positive.
	Timeout time.Duration
}

var (
	ErrToolNotFound  = errors.New("tool not found")
	ErrDuplicateTool = errors.New("tool already registered")
)

// Registry is the session tool set: static tools registered at start-up
// merged with dynamic tools added while the process runs. It is safe for
// concurrent use; readers receive copies.
type Registry struct {
	mu      sync.RWMutex
	static  map[string]*Definition
	dynamic map[string]*Definition
}

func NewRegistry() *Registry {
	return &Registry{
		static:  make(map[string]*Definition),
		dynamic: make(map[string]*Definition),
	}
}

// Register adds a static tool.
func (r *Registry) Register(def Definition) error {
	if err := checkDefinition(def); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.static[def.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, def.Name)
	}
	if _, ok := r.dynamic[def.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, def.Name)
	}
	def.Dynamic = false
	r.static[def.Name] = &def
	return nil
}

// MustRegister is Register for start-up tables; it panics on error.
func (r *Registry) MustRegister(defs ...Definition) {
	for _, d := range defs {
		if err := r.Register(d); err != nil {
			panic(err)
		}
	}
}

// RegisterDynamic adds or replaces a runtime tool. A dynamic tool may not
// shadow a static one.
func (r *Registry) RegisterDynamic(def Definition) error {
	if err := checkDefinition(def); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.static[def.Name]; ok {
		return fmt.Errorf("%w: %s is a built-in tool", ErrDuplicateTool, def.Name)
	}
	def.Dynamic = true
	def.Category = CategoryDynamic
	r.dynamic[def.Name] = &def
	return nil
}

func checkDefinition(def Definition) error {
	if def.Name == "" {
		return errors.New("tool name is required")
	}
	if def.Func == nil {
		return fmt.Errorf("tool %s has no implementation", def.Name)
	}
	return nil
}

// Lookup finds a tool in the merged set.
func (r *Registry) Lookup(name string) (*Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if d, ok := r.static[name]; ok {
		c := *d
		return &c, true
	}
	if d, ok := r.dynamic[name]; ok {
		c := *d
		return &c, true
	}
	return nil, false
}

// Definitions returns every tool sorted by name.
func (r *Registry) Definitions() []*Definition {
	return r.filter(func(*Definition) bool { return true })
}

// ForCategories returns the tools in any of the given categories plus every
// dynamic tool. An empty category list returns everything.
func (r *Registry) ForCategories(categories []string) []*Definition {
	if len(categories) == 0 {
		return r.Definitions()
	}
	want := make(map[string]struct{}, len(categories))
	for _, c := range categories {
		want[c] = struct{}{}
	}
	return r.filter(func(d *Definition) bool {
		if d.Dynamic || d.Category == CategoryDynamic {
			return true
		}
		_, ok := want[d.Category]
		return ok
	})
}

func (r *Registry) filter(keep func(*Definition) bool) []*Definition {
	r.mu.RLock()
	out := make([]*Definition, 0, len(r.static)+len(r.dynamic))
	for _, layer := range []map[string]*Definition{r.static, r.dynamic} {
		for _, d := range layer {
			if keep(d) {
				c := *d
				out = append(out, &c)
			}
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names lists every tool name, sorted.
func (r *Registry) Names() []string {
	defs := r.Definitions()
	names := make([]string, len(defs))
	for i, d := range defs {
		names[i] = d.Name
	}
	return names
}

// Len is the size of the merged set.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.static) + len(r.dynamic)
}
