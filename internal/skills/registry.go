package skills

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// entry is one skill's full state: its metadata plus whatever has been
// promoted above L1.
type entry struct {
	mu        sync.Mutex
	metadata  Metadata
	level     Level
	builtin   Builtin
	executor  Executor
	resources map[string]any
}

// Registry holds every known skill, indexed by id, at whatever level it
// has been promoted to. All built-in skills start at L1 at construction;
// promotion is driven by GetSkill or EnsureLoaded (§4.F).
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// NewRegistry iterates the built-in skill set and registers each at L1,
// reading only its Metadata — NewExecutor and LoadResources are not
// invoked until a caller promotes the skill.
func NewRegistry(builtins []Builtin) *Registry {
	r := &Registry{entries: make(map[string]*entry, len(builtins))}
	for _, b := range builtins {
		r.entries[b.Metadata.ID] = &entry{metadata: b.Metadata, level: L1Metadata, builtin: b}
	}
	return r
}

// List returns the metadata for every registered skill, sorted by id.
func (r *Registry) List() []Metadata {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Metadata, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.metadata)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Level reports a skill's current load level.
func (r *Registry) Level(id string) (Level, bool) {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return L1Metadata, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.level, true
}

// GetSkill promotes a skill to at least L2 and returns its executor. This
// is the handler behind the `get_skill(id)` tool call (§4.F): the first
// call to it is what triggers L1->L2 promotion.
func (r *Registry) GetSkill(ctx context.Context, id string) (Executor, error) {
	e, err := r.lookup(id)
	if err != nil {
		return nil, err
	}
	if err := r.promote(e, L2Instructions); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.executor, nil
}

// EnsureLoaded promotes a skill to exactly the requested level (or
// higher already achieved), used by the explicit `ensure_loaded(id,
// level)` tool call.
func (r *Registry) EnsureLoaded(ctx context.Context, id string, level Level) error {
	e, err := r.lookup(id)
	if err != nil {
		return err
	}
	return r.promote(e, level)
}

// Unload demotes a skill back to L1, discarding its executor and
// resources but preserving metadata (§4.F, §5 "unloading a skill and
// immediately get_skill(id) produces a fresh instantiation").
func (r *Registry) Unload(id string) error {
	e, err := r.lookup(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.level = L1Metadata
	e.executor = nil
	e.resources = nil
	return nil
}

// Resources returns a skill's L3 assets, promoting it if necessary.
func (r *Registry) Resources(ctx context.Context, id string) (map[string]any, error) {
	e, err := r.lookup(id)
	if err != nil {
		return nil, err
	}
	if err := r.promote(e, L3Resources); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resources, nil
}

func (r *Registry) lookup(id string) (*entry, error) {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("skills: unknown skill %q", id)
	}
	return e, nil
}

// promote raises e to target level if it isn't already there, invoking
// the builtin's factories exactly once per promotion.
func (r *Registry) promote(e *entry, target Level) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.level >= target {
		return nil
	}

	if e.level < L2Instructions && target >= L2Instructions {
		if e.builtin.NewExecutor == nil {
			return fmt.Errorf("skills: %q has no L2 executor factory", e.metadata.ID)
		}
		e.executor = e.builtin.NewExecutor()
		e.level = L2Instructions
	}

	if e.level < L3Resources && target >= L3Resources {
		if e.builtin.LoadResources == nil {
			e.resources = map[string]any{}
		} else {
			res, err := e.builtin.LoadResources(context.Background())
			if err != nil {
				return fmt.Errorf("skills: loading resources for %q: %w", e.metadata.ID, err)
			}
			e.resources = res
		}
		e.level = L3Resources
	}

	return nil
}

// RegisterDynamic adds or replaces a skill whose executor was produced by
// the dynamic-skill loader (dynamic.go), entering at L2 directly since a
// dynamic skill's "instructions" are its validated source.
func (r *Registry) RegisterDynamic(meta Metadata, exec Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[meta.ID] = &entry{metadata: meta, level: L2Instructions, executor: exec}
}
