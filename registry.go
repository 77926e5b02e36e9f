package toolrack

import (
	"context"
	"fmt"
	"runtime"
	"slices"
	"sync"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

const hexAlphabet = "0123456789abcdef"

// Registry is a named collection of Tools with namespace-aware merge and
// spinoff operations, plus the execution resources (process pool, goroutine
// wave) used by ExecuteToolCalls.
//
// Register, Merge, and Spinoff are expected to run from a single
// coordinating goroutine during setup; mutating a Registry while a batch
// executes against it is not supported.
type Registry struct {
	name string
	log  zerolog.Logger

	mu            sync.Mutex
	tools         map[string]*Tool
	subRegistries map[string]struct{}

	mode     Mode
	fallback bool
	pool     *procPool

	done    chan struct{}
	running sync.WaitGroup
}

// NewRegistry creates a Registry with the given options. When
// WithProcessWorkers is configured, the worker pool is spawned eagerly;
// spawn failures are contained (logged, pool marked broken) so construction
// never fails.
func NewRegistry(opts ...RegistryOption) *Registry {
	o := registryOptions{
		mode:            ModeProcess,
		processFallback: true,
		logger:          zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.name == "" {
		id, err := gonanoid.Generate(hexAlphabet, 4)
		if err != nil {
			id = "0000"
		}
		o.name = "reg_" + id
	}
	r := &Registry{
		name:          o.name,
		log:           o.logger,
		tools:         make(map[string]*Tool),
		subRegistries: make(map[string]struct{}),
		mode:          o.mode,
		fallback:      o.processFallback,
		done:          make(chan struct{}),
	}
	if o.processWorkers != 0 {
		n := o.processWorkers
		if n < 0 {
			n = runtime.NumCPU()
		}
		r.pool = newProcPool(n, r.log)
	}
	return r
}

// Name returns the registry name.
func (r *Registry) Name() string { return r.name }

// Register adds a tool, optionally under a namespace (WithNamespace).
// Registering under a name already present overwrites the prior tool
// (last-write-wins), which allows live redefinition during iterative
// development.
func (r *Registry) Register(t *Tool, opts ...RegisterOption) {
	var o registerOptions
	for _, opt := range opts {
		opt(&o)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if o.namespace != "" {
		t.setNamespace(o.namespace, true)
		r.subRegistries[NormalizeName(o.namespace)] = struct{}{}
	}
	name := t.Name()
	if _, exists := r.tools[name]; exists {
		r.log.Debug().Str("tool", name).Msg("overwriting registered tool")
	}
	r.tools[name] = t
	r.log.Debug().Str("tool", name).Str("registry", r.name).Msg("registered tool")
}

// RegisterFunc builds a synchronous Tool from fn and registers it in one step.
func RegisterFunc[T any, R any](r *Registry, name, description string, fn func(args T) (R, error), opts ...RegisterOption) (*Tool, error) {
	t, err := NewTool(name, description, fn)
	if err != nil {
		return nil, err
	}
	r.Register(t, opts...)
	return t, nil
}

// RegisterAsyncFunc builds an asynchronous Tool from fn and registers it in one step.
func RegisterAsyncFunc[T any, R any](r *Registry, name, description string, fn func(ctx context.Context, args T) (R, error), opts ...RegisterOption) (*Tool, error) {
	t, err := NewAsyncTool(name, description, fn)
	if err != nil {
		return nil, err
	}
	r.Register(t, opts...)
	return t, nil
}

// Merge combines another registry's tools into this one. Before merging,
// each registry's unqualified tools are prefixed with that registry's own
// name, so independently-built collections compose without collisions;
// ForceNamespace re-prefixes even already-namespaced tools with their origin
// registry's name. Conflicts follow KeepExisting. Both registries' tool maps
// are rewritten in place (other keeps its prefixed tools).
func (r *Registry) Merge(other *Registry, opts ...MergeOption) error {
	if other == nil {
		return fmt.Errorf("can only merge with another registry, got nil")
	}
	var o mergeOptions
	for _, opt := range opts {
		opt(&o)
	}

	r.prefixToolsNamespace(o.forceNamespace)
	if other == r {
		return nil
	}
	other.prefixToolsNamespace(o.forceNamespace)

	// Snapshot under other's lock, merge under r's lock. Never holding
	// both avoids a lock-order inversion when two registries merge each
	// other concurrently.
	other.mu.Lock()
	incoming := make(map[string]*Tool, len(other.tools))
	for name, t := range other.tools {
		incoming[name] = t
	}
	other.mu.Unlock()

	r.mu.Lock()
	if o.keepExisting {
		for name, t := range incoming {
			if _, exists := r.tools[name]; !exists {
				r.tools[name] = t
			}
		}
	} else {
		for name, t := range incoming {
			r.tools[name] = t
		}
	}
	r.recomputeSubRegistries()
	r.mu.Unlock()

	r.log.Info().Str("registry", r.name).Str("merged", other.name).Msg("merged registries")
	return nil
}

// prefixToolsNamespace prefixes tools with the registry's own name. Without
// force, tools that already carry a namespace keep it.
func (r *Registry) prefixToolsNamespace(force bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rekeyed := make(map[string]*Tool, len(r.tools))
	for _, t := range r.tools {
		t.setNamespace(r.name, force)
		rekeyed[t.Name()] = t
	}
	r.tools = rekeyed
	r.recomputeSubRegistries()
}

// recomputeSubRegistries rebuilds the derived namespace set from the tool
// map. Callers hold r.mu.
func (r *Registry) recomputeSubRegistries() {
	r.subRegistries = make(map[string]struct{})
	for _, t := range r.tools {
		if ns := t.Namespace(); ns != "" {
			r.subRegistries[ns] = struct{}{}
		}
	}
}

// reduceNamespace strips the namespace prefix when exactly one namespace
// remains, so a registry decomposed by spinoff does not keep residual
// prefix clutter. Callers hold r.mu.
func (r *Registry) reduceNamespace() {
	if len(r.subRegistries) != 1 {
		return
	}
	var remaining string
	for ns := range r.subRegistries {
		remaining = ns
	}
	rekeyed := make(map[string]*Tool, len(r.tools))
	for _, t := range r.tools {
		if t.Namespace() == remaining {
			t.clearNamespace()
		}
		rekeyed[t.Name()] = t
	}
	r.tools = rekeyed
	r.subRegistries = make(map[string]struct{})
}

// Spinoff extracts every tool under the given namespace prefix into a fresh
// registry named after the prefix, removing them from this one (move, not
// copy). Returns ErrNothingToSpinoff when no tool matches. Without
// RetainNamespace, the prefix is stripped in the new registry, and if the
// prefix was the only namespace left here, it is stripped here too.
func (r *Registry) Spinoff(prefix string, opts ...SpinoffOption) (*Registry, error) {
	var o spinoffOptions
	for _, opt := range opts {
		opt(&o)
	}
	ns := NormalizeName(prefix)

	r.mu.Lock()
	defer r.mu.Unlock()

	spun := make(map[string]*Tool)
	for name, t := range r.tools {
		if t.Namespace() == ns {
			spun[name] = t
		}
	}
	if len(spun) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNothingToSpinoff, prefix)
	}

	next := NewRegistry(WithName(ns), WithLogger(r.log))
	next.tools = spun
	next.subRegistries[ns] = struct{}{}
	if !o.retainNamespace {
		next.mu.Lock()
		next.reduceNamespace()
		next.mu.Unlock()
	}

	for name := range spun {
		delete(r.tools, name)
	}
	delete(r.subRegistries, ns)
	if !o.retainNamespace {
		r.reduceNamespace()
	}

	r.log.Info().Str("registry", r.name).Str("spinoff", ns).Int("tools", len(spun)).Msg("spun off namespace")
	return next, nil
}

// GetTool returns the tool with the given name, or (nil, false) if not found.
func (r *Registry) GetTool(name string) (*Tool, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tools[name]
	return t, ok
}

// GetCallable returns the named tool's invoker, or nil if not found.
func (r *Registry) GetCallable(name string) Invoker {
	t, ok := r.GetTool(name)
	if !ok {
		return nil
	}
	return t.Callable()
}

// Contains reports whether a tool with the given name is registered.
func (r *Registry) Contains(name string) bool {
	_, ok := r.GetTool(name)
	return ok
}

// GetAvailableTools lists all registered tool names, sorted for
// deterministic order.
func (r *Registry) GetAvailableTools() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// GetToolsJSON returns the JSON-Schema tool definitions for export to LLM
// providers, sorted by name. With arguments, only the named tools are
// returned (unknown names are skipped).
func (r *Registry) GetToolsJSON(names ...string) []map[string]any {
	if len(names) == 0 {
		names = r.GetAvailableTools()
	}
	out := make([]map[string]any, 0, len(names))
	for _, name := range names {
		if t, ok := r.GetTool(name); ok {
			out = append(out, t.JSONSchema())
		}
	}
	return out
}

// SetExecutionMode changes the default execution mode for future batches.
func (r *Registry) SetExecutionMode(mode Mode) error {
	if !mode.valid() {
		r.log.Error().Str("mode", string(mode)).Msg("invalid execution mode, choose process or thread")
		return fmt.Errorf("invalid execution mode %q", mode)
	}
	r.mu.Lock()
	r.mode = mode
	r.mu.Unlock()
	r.log.Info().Str("mode", string(mode)).Msg("execution mode set")
	return nil
}

// Shutdown closes the registry for new batches, waits for in-flight
// executions (or ctx to cancel), and releases the worker pool. It is
// idempotent: a second call is a no-op.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	select {
	case <-r.done:
		r.mu.Unlock()
		return nil
	default:
		close(r.done)
	}
	pool := r.pool
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.running.Wait()
		close(done)
	}()
	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	if pool != nil {
		pool.shutdown(ctx)
	}
	return err
}
