package toolrack

import (
	"github.com/rs/zerolog"
)

// toolOptions hold optional tool settings.
type toolOptions struct {
	strict bool
}

// ToolOption configures a tool (e.g. WithStrict).
type ToolOption func(*toolOptions)

// WithStrict sets strict mode for schema: additionalProperties: false for all objects,
// and all properties become required. Use for OpenAI Structured Outputs compatibility.
func WithStrict() ToolOption {
	return func(o *toolOptions) {
		o.strict = true
	}
}

// RegistryOption configures a Registry.
type RegistryOption func(*registryOptions)

type registryOptions struct {
	name            string
	mode            Mode
	processWorkers  int
	processFallback bool
	logger          zerolog.Logger
}

// WithName sets the registry name. If unset, a short random "reg_<4 hex>"
// name is generated. The name matters: Merge prefixes unqualified tools with
// their origin registry's name.
func WithName(name string) RegistryOption {
	return func(o *registryOptions) {
		o.name = name
	}
}

// WithDefaultMode sets the execution mode ExecuteToolCalls uses when no
// per-batch mode is given. The default is ModeProcess.
func WithDefaultMode(mode Mode) RegistryOption {
	return func(o *registryOptions) {
		if mode.valid() {
			o.mode = mode
		}
	}
}

// WithProcessWorkers enables the process pool and spawns it eagerly at
// NewRegistry. n <= 0 uses runtime.NumCPU(). The host binary must call
// ServeWorker when IsWorker() reports true, otherwise workers cannot answer.
func WithProcessWorkers(n int) RegistryOption {
	return func(o *registryOptions) {
		o.processWorkers = n
		if n <= 0 {
			o.processWorkers = -1 // marker: enabled, size from NumCPU
		}
	}
}

// WithProcessFallback controls what happens when the process pool is broken
// or unavailable. Enabled (the default), the entire remaining batch is
// re-run on goroutines; disabled, the affected calls get error-string
// results and isolation guarantees are never silently downgraded.
func WithProcessFallback(enabled bool) RegistryOption {
	return func(o *registryOptions) {
		o.processFallback = enabled
	}
}

// WithLogger sets the structured logger. The default is a no-op logger.
func WithLogger(logger zerolog.Logger) RegistryOption {
	return func(o *registryOptions) {
		o.logger = logger
	}
}

// RegisterOption configures a single Register call.
type RegisterOption func(*registerOptions)

type registerOptions struct {
	namespace string
}

// WithNamespace places the tool under a namespace prefix. The namespace is
// normalized (see NormalizeName), so WithNamespace("Calculator") yields
// "calculator.<name>".
func WithNamespace(namespace string) RegisterOption {
	return func(o *registerOptions) {
		o.namespace = namespace
	}
}

// MergeOption configures a Merge call.
type MergeOption func(*mergeOptions)

type mergeOptions struct {
	keepExisting   bool
	forceNamespace bool
}

// KeepExisting preserves tools already present in the receiving registry on
// name conflicts; without it, the incoming registry wins.
func KeepExisting() MergeOption {
	return func(o *mergeOptions) {
		o.keepExisting = true
	}
}

// ForceNamespace re-prefixes every tool (even already-namespaced ones) with
// its origin registry's name before merging.
func ForceNamespace() MergeOption {
	return func(o *mergeOptions) {
		o.forceNamespace = true
	}
}

// SpinoffOption configures a Spinoff call.
type SpinoffOption func(*spinoffOptions)

type spinoffOptions struct {
	retainNamespace bool
}

// RetainNamespace keeps the prefix on the spun-off tools' names (and leaves
// the remaining registry's namespaces untouched).
func RetainNamespace() SpinoffOption {
	return func(o *spinoffOptions) {
		o.retainNamespace = true
	}
}

// ExecuteOption configures a single ExecuteToolCalls batch.
type ExecuteOption func(*executeOptions)

type executeOptions struct {
	mode Mode
}

// WithMode overrides the registry's default execution mode for one batch.
func WithMode(mode Mode) ExecuteOption {
	return func(o *executeOptions) {
		if mode.valid() {
			o.mode = mode
		}
	}
}
