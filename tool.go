package toolrack

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"reflect"
	"regexp"
	"runtime"
	"strings"
)

// Invoker is the closed variant over everything a Tool can wrap: a plain
// synchronous function, a context-aware asynchronous function, or a network
// proxy object (MCP operation, OpenAPI operation). Each variant exposes the
// same invocation contract so call sites never type-sniff the callable.
type Invoker interface {
	// Invoke runs the callable with a JSON-encoded argument object.
	Invoke(ctx context.Context, argsJSON []byte) (any, error)
	// Async reports whether the callable supports context-driven execution
	// (asynchronous functions and proxies do; plain functions do not).
	Async() bool
}

// Proxy performs one remote operation per invocation. MCP and OpenAPI tools
// wrap a Proxy instead of a local function.
type Proxy interface {
	Call(ctx context.Context, args map[string]any) (any, error)
}

type syncInvoker struct {
	fn func(argsJSON []byte) (any, error)
}

func (s syncInvoker) Invoke(_ context.Context, argsJSON []byte) (any, error) {
	return s.fn(argsJSON)
}
func (s syncInvoker) Async() bool { return false }

type asyncInvoker struct {
	fn func(ctx context.Context, argsJSON []byte) (any, error)
}

func (a asyncInvoker) Invoke(ctx context.Context, argsJSON []byte) (any, error) {
	return a.fn(ctx, argsJSON)
}
func (a asyncInvoker) Async() bool { return true }

type proxyInvoker struct {
	proxy Proxy
}

func (p proxyInvoker) Invoke(ctx context.Context, argsJSON []byte) (any, error) {
	var args map[string]any
	if err := json.Unmarshal(argsJSON, &args); err != nil {
		return nil, wrapJSONParseError(err)
	}
	return p.proxy.Call(ctx, args)
}
func (p proxyInvoker) Async() bool { return true }

// Tool wraps one invocable unit with its name, description, parameter schema,
// and validator. It is a value object: nothing is mutated after construction
// except the namespace half of the name, which Registry rewrites during
// merge and spinoff.
type Tool struct {
	namespace   string
	baseName    string
	description string
	schema      map[string]any
	validator   schemaValidator // nil means passthrough (no validation)
	invoker     Invoker
}

// NewTool builds a synchronous Tool from a typed function. If name is empty
// it is derived from the function's own name; anonymous functions without an
// explicit name return ErrAnonymousTool. Schema generation failure is
// non-fatal: the tool is still built and runs in passthrough mode.
func NewTool[T any, R any](name, description string, fn func(args T) (R, error), opts ...ToolOption) (*Tool, error) {
	base, err := resolveToolName(name, fn)
	if err != nil {
		return nil, err
	}
	t := newTypedTool[T](base, description, opts)
	t.invoker = syncInvoker{fn: func(argsJSON []byte) (any, error) {
		args, err := decodeArgs[T](argsJSON)
		if err != nil {
			return nil, err
		}
		return fn(args)
	}}
	return t, nil
}

// NewAsyncTool builds an asynchronous Tool from a typed context-aware
// function. The naming and schema rules match NewTool.
func NewAsyncTool[T any, R any](name, description string, fn func(ctx context.Context, args T) (R, error), opts ...ToolOption) (*Tool, error) {
	base, err := resolveToolName(name, fn)
	if err != nil {
		return nil, err
	}
	t := newTypedTool[T](base, description, opts)
	t.invoker = asyncInvoker{fn: func(ctx context.Context, argsJSON []byte) (any, error) {
		args, err := decodeArgs[T](argsJSON)
		if err != nil {
			return nil, err
		}
		return fn(ctx, args)
	}}
	return t, nil
}

// NewProxyTool builds a Tool whose callable is a remote proxy. schemaMap is
// the operation's input schema as a runtime map (it is deep-copied, never
// mutated); a nil map or an uncompilable schema leaves the tool in
// passthrough mode. Proxy tools are always async-capable.
func NewProxyTool(name, description string, schemaMap map[string]any, proxy Proxy, opts ...ToolOption) (*Tool, error) {
	if name == "" {
		return nil, ErrAnonymousTool
	}
	if proxy == nil {
		return nil, fmt.Errorf("proxy tool %q: proxy must not be nil", name)
	}
	var o toolOptions
	for _, opt := range opts {
		opt(&o)
	}
	t := &Tool{
		baseName:    name,
		description: description,
		schema:      map[string]any{},
		invoker:     proxyInvoker{proxy: proxy},
	}
	if schemaMap == nil {
		return t, nil
	}
	copied, err := deepCopySchema(schemaMap)
	if err != nil {
		return t, nil
	}
	if o.strict {
		applyStrictMode(copied)
	}
	stripSchemaIDs(copied)
	t.schema = copied
	// Compilation failure disables validation for this tool only.
	if compiled, err := compileDynamicSchema(copied); err == nil {
		t.validator = compiled
	}
	return t, nil
}

func newTypedTool[T any](base, description string, opts []ToolOption) *Tool {
	var o toolOptions
	for _, opt := range opts {
		opt(&o)
	}
	t := &Tool{
		baseName:    base,
		description: description,
		schema:      map[string]any{},
	}
	if schemaMap, resolved, err := generateSchema[T](o.strict); err == nil {
		t.schema = schemaMap
		t.validator = resolved
	}
	return t
}

func decodeArgs[T any](argsJSON []byte) (T, error) {
	var args T
	if err := json.Unmarshal(argsJSON, &args); err != nil {
		var zero T
		return zero, wrapJSONParseError(err)
	}
	if err := runCustomValidation(args); err != nil {
		var zero T
		if IsClientError(err) {
			return zero, err
		}
		return zero, &ClientError{Reason: err.Error(), Err: ErrValidation}
	}
	return args, nil
}

// Name returns the qualified display name (namespace.baseName or baseName).
func (t *Tool) Name() string { return qualifiedName(t.namespace, t.baseName) }

// BaseName returns the name without its namespace prefix.
func (t *Tool) BaseName() string { return t.baseName }

// Namespace returns the namespace prefix, empty when unqualified.
func (t *Tool) Namespace() string { return t.namespace }

// Description returns the human-readable tool description.
func (t *Tool) Description() string { return t.description }

// Async reports whether the wrapped callable supports asynchronous execution.
func (t *Tool) Async() bool { return t.invoker != nil && t.invoker.Async() }

// Callable returns the underlying invoker.
func (t *Tool) Callable() Invoker { return t.invoker }

// Parameters returns a shallow copy of the JSON Schema (top-level keys only).
// Nested maps (e.g. under "properties") are shared; callers must not mutate them.
func (t *Tool) Parameters() map[string]any { return maps.Clone(t.schema) }

// JSONSchema returns the tool definition in the shape chat-completion APIs
// consume. Pure and deterministic.
func (t *Tool) JSONSchema() map[string]any {
	return map[string]any{
		"type": "function",
		"function": map[string]any{
			"name":        t.Name(),
			"description": t.description,
			"parameters":  maps.Clone(t.schema),
			"is_async":    t.Async(),
		},
	}
}

// Run validates args and invokes the callable synchronously. Validation and
// execution failures (including panics) are returned as a string of the form
// "Error executing <name>: <message>" so the error can flow back to the LLM
// as a regular tool result.
func (t *Tool) Run(args map[string]any) any {
	return t.runContained(context.Background(), args, false)
}

// ARun is the asynchronous counterpart of Run. Tools wrapping a plain
// synchronous function report the unsupported condition the same
// error-string way.
func (t *Tool) ARun(ctx context.Context, args map[string]any) any {
	return t.runContained(ctx, args, true)
}

func (t *Tool) runContained(ctx context.Context, args map[string]any, needAsync bool) (result any) {
	defer func() {
		if p := recover(); p != nil {
			result = fmt.Sprintf("Error executing %s: %s", t.Name(), (&panicError{p: p}).Error())
		}
	}()
	res, err := t.invoke(ctx, args, needAsync)
	if err != nil {
		return fmt.Sprintf("Error executing %s: %s", t.Name(), errMessage(err))
	}
	return res
}

func (t *Tool) invoke(ctx context.Context, args map[string]any, needAsync bool) (any, error) {
	if t.invoker == nil {
		return nil, ErrToolNotFound
	}
	if needAsync && !t.invoker.Async() {
		return nil, ErrAsyncUnsupported
	}
	if args == nil {
		args = map[string]any{}
	}
	argsJSON, err := json.Marshal(args)
	if err != nil {
		return nil, &SystemError{Err: err}
	}
	if t.validator != nil {
		var v any
		if err := json.Unmarshal(argsJSON, &v); err != nil {
			return nil, wrapJSONParseError(err)
		}
		if err := validateAgainstSchema(t.validator, v); err != nil {
			return nil, err
		}
	}
	return t.invoker.Invoke(ctx, argsJSON)
}

// setNamespace rewrites the namespace half of the tool name. A tool that
// already carries a namespace keeps it unless force is set. Used by Registry
// during register, merge, and spinoff.
func (t *Tool) setNamespace(ns string, force bool) {
	if ns == "" {
		return
	}
	if t.namespace == "" || force {
		t.namespace = NormalizeName(ns)
	}
}

// clearNamespace drops the namespace prefix (namespace reduction).
func (t *Tool) clearNamespace() { t.namespace = "" }

var anonFuncName = regexp.MustCompile(`^func\d+(\.\d+)*$`)

// resolveToolName picks the explicit name or derives one from the function's
// runtime name. Anonymous functions have no usable name.
func resolveToolName(name string, fn any) (string, error) {
	if name != "" {
		return name, nil
	}
	f := runtime.FuncForPC(reflect.ValueOf(fn).Pointer())
	if f == nil {
		return "", ErrAnonymousTool
	}
	full := strings.TrimSuffix(f.Name(), "-fm")
	base := full[strings.LastIndex(full, ".")+1:]
	if base == "" || anonFuncName.MatchString(base) {
		return "", ErrAnonymousTool
	}
	return NormalizeName(base), nil
}

// deepCopySchema copies a schema map through JSON so the caller's map is
// never mutated.
func deepCopySchema(schemaMap map[string]any) (map[string]any, error) {
	data, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
