package toolrack

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

var (
	ctxType   = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType = reflect.TypeOf((*error)(nil)).Elem()
)

// RegisterFromStruct registers every exported method of instance that has a
// tool-compatible signature:
//
//	func (x X) Method(args ArgsStruct) (R, error)
//	func (x X) Method(ctx context.Context, args ArgsStruct) (R, error)
//
// Context-aware methods become async tools. Method names are normalized
// (AddNumbers becomes add_numbers). Empty namespace defaults to the
// instance's type name, normalized. Methods with other signatures are
// skipped. Returns the registered tool names.
func RegisterFromStruct(r *Registry, instance any, namespace string) ([]string, error) {
	if instance == nil {
		return nil, fmt.Errorf("instance must not be nil")
	}
	v := reflect.ValueOf(instance)
	if namespace == "" {
		t := v.Type()
		for t.Kind() == reflect.Pointer {
			t = t.Elem()
		}
		namespace = NormalizeName(t.Name())
	}

	var names []string
	vt := v.Type()
	for i := 0; i < vt.NumMethod(); i++ {
		method := vt.Method(i)
		tool, ok := methodTool(v.Method(i), method.Name)
		if !ok {
			continue
		}
		r.Register(tool, WithNamespace(namespace))
		names = append(names, tool.Name())
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("type %T has no tool-compatible methods", instance)
	}
	sort.Strings(names)
	return names, nil
}

// methodTool builds a Tool from a bound method value, or reports false when
// the signature does not fit.
func methodTool(fn reflect.Value, methodName string) (*Tool, bool) {
	ft := fn.Type()
	if ft.NumOut() != 2 || ft.Out(1) != errorType {
		return nil, false
	}

	var argType reflect.Type
	var withCtx bool
	switch ft.NumIn() {
	case 1:
		argType = ft.In(0)
	case 2:
		if ft.In(0) != ctxType {
			return nil, false
		}
		argType = ft.In(1)
		withCtx = true
	default:
		return nil, false
	}
	if argType.Kind() == reflect.Pointer {
		argType = argType.Elem()
	}
	if argType.Kind() != reflect.Struct || argType == ctxType {
		return nil, false
	}

	call := func(ctx context.Context, argsJSON []byte) (any, error) {
		argPtr := reflect.New(argType)
		if err := json.Unmarshal(argsJSON, argPtr.Interface()); err != nil {
			return nil, wrapJSONParseError(err)
		}
		if err := runStructValidation(argPtr); err != nil {
			return nil, err
		}
		arg := argPtr.Elem()
		if ft.In(ft.NumIn()-1).Kind() == reflect.Pointer {
			arg = argPtr
		}
		in := []reflect.Value{arg}
		if withCtx {
			in = []reflect.Value{reflect.ValueOf(ctx), arg}
		}
		out := fn.Call(in)
		if errv := out[1]; !errv.IsNil() {
			return nil, errv.Interface().(error)
		}
		return out[0].Interface(), nil
	}

	t := &Tool{
		baseName:    NormalizeName(methodName),
		description: fmt.Sprintf("Method %s", methodName),
		schema:      map[string]any{},
	}
	if withCtx {
		t.invoker = asyncInvoker{fn: call}
	} else {
		t.invoker = syncInvoker{fn: func(argsJSON []byte) (any, error) {
			return call(context.Background(), argsJSON)
		}}
	}

	schemaMap := reflectSchema(argType)
	enrichSchemaFromStructTags(schemaMap, argType)
	t.schema = schemaMap
	if compiled, err := compileDynamicSchema(schemaMap); err == nil {
		t.validator = compiled
	}
	return t, true
}

// runStructValidation applies Validatable on the decoded argument value,
// mirroring what decodeArgs does for typed tools.
func runStructValidation(argPtr reflect.Value) error {
	v, ok := argPtr.Interface().(Validatable)
	if !ok {
		if v2, ok2 := argPtr.Elem().Interface().(Validatable); ok2 {
			v = v2
		} else {
			return nil
		}
	}
	if err := v.Validate(); err != nil {
		if IsClientError(err) {
			return err
		}
		return &ClientError{Reason: err.Error(), Err: ErrValidation}
	}
	return nil
}

// reflectSchema builds an object schema for a struct type without the
// generic reflection path. Fields without a json tag use their Go name;
// "-" fields are skipped. Fields with a default tag or an omitempty option
// are optional, everything else is required.
func reflectSchema(typ reflect.Type) map[string]any {
	properties := map[string]any{}
	var required []any

	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		if !field.IsExported() {
			continue
		}
		parts := strings.Split(field.Tag.Get("json"), ",")
		name := parts[0]
		if name == "-" {
			continue
		}
		if name == "" {
			name = field.Name
		}
		omitempty := false
		for _, opt := range parts[1:] {
			if opt == "omitempty" {
				omitempty = true
			}
		}

		properties[name] = typeSchema(field.Type)
		_, hasDefault := field.Tag.Lookup("default")
		if !hasDefault && !omitempty {
			required = append(required, name)
		}
	}

	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func typeSchema(t reflect.Type) map[string]any {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.String:
		return map[string]any{"type": "string"}
	case reflect.Bool:
		return map[string]any{"type": "boolean"}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return map[string]any{"type": "integer"}
	case reflect.Float32, reflect.Float64:
		return map[string]any{"type": "number"}
	case reflect.Slice, reflect.Array:
		return map[string]any{"type": "array", "items": typeSchema(t.Elem())}
	case reflect.Map:
		return map[string]any{"type": "object"}
	case reflect.Struct:
		return reflectSchema(t)
	default:
		return map[string]any{}
	}
}
