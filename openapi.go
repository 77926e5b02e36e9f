package toolrack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// OpenAPIConfig describes where to load an OpenAPI document from and how to
// reach the described service.
type OpenAPIConfig struct {
	// Source is a URL or a local file path of the OpenAPI document, in
	// JSON or YAML.
	Source string
	// BaseURL overrides the document's first server URL.
	BaseURL string
	// Namespace to register the generated tools under. Empty means the
	// document's title, normalized.
	Namespace string
	// Client used for both loading the document and tool calls. Defaults
	// to http.DefaultClient.
	Client *http.Client
}

var httpMethods = []string{
	http.MethodGet, http.MethodPost, http.MethodPut,
	http.MethodPatch, http.MethodDelete,
}

// RegisterFromOpenAPI loads an OpenAPI document and registers one proxy
// tool per operation in r. Tool names come from operationId when present,
// otherwise from the method and path. It returns the registered tool names.
func RegisterFromOpenAPI(ctx context.Context, r *Registry, cfg OpenAPIConfig) ([]string, error) {
	httpClient := cfg.Client
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	doc, err := loadOpenAPIDoc(ctx, httpClient, cfg.Source)
	if err != nil {
		return nil, err
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = docBaseURL(doc, cfg.Source)
	}
	baseURL = strings.TrimRight(baseURL, "/")

	namespace := cfg.Namespace
	if namespace == "" {
		namespace = docTitle(doc)
	}

	paths, _ := doc["paths"].(map[string]any)
	pathKeys := make([]string, 0, len(paths))
	for p := range paths {
		pathKeys = append(pathKeys, p)
	}
	sort.Strings(pathKeys)

	var names []string
	for _, path := range pathKeys {
		item, ok := paths[path].(map[string]any)
		if !ok {
			continue
		}
		for _, method := range httpMethods {
			op, ok := item[strings.ToLower(method)].(map[string]any)
			if !ok {
				continue
			}
			tool, err := openAPIOperationTool(doc, httpClient, baseURL, path, method, op)
			if err != nil {
				return nil, err
			}
			r.Register(tool, WithNamespace(namespace))
			names = append(names, tool.Name())
		}
	}
	return names, nil
}

func loadOpenAPIDoc(ctx context.Context, client *http.Client, source string) (map[string]any, error) {
	var raw []byte
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
		if err != nil {
			return nil, fmt.Errorf("build document request: %w", err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetch OpenAPI document: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("fetch OpenAPI document: unexpected status %s", resp.Status)
		}
		raw, err = io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read OpenAPI document: %w", err)
		}
	} else {
		var err error
		raw, err = os.ReadFile(source)
		if err != nil {
			return nil, fmt.Errorf("read OpenAPI document: %w", err)
		}
	}

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err == nil {
		return doc, nil
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse OpenAPI document: %w", err)
	}
	return doc, nil
}

func docBaseURL(doc map[string]any, source string) string {
	if servers, ok := doc["servers"].([]any); ok && len(servers) > 0 {
		if srv, ok := servers[0].(map[string]any); ok {
			if u, ok := srv["url"].(string); ok && u != "" {
				// Server URLs may be relative to the document location.
				if strings.HasPrefix(u, "/") {
					if base, err := url.Parse(source); err == nil && base.Host != "" {
						return base.Scheme + "://" + base.Host + u
					}
				}
				return u
			}
		}
	}
	if base, err := url.Parse(source); err == nil && base.Host != "" {
		return base.Scheme + "://" + base.Host
	}
	return ""
}

func docTitle(doc map[string]any) string {
	if info, ok := doc["info"].(map[string]any); ok {
		if title, ok := info["title"].(string); ok && title != "" {
			return NormalizeName(title)
		}
	}
	return "api"
}

func openAPIOperationTool(doc map[string]any, client *http.Client, baseURL, path, method string, op map[string]any) (*Tool, error) {
	name := operationName(op, method, path)
	description := operationDescription(op, method, path)
	schema, pathParams, queryParams, hasBody := operationSchema(doc, op)

	proxy := &httpProxy{
		client:      client,
		method:      method,
		urlTemplate: baseURL + path,
		pathParams:  pathParams,
		queryParams: queryParams,
		hasBody:     hasBody,
	}
	tool, err := NewProxyTool(name, description, schema, proxy)
	if err != nil {
		return nil, fmt.Errorf("operation %s %s: %w", method, path, err)
	}
	return tool, nil
}

func operationName(op map[string]any, method, path string) string {
	if id, ok := op["operationId"].(string); ok && id != "" {
		return NormalizeName(id)
	}
	return NormalizeName(strings.ToLower(method) + "_" + strings.Trim(path, "/"))
}

func operationDescription(op map[string]any, method, path string) string {
	if s, ok := op["summary"].(string); ok && s != "" {
		return s
	}
	if s, ok := op["description"].(string); ok && s != "" {
		return s
	}
	return fmt.Sprintf("%s %s", method, path)
}

// operationSchema builds a flat object schema from the operation's path and
// query parameters plus the JSON request body properties, and reports which
// argument goes where on the wire.
func operationSchema(doc, op map[string]any) (schema map[string]any, pathParams, queryParams []string, hasBody bool) {
	properties := map[string]any{}
	var required []string

	if params, ok := op["parameters"].([]any); ok {
		for _, p := range params {
			param, ok := resolveRef(doc, p).(map[string]any)
			if !ok {
				continue
			}
			name, _ := param["name"].(string)
			if name == "" {
				continue
			}
			propSchema, _ := resolveRef(doc, param["schema"]).(map[string]any)
			if propSchema == nil {
				propSchema = map[string]any{"type": "string"}
			}
			if desc, ok := param["description"].(string); ok && desc != "" {
				propSchema["description"] = desc
			}
			properties[name] = propSchema

			switch param["in"] {
			case "path":
				pathParams = append(pathParams, name)
				required = append(required, name)
			case "query":
				queryParams = append(queryParams, name)
				if req, _ := param["required"].(bool); req {
					required = append(required, name)
				}
			}
		}
	}

	if body, ok := resolveRef(doc, op["requestBody"]).(map[string]any); ok {
		if content, ok := body["content"].(map[string]any); ok {
			if media, ok := content["application/json"].(map[string]any); ok {
				if bodySchema, ok := resolveRef(doc, media["schema"]).(map[string]any); ok {
					hasBody = true
					if props, ok := bodySchema["properties"].(map[string]any); ok {
						for k, v := range props {
							properties[k] = resolveRef(doc, v)
						}
					}
					if reqs, ok := bodySchema["required"].([]any); ok {
						for _, rq := range reqs {
							if s, ok := rq.(string); ok {
								required = append(required, s)
							}
						}
					}
				}
			}
		}
	}

	schema = map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		sort.Strings(required)
		schema["required"] = required
	}
	return schema, pathParams, queryParams, hasBody
}

// resolveRef follows a local $ref like "#/components/schemas/Pet". Non-ref
// values pass through unchanged.
func resolveRef(doc map[string]any, v any) any {
	m, ok := v.(map[string]any)
	if !ok {
		return v
	}
	ref, ok := m["$ref"].(string)
	if !ok {
		return v
	}
	if !strings.HasPrefix(ref, "#/") {
		return v
	}
	var cur any = doc
	for _, part := range strings.Split(strings.TrimPrefix(ref, "#/"), "/") {
		node, ok := cur.(map[string]any)
		if !ok {
			return v
		}
		cur, ok = node[part]
		if !ok {
			return v
		}
	}
	return resolveRef(doc, cur)
}

// httpProxy executes a tool call as an HTTP request against an OpenAPI
// operation.
type httpProxy struct {
	client      *http.Client
	method      string
	urlTemplate string
	pathParams  []string
	queryParams []string
	hasBody     bool
}

func (p *httpProxy) Call(ctx context.Context, args map[string]any) (any, error) {
	target := p.urlTemplate
	used := map[string]bool{}
	for _, name := range p.pathParams {
		v, ok := args[name]
		if !ok {
			return nil, &ClientError{Reason: fmt.Sprintf("missing path parameter %q", name), Err: ErrValidation}
		}
		target = strings.ReplaceAll(target, "{"+name+"}", url.PathEscape(fmt.Sprint(v)))
		used[name] = true
	}

	query := url.Values{}
	for _, name := range p.queryParams {
		if v, ok := args[name]; ok {
			query.Set(name, fmt.Sprint(v))
			used[name] = true
		}
	}

	var body io.Reader
	if p.hasBody {
		payload := map[string]any{}
		for k, v := range args {
			if !used[k] {
				payload[k] = v
			}
		}
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, &SystemError{Err: fmt.Errorf("encode request body: %w", err)}
		}
		body = bytes.NewReader(b)
	}

	if enc := query.Encode(); enc != "" {
		target += "?" + enc
	}

	req, err := http.NewRequestWithContext(ctx, p.method, target, body)
	if err != nil {
		return nil, &SystemError{Err: fmt.Errorf("build request: %w", err)}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &SystemError{Err: fmt.Errorf("call %s %s: %w", p.method, p.urlTemplate, err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &SystemError{Err: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("%s %s returned %s: %s", p.method, p.urlTemplate, resp.Status, strings.TrimSpace(string(raw)))
	}
	if len(raw) == 0 {
		return nil, nil
	}

	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return string(raw), nil
	}
	return decoded, nil
}
