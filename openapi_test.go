package toolrack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const petstoreDoc = `{
  "openapi": "3.0.0",
  "info": {"title": "Pet Store", "version": "1.0.0"},
  "paths": {
    "/pets": {
      "get": {
        "operationId": "listPets",
        "summary": "List pets",
        "parameters": [
          {"name": "limit", "in": "query", "schema": {"type": "integer"}}
        ]
      },
      "post": {
        "operationId": "createPet",
        "summary": "Create a pet",
        "requestBody": {
          "content": {
            "application/json": {
              "schema": {"$ref": "#/components/schemas/NewPet"}
            }
          }
        }
      }
    },
    "/pets/{petId}": {
      "get": {
        "operationId": "getPet",
        "summary": "Get one pet",
        "parameters": [
          {"name": "petId", "in": "path", "required": true, "schema": {"type": "string"}}
        ]
      }
    }
  },
  "components": {
    "schemas": {
      "NewPet": {
        "type": "object",
        "properties": {
          "name": {"type": "string"},
          "tag": {"type": "string"}
        },
        "required": ["name"]
      }
    }
  }
}`

func newPetstore(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /openapi.json", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(petstoreDoc))
	})
	mux.HandleFunc("GET /pets", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"pets":  []string{"rex", "whiskers"},
			"limit": r.URL.Query().Get("limit"),
		})
	})
	mux.HandleFunc("POST /pets", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_ = json.NewEncoder(w).Encode(map[string]any{"created": body["name"]})
	})
	mux.HandleFunc("GET /pets/{petId}", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("petId")
		if id == "missing" {
			http.Error(w, "no such pet", http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"id": id})
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func TestRegisterFromOpenAPI(t *testing.T) {
	ts := newPetstore(t)
	r := NewRegistry(WithName("main"), WithDefaultMode(ModeThread))

	names, err := RegisterFromOpenAPI(context.Background(), r, OpenAPIConfig{
		Source: ts.URL + "/openapi.json",
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"pet_store.list_pets",
		"pet_store.create_pet",
		"pet_store.get_pet",
	}, names)

	tool, ok := r.GetTool("pet_store.get_pet")
	require.True(t, ok)
	params := tool.Parameters()
	props := params["properties"].(map[string]any)
	assert.Contains(t, props, "petId")
	assert.Equal(t, []any{"petId"}, params["required"])
}

func TestOpenAPITools_Execute(t *testing.T) {
	ts := newPetstore(t)
	r := NewRegistry(WithName("main"), WithDefaultMode(ModeThread))
	_, err := RegisterFromOpenAPI(context.Background(), r, OpenAPIConfig{
		Source:    ts.URL + "/openapi.json",
		Namespace: "pets",
	})
	require.NoError(t, err)

	results := r.ExecuteToolCalls(context.Background(), []ToolCall{
		call("list", "pets.list_pets", `{"limit": 5}`),
		call("create", "pets.create_pet", `{"name": "rex"}`),
		call("one", "pets.get_pet", `{"petId": "42"}`),
		call("gone", "pets.get_pet", `{"petId": "missing"}`),
		call("invalid", "pets.create_pet", `{"tag": "dog"}`),
	})

	listed, ok := results["list"].(map[string]any)
	require.True(t, ok, "got %T: %v", results["list"], results["list"])
	assert.Equal(t, "5", listed["limit"])

	created, ok := results["create"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "rex", created["created"])

	one, ok := results["one"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "42", one["id"])

	gone, ok := results["gone"].(string)
	require.True(t, ok)
	assert.Contains(t, gone, "Error executing pets.get_pet:")
	assert.Contains(t, gone, "404")

	// Body schema validation runs locally: "name" is required.
	invalid, ok := results["invalid"].(string)
	require.True(t, ok)
	assert.Contains(t, invalid, "Error executing pets.create_pet:")
}

func TestRegisterFromOpenAPI_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/api.yaml"
	doc := `
openapi: 3.0.0
info:
  title: Tiny API
  version: 1.0.0
servers:
  - url: http://localhost:0
paths:
  /ping:
    get:
      operationId: ping
      summary: Ping
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	r := NewRegistry(WithName("main"), WithDefaultMode(ModeThread))
	names, err := RegisterFromOpenAPI(context.Background(), r, OpenAPIConfig{Source: path})
	require.NoError(t, err)
	assert.Equal(t, []string{"tiny_api.ping"}, names)
}

func TestRegisterFromOpenAPI_BadSource(t *testing.T) {
	r := NewRegistry(WithName("main"), WithDefaultMode(ModeThread))
	_, err := RegisterFromOpenAPI(context.Background(), r, OpenAPIConfig{Source: "/does/not/exist.json"})
	require.Error(t, err)
}
