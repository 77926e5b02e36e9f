package toolrack

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServeWorker_Protocol(t *testing.T) {
	r := newWorkerRegistry()

	var in bytes.Buffer
	enc := json.NewEncoder(&in)
	require.NoError(t, enc.Encode(workerRequest{ID: "r1", Tool: "add", Args: map[string]any{"a": 3.0, "b": 4.0}}))
	require.NoError(t, enc.Encode(workerRequest{ID: "r2", Tool: "no_such_tool", Args: map[string]any{}}))
	require.NoError(t, enc.Encode(workerRequest{ID: "r3", Tool: "divide", Args: map[string]any{"a": 1.0, "b": 0.0}}))

	var out bytes.Buffer
	require.NoError(t, serveWorker(r, &in, &out))

	responses := map[string]json.RawMessage{}
	dec := json.NewDecoder(&out)
	for dec.More() {
		var resp workerResponse
		require.NoError(t, dec.Decode(&resp))
		assert.Empty(t, resp.Error)
		responses[resp.ID] = resp.Result
	}
	require.Len(t, responses, 3)

	var sum float64
	require.NoError(t, json.Unmarshal(responses["r1"], &sum))
	assert.Equal(t, float64(7), sum)

	var notFound string
	require.NoError(t, json.Unmarshal(responses["r2"], &notFound))
	assert.Equal(t, "Error: Tool 'no_such_tool' not found or callable is nil", notFound)

	var divErr string
	require.NoError(t, json.Unmarshal(responses["r3"], &divErr))
	assert.True(t, strings.HasPrefix(divErr, "Error executing divide: "), "got %q", divErr)
}

func TestServeWorker_EmptyInput(t *testing.T) {
	r := newWorkerRegistry()
	var out bytes.Buffer
	require.NoError(t, serveWorker(r, strings.NewReader(""), &out))
	assert.Zero(t, out.Len())
}

func TestIsWorker(t *testing.T) {
	t.Setenv(workerEnvKey, "")
	assert.False(t, IsWorker())
	t.Setenv(workerEnvKey, "1")
	assert.True(t, IsWorker())
}
