// Package toolrack is a runtime registry that exposes callables (plain
// functions, struct methods, remote MCP tools, OpenAPI operations) under a
// uniform Tool abstraction consumable by LLM tool-calling APIs.
//
// # Overview
//
// LLMs produce tool calls as JSON. This package turns a batch of such calls
// into concrete invocations: resolve name → validate arguments (against the
// same JSON Schema shown to the LLM) → execute concurrently → collect one
// result per call ID. A failing call yields an error-string result; it never
// aborts the batch and never propagates as a Go error.
//
// Pipeline: Go function + argument struct → NewTool (reflection + schema) →
// Registry → ExecuteToolCalls (resolve, dispatch, normalize) → result map.
//
// # Key concepts
//
//   - Tool: a named, schema-validated wrapper around one invocable unit.
//     Run/ARun convert every validation or execution failure into an
//     "Error executing <name>: <message>" string so the error can flow back
//     to the model as a regular tool result.
//   - Registry: a named collection of Tools with a namespace algebra. Merge
//     combines registries (prefixing unqualified tools with their origin
//     registry's name), Spinoff decomposes a merged registry back into
//     independent ones.
//   - Executor: ExecuteToolCalls dispatches a batch on either a pool of
//     worker processes (isolation for crash-prone callables) or a bounded
//     goroutine wave, and always returns a complete result map.
//
// Process isolation uses re-executed worker processes that rebuild the
// registry via ServeWorker and receive calls as (tool name, arguments); no
// code crosses the process boundary.
//
// # Example
//
//	type Args struct {
//	    A int `json:"a"`
//	    B int `json:"b"`
//	}
//	add, err := toolrack.NewTool("add", "Add two numbers", func(args Args) (int, error) {
//	    return args.A + args.B, nil
//	})
//	if err != nil { ... }
//	reg := toolrack.NewRegistry()
//	reg.Register(add)
//	results := reg.ExecuteToolCalls(ctx, []toolrack.ToolCall{
//	    {ID: "1", Function: toolrack.FunctionCall{Name: "add", Arguments: `{"a":2,"b":3}`}},
//	}, toolrack.WithMode(toolrack.ModeThread))
package toolrack
