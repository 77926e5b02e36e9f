package toolrack

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
)

// workerEnvKey marks a process as a pool worker. The parent sets it when
// re-executing the binary.
const workerEnvKey = "TOOLRACK_WORKER"

// IsWorker reports whether this process was spawned as a pool worker. A
// host binary that enables process mode must check this early in main and
// hand control to ServeWorker:
//
//	func main() {
//	    reg := buildRegistry()
//	    if toolrack.IsWorker() {
//	        _ = toolrack.ServeWorker(reg)
//	        return
//	    }
//	    // normal startup
//	}
func IsWorker() bool {
	return os.Getenv(workerEnvKey) == "1"
}

// ServeWorker runs the worker side of the pool protocol: it reads call
// requests from stdin, resolves each tool by name against r, executes it
// (driving async tools to completion before returning), and writes one
// response per request to stdout. It returns when stdin reaches EOF, after
// all in-flight calls finish.
//
// Stdout belongs to the protocol while serving; tools running in a worker
// must write diagnostics to stderr.
func ServeWorker(r *Registry) error {
	return serveWorker(r, os.Stdin, os.Stdout)
}

func serveWorker(r *Registry, in io.Reader, out io.Writer) error {
	dec := json.NewDecoder(in)
	enc := json.NewEncoder(out)
	var encMu sync.Mutex
	var wg sync.WaitGroup
	for {
		var req workerRequest
		if err := dec.Decode(&req); err != nil {
			break
		}
		wg.Add(1)
		go func(req workerRequest) {
			defer wg.Done()
			resp := executeWorkerRequest(r, req)
			encMu.Lock()
			_ = enc.Encode(resp)
			encMu.Unlock()
		}(req)
	}
	wg.Wait()
	return nil
}

// executeWorkerRequest runs one call with the same containment rules as
// in-process execution: unknown tools and failures become error-string
// results, and the result is coerced to a JSON-representable value.
func executeWorkerRequest(r *Registry, req workerRequest) workerResponse {
	var res any
	tool, ok := r.GetTool(req.Tool)
	switch {
	case !ok || tool.Callable() == nil:
		res = fmt.Sprintf("Error: Tool '%s' not found or callable is nil", req.Tool)
	case tool.Async():
		res = tool.ARun(context.Background(), req.Args)
	default:
		res = tool.Run(req.Args)
	}
	res = normalizeResult(res)
	b, err := json.Marshal(res)
	if err != nil {
		b, _ = json.Marshal(fmt.Sprint(res))
	}
	return workerResponse{ID: req.ID, Result: b}
}
