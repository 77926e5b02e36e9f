package toolrack

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// execTask is one accepted call in a batch: resolved (or not) to a tool,
// with its argument JSON already parsed.
type execTask struct {
	id   string
	name string
	args map[string]any
	tool *Tool
}

// ExecuteToolCalls executes a batch of tool calls concurrently and returns a
// result map with exactly one entry per submitted call ID. A call whose
// tool is missing, whose argument JSON is malformed, or whose execution
// fails gets an error-string value; nothing propagates to the caller.
//
// The batch runs in a single wave on the mode's backend (process pool by
// default, goroutines for ModeThread) and the call blocks until every
// result is in. Completion order between calls is unspecified.
func (r *Registry) ExecuteToolCalls(ctx context.Context, calls []ToolCall, opts ...ExecuteOption) map[string]any {
	results := make(map[string]any, len(calls))

	// Shutdown closes done under r.mu, so checking done and joining the
	// running group under the same lock keeps a batch from slipping past
	// Shutdown's wait.
	r.mu.Lock()
	o := executeOptions{mode: r.mode}
	select {
	case <-r.done:
		r.mu.Unlock()
		for _, call := range calls {
			results[call.ID] = fmt.Sprintf("Error executing tool call: %s", ErrShutdown)
		}
		return results
	default:
	}
	r.running.Add(1)
	r.mu.Unlock()
	defer r.running.Done()
	for _, opt := range opts {
		opt(&o)
	}

	tasks := make([]execTask, 0, len(calls))
	for _, call := range calls {
		name := call.Function.Name
		args := map[string]any{}
		if raw := call.Function.Arguments; raw != "" {
			if err := json.Unmarshal([]byte(raw), &args); err != nil {
				results[call.ID] = fmt.Sprintf("Error preparing tool call %s: %s", name, err)
				continue
			}
		}
		// An unknown name is still submitted; the worker reports it so the
		// result map stays complete either way.
		tool, _ := r.GetTool(name)
		tasks = append(tasks, execTask{id: call.ID, name: name, args: args, tool: tool})
	}
	if len(tasks) == 0 {
		return results
	}

	if o.mode == ModeProcess {
		r.executeProcess(ctx, tasks, results)
	} else {
		r.executeThread(ctx, tasks, results)
	}
	return results
}

// executeThread runs the batch on a bounded goroutine wave.
func (r *Registry) executeThread(ctx context.Context, tasks []execTask, results map[string]any) {
	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(runtime.NumCPU())
	for _, task := range tasks {
		task := task
		g.Go(func() error {
			res := runTask(ctx, task)
			mu.Lock()
			results[task.id] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
}

// executeProcess dispatches the batch to the worker pool. When the pool is
// unavailable or breaks mid-batch, the remaining calls either fall back to
// goroutines (the default) or get error-string results, per
// WithProcessFallback.
func (r *Registry) executeProcess(ctx context.Context, tasks []execTask, results map[string]any) {
	if r.pool == nil || r.pool.broken() {
		r.degrade(ctx, tasks, results, ErrPoolUnavailable)
		return
	}

	pending := make([]inflight, 0, len(tasks))
	for i, task := range tasks {
		ch, err := r.pool.submit(workerRequest{Tool: task.name, Args: task.args})
		if err != nil {
			// Infrastructure failure: resolve what is already in flight,
			// then degrade the rest of the batch.
			r.log.Error().Err(err).Str("tool", task.name).Msg("process pool submission failed")
			r.collect(pending, results)
			r.degrade(ctx, tasks[i:], results, err)
			return
		}
		pending = append(pending, inflight{task: task, ch: ch})
	}
	r.collect(pending, results)
}

// inflight pairs a submitted task with the channel its worker response
// arrives on.
type inflight struct {
	task execTask
	ch   <-chan workerResponse
}

// collect waits on all outstanding worker responses. A response carrying a
// protocol-level error (worker process gone) is recorded as an error string,
// never dropped.
func (r *Registry) collect(pending []inflight, results map[string]any) {
	for _, p := range pending {
		resp := <-p.ch
		if resp.Error != "" {
			results[p.task.id] = fmt.Sprintf("Error executing tool call: %s", resp.Error)
			continue
		}
		var value any
		if err := json.Unmarshal(resp.Result, &value); err != nil {
			results[p.task.id] = fmt.Sprintf("Error executing tool call: %s", err)
			continue
		}
		results[p.task.id] = value
	}
}

// degrade applies the configured fallback policy to calls the process pool
// could not take.
func (r *Registry) degrade(ctx context.Context, tasks []execTask, results map[string]any, cause error) {
	if r.fallback {
		r.log.Warn().Err(cause).Int("calls", len(tasks)).Msg("process pool unavailable, falling back to thread execution")
		r.executeThread(ctx, tasks, results)
		return
	}
	for _, task := range tasks {
		results[task.id] = fmt.Sprintf("Error executing %s: %s", task.name, cause)
	}
}

// runTask executes one call in-process with full failure containment.
func runTask(ctx context.Context, task execTask) any {
	if task.tool == nil || task.tool.Callable() == nil {
		return fmt.Sprintf("Error: Tool '%s' not found or callable is nil", task.name)
	}
	var res any
	if task.tool.Async() {
		res = task.tool.ARun(ctx, task.args)
	} else {
		res = task.tool.Run(task.args)
	}
	return normalizeResult(res)
}

// normalizeResult coerces values that cannot be represented as plain JSON to
// their string form rather than failing the call.
func normalizeResult(v any) any {
	if v == nil {
		return nil
	}
	if _, err := json.Marshal(v); err != nil {
		return fmt.Sprint(v)
	}
	return v
}
