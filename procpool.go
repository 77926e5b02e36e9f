package toolrack

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// workerRequest crosses the process boundary as (tool name, arguments);
// code never does. ID correlates the request with its response on a shared
// pipe and is assigned by the pool.
type workerRequest struct {
	ID   string         `json:"id"`
	Tool string         `json:"tool"`
	Args map[string]any `json:"args"`
}

// workerResponse carries the normalized result of one call. Error is set
// only for protocol-level failures (worker gone, encode failure); per-call
// execution errors are already error-string values inside Result.
type workerResponse struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// procPool is a fixed set of re-executed worker processes speaking a
// JSON-lines protocol over stdin/stdout. Requests are spread round-robin;
// a worker whose pipe breaks is marked dead and its outstanding requests
// are failed, not lost.
type procPool struct {
	log zerolog.Logger

	mu      sync.Mutex
	workers []*procWorker
	next    int
	closed  bool
}

// newProcPool spawns n workers eagerly. Spawn failures are contained: they
// are logged and the pool simply holds fewer (possibly zero) workers, in
// which case broken() reports true and the executor degrades.
func newProcPool(n int, log zerolog.Logger) *procPool {
	p := &procPool{log: log}
	for i := 0; i < n; i++ {
		w, err := spawnWorker(log)
		if err != nil {
			log.Error().Err(err).Int("worker", i).Msg("failed to spawn pool worker")
			continue
		}
		p.workers = append(p.workers, w)
	}
	log.Debug().Int("workers", len(p.workers)).Msg("process pool started")
	return p
}

// broken reports whether the pool has no live worker left.
func (p *procPool) broken() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return true
	}
	for _, w := range p.workers {
		if !w.dead.Load() {
			return false
		}
	}
	return true
}

// submit sends one request to the next live worker and returns the channel
// its response arrives on. The request ID is assigned here.
func (p *procPool) submit(req workerRequest) (<-chan workerResponse, error) {
	req.ID = uuid.NewString()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrShutdown
	}
	var w *procWorker
	for range p.workers {
		cand := p.workers[p.next%len(p.workers)]
		p.next++
		if !cand.dead.Load() {
			w = cand
			break
		}
	}
	p.mu.Unlock()
	if w == nil {
		return nil, ErrPoolUnavailable
	}
	return w.send(req)
}

// shutdown closes every worker's stdin (the serve loop exits on EOF) and
// waits for the processes, killing any that outlive ctx. Idempotent.
func (p *procPool) shutdown(ctx context.Context) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	workers := p.workers
	p.mu.Unlock()

	for _, w := range workers {
		w.close(ctx)
	}
}

// procWorker is one worker process plus the parent-side bookkeeping for its
// pipe: a shared encoder for requests and a pending map the reader
// goroutine resolves responses into.
type procWorker struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser

	encMu sync.Mutex
	enc   *json.Encoder

	pendMu  sync.Mutex
	pending map[string]chan workerResponse

	dead   atomic.Bool
	waited chan struct{}
}

// spawnWorker re-executes the current binary with the worker marker set.
// The child is expected to detect the marker via IsWorker and call
// ServeWorker instead of its normal main path.
func spawnWorker(log zerolog.Logger) (*procWorker, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("resolve executable: %w", err)
	}
	cmd := exec.Command(exe, os.Args[1:]...)
	cmd.Env = append(os.Environ(), workerEnvKey+"=1")
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	w := &procWorker{
		cmd:     cmd,
		stdin:   stdin,
		stdout:  stdout,
		enc:     json.NewEncoder(stdin),
		pending: make(map[string]chan workerResponse),
		waited:  make(chan struct{}),
	}
	go w.listen(log)
	return w, nil
}

// listen dispatches responses to their pending channels until the pipe
// closes, then fails whatever is still outstanding.
func (w *procWorker) listen(log zerolog.Logger) {
	dec := json.NewDecoder(w.stdout)
	for {
		var resp workerResponse
		if err := dec.Decode(&resp); err != nil {
			if err != io.EOF {
				log.Error().Err(err).Msg("worker pipe read failed")
			}
			break
		}
		w.pendMu.Lock()
		ch, ok := w.pending[resp.ID]
		if ok {
			delete(w.pending, resp.ID)
		}
		w.pendMu.Unlock()
		if ok {
			ch <- resp
		}
	}
	w.dead.Store(true)
	w.failPending("worker process exited")
	_ = w.cmd.Wait()
	close(w.waited)
}

func (w *procWorker) send(req workerRequest) (<-chan workerResponse, error) {
	ch := make(chan workerResponse, 1)
	w.pendMu.Lock()
	w.pending[req.ID] = ch
	w.pendMu.Unlock()

	w.encMu.Lock()
	err := w.enc.Encode(req)
	w.encMu.Unlock()
	if err != nil {
		w.pendMu.Lock()
		delete(w.pending, req.ID)
		w.pendMu.Unlock()
		w.dead.Store(true)
		return nil, fmt.Errorf("write to worker: %w", err)
	}
	return ch, nil
}

// failPending resolves every outstanding request with a protocol error.
func (w *procWorker) failPending(reason string) {
	w.pendMu.Lock()
	for id, ch := range w.pending {
		ch <- workerResponse{ID: id, Error: reason}
		delete(w.pending, id)
	}
	w.pendMu.Unlock()
}

// close shuts the worker down: stdin EOF first, then wait, then kill if ctx
// runs out before the process exits.
func (w *procWorker) close(ctx context.Context) {
	w.dead.Store(true)
	_ = w.stdin.Close()
	select {
	case <-w.waited:
	case <-ctx.Done():
		_ = w.cmd.Process.Kill()
		<-w.waited
	}
}
