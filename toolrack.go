package toolrack

// FunctionCall identifies the function an LLM wants to invoke, with its
// arguments as a JSON-encoded object string (the wire format used by
// chat-completion style APIs).
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolCall is a single execution request as produced by the LLM.
// ID is an opaque identifier correlating the request with its result.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type,omitempty"`
	Function FunctionCall `json:"function"`
}

// ChatMessage is a conversation-history entry in the request/response shape
// downstream chat APIs expect. Content is a pointer because the assistant
// message carrying tool calls has an explicit null content.
type ChatMessage struct {
	Role       string     `json:"role"`
	Content    *string    `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// Mode selects the execution backend for a batch of tool calls.
type Mode string

const (
	// ModeProcess dispatches calls to a pool of worker processes, trading
	// overhead for isolation: a crashing callable cannot take down the
	// caller's process.
	ModeProcess Mode = "process"
	// ModeThread dispatches calls on a bounded wave of goroutines inside
	// the current process.
	ModeThread Mode = "thread"
)

func (m Mode) valid() bool { return m == ModeProcess || m == ModeThread }
