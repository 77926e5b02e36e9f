package toolrack

import (
	"encoding/json"
	"fmt"
)

// RecoverToolCallAssistantMessage reconstructs the chat transcript slice for
// a batch of tool calls and their results: for each call, one assistant
// message carrying that single call followed by its tool message. Chat
// completion APIs expect this exact request/response pairing, so the shape
// is fixed. Useful when the original assistant turn was not kept and the
// conversation has to be replayed to the model.
//
// Calls with no entry in results get a placeholder content so the
// transcript stays well formed.
func RecoverToolCallAssistantMessage(calls []ToolCall, results map[string]any) []ChatMessage {
	messages := make([]ChatMessage, 0, 2*len(calls))
	for _, call := range calls {
		if call.Type == "" {
			call.Type = "function"
		}
		messages = append(messages, ChatMessage{
			Role:      "assistant",
			ToolCalls: []ToolCall{call},
		})
		content := formatToolResult(call, results)
		messages = append(messages, ChatMessage{
			Role:       "tool",
			Content:    &content,
			ToolCallID: call.ID,
		})
	}
	return messages
}

func formatToolResult(call ToolCall, results map[string]any) string {
	res, ok := results[call.ID]
	if !ok {
		return fmt.Sprintf("%s --> No result (possibly tool execution error)", call.Function.Name)
	}
	return fmt.Sprintf("%s --> %s", call.Function.Name, stringifyResult(res))
}

func stringifyResult(res any) string {
	if s, ok := res.(string); ok {
		return s
	}
	if b, err := json.Marshal(res); err == nil {
		return string(b)
	}
	return fmt.Sprint(res)
}
