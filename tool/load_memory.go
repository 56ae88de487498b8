package tool

import (
	"github.com/hupe1980/a2amesh/core"
)

const defaultMemoryLimit = 5

// NewLoadMemoryTool returns the load_memory tool which lets the model recall
// facts remembered about the current user from earlier sessions.
func NewLoadMemoryTool() *FunctionTool {
	return NewFunctionTool(
		"load_memory",
		"Loads memories about the current user from previous conversations. Use it when the answer may depend on earlier sessions.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "What to look for in the user's memories.",
				},
			},
			"required": []string{"query"},
		},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			query, _ := args["query"].(string)

			results, err := tc.SearchMemory(query, defaultMemoryLimit)
			if err != nil {
				return nil, err
			}

			memories := make([]map[string]any, 0, len(results))
			for _, r := range results {
				m := map[string]any{"content": r.Content}
				if r.Topic != "" {
					m["topic"] = r.Topic
				}
				memories = append(memories, m)
			}

			return map[string]any{"memories": memories}, nil
		},
	)
}
