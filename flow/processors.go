package flow

import (
	"fmt"
	"strings"

	"github.com/hupe1980/a2amesh/core"
	"github.com/hupe1980/a2amesh/internal/util"
	"github.com/hupe1980/a2amesh/model"
)

// InstructionsProcessor resolves the agent instruction. Static instructions
// are rendered as templates against the current session state.
type InstructionsProcessor struct{}

// NewInstructionsProcessor creates a new instructions processor.
func NewInstructionsProcessor() *InstructionsProcessor { return &InstructionsProcessor{} }

// Name returns the processor's identifier.
func (p *InstructionsProcessor) Name() string { return "instructions" }

// ProcessRequest sets req.Instructions.
func (p *InstructionsProcessor) ProcessRequest(runCtx *core.RunContext, req *model.Request, agent FlowAgent) error {
	instructions, template, err := agent.ResolveInstructions(runCtx)
	if err != nil {
		return fmt.Errorf("resolve instruction: %w", err)
	}

	runCtx.LogDebug("agent.instruction.resolved", "agent", agent.GetName(), "length", len(instructions), "template", template)

	if template {
		if instructions, err = util.RenderTemplate(instructions, runCtx.State()); err != nil {
			return err
		}
	}

	req.Instructions = instructions

	return nil
}

// MemoryPreloadProcessor recalls memories relevant to the user's message and
// appends them to the instructions.
type MemoryPreloadProcessor struct {
	Limit int
}

// NewMemoryPreloadProcessor creates a memory preload processor.
func NewMemoryPreloadProcessor() *MemoryPreloadProcessor { return &MemoryPreloadProcessor{Limit: 5} }

// Name returns the processor's identifier.
func (p *MemoryPreloadProcessor) Name() string { return "memory_preload" }

// ProcessRequest appends a <PAST_CONVERSATIONS> block when memories match.
func (p *MemoryPreloadProcessor) ProcessRequest(runCtx *core.RunContext, req *model.Request, agent FlowAgent) error {
	if !agent.IsMemoryPreloadEnabled() || runCtx.MemoryStore == nil {
		return nil
	}

	query := strings.TrimSpace(strings.Join(runCtx.UserContent.Texts(), " "))
	if query == "" {
		return nil
	}

	results, err := runCtx.SearchMemory(query, p.Limit)
	if err != nil {
		// Recall is best effort.
		runCtx.LogWarn("agent.memory.preload_failed", "agent", agent.GetName(), "error", err.Error())
		return nil
	}

	if len(results) == 0 {
		return nil
	}

	var b strings.Builder

	b.WriteString("The following content is from your previous conversations with the user.\n")
	b.WriteString("They may be useful for answering the user's current query.\n")
	b.WriteString("<PAST_CONVERSATIONS>\n")

	for _, r := range results {
		if r.Topic != "" {
			fmt.Fprintf(&b, "[%s] ", r.Topic)
		}
		b.WriteString(r.Content)
		b.WriteString("\n")
	}

	b.WriteString("</PAST_CONVERSATIONS>")

	if req.Instructions != "" {
		req.Instructions += "\n\n"
	}
	req.Instructions += b.String()

	runCtx.LogDebug("agent.memory.preloaded", "agent", agent.GetName(), "count", len(results))

	return nil
}

// ContentsProcessor adds the conversation history, capped at
// MaxHistoryMessages, to the request.
type ContentsProcessor struct{}

// NewContentsProcessor creates a new contents processor.
func NewContentsProcessor() *ContentsProcessor { return &ContentsProcessor{} }

// Name returns the processor's identifier.
func (p *ContentsProcessor) Name() string { return "contents" }

// ProcessRequest sets req.Contents.
func (p *ContentsProcessor) ProcessRequest(runCtx *core.RunContext, req *model.Request, agent FlowAgent) error {
	var contents []core.Content

	if runCtx.Session != nil {
		events := runCtx.Session.GetConversationHistory()

		if limit := agent.MaxHistoryMessages(); limit > 0 && len(events) > limit {
			events = events[len(events)-limit:]
			events = dropLeadingToolResponses(events)
		}

		for _, ev := range events {
			if ev.Content != nil && len(ev.Content.Parts) > 0 {
				contents = append(contents, *ev.Content)
			}
		}
	}

	if len(contents) == 0 && len(runCtx.UserContent.Parts) > 0 {
		contents = append(contents, runCtx.UserContent)
	}

	req.Contents = contents

	return nil
}

// dropLeadingToolResponses removes tool results whose calls were cut off by
// the history limit; providers reject orphaned tool results.
func dropLeadingToolResponses(events []core.Event) []core.Event {
	for len(events) > 0 && len(events[0].GetFunctionResponses()) > 0 {
		events = events[1:]
	}

	return events
}
