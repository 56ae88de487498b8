package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hupe1980/a2amesh/core"
	"github.com/hupe1980/a2amesh/model"
)

// Fact is a single extracted memory.
type Fact struct {
	Topic string `json:"topic"`
	Fact  string `json:"fact"`
}

// Generator extracts facts about the user from a conversation transcript.
type Generator interface {
	Generate(ctx context.Context, transcript string, topics []Topic) ([]Fact, error)
}

// ModelGenerator extracts facts by prompting a model for a JSON array.
type ModelGenerator struct {
	Model model.Model
}

// NewModelGenerator returns a Generator backed by m.
func NewModelGenerator(m model.Model) *ModelGenerator {
	return &ModelGenerator{Model: m}
}

const generatorPrompt = `You extract long-term memories about a user from a conversation.
Only extract facts that belong to one of these topics:
%s
Respond with a JSON array only, for example [{"topic": "USER_PREFERENCES", "fact": "The user likes gin."}].
Respond with [] when nothing is worth remembering.`

// Generate implements Generator.
func (g *ModelGenerator) Generate(ctx context.Context, transcript string, topics []Topic) ([]Fact, error) {
	if strings.TrimSpace(transcript) == "" || len(topics) == 0 {
		return nil, nil
	}

	var lines strings.Builder
	for _, t := range topics {
		fmt.Fprintf(&lines, "- %s: %s\n", t.Label, t.Description)
	}

	respCh, errCh := g.Model.Generate(ctx, model.Request{
		Instructions: fmt.Sprintf(generatorPrompt, lines.String()),
		Contents:     []core.Content{core.NewTextContent(core.RoleUser, transcript)},
	})

	var text strings.Builder
	for resp := range respCh {
		if resp.Partial {
			continue
		}
		text.WriteString(strings.Join(resp.Content.Texts(), ""))
	}

	if err := <-errCh; err != nil {
		return nil, fmt.Errorf("generate memories: %w", err)
	}

	facts, err := parseFacts(text.String())
	if err != nil {
		return nil, err
	}

	allowed := make(map[string]struct{}, len(topics))
	for _, t := range topics {
		allowed[t.Label] = struct{}{}
	}

	out := facts[:0]
	for _, f := range facts {
		if _, ok := allowed[f.Topic]; ok && strings.TrimSpace(f.Fact) != "" {
			out = append(out, f)
		}
	}

	return out, nil
}

// parseFacts decodes a JSON array, tolerating a surrounding markdown fence.
func parseFacts(s string) ([]Fact, error) {
	s = strings.TrimSpace(s)
	if start := strings.Index(s, "["); start >= 0 {
		if end := strings.LastIndex(s, "]"); end > start {
			s = s[start : end+1]
		}
	}

	if s == "" {
		return nil, nil
	}

	var facts []Fact
	if err := json.Unmarshal([]byte(s), &facts); err != nil {
		return nil, fmt.Errorf("decode memories: %w", err)
	}

	return facts, nil
}
