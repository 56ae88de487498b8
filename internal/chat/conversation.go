// Package chat is a terminal frontend for the hosting agent.
package chat

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2aclient"

	"github.com/hupe1980/a2amesh/a2akit"
)

const (
	// Title is shown in the header of the chat window.
	Title = "A2A Host Agent"
	// Description is shown below the title.
	Description = "This assistant can help you to check weather and find cocktail information"
	// NoTextResponse is shown when the task finished without a text artifact.
	NoTextResponse = "I processed your request but found no text response."
)

// Reply is the outcome of one prompt.
type Reply struct {
	Text   string
	State  a2a.TaskState
	TaskID string
	// Failed is true when the task failed; Text then holds the failure.
	Failed bool
}

// Conversation sends prompts to one agent and keeps its A2A context so
// follow-up prompts continue the same session.
type Conversation struct {
	card      *a2a.AgentCard
	client    *a2aclient.Client
	contextID string
}

// Connect resolves the agent card at baseURL and returns a conversation
// with that agent.
func Connect(ctx context.Context, baseURL string, httpClient *http.Client) (*Conversation, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	card, err := a2akit.NewCardResolver(httpClient).Resolve(ctx, baseURL, a2akit.AgentCardPath)
	if err != nil {
		return nil, fmt.Errorf("fetch agent card: %w", err)
	}

	if card.URL == "" {
		card.URL = baseURL
	}

	client, err := a2akit.NewClient(ctx, card, func(o *a2akit.ClientOptions) {
		o.HTTPClient = httpClient
	})
	if err != nil {
		return nil, err
	}

	return &Conversation{card: card, client: client}, nil
}

// Close releases the client.
func (c *Conversation) Close() error { return c.client.Destroy() }

// Card returns the card of the agent.
func (c *Conversation) Card() *a2a.AgentCard { return c.card }

// ContextID returns the A2A context of the conversation, empty before the
// first reply.
func (c *Conversation) ContextID() string { return c.contextID }

// Ask streams text to the agent and waits for the task to complete or fail.
func (c *Conversation) Ask(ctx context.Context, text string) (Reply, error) {
	msg := a2a.NewMessage(a2a.MessageRoleUser, a2a.TextPart{Text: text})
	msg.ID = NewMessageID()
	msg.ContextID = c.contextID

	var (
		agg   a2akit.ResultAggregator
		reply Reply
	)

	for ev, err := range c.client.SendStreamingMessage(ctx, &a2a.MessageSendParams{Message: msg}) {
		if err != nil {
			return Reply{}, err
		}

		res, err := agg.Apply(ev)
		if err != nil {
			return Reply{}, err
		}

		switch r := res.(type) {
		case *a2a.Message:
			if r.ContextID != "" {
				c.contextID = r.ContextID
			}
			return Reply{Text: orNoText(firstText(r.Parts)), State: a2a.TaskStateCompleted}, nil
		case *a2a.Task:
			c.contextID = r.ContextID
			reply.TaskID = string(r.ID)
			reply.State = r.Status.State

			switch r.Status.State {
			case a2a.TaskStateCompleted:
				if text := artifactText(r.Artifacts); text != "" {
					reply.Text = text
					return reply, nil
				}
			case a2a.TaskStateFailed:
				reply.Failed = true
				reply.Text = "Task failed: " + statusText(r.Status)
				return reply, nil
			}
		}
	}

	if reply.State == "" {
		return Reply{}, errors.New("agent returned no events")
	}

	reply.Text = NoTextResponse

	return reply, nil
}

// NewMessageID returns a random message id of the form message-<hex>.
func NewMessageID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return "message-" + hex.EncodeToString(b)
}

func artifactText(artifacts []*a2a.Artifact) string {
	for _, a := range artifacts {
		if len(a.Parts) == 0 {
			continue
		}
		if tp, ok := a.Parts[0].(a2a.TextPart); ok && tp.Text != "" {
			return tp.Text
		}
	}
	return ""
}

func firstText(parts a2a.ContentParts) string {
	for _, p := range parts {
		if tp, ok := p.(a2a.TextPart); ok && tp.Text != "" {
			return tp.Text
		}
	}
	return ""
}

func statusText(s a2a.TaskStatus) string {
	if text := a2akit.UserInput(s.Message, " "); text != "" {
		return text
	}
	return "Unknown error"
}

func orNoText(s string) string {
	if s == "" {
		return NoTextResponse
	}
	return s
}
