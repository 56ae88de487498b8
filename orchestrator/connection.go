package orchestrator

import (
	"context"
	"fmt"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2aclient"

	"github.com/hupe1980/a2amesh/a2akit"
	"github.com/hupe1980/a2amesh/logging"
)

// RemoteAgentConnection holds the card and client of one remote agent.
type RemoteAgentConnection struct {
	Card   a2a.AgentCard
	Client *a2aclient.Client

	logger logging.Logger
}

// NewRemoteAgentConnection creates a connection for card.
func NewRemoteAgentConnection(card a2a.AgentCard, client *a2aclient.Client, logger logging.Logger) *RemoteAgentConnection {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}

	return &RemoteAgentConnection{Card: card, Client: client, logger: logger}
}

// SendMessage sends msg to the remote agent. A *a2a.Message reply is
// returned as is. A task is returned as soon as it is terminal or
// interrupted; otherwise the last task seen is returned. Agents that do not
// stream answer a single message/send.
func (c *RemoteAgentConnection) SendMessage(ctx context.Context, msg *a2a.Message) (a2a.SendMessageResult, error) {
	params := &a2a.MessageSendParams{Message: msg}

	c.logger.Info("orchestrator.remote.send", "agent", c.Card.Name, "message_id", msg.ID)

	var (
		agg  a2akit.ResultAggregator
		last *a2a.Task
	)

	for ev, err := range c.Client.SendStreamingMessage(ctx, params) {
		if err != nil {
			c.logger.Error("orchestrator.remote.error", "agent", c.Card.Name, "error", err)
			return nil, fmt.Errorf("send message to %s: %w", c.Card.Name, err)
		}

		res, err := agg.Apply(ev)
		if err != nil {
			return nil, err
		}

		switch r := res.(type) {
		case *a2a.Message:
			c.logger.Info("orchestrator.remote.message", "agent", c.Card.Name)
			return r, nil
		case *a2a.Task:
			if terminalOrInterrupted(r.Status.State) {
				return r, nil
			}
			last = r
		}
	}

	if last == nil {
		return nil, fmt.Errorf("send message to %s: empty response", c.Card.Name)
	}

	return last, nil
}

func terminalOrInterrupted(s a2a.TaskState) bool {
	return s.Terminal() || a2akit.Interrupted(s) || s == a2a.TaskStateUnknown
}
