package cli

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/hupe1980/a2amesh/a2akit"
	"github.com/hupe1980/a2amesh/agents"
	"github.com/hupe1980/a2amesh/internal/chat"
)

func newChatCommand(a *app) *cobra.Command {
	var url string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the hosting agent in the terminal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if url == "" {
				url = a.cfg.Agents.HostURL
			}

			conv, err := chat.Connect(cmd.Context(), url, a.remoteClient(cmd.Context()))
			if err != nil {
				return err
			}
			defer conv.Close()

			return chat.Run(conv)
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "hosting agent URL (default HOST_AGENT_URL or http://localhost:8080)")

	return cmd
}

func newCardCommand(a *app) *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "card <url>",
		Short: "Print the agent card served at url",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			card, err := a2akit.NewCardResolver(a.remoteClient(cmd.Context())).Resolve(cmd.Context(), args[0], path)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(a.out)
			enc.SetIndent("", "  ")

			return enc.Encode(card)
		},
	}

	cmd.Flags().StringVar(&path, "path", a2akit.AgentCardPath, "card path below url")

	return cmd
}

// remoteClient returns the client used to reach deployed agents.
func (a *app) remoteClient(ctx context.Context) *http.Client {
	return agents.NewRemoteAgentClient(ctx, a.logger)
}
