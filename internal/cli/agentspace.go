package cli

import (
	"context"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/hupe1980/a2amesh/agentspace"
	"github.com/hupe1980/a2amesh/gcpauth"
	"github.com/hupe1980/a2amesh/telemetry"
)

func newAgentSpaceCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agentspace",
		Short: "Manage the hosting agent's AgentSpace registration",
	}

	var reg agentspace.AgentRegistration

	register := &cobra.Command{
		Use:   "register",
		Short: "Register the deployed reasoning engine as an AgentSpace agent",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.agentSpaceClient(cmd.Context())
			if err != nil {
				return err
			}

			r := reg
			if r.DisplayName == "" {
				r.DisplayName = a.cfg.AgentSpace.AgentDisplayName
			}
			if r.Description == "" {
				r.Description = a.cfg.AgentSpace.AgentDescription
			}
			if r.IconURI == "" {
				r.IconURI = a.cfg.AgentSpace.IconURI
			}

			ae := a.cfg.AgentEngine
			if ae.ReasoningEngineID == "" {
				return fmt.Errorf("%w: REASONING_ENGINE_ID is required", agentspace.ErrInvalid)
			}
			r.ReasoningEngine = agentspace.ReasoningEngineName(a.cfg.Google.ProjectID, ae.ReasoningEngineLocation, ae.ReasoningEngineID)

			agent, err := c.Register(cmd.Context(), r)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(a.out, "registered %s (%s)\n", agent.Name, agent.DisplayName)
			return err
		},
	}

	register.Flags().StringVar(&reg.DisplayName, "display-name", "", "display name (default AGENT_DISPLAY_NAME)")
	register.Flags().StringVar(&reg.Description, "description", "", "description (default AGENT_DESCRIPTION)")
	register.Flags().StringVar(&reg.IconURI, "icon", "", "icon URI")

	list := &cobra.Command{
		Use:   "list",
		Short: "List the agents of the AgentSpace app",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.agentSpaceClient(cmd.Context())
			if err != nil {
				return err
			}

			list, err := c.List(cmd.Context())
			if err != nil {
				return err
			}

			for _, ag := range list {
				if _, err := fmt.Fprintf(a.out, "%s\t%s\n", ag.Name, ag.DisplayName); err != nil {
					return err
				}
			}

			return nil
		},
	}

	del := &cobra.Command{
		Use:   "delete <agent-resource-name>",
		Short: "Delete an AgentSpace agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.agentSpaceClient(cmd.Context())
			if err != nil {
				return err
			}

			if err := c.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}

			_, err = fmt.Fprintf(a.out, "deleted %s\n", args[0])
			return err
		},
	}

	cmd.AddCommand(register, list, del)

	return cmd
}

func (a *app) agentSpaceClient(ctx context.Context) (*agentspace.Client, error) {
	ts, err := gcpauth.AccessTokenSource(ctx)
	if err != nil {
		return nil, err
	}

	httpClient := gcpauth.NewAuthorizedClient(ts, telemetry.Transport(nil))

	return a.newAgentSpaceClient(ctx, httpClient, "")
}

func (a *app) newAgentSpaceClient(ctx context.Context, httpClient *http.Client, baseURL string) (*agentspace.Client, error) {
	return agentspace.NewClient(ctx, agentspace.Config{
		ProjectID:     a.cfg.Google.ProjectID,
		ProjectNumber: a.cfg.Google.ProjectNumber,
		Location:      a.cfg.AgentSpace.Location,
		App:           a.cfg.AgentSpace.App,
	}, func(o *agentspace.ClientOptions) {
		o.HTTPClient = httpClient
		o.BaseURL = baseURL
		o.Logger = a.logger
	})
}
