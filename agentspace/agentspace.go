// Package agentspace registers agents deployed on Agent Engine with a
// Google AgentSpace app through the Discovery Engine API.
package agentspace

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"

	discoveryengine "google.golang.org/api/discoveryengine/v1alpha"
	"google.golang.org/api/option"

	"github.com/hupe1980/a2amesh/logging"
)

// ErrInvalid is returned for incomplete client or registration settings.
var ErrInvalid = errors.New("invalid agentspace configuration")

// Config identifies the AgentSpace app.
type Config struct {
	ProjectID     string
	ProjectNumber string
	// Location is the AgentSpace location (AS_LOCATION), e.g. global or us.
	Location string
	// App is the AgentSpace engine id (AS_APP).
	App string
}

// AgentRegistration describes the agent to register.
type AgentRegistration struct {
	DisplayName string
	Description string
	IconURI     string
	// ReasoningEngine is the full reasoning engine resource name.
	ReasoningEngine string
}

// Agent is a registered AgentSpace agent.
type Agent struct {
	Name        string
	DisplayName string
	Description string
	State       string
}

// ClientOptions configures a Client.
type ClientOptions struct {
	// HTTPClient must attach cloud-platform access tokens. When nil the
	// service authenticates with application default credentials.
	HTTPClient *http.Client
	// BaseURL overrides the regional Discovery Engine host.
	BaseURL string
	Logger  logging.Logger
}

// Client calls the Discovery Engine agents API of one AgentSpace app.
type Client struct {
	cfg    Config
	agents *discoveryengine.ProjectsLocationsCollectionsEnginesAssistantsAgentsService
	logger logging.Logger
}

// NewClient creates a client for the app described by cfg.
func NewClient(ctx context.Context, cfg Config, optFns ...func(o *ClientOptions)) (*Client, error) {
	opts := ClientOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	var missing []string
	for k, v := range map[string]string{"PROJECT_ID": cfg.ProjectID, "PROJECT_NUMBER": cfg.ProjectNumber, "AS_LOCATION": cfg.Location, "AS_APP": cfg.App} {
		if v == "" {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return nil, fmt.Errorf("%w: missing %s", ErrInvalid, strings.Join(missing, ", "))
	}

	endpoint := Host(cfg.Location)
	if opts.BaseURL != "" {
		endpoint = strings.TrimRight(opts.BaseURL, "/")
	}

	clientOpts := []option.ClientOption{
		option.WithEndpoint(endpoint + "/"),
		option.WithQuotaProject(cfg.ProjectID),
	}
	if opts.HTTPClient != nil {
		clientOpts = append(clientOpts, option.WithHTTPClient(opts.HTTPClient))
	}

	svc, err := discoveryengine.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create discovery engine service: %w", err)
	}

	return &Client{
		cfg:    cfg,
		agents: svc.Projects.Locations.Collections.Engines.Assistants.Agents,
		logger: opts.Logger,
	}, nil
}

// Host returns the Discovery Engine host for a location.
func Host(location string) string {
	if location == "global" {
		return "https://discoveryengine.googleapis.com"
	}
	return fmt.Sprintf("https://%s-discoveryengine.googleapis.com", location)
}

// ReasoningEngineName builds a reasoning engine resource name.
func ReasoningEngineName(projectID, location, engineID string) string {
	return fmt.Sprintf("projects/%s/locations/%s/reasoningEngines/%s", projectID, location, engineID)
}

// Parent returns the resource name of the app's default assistant.
func (c *Client) Parent() string {
	return fmt.Sprintf("projects/%s/locations/%s/collections/default_collection/engines/%s/assistants/default_assistant",
		c.cfg.ProjectNumber, c.cfg.Location, c.cfg.App)
}

// Register creates the agent.
func (c *Client) Register(ctx context.Context, reg AgentRegistration) (*Agent, error) {
	if reg.DisplayName == "" || reg.ReasoningEngine == "" {
		return nil, fmt.Errorf("%w: display name and reasoning engine are required", ErrInvalid)
	}

	body := &discoveryengine.GoogleCloudDiscoveryengineV1alphaAgent{
		DisplayName: reg.DisplayName,
		Description: reg.Description,
		AdkAgentDefinition: &discoveryengine.GoogleCloudDiscoveryengineV1alphaAdkAgentDefinition{
			ProvisionedReasoningEngine: &discoveryengine.GoogleCloudDiscoveryengineV1alphaAdkAgentDefinitionProvisionedReasoningEngine{
				ReasoningEngine: reg.ReasoningEngine,
			},
		},
	}
	if reg.IconURI != "" {
		body.Icon = &discoveryengine.GoogleCloudDiscoveryengineV1alphaAgentImage{Uri: reg.IconURI}
	}

	call := c.agents.Create(c.Parent(), body).Context(ctx)
	c.quotaProject(call.Header())

	created, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("register agent %s: %w", reg.DisplayName, err)
	}

	c.logger.Info("agentspace.agent.registered", "name", created.Name, "display_name", reg.DisplayName)

	return toAgent(created), nil
}

// List returns the registered agents across all result pages.
func (c *Client) List(ctx context.Context) ([]Agent, error) {
	call := c.agents.List(c.Parent())
	c.quotaProject(call.Header())

	var agents []Agent

	err := call.Pages(ctx, func(resp *discoveryengine.GoogleCloudDiscoveryengineV1alphaListAgentsResponse) error {
		for _, a := range resp.Agents {
			agents = append(agents, *toAgent(a))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}

	return agents, nil
}

// Delete removes the agent with the full resource name.
func (c *Client) Delete(ctx context.Context, name string) error {
	if !strings.HasPrefix(name, "projects/") {
		return fmt.Errorf("%w: %q is not a full agent resource name", ErrInvalid, name)
	}

	call := c.agents.Delete(name).Context(ctx)
	c.quotaProject(call.Header())

	op, err := call.Do()
	if err != nil {
		return fmt.Errorf("delete agent %s: %w", name, err)
	}

	c.logger.Info("agentspace.agent.deleted", "name", name, "operation", op.Name)

	return nil
}

// quotaProject bills the call to the configured project. option.WithQuotaProject
// only applies to clients built from default credentials.
func (c *Client) quotaProject(h http.Header) {
	h.Set("X-Goog-User-Project", c.cfg.ProjectID)
}

func toAgent(a *discoveryengine.GoogleCloudDiscoveryengineV1alphaAgent) *Agent {
	return &Agent{Name: a.Name, DisplayName: a.DisplayName, Description: a.Description, State: a.State}
}
