package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/a2aproject/a2a-go/a2asrv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/hupe1980/a2amesh/a2akit"
	"github.com/hupe1980/a2amesh/agents"
	"github.com/hupe1980/a2amesh/artifact"
	"github.com/hupe1980/a2amesh/core"
	"github.com/hupe1980/a2amesh/executor"
	"github.com/hupe1980/a2amesh/mcpserver"
	"github.com/hupe1980/a2amesh/mcpserver/cocktail"
	"github.com/hupe1980/a2amesh/mcpserver/weather"
	"github.com/hupe1980/a2amesh/session"
	"github.com/hupe1980/a2amesh/telemetry"
)

const shutdownTimeout = 10 * time.Second

func newAgentCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Run A2A agents",
	}

	cmd.AddCommand(&cobra.Command{
		Use:       "serve {cocktail|weather|host}",
		Short:     "Serve an agent over A2A on PORT",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"cocktail", "weather", "host"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serveAgent(cmd.Context(), args[0])
		},
	})

	return cmd
}

func newMCPCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Run MCP tool servers",
	}

	cmd.AddCommand(&cobra.Command{
		Use:       "serve {cocktail|weather}",
		Short:     "Serve an MCP server over streamable HTTP at /mcp on PORT",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"cocktail", "weather"},
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.mcpServer(args[0])
			if err != nil {
				return err
			}
			return a.listenAndServe(cmd.Context(), s.name, mcpserver.Handler(s.server))
		},
	})

	return cmd
}

type namedMCPServer struct {
	name   string
	server *server.MCPServer
}

func (a *app) mcpServer(name string) (namedMCPServer, error) {
	client := telemetry.NewHTTPClient(nil, 30*time.Second)

	switch name {
	case "cocktail":
		c := cocktail.NewClient(func(o *cocktail.ClientOptions) { o.HTTPClient = client })
		return namedMCPServer{cocktail.ServerName, cocktail.NewServer(c, func(o *cocktail.Options) {
			o.Version = Version
			o.Logger = a.logger
		})}, nil
	case "weather":
		c := weather.NewClient(func(o *weather.ClientOptions) { o.HTTPClient = client })
		return namedMCPServer{weather.ServerName, weather.NewServer(c, func(o *weather.Options) {
			o.Version = Version
			o.Logger = a.logger
		})}, nil
	default:
		return namedMCPServer{}, fmt.Errorf("unknown mcp server %q (valid: cocktail, weather)", name)
	}
}

func (a *app) serveAgent(ctx context.Context, name string) error {
	def, ok := agents.Lookup(name)
	if !ok {
		return fmt.Errorf("unknown agent %q (valid: cocktail, weather, host)", name)
	}

	stores, err := a.openStores(ctx)
	if err != nil {
		return err
	}
	defer stores.close()

	exec := a.executor(def, stores)

	card := def.Card(a.cfg.AdvertisedURL())
	srv := a2akit.NewServer(card, exec, func(o *a2akit.ServerOptions) {
		o.TaskStore = stores.tasks
		o.Logger = a.logger
	})

	return a.listenAndServe(ctx, card.Name, srv)
}

func (a *app) executor(def agents.Definition, stores *stores) *executor.AgentExecutor {
	opt := func(o *agents.Options) {
		o.Model = agents.ProviderFromConfig(a.cfg.Model, a.cfg.Google)
		o.SessionStore = stores.sessions
		o.ArtifactStore = stores.artifacts
		o.Memory = a.cfg.Agents.Memory
		o.Logger = a.logger
	}

	switch def.Name {
	case agents.Cocktail.Name:
		return agents.NewMCPExecutor(def, a.cfg.Agents.CocktailMCPURL, opt)
	case agents.Weather.Name:
		return agents.NewMCPExecutor(def, a.cfg.Agents.WeatherMCPURL, opt)
	default:
		return agents.NewHostExecutor(a.cfg.RemoteAgentURLs(), opt)
	}
}

// stores holds the durable backends selected by the storage config. Nil
// fields fall back to in-memory stores.
type stores struct {
	sessions  core.SessionStore
	artifacts core.ArtifactStore
	tasks     a2asrv.TaskStore
	closers   []func() error
}

func (s *stores) close() {
	for _, c := range s.closers {
		_ = c()
	}
}

func (a *app) openStores(ctx context.Context) (*stores, error) {
	s := &stores{}
	sc := a.cfg.Storage

	if sc.SessionDB != "" {
		db, err := session.NewSQLiteStore(sc.SessionDB)
		if err != nil {
			return nil, err
		}
		s.sessions = db
		s.closers = append(s.closers, db.Close)
	}

	if sc.TaskDB != "" {
		db, err := a2akit.NewSQLiteTaskStore(sc.TaskDB)
		if err != nil {
			s.close()
			return nil, err
		}
		s.tasks = db
		s.closers = append(s.closers, db.Close)
	}

	if sc.ArtifactBucket != "" {
		gcs, err := artifact.NewGCSStore(ctx, sc.ArtifactBucket, func(o *artifact.GCSOptions) {
			o.Prefix = sc.ArtifactPrefix
		})
		if err != nil {
			s.close()
			return nil, err
		}
		s.artifacts = gcs
		s.closers = append(s.closers, gcs.Close)
	}

	return s, nil
}

// listenAndServe serves h with tracing and request logging until ctx is done.
func (a *app) listenAndServe(ctx context.Context, name string, h http.Handler) error {
	shutdownTracer, err := telemetry.InitTracer(ctx, name)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = shutdownTracer(sctx)
	}()

	srv := &http.Server{
		Addr:              a.cfg.ListenAddr(),
		Handler:           telemetry.Middleware(h, name, a.logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("server.listen", "name", name, "addr", srv.Addr, "url", a.cfg.AdvertisedURL())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	a.logger.Info("server.shutdown", "name", name)

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return srv.Shutdown(sctx)
}
