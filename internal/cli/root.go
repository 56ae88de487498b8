// Package cli implements the a2amesh command tree.
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/hupe1980/a2amesh/config"
	"github.com/hupe1980/a2amesh/logging"
)

// Version is set at build time.
var Version = "dev"

// app carries the state shared by all commands.
type app struct {
	configPath string
	verbose    bool
	logBackend string

	cfg    *config.Config
	logger logging.Logger
	out    io.Writer
}

// NewRootCommand builds the a2amesh command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "a2amesh",
		Short: "Multi-agent A2A mesh with MCP tool servers",
		Long: `a2amesh runs a hosting agent that delegates to cocktail and weather agents
over the Agent2Agent protocol. The specialist agents call tools on MCP servers.

Run the MCP servers, the agents and the hosting agent, then open the chat.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "a2amesh.yaml", "config file")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().StringVar(&a.logBackend, "log-backend", "", "log backend: slog, zap or zerolog")

	root.AddCommand(
		newAgentCommand(a),
		newMCPCommand(a),
		newChatCommand(a),
		newCardCommand(a),
		newAgentSpaceCommand(a),
		newDeployCommand(a),
	)

	return root
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}

	if a.verbose {
		cfg.Logging.Level = "debug"
	}

	if a.logBackend != "" {
		cfg.Logging.Backend = a.logBackend
	}

	cfg.Logging.Output = cmd.ErrOrStderr()

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}

	a.cfg = cfg
	a.logger = logger
	a.out = cmd.OutOrStdout()

	return nil
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}
