// Package cli implements the elink command line.
package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/samvad-hq/elink/internal/app"
	"github.com/samvad-hq/elink/internal/config"
	"github.com/samvad-hq/elink/internal/logger"
	"github.com/spf13/cobra"
)

const (
	outputJSON = "json"
	outputYAML = "yaml"
)

// CLI holds state shared by all commands.
type CLI struct {
	cfg *config.Config
	log logger.Logger

	testMode bool
	verbose  bool
	output   string
}

// New returns a CLI bound to cfg. A nil log discards output.
func New(cfg *config.Config, log logger.Logger) *CLI {
	if log == nil {
		log = &logger.NopLogger{}
	}
	return &CLI{cfg: cfg, log: log}
}

// Execute runs the elink command tree with the process arguments.
func Execute(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	return New(cfg, log).RootCommand().ExecuteContext(ctx)
}

// RootCommand builds the command tree.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "elink",
		Short:         "Reserve, post and fetch OSTI ELINK records",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.prepare()
		},
	}

	flags := root.PersistentFlags()
	flags.BoolVar(&c.testMode, "test", false, "use the ELINK test endpoint")
	flags.BoolVarP(&c.verbose, "verbose", "v", false, "enable debug logging")
	flags.StringVarP(&c.output, "output", "o", outputJSON, "response format: json or yaml")

	root.AddCommand(c.reserveCommand())
	root.AddCommand(c.postCommand())
	root.AddCommand(c.getCommand())
	root.AddCommand(c.encodeCommand())

	return root
}

func (c *CLI) prepare() error {
	if c.cfg == nil {
		return fmt.Errorf("config must not be nil")
	}
	c.output = strings.ToLower(strings.TrimSpace(c.output))
	if c.output != outputJSON && c.output != outputYAML {
		return fmt.Errorf("unsupported output format %q (expected %s or %s)", c.output, outputJSON, outputYAML)
	}
	if c.testMode {
		c.cfg.Mode = config.ModeTest
	}
	if c.verbose {
		c.cfg.LogLevel = "debug"
		log, err := logger.Init(c.cfg)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		c.log = log
	}
	return nil
}

// service builds the app service for one command run.
func (c *CLI) service(ctx context.Context) (*app.Service, error) {
	svc, err := app.NewService(ctx, c.cfg, c.log)
	if err != nil {
		return nil, fmt.Errorf("init service: %w", err)
	}
	c.log.DebugObj("elink endpoint selected", "elink_endpoint", svc.Endpoint())
	return svc, nil
}
