// Package cli implements the stormloop command tree.
package cli

import (
	"os"
	"path/filepath"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"

	"github.com/stormloop-dev/stormloop/internal/config"
	"github.com/stormloop-dev/stormloop/internal/logging"
	"github.com/stormloop-dev/stormloop/internal/store"
	"github.com/stormloop-dev/stormloop/pkg/api"
)

// Deps carries the shared dependencies of all commands, built once in the
// root command's PersistentPreRunE.
type Deps struct {
	Config *config.Config
	Log    logr.Logger
	API    *api.Client

	closeLog func()
	cache    *store.Store
}

// OpenStore opens the local cache lazily; watch and draft commands need it,
// plain list/get commands do not.
func (d *Deps) OpenStore() (*store.Store, error) {
	if d.cache != nil {
		return d.cache, nil
	}
	path := os.ExpandEnv(d.Config.Cache.Path)
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	s, err := store.Open(path, store.Options{
		TTL:    d.Config.Cache.TTL,
		Logger: d.Log,
	})
	if err != nil {
		return nil, err
	}
	d.cache = s
	return s, nil
}

// NewRootCmd creates the stormloop root command.
func NewRootCmd() *cobra.Command {
	deps := &Deps{}
	var (
		configPath string
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:   "stormloop",
		Short: "Client for the AI agent brainstorm platform",
		Long: `stormloop drives multi-agent brainstorm sessions from the terminal:
manage agents and sessions over the REST API, follow running sessions live
over the realtime gateway, and export final reports.

Examples:
  stormloop agent list
  stormloop session create --topic "ceramic travel mug for cultural tourism" --agents 1,2,3
  stormloop session watch 42
  stormloop export 42 --format pdf --template detailed`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if verbose {
				cfg.Log.Level = "debug"
			}
			log, closeLog, err := logging.New(logging.Options{
				Level: cfg.Log.Level,
				File:  os.ExpandEnv(cfg.Log.File),
			})
			if err != nil {
				return err
			}

			deps.Config = cfg
			deps.Log = log
			deps.closeLog = closeLog
			deps.API = api.NewClient(cfg.API.BaseURL, tokenFunc(cfg)).WithLogger(log)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if deps.closeLog != nil {
				deps.closeLog()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: ./stormloop.yaml, ~/.stormloop/stormloop.yaml)")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	cmd.AddCommand(NewAgentCmd(deps))
	cmd.AddCommand(NewSessionCmd(deps))
	cmd.AddCommand(NewDraftCmd(deps))
	cmd.AddCommand(NewExportCmd(deps))

	return cmd
}

// tokenFunc prefers the STORMLOOP_API_TOKEN environment variable over the
// config file so tokens stay out of yaml.
func tokenFunc(cfg *config.Config) func() string {
	return func() string {
		if token := os.Getenv("STORMLOOP_API_TOKEN"); token != "" {
			return token
		}
		return cfg.API.Token
	}
}
