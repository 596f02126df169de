package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/AmirDavoodi/MPEC/internal/config"
	"github.com/AmirDavoodi/MPEC/internal/graph"
	"github.com/AmirDavoodi/MPEC/internal/logging"
	"github.com/AmirDavoodi/MPEC/internal/policy"
)

// #region root
// globals holds the persistent flags shared by every subcommand.
type globals struct {
	cfgFile  string
	dbPath   string
	logLevel string
	seed     uint64
	jsonOut  bool
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:   "mathrl",
		Short: "Symbolic arithmetic rewriting with tabular Q-learning",
		Long: `mathrl trains a Q-learning agent to rewrite integer additions step by step
and projects the best trajectory into a reasoning graph.

Commands:
  train    Train on one problem or a batch and commit the learned policy
  solve    Solve a problem with the active policy
  replay   Replay scripted actions or fixtures through an environment
  inspect  List policy snapshots, recent episodes and stored graphs
  export   Print a stored reasoning graph as JSON, YAML or protojson`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&g.cfgFile, "config", "", "YAML config file")
	root.PersistentFlags().StringVar(&g.dbPath, "db", "", "SQLite database (overrides config and MATHRL_DB)")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "debug, info, warn or error")
	root.PersistentFlags().Uint64Var(&g.seed, "seed", 0, "random seed (overrides config)")
	root.PersistentFlags().BoolVar(&g.jsonOut, "json", false, "output as JSON instead of text")

	root.AddCommand(
		newTrainCmd(g),
		newSolveCmd(g),
		newReplayCmd(g),
		newInspectCmd(g),
		newExportCmd(g),
	)
	return root
}

// #endregion root

// #region setup
// load resolves configuration with command-line flags applied last.
func (g *globals) load(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(g.cfgFile)
	if err != nil {
		return config.Config{}, err
	}
	flags := cmd.Flags()
	if flags.Changed("db") {
		cfg.DBPath = g.dbPath
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = g.logLevel
	}
	if flags.Changed("seed") {
		cfg.Seed = g.seed
	}
	return cfg, nil
}

func (g *globals) logger(cmd *cobra.Command, cfg config.Config) *slog.Logger {
	return logging.New(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
}

// openStores opens the policy store and a graph store sharing its database.
func openStores(cfg config.Config) (*policy.Store, *graph.Store, error) {
	ps, err := policy.NewStore(cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	gs, err := graph.NewStore(ps.DB())
	if err != nil {
		ps.Close()
		return nil, nil, fmt.Errorf("open graph store: %w", err)
	}
	return ps, gs, nil
}

// #endregion setup

// #region output
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// #endregion output
