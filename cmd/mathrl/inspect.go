package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AmirDavoodi/MPEC/internal/graph"
	"github.com/AmirDavoodi/MPEC/internal/logging"
	"github.com/AmirDavoodi/MPEC/internal/policy"
)

// #region inspect-cmd
type inspectOpts struct {
	limit    int
	version  string
	rollback string
	runID    string
}

// inspectOutput is the JSON shape of inspect's listing mode.
type inspectOutput struct {
	Active   string                 `json:"active_version,omitempty"`
	Versions []versionRow           `json:"versions"`
	Episodes []logging.EpisodeEntry `json:"episodes"`
	Graphs   []graph.GraphInfo      `json:"graphs"`
}

// versionRow is a snapshot without its entries.
type versionRow struct {
	VersionID string  `json:"version_id"`
	ParentID  string  `json:"parent_id,omitempty"`
	Problem   string  `json:"problem"`
	Variant   string  `json:"variant"`
	Entries   int     `json:"entries"`
	Epsilon   float64 `json:"epsilon"`
	CreatedAt string  `json:"created_at"`
}

func newInspectCmd(g *globals) *cobra.Command {
	o := &inspectOpts{}
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "List policy snapshots, recent episodes and stored graphs",
		Example: `  mathrl inspect
  mathrl inspect --version 3f2a9c1e-... --json
  mathrl inspect --rollback 3f2a9c1e-...`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd, g, o)
		},
	}
	f := cmd.Flags()
	f.IntVar(&o.limit, "limit", 10, "rows per section")
	f.StringVar(&o.version, "version", "", "show one snapshot in full")
	f.StringVar(&o.rollback, "rollback", "", "make this snapshot the active one")
	f.StringVar(&o.runID, "run", "", "only episodes of this training run")
	return cmd
}

// #endregion inspect-cmd

// #region run-inspect
func runInspect(cmd *cobra.Command, g *globals, o *inspectOpts) error {
	cfg, err := g.load(cmd)
	if err != nil {
		return err
	}
	logger := g.logger(cmd, cfg)

	ps, gs, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer ps.Close()

	if o.rollback != "" {
		if err := ps.Rollback(o.rollback); err != nil {
			return err
		}
		logger.Info("rolled back", "version_id", o.rollback)
		fmt.Fprintf(cmd.OutOrStdout(), "active policy is now %s\n", o.rollback)
		return nil
	}

	if o.version != "" {
		snap, err := ps.GetVersion(o.version)
		if err != nil {
			return err
		}
		if g.jsonOut {
			return printJSON(cmd.OutOrStdout(), snap)
		}
		printSnapshot(cmd, snap)
		return nil
	}

	out := inspectOutput{}
	if active, err := ps.GetActive(); err == nil {
		out.Active = active.VersionID
	}
	versions, err := ps.ListVersions(o.limit)
	if err != nil {
		return err
	}
	out.Versions = make([]versionRow, 0, len(versions))
	for _, v := range versions {
		out.Versions = append(out.Versions, versionRow{
			VersionID: v.VersionID,
			ParentID:  v.ParentID,
			Problem:   v.Problem,
			Variant:   v.Variant,
			Entries:   len(v.Entries),
			Epsilon:   v.Epsilon,
			CreatedAt: v.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}
	if out.Episodes, err = logging.RecentEpisodes(ps.DB(), o.runID, o.limit); err != nil {
		return err
	}
	if out.Graphs, err = gs.ListGraphs(o.limit); err != nil {
		return err
	}
	if out.Episodes == nil {
		out.Episodes = []logging.EpisodeEntry{}
	}
	if out.Graphs == nil {
		out.Graphs = []graph.GraphInfo{}
	}

	if g.jsonOut {
		return printJSON(cmd.OutOrStdout(), out)
	}
	printInspect(cmd, out)
	return nil
}

// #endregion run-inspect

// #region inspect-print
func printInspect(cmd *cobra.Command, out inspectOutput) {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Policy snapshots:\n")
	fmt.Fprintf(w, "%-1s %-8s  %-8s  %-10s  %7s  %7s  %-19s  %s\n", "", "Version", "Parent", "Variant", "Entries", "Epsilon", "Created", "Problem")
	fmt.Fprintf(w, "%-1s %-8s+-%-8s+-%-10s+-%7s+-%7s+-%-19s+-%s\n", "", "--------", "--------", "----------", "-------", "-------", "-------------------", "-------")
	for _, v := range out.Versions {
		mark := ""
		if v.VersionID == out.Active {
			mark = "*"
		}
		fmt.Fprintf(w, "%-1s %-8s  %-8s  %-10s  %7d  %7.4f  %-19s  %s\n",
			mark, shortID(v.VersionID), shortID(v.ParentID), v.Variant, v.Entries, v.Epsilon, v.CreatedAt, v.Problem)
	}

	fmt.Fprintf(w, "\nRecent episodes:\n")
	fmt.Fprintf(w, "%-8s  %-20s  %7s  %8s  %5s  %-9s  %s\n", "Run", "Problem", "Episode", "Reward", "Steps", "Decision", "Final")
	fmt.Fprintf(w, "%-8s+-%-20s+-%7s+-%8s+-%5s+-%-9s+-%s\n", "--------", "--------------------", "-------", "--------", "-----", "---------", "-----")
	for _, e := range out.Episodes {
		fmt.Fprintf(w, "%-8s  %-20s  %7d  %8.2f  %5d  %-9s  %s\n",
			shortID(e.RunID), e.Problem, e.Episode, e.TotalReward, e.Steps, e.Decision, e.FinalState)
	}

	fmt.Fprintf(w, "\nReasoning graphs:\n")
	fmt.Fprintf(w, "%-8s  %-20s  %8s  %9s  %s\n", "Graph", "Problem", "Entities", "Relations", "Created")
	fmt.Fprintf(w, "%-8s+-%-20s+-%8s+-%9s+-%s\n", "--------", "--------------------", "--------", "---------", "-------")
	for _, gi := range out.Graphs {
		fmt.Fprintf(w, "%-8s  %-20s  %8d  %9d  %s\n",
			shortID(gi.GraphID), gi.Problem, gi.EntityCount, gi.RelationCount, gi.CreatedAt.Format("2006-01-02 15:04:05"))
	}
}

func printSnapshot(cmd *cobra.Command, snap policy.Snapshot) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Version:  %s\n", snap.VersionID)
	fmt.Fprintf(w, "Parent:   %s\n", snap.ParentID)
	fmt.Fprintf(w, "Created:  %s\n", snap.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "Problem:  %s\n", snap.Problem)
	fmt.Fprintf(w, "Variant:  %s\n", snap.Variant)
	fmt.Fprintf(w, "Epsilon:  %.4f\n", snap.Epsilon)
	if snap.MetricsJSON != "" {
		fmt.Fprintf(w, "Metrics:  %s\n", snap.MetricsJSON)
	}

	fmt.Fprintf(w, "\n%-32s  %-18s  %s\n", "State", "Action", "Value")
	fmt.Fprintf(w, "%-32s+-%-18s+-%s\n", "--------------------------------", "------------------", "-----")
	for _, e := range snap.Entries {
		fmt.Fprintf(w, "%-32s  %-18s  %.4f\n", e.State, e.Action, e.Value)
	}
}

// #endregion inspect-print
