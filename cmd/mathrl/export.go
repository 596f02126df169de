package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AmirDavoodi/MPEC/internal/codec"
	"github.com/AmirDavoodi/MPEC/internal/graph"
)

// #region export-cmd
type exportOpts struct {
	graphID string
	format  string
	walk    int
}

func newExportCmd(g *globals) *cobra.Command {
	o := &exportOpts{}
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Print a stored reasoning graph as JSON, YAML or protojson",
		Example: `  mathrl export
  mathrl export --graph-id 3f2a9c1e-... --format yaml
  mathrl export --walk 5`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, g, o)
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.graphID, "graph-id", "", "graph to export (default: most recent)")
	f.StringVar(&o.format, "format", string(codec.FormatJSON), "json, yaml or protojson")
	f.IntVar(&o.walk, "walk", 0, "print the path from the start entity up to this many hops instead")
	return cmd
}

// #endregion export-cmd

// #region run-export
func runExport(cmd *cobra.Command, g *globals, o *exportOpts) error {
	cfg, err := g.load(cmd)
	if err != nil {
		return err
	}
	format, err := codec.ParseFormat(o.format)
	if err != nil {
		return err
	}

	ps, gs, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer ps.Close()

	id := o.graphID
	if id == "" {
		latest, err := gs.ListGraphs(1)
		if err != nil {
			return err
		}
		if len(latest) == 0 {
			return errors.New("export: no stored graphs")
		}
		id = latest[0].GraphID
	}

	w := cmd.OutOrStdout()
	if o.walk > 0 {
		res, err := gs.Walk(id, o.walk)
		if err != nil {
			return err
		}
		if g.jsonOut {
			return printJSON(w, res)
		}
		printWalk(cmd, res)
		return nil
	}

	rec, err := gs.LoadRecord(id)
	if err != nil {
		return err
	}
	data, err := codec.Encode(rec, format)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	if len(data) > 0 && data[len(data)-1] != '\n' {
		fmt.Fprintln(w)
	}
	return nil
}

func printWalk(cmd *cobra.Command, res graph.WalkResult) {
	w := cmd.OutOrStdout()
	for i, name := range res.Names {
		fmt.Fprintf(w, "%*s%s [%s]\n", 2*res.Depth[i], "", name, res.IDs[i])
	}
}

// #endregion run-export
