package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/lead-studio/internal/model"
	"github.com/sells-group/lead-studio/internal/workflow"
)

var workflowCmd = &cobra.Command{
	Use:   "workflow",
	Short: "Manage versioned workflow graphs and their runs",
}

// -- workflow import --

var workflowImportCmd = &cobra.Command{
	Use:   "import <type>",
	Short: "Save a YAML or JSON graph file as the next version",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		typ, err := model.ParseWorkflowType(args[0])
		if err != nil {
			return err
		}
		file, _ := cmd.Flags().GetString("file")
		label, _ := cmd.Flags().GetString("label")
		folder, _ := cmd.Flags().GetString("folder")

		data, err := os.ReadFile(file)
		if err != nil {
			return eris.Wrapf(err, "read %s", file)
		}
		g, err := parseGraph(file, data)
		if err != nil {
			return err
		}

		if err := cfg.Validate("migrate"); err != nil {
			return err
		}
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		v, err := st.SaveVersion(ctx, model.WorkflowVersion{
			Type:    typ,
			Content: *g,
			Label:   label,
			Folder:  folder,
		})
		if err != nil {
			return eris.Wrap(err, "workflow import")
		}

		zap.L().Info("workflow version saved",
			zap.String("type", string(typ)),
			zap.Int("version", v.Version),
			zap.Int("nodes", len(g.Nodes)),
		)
		return printJSON(os.Stdout, map[string]any{"id": v.ID, "version": v.Version, "label": v.Label})
	},
}

// parseGraph reads a graph file. Files ending in .json are JSON; anything
// else is YAML, which also accepts JSON. Every node must decode.
func parseGraph(path string, data []byte) (*model.Graph, error) {
	var doc struct {
		Nodes []any `json:"nodes" yaml:"nodes"`
		Edges []any `json:"edges" yaml:"edges"`
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, eris.Wrap(err, "parse graph json")
		}
	} else if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrap(err, "parse graph yaml")
	}
	if len(doc.Nodes) == 0 {
		return nil, eris.New("graph has no nodes")
	}

	g := &model.Graph{}
	var err error
	if g.Nodes, err = rawList(doc.Nodes); err != nil {
		return nil, err
	}
	if g.Edges, err = rawList(doc.Edges); err != nil {
		return nil, err
	}
	if _, err := workflow.DecodeNodes(g.Nodes); err != nil {
		return nil, eris.Wrap(err, "invalid graph")
	}
	return g, nil
}

func rawList(items []any) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, 0, len(items))
	for i, it := range items {
		b, err := json.Marshal(it)
		if err != nil {
			return nil, eris.Wrapf(err, "encode graph item %d", i)
		}
		out = append(out, b)
	}
	return out, nil
}

// -- workflow show --

var workflowShowCmd = &cobra.Command{
	Use:   "show <type>",
	Short: "Print a workflow version (latest by default)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		typ, err := model.ParseWorkflowType(args[0])
		if err != nil {
			return err
		}
		version, _ := cmd.Flags().GetInt("version")
		list, _ := cmd.Flags().GetBool("list")

		if err := cfg.Validate("migrate"); err != nil {
			return err
		}
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if list {
			versions, err := st.ListVersions(ctx, typ)
			if err != nil {
				return eris.Wrap(err, "workflow show")
			}
			formatVersionList(os.Stdout, versions)
			return nil
		}

		var v *model.WorkflowVersion
		if version > 0 {
			v, err = st.GetVersion(ctx, typ, version)
		} else {
			v, err = st.LatestVersion(ctx, typ)
		}
		if err != nil {
			return eris.Wrap(err, "workflow show")
		}
		return printJSON(os.Stdout, v)
	},
}

// -- workflow runs --

var workflowRunsCmd = &cobra.Command{
	Use:   "runs <type>",
	Short: "List recent runs of a workflow type",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		typ, err := model.ParseWorkflowType(args[0])
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")
		stats, _ := cmd.Flags().GetBool("stats")

		if err := cfg.Validate("migrate"); err != nil {
			return err
		}
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		runs, err := st.ListRuns(ctx, typ, limit)
		if err != nil {
			return eris.Wrap(err, "workflow runs")
		}
		if len(runs) == 0 {
			zap.L().Info("no runs found", zap.String("type", string(typ)))
			return nil
		}

		if stats {
			formatRunStats(os.Stdout, computeRunStats(runs))
			return nil
		}
		formatRunsList(os.Stdout, runs)
		return nil
	},
}

var workflowRunCmd = &cobra.Command{
	Use:   "run <run-id>",
	Short: "Show the full record of one run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("migrate"); err != nil {
			return err
		}
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "workflow run")
		}
		return printJSON(os.Stdout, run)
	},
}

func init() {
	workflowImportCmd.Flags().String("file", "", "YAML or JSON graph with nodes and edges (required)")
	workflowImportCmd.Flags().String("label", "", "version label")
	workflowImportCmd.Flags().String("folder", "", "studio folder")
	_ = workflowImportCmd.MarkFlagRequired("file")

	workflowShowCmd.Flags().Int("version", 0, "version number (default latest)")
	workflowShowCmd.Flags().Bool("list", false, "list every version instead")

	workflowRunsCmd.Flags().Int("limit", 50, "max number of runs to display")
	workflowRunsCmd.Flags().Bool("stats", false, "show aggregate statistics instead of the list")

	workflowCmd.AddCommand(workflowImportCmd)
	workflowCmd.AddCommand(workflowShowCmd)
	workflowCmd.AddCommand(workflowRunsCmd)
	workflowCmd.AddCommand(workflowRunCmd)
	rootCmd.AddCommand(workflowCmd)
}
