// cmd_builders.go - Command-Builder Funktionen
// Hauptfunktionen: newRunCmd, newPassesCmd, etc.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ollama/irpass/envconfig"
)

// newRunCmd - Erstellt den run Command
func newRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run GRAPH [GRAPH...]",
		Short: "Rewrite graphs with a pass pipeline",
		Args:  cobra.MinimumNArgs(1),
		RunE:  RunHandler,
	}

	runCmd.Flags().String("pipeline", "", "Pipeline file (.yaml, .yml or .hcl)")
	runCmd.Flags().StringSlice("pass", nil, "Run only the named passes, in order")
	runCmd.Flags().StringP("output", "o", "", "Directory for the rewritten graphs")
	runCmd.Flags().Int("workers", envconfig.Workers(), "Number of graphs rewritten in parallel")
	runCmd.Flags().Int("max-iterations", 0, "Iteration cap for fixpoint passes")
	runCmd.Flags().Bool("verbose", false, "Show statistics per pass")

	return runCmd
}

// newPassesCmd - Erstellt den passes Command
func newPassesCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "passes [PREFIX]",
		Aliases: []string{"ls"},
		Short:   "List available passes",
		Args:    cobra.MaximumNArgs(1),
		RunE:    PassesHandler,
	}
}

// newDiffCmd - Erstellt den diff Command
func newDiffCmd() *cobra.Command {
	diffCmd := &cobra.Command{
		Use:   "diff GRAPH REFERENCE",
		Short: "Compare two graphs structurally",
		Args:  cobra.ExactArgs(2),
		RunE:  DiffHandler,
	}

	diffCmd.Flags().Bool("names", false, "Also compare friendly names")
	diffCmd.Flags().StringSlice("ignore-attr", nil, "Attribute keys to ignore")
	diffCmd.Flags().Int("max", 0, "Stop after this many mismatches")

	return diffCmd
}

// newLayoutCmd - Erstellt den layout Command
func newLayoutCmd() *cobra.Command {
	layoutCmd := &cobra.Command{
		Use:   "layout GRAPH NAME",
		Short: "Show the memory orientation of a graph input or output",
		Args:  cobra.ExactArgs(2),
		RunE:  LayoutHandler,
	}

	layoutCmd.Flags().String("components", "", "YAML file mapping node names to DNN components")
	layoutCmd.Flags().Bool("output", false, "NAME is a result instead of a parameter")

	return layoutCmd
}

// newEnvCmd - Erstellt den env Command
func newEnvCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "env",
		Short: "Show environment configuration",
		Args:  cobra.NoArgs,
		RunE:  EnvHandler,
	}
}
