// cmd_diff.go - diff und layout Commands
// Hauptfunktionen: DiffHandler, LayoutHandler
package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ollama/irpass/equiv"
	"github.com/ollama/irpass/layout"
)

var errNotEquivalent = errors.New("graphs are not equivalent")

// DiffHandler - Vergleicht zwei Graphen strukturell
func DiffHandler(cmd *cobra.Command, args []string) error {
	actual, err := readGraphFile(cmd, args[0])
	if err != nil {
		return err
	}
	reference, err := readGraphFile(cmd, args[1])
	if err != nil {
		return err
	}

	var opts []equiv.Option
	if names, _ := cmd.Flags().GetBool("names"); names {
		opts = append(opts, equiv.CompareNames())
	}
	if ignore, _ := cmd.Flags().GetStringSlice("ignore-attr"); len(ignore) > 0 {
		opts = append(opts, equiv.IgnoreAttributes(ignore...))
	}
	if n, _ := cmd.Flags().GetInt("max"); n > 0 {
		opts = append(opts, equiv.MaxMismatches(n))
	}

	r := equiv.Compare(actual, reference, opts...)
	if r.Equal {
		fmt.Fprintln(cmd.OutOrStdout(), "equivalent")
		return nil
	}

	fmt.Fprintln(cmd.OutOrStdout(), r.Diff())
	return errNotEquivalent
}

// LayoutHandler - Orientierung einer Ein- oder Ausgabe
func LayoutHandler(cmd *cobra.Command, args []string) error {
	g, err := readGraphFile(cmd, args[0])
	if err != nil {
		return err
	}

	comps := layout.Components{}
	if path, _ := cmd.Flags().GetString("components"); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if err := yaml.Unmarshal(b, &comps); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}

	orientation := layout.InputOrientation
	if output, _ := cmd.Flags().GetBool("output"); output {
		orientation = layout.OutputOrientation
	}

	o, err := orientation(g, args[1], comps)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), o)
	return nil
}
