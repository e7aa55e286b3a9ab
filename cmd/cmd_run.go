// cmd_run.go - run Command: Pipeline auf JSON-Graphen anwenden
// Hauptfunktionen: RunHandler
package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ollama/irpass/ir"
	"github.com/ollama/irpass/pass"
	"github.com/ollama/irpass/transformations"
)

// RunHandler - Fuehrt die Pipeline ueber alle Graphen aus (parallel)
func RunHandler(cmd *cobra.Command, args []string) error {
	output, _ := cmd.Flags().GetString("output")
	if len(args) > 1 && output == "" {
		return errors.New("--output is required for more than one graph")
	}
	names, err := outputNames(args)
	if err != nil {
		return err
	}

	p, err := loadPipeline(cmd, transformations.Catalog())
	if err != nil {
		return err
	}

	graphs := make([]*ir.Graph, len(args))
	for i, path := range args {
		if graphs[i], err = readGraphFile(cmd, path); err != nil {
			return err
		}
	}

	m := pass.NewManager()
	if n, _ := cmd.Flags().GetInt("max-iterations"); n > 0 {
		m.MaxIterations = n
	}
	workers, _ := cmd.Flags().GetInt("workers")

	reports, err := m.RunAll(cmd.Context(), graphs, p, workers)
	if err != nil {
		return err
	}

	verbose, _ := cmd.Flags().GetBool("verbose")
	for i, r := range reports {
		for _, w := range r.Warnings {
			slog.Warn("pipeline warning", "graph", args[i], "error", w)
		}
		if verbose {
			printReport(cmd.ErrOrStderr(), args[i], r)
		}
	}

	if output == "" {
		return ir.WriteGraph(cmd.OutOrStdout(), graphs[0])
	}

	if err := os.MkdirAll(output, 0o755); err != nil {
		return err
	}
	for i, g := range graphs {
		if err := writeGraphFile(filepath.Join(output, names[i]), g); err != nil {
			return err
		}
	}
	return nil
}

// outputNames - Dateinamen im Ausgabeverzeichnis, doppelte Namen sind ein Fehler
func outputNames(args []string) ([]string, error) {
	names := make([]string, len(args))
	seen := make(map[string]string, len(args))
	for i, arg := range args {
		name := filepath.Base(arg)
		if arg == "-" {
			name = fmt.Sprintf("graph-%d.json", i)
		}
		if prev, ok := seen[name]; ok {
			return nil, fmt.Errorf("%s and %s would both be written as %s", prev, arg, name)
		}
		seen[name] = arg
		names[i] = name
	}
	return names, nil
}

func writeGraphFile(path string, g *ir.Graph) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := ir.WriteGraph(f, g); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// printReport - Statistik pro Pass
func printReport(w io.Writer, name string, r *pass.Report) {
	fmt.Fprintf(w, "%s (run %s): %d rewrites\n", name, r.RunID, r.Replaced())

	var data [][]string
	for _, p := range r.Passes {
		data = append(data, []string{
			p.Name,
			fmt.Sprint(p.Sweeps),
			fmt.Sprint(p.Matches),
			fmt.Sprint(p.Replaced),
			fmt.Sprint(p.Failed),
			p.Duration.String(),
		})
	}
	renderTable(w, []string{"PASS", "SWEEPS", "MATCHES", "REPLACED", "FAILED", "DURATION"}, data)
}
