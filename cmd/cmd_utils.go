// cmd_utils.go - Gemeinsame Hilfsfunktionen
// Hauptfunktionen: readGraphFile, loadPipeline, newTable
package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ollama/irpass/envconfig"
	"github.com/ollama/irpass/ir"
	"github.com/ollama/irpass/pass"
	"github.com/ollama/irpass/pipeline"
	"github.com/ollama/irpass/transformations"
)

// readGraphFile - Liest und validiert einen JSON-Graphen, "-" ist stdin
func readGraphFile(cmd *cobra.Command, path string) (*ir.Graph, error) {
	var r io.Reader = cmd.InOrStdin()
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	g, err := ir.ReadGraph(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return g, nil
}

// loadPipeline - Reihenfolge: --pass, --pipeline, IRPASS_PIPELINE, Standard-Pipeline
func loadPipeline(cmd *cobra.Command, catalog map[string]transformations.Entry) (pass.Pipeline, error) {
	names, err := cmd.Flags().GetStringSlice("pass")
	if err != nil {
		return nil, err
	}

	var cfg *pipeline.Config
	switch path, _ := cmd.Flags().GetString("pipeline"); {
	case len(names) > 0:
		cfg = &pipeline.Config{}
		for _, name := range names {
			cfg.Passes = append(cfg.Passes, pipeline.Entry{Name: strings.TrimSpace(name)})
		}
	case path != "":
		if cfg, err = pipeline.Load(path); err != nil {
			return nil, err
		}
	case envconfig.PipelineFile() != "":
		if cfg, err = pipeline.Load(envconfig.PipelineFile()); err != nil {
			return nil, err
		}
	default:
		cfg = pipeline.Default(catalog)
	}

	return pipeline.Build(cfg, catalog)
}

// plainOutput - Tabellen nur auf einem Terminal
func plainOutput(w io.Writer) bool {
	if envconfig.NoColor() {
		return true
	}
	f, ok := w.(*os.File)
	return !ok || !term.IsTerminal(int(f.Fd()))
}

// renderTable - Tabelle im Stil von "ollama list", sonst Tab-getrennt
func renderTable(w io.Writer, header []string, data [][]string) {
	if plainOutput(w) {
		fmt.Fprintln(w, strings.Join(header, "\t"))
		for _, row := range data {
			fmt.Fprintln(w, strings.Join(row, "\t"))
		}
		return
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(data)
	table.Render()
}
