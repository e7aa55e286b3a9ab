// cmd.go - Haupt-CLI Setup und Root Command
// Hauptfunktionen: NewCLI, appendEnvDocs
package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ollama/irpass/envconfig"
	"github.com/ollama/irpass/logutil"
)

// appendEnvDocs - Fuegt Umgebungsvariablen-Dokumentation zum Command hinzu
func appendEnvDocs(cmd *cobra.Command, envs []envconfig.EnvVar) {
	if len(envs) == 0 {
		return
	}

	envUsage := `
Environment Variables:
`
	for _, e := range envs {
		envUsage += fmt.Sprintf("      %-24s   %s\n", e.Name, e.Description)
	}

	cmd.SetUsageTemplate(cmd.UsageTemplate() + envUsage)
}

// setup - .env laden und Logger konfigurieren, vor jedem Command
func setup(cmd *cobra.Command, _ []string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	slog.SetDefault(logutil.NewLogger(cmd.ErrOrStderr(), envconfig.LogLevel()))
	return nil
}

// NewCLI - Erstellt das Haupt-CLI mit allen Commands
func NewCLI() *cobra.Command {
	cobra.EnableCommandSorting = false

	rootCmd := &cobra.Command{
		Use:               "irpass",
		Short:             "Pattern-matching rewrite engine for computation graphs",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setup,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Print(cmd.UsageString())
		},
	}

	// Commands erstellen
	runCmd := newRunCmd()
	passesCmd := newPassesCmd()
	diffCmd := newDiffCmd()
	layoutCmd := newLayoutCmd()
	envCmd := newEnvCmd()

	// Environment-Dokumentation hinzufuegen
	envVars := envconfig.AsMap()
	appendEnvDocs(runCmd, []envconfig.EnvVar{
		envVars["IRPASS_DEBUG"],
		envVars["IRPASS_MAX_ITERATIONS"],
		envVars["IRPASS_PIPELINE"],
		envVars["IRPASS_WORKERS"],
	})
	for _, cmd := range []*cobra.Command{passesCmd, envCmd} {
		appendEnvDocs(cmd, []envconfig.EnvVar{envVars["IRPASS_NOCOLOR"]})
	}

	rootCmd.AddCommand(
		runCmd,
		passesCmd,
		diffCmd,
		layoutCmd,
		envCmd,
	)

	return rootCmd
}
