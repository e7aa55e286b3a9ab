// cmd_list.go - passes und env Commands
// Hauptfunktionen: PassesHandler, EnvHandler
package cmd

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ollama/irpass/envconfig"
	"github.com/ollama/irpass/transformations"
)

// PassesHandler - Listet alle verfuegbaren Passes auf
func PassesHandler(cmd *cobra.Command, args []string) error {
	catalog := transformations.Catalog()

	names := make([]string, 0, len(catalog))
	for name := range catalog {
		if len(args) == 0 || strings.HasPrefix(name, strings.ToLower(args[0])) {
			names = append(names, name)
		}
	}
	slices.Sort(names)

	var data [][]string
	for _, name := range names {
		e := catalog[name]
		params := "-"
		if len(e.Params) > 0 {
			params = strings.Join(e.Params, ",")
		}
		data = append(data, []string{name, strconv.FormatBool(e.Fixpoint), params, e.Description})
	}

	renderTable(cmd.OutOrStdout(), []string{"NAME", "FIXPOINT", "PARAMS", "DESCRIPTION"}, data)
	return nil
}

// EnvHandler - Zeigt alle Umgebungsvariablen mit aktuellem Wert
func EnvHandler(cmd *cobra.Command, _ []string) error {
	vars := envconfig.AsMap()

	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	slices.Sort(names)

	var data [][]string
	for _, name := range names {
		v := vars[name]
		data = append(data, []string{name, fmt.Sprintf("%v", v.Value), v.Description})
	}

	renderTable(cmd.OutOrStdout(), []string{"NAME", "VALUE", "DESCRIPTION"}, data)
	return nil
}
