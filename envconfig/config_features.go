// config_features.go - Einstellungen des Pass-Managers
//
// Dieses Modul enthaelt:
// - Iterationsgrenze fuer Fixpunkt-Passes
// - Text-Ausgabe der CLI
package envconfig

// =============================================================================
// Pass-Manager
// =============================================================================

var (
	// MaxIterations begrenzt Fixpunkt-Schleifen, wenn ein Pass keine eigene Grenze setzt
	// Konfigurierbar via IRPASS_MAX_ITERATIONS
	MaxIterations = Uint("IRPASS_MAX_ITERATIONS", 16)

	// NoColor schaltet die Tabellen-Ausgabe der CLI auf reinen Text
	NoColor = Bool("IRPASS_NOCOLOR")
)
