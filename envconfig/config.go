// config.go - Haupt-Konfigurationsfunktionen fuer irpass
//
// Dieses Modul enthaelt:
// - LogLevel: Gibt Log-Level zurueck (IRPASS_DEBUG)
// - Workers: Anzahl parallel bearbeiteter Graphen (IRPASS_WORKERS)
// - PipelineFile: Standard-Pipeline-Datei (IRPASS_PIPELINE)
// - Var: Liest eine Environment-Variable
//
// Weitere Konfigurationen sind ausgelagert:
// - config_features.go: Pass-Manager-Einstellungen
// - config_utils.go: Utility-Funktionen und AsMap/Values
package envconfig

import (
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
)

// LogLevel gibt das Log-Level zurueck
// Konfigurierbar via IRPASS_DEBUG
// Werte: 0/false = INFO (Default), 1/true = DEBUG, 2 = TRACE
func LogLevel() slog.Level {
	level := slog.LevelInfo
	if s := Var("IRPASS_DEBUG"); s != "" {
		if b, _ := strconv.ParseBool(s); b {
			level = slog.LevelDebug
		} else if i, _ := strconv.ParseInt(s, 10, 64); i != 0 {
			level = slog.Level(i * -4)
		}
	}

	return level
}

// Workers gibt die Anzahl parallel bearbeiteter Graphen zurueck
// Konfigurierbar via IRPASS_WORKERS
// Default: Anzahl CPUs
func Workers() int {
	if n := workers(); n > 0 {
		return int(n)
	}
	return runtime.NumCPU()
}

var workers = Uint("IRPASS_WORKERS", 0)

// PipelineFile gibt die Standard-Pipeline zurueck
// Konfigurierbar via IRPASS_PIPELINE
// Default: $HOME/.irpass/pipeline.yaml, falls vorhanden
func PipelineFile() string {
	if s := Var("IRPASS_PIPELINE"); s != "" {
		return s
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	p := filepath.Join(home, ".irpass", "pipeline.yaml")
	if _, err := os.Stat(p); err != nil {
		return ""
	}
	return p
}

// Var gibt eine Environment-Variable zurueck
// Entfernt fuehrende/trailing Quotes und Leerzeichen
func Var(key string) string {
	return strings.Trim(strings.TrimSpace(os.Getenv(key)), "\"'")
}
