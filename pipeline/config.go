// config.go - Pipeline-Konfiguration aus YAML- oder HCL-Dateien
package pipeline

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"gopkg.in/yaml.v3"
)

// Config lists passes in the order they run.
//
// YAML:
//
//	passes:
//	  - name: gelu7_downgrade
//	    params:
//	      target_opset: 2
//
// HCL:
//
//	pass "eliminate_transpose_pairs" {
//	  fixpoint       = true
//	  max_iterations = 4
//	}
type Config struct {
	Passes []Entry `yaml:"passes" hcl:"pass,block"`
}

type Entry struct {
	Name string `yaml:"name" hcl:"name,label"`

	// Fixpoint overrides the catalog suggestion when set.
	Fixpoint      *bool             `yaml:"fixpoint,omitempty" hcl:"fixpoint,optional"`
	MaxIterations int               `yaml:"max_iterations,omitempty" hcl:"max_iterations,optional"`
	Params        map[string]string `yaml:"params,omitempty" hcl:"params,optional"`
}

var ErrFormat = errors.New("unknown pipeline file format")

// Load reads a pipeline file. The format follows the extension.
func Load(path string) (*Config, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return DecodeYAML(bytes.NewReader(src))
	case ".hcl":
		return DecodeHCL(path, src)
	default:
		return nil, fmt.Errorf("%w: %s", ErrFormat, path)
	}
}

// DecodeYAML rejects unknown fields.
func DecodeYAML(r io.Reader) (*Config, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode pipeline: %w", err)
	}
	return &cfg, cfg.check()
}

func DecodeHCL(filename string, src []byte) (*Config, error) {
	file, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", filename, diags)
	}

	var cfg Config
	if diags := gohcl.DecodeBody(file.Body, nil, &cfg); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", filename, diags)
	}
	return &cfg, cfg.check()
}

func (c *Config) check() error {
	for i, e := range c.Passes {
		if e.Name == "" {
			return fmt.Errorf("pass %d: name is required", i)
		}
		if e.MaxIterations < 0 {
			return fmt.Errorf("pass %s: max_iterations must not be negative", e.Name)
		}
	}
	return nil
}
