// Package config holds the run configuration of the decompiler core.
package config

import (
	"fmt"
	"os"

	yaml "gopkg.in/yaml.v2"
)

// Config tunes the pipeline. The zero value is the default run.
type Config struct {
	// DumpDir, when set, receives dot dumps of the region CFGs and
	// structured ASTs as they are produced.
	DumpDir string `yaml:"dump-dir"`

	// DuplicateWhileConditionInBody additionally emits the loop-test
	// block's instructions at the head of while bodies, on top of the
	// mandated tail emission.
	DuplicateWhileConditionInBody bool `yaml:"duplicate-while-condition-in-body"`

	// MaxInflation caps node duplication during combing. Zero keeps
	// the built-in bound; a negative value disables duplication, so
	// unstructured merges are routed through entry dispatchers.
	MaxInflation int `yaml:"max-inflation"`

	// SkipBitLiveness disables the bit-liveness analysis.
	SkipBitLiveness bool `yaml:"skip-bit-liveness"`

	// SkipLayouts disables data-layout reconstruction.
	SkipLayouts bool `yaml:"skip-layouts"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{}
}

// Load reads a YAML configuration file.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}
