// Package config reads the conversion settings file used by the CLI.
//
// The file is HCL:
//
//	target {
//	  kind    = "onnx"
//	  version = "v1.13.0"
//	}
//	unknown_category = "default"
//	workers          = 4
//	verbosity        = 1
//
// Expressions may read the process environment through the env object, for
// example kind = env.MLCONVERT_TARGET.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/born-ml/mlconvert/internal/capability"
	"github.com/born-ml/mlconvert/internal/lowering"
)

// Config is a decoded settings file.
type Config struct {
	Target    capability.Target
	Policy    lowering.UnknownPolicy
	Workers   int // 0 means one per CPU
	Verbosity int
}

// Default returns the settings used without a file.
func Default() Config {
	return Config{
		Target: capability.DefaultTarget(capability.KindTensor),
		Policy: lowering.UnknownError,
	}
}

type hclFile struct {
	Target          *hclTarget `hcl:"target,block"`
	UnknownCategory *string    `hcl:"unknown_category,optional"`
	Workers         *int       `hcl:"workers,optional"`
	Verbosity       *int       `hcl:"verbosity,optional"`
}

type hclTarget struct {
	Kind    string  `hcl:"kind"`
	Version *string `hcl:"version,optional"`
}

// Load reads and decodes the file at path.
func Load(path string, env map[string]string) (Config, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(src, path, env)
}

// Parse decodes src; filename is used in diagnostics only.
func Parse(src []byte, filename string, env map[string]string) (Config, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return Config{}, fmt.Errorf("failed to parse config %s: %w", filename, diags)
	}

	var raw hclFile
	diags = gohcl.DecodeBody(file.Body, evalContext(env), &raw)
	if diags.HasErrors() {
		return Config{}, fmt.Errorf("failed to decode config %s: %w", filename, diags)
	}

	cfg := Default()
	if raw.Target != nil {
		kind, err := capability.ParseKind(raw.Target.Kind)
		if err != nil {
			return Config{}, fmt.Errorf("config %s: %w", filename, err)
		}
		version := kind.DefaultVersion()
		if raw.Target.Version != nil {
			version = *raw.Target.Version
		}
		if cfg.Target, err = capability.NewTarget(kind, version); err != nil {
			return Config{}, fmt.Errorf("config %s: %w", filename, err)
		}
	}
	if raw.UnknownCategory != nil {
		policy, err := lowering.ParseUnknownPolicy(*raw.UnknownCategory)
		if err != nil {
			return Config{}, fmt.Errorf("config %s: %w", filename, err)
		}
		cfg.Policy = policy
	}
	if raw.Workers != nil {
		if *raw.Workers < 0 {
			return Config{}, fmt.Errorf("config %s: workers must not be negative, got %d", filename, *raw.Workers)
		}
		cfg.Workers = *raw.Workers
	}
	if raw.Verbosity != nil {
		cfg.Verbosity = *raw.Verbosity
	}
	return cfg, nil
}

func evalContext(env map[string]string) *hcl.EvalContext {
	vars := make(map[string]cty.Value, len(env))
	for k, v := range env {
		vars[k] = cty.StringVal(v)
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"env": cty.ObjectVal(vars),
		},
	}
}

// Environ returns the process environment as a map.
func Environ() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	return env
}
