package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/mlconvert/internal/capability"
	"github.com/born-ml/mlconvert/internal/lowering"
)

func TestParseFull(t *testing.T) {
	src := `
target {
  kind    = "onnx"
  version = "1.7.0"
}
unknown_category = "default"
workers          = 3
verbosity        = 2
`
	cfg, err := Parse([]byte(src), "test.hcl", nil)
	require.NoError(t, err)
	assert.Equal(t, capability.KindONNX, cfg.Target.Kind)
	assert.Equal(t, "v1.7.0", cfg.Target.Version)
	assert.Equal(t, lowering.UnknownDefault, cfg.Policy)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, 2, cfg.Verbosity)
}

func TestParseEmptyUsesDefaults(t *testing.T) {
	cfg, err := Parse(nil, "empty.hcl", nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParseTargetDefaultVersion(t *testing.T) {
	cfg, err := Parse([]byte(`target { kind = "torchscript" }`), "t.hcl", nil)
	require.NoError(t, err)
	assert.Equal(t, capability.DefaultTarget(capability.KindTorchScript), cfg.Target)
}

func TestParseReadsEnv(t *testing.T) {
	src := `
target {
  kind = env.TARGET_KIND
}
unknown_category = env.POLICY
`
	cfg, err := Parse([]byte(src), "env.hcl", map[string]string{
		"TARGET_KIND": "onnx",
		"POLICY":      "default",
	})
	require.NoError(t, err)
	assert.Equal(t, capability.KindONNX, cfg.Target.Kind)
	assert.Equal(t, lowering.UnknownDefault, cfg.Policy)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"syntax", `target {`},
		{"unknown attribute", `color = "red"`},
		{"unknown kind", `target { kind = "tflite" }`},
		{"bad version", `target {
  kind    = "onnx"
  version = "latest"
}`},
		{"bad policy", `unknown_category = "ignore"`},
		{"negative workers", `workers = -1`},
		{"missing env var", `unknown_category = env.NOPE`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.src), "bad.hcl", map[string]string{})
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mlconvert.hcl")
	require.NoError(t, os.WriteFile(path, []byte(`workers = 2`), 0o600))

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Workers)

	_, err = Load(filepath.Join(t.TempDir(), "missing.hcl"), nil)
	assert.Error(t, err)
}
