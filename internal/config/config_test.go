package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const validYAML = `
version: "0.1.0"
providers:
  ollama:
    type: ollama
    base_url: https://ollama.com
    api_key: dummy
    timeout: 120s
experts:
  reasoning: {provider: ollama, model: "deepseek-v3.1:671b-cloud"}
  fallback: {provider: ollama, model: "gpt-oss:20b-cloud"}
  enterprise: {provider: ollama, model: "gpt-oss:120b-cloud"}
  math_tool: {provider: ollama, model: "kimi-k2:1t-cloud"}
  code: {provider: ollama, model: "qwen3-coder:480b-cloud"}
  cost_code: {provider: ollama, model: "minimax-m2:cloud"}
  aggregator: {provider: ollama, model: "glm-4.6:cloud"}
  vision: {provider: ollama, model: "qwen3-vl:235b-cloud"}
  vision_thinking: {provider: ollama, model: "qwen3-vl:235b-instruct-cloud"}
router:
  failure_threshold: 3
  fanout: 3
`

func writeConfig(t *testing.T, yaml string) string {
	t.Helper()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(yaml), 0o644))
	return cfgPath
}

func TestLoadConfigFromFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)
	require.Equal(t, "deepseek-v3.1:671b-cloud", cfg.Experts["reasoning"].Model)
	require.Equal(t, 3, cfg.Router.FailureThreshold)
	require.Equal(t, ":8000", cfg.Server.Addr)
}

func TestEnvOverrides(t *testing.T) {
	cfgPath := writeConfig(t, validYAML)

	t.Setenv("MOEGATE_ROUTER_FANOUT", "5")
	cfg, err := Load(cfgPath)
	require.NoError(t, err)
	require.Equal(t, 5, cfg.Router.Fanout)
}

func TestValidateFailsOnMissingRole(t *testing.T) {
	yaml := `
providers:
  ollama:
    type: ollama
experts:
  fallback: {provider: ollama, model: "gpt-oss:20b-cloud"}
`
	_, err := Load(writeConfig(t, yaml))
	require.Error(t, err)
	require.Contains(t, err.Error(), "must be configured")
}

func TestValidateFailsOnUnknownProvider(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	e := cfg.Experts["code"]
	e.Provider = "missing"
	cfg.Experts["code"] = e
	require.Error(t, cfg.Validate())
}

func TestValidateFailsOnSelfBackup(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	e := cfg.Experts["code"]
	e.Backups = []string{"code"}
	cfg.Experts["code"] = e
	require.Error(t, cfg.Validate())
}

func TestValidateFailsOnBadThreshold(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	cfg.Router.FailureThreshold = 0
	require.Error(t, cfg.Validate())
}

func TestExpertBindings(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	bindings, overrides := cfg.ExpertBindings()
	require.Len(t, bindings, 9)
	require.Empty(t, overrides)
}
