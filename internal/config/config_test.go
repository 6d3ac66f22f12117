package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"redcell/internal/types"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const minimalYAML = `
target:
  name: staging-bot
  kind: api
  endpoint: https://llm.internal/chat
plugins: [pii, sql-injection]
strategies: [jailbreak]
`

func TestLoadYAMLWithDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "run.yaml", minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, "staging-bot", cfg.Target.Name)
	assert.Equal(t, []string{"pii", "sql-injection"}, cfg.Plugins)
	assert.Equal(t, DefaultNumTests, cfg.NumTests)
	assert.Equal(t, DefaultMaxConcurrent, cfg.MaxConcurrent)
	assert.Equal(t, DefaultOutputDir, cfg.Output.Dir)
	assert.Equal(t, []string{"json"}, cfg.Output.Formats)
}

func TestLoadExpandsEnvironment(t *testing.T) {
	t.Setenv("REDCELL_TEST_TOKEN", "tok-123")
	path := writeConfig(t, "run.yaml", `
target:
  name: staging-bot
  kind: api
  endpoint: https://llm.internal/chat
  headers:
    Authorization: Bearer ${REDCELL_TEST_TOKEN}
plugins: [pii]
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok-123", cfg.Target.Headers["Authorization"])
}

func TestLoadJSON(t *testing.T) {
	path := writeConfig(t, "run.json", `{
  "target": {"name": "t", "kind": "api", "endpoint": "https://x/chat"},
  "plugins": ["hallucination"],
  "num_tests": 3,
  "max_concurrent": 2
}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.NumTests)
	assert.Equal(t, 2, cfg.MaxConcurrent)
}

func TestLoadCompliancePresetMergesWithoutDuplicates(t *testing.T) {
	path := writeConfig(t, "run.yaml", `
target:
  name: t
  kind: api
  endpoint: https://x/chat
compliance: owasp-llm-top-10
plugins: [pii, sql-injection]
strategies: [rot13]
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Contains(t, cfg.Plugins, "prompt-injection")
	assert.Contains(t, cfg.Plugins, "sql-injection")
	counts := map[string]int{}
	for _, p := range cfg.Plugins {
		counts[p]++
	}
	assert.Equal(t, 1, counts["pii"], "preset and explicit pii must merge to one entry")

	assert.Equal(t, []string{"jailbreak", "prompt-injection", "base64", "rot13"}, cfg.Strategies)
}

func TestLoadUnknownPreset(t *testing.T) {
	path := writeConfig(t, "run.yaml", `
target:
  name: t
  kind: api
  endpoint: https://x/chat
compliance: soc2
plugins: [pii]
`)
	_, err := Load(path)
	assert.Equal(t, types.CodeConfigInvalid, types.CodeOf(err))
}

func TestLoadValidation(t *testing.T) {
	noPlugins := writeConfig(t, "run.yaml", `
target:
  name: t
  kind: api
  endpoint: https://x/chat
`)
	_, err := Load(noPlugins)
	assert.Equal(t, types.CodeConfigInvalid, types.CodeOf(err))

	noEndpoint := writeConfig(t, "run.yaml", `
target:
  name: t
  kind: api
plugins: [pii]
`)
	_, err = Load(noEndpoint)
	assert.Equal(t, types.CodeConfigInvalid, types.CodeOf(err))
}

func TestPresetsCatalog(t *testing.T) {
	ps := Presets()
	require.Len(t, ps, 5)
	names := make([]string, len(ps))
	for i, p := range ps {
		names[i] = p.Name
	}
	assert.Equal(t, []string{
		"eu-ai-act", "mitre-atlas", "nist-ai-rmf",
		"owasp-api-top-10", "owasp-llm-top-10",
	}, names)

	p, ok := LookupPreset("nist-ai-rmf")
	require.True(t, ok)
	assert.Contains(t, p.Plugins, "harmful-content")
}
