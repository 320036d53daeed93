package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(LoaderOptions{ConfigPaths: []string{t.TempDir()}})
	require.NoError(t, err)

	assert.True(t, cfg.Advisory.Enabled)
	assert.Equal(t, "gpt-4o-mini", cfg.Advisory.Model)
	assert.Equal(t, 6000, cfg.Advisory.MaxPayloadTokens)
	assert.False(t, cfg.Sonar.Enabled)
	assert.Equal(t, "https://sonarcloud.io", cfg.Sonar.HostURL)
	assert.Equal(t, "https://api.github.com", cfg.GitHub.APIURL)
	assert.Equal(t, ".", cfg.Git.RepositoryDir)
	assert.Equal(t, "60s", cfg.HTTP.Timeout)
	assert.Equal(t, 4, cfg.Concurrency.MaxParallelRequests)
	assert.Equal(t, "out", cfg.Output.Directory)
	assert.Equal(t, "info", cfg.Observability.Logging.Level)
	assert.True(t, cfg.Observability.Logging.RedactSecrets)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	content := `
advisory:
  enabled: true
  model: gpt-4o
  maxPayloadTokens: 4000
sonar:
  enabled: true
  projectKey: octo_widgets
  organization: octo
exclude:
  globs:
    - "*.sum"
    - "package-lock.json"
concurrency:
  maxParallelRequests: 8
output:
  directory: reports
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "prreview.yaml"), []byte(content), 0o644))

	cfg, err := Load(LoaderOptions{ConfigPaths: []string{dir}})
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o", cfg.Advisory.Model)
	assert.Equal(t, 4000, cfg.Advisory.MaxPayloadTokens)
	assert.True(t, cfg.Sonar.Enabled)
	assert.Equal(t, "octo_widgets", cfg.Sonar.ProjectKey)
	assert.Equal(t, []string{"*.sum", "package-lock.json"}, cfg.Exclude.Globs)
	assert.Equal(t, 8, cfg.Concurrency.MaxParallelRequests)
	assert.Equal(t, "reports", cfg.Output.Directory)

	// Values absent from the file keep defaults.
	assert.Equal(t, "5s", cfg.Sonar.PollInterval)
}

func TestLoadLayersGlobalConfigUnderLocal(t *testing.T) {
	local := t.TempDir()
	global := t.TempDir()

	localContent := `
advisory:
  model: gpt-4o
`
	globalContent := `
advisory:
  apiKey: sk-from-global
  model: gpt-4o-mini-global
sonar:
  token: sq-from-global
  organization: octo
`
	require.NoError(t, os.WriteFile(filepath.Join(local, "prreview.yaml"), []byte(localContent), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(global, "prreview.yaml"), []byte(globalContent), 0o644))

	cfg, err := Load(LoaderOptions{ConfigPaths: []string{local, global}})
	require.NoError(t, err)

	// The local file wins where both set a value.
	assert.Equal(t, "gpt-4o", cfg.Advisory.Model)
	// The global file fills fields the local layer leaves unset.
	assert.Equal(t, "sk-from-global", cfg.Advisory.APIKey)
	assert.Equal(t, "sq-from-global", cfg.Sonar.Token)
	assert.Equal(t, "octo", cfg.Sonar.Organization)
	// Defaults remain for everything neither file sets.
	assert.Equal(t, "5s", cfg.Sonar.PollInterval)
}

func TestLoadExpandsEnvVars(t *testing.T) {
	t.Setenv("TEST_OPENAI_KEY", "sk-expanded")
	t.Setenv("TEST_SONAR_TOKEN", "sq-expanded")

	dir := t.TempDir()
	content := `
advisory:
  apiKey: ${TEST_OPENAI_KEY}
sonar:
  token: $TEST_SONAR_TOKEN
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "prreview.yaml"), []byte(content), 0o644))

	cfg, err := Load(LoaderOptions{ConfigPaths: []string{dir}})
	require.NoError(t, err)

	assert.Equal(t, "sk-expanded", cfg.Advisory.APIKey)
	assert.Equal(t, "sq-expanded", cfg.Sonar.Token)
}

func TestLoadKeepsUnresolvedPlaceholders(t *testing.T) {
	dir := t.TempDir()
	content := `
advisory:
  apiKey: ${DEFINITELY_NOT_SET_ANYWHERE}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "prreview.yaml"), []byte(content), 0o644))

	cfg, err := Load(LoaderOptions{ConfigPaths: []string{dir}})
	require.NoError(t, err)
	assert.Equal(t, "${DEFINITELY_NOT_SET_ANYWHERE}", cfg.Advisory.APIKey)
}

func TestLoadMalformedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "prreview.yaml"), []byte("advisory: [not: valid"), 0o644))

	_, err := Load(LoaderOptions{ConfigPaths: []string{dir}})
	require.Error(t, err)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("PRR_OUTPUT_DIRECTORY", "env-out")

	cfg, err := Load(LoaderOptions{ConfigPaths: []string{t.TempDir()}})
	require.NoError(t, err)
	assert.Equal(t, "env-out", cfg.Output.Directory)
}
