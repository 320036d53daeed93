package config

// Config represents the full application configuration.
type Config struct {
	Advisory      AdvisoryConfig      `yaml:"advisory"`
	Sonar         SonarConfig         `yaml:"sonar"`
	GitHub        GitHubConfig        `yaml:"github"`
	Git           GitConfig           `yaml:"git"`
	Exclude       ExcludeConfig       `yaml:"exclude"`
	HTTP          HTTPConfig          `yaml:"http"`
	Concurrency   ConcurrencyConfig   `yaml:"concurrency"`
	Output        OutputConfig        `yaml:"output"`
	Store         StoreConfig         `yaml:"store"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// AdvisoryConfig configures the LLM advisory source.
type AdvisoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Model   string `yaml:"model"`
	APIKey  string `yaml:"apiKey"`
	BaseURL string `yaml:"baseURL"`

	// MaxPayloadTokens caps the estimated token size of a single
	// advisory request payload.
	MaxPayloadTokens int `yaml:"maxPayloadTokens"`
}

// SonarConfig configures the static analysis scanner source.
type SonarConfig struct {
	Enabled      bool   `yaml:"enabled"`
	HostURL      string `yaml:"hostURL"`
	Token        string `yaml:"token"`
	ProjectKey   string `yaml:"projectKey"`
	Organization string `yaml:"organization"`

	// RunScanner controls whether the CLI invokes sonar-scanner itself
	// or assumes an analysis was already submitted.
	RunScanner   string `yaml:"runScanner"`
	PollInterval string `yaml:"pollInterval"`
	PollAttempts int    `yaml:"pollAttempts"`
}

// GitHubConfig configures event discovery and comment posting.
type GitHubConfig struct {
	Token       string `yaml:"token"`
	Repository  string `yaml:"repository"`
	APIURL      string `yaml:"apiURL"`
	PostInline  bool   `yaml:"postInline"`
	PostSummary bool   `yaml:"postSummary"`
}

// GitConfig configures the local diff engine.
type GitConfig struct {
	RepositoryDir string `yaml:"repositoryDir"`
	BaseRef       string `yaml:"baseRef"`
	HeadRef       string `yaml:"headRef"`
}

// ExcludeConfig lists gitignore-style globs for files the advisory
// source should never see.
type ExcludeConfig struct {
	Globs []string `yaml:"globs"`
}

// HTTPConfig holds global HTTP client settings.
type HTTPConfig struct {
	Timeout           string  `yaml:"timeout"`
	MaxRetries        int     `yaml:"maxRetries"`
	InitialBackoff    string  `yaml:"initialBackoff"`
	MaxBackoff        string  `yaml:"maxBackoff"`
	BackoffMultiplier float64 `yaml:"backoffMultiplier"`
}

// ConcurrencyConfig bounds parallel advisory requests.
type ConcurrencyConfig struct {
	MaxParallelRequests int `yaml:"maxParallelRequests"`
}

type OutputConfig struct {
	Directory string `yaml:"directory"`
}

// StoreConfig configures the run history database.
type StoreConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// ObservabilityConfig configures logging.
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig configures structured log output.
type LoggingConfig struct {
	Level         string `yaml:"level"`  // debug, info, warn, error
	Format        string `yaml:"format"` // json, human, auto
	RedactSecrets bool   `yaml:"redactSecrets"`
}

// Merge combines multiple configuration instances, prioritising the latter ones.
func Merge(configs ...Config) Config {
	result := Config{}
	for _, cfg := range configs {
		result = merge(result, cfg)
	}
	return result
}

func merge(base, overlay Config) Config {
	result := base

	result.Advisory = chooseAdvisory(base.Advisory, overlay.Advisory)
	result.Sonar = chooseSonar(base.Sonar, overlay.Sonar)
	result.GitHub = chooseGitHub(base.GitHub, overlay.GitHub)
	result.Git = chooseGit(base.Git, overlay.Git)
	result.Exclude = chooseExclude(base.Exclude, overlay.Exclude)
	result.HTTP = chooseHTTP(base.HTTP, overlay.HTTP)
	result.Concurrency = chooseConcurrency(base.Concurrency, overlay.Concurrency)
	result.Output = chooseOutput(base.Output, overlay.Output)
	result.Store = chooseStore(base.Store, overlay.Store)
	result.Observability = chooseObservability(base.Observability, overlay.Observability)

	return result
}

func chooseAdvisory(base, overlay AdvisoryConfig) AdvisoryConfig {
	if overlay.Enabled || overlay.Model != "" || overlay.APIKey != "" || overlay.BaseURL != "" || overlay.MaxPayloadTokens != 0 {
		return overlay
	}
	return base
}

func chooseSonar(base, overlay SonarConfig) SonarConfig {
	if overlay.Enabled || overlay.HostURL != "" || overlay.Token != "" || overlay.ProjectKey != "" || overlay.Organization != "" || overlay.RunScanner != "" || overlay.PollInterval != "" || overlay.PollAttempts != 0 {
		return overlay
	}
	return base
}

func chooseGitHub(base, overlay GitHubConfig) GitHubConfig {
	if overlay.Token != "" || overlay.Repository != "" || overlay.APIURL != "" || overlay.PostInline || overlay.PostSummary {
		return overlay
	}
	return base
}

func chooseGit(base, overlay GitConfig) GitConfig {
	if overlay.RepositoryDir != "" || overlay.BaseRef != "" || overlay.HeadRef != "" {
		return overlay
	}
	return base
}

func chooseExclude(base, overlay ExcludeConfig) ExcludeConfig {
	if len(overlay.Globs) > 0 {
		return overlay
	}
	return base
}

func chooseHTTP(base, overlay HTTPConfig) HTTPConfig {
	if overlay.Timeout != "" || overlay.MaxRetries != 0 || overlay.InitialBackoff != "" || overlay.MaxBackoff != "" || overlay.BackoffMultiplier != 0 {
		return overlay
	}
	return base
}

func chooseConcurrency(base, overlay ConcurrencyConfig) ConcurrencyConfig {
	if overlay.MaxParallelRequests != 0 {
		return overlay
	}
	return base
}

func chooseOutput(base, overlay OutputConfig) OutputConfig {
	if overlay.Directory != "" {
		return overlay
	}
	return base
}

func chooseStore(base, overlay StoreConfig) StoreConfig {
	if overlay.Enabled || overlay.Path != "" {
		return overlay
	}
	return base
}

func chooseObservability(base, overlay ObservabilityConfig) ObservabilityConfig {
	result := base
	if overlay.Logging.Level != "" || overlay.Logging.Format != "" || overlay.Logging.RedactSecrets {
		result.Logging = overlay.Logging
	}
	return result
}
