package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/viper"
)

// LoaderOptions describes how configuration should be discovered.
type LoaderOptions struct {
	ConfigPaths []string
	FileName    string
	EnvPrefix   string
}

// Load returns the merged configuration from files and environment
// variables. The first config file found in ConfigPaths is the primary
// layer, resolved together with defaults and environment variables.
// Files found in later search paths layer underneath via Merge: they
// supply values the primary layer leaves unset, which is how a user's
// global config contributes credentials to a repo-local one.
func Load(opts LoaderOptions) (Config, error) {
	v := viper.New()

	name := opts.FileName
	if name == "" {
		name = "prreview"
	}

	files := locateConfigFiles(name, opts.ConfigPaths)
	if len(files) > 0 {
		v.SetConfigFile(files[0])
	} else {
		v.SetConfigName(name)
	}

	prefix := opts.EnvPrefix
	if prefix == "" {
		prefix = "PRR"
	}
	v.SetEnvPrefix(prefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AllowEmptyEnv(true)

	setDefaults(v)

	if len(files) > 0 {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", files[0], err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	layers := make([]Config, 0, len(files))
	for i := len(files) - 1; i >= 1; i-- {
		layer, err := readConfigFile(files[i])
		if err != nil {
			return Config{}, err
		}
		layers = append(layers, layer)
	}
	cfg = Merge(append(layers, cfg)...)

	return expandEnvVars(cfg), nil
}

// readConfigFile parses a single config file with no defaults or
// environment resolution, so unset fields stay zero for Merge.
func readConfigFile(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config %s: %w", path, err)
	}
	return cfg, nil
}

// expandEnvVars expands ${VAR} and $VAR syntax in configuration strings,
// so credentials can be referenced from the environment in the YAML file.
func expandEnvVars(cfg Config) Config {
	cfg.Advisory.APIKey = expandEnvString(cfg.Advisory.APIKey)
	cfg.Advisory.Model = expandEnvString(cfg.Advisory.Model)
	cfg.Advisory.BaseURL = expandEnvString(cfg.Advisory.BaseURL)

	cfg.Sonar.HostURL = expandEnvString(cfg.Sonar.HostURL)
	cfg.Sonar.Token = expandEnvString(cfg.Sonar.Token)
	cfg.Sonar.ProjectKey = expandEnvString(cfg.Sonar.ProjectKey)
	cfg.Sonar.Organization = expandEnvString(cfg.Sonar.Organization)

	cfg.GitHub.Token = expandEnvString(cfg.GitHub.Token)
	cfg.GitHub.Repository = expandEnvString(cfg.GitHub.Repository)
	cfg.GitHub.APIURL = expandEnvString(cfg.GitHub.APIURL)

	cfg.Git.RepositoryDir = expandEnvString(cfg.Git.RepositoryDir)
	cfg.Git.BaseRef = expandEnvString(cfg.Git.BaseRef)
	cfg.Git.HeadRef = expandEnvString(cfg.Git.HeadRef)

	cfg.Exclude.Globs = expandEnvStringSlice(cfg.Exclude.Globs)

	cfg.HTTP.Timeout = expandEnvString(cfg.HTTP.Timeout)
	cfg.HTTP.InitialBackoff = expandEnvString(cfg.HTTP.InitialBackoff)
	cfg.HTTP.MaxBackoff = expandEnvString(cfg.HTTP.MaxBackoff)

	cfg.Output.Directory = expandEnvString(cfg.Output.Directory)
	cfg.Store.Path = expandEnvString(cfg.Store.Path)

	cfg.Observability.Logging.Level = expandEnvString(cfg.Observability.Logging.Level)
	cfg.Observability.Logging.Format = expandEnvString(cfg.Observability.Logging.Format)

	return cfg
}

// expandEnvString replaces ${VAR} or $VAR with environment variable values.
func expandEnvString(s string) string {
	if s == "" {
		return s
	}

	re := regexp.MustCompile(`\$\{([A-Z_][A-Z0-9_]*)\}`)
	s = re.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match
	})

	re = regexp.MustCompile(`\$([A-Z_][A-Z0-9_]*)`)
	s = re.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[1:]
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match
	})

	return s
}

func expandEnvStringSlice(slice []string) []string {
	if len(slice) == 0 {
		return slice
	}
	result := make([]string, len(slice))
	for i, s := range slice {
		result[i] = expandEnvString(s)
	}
	return result
}

// locateConfigFiles returns every config file found in the search
// paths, highest precedence first.
func locateConfigFiles(name string, paths []string) []string {
	searchPaths := append([]string{}, paths...)
	searchPaths = append(searchPaths, ".")

	var files []string
	seen := make(map[string]bool)
	for _, dir := range searchPaths {
		if dir == "" {
			continue
		}
		candidate := filepath.Join(dir, name+".yaml")
		if seen[candidate] {
			continue
		}
		seen[candidate] = true
		info, err := os.Stat(candidate)
		if err == nil && !info.IsDir() {
			files = append(files, candidate)
		}
	}
	return files
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("output.directory", "out")

	// Advisory defaults
	v.SetDefault("advisory.enabled", true)
	v.SetDefault("advisory.model", "gpt-4o-mini")
	v.SetDefault("advisory.maxPayloadTokens", 6000)

	// Sonar defaults
	v.SetDefault("sonar.enabled", false)
	v.SetDefault("sonar.hostURL", "https://sonarcloud.io")
	v.SetDefault("sonar.runScanner", "auto")
	v.SetDefault("sonar.pollInterval", "5s")
	v.SetDefault("sonar.pollAttempts", 60)

	// GitHub defaults
	v.SetDefault("github.apiURL", "https://api.github.com")
	v.SetDefault("github.postInline", false)
	v.SetDefault("github.postSummary", false)

	// Git defaults
	v.SetDefault("git.repositoryDir", ".")

	// HTTP defaults
	v.SetDefault("http.timeout", "60s")
	v.SetDefault("http.maxRetries", 3)
	v.SetDefault("http.initialBackoff", "2s")
	v.SetDefault("http.maxBackoff", "32s")
	v.SetDefault("http.backoffMultiplier", 2.0)

	// Concurrency defaults
	v.SetDefault("concurrency.maxParallelRequests", 4)

	// Store defaults
	v.SetDefault("store.enabled", false)
	v.SetDefault("store.path", defaultStorePath())

	// Observability defaults
	v.SetDefault("observability.logging.level", "info")
	v.SetDefault("observability.logging.format", "auto")
	v.SetDefault("observability.logging.redactSecrets", true)
}

func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./prreview.db"
	}
	return filepath.Join(home, ".config", "prreview", "history.db")
}
