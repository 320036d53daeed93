package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/NumeralTiger/AI-PR-Reviewer/internal/adapter/cli"
	"github.com/NumeralTiger/AI-PR-Reviewer/internal/adapter/git"
	githubadapter "github.com/NumeralTiger/AI-PR-Reviewer/internal/adapter/github"
	"github.com/NumeralTiger/AI-PR-Reviewer/internal/adapter/httpx"
	"github.com/NumeralTiger/AI-PR-Reviewer/internal/adapter/llm/openai"
	"github.com/NumeralTiger/AI-PR-Reviewer/internal/adapter/observability"
	"github.com/NumeralTiger/AI-PR-Reviewer/internal/adapter/output/markdown"
	"github.com/NumeralTiger/AI-PR-Reviewer/internal/adapter/sonar"
	"github.com/NumeralTiger/AI-PR-Reviewer/internal/adapter/store/sqlite"
	"github.com/NumeralTiger/AI-PR-Reviewer/internal/config"
	"github.com/NumeralTiger/AI-PR-Reviewer/internal/usecase/request"
	"github.com/NumeralTiger/AI-PR-Reviewer/internal/usecase/review"
	"github.com/NumeralTiger/AI-PR-Reviewer/internal/version"
)

var (
	_ review.Advisor      = (*openai.Advisor)(nil)
	_ review.Scanner      = (*sonar.Client)(nil)
	_ review.DiffProvider = (*git.Engine)(nil)
	_ review.Publisher    = (*githubadapter.Publisher)(nil)
	_ review.Recorder     = (*sqlite.Recorder)(nil)
)

func main() {
	if err := run(); err != nil {
		log.Println(err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(config.LoaderOptions{
		ConfigPaths: defaultConfigPaths(),
		FileName:    "prreview",
		EnvPrefix:   "PRR",
	})
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}

	logger := observability.NewLogger(
		cfg.Observability.Logging.Level,
		cfg.Observability.Logging.Format,
		cfg.Observability.Logging.RedactSecrets,
	)
	pipelineLogger := observability.NewPipelineLogger(logger)

	retry := buildRetryConfig(cfg.HTTP)

	repoDir := cfg.Git.RepositoryDir
	if repoDir == "" {
		repoDir = "."
	}
	gitEngine := git.NewEngine(repoDir)

	advisor := buildAdvisor(cfg, retry)
	scanner := buildScanner(cfg, retry)

	builder := request.NewBuilder(cfg.Advisory.MaxPayloadTokens, cfg.Exclude.Globs)

	orchestrator := review.NewOrchestrator(review.Options{
		Advisor:     advisor,
		Scanner:     scanner,
		Builder:     builder,
		Logger:      pipelineLogger,
		MaxParallel: cfg.Concurrency.MaxParallelRequests,
		ExecScanner: cfg.Sonar.RunScanner != "never",
	})

	nowFunc := func() string {
		return time.Now().UTC().Format("20060102T150405Z")
	}
	writer := markdown.NewWriter(nowFunc)

	publisher, err := buildPublisher(ctx, cfg, gitEngine, logger)
	if err != nil {
		return err
	}

	recorder, closeStore := buildRecorder(cfg, logger)
	if closeStore != nil {
		defer closeStore()
	}

	service := review.NewService(review.ServiceOptions{
		Orchestrator: orchestrator,
		Diffs:        gitEngine,
		Writer:       writer,
		Publisher:    publisher,
		Recorder:     recorder,
		Logger:       pipelineLogger,
	})

	root := cli.NewRootCommand(cli.Dependencies{
		Reviewer:      service,
		LoadEvent:     githubadapter.LoadEventFromEnv,
		DefaultOutput: cfg.Output.Directory,
		DefaultBase:   cfg.Git.BaseRef,
		DefaultHead:   cfg.Git.HeadRef,
		Version:       version.Value(),
	})

	if err := root.ExecuteContext(ctx); err != nil {
		if errors.Is(err, cli.ErrVersionRequested) {
			return nil
		}
		return fmt.Errorf("command failed: %w", err)
	}
	return nil
}

// buildAdvisor constructs the LLM advisory source, or nil when it is
// disabled or has no credentials.
func buildAdvisor(cfg config.Config, retry httpx.RetryConfig) review.Advisor {
	if !cfg.Advisory.Enabled {
		return nil
	}

	apiKey := cfg.Advisory.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		log.Println("advisory: no API key configured, source disabled")
		return nil
	}

	client := openai.NewHTTPClient(apiKey, cfg.Advisory.Model)
	client.SetRetryConfig(retry)
	if cfg.Advisory.BaseURL != "" {
		client.SetBaseURL(cfg.Advisory.BaseURL)
	}
	if timeout, err := time.ParseDuration(cfg.HTTP.Timeout); err == nil {
		client.SetTimeout(timeout)
	}
	return openai.NewAdvisor(client)
}

// buildScanner constructs the static analysis source, or nil when it
// is disabled or not fully configured.
func buildScanner(cfg config.Config, retry httpx.RetryConfig) review.Scanner {
	if !cfg.Sonar.Enabled {
		return nil
	}

	token := cfg.Sonar.Token
	if token == "" {
		token = os.Getenv("SONAR_TOKEN")
	}
	if token == "" || cfg.Sonar.ProjectKey == "" {
		log.Println("scanner: token or project key missing, source disabled")
		return nil
	}

	pollInterval, err := time.ParseDuration(cfg.Sonar.PollInterval)
	if err != nil {
		pollInterval = 0
	}

	client := sonar.NewClient(sonar.Config{
		HostURL:      cfg.Sonar.HostURL,
		Token:        token,
		ProjectKey:   cfg.Sonar.ProjectKey,
		Organization: cfg.Sonar.Organization,
		PollInterval: pollInterval,
		PollAttempts: cfg.Sonar.PollAttempts,
	})
	client.SetRetryConfig(retry)
	return client
}

// buildPublisher constructs the comment poster, or nil when posting is
// not configured. Repository and head SHA fall back to the CI event.
func buildPublisher(ctx context.Context, cfg config.Config, engine *git.Engine, logger httpx.Logger) (review.Publisher, error) {
	if !cfg.GitHub.PostInline && !cfg.GitHub.PostSummary {
		return nil, nil
	}

	token := cfg.GitHub.Token
	if token == "" {
		token = os.Getenv("GITHUB_TOKEN")
	}
	if token == "" {
		return nil, fmt.Errorf("posting enabled but no GitHub token configured")
	}

	repository := cfg.GitHub.Repository
	commitSHA := ""
	if event, err := githubadapter.LoadEventFromEnv(); err == nil {
		if repository == "" {
			repository = event.RepoFullName
		}
		commitSHA = event.HeadSHA
	}
	if repository == "" {
		return nil, fmt.Errorf("posting enabled but repository is unknown; set github.repository")
	}
	if commitSHA == "" {
		head := cfg.Git.HeadRef
		if head == "" {
			head = "HEAD"
		}
		sha, err := engine.ResolveSHA(ctx, head)
		if err != nil {
			return nil, fmt.Errorf("posting enabled but head commit unknown: %w", err)
		}
		commitSHA = sha
	}

	client := githubadapter.NewClient(token, repository, commitSHA)
	client.SetLogger(logger)
	if cfg.GitHub.APIURL != "" {
		client.SetAPIURL(cfg.GitHub.APIURL)
	}
	return githubadapter.NewPublisher(client, cfg.GitHub.PostInline, cfg.GitHub.PostSummary), nil
}

// buildRecorder opens the run history store when enabled. Failures are
// logged and persistence is skipped, never fatal.
func buildRecorder(cfg config.Config, logger httpx.Logger) (review.Recorder, func()) {
	if !cfg.Store.Enabled {
		return nil, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0o755); err != nil {
		log.Printf("warning: failed to create store directory: %v", err)
		return nil, nil
	}

	store, err := sqlite.NewStore(cfg.Store.Path)
	if err != nil {
		log.Printf("warning: failed to initialize store: %v", err)
		return nil, nil
	}

	repository := cfg.GitHub.Repository
	if repository == "" {
		repository = repositoryName(cfg.Git.RepositoryDir)
	}
	return sqlite.NewRecorder(store, repository), func() { _ = store.Close() }
}

func buildRetryConfig(cfg config.HTTPConfig) httpx.RetryConfig {
	retry := httpx.DefaultRetryConfig()
	if cfg.MaxRetries > 0 {
		retry.MaxRetries = cfg.MaxRetries
	}
	if d, err := time.ParseDuration(cfg.InitialBackoff); err == nil && d > 0 {
		retry.InitialBackoff = d
	}
	if d, err := time.ParseDuration(cfg.MaxBackoff); err == nil && d > 0 {
		retry.MaxBackoff = d
	}
	if cfg.BackoffMultiplier > 0 {
		retry.Multiplier = cfg.BackoffMultiplier
	}
	return retry
}

func repositoryName(repoDir string) string {
	if repoDir == "" {
		repoDir = "."
	}
	abs, err := filepath.Abs(repoDir)
	if err != nil {
		return "unknown"
	}
	return filepath.Base(abs)
}

func defaultConfigPaths() []string {
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "prreview"))
	}
	return paths
}
