package app_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qfrontier/qfrontier/internal/app"
	"github.com/qfrontier/qfrontier/internal/config"
)

// memoryConfig returns a config whose providers need no external
// services, so Build can run in tests.
func memoryConfig() config.Config {
	return config.Config{
		Server: config.ServerConfig{Port: 8080},
		API:    config.APIConfig{Enabled: true},
		Crawler: config.CrawlerConfig{
			Seeds:              []string{"https://example.com"},
			Concurrency:        2,
			UserAgent:          "test-agent",
			MaxDepth:           2,
			DomainQPS:          10,
			DomainBurst:        1,
			StatsInterval:      10,
			CheckpointInterval: 600,
		},
		RL:      config.RLConfig{Gamma: 0.5, LearnRate: 0.1},
		Fetcher: config.FetcherConfig{TimeoutSeconds: 5},
		Storage: config.StorageConfig{Provider: "memory"},
		Publish: config.PublishConfig{Provider: "memory", Topic: "pages"},
		Logging: config.LoggingConfig{Development: true},
	}
}

func TestBuildWithMemoryProviders(t *testing.T) {
	a, err := app.Build(context.Background(), memoryConfig())
	require.NoError(t, err)
	require.NotNil(t, a)
	a.Close()
}

func TestBuildWithPublishingDisabled(t *testing.T) {
	cfg := memoryConfig()
	cfg.Publish.Provider = "noop"
	a, err := app.Build(context.Background(), cfg)
	require.NoError(t, err)
	a.Close()
}

func TestBuildRequiresSeeds(t *testing.T) {
	cfg := memoryConfig()
	cfg.Crawler.Seeds = nil
	_, err := app.Build(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "seed")
}

func TestBuildRejectsUnknownStorageProvider(t *testing.T) {
	cfg := memoryConfig()
	cfg.Storage.Provider = "s3"
	_, err := app.Build(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported storage provider")
}

func TestBuildRejectsBadSeedURL(t *testing.T) {
	cfg := memoryConfig()
	cfg.Crawler.Seeds = []string{"::not-a-url"}
	_, err := app.Build(context.Background(), cfg)
	require.Error(t, err)
}
