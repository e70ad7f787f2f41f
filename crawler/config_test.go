package crawler_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvidwing/webreach/crawler"
)

func TestDefaultConfig(t *testing.T) {
	cfg := crawler.DefaultConfig("https://example.com")

	assert.Equal(t, "https://example.com", cfg.BaseURL)
	assert.Equal(t, 2, cfg.MaxDepth)
	assert.Equal(t, 20, cfg.MaxWorkers)
	assert.Equal(t, 2.0, cfg.RateLimit)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.True(t, cfg.UseSitemap)
	assert.Equal(t, 1000, cfg.MaxSitemapURLs)
	assert.True(t, cfg.RespectRobotsTXT)
	assert.NotEmpty(t, cfg.ExcludePatterns)
	assert.Empty(t, cfg.IncludePatterns)
}

func TestApplyProfile(t *testing.T) {
	tests := []struct {
		name    string
		workers int
		depth   int
		rate    float64
	}{
		{"fast", 50, 3, 10},
		{"deep", 20, 10, 3},
		{"gentle", 5, 5, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := crawler.DefaultConfig("https://example.com")
			require.NoError(t, cfg.ApplyProfile(tt.name))
			assert.Equal(t, tt.workers, cfg.MaxWorkers)
			assert.Equal(t, tt.depth, cfg.MaxDepth)
			assert.Equal(t, tt.rate, cfg.RateLimit)
		})
	}
}

func TestApplyProfileUnknown(t *testing.T) {
	cfg := crawler.DefaultConfig("https://example.com")
	assert.Error(t, cfg.ApplyProfile("turbo"))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*crawler.Config)
		wantErr bool
	}{
		{"valid defaults", func(c *crawler.Config) {}, false},
		{"empty base URL", func(c *crawler.Config) { c.BaseURL = "" }, true},
		{"non-http scheme", func(c *crawler.Config) { c.BaseURL = "ftp://example.com" }, true},
		{"no host", func(c *crawler.Config) { c.BaseURL = "http://" }, true},
		{"zero workers", func(c *crawler.Config) { c.MaxWorkers = 0 }, true},
		{"negative depth", func(c *crawler.Config) { c.MaxDepth = -1 }, true},
		{"zero rate", func(c *crawler.Config) { c.RateLimit = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := crawler.DefaultConfig("https://example.com")
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestHashStableAndSensitive(t *testing.T) {
	a := crawler.DefaultConfig("https://example.com")
	b := crawler.DefaultConfig("https://example.com")
	require.Equal(t, a.Hash(), b.Hash(), "identical configs must hash identically")

	// Tuning knobs do not affect the fingerprint.
	b.MaxWorkers = 50
	b.RateLimit = 99
	b.Timeout = time.Minute
	assert.Equal(t, a.Hash(), b.Hash())

	// Admission-relevant fields do.
	c := crawler.DefaultConfig("https://example.com")
	c.MaxDepth = 7
	assert.NotEqual(t, a.Hash(), c.Hash())

	d := crawler.DefaultConfig("https://example.com")
	d.IncludePatterns = []string{`^https://example\.com/docs/`}
	assert.NotEqual(t, a.Hash(), d.Hash())
}
