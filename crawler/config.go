package crawler

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"lukechampine.com/blake3"

	"github.com/corvidwing/webreach/urlutil"
)

// Config holds the immutable configuration for a single crawl run. Build it
// with DefaultConfig and adjust fields before passing it to New; the engine
// never mutates it after construction.
type Config struct {
	BaseURL          string        // Seed URL; required
	AllowedDomain    string        // Restrict enqueue to this host and subdomains; defaults to host of BaseURL
	MaxDepth         int           // Maximum enqueue depth (0 = seed only)
	MaxWorkers       int           // Worker pool size
	RateLimit        float64       // Global requests per second
	Timeout          time.Duration // Per-request timeout (also bounds robots and sitemap fetches)
	UserAgent        string        // HTTP User-Agent header
	OutputDir        string        // Destination for artifacts and checkpoint.json
	UseSitemap       bool          // Seed from the sitemap tree as well as BaseURL
	MaxSitemapURLs   int           // Cap on sitemap-derived seeds
	RespectRobotsTXT bool          // Gate child URLs by robots.txt
	ExcludePatterns  []string      // Regex deny list
	IncludePatterns  []string      // Regex allow list; empty = no whitelist
	Resume           bool          // Restore visited/results/stats from a matching checkpoint
	SaveInterval     time.Duration // Minimum wall-clock between checkpoint saves
	MemoryLimitMB    int64         // Soft heap limit for the memory watcher (0 = disabled)
	RetryPolicy      RetryPolicy   // Retry policy for transient fetch failures
}

// DefaultConfig returns a Config with the documented defaults applied.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:          baseURL,
		MaxDepth:         2,
		MaxWorkers:       20,
		RateLimit:        2.0,
		Timeout:          30 * time.Second,
		UserAgent:        "webreach/1.0 (+https://github.com/corvidwing/webreach)",
		OutputDir:        "webreach-output",
		UseSitemap:       true,
		MaxSitemapURLs:   1000,
		RespectRobotsTXT: true,
		ExcludePatterns:  append([]string(nil), urlutil.DefaultExcludePatterns...),
		SaveInterval:     30 * time.Second,
		RetryPolicy:      DefaultRetryPolicy(),
	}
}

// Profile is a named preset of crawl tuning knobs, applied on top of
// DefaultConfig before any explicit overrides.
type Profile struct {
	MaxDepth   int
	MaxWorkers int
	RateLimit  float64
	Timeout    time.Duration
}

// Profiles maps preset names to their tuning values.
var Profiles = map[string]Profile{
	"fast":   {MaxDepth: 3, MaxWorkers: 50, RateLimit: 10, Timeout: 15 * time.Second},
	"deep":   {MaxDepth: 10, MaxWorkers: 20, RateLimit: 3, Timeout: 30 * time.Second},
	"gentle": {MaxDepth: 5, MaxWorkers: 5, RateLimit: 1, Timeout: 45 * time.Second},
}

// ApplyProfile overwrites the tuning fields of c with the named preset.
// Unknown profile names return an error and leave c unchanged.
func (c *Config) ApplyProfile(name string) error {
	p, ok := Profiles[name]
	if !ok {
		return fmt.Errorf("unknown profile %q", name)
	}
	c.MaxDepth = p.MaxDepth
	c.MaxWorkers = p.MaxWorkers
	c.RateLimit = p.RateLimit
	c.Timeout = p.Timeout
	return nil
}

// Validate reports the first programmer error in the configuration. These
// are the only failures the engine treats as fatal.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL is required")
	}
	parsed, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("parse base URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("base URL must use http or https, got %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("base URL has no host")
	}
	if c.MaxWorkers < 1 {
		return fmt.Errorf("max workers must be at least 1, got %d", c.MaxWorkers)
	}
	if c.MaxDepth < 0 {
		return fmt.Errorf("max depth must be non-negative, got %d", c.MaxDepth)
	}
	if c.RateLimit <= 0 {
		return fmt.Errorf("rate limit must be positive, got %g", c.RateLimit)
	}
	return nil
}

// hashedConfig is the subset of Config that affects which URLs a crawl
// admits. Tuning knobs (workers, rate, timeout) are deliberately excluded
// so a resumed crawl may change them without invalidating the checkpoint.
type hashedConfig struct {
	BaseURL          string   `json:"base_url"`
	AllowedDomain    string   `json:"allowed_domain"`
	MaxDepth         int      `json:"max_depth"`
	UseSitemap       bool     `json:"use_sitemap"`
	RespectRobotsTXT bool     `json:"respect_robots_txt"`
	ExcludePatterns  []string `json:"exclude_patterns"`
	IncludePatterns  []string `json:"include_patterns"`
}

// Hash returns a stable hex fingerprint of the admission-relevant fields,
// used to reject checkpoint resumes across incompatible configurations.
func (c *Config) Hash() string {
	canonical, err := json.Marshal(hashedConfig{
		BaseURL:          c.BaseURL,
		AllowedDomain:    c.AllowedDomain,
		MaxDepth:         c.MaxDepth,
		UseSitemap:       c.UseSitemap,
		RespectRobotsTXT: c.RespectRobotsTXT,
		ExcludePatterns:  c.ExcludePatterns,
		IncludePatterns:  c.IncludePatterns,
	})
	if err != nil {
		// Marshalling a struct of strings, bools and ints cannot fail.
		panic(fmt.Sprintf("marshal config fingerprint: %v", err))
	}
	sum := blake3.Sum256(canonical)
	return hex.EncodeToString(sum[:])
}
