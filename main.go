// Package main provides the webreach CLI entrypoint.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/corvidwing/webreach/crawler"
	"github.com/corvidwing/webreach/result"
	"github.com/corvidwing/webreach/tui"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "webreach <url>",
		Short: "Breadth-first web crawler with politeness constraints",
		Long: `webreach discovers, fetches and summarizes pages reachable from a seed
URL, subject to depth, domain, rate and robots.txt constraints, and emits
JSON/Markdown/HTML/CSV/link-list artifacts to an output directory.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, v, args[0])
		},
	}

	flags := cmd.Flags()
	flags.String("allowed-domain", "", "restrict crawling to this host and its subdomains (default: host of the seed URL)")
	flags.Int("max-workers", 20, "worker pool size")
	flags.Int("max-depth", 2, "maximum crawl depth")
	flags.Float64("rate-limit", 2.0, "global requests per second")
	flags.Duration("timeout", 30*time.Second, "per-request timeout")
	flags.Bool("use-sitemap", true, "seed the crawl from the site's sitemap tree")
	flags.Int("max-sitemap-urls", 1000, "cap on sitemap-derived seed URLs")
	flags.Bool("respect-robots", true, "honor robots.txt disallow rules")
	flags.StringSlice("exclude", nil, "regex deny patterns (replaces the default asset/scheme excludes)")
	flags.StringSlice("include", nil, "regex allow patterns; empty means no whitelist")
	flags.String("output-dir", "webreach-output", "destination for artifacts and checkpoint.json")
	flags.String("formats", "json,markdown", "comma-separated artifact formats: json,csv,markdown,html,links,text")
	flags.String("profile", "", "tuning preset: fast, deep or gentle")
	flags.Bool("resume", false, "resume from a compatible checkpoint in the output directory")
	flags.String("user-agent", "", "HTTP User-Agent header")
	flags.Int64("memory-limit-mb", 0, "soft heap limit in MB (0 = disabled)")
	flags.String("metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9090)")
	flags.Bool("tui", true, "show the interactive progress UI")
	flags.Bool("verbose", false, "debug-level logging")
	flags.String("config", "", "config file (default: ./webreach.yaml)")

	if err := v.BindPFlags(flags); err != nil {
		panic(fmt.Sprintf("bind flags: %v", err))
	}
	v.SetEnvPrefix("WEBREACH")
	v.AutomaticEnv()

	return cmd
}

// loadConfigFile reads an optional YAML config file into v. A missing
// default file is fine; an explicitly named file must exist.
func loadConfigFile(v *viper.Viper) error {
	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config file: %w", err)
		}
		return nil
	}

	v.SetConfigName("webreach")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config file: %w", err)
		}
	}
	return nil
}

// buildConfig resolves precedence: defaults, then profile, then every
// flag/env/config value the user set explicitly.
func buildConfig(cmd *cobra.Command, v *viper.Viper, seedURL string) (crawler.Config, error) {
	cfg := crawler.DefaultConfig(seedURL)

	if profile := v.GetString("profile"); profile != "" {
		if err := cfg.ApplyProfile(profile); err != nil {
			return cfg, err
		}
	}

	flags := cmd.Flags()
	set := func(name string) bool { return flags.Changed(name) || v.IsSet(name) }

	if set("allowed-domain") {
		cfg.AllowedDomain = v.GetString("allowed-domain")
	}
	if set("max-workers") {
		cfg.MaxWorkers = v.GetInt("max-workers")
	}
	if set("max-depth") {
		cfg.MaxDepth = v.GetInt("max-depth")
	}
	if set("rate-limit") {
		cfg.RateLimit = v.GetFloat64("rate-limit")
	}
	if set("timeout") {
		cfg.Timeout = v.GetDuration("timeout")
	}
	if set("use-sitemap") {
		cfg.UseSitemap = v.GetBool("use-sitemap")
	}
	if set("max-sitemap-urls") {
		cfg.MaxSitemapURLs = v.GetInt("max-sitemap-urls")
	}
	if set("respect-robots") {
		cfg.RespectRobotsTXT = v.GetBool("respect-robots")
	}
	if set("exclude") {
		cfg.ExcludePatterns = v.GetStringSlice("exclude")
	}
	if set("include") {
		cfg.IncludePatterns = v.GetStringSlice("include")
	}
	if set("user-agent") {
		cfg.UserAgent = v.GetString("user-agent")
	}
	cfg.OutputDir = v.GetString("output-dir")
	cfg.Resume = v.GetBool("resume")
	cfg.MemoryLimitMB = v.GetInt64("memory-limit-mb")

	return cfg, nil
}

func buildLogger(verbose, interactive bool) (*zap.Logger, error) {
	if interactive {
		// The TUI owns the terminal; logs would tear the display.
		return zap.NewNop(), nil
	}
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(cmd *cobra.Command, v *viper.Viper, seedURL string) error {
	if err := loadConfigFile(v); err != nil {
		return err
	}

	cfg, err := buildConfig(cmd, v, seedURL)
	if err != nil {
		return err
	}

	useTUI := v.GetBool("tui")
	logger, err := buildLogger(v.GetBool("verbose"), useTUI)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	opts := []crawler.Option{crawler.WithLogger(logger)}

	if addr := v.GetString("metrics-addr"); addr != "" {
		metrics := crawler.NewMetrics(prometheus.DefaultRegisterer)
		opts = append(opts, crawler.WithMetrics(metrics))
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if serveErr := http.ListenAndServe(addr, mux); serveErr != nil {
				logger.Warn("metrics server stopped", zap.Error(serveErr))
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var results *result.CrawlResults
	if useTUI {
		results, err = runWithTUI(ctx, cancel, cfg, opts)
	} else {
		results, err = runHeadless(ctx, cfg, opts)
	}
	if err != nil {
		return err
	}
	if results == nil {
		return nil
	}

	formats := result.ParseFormats(v.GetString("formats"))
	if err := result.WriteArtifacts(cfg.OutputDir, formats, results); err != nil {
		return fmt.Errorf("write artifacts: %w", err)
	}

	if !useTUI {
		result.PrintResults(os.Stdout, results)
	}
	return nil
}

func runWithTUI(ctx context.Context, cancel context.CancelFunc, cfg crawler.Config, opts []crawler.Option) (*result.CrawlResults, error) {
	progressCh := make(chan crawler.CrawlEvent, 100)
	opts = append(opts, crawler.WithProgress(progressCh))

	engine, err := crawler.New(cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("create crawler: %w", err)
	}

	model := tui.NewModel(ctx, cancel, engine, progressCh)
	program := tea.NewProgram(model)

	finalModel, err := program.Run()
	if err != nil {
		return nil, fmt.Errorf("run tui: %w", err)
	}

	return finalModel.(tui.Model).GetResults(), nil
}

func runHeadless(ctx context.Context, cfg crawler.Config, opts []crawler.Option) (*result.CrawlResults, error) {
	engine, err := crawler.New(cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("create crawler: %w", err)
	}
	return engine.Crawl(ctx)
}
