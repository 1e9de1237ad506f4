package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/fbscope/fbscope/internal/config"
	"github.com/fbscope/fbscope/internal/utils"
	"github.com/fbscope/fbscope/pkg/batch"
	"github.com/fbscope/fbscope/pkg/export"
	"github.com/fbscope/fbscope/pkg/fetch"
	"github.com/fbscope/fbscope/pkg/metrics"
	"github.com/fbscope/fbscope/pkg/retry"
	"github.com/fbscope/fbscope/pkg/scrape"
	"github.com/fbscope/fbscope/pkg/storage"
	"github.com/fbscope/fbscope/pkg/targets"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/time/rate"
)

// scrapeCmd implements: fbscope scrape league|players|schedule|matches|all
//
//	--competition   Comma-separated competition ids or slugs
//	--season        Comma-separated seasons (2023-2024)
//	--category      Comma-separated player stat categories
//	--match         Comma-separated match ids
//	--from-schedule Also scrape the matches listed by the fixture lists
//	--db            Save records to the database
//	--no-export     Skip CSV/JSON artifacts
var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scrape competitions and matches",
}

func newScrapeSubcommand(use, short string, kinds ...targets.Kind) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScrape(cmd, kinds)
		},
	}
}

func init() {
	rootCmd.AddCommand(scrapeCmd)
	scrapeCmd.AddCommand(
		newScrapeSubcommand("league", "Scrape competition overview tables", targets.KindLeague),
		newScrapeSubcommand("players", "Scrape player stat categories", targets.KindPlayers),
		newScrapeSubcommand("schedule", "Scrape fixture lists", targets.KindSchedule),
		newScrapeSubcommand("matches", "Scrape match reports", targets.KindMatch),
		newScrapeSubcommand("all", "Scrape every target kind", targets.AllKinds...),
	)

	flags := scrapeCmd.PersistentFlags()
	flags.String("competition", "", "Comma-separated competition ids or slugs (default: all in the targets file)")
	flags.String("season", "", "Comma-separated seasons, e.g. 2023-2024")
	flags.String("category", "", "Comma-separated player stat categories (standard, shooting, passing, ...)")
	flags.String("match", "", "Comma-separated match ids")
	flags.Bool("from-schedule", false, "Scrape the match reports linked from the fixture lists")
	flags.Bool("db", false, "Save records to the database")
	flags.String("dsn", "", "SQLite path or postgres:// URL (default: storage.dsn from config)")
	flags.String("out", "", "Export directory (default: export.dir from config)")
	flags.Bool("no-export", false, "Do not write CSV/JSON files")
	flags.String("driver", "", "Browser driver: chrome or http")
	flags.Bool("headless", true, "Run Chrome headless")
	flags.Int("concurrency", 1, "Number of targets scraped in parallel")
	flags.Duration("delay", 5*time.Second, "Pause between two targets")
	flags.String("metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")

	for key, flag := range map[string]string{
		"storage.dsn":       "dsn",
		"export.dir":        "out",
		"browser.driver":    "driver",
		"browser.headless":  "headless",
		"batch.concurrency": "concurrency",
		"batch.delay":       "delay",
		"metrics_addr":      "metrics-addr",
	} {
		viper.BindPFlag(key, flags.Lookup(flag))
	}
}

func runScrape(cmd *cobra.Command, kinds []targets.Kind) error {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}
	file, err := cfg.Targets()
	if err != nil {
		return err
	}

	competitions, _ := cmd.Flags().GetString("competition")
	seasons, _ := cmd.Flags().GetString("season")
	categories, _ := cmd.Flags().GetString("category")
	matches, _ := cmd.Flags().GetString("match")
	fromSchedule, _ := cmd.Flags().GetBool("from-schedule")
	useDB, _ := cmd.Flags().GetBool("db")
	noExport, _ := cmd.Flags().GetBool("no-export")

	filter := targets.Filter{
		Competitions: utils.SplitList(competitions),
		Seasons:      utils.SplitList(seasons),
		Categories:   utils.SplitList(categories),
		Matches:      utils.SplitList(matches),
	}
	if fromSchedule && !slices.Contains(kinds, targets.KindSchedule) {
		kinds = append([]targets.Kind{targets.KindSchedule}, kinds...)
	}
	ts := file.Expand(kinds, filter)
	if len(ts) == 0 {
		utils.Log.Info("No targets match the given filters.")
		return nil
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.MetricsAddr); err != nil {
				utils.Log.Warnf("Metrics server stopped: %v", err)
			}
		}()
	}

	lock, err := utils.NewSessionLock(cfg.Browser.ProfileDir)
	if err != nil {
		return err
	}
	if err := lock.Lock(); err != nil {
		return err
	}
	defer lock.Unlock()

	browser, err := newBrowser(ctx, cfg)
	if err != nil {
		return err
	}
	defer browser.Close()

	runCfg := scrape.Config{
		Fetcher:  fetch.New(browser, fetchOptions(cfg)),
		BaseURL:  cfg.BaseURL,
		Batch:    batchConfig(cfg),
		Log:      utils.Log,
		OnResult: printResult,
	}
	if useDB {
		sink, err := storage.OpenSink(ctx, cfg.StorageDSN)
		if err != nil {
			return err
		}
		defer sink.Close()
		runCfg.Sink = sink
	}
	if !noExport {
		runCfg.Export = export.New(cfg.ExportDir)
	}

	runner := scrape.New(runCfg)
	summary := runner.Run(ctx, ts)
	results := summary.Results

	if fromSchedule && ctx.Err() == nil {
		var extra []targets.Target
		for _, mt := range summary.MatchTargets() {
			if !slices.ContainsFunc(ts, func(t targets.Target) bool { return t.String() == mt.String() }) &&
				(len(filter.Matches) == 0 || slices.Contains(filter.Matches, mt.MatchID)) {
				extra = append(extra, mt)
			}
		}
		if len(extra) > 0 {
			utils.Log.Infof("Scraping %d matches from the fixture lists", len(extra))
			results = append(results, runner.Run(ctx, extra).Results...)
		}
	}

	printSummary(results)
	return nil
}

func newBrowser(ctx context.Context, cfg *config.Config) (fetch.Browser, error) {
	if cfg.Browser.Driver == config.DriverHTTP {
		return fetch.NewStatic(fetch.StaticOptions{
			BaseURL:    cfg.BaseURL,
			ProfileDir: cfg.Browser.ProfileDir,
			Proxy:      cfg.Browser.Proxy,
			UserAgent:  cfg.Browser.UserAgent,
			Timeout:    cfg.Fetch.NavigationTimeout,
			Log:        utils.Log,
		})
	}
	return fetch.NewChrome(ctx, fetch.ChromeOptions{
		ProfileDir: cfg.Browser.ProfileDir,
		Headless:   cfg.Browser.Headless,
		ExecPath:   cfg.Browser.ChromePath,
		UserAgent:  cfg.Browser.UserAgent,
		Proxy:      cfg.Browser.Proxy,
		Log:        utils.Log,
	})
}

func fetchOptions(cfg *config.Config) fetch.Options {
	opts := fetch.Options{
		NavigationTimeout: cfg.Fetch.NavigationTimeout,
		ReadyTimeout:      cfg.Fetch.ReadyTimeout,
		ProbeDelay:        cfg.Fetch.ProbeDelay,
		ControlWait:       cfg.Fetch.ControlWait,
		BypassTimeout:     cfg.Fetch.BypassTimeout,
		Log:               utils.Log,
	}
	if rpm := cfg.Fetch.RequestsPerMinute; rpm > 0 {
		opts.Limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1)
	}
	return opts
}

func batchConfig(cfg *config.Config) batch.Config {
	return batch.Config{
		Policy: retry.Policy{
			Attempts:   cfg.Retry.Attempts,
			MinBackoff: cfg.Retry.MinBackoff,
			MaxBackoff: cfg.Retry.MaxBackoff,
		},
		Delay:       cfg.Batch.Delay,
		Jitter:      cfg.Batch.Jitter,
		Concurrency: cfg.Batch.Concurrency,
		Log:         utils.Log,
	}
}

func printResult(res *scrape.Result) {
	switch res.Status {
	case storage.StatusOK:
		fmt.Printf("✅  %s  %s\n", res.Target, res.Message())
	case storage.StatusPartial:
		fmt.Printf("⚠️  %s  %s\n", res.Target, res.Message())
	default:
		fmt.Printf("❌  %s  %s\n", res.Target, res.Message())
	}
	counts := storage.CountChanges(res.Changes)
	if counts[storage.ChangeAdded]+counts[storage.ChangeUpdated] > 0 {
		fmt.Printf("    🆕 %d added  🔄 %d updated  %d unchanged\n",
			counts[storage.ChangeAdded], counts[storage.ChangeUpdated], counts[storage.ChangeUnchanged])
	}
}

func printSummary(results []*scrape.Result) {
	t := utils.NewTable()
	t.AppendHeader(tableRow("TARGET", "STATUS", "ATTEMPTS", "RECORDS", "INVALID", "ELAPSED"))
	var ok, partial, failed int
	for _, r := range results {
		switch r.Status {
		case storage.StatusOK:
			ok++
		case storage.StatusPartial:
			partial++
		default:
			failed++
		}
		t.AppendRow(tableRow(r.Target.String(), r.Status, r.Attempts, r.Records, r.Invalid, r.Elapsed.Round(time.Second)))
	}
	t.AppendFooter(tableRow("TOTAL", fmt.Sprintf("%d ok, %d partial, %d failed", ok, partial, failed), "", "", "", ""))
	t.Render()
}
