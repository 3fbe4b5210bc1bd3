package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"HiTrade/internal/api"
	"HiTrade/internal/cache"
	"HiTrade/internal/collector"
	"HiTrade/internal/config"
	"HiTrade/internal/console"
	"HiTrade/internal/logger"
	"HiTrade/internal/metrics"
	"HiTrade/internal/model"
	"HiTrade/internal/notifier"
	"HiTrade/internal/scanner"
	"HiTrade/internal/scheduler"
	"HiTrade/internal/universe"
)

const usage = `HiTrade scans NSE equities for EMA(9)/EMA(21) uptrends and sizes positions with ATR stops.

Usage:
  hitrade [serve]                     run the dashboard API, cron scan and Telegram bot
  hitrade scan [flags]                scan a segment and print qualifying tickers
  hitrade analyze [flags] TICKER      analyze one ticker
  hitrade import-universe [flags]     load an exchange CSV into the SQLite catalog

Run "hitrade <command> -h" for command flags.
`

// Exit codes.
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

// app bundles everything the subcommands share.
type app struct {
	cfg      *config.Config
	metrics  *metrics.Metrics
	scanner  *scanner.Scanner
	universe universe.Universe
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cmd := "serve"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "serve":
		return runServe(args)
	case "scan":
		return runScan(args)
	case "analyze":
		return runAnalyze(args)
	case "import-universe":
		return runImport(args)
	case "help", "-h", "--help":
		fmt.Print(usage)
		return exitOK
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		return exitUsage
	}
}

func defaultConfigPath() string {
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		return v
	}
	return "configs/config.yaml"
}

// loadConfig reads and validates configuration and initialises the logger.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	logger.Init(cfg.Log.Level)
	return cfg, nil
}

func newFetcher(cfg *config.Config) collector.Fetcher {
	switch cfg.DataSource.Provider {
	case "vstrader":
		return collector.NewVsTraderFetcher(cfg.DataSource.BaseURL, cfg.DataSource.APIKey, cfg.Proxy, cfg.DataSource.MaxRetries)
	case "mock":
		return &collector.MockFetcher{}
	default:
		return collector.NewYahooFetcher(cfg.Proxy, cfg.DataSource.MaxRetries)
	}
}

func newApp(ctx context.Context, cfg *config.Config) *app {
	m := metrics.NewMetrics()
	fetcher := cache.New(newFetcher(cfg), cfg.Scan.NegativeCacheTTL, m)
	logger.Info("data source ready", zap.String("fetcher", fetcher.Name()))

	sc := scanner.New(fetcher, scanner.Options{
		Workers:      cfg.Scan.Workers,
		FetchTimeout: cfg.Scan.FetchTimeout,
		StopMultiple: cfg.Scan.StopATRMultiple,
		Observer:     m,
	})
	return &app{
		cfg:      cfg,
		metrics:  m,
		scanner:  sc,
		universe: universe.Load(ctx, cfg.Universe.Path, cfg.DataSource.MarketSuffix),
	}
}

func (a *app) defaultRequest() model.ScanRequest {
	return model.ScanRequest{Capital: a.cfg.Scan.Capital, RiskPct: a.cfg.Scan.RiskPct}
}

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	cfgPath := fs.String("config", defaultConfigPath(), "path to the YAML config file")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFailure
	}
	defer logger.Sync()
	logger.Info("HiTrade starting", zap.String("config", *cfgPath))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a := newApp(ctx, cfg)
	req := a.defaultRequest()

	// Telegram is optional; without credentials the cron scan only logs.
	var sender scheduler.Sender
	var tn *notifier.TelegramNotifier
	if cfg.TelegramEnabled() {
		tn = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)
		sender = tn
	} else {
		logger.Warn("telegram not configured, digests and commands disabled")
	}

	sched := scheduler.NewScheduler(ctx, a.scanner, sender, a.universe.Tickers, req, cfg.Scan.LookbackDays)
	sched.Segment = cfg.Schedule.Segment
	sched.Suffix = cfg.DataSource.MarketSuffix
	if err := sched.Register(cfg.Schedule.ScanCron); err != nil {
		logger.Error("register cron tasks", zap.Error(err))
		return exitFailure
	}
	sched.Start()
	defer sched.Stop()

	if tn != nil {
		go tn.StartPolling(ctx, sched.HandleCommand)
		logger.Info("telegram polling started")
	}

	if os.Getenv("RUN_ON_START") == "true" {
		logger.Info("RUN_ON_START enabled, executing scan now")
		go sched.RunScanNow()
	}

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.NewServer(a.scanner, a.universe, req, cfg.Scan.LookbackDays, a.metrics.Handler()).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.HTTP.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received, stopping...")
	case err := <-errCh:
		logger.Error("http server failed", zap.Error(err))
		cancel()
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	logger.Info("HiTrade stopped")
	return exitOK
}

// requestFlags registers the sizing flags shared by scan and analyze.
type requestFlags struct {
	capital, risk, maxPrice *float64
	lookback                *int
}

func addRequestFlags(fs *flag.FlagSet) requestFlags {
	return requestFlags{
		capital:  fs.Float64("capital", 0, "trading capital in ₹ (default from config)"),
		risk:     fs.Float64("risk", 0, "risk per trade in percent of capital (default from config)"),
		maxPrice: fs.Float64("max-price", 0, "price ceiling for qualification (default: capital)"),
		lookback: fs.Int("lookback", 0, fmt.Sprintf("calendar days of history, %d-%d (default from config)", config.MinLookbackDays, config.MaxLookbackDays)),
	}
}

// resolve applies flag overrides on top of config defaults.
func (f requestFlags) resolve(a *app) (model.ScanRequest, model.DateRange, error) {
	req := a.defaultRequest()
	if *f.capital != 0 {
		req.Capital = *f.capital
	}
	if *f.risk != 0 {
		req.RiskPct = *f.risk
	}
	req.MaxPrice = *f.maxPrice
	if err := req.Validate(); err != nil {
		return req, model.DateRange{}, err
	}
	days := a.cfg.Scan.LookbackDays
	if *f.lookback != 0 {
		days = *f.lookback
	}
	if days < config.MinLookbackDays || days > config.MaxLookbackDays {
		return req, model.DateRange{}, fmt.Errorf("%w: lookback must be in [%d, %d]", model.ErrInvalidInput, config.MinLookbackDays, config.MaxLookbackDays)
	}
	return req, model.Lookback(time.Now(), days), nil
}

func runScan(args []string) int {
	fs := flag.NewFlagSet("scan", flag.ContinueOnError)
	cfgPath := fs.String("config", defaultConfigPath(), "path to the YAML config file")
	segment := fs.String("segment", universe.SegmentBluechip, "universe segment: "+strings.Join(universe.Segments, ", "))
	asJSON := fs.Bool("json", false, "print the report as JSON")
	rf := addRequestFlags(fs)
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFailure
	}
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a := newApp(ctx, cfg)
	req, rng, err := rf.resolve(a)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitUsage
	}
	tickers, err := universe.Segment(a.universe.Tickers, *segment)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitUsage
	}

	report, err := a.scanner.Scan(ctx, tickers, req, rng, func(p scanner.Progress) {
		fmt.Fprintf(os.Stderr, "\r[%d/%d] %-20s", p.Done, p.Total, p.Ticker)
	})
	fmt.Fprintln(os.Stderr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFailure
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitFailure
		}
		return exitOK
	}
	console.RenderScan(os.Stdout, report, *segment)
	return exitOK
}

func runAnalyze(args []string) int {
	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	cfgPath := fs.String("config", defaultConfigPath(), "path to the YAML config file")
	rf := addRequestFlags(fs)
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: hitrade analyze [flags] TICKER")
		return exitUsage
	}

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFailure
	}
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a := newApp(ctx, cfg)
	req, rng, err := rf.resolve(a)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitUsage
	}
	ticker := universe.WithSuffix(fs.Args(), cfg.DataSource.MarketSuffix)
	if len(ticker) == 0 {
		fmt.Fprintln(os.Stderr, "ticker must not be blank")
		return exitUsage
	}

	analysis, err := a.scanner.Analyze(ctx, ticker[0], req, rng)
	if err != nil {
		// Missing or short history is a result, not a failure of the tool.
		fmt.Fprintf(os.Stderr, "%s: %s\n", ticker[0], err)
		if errors.Is(err, model.ErrInvalidInput) {
			return exitUsage
		}
		return exitOK
	}
	console.RenderAnalysis(os.Stdout, analysis)
	return exitOK
}

func runImport(args []string) int {
	fs := flag.NewFlagSet("import-universe", flag.ContinueOnError)
	cfgPath := fs.String("config", defaultConfigPath(), "path to the YAML config file")
	csvPath := fs.String("csv", "data/EQUITY_L.csv", "exchange reference CSV with a SYMBOL column")
	dbPath := fs.String("db", "", "SQLite catalog to write (default: universe.path when it is a .db file, else data/universe.db)")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFailure
	}
	defer logger.Sync()

	target := *dbPath
	if target == "" {
		target = "data/universe.db"
		if ext := strings.ToLower(filepath.Ext(cfg.Universe.Path)); ext == ".db" || ext == ".sqlite" || ext == ".sqlite3" {
			target = cfg.Universe.Path
		}
	}

	equities, err := universe.LoadCSV(*csvPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFailure
	}
	cat, err := universe.OpenCatalog(target)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFailure
	}
	defer cat.Close()

	n, err := cat.Replace(context.Background(), equities)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFailure
	}
	fmt.Printf("imported %d equities from %s into %s\n", n, *csvPath, target)
	return exitOK
}
