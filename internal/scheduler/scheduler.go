package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"HiTrade/internal/academy"
	"HiTrade/internal/logger"
	"HiTrade/internal/model"
	"HiTrade/internal/notifier"
	"HiTrade/internal/scanner"
	"HiTrade/internal/universe"
)

// Sender delivers a formatted message. *notifier.TelegramNotifier implements it.
type Sender interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

// Scheduler runs the end-of-day scan on a cron schedule and answers chat commands.
type Scheduler struct {
	Cron     *cron.Cron
	Scanner  *scanner.Scanner
	Notifier Sender
	Tickers  []string
	Request  model.ScanRequest
	Lookback int
	Segment  string
	Suffix   string
	Ctx      context.Context

	now     func() time.Time
	running atomic.Bool
}

// NewScheduler creates a new Scheduler. A nil notifier disables digests.
func NewScheduler(ctx context.Context, sc *scanner.Scanner, n Sender, tickers []string, req model.ScanRequest, lookbackDays int) *Scheduler {
	return &Scheduler{
		Cron:     cron.New(cron.WithSeconds()),
		Scanner:  sc,
		Notifier: n,
		Tickers:  tickers,
		Request:  req,
		Lookback: lookbackDays,
		Segment:  universe.SegmentBluechip,
		Suffix:   ".NS",
		Ctx:      ctx,
		now:      time.Now,
	}
}

// Register adds the scheduled scan.
func (s *Scheduler) Register(scanCron string) error {
	if _, err := s.Cron.AddFunc(scanCron, s.scheduledScan); err != nil {
		return fmt.Errorf("register scan task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	logger.Info("scheduler started", zap.Int("entries", len(s.Cron.Entries())))
}

// Stop stops the cron scheduler and waits for a running job to return.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	logger.Info("scheduler stopped")
}

// RunScanNow executes the scheduled scan immediately (for RUN_ON_START).
func (s *Scheduler) RunScanNow() {
	s.scheduledScan()
}

func (s *Scheduler) scheduledScan() {
	logger.Info("running scheduled scan", zap.String("segment", s.Segment))
	report, err := s.RunScan(s.Ctx, s.Segment)
	if err != nil {
		logger.Error("scheduled scan", zap.Error(err))
		if !errors.Is(err, context.Canceled) {
			s.trySend(notifier.FormatError("scheduled scan", err))
		}
		return
	}
	s.trySend(notifier.FormatScanReport(report, s.Segment))
}

// errScanRunning is returned when a scan is requested while another is in progress.
var errScanRunning = errors.New("a scan is already running")

// RunScan scans one segment of the universe with the default request.
// Overlapping scans are refused.
func (s *Scheduler) RunScan(ctx context.Context, segment string) (*model.ScanReport, error) {
	tickers, err := universe.Segment(s.Tickers, segment)
	if err != nil {
		return nil, err
	}
	if !s.running.CompareAndSwap(false, true) {
		return nil, errScanRunning
	}
	defer s.running.Store(false)

	rng := model.Lookback(s.now(), s.Lookback)
	return s.Scanner.Scan(ctx, tickers, s.Request, rng, nil)
}

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return helpText()
	}
	// Group chats address commands as /scan@botname.
	name := strings.ToLower(fields[0])
	if i := strings.IndexByte(name, '@'); i > 0 {
		name = name[:i]
	}
	args := fields[1:]

	switch name {
	case "/scan":
		segment := s.Segment
		if len(args) > 0 {
			segment = strings.ToLower(args[0])
		}
		report, err := s.RunScan(ctx, segment)
		if err != nil {
			return notifier.FormatError("scan", err)
		}
		return notifier.FormatScanReport(report, segment)
	case "/analyze":
		if len(args) == 0 {
			return "Usage: /analyze TICKER (e.g. /analyze TCS)"
		}
		ticker := universe.WithSuffix(args[:1], s.Suffix)[0]
		a, err := s.Scanner.Analyze(ctx, ticker, s.Request, model.Lookback(s.now(), s.Lookback))
		if err != nil {
			return notifier.FormatError("analyze "+ticker, err)
		}
		return notifier.FormatAnalysis(a)
	case "/academy":
		return notifier.FormatLessons(academy.Lessons())
	default:
		return helpText()
	}
}

func helpText() string {
	return "Available commands:\n" +
		"• /scan [" + strings.Join(universe.Segments, "|") + "]\n" +
		"• /analyze TICKER\n" +
		"• /academy\n" +
		"• /help"
}

func (s *Scheduler) trySend(text string) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.SendWithRetry(s.Ctx, text, 3); err != nil {
		logger.Error("send notification", zap.Error(err))
	}
}
