package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/five82/tickbox/internal/coalesce"
	"github.com/five82/tickbox/internal/config"
	"github.com/five82/tickbox/internal/prefs"
	"github.com/five82/tickbox/internal/remote"
	"github.com/five82/tickbox/internal/ui"
)

var _ coalesce.Gateway = (*remote.Client)(nil)

// drainTimeout bounds how long quitting waits for pending toggles to land.
const drainTimeout = 10 * time.Second

// Options configure every tickbox action.
type Options struct {
	ConfigPath string
	PrefsPath  string // empty uses default ~/.config/tickbox/prefs.toml
	LogLevel   string // overrides log_level when set
	Stdout     io.Writer
	Stderr     io.Writer
}

func (o Options) stdout() io.Writer {
	if o.Stdout == nil {
		return os.Stdout
	}
	return o.Stdout
}

func (o Options) stderr() io.Writer {
	if o.Stderr == nil {
		return os.Stderr
	}
	return o.Stderr
}

// NewLogger creates a timestamped logger writing to w at the named level.
// The writer defaults to os.Stderr and an empty level means info.
func NewLogger(w io.Writer, level string) (*log.Logger, error) {
	if w == nil {
		w = os.Stderr
	}
	logger := log.NewWithOptions(w, log.Options{ReportTimestamp: true})
	if strings.TrimSpace(level) != "" {
		lvl, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
		if err != nil {
			return nil, fmt.Errorf("parse log level: %w", err)
		}
		logger.SetLevel(lvl)
	}
	return logger, nil
}

func loadConfig(opts Options) (config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	if lvl := strings.TrimSpace(opts.LogLevel); lvl != "" {
		cfg.LogLevel = lvl
	}
	return cfg, nil
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

func newClient(cfg config.Config) (*remote.Client, error) {
	client, err := remote.NewClient(cfg.APIBind, remote.Options{
		Timeout:           cfg.RequestTimeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             max(cfg.MaxInFlight, 1),
	})
	if err != nil {
		return nil, fmt.Errorf("init client: %w", err)
	}
	return client, nil
}

func newCoordinator(ctx context.Context, gw coalesce.Gateway, cfg config.Config, logger *log.Logger, onFlush func(coalesce.FlushReport)) *coalesce.Coordinator {
	return coalesce.New(gw, coalesce.Options{
		Context:     ctx,
		Window:      cfg.Debounce,
		MaxInFlight: cfg.MaxInFlight,
		CallTimeout: cfg.RequestTimeout,
		Logger:      logger,
		OnFlush:     onFlush,
	})
}

// Run boots the tickbox TUI until the user quits or ctx is cancelled, then
// drains pending toggles.
func Run(ctx context.Context, opts Options) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	// The terminal belongs to Bubble Tea, so logs go to a file.
	logFile, err := openLogFile(cfg.LogFile)
	if err != nil {
		return err
	}
	defer logFile.Close()
	logger, err := NewLogger(logFile, cfg.LogLevel)
	if err != nil {
		return err
	}

	userPrefs, err := prefs.Load(opts.PrefsPath)
	if err != nil {
		logger.Warn("load prefs failed, using defaults", "err", err)
	}

	client, err := newClient(cfg)
	if err != nil {
		return err
	}

	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	coord := startCoordinator(ctx, client, cfg, logger)
	logger.Info("starting", "api", cfg.APIBind, "debounce", cfg.Debounce, "max_in_flight", cfg.MaxInFlight)

	// Populate the store before the UI starts; a failure is shown in the UI.
	if err := refresh(runCtx, coord, cfg.RequestTimeout); err != nil {
		logger.Warn("initial load failed", "err", err)
	}
	StartRefresher(runCtx, coord, cfg.RefreshInterval, cfg.RequestTimeout, logger)

	uiErr := ui.Run(ui.Options{
		Context:     runCtx,
		Controller:  coord,
		Logger:      logger,
		ThemeName:   userPrefs.Theme,
		ShowPending: userPrefs.ShowPending,
		PrefsPath:   opts.PrefsPath,
	})
	stop()

	if err := drain(coord, logger); err != nil {
		uiErr = errors.Join(uiErr, err)
	}
	logger.Info("stopped")
	return uiErr
}

// startCoordinator builds the TUI's coordinator. Its flushes are detached
// from ctx cancellation so quitting never aborts a toggle already sent;
// request_timeout_ms bounds each call instead.
func startCoordinator(ctx context.Context, gw coalesce.Gateway, cfg config.Config, logger *log.Logger) *coalesce.Coordinator {
	return newCoordinator(context.WithoutCancel(ctx), gw, cfg, logger, nil)
}

// drain flushes pending toggles and waits up to drainTimeout for every
// running flush to land.
func drain(coord *coalesce.Coordinator, logger *log.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	err := coord.Close(ctx)
	if err != nil {
		logger.Error("drain failed", "err", err)
	}
	if n := len(coord.Snapshot().Failures); n > 0 {
		logger.Warn("exiting with unconfirmed toggles", "failed", n)
	}
	return err
}
