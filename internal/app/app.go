// Package app wires configuration, logging, storage, the platform adapter
// and the domain services into one runnable bot.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gamehub/internal/bot"
	"gamehub/internal/broadcast"
	"gamehub/internal/catalog"
	"gamehub/internal/config"
	"gamehub/internal/delivery"
	"gamehub/internal/giveaway"
	"gamehub/internal/storage"
	kit "gamehub/internal/transport"
	"gamehub/internal/transport/telegram"
	logx "gamehub/pkg/logx"
)

type App struct {
	cfgm *config.Manager

	log  logx.Logger
	logs *logx.Service

	adapter kit.Adapter
	back    storage.Store
	store   *catalog.Store

	monitor *giveaway.Monitor
	router  *bot.Router

	updates chan kit.Update

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))
	cfgm.SetValidator(validateConfig)

	token := strings.TrimSpace(cfg.Telegram.Token)
	if token == "" {
		token = strings.TrimSpace(os.Getenv("BOT_TOKEN"))
	}
	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	adapter, err := telegram.New(telegram.Config{
		Token:       token,
		PollTimeout: pollTimeout,
	}, log.With(logx.String("comp", "telegram")))
	if err != nil {
		return nil, err
	}

	back, err := openStorage(cfg, log)
	if err != nil {
		return nil, err
	}
	store := catalog.NewStore(back, log.With(logx.String("comp", "catalog")))

	filesDir := cfg.Delivery.FilesDir
	if filesDir == "" {
		filesDir = "files"
	}
	recentWindow, err := config.ParseDurationField("delivery.recent_window", cfg.Delivery.RecentWindow)
	if err != nil {
		return nil, err
	}
	netTimeout, err := config.ParseDurationField("delivery.net_timeout", cfg.Delivery.NetTimeout)
	if err != nil {
		return nil, err
	}

	guard := delivery.NewGuard()
	fetcher := delivery.NewFetcher(filepath.Join(filesDir, "tmp"), nil)
	exec := delivery.NewExecutor(delivery.Config{
		RecentWindow: recentWindow,
		NetTimeout:   netTimeout,
	}, adapter, guard, delivery.Resolver{FilesDir: filesDir}, fetcher,
		log.With(logx.String("comp", "delivery")))

	caster := broadcast.New(broadcast.Config{
		RatePerSec: cfg.Broadcast.RatePerSec,
		RetryMax:   cfg.Broadcast.RetryMax,
	}, adapter, log.With(logx.String("comp", "broadcast")))

	gsvc := giveaway.NewService(store, adapter, caster, log.With(logx.String("comp", "giveaway")))

	scanInterval, err := config.ParseDurationField("giveaways.scan_interval", cfg.Giveaways.ScanInterval)
	if err != nil {
		return nil, err
	}
	monitor := giveaway.NewMonitor(giveaway.MonitorConfig{
		Interval: scanInterval,
	}, store, gsvc, log.With(logx.String("comp", "giveaway.monitor")))

	router := bot.NewRouter(bot.Config{
		StaffRoleThreshold: cfg.Staff.SuggestionRoleThreshold,
	}, adapter, store, exec, gsvc, caster, log.With(logx.String("comp", "router")))

	return &App{
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		adapter: adapter,
		back:    back,
		store:   store,
		monitor: monitor,
		router:  router,
		updates: make(chan kit.Update, 256),
	}, nil
}

func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.mu.Lock()
	a.cancel = cancel
	a.mu.Unlock()

	if err := a.store.Load(runCtx); err != nil {
		cancel()
		return fmt.Errorf("load catalog: %w", err)
	}
	if err := a.adapter.Start(runCtx, a.updates); err != nil {
		cancel()
		return err
	}
	if err := a.monitor.Start(runCtx); err != nil {
		cancel()
		return err
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		_ = a.router.DispatchLoop(runCtx, a.updates)
	}()

	// Config hot reload: re-apply the logging section live.
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		_ = a.cfgm.Watch(runCtx)
	}()
	sub := a.cfgm.Subscribe(4)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer a.cfgm.Unsubscribe(sub)
		for {
			select {
			case <-runCtx.Done():
				return
			case cfg, ok := <-sub:
				if !ok {
					return
				}
				a.logs.Apply(logx.Config{
					Level:   cfg.Logging.Level,
					Console: cfg.Logging.Console,
					File: logx.FileConfig{
						Enabled: cfg.Logging.File.Enabled,
						Path:    cfg.Logging.File.Path,
					},
				})
			}
		}
	}()

	a.log.Info("gamehub bot started")
	return nil
}

func (a *App) Stop(ctx context.Context) error {
	a.mu.Lock()
	cancel := a.cancel
	a.cancel = nil
	a.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	_ = a.adapter.Stop(ctx)
	a.monitor.Stop()
	a.wg.Wait()

	if a.back != nil {
		_ = a.back.Close()
	}
	a.log.Info("gamehub bot stopped")
	_ = a.logs.Close()
	return nil
}

func openStorage(cfg *config.Config, log logx.Logger) (storage.Store, error) {
	busy, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		return nil, err
	}
	path := cfg.Storage.Path
	if path == "" {
		path = "./data"
	}
	return storage.Open(storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        path,
		BusyTimeout: busy,
	}, log.With(logx.String("comp", "storage")))
}

func validateConfig(ctx context.Context, cfg *config.Config) error {
	_ = ctx
	for _, f := range []struct{ path, raw string }{
		{"telegram.poll_timeout", cfg.Telegram.PollTimeout},
		{"storage.busy_timeout", cfg.Storage.BusyTimeout},
		{"delivery.recent_window", cfg.Delivery.RecentWindow},
		{"delivery.net_timeout", cfg.Delivery.NetTimeout},
		{"giveaways.scan_interval", cfg.Giveaways.ScanInterval},
	} {
		if _, err := config.ParseDurationField(f.path, f.raw); err != nil {
			return err
		}
	}
	return nil
}
