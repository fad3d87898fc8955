package giveaway

import (
	"context"
	"fmt"
	"math/rand"
	"runtime/debug"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"gamehub/internal/catalog"
	logx "gamehub/pkg/logx"
)

const defaultScanInterval = 30 * time.Second

type MonitorConfig struct {
	// Interval between expiry scans.
	Interval time.Duration
	// NetTimeout bounds the winner-notice send.
	NetTimeout time.Duration
}

// Monitor is the background loop that detects expired giveaways and settles
// them. It runs for the process lifetime; cancellation of the Start context
// is the only way it stops.
type Monitor struct {
	log   logx.Logger
	store *catalog.Store
	svc   *Service

	interval   time.Duration
	netTimeout time.Duration

	// pick selects the winning index; swapped out in tests.
	pick func(n int) int

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

func NewMonitor(cfg MonitorConfig, store *catalog.Store, svc *Service, log logx.Logger) *Monitor {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = defaultScanInterval
	}
	if cfg.NetTimeout <= 0 {
		cfg.NetTimeout = 30 * time.Second
	}
	return &Monitor{
		log:        log,
		store:      store,
		svc:        svc,
		interval:   cfg.Interval,
		netTimeout: cfg.NetTimeout,
		pick:       rand.Intn,
	}
}

func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return nil
	}

	c := cron.New()
	spec := fmt.Sprintf("@every %s", m.interval)
	if _, err := c.AddFunc(spec, func() { m.scan(ctx) }); err != nil {
		return fmt.Errorf("monitor schedule %q: %w", spec, err)
	}
	c.Start()
	m.cron = c
	m.running = true
	m.log.Info("giveaway monitor started", logx.Duration("interval", m.interval))

	go func() {
		<-ctx.Done()
		m.Stop()
	}()
	return nil
}

func (m *Monitor) Stop() {
	m.mu.Lock()
	c := m.cron
	m.cron = nil
	wasRunning := m.running
	m.running = false
	m.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
	if wasRunning {
		m.log.Info("giveaway monitor stopped")
	}
}

// scan settles every expired giveaway. A failure in one giveaway never
// aborts the scan of the remaining ones.
func (m *Monitor) scan(ctx context.Context) {
	now := time.Now()
	for _, g := range m.store.ActiveGiveaways() {
		m.processOne(ctx, g, now)
	}
}

func (m *Monitor) processOne(ctx context.Context, g catalog.GiveawayRecord, now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("panic while processing giveaway",
				logx.Int("giveaway", g.ID), logx.Any("panic", r),
				logx.String("stack", string(debug.Stack())))
		}
	}()

	end, err := g.EndTime()
	if err != nil {
		// Creation validates the layout, so this means the stored document was
		// edited by hand. Treated as never-expiring rather than crashing.
		m.log.Warn("giveaway has unparsable end date, skipping",
			logx.Int("giveaway", g.ID), logx.String("end", g.EndAt))
		return
	}
	if now.Before(end) {
		return
	}

	winner, err := m.store.DrawWinner(ctx, g.ID, m.pick)
	if err != nil {
		m.log.Error("failed to settle giveaway", logx.Int("giveaway", g.ID), logx.Err(err))
		return
	}
	if winner == nil {
		m.log.Info("giveaway ended with no participants", logx.Int("giveaway", g.ID))
		return
	}
	m.log.Info("giveaway winner drawn",
		logx.Int("giveaway", g.ID), logx.Int64("winner", winner.ID))

	nctx, cancel := context.WithTimeout(ctx, m.netTimeout)
	defer cancel()
	m.svc.notifyWinner(nctx, g, winner)
}
