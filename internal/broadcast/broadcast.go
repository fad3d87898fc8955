// Package broadcast fans a message out to many recipients with per-recipient
// isolated failure handling and platform-friendly pacing.
package broadcast

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	kit "gamehub/internal/transport"
	logx "gamehub/pkg/logx"
)

type Config struct {
	// RatePerSec caps outgoing sends; Telegram throttles bots that blast
	// messages back-to-back. Defaults to 20.
	RatePerSec int
	// RetryMax is the number of additional attempts per recipient.
	RetryMax int
}

// Report summarizes one finished broadcast.
type Report struct {
	Sent   int
	Failed []int64 // recipients that never accepted the message
}

type Service struct {
	cfg     Config
	adapter kit.Adapter
	log     logx.Logger
	limiter *rate.Limiter
}

func New(cfg Config, adapter kit.Adapter, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 20
	}
	return &Service{
		cfg:     cfg,
		adapter: adapter,
		log:     log,
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
	}
}

// Broadcast sends text to every recipient sequentially. One recipient's
// failure is recorded and does not abort the remaining sends. Cancellation
// of ctx stops the fan-out; recipients not yet attempted count as failed.
func (s *Service) Broadcast(ctx context.Context, name, text string, recipients []int64, opt *kit.SendOptions) Report {
	jobID := uuid.NewString()
	log := s.log.With(logx.String("job", jobID), logx.String("name", name))
	log.Info("broadcast started", logx.Int("total", len(recipients)))
	start := time.Now()

	var rep Report
	for i, uid := range recipients {
		if ctx.Err() != nil {
			rep.Failed = append(rep.Failed, recipients[i:]...)
			break
		}
		if err := s.sendOne(ctx, uid, text, opt); err != nil {
			log.Warn("broadcast send failed", logx.Int64("chat_id", uid), logx.Err(err))
			rep.Failed = append(rep.Failed, uid)
			continue
		}
		rep.Sent++
	}

	fields := []logx.Field{
		logx.Int("total", len(recipients)),
		logx.Int("failed", len(rep.Failed)),
		logx.Duration("dur", time.Since(start)),
	}
	if len(rep.Failed) > 0 {
		log.Warn("broadcast finished with failures", fields...)
	} else {
		log.Info("broadcast finished", fields...)
	}
	return rep
}

func (s *Service) sendOne(ctx context.Context, uid int64, text string, opt *kit.SendOptions) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	var last error
	for i := 0; i <= s.cfg.RetryMax; i++ {
		_, err := s.adapter.SendText(ctx, kit.ChatTarget{ChatID: uid}, text, opt)
		if err == nil {
			return nil
		}
		last = err
		if i == s.cfg.RetryMax {
			break
		}
		delay := time.Duration(200+100*i) * time.Millisecond
		tmr := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			if !tmr.Stop() {
				<-tmr.C
			}
			return ctx.Err()
		case <-tmr.C:
		}
	}
	return last
}
