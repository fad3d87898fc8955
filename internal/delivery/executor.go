package delivery

import (
	"context"
	"time"

	"github.com/google/uuid"

	"gamehub/internal/catalog"
	kit "gamehub/internal/transport"
	logx "gamehub/pkg/logx"
)

const (
	defaultRecentWindow = 8 * time.Second
	defaultNetTimeout   = 45 * time.Second
)

// Request is one user-triggered delivery. It lives for the duration of a
// single Execute call and is never persisted.
type Request struct {
	ID          string
	RequesterID int64
	OriginChat  kit.ChatTarget // chat the request was triggered from
	Content     catalog.ContentRecord
}

// NewRequest builds a request for the given record and requester.
func NewRequest(rec catalog.ContentRecord, requesterID int64, origin kit.ChatTarget) Request {
	return Request{
		ID:          uuid.NewString(),
		RequesterID: requesterID,
		OriginChat:  origin,
		Content:     rec,
	}
}

type Config struct {
	// RecentWindow suppresses a second physical send of the same content to
	// a user this soon after a completed delivery.
	RecentWindow time.Duration
	// NetTimeout bounds each network suspension point (fetch, repost, send).
	NetTimeout time.Duration
}

// Executor runs the resolved strategy for a request. One instance serves all
// requests; per-requester serialization lives in the Guard.
type Executor struct {
	log      logx.Logger
	adapter  kit.Adapter
	guard    *Guard
	resolver Resolver
	fetcher  *Fetcher

	recentWindow time.Duration
	netTimeout   time.Duration
}

func NewExecutor(cfg Config, adapter kit.Adapter, guard *Guard, resolver Resolver, fetcher *Fetcher, log logx.Logger) *Executor {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.RecentWindow <= 0 {
		cfg.RecentWindow = defaultRecentWindow
	}
	if cfg.NetTimeout <= 0 {
		cfg.NetTimeout = defaultNetTimeout
	}
	return &Executor{
		log:          log,
		adapter:      adapter,
		guard:        guard,
		resolver:     resolver,
		fetcher:      fetcher,
		recentWindow: cfg.RecentWindow,
		netTimeout:   cfg.NetTimeout,
	}
}

// Execute resolves and runs the delivery. The guard is acquired before any
// I/O and released on every return path; a temp file staged for a remote
// fetch never survives the call.
func (e *Executor) Execute(ctx context.Context, req Request) Outcome {
	if !e.guard.TryAcquire(req.RequesterID) {
		return Busy()
	}
	defer e.guard.Release(req.RequesterID)

	log := e.log.With(
		logx.String("req", req.ID),
		logx.Int64("user", req.RequesterID),
		logx.Int("content", req.Content.ID),
	)

	strat, ok := e.resolver.Resolve(req.Content)
	if !ok {
		log.Info("delivery has no source")
		return Failed(ReasonNoSource, nil)
	}

	switch strat.Kind {
	case StrategyRepost:
		return e.repost(ctx, req, strat, log)
	case StrategyFetch:
		return e.fetch(ctx, req, strat, log)
	default:
		return e.local(ctx, req, strat, log)
	}
}

// repost copies (or, failing that, forwards) the original platform message.
// On failure it reports the failure rather than degrading to a download:
// the user may already have received the copy, and a downloaded duplicate
// next to it is worse than an explicit error.
func (e *Executor) repost(ctx context.Context, req Request, strat Strategy, log logx.Logger) Outcome {
	to := kit.ChatTarget{ChatID: req.RequesterID}

	cctx, cancel := context.WithTimeout(ctx, e.netTimeout)
	defer cancel()

	sent, err := e.adapter.CopyMessage(cctx, to, strat.Source, strat.MessageID)
	if err != nil {
		log.Info("copy failed, trying forward", logx.Err(err))
		sent, err = e.adapter.ForwardMessage(cctx, to, strat.Source, strat.MessageID)
	}
	if err != nil {
		log.Warn("platform repost failed", logx.Err(err))
		return Failed(ReasonRepost, err)
	}

	if sent.HasMedia {
		// Strip the inherited caption; best-effort.
		if err := e.adapter.EditCaption(cctx, sent.Ref, ""); err != nil {
			log.Debug("caption strip failed", logx.Err(err))
		}
		e.guard.RecordDelivery(req.RequesterID, sent.FileUniqueID)
	}
	log.Info("delivered via repost", logx.Int("msg", sent.Ref.MessageID))
	return Delivered()
}

func (e *Executor) fetch(ctx context.Context, req Request, strat Strategy, log logx.Logger) Outcome {
	if e.guard.WasRecentlyDelivered(req.RequesterID, e.recentWindow) {
		log.Info("skipping send, content recently delivered")
		return Delivered()
	}

	dctx, cancel := context.WithTimeout(ctx, e.netTimeout)
	defer cancel()

	tmpPath, filename, cleanup, err := e.fetcher.Download(dctx, strat.URL)
	if err != nil {
		log.Warn("remote fetch failed", logx.String("url", strat.URL), logx.Err(err))
		if _, ok := err.(*HTTPStatusError); ok {
			return Failed(ReasonHTTPStatus, err)
		}
		return Failed(ReasonNetwork, err)
	}
	defer cleanup()

	return e.sendFile(ctx, req, tmpPath, filename, log)
}

func (e *Executor) local(ctx context.Context, req Request, strat Strategy, log logx.Logger) Outcome {
	if e.guard.WasRecentlyDelivered(req.RequesterID, e.recentWindow) {
		log.Info("skipping send, content recently delivered")
		return Delivered()
	}
	return e.sendFile(ctx, req, strat.Path, req.Content.FileName, log)
}

// sendFile delivers a file to the requester's private chat, falling back to
// the originating chat with an explicit notice when the private send fails
// (commonly: the user never opened a private chat with the bot).
func (e *Executor) sendFile(ctx context.Context, req Request, path, filename string, log logx.Logger) Outcome {
	sctx, cancel := context.WithTimeout(ctx, e.netTimeout)
	defer cancel()

	sent, err := e.adapter.SendDocument(sctx, kit.ChatTarget{ChatID: req.RequesterID}, path, filename)
	if err == nil {
		e.guard.RecordDelivery(req.RequesterID, sent.FileUniqueID)
		log.Info("delivered to private chat", logx.String("file", filename))
		return Delivered()
	}
	log.Warn("private send failed, falling back to origin chat", logx.Err(err))

	if req.OriginChat.ChatID != 0 && req.OriginChat.ChatID != req.RequesterID {
		sent, err2 := e.adapter.SendDocument(sctx, req.OriginChat, path, filename)
		if err2 == nil {
			_, _ = e.adapter.SendText(sctx, req.OriginChat,
				"Could not reach you in private messages; the file was sent here instead.", nil)
			e.guard.RecordDelivery(req.RequesterID, sent.FileUniqueID)
			log.Info("delivered to origin chat", logx.String("file", filename))
			return Delivered()
		}
		log.Warn("origin chat send failed", logx.Err(err2))
		err = err2
	}
	return Failed(ReasonIO, err)
}
