package telegram

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	tele "gopkg.in/telebot.v4"

	kit "gamehub/internal/transport"
	logx "gamehub/pkg/logx"
)

type Config struct {
	Token       string
	PollTimeout time.Duration
}

type Adapter struct {
	cfg Config
	log logx.Logger

	bot     *tele.Bot
	out     atomic.Value // stores (chan<- kit.Update)
	runMu   sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	// droppedUpdates counts updates dropped because the consumer was slower
	// than the Telegram poll loop. Logged periodically to avoid per-update spam.
	droppedUpdates uint64
}

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: timeout},
	})
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	a := &Adapter{cfg: cfg, log: log, bot: b}
	// Ensure atomic.Value is initialized with a stable dynamic type.
	var nilOut chan<- kit.Update
	a.out.Store(nilOut)
	a.registerHandlers()
	return a, nil
}

func (a *Adapter) registerHandlers() {
	// Handlers forward to the CURRENT output channel. Start() may swap it.
	a.bot.Handle(tele.OnText, func(c tele.Context) error {
		m := c.Message()
		if m == nil || m.Sender == nil {
			return nil
		}
		a.sendUpdate(kit.Update{
			Kind: kit.UpdateMessage,
			Message: &kit.Message{
				ID:           m.ID,
				ChatID:       m.Chat.ID,
				FromID:       m.Sender.ID,
				FromUsername: m.Sender.Username,
				FromName:     m.Sender.FirstName,
				Text:         m.Text,
				IsGroup:      m.Chat.Type != tele.ChatPrivate,
			},
		})
		return nil
	})

	a.bot.Handle(tele.OnCallback, func(c tele.Context) error {
		cb := c.Callback()
		m := c.Message()
		if cb == nil || m == nil || cb.Sender == nil {
			return nil
		}
		a.sendUpdate(kit.Update{
			Kind: kit.UpdateCallback,
			Callback: &kit.Callback{
				ID:           cb.ID,
				FromID:       cb.Sender.ID,
				FromUsername: cb.Sender.Username,
				FromName:     cb.Sender.FirstName,
				ChatID:       m.Chat.ID,
				MessageID:    m.ID,
				Data:         strings.TrimPrefix(cb.Data, "\f"),
			},
		})
		return nil
	})
}

func (a *Adapter) sendUpdate(up kit.Update) {
	v := a.out.Load()
	out, _ := v.(chan<- kit.Update)
	if out == nil {
		return
	}
	select {
	case out <- up:
	default:
		atomic.AddUint64(&a.droppedUpdates, 1)
	}
}

func (a *Adapter) Start(ctx context.Context, out chan<- kit.Update) error {
	if ctx == nil {
		ctx = context.Background()
	}
	a.runMu.Lock()
	if a.running {
		a.runMu.Unlock()
		return nil
	}
	a.running = true
	a.out.Store(out)
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.runMu.Unlock()

	// Periodic summary for dropped updates (avoid noisy per-update logs).
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				if n := atomic.SwapUint64(&a.droppedUpdates, 0); n > 0 {
					a.log.Warn("incoming updates dropped (channel full)", logx.Any("count", n))
				}
				return
			case <-ticker.C:
				if n := atomic.SwapUint64(&a.droppedUpdates, 0); n > 0 {
					a.log.Warn("incoming updates dropped (channel full)", logx.Any("count", n))
				}
			}
		}
	}()

	// Ensure we stop telebot when the adapter context is cancelled.
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		<-runCtx.Done()
		if a.bot != nil {
			a.bot.Stop()
		}
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.log.Info("polling started")
		a.bot.Start() // blocks until Stop()
		a.log.Info("polling stopped")
	}()

	return nil
}

func (a *Adapter) Stop(ctx context.Context) error {
	a.runMu.Lock()
	wasRunning := a.running
	a.running = false
	cancel := a.cancel
	a.cancel = nil
	var nilOut chan<- kit.Update
	a.out.Store(nilOut)
	a.runMu.Unlock()

	if !wasRunning {
		return nil
	}
	if cancel != nil {
		cancel()
	}

	// Grace window: keep shutdown snappy even if getUpdates long-poll is still waiting.
	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	grace := 2 * time.Second
	if dl, ok := ctx.Deadline(); ok {
		if rem := time.Until(dl); rem > 0 && rem < grace {
			grace = rem
		}
	}
	select {
	case <-done:
	case <-time.After(grace):
		a.log.Warn("telegram stop timed out")
	}
	return nil
}

// ---- outbound primitives ----

func (a *Adapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	_ = ctx
	m, err := a.bot.Send(tele.ChatID(to.ChatID), text, mapSendOptions(opt))
	if err != nil {
		return kit.MessageRef{}, err
	}
	return kit.MessageRef{ChatID: m.Chat.ID, MessageID: m.ID}, nil
}

func (a *Adapter) SendDocument(ctx context.Context, to kit.ChatTarget, path, filename string) (kit.SentMessage, error) {
	_ = ctx
	doc := &tele.Document{File: tele.FromDisk(path), FileName: filename}
	m, err := a.bot.Send(tele.ChatID(to.ChatID), doc)
	if err != nil {
		return kit.SentMessage{}, err
	}
	return sentFromMessage(m), nil
}

func (a *Adapter) SendDocumentURL(ctx context.Context, to kit.ChatTarget, url, filename string) (kit.SentMessage, error) {
	_ = ctx
	doc := &tele.Document{File: tele.FromURL(url), FileName: filename}
	m, err := a.bot.Send(tele.ChatID(to.ChatID), doc)
	if err != nil {
		return kit.SentMessage{}, err
	}
	return sentFromMessage(m), nil
}

func (a *Adapter) CopyMessage(ctx context.Context, to kit.ChatTarget, from kit.ChatRef, messageID int) (kit.SentMessage, error) {
	src, err := a.resolveSource(ctx, from, messageID)
	if err != nil {
		return kit.SentMessage{}, err
	}
	m, err := a.bot.Copy(tele.ChatID(to.ChatID), src)
	if err != nil {
		return kit.SentMessage{}, err
	}
	return sentFromMessage(m), nil
}

func (a *Adapter) ForwardMessage(ctx context.Context, to kit.ChatTarget, from kit.ChatRef, messageID int) (kit.SentMessage, error) {
	src, err := a.resolveSource(ctx, from, messageID)
	if err != nil {
		return kit.SentMessage{}, err
	}
	m, err := a.bot.Forward(tele.ChatID(to.ChatID), src)
	if err != nil {
		return kit.SentMessage{}, err
	}
	return sentFromMessage(m), nil
}

func (a *Adapter) EditCaption(ctx context.Context, ref kit.MessageRef, caption string) error {
	_ = ctx
	_, err := a.bot.EditCaption(storedMessage(ref), caption)
	return err
}

func (a *Adapter) DeleteMessage(ctx context.Context, ref kit.MessageRef) error {
	_ = ctx
	return a.bot.Delete(storedMessage(ref))
}

func (a *Adapter) ChatInfo(ctx context.Context, chatID int64) (kit.ChatInfo, error) {
	_ = ctx
	ch, err := a.bot.ChatByID(chatID)
	if err != nil {
		return kit.ChatInfo{}, err
	}
	return kit.ChatInfo{ID: ch.ID, Type: string(ch.Type), Title: ch.Title, Username: ch.Username}, nil
}

func (a *Adapter) AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error {
	_ = ctx
	return a.bot.Respond(&tele.Callback{ID: callbackID}, &tele.CallbackResponse{Text: text, ShowAlert: alert})
}

// resolveSource turns a ChatRef + message id into a telebot Editable.
// Username refs require one extra getChat round-trip.
func (a *Adapter) resolveSource(ctx context.Context, from kit.ChatRef, messageID int) (tele.Editable, error) {
	chatID := from.ID
	if chatID == 0 {
		name := strings.TrimPrefix(strings.TrimSpace(from.Username), "@")
		if name == "" {
			return nil, errors.New("empty repost source")
		}
		ch, err := a.bot.ChatByUsername("@" + name)
		if err != nil {
			return nil, err
		}
		chatID = ch.ID
	}
	_ = ctx
	return tele.StoredMessage{MessageID: strconv.Itoa(messageID), ChatID: chatID}, nil
}

func storedMessage(ref kit.MessageRef) tele.Editable {
	return tele.StoredMessage{MessageID: strconv.Itoa(ref.MessageID), ChatID: ref.ChatID}
}

func sentFromMessage(m *tele.Message) kit.SentMessage {
	out := kit.SentMessage{Ref: kit.MessageRef{ChatID: m.Chat.ID, MessageID: m.ID}}
	switch {
	case m.Document != nil:
		out.FileUniqueID = m.Document.UniqueID
	case m.Photo != nil:
		out.FileUniqueID = m.Photo.UniqueID
	case m.Video != nil:
		out.FileUniqueID = m.Video.UniqueID
	case m.Animation != nil:
		out.FileUniqueID = m.Animation.UniqueID
	case m.Audio != nil:
		out.FileUniqueID = m.Audio.UniqueID
	case m.Voice != nil:
		out.FileUniqueID = m.Voice.UniqueID
	}
	out.HasMedia = out.FileUniqueID != ""
	return out
}

func mapSendOptions(opt *kit.SendOptions) *tele.SendOptions {
	if opt == nil {
		return &tele.SendOptions{}
	}
	so := &tele.SendOptions{
		ParseMode:             tele.ParseMode(opt.ParseMode),
		DisableWebPagePreview: opt.DisablePreview,
	}
	if rm, ok := opt.ReplyMarkup.(*tele.ReplyMarkup); ok {
		so.ReplyMarkup = rm
	}
	return so
}
