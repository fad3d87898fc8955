// Package bot routes incoming platform updates to the catalog, delivery and
// giveaway operations, and turns their outcomes into user-facing notices.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gamehub/internal/broadcast"
	"gamehub/internal/catalog"
	"gamehub/internal/delivery"
	"gamehub/internal/giveaway"
	kit "gamehub/internal/transport"
	logx "gamehub/pkg/logx"
)

// Callback data prefixes. The menu layer builds buttons with these; the
// router only parses them.
const (
	cbGetFile = "get_file:"
	cbJoin    = "join:"
)

type Config struct {
	// StaffRoleThreshold is the minimum admin role that receives forwarded
	// user suggestions.
	StaffRoleThreshold int
}

type Router struct {
	cfg     Config
	log     logx.Logger
	adapter kit.Adapter
	store   *catalog.Store
	exec    *delivery.Executor
	gsvc    *giveaway.Service
	caster  *broadcast.Service
}

func NewRouter(cfg Config, adapter kit.Adapter, store *catalog.Store, exec *delivery.Executor,
	gsvc *giveaway.Service, caster *broadcast.Service, log logx.Logger) *Router {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Router{
		cfg:     cfg,
		log:     log,
		adapter: adapter,
		store:   store,
		exec:    exec,
		gsvc:    gsvc,
		caster:  caster,
	}
}

// DispatchLoop consumes updates until ctx is cancelled. Each update is
// handled in its own goroutine; the Send Guard keeps per-user deliveries
// serialized regardless.
func (r *Router) DispatchLoop(ctx context.Context, updates <-chan kit.Update) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			go r.handle(ctx, up)
		}
	}
}

func (r *Router) handle(ctx context.Context, up kit.Update) {
	switch up.Kind {
	case kit.UpdateCallback:
		if up.Callback != nil {
			r.handleCallback(ctx, *up.Callback)
		}
	case kit.UpdateMessage:
		if up.Message != nil {
			r.handleMessage(ctx, *up.Message)
		}
	}
}

func (r *Router) handleCallback(ctx context.Context, cb kit.Callback) {
	switch {
	case strings.HasPrefix(cb.Data, cbGetFile):
		id, err := strconv.Atoi(strings.TrimPrefix(cb.Data, cbGetFile))
		if err != nil {
			r.answer(ctx, cb.ID, "Malformed request.", true)
			return
		}
		out := r.RequestDelivery(ctx, id, cb.FromID, kit.ChatTarget{ChatID: cb.ChatID})
		r.answer(ctx, cb.ID, deliveryNotice(out), out.Status != delivery.StatusDelivered)

	case strings.HasPrefix(cb.Data, cbJoin):
		id, err := strconv.Atoi(strings.TrimPrefix(cb.Data, cbJoin))
		if err != nil {
			r.answer(ctx, cb.ID, "Malformed request.", true)
			return
		}
		res, err := r.JoinGiveaway(ctx, id, cb.FromID, cb.FromUsername, cb.FromName)
		r.answer(ctx, cb.ID, joinNotice(res, err), err != nil)

	default:
		r.log.Debug("unhandled callback", logx.String("data", cb.Data))
	}
}

func (r *Router) handleMessage(ctx context.Context, m kit.Message) {
	cmd, args := splitCommand(m.Text)
	switch cmd {
	case "/start":
		if _, err := r.store.AddUser(ctx, m.FromID, m.FromUsername, m.FromName); err != nil {
			r.log.Error("failed to register user", logx.Int64("user", m.FromID), logx.Err(err))
		}
		r.reply(ctx, m.ChatID,
			"👋 Welcome to GameHub! Browse the catalog, grab files, and join giveaways.")

	case "/giveaways":
		r.reply(ctx, m.ChatID, formatGiveaways(r.ListActiveGiveaways()))

	case "/find":
		if strings.TrimSpace(args) == "" {
			r.reply(ctx, m.ChatID, "Usage: /find <name>")
			return
		}
		r.reply(ctx, m.ChatID, formatContents(r.store.SearchByName(args)))

	case "/random":
		rec, ok := r.store.RandomContent()
		if !ok {
			r.reply(ctx, m.ChatID, "The catalog is empty.")
			return
		}
		r.reply(ctx, m.ChatID, formatContents([]catalog.ContentRecord{rec}))

	case "/suggest":
		r.handleSuggestion(ctx, m, args)

	case "/end_giveaway":
		r.handleManualEnd(ctx, m, args)

	default:
		// Menu-driven text entry is handled by the outer keyboard/FSM layer.
	}
}

// ---- exposed operations ----

// RequestDelivery runs the full guard -> resolve -> execute pipeline for one
// content record.
func (r *Router) RequestDelivery(ctx context.Context, contentID int, requesterID int64, origin kit.ChatTarget) delivery.Outcome {
	rec, ok := r.store.GetContent(contentID)
	if !ok {
		return delivery.Failed(delivery.ReasonNoSource, catalog.ErrNotFound)
	}
	req := delivery.NewRequest(rec, requesterID, origin)
	return r.exec.Execute(ctx, req)
}

func (r *Router) JoinGiveaway(ctx context.Context, giveawayID int, userID int64, username, firstName string) (giveaway.JoinResult, error) {
	return r.gsvc.Join(ctx, giveawayID, userID, username, firstName)
}

// AnnounceNewGiveaway broadcasts the giveaway to every known user.
func (r *Router) AnnounceNewGiveaway(ctx context.Context, g catalog.GiveawayRecord) broadcast.Report {
	return r.gsvc.Announce(ctx, g)
}

func (r *Router) ListActiveGiveaways() []catalog.GiveawayRecord {
	return r.gsvc.ListActive()
}

// ---- message handlers ----

func (r *Router) handleSuggestion(ctx context.Context, m kit.Message, text string) {
	if strings.TrimSpace(text) == "" {
		r.reply(ctx, m.ChatID, "Usage: /suggest <your idea>")
		return
	}
	id, err := r.store.AddSuggestion(ctx, m.FromID, m.FromUsername, text)
	if err != nil {
		if errors.Is(err, catalog.ErrValidation) {
			r.reply(ctx, m.ChatID, "Usage: /suggest <your idea>")
			return
		}
		r.log.Error("failed to store suggestion", logx.Err(err))
		r.reply(ctx, m.ChatID, "Could not save your suggestion, please try again later.")
		return
	}

	staff := r.store.StaffAbove(r.cfg.StaffRoleThreshold)
	ids := make([]int64, 0, len(staff))
	for _, a := range staff {
		ids = append(ids, a.ID)
	}
	forward := fmt.Sprintf("💡 Suggestion #%d from @%s (%d):\n\n%s", id, m.FromUsername, m.FromID, text)
	rep := r.caster.Broadcast(ctx, "suggestion.forward", forward, ids, nil)
	r.log.Info("suggestion forwarded to staff",
		logx.Int("suggestion", id), logx.Int("sent", rep.Sent), logx.Int("failed", len(rep.Failed)))

	r.reply(ctx, m.ChatID, "✅ Thanks! Your suggestion was passed to the team.")
}

func (r *Router) handleManualEnd(ctx context.Context, m kit.Message, args string) {
	if !r.store.IsAdmin(m.FromID) {
		r.reply(ctx, m.ChatID, "⛔ You are not allowed to do that.")
		return
	}
	id, err := strconv.Atoi(strings.TrimSpace(args))
	if err != nil {
		r.reply(ctx, m.ChatID, "Usage: /end_giveaway <id>")
		return
	}
	winner, err := r.gsvc.EndNow(ctx, id)
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		r.reply(ctx, m.ChatID, "Giveaway not found.")
	case errors.Is(err, catalog.ErrGiveawayEnded):
		r.reply(ctx, m.ChatID, "This giveaway has already ended.")
	case err != nil:
		r.log.Error("manual giveaway end failed", logx.Int("giveaway", id), logx.Err(err))
		r.reply(ctx, m.ChatID, "Could not end the giveaway: "+err.Error())
	case winner == nil:
		r.reply(ctx, m.ChatID, "🏁 Giveaway ended with no participants.")
	default:
		r.reply(ctx, m.ChatID, fmt.Sprintf("🏁 Giveaway ended. Winner: %s (%d)", winner.Name, winner.ID))
	}
}

// ---- helpers ----

func (r *Router) reply(ctx context.Context, chatID int64, text string) {
	if _, err := r.adapter.SendText(ctx, kit.ChatTarget{ChatID: chatID}, text, nil); err != nil {
		r.log.Warn("reply failed", logx.Int64("chat", chatID), logx.Err(err))
	}
}

func (r *Router) answer(ctx context.Context, callbackID, text string, alert bool) {
	if err := r.adapter.AnswerCallback(ctx, callbackID, text, alert); err != nil {
		r.log.Debug("callback answer failed", logx.Err(err))
	}
}

func splitCommand(text string) (cmd, args string) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", text
	}
	cmd, args, _ = strings.Cut(text, " ")
	// Strip the bot-name suffix Telegram appends in groups (/cmd@bot).
	cmd, _, _ = strings.Cut(cmd, "@")
	return cmd, strings.TrimSpace(args)
}

// deliveryNotice maps an outcome to the short, specific notice the user sees.
func deliveryNotice(out delivery.Outcome) string {
	switch out.Status {
	case delivery.StatusDelivered:
		return "✅ Sent to your private messages."
	case delivery.StatusBusy:
		return "⏳ Your previous request is still being processed."
	}
	switch out.Reason {
	case delivery.ReasonNoSource:
		return "❌ No file is available for this item."
	case delivery.ReasonRepost:
		return "❌ The file exists in the channel but could not be reposted. Please contact the administrators."
	case delivery.ReasonNetwork, delivery.ReasonHTTPStatus:
		return "❌ Could not fetch the file."
	default:
		return "❌ Could not send the file."
	}
}

func joinNotice(res giveaway.JoinResult, err error) string {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		return "Giveaway not found."
	case errors.Is(err, catalog.ErrGiveawayEnded):
		return "This giveaway has already ended."
	case err != nil:
		return "Could not join, please try again later."
	case res == giveaway.AlreadyJoined:
		return "You are already participating. 🎲"
	default:
		return "🎉 You joined the giveaway. Good luck!"
	}
}

func formatContents(list []catalog.ContentRecord) string {
	if len(list) == 0 {
		return "🔍 Nothing found."
	}
	var b strings.Builder
	b.WriteString("🎮 Found:\n")
	for _, c := range list {
		fmt.Fprintf(&b, "\n#%d %s", c.ID, c.Name)
		if c.Genre != "" {
			fmt.Fprintf(&b, " [%s]", c.Genre)
		}
		if c.SizeCategory != "" {
			fmt.Fprintf(&b, " (%s)", c.SizeCategory)
		}
	}
	b.WriteString("\n\nUse the file button on an item's card to get it.")
	return b.String()
}

func formatGiveaways(list []catalog.GiveawayRecord) string {
	if len(list) == 0 {
		return "🎁 No active giveaways right now."
	}
	var b strings.Builder
	b.WriteString("🎁 Active giveaways:\n")
	for _, g := range list {
		fmt.Fprintf(&b, "\n#%d %s, prize: %s, ends %s (%d joined)",
			g.ID, g.Title, g.Prize, g.EndAt, len(g.Participants))
	}
	return b.String()
}
