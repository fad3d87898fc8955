// Package giveaway runs the giveaway lifecycle: joining, announcements, and
// the background expiry monitor that draws winners.
package giveaway

import (
	"context"
	"fmt"
	"math/rand"

	"gamehub/internal/broadcast"
	"gamehub/internal/catalog"
	kit "gamehub/internal/transport"
	logx "gamehub/pkg/logx"
)

type JoinResult string

const (
	Joined        JoinResult = "joined"
	AlreadyJoined JoinResult = "already_joined"
)

type Service struct {
	log     logx.Logger
	store   *catalog.Store
	adapter kit.Adapter
	caster  *broadcast.Service
}

func NewService(store *catalog.Store, adapter kit.Adapter, caster *broadcast.Service, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{log: log, store: store, adapter: adapter, caster: caster}
}

// Join adds the user to the giveaway's participant list at most once.
func (s *Service) Join(ctx context.Context, giveawayID int, userID int64, username, firstName string) (JoinResult, error) {
	added, err := s.store.AddParticipant(ctx, giveawayID, catalog.Participant{
		ID:        userID,
		Username:  username,
		FirstName: firstName,
	})
	if err != nil {
		return "", err
	}
	if !added {
		return AlreadyJoined, nil
	}
	return Joined, nil
}

func (s *Service) ListActive() []catalog.GiveawayRecord {
	return s.store.ActiveGiveaways()
}

// Announce broadcasts a new giveaway to every known user.
func (s *Service) Announce(ctx context.Context, g catalog.GiveawayRecord) broadcast.Report {
	users := s.store.Users()
	ids := make([]int64, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	text := fmt.Sprintf(
		"🎉 <b>New giveaway!</b>\n\n🎁 <b>%s</b>\n\n%s\n\n🏆 Prize: %s\n📅 Ends: %s\n\nOpen the Giveaways section to join.",
		g.Title, g.Description, g.Prize, g.EndAt,
	)
	return s.caster.Broadcast(ctx, "giveaway.announce", text, ids, &kit.SendOptions{ParseMode: "HTML"})
}

// EndNow is the manual admin path: it ends the giveaway immediately through
// the same atomic draw the monitor uses, then notifies the winner. An
// already-settled giveaway returns its recorded winner with
// catalog.ErrGiveawayEnded and is never re-notified.
func (s *Service) EndNow(ctx context.Context, giveawayID int) (*catalog.Winner, error) {
	g, ok := s.store.GetGiveaway(giveawayID)
	if !ok {
		return nil, catalog.ErrNotFound
	}
	if g.Ended {
		return g.Winner, catalog.ErrGiveawayEnded
	}
	winner, err := s.store.DrawWinner(ctx, giveawayID, rand.Intn)
	if err != nil {
		return nil, err
	}
	if winner != nil {
		s.notifyWinner(ctx, g, winner)
	}
	return winner, nil
}

// notifyWinner delivers the private congratulation. The selection is the
// durable fact; notification is best-effort and never rolled back.
func (s *Service) notifyWinner(ctx context.Context, g catalog.GiveawayRecord, w *catalog.Winner) {
	text := fmt.Sprintf(
		"🎉 Congratulations! You won the giveaway: <b>%s</b>!\n\n🆔 Giveaway ID: %d\n\nContact the administrators to claim your prize.",
		g.Title, g.ID,
	)
	_, err := s.adapter.SendText(ctx, kit.ChatTarget{ChatID: w.ID}, text, &kit.SendOptions{ParseMode: "HTML"})
	if err != nil {
		s.log.Error("failed to notify winner",
			logx.Int("giveaway", g.ID), logx.Int64("winner", w.ID), logx.Err(err))
		return
	}
	s.log.Info("winner notified", logx.Int("giveaway", g.ID), logx.Int64("winner", w.ID))
}
