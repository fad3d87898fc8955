package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"gamehub/internal/storage"
	logx "gamehub/pkg/logx"
)

// memBack is an in-memory storage.Store with per-call failure injection.
type memBack struct {
	docs    map[string][]byte
	failing bool
	saves   int
}

var errDiskFull = errors.New("disk full")

func newMemBack() *memBack { return &memBack{docs: map[string][]byte{}} }

func (m *memBack) LoadCollection(_ context.Context, name string, out any) error {
	_, ok := m.docs[name]
	if !ok {
		return storage.ErrNotFound
	}
	return nil
}

func (m *memBack) SaveCollection(_ context.Context, name string, _ any) error {
	m.saves++
	if m.failing {
		return errDiskFull
	}
	m.docs[name] = []byte("{}")
	return nil
}

func (m *memBack) Close() error { return nil }

func newTestStore(t *testing.T) (*Store, *memBack) {
	t.Helper()
	back := newMemBack()
	s := NewStore(back, logx.Nop())
	require.NoError(t, s.Load(context.Background()))
	return s, back
}

func futureEnd() string {
	return time.Now().Add(24 * time.Hour).Format(EndTimeLayout)
}

func TestAddContentValidatesName(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.AddContent(context.Background(), ContentInput{Name: "   "})
	require.ErrorIs(t, err, ErrValidation)
}

func TestAddContentRollsBackOnPersistFailure(t *testing.T) {
	s, back := newTestStore(t)
	back.failing = true

	_, err := s.AddContent(context.Background(), ContentInput{Name: "Shadow Quest"})
	var perr *PersistError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, "content", perr.Collection)
	require.ErrorIs(t, err, errDiskFull)
	require.Empty(t, s.Contents())

	back.failing = false
	id, err := s.AddContent(context.Background(), ContentInput{Name: "Shadow Quest"})
	require.NoError(t, err)
	require.Equal(t, 1, id)
}

func TestUpdateContentUnknownField(t *testing.T) {
	s, _ := newTestStore(t)
	id, err := s.AddContent(context.Background(), ContentInput{Name: "Shadow Quest"})
	require.NoError(t, err)

	require.ErrorIs(t, s.UpdateContent(context.Background(), id, "bogus", "x"), ErrValidation)
	require.ErrorIs(t, s.UpdateContent(context.Background(), 999, "name", "x"), ErrNotFound)

	require.NoError(t, s.UpdateContent(context.Background(), id, "genre", "rpg"))
	rec, ok := s.GetContent(id)
	require.True(t, ok)
	require.Equal(t, "rpg", rec.Genre)
}

func TestContentIDsNeverReused(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	a, _ := s.AddContent(ctx, ContentInput{Name: "A"})
	b, _ := s.AddContent(ctx, ContentInput{Name: "B"})
	require.NoError(t, s.DeleteContent(ctx, a))

	c, _ := s.AddContent(ctx, ContentInput{Name: "C"})
	require.Greater(t, c, b)
}

func TestSearchHelpers(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	_, _ = s.AddContent(ctx, ContentInput{Name: "Shadow Quest", Genre: "RPG", SizeCategory: "large"})
	_, _ = s.AddContent(ctx, ContentInput{Name: "Pixel Racer", Genre: "arcade", SizeCategory: "small"})

	require.Len(t, s.SearchByName("shadow"), 1)
	require.Len(t, s.SearchByGenre("rpg"), 1)
	require.Len(t, s.SearchBySize("SMALL"), 1)
	require.Empty(t, s.SearchByName("zzz"))
}

func TestAddGiveawayRejectsBadEndDate(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.AddGiveaway(context.Background(), GiveawayInput{Title: "G", EndAt: "2026-01-01 10:00"})
	require.ErrorIs(t, err, ErrValidation)

	_, err = s.AddGiveaway(context.Background(), GiveawayInput{Title: "G", EndAt: "01.01.2027 10:00"})
	require.NoError(t, err)
}

func TestAddParticipantJoinOnce(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	id, err := s.AddGiveaway(ctx, GiveawayInput{Title: "G", EndAt: futureEnd()})
	require.NoError(t, err)

	p := Participant{ID: 42, Username: "alice"}
	joined, err := s.AddParticipant(ctx, id, p)
	require.NoError(t, err)
	require.True(t, joined)

	joined, err = s.AddParticipant(ctx, id, p)
	require.NoError(t, err)
	require.False(t, joined)

	g, ok := s.GetGiveaway(id)
	require.True(t, ok)
	require.Len(t, g.Participants, 1)
}

func TestAddParticipantAfterEnd(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	id, _ := s.AddGiveaway(ctx, GiveawayInput{Title: "G", EndAt: futureEnd()})
	require.NoError(t, s.EndGiveaway(ctx, id, nil))

	_, err := s.AddParticipant(ctx, id, Participant{ID: 1})
	require.ErrorIs(t, err, ErrGiveawayEnded)
}

func TestAddParticipantRollsBackOnPersistFailure(t *testing.T) {
	s, back := newTestStore(t)
	ctx := context.Background()
	id, _ := s.AddGiveaway(ctx, GiveawayInput{Title: "G", EndAt: futureEnd()})

	back.failing = true
	_, err := s.AddParticipant(ctx, id, Participant{ID: 7})
	var perr *PersistError
	require.ErrorAs(t, err, &perr)

	g, _ := s.GetGiveaway(id)
	require.Empty(t, g.Participants)
}

func TestDrawWinner(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	id, _ := s.AddGiveaway(ctx, GiveawayInput{Title: "G", EndAt: futureEnd()})
	_, _ = s.AddParticipant(ctx, id, Participant{ID: 1, Username: "alice"})
	_, _ = s.AddParticipant(ctx, id, Participant{ID: 2, FirstName: "Bob"})

	w, err := s.DrawWinner(ctx, id, func(n int) int { return n - 1 })
	require.NoError(t, err)
	require.NotNil(t, w)
	require.Equal(t, int64(2), w.ID)
	require.Equal(t, "Bob", w.Name)

	// Redrawing an ended giveaway returns the recorded winner unchanged.
	again, err := s.DrawWinner(ctx, id, func(n int) int { return 0 })
	require.NoError(t, err)
	require.Equal(t, w, again)

	g, _ := s.GetGiveaway(id)
	require.True(t, g.Ended)
}

func TestDrawWinnerNoParticipants(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	id, _ := s.AddGiveaway(ctx, GiveawayInput{Title: "G", EndAt: futureEnd()})

	w, err := s.DrawWinner(ctx, id, func(n int) int { return 0 })
	require.NoError(t, err)
	require.Nil(t, w)

	g, _ := s.GetGiveaway(id)
	require.True(t, g.Ended)
	require.Nil(t, g.Winner)

	// Still ended and winnerless on a second pass.
	w, err = s.DrawWinner(ctx, id, func(n int) int { return 0 })
	require.NoError(t, err)
	require.Nil(t, w)
}

func TestEndedWithoutWinnerStaysWinnerless(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	id, _ := s.AddGiveaway(ctx, GiveawayInput{Title: "G", EndAt: futureEnd()})

	// A zero-participant expiry is a recorded outcome.
	w, err := s.DrawWinner(ctx, id, func(n int) int { return 0 })
	require.NoError(t, err)
	require.Nil(t, w)

	// A later winner write on the settled record is a no-op.
	require.NoError(t, s.EndGiveaway(ctx, id, &Winner{ID: 9, Name: "nine"}))

	g, _ := s.GetGiveaway(id)
	require.True(t, g.Ended)
	require.Nil(t, g.Winner)
}

func TestEndGiveawayWinnerImmutable(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	id, _ := s.AddGiveaway(ctx, GiveawayInput{Title: "G", EndAt: futureEnd()})

	require.NoError(t, s.EndGiveaway(ctx, id, &Winner{ID: 1, Name: "alice"}))
	require.NoError(t, s.EndGiveaway(ctx, id, &Winner{ID: 2, Name: "mallory"}))

	g, _ := s.GetGiveaway(id)
	require.NotNil(t, g.Winner)
	require.Equal(t, int64(1), g.Winner.ID)
}

func TestActiveAndEndedPartition(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	a, _ := s.AddGiveaway(ctx, GiveawayInput{Title: "A", EndAt: futureEnd()})
	_, _ = s.AddGiveaway(ctx, GiveawayInput{Title: "B", EndAt: futureEnd()})
	require.NoError(t, s.EndGiveaway(ctx, a, nil))

	require.Len(t, s.ActiveGiveaways(), 1)
	require.Len(t, s.EndedGiveaways(), 1)
}

func TestGetGiveawayReturnsCopy(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	id, _ := s.AddGiveaway(ctx, GiveawayInput{Title: "G", EndAt: futureEnd()})
	_, _ = s.AddParticipant(ctx, id, Participant{ID: 1, Username: "alice"})

	g, _ := s.GetGiveaway(id)
	g.Participants[0].Username = "tampered"

	fresh, _ := s.GetGiveaway(id)
	require.Equal(t, "alice", fresh.Participants[0].Username)
}

func TestAddUserDedup(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	added, err := s.AddUser(ctx, 10, "alice", "Alice")
	require.NoError(t, err)
	require.True(t, added)

	added, err = s.AddUser(ctx, 10, "alice2", "Alice")
	require.NoError(t, err)
	require.False(t, added)

	users := s.Users()
	require.Len(t, users, 1)
	require.Equal(t, "alice2", users[0].Username)
}

func TestSuggestionLifecycle(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.AddSuggestion(ctx, 10, "alice", "  ")
	require.ErrorIs(t, err, ErrValidation)

	id, err := s.AddSuggestion(ctx, 10, "alice", "add more racing games")
	require.NoError(t, err)
	require.Len(t, s.PendingSuggestions(), 1)

	require.ErrorIs(t, s.UpdateSuggestionStatus(ctx, id, "bogus"), ErrValidation)
	require.NoError(t, s.UpdateSuggestionStatus(ctx, id, SuggestionApproved))
	require.Empty(t, s.PendingSuggestions())
}

func TestAdminRoster(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	added, err := s.AddAdmin(ctx, 1, "root", 10)
	require.NoError(t, err)
	require.True(t, added)
	added, _ = s.AddAdmin(ctx, 1, "root", 10)
	require.False(t, added)
	_, _ = s.AddAdmin(ctx, 2, "mod", 5)

	require.True(t, s.IsAdmin(1))
	require.False(t, s.IsAdmin(99))
	require.Len(t, s.StaffAbove(5), 2)
	require.Len(t, s.StaffAbove(6), 1)

	require.NoError(t, s.RemoveAdmin(ctx, 2))
	require.ErrorIs(t, s.RemoveAdmin(ctx, 2), ErrNotFound)
}

func TestParticipantDisplayName(t *testing.T) {
	require.Equal(t, "alice", Participant{Username: "alice", FirstName: "Alice"}.DisplayName())
	require.Equal(t, "Alice", Participant{FirstName: "Alice"}.DisplayName())
}
