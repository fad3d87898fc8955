package giveaway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"gamehub/internal/broadcast"
	"gamehub/internal/catalog"
	"gamehub/internal/storage"
	"gamehub/internal/transport/transporttest"
	logx "gamehub/pkg/logx"
)

func newTestService(t *testing.T, fake *transporttest.Fake) (*Service, *catalog.Store) {
	t.Helper()
	back, err := storage.Open(storage.Config{Driver: "file", Path: t.TempDir()}, logx.Nop())
	require.NoError(t, err)
	store := catalog.NewStore(back, logx.Nop())
	require.NoError(t, store.Load(context.Background()))

	caster := broadcast.New(broadcast.Config{RatePerSec: 1000}, fake, logx.Nop())
	return NewService(store, fake, caster, logx.Nop()), store
}

func addGiveaway(t *testing.T, store *catalog.Store, endAt string) int {
	t.Helper()
	id, err := store.AddGiveaway(context.Background(), catalog.GiveawayInput{
		Title: "Gold Edition", Prize: "one key", EndAt: endAt,
	})
	require.NoError(t, err)
	return id
}

func futureEnd() string {
	return time.Now().Add(24 * time.Hour).Format(catalog.EndTimeLayout)
}

func TestJoin(t *testing.T) {
	fake := &transporttest.Fake{}
	svc, store := newTestService(t, fake)
	ctx := context.Background()
	id := addGiveaway(t, store, futureEnd())

	res, err := svc.Join(ctx, id, 42, "alice", "Alice")
	require.NoError(t, err)
	require.Equal(t, Joined, res)

	res, err = svc.Join(ctx, id, 42, "alice", "Alice")
	require.NoError(t, err)
	require.Equal(t, AlreadyJoined, res)

	_, err = svc.Join(ctx, 999, 42, "alice", "Alice")
	require.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestAnnounceReachesAllUsers(t *testing.T) {
	fake := &transporttest.Fake{}
	svc, store := newTestService(t, fake)
	ctx := context.Background()
	_, _ = store.AddUser(ctx, 10, "alice", "Alice")
	_, _ = store.AddUser(ctx, 11, "bob", "Bob")

	id := addGiveaway(t, store, futureEnd())
	g, _ := store.GetGiveaway(id)

	rep := svc.Announce(ctx, g)
	require.Equal(t, 2, rep.Sent)
	require.Empty(t, rep.Failed)
}

func TestEndNowDrawsAndNotifies(t *testing.T) {
	fake := &transporttest.Fake{}
	svc, store := newTestService(t, fake)
	ctx := context.Background()
	id := addGiveaway(t, store, futureEnd())
	_, _ = store.AddParticipant(ctx, id, catalog.Participant{ID: 42, Username: "alice"})

	w, err := svc.EndNow(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, w)
	require.Equal(t, int64(42), w.ID)

	texts := fake.CallsOf("send_text")
	require.Len(t, texts, 1)
	require.Equal(t, int64(42), texts[0].ChatID)

	g, _ := store.GetGiveaway(id)
	require.True(t, g.Ended)
}

func TestEndNowNoParticipants(t *testing.T) {
	fake := &transporttest.Fake{}
	svc, store := newTestService(t, fake)
	id := addGiveaway(t, store, futureEnd())

	w, err := svc.EndNow(context.Background(), id)
	require.NoError(t, err)
	require.Nil(t, w)
	require.Empty(t, fake.CallsOf("send_text"))
}

func TestEndNowRepeatDoesNotRenotify(t *testing.T) {
	fake := &transporttest.Fake{}
	svc, store := newTestService(t, fake)
	ctx := context.Background()
	id := addGiveaway(t, store, futureEnd())
	_, _ = store.AddParticipant(ctx, id, catalog.Participant{ID: 42, Username: "alice"})

	w, err := svc.EndNow(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, w)

	again, err := svc.EndNow(ctx, id)
	require.ErrorIs(t, err, catalog.ErrGiveawayEnded)
	require.Equal(t, w, again)

	// The winner heard about it exactly once.
	require.Len(t, fake.CallsOf("send_text"), 1)
}

func TestEndNowNotifyFailureKeepsWinner(t *testing.T) {
	fake := &transporttest.Fake{SendTextErr: errors.New("blocked")}
	svc, store := newTestService(t, fake)
	ctx := context.Background()
	id := addGiveaway(t, store, futureEnd())
	_, _ = store.AddParticipant(ctx, id, catalog.Participant{ID: 42, Username: "alice"})

	w, err := svc.EndNow(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, w)

	// The recorded winner survives the failed notification.
	g, _ := store.GetGiveaway(id)
	require.NotNil(t, g.Winner)
	require.Equal(t, int64(42), g.Winner.ID)
}
