package broadcast

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"gamehub/internal/transport/transporttest"
	logx "gamehub/pkg/logx"
)

func TestBroadcastAllDelivered(t *testing.T) {
	fake := &transporttest.Fake{}
	s := New(Config{RatePerSec: 1000}, fake, logx.Nop())

	rep := s.Broadcast(context.Background(), "test", "hello", []int64{1, 2, 3}, nil)
	require.Equal(t, 3, rep.Sent)
	require.Empty(t, rep.Failed)

	texts := fake.CallsOf("send_text")
	require.Len(t, texts, 3)
	require.Equal(t, int64(1), texts[0].ChatID)
	require.Equal(t, int64(3), texts[2].ChatID)
}

func TestBroadcastIsolatesFailures(t *testing.T) {
	fake := &transporttest.Fake{
		SendTextErrFor: map[int64]error{2: errors.New("blocked by user")},
	}
	s := New(Config{RatePerSec: 1000}, fake, logx.Nop())

	rep := s.Broadcast(context.Background(), "test", "hello", []int64{1, 2, 3}, nil)
	require.Equal(t, 2, rep.Sent)
	require.Equal(t, []int64{2}, rep.Failed)
	// The failing recipient did not stop the rest.
	require.Len(t, fake.CallsOf("send_text"), 3)
}

func TestBroadcastRetries(t *testing.T) {
	fake := &transporttest.Fake{SendTextErr: errors.New("flood wait")}
	s := New(Config{RatePerSec: 1000, RetryMax: 2}, fake, logx.Nop())

	rep := s.Broadcast(context.Background(), "test", "hello", []int64{7}, nil)
	require.Equal(t, 0, rep.Sent)
	require.Equal(t, []int64{7}, rep.Failed)
	// Initial attempt plus RetryMax retries.
	require.Len(t, fake.CallsOf("send_text"), 3)
}

func TestBroadcastCancelledContext(t *testing.T) {
	fake := &transporttest.Fake{}
	s := New(Config{RatePerSec: 1000}, fake, logx.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rep := s.Broadcast(ctx, "test", "hello", []int64{1, 2, 3}, nil)
	require.Equal(t, 0, rep.Sent)
	require.Equal(t, []int64{1, 2, 3}, rep.Failed)
	require.Empty(t, fake.CallsOf("send_text"))
}

func TestBroadcastEmptyRecipients(t *testing.T) {
	fake := &transporttest.Fake{}
	s := New(Config{}, fake, logx.Nop())

	rep := s.Broadcast(context.Background(), "test", "hello", nil, nil)
	require.Equal(t, 0, rep.Sent)
	require.Empty(t, rep.Failed)
}
