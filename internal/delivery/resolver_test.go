package delivery

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"gamehub/internal/catalog"
)

func TestResolvePrefersRepostOverLocal(t *testing.T) {
	dir := t.TempDir()
	local := filepath.Join(dir, "game.apk")
	require.NoError(t, os.WriteFile(local, []byte("x"), 0o644))

	r := Resolver{FilesDir: dir}
	strat, ok := r.Resolve(catalog.ContentRecord{
		ID:       1,
		FileLink: "https://t.me/c/123456/42",
		FilePath: local,
	})
	require.True(t, ok)
	require.Equal(t, StrategyRepost, strat.Kind)
	require.Equal(t, int64(-100123456), strat.Source.ID)
	require.Equal(t, 42, strat.MessageID)
}

func TestResolveExternalLink(t *testing.T) {
	r := Resolver{FilesDir: t.TempDir()}
	strat, ok := r.Resolve(catalog.ContentRecord{ID: 1, FileLink: "https://cdn.example.com/game.zip"})
	require.True(t, ok)
	require.Equal(t, StrategyFetch, strat.Kind)
	require.Equal(t, "https://cdn.example.com/game.zip", strat.URL)
}

func TestResolveLocalCandidates(t *testing.T) {
	dir := t.TempDir()
	r := Resolver{FilesDir: dir}

	// Nothing on disk: no source.
	_, ok := r.Resolve(catalog.ContentRecord{ID: 7})
	require.False(t, ok)

	// The id.apk fallback is probed when explicit paths miss.
	apk := filepath.Join(dir, "7.apk")
	require.NoError(t, os.WriteFile(apk, []byte("x"), 0o644))
	strat, ok := r.Resolve(catalog.ContentRecord{ID: 7, FilePath: filepath.Join(dir, "missing")})
	require.True(t, ok)
	require.Equal(t, StrategyLocal, strat.Kind)
	require.Equal(t, apk, strat.Path)

	// An explicit file_name wins over the id probes.
	named := filepath.Join(dir, "seven.zip")
	require.NoError(t, os.WriteFile(named, []byte("x"), 0o644))
	strat, ok = r.Resolve(catalog.ContentRecord{ID: 7, FileName: "seven.zip"})
	require.True(t, ok)
	require.Equal(t, named, strat.Path)
}

func TestResolveDirectoryIsNotAFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "7"), 0o755))
	_, ok := Resolver{FilesDir: dir}.Resolve(catalog.ContentRecord{ID: 7})
	require.False(t, ok)
}

func TestParsePlatformPostLink(t *testing.T) {
	tests := []struct {
		link   string
		ok     bool
		chatID int64
		user   string
		msgID  int
	}{
		{"https://t.me/c/2233445566/17", true, -1002233445566, "", 17},
		{"https://t.me/gamehub_channel/99", true, 0, "gamehub_channel", 99},
		{"https://telegram.me/gamehub_channel/99", true, 0, "gamehub_channel", 99},
		{"https://t.me/gamehub_channel", false, 0, "", 0},
		{"https://t.me/c/123/abc", false, 0, "", 0},
		{"https://example.com/c/123/1", false, 0, "", 0},
		{"not a url ://", false, 0, "", 0},
	}
	for _, tt := range tests {
		src, msgID, ok := parsePlatformPostLink(tt.link)
		require.Equal(t, tt.ok, ok, tt.link)
		if !tt.ok {
			continue
		}
		require.Equal(t, tt.chatID, src.ID, tt.link)
		require.Equal(t, tt.user, src.Username, tt.link)
		require.Equal(t, tt.msgID, msgID, tt.link)
	}
}
