package delivery

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDownloadContentDispositionFilename(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Disposition", `attachment; filename="release-1.2.apk"`)
		_, _ = w.Write([]byte("bytes"))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir(), nil)
	tmpPath, filename, cleanup, err := f.Download(context.Background(), srv.URL+"/x")
	require.NoError(t, err)
	defer cleanup()

	require.Equal(t, "release-1.2.apk", filename)
	b, err := os.ReadFile(tmpPath)
	require.NoError(t, err)
	require.Equal(t, "bytes", string(b))

	cleanup()
	_, err = os.Stat(tmpPath)
	require.True(t, os.IsNotExist(err))
}

func TestDownloadURLFallbackFilename(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("bytes"))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir(), nil)
	_, filename, cleanup, err := f.Download(context.Background(), srv.URL+"/games/pack.zip")
	require.NoError(t, err)
	defer cleanup()
	require.Equal(t, "pack.zip", filename)
}

func TestDownloadNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir(), nil)
	_, _, cleanup, err := f.Download(context.Background(), srv.URL)
	require.Nil(t, cleanup)
	var herr *HTTPStatusError
	require.ErrorAs(t, err, &herr)
	require.Equal(t, http.StatusForbidden, herr.Code)
}

func TestDownloadContextCancel(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	f := NewFetcher(t.TempDir(), nil)
	_, _, _, err := f.Download(ctx, srv.URL)
	require.Error(t, err)
}

func TestResponseFilenameDefault(t *testing.T) {
	resp := &http.Response{Header: http.Header{}}
	require.Equal(t, "pack.zip", responseFilename(resp, "https://cdn.example.com/a/pack.zip"))
	require.Equal(t, "file", responseFilename(resp, "https://cdn.example.com/"))
}
