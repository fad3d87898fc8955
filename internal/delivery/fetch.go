package delivery

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

const fetchChunkSize = 64 * 1024

// Fetcher stages remote resources in a scoped temporary file.
type Fetcher struct {
	client *http.Client
	tmpDir string
}

// NewFetcher creates a fetcher staging downloads under tmpDir. The client's
// own timeout is left at zero; callers bound each download with a context.
func NewFetcher(tmpDir string, client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{}
	}
	if tmpDir == "" {
		tmpDir = filepath.Join("files", "tmp")
	}
	return &Fetcher{client: client, tmpDir: tmpDir}
}

// Download streams the resource into a temp file and returns its path, the
// filename derived from the response, and a cleanup func that removes the
// temp file. cleanup is non-nil whenever path is, and must run on every exit
// path of the caller.
func (f *Fetcher) Download(ctx context.Context, rawURL string) (tmpPath, filename string, cleanup func(), err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", "", nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return "", "", nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", nil, &HTTPStatusError{Code: resp.StatusCode}
	}

	if err := os.MkdirAll(f.tmpDir, 0o755); err != nil {
		return "", "", nil, err
	}
	tmp, err := os.CreateTemp(f.tmpDir, "dl_*"+urlExt(rawURL))
	if err != nil {
		return "", "", nil, err
	}
	tmpPath = tmp.Name()
	cleanup = func() { _ = os.Remove(tmpPath) }

	// Bounded read loop; CopyBuffer never holds more than one chunk.
	buf := make([]byte, fetchChunkSize)
	if _, err := io.CopyBuffer(tmp, resp.Body, buf); err != nil {
		_ = tmp.Close()
		cleanup()
		return "", "", nil, err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", "", nil, err
	}

	return tmpPath, responseFilename(resp, rawURL), cleanup, nil
}

// responseFilename prefers the Content-Disposition filename and falls back
// to the last URL path segment.
func responseFilename(resp *http.Response, rawURL string) string {
	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil {
			if fn := strings.TrimSpace(params["filename"]); fn != "" {
				return path.Base(fn)
			}
		}
	}
	if u, err := url.Parse(rawURL); err == nil {
		if base := path.Base(u.Path); base != "" && base != "/" && base != "." {
			return base
		}
	}
	return fmt.Sprintf("file%s", urlExt(rawURL))
}

func urlExt(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return path.Ext(u.Path)
}
