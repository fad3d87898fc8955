package delivery

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gamehub/internal/catalog"
	kit "gamehub/internal/transport"
)

type StrategyKind string

const (
	// StrategyRepost re-sends a message that already exists on the platform
	// by reference, without re-uploading bytes.
	StrategyRepost StrategyKind = "repost"
	StrategyFetch  StrategyKind = "fetch"
	StrategyLocal  StrategyKind = "local"
)

// Strategy is the single delivery plan chosen for a record. Exactly one of
// the kind-specific field groups is populated.
type Strategy struct {
	Kind StrategyKind

	// repost
	Source    kit.ChatRef
	MessageID int

	// fetch
	URL string

	// local
	Path string
}

// Resolver turns a content record into one strategy. Resolution order:
//
//  1. external reference pointing at the platform itself -> repost
//  2. any other external reference -> remote fetch
//  3. a local file found among the probe candidates -> local send
//  4. nothing -> no source
//
// A repost never degrades to fetch/local later; picking exactly one strategy
// here is what keeps a platform repost and a downloaded duplicate from both
// reaching the user for the same request.
type Resolver struct {
	// FilesDir is the directory local content files live in.
	FilesDir string
}

func (r Resolver) Resolve(rec catalog.ContentRecord) (Strategy, bool) {
	if link := strings.TrimSpace(rec.FileLink); link != "" {
		if src, msgID, ok := parsePlatformPostLink(link); ok {
			return Strategy{Kind: StrategyRepost, Source: src, MessageID: msgID}, true
		}
		return Strategy{Kind: StrategyFetch, URL: link}, true
	}

	for _, p := range r.localCandidates(rec) {
		if p == "" {
			continue
		}
		if st, err := os.Stat(p); err == nil && !st.IsDir() {
			return Strategy{Kind: StrategyLocal, Path: p}, true
		}
	}
	return Strategy{}, false
}

func (r Resolver) localCandidates(rec catalog.ContentRecord) []string {
	dir := r.FilesDir
	if dir == "" {
		dir = "files"
	}
	id := strconv.Itoa(rec.ID)
	candidates := []string{rec.FilePath}
	if rec.FileName != "" {
		candidates = append(candidates, filepath.Join(dir, rec.FileName))
	}
	return append(candidates,
		filepath.Join(dir, id),
		filepath.Join(dir, id+".apk"),
		filepath.Join(dir, id+".zip"),
	)
}

// parsePlatformPostLink recognizes t.me post links, both the private-channel
// form t.me/c/<internal-id>/<msg> and the public form t.me/<username>/<msg>.
func parsePlatformPostLink(link string) (kit.ChatRef, int, bool) {
	u, err := url.Parse(link)
	if err != nil {
		return kit.ChatRef{}, 0, false
	}
	host := strings.ToLower(u.Hostname())
	if host != "t.me" && host != "telegram.me" {
		return kit.ChatRef{}, 0, false
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) >= 3 && parts[0] == "c" {
		msgID, err := strconv.Atoi(parts[2])
		if err != nil {
			return kit.ChatRef{}, 0, false
		}
		chatID, err := strconv.ParseInt(fmt.Sprintf("-100%s", parts[1]), 10, 64)
		if err != nil {
			return kit.ChatRef{}, 0, false
		}
		return kit.ChatRef{ID: chatID}, msgID, true
	}
	if len(parts) >= 2 {
		msgID, err := strconv.Atoi(parts[1])
		if err != nil {
			return kit.ChatRef{}, 0, false
		}
		return kit.ChatRef{Username: parts[0]}, msgID, true
	}
	return kit.ChatRef{}, 0, false
}
