// Package transporttest provides an in-memory Adapter for tests.
package transporttest

import (
	"context"
	"sync"

	kit "gamehub/internal/transport"
)

// Call records one adapter invocation.
type Call struct {
	Op       string // "send_text", "send_document", "copy", "forward", "edit_caption", ...
	ChatID   int64
	Text     string
	Path     string
	Filename string
	From     kit.ChatRef
	MsgID    int
}

// Fake is a scriptable kit.Adapter. Zero value succeeds on every call; assign
// the error fields to make specific operations fail.
type Fake struct {
	mu    sync.Mutex
	calls []Call
	seq   int

	SendTextErr error
	SendDocErr  error
	CopyErr     error
	ForwardErr  error
	CaptionErr  error

	// SendDocErrFor fails SendDocument only for these chat ids.
	SendDocErrFor map[int64]error
	// SendTextErrFor fails SendText only for these chat ids.
	SendTextErrFor map[int64]error

	// FileUniqueID is stamped on every sent/copied document.
	FileUniqueID string
}

var _ kit.Adapter = (*Fake)(nil)

func (f *Fake) record(c Call) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	f.calls = append(f.calls, c)
	return f.seq
}

// Calls returns a copy of every recorded call in order.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// CallsOf filters recorded calls by operation.
func (f *Fake) CallsOf(op string) []Call {
	var out []Call
	for _, c := range f.Calls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

func (f *Fake) uniqueID() string {
	if f.FileUniqueID != "" {
		return f.FileUniqueID
	}
	return "file-uid"
}

func (f *Fake) Start(context.Context, chan<- kit.Update) error { return nil }
func (f *Fake) Stop(context.Context) error                     { return nil }

func (f *Fake) SendText(_ context.Context, to kit.ChatTarget, text string, _ *kit.SendOptions) (kit.MessageRef, error) {
	id := f.record(Call{Op: "send_text", ChatID: to.ChatID, Text: text})
	if err, ok := f.SendTextErrFor[to.ChatID]; ok {
		return kit.MessageRef{}, err
	}
	if f.SendTextErr != nil {
		return kit.MessageRef{}, f.SendTextErr
	}
	return kit.MessageRef{ChatID: to.ChatID, MessageID: id}, nil
}

func (f *Fake) SendDocument(_ context.Context, to kit.ChatTarget, path, filename string) (kit.SentMessage, error) {
	id := f.record(Call{Op: "send_document", ChatID: to.ChatID, Path: path, Filename: filename})
	if err, ok := f.SendDocErrFor[to.ChatID]; ok {
		return kit.SentMessage{}, err
	}
	if f.SendDocErr != nil {
		return kit.SentMessage{}, f.SendDocErr
	}
	return kit.SentMessage{
		Ref:          kit.MessageRef{ChatID: to.ChatID, MessageID: id},
		FileUniqueID: f.uniqueID(),
		HasMedia:     true,
	}, nil
}

func (f *Fake) SendDocumentURL(ctx context.Context, to kit.ChatTarget, url, filename string) (kit.SentMessage, error) {
	return f.SendDocument(ctx, to, url, filename)
}

func (f *Fake) CopyMessage(_ context.Context, to kit.ChatTarget, from kit.ChatRef, messageID int) (kit.SentMessage, error) {
	id := f.record(Call{Op: "copy", ChatID: to.ChatID, From: from, MsgID: messageID})
	if f.CopyErr != nil {
		return kit.SentMessage{}, f.CopyErr
	}
	return kit.SentMessage{
		Ref:          kit.MessageRef{ChatID: to.ChatID, MessageID: id},
		FileUniqueID: f.uniqueID(),
		HasMedia:     true,
	}, nil
}

func (f *Fake) ForwardMessage(_ context.Context, to kit.ChatTarget, from kit.ChatRef, messageID int) (kit.SentMessage, error) {
	id := f.record(Call{Op: "forward", ChatID: to.ChatID, From: from, MsgID: messageID})
	if f.ForwardErr != nil {
		return kit.SentMessage{}, f.ForwardErr
	}
	return kit.SentMessage{
		Ref:          kit.MessageRef{ChatID: to.ChatID, MessageID: id},
		FileUniqueID: f.uniqueID(),
		HasMedia:     true,
	}, nil
}

func (f *Fake) EditCaption(_ context.Context, ref kit.MessageRef, caption string) error {
	f.record(Call{Op: "edit_caption", ChatID: ref.ChatID, MsgID: ref.MessageID, Text: caption})
	return f.CaptionErr
}

func (f *Fake) DeleteMessage(_ context.Context, ref kit.MessageRef) error {
	f.record(Call{Op: "delete", ChatID: ref.ChatID, MsgID: ref.MessageID})
	return nil
}

func (f *Fake) ChatInfo(_ context.Context, chatID int64) (kit.ChatInfo, error) {
	return kit.ChatInfo{ID: chatID, Type: "private"}, nil
}

func (f *Fake) AnswerCallback(_ context.Context, callbackID, text string, alert bool) error {
	f.record(Call{Op: "answer_callback", Text: text})
	return nil
}
