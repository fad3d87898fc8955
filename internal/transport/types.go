package transport

import "context"

type UpdateKind string

const (
	UpdateMessage  UpdateKind = "message"
	UpdateCallback UpdateKind = "callback"
)

type Update struct {
	Kind     UpdateKind
	Message  *Message
	Callback *Callback
}

type Message struct {
	ID           int
	ChatID       int64
	FromID       int64
	FromUsername string
	FromName     string
	Text         string
	IsGroup      bool
}

type Callback struct {
	ID           string
	FromID       int64
	FromUsername string
	FromName     string
	ChatID       int64
	MessageID    int
	Data         string
}

type ChatTarget struct {
	ChatID int64
}

type MessageRef struct {
	ChatID    int64
	MessageID int
}

// ChatRef identifies the source chat of a repost. Either the numeric ID or
// the public username is set; the adapter resolves usernames on demand.
type ChatRef struct {
	ID       int64
	Username string
}

// SentMessage describes a message the adapter just delivered. FileUniqueID is
// the platform-assigned identifier of the attached media (empty for plain
// text); it is what the duplicate-suppression cache keys on.
type SentMessage struct {
	Ref          MessageRef
	FileUniqueID string
	HasMedia     bool
}

type ChatInfo struct {
	ID       int64
	Type     string
	Title    string
	Username string
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
	ReplyMarkup    any // adapter-specific markup (Telegram: *telebot.ReplyMarkup)
}

// Adapter is the messaging-platform boundary. Every call is fallible and the
// core never assumes success.
type Adapter interface {
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error

	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
	SendDocument(ctx context.Context, to ChatTarget, path, filename string) (SentMessage, error)
	SendDocumentURL(ctx context.Context, to ChatTarget, url, filename string) (SentMessage, error)
	CopyMessage(ctx context.Context, to ChatTarget, from ChatRef, messageID int) (SentMessage, error)
	ForwardMessage(ctx context.Context, to ChatTarget, from ChatRef, messageID int) (SentMessage, error)
	EditCaption(ctx context.Context, ref MessageRef, caption string) error
	DeleteMessage(ctx context.Context, ref MessageRef) error
	ChatInfo(ctx context.Context, chatID int64) (ChatInfo, error)
	AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error
}
