package config

type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Logging   LoggingConfig   `json:"logging"`
	Storage   StorageConfig   `json:"storage"`
	Delivery  DeliveryConfig  `json:"delivery,omitempty"`
	Giveaways GiveawaysConfig `json:"giveaways,omitempty"`
	Broadcast BroadcastConfig `json:"broadcast,omitempty"`
	Staff     StaffConfig     `json:"staff,omitempty"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

// StorageConfig selects the persistence driver.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./data" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// DeliveryConfig tunes the content-delivery pipeline.
// All durations are Go duration strings.
type DeliveryConfig struct {
	// FilesDir holds local content files; downloads stage under its tmp/.
	FilesDir string `json:"files_dir,omitempty"`
	// RecentWindow suppresses duplicate sends to the same user.
	RecentWindow string `json:"recent_window,omitempty"`
	// NetTimeout bounds each network call in a delivery.
	NetTimeout string `json:"net_timeout,omitempty"`
}

type GiveawaysConfig struct {
	// ScanInterval is how often the expiry monitor runs (default "30s").
	ScanInterval string `json:"scan_interval,omitempty"`
}

type BroadcastConfig struct {
	RatePerSec int `json:"rate_per_sec,omitempty"`
	RetryMax   int `json:"retry_max,omitempty"`
}

type StaffConfig struct {
	// SuggestionRoleThreshold is the minimum admin role that receives
	// forwarded user suggestions.
	SuggestionRoleThreshold int `json:"suggestion_role_threshold,omitempty"`
}
