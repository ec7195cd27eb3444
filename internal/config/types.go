package config

type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`
	Storage  StorageConfig  `json:"storage"`

	// Watcher controls the polling loop (schedule, pacing, startup pass).
	Watcher WatcherConfig `json:"watcher"`

	// Backends is the ordered list of status APIs tried per server.
	// Order matters: the first backend that yields a parseable response wins.
	Backends []BackendConfig `json:"backends"`

	Notifier NotifierConfig `json:"notifier"`
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
	Path    string `json:"path"`
}

// StorageConfig selects the snapshot store driver.
//
// Driver values:
//   - "file": one JSON document per collection under Path (default)
//   - "sqlite": single database file at Path (requires the sqlite build tag)
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// WatcherConfig controls the recurring check loop.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type WatcherConfig struct {
	Enabled bool `json:"enabled"`

	// Schedule is a cron spec ("*/5 * * * *") or "@every 3m".
	Schedule string `json:"schedule"`

	// Timezone is an IANA TZ name for the cron schedule (default: local).
	Timezone string `json:"timezone,omitempty"`

	// RequestDelay is inserted between servers within one tick so upstream
	// status APIs are not hammered.
	RequestDelay string `json:"request_delay,omitempty"`

	// StartupNotify sends each group one consolidated status overview after
	// the initial pass.
	StartupNotify bool `json:"startup_notify"`
}

// BackendConfig declares one upstream status API.
//
// URL must contain "{host}" and may contain "{port}" placeholders.
type BackendConfig struct {
	Name string `json:"name"`
	URL  string `json:"url"`

	// Timeout bounds a single request attempt.
	Timeout    string `json:"timeout,omitempty"`
	MaxRetries int    `json:"max_retries,omitempty"`
	RetryDelay string `json:"retry_delay,omitempty"`

	Parser ParserConfig `json:"parser"`
}

// ParserConfig maps backend response fields by dot-separated JSON paths.
// A path suffixed "[]" denotes "this path is a list".
type ParserConfig struct {
	Online        string `json:"online"`
	PlayersOnline string `json:"players_online"`
	PlayersMax    string `json:"players_max"`
	PlayersList   string `json:"players_list"`
	Version       string `json:"version"`
	Motd          string `json:"motd"`
}

// NotifierConfig controls outbound message pacing.
type NotifierConfig struct {
	RatePerSec int `json:"rate_per_sec,omitempty"`
	// SingleDelay is the pause between messages when a batch send has
	// degraded to per-message sends.
	SingleDelay string `json:"single_delay,omitempty"`
}
