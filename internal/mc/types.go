// Package mc resolves game-server status through configurable HTTP status
// backends and normalizes their heterogeneous responses into one canonical
// Status record.
package mc

import "time"

// Player is one visible player on a server.
type Player struct {
	Name string `json:"name"`
	UUID string `json:"uuid,omitempty"`
}

// Players carries the population part of a status snapshot.
//
// An online server may report a non-zero Online count with an empty List:
// that means "players present but names not exposed". The resolver never
// synthesizes names.
type Players struct {
	Online int      `json:"online"`
	Max    int      `json:"max"`
	List   []Player `json:"list,omitempty"`
}

// ResolverMeta records which backend produced a snapshot, or why none did.
type ResolverMeta struct {
	Backend string `json:"backend,omitempty"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Status is the canonical last-known truth for one server.
type Status struct {
	Online    bool         `json:"online"`
	Players   Players      `json:"players"`
	Version   string       `json:"version,omitempty"`
	Motd      string       `json:"motd,omitempty"`
	CheckedAt time.Time    `json:"checked_at"`
	Meta      ResolverMeta `json:"meta"`
}

// Names returns the (case-sensitive) player name set of the snapshot.
func (s Status) Names() map[string]struct{} {
	out := make(map[string]struct{}, len(s.Players.List))
	for _, p := range s.Players.List {
		out[p.Name] = struct{}{}
	}
	return out
}

// ParserSpec maps a backend's response onto Status fields by dot-separated
// JSON paths. A path suffixed "[]" asserts the value is a list.
type ParserSpec struct {
	Online        string
	PlayersOnline string
	PlayersMax    string
	PlayersList   string
	Version       string
	Motd          string
}

// Backend is one configured upstream status API.
//
// URL must contain "{host}" and may contain "{port}"; the resolver
// substitutes both before issuing the request.
type Backend struct {
	Name       string
	URL        string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
	Parser     ParserSpec
}
