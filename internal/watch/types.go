// Package watch drives the recurring status checks: it resolves each
// registered server, diffs the result against the stored snapshot, filters
// the changes per subscriber group and hands message batches to the notifier.
package watch

import "time"

// Server is a registered game server. Created by the admin surface; the
// watcher only reads these records.
type Server struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Address     string    `json:"address"` // host[:port]
	Description string    `json:"description,omitempty"`
	AddedAt     time.Time `json:"added_at"`
}

// HistoricalPlayer tracks a player name across all servers, forever.
// FirstSeen is set once; LastSeen and Servers only move forward.
type HistoricalPlayer struct {
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
	Servers   []string  `json:"servers,omitempty"`
}

// Wildcard is the sentinel allow-list entry meaning "every player".
const Wildcard = "all"

// ServerSubscription is one group's per-server notification policy.
//
// Players is either the single sentinel ["all"] or a de-duplicated list of
// explicit names; an empty list means "push nothing".
type ServerSubscription struct {
	Enabled        bool     `json:"enabled"`
	StatusPush     bool     `json:"status_push"`
	NewPlayerAlert bool     `json:"new_player_alert"`
	Players        []string `json:"players,omitempty"`
}

// WantsPlayer reports whether the allow-list covers name.
func (s ServerSubscription) WantsPlayer(name string) bool {
	for _, p := range s.Players {
		if p == Wildcard || p == name {
			return true
		}
	}
	return false
}

// Subscription is one subscriber group's full configuration.
type Subscription struct {
	Enabled          bool                          `json:"enabled"`
	ServerStatusPush bool                          `json:"server_status_push"`
	Servers          map[string]ServerSubscription `json:"servers,omitempty"`
}

// Transition describes the online-flag movement between two snapshots.
type Transition string

const (
	TransitionNone        Transition = "none"
	TransitionWentOnline  Transition = "went_online"
	TransitionWentOffline Transition = "went_offline"
)

// Change is the per-tick diff result for one server. It is ephemeral:
// consumed by the filter and discarded.
type Change struct {
	ServerID   string
	Transition Transition
	Joined     []string
	Left       []string
	// NewlyDiscovered holds joined names never recorded on this server
	// before (independent of whether the player is globally new).
	NewlyDiscovered []string
}

// Empty reports whether the change carries nothing to notify about.
func (c Change) Empty() bool {
	return c.Transition == TransitionNone &&
		len(c.Joined) == 0 && len(c.Left) == 0 && len(c.NewlyDiscovered) == 0
}
