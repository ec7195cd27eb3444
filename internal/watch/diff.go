package watch

import (
	"sort"
	"time"

	"mcwatch/internal/mc"
)

// Diff compares a freshly resolved status against the previous snapshot.
//
// A nil prev is treated as "offline, no players". A resolver failure
// (cur.Meta.Success=false) arrives here already normalized to Online=false,
// so it participates in transitions like any other offline result.
//
// Joined/Left are empty whenever the server is offline, regardless of any
// list the offline record may carry. NewlyDiscovered is filled separately
// by MarkNewlyDiscovered because it needs the historical registry.
func Diff(serverID string, prev *mc.Status, cur mc.Status) Change {
	ch := Change{ServerID: serverID, Transition: TransitionNone}

	prevOnline := prev != nil && prev.Online
	switch {
	case cur.Online && !prevOnline:
		ch.Transition = TransitionWentOnline
	case !cur.Online && prevOnline:
		ch.Transition = TransitionWentOffline
	}

	if !cur.Online {
		return ch
	}

	var prevNames map[string]struct{}
	if prev != nil {
		prevNames = prev.Names()
	}
	curNames := cur.Names()

	for name := range curNames {
		if _, ok := prevNames[name]; !ok {
			ch.Joined = append(ch.Joined, name)
		}
	}
	for name := range prevNames {
		if _, ok := curNames[name]; !ok {
			ch.Left = append(ch.Left, name)
		}
	}
	sort.Strings(ch.Joined)
	sort.Strings(ch.Left)
	return ch
}

// MarkNewlyDiscovered fills ch.NewlyDiscovered: joined names whose historical
// entry does not yet list this server.
func MarkNewlyDiscovered(ch *Change, history map[string]HistoricalPlayer) {
	for _, name := range ch.Joined {
		entry, seen := history[name]
		if !seen || !containsString(entry.Servers, ch.ServerID) {
			ch.NewlyDiscovered = append(ch.NewlyDiscovered, name)
		}
	}
}

// RecordSightings applies the historical side effect for an online snapshot:
// every listed player gets FirstSeen set once, LastSeen refreshed and the
// server appended to its Servers set. Returns whether anything changed.
func RecordSightings(history map[string]HistoricalPlayer, serverID string, cur mc.Status, now time.Time) bool {
	if !cur.Online {
		return false
	}
	changed := false
	for _, p := range cur.Players.List {
		entry, ok := history[p.Name]
		if !ok {
			entry = HistoricalPlayer{FirstSeen: now}
		}
		if now.After(entry.LastSeen) {
			entry.LastSeen = now
		}
		if !containsString(entry.Servers, serverID) {
			entry.Servers = append(entry.Servers, serverID)
		}
		history[p.Name] = entry
		changed = true
	}
	return changed
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
