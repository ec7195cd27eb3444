package watch

import (
	"context"
	"encoding/json"
	"fmt"

	"mcwatch/internal/mc"
	"mcwatch/internal/store"
)

// Collection names in the snapshot store. One logical JSON document per
// name, human-inspectable.
const (
	colServers       = "servers"       // group id -> server id -> Server
	colCurrent       = "current"       // server id -> mc.Status
	colHistorical    = "historical"    // player name -> HistoricalPlayer
	colSubscriptions = "subscriptions" // group id -> Subscription
)

// loadSubscriptions reads every group's subscription config.
func loadSubscriptions(ctx context.Context, st store.Store) (map[string]Subscription, error) {
	doc, err := st.Read(ctx, colSubscriptions)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", colSubscriptions, err)
	}
	out := make(map[string]Subscription, len(doc))
	for groupID, raw := range doc {
		var sub Subscription
		if err := store.Unmarshal(raw, &sub); err != nil {
			return nil, fmt.Errorf("decode subscription %q: %w", groupID, err)
		}
		out[groupID] = sub
	}
	return out, nil
}

// loadServers reads the server registry and flattens it by server id.
// Identity is (group, id) for ownership, but the watcher resolves by id:
// groups referencing the same id share one resolution per tick.
func loadServers(ctx context.Context, st store.Store) (map[string]Server, error) {
	doc, err := st.Read(ctx, colServers)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", colServers, err)
	}
	out := map[string]Server{}
	for groupID, raw := range doc {
		var byID map[string]Server
		if err := store.Unmarshal(raw, &byID); err != nil {
			return nil, fmt.Errorf("decode servers of group %q: %w", groupID, err)
		}
		for id, srv := range byID {
			if srv.ID == "" {
				srv.ID = id
			}
			if _, dup := out[id]; !dup {
				out[id] = srv
			}
		}
	}
	return out, nil
}

func loadStatus(ctx context.Context, st store.Store, serverID string) (*mc.Status, error) {
	raw, err := st.GetScoped(ctx, colCurrent, serverID)
	if err != nil {
		return nil, fmt.Errorf("read %s/%s: %w", colCurrent, serverID, err)
	}
	if len(raw) == 0 {
		return nil, nil
	}
	var status mc.Status
	if err := store.Unmarshal(raw, &status); err != nil {
		return nil, fmt.Errorf("decode status %q: %w", serverID, err)
	}
	return &status, nil
}

func saveStatus(ctx context.Context, st store.Store, serverID string, status mc.Status) error {
	raw, err := store.Marshal(status)
	if err != nil {
		return err
	}
	if err := st.SaveScoped(ctx, colCurrent, serverID, raw); err != nil {
		return fmt.Errorf("write %s/%s: %w", colCurrent, serverID, err)
	}
	return nil
}

// updateHistorical runs the diff's historical lookup and side effect in one
// read-modify-write cycle: NewlyDiscovered is decided against the same state
// the sightings are recorded into.
func updateHistorical(ctx context.Context, st store.Store, ch *Change, cur mc.Status) error {
	return st.Transaction(ctx, colHistorical, func(doc store.Document) (store.Document, error) {
		history := make(map[string]HistoricalPlayer, len(doc))
		for name, raw := range doc {
			var entry HistoricalPlayer
			if err := store.Unmarshal(raw, &entry); err != nil {
				return nil, fmt.Errorf("decode historical %q: %w", name, err)
			}
			history[name] = entry
		}

		MarkNewlyDiscovered(ch, history)
		if !RecordSightings(history, ch.ServerID, cur, cur.CheckedAt) {
			return doc, nil
		}

		next := make(store.Document, len(history))
		for name, entry := range history {
			raw, err := json.Marshal(entry)
			if err != nil {
				return nil, err
			}
			next[name] = raw
		}
		return next, nil
	})
}
