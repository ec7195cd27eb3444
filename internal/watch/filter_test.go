package watch

import (
	"strings"
	"testing"
)

func subWith(sc ServerSubscription) Subscription {
	return Subscription{
		Enabled: true,
		Servers: map[string]ServerSubscription{"s1": sc},
	}
}

var testServer = Server{ID: "s1", Name: "Hub", Address: "hub.example.com"}

func TestFilterWildcardVsNamed(t *testing.T) {
	t.Parallel()
	ch := Change{
		ServerID: "s1",
		Joined:   []string{"Alice", "Bob"},
		Left:     []string{"Carol"},
	}

	all := FilterChange(subWith(ServerSubscription{Enabled: true, Players: []string{Wildcard}}), testServer, ch, online())
	if len(all) != 3 {
		t.Fatalf("wildcard subscriber must get every line, got %v", all)
	}

	named := FilterChange(subWith(ServerSubscription{Enabled: true, Players: []string{"Alice"}}), testServer, ch, online())
	if len(named) != 1 || !strings.Contains(named[0], "Alice") {
		t.Fatalf("named subscriber must only get Alice, got %v", named)
	}

	none := FilterChange(subWith(ServerSubscription{Enabled: true}), testServer, ch, online())
	if len(none) != 0 {
		t.Fatalf("empty allow-list means push nothing, got %v", none)
	}
}

func TestFilterDisabledShortCircuits(t *testing.T) {
	t.Parallel()
	ch := Change{
		ServerID:        "s1",
		Transition:      TransitionWentOnline,
		Joined:          []string{"Alice"},
		NewlyDiscovered: []string{"Alice"},
	}

	// Every flag set except the server's enabled bit.
	sc := ServerSubscription{
		Enabled:        false,
		StatusPush:     true,
		NewPlayerAlert: true,
		Players:        []string{Wildcard},
	}
	if got := FilterChange(subWith(sc), testServer, ch, online("Alice")); len(got) != 0 {
		t.Fatalf("disabled server subscription must yield nothing, got %v", got)
	}

	// Same with the group's global enabled bit.
	sub := subWith(ServerSubscription{Enabled: true, StatusPush: true, NewPlayerAlert: true, Players: []string{Wildcard}})
	sub.Enabled = false
	sub.ServerStatusPush = true
	if got := FilterChange(sub, testServer, ch, online("Alice")); len(got) != 0 {
		t.Fatalf("disabled group must yield nothing, got %v", got)
	}
}

func TestFilterNewPlayerAlertBypassesAllowList(t *testing.T) {
	t.Parallel()
	ch := Change{
		ServerID:        "s1",
		Joined:          []string{"Stranger"},
		NewlyDiscovered: []string{"Stranger"},
	}
	sc := ServerSubscription{Enabled: true, NewPlayerAlert: true, Players: []string{"Alice"}}
	got := FilterChange(subWith(sc), testServer, ch, online("Stranger"))
	if len(got) != 1 || !strings.Contains(got[0], "new player") {
		t.Fatalf("new-player line must bypass the allow-list, got %v", got)
	}
}

func TestFilterStatusPushFlags(t *testing.T) {
	t.Parallel()
	ch := Change{ServerID: "s1", Transition: TransitionWentOnline, Joined: []string{"Alice"}}
	cur := online("Alice")

	// Neither flag: no transition line.
	got := FilterChange(subWith(ServerSubscription{Enabled: true}), testServer, ch, cur)
	if len(got) != 0 {
		t.Fatalf("no status flags must yield no transition line, got %v", got)
	}

	// Per-server flag.
	got = FilterChange(subWith(ServerSubscription{Enabled: true, StatusPush: true}), testServer, ch, cur)
	if len(got) != 1 || !strings.Contains(got[0], "online (1/20)") {
		t.Fatalf("status line must include the population, got %v", got)
	}
	if !strings.Contains(got[0], "Alice") {
		t.Fatalf("online line must list players, got %v", got)
	}

	// Group-wide flag works without the per-server one.
	sub := subWith(ServerSubscription{Enabled: true})
	sub.ServerStatusPush = true
	got = FilterChange(sub, testServer, ch, cur)
	if len(got) != 1 {
		t.Fatalf("group-wide status push must emit the line, got %v", got)
	}

	// Offline transitions don't render players.
	chOff := Change{ServerID: "s1", Transition: TransitionWentOffline}
	got = FilterChange(subWith(ServerSubscription{Enabled: true, StatusPush: true}), testServer, chOff, offline())
	if len(got) != 1 || !strings.Contains(got[0], "offline") {
		t.Fatalf("expected offline line, got %v", got)
	}
}

func TestFilterUnknownServer(t *testing.T) {
	t.Parallel()
	sub := Subscription{Enabled: true}
	ch := Change{ServerID: "s1", Joined: []string{"Alice"}}
	if got := FilterChange(sub, testServer, ch, online("Alice")); len(got) != 0 {
		t.Fatalf("group without a subscription for the server gets nothing, got %v", got)
	}
}
