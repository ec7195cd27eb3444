package mc

import "testing"

var testSpec = ParserSpec{
	Online:        "online",
	PlayersOnline: "players.online",
	PlayersMax:    "players.max",
	PlayersList:   "players.list[]",
	Version:       "version",
	Motd:          "motd",
}

func TestParseStatusStringList(t *testing.T) {
	t.Parallel()
	root := decode(t, `{
		"online": true,
		"players": {"online": 2, "max": 20, "list": ["Alice", " ", "Bob"]},
		"version": "1.20.4",
		"motd": "A Minecraft Server"
	}`)

	st, err := parseStatus(root, testSpec)
	if err != nil {
		t.Fatalf("parseStatus: %v", err)
	}
	if !st.Online {
		t.Fatal("expected online")
	}
	if st.Players.Online != 2 || st.Players.Max != 20 {
		t.Fatalf("counts = %d/%d", st.Players.Online, st.Players.Max)
	}
	if len(st.Players.List) != 2 || st.Players.List[0].Name != "Alice" || st.Players.List[1].Name != "Bob" {
		t.Fatalf("unexpected list: %+v", st.Players.List)
	}
	if st.Version != "1.20.4" || st.Motd != "A Minecraft Server" {
		t.Fatalf("version/motd = %q/%q", st.Version, st.Motd)
	}
}

func TestParseStatusObjectList(t *testing.T) {
	t.Parallel()
	root := decode(t, `{
		"online": true,
		"players": {"online": 3, "max": 50, "list": [
			{"name_clean": "Steve", "uuid": "u-1"},
			{"name": "Alex"},
			{"uuid": "u-3"}
		]},
		"version": {"name_clean": "Paper 1.20"},
		"motd": {"clean": ["line one", "line two"], "raw": ["&aline one"]}
	}`)

	st, err := parseStatus(root, testSpec)
	if err != nil {
		t.Fatalf("parseStatus: %v", err)
	}
	if len(st.Players.List) != 2 {
		t.Fatalf("entries without a name must be dropped, got %+v", st.Players.List)
	}
	if st.Players.List[0] != (Player{Name: "Steve", UUID: "u-1"}) {
		t.Fatalf("unexpected first player: %+v", st.Players.List[0])
	}
	if st.Players.List[1].Name != "Alex" {
		t.Fatalf("unexpected second player: %+v", st.Players.List[1])
	}
	if st.Version != "Paper 1.20" {
		t.Fatalf("version = %q", st.Version)
	}
	if st.Motd != "line one\nline two" {
		t.Fatalf("motd = %q", st.Motd)
	}
}

func TestParseStatusMotdRawFallback(t *testing.T) {
	t.Parallel()
	root := decode(t, `{"online": false, "motd": {"clean": [], "raw": ["fallback"]}}`)
	st, err := parseStatus(root, testSpec)
	if err != nil {
		t.Fatalf("parseStatus: %v", err)
	}
	if st.Motd != "fallback" {
		t.Fatalf("motd = %q, want raw fallback", st.Motd)
	}
}

func TestParseStatusMissingCountsDefaultZero(t *testing.T) {
	t.Parallel()
	root := decode(t, `{"online": true}`)
	st, err := parseStatus(root, testSpec)
	if err != nil {
		t.Fatalf("parseStatus: %v", err)
	}
	if st.Players.Online != 0 || st.Players.Max != 0 || st.Players.List != nil {
		t.Fatalf("expected zero players, got %+v", st.Players)
	}
}

func TestParseStatusNoOnlineFlag(t *testing.T) {
	t.Parallel()
	root := decode(t, `{"status": "ok"}`)
	if _, err := parseStatus(root, testSpec); err == nil {
		t.Fatal("expected error for response without online flag")
	}
}
