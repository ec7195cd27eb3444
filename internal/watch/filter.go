package watch

import (
	"fmt"
	"strings"

	"mcwatch/internal/mc"
)

// FilterChange evaluates one group's policy against one server's change and
// returns the message lines to push. The rules are independent: a single
// tick can yield join/leave, new-player and transition lines at once.
//
// A disabled group or a disabled server subscription yields nothing, no
// matter what other flags say.
func FilterChange(sub Subscription, server Server, ch Change, cur mc.Status) []string {
	if !sub.Enabled {
		return nil
	}
	sc, ok := sub.Servers[ch.ServerID]
	if !ok || !sc.Enabled {
		return nil
	}

	var lines []string

	for _, name := range ch.Joined {
		if sc.WantsPlayer(name) {
			lines = append(lines, fmt.Sprintf("[%s] %s joined", server.Name, name))
		}
	}
	for _, name := range ch.Left {
		if sc.WantsPlayer(name) {
			lines = append(lines, fmt.Sprintf("[%s] %s left", server.Name, name))
		}
	}

	// New-player alerts bypass the allow-list on purpose: the point is
	// spotting names never seen on this server before.
	if sc.NewPlayerAlert {
		for _, name := range ch.NewlyDiscovered {
			lines = append(lines, fmt.Sprintf("[%s] new player: %s", server.Name, name))
		}
	}

	if sc.StatusPush || sub.ServerStatusPush {
		switch ch.Transition {
		case TransitionWentOnline:
			lines = append(lines, onlineLine(server, cur))
		case TransitionWentOffline:
			lines = append(lines, fmt.Sprintf("[%s] server went offline", server.Name))
		}
	}

	return lines
}

func onlineLine(server Server, cur mc.Status) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] server is online (%d/%d)", server.Name, cur.Players.Online, cur.Players.Max)
	if len(cur.Players.List) > 0 {
		names := make([]string, 0, len(cur.Players.List))
		for _, p := range cur.Players.List {
			names = append(names, p.Name)
		}
		b.WriteString(": ")
		b.WriteString(strings.Join(names, ", "))
	}
	return b.String()
}

// OverviewLine renders one server's row in the startup summary message.
func OverviewLine(server Server, st mc.Status) string {
	if !st.Online {
		return fmt.Sprintf("[%s] offline", server.Name)
	}
	line := fmt.Sprintf("[%s] online, %d/%d players", server.Name, st.Players.Online, st.Players.Max)
	if st.Version != "" {
		line += ", " + st.Version
	}
	return line
}
