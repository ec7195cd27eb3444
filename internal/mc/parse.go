package mc

import (
	"errors"
	"fmt"
	"strings"
)

var errNoOnlineFlag = errors.New("response has no online flag at configured path")

// parseStatus extracts a canonical Status from a decoded backend response.
// The online flag is the structural anchor: a response without it is treated
// as unparseable so the resolver falls through to the next backend.
func parseStatus(root any, spec ParserSpec) (Status, error) {
	var st Status

	v, _, ok := lookupPath(root, spec.Online)
	if !ok {
		return st, errNoOnlineFlag
	}
	online, ok := toBool(v)
	if !ok {
		return st, fmt.Errorf("online flag at %q has unexpected type %T", spec.Online, v)
	}
	st.Online = online

	if v, _, ok := lookupPath(root, spec.PlayersOnline); ok {
		st.Players.Online = toInt(v)
	}
	if v, _, ok := lookupPath(root, spec.PlayersMax); ok {
		st.Players.Max = toInt(v)
	}
	if v, _, ok := lookupPath(root, spec.PlayersList); ok {
		st.Players.List = normalizePlayerList(v)
	}
	if v, _, ok := lookupPath(root, spec.Version); ok {
		st.Version = normalizeVersion(v)
	}
	if v, _, ok := lookupPath(root, spec.Motd); ok {
		st.Motd = normalizeMotd(v)
	}
	return st, nil
}

// normalizePlayerList accepts both string-only lists and object lists with
// name/name_clean fields. Entries with no resolvable name are dropped.
func normalizePlayerList(v any) []Player {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]Player, 0, len(items))
	for _, it := range items {
		switch e := it.(type) {
		case string:
			if name := strings.TrimSpace(e); name != "" {
				out = append(out, Player{Name: name})
			}
		case map[string]any:
			name := firstString(e, "name_clean", "name")
			if name == "" {
				continue
			}
			out = append(out, Player{Name: name, UUID: firstString(e, "uuid", "id")})
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// normalizeVersion accepts a plain string or a nested object carrying a
// clean-name field.
func normalizeVersion(v any) string {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case map[string]any:
		return firstString(x, "name_clean", "name", "clean")
	default:
		return ""
	}
}

// normalizeMotd accepts a string, an array of lines, or an object with
// clean/raw variants (clean preferred), each of which may itself be a string
// or an array of lines.
func normalizeMotd(v any) string {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case []any:
		return joinLines(x)
	case map[string]any:
		for _, k := range []string{"clean", "raw"} {
			if inner, ok := x[k]; ok {
				if s := normalizeMotd(inner); s != "" {
					return s
				}
			}
		}
		return ""
	default:
		return ""
	}
}

func joinLines(items []any) string {
	lines := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				lines = append(lines, s)
			}
		}
	}
	return strings.Join(lines, "\n")
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
	}
	return ""
}
