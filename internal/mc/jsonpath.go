package mc

import "strings"

// lookupPath walks a decoded JSON value by dot-separated path segments.
// A trailing "[]" is stripped; it only documents that the caller expects a
// list at that path (asList reports whether the suffix was present).
func lookupPath(root any, path string) (val any, asList, ok bool) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, false, false
	}
	if strings.HasSuffix(path, "[]") {
		asList = true
		path = strings.TrimSuffix(path, "[]")
	}

	cur := root
	for _, seg := range strings.Split(path, ".") {
		m, isMap := cur.(map[string]any)
		if !isMap {
			return nil, asList, false
		}
		next, exists := m[seg]
		if !exists {
			return nil, asList, false
		}
		cur = next
	}
	return cur, asList, true
}

// toInt coerces the numeric shapes seen across status APIs.
// Missing or unparseable values yield 0.
func toInt(v any) int {
	switch x := v.(type) {
	case float64:
		return int(x)
	case int:
		return x
	case int64:
		return int(x)
	case string:
		n := 0
		for _, c := range x {
			if c < '0' || c > '9' {
				return 0
			}
			n = n*10 + int(c-'0')
		}
		return n
	default:
		return 0
	}
}

func toBool(v any) (bool, bool) {
	switch x := v.(type) {
	case bool:
		return x, true
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "true", "1", "online", "yes":
			return true, true
		case "false", "0", "offline", "no":
			return false, true
		}
	}
	return false, false
}
