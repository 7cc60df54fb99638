package cache

import (
	"encoding/json"
	"strings"
)

// Key builds a deterministic cache key from a logical prefix and a parameter
// bag. encoding/json marshals map keys in sorted order, so two calls with the
// same parameters produce the same key regardless of how the bag was built.
//
// The prefix is always part of the key and segments are joined with ':', so
// two different key families can never collide for the same parameter set.
// An empty string is returned when the parameters cannot be serialized;
// callers treat an empty key as uncacheable.
func Key(prefix string, params map[string]interface{}) string {
	if prefix == "" {
		return ""
	}
	if len(params) == 0 {
		return prefix
	}
	encoded, err := json.Marshal(params)
	if err != nil {
		// Pathological parameter values (channels, funcs). The cache is
		// best-effort; the read falls through to the data client.
		return ""
	}
	return prefix + ":" + string(encoded)
}

// matchesPrefix reports whether key belongs to the family named by prefix.
// Matching is on whole ':'-separated segments: prefix "list" matches
// "list:{...}" and "list" itself, but never "list-archive:{...}" and never a
// key whose serialized suffix merely contains the substring "list:".
func matchesPrefix(key, prefix string) bool {
	prefix = strings.TrimSuffix(prefix, ":")
	if prefix == "" {
		return false
	}
	if key == prefix {
		return true
	}
	return strings.HasPrefix(key, prefix+":")
}
