package cache

import (
	"strings"

	"github.com/Combine-Capital/rcache/pkg/errors"
)

// Key builds a consistent cache key by joining a prefix and parts with colons.
//
// Example:
//
//	key := cache.Key("user", userID)                    // "user:123"
//	key := cache.Key("portfolio", portfolioID, "stats") // "portfolio:abc:stats"
//
// Empty parts are filtered out to prevent double colons.
func Key(prefix string, parts ...string) string {
	filtered := make([]string, 0, len(parts)+1)

	if prefix != "" {
		filtered = append(filtered, prefix)
	}

	for _, part := range parts {
		if part != "" {
			filtered = append(filtered, part)
		}
	}

	return strings.Join(filtered, ":")
}

// key applies the client's key prefix and rejects blank keys.
func (c *Client) key(k string) (string, error) {
	if strings.TrimSpace(k) == "" {
		return "", errors.NewInvalidInput("key", "must not be empty")
	}
	return Key(c.prefix, k), nil
}
