package querycache

import (
	"strconv"
	"strings"
)

// Key identifies a logical query. Two fetches with equal keys share one entry.
type Key []string

// NewKey builds a key from its parts
func NewKey(parts ...string) Key {
	return Key(parts)
}

// HasPrefix reports whether the leading elements of k equal prefix.
// An empty prefix matches every key.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	for i := range prefix {
		if k[i] != prefix[i] {
			return false
		}
	}
	return true
}

// Root is the first element, used as the metrics label
func (k Key) Root() string {
	if len(k) == 0 {
		return ""
	}
	return k[0]
}

// String renders the key as a JSON-like tuple
func (k Key) String() string {
	quoted := make([]string, len(k))
	for i, part := range k {
		quoted[i] = strconv.Quote(part)
	}
	return "[" + strings.Join(quoted, ",") + "]"
}

func (k Key) hash() string {
	// Quoting keeps ["a,b"] and ["a","b"] apart.
	return k.String()
}
