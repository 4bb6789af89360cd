package query

import (
	"net/url"
	"strings"
)

const keyRoot = "q/"

// Key names a cached read: the operation first, then its parameters.
type Key []string

func NewKey(parts ...string) Key { return Key(parts) }

// Prefix is the storage form of the key. Every segment is terminated so that
// Key{"listing"} never matches the storage form of Key{"listings"}.
func (k Key) Prefix() string {
	var b strings.Builder
	b.WriteString(keyRoot)
	for _, p := range k {
		b.WriteString(url.PathEscape(p))
		b.WriteByte('/')
	}
	return b.String()
}

func (k Key) String() string { return strings.Join(k, "/") }

// Covers reports whether invalidating k invalidates other.
func (k Key) Covers(other Key) bool {
	if len(k) > len(other) {
		return false
	}
	for i := range k {
		if k[i] != other[i] {
			return false
		}
	}
	return true
}

// Operation is the first segment, used as a metrics label.
func (k Key) Operation() string {
	if len(k) == 0 {
		return ""
	}
	return k[0]
}
