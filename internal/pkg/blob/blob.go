// Package blob stores uploaded files and hands out time-limited read URLs for them.
package blob

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"
)

// DefaultSignTTL is the validity of a signed URL when none is configured.
const DefaultSignTTL = 7 * 24 * time.Hour

var ErrInvalidKey = errors.New("blob: invalid object key")

// Signed is a temporary read URL for one object.
type Signed struct {
	URL       string
	ExpiresAt time.Time
}

// Store is the blob-store capability the content services depend on. Keys are
// storage-relative paths such as "public/images/1700000000000-dog.jpg".
type Store interface {
	Put(ctx context.Context, key string, payload []byte, contentType string) (string, error)
	Sign(ctx context.Context, key string) (Signed, error)
	Delete(ctx context.Context, key string) error
}

// Matcher recognises a signed URL produced by the configured backend and recovers
// its storage key from it.
type Matcher struct {
	HostMarker    string
	PrefixMarkers []string
}

// DefaultMatcher matches S3 signed URLs for the image and media prefixes.
func DefaultMatcher() Matcher {
	return Matcher{HostMarker: "amazonaws.com", PrefixMarkers: []string{"/public/", "/posts/"}}
}

// Key returns the canonical key for src, or false when src is not a signed URL.
// The key starts at the prefix marker, without its leading slash, and is
// percent-decoded; query and fragment are dropped.
func (m Matcher) Key(src string) (string, bool) {
	if m.HostMarker == "" || !strings.Contains(src, m.HostMarker) {
		return "", false
	}
	path := src
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if i := strings.Index(path, "://"); i >= 0 {
		rest := path[i+3:]
		slash := strings.IndexByte(rest, '/')
		if slash < 0 {
			return "", false
		}
		path = rest[slash:]
	}

	start := -1
	for _, marker := range m.PrefixMarkers {
		if marker == "" {
			continue
		}
		if i := strings.Index(path, marker); i >= 0 && (start < 0 || i < start) {
			start = i
		}
	}
	if start < 0 {
		return "", false
	}

	key := strings.TrimPrefix(path[start:], "/")
	decoded, err := url.PathUnescape(key)
	if err != nil {
		return key, true
	}
	return decoded, true
}

// NormalizeKey trims whitespace and leading slashes. An empty key or one with
// a ".." path segment is invalid; dots inside a name such as "a..jpg" are fine.
func NormalizeKey(key string) (string, error) {
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	if key == "" {
		return "", ErrInvalidKey
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == ".." {
			return "", ErrInvalidKey
		}
	}
	return key, nil
}
