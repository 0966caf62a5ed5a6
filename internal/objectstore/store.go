// Package objectstore is the byte store behind attachments. Callers treat the
// returned location as opaque; it is dereferenceable through Handler.
package objectstore

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"strings"
)

// Object is a stored blob as served back to readers.
type Object struct {
	Key         string
	ContentType string
	Data        []byte
}

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9._/-]+`)

// CleanKey normalizes a key: no traversal segments, no leading slash, only
// URL-safe characters.
func CleanKey(key string) (string, error) {
	key = unsafeKeyChars.ReplaceAllString(key, "_")
	cleaned := path.Clean("/" + key)
	cleaned = strings.TrimPrefix(cleaned, "/")
	if cleaned == "" || cleaned == "." {
		return "", fmt.Errorf("empty object key")
	}
	for _, seg := range strings.Split(cleaned, "/") {
		if seg == ".." {
			return "", fmt.Errorf("invalid object key %q", key)
		}
	}
	return cleaned, nil
}

// locationFor joins the public base URL and the served path for key.
func locationFor(baseURL, key string) string {
	return strings.TrimRight(baseURL, "/") + "/files/" + key
}

// KeyFromLocation recovers the key from a location produced by a store with
// the same base URL.
func KeyFromLocation(baseURL, location string) (string, bool) {
	prefix := strings.TrimRight(baseURL, "/") + "/files/"
	if !strings.HasPrefix(location, prefix) {
		return "", false
	}
	return strings.TrimPrefix(location, prefix), true
}

// checkCtx fails fast when the caller has already gone away.
func checkCtx(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("object store: %w", err)
	}
	return nil
}
