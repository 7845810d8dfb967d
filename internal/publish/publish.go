// Package publish copies compiled bundles to shared object storage.
package publish

import (
	"context"
	"errors"
	"strings"
)

// Prefix is the object key prefix every bundle is stored under.
const Prefix = "bundles"

// ErrNotFound is returned by Fetch for unknown bundles.
var ErrNotFound = errors.New("bundle not found")

// Publisher stores bundle bytes under their filename.
type Publisher interface {
	Publish(ctx context.Context, filename string, content []byte) (string, error)
	Fetch(ctx context.Context, filename string) ([]byte, error)
	List(ctx context.Context) ([]string, error)
}

// ObjectKey returns the key a bundle filename is stored under.
func ObjectKey(filename string) string {
	return Prefix + "/" + strings.TrimLeft(strings.TrimSpace(filename), "/")
}
