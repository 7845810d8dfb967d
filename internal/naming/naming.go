// Package naming derives filesystem- and resource-safe tokens from subgraph
// names.
//
// Sanitize is deterministic and idempotent. It is not injective: distinct
// names may collapse to the same token, which Registry and Collisions detect
// so that one subgraph's bundle never silently overwrites another's.
package naming

import (
	"strings"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxTokenLength bounds a sanitized token in bytes.
const MaxTokenLength = 120

// Unnamed replaces names that sanitize to nothing.
const Unnamed = "unnamed"

// BundleExt is the container extension of compiled bundles.
const BundleExt = ".zip"

// Role suffixes for resource names.
const (
	SuffixBiosphere        = "biosphere"
	SuffixTechnosphere     = "technosphere"
	SuffixCharacterization = "characterization"
)

// bundleNamespace scopes the name-based bundle ids.
var bundleNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("lcagraph:bundle"))

// newFolder strips accents: NFKD splits base letters from combining marks,
// which are then dropped. Transformers carry state, so each call gets its own.
func newFolder() transform.Transformer {
	return transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))
}

// Sanitize maps an arbitrary name to a token made of [a-z0-9._-].
//
//	Sanitize("US EEIO 1.1")     // "us_eeio_1.1"
//	Sanitize("Ökobilanz / CH")  // "okobilanz_ch"
//	Sanitize("  ")              // "unnamed"
//
// Sanitize(Sanitize(x)) == Sanitize(x) for every x.
func Sanitize(name string) string {
	folded, _, err := transform.String(newFolder(), name)
	if err != nil {
		folded = name
	}

	var b strings.Builder
	b.Grow(len(folded))
	sep := false
	for _, r := range folded {
		switch {
		case r >= 'A' && r <= 'Z':
			r += 'a' - 'A'
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '-':
		default:
			// '_', whitespace, punctuation and anything non-ASCII
			sep = true
			continue
		}
		if sep && b.Len() > 0 {
			b.WriteByte('_')
		}
		sep = false
		b.WriteRune(r)
	}

	token := strings.Trim(b.String(), "._-")
	if len(token) > MaxTokenLength {
		token = strings.TrimRight(token[:MaxTokenLength], "._-")
	}
	if token == "" {
		return Unnamed
	}
	return token
}

// ResourceName is the logical name of one resource inside a bundle:
// the sanitized subgraph name, a space, and the role suffix.
func ResourceName(subgraphName, suffix string) string {
	return Sanitize(subgraphName) + " " + suffix
}

// BundleFilename is the file name of the compiled bundle of a subgraph.
func BundleFilename(subgraphName string) string {
	return Sanitize(subgraphName) + BundleExt
}

// BundleID is a stable identifier for the bundle of a subgraph, derived from
// its sanitized name (UUIDv5), so repeated compilations agree on it.
func BundleID(subgraphName string) string {
	return uuid.NewSHA1(bundleNamespace, []byte(Sanitize(subgraphName))).String()
}
