// Package bundle packages compiled matrix vectors into a self-describing zip
// container and reads them back.
//
// A bundle holds one datapackage.json manifest and, per resource, a set of
// little-endian binary members:
//
//	<token>.indices   int32 row, int32 col per entry
//	<token>.data      float64 per entry
//	<token>.flip      one byte per entry (0 or 1), only when a flip array exists
//
// # Deduplication
//
// With intra-duplicate summation enabled, entries of one vector that share
// (row, col, flip) are merged by summing their data, keeping the order of
// first occurrence. Entries at the same (row, col) with different flip values
// stay separate, so a consumption and a production entry for the same cell
// never cancel each other inside the container. Inter-duplicate summation
// (across vectors) is only ever recorded in the manifest for consumers; the
// writer never merges two resources.
//
// # Atomicity
//
// Finalize writes to a temporary file next to the target and renames it into
// place. A bundle at the target path is therefore either the previous
// complete bundle or the new complete bundle, never a partial one.
//
// # Determinism
//
// Members are written in a fixed order with zero modification times, and the
// manifest carries no timestamps, so identical vectors yield byte-identical
// bundles.
package bundle
