// Package akashica defines the core types and interfaces of a
// content-addressed versioning engine for large binary repositories.
//
// The engine stores file content as immutable, deduplicated objects
// keyed by the SHA-256 of their bytes, and directory listings as
// manifests in a separate content-addressed namespace. Immutable commits
// snapshot a manifest tree; mutable workspaces overlay a base commit
// until they are published, which folds the overlay into a new commit
// and atomically advances a branch pointer.
//
// The interfaces declared here are implemented by the storage package
// over a pluggable byte-oriented backend (see storage/driver).
package akashica
