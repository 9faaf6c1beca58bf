// Package manifest implements the directory manifest wire format: one
// newline-delimited record per entry, "hash:size:name", where the name
// is the remainder of the line (so names may contain colons) and
// directories carry a trailing slash. An empty manifest encodes to
// zero bytes.
package manifest

import (
	"sort"
	"strings"

	"github.com/akashica/akashica"
)

// Entry is one child of a directory: a file blob or a nested directory
// manifest, identified by content hash. Size is the byte size of the
// file, or of the child manifest blob for directories.
type Entry struct {
	Name        string
	Hash        akashica.ContentHash
	Size        int64
	IsDirectory bool
}

// Lookup returns the entry named name, if present.
func Lookup(entries []Entry, name string) (Entry, bool) {
	for _, e := range entries {
		if e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}

// Set returns entries with e inserted, replacing any entry of the same
// name.
func Set(entries []Entry, e Entry) []Entry {
	for i := range entries {
		if entries[i].Name == e.Name {
			entries[i] = e
			return entries
		}
	}
	return append(entries, e)
}

// Remove returns entries without the entry named name.
func Remove(entries []Entry, name string) []Entry {
	for i := range entries {
		if entries[i].Name == name {
			return append(entries[:i], entries[i+1:]...)
		}
	}
	return entries
}

// sortEntries orders entries lexicographically by name. Encoding is
// deterministic for a given entry set, so identical directories hash
// identically across publishes and deduplicate.
func sortEntries(entries []Entry) []Entry {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Name < sorted[j].Name
	})
	return sorted
}

// ValidName reports whether name is usable as a manifest entry name:
// non-empty and free of slashes.
func ValidName(name string) bool {
	return name != "" && !strings.Contains(name, "/")
}
