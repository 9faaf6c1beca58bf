package manifest

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/akashica/akashica"
)

// Encode emits the wire form of entries, sorted by name. A nil or
// empty entry list encodes to nil.
func Encode(entries []Entry) []byte {
	if len(entries) == 0 {
		return nil
	}
	var buf bytes.Buffer
	for _, e := range sortEntries(entries) {
		name := e.Name
		if e.IsDirectory {
			name += "/"
		}
		fmt.Fprintf(&buf, "%s:%d:%s\n", e.Hash, e.Size, name)
	}
	return buf.Bytes()
}

// Decode parses manifest bytes. Malformed records fail with
// InvalidManifestError naming the offending line.
func Decode(content []byte) ([]Entry, error) {
	if len(content) == 0 {
		return nil, nil
	}
	var entries []Entry
	for i, line := range strings.Split(strings.TrimSuffix(string(content), "\n"), "\n") {
		entry, err := decodeRecord(line)
		if err != nil {
			return nil, akashica.InvalidManifestError{
				Detail: fmt.Sprintf("line %d: %v", i+1, err),
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// decodeRecord parses a single "hash:size:name" record. Only the first
// two colons delimit fields; the name keeps any further colons.
func decodeRecord(line string) (Entry, error) {
	hashField, rest, ok := strings.Cut(line, ":")
	if !ok {
		return Entry{}, fmt.Errorf("missing size field in %q", line)
	}
	sizeField, name, ok := strings.Cut(rest, ":")
	if !ok {
		return Entry{}, fmt.Errorf("missing name field in %q", line)
	}

	hash, err := akashica.ParseHash(hashField)
	if err != nil {
		return Entry{}, err
	}
	size, err := strconv.ParseInt(sizeField, 10, 64)
	if err != nil || size < 0 {
		return Entry{}, fmt.Errorf("invalid size %q", sizeField)
	}

	isDir := strings.HasSuffix(name, "/")
	if isDir {
		name = strings.TrimSuffix(name, "/")
	}
	if !ValidName(name) {
		return Entry{}, fmt.Errorf("invalid entry name %q", name)
	}

	return Entry{Name: name, Hash: hash, Size: size, IsDirectory: isDir}, nil
}
