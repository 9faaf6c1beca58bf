package akashica

import (
	"fmt"
	"regexp"

	"github.com/opencontainers/go-digest"
)

// ContentHash identifies a stored object or manifest by the lowercase
// hex encoding of the SHA-256 of its bytes. Two equal byte sequences
// always produce the same ContentHash, which is what makes the object
// store deduplicate.
type ContentHash string

var hexRegexp = regexp.MustCompile(`^[a-f0-9]{64}$`)

// HashBytes computes the ContentHash of content.
func HashBytes(content []byte) ContentHash {
	return ContentHash(digest.FromBytes(content).Encoded())
}

// ParseHash validates s as a lowercase 64-character hex SHA-256 and
// returns it as a ContentHash.
func ParseHash(s string) (ContentHash, error) {
	if !hexRegexp.MatchString(s) {
		return "", fmt.Errorf("invalid content hash %q", s)
	}
	return ContentHash(s), nil
}

func (h ContentHash) String() string {
	return string(h)
}

// Digest returns the hash in the algorithm-qualified form used by the
// go-digest package.
func (h ContentHash) Digest() digest.Digest {
	return digest.NewDigestFromEncoded(digest.SHA256, string(h))
}
