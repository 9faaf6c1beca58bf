package akashica

import (
	"fmt"
	"strings"
	"time"
)

// WorkspaceID names a mutable workspace overlaying a base commit,
// rendered "@<base>$<suffix>". The suffix is a short random token
// allocated at creation time.
type WorkspaceID struct {
	Base   CommitID
	Suffix string
}

// ParseWorkspaceID parses the "@<base>$<suffix>" rendering.
func ParseWorkspaceID(s string) (WorkspaceID, error) {
	base, suffix, ok := strings.Cut(s, "$")
	if !ok || suffix == "" {
		return WorkspaceID{}, fmt.Errorf("invalid workspace id %q", s)
	}
	id, err := ParseCommitID(base)
	if err != nil {
		return WorkspaceID{}, fmt.Errorf("invalid workspace id %q: %v", s, err)
	}
	return WorkspaceID{Base: id, Suffix: suffix}, nil
}

func (ws WorkspaceID) String() string {
	return fmt.Sprintf("%s$%s", ws.Base, ws.Suffix)
}

// WorkspaceMetadata is written once at workspace creation and never
// mutated afterwards.
type WorkspaceMetadata struct {
	Base    CommitID  `json:"base"`
	Created time.Time `json:"created"`
	Creator string    `json:"creator"`
}

// COWReference records that a workspace path holds unchanged content
// that merely moved from a base-commit path. The referenced object
// already exists in the store, so a rename costs no object bytes.
type COWReference struct {
	BasePath RepositoryPath `json:"basePath"`
	Hash     ContentHash    `json:"hash"`
	Size     int64          `json:"size"`
}

// Tombstone marks an object that was scrubbed from the store. Commits
// referencing the hash keep their structure; reads of the hash fail
// with ObjectDeletedError carrying the tombstone.
type Tombstone struct {
	DeletedHash  ContentHash `json:"deletedHash"`
	Reason       string      `json:"reason"`
	DeletedBy    string      `json:"deletedBy"`
	DeletedAt    time.Time   `json:"deletedAt"`
	OriginalSize int64       `json:"originalSize"`
}

// ScrubbedObject pairs a scrubbed hash with its tombstone.
type ScrubbedObject struct {
	Hash      ContentHash
	Tombstone Tombstone
}
