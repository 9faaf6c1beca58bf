package akashica

import (
	"fmt"
	"strings"
	"time"
)

// CommitID names an immutable commit. Ids follow the "@<token>"
// convention; identity is string equality. Ids are allocated by the
// repository on publish from a counter persisted in storage, so they
// are unique within a repository but carry no meaning across
// repositories.
type CommitID string

// InitialCommitID is the id of the commit written when a repository is
// initialized. It has an empty tree and no parent.
const InitialCommitID CommitID = "@0"

// ParseCommitID validates s as a commit id.
func ParseCommitID(s string) (CommitID, error) {
	if len(s) < 2 || s[0] != '@' || strings.ContainsAny(s[1:], "@$/") {
		return "", fmt.Errorf("invalid commit id %q", s)
	}
	return CommitID(s), nil
}

func (id CommitID) String() string {
	return string(id)
}

// Token returns the id without its "@" prefix.
func (id CommitID) Token() string {
	return strings.TrimPrefix(string(id), "@")
}

// CommitMetadata describes a commit. Every commit except the initial
// one has exactly one parent.
type CommitMetadata struct {
	Message   string    `json:"message"`
	Author    string    `json:"author"`
	Timestamp time.Time `json:"timestamp"`
	Parent    *CommitID `json:"parent,omitempty"`
}

// CommitRecord pairs a commit id with its metadata, as returned by
// history and ancestry queries.
type CommitRecord struct {
	ID       CommitID
	Metadata CommitMetadata
}

// BranchPointer is the durable head of a branch. Branch updates are
// compare-and-swap on Head; see Storage.UpdateBranch.
type BranchPointer struct {
	Head CommitID `json:"head"`
}
