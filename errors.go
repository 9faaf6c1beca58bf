package akashica

import (
	"errors"
	"fmt"
)

// ErrSessionReadOnly is returned when a write is attempted on a
// session bound to a commit.
var ErrSessionReadOnly = errors.New("session is read-only")

// FileNotFoundError is returned when a path or hash does not resolve.
type FileNotFoundError struct {
	Path string
}

func (err FileNotFoundError) Error() string {
	return fmt.Sprintf("file not found: %s", err.Path)
}

// BranchNotFoundError is returned when the named branch is absent.
type BranchNotFoundError struct {
	Name string
}

func (err BranchNotFoundError) Error() string {
	return fmt.Sprintf("branch not found: %s", err.Name)
}

// CommitNotFoundError is returned when commit metadata or a root
// manifest is missing.
type CommitNotFoundError struct {
	Commit CommitID
}

func (err CommitNotFoundError) Error() string {
	return fmt.Sprintf("commit not found: %s", err.Commit)
}

// WorkspaceNotFoundError is returned when workspace metadata is
// missing.
type WorkspaceNotFoundError struct {
	Workspace WorkspaceID
}

func (err WorkspaceNotFoundError) Error() string {
	return fmt.Sprintf("workspace not found: %s", err.Workspace)
}

// InvalidManifestError is returned when manifest bytes fail to decode.
type InvalidManifestError struct {
	Detail string
}

func (err InvalidManifestError) Error() string {
	return fmt.Sprintf("invalid manifest: %s", err.Detail)
}

// BranchConflictError is returned on a compare-and-swap mismatch while
// updating a branch. The caller's retry strategy is to rebuild against
// the new head and republish.
type BranchConflictError struct {
	Name string
}

func (err BranchConflictError) Error() string {
	return fmt.Sprintf("branch %s was updated concurrently", err.Name)
}

// NonAncestorResetError is returned when a branch reset to a
// non-ancestor is refused without force.
type NonAncestorResetError struct {
	Branch string
	Head   CommitID
	Target CommitID
}

func (err NonAncestorResetError) Error() string {
	return fmt.Sprintf("refusing to reset branch %s from %s to non-ancestor %s without force",
		err.Branch, err.Head, err.Target)
}

// ObjectDeletedError is returned when a read reaches a tombstoned
// hash. The tombstone says who scrubbed the object, when and why, so
// callers can distinguish intentional deletion from absence.
type ObjectDeletedError struct {
	Hash      ContentHash
	Tombstone Tombstone
}

func (err ObjectDeletedError) Error() string {
	return fmt.Sprintf("object %s was deleted: %s (by %s at %s)",
		err.Hash, err.Tombstone.Reason, err.Tombstone.DeletedBy,
		err.Tombstone.DeletedAt.Format("2006-01-02T15:04:05Z07:00"))
}

// StorageError wraps an adapter-level I/O failure. The engine does not
// retry; callers decide retry policy.
type StorageError struct {
	Underlying error
}

func (err StorageError) Error() string {
	return fmt.Sprintf("storage error: %v", err.Underlying)
}

func (err StorageError) Unwrap() error {
	return err.Underlying
}
