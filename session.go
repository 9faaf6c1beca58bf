package akashica

import "context"

// DirectoryEntry is one live child of a directory as seen through a
// session: its name, kind, byte size and the hash of its content (for
// files) or of its manifest (for directories).
type DirectoryEntry struct {
	Name        string
	Hash        ContentHash
	Size        int64
	IsDirectory bool
}

// ChangeType classifies a file-level difference between two trees.
type ChangeType string

const (
	ChangeAdded    ChangeType = "added"
	ChangeModified ChangeType = "modified"
	ChangeDeleted  ChangeType = "deleted"
)

// FileChange is one file-level difference reported by Session.Diff.
// Renames surface as a delete at the source and an add at the
// destination.
type FileChange struct {
	Type ChangeType
	Path RepositoryPath
}

// Status summarizes a workspace's effective tree against its base
// commit. Only files are reported; ordering within each set is
// unspecified.
type Status struct {
	Added    []RepositoryPath
	Modified []RepositoryPath
	Deleted  []RepositoryPath
}

// Session binds a caller to a changeset and exposes path-oriented
// operations on it. Sessions bound to commits are read-only; write
// methods on them fail ErrSessionReadOnly. Sessions share no mutable
// state with each other and may be used from multiple goroutines,
// though workspace sessions follow a one-writer convention.
//
// Paths are given in slash-delimited form and normalized as NewPath
// does.
type Session interface {
	// Ref returns the changeset this session is bound to.
	Ref() ChangesetRef

	// IsReadOnly reports whether the session is bound to a commit.
	IsReadOnly() bool

	// ReadFile returns the content of the file at path. It fails
	// FileNotFoundError if the path does not resolve to a file, and
	// ObjectDeletedError if the resolving object was scrubbed.
	ReadFile(ctx context.Context, path string) ([]byte, error)

	// ListDirectory returns the live entries at the directory path,
	// sorted by name. The root path lists the root directory. It fails
	// FileNotFoundError if the path is absent or resolves to a file.
	ListDirectory(ctx context.Context, path string) ([]DirectoryEntry, error)

	// FileExists reports whether path resolves to a file. It never
	// fails on absence.
	FileExists(ctx context.Context, path string) (bool, error)

	// WriteFile stores content at path in the workspace overlay,
	// creating parent directories as needed.
	WriteFile(ctx context.Context, path string, content []byte) error

	// DeleteFile removes the entry at path from the workspace's
	// effective view. It fails FileNotFoundError if the path is not
	// present.
	DeleteFile(ctx context.Context, path string) error

	// MoveFile renames a file. Content unchanged from the base commit
	// moves by copy-on-write reference without copying bytes.
	MoveFile(ctx context.Context, from, to string) error

	// Status compares the workspace's effective tree against its base
	// commit. It fails ErrSessionReadOnly on commit sessions.
	Status(ctx context.Context) (Status, error)

	// Diff compares this session's effective tree against the given
	// commit's tree, with the given commit as the baseline. Diffing a
	// commit session against its own commit yields no changes.
	Diff(ctx context.Context, against CommitID) ([]FileChange, error)
}
