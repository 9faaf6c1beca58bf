package akashica

import "context"

// The interfaces below form the storage adapter contract: the single
// seam between the engine and durable storage. The adapter is a pure
// I/O contract; all versioning policy lives above it. Backends must
// provide strong read-after-write consistency per key, a linearizable
// branch compare-and-swap, and immutability of object and manifest
// blobs once written (scrubbing is a tombstone write followed by a
// delete, never an in-place mutation).

// ObjectStore is content-addressed storage for file blobs, plus the
// tombstones left behind by scrubbing.
type ObjectStore interface {
	// ReadObject returns the object's bytes. It fails
	// ObjectDeletedError if the hash is tombstoned, FileNotFoundError
	// if it is simply absent.
	ReadObject(ctx context.Context, hash ContentHash) ([]byte, error)

	// WriteObject hashes content and stores it if not already present.
	// Idempotent: equal bytes yield the same hash and one stored copy.
	WriteObject(ctx context.Context, content []byte) (ContentHash, error)

	// ObjectExists reports whether the object is present and not
	// tombstoned.
	ObjectExists(ctx context.Context, hash ContentHash) (bool, error)

	// DeleteObject removes the object's bytes. Used by scrubbing after
	// the tombstone is durable.
	DeleteObject(ctx context.Context, hash ContentHash) error

	// ReadTombstone returns the tombstone for hash, or nil if none.
	ReadTombstone(ctx context.Context, hash ContentHash) (*Tombstone, error)

	WriteTombstone(ctx context.Context, hash ContentHash, t Tombstone) error

	// ListTombstones returns every tombstone in the store.
	ListTombstones(ctx context.Context) ([]ScrubbedObject, error)
}

// ManifestStore is content-addressed storage for directory manifest
// blobs. It may share the object namespace or keep its own; callers
// cannot tell.
type ManifestStore interface {
	ReadManifest(ctx context.Context, hash ContentHash) ([]byte, error)
	WriteManifest(ctx context.Context, content []byte) (ContentHash, error)
}

// CommitStore persists commit metadata and the root manifest blob of
// each commit, keyed by commit id.
type CommitStore interface {
	// ReadRootManifest returns the commit's root manifest bytes. It
	// fails CommitNotFoundError on a miss.
	ReadRootManifest(ctx context.Context, id CommitID) ([]byte, error)

	WriteRootManifest(ctx context.Context, id CommitID, content []byte) error

	// ReadCommitMetadata fails CommitNotFoundError on a miss.
	ReadCommitMetadata(ctx context.Context, id CommitID) (CommitMetadata, error)

	WriteCommitMetadata(ctx context.Context, id CommitID, meta CommitMetadata) error
}

// BranchStore persists branch pointers. UpdateBranch is the engine's
// only synchronization primitive.
type BranchStore interface {
	// ReadBranch fails BranchNotFoundError if the branch is absent.
	ReadBranch(ctx context.Context, name string) (BranchPointer, error)

	// UpdateBranch compare-and-swaps the branch head: it succeeds iff
	// the current head equals expected (nil expected requires the
	// branch not yet exist) and fails BranchConflictError otherwise.
	// Two concurrent updates against the same head cannot both
	// succeed.
	UpdateBranch(ctx context.Context, name string, expected *CommitID, next CommitID) error

	// ListBranches returns all branch names, sorted.
	ListBranches(ctx context.Context) ([]string, error)
}

// WorkspaceStore persists workspace metadata and the three per-path
// overlay namespaces: raw file blobs, copy-on-write references and
// shadow directory manifests. Overlay reads return nil for absent
// entries rather than failing; overlay writes are atomic per key, and
// concurrency across keys is the caller's concern.
type WorkspaceStore interface {
	// ReadWorkspaceMetadata fails WorkspaceNotFoundError on a miss.
	ReadWorkspaceMetadata(ctx context.Context, ws WorkspaceID) (WorkspaceMetadata, error)

	WriteWorkspaceMetadata(ctx context.Context, ws WorkspaceID, meta WorkspaceMetadata) error

	WorkspaceExists(ctx context.Context, ws WorkspaceID) (bool, error)

	// DeleteWorkspace removes the workspace recursively. Best-effort
	// and idempotent.
	DeleteWorkspace(ctx context.Context, ws WorkspaceID) error

	ReadWorkspaceFile(ctx context.Context, ws WorkspaceID, path RepositoryPath) ([]byte, error)
	WriteWorkspaceFile(ctx context.Context, ws WorkspaceID, path RepositoryPath, content []byte) error
	DeleteWorkspaceFile(ctx context.Context, ws WorkspaceID, path RepositoryPath) error

	ReadCOWReference(ctx context.Context, ws WorkspaceID, path RepositoryPath) (*COWReference, error)
	WriteCOWReference(ctx context.Context, ws WorkspaceID, path RepositoryPath, ref COWReference) error
	DeleteCOWReference(ctx context.Context, ws WorkspaceID, path RepositoryPath) error

	ReadWorkspaceManifest(ctx context.Context, ws WorkspaceID, dir RepositoryPath) ([]byte, error)
	WriteWorkspaceManifest(ctx context.Context, ws WorkspaceID, dir RepositoryPath, content []byte) error
}

// Storage is the complete adapter contract.
type Storage interface {
	ObjectStore
	ManifestStore
	CommitStore
	BranchStore
	WorkspaceStore
}
