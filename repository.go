package akashica

import "context"

// Repository owns the high-level operations of the engine: session
// construction, workspace lifecycle, publishing, ancestry queries and
// content scrubbing. Implementations hold no long-lived locks; the
// only synchronization primitive is the branch compare-and-swap, so
// concurrent publishers to one branch race and the loser retries.
type Repository interface {
	// Session returns a session bound to ref: read-only for commits,
	// read-write for workspaces. It fails CommitNotFoundError or
	// WorkspaceNotFoundError if the changeset does not exist.
	Session(ctx context.Context, ref ChangesetRef) (Session, error)

	// BranchSession returns a read-only session on the branch's
	// current head.
	BranchSession(ctx context.Context, branch string) (Session, error)

	// CreateWorkspace creates an empty overlay on the given commit, so
	// the workspace's effective view initially equals the base.
	CreateWorkspace(ctx context.Context, from CommitID, creator string) (WorkspaceID, error)

	// CreateWorkspaceFromBranch creates a workspace on the branch's
	// current head.
	CreateWorkspaceFromBranch(ctx context.Context, branch, creator string) (WorkspaceID, error)

	// DeleteWorkspace removes all workspace artifacts. Best-effort and
	// idempotent.
	DeleteWorkspace(ctx context.Context, ws WorkspaceID) error

	// PublishWorkspace folds the workspace into a new commit, advances
	// the branch to it by compare-and-swap and deletes the workspace.
	// On BranchConflictError the workspace is left intact for the
	// caller to rebase and retry.
	PublishWorkspace(ctx context.Context, ws WorkspaceID, branch, message, author string) (CommitID, error)

	// Branches lists all branch names, sorted.
	Branches(ctx context.Context) ([]string, error)

	// CurrentCommit returns the branch's head.
	CurrentCommit(ctx context.Context, branch string) (CommitID, error)

	// CommitMetadata returns the metadata of a commit.
	CommitMetadata(ctx context.Context, id CommitID) (CommitMetadata, error)

	// CommitHistory walks parent links from the branch head, head
	// first, up to limit commits (no limit if limit <= 0).
	CommitHistory(ctx context.Context, branch string, limit int) ([]CommitRecord, error)

	// IsAncestor reports whether a is b or reachable from b by parent
	// links.
	IsAncestor(ctx context.Context, a, b CommitID) (bool, error)

	// CommitsBetween returns the commits on the parent chain from to
	// back to, but not including, from, head first. It fails
	// CommitNotFoundError if from is not an ancestor of to.
	CommitsBetween(ctx context.Context, from, to CommitID) ([]CommitRecord, error)

	// ResetBranch moves the branch head to target. Without force the
	// target must be an ancestor of the current head.
	ResetBranch(ctx context.Context, name string, target CommitID, force bool) error

	// ScrubContent replaces the object's bytes with a tombstone. The
	// object must exist; commits referencing the hash keep their
	// structure and subsequently fail reads with ObjectDeletedError.
	ScrubContent(ctx context.Context, hash ContentHash, reason, deletedBy string) error

	// ScrubContentAt resolves the file's hash by walking the commit's
	// manifests, without reading the object, then scrubs it.
	ScrubContentAt(ctx context.Context, commit CommitID, path string, reason, deletedBy string) error

	// ListScrubbedContent returns every tombstone in the store.
	ListScrubbedContent(ctx context.Context) ([]ScrubbedObject, error)
}
