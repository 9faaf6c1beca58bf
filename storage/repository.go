package storage

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/akashica/akashica"
	"github.com/akashica/akashica/internal/dcontext"
	"github.com/akashica/akashica/internal/uuid"
	"github.com/akashica/akashica/manifest"
	storagedriver "github.com/akashica/akashica/storage/driver"
)

const (
	// DefaultBranch is the branch created when a repository is
	// initialized.
	DefaultBranch = "main"

	// workspaceSuffixLength is the length of the random hex token
	// appended to a workspace's base commit id.
	workspaceSuffixLength = 8

	// foldConcurrency bounds the parallel subtree folds performed by
	// publish.
	foldConcurrency = 8
)

// repository implements akashica.Repository over a Store. It is a
// thin handle: all durable state lives behind the storage adapter and
// the only synchronization is the branch compare-and-swap.
type repository struct {
	store *Store
}

var _ akashica.Repository = &repository{}

// NewRepository returns a Repository over the given driver. The root
// must have been initialized with Init.
func NewRepository(ctx context.Context, driver storagedriver.StorageDriver) (akashica.Repository, error) {
	store := NewStore(driver)
	if _, err := store.ReadCommitMetadata(ctx, akashica.InitialCommitID); err != nil {
		return nil, err
	}
	return &repository{store: store}, nil
}

// Init bootstraps a repository root: the initial commit with an empty
// tree and the default branch pointing at it. Initializing an already
// initialized root just opens it.
func Init(ctx context.Context, driver storagedriver.StorageDriver) (akashica.Repository, error) {
	store := NewStore(driver)

	_, err := store.ReadCommitMetadata(ctx, akashica.InitialCommitID)
	switch err.(type) {
	case nil:
		return &repository{store: store}, nil
	case akashica.CommitNotFoundError:
	default:
		return nil, err
	}

	if _, err := store.WriteManifest(ctx, nil); err != nil {
		return nil, err
	}
	if err := store.WriteRootManifest(ctx, akashica.InitialCommitID, nil); err != nil {
		return nil, err
	}
	if err := store.WriteCommitMetadata(ctx, akashica.InitialCommitID, akashica.CommitMetadata{
		Message:   "initialize repository",
		Author:    "akashica",
		Timestamp: time.Now().UTC(),
	}); err != nil {
		return nil, err
	}
	if err := store.writeCounter(ctx, 0); err != nil {
		return nil, err
	}
	if err := store.UpdateBranch(ctx, DefaultBranch, nil, akashica.InitialCommitID); err != nil {
		return nil, err
	}

	dcontext.GetLogger(ctx).Infof("initialized repository on %s backend", driver.Name())
	return &repository{store: store}, nil
}

// Session returns a session bound to ref: read-only for commits,
// read-write for workspaces.
func (r *repository) Session(ctx context.Context, ref akashica.ChangesetRef) (akashica.Session, error) {
	if id, ok := ref.Commit(); ok {
		if _, err := r.store.ReadCommitMetadata(ctx, id); err != nil {
			return nil, err
		}
		return newCommitSession(r.store, id, ""), nil
	}
	ws, _ := ref.Workspace()
	meta, err := r.store.ReadWorkspaceMetadata(ctx, ws)
	if err != nil {
		return nil, err
	}
	return newWorkspaceSession(r.store, ws, meta.Base), nil
}

// BranchSession returns a read-only session on the branch's current
// head.
func (r *repository) BranchSession(ctx context.Context, branch string) (akashica.Session, error) {
	pointer, err := r.store.ReadBranch(ctx, branch)
	if err != nil {
		return nil, err
	}
	return newCommitSession(r.store, pointer.Head, branch), nil
}

// CreateWorkspace creates an empty overlay on the given commit.
func (r *repository) CreateWorkspace(ctx context.Context, from akashica.CommitID, creator string) (akashica.WorkspaceID, error) {
	if _, err := r.store.ReadCommitMetadata(ctx, from); err != nil {
		return akashica.WorkspaceID{}, err
	}

	ws := akashica.WorkspaceID{Base: from, Suffix: uuid.Token(workspaceSuffixLength)}
	meta := akashica.WorkspaceMetadata{
		Base:    from,
		Created: time.Now().UTC(),
		Creator: creator,
	}
	if err := r.store.WriteWorkspaceMetadata(ctx, ws, meta); err != nil {
		return akashica.WorkspaceID{}, err
	}

	dcontext.GetLogger(ctx).Debugf("created workspace %s", ws)
	return ws, nil
}

// CreateWorkspaceFromBranch creates a workspace on the branch's
// current head.
func (r *repository) CreateWorkspaceFromBranch(ctx context.Context, branch, creator string) (akashica.WorkspaceID, error) {
	pointer, err := r.store.ReadBranch(ctx, branch)
	if err != nil {
		return akashica.WorkspaceID{}, err
	}
	return r.CreateWorkspace(ctx, pointer.Head, creator)
}

// DeleteWorkspace removes all workspace artifacts. Idempotent.
func (r *repository) DeleteWorkspace(ctx context.Context, ws akashica.WorkspaceID) error {
	return r.store.DeleteWorkspace(ctx, ws)
}

// PublishWorkspace folds the workspace into a new commit, advances the
// branch by compare-and-swap and deletes the workspace. Publication is
// strict: when the branch exists its head must equal the workspace's
// base, so history stays linear and the recorded parent is truthful.
func (r *repository) PublishWorkspace(ctx context.Context, ws akashica.WorkspaceID, branch, message, author string) (akashica.CommitID, error) {
	meta, err := r.store.ReadWorkspaceMetadata(ctx, ws)
	if err != nil {
		return "", err
	}

	var expected *akashica.CommitID
	pointer, err := r.store.ReadBranch(ctx, branch)
	switch err.(type) {
	case nil:
		if pointer.Head != meta.Base {
			branchConflictsCounter.Inc()
			return "", akashica.BranchConflictError{Name: branch}
		}
		expected = &pointer.Head
	case akashica.BranchNotFoundError:
	default:
		return "", err
	}

	fold := &folder{store: r.store, ws: ws, base: newCommitView(r.store, meta.Base)}
	rootEntries, err := fold.fold(ctx, akashica.RepositoryPath{})
	if err != nil {
		return "", err
	}
	rootBytes := manifest.Encode(rootEntries)
	if _, err := r.store.WriteManifest(ctx, rootBytes); err != nil {
		return "", err
	}

	id, err := r.store.nextCommitID(ctx)
	if err != nil {
		return "", err
	}
	if err := r.store.WriteRootManifest(ctx, id, rootBytes); err != nil {
		return "", err
	}
	parent := meta.Base
	if err := r.store.WriteCommitMetadata(ctx, id, akashica.CommitMetadata{
		Message:   message,
		Author:    author,
		Timestamp: time.Now().UTC(),
		Parent:    &parent,
	}); err != nil {
		return "", err
	}

	if err := r.store.UpdateBranch(ctx, branch, expected, id); err != nil {
		// The workspace stays intact so the caller can rebase and
		// republish.
		return "", err
	}

	if err := r.store.DeleteWorkspace(ctx, ws); err != nil {
		dcontext.GetLogger(ctx).WithError(err).Warnf("publish: could not delete workspace %s", ws)
	}

	publishesCounter.Inc()
	dcontext.GetLoggerWithFields(ctx, map[any]any{
		"workspace": ws.String(),
		"branch":    branch,
		"commit":    id.String(),
	}).Infof("published workspace")
	return id, nil
}

// folder folds a workspace's overlay into new commit manifests,
// root-first. Untouched subtrees are carried by verbatim hash reuse;
// touched directories re-emit their manifests, reading overlay blobs
// into the object store (deduplicated) and copying base entries for
// unchanged files.
type folder struct {
	store *Store
	ws    akashica.WorkspaceID
	base  *commitView
}

func (f *folder) fold(ctx context.Context, dir akashica.RepositoryPath) ([]manifest.Entry, error) {
	shadow, err := f.store.workspaces.getManifest(ctx, f.ws, dir)
	if err != nil {
		return nil, err
	}

	var entries []manifest.Entry
	if shadow != nil {
		if entries, err = manifest.Decode(shadow); err != nil {
			return nil, err
		}
	} else {
		baseEntries, ok, err := f.base.manifestAt(ctx, dir)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}
		entries = baseEntries
	}

	out := make([]manifest.Entry, len(entries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(foldConcurrency)

	for i, e := range entries {
		i, e := i, e
		g.Go(func() error {
			folded, keep, err := f.foldEntry(gctx, dir.Join(e.Name), e)
			if err != nil {
				return err
			}
			if keep {
				out[i] = folded
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	kept := make([]manifest.Entry, 0, len(out))
	for _, e := range out {
		if e.Name != "" {
			kept = append(kept, e)
		}
	}
	return kept, nil
}

// foldEntry emits the committed form of one directory entry. Empty
// directories are dropped: with no explicit mkdir operation an empty
// directory cannot be intentional.
func (f *folder) foldEntry(ctx context.Context, p akashica.RepositoryPath, e manifest.Entry) (manifest.Entry, bool, error) {
	if e.IsDirectory {
		shadow, err := f.store.workspaces.getManifest(ctx, f.ws, p)
		if err != nil {
			return manifest.Entry{}, false, err
		}
		if shadow == nil {
			// Untouched subtree: reuse the base manifest hash
			// verbatim, emitting nothing.
			return e, true, nil
		}
		children, err := f.fold(ctx, p)
		if err != nil {
			return manifest.Entry{}, false, err
		}
		if len(children) == 0 {
			return manifest.Entry{}, false, nil
		}
		content := manifest.Encode(children)
		hash, err := f.store.manifests.put(ctx, content)
		if err != nil {
			return manifest.Entry{}, false, err
		}
		return manifest.Entry{
			Name:        e.Name,
			Hash:        hash,
			Size:        int64(len(content)),
			IsDirectory: true,
		}, true, nil
	}

	blob, err := f.store.workspaces.getFile(ctx, f.ws, p)
	if err != nil {
		return manifest.Entry{}, false, err
	}
	if blob != nil {
		hash, err := f.store.objects.put(ctx, blob)
		if err != nil {
			return manifest.Entry{}, false, err
		}
		return manifest.Entry{Name: e.Name, Hash: hash, Size: int64(len(blob))}, true, nil
	}

	ref, err := f.store.workspaces.getCOW(ctx, f.ws, p)
	if err != nil {
		return manifest.Entry{}, false, err
	}
	if ref != nil {
		// The referenced object already exists; the rename costs only
		// manifest bytes.
		return manifest.Entry{Name: e.Name, Hash: ref.Hash, Size: ref.Size}, true, nil
	}

	// Unchanged file in a touched directory: carry the base entry.
	return e, true, nil
}

// Branches lists all branch names, sorted.
func (r *repository) Branches(ctx context.Context) ([]string, error) {
	return r.store.ListBranches(ctx)
}

// CurrentCommit returns the branch's head.
func (r *repository) CurrentCommit(ctx context.Context, branch string) (akashica.CommitID, error) {
	pointer, err := r.store.ReadBranch(ctx, branch)
	if err != nil {
		return "", err
	}
	return pointer.Head, nil
}

// CommitMetadata returns the metadata of a commit.
func (r *repository) CommitMetadata(ctx context.Context, id akashica.CommitID) (akashica.CommitMetadata, error) {
	return r.store.ReadCommitMetadata(ctx, id)
}

// CommitHistory walks parent links from the branch head, head first.
func (r *repository) CommitHistory(ctx context.Context, branch string, limit int) ([]akashica.CommitRecord, error) {
	pointer, err := r.store.ReadBranch(ctx, branch)
	if err != nil {
		return nil, err
	}

	var records []akashica.CommitRecord
	next := &pointer.Head
	for next != nil && (limit <= 0 || len(records) < limit) {
		meta, err := r.store.ReadCommitMetadata(ctx, *next)
		if err != nil {
			return nil, err
		}
		records = append(records, akashica.CommitRecord{ID: *next, Metadata: meta})
		next = meta.Parent
	}
	return records, nil
}

// IsAncestor reports whether a is b or reachable from b by parent
// links.
func (r *repository) IsAncestor(ctx context.Context, a, b akashica.CommitID) (bool, error) {
	next := &b
	for next != nil {
		if *next == a {
			return true, nil
		}
		meta, err := r.store.ReadCommitMetadata(ctx, *next)
		if err != nil {
			return false, err
		}
		next = meta.Parent
	}
	return false, nil
}

// CommitsBetween returns the commits on the parent chain from to back
// to, but not including, from, head first.
func (r *repository) CommitsBetween(ctx context.Context, from, to akashica.CommitID) ([]akashica.CommitRecord, error) {
	var records []akashica.CommitRecord
	next := &to
	for next != nil {
		if *next == from {
			return records, nil
		}
		meta, err := r.store.ReadCommitMetadata(ctx, *next)
		if err != nil {
			return nil, err
		}
		records = append(records, akashica.CommitRecord{ID: *next, Metadata: meta})
		next = meta.Parent
	}
	return nil, akashica.CommitNotFoundError{Commit: from}
}

// ResetBranch moves the branch head to target. Without force the
// target must be an ancestor of the current head.
func (r *repository) ResetBranch(ctx context.Context, name string, target akashica.CommitID, force bool) error {
	pointer, err := r.store.ReadBranch(ctx, name)
	if err != nil {
		return err
	}
	if pointer.Head == target {
		return nil
	}

	if _, err := r.store.ReadCommitMetadata(ctx, target); err != nil {
		return err
	}
	if !force {
		ancestor, err := r.IsAncestor(ctx, target, pointer.Head)
		if err != nil {
			return err
		}
		if !ancestor {
			return akashica.NonAncestorResetError{Branch: name, Head: pointer.Head, Target: target}
		}
	}

	if err := r.store.UpdateBranch(ctx, name, &pointer.Head, target); err != nil {
		return err
	}
	dcontext.GetLogger(ctx).Infof("reset branch %s from %s to %s", name, pointer.Head, target)
	return nil
}

// ScrubContent replaces the object's bytes with a tombstone. The
// tombstone is made durable before the bytes are deleted, so a crash
// between the two leaves a readable tombstone, never a bare missing
// object.
func (r *repository) ScrubContent(ctx context.Context, hash akashica.ContentHash, reason, deletedBy string) error {
	if t, err := r.store.objects.tombstone(ctx, hash); err != nil {
		return err
	} else if t != nil {
		return akashica.ObjectDeletedError{Hash: hash, Tombstone: *t}
	}
	size, err := r.store.objects.stat(ctx, hash)
	if err != nil {
		return err
	}

	tombstone := akashica.Tombstone{
		DeletedHash:  hash,
		Reason:       reason,
		DeletedBy:    deletedBy,
		DeletedAt:    time.Now().UTC(),
		OriginalSize: size,
	}
	if err := r.store.WriteTombstone(ctx, hash, tombstone); err != nil {
		return err
	}
	if err := r.store.DeleteObject(ctx, hash); err != nil {
		return err
	}

	scrubsCounter.Inc()
	dcontext.GetLoggerWithFields(ctx, map[any]any{
		"hash":   hash.String(),
		"reason": reason,
		"by":     deletedBy,
	}).Warnf("scrubbed object")
	return nil
}

// ScrubContentAt resolves the file's hash by walking the commit's
// manifests, never reading the object itself, then scrubs by hash.
func (r *repository) ScrubContentAt(ctx context.Context, commit akashica.CommitID, path string, reason, deletedBy string) error {
	p := akashica.NewPath(path)
	entry, ok, err := newCommitView(r.store, commit).resolve(ctx, p)
	if err != nil {
		return err
	}
	if !ok || entry.IsDirectory {
		return akashica.FileNotFoundError{Path: p.String()}
	}
	return r.ScrubContent(ctx, entry.Hash, reason, deletedBy)
}

// ListScrubbedContent returns every tombstone in the store.
func (r *repository) ListScrubbedContent(ctx context.Context) ([]akashica.ScrubbedObject, error) {
	return r.store.ListTombstones(ctx)
}

func (r *repository) String() string {
	return fmt.Sprintf("repository[%s]", r.store.driver.Name())
}
