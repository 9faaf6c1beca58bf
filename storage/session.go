package storage

import (
	"context"
	"sort"

	"github.com/akashica/akashica"
	"github.com/akashica/akashica/internal/dcontext"
	"github.com/akashica/akashica/manifest"
)

// resolvingView is a treeView that can also resolve a full path to its
// manifest entry.
type resolvingView interface {
	treeView
	resolve(ctx context.Context, p akashica.RepositoryPath) (manifest.Entry, bool, error)
}

// session binds a caller to a changeset. A session's only state is its
// immutable reference plus a memo of the base commit's manifests;
// nothing is shared across sessions, so sessions are independent by
// construction.
type session struct {
	store    *Store
	ref      akashica.ChangesetRef
	branch   string
	readOnly bool

	ws   akashica.WorkspaceID
	base *commitView
	view resolvingView
}

var _ akashica.Session = &session{}

func newCommitSession(store *Store, id akashica.CommitID, branch string) *session {
	view := newCommitView(store, id)
	return &session{
		store:    store,
		ref:      akashica.CommitRef(id),
		branch:   branch,
		readOnly: true,
		base:     view,
		view:     view,
	}
}

func newWorkspaceSession(store *Store, ws akashica.WorkspaceID, base akashica.CommitID) *session {
	baseView := newCommitView(store, base)
	return &session{
		store: store,
		ref:   akashica.WorkspaceRef(ws),
		ws:    ws,
		base:  baseView,
		view:  &workspaceView{store: store, ws: ws, base: baseView},
	}
}

func (s *session) Ref() akashica.ChangesetRef {
	return s.ref
}

func (s *session) IsReadOnly() bool {
	return s.readOnly
}

// ReadFile resolves path through the workspace overlay (file blob,
// then copy-on-write reference) before falling back to the base
// commit's object.
func (s *session) ReadFile(ctx context.Context, path string) ([]byte, error) {
	p := akashica.NewPath(path)
	entry, ok, err := s.view.resolve(ctx, p)
	if err != nil {
		return nil, err
	}
	if !ok || entry.IsDirectory {
		return nil, akashica.FileNotFoundError{Path: p.String()}
	}

	hash := entry.Hash
	if !s.readOnly {
		content, err := s.store.workspaces.getFile(ctx, s.ws, p)
		if err != nil {
			return nil, err
		}
		if content != nil {
			return content, nil
		}
		ref, err := s.store.workspaces.getCOW(ctx, s.ws, p)
		if err != nil {
			return nil, err
		}
		if ref != nil {
			hash = ref.Hash
		}
	}
	content, err := s.store.ReadObject(ctx, hash)
	if err != nil {
		if _, ok := err.(akashica.FileNotFoundError); ok {
			return nil, akashica.FileNotFoundError{Path: p.String()}
		}
		return nil, err
	}
	return content, nil
}

// ListDirectory returns the live entries at path, sorted by name.
func (s *session) ListDirectory(ctx context.Context, path string) ([]akashica.DirectoryEntry, error) {
	p := akashica.NewPath(path)
	entries, ok, err := s.view.manifestAt(ctx, p)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, akashica.FileNotFoundError{Path: p.String()}
	}

	listing := make([]akashica.DirectoryEntry, 0, len(entries))
	for _, e := range entries {
		listing = append(listing, akashica.DirectoryEntry{
			Name:        e.Name,
			Hash:        e.Hash,
			Size:        e.Size,
			IsDirectory: e.IsDirectory,
		})
	}
	sort.Slice(listing, func(i, j int) bool {
		return listing[i].Name < listing[j].Name
	})
	return listing, nil
}

// FileExists reports whether path resolves to a file.
func (s *session) FileExists(ctx context.Context, path string) (bool, error) {
	entry, ok, err := s.view.resolve(ctx, akashica.NewPath(path))
	if err != nil {
		return false, err
	}
	return ok && !entry.IsDirectory, nil
}

// WriteFile stores content in the workspace overlay and reshapes the
// shadow manifest chain from the parent directory up to the root.
func (s *session) WriteFile(ctx context.Context, path string, content []byte) error {
	if s.readOnly {
		return akashica.ErrSessionReadOnly
	}
	p := akashica.NewPath(path)
	if p.IsRoot() {
		return akashica.FileNotFoundError{Path: p.String()}
	}

	if err := s.store.workspaces.putFile(ctx, s.ws, p, content); err != nil {
		return err
	}
	// New content supersedes any rename reference at the same path.
	if err := s.store.workspaces.deleteCOW(ctx, s.ws, p); err != nil {
		return err
	}

	entries, err := s.ensureShadow(ctx, p.Parent())
	if err != nil {
		return err
	}
	entries = manifest.Set(entries, manifest.Entry{
		Name: p.Name(),
		Hash: akashica.HashBytes(content),
		Size: int64(len(content)),
	})
	if err := s.persistChain(ctx, p.Parent(), entries); err != nil {
		return err
	}

	dcontext.GetLoggerWithField(ctx, "workspace", s.ws.String()).
		Debugf("wrote %s (%d bytes)", p, len(content))
	return nil
}

// DeleteFile removes the entry at path from the effective view. The
// shadow manifest of the parent keeps existing even when it becomes
// empty, so the deletion stays visible to status.
func (s *session) DeleteFile(ctx context.Context, path string) error {
	if s.readOnly {
		return akashica.ErrSessionReadOnly
	}
	p := akashica.NewPath(path)
	if p.IsRoot() {
		return akashica.FileNotFoundError{Path: p.String()}
	}

	_, ok, err := s.view.resolve(ctx, p)
	if err != nil {
		return err
	}
	if !ok {
		return akashica.FileNotFoundError{Path: p.String()}
	}

	entries, err := s.ensureShadow(ctx, p.Parent())
	if err != nil {
		return err
	}
	entries = manifest.Remove(entries, p.Name())
	if err := s.persistChain(ctx, p.Parent(), entries); err != nil {
		return err
	}

	if err := s.store.workspaces.deleteFile(ctx, s.ws, p); err != nil {
		return err
	}
	return s.store.workspaces.deleteCOW(ctx, s.ws, p)
}

// MoveFile renames a file. Content that is unchanged from the base
// commit moves as a copy-on-write reference, costing no object bytes;
// content written in this workspace moves its overlay blob.
func (s *session) MoveFile(ctx context.Context, from, to string) error {
	if s.readOnly {
		return akashica.ErrSessionReadOnly
	}
	src := akashica.NewPath(from)
	dst := akashica.NewPath(to)
	if src.IsRoot() || dst.IsRoot() {
		return akashica.FileNotFoundError{Path: src.String()}
	}
	if src.Equal(dst) {
		entry, ok, err := s.view.resolve(ctx, src)
		if err != nil {
			return err
		}
		if !ok || entry.IsDirectory {
			return akashica.FileNotFoundError{Path: src.String()}
		}
		return nil
	}

	entry, ok, err := s.view.resolve(ctx, src)
	if err != nil {
		return err
	}
	if !ok || entry.IsDirectory {
		return akashica.FileNotFoundError{Path: src.String()}
	}

	blob, err := s.store.workspaces.getFile(ctx, s.ws, src)
	if err != nil {
		return err
	}
	if blob != nil {
		if err := s.store.workspaces.putFile(ctx, s.ws, dst, blob); err != nil {
			return err
		}
		if err := s.store.workspaces.deleteCOW(ctx, s.ws, dst); err != nil {
			return err
		}
		if err := s.store.workspaces.deleteFile(ctx, s.ws, src); err != nil {
			return err
		}
	} else {
		ref := akashica.COWReference{BasePath: src, Hash: entry.Hash, Size: entry.Size}
		if existing, err := s.store.workspaces.getCOW(ctx, s.ws, src); err != nil {
			return err
		} else if existing != nil {
			// The source was itself a pending rename; carry the
			// original base path forward.
			ref = *existing
		}
		if err := s.store.workspaces.putCOW(ctx, s.ws, dst, ref); err != nil {
			return err
		}
		if err := s.store.workspaces.deleteFile(ctx, s.ws, dst); err != nil {
			return err
		}
		if err := s.store.workspaces.deleteCOW(ctx, s.ws, src); err != nil {
			return err
		}
	}

	toEntry := manifest.Entry{Name: dst.Name(), Hash: entry.Hash, Size: entry.Size}
	if src.Parent().Equal(dst.Parent()) {
		entries, err := s.ensureShadow(ctx, src.Parent())
		if err != nil {
			return err
		}
		entries = manifest.Remove(entries, src.Name())
		entries = manifest.Set(entries, toEntry)
		return s.persistChain(ctx, src.Parent(), entries)
	}

	srcEntries, err := s.ensureShadow(ctx, src.Parent())
	if err != nil {
		return err
	}
	srcEntries = manifest.Remove(srcEntries, src.Name())
	if err := s.persistChain(ctx, src.Parent(), srcEntries); err != nil {
		return err
	}

	dstEntries, err := s.ensureShadow(ctx, dst.Parent())
	if err != nil {
		return err
	}
	dstEntries = manifest.Set(dstEntries, toEntry)
	return s.persistChain(ctx, dst.Parent(), dstEntries)
}

// Status compares the workspace's effective tree against its base
// commit. Renames surface as an add at the destination and a delete at
// the source.
func (s *session) Status(ctx context.Context) (akashica.Status, error) {
	if s.readOnly {
		return akashica.Status{}, akashica.ErrSessionReadOnly
	}
	changes, err := diffTrees(ctx, s.base, s.view)
	if err != nil {
		return akashica.Status{}, err
	}

	var status akashica.Status
	for _, change := range changes {
		switch change.Type {
		case akashica.ChangeAdded:
			status.Added = append(status.Added, change.Path)
		case akashica.ChangeModified:
			status.Modified = append(status.Modified, change.Path)
		case akashica.ChangeDeleted:
			status.Deleted = append(status.Deleted, change.Path)
		}
	}
	return status, nil
}

// Diff compares this session's effective tree against the given
// commit, with that commit as the baseline.
func (s *session) Diff(ctx context.Context, against akashica.CommitID) ([]akashica.FileChange, error) {
	return diffTrees(ctx, newCommitView(s.store, against), s.view)
}

// ensureShadow returns the mutable entry list for dir, materializing
// it from the base commit on first touch so the shadow manifest
// enumerates every live child from then on.
func (s *session) ensureShadow(ctx context.Context, dir akashica.RepositoryPath) ([]manifest.Entry, error) {
	shadow, err := s.store.workspaces.getManifest(ctx, s.ws, dir)
	if err != nil {
		return nil, err
	}
	if shadow != nil {
		return manifest.Decode(shadow)
	}
	baseEntries, ok, err := s.base.manifestAt(ctx, dir)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	entries := make([]manifest.Entry, len(baseEntries))
	copy(entries, baseEntries)
	return entries, nil
}

// persistChain writes the shadow manifest for dir and refreshes the
// directory entries of every ancestor up to the root, materializing
// their shadows on first touch.
func (s *session) persistChain(ctx context.Context, dir akashica.RepositoryPath, entries []manifest.Entry) error {
	for {
		content := manifest.Encode(entries)
		if err := s.store.workspaces.putManifest(ctx, s.ws, dir, content); err != nil {
			return err
		}
		if dir.IsRoot() {
			return nil
		}

		parent, err := s.ensureShadow(ctx, dir.Parent())
		if err != nil {
			return err
		}
		parent = manifest.Set(parent, manifest.Entry{
			Name:        dir.Name(),
			Hash:        akashica.HashBytes(content),
			Size:        int64(len(content)),
			IsDirectory: true,
		})
		entries = parent
		dir = dir.Parent()
	}
}
