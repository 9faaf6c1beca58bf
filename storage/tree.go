package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/akashica/akashica"
	"github.com/akashica/akashica/manifest"
)

// treeView produces the live manifest entries at a directory of some
// tree: a commit's immutable tree, or a workspace's effective view of
// its base commit plus overlay.
type treeView interface {
	// manifestAt returns the entries at dir and whether dir exists as
	// a directory in this view.
	manifestAt(ctx context.Context, dir akashica.RepositoryPath) ([]manifest.Entry, bool, error)
}

// commitView walks a commit's manifest tree. Commits are immutable,
// so decoded manifests are memoized for the life of the view. The
// memo never leaves the view, but one view may be walked from several
// goroutines during a publish fold, hence the mutex.
type commitView struct {
	store *Store
	id    akashica.CommitID

	mu   sync.Mutex
	memo map[string][]manifest.Entry
}

func newCommitView(store *Store, id akashica.CommitID) *commitView {
	return &commitView{store: store, id: id, memo: make(map[string][]manifest.Entry)}
}

func (v *commitView) memoGet(key string) ([]manifest.Entry, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	entries, ok := v.memo[key]
	return entries, ok
}

func (v *commitView) memoSet(key string, entries []manifest.Entry) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.memo[key] = entries
}

func (v *commitView) manifestAt(ctx context.Context, dir akashica.RepositoryPath) ([]manifest.Entry, bool, error) {
	if entries, ok := v.memoGet(dir.String()); ok {
		return entries, true, nil
	}

	entries, err := v.root(ctx)
	if err != nil {
		return nil, false, err
	}

	walked := akashica.RepositoryPath{}
	for _, name := range dir.Components() {
		entry, ok := manifest.Lookup(entries, name)
		if !ok || !entry.IsDirectory {
			return nil, false, nil
		}
		content, err := v.store.manifests.get(ctx, entry.Hash)
		if err != nil {
			return nil, false, err
		}
		entries, err = manifest.Decode(content)
		if err != nil {
			return nil, false, err
		}
		walked = walked.Join(name)
		v.memoSet(walked.String(), entries)
	}
	return entries, true, nil
}

func (v *commitView) root(ctx context.Context) ([]manifest.Entry, error) {
	if entries, ok := v.memoGet(""); ok {
		return entries, nil
	}
	content, err := v.store.ReadRootManifest(ctx, v.id)
	if err != nil {
		return nil, err
	}
	entries, err := manifest.Decode(content)
	if err != nil {
		return nil, err
	}
	v.memoSet("", entries)
	return entries, nil
}

// resolve walks the view to the entry at p. It returns ok=false when
// any component along the way is missing or a non-directory.
func (v *commitView) resolve(ctx context.Context, p akashica.RepositoryPath) (manifest.Entry, bool, error) {
	return resolveIn(ctx, v, p)
}

// workspaceView overlays a workspace's shadow manifests onto its base
// commit. Where a shadow manifest exists it is authoritative: base
// entries absent from it are deleted in the workspace.
type workspaceView struct {
	store *Store
	ws    akashica.WorkspaceID
	base  *commitView
}

func (v *workspaceView) manifestAt(ctx context.Context, dir akashica.RepositoryPath) ([]manifest.Entry, bool, error) {
	shadow, err := v.store.workspaces.getManifest(ctx, v.ws, dir)
	if err != nil {
		return nil, false, err
	}
	if shadow != nil {
		entries, err := manifest.Decode(shadow)
		if err != nil {
			return nil, false, err
		}
		return entries, true, nil
	}
	// No shadow at dir. The directory may still be introduced by a
	// parent shadow manifest, so existence is judged by walking from
	// the root rather than by the base alone.
	if dir.IsRoot() {
		return v.base.manifestAt(ctx, dir)
	}
	entry, ok, err := resolveIn(ctx, v, dir)
	if err != nil {
		return nil, false, err
	}
	if !ok || !entry.IsDirectory {
		return nil, false, nil
	}
	return v.base.manifestAt(ctx, dir)
}

func (v *workspaceView) resolve(ctx context.Context, p akashica.RepositoryPath) (manifest.Entry, bool, error) {
	return resolveIn(ctx, v, p)
}

// resolveIn walks a view component by component to the entry at p.
func resolveIn(ctx context.Context, v treeView, p akashica.RepositoryPath) (manifest.Entry, bool, error) {
	if p.IsRoot() {
		return manifest.Entry{}, false, nil
	}

	dir := akashica.RepositoryPath{}
	components := p.Components()
	for i, name := range components {
		entries, ok, err := v.manifestAt(ctx, dir)
		if err != nil || !ok {
			return manifest.Entry{}, false, err
		}
		entry, ok := manifest.Lookup(entries, name)
		if !ok {
			return manifest.Entry{}, false, nil
		}
		if i == len(components)-1 {
			return entry, true, nil
		}
		if !entry.IsDirectory {
			return manifest.Entry{}, false, nil
		}
		dir = dir.Join(name)
	}
	return manifest.Entry{}, false, nil
}

// diffTrees walks two views and emits one FileChange per file that
// differs, with old as the baseline. Directories whose entry hashes
// match are never descended, so unchanged subtrees cost nothing.
func diffTrees(ctx context.Context, old, new treeView) ([]akashica.FileChange, error) {
	var changes []akashica.FileChange
	err := diffDir(ctx, old, new, akashica.RepositoryPath{}, &changes)
	return changes, err
}

func diffDir(ctx context.Context, old, new treeView, dir akashica.RepositoryPath, changes *[]akashica.FileChange) error {
	oldEntries, ok, err := old.manifestAt(ctx, dir)
	if err != nil {
		return err
	}
	if !ok {
		oldEntries = nil
	}
	newEntries, ok, err := new.manifestAt(ctx, dir)
	if err != nil {
		return err
	}
	if !ok {
		newEntries = nil
	}

	oldByName := make(map[string]manifest.Entry, len(oldEntries))
	for _, e := range oldEntries {
		oldByName[e.Name] = e
	}
	newByName := make(map[string]manifest.Entry, len(newEntries))
	names := make([]string, 0, len(oldEntries)+len(newEntries))
	for _, e := range newEntries {
		newByName[e.Name] = e
		names = append(names, e.Name)
	}
	for _, e := range oldEntries {
		if _, ok := newByName[e.Name]; !ok {
			names = append(names, e.Name)
		}
	}
	sort.Strings(names)

	for _, name := range names {
		o, hasOld := oldByName[name]
		n, hasNew := newByName[name]
		child := dir.Join(name)

		switch {
		case hasOld && hasNew && o.IsDirectory && n.IsDirectory:
			if o.Hash != n.Hash {
				if err := diffDir(ctx, old, new, child, changes); err != nil {
					return err
				}
			}
		case hasOld && hasNew && !o.IsDirectory && !n.IsDirectory:
			if o.Hash != n.Hash || o.Size != n.Size {
				*changes = append(*changes, akashica.FileChange{Type: akashica.ChangeModified, Path: child})
			}
		case hasOld && hasNew:
			// Type flip: the old side disappears, the new side appears.
			if err := emitAll(ctx, old, o, child, akashica.ChangeDeleted, changes); err != nil {
				return err
			}
			if err := emitAll(ctx, new, n, child, akashica.ChangeAdded, changes); err != nil {
				return err
			}
		case hasOld:
			if err := emitAll(ctx, old, o, child, akashica.ChangeDeleted, changes); err != nil {
				return err
			}
		case hasNew:
			if err := emitAll(ctx, new, n, child, akashica.ChangeAdded, changes); err != nil {
				return err
			}
		}
	}
	return nil
}

// emitAll reports every file at or below entry as a single change
// type, recursing through directories of the given view.
func emitAll(ctx context.Context, v treeView, entry manifest.Entry, p akashica.RepositoryPath, t akashica.ChangeType, changes *[]akashica.FileChange) error {
	if !entry.IsDirectory {
		*changes = append(*changes, akashica.FileChange{Type: t, Path: p})
		return nil
	}
	entries, ok, err := v.manifestAt(ctx, p)
	if err != nil || !ok {
		return err
	}
	for _, e := range entries {
		if err := emitAll(ctx, v, e, p.Join(e.Name), t, changes); err != nil {
			return err
		}
	}
	return nil
}
