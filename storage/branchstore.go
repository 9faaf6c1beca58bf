package storage

import (
	"context"
	"encoding/json"
	"path"
	"sort"
	"sync"

	"github.com/akashica/akashica"
	storagedriver "github.com/akashica/akashica/storage/driver"
)

// branchStore manages branch pointer files. UpdateBranch is the
// engine's only synchronization primitive: within a process it is
// linearizable through a per-branch mutex around read-verify-write;
// cross-process exclusion is the backend deployment's responsibility
// (the filesystem driver locks its root directory).
type branchStore struct {
	driver storagedriver.StorageDriver

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newBranchStore(driver storagedriver.StorageDriver) *branchStore {
	return &branchStore{driver: driver, locks: make(map[string]*sync.Mutex)}
}

func (bs *branchStore) lock(name string) *sync.Mutex {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	l, ok := bs.locks[name]
	if !ok {
		l = &sync.Mutex{}
		bs.locks[name] = l
	}
	return l
}

// get returns the branch pointer, failing BranchNotFoundError when the
// branch is absent.
func (bs *branchStore) get(ctx context.Context, name string) (akashica.BranchPointer, error) {
	bp, err := pathFor(branchPathSpec{name: name})
	if err != nil {
		return akashica.BranchPointer{}, akashica.StorageError{Underlying: err}
	}
	content, err := bs.driver.GetContent(ctx, bp)
	if err != nil {
		if _, ok := err.(storagedriver.PathNotFoundError); ok {
			return akashica.BranchPointer{}, akashica.BranchNotFoundError{Name: name}
		}
		return akashica.BranchPointer{}, akashica.StorageError{Underlying: err}
	}
	var pointer akashica.BranchPointer
	if err := json.Unmarshal(content, &pointer); err != nil {
		return akashica.BranchPointer{}, akashica.StorageError{Underlying: err}
	}
	return pointer, nil
}

// update compare-and-swaps the branch head. A nil expected head
// requires that the branch not yet exist. A mismatch fails
// BranchConflictError and writes nothing.
func (bs *branchStore) update(ctx context.Context, name string, expected *akashica.CommitID, next akashica.CommitID) error {
	bp, err := pathFor(branchPathSpec{name: name})
	if err != nil {
		return akashica.StorageError{Underlying: err}
	}

	l := bs.lock(name)
	l.Lock()
	defer l.Unlock()

	current, err := bs.get(ctx, name)
	switch err.(type) {
	case nil:
		if expected == nil || current.Head != *expected {
			branchConflictsCounter.Inc()
			return akashica.BranchConflictError{Name: name}
		}
	case akashica.BranchNotFoundError:
		if expected != nil {
			branchConflictsCounter.Inc()
			return akashica.BranchConflictError{Name: name}
		}
	default:
		return err
	}

	content, err := json.Marshal(akashica.BranchPointer{Head: next})
	if err != nil {
		return akashica.StorageError{Underlying: err}
	}
	if err := bs.driver.PutContent(ctx, bp, content); err != nil {
		return akashica.StorageError{Underlying: err}
	}
	return nil
}

// all returns every branch name, sorted. A repository with no branches
// yields an empty list, not an error.
func (bs *branchStore) all(ctx context.Context) ([]string, error) {
	root, err := pathFor(branchesRootPathSpec{})
	if err != nil {
		return nil, akashica.StorageError{Underlying: err}
	}
	entries, err := bs.driver.List(ctx, root)
	if err != nil {
		if _, ok := err.(storagedriver.PathNotFoundError); ok {
			return nil, nil
		}
		return nil, akashica.StorageError{Underlying: err}
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, path.Base(entry))
	}
	sort.Strings(names)
	return names, nil
}
