package storage

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"

	"github.com/akashica/akashica"
	storagedriver "github.com/akashica/akashica/storage/driver"
)

// Store implements the akashica.Storage adapter contract over a
// storage driver. It holds no state beyond the driver handle and the
// in-process mutexes guarding branch and counter compare-and-swap, so
// a single Store may serve any number of concurrent sessions.
type Store struct {
	driver     storagedriver.StorageDriver
	objects    objectStore
	manifests  manifestStore
	branches   *branchStore
	workspaces workspaceStore

	counterMu sync.Mutex
}

var _ akashica.Storage = &Store{}

// NewStore returns a Store over the given driver.
func NewStore(driver storagedriver.StorageDriver) *Store {
	return &Store{
		driver:     driver,
		objects:    objectStore{driver: driver},
		manifests:  manifestStore{driver: driver},
		branches:   newBranchStore(driver),
		workspaces: workspaceStore{driver: driver},
	}
}

// Object operations.

func (s *Store) ReadObject(ctx context.Context, hash akashica.ContentHash) ([]byte, error) {
	return s.objects.get(ctx, hash)
}

func (s *Store) WriteObject(ctx context.Context, content []byte) (akashica.ContentHash, error) {
	return s.objects.put(ctx, content)
}

func (s *Store) ObjectExists(ctx context.Context, hash akashica.ContentHash) (bool, error) {
	return s.objects.exists(ctx, hash)
}

func (s *Store) DeleteObject(ctx context.Context, hash akashica.ContentHash) error {
	return s.objects.delete(ctx, hash)
}

func (s *Store) ReadTombstone(ctx context.Context, hash akashica.ContentHash) (*akashica.Tombstone, error) {
	return s.objects.tombstone(ctx, hash)
}

func (s *Store) WriteTombstone(ctx context.Context, hash akashica.ContentHash, t akashica.Tombstone) error {
	return s.objects.putTombstone(ctx, hash, t)
}

func (s *Store) ListTombstones(ctx context.Context) ([]akashica.ScrubbedObject, error) {
	return s.objects.listTombstones(ctx)
}

// Manifest operations.

func (s *Store) ReadManifest(ctx context.Context, hash akashica.ContentHash) ([]byte, error) {
	return s.manifests.get(ctx, hash)
}

func (s *Store) WriteManifest(ctx context.Context, content []byte) (akashica.ContentHash, error) {
	return s.manifests.put(ctx, content)
}

// Commit operations.

func (s *Store) ReadRootManifest(ctx context.Context, id akashica.CommitID) ([]byte, error) {
	rp, err := pathFor(commitRootManifestPathSpec{id: id})
	if err != nil {
		return nil, akashica.StorageError{Underlying: err}
	}
	content, err := s.driver.GetContent(ctx, rp)
	if err != nil {
		if _, ok := err.(storagedriver.PathNotFoundError); ok {
			return nil, akashica.CommitNotFoundError{Commit: id}
		}
		return nil, akashica.StorageError{Underlying: err}
	}
	return content, nil
}

func (s *Store) WriteRootManifest(ctx context.Context, id akashica.CommitID, content []byte) error {
	rp, err := pathFor(commitRootManifestPathSpec{id: id})
	if err != nil {
		return akashica.StorageError{Underlying: err}
	}
	if err := s.driver.PutContent(ctx, rp, content); err != nil {
		return akashica.StorageError{Underlying: err}
	}
	return nil
}

func (s *Store) ReadCommitMetadata(ctx context.Context, id akashica.CommitID) (akashica.CommitMetadata, error) {
	mp, err := pathFor(commitMetadataPathSpec{id: id})
	if err != nil {
		return akashica.CommitMetadata{}, akashica.StorageError{Underlying: err}
	}
	content, err := s.driver.GetContent(ctx, mp)
	if err != nil {
		if _, ok := err.(storagedriver.PathNotFoundError); ok {
			return akashica.CommitMetadata{}, akashica.CommitNotFoundError{Commit: id}
		}
		return akashica.CommitMetadata{}, akashica.StorageError{Underlying: err}
	}
	var meta akashica.CommitMetadata
	if err := json.Unmarshal(content, &meta); err != nil {
		return akashica.CommitMetadata{}, akashica.StorageError{Underlying: err}
	}
	return meta, nil
}

func (s *Store) WriteCommitMetadata(ctx context.Context, id akashica.CommitID, meta akashica.CommitMetadata) error {
	mp, err := pathFor(commitMetadataPathSpec{id: id})
	if err != nil {
		return akashica.StorageError{Underlying: err}
	}
	content, err := json.Marshal(meta)
	if err != nil {
		return akashica.StorageError{Underlying: err}
	}
	if err := s.driver.PutContent(ctx, mp, content); err != nil {
		return akashica.StorageError{Underlying: err}
	}
	return nil
}

// nextCommitID allocates a fresh commit id from the persisted counter.
// Allocation is linearizable within the process; ids are dense and
// ordered.
func (s *Store) nextCommitID(ctx context.Context) (akashica.CommitID, error) {
	cp, err := pathFor(commitCounterPathSpec{})
	if err != nil {
		return "", akashica.StorageError{Underlying: err}
	}

	s.counterMu.Lock()
	defer s.counterMu.Unlock()

	last := int64(0)
	content, err := s.driver.GetContent(ctx, cp)
	switch err.(type) {
	case nil:
		last, err = strconv.ParseInt(string(content), 10, 64)
		if err != nil {
			return "", akashica.StorageError{Underlying: err}
		}
	case storagedriver.PathNotFoundError:
	default:
		return "", akashica.StorageError{Underlying: err}
	}

	next := last + 1
	if err := s.driver.PutContent(ctx, cp, []byte(strconv.FormatInt(next, 10))); err != nil {
		return "", akashica.StorageError{Underlying: err}
	}
	return akashica.CommitID("@" + strconv.FormatInt(next, 10)), nil
}

// writeCounter pins the counter during repository initialization.
func (s *Store) writeCounter(ctx context.Context, value int64) error {
	cp, err := pathFor(commitCounterPathSpec{})
	if err != nil {
		return akashica.StorageError{Underlying: err}
	}
	if err := s.driver.PutContent(ctx, cp, []byte(strconv.FormatInt(value, 10))); err != nil {
		return akashica.StorageError{Underlying: err}
	}
	return nil
}

// Branch operations.

func (s *Store) ReadBranch(ctx context.Context, name string) (akashica.BranchPointer, error) {
	return s.branches.get(ctx, name)
}

func (s *Store) UpdateBranch(ctx context.Context, name string, expected *akashica.CommitID, next akashica.CommitID) error {
	return s.branches.update(ctx, name, expected, next)
}

func (s *Store) ListBranches(ctx context.Context) ([]string, error) {
	return s.branches.all(ctx)
}

// Workspace operations.

func (s *Store) ReadWorkspaceMetadata(ctx context.Context, ws akashica.WorkspaceID) (akashica.WorkspaceMetadata, error) {
	return s.workspaces.getMetadata(ctx, ws)
}

func (s *Store) WriteWorkspaceMetadata(ctx context.Context, ws akashica.WorkspaceID, meta akashica.WorkspaceMetadata) error {
	return s.workspaces.putMetadata(ctx, ws, meta)
}

func (s *Store) WorkspaceExists(ctx context.Context, ws akashica.WorkspaceID) (bool, error) {
	return s.workspaces.exists(ctx, ws)
}

func (s *Store) DeleteWorkspace(ctx context.Context, ws akashica.WorkspaceID) error {
	return s.workspaces.delete(ctx, ws)
}

func (s *Store) ReadWorkspaceFile(ctx context.Context, ws akashica.WorkspaceID, path akashica.RepositoryPath) ([]byte, error) {
	return s.workspaces.getFile(ctx, ws, path)
}

func (s *Store) WriteWorkspaceFile(ctx context.Context, ws akashica.WorkspaceID, path akashica.RepositoryPath, content []byte) error {
	return s.workspaces.putFile(ctx, ws, path, content)
}

func (s *Store) DeleteWorkspaceFile(ctx context.Context, ws akashica.WorkspaceID, path akashica.RepositoryPath) error {
	return s.workspaces.deleteFile(ctx, ws, path)
}

func (s *Store) ReadCOWReference(ctx context.Context, ws akashica.WorkspaceID, path akashica.RepositoryPath) (*akashica.COWReference, error) {
	return s.workspaces.getCOW(ctx, ws, path)
}

func (s *Store) WriteCOWReference(ctx context.Context, ws akashica.WorkspaceID, path akashica.RepositoryPath, ref akashica.COWReference) error {
	return s.workspaces.putCOW(ctx, ws, path, ref)
}

func (s *Store) DeleteCOWReference(ctx context.Context, ws akashica.WorkspaceID, path akashica.RepositoryPath) error {
	return s.workspaces.deleteCOW(ctx, ws, path)
}

func (s *Store) ReadWorkspaceManifest(ctx context.Context, ws akashica.WorkspaceID, dir akashica.RepositoryPath) ([]byte, error) {
	return s.workspaces.getManifest(ctx, ws, dir)
}

func (s *Store) WriteWorkspaceManifest(ctx context.Context, ws akashica.WorkspaceID, dir akashica.RepositoryPath, content []byte) error {
	return s.workspaces.putManifest(ctx, ws, dir, content)
}
