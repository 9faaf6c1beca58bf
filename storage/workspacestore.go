package storage

import (
	"context"
	"encoding/json"

	"github.com/akashica/akashica"
	storagedriver "github.com/akashica/akashica/storage/driver"
)

// workspaceStore manages workspace metadata and the per-path overlay
// namespaces: raw file blobs, copy-on-write references and shadow
// directory manifests. Overlay reads return nil for absent entries;
// overlay deletes of absent entries are no-ops.
type workspaceStore struct {
	driver storagedriver.StorageDriver
}

func (ws *workspaceStore) getMetadata(ctx context.Context, id akashica.WorkspaceID) (akashica.WorkspaceMetadata, error) {
	mp, err := pathFor(workspaceMetadataPathSpec{ws: id})
	if err != nil {
		return akashica.WorkspaceMetadata{}, akashica.StorageError{Underlying: err}
	}
	content, err := ws.driver.GetContent(ctx, mp)
	if err != nil {
		if _, ok := err.(storagedriver.PathNotFoundError); ok {
			return akashica.WorkspaceMetadata{}, akashica.WorkspaceNotFoundError{Workspace: id}
		}
		return akashica.WorkspaceMetadata{}, akashica.StorageError{Underlying: err}
	}
	var meta akashica.WorkspaceMetadata
	if err := json.Unmarshal(content, &meta); err != nil {
		return akashica.WorkspaceMetadata{}, akashica.StorageError{Underlying: err}
	}
	return meta, nil
}

func (ws *workspaceStore) putMetadata(ctx context.Context, id akashica.WorkspaceID, meta akashica.WorkspaceMetadata) error {
	mp, err := pathFor(workspaceMetadataPathSpec{ws: id})
	if err != nil {
		return akashica.StorageError{Underlying: err}
	}
	content, err := json.Marshal(meta)
	if err != nil {
		return akashica.StorageError{Underlying: err}
	}
	if err := ws.driver.PutContent(ctx, mp, content); err != nil {
		return akashica.StorageError{Underlying: err}
	}
	return nil
}

func (ws *workspaceStore) exists(ctx context.Context, id akashica.WorkspaceID) (bool, error) {
	mp, err := pathFor(workspaceMetadataPathSpec{ws: id})
	if err != nil {
		return false, akashica.StorageError{Underlying: err}
	}
	return exists(ctx, ws.driver, mp)
}

// delete removes the workspace directory recursively. Deleting a
// workspace that is already gone is not an error.
func (ws *workspaceStore) delete(ctx context.Context, id akashica.WorkspaceID) error {
	wp, err := pathFor(workspaceRootPathSpec{ws: id})
	if err != nil {
		return akashica.StorageError{Underlying: err}
	}
	if err := ws.driver.Delete(ctx, wp); err != nil {
		if _, ok := err.(storagedriver.PathNotFoundError); ok {
			return nil
		}
		return akashica.StorageError{Underlying: err}
	}
	return nil
}

func (ws *workspaceStore) getFile(ctx context.Context, id akashica.WorkspaceID, p akashica.RepositoryPath) ([]byte, error) {
	fp, err := pathFor(workspaceFilePathSpec{ws: id, path: p})
	if err != nil {
		return nil, akashica.StorageError{Underlying: err}
	}
	return ws.maybeGet(ctx, fp)
}

func (ws *workspaceStore) putFile(ctx context.Context, id akashica.WorkspaceID, p akashica.RepositoryPath, content []byte) error {
	fp, err := pathFor(workspaceFilePathSpec{ws: id, path: p})
	if err != nil {
		return akashica.StorageError{Underlying: err}
	}
	if err := ws.driver.PutContent(ctx, fp, content); err != nil {
		return akashica.StorageError{Underlying: err}
	}
	return nil
}

func (ws *workspaceStore) deleteFile(ctx context.Context, id akashica.WorkspaceID, p akashica.RepositoryPath) error {
	fp, err := pathFor(workspaceFilePathSpec{ws: id, path: p})
	if err != nil {
		return akashica.StorageError{Underlying: err}
	}
	return ws.maybeDelete(ctx, fp)
}

func (ws *workspaceStore) getCOW(ctx context.Context, id akashica.WorkspaceID, p akashica.RepositoryPath) (*akashica.COWReference, error) {
	cp, err := pathFor(workspaceCOWPathSpec{ws: id, path: p})
	if err != nil {
		return nil, akashica.StorageError{Underlying: err}
	}
	content, err := ws.maybeGet(ctx, cp)
	if err != nil || content == nil {
		return nil, err
	}
	var ref akashica.COWReference
	if err := json.Unmarshal(content, &ref); err != nil {
		return nil, akashica.StorageError{Underlying: err}
	}
	return &ref, nil
}

func (ws *workspaceStore) putCOW(ctx context.Context, id akashica.WorkspaceID, p akashica.RepositoryPath, ref akashica.COWReference) error {
	cp, err := pathFor(workspaceCOWPathSpec{ws: id, path: p})
	if err != nil {
		return akashica.StorageError{Underlying: err}
	}
	content, err := json.Marshal(ref)
	if err != nil {
		return akashica.StorageError{Underlying: err}
	}
	if err := ws.driver.PutContent(ctx, cp, content); err != nil {
		return akashica.StorageError{Underlying: err}
	}
	return nil
}

func (ws *workspaceStore) deleteCOW(ctx context.Context, id akashica.WorkspaceID, p akashica.RepositoryPath) error {
	cp, err := pathFor(workspaceCOWPathSpec{ws: id, path: p})
	if err != nil {
		return akashica.StorageError{Underlying: err}
	}
	return ws.maybeDelete(ctx, cp)
}

func (ws *workspaceStore) getManifest(ctx context.Context, id akashica.WorkspaceID, dir akashica.RepositoryPath) ([]byte, error) {
	mp, err := pathFor(workspaceManifestPathSpec{ws: id, dir: dir})
	if err != nil {
		return nil, akashica.StorageError{Underlying: err}
	}
	return ws.maybeGet(ctx, mp)
}

func (ws *workspaceStore) putManifest(ctx context.Context, id akashica.WorkspaceID, dir akashica.RepositoryPath, content []byte) error {
	mp, err := pathFor(workspaceManifestPathSpec{ws: id, dir: dir})
	if err != nil {
		return akashica.StorageError{Underlying: err}
	}
	if err := ws.driver.PutContent(ctx, mp, content); err != nil {
		return akashica.StorageError{Underlying: err}
	}
	return nil
}

// maybeGet reads a backend path, mapping absence to a nil slice.
func (ws *workspaceStore) maybeGet(ctx context.Context, path string) ([]byte, error) {
	content, err := ws.driver.GetContent(ctx, path)
	if err != nil {
		if _, ok := err.(storagedriver.PathNotFoundError); ok {
			return nil, nil
		}
		return nil, akashica.StorageError{Underlying: err}
	}
	return content, nil
}

// maybeDelete removes a backend path, tolerating absence.
func (ws *workspaceStore) maybeDelete(ctx context.Context, path string) error {
	if err := ws.driver.Delete(ctx, path); err != nil {
		if _, ok := err.(storagedriver.PathNotFoundError); ok {
			return nil
		}
		return akashica.StorageError{Underlying: err}
	}
	return nil
}
