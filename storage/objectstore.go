package storage

import (
	"context"
	"encoding/json"
	"path"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/akashica/akashica"
	"github.com/akashica/akashica/internal/dcontext"
	storagedriver "github.com/akashica/akashica/storage/driver"
)

// tombstoneListConcurrency bounds the parallel shard walks performed
// by listTombstones.
const tombstoneListConcurrency = 8

// objectStore is the content-addressed store for file blobs and their
// tombstones.
type objectStore struct {
	driver storagedriver.StorageDriver
}

// get retrieves the object by hash. A tombstoned hash fails
// ObjectDeletedError so callers can distinguish intentional deletion
// from absence.
func (os *objectStore) get(ctx context.Context, hash akashica.ContentHash) ([]byte, error) {
	bp, err := pathFor(objectDataPathSpec{hash: hash})
	if err != nil {
		return nil, akashica.StorageError{Underlying: err}
	}

	content, err := os.driver.GetContent(ctx, bp)
	if err != nil {
		if _, ok := err.(storagedriver.PathNotFoundError); ok {
			t, terr := os.tombstone(ctx, hash)
			if terr != nil {
				return nil, terr
			}
			if t != nil {
				return nil, akashica.ObjectDeletedError{Hash: hash, Tombstone: *t}
			}
			return nil, akashica.FileNotFoundError{Path: hash.String()}
		}
		return nil, akashica.StorageError{Underlying: err}
	}
	return content, nil
}

// put stores content, calculating the hash. If the content is already
// present only the hash is returned; equal bytes never occupy two
// blobs.
func (os *objectStore) put(ctx context.Context, content []byte) (akashica.ContentHash, error) {
	hash := akashica.HashBytes(content)
	bp, err := pathFor(objectDataPathSpec{hash: hash})
	if err != nil {
		return "", akashica.StorageError{Underlying: err}
	}

	if ok, err := exists(ctx, os.driver, bp); err != nil {
		return "", err
	} else if ok {
		dedupHitsCounter.Inc()
		return hash, nil
	}

	if err := os.driver.PutContent(ctx, bp, content); err != nil {
		return "", akashica.StorageError{Underlying: err}
	}
	objectsWrittenCounter.Inc()
	return hash, nil
}

// stat returns the stored size of the object, or FileNotFoundError.
func (os *objectStore) stat(ctx context.Context, hash akashica.ContentHash) (int64, error) {
	bp, err := pathFor(objectDataPathSpec{hash: hash})
	if err != nil {
		return 0, akashica.StorageError{Underlying: err}
	}
	fi, err := os.driver.Stat(ctx, bp)
	if err != nil {
		if _, ok := err.(storagedriver.PathNotFoundError); ok {
			return 0, akashica.FileNotFoundError{Path: hash.String()}
		}
		return 0, akashica.StorageError{Underlying: err}
	}
	return fi.Size(), nil
}

// exists reports whether the object blob is present and not
// tombstoned.
func (os *objectStore) exists(ctx context.Context, hash akashica.ContentHash) (bool, error) {
	t, err := os.tombstone(ctx, hash)
	if err != nil {
		return false, err
	}
	if t != nil {
		return false, nil
	}
	bp, err := pathFor(objectDataPathSpec{hash: hash})
	if err != nil {
		return false, akashica.StorageError{Underlying: err}
	}
	return exists(ctx, os.driver, bp)
}

// delete removes the object's bytes, leaving any tombstone in place.
func (os *objectStore) delete(ctx context.Context, hash akashica.ContentHash) error {
	bp, err := pathFor(objectDataPathSpec{hash: hash})
	if err != nil {
		return akashica.StorageError{Underlying: err}
	}
	if err := os.driver.Delete(ctx, bp); err != nil {
		if _, ok := err.(storagedriver.PathNotFoundError); ok {
			return akashica.FileNotFoundError{Path: hash.String()}
		}
		return akashica.StorageError{Underlying: err}
	}
	return nil
}

// tombstone returns the tombstone for hash, or nil if none exists.
func (os *objectStore) tombstone(ctx context.Context, hash akashica.ContentHash) (*akashica.Tombstone, error) {
	tp, err := pathFor(objectTombstonePathSpec{hash: hash})
	if err != nil {
		return nil, akashica.StorageError{Underlying: err}
	}
	content, err := os.driver.GetContent(ctx, tp)
	if err != nil {
		if _, ok := err.(storagedriver.PathNotFoundError); ok {
			return nil, nil
		}
		return nil, akashica.StorageError{Underlying: err}
	}
	var t akashica.Tombstone
	if err := json.Unmarshal(content, &t); err != nil {
		return nil, akashica.StorageError{Underlying: err}
	}
	return &t, nil
}

// putTombstone writes the tombstone for hash. The caller is
// responsible for ordering: the tombstone must be durable before the
// object's bytes are deleted.
func (os *objectStore) putTombstone(ctx context.Context, hash akashica.ContentHash, t akashica.Tombstone) error {
	tp, err := pathFor(objectTombstonePathSpec{hash: hash})
	if err != nil {
		return akashica.StorageError{Underlying: err}
	}
	content, err := json.Marshal(t)
	if err != nil {
		return akashica.StorageError{Underlying: err}
	}
	if err := os.driver.PutContent(ctx, tp, content); err != nil {
		return akashica.StorageError{Underlying: err}
	}
	return nil
}

// listTombstones walks the object shards concurrently and collects
// every tombstone, sorted by hash.
func (os *objectStore) listTombstones(ctx context.Context) ([]akashica.ScrubbedObject, error) {
	root, err := pathFor(objectsRootPathSpec{})
	if err != nil {
		return nil, akashica.StorageError{Underlying: err}
	}

	shards, err := os.driver.List(ctx, root)
	if err != nil {
		if _, ok := err.(storagedriver.PathNotFoundError); ok {
			return nil, nil
		}
		return nil, akashica.StorageError{Underlying: err}
	}

	var (
		mu       sync.Mutex
		scrubbed []akashica.ScrubbedObject
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(tombstoneListConcurrency)

	for _, shard := range shards {
		shard := shard
		g.Go(func() error {
			entries, err := os.driver.List(gctx, shard)
			if err != nil {
				return akashica.StorageError{Underlying: err}
			}
			for _, entry := range entries {
				hash, err := akashica.ParseHash(path.Base(entry))
				if err != nil {
					dcontext.GetLogger(gctx).Warnf("skipping malformed object path %q", entry)
					continue
				}
				t, err := os.tombstone(gctx, hash)
				if err != nil {
					return err
				}
				if t == nil {
					continue
				}
				mu.Lock()
				scrubbed = append(scrubbed, akashica.ScrubbedObject{Hash: hash, Tombstone: *t})
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(scrubbed, func(i, j int) bool {
		return scrubbed[i].Hash < scrubbed[j].Hash
	})
	return scrubbed, nil
}

// manifestStore is the content-addressed store for directory manifest
// blobs. It keeps a namespace distinct from objects so a manifest can
// never be scrubbed by a content hash that happens to match a file.
type manifestStore struct {
	driver storagedriver.StorageDriver
}

func (ms *manifestStore) get(ctx context.Context, hash akashica.ContentHash) ([]byte, error) {
	mp, err := pathFor(manifestDataPathSpec{hash: hash})
	if err != nil {
		return nil, akashica.StorageError{Underlying: err}
	}
	content, err := ms.driver.GetContent(ctx, mp)
	if err != nil {
		if _, ok := err.(storagedriver.PathNotFoundError); ok {
			return nil, akashica.FileNotFoundError{Path: hash.String()}
		}
		return nil, akashica.StorageError{Underlying: err}
	}
	return content, nil
}

func (ms *manifestStore) put(ctx context.Context, content []byte) (akashica.ContentHash, error) {
	hash := akashica.HashBytes(content)
	mp, err := pathFor(manifestDataPathSpec{hash: hash})
	if err != nil {
		return "", akashica.StorageError{Underlying: err}
	}
	if ok, err := exists(ctx, ms.driver, mp); err != nil {
		return "", err
	} else if ok {
		dedupHitsCounter.Inc()
		return hash, nil
	}
	if err := ms.driver.PutContent(ctx, mp, content); err != nil {
		return "", akashica.StorageError{Underlying: err}
	}
	return hash, nil
}

// exists is a utility to test a backend path for presence.
func exists(ctx context.Context, driver storagedriver.StorageDriver, path string) (bool, error) {
	if _, err := driver.Stat(ctx, path); err != nil {
		if _, ok := err.(storagedriver.PathNotFoundError); ok {
			return false, nil
		}
		return false, akashica.StorageError{Underlying: err}
	}
	return true, nil
}
