// Package inmemory provides a storagedriver.StorageDriver backed by a
// local map. Intended solely for example and testing purposes.
package inmemory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	storagedriver "github.com/akashica/akashica/storage/driver"
	"github.com/akashica/akashica/storage/driver/factory"
)

const driverName = "inmemory"

func init() {
	factory.Register(driverName, &inMemoryDriverFactory{})
}

// inMemoryDriverFactory implements the factory.StorageDriverFactory
// interface.
type inMemoryDriverFactory struct{}

func (f *inMemoryDriverFactory) Create(ctx context.Context, parameters map[string]interface{}) (storagedriver.StorageDriver, error) {
	return New(), nil
}

// Driver is a storagedriver.StorageDriver implementation backed by a
// local map of paths to byte slices.
type Driver struct {
	mutex sync.RWMutex
	files map[string][]byte
	mod   map[string]time.Time
}

var _ storagedriver.StorageDriver = &Driver{}

// New constructs a new Driver.
func New() *Driver {
	return &Driver{
		files: make(map[string][]byte),
		mod:   make(map[string]time.Time),
	}
}

func (d *Driver) Name() string {
	return driverName
}

// GetContent retrieves the content stored at "path" as a []byte.
func (d *Driver) GetContent(ctx context.Context, path string) ([]byte, error) {
	normalized, err := normalize(path)
	if err != nil {
		return nil, err
	}

	d.mutex.RLock()
	defer d.mutex.RUnlock()

	content, ok := d.files[normalized]
	if !ok {
		return nil, storagedriver.PathNotFoundError{Path: path, DriverName: driverName}
	}
	cp := make([]byte, len(content))
	copy(cp, content)
	return cp, nil
}

// PutContent stores the []byte content at a location designated by
// "path".
func (d *Driver) PutContent(ctx context.Context, path string, content []byte) error {
	normalized, err := normalize(path)
	if err != nil {
		return err
	}

	d.mutex.Lock()
	defer d.mutex.Unlock()

	cp := make([]byte, len(content))
	copy(cp, content)
	d.files[normalized] = cp
	d.mod[normalized] = time.Now()
	return nil
}

// Stat returns info about the provided path.
func (d *Driver) Stat(ctx context.Context, path string) (storagedriver.FileInfo, error) {
	normalized, err := normalize(path)
	if err != nil {
		return nil, err
	}

	d.mutex.RLock()
	defer d.mutex.RUnlock()

	if content, ok := d.files[normalized]; ok {
		return storagedriver.FileInfoInternal{FileInfoFields: storagedriver.FileInfoFields{
			Path:    path,
			Size:    int64(len(content)),
			ModTime: d.mod[normalized],
		}}, nil
	}
	if d.isDir(normalized) {
		return storagedriver.FileInfoInternal{FileInfoFields: storagedriver.FileInfoFields{
			Path:  path,
			IsDir: true,
		}}, nil
	}
	return nil, storagedriver.PathNotFoundError{Path: path, DriverName: driverName}
}

// List returns a list of the objects that are direct descendants of
// the given path.
func (d *Driver) List(ctx context.Context, path string) ([]string, error) {
	normalized, err := normalize(path)
	if err != nil {
		return nil, err
	}

	d.mutex.RLock()
	defer d.mutex.RUnlock()

	if _, ok := d.files[normalized]; ok {
		return nil, storagedriver.PathNotFoundError{Path: path, DriverName: driverName}
	}
	if normalized != "/" && !d.isDir(normalized) {
		return nil, storagedriver.PathNotFoundError{Path: path, DriverName: driverName}
	}

	prefix := normalized
	if prefix != "/" {
		prefix += "/"
	}

	children := make(map[string]struct{})
	for p := range d.files {
		if !strings.HasPrefix(p, prefix) {
			continue
		}
		rest := strings.TrimPrefix(p, prefix)
		name, _, _ := strings.Cut(rest, "/")
		children[prefix+name] = struct{}{}
	}

	keys := make([]string, 0, len(children))
	for k := range children {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Move moves an object stored at sourcePath to destPath, removing the
// original object.
func (d *Driver) Move(ctx context.Context, sourcePath, destPath string) error {
	src, err := normalize(sourcePath)
	if err != nil {
		return err
	}
	dst, err := normalize(destPath)
	if err != nil {
		return err
	}

	d.mutex.Lock()
	defer d.mutex.Unlock()

	if content, ok := d.files[src]; ok {
		delete(d.files, src)
		d.files[dst] = content
		d.mod[dst] = time.Now()
		delete(d.mod, src)
		return nil
	}
	if !d.isDir(src) {
		return storagedriver.PathNotFoundError{Path: sourcePath, DriverName: driverName}
	}

	prefix := src + "/"
	for p, content := range d.files {
		if strings.HasPrefix(p, prefix) {
			moved := dst + "/" + strings.TrimPrefix(p, prefix)
			d.files[moved] = content
			d.mod[moved] = d.mod[p]
			delete(d.files, p)
			delete(d.mod, p)
		}
	}
	return nil
}

// Delete recursively deletes all objects stored at "path" and its
// subpaths.
func (d *Driver) Delete(ctx context.Context, path string) error {
	normalized, err := normalize(path)
	if err != nil {
		return err
	}

	d.mutex.Lock()
	defer d.mutex.Unlock()

	found := false
	if _, ok := d.files[normalized]; ok {
		delete(d.files, normalized)
		delete(d.mod, normalized)
		found = true
	}
	prefix := normalized + "/"
	for p := range d.files {
		if strings.HasPrefix(p, prefix) {
			delete(d.files, p)
			delete(d.mod, p)
			found = true
		}
	}
	if !found {
		return storagedriver.PathNotFoundError{Path: path, DriverName: driverName}
	}
	return nil
}

// Len returns the number of stored files. Tests use it to verify
// deduplication by byte-counting the backend.
func (d *Driver) Len() int {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	return len(d.files)
}

// isDir reports whether any stored file lives under normalized. The
// caller must hold the mutex.
func (d *Driver) isDir(normalized string) bool {
	if normalized == "/" {
		return true
	}
	prefix := normalized + "/"
	for p := range d.files {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}

func normalize(path string) (string, error) {
	if path == "/" {
		return "/", nil
	}
	if !storagedriver.PathRegexp.MatchString(path) {
		return "", storagedriver.InvalidPathError{Path: path, DriverName: driverName}
	}
	return path, nil
}
