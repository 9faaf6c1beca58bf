// Package filesystem provides a storagedriver.StorageDriver backed by
// a local or NAS-mounted filesystem. All provided paths are subpaths
// of the configured root directory.
package filesystem

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/akashica/akashica/internal/uuid"
	storagedriver "github.com/akashica/akashica/storage/driver"
	"github.com/akashica/akashica/storage/driver/factory"
)

const (
	driverName           = "filesystem"
	defaultRootDirectory = "/var/lib/akashica"

	// lockFileName is the advisory lock taken on the root directory so
	// two processes do not run the engine against the same root. The
	// branch compare-and-swap is linearizable per process only.
	lockFileName = ".lock"
)

// DriverParameters represents all configuration options available for
// the filesystem driver.
type DriverParameters struct {
	RootDirectory string
}

func init() {
	factory.Register(driverName, &filesystemDriverFactory{})
}

// filesystemDriverFactory implements the factory.StorageDriverFactory
// interface.
type filesystemDriverFactory struct{}

func (f *filesystemDriverFactory) Create(ctx context.Context, parameters map[string]interface{}) (storagedriver.StorageDriver, error) {
	return FromParameters(parameters)
}

// Driver is a storagedriver.StorageDriver implementation backed by a
// local filesystem.
type Driver struct {
	rootDirectory string
	lock          *flock.Flock
}

var _ storagedriver.StorageDriver = &Driver{}

// FromParameters constructs a new Driver with a given parameters map.
// Optional parameters:
// - rootdirectory
func FromParameters(parameters map[string]interface{}) (*Driver, error) {
	rootDirectory := defaultRootDirectory
	if parameters != nil {
		if rootDir, ok := parameters["rootdirectory"]; ok {
			rootDirectory = fmt.Sprint(rootDir)
		}
	}
	return New(DriverParameters{RootDirectory: rootDirectory})
}

// New constructs a new Driver rooted at params.RootDirectory, taking
// an advisory lock on it.
func New(params DriverParameters) (*Driver, error) {
	if err := os.MkdirAll(params.RootDirectory, 0o777); err != nil {
		return nil, err
	}

	lock := flock.New(filepath.Join(params.RootDirectory, lockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("could not lock root directory %q: %w", params.RootDirectory, err)
	}
	if !locked {
		return nil, fmt.Errorf("root directory %q is locked by another process", params.RootDirectory)
	}

	return &Driver{rootDirectory: params.RootDirectory, lock: lock}, nil
}

// Close releases the root directory lock.
func (d *Driver) Close() error {
	return d.lock.Unlock()
}

func (d *Driver) Name() string {
	return driverName
}

// GetContent retrieves the content stored at "path" as a []byte.
func (d *Driver) GetContent(ctx context.Context, subPath string) ([]byte, error) {
	fullPath, err := d.fullPath(subPath)
	if err != nil {
		return nil, err
	}

	content, err := os.ReadFile(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, storagedriver.PathNotFoundError{Path: subPath, DriverName: driverName}
		}
		return nil, err
	}
	return content, nil
}

// PutContent stores the []byte content at a location designated by
// "path". The write is atomic: content lands under a temporary name
// and is renamed into place.
func (d *Driver) PutContent(ctx context.Context, subPath string, content []byte) error {
	fullPath, err := d.fullPath(subPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o777); err != nil {
		return err
	}

	tmpPath := fmt.Sprintf("%s.%s.tmp", fullPath, uuid.Token(8))
	if err := os.WriteFile(tmpPath, content, 0o666); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// Stat retrieves the FileInfo for the given path, including the
// current size in bytes and the modification time.
func (d *Driver) Stat(ctx context.Context, subPath string) (storagedriver.FileInfo, error) {
	fullPath, err := d.fullPath(subPath)
	if err != nil {
		return nil, err
	}

	fi, err := os.Stat(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, storagedriver.PathNotFoundError{Path: subPath, DriverName: driverName}
		}
		return nil, err
	}

	fields := storagedriver.FileInfoFields{
		Path:    subPath,
		IsDir:   fi.IsDir(),
		ModTime: fi.ModTime(),
	}
	if !fields.IsDir {
		fields.Size = fi.Size()
	}
	return storagedriver.FileInfoInternal{FileInfoFields: fields}, nil
}

// List returns a list of the objects that are direct descendants of
// the given path.
func (d *Driver) List(ctx context.Context, subPath string) ([]string, error) {
	fullPath, err := d.fullPath(subPath)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, storagedriver.PathNotFoundError{Path: subPath, DriverName: driverName}
		}
		return nil, err
	}

	keys := make([]string, 0, len(entries))
	for _, entry := range entries {
		if subPath == "/" && entry.Name() == lockFileName {
			continue
		}
		keys = append(keys, path.Join(subPath, entry.Name()))
	}
	return keys, nil
}

// Move moves an object stored at sourcePath to destPath, removing the
// original object.
func (d *Driver) Move(ctx context.Context, sourcePath, destPath string) error {
	source, err := d.fullPath(sourcePath)
	if err != nil {
		return err
	}
	dest, err := d.fullPath(destPath)
	if err != nil {
		return err
	}

	if _, err := os.Stat(source); os.IsNotExist(err) {
		return storagedriver.PathNotFoundError{Path: sourcePath, DriverName: driverName}
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o777); err != nil {
		return err
	}
	if err := os.RemoveAll(dest); err != nil {
		return err
	}
	return os.Rename(source, dest)
}

// Delete recursively deletes all objects stored at "path" and its
// subpaths.
func (d *Driver) Delete(ctx context.Context, subPath string) error {
	fullPath, err := d.fullPath(subPath)
	if err != nil {
		return err
	}

	if _, err := os.Stat(fullPath); err != nil {
		if os.IsNotExist(err) {
			return storagedriver.PathNotFoundError{Path: subPath, DriverName: driverName}
		}
		return err
	}
	return os.RemoveAll(fullPath)
}

// fullPath returns the absolute path of a key within the driver's
// storage.
func (d *Driver) fullPath(subPath string) (string, error) {
	if subPath != "/" && !storagedriver.PathRegexp.MatchString(subPath) {
		return "", storagedriver.InvalidPathError{Path: subPath, DriverName: driverName}
	}
	return path.Join(d.rootDirectory, subPath), nil
}
