// Package driver defines the byte-oriented backend contract the
// storage engine runs on. A driver is a filesystem-like key/value
// store; the engine builds its content-addressed layout on top, so
// drivers never interpret the paths they are given.
//
// Drivers must provide strong read-after-write consistency on a single
// path. Streaming is intentionally absent from the contract: the
// engine treats files as byte blobs.
package driver

import (
	"context"
	"fmt"
	"regexp"
	"time"
)

// StorageDriver is the interface a storage backend must implement.
// Implementations are responsible for their own internal thread
// safety; the engine may call any method concurrently.
type StorageDriver interface {
	// Name returns the backend name, e.g. "filesystem" or "s3".
	Name() string

	// GetContent retrieves the content stored at "path" as a []byte.
	GetContent(ctx context.Context, path string) ([]byte, error)

	// PutContent stores the []byte content at a location designated by
	// "path", creating parents as needed and replacing any previous
	// content atomically.
	PutContent(ctx context.Context, path string, content []byte) error

	// Stat retrieves the FileInfo for the given path, including the
	// current size in bytes.
	Stat(ctx context.Context, path string) (FileInfo, error)

	// List returns the direct descendants of the given path, as full
	// paths, in unspecified order.
	List(ctx context.Context, path string) ([]string, error)

	// Move moves the object stored at sourcePath to destPath, removing
	// the original. This may be no more efficient than a copy followed
	// by a delete.
	Move(ctx context.Context, sourcePath, destPath string) error

	// Delete recursively deletes all objects stored at "path" and its
	// subpaths.
	Delete(ctx context.Context, path string) error
}

// PathRegexp is the regular expression which each backend path must
// match: absolute, slash-separated, no empty components.
var PathRegexp = regexp.MustCompile(`^(/[^/\x00]+)+$`)

// PathNotFoundError is returned when operating on a nonexistent path.
type PathNotFoundError struct {
	Path       string
	DriverName string
}

func (err PathNotFoundError) Error() string {
	return fmt.Sprintf("%s: path not found: %s", err.DriverName, err.Path)
}

// InvalidPathError is returned when the provided path is malformed.
type InvalidPathError struct {
	Path       string
	DriverName string
}

func (err InvalidPathError) Error() string {
	return fmt.Sprintf("%s: invalid path: %s", err.DriverName, err.Path)
}

// FileInfo returns information about a given path. Inspired by
// os.FileInfo, it carries only the fields a key/value backend can
// answer cheaply.
type FileInfo interface {
	// Path provides the full path of the target of this file info.
	Path() string

	// Size returns current length in bytes of the file. The return
	// value is undefined for directories.
	Size() int64

	// ModTime returns the modification time for the file. For
	// backends that don't track modification times, the zero time.
	ModTime() time.Time

	// IsDir returns true if the path is a directory.
	IsDir() bool
}

// FileInfoFields provides the exported fields for implementing
// FileInfo using FileInfoInternal.
type FileInfoFields struct {
	Path    string
	Size    int64
	ModTime time.Time
	IsDir   bool
}

// FileInfoInternal implements the FileInfo interface. This should only
// be used by storagedriver implementations that don't have a specific
// FileInfo type.
type FileInfoInternal struct {
	FileInfoFields
}

var (
	_ FileInfo = FileInfoInternal{}
	_ FileInfo = &FileInfoInternal{}
)

func (fi FileInfoInternal) Path() string {
	return fi.FileInfoFields.Path
}

func (fi FileInfoInternal) Size() int64 {
	return fi.FileInfoFields.Size
}

func (fi FileInfoInternal) ModTime() time.Time {
	return fi.FileInfoFields.ModTime
}

func (fi FileInfoInternal) IsDir() bool {
	return fi.FileInfoFields.IsDir
}
