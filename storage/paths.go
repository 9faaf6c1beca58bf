package storage

import (
	"fmt"
	"path"
	"regexp"

	"github.com/opencontainers/go-digest"

	"github.com/akashica/akashica"
)

const storagePathVersion = "v1"

// The path layout in the storage backend is roughly as follows:
//
//	/akashica/v1
//		-> objects/sha256/<hh>/<hash>/
//			data       object bytes
//			tombstone  tombstone JSON, present once the object is scrubbed
//		-> manifests/sha256/<hh>/<hash>/
//			data       manifest bytes
//		-> commits/
//			_counter   last allocated commit number
//			<token>/
//				root      root manifest bytes
//				metadata  commit metadata JSON
//		-> branches/<name>   branch pointer JSON
//		-> workspaces/<base>$<suffix>/
//			metadata   workspace metadata JSON
//			files/<kk>/<key>       raw file overlay blob
//			cow/<kk>/<key>         copy-on-write reference JSON
//			manifests/<kk>/<key>   shadow directory manifest bytes
//
// Objects and manifests are content-addressed, sharded by the first
// two hex characters of their hash (<hh>). Workspace overlay entries
// are keyed by the SHA-256 of the repository path they shadow (<key>,
// sharded as <kk>), which keeps arbitrary unicode file names out of
// backend paths and is uniform across backends.
//
// All paths are absolute within the driver namespace and prefixed with
// a version so future layouts can coexist.

// pathFor maps a path spec to its location in the storage backend.
func pathFor(spec pathSpec) (string, error) {
	rootPrefix := []string{"/akashica", storagePathVersion}

	switch v := spec.(type) {
	case objectDataPathSpec:
		return path.Join(append(rootPrefix, "objects", "sha256", string(v.hash[0:2]), string(v.hash), "data")...), nil
	case objectTombstonePathSpec:
		return path.Join(append(rootPrefix, "objects", "sha256", string(v.hash[0:2]), string(v.hash), "tombstone")...), nil
	case objectsRootPathSpec:
		return path.Join(append(rootPrefix, "objects", "sha256")...), nil
	case manifestDataPathSpec:
		return path.Join(append(rootPrefix, "manifests", "sha256", string(v.hash[0:2]), string(v.hash), "data")...), nil
	case commitCounterPathSpec:
		return path.Join(append(rootPrefix, "commits", "_counter")...), nil
	case commitRootManifestPathSpec:
		return path.Join(append(rootPrefix, "commits", v.id.Token(), "root")...), nil
	case commitMetadataPathSpec:
		return path.Join(append(rootPrefix, "commits", v.id.Token(), "metadata")...), nil
	case branchPathSpec:
		if !branchNameRegexp.MatchString(v.name) {
			return "", fmt.Errorf("invalid branch name %q", v.name)
		}
		return path.Join(append(rootPrefix, "branches", v.name)...), nil
	case branchesRootPathSpec:
		return path.Join(append(rootPrefix, "branches")...), nil
	case workspaceRootPathSpec:
		return path.Join(append(rootPrefix, "workspaces", v.ws.String())...), nil
	case workspaceMetadataPathSpec:
		return path.Join(append(rootPrefix, "workspaces", v.ws.String(), "metadata")...), nil
	case workspaceFilePathSpec:
		key := pathKey(v.path)
		return path.Join(append(rootPrefix, "workspaces", v.ws.String(), "files", key[0:2], key)...), nil
	case workspaceCOWPathSpec:
		key := pathKey(v.path)
		return path.Join(append(rootPrefix, "workspaces", v.ws.String(), "cow", key[0:2], key)...), nil
	case workspaceManifestPathSpec:
		key := pathKey(v.dir)
		return path.Join(append(rootPrefix, "workspaces", v.ws.String(), "manifests", key[0:2], key)...), nil
	default:
		return "", fmt.Errorf("unknown path spec: %#v", v)
	}
}

// branchNameRegexp constrains branch names to a single backend path
// component.
var branchNameRegexp = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*$`)

// pathKey derives the backend key for a workspace overlay entry from
// the repository path it shadows.
func pathKey(p akashica.RepositoryPath) string {
	return digest.FromString(p.String()).Encoded()
}

// pathSpec is implemented by the location descriptors below.
type pathSpec interface {
	pathSpec()
}

type objectDataPathSpec struct {
	hash akashica.ContentHash
}

type objectTombstonePathSpec struct {
	hash akashica.ContentHash
}

type objectsRootPathSpec struct{}

type manifestDataPathSpec struct {
	hash akashica.ContentHash
}

type commitCounterPathSpec struct{}

type commitRootManifestPathSpec struct {
	id akashica.CommitID
}

type commitMetadataPathSpec struct {
	id akashica.CommitID
}

type branchPathSpec struct {
	name string
}

type branchesRootPathSpec struct{}

type workspaceRootPathSpec struct {
	ws akashica.WorkspaceID
}

type workspaceMetadataPathSpec struct {
	ws akashica.WorkspaceID
}

type workspaceFilePathSpec struct {
	ws   akashica.WorkspaceID
	path akashica.RepositoryPath
}

type workspaceCOWPathSpec struct {
	ws   akashica.WorkspaceID
	path akashica.RepositoryPath
}

type workspaceManifestPathSpec struct {
	ws  akashica.WorkspaceID
	dir akashica.RepositoryPath
}

func (objectDataPathSpec) pathSpec()         {}
func (objectTombstonePathSpec) pathSpec()    {}
func (objectsRootPathSpec) pathSpec()        {}
func (manifestDataPathSpec) pathSpec()       {}
func (commitCounterPathSpec) pathSpec()      {}
func (commitRootManifestPathSpec) pathSpec() {}
func (commitMetadataPathSpec) pathSpec()     {}
func (branchPathSpec) pathSpec()             {}
func (branchesRootPathSpec) pathSpec()       {}
func (workspaceRootPathSpec) pathSpec()      {}
func (workspaceMetadataPathSpec) pathSpec()  {}
func (workspaceFilePathSpec) pathSpec()      {}
func (workspaceCOWPathSpec) pathSpec()       {}
func (workspaceManifestPathSpec) pathSpec()  {}
