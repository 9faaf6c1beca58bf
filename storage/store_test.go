package storage

import (
	"bytes"
	"context"
	"path"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/akashica/akashica"
	"github.com/akashica/akashica/storage/driver/inmemory"
)

type storeTestEnv struct {
	ctx    context.Context
	driver *inmemory.Driver
	store  *Store
}

func newStoreTestEnv(t *testing.T) *storeTestEnv {
	t.Helper()
	driver := inmemory.New()
	return &storeTestEnv{
		ctx:    context.Background(),
		driver: driver,
		store:  NewStore(driver),
	}
}

// countObjects walks the object namespace and counts stored blobs.
func countObjects(t *testing.T, env *storeTestEnv) int {
	t.Helper()
	root, err := pathFor(objectsRootPathSpec{})
	if err != nil {
		t.Fatal(err)
	}
	return countFiles(t, env, root, "data")
}

func countFiles(t *testing.T, env *storeTestEnv, dir, leaf string) int {
	t.Helper()
	entries, err := env.driver.List(env.ctx, dir)
	if err != nil {
		return 0
	}
	count := 0
	for _, entry := range entries {
		if path.Base(entry) == leaf {
			count++
			continue
		}
		count += countFiles(t, env, entry, leaf)
	}
	return count
}

func TestWriteObjectDeduplicates(t *testing.T) {
	env := newStoreTestEnv(t)
	content := []byte("identical bytes")

	h1, err := env.store.WriteObject(env.ctx, content)
	if err != nil {
		t.Fatal(err)
	}
	h2, err := env.store.WriteObject(env.ctx, []byte("identical bytes"))
	if err != nil {
		t.Fatal(err)
	}
	if h1 != h2 {
		t.Errorf("equal bytes yielded different hashes: %s vs %s", h1, h2)
	}
	if got := countObjects(t, env); got != 1 {
		t.Errorf("store holds %d objects, want 1", got)
	}

	got, err := env.store.ReadObject(env.ctx, h1)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("read back %q", got)
	}
}

func TestReadObjectMissing(t *testing.T) {
	env := newStoreTestEnv(t)

	_, err := env.store.ReadObject(env.ctx, akashica.HashBytes([]byte("never written")))
	if _, ok := err.(akashica.FileNotFoundError); !ok {
		t.Errorf("error type %T, want FileNotFoundError", err)
	}
}

func TestTombstoneLifecycle(t *testing.T) {
	env := newStoreTestEnv(t)
	content := []byte("secret")

	hash, err := env.store.WriteObject(env.ctx, content)
	if err != nil {
		t.Fatal(err)
	}

	tombstone := akashica.Tombstone{
		DeletedHash:  hash,
		Reason:       "leaked",
		DeletedBy:    "sec@x",
		DeletedAt:    time.Now().UTC(),
		OriginalSize: int64(len(content)),
	}
	if err := env.store.WriteTombstone(env.ctx, hash, tombstone); err != nil {
		t.Fatal(err)
	}
	if err := env.store.DeleteObject(env.ctx, hash); err != nil {
		t.Fatal(err)
	}

	_, err = env.store.ReadObject(env.ctx, hash)
	deleted, ok := err.(akashica.ObjectDeletedError)
	if !ok {
		t.Fatalf("error type %T, want ObjectDeletedError", err)
	}
	if deleted.Tombstone.Reason != "leaked" || deleted.Tombstone.OriginalSize != int64(len(content)) {
		t.Errorf("tombstone lost details: %+v", deleted.Tombstone)
	}

	if ok, err := env.store.ObjectExists(env.ctx, hash); err != nil || ok {
		t.Errorf("ObjectExists = %v, %v after scrub", ok, err)
	}

	scrubbed, err := env.store.ListTombstones(env.ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(scrubbed) != 1 || scrubbed[0].Hash != hash {
		t.Errorf("ListTombstones = %+v", scrubbed)
	}
}

func TestManifestStoreIsSeparateNamespace(t *testing.T) {
	env := newStoreTestEnv(t)
	content := []byte("same bytes in both namespaces")

	oh, err := env.store.WriteObject(env.ctx, content)
	if err != nil {
		t.Fatal(err)
	}
	mh, err := env.store.WriteManifest(env.ctx, content)
	if err != nil {
		t.Fatal(err)
	}
	if oh != mh {
		t.Fatalf("content hashing diverged between namespaces")
	}

	if err := env.store.DeleteObject(env.ctx, oh); err != nil {
		t.Fatal(err)
	}
	if _, err := env.store.ReadManifest(env.ctx, mh); err != nil {
		t.Errorf("manifest lost when object deleted: %v", err)
	}
}

func TestUpdateBranchCAS(t *testing.T) {
	env := newStoreTestEnv(t)
	ctx := env.ctx

	// Creating a branch requires a nil expected head.
	if err := env.store.UpdateBranch(ctx, "main", nil, "@1"); err != nil {
		t.Fatal(err)
	}
	head := akashica.CommitID("@1")
	if err := env.store.UpdateBranch(ctx, "main", nil, "@2"); err == nil {
		t.Error("create over existing branch succeeded")
	}

	// Advancing requires the expected current head.
	if err := env.store.UpdateBranch(ctx, "main", &head, "@2"); err != nil {
		t.Fatal(err)
	}
	stale := akashica.CommitID("@1")
	err := env.store.UpdateBranch(ctx, "main", &stale, "@3")
	if _, ok := err.(akashica.BranchConflictError); !ok {
		t.Errorf("error type %T, want BranchConflictError", err)
	}

	pointer, err := env.store.ReadBranch(ctx, "main")
	if err != nil {
		t.Fatal(err)
	}
	if pointer.Head != "@2" {
		t.Errorf("head = %s, want @2", pointer.Head)
	}
}

func TestUpdateBranchConcurrentCAS(t *testing.T) {
	env := newStoreTestEnv(t)
	ctx := env.ctx

	if err := env.store.UpdateBranch(ctx, "main", nil, "@1"); err != nil {
		t.Fatal(err)
	}

	const attempts = 16
	head := akashica.CommitID("@1")
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			next := akashica.CommitID("@" + strings.Repeat("9", i+2))
			errs[i] = env.store.UpdateBranch(ctx, "main", &head, next)
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		switch err.(type) {
		case nil:
			succeeded++
		case akashica.BranchConflictError:
		default:
			t.Errorf("unexpected error %v", err)
		}
	}
	if succeeded != 1 {
		t.Errorf("%d CAS attempts succeeded, want exactly 1", succeeded)
	}
}

func TestListBranches(t *testing.T) {
	env := newStoreTestEnv(t)
	ctx := env.ctx

	names, err := env.store.ListBranches(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 0 {
		t.Errorf("fresh store has branches: %v", names)
	}

	for _, name := range []string{"main", "develop", "archive"} {
		if err := env.store.UpdateBranch(ctx, name, nil, "@1"); err != nil {
			t.Fatal(err)
		}
	}
	names, err = env.store.ListBranches(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"archive", "develop", "main"}
	if len(names) != len(want) {
		t.Fatalf("ListBranches = %v", names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("ListBranches[%d] = %q, want %q", i, names[i], want[i])
		}
	}

	_, err = env.store.ReadBranch(ctx, "missing")
	if _, ok := err.(akashica.BranchNotFoundError); !ok {
		t.Errorf("error type %T, want BranchNotFoundError", err)
	}
}

func TestNextCommitID(t *testing.T) {
	env := newStoreTestEnv(t)

	id1, err := env.store.nextCommitID(env.ctx)
	if err != nil {
		t.Fatal(err)
	}
	id2, err := env.store.nextCommitID(env.ctx)
	if err != nil {
		t.Fatal(err)
	}
	if id1 != "@1" || id2 != "@2" {
		t.Errorf("allocated %s, %s; want @1, @2", id1, id2)
	}
}

func TestWorkspaceOverlayAbsence(t *testing.T) {
	env := newStoreTestEnv(t)
	ctx := env.ctx
	ws := akashica.WorkspaceID{Base: "@1", Suffix: "abcd1234"}
	p := akashica.NewPath("some/file.txt")

	if content, err := env.store.ReadWorkspaceFile(ctx, ws, p); err != nil || content != nil {
		t.Errorf("absent file: %v, %v", content, err)
	}
	if ref, err := env.store.ReadCOWReference(ctx, ws, p); err != nil || ref != nil {
		t.Errorf("absent cow ref: %v, %v", ref, err)
	}
	if m, err := env.store.ReadWorkspaceManifest(ctx, ws, p.Parent()); err != nil || m != nil {
		t.Errorf("absent manifest: %v, %v", m, err)
	}

	// Deletes of absent entries are no-ops.
	if err := env.store.DeleteWorkspaceFile(ctx, ws, p); err != nil {
		t.Errorf("delete absent file: %v", err)
	}
	if err := env.store.DeleteCOWReference(ctx, ws, p); err != nil {
		t.Errorf("delete absent cow ref: %v", err)
	}
	if err := env.store.DeleteWorkspace(ctx, ws); err != nil {
		t.Errorf("delete absent workspace: %v", err)
	}

	_, err := env.store.ReadWorkspaceMetadata(ctx, ws)
	if _, ok := err.(akashica.WorkspaceNotFoundError); !ok {
		t.Errorf("error type %T, want WorkspaceNotFoundError", err)
	}
}

func TestWorkspaceManifestPresentButEmpty(t *testing.T) {
	env := newStoreTestEnv(t)
	ctx := env.ctx
	ws := akashica.WorkspaceID{Base: "@1", Suffix: "abcd1234"}
	dir := akashica.NewPath("emptied")

	if err := env.store.WriteWorkspaceManifest(ctx, ws, dir, nil); err != nil {
		t.Fatal(err)
	}
	content, err := env.store.ReadWorkspaceManifest(ctx, ws, dir)
	if err != nil {
		t.Fatal(err)
	}
	if content == nil {
		t.Error("empty shadow manifest reads back as absent")
	}
}
