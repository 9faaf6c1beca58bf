package storage

import (
	"bytes"
	"context"
	"testing"

	"github.com/akashica/akashica"
	"github.com/akashica/akashica/storage/driver/inmemory"
)

type sessionTestEnv struct {
	ctx    context.Context
	driver *inmemory.Driver
	store  *Store
	repo   akashica.Repository
}

func newSessionTestEnv(t *testing.T) *sessionTestEnv {
	t.Helper()
	ctx := context.Background()
	driver := inmemory.New()
	repo, err := Init(ctx, driver)
	if err != nil {
		t.Fatal(err)
	}
	return &sessionTestEnv{
		ctx:    ctx,
		driver: driver,
		store:  NewStore(driver),
		repo:   repo,
	}
}

// workspaceSession creates a fresh workspace on the current head of
// main and returns a session on it.
func (env *sessionTestEnv) workspaceSession(t *testing.T) (akashica.Session, akashica.WorkspaceID) {
	t.Helper()
	ws, err := env.repo.CreateWorkspaceFromBranch(env.ctx, "main", "tester")
	if err != nil {
		t.Fatal(err)
	}
	sess, err := env.repo.Session(env.ctx, akashica.WorkspaceRef(ws))
	if err != nil {
		t.Fatal(err)
	}
	return sess, ws
}

// seed publishes the given files as a commit on main and returns its
// id.
func (env *sessionTestEnv) seed(t *testing.T, files map[string]string) akashica.CommitID {
	t.Helper()
	sess, ws := env.workspaceSession(t)
	for p, content := range files {
		if err := sess.WriteFile(env.ctx, p, []byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	commit, err := env.repo.PublishWorkspace(env.ctx, ws, "main", "seed", "tester")
	if err != nil {
		t.Fatal(err)
	}
	return commit
}

func TestWriteReadRoundTrip(t *testing.T) {
	env := newSessionTestEnv(t)
	sess, _ := env.workspaceSession(t)

	content := []byte("hello")
	if err := sess.WriteFile(env.ctx, "README.md", content); err != nil {
		t.Fatal(err)
	}
	got, err := sess.ReadFile(env.ctx, "README.md")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("read %q, want %q", got, content)
	}

	// Overwrite within the same workspace.
	if err := sess.WriteFile(env.ctx, "README.md", []byte("changed")); err != nil {
		t.Fatal(err)
	}
	got, err = sess.ReadFile(env.ctx, "README.md")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "changed" {
		t.Errorf("read %q after overwrite", got)
	}
}

func TestWriteIntoNestedNewDirectories(t *testing.T) {
	env := newSessionTestEnv(t)
	sess, _ := env.workspaceSession(t)

	if err := sess.WriteFile(env.ctx, "asia/japan/tokyo.txt", []byte("t")); err != nil {
		t.Fatal(err)
	}

	entries, err := sess.ListDirectory(env.ctx, "asia")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name != "japan" || !entries[0].IsDirectory {
		t.Errorf("asia listing = %+v", entries)
	}

	root, err := sess.ListDirectory(env.ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(root) != 1 || root[0].Name != "asia" {
		t.Errorf("root listing = %+v", root)
	}
}

func TestDeleteFile(t *testing.T) {
	env := newSessionTestEnv(t)
	env.seed(t, map[string]string{"keep.txt": "k", "doomed.txt": "d"})
	sess, _ := env.workspaceSession(t)

	if err := sess.DeleteFile(env.ctx, "doomed.txt"); err != nil {
		t.Fatal(err)
	}
	exists, err := sess.FileExists(env.ctx, "doomed.txt")
	if err != nil {
		t.Fatal(err)
	}
	if exists {
		t.Error("deleted file still exists")
	}
	if _, err := sess.ReadFile(env.ctx, "doomed.txt"); err == nil {
		t.Error("deleted file still readable")
	}
	if exists, _ := sess.FileExists(env.ctx, "keep.txt"); !exists {
		t.Error("sibling file vanished")
	}

	err = sess.DeleteFile(env.ctx, "never-there.txt")
	if _, ok := err.(akashica.FileNotFoundError); !ok {
		t.Errorf("error type %T, want FileNotFoundError", err)
	}
}

func TestDeleteThenRecreate(t *testing.T) {
	env := newSessionTestEnv(t)
	env.seed(t, map[string]string{"file.txt": "old"})
	sess, _ := env.workspaceSession(t)

	if err := sess.DeleteFile(env.ctx, "file.txt"); err != nil {
		t.Fatal(err)
	}
	if err := sess.WriteFile(env.ctx, "file.txt", []byte("new")); err != nil {
		t.Fatal(err)
	}
	got, err := sess.ReadFile(env.ctx, "file.txt")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "new" {
		t.Errorf("read %q", got)
	}
}

func TestMoveFileFromBaseUsesCOW(t *testing.T) {
	env := newSessionTestEnv(t)
	env.seed(t, map[string]string{"a.txt": "unchanged content"})
	sess, ws := env.workspaceSession(t)

	if err := sess.MoveFile(env.ctx, "a.txt", "sub/b.txt"); err != nil {
		t.Fatal(err)
	}

	got, err := sess.ReadFile(env.ctx, "sub/b.txt")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "unchanged content" {
		t.Errorf("read %q", got)
	}
	if exists, _ := sess.FileExists(env.ctx, "a.txt"); exists {
		t.Error("source still exists after move")
	}

	// The move must be recorded as a reference, not a blob copy.
	ref, err := env.store.ReadCOWReference(env.ctx, ws, akashica.NewPath("sub/b.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if ref == nil {
		t.Fatal("no copy-on-write reference recorded")
	}
	if !ref.BasePath.Equal(akashica.NewPath("a.txt")) {
		t.Errorf("reference base path = %q", ref.BasePath)
	}
	if blob, _ := env.store.ReadWorkspaceFile(env.ctx, ws, akashica.NewPath("sub/b.txt")); blob != nil {
		t.Error("move copied bytes into the overlay")
	}
}

func TestMoveFileChainKeepsOriginalBasePath(t *testing.T) {
	env := newSessionTestEnv(t)
	env.seed(t, map[string]string{"one.txt": "content"})
	sess, ws := env.workspaceSession(t)

	if err := sess.MoveFile(env.ctx, "one.txt", "two.txt"); err != nil {
		t.Fatal(err)
	}
	if err := sess.MoveFile(env.ctx, "two.txt", "three.txt"); err != nil {
		t.Fatal(err)
	}

	ref, err := env.store.ReadCOWReference(env.ctx, ws, akashica.NewPath("three.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if ref == nil {
		t.Fatal("no reference at final destination")
	}
	if !ref.BasePath.Equal(akashica.NewPath("one.txt")) {
		t.Errorf("reference base path = %q, want one.txt", ref.BasePath)
	}
	if ref2, _ := env.store.ReadCOWReference(env.ctx, ws, akashica.NewPath("two.txt")); ref2 != nil {
		t.Error("intermediate reference left behind")
	}
}

func TestMoveWorkspaceFileMovesBlob(t *testing.T) {
	env := newSessionTestEnv(t)
	sess, ws := env.workspaceSession(t)

	if err := sess.WriteFile(env.ctx, "draft.txt", []byte("fresh")); err != nil {
		t.Fatal(err)
	}
	if err := sess.MoveFile(env.ctx, "draft.txt", "final.txt"); err != nil {
		t.Fatal(err)
	}

	got, err := sess.ReadFile(env.ctx, "final.txt")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "fresh" {
		t.Errorf("read %q", got)
	}
	if blob, _ := env.store.ReadWorkspaceFile(env.ctx, ws, akashica.NewPath("draft.txt")); blob != nil {
		t.Error("source blob left behind")
	}
	if ref, _ := env.store.ReadCOWReference(env.ctx, ws, akashica.NewPath("final.txt")); ref != nil {
		t.Error("workspace-local content moved by reference")
	}
}

func TestMoveMissingSource(t *testing.T) {
	env := newSessionTestEnv(t)
	sess, _ := env.workspaceSession(t)

	err := sess.MoveFile(env.ctx, "ghost.txt", "anywhere.txt")
	if _, ok := err.(akashica.FileNotFoundError); !ok {
		t.Errorf("error type %T, want FileNotFoundError", err)
	}
}

func TestShadowManifestIsAuthoritative(t *testing.T) {
	env := newSessionTestEnv(t)
	env.seed(t, map[string]string{
		"dir/a.txt": "a",
		"dir/b.txt": "b",
		"dir/c.txt": "c",
	})
	sess, _ := env.workspaceSession(t)

	if err := sess.DeleteFile(env.ctx, "dir/b.txt"); err != nil {
		t.Fatal(err)
	}

	// Once dir has a shadow manifest it is the sole source of names:
	// the deleted base entry must not leak through.
	entries, err := sess.ListDirectory(env.ctx, "dir")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("listing = %+v", entries)
	}
	if entries[0].Name != "a.txt" || entries[1].Name != "c.txt" {
		t.Errorf("listing = %+v", entries)
	}
	if exists, _ := sess.FileExists(env.ctx, "dir/b.txt"); exists {
		t.Error("deleted base entry visible through shadow")
	}

	// Entries the shadow carried forward still resolve to base
	// content.
	got, err := sess.ReadFile(env.ctx, "dir/a.txt")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "a" {
		t.Errorf("read %q", got)
	}
}

func TestListDirectoryErrors(t *testing.T) {
	env := newSessionTestEnv(t)
	env.seed(t, map[string]string{"file.txt": "x"})
	sess, err := env.repo.BranchSession(env.ctx, "main")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := sess.ListDirectory(env.ctx, "file.txt"); err == nil {
		t.Error("listing a file succeeded")
	}
	if _, err := sess.ListDirectory(env.ctx, "no/such/dir"); err == nil {
		t.Error("listing a missing directory succeeded")
	}
}

func TestEmptyRepositoryBoundaries(t *testing.T) {
	env := newSessionTestEnv(t)
	sess, err := env.repo.Session(env.ctx, akashica.CommitRef(akashica.InitialCommitID))
	if err != nil {
		t.Fatal(err)
	}

	entries, err := sess.ListDirectory(env.ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("initial commit listing = %+v", entries)
	}

	_, err = sess.ReadFile(env.ctx, "anything")
	if _, ok := err.(akashica.FileNotFoundError); !ok {
		t.Errorf("error type %T, want FileNotFoundError", err)
	}
	if exists, err := sess.FileExists(env.ctx, "anything"); err != nil || exists {
		t.Errorf("FileExists = %v, %v", exists, err)
	}
}

func TestCommitSessionIsReadOnly(t *testing.T) {
	env := newSessionTestEnv(t)
	sess, err := env.repo.BranchSession(env.ctx, "main")
	if err != nil {
		t.Fatal(err)
	}
	if !sess.IsReadOnly() {
		t.Error("branch session is not read-only")
	}

	if err := sess.WriteFile(env.ctx, "x", nil); err != akashica.ErrSessionReadOnly {
		t.Errorf("WriteFile error = %v", err)
	}
	if err := sess.DeleteFile(env.ctx, "x"); err != akashica.ErrSessionReadOnly {
		t.Errorf("DeleteFile error = %v", err)
	}
	if err := sess.MoveFile(env.ctx, "x", "y"); err != akashica.ErrSessionReadOnly {
		t.Errorf("MoveFile error = %v", err)
	}
	if _, err := sess.Status(env.ctx); err != akashica.ErrSessionReadOnly {
		t.Errorf("Status error = %v", err)
	}
}

func TestStatus(t *testing.T) {
	env := newSessionTestEnv(t)
	env.seed(t, map[string]string{
		"unchanged.txt": "same",
		"modified.txt":  "before",
		"deleted.txt":   "bye",
		"moved.txt":     "wander",
	})
	sess, _ := env.workspaceSession(t)

	if err := sess.WriteFile(env.ctx, "added.txt", []byte("new")); err != nil {
		t.Fatal(err)
	}
	if err := sess.WriteFile(env.ctx, "modified.txt", []byte("after")); err != nil {
		t.Fatal(err)
	}
	if err := sess.DeleteFile(env.ctx, "deleted.txt"); err != nil {
		t.Fatal(err)
	}
	if err := sess.MoveFile(env.ctx, "moved.txt", "landed.txt"); err != nil {
		t.Fatal(err)
	}

	status, err := sess.Status(env.ctx)
	if err != nil {
		t.Fatal(err)
	}

	wantPaths(t, "added", status.Added, "added.txt", "landed.txt")
	wantPaths(t, "modified", status.Modified, "modified.txt")
	wantPaths(t, "deleted", status.Deleted, "deleted.txt", "moved.txt")
}

func wantPaths(t *testing.T, label string, got []akashica.RepositoryPath, want ...string) {
	t.Helper()
	if len(got) != len(want) {
		t.Errorf("%s = %v, want %v", label, got, want)
		return
	}
	seen := make(map[string]bool, len(got))
	for _, p := range got {
		seen[p.String()] = true
	}
	for _, w := range want {
		if !seen[w] {
			t.Errorf("%s is missing %q (got %v)", label, w, got)
		}
	}
}

func TestStatusCleanWorkspace(t *testing.T) {
	env := newSessionTestEnv(t)
	env.seed(t, map[string]string{"a.txt": "a", "d/b.txt": "b"})
	sess, _ := env.workspaceSession(t)

	status, err := sess.Status(env.ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(status.Added)+len(status.Modified)+len(status.Deleted) != 0 {
		t.Errorf("clean workspace status = %+v", status)
	}
}

func TestDiffAgainstSelfIsEmpty(t *testing.T) {
	env := newSessionTestEnv(t)
	commit := env.seed(t, map[string]string{"a.txt": "a", "d/b.txt": "b"})

	sess, err := env.repo.Session(env.ctx, akashica.CommitRef(commit))
	if err != nil {
		t.Fatal(err)
	}
	changes, err := sess.Diff(env.ctx, commit)
	if err != nil {
		t.Fatal(err)
	}
	if len(changes) != 0 {
		t.Errorf("self diff = %+v", changes)
	}
}

func TestDiffBetweenCommits(t *testing.T) {
	env := newSessionTestEnv(t)
	base := env.seed(t, map[string]string{
		"stay.txt":     "s",
		"change.txt":   "one",
		"vanish.txt":   "v",
		"dir/deep.txt": "d",
	})
	env.seed(t, map[string]string{
		"change.txt":  "two",
		"appear.txt":  "a",
		"dir/new.txt": "n",
	})
	// Deletions need their own pass; seed only writes.
	sess3, ws3 := env.workspaceSession(t)
	if err := sess3.DeleteFile(env.ctx, "vanish.txt"); err != nil {
		t.Fatal(err)
	}
	head, err := env.repo.PublishWorkspace(env.ctx, ws3, "main", "delete", "tester")
	if err != nil {
		t.Fatal(err)
	}

	sess, err := env.repo.Session(env.ctx, akashica.CommitRef(head))
	if err != nil {
		t.Fatal(err)
	}
	changes, err := sess.Diff(env.ctx, base)
	if err != nil {
		t.Fatal(err)
	}

	byType := map[akashica.ChangeType][]akashica.RepositoryPath{}
	for _, c := range changes {
		byType[c.Type] = append(byType[c.Type], c.Path)
	}
	wantPaths(t, "diff added", byType[akashica.ChangeAdded], "appear.txt", "dir/new.txt")
	wantPaths(t, "diff modified", byType[akashica.ChangeModified], "change.txt")
	wantPaths(t, "diff deleted", byType[akashica.ChangeDeleted], "vanish.txt")
}

func TestReadScrubbedThroughSession(t *testing.T) {
	env := newSessionTestEnv(t)
	commit := env.seed(t, map[string]string{"secrets.env": "API_KEY=123"})

	hash := akashica.HashBytes([]byte("API_KEY=123"))
	if err := env.repo.ScrubContent(env.ctx, hash, "leaked", "sec@x"); err != nil {
		t.Fatal(err)
	}

	sess, err := env.repo.Session(env.ctx, akashica.CommitRef(commit))
	if err != nil {
		t.Fatal(err)
	}
	_, err = sess.ReadFile(env.ctx, "secrets.env")
	deleted, ok := err.(akashica.ObjectDeletedError)
	if !ok {
		t.Fatalf("error type %T, want ObjectDeletedError", err)
	}
	if deleted.Hash != hash {
		t.Errorf("hash = %s, want %s", deleted.Hash, hash)
	}

	// The commit structure is intact: the path is still listed.
	entries, err := sess.ListDirectory(env.ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name != "secrets.env" {
		t.Errorf("listing = %+v", entries)
	}
}

func TestSessionsAreIndependent(t *testing.T) {
	env := newSessionTestEnv(t)
	env.seed(t, map[string]string{"shared.txt": "base"})

	sessA, _ := env.workspaceSession(t)
	sessB, _ := env.workspaceSession(t)

	if err := sessA.WriteFile(env.ctx, "shared.txt", []byte("from A")); err != nil {
		t.Fatal(err)
	}

	got, err := sessB.ReadFile(env.ctx, "shared.txt")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "base" {
		t.Errorf("workspace B sees %q, want base content", got)
	}
}
