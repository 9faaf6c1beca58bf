// Package testsuites provides a conformance suite that every storage
// driver must pass. Driver packages call Run from their own tests.
package testsuites

import (
	"bytes"
	"context"
	"sort"
	"testing"

	storagedriver "github.com/akashica/akashica/storage/driver"
)

// DriverConstructor constructs a fresh driver for a test.
type DriverConstructor func(t *testing.T) storagedriver.StorageDriver

// Run exercises the full driver contract against constructor.
func Run(t *testing.T, constructor DriverConstructor) {
	t.Run("PutGetContent", func(t *testing.T) { testPutGetContent(t, constructor(t)) })
	t.Run("OverwriteContent", func(t *testing.T) { testOverwriteContent(t, constructor(t)) })
	t.Run("GetNonexistent", func(t *testing.T) { testGetNonexistent(t, constructor(t)) })
	t.Run("Stat", func(t *testing.T) { testStat(t, constructor(t)) })
	t.Run("List", func(t *testing.T) { testList(t, constructor(t)) })
	t.Run("Move", func(t *testing.T) { testMove(t, constructor(t)) })
	t.Run("Delete", func(t *testing.T) { testDelete(t, constructor(t)) })
	t.Run("DeleteRecursive", func(t *testing.T) { testDeleteRecursive(t, constructor(t)) })
}

func testPutGetContent(t *testing.T, d storagedriver.StorageDriver) {
	ctx := context.Background()
	content := []byte("some content")

	if err := d.PutContent(ctx, "/a/b/c", content); err != nil {
		t.Fatal(err)
	}
	got, err := d.GetContent(ctx, "/a/b/c")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("got %q, want %q", got, content)
	}
}

func testOverwriteContent(t *testing.T, d storagedriver.StorageDriver) {
	ctx := context.Background()

	if err := d.PutContent(ctx, "/a", []byte("first")); err != nil {
		t.Fatal(err)
	}
	if err := d.PutContent(ctx, "/a", []byte("second")); err != nil {
		t.Fatal(err)
	}
	got, err := d.GetContent(ctx, "/a")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "second" {
		t.Errorf("got %q, want %q", got, "second")
	}
}

func testGetNonexistent(t *testing.T, d storagedriver.StorageDriver) {
	ctx := context.Background()

	_, err := d.GetContent(ctx, "/missing")
	if _, ok := err.(storagedriver.PathNotFoundError); !ok {
		t.Errorf("expected PathNotFoundError, got %v", err)
	}
}

func testStat(t *testing.T, d storagedriver.StorageDriver) {
	ctx := context.Background()
	content := []byte("stat me")

	if err := d.PutContent(ctx, "/dir/file", content); err != nil {
		t.Fatal(err)
	}

	fi, err := d.Stat(ctx, "/dir/file")
	if err != nil {
		t.Fatal(err)
	}
	if fi.IsDir() {
		t.Error("file reported as directory")
	}
	if fi.Size() != int64(len(content)) {
		t.Errorf("size = %d, want %d", fi.Size(), len(content))
	}

	fi, err = d.Stat(ctx, "/dir")
	if err != nil {
		t.Fatal(err)
	}
	if !fi.IsDir() {
		t.Error("directory reported as file")
	}

	if _, err := d.Stat(ctx, "/missing"); err == nil {
		t.Error("expected error for missing path")
	}
}

func testList(t *testing.T, d storagedriver.StorageDriver) {
	ctx := context.Background()

	for _, p := range []string{"/parent/a", "/parent/b", "/parent/sub/c"} {
		if err := d.PutContent(ctx, p, []byte(p)); err != nil {
			t.Fatal(err)
		}
	}

	keys, err := d.List(ctx, "/parent")
	if err != nil {
		t.Fatal(err)
	}
	sort.Strings(keys)
	want := []string{"/parent/a", "/parent/b", "/parent/sub"}
	if len(keys) != len(want) {
		t.Fatalf("List = %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("List[%d] = %q, want %q", i, keys[i], want[i])
		}
	}

	if _, err := d.List(ctx, "/missing"); err == nil {
		t.Error("expected error listing missing path")
	}
}

func testMove(t *testing.T, d storagedriver.StorageDriver) {
	ctx := context.Background()
	content := []byte("moving content")

	if err := d.PutContent(ctx, "/src/file", content); err != nil {
		t.Fatal(err)
	}
	if err := d.Move(ctx, "/src/file", "/dst/nested/file"); err != nil {
		t.Fatal(err)
	}

	got, err := d.GetContent(ctx, "/dst/nested/file")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("got %q, want %q", got, content)
	}
	if _, err := d.GetContent(ctx, "/src/file"); err == nil {
		t.Error("source still readable after move")
	}

	err = d.Move(ctx, "/missing", "/elsewhere")
	if _, ok := err.(storagedriver.PathNotFoundError); !ok {
		t.Errorf("expected PathNotFoundError, got %v", err)
	}
}

func testDelete(t *testing.T, d storagedriver.StorageDriver) {
	ctx := context.Background()

	if err := d.PutContent(ctx, "/doomed", []byte("x")); err != nil {
		t.Fatal(err)
	}
	if err := d.Delete(ctx, "/doomed"); err != nil {
		t.Fatal(err)
	}
	if _, err := d.GetContent(ctx, "/doomed"); err == nil {
		t.Error("content readable after delete")
	}

	err := d.Delete(ctx, "/doomed")
	if _, ok := err.(storagedriver.PathNotFoundError); !ok {
		t.Errorf("expected PathNotFoundError, got %v", err)
	}
}

func testDeleteRecursive(t *testing.T, d storagedriver.StorageDriver) {
	ctx := context.Background()

	for _, p := range []string{"/tree/a", "/tree/sub/b", "/tree/sub/deep/c", "/keep"} {
		if err := d.PutContent(ctx, p, []byte(p)); err != nil {
			t.Fatal(err)
		}
	}
	if err := d.Delete(ctx, "/tree"); err != nil {
		t.Fatal(err)
	}
	for _, p := range []string{"/tree/a", "/tree/sub/b", "/tree/sub/deep/c"} {
		if _, err := d.GetContent(ctx, p); err == nil {
			t.Errorf("%s readable after recursive delete", p)
		}
	}
	if _, err := d.GetContent(ctx, "/keep"); err != nil {
		t.Errorf("unrelated path removed: %v", err)
	}
}
