package storage

import (
	"strings"
	"testing"

	"github.com/akashica/akashica"
)

func TestPathFor(t *testing.T) {
	hash := akashica.HashBytes([]byte("content"))
	ws := akashica.WorkspaceID{Base: "@3", Suffix: "deadbeef"}

	for _, tc := range []struct {
		spec pathSpec
		want string
	}{
		{
			objectDataPathSpec{hash: hash},
			"/akashica/v1/objects/sha256/" + string(hash[:2]) + "/" + string(hash) + "/data",
		},
		{
			objectTombstonePathSpec{hash: hash},
			"/akashica/v1/objects/sha256/" + string(hash[:2]) + "/" + string(hash) + "/tombstone",
		},
		{
			manifestDataPathSpec{hash: hash},
			"/akashica/v1/manifests/sha256/" + string(hash[:2]) + "/" + string(hash) + "/data",
		},
		{commitCounterPathSpec{}, "/akashica/v1/commits/_counter"},
		{commitRootManifestPathSpec{id: "@7"}, "/akashica/v1/commits/7/root"},
		{commitMetadataPathSpec{id: "@7"}, "/akashica/v1/commits/7/metadata"},
		{branchPathSpec{name: "main"}, "/akashica/v1/branches/main"},
		{branchesRootPathSpec{}, "/akashica/v1/branches"},
		{workspaceMetadataPathSpec{ws: ws}, "/akashica/v1/workspaces/@3$deadbeef/metadata"},
	} {
		got, err := pathFor(tc.spec)
		if err != nil {
			t.Fatalf("%#v: %v", tc.spec, err)
		}
		if got != tc.want {
			t.Errorf("pathFor(%#v) = %q, want %q", tc.spec, got, tc.want)
		}
	}
}

func TestPathForWorkspaceOverlayKeys(t *testing.T) {
	ws := akashica.WorkspaceID{Base: "@1", Suffix: "aaaa"}

	// Unicode and colon-bearing names must produce valid backend
	// paths, and normalized path spellings must share a key.
	p1 := akashica.NewPath("日本/束:縛.txt")
	p2 := akashica.NewPath("/日本//束:縛.txt/")

	fp1, err := pathFor(workspaceFilePathSpec{ws: ws, path: p1})
	if err != nil {
		t.Fatal(err)
	}
	fp2, err := pathFor(workspaceFilePathSpec{ws: ws, path: p2})
	if err != nil {
		t.Fatal(err)
	}
	if fp1 != fp2 {
		t.Errorf("normalized spellings keyed differently: %q vs %q", fp1, fp2)
	}
	if !strings.HasPrefix(fp1, "/akashica/v1/workspaces/@1$aaaa/files/") {
		t.Errorf("unexpected overlay path %q", fp1)
	}

	// The three overlay namespaces must not collide for one path.
	cp, err := pathFor(workspaceCOWPathSpec{ws: ws, path: p1})
	if err != nil {
		t.Fatal(err)
	}
	mp, err := pathFor(workspaceManifestPathSpec{ws: ws, dir: p1})
	if err != nil {
		t.Fatal(err)
	}
	if fp1 == cp || fp1 == mp || cp == mp {
		t.Error("overlay namespaces collide")
	}
}

func TestPathForRejectsInvalidBranchNames(t *testing.T) {
	for _, bad := range []string{"", "with/slash", ".hidden", "-lead"} {
		if _, err := pathFor(branchPathSpec{name: bad}); err == nil {
			t.Errorf("branch name %q accepted", bad)
		}
	}
	for _, good := range []string{"main", "release-1.2", "feature_x", "HOTFIX"} {
		if _, err := pathFor(branchPathSpec{name: good}); err != nil {
			t.Errorf("branch name %q rejected: %v", good, err)
		}
	}
}
