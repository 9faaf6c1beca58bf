package filesystem

import (
	"testing"

	storagedriver "github.com/akashica/akashica/storage/driver"
	"github.com/akashica/akashica/storage/driver/testsuites"
)

func newTestDriver(t *testing.T) *Driver {
	d, err := New(DriverParameters{RootDirectory: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func TestFilesystemDriverSuite(t *testing.T) {
	testsuites.Run(t, func(t *testing.T) storagedriver.StorageDriver {
		return newTestDriver(t)
	})
}

func TestRootDirectoryLock(t *testing.T) {
	root := t.TempDir()

	first, err := New(DriverParameters{RootDirectory: root})
	if err != nil {
		t.Fatal(err)
	}
	defer first.Close()

	if _, err := New(DriverParameters{RootDirectory: root}); err == nil {
		t.Fatal("second driver acquired a locked root")
	}

	if err := first.Close(); err != nil {
		t.Fatal(err)
	}
	second, err := New(DriverParameters{RootDirectory: root})
	if err != nil {
		t.Fatalf("could not reacquire released root: %v", err)
	}
	second.Close()
}

func TestFromParameters(t *testing.T) {
	root := t.TempDir()
	d, err := FromParameters(map[string]interface{}{"rootdirectory": root})
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	if d.rootDirectory != root {
		t.Errorf("rootDirectory = %q, want %q", d.rootDirectory, root)
	}
}
