package httplite

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Storage is the byte-addressable store behind the /files/ routes.
//
// Implementations must be safe for concurrent use, since every connection
// calls them from its own goroutine.
type Storage interface {
	// ReadAll returns the whole content of the named resource.
	ReadAll(name string) ([]byte, error)

	// WriteAll creates or truncates the named resource and writes data to it.
	WriteAll(name string, data []byte) error
}

// ErrInvalidName is returned by DirStorage for names that are empty,
// absolute or would escape the storage root.
var ErrInvalidName = errors.New("invalid resource name")

// DirStorage stores resources as files under a base directory.
//
// Every access goes through an os.Root opened on the base directory, so
// names like "../etc/passwd" or symlinks pointing outside of it are refused.
type DirStorage struct {
	dir  string
	root *os.Root
}

// NewDirStorage returns a storage rooted at dir.
//
// dir must exist. Call Close when the storage is no longer used.
func NewDirStorage(dir string) (*DirStorage, error) {
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot open storage directory %q: %w", dir, err)
	}
	return &DirStorage{
		dir:  dir,
		root: root,
	}, nil
}

// Dir returns the base directory.
func (ds *DirStorage) Dir() string {
	return ds.dir
}

// Close releases the base directory.
func (ds *DirStorage) Close() error {
	return ds.root.Close()
}

// ReadAll implements Storage.
func (ds *DirStorage) ReadAll(name string) ([]byte, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	f, err := ds.root.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if fi.IsDir() {
		return nil, fmt.Errorf("cannot read %q: is a directory", name)
	}
	return io.ReadAll(f)
}

// WriteAll implements Storage.
func (ds *DirStorage) WriteAll(name string, data []byte) error {
	if err := checkName(name); err != nil {
		return err
	}
	f, err := ds.root.Create(name)
	if err != nil {
		return err
	}
	if _, err = f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func checkName(name string) error {
	if !filepath.IsLocal(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
