package fs

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// File represents an open file.
type File interface {
	io.ReadWriteCloser
	io.ReaderAt
	io.Seeker
	Sync() error
	Stat() (os.FileInfo, error)
}

// FileSystem abstracts file system operations for testability.
type FileSystem interface {
	OpenFile(name string, flag int, perm os.FileMode) (File, error)
	Remove(name string) error
	RemoveAll(path string) error
	Rename(oldpath, newpath string) error
	Stat(name string) (os.FileInfo, error)
	MkdirAll(path string, perm os.FileMode) error
	ReadDir(name string) ([]os.DirEntry, error)
}

// LocalFS implements FileSystem using the local os package.
type LocalFS struct{}

func (LocalFS) OpenFile(name string, flag int, perm os.FileMode) (File, error) {
	return os.OpenFile(name, flag, perm)
}

func (LocalFS) Remove(name string) error              { return os.Remove(name) }
func (LocalFS) RemoveAll(path string) error           { return os.RemoveAll(path) }
func (LocalFS) Rename(oldpath, newpath string) error  { return os.Rename(oldpath, newpath) }
func (LocalFS) Stat(name string) (os.FileInfo, error) { return os.Stat(name) }
func (LocalFS) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}
func (LocalFS) ReadDir(name string) ([]os.DirEntry, error) { return os.ReadDir(name) }

// Default is the default local file system.
var Default FileSystem = LocalFS{}

// Exists reports whether name exists (file or directory).
func Exists(fsys FileSystem, name string) bool {
	_, err := fsys.Stat(name)
	return err == nil
}

// IsDir reports whether name exists and is a directory.
func IsDir(fsys FileSystem, name string) bool {
	info, err := fsys.Stat(name)
	return err == nil && info.IsDir()
}

// ModTime returns the modification time of name. ok is false if it does not exist.
func ModTime(fsys FileSystem, name string) (t time.Time, ok bool) {
	info, err := fsys.Stat(name)
	if err != nil {
		return time.Time{}, false
	}
	return info.ModTime(), true
}

// ReadFile reads the whole file.
func ReadFile(fsys FileSystem, name string) ([]byte, error) {
	f, err := fsys.OpenFile(name, os.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// Open opens name for reading.
func Open(fsys FileSystem, name string) (File, error) {
	return fsys.OpenFile(name, os.O_RDONLY, 0)
}

// TempName returns a hidden sibling name for name that is unique per call.
func TempName(name string) string {
	return filepath.Join(filepath.Dir(name), ".tmp-"+uuid.NewString()+"-"+filepath.Base(name))
}

// WriteAtomic streams r into a temporary sibling of name and renames it into
// place once fully written and synced. On error the temporary file is removed
// and name is left untouched.
func WriteAtomic(fsys FileSystem, name string, r io.Reader) (int64, error) {
	if err := fsys.MkdirAll(filepath.Dir(name), 0755); err != nil {
		return 0, err
	}

	tmpName := TempName(name)
	f, err := fsys.OpenFile(tmpName, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0644)
	if err != nil {
		return 0, err
	}

	n, err := io.Copy(f, r)
	if err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = fsys.Rename(tmpName, name)
	}
	if err != nil {
		_ = fsys.Remove(tmpName) // Intentionally ignore: cleanup path
		return n, err
	}
	return n, nil
}

// RemoveIfExists removes name, treating a missing file as success.
func RemoveIfExists(fsys FileSystem, name string) error {
	err := fsys.RemoveAll(name)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
