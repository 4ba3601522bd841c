package storage

import (
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Folders under the upload root.
const (
	FolderAvatars     = "avatars"
	FolderThumbnails  = "thumbnails"
	FolderAssignments = "assignments"
	FolderResources   = "resources"
)

var ErrFileNotFound = errors.New("file not found")

// FileStore persists uploaded files and hands back an opaque reference to be
// stored on the owning row.
type FileStore interface {
	Save(folder, filename string, r io.Reader) (string, error)
	Open(ref string) (*os.File, error)
	Remove(ref string) error
}

// IsRemote reports whether ref points to a remote object store (URL-shaped)
// rather than the local upload root.
func IsRemote(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}

// LocalStore keeps files on disk below Root. References look like
// "assignments/<uuid>_<name>".
type LocalStore struct {
	Root string
}

var _ FileStore = (*LocalStore)(nil)

func NewLocalStore(root string) (*LocalStore, error) {
	for _, folder := range []string{FolderAvatars, FolderThumbnails, FolderAssignments, FolderResources} {
		if err := os.MkdirAll(filepath.Join(root, folder), 0o755); err != nil {
			return nil, errors.Wrap(err, "creating upload folder")
		}
	}
	return &LocalStore{Root: root}, nil
}

func (s *LocalStore) Save(folder, filename string, r io.Reader) (string, error) {
	name := uuid.NewString() + "_" + SecureFilename(filename)
	ref := filepath.ToSlash(filepath.Join(folder, name))

	path, err := s.path(ref)
	if err != nil {
		return "", err
	}
	f, err := os.Create(path)
	if err != nil {
		return "", errors.Wrap(err, "creating file")
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", errors.Wrap(err, "writing file")
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", errors.Wrap(err, "closing file")
	}
	return ref, nil
}

func (s *LocalStore) Open(ref string) (*os.File, error) {
	path, err := s.path(ref)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, ErrFileNotFound
	}
	return f, err
}

// Remove deletes the file behind ref. Remote and missing files are ignored.
func (s *LocalStore) Remove(ref string) error {
	if ref == "" || IsRemote(ref) {
		return nil
	}
	path, err := s.path(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "removing file")
	}
	return nil
}

// path resolves ref below Root and refuses anything escaping it.
func (s *LocalStore) path(ref string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(ref))
	if clean == "." || filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		return "", ErrFileNotFound
	}
	return filepath.Join(s.Root, clean), nil
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// SecureFilename strips directories and anything but [A-Za-z0-9_.-] from a
// client supplied file name.
func SecureFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.ReplaceAll(strings.TrimSpace(name), " ", "_")
	name = unsafeChars.ReplaceAllString(name, "")
	name = strings.Trim(name, "._")
	if name == "" {
		return "file"
	}
	return name
}

// Ext returns the lower-cased extension of name without the dot.
func Ext(name string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
}
