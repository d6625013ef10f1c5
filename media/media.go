// Package media is the local cache for uploaded and generated files. Files
// get random names and are referenced by the server as /api/file/<name>.
package media

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/meikuraledutech/storygraph"
	"github.com/meikuraledutech/storygraph/log"
)

// URLPrefix is the path under which cached files are served.
const URLPrefix = "/api/file/"

var (
	ErrInvalidName = errors.New("media: invalid file name")
	ErrNotFound    = errors.New("media: file not found")
)

// Store keeps media files in one flat directory.
type Store struct {
	dir string
}

// New creates the directory if needed and returns a Store over it.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("media: create %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the directory the store writes to.
func (s *Store) Dir() string { return s.dir }

// URL returns the reference the server serves name under.
func URL(name string) string { return URLPrefix + name }

// NameFromURL returns the file name of a /api/file/ reference, or "" when
// the reference points elsewhere.
func NameFromURL(ref string) string {
	if !strings.HasPrefix(ref, URLPrefix) {
		return ""
	}
	return strings.TrimPrefix(ref, URLPrefix)
}

// Path returns the on-disk path of name. Names that would escape the store
// directory are rejected.
func (s *Store) Path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(s.dir, name), nil
}

// Save writes data under a fresh name with extension ext and returns the
// name.
func (s *Store) Save(data []byte, ext string) (string, error) {
	name := newName(ext)
	path, err := s.Path(name)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("media: write %s: %w", name, err)
	}
	log.Debugf("media: saved %s (%d bytes)", name, len(data))
	return name, nil
}

// Upload stores r under a fresh name keeping the extension of filename.
func (s *Store) Upload(r io.Reader, filename string) (storygraph.FileRef, error) {
	name := newName(filepath.Ext(filename))
	path, err := s.Path(name)
	if err != nil {
		return storygraph.FileRef{}, err
	}
	f, err := os.Create(path)
	if err != nil {
		return storygraph.FileRef{}, fmt.Errorf("media: create %s: %w", name, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return storygraph.FileRef{}, fmt.Errorf("media: write %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return storygraph.FileRef{}, fmt.Errorf("media: close %s: %w", name, err)
	}
	log.Infof("media: uploaded %s as %s", filename, name)
	return storygraph.FileRef{Name: filename, ServerName: name, URL: URL(name)}, nil
}

// ReadFile returns the contents of name.
func (s *Store) ReadFile(name string) ([]byte, error) {
	path, err := s.Path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("media: read %s: %w", name, err)
	}
	return data, nil
}

func newName(ext string) string {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return strings.ReplaceAll(uuid.NewString(), "-", "") + ext
}
