// Package filestore keeps each project as one JSON document on disk.
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/meikuraledutech/storygraph"
)

// ErrInvalidProject is returned for project names that cannot be used as a
// file name.
var ErrInvalidProject = errors.New("filestore: invalid project name")

// Store implements storygraph.Store over a directory of <project>.json files.
type Store struct {
	dir string
}

// New returns a Store rooted at dir. The directory is created on first save.
func New(dir string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("filestore: dir is required")
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path(project string) (string, error) {
	if project == "" || project != filepath.Base(project) || strings.HasPrefix(project, ".") {
		return "", fmt.Errorf("%w: %q", ErrInvalidProject, project)
	}
	return filepath.Join(s.dir, project+".json"), nil
}

// Load reads the project. A project that was never saved loads empty.
func (s *Store) Load(ctx context.Context, project string) (*storygraph.Project, error) {
	path, err := s.path(project)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return storygraph.NewProject(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("filestore: read %s: %w", project, err)
	}

	p := storygraph.NewProject()
	if err := json.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("filestore: decode %s: %w", project, err)
	}
	return p, nil
}

// Save replaces the stored document. The write goes to a temporary file
// that is renamed over the old one, so readers never see a partial document.
func (s *Store) Save(ctx context.Context, project string, p *storygraph.Project) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.path(project)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("filestore: encode %s: %w", project, err)
	}
	if err := writeFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("filestore: write %s: %w", project, err)
	}
	return nil
}

// Delete removes the stored project. Deleting a missing project is a no-op.
func (s *Store) Delete(ctx context.Context, project string) error {
	path, err := s.path(project)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("filestore: delete %s: %w", project, err)
	}
	return nil
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		_ = tmp.Close()
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	committed = true
	return nil
}
