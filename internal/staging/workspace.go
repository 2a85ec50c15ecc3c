package staging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"pipcast/internal/fileutil"
)

// Workspace is a directory exclusively owned by one invocation.
type Workspace struct {
	ID  string
	Dir string
}

// New creates the workspace root/id.
func New(root, id string) (*Workspace, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, errors.New("workspace root required")
	}
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return nil, fmt.Errorf("invalid workspace id %q", id)
	}
	dir := filepath.Join(root, id)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace root: %w", err)
	}
	if err := os.Mkdir(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	return &Workspace{ID: id, Dir: dir}, nil
}

// Path returns the location of name inside the workspace.
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.Dir, filepath.Base(name))
}

// StageReader writes r into the workspace as name, capped at limit bytes.
func (w *Workspace) StageReader(name string, r io.Reader, limit int64) (string, int64, error) {
	dst := w.Path(name)
	n, err := fileutil.WriteStream(dst, r, limit)
	if err != nil {
		return "", n, fmt.Errorf("stage %s: %w", name, err)
	}
	return dst, n, nil
}

// StageFile copies the file at src into the workspace as name.
func (w *Workspace) StageFile(name, src string, limit int64) (string, int64, error) {
	dst := w.Path(name)
	n, err := fileutil.CopyFileLimit(src, dst, limit)
	if err != nil {
		return "", n, fmt.Errorf("stage %s: %w", name, err)
	}
	return dst, n, nil
}

// Remove deletes the workspace and everything in it.
func (w *Workspace) Remove() error {
	if w == nil || w.Dir == "" {
		return nil
	}
	return os.RemoveAll(w.Dir)
}
