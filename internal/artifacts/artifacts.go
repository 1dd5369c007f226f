// Package artifacts stores the text output of jobs on the local
// filesystem, one file per (search, job) pair. Files are written by the
// supervised session itself; the runner only reads, sizes, and deletes
// them.
package artifacts

import (
	"fmt"
	"os"
	"path/filepath"
)

// Dir is a directory-backed artifact store rooted at Root.
type Dir struct {
	Root string
}

// NewDir creates an artifact store rooted at the given directory
func NewDir(root string) *Dir {
	return &Dir{Root: root}
}

// Path returns the absolute path an artifact is expected at. The session
// command is launched with this path so the payload can write its output
// directly to the right place.
func (d *Dir) Path(slug, jobID string) string {
	return filepath.Join(d.Root, filepath.Clean(slug), filepath.Clean(jobID)+".md")
}

// EnsureDir creates the directory an artifact for the search would live in
func (d *Dir) EnsureDir(slug string) error {
	if err := os.MkdirAll(filepath.Join(d.Root, filepath.Clean(slug)), 0o755); err != nil {
		return fmt.Errorf("failed to create artifact dir for %s: %w", slug, err)
	}
	return nil
}

// Write stores an artifact. Used by tests and by payloads that run
// in-process; supervised sessions write the file themselves.
func (d *Dir) Write(slug, jobID, text string) error {
	if err := d.EnsureDir(slug); err != nil {
		return err
	}
	if err := os.WriteFile(d.Path(slug, jobID), []byte(text), 0o644); err != nil {
		return fmt.Errorf("failed to write artifact %s/%s: %w", slug, jobID, err)
	}
	return nil
}

// Read returns an artifact's content. The second return is false when no
// artifact exists.
func (d *Dir) Read(slug, jobID string) (string, bool, error) {
	data, err := os.ReadFile(d.Path(slug, jobID))
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read artifact %s/%s: %w", slug, jobID, err)
	}
	return string(data), true, nil
}

// Size returns an artifact's size in bytes, or 0 with exists=false when
// no artifact was produced.
func (d *Dir) Size(slug, jobID string) (int64, bool, error) {
	info, err := os.Stat(d.Path(slug, jobID))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to stat artifact %s/%s: %w", slug, jobID, err)
	}
	return info.Size(), true, nil
}

// RemoveAll deletes every artifact belonging to a search
func (d *Dir) RemoveAll(slug string) error {
	if err := os.RemoveAll(filepath.Join(d.Root, filepath.Clean(slug))); err != nil {
		return fmt.Errorf("failed to remove artifacts for %s: %w", slug, err)
	}
	return nil
}
