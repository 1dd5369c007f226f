package session

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jonathan/search-runner/internal/artifacts"
	"github.com/jonathan/search-runner/internal/store"
)

func TestName(t *testing.T) {
	job := store.Job{ID: "20260830120000-ab12cd34"}
	assert.Equal(t, "job-20260830120000-ab12cd34", Name(job))
}

func TestAttachCommand(t *testing.T) {
	tm := NewTmux("", "", t.TempDir(), artifacts.NewDir(t.TempDir()))
	job := store.Job{ID: "abc", SearchSlug: "desk-deals"}
	assert.Equal(t, "tmux attach-session -t job-abc", tm.AttachCommand(job))
}

func TestNewTmuxDefaults(t *testing.T) {
	tm := NewTmux("", "", "", nil)
	assert.Equal(t, "tmux", tm.Bin)
	assert.Equal(t, DefaultCommand, tm.Command)
}

func TestCommandExpansion(t *testing.T) {
	artifactRoot := t.TempDir()
	tm := NewTmux("tmux", "agent --task {payload} --out {artifact} --tag {slug}/{job}",
		t.TempDir(), artifacts.NewDir(artifactRoot))

	job := store.Job{ID: "j1", SearchSlug: "desk-deals"}
	expanded := tm.expand(job, "/tmp/payload.md")

	assert.Contains(t, expanded, "--task /tmp/payload.md")
	assert.Contains(t, expanded, "--out "+filepath.Join(artifactRoot, "desk-deals", "j1.md"))
	assert.Contains(t, expanded, "--tag desk-deals/j1")
}
