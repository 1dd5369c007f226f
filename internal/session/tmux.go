package session

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/jonathan/search-runner/internal/artifacts"
	"github.com/jonathan/search-runner/internal/store"
)

// DefaultCommand copies the payload to the artifact location. Real
// deployments point the template at whatever tool interprets the payload.
const DefaultCommand = "cat {payload} > {artifact}"

// Tmux runs job payloads inside detached tmux sessions.
type Tmux struct {
	// Bin is the tmux binary, "tmux" unless overridden.
	Bin string
	// Command is the shell command template run inside the session.
	// {payload}, {artifact}, {slug} and {job} are expanded before launch.
	Command string
	// PromptDir is where payload files are written before launch.
	PromptDir string
	// Artifacts resolves the expected artifact path for a job.
	Artifacts *artifacts.Dir
}

// NewTmux creates a tmux-backed supervisor
func NewTmux(bin, command, promptDir string, store *artifacts.Dir) *Tmux {
	if bin == "" {
		bin = "tmux"
	}
	if command == "" {
		command = DefaultCommand
	}
	return &Tmux{Bin: bin, Command: command, PromptDir: promptDir, Artifacts: store}
}

// Launch writes the payload to a prompt file and starts a detached
// session running the expanded command template.
func (t *Tmux) Launch(ctx context.Context, job store.Job, payload string) error {
	if err := os.MkdirAll(t.PromptDir, 0o755); err != nil {
		return fmt.Errorf("failed to create prompt dir: %w", err)
	}
	promptPath := filepath.Join(t.PromptDir, Name(job)+".md")
	if err := os.WriteFile(promptPath, []byte(payload), 0o644); err != nil {
		return fmt.Errorf("failed to write payload file: %w", err)
	}
	if err := t.Artifacts.EnsureDir(job.SearchSlug); err != nil {
		return err
	}

	command := t.expand(job, promptPath)
	cmd := exec.CommandContext(ctx, t.Bin,
		"new-session", "-d", "-s", Name(job), "--", "sh", "-c", command)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("failed to launch session %s: %v: %s",
			Name(job), err, strings.TrimSpace(string(out)))
	}
	return nil
}

// Alive queries the tmux server for the job's session
func (t *Tmux) Alive(ctx context.Context, job store.Job) bool {
	// "=" forces an exact name match instead of tmux's prefix matching.
	cmd := exec.CommandContext(ctx, t.Bin, "has-session", "-t", "="+Name(job))
	return cmd.Run() == nil
}

// Terminate kills the job's session if it still exists
func (t *Tmux) Terminate(ctx context.Context, job store.Job) error {
	if !t.Alive(ctx, job) {
		return nil
	}
	cmd := exec.CommandContext(ctx, t.Bin, "kill-session", "-t", "="+Name(job))
	if out, err := cmd.CombinedOutput(); err != nil {
		// The session may have exited between the liveness check and the
		// kill; that race is not an error.
		if !t.Alive(ctx, job) {
			return nil
		}
		return fmt.Errorf("failed to kill session %s: %v: %s",
			Name(job), err, strings.TrimSpace(string(out)))
	}
	return nil
}

// AttachCommand returns the command a user runs to re-attach to the session
func (t *Tmux) AttachCommand(job store.Job) string {
	return fmt.Sprintf("%s attach-session -t %s", t.Bin, Name(job))
}

func (t *Tmux) expand(job store.Job, promptPath string) string {
	return strings.NewReplacer(
		"{payload}", promptPath,
		"{artifact}", t.Artifacts.Path(job.SearchSlug, job.ID),
		"{slug}", job.SearchSlug,
		"{job}", job.ID,
	).Replace(t.Command)
}
