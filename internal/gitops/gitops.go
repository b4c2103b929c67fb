// Package gitops publishes snapshot files to the git checkout the run
// executes inside.
package gitops

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// defaultTimeout bounds each individual git command, push included.
const defaultTimeout = 2 * time.Minute

// Author is the fixed service identity used for commits. It comes from
// configuration, never from user input.
type Author struct {
	Name  string
	Email string
}

// Result reports the outcome of a publish attempt.
type Result struct {
	NoOp     bool   // working tree showed no net changes; no commit made
	CommitID string // full hash of the created commit, empty on NoOp
}

// ConflictError reports a push that stayed rejected after one re-sync
// with the remote. It is fatal to the run.
type ConflictError struct {
	Message string
	Cause   error
}

func (e *ConflictError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("publish conflict: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("publish conflict: %s", e.Message)
}

func (e *ConflictError) Unwrap() error {
	return e.Cause
}

// Publisher stages, commits, and pushes snapshot files.
type Publisher struct {
	RepoDir string
	Author  Author
	Remote  string        // defaults to "origin"
	Branch  string        // defaults to the current branch
	Timeout time.Duration // per git command; defaults to defaultTimeout
}

// Publish stages only the given paths, commits them with the service
// identity, and pushes. If the working tree shows no net changes for
// those paths it returns a no-op result without creating a commit. A
// rejected push is retried once after re-synchronizing with the remote;
// a second rejection is a ConflictError.
func (p *Publisher) Publish(ctx context.Context, paths []string, message string) (Result, error) {
	if len(paths) == 0 {
		return Result{NoOp: true}, nil
	}

	statusArgs := append([]string{"status", "--porcelain", "--"}, paths...)
	status, err := p.git(ctx, statusArgs...)
	if err != nil {
		return Result{}, err
	}
	if strings.TrimSpace(status) == "" {
		return Result{NoOp: true}, nil
	}

	addArgs := append([]string{"add", "--"}, paths...)
	if _, err := p.git(ctx, addArgs...); err != nil {
		return Result{}, err
	}

	if _, err := p.git(ctx,
		"-c", "user.name="+p.Author.Name,
		"-c", "user.email="+p.Author.Email,
		"commit", "-m", message,
	); err != nil {
		return Result{}, err
	}

	commitID, err := p.git(ctx, "rev-parse", "HEAD")
	if err != nil {
		return Result{}, err
	}

	if _, err := p.git(ctx, "push", p.remote(), "HEAD"); err != nil {
		// The remote may have advanced concurrently; re-sync once.
		if serr := p.SyncRemote(ctx); serr != nil {
			return Result{}, &ConflictError{Message: "re-sync after rejected push failed", Cause: serr}
		}
		if _, err := p.git(ctx, "push", p.remote(), "HEAD"); err != nil {
			return Result{}, &ConflictError{Message: "push rejected twice", Cause: err}
		}
		// The merge commit is now HEAD; report the data commit anyway.
	}

	return Result{CommitID: commitID}, nil
}

// SyncRemote fetches the remote and merges its branch into the working
// copy, allowing unrelated histories the way the scheduled checkout
// sometimes requires.
func (p *Publisher) SyncRemote(ctx context.Context) error {
	if _, err := p.git(ctx, "fetch", p.remote()); err != nil {
		return err
	}
	branch, err := p.branch(ctx)
	if err != nil {
		return err
	}
	_, err = p.git(ctx,
		"-c", "user.name="+p.Author.Name,
		"-c", "user.email="+p.Author.Email,
		"merge", "--allow-unrelated-histories", p.remote()+"/"+branch,
	)
	return err
}

func (p *Publisher) remote() string {
	if p.Remote != "" {
		return p.Remote
	}
	return "origin"
}

func (p *Publisher) branch(ctx context.Context) (string, error) {
	if p.Branch != "" {
		return p.Branch, nil
	}
	return p.git(ctx, "rev-parse", "--abbrev-ref", "HEAD")
}

func (p *Publisher) git(ctx context.Context, args ...string) (string, error) {
	timeout := p.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", append([]string{"-C", p.RepoDir}, args...)...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("git %s: %w: %s", args[0], err, strings.TrimSpace(string(out)))
	}
	return strings.TrimSpace(string(out)), nil
}
