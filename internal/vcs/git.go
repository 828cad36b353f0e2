package vcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"gallery-tools/internal/models"

	log "github.com/sirupsen/logrus"
)

// ErrNotRepository is returned when the working directory is not inside a git work tree.
var ErrNotRepository = errors.New("not a git repository")

// Runner executes a program and returns its standard output.
type Runner interface {
	Run(ctx context.Context, dir, name string, args ...string) ([]byte, error)
}

// ExecRunner runs programs with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = strings.TrimSpace(stdout.String())
		}
		return stdout.Bytes(), fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, msg)
	}
	return stdout.Bytes(), nil
}

// Git drives the git CLI in one working tree.
type Git struct {
	Dir    string
	Runner Runner
}

// NewGit returns a Git for dir using the real git binary.
func NewGit(dir string) *Git {
	return &Git{Dir: dir, Runner: ExecRunner{}}
}

func (g *Git) git(ctx context.Context, args ...string) ([]byte, error) {
	log.Debugf("git %s", strings.Join(args, " "))
	return g.Runner.Run(ctx, g.Dir, "git", args...)
}

// CheckRepo returns ErrNotRepository unless Dir is inside a git work tree.
func (g *Git) CheckRepo(ctx context.Context) error {
	if _, err := g.git(ctx, "rev-parse", "--git-dir"); err != nil {
		return fmt.Errorf("%w: %v", ErrNotRepository, err)
	}
	return nil
}

// Status parses `git status --porcelain` into a change set.
func (g *Git) Status(ctx context.Context) (models.ChangeSet, error) {
	out, err := g.git(ctx, "status", "--porcelain")
	if err != nil {
		return models.ChangeSet{}, err
	}
	return ParsePorcelain(string(out)), nil
}

// DiffStat prefers the staged diff and falls back to the unstaged one. Errors yield "".
func (g *Git) DiffStat(ctx context.Context) string {
	if out, err := g.git(ctx, "diff", "--staged", "--stat"); err == nil && strings.TrimSpace(string(out)) != "" {
		return string(out)
	}
	out, err := g.git(ctx, "diff", "--stat")
	if err != nil {
		log.WithError(err).Debug("git diff --stat failed")
		return ""
	}
	return string(out)
}

// AddAll stages everything under Dir.
func (g *Git) AddAll(ctx context.Context) error {
	_, err := g.git(ctx, "add", ".")
	return err
}

// Commit records the staged changes with message.
func (g *Git) Commit(ctx context.Context, message string) (string, error) {
	out, err := g.git(ctx, "commit", "-m", message)
	return string(out), err
}

// Push pushes the current branch to its upstream.
func (g *Git) Push(ctx context.Context) (string, error) {
	out, err := g.git(ctx, "push")
	return string(out), err
}

// ParsePorcelain classifies `git status --porcelain` (v1) lines. Untracked
// files count as added; quoted paths are unquoted; renames keep the new path.
func ParsePorcelain(output string) models.ChangeSet {
	var cs models.ChangeSet
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimRight(line, "\r")
		if len(line) < 4 {
			continue
		}
		status, file := line[:2], line[3:]

		switch {
		case strings.Contains(status, "R"):
			if i := strings.Index(file, " -> "); i >= 0 {
				file = file[i+len(" -> "):]
			}
			cs.Renamed = append(cs.Renamed, unquotePath(file))
		case strings.Contains(status, "M"), strings.Contains(status, "U"):
			cs.Modified = append(cs.Modified, unquotePath(file))
		case strings.Contains(status, "A"), strings.Contains(status, "C"), status == "??":
			cs.Added = append(cs.Added, unquotePath(file))
		case strings.Contains(status, "D"):
			cs.Deleted = append(cs.Deleted, unquotePath(file))
		}
	}
	return cs
}

func unquotePath(p string) string {
	if len(p) >= 2 && strings.HasPrefix(p, `"`) && strings.HasSuffix(p, `"`) {
		if s, err := strconv.Unquote(p); err == nil {
			return s
		}
		return strings.Trim(p, `"`)
	}
	return p
}
