package vcs

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"gallery-tools/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePorcelain(t *testing.T) {
	out := strings.Join([]string{
		" M src/components/Portfolio.tsx",
		"M  index.html",
		"AM src/components/New.tsx",
		"A  src/assets/Olivia and Andrew.jpg",
		"?? \"src/assets/Laura & Trevor.jpg\"",
		"?? \"src/assets/Caf\\303\\251 Noir.jpg\"",
		" D src/assets/old.jpg",
		"R  docs/a.md -> docs/b.md",
		"UU package.json",
		"",
	}, "\n")

	cs := ParsePorcelain(out)
	assert.Equal(t, []string{"src/components/Portfolio.tsx", "index.html", "src/components/New.tsx", "package.json"}, cs.Modified)
	assert.Equal(t, []string{"src/assets/Olivia and Andrew.jpg", "src/assets/Laura & Trevor.jpg", "src/assets/Café Noir.jpg"}, cs.Added)
	assert.Equal(t, []string{"src/assets/old.jpg"}, cs.Deleted)
	assert.Equal(t, []string{"docs/b.md"}, cs.Renamed)
	assert.False(t, cs.Empty())

	assert.True(t, ParsePorcelain("").Empty())
}

type call struct {
	name string
	args []string
}

type fakeRunner struct {
	calls   []call
	outputs map[string]string
	fail    map[string]bool
}

func (f *fakeRunner) Run(_ context.Context, _ string, name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, call{name: name, args: args})
	key := strings.Join(args, " ")
	if f.fail[key] {
		return nil, errors.New("exit status 128")
	}
	return []byte(f.outputs[key]), nil
}

func TestGit_WithFakeRunner(t *testing.T) {
	r := &fakeRunner{
		outputs: map[string]string{
			"status --porcelain": "?? a.txt\n M b.txt\n",
			"diff --stat":        " b.txt | 2 +-\n",
			"commit -m Update 1 file, Add 1 file": "[main abc123] Update 1 file, Add 1 file\n",
		},
		fail: map[string]bool{},
	}
	g := &Git{Dir: "/site", Runner: r}
	ctx := context.Background()

	require.NoError(t, g.CheckRepo(ctx))

	cs, err := g.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.ChangeSet{Added: []string{"a.txt"}, Modified: []string{"b.txt"}}, cs)

	assert.Equal(t, " b.txt | 2 +-\n", g.DiffStat(ctx), "falls back to unstaged stat")

	require.NoError(t, g.AddAll(ctx))
	out, err := g.Commit(ctx, "Update 1 file, Add 1 file")
	require.NoError(t, err)
	assert.Contains(t, out, "abc123")
	_, err = g.Push(ctx)
	require.NoError(t, err)

	last := r.calls[len(r.calls)-2]
	assert.Equal(t, []string{"commit", "-m", "Update 1 file, Add 1 file"}, last.args, "message is passed as one argument")

	r.fail["rev-parse --git-dir"] = true
	assert.True(t, errors.Is(g.CheckRepo(ctx), ErrNotRepository))
}

func TestGit_RealRepository(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	dir := t.TempDir()
	t.Setenv("GIT_AUTHOR_NAME", "Test")
	t.Setenv("GIT_AUTHOR_EMAIL", "test@example.com")
	t.Setenv("GIT_COMMITTER_NAME", "Test")
	t.Setenv("GIT_COMMITTER_EMAIL", "test@example.com")

	g := NewGit(dir)
	ctx := context.Background()
	assert.True(t, errors.Is(g.CheckRepo(ctx), ErrNotRepository))

	_, err := ExecRunner{}.Run(ctx, dir, "git", "init", "-q")
	require.NoError(t, err)
	require.NoError(t, g.CheckRepo(ctx))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "Laura & Trevor.txt"), []byte("hi"), 0644))
	cs, err := g.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Laura & Trevor.txt"}, cs.Added)

	require.NoError(t, g.AddAll(ctx))
	_, err = g.Commit(ctx, "Add Laura & Trevor notes")
	require.NoError(t, err)

	cs, err = g.Status(ctx)
	require.NoError(t, err)
	assert.True(t, cs.Empty())
}
