package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

var ErrNotRepo = errors.New("not inside a git repository")

type CommitResult struct {
	Committed bool   `json:"committed"`
	Root      string `json:"root"`
	Path      string `json:"path"`
}

// CommitFile stages path and commits it with message. Committed is false when the file has no
// changes. It refuses to run while a merge or rebase is in progress.
func CommitFile(ctx context.Context, path, message string) (CommitResult, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return CommitResult{}, err
	}
	dir := filepath.Dir(abs)

	root, ok := RepoRoot(ctx, dir)
	if !ok {
		return CommitResult{}, fmt.Errorf("%w: %s", ErrNotRepo, dir)
	}
	if kind, err := InProgress(dir); err != nil {
		return CommitResult{}, err
	} else if kind != "" {
		return CommitResult{}, fmt.Errorf("git %s in progress; resolve first", kind)
	}

	// Temp dirs on macOS resolve through /private, and git reports the resolved root.
	if v, err := filepath.EvalSymlinks(abs); err == nil {
		abs = v
	}
	if v, err := filepath.EvalSymlinks(root); err == nil {
		root = v
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return CommitResult{}, err
	}
	res := CommitResult{Root: root, Path: rel}

	if _, err := runGit(ctx, root, "add", "--", rel); err != nil {
		return res, err
	}
	staged, err := runGit(ctx, root, "diff", "--cached", "--name-only", "--", rel)
	if err != nil {
		return res, err
	}
	if strings.TrimSpace(staged) == "" {
		return res, nil
	}

	msg := strings.TrimSpace(message)
	if msg == "" {
		msg = fmt.Sprintf("goals: publish (%s)", time.Now().UTC().Format(time.RFC3339))
	}
	// Only the published file goes into the commit, whatever else is staged.
	if _, err := runGit(ctx, root, "commit", "-m", msg, "--", rel); err != nil {
		return res, err
	}
	res.Committed = true
	return res, nil
}
