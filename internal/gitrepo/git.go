// Package gitrepo commits published goal documents when they live inside a git working tree.
package gitrepo

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

func runGit(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		msg := strings.TrimSpace(string(out))
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("git %s: %s", strings.Join(args, " "), msg)
	}
	return string(out), nil
}

// RepoRoot returns the top of the working tree that contains dir. ok is false outside a repo or
// when git is not installed.
func RepoRoot(ctx context.Context, dir string) (root string, ok bool) {
	out, err := runGit(ctx, dir, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", false
	}
	root = strings.TrimSpace(out)
	return root, root != ""
}
