package gitrepo

import (
	"bufio"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// FindGitDir walks up from start and returns the git directory (e.g. /repo/.git or a linked
// gitdir). It does not invoke the git binary.
func FindGitDir(start string) (gitDir string, ok bool, err error) {
	dir := filepath.Clean(strings.TrimSpace(start))
	if dir == "" {
		return "", false, errors.New("empty start dir")
	}

	for {
		candidate := filepath.Join(dir, ".git")
		st, statErr := os.Stat(candidate)
		switch {
		case statErr == nil && st.IsDir():
			return candidate, true, nil
		case statErr == nil:
			// Worktrees and submodules use a .git file pointing at the real gitdir.
			target, err := readGitdirFile(candidate)
			if err != nil {
				return "", false, err
			}
			if target != "" {
				return target, true, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false, nil
		}
		dir = parent
	}
}

func readGitdirFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		ln := strings.TrimSpace(sc.Text())
		if ln == "" {
			continue
		}
		if !strings.HasPrefix(strings.ToLower(ln), "gitdir:") {
			break
		}
		p := strings.TrimSpace(ln[len("gitdir:"):])
		if p == "" {
			return "", nil
		}
		if !filepath.IsAbs(p) {
			p = filepath.Join(filepath.Dir(path), p)
		}
		return filepath.Clean(p), nil
	}
	return "", sc.Err()
}

// InProgress returns the kind of unfinished git operation (merge|rebase|cherry-pick|revert) in the
// repository holding dir, or "" when there is none.
func InProgress(dir string) (string, error) {
	gitDir, ok, err := FindGitDir(dir)
	if err != nil || !ok {
		return "", err
	}
	markers := []struct{ kind, name string }{
		{"merge", "MERGE_HEAD"},
		{"rebase", "rebase-apply"},
		{"rebase", "rebase-merge"},
		{"cherry-pick", "CHERRY_PICK_HEAD"},
		{"revert", "REVERT_HEAD"},
	}
	for _, m := range markers {
		if _, err := os.Stat(filepath.Join(gitDir, m.name)); err == nil {
			return m.kind, nil
		}
	}
	return "", nil
}
