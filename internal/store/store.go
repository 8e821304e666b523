package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

const (
	localDirName   = ".goals"
	sqliteFileName = "goals.sqlite"
	lockFileName   = "goals.lock"
)

// Store is a workspace directory holding the goal database and its writer lock.
type Store struct {
	Dir string
}

// DiscoverDir walks up from start looking for a project-local .goals directory. The config
// directory (~/.goals) is not a project directory and is skipped.
func DiscoverDir(start string) (string, bool) {
	cfgDir, _ := ConfigDir()
	dir := start
	for {
		candidate := filepath.Join(dir, localDirName)
		if st, err := os.Stat(candidate); err == nil && st.IsDir() && !samePath(candidate, cfgDir) {
			return candidate, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

func samePath(a, b string) bool {
	if b == "" {
		return false
	}
	return filepath.Clean(a) == filepath.Clean(b)
}

func NormalizeWorkspaceName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("workspace name is empty")
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", errors.New("workspace name must be a plain directory name")
	}
	return name, nil
}

func WorkspaceDir(name string) (string, error) {
	name, err := NormalizeWorkspaceName(name)
	if err != nil {
		return "", err
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "workspaces", name), nil
}

func (s Store) Ensure() error {
	return os.MkdirAll(s.Dir, 0o755)
}

func (s Store) SQLitePath() string {
	return filepath.Join(filepath.Clean(s.Dir), sqliteFileName)
}

func (s Store) LockPath() string {
	return filepath.Join(filepath.Clean(s.Dir), lockFileName)
}

// Open ensures the directory exists and opens its goal database.
func (s Store) Open(ctx context.Context) (*SQLiteStore, error) {
	if strings.TrimSpace(s.Dir) == "" {
		return nil, errors.New("store: missing dir")
	}
	if err := s.Ensure(); err != nil {
		return nil, err
	}
	return OpenSQLite(ctx, s.SQLitePath())
}
