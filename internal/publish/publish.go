package publish

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"goals-cli/internal/model"
)

type WriteOptions struct {
	Title     string
	Overwrite bool
	Now       time.Time
}

type WriteResult struct {
	Written []string `json:"written"`
}

// WriteGoals renders the list as Markdown into the file at toPath, creating parent directories.
func WriteGoals(list []model.Goal, toPath string, opt WriteOptions) (WriteResult, error) {
	toPath = strings.TrimSpace(toPath)
	if toPath == "" {
		return WriteResult{}, errors.New("missing --to")
	}
	outPath := filepath.Clean(toPath)
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return WriteResult{}, err
	}

	md := RenderMarkdown(list, RenderOptions{Title: opt.Title, GeneratedAt: opt.Now})
	if err := writeFile(outPath, []byte(md), opt.Overwrite); err != nil {
		return WriteResult{}, err
	}
	return WriteResult{Written: []string{outPath}}, nil
}

func writeFile(path string, b []byte, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return errors.New("file exists (use --overwrite): " + path)
		}
	}
	return os.WriteFile(path, b, 0o644)
}
