package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"goals-cli/internal/model"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// exportDoc is the file format shared by export and import.
type exportDoc struct {
	Version int          `json:"version" yaml:"version"`
	Goals   []model.Goal `json:"goals" yaml:"goals"`
}

const exportVersion = 1

func encodeExport(w io.Writer, doc exportDoc, as string) error {
	switch as {
	case "", "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown export format: %s (want json|yaml)", as)
	}
}

// exportFormatFor picks the format from the file extension; anything unrecognized is JSON.
func exportFormatFor(name string) string {
	switch ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), "."); ext {
	case "yaml", "yml":
		return ext
	default:
		return "json"
	}
}

// decodeExport reads YAML when the file name says so, JSON otherwise.
func decodeExport(name string, b []byte) (exportDoc, error) {
	var doc exportDoc
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &doc); err != nil {
			return exportDoc{}, fmt.Errorf("parse %s: %w", name, err)
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(b))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&doc); err != nil {
			return exportDoc{}, fmt.Errorf("parse %s: %w", name, err)
		}
	}
	if doc.Version != 0 && doc.Version != exportVersion {
		return exportDoc{}, fmt.Errorf("parse %s: unsupported version %d", name, doc.Version)
	}
	return doc, nil
}

func newExportCmd(app *App) *cobra.Command {
	var to string
	var as string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Dump the whole list as JSON or YAML (stdout, or --to FILE)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, app, false)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer s.Close()

			list, err := s.repo.List(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			doc := exportDoc{Version: exportVersion, Goals: list}

			to = strings.TrimSpace(to)
			if to == "" {
				if err := encodeExport(cmd.OutOrStdout(), doc, as); err != nil {
					return writeErr(cmd, err)
				}
				return nil
			}
			if as == "" {
				as = exportFormatFor(to)
			}
			var buf bytes.Buffer
			if err := encodeExport(&buf, doc, as); err != nil {
				return writeErr(cmd, err)
			}
			if err := os.WriteFile(to, buf.Bytes(), 0o644); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{"written": to, "count": len(list)}})
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "Write to this file instead of stdout")
	cmd.Flags().StringVar(&as, "as", "", "File format (json|yaml; default from --to extension, else json)")
	return cmd
}

func newImportCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Replace the whole list with the goals in a JSON or YAML export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := os.ReadFile(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			doc, err := decodeExport(args[0], b)
			if err != nil {
				return writeErr(cmd, err)
			}

			s, err := openSession(cmd, app, true)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer s.Close()

			ctx := cmd.Context()
			list, err := s.repo.Replace(ctx, doc.Goals)
			if err != nil {
				return writeErr(cmd, err)
			}
			s.record(ctx, model.EventGoalImport, 0, map[string]any{"file": args[0], "count": len(list)})
			return writeOut(cmd, app, map[string]any{"data": list})
		},
	}
}
