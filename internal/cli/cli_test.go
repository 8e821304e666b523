package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"goals-cli/internal/goals"
	"goals-cli/internal/model"
	"goals-cli/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func runCLI(t *testing.T, args []string) (stdout []byte, stderr []byte, err error) {
	t.Helper()

	cmd := NewRootCmd()

	var outBuf bytes.Buffer
	var errBuf bytes.Buffer
	cmd.SetOut(&outBuf)
	cmd.SetErr(&errBuf)
	cmd.SetArgs(args)

	e := cmd.Execute()
	return outBuf.Bytes(), errBuf.Bytes(), e
}

// testEnv isolates config and returns a --dir for a fresh store.
func testEnv(t *testing.T) string {
	t.Helper()
	t.Setenv("GOALS_CONFIG_DIR", t.TempDir())
	return filepath.Join(t.TempDir(), ".goals")
}

func mustRun(t *testing.T, dir string, args ...string) []byte {
	t.Helper()
	out, errOut, err := runCLI(t, append([]string{"--dir", dir}, args...))
	require.NoError(t, err, "goals %v: %s", args, errOut)
	return out
}

func decodeData[T any](t *testing.T, b []byte) T {
	t.Helper()
	var env struct {
		Data T `json:"data"`
	}
	require.NoError(t, json.Unmarshal(b, &env), "output: %s", b)
	return env.Data
}

func seed(t *testing.T, dir string, texts ...string) {
	t.Helper()
	for i, text := range texts {
		mustRun(t, dir, "add", strconv.Itoa(i+1), text)
	}
}

func TestAdd_ShiftsRunAndListsResult(t *testing.T) {
	dir := testEnv(t)
	seed(t, dir, "a", "b", "c")

	out := mustRun(t, dir, "add", "2", "new", "goal")
	got := decodeData[[]model.Goal](t, out)
	assert.Equal(t, []model.Goal{
		{Priority: 1, Text: "a"},
		{Priority: 2, Text: "new goal"},
		{Priority: 3, Text: "b"},
		{Priority: 4, Text: "c"},
	}, got)

	// No subcommand lists too.
	out, _, err := runCLI(t, []string{"--dir", dir})
	require.NoError(t, err)
	assert.Len(t, decodeData[[]model.Goal](t, out), 4)
}

func TestAdd_RejectsInvalidInput(t *testing.T) {
	dir := testEnv(t)

	_, errOut, err := runCLI(t, []string{"--dir", dir, "add", "x", "text"})
	require.Error(t, err)
	assert.True(t, goals.IsValidation(err))
	assert.Contains(t, string(errOut), "not a number")

	_, _, err = runCLI(t, []string{"--dir", dir, "add", "0", "text"})
	require.Error(t, err)
	assert.True(t, goals.IsValidation(err))
}

func TestEdit_SwapsAdjacentGoals(t *testing.T) {
	dir := testEnv(t)
	seed(t, dir, "a", "b")

	out := mustRun(t, dir, "edit", "2", "--priority", "1")
	assert.Equal(t, []model.Goal{{Priority: 1, Text: "b"}, {Priority: 2, Text: "a"}}, decodeData[[]model.Goal](t, out))

	out = mustRun(t, dir, "edit", "2", "--text", "renamed")
	assert.Equal(t, "renamed", decodeData[[]model.Goal](t, out)[1].Text)
}

func TestEdit_RequiresAChangeAndAnExistingGoal(t *testing.T) {
	dir := testEnv(t)
	seed(t, dir, "a")

	_, errOut, err := runCLI(t, []string{"--dir", dir, "edit", "1"})
	require.Error(t, err)
	assert.Contains(t, string(errOut), "nothing to change")

	_, errOut, err = runCLI(t, []string{"--dir", dir, "edit", "7", "--text", "x"})
	require.Error(t, err)
	assert.True(t, goals.IsNotFound(err))
	assert.Contains(t, string(errOut), "goal not found: priority 7")
}

func TestMove_UsesOneBasedPositions(t *testing.T) {
	dir := testEnv(t)
	seed(t, dir, "a", "b", "c", "d", "e")

	out := mustRun(t, dir, "move", "4", "2")
	res := decodeData[struct {
		Goal    model.Goal   `json:"goal"`
		Changed bool         `json:"changed"`
		Goals   []model.Goal `json:"goals"`
	}](t, out)
	assert.True(t, res.Changed)
	assert.Equal(t, model.Goal{Priority: 2, Text: "d"}, res.Goal)
	texts := []string{}
	for _, g := range res.Goals {
		texts = append(texts, g.Text)
	}
	assert.Equal(t, []string{"a", "d", "b", "c", "e"}, texts)

	_, _, err := runCLI(t, []string{"--dir", dir, "move", "1", "9"})
	require.Error(t, err)
	assert.True(t, goals.IsValidation(err))
}

func TestDeleteAndClear(t *testing.T) {
	dir := testEnv(t)
	seed(t, dir, "a", "b")

	out := mustRun(t, dir, "delete", "1")
	assert.Equal(t, map[string]any{"priority": float64(1), "deleted": true}, decodeData[map[string]any](t, out))

	out = mustRun(t, dir, "delete", "1")
	assert.Equal(t, false, decodeData[map[string]any](t, out)["deleted"])

	_, errOut, err := runCLI(t, []string{"--dir", dir, "clear"})
	require.Error(t, err)
	assert.Contains(t, string(errOut), "--yes")

	out = mustRun(t, dir, "clear", "--yes")
	assert.Equal(t, true, decodeData[map[string]any](t, out)["deleted"])
	out = mustRun(t, dir, "clear", "--yes")
	assert.Equal(t, false, decodeData[map[string]any](t, out)["deleted"])
}

func TestShow(t *testing.T) {
	dir := testEnv(t)
	seed(t, dir, "a")

	out := mustRun(t, dir, "show", "1")
	assert.Equal(t, model.Goal{Priority: 1, Text: "a"}, decodeData[model.Goal](t, out))

	_, _, err := runCLI(t, []string{"--dir", dir, "show", "2"})
	require.Error(t, err)
	assert.True(t, goals.IsNotFound(err))
}

func TestNormalize_RenumbersAfterDeletes(t *testing.T) {
	dir := testEnv(t)
	seed(t, dir, "a", "b", "c", "d")
	mustRun(t, dir, "delete", "2")
	mustRun(t, dir, "delete", "3")

	out := mustRun(t, dir, "normalize")
	assert.Equal(t, []model.Goal{{Priority: 1, Text: "a"}, {Priority: 2, Text: "d"}}, decodeData[[]model.Goal](t, out))
}

func TestEvents_RecordsMutations(t *testing.T) {
	dir := testEnv(t)
	seed(t, dir, "a", "b")
	mustRun(t, dir, "edit", "2", "--priority", "1")
	mustRun(t, dir, "delete", "9")

	out := mustRun(t, dir, "events")
	evs := decodeData[[]model.Event](t, out)
	require.Len(t, evs, 3, "a delete that found nothing is not recorded")
	assert.Equal(t, model.EventGoalAdd, evs[0].Type)
	assert.Equal(t, model.EventGoalEdit, evs[2].Type)

	out = mustRun(t, dir, "events", "--limit", "1")
	assert.Len(t, decodeData[[]model.Event](t, out), 1)
}

func TestExportImport_YAMLRoundTrip(t *testing.T) {
	dir := testEnv(t)
	seed(t, dir, "a", "b", "c")

	file := filepath.Join(t.TempDir(), "goals.yaml")
	mustRun(t, dir, "export", "--to", file)
	b, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(b), "version: 1")
	assert.Contains(t, string(b), "text: b")

	other := filepath.Join(t.TempDir(), ".goals")
	out := mustRun(t, other, "import", file)
	assert.Len(t, decodeData[[]model.Goal](t, out), 3)
}

func TestExport_UnknownExtensionWritesJSON(t *testing.T) {
	dir := testEnv(t)
	seed(t, dir, "a", "b")

	for _, name := range []string{"goals.txt", "goals", "GOALS.JSON"} {
		file := filepath.Join(t.TempDir(), name)
		mustRun(t, dir, "export", "--to", file)
		b, err := os.ReadFile(file)
		require.NoError(t, err)
		var doc exportDoc
		require.NoError(t, json.Unmarshal(b, &doc), "%s: %s", name, b)
		assert.Len(t, doc.Goals, 2)

		other := filepath.Join(t.TempDir(), ".goals")
		out := mustRun(t, other, "import", file)
		assert.Len(t, decodeData[[]model.Goal](t, out), 2)
	}

	_, _, err := runCLI(t, []string{"--dir", dir, "export", "--to", filepath.Join(t.TempDir(), "g.txt"), "--as", "toml"})
	require.Error(t, err)
}

func TestOpenServeBackend_EphemeralUsesMemory(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "never")

	b, err := openServeBackend(ctx, dir, true)
	require.NoError(t, err)
	defer b.close()
	_, isMem := b.records.(*store.MemoryStore)
	assert.True(t, isMem)

	repo := goals.NewRepository(b.records)
	require.NoError(t, repo.Add(ctx, model.Goal{Priority: 1, Text: "a"}))
	require.NoError(t, repo.Add(ctx, model.Goal{Priority: 1, Text: "b"}))
	list, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []model.Goal{{Priority: 1, Text: "b"}, {Priority: 2, Text: "a"}}, list)

	_, err = b.events.AppendEvent(ctx, model.EventGoalAdd, 1, map[string]any{"text": "b"})
	require.NoError(t, err)
	evs, err := b.events.ReadEvents(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, evs, 1)

	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err), "ephemeral serve must not create %s", dir)
}

func TestOpenServeBackend_PersistentUsesSQLite(t *testing.T) {
	dir := filepath.Join(t.TempDir(), ".goals")
	b, err := openServeBackend(context.Background(), dir, false)
	require.NoError(t, err)
	defer b.close()
	_, isSQLite := b.records.(*store.SQLiteStore)
	assert.True(t, isSQLite)
	assert.FileExists(t, store.Store{Dir: dir}.SQLitePath())
}

func TestImport_RejectsDuplicatePriorities(t *testing.T) {
	dir := testEnv(t)
	seed(t, dir, "keep")

	file := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(file, []byte(`{"version":1,"goals":[{"priority":1,"text":"a"},{"priority":1,"text":"b"}]}`), 0o644))

	_, _, err := runCLI(t, []string{"--dir", dir, "import", file})
	require.Error(t, err)
	assert.True(t, goals.IsValidation(err))

	out := mustRun(t, dir, "list")
	assert.Equal(t, []model.Goal{{Priority: 1, Text: "keep"}}, decodeData[[]model.Goal](t, out))
}

func TestExport_StdoutJSON(t *testing.T) {
	dir := testEnv(t)
	seed(t, dir, "a")

	out := mustRun(t, dir, "export")
	var doc exportDoc
	require.NoError(t, json.Unmarshal(out, &doc))
	assert.Equal(t, exportDoc{Version: 1, Goals: []model.Goal{{Priority: 1, Text: "a"}}}, doc)
}

func TestPublish_MarkdownToStdoutAndFile(t *testing.T) {
	dir := testEnv(t)
	seed(t, dir, "a", "b")

	out := mustRun(t, dir, "publish")
	assert.True(t, strings.HasPrefix(string(out), "# Goals\n"))
	assert.Contains(t, string(out), "- **P2** b")

	file := filepath.Join(t.TempDir(), "goals.md")
	mustRun(t, dir, "publish", "--to", file, "--title", "Mine")
	b, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(b), "# Mine\n"))

	_, _, err = runCLI(t, []string{"--dir", dir, "publish", "--to", file})
	require.Error(t, err)
}

func TestFormatText_RendersTable(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	dir := testEnv(t)
	seed(t, dir, "alpha")

	out := mustRun(t, dir, "--format", "text", "list")
	assert.Contains(t, string(out), "PRIORITY")
	assert.Contains(t, string(out), "alpha")

	out = mustRun(t, dir, "--format", "yaml", "show", "1")
	var doc struct {
		Data model.Goal `yaml:"data"`
	}
	require.NoError(t, yaml.Unmarshal(out, &doc))
	assert.Equal(t, model.Goal{Priority: 1, Text: "alpha"}, doc.Data)
}

func TestDocs(t *testing.T) {
	testEnv(t)

	out, _, err := runCLI(t, []string{"docs"})
	require.NoError(t, err)
	assert.Contains(t, string(out), `"reorganize"`)

	out, _, err = runCLI(t, []string{"docs", "cli", "--raw"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(out), "# CLI"))

	_, _, err = runCLI(t, []string{"docs", "nope"})
	require.Error(t, err)
}

func TestInit_WritesConfigOnce(t *testing.T) {
	dir := testEnv(t)
	cfgPath := filepath.Join(os.Getenv("GOALS_CONFIG_DIR"), "config.yaml")

	out := mustRun(t, dir, "init")
	data := decodeData[map[string]any](t, out)
	assert.Equal(t, true, data["configCreated"])
	assert.Equal(t, cfgPath, data["configPath"])
	_, err := os.Stat(filepath.Join(dir, "goals.sqlite"))
	require.NoError(t, err)

	out = mustRun(t, dir, "init")
	assert.Equal(t, false, decodeData[map[string]any](t, out)["configCreated"])
}

func TestConfigFile_SetsDefaultFormat(t *testing.T) {
	dir := testEnv(t)
	cfgPath := filepath.Join(os.Getenv("GOALS_CONFIG_DIR"), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("format: yaml\n"), 0o644))

	out := mustRun(t, dir, "add", "1", "a")
	var doc struct {
		Data []model.Goal `yaml:"data"`
	}
	require.NoError(t, yaml.Unmarshal(out, &doc), "output: %s", out)
	assert.Equal(t, []model.Goal{{Priority: 1, Text: "a"}}, doc.Data)

	// Flags win over the file.
	out = mustRun(t, dir, "--format", "json", "list")
	assert.Equal(t, `{"data":[{"priority":1,"text":"a"}]}`+"\n", string(out))
}

func TestWorkspace_UseAndList(t *testing.T) {
	testEnv(t)

	_, _, err := runCLI(t, []string{"--workspace", "home", "add", "1", "a"})
	require.NoError(t, err)

	out, _, err := runCLI(t, []string{"workspace", "list"})
	require.NoError(t, err)
	assert.Equal(t, []string{"home"}, decodeData[[]string](t, out))

	_, _, err = runCLI(t, []string{"workspace", "use", "home"})
	require.NoError(t, err)

	// The configured workspace is used without --workspace.
	out, _, err = runCLI(t, []string{"list"})
	require.NoError(t, err)
	assert.Equal(t, []model.Goal{{Priority: 1, Text: "a"}}, decodeData[[]model.Goal](t, out))

	_, _, err = runCLI(t, []string{"workspace", "use", "a/b"})
	require.Error(t, err)
}
