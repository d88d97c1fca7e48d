package commands

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/ductgallery/internal/foundation/errors"
	"git.home.luguber.info/inful/ductgallery/internal/history"
	helpers "git.home.luguber.info/inful/ductgallery/internal/testutil/testutils"
)

const missingTool = "ductgallery-test-missing-plot-tool"

const localRegistry = `examples:
  - title: Local Demo
    source_repo: https://github.com/con/duct
    info_file: examples/demo/info.json
    tags: [local, demo]
    description: Logs kept next to the registry.
`

const brokenRegistry = `examples:
  - title: Gone
    info_file: examples/missing/info.json
`

// workspace creates a registry directory with one local example and makes it
// the working directory so relative defaults land inside it.
func workspace(t *testing.T, registry string) (string, *CLI) {
	t.Helper()
	dir := t.TempDir()
	logs := filepath.Join(dir, "examples", "demo")
	require.NoError(t, os.MkdirAll(logs, 0o750))
	manifest := `{"command": "sleep 1", "output_paths": {
		"usage": "examples/demo/usage.json",
		"stdout": "examples/demo/stdout",
		"stderr": "examples/demo/stderr"}}`
	require.NoError(t, os.WriteFile(filepath.Join(logs, "info.json"), []byte(manifest), 0o600))
	for _, name := range []string{"usage.json", "stdout", "stderr"} {
		require.NoError(t, os.WriteFile(filepath.Join(logs, name), []byte("{}"), 0o600))
	}
	registryPath := filepath.Join(dir, "con-duct-gallery.yaml")
	require.NoError(t, os.WriteFile(registryPath, []byte(registry), 0o600))
	t.Chdir(dir)
	return dir, &CLI{Config: registryPath}
}

func testGlobal() (*Global, *bytes.Buffer) {
	out := &bytes.Buffer{}
	return &Global{Logger: slog.New(slog.NewTextHandler(io.Discard, nil)), Stdout: out}, out
}

func exitCode(err error) int {
	return ferrors.NewCLIErrorAdapter(false, slog.New(slog.NewTextHandler(io.Discard, nil))).ExitCodeFor(err)
}

func TestGenerate_WritesGallery(t *testing.T) {
	dir, cli := workspace(t, localRegistry)
	global, out := testGlobal()
	cmd := &GenerateCmd{Tool: missingTool}

	require.NoError(t, cmd.Run(context.Background(), global, cli))

	readme, err := os.ReadFile(filepath.Join(dir, "README.md"))
	require.NoError(t, err)
	assert.Contains(t, string(readme), "# con/duct Examples Gallery")
	assert.Contains(t, string(readme), "Local Demo")
	assert.Contains(t, out.String(), "Generated gallery with 1 examples, 2 tags")
	assert.Contains(t, out.String(), "1 plots could not be generated")
	assert.Contains(t, out.String(), "pip install con-duct")

	_, err = os.Stat(filepath.Join(dir, "logs"))
	assert.True(t, os.IsNotExist(err), "local examples are never copied into the cache")
}

func TestGenerate_UnchangedGalleryIsNotRewritten(t *testing.T) {
	dir, cli := workspace(t, localRegistry)
	global, _ := testGlobal()
	cmd := &GenerateCmd{Tool: missingTool}

	require.NoError(t, cmd.Run(context.Background(), global, cli))
	first, err := os.ReadFile(filepath.Join(dir, "README.md"))
	require.NoError(t, err)

	require.NoError(t, cmd.Run(context.Background(), global, cli))
	second, err := os.ReadFile(filepath.Join(dir, "README.md"))
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}

func TestGenerate_DryRunTouchesNothing(t *testing.T) {
	dir, cli := workspace(t, localRegistry)
	global, out := testGlobal()
	cmd := &GenerateCmd{Tool: missingTool, DryRun: true, HistoryDB: filepath.Join(dir, "history.db")}

	require.NoError(t, cmd.Run(context.Background(), global, cli))

	for _, name := range []string{"README.md", "images", "logs", "history.db"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.True(t, os.IsNotExist(err), "%s must not be created by a dry run", name)
	}
	assert.Contains(t, out.String(), "[dry run] Generated gallery with 1 examples")
}

func TestGenerate_AllExamplesFailed(t *testing.T) {
	dir, cli := workspace(t, brokenRegistry)
	global, _ := testGlobal()

	err := (&GenerateCmd{Tool: missingTool}).Run(context.Background(), global, cli)
	require.Error(t, err)
	assert.Equal(t, ferrors.ExitAllFailed, exitCode(err))

	_, statErr := os.Stat(filepath.Join(dir, "README.md"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestGenerate_ConfigurationErrors(t *testing.T) {
	t.Run("missing registry", func(t *testing.T) {
		_, cli := workspace(t, localRegistry)
		cli.Config = filepath.Join(t.TempDir(), "absent.yaml")
		global, _ := testGlobal()
		err := (&GenerateCmd{}).Run(context.Background(), global, cli)
		assert.Equal(t, ferrors.ExitConfig, exitCode(err))
	})
	t.Run("invalid registry", func(t *testing.T) {
		_, cli := workspace(t, "examples:\n  - title: Bad\n    info_file: info.txt\n")
		global, _ := testGlobal()
		err := (&GenerateCmd{}).Run(context.Background(), global, cli)
		assert.Equal(t, ferrors.ExitConfig, exitCode(err))
	})
}

func TestGenerate_UnwritableOutput(t *testing.T) {
	dir, cli := workspace(t, localRegistry)
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("file"), 0o600))
	global, _ := testGlobal()

	err := (&GenerateCmd{Tool: missingTool, Output: filepath.Join(blocker, "README.md")}).Run(context.Background(), global, cli)
	require.Error(t, err)
	assert.Equal(t, ferrors.ExitFileSystem, exitCode(err))
}

func TestGenerate_UnwritableOutputStillRecordsRun(t *testing.T) {
	dir, cli := workspace(t, localRegistry)
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("file"), 0o600))
	global, _ := testGlobal()
	dbPath := filepath.Join(dir, "history.db")
	metricsPath := filepath.Join(dir, "ductgallery.prom")
	cmd := &GenerateCmd{
		Tool:        missingTool,
		Output:      filepath.Join(blocker, "README.md"),
		HistoryDB:   dbPath,
		MetricsFile: metricsPath,
	}

	err := cmd.Run(context.Background(), global, cli)
	require.Error(t, err)
	assert.Equal(t, ferrors.ExitFileSystem, exitCode(err))

	prom, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(prom), "ductgallery_")

	store, err := history.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	runs, err := store.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, history.StatusWriteFailed, runs[0].Status)

	run, err := store.Get(context.Background(), runs[0].ID)
	require.NoError(t, err)
	var stages []history.Stage
	for _, f := range run.Failures {
		stages = append(stages, f.Stage)
	}
	assert.Contains(t, stages, history.StageWrite)
}

func TestGenerate_Interrupted(t *testing.T) {
	_, cli := workspace(t, localRegistry)
	global, _ := testGlobal()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := (&GenerateCmd{Tool: missingTool}).Run(ctx, global, cli)
	require.Error(t, err)
	assert.Equal(t, ferrors.ExitInterrupted, exitCode(err))
}

func TestGenerate_HistoryHTMLAndMetrics(t *testing.T) {
	dir, cli := workspace(t, localRegistry)
	global, _ := testGlobal()
	dbPath := filepath.Join(dir, "history.db")
	cmd := &GenerateCmd{
		Tool:        missingTool,
		HistoryDB:   dbPath,
		HTMLOutput:  filepath.Join(dir, "site", "index.html"),
		MetricsFile: filepath.Join(dir, "ductgallery.prom"),
	}

	require.NoError(t, cmd.Run(context.Background(), global, cli))

	page, err := os.ReadFile(filepath.Join(dir, "site", "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(page), `id="local-demo"`)

	prom, err := os.ReadFile(filepath.Join(dir, "ductgallery.prom"))
	require.NoError(t, err)
	assert.Contains(t, string(prom), "ductgallery_")

	store, err := history.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	runs, err := store.List(context.Background(), 0)
	require.NoError(t, err)
	require.NoError(t, store.Close())
	require.Len(t, runs, 1)
	assert.Equal(t, 1, runs[0].Fetched)
	assert.Equal(t, 1, runs[0].BuildFailures)

	var out bytes.Buffer
	global.Stdout = &out
	require.NoError(t, (&HistoryCmd{DB: dbPath, Limit: 5}).Run(context.Background(), global, cli))
	assert.Contains(t, out.String(), runs[0].ID)

	out.Reset()
	require.NoError(t, (&HistoryCmd{DB: dbPath, RunID: runs[0].ID}).Run(context.Background(), global, cli))
	assert.Contains(t, out.String(), "build failure:")
	assert.Contains(t, out.String(), "Local Demo")
}

func TestGenerate_ResolvesLocalPathsAgainstRepositoryRoot(t *testing.T) {
	_, wt, root := helpers.SetupTestGitRepo(t)
	manifest := `{"output_paths": {"usage": "u.json", "stdout": "out", "stderr": "err"}}`
	helpers.CommitFile(t, wt, "examples/demo/info.json", manifest)
	for _, name := range []string{"u.json", "out", "err"} {
		helpers.CommitFile(t, wt, filepath.Join("examples", "demo", name), "{}")
	}
	commit := helpers.CommitFile(t, wt, "gallery/con-duct-gallery.yaml", localRegistry)
	t.Chdir(filepath.Join(root, "gallery"))

	global, _ := testGlobal()
	dbPath := filepath.Join(root, "gallery", "history.db")
	cli := &CLI{Config: "con-duct-gallery.yaml"}
	require.NoError(t, (&GenerateCmd{Tool: missingTool, HistoryDB: dbPath}).Run(context.Background(), global, cli))

	store, err := history.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	runs, err := store.List(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 0, runs[0].FetchFailures)
	assert.Equal(t, commit, runs[0].Commit)
}

func TestHistory_RequiresDatabase(t *testing.T) {
	_, cli := workspace(t, localRegistry)
	t.Setenv("DUCT_GALLERY_HISTORY_DB", "")
	global, _ := testGlobal()
	err := (&HistoryCmd{}).Run(context.Background(), global, cli)
	assert.Equal(t, ferrors.ExitConfig, exitCode(err))
}

func TestInit(t *testing.T) {
	dir := t.TempDir()
	cli := &CLI{Config: filepath.Join(dir, "con-duct-gallery.yaml")}
	global, out := testGlobal()

	require.NoError(t, (&InitCmd{}).Run(global, cli))
	assert.Contains(t, out.String(), "initialized successfully")
	assert.FileExists(t, cli.Config)

	err := (&InitCmd{}).Run(global, cli)
	assert.Equal(t, ferrors.ExitConfig, exitCode(err))
	require.NoError(t, (&InitCmd{Force: true}).Run(global, cli))
}

func TestWatch_NothingToWatch(t *testing.T) {
	_, cli := workspace(t, localRegistry)
	global, _ := testGlobal()
	err := (&WatchCmd{NoRegistryWatch: true}).Run(context.Background(), global, cli)
	assert.Equal(t, ferrors.ExitConfig, exitCode(err))
}

func TestVersion(t *testing.T) {
	global, out := testGlobal()
	require.NoError(t, VersionCmd{}.Run(global))
	assert.Contains(t, out.String(), "ductgallery")
}

func TestClassify(t *testing.T) {
	assert.NoError(t, classify(nil))
	assert.Equal(t, ferrors.ExitInterrupted, exitCode(classify(fmt.Errorf("run interrupted: %w", context.Canceled))))
	plain := fmt.Errorf("something else")
	assert.Equal(t, plain, classify(plain))
}

func parse(t *testing.T, args ...string) (*CLI, *kong.Context) {
	t.Helper()
	cli := &CLI{}
	parser, err := kong.New(cli, kong.Exit(func(int) { t.Fatal("unexpected exit") }))
	require.NoError(t, err)
	ctx, err := parser.Parse(args)
	require.NoError(t, err)
	return cli, ctx
}

func TestCLIParsing(t *testing.T) {
	cli, ctx := parse(t)
	assert.Equal(t, "generate", ctx.Command())
	assert.Equal(t, "con-duct-gallery.yaml", cli.Config)

	cli, ctx = parse(t, "-c", "gallery.toml", "generate", "--force", "--dry-run", "--tool", "duct", "--http-timeout", "5s")
	assert.Equal(t, "generate", ctx.Command())
	assert.Equal(t, "gallery.toml", cli.Config)
	assert.True(t, cli.Generate.Force)
	assert.True(t, cli.Generate.DryRun)
	assert.Equal(t, "duct", cli.Generate.Tool)
	assert.Equal(t, 5*time.Second, cli.Generate.HTTPTimeout)

	cli, ctx = parse(t, "watch", "--every", "10m", "--image-dir", "plots")
	assert.Equal(t, "watch", ctx.Command())
	assert.Equal(t, 10*time.Minute, cli.Watch.Every)
	assert.Equal(t, 2*time.Second, cli.Watch.Debounce)
	assert.Equal(t, "plots", cli.Watch.ImageDir)

	cli, ctx = parse(t, "history", "abc")
	assert.Equal(t, "history <run-id>", ctx.Command())
	assert.Equal(t, "abc", cli.History.RunID)
	assert.Equal(t, 20, cli.History.Limit)
}
