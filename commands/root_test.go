package commands

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"editortrace/internal/data/store"
)

func writeSampleLog(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "Editor.log")
	content := strings.Join([]string{
		"2025-03-14T09:00:00Z Unity Editor version: 2022.3.10f1",
		"Start importing Assets/Textures/hero.png using Guid(abc123def456) (TextureImporter) -> (artifact id: 'deadbeef01') in 0.75 seconds",
		"2025-03-14T09:00:02Z done",
		"",
	}, "\n")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func runCommand(t *testing.T, args ...string) error {
	t.Helper()
	// Reset state mutated by previous runs.
	forceReparse = false
	timelineLogID = 0
	timelineOutput = "table"
	outputFormat = "summary"
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(context.Background())
}

func TestRootIngestsLogFile(t *testing.T) {
	logPath := writeSampleLog(t)
	dbPath := filepath.Join(t.TempDir(), "trace.db")

	require.NoError(t, runCommand(t, logPath, "--db", dbPath))

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	logID, found, err := st.LatestLogID(context.Background())
	require.NoError(t, err)
	require.True(t, found)

	view := st.View(context.Background(), logID)
	imports, err := view.AllImports()
	require.NoError(t, err)
	require.Len(t, imports, 1)
	assert.Equal(t, "Assets/Textures/hero.png", imports[0].AssetPath)

	header, err := view.Header()
	require.NoError(t, err)
	assert.Equal(t, "2022.3.10f1", header.EditorVersion)
}

func TestRootReusesPreviousParse(t *testing.T) {
	logPath := writeSampleLog(t)
	dbPath := filepath.Join(t.TempDir(), "trace.db")

	require.NoError(t, runCommand(t, logPath, "--db", dbPath))
	require.NoError(t, runCommand(t, logPath, "--db", dbPath))

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	logID, _, err := st.LatestLogID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), logID, "the second run reuses the first parse")

	// A forced run creates a new entry.
	require.NoError(t, runCommand(t, logPath, "--db", dbPath, "--force"))
	logID, _, err = st.LatestLogID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), logID)
}

func TestTimelineCommand(t *testing.T) {
	logPath := writeSampleLog(t)
	dbPath := filepath.Join(t.TempDir(), "trace.db")

	require.NoError(t, runCommand(t, logPath, "--db", dbPath))
	require.NoError(t, runCommand(t, "timeline", "--db", dbPath, "--output", "json"))
}

func TestTimelineWithoutLogsFails(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "trace.db")
	err := runCommand(t, "timeline", "--db", dbPath)
	assert.Error(t, err)
}

func TestRootMissingFile(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "trace.db")
	err := runCommand(t, filepath.Join(t.TempDir(), "absent.log"), "--db", dbPath)
	assert.Error(t, err)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "x.log"), expandPath("~/x.log"))

	abs := expandPath("relative.log")
	assert.True(t, filepath.IsAbs(abs))
}
