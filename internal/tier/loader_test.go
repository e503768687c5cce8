package tier

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeTableFile(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadTableEmptyPathReturnsDefault(t *testing.T) {
	table, err := LoadTable("")
	require.NoError(t, err)

	points, ok := table.Points("HT1")
	require.True(t, ok)
	require.Equal(t, 60, points)
}

func TestLoadTableYAML(t *testing.T) {
	path := writeTableFile(t, "tiers.yaml", "tiers:\n  HT1: 100\n  LT1: 50\n")

	table, err := LoadTable(path)
	require.NoError(t, err)

	points, ok := table.Points("HT1")
	require.True(t, ok)
	require.Equal(t, 100, points)

	// Overrides replace the default table entirely.
	_, ok = table.Points("HT2")
	require.False(t, ok)
}

func TestLoadTableJSON(t *testing.T) {
	path := writeTableFile(t, "tiers.json", `{"tiers": {"HT1": 90, "LT1": 40}}`)

	table, err := LoadTable(path)
	require.NoError(t, err)

	points, ok := table.Points("LT1")
	require.True(t, ok)
	require.Equal(t, 40, points)
}

func TestLoadTableTOML(t *testing.T) {
	path := writeTableFile(t, "tiers.toml", "[tiers]\nHT1 = 80\nLT1 = 30\n")

	table, err := LoadTable(path)
	require.NoError(t, err)

	points, ok := table.Points("ht1")
	require.True(t, ok)
	require.Equal(t, 80, points)
}

func TestLoadTableUnsupportedExtension(t *testing.T) {
	path := writeTableFile(t, "tiers.ini", "tiers=nope")

	_, err := LoadTable(path)
	require.Error(t, err)
}

func TestLoadTableMissingFile(t *testing.T) {
	_, err := LoadTable(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestLoadTableWithoutTiersBlock(t *testing.T) {
	path := writeTableFile(t, "tiers.yaml", "other: {}\n")

	_, err := LoadTable(path)
	require.Error(t, err)
}
