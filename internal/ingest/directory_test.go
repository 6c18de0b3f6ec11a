package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/housing-reconciler/constants"
)

func touch(t *testing.T, path string) {
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestDiscover(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "invoices.csv"))
	touch(t, filepath.Join(root, "employees_2024-02.xlsx"))
	touch(t, filepath.Join(root, "employees_2024-03.xlsx"))
	touch(t, filepath.Join(root, "sub", "properties-march.xlsx"))
	touch(t, filepath.Join(root, "notes.txt"))
	touch(t, filepath.Join(root, "budget.xlsx"))
	touch(t, filepath.Join(root, ".cache", "employees.xlsx"))

	inputs, results, stats, err := Discover(root, true)
	require.NoError(t, err)

	assert.Equal(t, []Input{
		{Path: filepath.Join(root, "sub", "properties-march.xlsx"), Collection: constants.Properties},
		{Path: filepath.Join(root, "employees_2024-03.xlsx"), Collection: constants.Employees},
		{Path: filepath.Join(root, "invoices.csv"), Collection: constants.Invoices},
	}, inputs)
	require.Len(t, results, 2)
	assert.Equal(t, filepath.Join(root, "budget.xlsx"), results[0].Path)
	assert.Equal(t, filepath.Join(root, "employees_2024-02.xlsx"), results[1].Path)
	assert.Contains(t, results[1].Err, "superseded")
	assert.Equal(t, uint32(4), stats.Matched)
	assert.Equal(t, uint32(2), stats.Ignored)
}

func TestDiscoverNewestNameWinsAcrossDirectories(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "employees_2024.xlsx"))
	touch(t, filepath.Join(root, "z", "employees_2023.xlsx"))

	inputs, results, _, err := Discover(root, true)
	require.NoError(t, err)

	require.Len(t, inputs, 1)
	assert.Equal(t, filepath.Join(root, "employees_2024.xlsx"), inputs[0].Path)
	require.Len(t, results, 1)
	assert.Equal(t, filepath.Join(root, "z", "employees_2023.xlsx"), results[0].Path)
}

func TestDiscoverRequiresRoot(t *testing.T) {
	_, _, _, err := Discover(" ", true)
	assert.Error(t, err)
}

func TestAllowedExt(t *testing.T) {
	assert.True(t, AllowedExt(".XLSX"))
	assert.True(t, AllowedExt("csv"))
	assert.False(t, AllowedExt(".pdf"))
}
