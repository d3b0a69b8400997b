package yolostream

import (
	"errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultClassTable(t *testing.T) {

	tbl := DefaultClassTable()

	require.Equal(t, 80, tbl.Len())

	name, err := tbl.Name(0)
	require.NoError(t, err)
	assert.Equal(t, "person", name)

	name, err = tbl.Name(79)
	require.NoError(t, err)
	assert.Equal(t, "toothbrush", name)

	// shared instance
	assert.Same(t, tbl, DefaultClassTable())
}

func TestClassTableOutOfRange(t *testing.T) {

	tbl := NewClassTable([]string{"cat", "dog"})

	for _, id := range []int{-1, 2, 100} {
		_, err := tbl.Name(id)
		assert.True(t, errors.Is(err, ErrClassIndexOutOfRange), "id %d", id)
	}

	assert.Equal(t, 1, tbl.Index("dog"))
	assert.Equal(t, -1, tbl.Index("bird"))
}

func TestReadClassTable(t *testing.T) {

	tbl, err := ReadClassTable(strings.NewReader("  cat \ndog\n\n\n"))
	require.NoError(t, err)

	assert.Equal(t, []string{"cat", "dog"}, tbl.Names())

	_, err = ReadClassTable(strings.NewReader("\n\n"))
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

func TestLoadClassTable(t *testing.T) {

	file := filepath.Join(t.TempDir(), "labels.txt")
	require.NoError(t, os.WriteFile(file, []byte("a\nb\nc\n"), 0o600))

	tbl, err := LoadClassTable(file)
	require.NoError(t, err)
	assert.Equal(t, 3, tbl.Len())

	_, err = LoadClassTable(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestClassTableNamesIsCopy(t *testing.T) {

	tbl := NewClassTable([]string{"cat"})
	names := tbl.Names()
	names[0] = "dog"

	name, err := tbl.Name(0)
	require.NoError(t, err)
	assert.Equal(t, "cat", name)
}
