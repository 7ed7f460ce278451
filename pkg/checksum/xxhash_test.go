package checksum

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetFileChecksum(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "a.csv")
	second := filepath.Join(dir, "b.csv")
	third := filepath.Join(dir, "c.csv")
	require.NoError(t, os.WriteFile(first, []byte("x,y,z\n1,2,3\n"), 0644))
	require.NoError(t, os.WriteFile(second, []byte("x,y,z\n1,2,3\n"), 0644))
	require.NoError(t, os.WriteFile(third, []byte("x,y,z\n1,2,4\n"), 0644))

	sumA, err := GetFileChecksum(first)
	require.NoError(t, err)
	sumB, err := GetFileChecksum(second)
	require.NoError(t, err)
	sumC, err := GetFileChecksum(third)
	require.NoError(t, err)

	assert.Len(t, sumA, 16)
	assert.Equal(t, sumA, sumB)
	assert.NotEqual(t, sumA, sumC)

	t.Run("MissingFile", func(t *testing.T) {
		_, err := GetFileChecksum(filepath.Join(dir, "missing.csv"))
		assert.Error(t, err)
	})
}

func TestReaderChecksumMatchesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.csv")
	require.NoError(t, os.WriteFile(path, []byte("payload"), 0644))

	fromFile, err := GetFileChecksum(path)
	require.NoError(t, err)
	fromReader, err := ReaderChecksum(strings.NewReader("payload"))
	require.NoError(t, err)

	assert.Equal(t, fromFile, fromReader)
}

func TestCalculateHash(t *testing.T) {
	assert.Equal(t, CalculateHash([]string{"a", "b"}), CalculateHash([]string{"a", "b"}))
	assert.NotEqual(t, CalculateHash([]string{"a", "b"}), CalculateHash([]string{"b", "a"}))
	// A separator inside a field must not collide with a field boundary.
	assert.NotEqual(t, CalculateHash([]string{"a;b", "c"}), CalculateHash([]string{"a", "b;c"}))
	assert.NotEqual(t, CalculateHash([]string{"ab", ""}), CalculateHash([]string{"a", "b"}))
}

func TestTeeReader(t *testing.T) {
	reader, sum := TeeReader(strings.NewReader("payload"))
	_, err := io.ReadAll(reader)
	require.NoError(t, err)

	expected, err := ReaderChecksum(strings.NewReader("payload"))
	require.NoError(t, err)
	assert.Equal(t, expected, sum())
}
