package storage

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStoreRoundTrip(t *testing.T) {
	root := t.TempDir()
	s, err := NewLocalStore(root)
	require.NoError(t, err)

	for _, folder := range []string{FolderAvatars, FolderThumbnails, FolderAssignments, FolderResources} {
		assert.DirExists(t, filepath.Join(root, folder))
	}

	ref, err := s.Save(FolderAssignments, "../../My Essay (final).txt", strings.NewReader("hello"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref, "assignments/"))
	assert.True(t, strings.HasSuffix(ref, "_My_Essay_final.txt"))

	f, err := s.Open(ref)
	require.NoError(t, err)
	body, err := io.ReadAll(f)
	require.NoError(t, f.Close())
	require.NoError(t, err)
	assert.Equal(t, "hello", string(body))

	require.NoError(t, s.Remove(ref))
	_, err = s.Open(ref)
	assert.ErrorIs(t, err, ErrFileNotFound)

	// already gone, remote and empty references are ignored
	assert.NoError(t, s.Remove(ref))
	assert.NoError(t, s.Remove("https://cdn.example.com/a.pdf"))
	assert.NoError(t, s.Remove(""))
}

func TestLocalStoreRefusesEscapes(t *testing.T) {
	root := t.TempDir()
	s, err := NewLocalStore(root)
	require.NoError(t, err)

	outside := filepath.Join(filepath.Dir(root), "secret.txt")
	require.NoError(t, os.WriteFile(outside, []byte("x"), 0o600))
	t.Cleanup(func() { _ = os.Remove(outside) })

	_, err = s.Open("../secret.txt")
	assert.ErrorIs(t, err, ErrFileNotFound)
	assert.ErrorIs(t, s.Remove("../secret.txt"), ErrFileNotFound)
	assert.FileExists(t, outside)
}

func TestSecureFilename(t *testing.T) {
	assert.Equal(t, "report.pdf", SecureFilename("report.pdf"))
	assert.Equal(t, "passwd", SecureFilename("../../etc/passwd"))
	assert.Equal(t, "evil.exe", SecureFilename(`C:\tmp\evil.exe`))
	assert.Equal(t, "file", SecureFilename("..."))
	assert.Equal(t, "a_b.txt", SecureFilename(" a b.txt "))
}

func TestExtAndIsRemote(t *testing.T) {
	assert.Equal(t, "pdf", Ext("A.PDF"))
	assert.Equal(t, "", Ext("README"))
	assert.True(t, IsRemote("https://example.com/x.png"))
	assert.True(t, IsRemote("http://example.com/x.png"))
	assert.False(t, IsRemote("avatars/x.png"))
}
