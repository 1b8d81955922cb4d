package upload

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func newStore(t *testing.T, max int64) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "uploads"), "http://localhost:3000/", max)
	require.NoError(t, err)
	return s
}

func TestSavePNG(t *testing.T) {
	s := newStore(t, 0)
	assert.Equal(t, int64(DefaultMaxBytes), s.MaxBytes())

	name, err := s.Save("post-image", bytes.NewReader(pngHeader))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(name, "post-image-"))
	assert.True(t, strings.HasSuffix(name, ".png"))

	got, err := os.ReadFile(filepath.Join(s.Dir(), name))
	require.NoError(t, err)
	assert.Equal(t, pngHeader, got)

	require.NoError(t, s.Remove(name))
	_, err = os.Stat(filepath.Join(s.Dir(), name))
	assert.True(t, os.IsNotExist(err))
	assert.NoError(t, s.Remove(name))
}

func TestSaveGIF(t *testing.T) {
	s := newStore(t, 0)
	name, err := s.Save("avatar", strings.NewReader("GIF89a\x01\x00\x01\x00"))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(name, ".gif"))
}

func TestSaveRejects(t *testing.T) {
	s := newStore(t, 8)

	_, err := s.Save("post-image", strings.NewReader("just some text"))
	assert.ErrorIs(t, err, ErrTooLarge)

	_, err = s.Save("post-image", strings.NewReader("text"))
	assert.ErrorIs(t, err, ErrUnsupportedType)

	_, err = s.Save("post-image", strings.NewReader(""))
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestSaveRejectsWebP(t *testing.T) {
	s := newStore(t, 1024)
	webp := append([]byte("RIFF\x24\x00\x00\x00WEBPVP8 "), make([]byte, 16)...)

	_, err := s.Save("post-image", bytes.NewReader(webp))
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestRemoveIgnoresPaths(t *testing.T) {
	s := newStore(t, 0)
	assert.NoError(t, s.Remove("../etc/passwd"))
}

func TestURL(t *testing.T) {
	s := newStore(t, 0)

	assert.Equal(t, "", s.URL(""))
	assert.Equal(t, "http://localhost:3000/uploads/post-image-1.png", s.URL("post-image-1.png"))
	assert.Equal(t, "http://localhost:3000/uploads/avatar-1.png", s.URL("/uploads/avatar-1.png"))
	assert.Equal(t, "http://localhost:3000/uploads/avatar-1.png", s.URL("uploads/avatar-1.png"))
	assert.Equal(t, "https://cdn.example.com/a.png", s.URL("https://cdn.example.com/a.png"))
}
