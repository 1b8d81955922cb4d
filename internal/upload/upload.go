// Package upload stores user images on local disk and turns stored names
// into public URLs.
package upload

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/samber/oops"
)

const DefaultMaxBytes = 5 << 20

var (
	ErrUnsupportedType = errors.New("unsupported file type, only JPG, PNG and GIF images are allowed")
	ErrTooLarge        = errors.New("file too large")
	ErrEmpty           = errors.New("file is empty")
)

var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
}

type Store struct {
	dir      string
	baseURL  string
	maxBytes int64
}

// New creates dir if needed. baseURL is the public origin, e.g.
// "http://localhost:3000".
func New(dir, baseURL string, maxBytes int64) (*Store, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, oops.Code("UPLOAD_DIR_FAILED").With("dir", dir).Wrap(err)
	}
	return &Store{dir: dir, baseURL: strings.TrimRight(baseURL, "/"), maxBytes: maxBytes}, nil
}

func (s *Store) Dir() string { return s.dir }

func (s *Store) MaxBytes() int64 { return s.maxBytes }

// Save writes r under a fresh "<prefix>-<uuid><ext>" name and returns that
// name. The type is sniffed from content; the client's file name is ignored.
func (s *Store) Save(prefix string, r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return "", oops.Code("UPLOAD_READ_FAILED").Wrap(err)
	}
	if len(data) == 0 {
		return "", ErrEmpty
	}
	if int64(len(data)) > s.maxBytes {
		return "", ErrTooLarge
	}

	ext, ok := extensions[http.DetectContentType(data)]
	if !ok {
		return "", ErrUnsupportedType
	}

	name := fmt.Sprintf("%s-%s%s", prefix, uuid.NewString(), ext)
	f, err := os.OpenFile(filepath.Join(s.dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", oops.Code("UPLOAD_WRITE_FAILED").With("name", name).Wrap(err)
	}
	if _, err := io.Copy(f, bytes.NewReader(data)); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", oops.Code("UPLOAD_WRITE_FAILED").With("name", name).Wrap(err)
	}
	if err := f.Close(); err != nil {
		return "", oops.Code("UPLOAD_WRITE_FAILED").With("name", name).Wrap(err)
	}
	return name, nil
}

// Remove deletes a stored file. Missing files are not an error.
func (s *Store) Remove(name string) error {
	if name == "" || strings.Contains(name, "/") || strings.Contains(name, `\`) {
		return nil
	}
	err := os.Remove(filepath.Join(s.dir, name))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return oops.Code("UPLOAD_REMOVE_FAILED").With("name", name).Wrap(err)
	}
	return nil
}

// URL maps a stored reference to an absolute URL. Absolute URLs pass
// through and empty stays empty.
func (s *Store) URL(ref string) string {
	switch {
	case ref == "":
		return ""
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return ref
	case strings.Contains(ref, "uploads/"):
		return s.baseURL + "/" + strings.TrimLeft(ref, "/")
	}
	return s.baseURL + "/uploads/" + strings.TrimLeft(ref, "/")
}
