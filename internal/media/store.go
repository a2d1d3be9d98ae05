package media

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// ErrDisallowedType is returned for uploads with an extension outside
// the allow list.
var ErrDisallowedType = errors.New("file type not allowed")

var allowedExtensions = map[string]struct{}{
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {},
	".mp4": {}, ".mp3": {}, ".pdf": {}, ".txt": {}, ".zip": {},
}

// Store writes uploads to a local directory. Stored names are
// uuid-prefixed so colliding client filenames can't overwrite each
// other, and the original name is sanitized to a plain base name so it
// can't escape the directory.
type Store struct {
	dir string
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) Dir() string {
	return s.dir
}

// Save streams the upload to disk and returns the stored filename.
func (s *Store) Save(r io.Reader, originalName string) (string, error) {
	name := SanitizeFilename(originalName)
	ext := strings.ToLower(filepath.Ext(name))
	if _, ok := allowedExtensions[ext]; !ok {
		return "", ErrDisallowedType
	}

	stored := uuid.NewString() + "_" + name
	f, err := os.Create(filepath.Join(s.dir, stored))
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("write upload: %w", err)
	}

	return stored, nil
}

// Open returns the stored file for serving. The name is re-sanitized
// so a crafted path can't reach outside the upload directory.
func (s *Store) Open(storedName string) (*os.File, error) {
	f, err := os.Open(filepath.Join(s.dir, SanitizeFilename(storedName)))
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	return f, nil
}

// Path returns the on-disk path for a stored filename.
func (s *Store) Path(storedName string) string {
	return filepath.Join(s.dir, SanitizeFilename(storedName))
}

// Classify buckets a stored file into image, video, audio or unknown
// by sniffing its content.
func (s *Store) Classify(storedName string) string {
	mt, err := mimetype.DetectFile(s.Path(storedName))
	if err != nil {
		return "unknown"
	}
	switch {
	case strings.HasPrefix(mt.String(), "image/"):
		return "image"
	case strings.HasPrefix(mt.String(), "video/"):
		return "video"
	case strings.HasPrefix(mt.String(), "audio/"):
		return "audio"
	default:
		return "unknown"
	}
}

// SanitizeFilename strips any path components and characters outside a
// conservative allow list.
func SanitizeFilename(name string) string {
	name = filepath.Base(name)
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		}
	}
	out := b.String()
	if out == "" || out == "." || out == ".." {
		return "file"
	}
	return out
}
