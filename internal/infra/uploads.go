package infra

// Flat-directory storage for order attachments.
// Files are named <unixMillis>_<sanitizedOriginalName>. The millisecond prefix
// is forced monotonic inside the process and files are created with O_EXCL, so
// two uploads never share a name.

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

var nombreInvalido = regexp.MustCompile(`[^A-Za-z0-9.]`)

// SanitizeFileName strips every character outside [A-Za-z0-9.].
func SanitizeFileName(name string) string {
	clean := nombreInvalido.ReplaceAllString(filepath.Base(name), "")
	if clean == "" || clean == "." || clean == ".." {
		return "archivo.pdf"
	}
	return clean
}

// StoredFile describes a file written by UploadStore.Save.
type StoredFile struct {
	Name string // generated file name (no directory)
	Path string // Dir joined with Name
	Size int64
}

// UploadStore persists attachment bytes under a single directory.
type UploadStore struct {
	dir string
	now func() time.Time

	mu       sync.Mutex
	lastMsec int64
}

// NewUploadStore creates dir when missing.
func NewUploadStore(dir string) (*UploadStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("uploads: create dir: %w", err)
	}
	return &UploadStore{dir: dir, now: time.Now}, nil
}

// Dir is the canonical upload directory.
func (s *UploadStore) Dir() string { return s.dir }

func (s *UploadStore) nextMillis() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ms := s.now().UnixMilli()
	if ms <= s.lastMsec {
		ms = s.lastMsec + 1
	}
	s.lastMsec = ms
	return ms
}

// Save copies r into a new file named after originalName.
func (s *UploadStore) Save(originalName string, r io.Reader) (*StoredFile, error) {
	name := fmt.Sprintf("%d_%s", s.nextMillis(), SanitizeFileName(originalName))
	path := filepath.Join(s.dir, name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("uploads: create %s: %w", name, err)
	}
	n, copyErr := io.Copy(f, r)
	closeErr := f.Close()
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("uploads: write %s: %w", name, errors.Join(copyErr, closeErr))
	}
	return &StoredFile{Name: name, Path: path, Size: n}, nil
}

// Resolve returns the first existing location for a stored file: the recorded
// path, then fileName inside the upload directory. ok is false when neither
// exists.
func (s *UploadStore) Resolve(storedPath, fileName string) (path string, ok bool) {
	if storedPath != "" && isRegularFile(storedPath) {
		return storedPath, true
	}
	if fileName == "" {
		return "", false
	}
	alt := filepath.Join(s.dir, filepath.Base(fileName))
	if isRegularFile(alt) {
		return alt, true
	}
	return "", false
}

// Remove deletes a stored file. A file that is already gone is not an error.
func (s *UploadStore) Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Limpiar removes orphaned uploads synchronously. Failures are logged, never
// returned: the caller is already reporting the error that caused the orphans.
func (s *UploadStore) Limpiar(_ context.Context, paths []string) {
	for _, p := range paths {
		if err := s.Remove(p); err != nil {
			log.Warn().Err(err).Str("path", p).Msg("uploads: orphan cleanup failed")
		}
	}
}

// ListOlderThan returns the regular files in the upload dir whose
// modification time is before cutoff.
func (s *UploadStore) ListOlderThan(cutoff time.Time) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			out = append(out, e.Name())
		}
	}
	return out, nil
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
