package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Category partitions stored artifacts and selects the size cap applied on write.
type Category string

const (
	CategoryAttendance Category = "attendance"
	CategoryMinutes    Category = "minutes"
	CategoryQuarterly  Category = "quarterly"
	CategoryDocument   Category = "documents"
	CategoryEvent      Category = "events"
	CategoryEvidence   Category = "evidence"
	CategoryExport     Category = "exports"
)

// ErrTooLarge is returned when a payload exceeds its category cap. No partial
// write happens in that case.
var ErrTooLarge = errors.New("payload exceeds category size limit")

// Limits holds the per-category byte caps.
type Limits struct {
	AttendanceMaxBytes int64
	DocumentMaxBytes   int64
	EvidenceMaxBytes   int64
}

// For resolves the cap for a category. Zero means unlimited (transient exports).
func (l Limits) For(category Category) int64 {
	switch category {
	case CategoryAttendance:
		return l.AttendanceMaxBytes
	case CategoryMinutes, CategoryQuarterly, CategoryDocument, CategoryEvent:
		return l.DocumentMaxBytes
	case CategoryEvidence:
		return l.EvidenceMaxBytes
	default:
		return 0
	}
}

// LocalStore persists artifacts on disk under a base directory. Locators are
// paths relative to the base dir, e.g. "attendance/att_scha_20240301.xlsx".
type LocalStore struct {
	baseDir string
	limits  Limits
}

// NewLocalStore ensures the base directory exists and returns a handle.
func NewLocalStore(baseDir string, limits Limits) (*LocalStore, error) {
	if baseDir == "" {
		baseDir = "./uploads"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create uploads directory: %w", err)
	}
	return &LocalStore{baseDir: baseDir, limits: limits}, nil
}

// Save writes the given bytes under the category directory and returns the locator.
func (s *LocalStore) Save(category Category, filename string, data []byte) (string, error) {
	if max := s.limits.For(category); max > 0 && int64(len(data)) > max {
		return "", ErrTooLarge
	}
	locator := s.locator(category, filename)
	path := s.resolve(locator)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("prepare artifact directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}
	return locator, nil
}

// SaveStream copies from reader into the target file. The declared size is
// checked against the category cap before any byte is written, and the copy
// itself is bounded so an understated size cannot slip past the cap.
func (s *LocalStore) SaveStream(category Category, filename string, size int64, r io.Reader) (string, error) {
	max := s.limits.For(category)
	if max > 0 && size > max {
		return "", ErrTooLarge
	}
	locator := s.locator(category, filename)
	path := s.resolve(locator)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("prepare artifact directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create artifact: %w", err)
	}
	defer file.Close() //nolint:errcheck

	src := r
	if max > 0 {
		src = io.LimitReader(r, max+1)
	}
	written, err := io.Copy(file, src)
	if err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("write artifact stream: %w", err)
	}
	if max > 0 && written > max {
		_ = os.Remove(path)
		return "", ErrTooLarge
	}
	return locator, nil
}

// Open returns a read-only handle for the stored artifact.
func (s *LocalStore) Open(locator string) (*os.File, error) {
	file, err := os.Open(s.resolve(locator))
	if err != nil {
		return nil, fmt.Errorf("open artifact: %w", err)
	}
	return file, nil
}

// Read loads the full artifact content. Needed by the consolidation workflow.
func (s *LocalStore) Read(locator string) ([]byte, error) {
	data, err := os.ReadFile(s.resolve(locator))
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	return data, nil
}

// Delete removes a stored artifact. A missing file is not an error.
func (s *LocalStore) Delete(locator string) error {
	if err := os.Remove(s.resolve(locator)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete artifact: %w", err)
	}
	return nil
}

// CleanupOlderThan removes artifacts in a category older than the TTL and
// returns the deleted locators. Used for transient export leftovers.
func (s *LocalStore) CleanupOlderThan(category Category, ttl time.Duration) ([]string, error) {
	root := filepath.Join(s.baseDir, string(category))
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return nil, nil
	}
	cutoff := time.Now().Add(-ttl)
	deleted := make([]string, 0)
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.ModTime().After(cutoff) {
			return nil
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
		rel, err := filepath.Rel(s.baseDir, path)
		if err != nil {
			rel = path
		}
		deleted = append(deleted, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cleanup artifacts: %w", err)
	}
	return deleted, nil
}

// Path exposes the underlying absolute path (used by the mailer for attachments).
func (s *LocalStore) Path(locator string) string {
	return s.resolve(locator)
}

func (s *LocalStore) locator(category Category, filename string) string {
	return filepath.ToSlash(filepath.Join(string(category), filepath.Base(filename)))
}

func (s *LocalStore) resolve(locator string) string {
	if filepath.IsAbs(locator) {
		return locator
	}
	return filepath.Join(s.baseDir, filepath.FromSlash(locator))
}
