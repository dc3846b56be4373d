package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/systmms/openclaw-secure/internal/docpath"
	apperrors "github.com/systmms/openclaw-secure/internal/errors"
)

const (
	backupInfix      = ".bak."
	backupTimeLayout = "20060102T150405.000000000Z"

	// DefaultMaxBackups is how many timestamped backups are kept per file.
	DefaultMaxBackups = 5
)

// Store loads and atomically rewrites the JSON configuration document.
//
// Every Write first copies the current file to a timestamped backup and
// then replaces the file via temp-file + rename, so a crash at any point
// leaves either the old or the new document in place.
//
// Store does not lock. Callers must not run concurrent store or scrub
// cycles against the same file.
type Store struct {
	// MaxBackups bounds the number of backups kept; 0 keeps all of them.
	MaxBackups int

	now    func() time.Time
	rename func(oldpath, newpath string) error
}

// NewStore creates a Store with default backup retention
func NewStore() *Store {
	return &Store{
		MaxBackups: DefaultMaxBackups,
		now:        time.Now,
		rename:     os.Rename,
	}
}

// ExpandPath expands a leading ~ to the user's home directory
func ExpandPath(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	return filepath.Join(home, p[2:])
}

// Read loads the document at path
func (s *Store) Read(path string) (docpath.Document, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &apperrors.ConfigReadError{Path: path, Err: err}
	}

	doc, err := decode(data)
	if err != nil {
		return nil, &apperrors.ConfigReadError{Path: path, Err: err}
	}
	return doc, nil
}

func decode(data []byte) (docpath.Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("invalid JSON: trailing data after document")
	}

	doc, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("top-level value must be an object, got %T", v)
	}
	return doc, nil
}

// Encode renders a document the way Write stores it: two-space indent,
// sorted keys, no HTML escaping, trailing newline.
func Encode(doc docpath.Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write backs up the existing file and atomically replaces it with doc.
// A failed backup aborts before anything destructive happens.
func (s *Store) Write(path string, doc docpath.Document) error {
	path = ExpandPath(path)

	data, err := Encode(doc)
	if err != nil {
		return &apperrors.ConfigWriteError{Path: path, Stage: "encode", Err: err}
	}

	mode := os.FileMode(0o600)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
		if _, err := s.Backup(path); err != nil {
			return err
		}
	} else if !os.IsNotExist(err) {
		return &apperrors.ConfigWriteError{Path: path, Stage: "backup", Err: err}
	}

	if err := s.replace(path, data, mode); err != nil {
		return err
	}

	s.pruneBackups(path)
	return nil
}

// Backup copies the file at path to <path>.bak.<timestamp> and returns
// the backup path.
func (s *Store) Backup(path string) (string, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return "", &apperrors.ConfigWriteError{Path: path, Stage: "backup", Err: err}
	}

	backupPath := path + backupInfix + s.now().UTC().Format(backupTimeLayout)
	f, err := os.OpenFile(backupPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", &apperrors.ConfigWriteError{Path: path, Stage: "backup", Err: err}
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(backupPath)
		return "", &apperrors.ConfigWriteError{Path: path, Stage: "backup", Err: err}
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(backupPath)
		return "", &apperrors.ConfigWriteError{Path: path, Stage: "backup", Err: err}
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(backupPath)
		return "", &apperrors.ConfigWriteError{Path: path, Stage: "backup", Err: err}
	}
	return backupPath, nil
}

func (s *Store) replace(path string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return &apperrors.ConfigWriteError{Path: path, Stage: "write", Err: err}
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return &apperrors.ConfigWriteError{Path: path, Stage: "write", Err: err}
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return &apperrors.ConfigWriteError{Path: path, Stage: "write", Err: err}
	}
	if err := tmp.Chmod(mode); err != nil {
		_ = tmp.Close()
		return &apperrors.ConfigWriteError{Path: path, Stage: "write", Err: err}
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return &apperrors.ConfigWriteError{Path: path, Stage: "write", Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &apperrors.ConfigWriteError{Path: path, Stage: "write", Err: err}
	}

	if err := s.rename(tmpPath, path); err != nil {
		return &apperrors.ConfigWriteError{Path: path, Stage: "rename", Err: err}
	}
	committed = true

	// Persist the rename itself. Not all platforms support fsync on a
	// directory, so failures here are ignored.
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}

// Backups lists existing backups of path, oldest first
func Backups(path string) ([]string, error) {
	path = ExpandPath(path)
	matches, err := filepath.Glob(globEscape(path) + backupInfix + "*")
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

func (s *Store) pruneBackups(path string) {
	if s.MaxBackups <= 0 {
		return
	}
	backups, err := Backups(path)
	if err != nil || len(backups) <= s.MaxBackups {
		return
	}
	for _, old := range backups[:len(backups)-s.MaxBackups] {
		_ = os.Remove(old)
	}
}

func globEscape(p string) string {
	r := strings.NewReplacer(`*`, `\*`, `?`, `\?`, `[`, `\[`)
	return r.Replace(p)
}
