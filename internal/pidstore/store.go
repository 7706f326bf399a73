// Package pidstore persists one PID record per component as
// <dir>/<component>.pid.
//
// Records are only ever created or deleted, never edited in place.
package pidstore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/danmuck/mrctl/internal/fsutil"
)

const recordSuffix = ".pid"

var (
	ErrCorruptRecord = errors.New("pidstore: corrupt pid record")
	ErrIO            = errors.New("pidstore: io error")
)

// Store reads and writes PID records under a single directory.
type Store struct {
	dir string
}

func New(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the directory holding the records.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the record path for component.
func (s *Store) Path(component string) string {
	return filepath.Join(s.dir, component+recordSuffix)
}

// Write persists pid as the record for component, replacing any prior one.
func (s *Store) Write(component string, pid int) error {
	if pid <= 0 {
		return fmt.Errorf("%w: component=%s refusing pid=%d", ErrIO, component, pid)
	}
	if err := fsutil.WriteAtomic(s.Path(component), []byte(strconv.Itoa(pid)), 0o644); err != nil {
		return fmt.Errorf("%w: component=%s: %v", ErrIO, component, err)
	}
	return nil
}

// Read returns the recorded pid. ok is false when no record exists.
func (s *Store) Read(component string) (pid int, ok bool, err error) {
	path := s.Path(component)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("%w: %s: %v", ErrIO, path, err)
	}
	raw := strings.TrimSpace(string(data))
	pid, err = strconv.Atoi(raw)
	if err != nil || pid <= 0 {
		return 0, true, fmt.Errorf("%w: %s holds %q", ErrCorruptRecord, path, raw)
	}
	return pid, true, nil
}

// Delete removes the record for component. Missing records are not an error.
func (s *Store) Delete(component string) error {
	err := os.Remove(s.Path(component))
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("%w: component=%s: %v", ErrIO, component, err)
}
