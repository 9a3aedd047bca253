package fs

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/natefinch/atomic"
)

// FileInfo represents file metadata
type FileInfo struct {
	Path    string
	Size    int64
	ModTime time.Time
	IsDir   bool
}

// FileSystem is the narrow set of filesystem operations the materializer
// and result tooling need.
type FileSystem interface {
	// ReadFile reads the entire file
	ReadFile(ctx context.Context, path string) ([]byte, error)
	// WriteFile replaces the file contents atomically. The parent directory
	// must already exist.
	WriteFile(ctx context.Context, path string, data []byte) error
	// Stat returns file information
	Stat(ctx context.Context, path string) (*FileInfo, error)
	// ListDir lists directory contents sorted by name
	ListDir(ctx context.Context, path string) ([]*FileInfo, error)
	// Exists checks if a file exists
	Exists(ctx context.Context, path string) (bool, error)
	// Mkdir creates a single directory and fails if it already exists
	Mkdir(ctx context.Context, path string, perm os.FileMode) error
	// MkdirAll creates a directory and all parent directories
	MkdirAll(ctx context.Context, path string, perm os.FileMode) error
}

// OSFS is the real filesystem. Writes go through a temp file and rename so a
// reader never observes a half-written artifact.
type OSFS struct {
	filePerm os.FileMode
}

// NewOSFS creates an OSFS that leaves written files with mode perm.
func NewOSFS(perm os.FileMode) *OSFS {
	return &OSFS{filePerm: perm}
}

func (o *OSFS) ReadFile(ctx context.Context, path string) ([]byte, error) {
	return os.ReadFile(path)
}

func (o *OSFS) WriteFile(ctx context.Context, path string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return err
	}
	if o.filePerm != 0 {
		return os.Chmod(path, o.filePerm)
	}
	return nil
}

func (o *OSFS) Stat(ctx context.Context, path string) (*FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	return &FileInfo{
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime(),
		IsDir:   info.IsDir(),
	}, nil
}

func (o *OSFS) ListDir(ctx context.Context, path string) ([]*FileInfo, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}

	result := make([]*FileInfo, 0, len(entries))
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			// Entry vanished between ReadDir and Info.
			continue
		}
		result = append(result, &FileInfo{
			Path:    filepath.Join(path, entry.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
			IsDir:   entry.IsDir(),
		})
	}
	return result, nil
}

func (o *OSFS) Exists(ctx context.Context, path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func (o *OSFS) Mkdir(ctx context.Context, path string, perm os.FileMode) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return os.Mkdir(path, perm)
}

func (o *OSFS) MkdirAll(ctx context.Context, path string, perm os.FileMode) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return os.MkdirAll(path, perm)
}

// MockFS is an in-memory filesystem for tests. Paths are cleaned with
// filepath.Clean; there is no notion of a working directory.
type MockFS struct {
	mu    sync.RWMutex
	files map[string][]byte
	dirs  map[string]bool

	// FailWrite, when set, is consulted before every WriteFile.
	FailWrite func(path string) error
	// Writes records every successful write in order.
	Writes []string
}

func NewMockFS() *MockFS {
	return &MockFS{
		files: make(map[string][]byte),
		dirs:  map[string]bool{".": true, "/": true},
	}
}

func (m *MockFS) ReadFile(ctx context.Context, path string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.files[filepath.Clean(path)]
	if !ok {
		return nil, &os.PathError{Op: "open", Path: path, Err: os.ErrNotExist}
	}
	return append([]byte(nil), data...), nil
}

func (m *MockFS) WriteFile(ctx context.Context, path string, data []byte) error {
	path = filepath.Clean(path)
	if m.FailWrite != nil {
		if err := m.FailWrite(path); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.dirs[filepath.Dir(path)] {
		return &os.PathError{Op: "open", Path: path, Err: os.ErrNotExist}
	}
	m.files[path] = append([]byte(nil), data...)
	m.Writes = append(m.Writes, path)
	return nil
}

func (m *MockFS) Stat(ctx context.Context, path string) (*FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	path = filepath.Clean(path)
	if m.dirs[path] {
		return &FileInfo{Path: path, IsDir: true}, nil
	}
	data, ok := m.files[path]
	if !ok {
		return nil, &os.PathError{Op: "stat", Path: path, Err: os.ErrNotExist}
	}
	return &FileInfo{Path: path, Size: int64(len(data))}, nil
}

func (m *MockFS) ListDir(ctx context.Context, path string) ([]*FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	path = filepath.Clean(path)
	if !m.dirs[path] {
		return nil, &os.PathError{Op: "open", Path: path, Err: os.ErrNotExist}
	}

	var result []*FileInfo
	for dir := range m.dirs {
		if dir != path && filepath.Dir(dir) == path {
			result = append(result, &FileInfo{Path: dir, IsDir: true})
		}
	}
	for file, data := range m.files {
		if filepath.Dir(file) == path {
			result = append(result, &FileInfo{Path: file, Size: int64(len(data))})
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Path < result[j].Path })
	return result, nil
}

func (m *MockFS) Exists(ctx context.Context, path string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	path = filepath.Clean(path)
	_, isFile := m.files[path]
	return isFile || m.dirs[path], nil
}

func (m *MockFS) Mkdir(ctx context.Context, path string, perm os.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	path = filepath.Clean(path)
	if _, isFile := m.files[path]; isFile || m.dirs[path] {
		return &os.PathError{Op: "mkdir", Path: path, Err: os.ErrExist}
	}
	if !m.dirs[filepath.Dir(path)] {
		return &os.PathError{Op: "mkdir", Path: path, Err: os.ErrNotExist}
	}
	m.dirs[path] = true
	return nil
}

func (m *MockFS) MkdirAll(ctx context.Context, path string, perm os.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for dir := filepath.Clean(path); !m.dirs[dir]; dir = filepath.Dir(dir) {
		if _, isFile := m.files[dir]; isFile {
			return &os.PathError{Op: "mkdir", Path: dir, Err: errors.New("not a directory")}
		}
		m.dirs[dir] = true
	}
	return nil
}

// Paths returns every file path in the mock, sorted.
func (m *MockFS) Paths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	paths := make([]string, 0, len(m.files))
	for p := range m.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Dirs returns every directory below root, sorted.
func (m *MockFS) Dirs(root string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	root = filepath.Clean(root)
	var dirs []string
	for d := range m.dirs {
		if d != root && strings.HasPrefix(d, root+string(filepath.Separator)) {
			dirs = append(dirs, d)
		}
	}
	sort.Strings(dirs)
	return dirs
}
