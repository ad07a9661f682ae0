// Package envfile persists exported environment variables in a dotenv
// file that shells can source.
package envfile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/joho/godotenv"
)

// File is a dotenv file. Writes are serialised and replace the file
// atomically.
type File struct {
	path string
	mu   sync.Mutex
}

// New returns a File at path. The file is created on first write.
func New(path string) *File {
	return &File{path: path}
}

// DefaultPath returns $XDG_CONFIG_HOME/codexsw/env, falling back to
// ~/.config/codexsw/env.
func DefaultPath() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "codexsw", "env"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("envfile: resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", "codexsw", "env"), nil
}

// Path returns the file location.
func (f *File) Path() string {
	return f.path
}

// Load returns every variable in the file. A missing file is empty.
func (f *File) Load() (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.read()
}

// Get returns the value of key.
func (f *File) Get(key string) (string, bool, error) {
	env, err := f.Load()
	if err != nil {
		return "", false, err
	}
	v, ok := env[key]
	return v, ok, nil
}

// Set stores key=value. It reports whether the file changed.
func (f *File) Set(key, value string) (bool, error) {
	if key == "" {
		return false, errors.New("envfile: empty variable name")
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	env, err := f.read()
	if err != nil {
		return false, err
	}
	if cur, ok := env[key]; ok && cur == value {
		return false, nil
	}
	env[key] = value
	return true, f.write(env)
}

// Unset removes key. It reports whether the file changed.
func (f *File) Unset(key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	env, err := f.read()
	if err != nil {
		return false, err
	}
	if _, ok := env[key]; !ok {
		return false, nil
	}
	delete(env, key)
	return true, f.write(env)
}

func (f *File) read() (map[string]string, error) {
	env, err := godotenv.Read(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("envfile: read %s: %w", f.path, err)
	}
	return env, nil
}

func (f *File) write(env map[string]string) error {
	content, err := godotenv.Marshal(env)
	if err != nil {
		return fmt.Errorf("envfile: encode: %w", err)
	}
	if len(env) > 0 {
		content += "\n"
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("envfile: create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".env-*")
	if err != nil {
		return fmt.Errorf("envfile: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.WriteString(content); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("envfile: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("envfile: close: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("envfile: replace %s: %w", f.path, err)
	}
	return nil
}
