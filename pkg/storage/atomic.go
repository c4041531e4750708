package storage

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// PendingFile is a destination being written through a temporary sibling.
// Nothing appears at the destination path until Commit succeeds.
type PendingFile struct {
	path    string
	temp    *os.File
	written int64
	closed  bool
}

// Create prepares a pending write to path, creating parent directories
func Create(path string) (*PendingFile, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	temp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.part")
	if err != nil {
		return nil, fmt.Errorf("failed to create temporary file: %w", err)
	}

	return &PendingFile{path: path, temp: temp}, nil
}

// Write appends to the temporary file
func (p *PendingFile) Write(b []byte) (int, error) {
	n, err := p.temp.Write(b)
	p.written += int64(n)
	return n, err
}

// Written returns the number of bytes written so far
func (p *PendingFile) Written() int64 {
	return p.written
}

// Path returns the final destination path
func (p *PendingFile) Path() string {
	return p.path
}

// TempPath returns the path of the temporary file
func (p *PendingFile) TempPath() string {
	return p.temp.Name()
}

// Commit flushes the temporary file to disk and renames it over the destination
func (p *PendingFile) Commit() error {
	if p.closed {
		return fmt.Errorf("pending file %s already finished", p.path)
	}
	p.closed = true

	if err := p.temp.Sync(); err != nil {
		p.temp.Close()
		os.Remove(p.temp.Name())
		return fmt.Errorf("failed to sync file: %w", err)
	}
	if err := p.temp.Close(); err != nil {
		os.Remove(p.temp.Name())
		return fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Rename(p.temp.Name(), p.path); err != nil {
		os.Remove(p.temp.Name())
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}
	return nil
}

// Abort discards the temporary file. It is a no-op after Commit.
func (p *PendingFile) Abort() error {
	if p.closed {
		return nil
	}
	p.closed = true

	p.temp.Close()
	if err := os.Remove(p.temp.Name()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove temporary file: %w", err)
	}
	return nil
}

// WriteFile atomically replaces path with the contents of r
func WriteFile(path string, r io.Reader) (int64, error) {
	pf, err := Create(path)
	if err != nil {
		return 0, err
	}

	n, err := io.Copy(pf, r)
	if err != nil {
		pf.Abort()
		return n, fmt.Errorf("failed to write data: %w", err)
	}

	if err := pf.Commit(); err != nil {
		return n, err
	}
	return n, nil
}

// WriteBytes atomically replaces path with data
func WriteBytes(path string, data []byte) error {
	_, err := WriteFile(path, bytes.NewReader(data))
	return err
}
