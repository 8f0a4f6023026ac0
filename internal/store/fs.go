package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"pdf-editor/internal/logger"
)

// dir is a flat directory of named blobs.
type dir struct {
	path string
}

func openDir(path string) (dir, error) {
	if path == "" {
		return dir{}, errors.New("store directory not configured")
	}
	if err := os.MkdirAll(path, 0755); err != nil {
		return dir{}, fmt.Errorf("create store directory: %w", err)
	}
	return dir{path: path}, nil
}

func (d dir) file(name string) (string, error) {
	if err := ValidName(name); err != nil {
		return "", err
	}
	return filepath.Join(d.path, name), nil
}

func (d dir) read(name string) ([]byte, error) {
	p, err := d.file(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	return data, err
}

// write stores data under name through a temporary file, so readers never
// observe a partial blob.
func (d dir) write(name string, data []byte) error {
	p, err := d.file(name)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(d.path, ".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), p)
}

func (d dir) list(ext string) ([]string, error) {
	entries, err := os.ReadDir(d.path)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		name := e.Name()
		if !e.Type().IsRegular() || strings.HasPrefix(name, ".") {
			continue
		}
		if ext != "" && !strings.EqualFold(filepath.Ext(name), ext) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Documents stores uploaded PDFs as "<uuid-hex>.pdf" files.
type Documents struct {
	dir dir
}

func NewDocuments(path string) (*Documents, error) {
	d, err := openDir(path)
	if err != nil {
		return nil, err
	}
	return &Documents{dir: d}, nil
}

func (s *Documents) Dir() string {
	return s.dir.path
}

// Save stores data under a new name and returns it.
func (s *Documents) Save(_ context.Context, data []byte) (string, error) {
	name := newName(".pdf")
	if err := s.dir.write(name, data); err != nil {
		return "", fmt.Errorf("save document: %w", err)
	}
	logger.Debug("document stored", logger.String("filename", name), logger.Int("bytes", len(data)))
	return name, nil
}

func (s *Documents) Resolve(_ context.Context, name string) ([]byte, error) {
	return s.dir.read(name)
}

// FileSignatures stores signature images as "<uuid-hex>.png" files.
type FileSignatures struct {
	dir dir
}

var _ SignatureStore = (*FileSignatures)(nil)

func NewFileSignatures(path string) (*FileSignatures, error) {
	d, err := openDir(path)
	if err != nil {
		return nil, err
	}
	return &FileSignatures{dir: d}, nil
}

func (s *FileSignatures) Save(_ context.Context, raw []byte) (string, error) {
	data, err := signaturePNG(raw)
	if err != nil {
		return "", err
	}
	name := newName(".png")
	if err := s.dir.write(name, data); err != nil {
		return "", fmt.Errorf("save signature: %w", err)
	}
	return name, nil
}

func (s *FileSignatures) Resolve(_ context.Context, name string) ([]byte, error) {
	return s.dir.read(name)
}

func (s *FileSignatures) List(_ context.Context) ([]string, error) {
	return s.dir.list("")
}

func (s *FileSignatures) Close() error { return nil }
