// Package storefs provides filesystem-backed storage for finished
// conversion archives.
package storefs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/goliatone/go-sheet2pdf/convert"
)

// Store provides filesystem-backed artifact storage. Artifacts are
// written atomically through a sibling temp file, with metadata kept in a
// JSON sidecar.
type Store struct {
	Root string
	Now  func() time.Time
}

// NewStore creates a filesystem-backed artifact store rooted at root.
func NewStore(root string) *Store {
	return &Store{Root: root, Now: time.Now}
}

// Put stores an artifact on disk.
func (s *Store) Put(ctx context.Context, key string, r io.Reader, meta convert.ArtifactMeta) (convert.ArtifactRef, error) {
	_ = ctx
	if s == nil || s.Root == "" {
		return convert.ArtifactRef{}, convert.NewError(convert.KindInternal, "store root is required", nil)
	}
	if key == "" {
		return convert.ArtifactRef{}, convert.NewError(convert.KindValidation, "artifact key is required", nil)
	}

	pathOnDisk, err := s.resolvePath(key)
	if err != nil {
		return convert.ArtifactRef{}, err
	}
	if err := os.MkdirAll(filepath.Dir(pathOnDisk), 0o755); err != nil {
		return convert.ArtifactRef{}, err
	}

	tmp, err := os.CreateTemp(filepath.Dir(pathOnDisk), ".archive-*")
	if err != nil {
		return convert.ArtifactRef{}, err
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()

	size, err := io.Copy(tmp, r)
	if err != nil {
		return convert.ArtifactRef{}, err
	}
	if err := tmp.Sync(); err != nil {
		return convert.ArtifactRef{}, err
	}
	if err := tmp.Close(); err != nil {
		return convert.ArtifactRef{}, err
	}
	if err := os.Rename(tmp.Name(), pathOnDisk); err != nil {
		return convert.ArtifactRef{}, err
	}

	meta.Size = size
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = s.now()
	}
	if meta.ContentType == "" {
		meta.ContentType = mime.TypeByExtension(filepath.Ext(pathOnDisk))
	}
	if err := s.writeMeta(pathOnDisk, meta); err != nil {
		return convert.ArtifactRef{}, err
	}

	return convert.ArtifactRef{Key: key, Meta: meta}, nil
}

// Open reads an artifact from disk.
func (s *Store) Open(ctx context.Context, key string) (io.ReadCloser, convert.ArtifactMeta, error) {
	_ = ctx
	if s == nil || s.Root == "" {
		return nil, convert.ArtifactMeta{}, convert.NewError(convert.KindInternal, "store root is required", nil)
	}
	if key == "" {
		return nil, convert.ArtifactMeta{}, convert.NewError(convert.KindValidation, "artifact key is required", nil)
	}

	pathOnDisk, err := s.resolvePath(key)
	if err != nil {
		return nil, convert.ArtifactMeta{}, err
	}

	file, err := os.Open(pathOnDisk)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, convert.ArtifactMeta{}, convert.NewError(convert.KindNotFound, fmt.Sprintf("artifact %q not found", key), err)
		}
		return nil, convert.ArtifactMeta{}, err
	}

	meta := s.readMeta(pathOnDisk)
	if meta.ContentType == "" {
		meta.ContentType = mime.TypeByExtension(filepath.Ext(pathOnDisk))
	}
	if meta.Size == 0 {
		if info, err := file.Stat(); err == nil {
			meta.Size = info.Size()
			if meta.CreatedAt.IsZero() {
				meta.CreatedAt = info.ModTime()
			}
		}
	}
	return file, meta, nil
}

// Delete removes an artifact and its metadata sidecar. Best effort.
func (s *Store) Delete(ctx context.Context, key string) error {
	_ = ctx
	if s == nil || s.Root == "" {
		return convert.NewError(convert.KindInternal, "store root is required", nil)
	}
	if key == "" {
		return convert.NewError(convert.KindValidation, "artifact key is required", nil)
	}
	pathOnDisk, err := s.resolvePath(key)
	if err != nil {
		return err
	}
	_ = os.Remove(pathOnDisk)
	_ = os.Remove(metaPath(pathOnDisk))
	return nil
}

func (s *Store) resolvePath(key string) (string, error) {
	clean := path.Clean("/" + key)
	rel := strings.TrimPrefix(clean, "/")
	if rel == "" || rel == "." {
		return "", convert.NewError(convert.KindValidation, "invalid artifact key", nil)
	}

	root, err := filepath.Abs(s.Root)
	if err != nil {
		return "", err
	}
	target := filepath.Join(root, filepath.FromSlash(rel))
	if !strings.HasPrefix(target, root+string(os.PathSeparator)) && target != root {
		return "", convert.NewError(convert.KindValidation, "artifact key escapes root", nil)
	}
	return target, nil
}

func (s *Store) writeMeta(pathOnDisk string, meta convert.ArtifactMeta) error {
	payload, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(pathOnDisk), ".meta-*")
	if err != nil {
		return err
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()
	if _, err := tmp.Write(payload); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), metaPath(pathOnDisk))
}

func (s *Store) readMeta(pathOnDisk string) convert.ArtifactMeta {
	var meta convert.ArtifactMeta
	payload, err := os.ReadFile(metaPath(pathOnDisk))
	if err != nil {
		return meta
	}
	_ = json.Unmarshal(payload, &meta)
	return meta
}

func (s *Store) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func metaPath(pathOnDisk string) string {
	return pathOnDisk + ".meta.json"
}
