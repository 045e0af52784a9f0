package modelstore

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/tylerursuy/ARMR/internal/core/domain"
)

const weightsFilename = "model.bin"

// Store lays out model artifacts as one directory per published version under
// a common root, plus a tar.gz next to it when a version is packaged for
// remote upload.
type Store struct {
	root string
}

func New(root string) (*Store, error) {
	if root == "" {
		root = "./data/models"
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create model root: %w", err)
	}
	return &Store{root: root}, nil
}

// WriteVersion materializes the version directory from the weights stream.
// The write goes into a temp directory first and is renamed into place, so a
// partially written version never becomes visible.
func (s *Store) WriteVersion(ctx context.Context, version string, weights io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	tmp, err := os.MkdirTemp(s.root, "."+version+"-*")
	if err != nil {
		return "", domain.WrapError(domain.ErrVersionManager, "write version", err)
	}
	defer os.RemoveAll(tmp)

	f, err := os.Create(filepath.Join(tmp, weightsFilename))
	if err != nil {
		return "", domain.WrapError(domain.ErrVersionManager, "write version", err)
	}
	if _, err := io.Copy(f, weights); err != nil {
		_ = f.Close()
		return "", domain.WrapError(domain.ErrVersionManager, "write version", err)
	}
	if err := f.Close(); err != nil {
		return "", domain.WrapError(domain.ErrVersionManager, "write version", err)
	}

	dest := s.versionDir(version)
	if err := os.Rename(tmp, dest); err != nil {
		return "", domain.WrapError(domain.ErrVersionManager, "write version", err)
	}
	return dest, nil
}

func (s *Store) RemoveVersion(_ context.Context, version string) error {
	if err := os.RemoveAll(s.versionDir(version)); err != nil {
		return fmt.Errorf("remove version dir: %w", err)
	}
	_ = os.Remove(s.archivePath(version))
	return nil
}

// Package builds <root>/<version>.tar.gz from the version directory and
// returns its path.
func (s *Store) Package(ctx context.Context, version string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	dir := s.versionDir(version)
	if _, err := os.Stat(dir); err != nil {
		return "", domain.WrapError(domain.ErrVersionManager, "package version", err)
	}

	archivePath := s.archivePath(version)
	out, err := os.Create(archivePath)
	if err != nil {
		return "", domain.WrapError(domain.ErrVersionManager, "package version", err)
	}
	defer out.Close()

	gz := gzip.NewWriter(out)
	tw := tar.NewWriter(gz)

	err = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		header.Name = filepath.ToSlash(filepath.Join(version, rel))
		if err := tw.WriteHeader(header); err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	})
	if err != nil {
		_ = tw.Close()
		_ = gz.Close()
		return "", domain.WrapError(domain.ErrVersionManager, "package version", err)
	}

	if err := tw.Close(); err != nil {
		return "", domain.WrapError(domain.ErrVersionManager, "package version", err)
	}
	if err := gz.Close(); err != nil {
		return "", domain.WrapError(domain.ErrVersionManager, "package version", err)
	}
	return archivePath, nil
}

func (s *Store) versionDir(version string) string {
	return filepath.Join(s.root, version)
}

func (s *Store) archivePath(version string) string {
	return filepath.Join(s.root, version+".tar.gz")
}
