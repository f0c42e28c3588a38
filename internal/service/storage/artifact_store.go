package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"visionserver/internal/apperror"
	"visionserver/internal/logger"
	"visionserver/internal/model"
)

// ArtifactStore keeps annotated images and JSON records in one flat directory.
// Files are written once and never modified afterwards.
type ArtifactStore struct {
	root   string
	logger *logger.Logger
}

// NewArtifactStore creates a store rooted at dir. The directory is created on
// first write.
func NewArtifactStore(dir string, logger *logger.Logger) *ArtifactStore {
	return &ArtifactStore{root: dir, logger: logger}
}

// Root returns the storage directory.
func (s *ArtifactStore) Root() string {
	return s.root
}

// Put writes data as detection_{id}.{kind} and returns the filename. The file
// appears under its final name only once fully written.
func (s *ArtifactStore) Put(id string, kind model.ArtifactKind, data []byte) (string, error) {
	filename := model.ArtifactFilename(id, kind)
	if !validName(filename) {
		return "", apperror.Newf(apperror.KindStorageWrite, "put artifact", "invalid artifact id %q", id)
	}

	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return "", apperror.New(apperror.KindStorageWrite, "create storage root", err)
	}

	tmp, err := os.CreateTemp(s.root, ".tmp-"+filename+"-*")
	if err != nil {
		return "", apperror.New(apperror.KindStorageWrite, "create temp file", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", apperror.New(apperror.KindStorageWrite, "write "+filename, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", apperror.New(apperror.KindStorageWrite, "close "+filename, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return "", apperror.New(apperror.KindStorageWrite, "chmod "+filename, err)
	}
	if err := os.Rename(tmpName, filepath.Join(s.root, filename)); err != nil {
		os.Remove(tmpName)
		return "", apperror.New(apperror.KindStorageWrite, "rename "+filename, err)
	}

	s.logger.Info("Saved artifact %s (%d bytes)", filename, len(data))
	return filename, nil
}

// Get reads the named artifact. Names that could resolve outside the storage
// root are reported as not found.
func (s *ArtifactStore) Get(filename string) ([]byte, error) {
	path, err := s.resolve(filename)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err == nil && !info.Mode().IsRegular() {
		return nil, apperror.New(apperror.KindNotFound, "get artifact", fmt.Errorf("%s is not a file", filename))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperror.New(apperror.KindNotFound, "get artifact", fmt.Errorf("%s does not exist", filename))
		}
		return nil, apperror.New(apperror.KindInternal, "get artifact", err)
	}
	return data, nil
}

// Remove deletes the named artifact. A missing file is not an error.
func (s *ArtifactStore) Remove(filename string) error {
	if !validName(filename) {
		return apperror.Newf(apperror.KindNotFound, "remove artifact", "invalid filename %q", filename)
	}
	if err := os.Remove(filepath.Join(s.root, filename)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Stat returns file information for the named artifact.
func (s *ArtifactStore) Stat(filename string) (fs.FileInfo, error) {
	path, err := s.resolve(filename)
	if err != nil {
		return nil, err
	}
	return os.Stat(path)
}

// List returns the artifact filenames of the given kind, in directory order.
func (s *ArtifactStore) List(kind model.ArtifactKind) ([]string, error) {
	pattern := filepath.Join(s.root, model.ArtifactFilename("*", kind))
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, filepath.Base(m))
	}
	return names, nil
}

// resolve maps filename to a path inside the root, following symlinks.
func (s *ArtifactStore) resolve(filename string) (string, error) {
	notFound := apperror.Newf(apperror.KindNotFound, "get artifact", "%s does not exist", filename)
	if !validName(filename) {
		return "", notFound
	}

	root, err := filepath.EvalSymlinks(s.root)
	if err != nil {
		return "", notFound
	}
	root, err = filepath.Abs(root)
	if err != nil {
		return "", notFound
	}

	path, err := filepath.EvalSymlinks(filepath.Join(root, filename))
	if err != nil {
		return "", notFound
	}
	path, err = filepath.Abs(path)
	if err != nil {
		return "", notFound
	}

	rel, err := filepath.Rel(root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		s.logger.Warning("Rejected artifact path outside storage root: %q", filename)
		return "", notFound
	}
	return path, nil
}

// validName accepts a single path element without traversal.
func validName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") || strings.ContainsRune(name, 0) {
		return false
	}
	return !filepath.IsAbs(name)
}
