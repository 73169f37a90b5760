// Package storage keeps avatar images on local disk.
package storage

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrFileTooLarge = errors.New("file too large")
	ErrBadExtension = errors.New("file type not allowed")
	ErrNotAnImage   = errors.New("file content is not a valid image")
	ErrBadFilename  = errors.New("invalid filename")
	ErrNotFound     = errors.New("avatar not found")
)

var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

type AvatarStore struct {
	dir     string
	maxSize int64
}

func NewAvatarStore(dir string, maxSize int64) (*AvatarStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	return &AvatarStore{dir: dir, maxSize: maxSize}, nil
}

// Save validates and writes one avatar image, returning the stored
// filename. The name embeds the owner ID plus a random suffix so
// re-uploads never collide.
func (s *AvatarStore) Save(userID uuid.UUID, originalName string, content []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(originalName))
	if !allowedExtensions[ext] {
		return "", ErrBadExtension
	}
	if int64(len(content)) > s.maxSize {
		return "", ErrFileTooLarge
	}
	// Sniff the content so a renamed non-image is still rejected.
	if !isImage(content) {
		return "", ErrNotAnImage
	}

	filename := fmt.Sprintf("%s_%s%s", userID, uuid.NewString()[:8], ext)
	if err := os.WriteFile(filepath.Join(s.dir, filename), content, 0o644); err != nil {
		return "", fmt.Errorf("failed to write avatar: %w", err)
	}
	return filename, nil
}

// Remove deletes a stored avatar; a missing file is not an error.
func (s *AvatarStore) Remove(filename string) error {
	path, err := s.Path(filename)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Path resolves a stored filename to an absolute path, rejecting anything
// that would escape the upload directory.
func (s *AvatarStore) Path(filename string) (string, error) {
	if filename == "" ||
		strings.ContainsAny(filename, `/\`) ||
		strings.Contains(filename, "..") {
		return "", ErrBadFilename
	}

	absDir, err := filepath.Abs(s.dir)
	if err != nil {
		return "", err
	}
	path := filepath.Join(absDir, filename)
	if filepath.Dir(path) != absDir {
		return "", ErrBadFilename
	}
	return path, nil
}

// Open returns the absolute path of an existing avatar.
func (s *AvatarStore) Open(filename string) (string, error) {
	path, err := s.Path(filename)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err != nil {
		return "", ErrNotFound
	}
	return path, nil
}

func isImage(content []byte) bool {
	switch {
	case bytes.HasPrefix(content, []byte{0xff, 0xd8, 0xff}): // JPEG
		return true
	case bytes.HasPrefix(content, []byte("\x89PNG\r\n\x1a\n")): // PNG
		return true
	case bytes.HasPrefix(content, []byte("GIF87a")), bytes.HasPrefix(content, []byte("GIF89a")):
		return true
	case bytes.HasPrefix(content, []byte("RIFF")) && len(content) >= 12 && bytes.Equal(content[8:12], []byte("WEBP")):
		return true
	}
	return false
}
