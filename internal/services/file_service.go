package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/rescale/twinpane/internal/events"
	"github.com/rescale/twinpane/internal/logging"
	"github.com/rescale/twinpane/internal/models"
	"github.com/rescale/twinpane/internal/storage"
	"github.com/rescale/twinpane/internal/validation"
)

// FileService handles delete, rename and folder creation on either side.
// Every operation goes through the side's storage.Filesystem; a remote
// recursive delete walks and removes children over the remote port and never
// stages anything locally.
type FileService struct {
	eventBus *events.EventBus
	logger   *logging.Logger
}

// NewFileService creates a new FileService. Both arguments may be nil.
func NewFileService(eventBus *events.EventBus, logger *logging.Logger) *FileService {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &FileService{
		eventBus: eventBus,
		logger:   logger.Component("file-service"),
	}
}

// Delete removes the file or directory at path. A directory is removed with
// its whole subtree when recursive is set; otherwise only an empty directory
// is removed. The walk stops at the first failure and the result counts what
// was removed up to that point.
func (s *FileService) Delete(ctx context.Context, fs storage.Filesystem, path string, recursive bool) (DeleteResult, error) {
	result := DeleteResult{Path: path}

	if fs.Paths().IsRoot(fs.Paths().Normalize(path)) {
		return result, fmt.Errorf("delete %s: %w", path, ErrRootPath)
	}

	entry, err := fs.Stat(ctx, path)
	if err != nil {
		return result, fmt.Errorf("failed to delete %s: %w", path, err)
	}

	if !entry.IsDir {
		if err := fs.Remove(ctx, path); err != nil {
			return result, fmt.Errorf("failed to delete %s: %w", path, err)
		}
		result.Files++
		s.published(fs.Side(), "Deleted", path)
		return result, nil
	}

	if !recursive {
		children, err := fs.List(ctx, path)
		if err != nil {
			return result, fmt.Errorf("failed to delete %s: %w", path, err)
		}
		if len(children) > 0 {
			return result, fmt.Errorf("delete %s: %w", path, ErrDirectory)
		}
		if err := fs.Rmdir(ctx, path); err != nil {
			return result, fmt.Errorf("failed to delete %s: %w", path, err)
		}
		result.Dirs++
		s.published(fs.Side(), "Deleted", path)
		return result, nil
	}

	if err := s.deleteTree(ctx, fs, path, &result); err != nil {
		s.logger.Error().Err(err).Str("path", path).Int("files", result.Files).Int("dirs", result.Dirs).Msg("Recursive delete stopped")
		return result, fmt.Errorf("failed to delete %s: %w", path, err)
	}
	s.published(fs.Side(), "Deleted", path)
	return result, nil
}

// deleteTree removes children depth-first, then the directory itself.
func (s *FileService) deleteTree(ctx context.Context, fs storage.Filesystem, dir string, result *DeleteResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	children, err := fs.List(ctx, dir)
	if err != nil {
		return err
	}

	for _, child := range children {
		if err := validation.ValidateFilename(child.Name); err != nil {
			return storage.NewAccessError("list", dir, err)
		}
		p := fs.Paths().Join(dir, child.Name)
		if child.IsDir {
			if err := s.deleteTree(ctx, fs, p, result); err != nil {
				return err
			}
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fs.Remove(ctx, p); err != nil {
			return err
		}
		result.Files++
		s.logger.Debug().Str("path", p).Msg("Removed file")
	}

	if err := fs.Rmdir(ctx, dir); err != nil {
		return err
	}
	result.Dirs++
	return nil
}

// DeleteItems deletes several entries of dir. Unlike Delete, one failing
// entry does not stop the others.
func (s *FileService) DeleteItems(ctx context.Context, fs storage.Filesystem, dir string, names []string, recursive bool) BatchResult {
	result := BatchResult{Failures: make(map[string]error)}

	for _, name := range names {
		if err := validation.ValidateFilename(name); err != nil {
			result.Failed++
			result.Failures[name] = err
			continue
		}
		if _, err := s.Delete(ctx, fs, fs.Paths().Join(dir, name), recursive); err != nil {
			s.logger.Error().Err(err).Str("name", name).Msg("Delete failed")
			result.Failed++
			result.Failures[name] = err
			continue
		}
		result.Deleted++
	}

	return result
}

// Rename renames oldName to newName inside dir and returns the new path.
// An existing target is refused rather than overwritten.
func (s *FileService) Rename(ctx context.Context, fs storage.Filesystem, dir, oldName, newName string) (string, error) {
	if err := validation.ValidateFilename(oldName); err != nil {
		return "", fmt.Errorf("invalid name: %w", err)
	}
	if err := validation.ValidateFilename(newName); err != nil {
		return "", fmt.Errorf("invalid new name: %w", err)
	}

	oldPath := fs.Paths().Join(dir, oldName)
	newPath := fs.Paths().Join(dir, newName)
	if oldName == newName {
		return newPath, nil
	}

	if err := s.ensureFree(ctx, fs, newPath); err != nil {
		return "", err
	}

	if err := fs.Rename(ctx, oldPath, newPath); err != nil {
		return "", fmt.Errorf("failed to rename %s: %w", oldPath, err)
	}
	s.published(fs.Side(), "Renamed", oldPath+" -> "+newPath)
	return newPath, nil
}

// Move renames an arbitrary path to another path on the same side.
func (s *FileService) Move(ctx context.Context, fs storage.Filesystem, oldPath, newPath string) error {
	if fs.Paths().IsRoot(fs.Paths().Normalize(oldPath)) {
		return fmt.Errorf("move %s: %w", oldPath, ErrRootPath)
	}
	if err := s.ensureFree(ctx, fs, newPath); err != nil {
		return err
	}
	if err := fs.Rename(ctx, oldPath, newPath); err != nil {
		return fmt.Errorf("failed to move %s: %w", oldPath, err)
	}
	s.published(fs.Side(), "Moved", oldPath+" -> "+newPath)
	return nil
}

// CreateFolder creates name inside dir and returns its path.
func (s *FileService) CreateFolder(ctx context.Context, fs storage.Filesystem, dir, name string) (string, error) {
	if err := validation.ValidateFilename(name); err != nil {
		return "", fmt.Errorf("invalid folder name: %w", err)
	}

	p := fs.Paths().Join(dir, name)
	if err := s.ensureFree(ctx, fs, p); err != nil {
		return "", err
	}
	if err := fs.Mkdir(ctx, p); err != nil {
		return "", fmt.Errorf("failed to create folder %s: %w", p, err)
	}
	s.published(fs.Side(), "Created folder", p)
	return p, nil
}

func (s *FileService) ensureFree(ctx context.Context, fs storage.Filesystem, p string) error {
	_, err := fs.Stat(ctx, p)
	if err == nil {
		return fmt.Errorf("%s: %w", p, ErrExists)
	}
	if storage.IsNotExist(err) {
		return nil
	}
	var ce *storage.ConnectionError
	if errors.As(err, &ce) {
		return err
	}
	return fmt.Errorf("failed to check %s: %w", p, err)
}

func (s *FileService) published(side models.Side, action, what string) {
	s.logger.Info().Str("side", string(side)).Msg(action + " " + what)
	s.eventBus.PublishLog(events.InfoLevel, action+" "+what, "file-service", nil)
}
