package index

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/meghashyamc/driveindex/db"
)

// Directories whose path below the drive contains one of these (case-insensitive) are never walked.
var systemDirectoryMarkers = []string{
	"windows",
	"$recycle.bin",
	"system volume information",
	"program files",
	"appdata",
}

var errIndexingCancelled = errors.New("indexing cancelled")

// discoverFiles walks drive and returns a record for every regular file whose
// path is not in seen. onFile is called with the running count of new records.
func (s *Service) discoverFiles(ctx context.Context, drive string, seen map[string]struct{}, onFile func(discovered int)) ([]db.FileRecord, error) {
	var records []db.FileRecord
	excludeSet := make(map[string]struct{}, len(s.options.ExcludedDirs))
	for _, folder := range s.options.ExcludedDirs {
		excludeSet[filepath.Clean(folder)] = struct{}{}
	}

	err := filepath.Walk(drive, func(path string, info os.FileInfo, err error) error {
		if ctx.Err() != nil {
			return errIndexingCancelled
		}

		if err != nil {
			if path == drive {
				return err
			}
			s.logger.Warn("could not walk through file or directory", "path", path, "err", err.Error())
			if info != nil && info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if info.IsDir() {
			if path == drive {
				return nil
			}
			// Skip directories that start with '.', system directories and excluded folders
			if strings.HasPrefix(info.Name(), ".") || isSystemDirectory(drive, path) || isInExcludedPath(path, excludeSet) {
				return filepath.SkipDir
			}
			return nil
		}

		// Symlinks, devices, sockets and pipes are not indexed
		if !info.Mode().IsRegular() {
			return nil
		}

		if _, ok := seen[path]; ok {
			return nil
		}
		seen[path] = struct{}{}

		records = append(records, newFileRecord(path, info))
		onFile(len(records))

		return nil
	})

	if errors.Is(err, errIndexingCancelled) {
		return records, ctx.Err()
	}

	return records, err
}

func newFileRecord(path string, info os.FileInfo) db.FileRecord {
	return db.FileRecord{
		Path:         path,
		Extension:    strings.TrimPrefix(filepath.Ext(info.Name()), "."),
		Size:         uint64(max(info.Size(), 0)),
		LastModified: info.ModTime().UTC(),
		Created:      creationTime(path, info).UTC(),
	}
}

// Only the part of path below drive is checked, so a drive mounted under a
// matching directory is still indexed.
func isSystemDirectory(drive string, path string) bool {
	relPath, err := filepath.Rel(drive, path)
	if err != nil {
		relPath = path
	}
	lowerPath := strings.ToLower(relPath)
	for _, marker := range systemDirectoryMarkers {
		if strings.Contains(lowerPath, marker) {
			return true
		}
	}
	return false
}

// Assumes current path and excluded paths are clean
func isInExcludedPath(currentPath string, excludeSet map[string]struct{}) bool {

	if len(excludeSet) == 0 {
		return false
	}

	if _, ok := excludeSet[currentPath]; !ok {
		return false
	}

	return true
}
