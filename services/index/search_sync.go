package index

import (
	"path/filepath"

	"github.com/meghashyamc/driveindex/db"
	"github.com/meghashyamc/driveindex/db/searchdb"
)

// syncSearchIndex mirrors the next snapshot into the search index, removing
// paths that disappeared since the previous one. Failures leave the search
// index stale but never affect the snapshot itself.
func (s *Service) syncSearchIndex(previousPaths []string, next []db.FileRecord) {
	nextPaths := make(map[string]struct{}, len(next))
	for _, record := range next {
		nextPaths[record.Path] = struct{}{}
	}

	var deletedPaths []string
	for _, path := range previousPaths {
		if _, ok := nextPaths[path]; !ok {
			deletedPaths = append(deletedPaths, path)
		}
	}

	if len(deletedPaths) > 0 {
		s.logger.Info("removing deleted files from search index", "deleted_files", len(deletedPaths))
		if err := s.indexer.DeleteDocuments(deletedPaths); err != nil {
			s.logger.Error("failed to delete documents from search index", "err", err.Error())
		}
	}

	documents := make([]searchdb.Document, 0, len(next))
	for _, record := range next {
		documents = append(documents, toDocument(record))
	}
	if err := s.indexer.BuildIndex(documents); err != nil {
		s.logger.Error("failed to build search index", "err", err.Error())
	}
}

func pathsOf(records []db.FileRecord) []string {
	paths := make([]string, 0, len(records))
	for _, record := range records {
		paths = append(paths, record.Path)
	}
	return paths
}

func toDocument(record db.FileRecord) searchdb.Document {
	return searchdb.Document{
		ID:        record.Path,
		Path:      record.Path,
		Name:      filepath.Base(record.Path),
		Extension: record.Extension,
		Size:      record.Size,
		ModTime:   record.LastModified,
	}
}
