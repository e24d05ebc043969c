package db

import "time"

// FileRecord is one indexed file. Path is unique within a snapshot.
type FileRecord struct {
	Path         string    `json:"path"`
	Extension    string    `json:"extension"`
	Size         uint64    `json:"size"`
	LastModified time.Time `json:"last_modified"`
	Created      time.Time `json:"created"`
}

// IndexingStatus is a point-in-time progress report for an indexing run.
type IndexingStatus struct {
	// RunID identifies the run the status belongs to. Backends that do not
	// track runs leave it empty.
	RunID        string `json:"run_id,omitempty"`
	TotalFiles   uint64 `json:"total_files"`
	CurrentDrive string `json:"current_drive"`
	IsComplete   bool   `json:"is_complete"`
}

// RunMetadata describes the last completed indexing run.
type RunMetadata struct {
	ID          string    `json:"id"`
	Drives      []string  `json:"drives"`
	TotalFiles  uint64    `json:"total_files"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
}
