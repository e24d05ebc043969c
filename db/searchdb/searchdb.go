package searchdb

// DB is the ranked file search store. It mirrors the last completed
// snapshot, keyed by file path.
type DB interface {
	BuildIndex(documents []Document) error
	DeleteDocuments(documentIDs []string) error
	DocumentIDs() ([]string, error)
	Search(queryString string, limit int, offset int) (*Response, error)
	GetDocCount() (uint64, error)
	Close() error
}

var _ DB = (*BleveDB)(nil)
