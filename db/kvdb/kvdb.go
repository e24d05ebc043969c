package kvdb

const (
	// SnapshotBucket holds the last completed index snapshot, keyed by position.
	SnapshotBucket = "snapshot"
	// RunsBucket holds metadata about completed indexing runs.
	RunsBucket = "runs"

	LastCompletedRunKey = "last_completed"
)

var buckets = []string{SnapshotBucket, RunsBucket}

type KeyValue struct {
	Key   string
	Value string
}

type DB interface {
	Set(bucket string, key string, value string) error
	Get(bucket string, key string) (string, error)
	Delete(bucket string, key string) error
	GetAllKeys(bucket string) ([]string, error)
	ForEach(bucket string, fn func(key string, value string) error) error
	ReplaceBucket(bucket string, entries []KeyValue) error
	Close() error
}

var _ DB = (*BoltDB)(nil)
