package index

import "github.com/meghashyamc/driveindex/db/kvdb"

type MetadataStore interface {
	Set(bucket string, key string, value string) error
	Get(bucket string, key string) (string, error)
	ForEach(bucket string, fn func(key string, value string) error) error
	ReplaceBucket(bucket string, entries []kvdb.KeyValue) error
}
