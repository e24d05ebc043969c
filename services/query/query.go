package query

import (
	"strings"

	"github.com/meghashyamc/driveindex/db"
)

// MaxResults bounds the number of records returned by Filter.
const MaxResults = 1000

// Filter returns the records whose path contains keyword, ignoring case, in
// their original order and capped at MaxResults. A blank keyword matches nothing.
func Filter(keyword string, records []db.FileRecord) []db.FileRecord {
	results, _ := filter(keyword, records)
	return results
}

// Match is Filter that also reports whether more than MaxResults records matched.
func Match(keyword string, records []db.FileRecord) ([]db.FileRecord, bool) {
	return filter(keyword, records)
}

func filter(keyword string, records []db.FileRecord) ([]db.FileRecord, bool) {
	results := []db.FileRecord{}
	if strings.TrimSpace(keyword) == "" {
		return results, false
	}

	searchTerm := strings.ToLower(keyword)
	for _, record := range records {
		if !strings.Contains(strings.ToLower(record.Path), searchTerm) {
			continue
		}
		if len(results) == MaxResults {
			return results, true
		}
		results = append(results, record)
	}

	return results, false
}
