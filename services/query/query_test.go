package query

import (
	"fmt"
	"strings"
	"testing"

	"github.com/meghashyamc/driveindex/db"
	"github.com/stretchr/testify/require"
)

func records(paths ...string) []db.FileRecord {
	result := make([]db.FileRecord, 0, len(paths))
	for _, path := range paths {
		result = append(result, db.FileRecord{Path: path})
	}
	return result
}

func paths(records []db.FileRecord) []string {
	result := make([]string, 0, len(records))
	for _, record := range records {
		result = append(result, record.Path)
	}
	return result
}

var testRecords = records(
	"/home/alice/Documents/Report.pdf",
	"/home/alice/music/report_song.mp3",
	"/var/log/syslog",
	"/home/bob/REPORTS/q1.xlsx",
	"/opt/tools/bin/reporter",
)

var filterTestCases = []struct {
	name          string
	keyword       string
	expectedPaths []string
}{
	{
		name:          "EmptyKeyword",
		keyword:       "",
		expectedPaths: []string{},
	},
	{
		name:          "WhitespaceKeyword",
		keyword:       " \t\n ",
		expectedPaths: []string{},
	},
	{
		name:    "CaseInsensitiveMatchKeepsOrder",
		keyword: "RePoRt",
		expectedPaths: []string{
			"/home/alice/Documents/Report.pdf",
			"/home/alice/music/report_song.mp3",
			"/home/bob/REPORTS/q1.xlsx",
			"/opt/tools/bin/reporter",
		},
	},
	{
		name:          "MatchesDirectoryComponents",
		keyword:       "alice/",
		expectedPaths: []string{"/home/alice/Documents/Report.pdf", "/home/alice/music/report_song.mp3"},
	},
	{
		name:          "KeywordIsNotTrimmedWhenNotBlank",
		keyword:       " song",
		expectedPaths: []string{},
	},
	{
		name:          "NoMatch",
		keyword:       "nothing-here",
		expectedPaths: []string{},
	},
}

func TestFilter(t *testing.T) {
	for _, testCase := range filterTestCases {
		t.Run(testCase.name, func(t *testing.T) {
			assert := require.New(t)
			results := Filter(testCase.keyword, testRecords)
			assert.NotNil(results)
			assert.Equal(testCase.expectedPaths, paths(results))
		})
	}
}

func TestFilterOnlyMatchesPath(t *testing.T) {
	assert := require.New(t)
	input := []db.FileRecord{{Path: "/tmp/archive", Extension: "pdf"}}

	assert.Empty(Filter("pdf", input), "extension must not be matched")
}

func TestFilterEmptyRecords(t *testing.T) {
	assert := require.New(t)

	assert.Empty(Filter("anything", nil))
}

func TestFilterMatchesExactlyTheContainingRecords(t *testing.T) {
	assert := require.New(t)
	keyword := "Rep"

	results := Filter(keyword, testRecords)
	matched := make(map[string]bool, len(results))
	for _, record := range results {
		matched[record.Path] = true
		assert.Contains(strings.ToLower(record.Path), strings.ToLower(keyword))
	}
	for _, record := range testRecords {
		if !matched[record.Path] {
			assert.NotContains(strings.ToLower(record.Path), strings.ToLower(keyword))
		}
	}
}

func TestFilterTruncatesToFirstMatches(t *testing.T) {
	assert := require.New(t)

	var input []db.FileRecord
	for i := range 2500 {
		if i%2 == 0 {
			input = append(input, db.FileRecord{Path: fmt.Sprintf("/data/match-%05d.txt", i)})
		} else {
			input = append(input, db.FileRecord{Path: fmt.Sprintf("/data/other-%05d.txt", i)})
		}
	}

	results := Filter("MATCH", input)
	assert.Len(results, MaxResults)
	assert.Equal("/data/match-00000.txt", results[0].Path)
	assert.Equal(fmt.Sprintf("/data/match-%05d.txt", 2*(MaxResults-1)), results[MaxResults-1].Path)

	matched, truncated := Match("MATCH", input)
	assert.Equal(results, matched)
	assert.True(truncated)
}

func TestFilterExactlyMaxResultsIsNotTruncated(t *testing.T) {
	assert := require.New(t)

	var input []db.FileRecord
	for i := range MaxResults {
		input = append(input, db.FileRecord{Path: fmt.Sprintf("/data/file-%d", i)})
	}

	results, truncated := Match("file", input)
	assert.Len(results, MaxResults)
	assert.False(truncated)
}

func TestFilterIsIdempotent(t *testing.T) {
	assert := require.New(t)

	first := Filter("report", testRecords)
	second := Filter("report", testRecords)
	assert.Equal(first, second)
}
