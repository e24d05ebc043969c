package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

var searchHandlerTestCases = []testCase{
	{
		name:           "NoQuery",
		queryParams:    map[string]string{},
		expectedStatus: http.StatusNotAcceptable,
	},
	{
		name:           "EmptyQuery",
		queryParams:    map[string]string{"query": ""},
		expectedStatus: http.StatusNotAcceptable,
	},
	{
		name:           "BlankQuery",
		queryParams:    map[string]string{"query": "%20%20"},
		expectedStatus: http.StatusNotAcceptable,
	},
	{
		name:           "QueryTooLong",
		queryParams:    map[string]string{"query": strings.Repeat("a", 1001)},
		expectedStatus: http.StatusNotAcceptable,
	},
	{
		name:           "InvalidPerPage",
		queryParams:    map[string]string{"query": "file", "per_page": "-1"},
		expectedStatus: http.StatusNotAcceptable,
	},
	{
		name:           "InvalidPage",
		queryParams:    map[string]string{"query": "file", "page": "-1"},
		expectedStatus: http.StatusNotAcceptable,
	},
	{
		name:           "NonNumericPage",
		queryParams:    map[string]string{"query": "file", "page": "first"},
		expectedStatus: http.StatusUnprocessableEntity,
	},
	{
		name:           "SearchPrefixOfFilename",
		queryParams:    map[string]string{"query": "file1"},
		expectedStatus: http.StatusOK,
		expectedResponse: map[string]any{
			"data": map[string]any{
				"results": []any{
					map[string]any{"file_path": "file1.txt"},
				},
			},
		},
	},
	{
		name:           "SearchExactFilename",
		queryParams:    map[string]string{"query": "file2.go"},
		expectedStatus: http.StatusOK,
		expectedResponse: map[string]any{
			"data": map[string]any{
				"results": []any{
					map[string]any{"file_path": "file2.go"},
				},
			},
		},
	},
	{
		name:           "SearchExtension",
		queryParams:    map[string]string{"query": "md"},
		expectedStatus: http.StatusOK,
		expectedResponse: map[string]any{
			"data": map[string]any{
				"results": []any{
					map[string]any{"file_path": "subdir/file3.md"},
				},
			},
		},
	},
	{
		name:           "SearchDirectoryName",
		queryParams:    map[string]string{"query": "nested"},
		expectedStatus: http.StatusOK,
		expectedResponse: map[string]any{
			"data": map[string]any{
				"results": []any{
					map[string]any{"file_path": "subdir/nested/file5.py"},
				},
			},
		},
	},
	{
		name:           "SearchQuotedPhrase",
		queryParams:    map[string]string{"query": "%22file4.json%22"},
		expectedStatus: http.StatusOK,
		expectedResponse: map[string]any{
			"data": map[string]any{
				"results": []any{
					map[string]any{"file_path": "subdir/file4.json"},
				},
			},
		},
	},
	{
		name:           "SearchCaseInsensitive",
		queryParams:    map[string]string{"query": "FILE2"},
		expectedStatus: http.StatusOK,
		expectedResponse: map[string]any{
			"data": map[string]any{
				"results": []any{
					map[string]any{"file_path": "file2.go"},
				},
			},
		},
	},
	{
		name:           "SearchNoResults",
		queryParams:    map[string]string{"query": "nonexistent"},
		expectedStatus: http.StatusOK,
		expectedResponse: map[string]any{
			"data": map[string]any{
				"results": []any{},
				"page_details": map[string]any{
					"current_page":  float64(1),
					"page_size":     float64(20),
					"total_pages":   float64(1),
					"has_next_page": false,
					"has_prev_page": false,
					"total_results": float64(0),
				},
			},
		},
	},
	{
		name:           "SearchWithPagination",
		queryParams:    map[string]string{"query": "subdir", "per_page": "1", "page": "1"},
		expectedStatus: http.StatusOK,
		expectedResponse: map[string]any{
			"data": map[string]any{
				"page_details": map[string]any{
					"current_page":  float64(1),
					"page_size":     float64(1),
					"has_prev_page": false,
					"has_next_page": true,
				},
			},
		},
	},
}

func TestHandleSearch(t *testing.T) {
	assert := require.New(t)
	server := setupTestServer(t, assert)
	indexTestFiles(assert, server)

	for _, testCase := range searchHandlerTestCases {
		t.Run(testCase.name, func(t *testing.T) {
			assert := require.New(t)
			w := makeTestHTTPRequest(server.router, assert, http.MethodGet, "/search", testCase.requestHeaders, nil, testCase.queryParams)
			responseBytes := w.Body.Bytes()
			assert.Equal(testCase.expectedStatus, w.Code, fmt.Sprintf("response gotten was %s", string(responseBytes)))

			if testCase.expectedResponse == nil {
				return
			}

			var responseMap map[string]any
			err := json.Unmarshal(responseBytes, &responseMap)
			assert.NoError(err)

			expectedDataMap := testCase.expectedResponse["data"].(map[string]any)
			actualDataMap, ok := responseMap["data"].(map[string]any)
			assert.True(ok, "Expected data field in response")

			// Expected paths are relative to the indexed root
			if expectedResults, hasResults := expectedDataMap["results"]; hasResults {
				actualResultsSlice, ok := actualDataMap["results"].([]any)
				assert.True(ok, "Expected results field in response data")

				expectedResultsSlice := expectedResults.([]any)
				if len(expectedResultsSlice) == 0 {
					assert.Empty(actualResultsSlice, "Should have no results")
				}
				assert.GreaterOrEqual(len(actualResultsSlice), len(expectedResultsSlice), "Should have at least the expected number of results")

				for _, expectedResult := range expectedResultsSlice {
					expectedFilePath := filepath.Join(server.root, filepath.FromSlash(expectedResult.(map[string]any)["file_path"].(string)))

					found := false
					for _, actualResult := range actualResultsSlice {
						if actualResult.(map[string]any)["file_path"] == expectedFilePath {
							found = true
							break
						}
					}
					assert.True(found, fmt.Sprintf("Expected file path %s not found in results", expectedFilePath))
				}
			}

			if expectedPageDetails, hasPageDetails := expectedDataMap["page_details"]; hasPageDetails {
				actualPageDetailsMap, ok := actualDataMap["page_details"].(map[string]any)
				assert.True(ok, "Expected page_details field in response data")

				for key, expectedValue := range expectedPageDetails.(map[string]any) {
					actualValue, exists := actualPageDetailsMap[key]
					assert.True(exists, fmt.Sprintf("Expected pagination field %s not found", key))
					assert.Equal(expectedValue, actualValue, fmt.Sprintf("Pagination field %s mismatch", key))
				}
			}
		})
	}
}
