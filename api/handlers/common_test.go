// Common test helpers
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/meghashyamc/driveindex/db"
	"github.com/meghashyamc/driveindex/db/kvdb"
	"github.com/meghashyamc/driveindex/db/searchdb"
	"github.com/meghashyamc/driveindex/logger"
	"github.com/meghashyamc/driveindex/services/index"
	"github.com/meghashyamc/driveindex/services/progress"
	"github.com/meghashyamc/driveindex/validation"
	"github.com/stretchr/testify/require"
)

var defaultTestRequestHeaders = map[string]string{"Content-Type": "application/json"}

var testFiles = map[string]string{
	"file1.txt":              "This is test content for file1",
	"file2.go":               "package main\n\nfunc main() {\n\tprint(\"Hello\")\n}",
	"subdir/file3.md":        "# Test Markdown\n\nThis is a test markdown file",
	"subdir/file4.json":      `{"key": "value", "number": 42}`,
	"subdir/nested/file5.py": "def hello():\n    print('Hello World')",
}

type testCase struct {
	name             string
	requestHeaders   map[string]string
	requestBody      map[string]any
	queryParams      map[string]string
	expectedStatus   int
	expectedResponse map[string]any
}

type testServer struct {
	router       *gin.Engine
	indexService *index.Service
	searchDB     *searchdb.BleveDB
	broker       *progress.Broker
	root         string
}

func newTestLogger() logger.Logger {

	opts := &slog.HandlerOptions{
		Level:     slog.LevelWarn,
		AddSource: true,
	}
	handler := slog.NewJSONHandler(os.Stderr, opts)
	return slog.New(handler)
}

func setupTestServer(t *testing.T, assert *require.Assertions) *testServer {
	t.Helper()
	root := t.TempDir()

	for relPath, content := range testFiles {
		fullPath := filepath.Join(root, relPath)
		err := os.MkdirAll(filepath.Dir(fullPath), 0755)
		assert.NoError(err, "could not create test sub-directory")
		err = os.WriteFile(fullPath, []byte(content), 0644)
		assert.NoError(err, "could not write test file")
	}

	testLogger := newTestLogger()

	searchDB, err := searchdb.NewInMemory(testLogger)
	assert.NoError(err, "could not create search database")

	kvDB, err := kvdb.Open(testLogger, filepath.Join(t.TempDir(), "kv.db"))
	assert.NoError(err, "could not create kv database")
	validator, err := validation.New(testLogger)
	assert.NoError(err, "could not create validator")

	ctx, cancel := context.WithCancel(context.Background())
	broker := progress.New(testLogger)
	indexService, err := index.New(ctx, testLogger, searchDB, kvDB, broker, index.Options{Drives: []string{root}, StatusEvery: 2})
	assert.NoError(err, "could not create index service")

	gin.SetMode(gin.TestMode)
	router := gin.New()

	SetupIndex(router, testLogger, indexService, validator)
	SetupSearch(router, testLogger, searchDB, validator)

	t.Cleanup(func() {
		cancel()
		broker.Close()
		assert.NoError(searchDB.Close(), "could not close search database")
		assert.NoError(kvDB.Close(), "could not close kv database")
	})

	return &testServer{router: router, indexService: indexService, searchDB: searchDB, broker: broker, root: root}
}

// indexTestFiles runs one indexing run over the test root and waits for it to complete.
func indexTestFiles(assert *require.Assertions, server *testServer) {
	statusC, unsubscribe := server.broker.Subscribe()
	defer unsubscribe()

	_, err := server.indexService.Build(nil)
	assert.NoError(err, "could not start indexing")
	waitForCompletion(assert, statusC)
}

func waitForCompletion(assert *require.Assertions, statusC <-chan db.IndexingStatus) db.IndexingStatus {
	timeout := time.After(10 * time.Second)
	for {
		select {
		case status, ok := <-statusC:
			assert.True(ok, "progress channel closed before completion")
			if status.IsComplete {
				return status
			}
		case <-timeout:
			assert.FailNow("timed out waiting for index creation")
		}
	}
}

func makeTestHTTPRequest(router *gin.Engine, assert *require.Assertions, method string, endpoint string, headers map[string]string, requestBodyMap map[string]interface{}, queryParams map[string]string) *httptest.ResponseRecorder {

	var err error
	w := httptest.NewRecorder()

	if len(queryParams) > 0 {
		endpoint = endpoint + "?"
		for key, value := range queryParams {
			if endpoint[len(endpoint)-1] != '?' {
				endpoint = endpoint + "&"
			}
			endpoint = endpoint + key + "=" + value
		}
	}
	var jsonBody []byte
	var req *http.Request
	if requestBodyMap != nil {
		jsonBody, err = json.Marshal(requestBodyMap)
		assert.NoError(err)
	}

	if len(jsonBody) > 0 {
		req, err = http.NewRequest(method, endpoint, bytes.NewBuffer(jsonBody))
	} else {
		req, err = http.NewRequest(method, endpoint, nil)
	}
	assert.NoError(err)

	for key, value := range headers {
		req.Header.Set(key, value)
	}
	router.ServeHTTP(w, req)

	return w
}

func decodeResponse[T any](assert *require.Assertions, w *httptest.ResponseRecorder) T {
	var envelope struct {
		Data   T        `json:"data"`
		Errors []string `json:"errors"`
	}
	assert.NoError(json.Unmarshal(w.Body.Bytes(), &envelope), "could not unmarshal gotten response")
	return envelope.Data
}
