package client

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
	"github.com/meghashyamc/driveindex/api/handlers"
	"github.com/meghashyamc/driveindex/config"
	"github.com/meghashyamc/driveindex/db"
	"github.com/meghashyamc/driveindex/db/kvdb"
	"github.com/meghashyamc/driveindex/db/searchdb"
	"github.com/meghashyamc/driveindex/services/index"
	"github.com/meghashyamc/driveindex/services/progress"
	"github.com/meghashyamc/driveindex/validation"
	"github.com/stretchr/testify/require"
)

func newTestHTTPBackend(t *testing.T, assert *require.Assertions, serverURL string) *HTTPBackend {
	t.Helper()
	t.Setenv("SERVER_URL", serverURL)
	cfg, err := config.Load("test")
	assert.NoError(err, "could not load config")
	return NewHTTPBackend(newTestLogger(), cfg)
}

func TestScanEvents(t *testing.T) {
	assert := require.New(t)
	stream := "event:indexing-status\ndata:{\"total_files\":1}\n\nevent:indexing-status\ndata:{\"total_files\":2}\n\nevent:indexing-sta"

	scanner := bufio.NewScanner(strings.NewReader(stream))
	scanner.Split(scanEvents)

	var frames []string
	for scanner.Scan() {
		frames = append(frames, scanner.Text())
	}
	assert.NoError(scanner.Err())
	assert.Equal([]string{
		"event:indexing-status\ndata:{\"total_files\":1}\n\n",
		"event:indexing-status\ndata:{\"total_files\":2}\n\n",
	}, frames, "an incomplete trailing frame is dropped")
}

func TestDecodeStatus(t *testing.T) {
	testCases := []struct {
		name      string
		data      any
		expected  db.IndexingStatus
		expectErr bool
	}{
		{name: "String", data: `{"total_files":3,"current_drive":"/","is_complete":false}`, expected: db.IndexingStatus{TotalFiles: 3, CurrentDrive: "/"}},
		{name: "Bytes", data: []byte(`{"total_files":3,"is_complete":true}`), expected: db.IndexingStatus{TotalFiles: 3, IsComplete: true}},
		{name: "Malformed", data: `{"total_files":`, expectErr: true},
		{name: "UnexpectedType", data: 42, expectErr: true},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			assert := require.New(t)
			status, err := decodeStatus(testCase.data)
			if testCase.expectErr {
				assert.Error(err)
				return
			}
			assert.NoError(err)
			assert.Equal(testCase.expected, status)
		})
	}
}

func TestHTTPBackendWithAPI(t *testing.T) {
	assert := require.New(t)
	root := t.TempDir()
	for _, relPath := range []string{"music/track01.mp3", "music/track02.mp3", "notes.txt"} {
		fullPath := filepath.Join(root, relPath)
		assert.NoError(os.MkdirAll(filepath.Dir(fullPath), 0755))
		assert.NoError(os.WriteFile(fullPath, []byte(relPath), 0644))
	}

	testLogger := newTestLogger()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	kvDB, err := kvdb.Open(testLogger, filepath.Join(t.TempDir(), "kv.db"))
	assert.NoError(err)
	defer kvDB.Close()
	searchDB, err := searchdb.NewInMemory(testLogger)
	assert.NoError(err)
	defer searchDB.Close()
	broker := progress.New(testLogger)
	defer broker.Close()
	validator, err := validation.New(testLogger)
	assert.NoError(err)

	service, err := index.New(ctx, testLogger, searchDB, kvDB, broker, index.Options{Drives: []string{root}, StatusEvery: 1})
	assert.NoError(err)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	handlers.SetupIndex(router, testLogger, service, validator)
	httpServer := httptest.NewServer(router)
	defer httpServer.Close()

	backend := newTestHTTPBackend(t, assert, httpServer.URL)

	complete, err := backend.IsIndexingComplete(context.Background())
	assert.NoError(err)
	assert.False(complete)

	entries, err := backend.GetAllIndexEntries(context.Background())
	assert.NoError(err)
	assert.Empty(entries)

	_, err = backend.StartIndexing(context.Background(), []string{"relative/path"})
	assert.ErrorContains(err, "406")

	client, stopClient := startClient(t, backend)
	// The client stops before the test server closes.
	defer stopClient()

	_, err = client.SetKeyword(context.Background(), "track")
	assert.NoError(err)

	runID, err := backend.StartIndexing(context.Background(), nil)
	assert.NoError(err)
	assert.NotEmpty(runID)

	assert.Eventually(func() bool {
		view := client.View()
		return view.IndexedFiles == 3 && !view.IsIndexing
	}, waitFor, tick)
	assert.Len(client.View().Results, 2)

	complete, err = backend.IsIndexingComplete(context.Background())
	assert.NoError(err)
	assert.True(complete)
}

// sseServer serves one status per connection from statuses and then ends the
// stream, except for the last one which stays open when holdLast is set. Once
// statuses run out, connections are refused with 503.
func sseServer(statuses []db.IndexingStatus, holdLast bool, connections *atomic.Int32) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(connections.Add(1))
		if r.URL.Path != "/index/events" || n > len(statuses) {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		sse.Encode(w, sse.Event{Event: "heartbeat", Data: "ignored"})
		sse.Encode(w, sse.Event{Event: progress.EventIndexingStatus, Data: statuses[n-1]})
		w.(http.Flusher).Flush()

		if holdLast && n == len(statuses) {
			<-r.Context().Done()
		}
	}))
}

func TestHTTPBackendReconnectsDroppedStream(t *testing.T) {
	assert := require.New(t)
	var connections atomic.Int32
	statuses := []db.IndexingStatus{
		{TotalFiles: 10, CurrentDrive: "/"},
		{TotalFiles: 25, IsComplete: true},
	}
	httpServer := sseServer(statuses, true, &connections)
	defer httpServer.Close()

	backend := newTestHTTPBackend(t, assert, httpServer.URL)
	statusC, unsubscribe, err := backend.SubscribeProgress(context.Background())
	assert.NoError(err)

	for _, expected := range statuses {
		select {
		case status := <-statusC:
			assert.Equal(expected, status)
		case <-time.After(waitFor):
			assert.FailNow("timed out waiting for status")
		}
	}
	assert.Equal(int32(2), connections.Load())

	unsubscribe()
	unsubscribe()
	_, ok := <-statusC
	assert.False(ok, "unsubscribe closes the channel")
}

func TestHTTPBackendGivesUpAfterReconnectTimeout(t *testing.T) {
	assert := require.New(t)
	var connections atomic.Int32
	httpServer := sseServer([]db.IndexingStatus{{TotalFiles: 1, CurrentDrive: "/"}}, false, &connections)
	defer httpServer.Close()

	backend := newTestHTTPBackend(t, assert, httpServer.URL)
	statusC, unsubscribe, err := backend.SubscribeProgress(context.Background())
	assert.NoError(err)
	defer unsubscribe()

	assert.Equal(db.IndexingStatus{TotalFiles: 1, CurrentDrive: "/"}, <-statusC)

	select {
	case _, ok := <-statusC:
		assert.False(ok, "the channel closes once reconnecting gives up")
	case <-time.After(3 * waitFor):
		assert.FailNow("backend did not give up reconnecting")
	}
	assert.Greater(connections.Load(), int32(2))
}

func TestHTTPBackendSubscribeFailsWhenUnavailable(t *testing.T) {
	assert := require.New(t)
	var connections atomic.Int32
	httpServer := sseServer(nil, false, &connections)
	defer httpServer.Close()

	backend := newTestHTTPBackend(t, assert, httpServer.URL)
	_, _, err := backend.SubscribeProgress(context.Background())
	assert.ErrorContains(err, "503")

	_, err = backend.IsIndexingComplete(context.Background())
	assert.ErrorContains(err, "503")
}
