package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/meghashyamc/driveindex/db"
	"github.com/meghashyamc/driveindex/db/kvdb"
	"github.com/meghashyamc/driveindex/db/searchdb"
	"github.com/meghashyamc/driveindex/logger"
	"github.com/meghashyamc/driveindex/services/progress"
)

var (
	ErrIndexingInProgress = errors.New("indexing already in progress")
	ErrNoDrives           = errors.New("no drives to index")
)

// Indexer represents the search database operations needed to mirror a snapshot
type Indexer interface {
	BuildIndex(documents []searchdb.Document) error
	DeleteDocuments(documentIDs []string) error
	DocumentIDs() ([]string, error)
	GetDocCount() (uint64, error)
}

const (
	defaultStatusEvery   = 1000
	maxIndexBuildingTime = 2 * time.Hour
	snapshotKeyFormat    = "%012d"
)

type Options struct {
	// Drives are indexed when Build is called without any.
	Drives       []string
	ExcludedDirs []string
	// StatusEvery is the number of discovered files between two progress statuses.
	StatusEvery int
	// MaxBuildTime bounds a single run. A run exceeding it is abandoned.
	MaxBuildTime time.Duration
}

type Service struct {
	logger        logger.Logger
	indexer       Indexer
	metadataStore MetadataStore
	broker        *progress.Broker
	options       Options
	buildIndexC   chan indexRequest
	done          chan struct{}
	indexing      atomic.Bool
	snapshot      atomic.Pointer[[]db.FileRecord]

	mu      sync.RWMutex
	lastRun *db.RunMetadata
}

type indexRequest struct {
	drives    []string
	requestID string
}

func New(ctx context.Context, logger logger.Logger, indexer Indexer, metadataStore MetadataStore, broker *progress.Broker, options Options) (*Service, error) {
	if options.StatusEvery <= 0 {
		options.StatusEvery = defaultStatusEvery
	}
	if options.MaxBuildTime <= 0 {
		options.MaxBuildTime = maxIndexBuildingTime
	}

	indexService := &Service{
		logger:        logger,
		indexer:       indexer,
		metadataStore: metadataStore,
		broker:        broker,
		options:       options,
		buildIndexC:   make(chan indexRequest, 1),
		done:          make(chan struct{}),
	}

	if err := indexService.loadSnapshot(); err != nil {
		return nil, err
	}

	go indexService.build(ctx)
	return indexService, nil
}

// Build queues an indexing run over drives, or over the configured drives when
// none are given. Only one run can be queued or in progress at a time.
func (s *Service) Build(drives []string) (string, error) {
	if len(drives) == 0 {
		drives = s.options.Drives
	}
	if len(drives) == 0 {
		return "", ErrNoDrives
	}

	if !s.indexing.CompareAndSwap(false, true) {
		s.logger.Warn("request to index while indexing is already in progress")
		return "", ErrIndexingInProgress
	}

	requestID := uuid.New().String()
	select {
	// This leads to s.buildIndex being called
	case s.buildIndexC <- indexRequest{drives: drives, requestID: requestID}:
		return requestID, nil
	default:
		s.indexing.Store(false)
		s.logger.Warn("request to index while indexing is already in progress")
		return "", ErrIndexingInProgress
	}
}

// IsIndexingComplete reports whether a completed snapshot is available and no run is in progress.
func (s *Service) IsIndexingComplete(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return !s.indexing.Load() && s.snapshot.Load() != nil, nil
}

// GetAllIndexEntries returns the last completed snapshot. The returned slice must not be modified.
func (s *Service) GetAllIndexEntries(ctx context.Context) ([]db.FileRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	snapshot := s.snapshot.Load()
	if snapshot == nil {
		return []db.FileRecord{}, nil
	}
	return *snapshot, nil
}

// SubscribeProgress streams progress statuses, starting with the last published
// one when it exists. A subscriber therefore always sees the completion of the
// previous run before the first status of a new one.
func (s *Service) SubscribeProgress(ctx context.Context) (<-chan db.IndexingStatus, func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	statusC, unsubscribe := s.broker.SubscribeWithLatest()
	return statusC, unsubscribe, nil
}

// LatestStatus returns the last progress status published by this service.
func (s *Service) LatestStatus() (db.IndexingStatus, bool) {
	return s.broker.Latest()
}

// Done is closed once the build loop has stopped, after any run in progress
// has returned.
func (s *Service) Done() <-chan struct{} {
	return s.done
}

// LastRun returns the metadata of the last completed run, or nil.
func (s *Service) LastRun() *db.RunMetadata {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastRun == nil {
		return nil
	}
	lastRun := *s.lastRun
	return &lastRun
}

func (s *Service) build(ctx context.Context) {
	defer close(s.done)

	for {
		select {
		case req := <-s.buildIndexC:
			indexTimeoutCtx, cancel := context.WithTimeout(ctx, s.options.MaxBuildTime)
			s.buildIndex(indexTimeoutCtx, req.drives, req.requestID)
			cancel()
		case <-ctx.Done():
			s.logger.Info("index service stopped", "reason", ctx.Err().Error())
			return
		}
	}
}

func (s *Service) buildIndex(ctx context.Context, drives []string, requestID string) {
	startedAt := time.Now().UTC()
	s.logger.Info("starting indexing run", "request_id", requestID, "drives", drives)

	var records []db.FileRecord
	seen := make(map[string]struct{})

	for _, drive := range drives {
		s.publish(requestID, drive, len(records), false)

		driveRecords, err := s.discoverFiles(ctx, drive, seen, func(discovered int) {
			if discovered%s.options.StatusEvery == 0 {
				s.publish(requestID, drive, len(records)+discovered, false)
			}
		})
		if ctx.Err() != nil {
			s.logger.Error("indexing cancelled", "request_id", requestID, "err", ctx.Err().Error())
			s.abandonRun()
			return
		}
		if err != nil {
			s.logger.Error("failed to index drive, skipping it", "request_id", requestID, "drive", drive, "err", err.Error())
		}

		records = append(records, driveRecords...)
		s.logger.Info("indexed drive", "request_id", requestID, "drive", drive, "files", len(driveRecords))
		s.publish(requestID, drive, len(records), false)
	}

	run := &db.RunMetadata{
		ID:          requestID,
		Drives:      drives,
		TotalFiles:  uint64(len(records)),
		StartedAt:   startedAt,
		CompletedAt: time.Now().UTC(),
	}

	if err := s.persistSnapshot(records, run); err != nil {
		s.logger.Error("failed to persist snapshot, keeping it in memory only", "request_id", requestID, "err", err.Error())
	}
	s.syncSearchIndex(pathsOf(s.currentSnapshot()), records)

	s.snapshot.Store(&records)
	s.mu.Lock()
	s.lastRun = run
	s.mu.Unlock()

	s.indexing.Store(false)
	s.publish(requestID, "", len(records), true)
	s.logger.Info("indexing run complete", "request_id", requestID, "files", len(records), "duration", run.CompletedAt.Sub(startedAt).String())
}

// abandonRun ends a cancelled run. The previous snapshot stays current, so its
// completion is published again and subscribers never keep a dangling
// in-progress status.
func (s *Service) abandonRun() {
	s.indexing.Store(false)

	lastRun := s.LastRun()
	if lastRun == nil {
		s.logger.Warn("no completed run to fall back to after cancelled run")
		return
	}
	s.publish(lastRun.ID, "", len(s.currentSnapshot()), true)
}

func (s *Service) publish(runID string, drive string, totalFiles int, isComplete bool) {
	s.broker.Publish(db.IndexingStatus{
		RunID:        runID,
		TotalFiles:   uint64(totalFiles),
		CurrentDrive: drive,
		IsComplete:   isComplete,
	})
}

func (s *Service) currentSnapshot() []db.FileRecord {
	if snapshot := s.snapshot.Load(); snapshot != nil {
		return *snapshot
	}
	return nil
}

func (s *Service) persistSnapshot(records []db.FileRecord, run *db.RunMetadata) error {
	entries := make([]kvdb.KeyValue, 0, len(records))
	for i, record := range records {
		data, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("failed to marshal record %s: %w", record.Path, err)
		}
		entries = append(entries, kvdb.KeyValue{Key: fmt.Sprintf(snapshotKeyFormat, i), Value: string(data)})
	}

	if err := s.metadataStore.ReplaceBucket(kvdb.SnapshotBucket, entries); err != nil {
		return fmt.Errorf("failed to store snapshot: %w", err)
	}

	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to marshal run metadata: %w", err)
	}
	if err := s.metadataStore.Set(kvdb.RunsBucket, kvdb.LastCompletedRunKey, string(data)); err != nil {
		return fmt.Errorf("failed to store run metadata: %w", err)
	}

	return nil
}

func (s *Service) loadSnapshot() error {
	value, err := s.metadataStore.Get(kvdb.RunsBucket, kvdb.LastCompletedRunKey)
	if err != nil {
		if errors.Is(err, kvdb.ErrNotFound) {
			s.logger.Info("no completed indexing run found")
			return nil
		}
		return fmt.Errorf("failed to read last run: %w", err)
	}

	var run db.RunMetadata
	if err := json.Unmarshal([]byte(value), &run); err != nil {
		s.logger.Error("failed to unmarshal last run, ignoring stored snapshot", "err", err.Error())
		return nil
	}

	records := make([]db.FileRecord, 0, run.TotalFiles)
	err = s.metadataStore.ForEach(kvdb.SnapshotBucket, func(key string, value string) error {
		var record db.FileRecord
		if err := json.Unmarshal([]byte(value), &record); err != nil {
			return fmt.Errorf("failed to unmarshal record %s: %w", key, err)
		}
		records = append(records, record)
		return nil
	})
	if err != nil {
		s.logger.Error("failed to load stored snapshot, ignoring it", "err", err.Error())
		return nil
	}

	if uint64(len(records)) != run.TotalFiles {
		s.logger.Warn("stored snapshot does not match last run", "run_id", run.ID, "expected", run.TotalFiles, "found", len(records))
	}

	s.snapshot.Store(&records)
	s.lastRun = &run
	s.logger.Info("loaded stored snapshot", "run_id", run.ID, "files", len(records))
	s.publish(run.ID, "", len(records), true)

	if count, err := s.indexer.GetDocCount(); err != nil || count != uint64(len(records)) {
		// documents left over from a run that was never persisted
		indexedPaths, err := s.indexer.DocumentIDs()
		if err != nil {
			s.logger.Error("failed to list search index documents", "err", err.Error())
		}
		s.syncSearchIndex(indexedPaths, records)
	}

	return nil
}
