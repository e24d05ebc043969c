package client

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/meghashyamc/driveindex/db"
	"github.com/meghashyamc/driveindex/logger"
)

var (
	ErrAlreadyRunning = errors.New("client is already running")
	ErrClientStopped  = errors.New("client is not running")
)

// Backend is the indexing backend the client keeps its store in sync with.
// SubscribeProgress starts with the backend's latest status when it has one.
type Backend interface {
	IsIndexingComplete(ctx context.Context) (bool, error)
	GetAllIndexEntries(ctx context.Context) ([]db.FileRecord, error)
	SubscribeProgress(ctx context.Context) (<-chan db.IndexingStatus, func(), error)
}

// Client mirrors the backend's completed snapshot into an IndexStore and
// filters it by keyword. All state transitions run on the goroutine calling Run.
type Client struct {
	logger   logger.Logger
	backend  Backend
	state    *State
	keywordC chan keywordRequest
	fetchedC chan fetchResult
	updatesC chan struct{}
	done     chan struct{}
	running  atomic.Bool

	// owned by the Run goroutine
	fetchGeneration   int
	appliedGeneration int

	mu   sync.RWMutex
	view View
}

type keywordRequest struct {
	keyword string
	replyC  chan View
}

type fetchResult struct {
	generation int
	records    []db.FileRecord
	err        error
}

func New(logger logger.Logger, backend Backend) *Client {
	state := NewState(NewIndexStore())
	return &Client{
		logger:   logger,
		backend:  backend,
		state:    state,
		keywordC: make(chan keywordRequest),
		fetchedC: make(chan fetchResult),
		updatesC: make(chan struct{}, 1),
		done:     make(chan struct{}),
		view:     state.View(),
	}
}

// Run synchronizes with the backend until ctx is cancelled. A Client runs once.
func (c *Client) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(c.done)

	// Subscribing first means a run completing during the startup check is
	// still observed on the stream.
	statusC, unsubscribe := c.subscribeToProgress(ctx)
	defer unsubscribe()

	c.checkCompletionOnStartup(ctx)

	for {
		select {
		case status, ok := <-statusC:
			if !ok {
				c.logger.Warn("progress stream closed")
				statusC = nil
				continue
			}
			c.logger.Debug("received indexing status", "total_files", status.TotalFiles, "current_drive", status.CurrentDrive, "is_complete", status.IsComplete)
			if c.state.OnStatus(status) {
				c.fetchFullIndex(ctx)
			}
			c.publish()

		case result := <-c.fetchedC:
			c.applyFetchResult(result)
			c.publish()

		case request := <-c.keywordC:
			c.state.OnKeywordChanged(request.keyword)
			request.replyC <- c.publish()

		case <-ctx.Done():
			c.logger.Info("client stopped", "reason", ctx.Err().Error())
			return nil
		}
	}
}

// SetKeyword changes the search keyword and returns the resulting view.
func (c *Client) SetKeyword(ctx context.Context, keyword string) (View, error) {
	request := keywordRequest{keyword: keyword, replyC: make(chan View, 1)}

	select {
	case c.keywordC <- request:
	case <-c.done:
		return View{}, ErrClientStopped
	case <-ctx.Done():
		return View{}, ctx.Err()
	}

	select {
	case view := <-request.replyC:
		return view, nil
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
}

// View returns the last published view.
func (c *Client) View() View {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return copyView(c.view)
}

// Updates signals after the view changed. Signals are coalesced, so a
// receiver should read View rather than count them.
func (c *Client) Updates() <-chan struct{} {
	return c.updatesC
}

// Done is closed once Run has returned.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) subscribeToProgress(ctx context.Context) (<-chan db.IndexingStatus, func()) {
	statusC, unsubscribe, err := c.backend.SubscribeProgress(ctx)
	if err != nil {
		c.logger.Error("could not subscribe to indexing progress", "err", err.Error())
		return nil, func() {}
	}
	return statusC, unsubscribe
}

func (c *Client) checkCompletionOnStartup(ctx context.Context) {
	complete, err := c.backend.IsIndexingComplete(ctx)
	if err != nil {
		c.logger.Warn("could not check whether indexing is complete, waiting for progress", "err", err.Error())
		complete = false
	}

	if c.state.OnStartupCheck(complete) {
		c.fetchFullIndex(ctx)
	}
	c.publish()
}

// fetchFullIndex fetches the snapshot on its own goroutine and hands the
// result to the Run loop. A result arriving after Run returned is dropped.
func (c *Client) fetchFullIndex(ctx context.Context) {
	c.fetchGeneration++
	generation := c.fetchGeneration
	fetchCtx := context.WithoutCancel(ctx)

	c.logger.Info("fetching index", "generation", generation)
	go func() {
		records, err := c.backend.GetAllIndexEntries(fetchCtx)
		select {
		case c.fetchedC <- fetchResult{generation: generation, records: records, err: err}:
		case <-c.done:
			c.logger.Debug("dropping index fetched after client stopped", "generation", generation)
		}
	}()
}

func (c *Client) applyFetchResult(result fetchResult) {
	if result.generation < c.appliedGeneration {
		c.logger.Info("dropping outdated index fetch", "generation", result.generation, "applied_generation", c.appliedGeneration)
		return
	}
	c.appliedGeneration = result.generation

	if result.err != nil {
		c.logger.Error("could not fetch index, keeping the current one", "generation", result.generation, "err", result.err.Error())
		c.state.OnIndexFetchFailed(result.err)
		return
	}

	c.state.OnIndexFetched(result.records)
	c.logger.Info("index loaded", "generation", result.generation, "files", len(result.records))
}

func (c *Client) publish() View {
	view := c.state.View()

	c.mu.Lock()
	c.view = view
	c.mu.Unlock()

	select {
	case c.updatesC <- struct{}{}:
	default:
	}

	return copyView(view)
}

func copyView(view View) View {
	results := make([]db.FileRecord, len(view.Results))
	copy(results, view.Results)
	view.Results = results
	return view
}
