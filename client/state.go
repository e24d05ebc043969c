package client

import (
	"github.com/meghashyamc/driveindex/db"
	"github.com/meghashyamc/driveindex/services/query"
)

// View is a copy of what the client currently displays.
type View struct {
	Keyword    string
	IsIndexing bool
	// Status is the last progress status received, valid when HasStatus is set.
	Status    db.IndexingStatus
	HasStatus bool
	// IndexedFiles is the number of records in the store.
	IndexedFiles int
	IndexLoaded  bool
	Results      []db.FileRecord
	Truncated    bool
}

// State is the client's display state. It is changed only through its On*
// transitions, which report when the snapshot has to be fetched. State is not
// safe for concurrent use; Client serializes every transition on one goroutine.
type State struct {
	store      *IndexStore
	keyword    string
	isIndexing bool
	status     db.IndexingStatus
	hasStatus  bool
	// atCompletion is set while the last thing observed is a completed run,
	// either a complete status or a startup check that answered true.
	atCompletion   bool
	runID          string
	fetchRequested bool
	results        []db.FileRecord
	truncated      bool
}

func NewState(store *IndexStore) *State {
	return &State{
		store:      store,
		isIndexing: true,
		results:    []db.FileRecord{},
	}
}

// OnStartupCheck applies the answer of the startup completion check. A failed
// check must be applied as false.
func (s *State) OnStartupCheck(complete bool) (fetch bool) {
	if !complete {
		return false
	}
	s.atCompletion = true
	return s.requestFetch()
}

// OnStatus applies a progress status. The first completion of a run requests a
// fetch; later completions of the same run do not.
//
// A non-complete status following a completed run, or a status carrying a
// different run ID, starts a new run: its completion fetches again, and until
// that fetch succeeds the store keeps the previous snapshot.
func (s *State) OnStatus(status db.IndexingStatus) (fetch bool) {
	newRun := (s.atCompletion && !status.IsComplete) || s.isOtherRun(status)

	s.atCompletion = status.IsComplete
	if status.RunID != "" {
		s.runID = status.RunID
	}
	s.status = status
	s.hasStatus = true
	s.isIndexing = !status.IsComplete

	if newRun {
		s.fetchRequested = false
	}
	if !status.IsComplete {
		return false
	}
	return s.requestFetch()
}

// OnIndexFetched replaces the store with a fetched snapshot.
func (s *State) OnIndexFetched(records []db.FileRecord) {
	s.store.Replace(records)
	// A run that started while the fetch was in flight is still indexing.
	if !s.hasStatus || s.status.IsComplete {
		s.isIndexing = false
	}
	s.refresh()
}

// OnIndexFetchFailed leaves the store and the indexing flag untouched, so a
// failed fetch never hides a run that has not been loaded.
func (s *State) OnIndexFetchFailed(err error) {}

func (s *State) OnKeywordChanged(keyword string) {
	s.keyword = keyword
	s.refresh()
}

func (s *State) View() View {
	results := make([]db.FileRecord, len(s.results))
	copy(results, s.results)

	return View{
		Keyword:      s.keyword,
		IsIndexing:   s.isIndexing,
		Status:       s.status,
		HasStatus:    s.hasStatus,
		IndexedFiles: s.store.Len(),
		IndexLoaded:  s.store.Loaded(),
		Results:      results,
		Truncated:    s.truncated,
	}
}

// The flag is set when the fetch is requested, so two completions arriving
// before the first fetch resolves still fetch once.
func (s *State) requestFetch() bool {
	if s.fetchRequested {
		return false
	}
	s.fetchRequested = true
	return true
}

func (s *State) isOtherRun(status db.IndexingStatus) bool {
	return status.RunID != "" && s.runID != "" && status.RunID != s.runID
}

func (s *State) refresh() {
	s.results, s.truncated = query.Match(s.keyword, s.store.Load())
}
