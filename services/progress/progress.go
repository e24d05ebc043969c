package progress

import (
	"sync"

	"github.com/meghashyamc/driveindex/db"
	"github.com/meghashyamc/driveindex/logger"
)

const defaultSubscriberBuffer = 64

// EventIndexingStatus names the server-sent event carrying a db.IndexingStatus.
const EventIndexingStatus = "indexing-status"

// Broker fans indexing statuses out to subscribers in emission order.
type Broker struct {
	logger      logger.Logger
	mu          sync.Mutex
	subscribers map[int]chan db.IndexingStatus
	nextID      int
	latest      *db.IndexingStatus
	buffer      int
	closed      bool
}

func New(logger logger.Logger) *Broker {
	return NewWithBuffer(logger, defaultSubscriberBuffer)
}

func NewWithBuffer(logger logger.Logger, buffer int) *Broker {
	if buffer < 1 {
		buffer = 1
	}
	return &Broker{
		logger:      logger,
		subscribers: make(map[int]chan db.IndexingStatus),
		buffer:      buffer,
	}
}

// Subscribe returns a channel of statuses and a function releasing it.
// The release function closes the channel and may be called more than once.
func (b *Broker) Subscribe() (<-chan db.IndexingStatus, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.subscribe()
}

// SubscribeWithLatest is Subscribe with the last published status queued
// first, so a late subscriber starts from the current progress.
func (b *Broker) SubscribeWithLatest() (<-chan db.IndexingStatus, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	statusC, unsubscribe := b.subscribe()
	if b.latest != nil && !b.closed {
		b.subscribers[b.nextID-1] <- *b.latest
	}
	return statusC, unsubscribe
}

func (b *Broker) subscribe() (<-chan db.IndexingStatus, func()) {
	statusC := make(chan db.IndexingStatus, b.buffer)
	if b.closed {
		close(statusC)
		return statusC, func() {}
	}

	id := b.nextID
	b.nextID++
	b.subscribers[id] = statusC
	b.logger.Debug("progress subscriber added", "subscriber_id", id, "subscribers", len(b.subscribers))

	var once sync.Once
	return statusC, func() {
		once.Do(func() { b.unsubscribe(id) })
	}
}

func (b *Broker) unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	statusC, ok := b.subscribers[id]
	if !ok {
		return
	}
	delete(b.subscribers, id)
	close(statusC)
	b.logger.Debug("progress subscriber removed", "subscriber_id", id, "subscribers", len(b.subscribers))
}

// Publish never blocks on a slow subscriber: when its buffer is full the
// oldest pending in-progress status is dropped. Completion statuses are kept.
func (b *Broker) Publish(status db.IndexingStatus) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.latest = &status

	for id, statusC := range b.subscribers {
		if !b.deliver(statusC, status) {
			b.logger.Warn("progress subscriber is full of completion statuses, dropping status", "subscriber_id", id, "total_files", status.TotalFiles)
		}
	}
}

func (b *Broker) deliver(statusC chan db.IndexingStatus, status db.IndexingStatus) bool {
	select {
	case statusC <- status:
		return true
	default:
	}

	// Only the broker sends on statusC and it holds b.mu, so after draining
	// the buffer the sends below cannot block.
	pending := make([]db.IndexingStatus, 0, len(statusC))
	for drained := false; !drained; {
		select {
		case queued := <-statusC:
			pending = append(pending, queued)
		default:
			drained = true
		}
	}

	dropped := false
	kept := pending[:0]
	for _, queued := range pending {
		if !dropped && !queued.IsComplete {
			dropped = true
			continue
		}
		kept = append(kept, queued)
	}

	for _, queued := range kept {
		statusC <- queued
	}
	if !dropped && len(kept) == cap(statusC) {
		return false
	}
	statusC <- status

	return true
}

// Latest returns the last published status.
func (b *Broker) Latest() (db.IndexingStatus, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.latest == nil {
		return db.IndexingStatus{}, false
	}
	return *b.latest, true
}

// Close releases every subscriber. Publishing after Close is a no-op.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, statusC := range b.subscribers {
		close(statusC)
		delete(b.subscribers, id)
	}
}
