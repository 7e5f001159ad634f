package store

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"prodash/internal/cache"
	"prodash/pkg/circuitbreaker"
	"prodash/pkg/metrics"
)

// Table is the narrow remote-store surface a record collection syncs
// against. The remote side is the id authority: Insert returns the
// record with its remote-assigned id and timestamps.
type Table[T any] interface {
	Name() string
	List(ctx context.Context) ([]T, error)
	Insert(ctx context.Context, rec T) (T, error)
	Update(ctx context.Context, id string, fields map[string]any) error
	Delete(ctx context.Context, id string) error
}

// Binding supplies the record-shape-specific hooks a generic store
// cannot know about.
type Binding[T any] struct {
	// ID extracts the record id.
	ID func(T) string
	// SetID rewrites the record id (used when a flushed local-only
	// create receives its remote-assigned id).
	SetID func(*T, string)
	// Stamp sets created/updated timestamps on a local-only create.
	Stamp func(*T, time.Time)
	// Normalize defensively decodes remote or cached shapes before the
	// record reaches consumers. Optional.
	Normalize func(*T)
	// Validate checks a record before create. Optional.
	Validate func(T) error
	// Apply mutates a record in place from a partial update.
	Apply func(*T, map[string]any)
}

// LocalIDPrefix marks ids synthesized while the remote store was
// unreachable.
const LocalIDPrefix = "local-"

// NewLocalID generates an id for a local-only record.
func NewLocalID() string {
	return LocalIDPrefix + uuid.NewString()
}

// IsLocalID reports whether id was locally synthesized.
func IsLocalID(id string) bool {
	return strings.HasPrefix(id, LocalIDPrefix)
}

// Store keeps one in-memory record collection consistent with the remote
// table, with write-through caching, silent cache fallback, a durable
// outbox of local-only mutations, and subscriber notification on every
// change. A single Store instance is shared by all consumers of its
// table.
type Store[T any] struct {
	table   Table[T]
	snap    cache.Snapshot
	binding Binding[T]
	breaker *circuitbreaker.CircuitBreaker
	logger  *zap.Logger

	mu      sync.RWMutex
	records []T
	outbox  []pendingOp
	subs    []chan struct{}

	// seq stamps queued ops; the flusher uses it to recognize its own
	// head after a remote call, since a concurrent delete of a
	// still-local record may rewrite the queue mid-replay.
	seq             uint64
	inflight        pendingOp
	inflightActive  bool
	inflightDropped bool

	flushMu    sync.Mutex
	flushBatch int

	debounceMu    sync.Mutex
	debounce      time.Duration
	debounceTimer *time.Timer
}

func New[T any](table Table[T], snap cache.Snapshot, binding Binding[T], logger *zap.Logger) *Store[T] {
	return &Store[T]{
		table:      table,
		snap:       snap,
		binding:    binding,
		logger:     logger.With(zap.String("table", table.Name())),
		flushBatch: 100,
	}
}

// WithBreaker guards every remote call with cb. An open breaker behaves
// exactly like a remote failure: the operation degrades to cache.
func (s *Store[T]) WithBreaker(cb *circuitbreaker.CircuitBreaker) *Store[T] {
	s.breaker = cb
	return s
}

// WithDebounce coalesces invalidation bursts into a single refetch.
func (s *Store[T]) WithDebounce(d time.Duration) *Store[T] {
	s.debounce = d
	return s
}

// WithFlushBatch caps how many queued mutations one flush replays.
func (s *Store[T]) WithFlushBatch(n int) *Store[T] {
	if n > 0 {
		s.flushBatch = n
	}
	return s
}

func (s *Store[T]) callRemote(fn func() error) error {
	if s.breaker == nil {
		return fn()
	}
	return s.breaker.Execute(fn)
}

// FetchAll refreshes the collection from the remote store, writing
// through to the cache on success and silently falling back to the last
// cached snapshot on failure. Only context cancellation is surfaced.
func (s *Store[T]) FetchAll(ctx context.Context) ([]T, error) {
	return s.fetchAll(ctx, "manual")
}

func (s *Store[T]) fetchAll(ctx context.Context, trigger string) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	metrics.IncrementRefetch(s.table.Name(), trigger)

	var listed []T
	err := s.callRemote(func() error {
		var e error
		listed, e = s.table.List(ctx)
		return e
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		s.logger.Warn("Remote fetch failed, serving cached snapshot", zap.Error(err))
		metrics.IncrementCacheFallback("fetch", s.table.Name())
		s.loadCached(ctx)
		// The collection changed hands even if the data is stale;
		// subscribers recompute from whatever is being served.
		s.notify()
		return s.SnapshotRecords(), nil
	}

	for i := range listed {
		if s.binding.Normalize != nil {
			s.binding.Normalize(&listed[i])
		}
	}

	s.mu.Lock()
	s.records = listed
	s.overlayPendingLocked()
	s.mu.Unlock()
	s.persist(ctx)
	s.notify()

	// A successful round trip is the signal that the remote store is
	// reachable again: drain queued local-only mutations and refetch so
	// remote-assigned rows replace synthesized ones.
	if s.flushOutbox(ctx) > 0 {
		return s.fetchAll(ctx, "flush")
	}
	return s.SnapshotRecords(), nil
}

// Create inserts the record remote-first. On remote failure the record
// is kept with a synthesized local id, queued in the outbox, and no
// error is surfaced.
func (s *Store[T]) Create(ctx context.Context, rec T) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	if s.binding.Validate != nil {
		if err := s.binding.Validate(rec); err != nil {
			return zero, err
		}
	}

	var created T
	err := s.callRemote(func() error {
		var e error
		created, e = s.table.Insert(ctx, rec)
		return e
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, ctxErr
		}
		s.logger.Warn("Remote create failed, keeping local-only record", zap.Error(err))
		metrics.IncrementCacheFallback("create", s.table.Name())

		localID := NewLocalID()
		s.binding.SetID(&rec, localID)
		if s.binding.Stamp != nil {
			s.binding.Stamp(&rec, time.Now().UTC())
		}
		raw, mErr := json.Marshal(rec)
		if mErr != nil {
			s.logger.Error("Failed to encode local-only record", zap.Error(mErr))
			return zero, mErr
		}

		s.mu.Lock()
		s.records = append(s.records, rec)
		s.outbox = append(s.outbox, pendingOp{
			Op:       opCreate,
			ID:       localID,
			Seq:      s.nextSeqLocked(),
			Record:   raw,
			QueuedAt: time.Now().UTC(),
		})
		s.mu.Unlock()
		s.persist(ctx)
		s.notify()
		return rec, nil
	}

	if s.binding.Normalize != nil {
		s.binding.Normalize(&created)
	}
	s.mu.Lock()
	s.records = append(s.records, created)
	s.mu.Unlock()
	s.persist(ctx)
	s.notify()
	s.flushAndRefetch(ctx)
	return created, nil
}

// Update applies a partial update remote-first. Unknown fields are
// ignored. On remote failure the patch lands in memory and cache only
// and is queued for replay.
func (s *Store[T]) Update(ctx context.Context, id string, fields map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	remoteErr := error(nil)
	if IsLocalID(id) {
		// The record never reached the remote store; the patch rides
		// along with its queued create.
		remoteErr = errQueuedLocally
	} else {
		remoteErr = s.callRemote(func() error {
			return s.table.Update(ctx, id, fields)
		})
	}

	s.mu.Lock()
	for i := range s.records {
		if s.binding.ID(s.records[i]) == id {
			s.binding.Apply(&s.records[i], fields)
			break
		}
	}
	if remoteErr != nil {
		s.queuePatchLocked(id, fields)
	}
	s.mu.Unlock()

	if remoteErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if remoteErr != errQueuedLocally {
			s.logger.Warn("Remote update failed, patch kept locally",
				zap.String("id", id),
				zap.Error(remoteErr),
			)
			metrics.IncrementCacheFallback("update", s.table.Name())
		}
		s.persist(ctx)
		s.notify()
		return nil
	}

	s.persist(ctx)
	s.notify()
	s.flushAndRefetch(ctx)
	return nil
}

// Delete removes the record remote-first. On remote failure the record
// disappears from memory and cache and the delete is queued.
func (s *Store[T]) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if IsLocalID(id) {
		// Never reached the remote store: dropping the queued create is
		// the whole delete.
		s.mu.Lock()
		s.removeRecordLocked(id)
		s.dropQueuedLocked(id)
		s.mu.Unlock()
		s.persist(ctx)
		s.notify()
		return nil
	}

	err := s.callRemote(func() error {
		return s.table.Delete(ctx, id)
	})

	s.mu.Lock()
	s.removeRecordLocked(id)
	if err != nil {
		s.outbox = append(s.outbox, pendingOp{
			Op:       opDelete,
			ID:       id,
			Seq:      s.nextSeqLocked(),
			QueuedAt: time.Now().UTC(),
		})
	}
	s.mu.Unlock()

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		s.logger.Warn("Remote delete failed, removed locally",
			zap.String("id", id),
			zap.Error(err),
		)
		metrics.IncrementCacheFallback("delete", s.table.Name())
		s.persist(ctx)
		s.notify()
		return nil
	}

	s.persist(ctx)
	s.notify()
	s.flushAndRefetch(ctx)
	return nil
}

// Invalidate is the realtime hook: any change notification for the
// table, whatever its kind, schedules a full refetch. Bursts within the
// debounce window collapse into one.
func (s *Store[T]) Invalidate() {
	s.debounceMu.Lock()
	defer s.debounceMu.Unlock()

	if s.debounce <= 0 {
		go s.refetchInvalidated()
		return
	}
	if s.debounceTimer == nil {
		s.debounceTimer = time.AfterFunc(s.debounce, s.refetchInvalidated)
		return
	}
	s.debounceTimer.Reset(s.debounce)
}

func (s *Store[T]) refetchInvalidated() {
	if _, err := s.fetchAll(context.Background(), "invalidation"); err != nil {
		s.logger.Warn("Invalidation refetch aborted", zap.Error(err))
	}
}

// Subscribe returns a channel that receives a signal after every
// successful mutation or refetch. Slow subscribers miss intermediate
// signals, never the final state.
func (s *Store[T]) Subscribe() <-chan struct{} {
	ch := make(chan struct{}, 1)
	s.mu.Lock()
	s.subs = append(s.subs, ch)
	s.mu.Unlock()
	return ch
}

// SnapshotRecords returns a copy of the current collection.
func (s *Store[T]) SnapshotRecords() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]T, len(s.records))
	copy(out, s.records)
	return out
}

// Get returns the record with the given id.
func (s *Store[T]) Get(id string) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rec := range s.records {
		if s.binding.ID(rec) == id {
			return rec, true
		}
	}
	var zero T
	return zero, false
}

// PendingCount reports how many local-only mutations await replay.
func (s *Store[T]) PendingCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.outbox)
}

func (s *Store[T]) notify() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (s *Store[T]) removeRecordLocked(id string) {
	for i := range s.records {
		if s.binding.ID(s.records[i]) == id {
			s.records = append(s.records[:i], s.records[i+1:]...)
			return
		}
	}
}

func (s *Store[T]) flushAndRefetch(ctx context.Context) {
	if s.flushOutbox(ctx) > 0 {
		s.Invalidate()
	}
}
