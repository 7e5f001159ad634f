package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"prodash/pkg/metrics"
)

const (
	opCreate = "create"
	opUpdate = "update"
	opDelete = "delete"
)

// errQueuedLocally marks a mutation that targets a record the remote
// store has never seen; it is not a failure, just a deferral.
var errQueuedLocally = errors.New("record pending remote creation")

// pendingOp is one unacknowledged mutation awaiting replay against the
// remote store. The queue is ordered; replay preserves that order.
type pendingOp struct {
	Op       string          `json:"op"`
	ID       string          `json:"id"`
	Seq      uint64          `json:"seq"`
	Fields   map[string]any  `json:"fields,omitempty"`
	Record   json.RawMessage `json:"record,omitempty"`
	QueuedAt time.Time       `json:"queued_at"`
}

// nextSeqLocked stamps a queued op with its identity. Ids get rewritten
// during reconciliation, so the sequence number is the only stable way
// for the flusher to recognize an op across a remote call.
func (s *Store[T]) nextSeqLocked() uint64 {
	s.seq++
	return s.seq
}

func (s *Store[T]) outboxKey() string {
	return "outbox:" + s.table.Name()
}

// queuePatchLocked records a partial update for later replay. Patches
// against a still-local record fold into the queue behind its create.
func (s *Store[T]) queuePatchLocked(id string, fields map[string]any) {
	s.outbox = append(s.outbox, pendingOp{
		Op:       opUpdate,
		ID:       id,
		Seq:      s.nextSeqLocked(),
		Fields:   fields,
		QueuedAt: time.Now().UTC(),
	})
}

// dropQueuedLocked removes every queued mutation for id. Used when a
// local-only record is deleted before it ever reached the remote store.
// If the record's create is replaying right now, the flusher is told so
// it can undo the insert that may already have landed.
func (s *Store[T]) dropQueuedLocked(id string) {
	if s.inflightActive && s.inflight.ID == id {
		s.inflightDropped = true
	}
	kept := s.outbox[:0]
	for _, op := range s.outbox {
		if op.ID != id {
			kept = append(kept, op)
		}
	}
	s.outbox = kept
}

// flushOutbox replays queued mutations in order against the remote
// store. It stops at the first failure to preserve ordering. Returns how
// many operations were acknowledged.
func (s *Store[T]) flushOutbox(ctx context.Context) int {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	flushed := 0
	for flushed < s.flushBatch {
		s.mu.Lock()
		if len(s.outbox) == 0 {
			s.mu.Unlock()
			break
		}
		op := s.outbox[0]
		s.inflight = op
		s.inflightActive = true
		s.inflightDropped = false
		s.mu.Unlock()

		var remoteID string
		var err error
		switch op.Op {
		case opCreate:
			remoteID, err = s.flushCreate(ctx, op)
		case opUpdate:
			if IsLocalID(op.ID) {
				// Its create is still queued ahead of it; replay order
				// guarantees we never get here, but guard anyway.
				err = errQueuedLocally
			} else {
				err = s.callRemote(func() error {
					return s.table.Update(ctx, op.ID, op.Fields)
				})
			}
		case opDelete:
			err = s.callRemote(func() error {
				return s.table.Delete(ctx, op.ID)
			})
		default:
			s.logger.Error("Unknown outbox operation dropped", zap.String("op", op.Op))
		}

		// The queue may have been rewritten while the remote call was in
		// flight (a delete of a still-local record drops its entries), so
		// pop only if the head is still the op just executed.
		s.mu.Lock()
		dropped := s.inflightDropped
		s.inflightActive = false
		if err == nil && len(s.outbox) > 0 && s.outbox[0].Seq == op.Seq {
			s.outbox = s.outbox[1:]
		}
		s.mu.Unlock()

		if err != nil {
			metrics.IncrementOutboxFlush(s.table.Name(), "failed")
			s.logger.Warn("Outbox flush stopped",
				zap.String("op", op.Op),
				zap.String("id", op.ID),
				zap.Int("flushed", flushed),
				zap.Error(err),
			)
			break
		}

		if dropped && op.Op == opCreate && remoteID != "" {
			// The record was deleted while its create replayed: the copy
			// that just landed remotely must go too.
			s.undoCreate(ctx, op.ID, remoteID)
		}

		metrics.IncrementOutboxFlush(s.table.Name(), "success")
		flushed++
	}

	if flushed > 0 {
		s.logger.Info("Outbox flushed",
			zap.Int("flushed", flushed),
			zap.Int("remaining", s.PendingCount()),
		)
		s.persist(ctx)
		s.notify()
	}
	return flushed
}

// flushCreate replays a queued create and returns the remote-assigned
// id. The synthesized local id is rewritten everywhere it appears: the
// in-memory record and any queued mutations that reference it.
func (s *Store[T]) flushCreate(ctx context.Context, op pendingOp) (string, error) {
	var rec T
	if err := json.Unmarshal(op.Record, &rec); err != nil {
		s.logger.Error("Failed to decode queued create, dropping",
			zap.String("id", op.ID),
			zap.Error(err),
		)
		// Undecodable entries would wedge the queue forever.
		return "", nil
	}
	s.binding.SetID(&rec, "")

	var created T
	err := s.callRemote(func() error {
		var e error
		created, e = s.table.Insert(ctx, rec)
		return e
	})
	if err != nil {
		return "", err
	}
	if s.binding.Normalize != nil {
		s.binding.Normalize(&created)
	}

	remoteID := s.binding.ID(created)
	s.mu.Lock()
	for i := range s.records {
		if s.binding.ID(s.records[i]) == op.ID {
			s.records[i] = created
			break
		}
	}
	for i := range s.outbox {
		if s.outbox[i].ID == op.ID {
			s.outbox[i].ID = remoteID
		}
	}
	s.mu.Unlock()

	s.logger.Info("Local-only record reconciled",
		zap.String("local_id", op.ID),
		zap.String("remote_id", remoteID),
	)
	return remoteID, nil
}

// undoCreate removes a remote record whose local counterpart was deleted
// while the create was replaying. If the remote delete fails it is
// queued like any other unacknowledged mutation.
func (s *Store[T]) undoCreate(ctx context.Context, localID, remoteID string) {
	err := s.callRemote(func() error {
		return s.table.Delete(ctx, remoteID)
	})
	if err == nil {
		s.logger.Info("Reconciled create undone after concurrent delete",
			zap.String("local_id", localID),
			zap.String("remote_id", remoteID),
		)
		return
	}
	s.logger.Warn("Failed to undo reconciled create, delete queued",
		zap.String("remote_id", remoteID),
		zap.Error(err),
	)
	s.mu.Lock()
	s.outbox = append(s.outbox, pendingOp{
		Op:       opDelete,
		ID:       remoteID,
		Seq:      s.nextSeqLocked(),
		QueuedAt: time.Now().UTC(),
	})
	s.mu.Unlock()
}

// overlayPendingLocked re-applies queued mutations on top of a freshly
// fetched snapshot so local-only state survives a refetch until it is
// reconciled.
func (s *Store[T]) overlayPendingLocked() {
	for _, op := range s.outbox {
		switch op.Op {
		case opCreate:
			var rec T
			if err := json.Unmarshal(op.Record, &rec); err != nil {
				continue
			}
			found := false
			for i := range s.records {
				if s.binding.ID(s.records[i]) == op.ID {
					found = true
					break
				}
			}
			if !found {
				s.records = append(s.records, rec)
			}
		case opUpdate:
			for i := range s.records {
				if s.binding.ID(s.records[i]) == op.ID {
					s.binding.Apply(&s.records[i], op.Fields)
					break
				}
			}
		case opDelete:
			for i := range s.records {
				if s.binding.ID(s.records[i]) == op.ID {
					s.records = append(s.records[:i], s.records[i+1:]...)
					break
				}
			}
		}
	}
}

// persist writes the collection and the outbox through to the fallback
// cache. Cache failures are logged, never surfaced: the cache is an
// optimization of the degraded path, not a dependency.
func (s *Store[T]) persist(ctx context.Context) {
	s.mu.RLock()
	recordsBlob, rErr := json.Marshal(s.records)
	outboxBlob, oErr := json.Marshal(s.outbox)
	s.mu.RUnlock()

	if rErr != nil || oErr != nil {
		s.logger.Error("Failed to encode cache snapshot",
			zap.NamedError("records", rErr),
			zap.NamedError("outbox", oErr),
		)
		return
	}
	if err := s.snap.Save(ctx, s.table.Name(), recordsBlob); err != nil {
		s.logger.Warn("Cache write-through failed", zap.Error(err))
	}
	if err := s.snap.Save(ctx, s.outboxKey(), outboxBlob); err != nil {
		s.logger.Warn("Outbox persistence failed", zap.Error(err))
	}
}

// loadCached replaces the in-memory collection with the most recent
// cached snapshot, if one exists.
func (s *Store[T]) loadCached(ctx context.Context) {
	blob, ok, err := s.snap.Load(ctx, s.table.Name())
	if err != nil || !ok {
		return
	}
	var records []T
	if err := json.Unmarshal(blob, &records); err != nil {
		s.logger.Error("Failed to decode cached snapshot", zap.Error(err))
		return
	}
	for i := range records {
		if s.binding.Normalize != nil {
			s.binding.Normalize(&records[i])
		}
	}
	s.mu.Lock()
	s.records = records
	s.mu.Unlock()
}

// LoadState restores the cached collection and the outbox at startup,
// before the first remote fetch.
func (s *Store[T]) LoadState(ctx context.Context) {
	s.loadCached(ctx)

	blob, ok, err := s.snap.Load(ctx, s.outboxKey())
	if err != nil || !ok {
		return
	}
	var queue []pendingOp
	if err := json.Unmarshal(blob, &queue); err != nil {
		s.logger.Error("Failed to decode persisted outbox", zap.Error(err))
		return
	}
	s.mu.Lock()
	// Restamp so restored entries and anything queued later share one
	// monotonic sequence.
	for i := range queue {
		queue[i].Seq = s.nextSeqLocked()
	}
	s.outbox = queue
	s.mu.Unlock()
	if len(queue) > 0 {
		s.logger.Info("Restored pending mutations from cache",
			zap.Int("pending", len(queue)),
		)
	}
}
