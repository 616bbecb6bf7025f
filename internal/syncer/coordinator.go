// Package syncer routes every entity mutation through a local-first dual
// write and replays deferred remote writes from the sync queue.
package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"

	"github.com/julianstephens/quitlog/internal/connectivity"
	"github.com/julianstephens/quitlog/internal/constants"
	apperrors "github.com/julianstephens/quitlog/internal/errors"
	"github.com/julianstephens/quitlog/internal/logger"
	"github.com/julianstephens/quitlog/internal/models"
	"github.com/julianstephens/quitlog/internal/remote"
	"github.com/julianstephens/quitlog/internal/storage"
)

var (
	// ErrOffline is returned by Drain when the remote is not reachable.
	ErrOffline = errors.New("remote store is offline")
	// ErrDrainInProgress is returned by Drain when another drain holds the queue.
	ErrDrainInProgress = errors.New("a drain is already in progress")
	// ErrEventNotFound is returned when an event id is unknown locally.
	ErrEventNotFound = errors.New("event not found")
)

// WriteResult tells the caller how a saved mutation reached the remote.
type WriteResult struct {
	Synced  bool   // mirrored remotely during the write
	QueueID string // set when the remote write was deferred
}

// DrainReport summarizes one pass over the queue.
type DrainReport struct {
	Deduplicated int
	Replayed     int
	Failed       int // replay attempts that failed this pass
	Exhausted    int // items that reached the retry cap this pass
	Skipped      int // items already exhausted before this pass
	Superseded   int // items removed by a newer write while the pass ran
	Interrupted  bool
}

// Coordinator is the single path for entity mutations. Local writes always
// happen first; remote writes are best effort with the queue as fallback.
type Coordinator struct {
	local   storage.Provider
	queue   storage.Queue
	remote  remote.Store
	monitor *connectivity.Monitor

	log           *log.Logger
	meterProvider metric.MeterProvider
	metrics       *syncMetrics
	now           func() time.Time
	newID         func() string
	timeout       time.Duration

	locks      *keyedMutex
	settingsMu sync.Mutex

	drainMu      sync.Mutex
	drainPending atomic.Bool
	wg           sync.WaitGroup
}

type Option func(*Coordinator)

// WithClock overrides the time source used for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithIDGenerator overrides event id generation.
func WithIDGenerator(fn func() string) Option {
	return func(c *Coordinator) { c.newID = fn }
}

// WithRemoteTimeout bounds each individual remote call.
func WithRemoteTimeout(d time.Duration) Option {
	return func(c *Coordinator) { c.timeout = d }
}

// WithMeterProvider reports sync counters through mp instead of the global
// provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(c *Coordinator) { c.meterProvider = mp }
}

// New builds a coordinator. A nil remote keeps every write local and queued.
func New(local storage.Provider, queue storage.Queue, rs remote.Store, monitor *connectivity.Monitor, opts ...Option) *Coordinator {
	if monitor == nil {
		monitor = connectivity.NewMonitor(rs != nil)
	}
	c := &Coordinator{
		local:   local,
		queue:   queue,
		remote:  rs,
		monitor: monitor,
		log:     logger.Component("syncer"),
		now:     time.Now,
		newID:   uuid.NewString,
		timeout: constants.DefaultRemoteTimeout,
		locks:   newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.metrics = newSyncMetrics(c.meterProvider)
	return c
}

func (c *Coordinator) Monitor() *connectivity.Monitor { return c.monitor }

func (c *Coordinator) online() bool {
	return c.remote != nil && c.monitor.IsOnline()
}

// Write applies one mutation. The local store is written first; if that
// fails the error is returned and nothing is sent or queued. A remote
// failure is absorbed into the queue and the call still succeeds.
func (c *Coordinator) Write(ctx context.Context, rec models.Record, op models.Operation) (WriteResult, error) {
	if !op.Valid() {
		return WriteResult{}, fmt.Errorf("invalid operation %q", op)
	}
	store, id, owner := rec.Store(), rec.RecordID(), rec.OwnerID()

	var payload []byte
	if op != models.OpDelete {
		var err error
		if payload, err = json.Marshal(rec); err != nil {
			return WriteResult{}, fmt.Errorf("failed to encode %s %s: %w", store, id, err)
		}
	}

	unlock := c.locks.Lock(entityKey(string(store), id))
	defer unlock()

	var err error
	if op == models.OpDelete {
		err = c.local.Delete(store, id)
	} else {
		err = c.local.Put(rec)
	}
	if err != nil {
		return WriteResult{}, apperrors.Local(string(op)+" "+string(store), err)
	}

	reason := "offline"
	if c.online() {
		rerr := c.apply(ctx, store, op, owner, id, payload)
		if rerr == nil {
			// Every queued intent for this entity predates the write we hold the lock for.
			if n, err := c.queue.RemoveTarget(store, id, math.MaxInt64); err != nil {
				return WriteResult{}, err
			} else if n > 0 {
				c.log.Debug("Dropped superseded queue items", "store", store, "id", id, "count", n)
			}
			c.metrics.recordWrite(ctx, store, op, true)
			return WriteResult{Synced: true}, nil
		}
		c.log.Warn("Remote write failed, queueing", "store", store, "id", id, "op", op, "error", rerr)
		reason = "remote_error"
	}

	qid, err := c.queue.Enqueue(store, op, id, owner, payload)
	if err != nil {
		return WriteResult{}, err
	}
	c.metrics.recordWrite(ctx, store, op, false)
	c.metrics.recordEnqueue(ctx, store, reason)
	c.log.Debug("Queued remote write", "id", qid, "reason", reason)
	return WriteResult{QueueID: qid}, nil
}

// apply performs a single remote operation under the per-call timeout.
func (c *Coordinator) apply(ctx context.Context, store models.StoreName, op models.Operation, owner, id string, payload []byte) error {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	collection := remote.Collection(owner, store)
	var err error
	switch op {
	case models.OpDelete:
		err = c.remote.DeleteDocument(callCtx, collection, id)
	case models.OpCreate, models.OpUpdate:
		if len(payload) == 0 {
			return fmt.Errorf("missing payload for %s %s", op, id)
		}
		err = c.remote.PutDocument(callCtx, collection, id, payload)
	default:
		err = fmt.Errorf("unknown operation %q", op)
	}
	return apperrors.Remote(string(op)+" "+string(store), err)
}

// Drain replays the queue against the remote. It deduplicates first, then
// walks a snapshot oldest-first. Items added during the pass wait for the
// next one. A failing item never blocks the items behind it.
func (c *Coordinator) Drain(ctx context.Context) (DrainReport, error) {
	if !c.drainMu.TryLock() {
		return DrainReport{}, ErrDrainInProgress
	}
	defer c.drainMu.Unlock()
	return c.drain(ctx)
}

func (c *Coordinator) drain(ctx context.Context) (DrainReport, error) {
	var report DrainReport
	if !c.online() {
		return report, ErrOffline
	}

	removed, err := c.queue.Deduplicate()
	if err != nil {
		return report, err
	}
	report.Deduplicated = removed

	items, err := c.queue.ListPending()
	if err != nil {
		return report, err
	}
	maxRetries := constants.MaxRetries

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			report.Interrupted = true
			return report, err
		}
		if !c.monitor.IsOnline() {
			report.Interrupted = true
			break
		}
		if item.Exhausted(maxRetries) {
			report.Skipped++
			continue
		}
		if err := c.replay(ctx, item, &report); err != nil {
			return report, err
		}
	}

	c.metrics.recordDrain(ctx, report)
	c.log.Info("Drain finished",
		"replayed", report.Replayed,
		"failed", report.Failed,
		"exhausted", report.Exhausted,
		"deduplicated", report.Deduplicated)
	return report, nil
}

// replay handles one item under its entity lock. Only local queue errors
// are returned; remote failures are recorded on the item.
func (c *Coordinator) replay(ctx context.Context, item models.SyncQueueItem, report *DrainReport) error {
	unlock := c.locks.Lock(entityKey(string(item.Store), item.TargetID))
	defer unlock()

	// A direct write may have superseded the item since the snapshot.
	if _, found, err := c.queue.GetItem(item.ID); err != nil {
		return err
	} else if !found {
		report.Superseded++
		return nil
	}

	rerr := c.apply(ctx, item.Store, item.Operation, item.Owner, item.TargetID, item.Payload)
	if rerr == nil {
		if err := c.queue.Remove(item.ID); err != nil {
			return err
		}
		report.Replayed++
		c.metrics.recordReplay(ctx, item.Store, "replayed")
		return nil
	}

	report.Failed++
	retry, err := c.queue.RecordFailure(item.ID, rerr.Error())
	if err != nil {
		return err
	}
	if !retry {
		report.Exhausted++
		c.metrics.recordReplay(ctx, item.Store, "exhausted")
		c.log.Warn("Queue item reached retry cap", "id", item.ID, "error", rerr)
		return nil
	}
	c.metrics.recordReplay(ctx, item.Store, "failed")
	c.log.Debug("Replay failed", "id", item.ID, "error", rerr)
	return nil
}

// TriggerDrain schedules a background drain. While one drain is waiting to
// start, further triggers are coalesced into it.
func (c *Coordinator) TriggerDrain(ctx context.Context) {
	if !c.drainPending.CompareAndSwap(false, true) {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.drainMu.Lock()
		c.drainPending.Store(false)
		_, err := c.drain(ctx)
		c.drainMu.Unlock()
		if err != nil && !errors.Is(err, ErrOffline) && !errors.Is(err, context.Canceled) {
			c.log.Error("Background drain failed", "error", err)
		}
	}()
}

// Wait blocks until every triggered drain has finished.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// Attach drains the queue on every offline to online transition and
// returns a function that detaches the hook.
func (c *Coordinator) Attach(ctx context.Context) func() {
	return c.monitor.OnOnline(func() {
		c.TriggerDrain(ctx)
	})
}

// RunPeriodic triggers a drain every interval while online, until ctx ends.
func (c *Coordinator) RunPeriodic(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if c.online() {
				c.TriggerDrain(ctx)
			}
		}
	}
}

// Status is the advisory sync state shown to the user.
type Status struct {
	Online  bool
	Remote  bool
	Pending int
	Failed  []models.SyncQueueItem
}

func (c *Coordinator) Status() (Status, error) {
	pending, err := c.queue.CountPending()
	if err != nil {
		return Status{}, err
	}
	failed, err := c.queue.FailedItems()
	if err != nil {
		return Status{}, err
	}
	return Status{
		Online:  c.online(),
		Remote:  c.remote != nil,
		Pending: pending,
		Failed:  failed,
	}, nil
}

// RetryFailed gives exhausted items a fresh set of attempts.
func (c *Coordinator) RetryFailed() (int, error) {
	return c.queue.ResetFailed()
}
