// Package print implements the durable print job queue: a priority/retry
// state machine persisted in the shared local store, drained one job at a
// time against an injected printer capability.
package print

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"github.com/openstall/stallpos/internal/bus"
	"github.com/openstall/stallpos/internal/pos"
	"github.com/openstall/stallpos/internal/store"
)

// Job statuses.
const (
	StatusPending  = "pending"
	StatusPrinting = "printing"
	StatusDone     = "done"
	StatusError    = "error"
)

// DefaultPriority is assigned when a job spec leaves priority unset.
const DefaultPriority = 10

// MaxAttempts bounds delivery retries; the job goes terminal after that.
const MaxAttempts = 3

// Driver is the printer capability provided by the host. Retrying is the
// queue's responsibility, not the driver's.
type Driver interface {
	Print(ctx context.Context, payload string) error
}

// Job is one unit of output work with priority, retry count and lifecycle
// status. At most one job is in the printing state at any instant.
type Job struct {
	ID          string          `json:"id"`
	Destination string          `json:"destination"`
	Priority    int             `json:"priority"`
	TemplateID  string          `json:"templateId"`
	Data        json.RawMessage `json:"data"`
	Status      string          `json:"status"`
	Attempts    int             `json:"attempts"`
	CreatedAt   int64           `json:"createdAt"`
	DeviceID    string          `json:"deviceId"`
}

// JobSpec describes a job to enqueue. A non-positive priority means
// DefaultPriority.
type JobSpec struct {
	Destination string
	Priority    int
	TemplateID  string
	Data        any
}

// Manager maintains the printJobs collection and serializes job execution
// against the driver. It shares the store instance with the sync engine but
// owns the printJobs lifecycle exclusively.
type Manager struct {
	store    *store.Store
	bus      *bus.Bus
	driver   Driver
	deviceID string

	ids pos.IDGenerator
	now func() time.Time

	// processing is the instance-owned single-flight drain guard; wake
	// coalesces drain triggers that arrive while a pass is running.
	processing atomic.Bool
	wake       chan struct{}
}

// Option configures a Manager.
type Option func(*Manager)

// WithIDGenerator replaces the UUIDv7 id generator.
func WithIDGenerator(g pos.IDGenerator) Option {
	return func(m *Manager) { m.ids = g }
}

// WithClock replaces the wall clock used for createdAt stamps.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a print queue on the shared store.
func NewManager(s *store.Store, b *bus.Bus, driver Driver, deviceID string, opts ...Option) *Manager {
	m := &Manager{
		store:    s,
		bus:      b,
		driver:   driver,
		deviceID: deviceID,
		ids:      pos.UUIDv7Generator{},
		now:      time.Now,
		wake:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Enqueue persists a new pending job and triggers draining without blocking.
func (m *Manager) Enqueue(ctx context.Context, spec JobSpec) (Job, error) {
	data, err := json.Marshal(spec.Data)
	if err != nil {
		return Job{}, fmt.Errorf("encode job data: %w", err)
	}

	priority := spec.Priority
	if priority <= 0 {
		priority = DefaultPriority
	}

	job := Job{
		ID:          m.ids.NewID(),
		Destination: spec.Destination,
		Priority:    priority,
		TemplateID:  spec.TemplateID,
		Data:        data,
		Status:      StatusPending,
		Attempts:    0,
		CreatedAt:   m.now().UnixMilli(),
		DeviceID:    m.deviceID,
	}

	if err := m.store.Put(ctx, "printJobs", job.ID, job); err != nil {
		return Job{}, fmt.Errorf("enqueue print job: %w", err)
	}

	// Coalesced wake: a drain pass already running will re-check pending
	// jobs before it exits.
	select {
	case m.wake <- struct{}{}:
	default:
	}
	go m.Drain(context.Background())

	return job, nil
}

// Drain processes pending jobs until none remain. At most one drain pass
// runs at a time; concurrent calls collapse into the running one. Safe to
// call synchronously (CLI) or from a detached goroutine (Enqueue).
func (m *Manager) Drain(ctx context.Context) {
	for {
		if !m.processing.CompareAndSwap(false, true) {
			return
		}
		m.drainPass(ctx)
		m.processing.Store(false)

		// A wake may have arrived between the last empty check and the
		// flag release; re-run rather than dropping that job.
		select {
		case <-m.wake:
			continue
		default:
			return
		}
	}
}

// drainPass repeatedly picks the highest-priority pending job and processes
// it, stopping when the queue is empty. A job sent back to pending by a
// delivery failure is picked up again by the same pass.
func (m *Manager) drainPass(ctx context.Context) {
	for {
		job, ok, err := m.nextPending(ctx)
		if err != nil {
			slog.Error("print queue scan failed", "error", err)
			return
		}
		if !ok {
			return
		}
		m.processJob(ctx, job)
	}
}

// nextPending returns the pending job with the highest priority, ties
// broken by oldest creation time.
func (m *Manager) nextPending(ctx context.Context) (Job, bool, error) {
	var pending []Job
	if err := m.store.GetAllByIndex(ctx, "printJobs", "status", StatusPending, &pending); err != nil {
		return Job{}, false, err
	}
	if len(pending) == 0 {
		return Job{}, false, nil
	}

	sort.SliceStable(pending, func(i, j int) bool {
		if pending[i].Priority != pending[j].Priority {
			return pending[i].Priority > pending[j].Priority
		}
		return pending[i].CreatedAt < pending[j].CreatedAt
	})
	return pending[0], true, nil
}

// processJob runs one delivery attempt. The printing transition and the
// attempt increment are persisted before the driver is invoked, so a crash
// mid-print is visible in the job record.
func (m *Manager) processJob(ctx context.Context, job Job) {
	job.Status = StatusPrinting
	job.Attempts++
	if err := m.store.Put(ctx, "printJobs", job.ID, job); err != nil {
		slog.Error("print job transition failed", "job", job.ID, "error", err)
		return
	}

	payload := renderTemplate(job.TemplateID, job.Data)
	err := m.driver.Print(ctx, payload)
	if err == nil {
		job.Status = StatusDone
		if err := m.store.Put(ctx, "printJobs", job.ID, job); err != nil {
			slog.Error("print job transition failed", "job", job.ID, "error", err)
			return
		}
		slog.Info("print job done", "job", job.ID, "destination", job.Destination, "attempts", job.Attempts)
		m.bus.Publish(bus.PrintDone, job)
		return
	}

	slog.Warn("print delivery failed", "job", job.ID, "attempt", job.Attempts, "error", err)
	if job.Attempts < MaxAttempts {
		job.Status = StatusPending
	} else {
		job.Status = StatusError
	}
	if err := m.store.Put(ctx, "printJobs", job.ID, job); err != nil {
		slog.Error("print job transition failed", "job", job.ID, "error", err)
		return
	}
	if job.Status == StatusError {
		m.bus.Publish(bus.PrintError, job)
	}
}

// Jobs returns every job in the queue, order unspecified.
func (m *Manager) Jobs(ctx context.Context) ([]Job, error) {
	var jobs []Job
	if err := m.store.GetAll(ctx, "printJobs", &jobs); err != nil {
		return nil, fmt.Errorf("list print jobs: %w", err)
	}
	return jobs, nil
}
