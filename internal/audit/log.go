package audit

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/hengadev/healthcore/internal/hcerr"
	"github.com/hengadev/healthcore/internal/model"
)

// Sink receives every committed audit event. Implementations provide
// restart durability; the in-core log remains the ordering authority.
type Sink interface {
	Write(ctx context.Context, e *model.AuditEvent) error
	Flush(ctx context.Context) error
}

// NopSink discards events. Used when no durable sink is configured.
type NopSink struct{}

func (NopSink) Write(ctx context.Context, e *model.AuditEvent) error { return nil }
func (NopSink) Flush(ctx context.Context) error                      { return nil }

// Filter narrows a per-patient audit query. Zero values match everything.
type Filter struct {
	Kind          model.EventKind
	ActorID       string
	EmergencyOnly bool
}

func (f Filter) matches(e *model.AuditEvent) bool {
	if f.Kind != "" && e.Kind != f.Kind {
		return false
	}
	if f.ActorID != "" && e.ActorID != f.ActorID {
		return false
	}
	if f.EmergencyOnly && !e.Emergency {
		return false
	}
	return true
}

// SequenceBootstrap reports the highest sequence already persisted for a
// patient, so numbering resumes where a previous process left off.
type SequenceBootstrap func(ctx context.Context, patientID string) (uint64, error)

// Log is the append-only per-patient audit log. Sequence numbers are
// strictly increasing per patient and correspond to commit order; the sink
// accepts an event before it becomes visible, so a sink failure leaves the
// log unchanged.
type Log struct {
	mu        sync.RWMutex
	events    map[string][]*model.AuditEvent
	seqs      map[string]uint64
	seeded    map[string]bool
	bootstrap SequenceBootstrap
	sink      Sink
}

func NewLog(sink Sink) *Log {
	return NewLogWithBootstrap(sink, nil)
}

// NewLogWithBootstrap builds a log that seeds each patient's sequence from
// bootstrap on that patient's first append in this process. A durable sink
// pairs with its own last-sequence lookup here; without it, a restart
// would renumber from 1 and collide with persisted rows.
func NewLogWithBootstrap(sink Sink, bootstrap SequenceBootstrap) *Log {
	if sink == nil {
		sink = NopSink{}
	}
	return &Log{
		events:    make(map[string][]*model.AuditEvent),
		seqs:      make(map[string]uint64),
		seeded:    make(map[string]bool),
		bootstrap: bootstrap,
		sink:      sink,
	}
}

// Append assigns the event ID and per-patient sequence, persists it to the
// sink and commits it. The caller holds the patient write lock, so commit
// order and sequence order agree.
func (l *Log) Append(ctx context.Context, e *model.AuditEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.bootstrap != nil && !l.seeded[e.PatientID] {
		last, err := l.bootstrap(ctx, e.PatientID)
		if err != nil {
			return hcerr.NewAuditUnavailable(err)
		}
		if last > l.seqs[e.PatientID] {
			l.seqs[e.PatientID] = last
		}
		l.seeded[e.PatientID] = true
	}

	e.ID = uuid.NewString()
	e.Sequence = l.seqs[e.PatientID] + 1

	if err := l.sink.Write(ctx, e); err != nil {
		return hcerr.NewAuditUnavailable(err)
	}

	l.seqs[e.PatientID] = e.Sequence
	cp := *e
	l.events[e.PatientID] = append(l.events[e.PatientID], &cp)
	return nil
}

// Read returns the patient's events in commit order, subject to the filter.
func (l *Log) Read(patientID string, f Filter) []*model.AuditEvent {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []*model.AuditEvent
	for _, e := range l.events[patientID] {
		if f.matches(e) {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out
}

// Flush forwards to the sink.
func (l *Log) Flush(ctx context.Context) error {
	return l.sink.Flush(ctx)
}
