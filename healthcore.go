package healthcore

import (
	"context"
	"fmt"
	"time"

	"github.com/hengadev/healthcore/internal/audit"
	"github.com/hengadev/healthcore/internal/cards"
	"github.com/hengadev/healthcore/internal/config"
	"github.com/hengadev/healthcore/internal/dispatch"
	"github.com/hengadev/healthcore/internal/identity"
	"github.com/hengadev/healthcore/internal/labs"
	"github.com/hengadev/healthcore/internal/model"
	"github.com/hengadev/healthcore/internal/monitoring"
	"github.com/hengadev/healthcore/internal/permission"
	"github.com/hengadev/healthcore/internal/records"
	"github.com/hengadev/healthcore/internal/store"
)

// Service is the assembled core: stores, permission engine, domain
// services and the command dispatcher behind one Dispatch entry point.
type Service struct {
	users      *store.Users
	patients   *store.Patients
	cardIndex  *store.Cards
	engine     *permission.Engine
	dispatcher *dispatch.Dispatcher
	log        *audit.Log
	sink       *audit.SQLiteSink

	metrics monitoring.MetricsCollector
	hook    monitoring.ObservabilityHook
	clock   model.Clock
}

// New assembles a service instance. An object store and a key provider
// are required; everything else has defaults.
func New(ctx context.Context, options ...Option) (*Service, error) {
	cfg := config.DefaultConfig()
	if err := config.ApplyOptions(cfg, options); err != nil {
		return nil, fmt.Errorf("failed to apply options: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	if cfg.MetricsCollector == nil {
		cfg.MetricsCollector = &monitoring.NoOpMetricsCollector{}
	}
	if cfg.ObservabilityHook == nil {
		cfg.ObservabilityHook = &monitoring.NoOpObservabilityHook{}
	}

	var sink *audit.SQLiteSink
	var auditSink audit.Sink = audit.NopSink{}
	var bootstrap audit.SequenceBootstrap
	if cfg.AuditDBPath != "" {
		var err error
		sink, err = audit.NewSQLiteSink(ctx, cfg.AuditDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open audit sink: %w", err)
		}
		auditSink = sink
		// Resume per-patient numbering where the previous process
		// stopped; starting over at 1 would collide with persisted rows.
		bootstrap = sink.LastSequence
	}

	users := store.NewUsers()
	patients := store.NewPatients()
	cardIndex := store.NewCards()
	locks := store.NewPatientLocks()
	log := audit.NewLogWithBootstrap(auditSink, bootstrap)

	consents := permission.NewConsentStore()
	emergency := permission.NewEmergencyStore()
	engine := permission.NewEngine(consents, emergency, patients)

	registry := identity.NewRegistry(patients, locks, log)
	cardSvc := cards.NewService(cardIndex, patients, locks, log)
	index := records.NewIndex()
	recordSvc := records.NewService(cfg.ObjectStore, cfg.KeyProvider, patients, index, locks, log, cfg.Argon2Params)
	labSvc := labs.NewService(patients, recordSvc, locks, log)

	dispatcher := dispatch.New(users, patients, engine, registry, cardSvc, recordSvc, index, labSvc, log, cfg.Clock, cfg.ObservabilityHook)

	return &Service{
		users:      users,
		patients:   patients,
		cardIndex:  cardIndex,
		engine:     engine,
		dispatcher: dispatcher,
		log:        log,
		sink:       sink,
		metrics:    cfg.MetricsCollector,
		hook:       cfg.ObservabilityHook,
		clock:      cfg.Clock,
	}, nil
}

// Dispatch executes one authenticated command. callerID is the identity
// the transport layer established; cmd is the typed request.
func (s *Service) Dispatch(ctx context.Context, callerID string, cmd Command) (any, error) {
	name := commandName(cmd)
	s.hook.OnCommandStart(ctx, name, map[string]any{"caller_id": callerID})
	start := time.Now()

	result, err := s.dispatcher.Dispatch(ctx, callerID, cmd)

	duration := time.Since(start)
	s.hook.OnCommandComplete(ctx, name, duration, err, nil)
	s.metrics.RecordTiming("healthcore.command.duration", duration, map[string]string{"command": name})
	if err != nil {
		s.metrics.IncrementCounter("healthcore.command.error", map[string]string{
			"command": name,
			"code":    ErrorCode(err),
		})
		return nil, err
	}
	s.metrics.IncrementCounter("healthcore.command.ok", map[string]string{"command": name})
	return result, nil
}

// CreateUser provisions an authenticated actor. Provisioning sits outside
// the command surface: the initial Admin and every transport-registered
// identity enter through here, so AssignRole can never mint an Admin.
func (s *Service) CreateUser(id, name string, role Role) (*User, error) {
	u := &model.User{ID: id, Name: name, Role: role, CreatedAt: s.clock()}
	if err := s.users.Put(u); err != nil {
		return nil, err
	}
	return u, nil
}

// LinkPatientUser binds a user identity to its own patient record,
// enabling the own-record access paths for the Patient role.
func (s *Service) LinkPatientUser(userID, patientID string) {
	s.patients.LinkUser(userID, patientID)
}

// AuditLog exposes the per-patient audit query for operators that bypass
// the command surface (e.g. compliance exports). Authorised reads go
// through the ReadAuditLog command instead.
func (s *Service) AuditLog(patientID string) []*AuditEvent {
	return s.log.Read(patientID, audit.Filter{})
}

// Flush forces the audit sink to persist buffered events.
func (s *Service) Flush(ctx context.Context) error {
	return s.log.Flush(ctx)
}

// Close releases the durable audit sink, if one is configured.
func (s *Service) Close() error {
	if s.sink != nil {
		return s.sink.Close()
	}
	return nil
}

func commandName(cmd Command) string {
	return dispatch.Name(cmd)
}
