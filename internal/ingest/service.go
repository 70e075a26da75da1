// Package ingest is the event sync service: it turns webhook deliveries
// and polled provider pages into stored, deduplicated canonical events.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Priya8975/socialproof-pipeline/internal/adapter"
	"github.com/Priya8975/socialproof-pipeline/internal/domain"
	"github.com/Priya8975/socialproof-pipeline/internal/metrics"
	"github.com/Priya8975/socialproof-pipeline/internal/rules"
)

// Ingestion modes, used as metric labels.
const (
	ModeWebhook = "webhook"
	ModePoll    = "poll"
)

const (
	DefaultPollTimeout  = 30 * time.Second
	DefaultPollInterval = 5 * time.Minute
)

// EventStore is the persistence the service needs. InsertEvent must be an
// upsert on (provider, event_id) that reports whether a row was written.
type EventStore interface {
	CreateConnector(ctx context.Context, c *domain.Connector) (bool, error)
	GetConnector(ctx context.Context, id string) (*domain.Connector, error)
	FindConnectorByUser(ctx context.Context, provider, userID string) (*domain.Connector, error)
	ActivateConnector(ctx context.Context, id string) error
	RecordSyncAttempt(ctx context.Context, connectorID string, a domain.SyncAttempt) error
	InsertEvent(ctx context.Context, e *domain.StoredEvent) (bool, error)
	CountEvents(ctx context.Context, connectorID string) (int, error)
}

// Scheduler queues a connector's next poll.
type Scheduler interface {
	Schedule(ctx context.Context, connectorID string, at time.Time) error
}

// Notifier receives ingestion updates for live subscribers.
type Notifier interface {
	EventIngested(ev domain.StoredEvent)
	SyncCompleted(connectorID string, result domain.SyncResult)
}

type Config struct {
	PollTimeout time.Duration
	// MinSyncInterval throttles manual syncs; zero disables it.
	MinSyncInterval time.Duration
	// PollInterval applies to connectors that do not set their own.
	PollInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.PollTimeout <= 0 {
		c.PollTimeout = DefaultPollTimeout
	}
	if c.MinSyncInterval < 0 {
		c.MinSyncInterval = 0
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	return c
}

type Option func(*Service)

func WithLocker(l Locker) Option       { return func(s *Service) { s.locker = l } }
func WithScheduler(q Scheduler) Option { return func(s *Service) { s.scheduler = q } }
func WithNotifier(n Notifier) Option   { return func(s *Service) { s.notifier = n } }

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service is the only writer of canonical events.
type Service struct {
	registry  *adapter.Registry
	store     EventStore
	fetcher   Fetcher
	locker    Locker
	scheduler Scheduler
	notifier  Notifier
	metrics   *metrics.Metrics
	logger    *slog.Logger
	cfg       Config
	now       func() time.Time
}

func NewService(registry *adapter.Registry, store EventStore, fetcher Fetcher, logger *slog.Logger, cfg Config, opts ...Option) *Service {
	s := &Service{
		registry: registry,
		store:    store,
		fetcher:  fetcher,
		logger:   logger,
		cfg:      cfg.withDefaults(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.locker == nil {
		s.locker = NewLocalLocker()
	}
	return s
}

func (s *Service) Config() Config {
	return s.cfg
}

// RegisterConnector stores a new connector in pending status with the
// sync capabilities of its provider. Registering an existing id changes
// nothing and returns the stored connector with created=false.
func (s *Service) RegisterConnector(ctx context.Context, c domain.Connector) (*domain.Connector, bool, error) {
	a, err := s.registry.Lookup(c.Provider)
	if err != nil {
		return nil, false, err
	}
	if err := rules.Validate(c.Rules); err != nil {
		return nil, false, fmt.Errorf("%w: %w", ErrInvalidConnector, err)
	}

	c.Provider = a.Provider()
	c.SyncConfig = adapter.SyncConfigFor(a)
	c.Status = domain.ConnectorPending
	c.Cursor = ""
	c.LastSync = nil
	c.LastSyncStatus = domain.SyncOutcome{}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.PollInterval <= 0 {
		c.PollInterval = s.cfg.PollInterval
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now().UTC()
	}

	created, err := s.store.CreateConnector(ctx, &c)
	if err != nil {
		return nil, false, fmt.Errorf("registering connector: %w", err)
	}
	if !created {
		existing, err := s.store.GetConnector(ctx, c.ID)
		if err != nil {
			return nil, false, fmt.Errorf("loading connector: %w", err)
		}
		return existing, false, nil
	}

	s.logger.Info("connector registered",
		"connector_id", c.ID,
		"provider", c.Provider,
		"polling", c.SyncConfig.SupportsPolling,
	)
	if c.SyncConfig.SupportsPolling && s.scheduler != nil {
		if err := s.scheduler.Schedule(ctx, c.ID, s.now()); err != nil {
			s.logger.Error("scheduling first poll", "connector_id", c.ID, "error", err)
		}
	}
	return &c, true, nil
}

func (s *Service) GetConnector(ctx context.Context, connectorID string) (*domain.Connector, error) {
	c, err := s.store.GetConnector(ctx, connectorID)
	if err != nil {
		return nil, fmt.Errorf("loading connector: %w", err)
	}
	if c == nil {
		return nil, ErrUnknownConnector
	}
	return c, nil
}

// GetSyncStatus is a pure read; it never starts a sync.
func (s *Service) GetSyncStatus(ctx context.Context, connectorID string) (*domain.SyncStatus, error) {
	c, err := s.GetConnector(ctx, connectorID)
	if err != nil {
		return nil, err
	}
	total, err := s.store.CountEvents(ctx, connectorID)
	if err != nil {
		return nil, fmt.Errorf("counting events: %w", err)
	}
	return &domain.SyncStatus{
		ConnectorID:    c.ID,
		Status:         c.Status,
		TotalEvents:    total,
		LastSync:       c.LastSync,
		LastSyncStatus: c.LastSyncStatus,
		CanSyncNow:     c.SyncConfig.SupportsPolling && s.cooldownLeft(c) == 0,
		SyncConfig:     c.SyncConfig,
	}, nil
}

func (s *Service) cooldownLeft(c *domain.Connector) time.Duration {
	if c.LastSync == nil || s.cfg.MinSyncInterval == 0 {
		return 0
	}
	left := c.LastSync.Add(s.cfg.MinSyncInterval).Sub(s.now())
	if left < 0 {
		return 0
	}
	return left
}

// SyncNow runs Sync and folds any error into the result, so callers at the
// pipeline boundary only ever see a SyncResult.
func (s *Service) SyncNow(ctx context.Context, connectorID, providerID string) domain.SyncResult {
	res, err := s.Sync(ctx, connectorID, providerID)
	if err != nil {
		return domain.SyncResult{Success: false, Errors: []string{err.Error()}}
	}
	return res
}

// Sync polls one page of new events for the connector and stores them.
// The error return is reserved for syncs that could not start; problems
// with individual events or the fetch itself are reported in the result.
// providerID may be empty; when set it must resolve to the connector's
// provider.
func (s *Service) Sync(ctx context.Context, connectorID, providerID string) (domain.SyncResult, error) {
	c, err := s.GetConnector(ctx, connectorID)
	if err != nil {
		return domain.SyncResult{}, err
	}
	a, err := s.registry.Lookup(c.Provider)
	if err != nil {
		return domain.SyncResult{}, err
	}
	if providerID != "" && s.registry.ResolveProviderAlias(providerID) != a.Provider() {
		return domain.SyncResult{}, fmt.Errorf("%w: %s is a %s connector", ErrProviderMismatch, c.ID, a.Provider())
	}
	poller, ok := a.(adapter.Poller)
	if !ok {
		return domain.SyncResult{}, fmt.Errorf("%w: %s", ErrPollingUnsupported, a.Provider())
	}
	if left := s.cooldownLeft(c); left > 0 {
		s.metrics.SyncRejected(a.Provider())
		return domain.SyncResult{}, fmt.Errorf("%w: retry in %s", ErrSyncTooSoon, left.Round(time.Second))
	}

	release, acquired, err := s.locker.TryLock(ctx, c.ID)
	if err != nil {
		return domain.SyncResult{}, err
	}
	if !acquired {
		s.metrics.SyncRejected(a.Provider())
		return domain.SyncResult{}, ErrSyncInProgress
	}
	defer release()

	start := s.now()
	result := s.poll(ctx, c, poller)
	took := s.now().Sub(start)

	s.metrics.SyncFinished(a.Provider(), result.Success, took)
	s.logger.Info("sync finished",
		"connector_id", c.ID,
		"provider", a.Provider(),
		"success", result.Success,
		"events_synced", result.EventsSynced,
		"events_skipped", result.EventsSkipped,
		"errors", len(result.Errors),
		"duration_ms", took.Milliseconds(),
	)
	if s.notifier != nil {
		s.notifier.SyncCompleted(c.ID, result)
	}
	return result, nil
}

func (s *Service) poll(ctx context.Context, c *domain.Connector, poller adapter.Poller) domain.SyncResult {
	started := s.now().UTC()
	errs := newErrorList(MaxReportedErrors)
	result := domain.SyncResult{}

	pollCtx, cancel := context.WithTimeout(ctx, s.cfg.PollTimeout)
	defer cancel()

	page, err := s.fetcher.Fetch(pollCtx, *c, poller.PollSpec())
	if err != nil {
		errs.add("fetching events: %v", err)
		result.Errors = errs.list()
		s.recordAttempt(ctx, c.ID, domain.SyncAttempt{At: started, Error: result.Errors[0]})
		return result
	}

	ruleset := rules.Compile(c.Rules, s.logger)
	timedOut, storeFailed := false, false
	for i, raw := range page.Items {
		if pollCtx.Err() != nil {
			timedOut = true
			errs.add("poll timed out after %d of %d events", i, len(page.Items))
			break
		}
		res, err := s.ingest(pollCtx, c, poller, ruleset, raw, ModePoll)
		switch {
		case err != nil:
			var nerr *adapter.NormalizationError
			if !errors.As(err, &nerr) {
				storeFailed = true
			}
			errs.add("event %d: %v", i, err)
		case res.Stored:
			result.EventsSynced++
		default:
			result.EventsSkipped++
		}
	}

	result.Success = !timedOut
	result.Errors = errs.list()

	attempt := domain.SyncAttempt{At: started, Success: result.Success}
	// Resume from the same cursor if anything might not have been written.
	if !timedOut && !storeFailed {
		attempt.Cursor = page.Cursor
	}
	switch {
	case !result.Success:
		attempt.Error = strings.Join(result.Errors, "; ")
	case errs.count() > 0:
		attempt.Error = fmt.Sprintf("%d of %d events failed", errs.count(), len(page.Items))
	}
	s.recordAttempt(ctx, c.ID, attempt)

	if result.Success && c.Status == domain.ConnectorPending {
		s.activate(ctx, c.ID)
	}
	return result
}

// recordAttempt must survive a poll that ran out of time, so it gets its
// own deadline rather than the poll's.
func (s *Service) recordAttempt(ctx context.Context, connectorID string, a domain.SyncAttempt) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.store.RecordSyncAttempt(ctx, connectorID, a); err != nil {
		s.logger.Error("recording sync attempt", "connector_id", connectorID, "error", err)
	}
}

func (s *Service) activate(ctx context.Context, connectorID string) {
	if err := s.store.ActivateConnector(ctx, connectorID); err != nil {
		s.logger.Error("activating connector", "connector_id", connectorID, "error", err)
		return
	}
	s.logger.Info("connector activated", "connector_id", connectorID)
}

// IngestResult describes one raw event after normalize, rules and store.
type IngestResult struct {
	ConnectorID string `json:"connector_id"`
	EventID     string `json:"event_id"`
	Provider    string `json:"provider"`
	// Stored is false when the (provider, event_id) was already present.
	Stored     bool     `json:"stored"`
	Suppressed bool     `json:"suppressed"`
	Applied    []string `json:"applied_rules,omitempty"`
}

func (s *Service) ingest(ctx context.Context, c *domain.Connector, a adapter.Adapter, rs *rules.RuleSet, raw []byte, mode string) (IngestResult, error) {
	ev, err := a.Normalize(raw)
	if err != nil {
		s.metrics.EventIngested(a.Provider(), mode, metrics.OutcomeError)
		return IngestResult{}, err
	}

	out := rs.Apply(ev)
	stored := &domain.StoredEvent{
		ConnectorID:    c.ID,
		CanonicalEvent: out.Event,
		Suppressed:     out.Suppressed,
		AppliedRules:   out.Applied,
	}
	inserted, err := s.store.InsertEvent(ctx, stored)
	if err != nil {
		s.metrics.EventIngested(a.Provider(), mode, metrics.OutcomeError)
		return IngestResult{}, fmt.Errorf("storing event %s: %w", ev.EventID, err)
	}

	res := IngestResult{
		ConnectorID: c.ID,
		EventID:     ev.EventID,
		Provider:    ev.Provider,
		Stored:      inserted,
		Suppressed:  out.Suppressed,
		Applied:     out.Applied,
	}
	if !inserted {
		s.metrics.EventIngested(a.Provider(), mode, metrics.OutcomeDuplicate)
		s.logger.Debug("duplicate event skipped", "connector_id", c.ID, "provider", ev.Provider, "event_id", ev.EventID)
		return res, nil
	}

	s.metrics.EventIngested(a.Provider(), mode, metrics.OutcomeStored)
	if s.notifier != nil {
		s.notifier.EventIngested(*stored)
	}
	return res, nil
}

// ConnectorRef names the connector a webhook is for, either directly or
// by the provider-side user id.
type ConnectorRef struct {
	ConnectorID string
	UserID      string
}

// ReceiveWebhook normalizes and stores one pushed event. Delivering the
// same event twice stores it once; the second result has Stored=false.
func (s *Service) ReceiveWebhook(ctx context.Context, providerID string, ref ConnectorRef, body []byte) (IngestResult, error) {
	a, err := s.registry.Lookup(providerID)
	if err != nil {
		return IngestResult{}, err
	}
	c, err := s.resolveConnector(ctx, a.Provider(), ref)
	if err != nil {
		return IngestResult{}, err
	}
	if c.Provider != a.Provider() {
		return IngestResult{}, fmt.Errorf("%w: %s is a %s connector", ErrProviderMismatch, c.ID, c.Provider)
	}

	res, err := s.ingest(ctx, c, a, rules.Compile(c.Rules, s.logger), body, ModeWebhook)
	if err != nil {
		return IngestResult{}, err
	}
	if c.Status == domain.ConnectorPending {
		s.activate(ctx, c.ID)
	}
	return res, nil
}

func (s *Service) resolveConnector(ctx context.Context, provider string, ref ConnectorRef) (*domain.Connector, error) {
	switch {
	case ref.ConnectorID != "":
		return s.GetConnector(ctx, ref.ConnectorID)
	case ref.UserID != "":
		c, err := s.store.FindConnectorByUser(ctx, provider, ref.UserID)
		if err != nil {
			return nil, fmt.Errorf("loading connector: %w", err)
		}
		if c == nil {
			return nil, ErrUnknownConnector
		}
		return c, nil
	default:
		return nil, fmt.Errorf("%w: no connector_id or user_id", ErrUnknownConnector)
	}
}
