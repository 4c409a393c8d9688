// Package transfer implements the registrar-to-registrar ownership transfer
// lifecycle for registry resources: request, explicit approve/reject/cancel,
// and automatic server approval when the pending window lapses.
//
// Automatic approval needs no background job to be correct. A request stages
// speculative entities dated at the automatic-approval deadline; if nobody
// resolves the transfer explicitly, those entities become authoritative
// simply by time passing, and every read projects the resource forward
// before interpreting it. The scheduler only makes the persisted state catch
// up promptly.
package transfer

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/unstoppabledomains/nomulus/internal/audit"
	"github.com/unstoppabledomains/nomulus/internal/platform/metrics"
	"github.com/unstoppabledomains/nomulus/internal/registry/models"
	"github.com/unstoppabledomains/nomulus/internal/registry/pricing"
	"github.com/unstoppabledomains/nomulus/internal/registry/scheduler"
	"github.com/unstoppabledomains/nomulus/internal/registry/store"
)

// Config carries the registry policy knobs for transfers.
type Config struct {
	// PendingPeriod is how long a requested transfer stays pending before
	// the server approves it automatically.
	PendingPeriod time.Duration
	// TransferGraceLength is how long after the approval moment the
	// transfer charge remains refundable.
	TransferGraceLength time.Duration
	// AutorenewGraceLength is how long after an autorenew firing its charge
	// remains refundable. An approval inside this window subsumes the
	// autorenew instead of stacking a transfer year on top of it.
	AutorenewGraceLength time.Duration
	// MaxRegistrationYears caps how far past the approval moment an
	// expiration may extend.
	MaxRegistrationYears int
}

// DefaultConfig mirrors standard gTLD policy.
func DefaultConfig() Config {
	return Config{
		PendingPeriod:        5 * 24 * time.Hour,
		TransferGraceLength:  5 * 24 * time.Hour,
		AutorenewGraceLength: 45 * 24 * time.Hour,
		MaxRegistrationYears: 10,
	}
}

// Service runs the transfer state machine. All collaborators beyond the
// store and pricing engine are optional.
type Service struct {
	store     store.Store
	pricing   pricing.Engine
	scheduler scheduler.Scheduler
	cfg       Config
	logger    *slog.Logger
	metrics   *metrics.Metrics
	audit     audit.Publisher
	tracer    trace.Tracer
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMetrics sets the Prometheus instruments.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithScheduler sets the deadline scheduler used to persist automatic
// approvals promptly.
func WithScheduler(sched scheduler.Scheduler) Option {
	return func(s *Service) { s.scheduler = sched }
}

// WithAuditPublisher sets the external audit sink.
func WithAuditPublisher(pub audit.Publisher) Option {
	return func(s *Service) { s.audit = pub }
}

// WithConfig overrides the default policy.
func WithConfig(cfg Config) Option {
	return func(s *Service) { s.cfg = cfg }
}

// WithTracer sets the tracer for flow spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) { s.tracer = tracer }
}

// New builds a transfer service over the given store and pricing engine.
func New(st store.Store, eng pricing.Engine, opts ...Option) *Service {
	s := &Service{
		store:     st,
		pricing:   eng,
		scheduler: scheduler.Noop{},
		cfg:       DefaultConfig(),
		logger:    slog.Default(),
		metrics:   metrics.NewNop(),
		audit:     audit.NopPublisher{},
		tracer:    noop.NewTracerProvider().Tracer("registry/transfer"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RequestParams are the inputs to a transfer request.
type RequestParams struct {
	// Target names the resource to transfer.
	Target models.Key
	// GainingRegistrarID is the requesting registrar.
	GainingRegistrarID string
	// AuthInfo is the resource's transfer authorization code.
	AuthInfo string
	// PeriodYears is the renewal period to add on approval. Nil defaults to
	// one year. Only superusers may pass zero.
	PeriodYears *int
	// Fee, when present, must match the server-computed cost exactly.
	Fee *models.Money
	// Superuser relaxes authorization and validation for registry
	// operators.
	Superuser bool
	// PendingPeriod overrides the configured automatic-approval window.
	// Superuser only.
	PendingPeriod *time.Duration
}

// ResolveParams are the inputs to an explicit approve, reject, or cancel.
type ResolveParams struct {
	Target      models.Key
	RegistrarID string
	AuthInfo    string
	Superuser   bool
}

// TransferResult is what the flows return to the transport layer.
type TransferResult struct {
	Resource models.Resource
	Transfer models.TransferData
	// Cost is the transfer charge, zero for contacts and zero-period
	// transfers.
	Cost models.Money
}
