package directory

import (
	"time"

	"github.com/google/uuid"
	"github.com/vinayprograms/agentdir/auth"
	"github.com/vinayprograms/agentdir/bus"
	"github.com/vinayprograms/agentdir/embedding"
	"github.com/vinayprograms/agentdir/logging"
	"github.com/vinayprograms/agentdir/ranking"
	"github.com/vinayprograms/agentdir/ratelimit"
	"github.com/vinayprograms/agentdir/registry"
	"github.com/vinayprograms/agentdir/telemetry"
)

// Config holds facade configuration.
type Config struct {
	// EmbedTimeout bounds each embedding gateway call. Default: 3s
	EmbedTimeout time.Duration

	// Validation constrains registration fields.
	Validation registry.ValidationConfig
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		EmbedTimeout: 3 * time.Second,
		Validation:   registry.DefaultValidationConfig(),
	}
}

// Deps wires the facade to its collaborators. Store, Bus, and Oracle
// are required; the rest degrade gracefully when nil.
type Deps struct {
	Store    *registry.Store
	Ranker   *ranking.Engine
	Bus      bus.Bus
	Oracle   auth.Oracle
	Embedder embedding.Gateway
	Limiter  ratelimit.Limiter
	Log      *logging.Logger
	Tracer   *telemetry.Tracer
}

// Service is the operation surface of the directory. It enforces
// permissions and record invariants before touching the store, and
// publishes an event for every mutation.
type Service struct {
	store    *registry.Store
	ranker   *ranking.Engine
	bus      bus.Bus
	oracle   auth.Oracle
	embedder embedding.Gateway
	limiter  ratelimit.Limiter
	log      *logging.Logger
	tracer   *telemetry.Tracer
	cfg      Config
}

// New creates the directory facade.
func New(cfg Config, deps Deps) *Service {
	if cfg.EmbedTimeout <= 0 {
		cfg.EmbedTimeout = DefaultConfig().EmbedTimeout
	}
	log := deps.Log
	if log == nil {
		log = logging.New()
	}
	tracer := deps.Tracer
	if tracer == nil {
		tracer = telemetry.GetTracer()
	}
	ranker := deps.Ranker
	if ranker == nil {
		ranker = ranking.NewEngine(deps.Embedder, ranking.DefaultWeights())
	}
	return &Service{
		store:    deps.Store,
		ranker:   ranker,
		bus:      deps.Bus,
		oracle:   deps.Oracle,
		embedder: deps.Embedder,
		limiter:  deps.Limiter,
		log:      log.WithComponent("directory"),
		tracer:   tracer,
		cfg:      cfg,
	}
}

// Counts returns the current liveness summary.
func (s *Service) Counts() registry.Counts {
	return s.store.Counts()
}

// requestID returns the caller-provided request id or mints one.
func requestID(ident auth.Identity) string {
	if ident.RequestID != "" {
		return ident.RequestID
	}
	return uuid.NewString()
}

// callerKey identifies a caller for rate limiting.
func callerKey(ident auth.Identity, d auth.Decision) string {
	if d.ActingID != "" {
		return d.ActingID
	}
	if ident.Token != "" {
		return ident.Token
	}
	return "anonymous"
}

// denied records an authorization failure on the admin topic so
// operators can watch for probing.
func (s *Service) denied(op, reqID string, err error) {
	s.log.SecurityWarning("authorization denied", map[string]interface{}{
		"operation":  op,
		"request_id": reqID,
		"error":      err.Error(),
	})
	s.publish(bus.Event{
		Topic:  bus.TopicAdmin,
		Type:   bus.EventSecurity,
		Detail: op + ": " + err.Error(),
	})
}

func (s *Service) publish(ev bus.Event) {
	if s.bus == nil {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	s.bus.Publish(ev)
}

// publishCounts pushes the current liveness summary to the public topic.
func (s *Service) publishCounts() {
	counts := s.store.Counts()
	s.publish(bus.Event{
		Topic:  bus.TopicPublic,
		Type:   bus.EventCounts,
		Counts: &counts,
	})
}
