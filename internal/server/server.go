package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ppiankov/corridorwatch/internal/alert"
	"github.com/ppiankov/corridorwatch/internal/audit"
	"github.com/ppiankov/corridorwatch/internal/auth"
	"github.com/ppiankov/corridorwatch/internal/config"
	"github.com/ppiankov/corridorwatch/internal/consentsig"
	"github.com/ppiankov/corridorwatch/internal/corridor"
	"github.com/ppiankov/corridorwatch/internal/gate"
	"github.com/ppiankov/corridorwatch/internal/guard"
	"github.com/ppiankov/corridorwatch/internal/ledger"
	"github.com/ppiankov/corridorwatch/internal/metrics"
	"github.com/ppiankov/corridorwatch/internal/model"
	"github.com/ppiankov/corridorwatch/internal/registry"
	"github.com/ppiankov/corridorwatch/internal/rpc"
)

// Config holds gRPC server configuration.
type Config struct {
	Port       int
	ConfigPath string
	// AuditLogPath overrides audit.log from the config file when set.
	AuditLogPath string
	Metrics      metrics.Sink
}

// Server implements the Corridorwatch gRPC service. The same evaluation
// methods back the HTTP facade and the MCP tools.
type Server struct {
	rpc.UnimplementedCorridorwatchServer

	mu         sync.RWMutex
	conf       *config.Config
	configID   string
	kernel     *guard.Kernel
	verifier   *consentsig.Verifier
	dispatcher *alert.Dispatcher

	registry registry.Registry
	closeReg func() error
	seeded   []corridor.ID // ids installed by the current seed file
	auditLog *audit.Log
	ledger   *ledger.Ledger
	sink     metrics.Sink
	cfg      Config

	grpcServer *grpc.Server
}

// New creates a server from the config file, opening the registry, the
// audit log and the ledger it names.
func New(cfg Config) (*Server, error) {
	conf, configID, err := config.LoadConfigWithHash(cfg.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	s := &Server{
		sink:       cfg.Metrics,
		cfg:        cfg,
		grpcServer: grpc.NewServer(),
	}
	if s.sink == nil {
		s.sink = metrics.Nop{}
	}
	st, err := prepare(conf, configID)
	if err != nil {
		return nil, err
	}

	logPath := conf.Audit.Log
	if cfg.AuditLogPath != "" {
		logPath = cfg.AuditLogPath
	}
	if logPath != "" {
		s.auditLog, err = audit.Open(logPath, audit.WithConfigID(configID))
		if err != nil {
			return nil, fmt.Errorf("failed to open audit log: %w", err)
		}
	} else {
		s.auditLog = audit.Discard(audit.WithConfigID(configID))
	}

	if conf.Registry.Database != "" {
		db, err := registry.OpenSQLite(conf.Registry.Database, registry.RequireDID(conf.Registry.RequireDID))
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to open registry: %w", err)
		}
		s.registry, s.closeReg = db, db.Close
	} else {
		s.registry = registry.NewMemory(registry.RequireDID(conf.Registry.RequireDID))
	}
	seeded, err := s.reseed(nil, conf.Registry.File)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.apply(st, seeded)

	if conf.Audit.Ledger != "" {
		s.ledger, err = ledger.Open(conf.Audit.Ledger)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to open ledger: %w", err)
		}
	}

	rpc.RegisterCorridorwatchServer(s.grpcServer, s)
	return s, nil
}

// Serve starts the gRPC server on the configured port. Blocks until stopped.
func (s *Server) Serve() error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Port))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", s.cfg.Port, err)
	}
	return s.grpcServer.Serve(lis)
}

// ServeOn starts the gRPC server on the given listener. For testing.
func (s *Server) ServeOn(lis net.Listener) error {
	return s.grpcServer.Serve(lis)
}

// GracefulStop gracefully shuts down the gRPC server.
func (s *Server) GracefulStop() {
	s.grpcServer.GracefulStop()
}

// Close waits for in-flight alerts and releases files and databases.
func (s *Server) Close() error {
	s.mu.RLock()
	d := s.dispatcher
	s.mu.RUnlock()
	if d != nil {
		d.Wait()
	}

	var errs []error
	if s.auditLog != nil {
		errs = append(errs, s.auditLog.Close())
	}
	if s.ledger != nil {
		errs = append(errs, s.ledger.Close())
	}
	if s.closeReg != nil {
		errs = append(errs, s.closeReg())
	}
	return errors.Join(errs...)
}

// Registry exposes the corridor registry.
func (s *Server) Registry() registry.Registry { return s.registry }

// ConfigID returns the content ID of the active config.
func (s *Server) ConfigID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.configID
}

// WatchPaths lists the files whose changes should trigger ReloadConfig.
func (s *Server) WatchPaths() []string {
	path := s.cfg.ConfigPath
	if path == "" {
		path = config.DefaultPath()
	}
	s.mu.RLock()
	seed := s.conf.Registry.File
	s.mu.RUnlock()
	return []string{path, seed}
}

// ReloadConfig re-reads the config and the registry seed file. Nothing
// changes unless both are valid: the registry is brought in line with the
// seed first, then the envelope, access policy, trusted keys and alert
// targets are swapped. Storage paths are fixed at startup. Called by the
// hot-reloader on file change.
func (s *Server) ReloadConfig() error {
	conf, configID, err := config.LoadConfigWithHash(s.cfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("failed to reload config: %w", err)
	}
	st, err := prepare(conf, configID)
	if err != nil {
		return err
	}

	s.mu.RLock()
	prev := s.seeded
	s.mu.RUnlock()
	seeded, err := s.reseed(prev, conf.Registry.File)
	if err != nil {
		return err
	}
	s.apply(st, seeded)
	return nil
}

// state is everything a config reload swaps in one step.
type state struct {
	conf       *config.Config
	configID   string
	kernel     *guard.Kernel
	verifier   *consentsig.Verifier
	dispatcher *alert.Dispatcher
}

func prepare(conf *config.Config, configID string) (*state, error) {
	kernel, err := guard.NewKernel(conf.Envelope)
	if err != nil {
		return nil, fmt.Errorf("failed to build kernel: %w", err)
	}
	verifier, err := consentsig.NewVerifier(conf.Consent.TrustedKeys)
	if err != nil {
		return nil, fmt.Errorf("failed to load trusted keys: %w", err)
	}
	return &state{
		conf:       conf,
		configID:   configID,
		kernel:     kernel,
		verifier:   verifier,
		dispatcher: alert.NewDispatcher(conf.Alerts),
	}, nil
}

func (s *Server) apply(st *state, seeded []corridor.ID) {
	s.mu.Lock()
	s.conf = st.conf
	s.configID = st.configID
	s.kernel = st.kernel
	s.verifier = st.verifier
	s.dispatcher = st.dispatcher
	s.seeded = seeded
	s.mu.Unlock()
	s.auditLog.SetConfigID(st.configID)
}

// reseed loads the seed file at path and replaces the records prev
// installed. An empty path removes them.
func (s *Server) reseed(prev []corridor.ID, path string) ([]corridor.ID, error) {
	var cs []corridor.Corridor
	if path != "" {
		var err error
		cs, err = registry.LoadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load registry file: %w", err)
		}
	}
	ids, err := registry.Reseed(s.registry, prev, cs)
	if err != nil {
		return nil, fmt.Errorf("failed to seed registry: %w", err)
	}
	return ids, nil
}

// Envelope evaluates one telemetry sample.
func (s *Server) Envelope(req rpc.EnvelopeRequest) rpc.EnvelopeResponse {
	traceID := traceIDOr(req.TraceID)

	s.mu.RLock()
	kernel := s.kernel
	s.mu.RUnlock()

	rec := kernel.Evaluate(req.Telemetry)
	st := rec.Evaluation.Status
	decision := model.DecisionForStatus(st)
	margin := rec.Evaluation.CompositeMargin

	s.sink.Observe(st, margin)
	s.record(audit.AuditEntry{
		TraceID:         traceID,
		Kind:            audit.KindEnvelope,
		Subject:         rec.ID,
		Decision:        string(decision),
		Detail:          string(st),
		Reason:          rec.Message,
		CompositeMargin: &margin,
	}, string(st))

	return rpc.EnvelopeResponse{TraceID: traceID, Decision: decision, Recommendation: rec}
}

// Action runs the precondition gate for a proposed action. A malformed
// request is an error; a denial is a normal response.
func (s *Server) Action(req rpc.ActionRequest) (rpc.ActionResponse, error) {
	if err := req.Request.Validate(); err != nil {
		return rpc.ActionResponse{}, err
	}
	traceID := traceIDOr(req.TraceID)
	resp := rpc.ActionResponse{TraceID: traceID, Allowed: true}

	s.mu.RLock()
	verifier := s.verifier
	s.mu.RUnlock()

	var err error
	c, found := s.registry.Get(req.Request.CorridorID)
	if found {
		resp.RiskLabel = c.AdvisoryRiskLabel()
		err = verifier.CheckAction(c, req.Request)
	} else {
		err = gate.NotRegistered(req.Request.CorridorID)
	}
	if err != nil {
		d, ok := gate.AsDenial(err)
		if !ok {
			return rpc.ActionResponse{}, err
		}
		resp.Allowed = false
		resp.Denial = d
		s.sink.ObserveDenial(d.Kind)
	}

	entry := audit.AuditEntry{
		TraceID:  traceID,
		Kind:     audit.KindAction,
		Subject:  req.Request.CorridorID.String(),
		Decision: string(model.Allow),
		Reason:   "all preconditions satisfied",
	}
	alertType := ""
	if resp.Denial != nil {
		entry.Decision = string(model.Deny)
		entry.Detail = string(resp.Denial.Kind)
		entry.Reason = resp.Denial.Reason
		alertType = string(resp.Denial.Kind)
	}
	s.record(entry, alertType)
	return resp, nil
}

// Access evaluates the authentication factors and folds in the access
// policy. req.Policy replaces the configured policy when set.
func (s *Server) Access(req rpc.AccessRequest) rpc.AccessResponse {
	traceID := traceIDOr(req.TraceID)

	s.mu.RLock()
	policy := s.conf.Access.Policy
	strict := s.conf.Access.Strict
	s.mu.RUnlock()
	if req.Policy != nil {
		policy = *req.Policy
	}

	eval := auth.EvaluateMFA(req.Context)
	verdict := auth.EvaluatePolicy(eval, policy, auth.Strict(strict))

	subject := "anonymous"
	if req.Context.Biometric != nil && req.Context.Biometric.ID != "" {
		subject = req.Context.Biometric.ID
	}
	entry := audit.AuditEntry{
		TraceID:  traceID,
		Kind:     audit.KindAccess,
		Subject:  subject,
		Decision: string(eval.Decision),
		Detail:   "allowed",
		Reason:   eval.Explanation,
	}
	alertType := ""
	if !verdict.Allowed {
		entry.Detail = "blocked"
		alertType = string(eval.Decision)
	}
	s.record(entry, alertType)

	return rpc.AccessResponse{
		TraceID:    traceID,
		Evaluation: eval,
		Verdict:    verdict,
		Policy:     policy,
		Strict:     strict,
	}
}

// PutCorridor validates and stores a corridor record.
func (s *Server) PutCorridor(req rpc.UpsertRequest) (rpc.CorridorRecord, error) {
	if err := s.registry.Upsert(req.Corridor); err != nil {
		return rpc.CorridorRecord{}, err
	}
	s.record(audit.AuditEntry{
		TraceID:  traceIDOr(req.TraceID),
		Kind:     audit.KindUpsert,
		Subject:  req.Corridor.ID.String(),
		Decision: "stored",
		Reason:   req.Corridor.AdvisoryRiskLabel(),
	}, "")
	return rpc.Record(req.Corridor), nil
}

// Corridor returns one registered corridor.
func (s *Server) Corridor(id string) (rpc.CorridorRecord, error) {
	cid, err := corridor.NewID(id)
	if err != nil {
		return rpc.CorridorRecord{}, err
	}
	c, ok := s.registry.Get(cid)
	if !ok {
		return rpc.CorridorRecord{}, fmt.Errorf("%w: %s", registry.ErrNotFound, cid)
	}
	return rpc.Record(c), nil
}

// Corridors lists every registered corridor.
func (s *Server) Corridors() rpc.ListResponse {
	cs := s.registry.List()
	out := rpc.ListResponse{Corridors: make([]rpc.CorridorRecord, len(cs))}
	for i, c := range cs {
		out.Corridors[i] = rpc.Record(c)
	}
	return out
}

// EvaluateEnvelope implements the EvaluateEnvelope RPC.
func (s *Server) EvaluateEnvelope(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req rpc.EnvelopeRequest
	if err := rpc.FromStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	return reply(s.Envelope(req))
}

// CheckAction implements the CheckAction RPC.
func (s *Server) CheckAction(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req rpc.ActionRequest
	if err := rpc.FromStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	resp, err := s.Action(req)
	if err != nil {
		return nil, grpcError(err)
	}
	return reply(resp)
}

// EvaluateAccess implements the EvaluateAccess RPC.
func (s *Server) EvaluateAccess(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req rpc.AccessRequest
	if err := rpc.FromStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	return reply(s.Access(req))
}

// UpsertCorridor implements the UpsertCorridor RPC.
func (s *Server) UpsertCorridor(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req rpc.UpsertRequest
	if err := rpc.FromStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	rec, err := s.PutCorridor(req)
	if err != nil {
		return nil, grpcError(err)
	}
	return reply(rec)
}

// GetCorridor implements the GetCorridor RPC.
func (s *Server) GetCorridor(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req rpc.CorridorRequest
	if err := rpc.FromStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	rec, err := s.Corridor(req.ID)
	if err != nil {
		return nil, grpcError(err)
	}
	return reply(rec)
}

// ListCorridors implements the ListCorridors RPC.
func (s *Server) ListCorridors(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return reply(s.Corridors())
}

func reply(v any) (*structpb.Struct, error) {
	out, err := rpc.ToStruct(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// grpcError maps domain errors to status codes.
func grpcError(err error) error {
	switch {
	case errors.Is(err, registry.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, corridor.ErrInvalidRequest),
		errors.Is(err, corridor.ErrEmptyID),
		errors.Is(err, corridor.ErrInvalidCorridor),
		errors.Is(err, model.ErrScoreOutOfRange):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// record appends the entry to the audit log and ledger and fires alerts.
// alertType names the status or denial kind alert configs match on.
func (s *Server) record(entry audit.AuditEntry, alertType string) {
	s.mu.RLock()
	d := s.dispatcher
	s.mu.RUnlock()

	entry, err := s.auditLog.Record(entry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "corridorwatch: audit: %v\n", err)
	}
	if s.ledger != nil {
		if err := s.ledger.Insert(entry); err != nil {
			fmt.Fprintf(os.Stderr, "corridorwatch: ledger: %v\n", err)
		}
	}
	if d != nil {
		d.Dispatch(alert.AlertEvent{
			Timestamp:       entry.Timestamp,
			TraceID:         entry.TraceID,
			Kind:            entry.Kind,
			Subject:         entry.Subject,
			Decision:        entry.Decision,
			Reason:          entry.Reason,
			Type:            alertType,
			CompositeMargin: entry.CompositeMargin,
			ConfigID:        entry.ConfigID,
		})
	}
}

// NewTraceID returns "t-" plus 12 hex characters of a random UUID.
func NewTraceID() string {
	return "t-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

func traceIDOr(id string) string {
	if id != "" {
		return id
	}
	return NewTraceID()
}
