// Package engine orchestrates the session lifecycle: it loads the configured
// handler chain, starts and stops sessions, routes ChatData envelopes from
// producers to consumers, and enforces the concurrency limit and connection
// TTL.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/NimbusAI/avatarchat/config"
	"github.com/NimbusAI/avatarchat/events"
	"github.com/NimbusAI/avatarchat/handler"
	"github.com/NimbusAI/avatarchat/logger"
	"github.com/NimbusAI/avatarchat/metrics/prometheus"
	"github.com/NimbusAI/avatarchat/session"
	"github.com/NimbusAI/avatarchat/types"
)

// Sentinel errors returned by engine operations.
var (
	// ErrNotInitialized is returned when a session operation runs before
	// Initialize.
	ErrNotInitialized = errors.New("engine not initialized")

	// ErrConcurrencyLimit is returned when starting a session would exceed
	// the configured concurrent session limit.
	ErrConcurrencyLimit = errors.New("concurrent session limit reached")

	// ErrSessionNotFound is returned when the named session is not live.
	ErrSessionNotFound = errors.New("session not found")

	// ErrUnknownHandler is returned when configuration names a handler that
	// was never registered with the engine.
	ErrUnknownHandler = errors.New("unknown handler")
)

// ttlSweepInterval bounds how stale a TTL expiry can be.
const ttlSweepInterval = 5 * time.Second

type loadedEntry struct {
	name string
	h    handler.Handler
	cfg  config.HandlerConfig
}

// Engine drives the handler chain for all live sessions. Construct it with
// the available handler implementations, Initialize it once, then start and
// stop sessions. All exported methods are safe for concurrent use after
// Initialize.
type Engine struct {
	cfg       *config.EngineConfig
	available map[string]handler.Handler
	loaded    []loadedEntry
	registry  *session.Registry
	signals   *events.SignalBus

	mu          sync.Mutex // serializes session start/stop against the limit
	initialized bool

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates an engine with the given configuration and the handler
// implementations available for the configuration to reference by name.
func New(cfg *config.EngineConfig, available ...handler.Handler) *Engine {
	byName := make(map[string]handler.Handler, len(available))
	for _, h := range available {
		byName[h.HandlerInfo().Name] = h
	}
	return &Engine{
		cfg:       cfg,
		available: byName,
		registry:  session.NewRegistry(),
		signals:   events.NewSignalBus(),
		done:      make(chan struct{}),
	}
}

// Registry returns the live session registry. Administrative surfaces read
// it directly.
func (e *Engine) Registry() *session.Registry { return e.registry }

// Signals returns the engine-wide signal bus.
func (e *Engine) Signals() *events.SignalBus { return e.signals }

// Config returns the engine configuration.
func (e *Engine) Config() *config.EngineConfig { return e.cfg }

// Initialize resolves the configured handler chain, validates each handler's
// configuration against its declared schema, and loads the handlers in
// configuration order. A failure leaves the engine unusable; Initialize is
// not retryable.
func (e *Engine) Initialize() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.initialized {
		return fmt.Errorf("engine already initialized")
	}

	for _, entry := range e.cfg.Handlers {
		h, ok := e.available[entry.Name]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownHandler, entry.Name)
		}
		info := h.HandlerInfo()

		verrs, err := handler.ValidateConfig(info, entry.Config)
		if err != nil {
			return err
		}
		if len(verrs) > 0 {
			msgs := make([]string, len(verrs))
			for i, ve := range verrs {
				msgs[i] = ve.Error()
			}
			return fmt.Errorf("handler %s configuration invalid: %s", entry.Name, strings.Join(msgs, "; "))
		}

		if err := h.Load(e.cfg, entry.Config); err != nil {
			return fmt.Errorf("load handler %s: %w", entry.Name, err)
		}
		e.loaded = append(e.loaded, loadedEntry{name: entry.Name, h: h, cfg: entry.Config})
		logger.Info("handler loaded", "handler", entry.Name)
	}

	e.initialized = true

	if e.cfg.Connection.TTL() > 0 {
		e.wg.Add(1)
		go e.expireLoop()
	}
	return nil
}

// StartSession builds a fully wired session and inserts it into the
// registry. The session only becomes visible to other goroutines once every
// handler context is created, the delegate is wired, and all handlers have
// started.
func (e *Engine) StartSession() (*session.Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.initialized {
		return nil, ErrNotInitialized
	}

	if limit := e.cfg.Connection.ConcurrentLimit; limit > 0 && e.registry.Len() >= limit {
		prometheus.RecordSessionRejected()
		logger.Warn("session rejected", "reason", "concurrency_limit", "limit", limit)
		return nil, ErrConcurrencyLimit
	}

	id := uuid.New().String()
	sctx := session.NewContext(id)
	delegate := session.NewDelegate(id, e.signals)
	delegate.SetTimestampSource(sctx.Timestamp)

	// records is captured by reference: envelopes submitted before the chain
	// is assembled find no consumer and are dropped with a log line.
	var records []*session.HandlerRecord
	submitter := types.SubmitterFunc(func(d *types.ChatData) error {
		return e.dispatch(id, records, d)
	})
	delegate.SetSubmitter(submitter)

	teardown := func() {
		for i := len(records) - 1; i >= 0; i-- {
			records[i].Handler.DestroyContext(records[i].Context)
		}
		delegate.ClearData()
	}

	for _, le := range e.loaded {
		hc, err := le.h.CreateContext(sctx, le.cfg)
		if err != nil {
			teardown()
			return nil, fmt.Errorf("create context for %s: %w", le.name, err)
		}
		if recv, ok := hc.(handler.SubmitterReceiver); ok {
			recv.AttachSubmitter(submitter)
		}

		if ch, ok := le.h.(handler.ClientHandler); ok && le.h.HandlerInfo().NeedsDelegate {
			if err := ch.SetupSessionDelegate(sctx, hc, delegate); err != nil {
				le.h.DestroyContext(hc)
				teardown()
				return nil, fmt.Errorf("wire delegate for %s: %w", le.name, err)
			}
		}

		records = append(records, &session.HandlerRecord{
			Name:    le.name,
			Handler: le.h,
			Context: hc,
			Detail:  le.h.HandlerDetail(sctx, hc),
		})
	}

	e.checkWiring(id, records)

	for _, r := range records {
		if err := r.Handler.StartContext(sctx, r.Context); err != nil {
			teardown()
			return nil, fmt.Errorf("start handler %s: %w", r.Name, err)
		}
	}

	sess := session.New(sctx, delegate, records)
	if !e.registry.Add(sess) {
		teardown()
		return nil, fmt.Errorf("session id collision: %s", id)
	}

	prometheus.RecordSessionStart()
	logger.Session("started", id, "handlers", len(records))
	return sess, nil
}

// StopSession removes a session from the registry and tears it down:
// SignalStop to the bus, handler contexts destroyed in reverse load order,
// then delegate queues drained.
func (e *Engine) StopSession(id, reason string) error {
	sess, ok := e.registry.Remove(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	sess.Delegate().EmitSignal(types.ChatSignal{Type: types.SignalStop})

	records := sess.Records()
	for i := len(records) - 1; i >= 0; i-- {
		records[i].Handler.DestroyContext(records[i].Context)
	}
	sess.Delegate().ClearData()

	prometheus.RecordSessionEnd()
	logger.Session("stopped", id, "reason", reason,
		"uptime_seconds", int64(sess.Uptime().Seconds()))
	return nil
}

// Shutdown stops the TTL sweeper and tears down every live session. The
// context bounds how long teardown may take.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.stopOnce.Do(func() { close(e.done) })
	e.wg.Wait()

	for _, sess := range e.registry.List() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := e.StopSession(sess.ID(), "shutdown"); err != nil && !errors.Is(err, ErrSessionNotFound) {
			return err
		}
	}
	e.signals.Clear()
	return nil
}

// dispatch routes one envelope to every handler consuming its data type.
// Handler failures are logged and the item is dropped for that handler;
// routing never crashes the session.
func (e *Engine) dispatch(sessionID string, records []*session.HandlerRecord, data *types.ChatData) error {
	if data == nil {
		return fmt.Errorf("nil chat data")
	}

	consumed := false
	for _, r := range records {
		if _, wants := r.Detail.Inputs[data.Type]; !wants {
			continue
		}
		consumed = true

		start := time.Now()
		err := r.Handler.Handle(r.Context, data, r.Detail.Outputs)
		prometheus.RecordHandleDuration(r.Name, time.Since(start).Seconds())
		if err != nil {
			logger.Warn("handler failed, dropping item",
				"session_id", sessionID, "handler", r.Name,
				"data_type", data.Type.String(), "error", err)
		}
	}
	if !consumed {
		logger.Debug("no consumer for data type, dropping item",
			"session_id", sessionID, "data_type", data.Type.String())
	}
	return nil
}

// checkWiring warns about declared inputs nothing in the chain produces.
// Client-attributed types are always producible through the session
// delegate, so only internal types count. Incomplete wiring is a warning,
// not an error: minimal deployments may run a boundary handler alone.
func (e *Engine) checkWiring(sessionID string, records []*session.HandlerRecord) {
	produced := map[types.ChatDataType]bool{
		types.DataMicAudio:    true,
		types.DataCameraVideo: true,
		types.DataHumanText:   true,
	}
	for _, r := range records {
		for t := range r.Detail.Outputs {
			produced[t] = true
		}
	}
	for _, r := range records {
		for t := range r.Detail.Inputs {
			if !produced[t] {
				logger.Warn("handler consumes a data type nothing produces",
					"session_id", sessionID, "handler", r.Name, "data_type", t.String())
			}
		}
	}
}

// expireLoop periodically tears down sessions whose uptime exceeded the
// connection TTL.
func (e *Engine) expireLoop() {
	defer e.wg.Done()
	ticker := time.NewTicker(ttlSweepInterval)
	defer ticker.Stop()

	ttl := e.cfg.Connection.TTL()
	for {
		select {
		case <-e.done:
			return
		case <-ticker.C:
			for _, sess := range e.registry.List() {
				if sess.Uptime() > ttl {
					if err := e.StopSession(sess.ID(), "ttl_expired"); err == nil {
						logger.Session("ttl_expired", sess.ID())
					}
				}
			}
		}
	}
}
