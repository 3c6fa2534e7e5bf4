package engine

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/c360/simucore/component"
	"github.com/c360/simucore/config"
	"github.com/c360/simucore/errors"
	"github.com/c360/simucore/health"
	"github.com/c360/simucore/metric"
	"github.com/c360/simucore/pkg/buffer"
	"github.com/c360/simucore/registry"
	"github.com/c360/simucore/snapshot"
	"github.com/c360/simucore/websocket"
)

const (
	healthName = "engine"

	transportStopTimeout = 5 * time.Second
)

// Service status values reported through simucore_service_status
const (
	statusStopped = iota
	statusStarting
	statusRunning
	statusStopping
	statusFailed
)

// BindFunc builds part of the model: it attaches components and signals to
// the application's tree and connects outputs to inputs.
type BindFunc func(app *Application) error

// Deps are the collaborators of an Application. Every field is optional.
type Deps struct {
	Logger          *slog.Logger
	MetricsRegistry *metric.MetricsRegistry
	Health          *health.Monitor

	Ticker Ticker // defaults to NewTicker(cfg.TickPeriod())
	HAL    HAL    // defaults to a no-op

	// Transport replaces the one chosen from cfg.EnableWebserver
	Transport Transport

	// Behavior runs as the root component, before every other node
	Behavior component.Behavior
}

// Mutation is one queued external write
type Mutation struct {
	Client  websocket.ClientID
	Command Command
	ID      component.ID
	Value   string
}

// Application is one running simulation
type Application struct {
	name       string
	instanceID string
	cfg        *config.Config
	logger     *slog.Logger

	tree     *component.Tree
	registry *registry.Registry
	root     component.Handle

	hal       HAL
	ticker    Ticker
	transport Transport
	health    *health.Monitor
	metrics   *engineMetrics

	mutations buffer.Buffer[Mutation]
	// enqueueMu makes the capacity check and the writes of one message atomic
	// with respect to other connection goroutines
	enqueueMu sync.Mutex
	// limiter throttles inbound observer messages; nil when unlimited
	limiter *rate.Limiter

	// tickMu is held while the tree executes or is serialized
	tickMu sync.Mutex

	bindMu  sync.Mutex
	binders []BindFunc

	// initializing guards Init against re-entry; initialized is set only
	// once Init has completed
	initializing atomic.Bool
	initialized  atomic.Bool
	// halReady and bound record Init progress so a retry resumes after the
	// last completed step; guarded by tickMu
	halReady bool
	bound    int
	iterations  atomic.Uint64
}

// NewApplication creates the tree with a root named name, the registry, the
// mutation queue and the transport. A nil cfg uses config.Default().
func NewApplication(name string, cfg *config.Config, deps Deps) (*Application, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	instanceID := uuid.NewString()
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("app", name, "instance_id", instanceID)

	m, err := newEngineMetrics(deps.MetricsRegistry)
	if err != nil {
		return nil, errors.Wrap(err, "Application", "NewApplication", "metrics registration")
	}

	a := &Application{
		name:       name,
		instanceID: instanceID,
		cfg:        cfg,
		logger:     logger,
		tree:       component.NewTree(logger, component.WithMetrics(deps.MetricsRegistry)),
		registry:   registry.New(logger, registry.WithMetrics(deps.MetricsRegistry)),
		hal:        deps.HAL,
		ticker:     deps.Ticker,
		health:     deps.Health,
		metrics:    m,
	}
	if a.hal == nil {
		a.hal = nopHAL{}
	}
	if a.ticker == nil {
		a.ticker = NewTicker(cfg.TickPeriod())
	}
	if a.health == nil {
		a.health = health.NewMonitor(name)
	}
	if cfg.MessageRateLimit > 0 {
		a.limiter = rate.NewLimiter(rate.Limit(cfg.MessageRateLimit), cfg.MessageBurst)
	}

	a.root, err = a.tree.NewRoot(name, deps.Behavior)
	if err != nil {
		return nil, err
	}

	queueOpts := []buffer.Option[Mutation]{
		buffer.WithOverflowPolicy[Mutation](buffer.DropNewest),
		buffer.WithMetrics[Mutation](deps.MetricsRegistry, "mutations"),
		buffer.WithDropCallback[Mutation](func(mu Mutation) {
			a.logger.Warn("Mutation queue full, dropping update",
				"client_id", mu.Client, "id", mu.ID, "capacity", cfg.MutationQueueSize)
			a.metrics.recordRejected("queue_full")
		}),
	}
	a.mutations, err = buffer.NewCircularBuffer(cfg.MutationQueueSize, queueOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "Application", "NewApplication", "mutation queue")
	}

	a.transport = deps.Transport
	if a.transport == nil {
		a.transport, err = newTransport(cfg, logger, deps.MetricsRegistry)
		if err != nil {
			return nil, err
		}
	}
	a.transport.SetConnectionHandler(a.onConnection)
	a.transport.SetMessageHandler(a.onMessage)

	a.health.UpdateDegraded(healthName, "created")
	a.metrics.recordStatus(statusStopped)
	return a, nil
}

func newTransport(cfg *config.Config, logger *slog.Logger, registry *metric.MetricsRegistry) (Transport, error) {
	if !cfg.EnableWebserver {
		logger.Info("Webserver disabled, snapshots are not published")
		return NullTransport{}, nil
	}
	wsCfg := websocket.DefaultConfig()
	wsCfg.Port = cfg.WebsocketPort
	wsCfg.HandshakeTimeout = cfg.HandshakeTimeout.Std()
	wsCfg.ReadTimeout = cfg.ReadTimeout.Std()
	wsCfg.WriteTimeout = cfg.WriteTimeout.Std()
	return websocket.NewServer(wsCfg, websocket.Deps{Logger: logger, MetricsRegistry: registry})
}

// Name returns the application name, which is also the root component name
func (a *Application) Name() string { return a.name }

// InstanceID identifies this process in logs and health reports
func (a *Application) InstanceID() string { return a.instanceID }

// Tree returns the component tree
func (a *Application) Tree() *component.Tree { return a.tree }

// Registry returns the signal registry
func (a *Application) Registry() *registry.Registry { return a.registry }

// Root returns the application's root component
func (a *Application) Root() component.Handle { return a.root }

// Health returns the monitor the application reports to
func (a *Application) Health() *health.Monitor { return a.health }

// Addr returns the transport address, or nil when not listening
func (a *Application) Addr() net.Addr { return a.transport.Addr() }

// Iterations returns the number of completed ticks
func (a *Application) Iterations() uint64 { return a.iterations.Load() }

// OnBind registers a model builder. Builders run during Init in registration
// order.
func (a *Application) OnBind(fn BindFunc) {
	a.bindMu.Lock()
	a.binders = append(a.binders, fn)
	a.bindMu.Unlock()
}

// Init initializes the HAL, runs the bind hooks and initializes every
// component. It succeeds once. After a failure the application stays
// uninitialized and Init may be called again; it resumes at the step that
// failed.
func (a *Application) Init(ctx context.Context) error {
	if !a.initializing.CompareAndSwap(false, true) {
		return errors.WrapInvalid(errors.ErrAlreadyInitialized, "Application", "Init", "init in progress")
	}
	defer a.initializing.Store(false)
	if a.initialized.Load() {
		return errors.WrapInvalid(errors.ErrAlreadyInitialized, "Application", "Init", "lifecycle check")
	}
	a.metrics.recordStatus(statusStarting)

	a.tickMu.Lock()
	defer a.tickMu.Unlock()

	if !a.halReady {
		if err := a.hal.Init(ctx); err != nil {
			return a.failInit(errors.WrapFatal(err, "Application", "Init", "HAL init"))
		}
		a.halReady = true
	}

	a.bindMu.Lock()
	binders := append([]BindFunc(nil), a.binders...)
	a.bindMu.Unlock()
	for ; a.bound < len(binders); a.bound++ {
		if err := binders[a.bound](a); err != nil {
			return a.failInit(errors.WrapFatal(err, "Application", "Init", fmt.Sprintf("bind hook %d", a.bound)))
		}
	}

	if err := a.tree.InitAll(ctx); err != nil {
		return a.failInit(err)
	}
	a.initialized.Store(true)

	a.logger.Info("Application initialized",
		"components", a.tree.Len(), "signals", a.registry.Len(), "faults", a.tree.Faults())
	a.health.UpdateHealthy(healthName, "initialized")
	return nil
}

func (a *Application) failInit(err error) error {
	a.logger.Error("Application init failed", "error", err)
	a.health.UpdateUnhealthy(healthName, err.Error())
	a.metrics.recordStatus(statusFailed)
	a.metrics.recordError(errors.Classify(err).String())
	return err
}

// Tick runs one cycle: queued mutations, HAL update, component execution,
// snapshot broadcast, then the ticker wait. It returns ctx's error when
// cancelled during execution or the wait.
func (a *Application) Tick(ctx context.Context) error {
	if !a.initialized.Load() {
		return errors.WrapInvalid(errors.ErrNotStarted, "Application", "Tick", "lifecycle check")
	}
	start := time.Now()

	a.tickMu.Lock()
	a.applyMutations()
	if err := a.hal.Update(ctx); err != nil {
		a.logger.Warn("HAL update failed", "error", err)
		a.metrics.recordError(errors.Classify(err).String())
	}
	if err := a.tree.ExecuteAll(ctx); err != nil {
		a.tickMu.Unlock()
		return err
	}
	doc, snapErr := a.snapshotLocked()
	a.tickMu.Unlock()

	switch {
	case snapErr != nil:
		a.logger.Error("Snapshot failed", "error", snapErr)
		a.metrics.recordBroadcast("failed")
	case a.transport.SendToConnectedClients(doc):
		a.metrics.recordBroadcast("sent")
	default:
		a.metrics.recordBroadcast("no_clients")
	}

	a.iterations.Add(1)
	a.metrics.recordTick(time.Since(start).Seconds())

	return a.ticker.Wait(ctx)
}

// Run initializes the application if needed, starts the transport and ticks
// until ctx is cancelled or max_iterations ticks have completed. Cancellation
// is a clean stop and returns nil.
func (a *Application) Run(ctx context.Context) error {
	if !a.initialized.Load() {
		if err := a.Init(ctx); err != nil {
			return err
		}
	}

	if err := a.transport.Start(ctx); err != nil {
		a.health.UpdateUnhealthy(healthName, "transport failed to start")
		a.metrics.recordStatus(statusFailed)
		a.metrics.recordError(errors.Classify(err).String())
		return errors.WrapTransient(err, "Application", "Run", "start transport")
	}
	defer a.shutdown()

	a.health.UpdateHealthy(healthName, "running")
	a.metrics.recordStatus(statusRunning)
	a.logger.Info("Application running",
		"tick_period", a.cfg.TickPeriod().String(), "max_iterations", a.cfg.MaxIterations,
		"webserver", a.transport.IsRunning())

	for {
		if limit := a.cfg.MaxIterations; limit > 0 && a.iterations.Load() >= limit {
			a.logger.Info("Iteration budget reached", "iterations", a.iterations.Load())
			return nil
		}
		if err := a.Tick(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			a.metrics.recordError(errors.Classify(err).String())
			return err
		}
	}
}

func (a *Application) shutdown() {
	a.metrics.recordStatus(statusStopping)
	if err := a.transport.Stop(transportStopTimeout); err != nil {
		a.logger.Warn("Transport stop incomplete", "error", err)
	}
	if dropped := a.mutations.Size(); dropped > 0 {
		a.logger.Info("Discarding queued mutations", "count", dropped)
	}
	a.health.UpdateDegraded(healthName, "stopped")
	a.metrics.recordStatus(statusStopped)
	a.logger.Info("Application stopped", "iterations", a.iterations.Load())
}

// Snapshot serializes the current tree
func (a *Application) Snapshot() ([]byte, error) {
	a.tickMu.Lock()
	defer a.tickMu.Unlock()
	return a.snapshotLocked()
}

func (a *Application) snapshotLocked() ([]byte, error) {
	doc, err := snapshot.Marshal(a.tree, a.registry, a.root)
	if err != nil {
		return nil, err
	}
	a.metrics.recordSnapshot(len(doc))
	return doc, nil
}

// Pending returns the number of queued mutations
func (a *Application) Pending() int { return a.mutations.Size() }

// applyMutations drains the queue on the tick goroutine; caller holds tickMu.
func (a *Application) applyMutations() {
	for _, mu := range a.mutations.Drain() {
		if sig, ok := a.registry.Find(mu.ID); ok && sig.Writable() && !mu.Command.accepts(sig.Role()) {
			a.logger.Warn("Mutation does not match signal role",
				"client_id", mu.Client, "command", string(mu.Command), "id", mu.ID, "role", sig.Role().String())
			a.metrics.recordMutation("role_mismatch")
			continue
		}
		a.registry.ChangeValue(mu.ID, mu.Value)
	}
}

func (a *Application) onConnection(id websocket.ClientID, connected bool) {
	if !connected {
		a.logger.Debug("Observer left", "client_id", id)
		return
	}
	doc, err := a.Snapshot()
	if err != nil {
		a.logger.Error("Initial snapshot failed", "client_id", id, "error", err)
		return
	}
	if !a.transport.SendToClient(id, doc) {
		a.logger.Warn("Initial snapshot not delivered", "client_id", id)
	}
}

func (a *Application) onMessage(id websocket.ClientID, data []byte) {
	if a.limiter != nil && !a.limiter.Allow() {
		a.logger.Warn("Inbound message rate limited", "client_id", id)
		a.metrics.recordRejected("rate_limited")
		return
	}
	msg, err := ParseMessage(data)
	if err != nil {
		a.logger.Warn("Inbound message rejected", "client_id", id, "error", err)
		a.metrics.recordRejected("invalid")
		return
	}
	a.enqueue(id, msg)
}

// enqueue queues every update of msg or none of them. The tick goroutine only
// shrinks the queue, so free space seen under enqueueMu cannot disappear.
func (a *Application) enqueue(id websocket.ClientID, msg Message) {
	a.enqueueMu.Lock()
	defer a.enqueueMu.Unlock()

	free := a.mutations.Capacity() - a.mutations.Size()
	if len(msg.Parameters) > free {
		a.logger.Warn("Mutation queue full, dropping message",
			"client_id", id, "updates", len(msg.Parameters), "free", free)
		a.metrics.recordRejected("queue_full")
		return
	}
	for _, u := range msg.Parameters {
		m := Mutation{Client: id, Command: msg.Command, ID: u.ID, Value: u.Value}
		if err := a.mutations.Write(m); err != nil {
			a.logger.Warn("Mutation not queued", "client_id", id, "error", err)
			return
		}
	}
}
