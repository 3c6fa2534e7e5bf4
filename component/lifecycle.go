package component

import (
	"context"
	"fmt"

	"github.com/c360/simucore/errors"
)

// Behavior is the user logic attached to a node
type Behavior interface {
	// Init runs once, before the node's first Execute.
	Init(ctx context.Context) error
	// Execute runs every tick.
	Execute(ctx context.Context) error
}

// Funcs adapts a pair of functions to Behavior. Nil functions are no-ops.
type Funcs struct {
	OnInit    func(ctx context.Context) error
	OnExecute func(ctx context.Context) error
}

// Init implements Behavior
func (f Funcs) Init(ctx context.Context) error {
	if f.OnInit == nil {
		return nil
	}
	return f.OnInit(ctx)
}

// Execute implements Behavior
func (f Funcs) Execute(ctx context.Context) error {
	if f.OnExecute == nil {
		return nil
	}
	return f.OnExecute(ctx)
}

// ExecuteFunc is a Behavior with only per-tick logic
type ExecuteFunc func(ctx context.Context) error

// Init implements Behavior
func (ExecuteFunc) Init(context.Context) error { return nil }

// Execute implements Behavior
func (f ExecuteFunc) Execute(ctx context.Context) error { return f(ctx) }

const (
	phaseInit    = "init"
	phaseExecute = "execute"
)

// InitAll runs Init on every node, pre-order across roots in creation order.
// It may be called once; later calls return ErrAlreadyInitialized. Behavior
// faults are absorbed, only ctx cancellation is returned, and a cancelled
// pass may be run again to initialize the remaining nodes.
func (t *Tree) InitAll(ctx context.Context) error {
	t.mu.Lock()
	if t.initialized {
		t.mu.Unlock()
		return errors.WrapInvalid(errors.ErrAlreadyInitialized, "Tree", "InitAll", "lifecycle check")
	}
	t.initialized = true
	t.mu.Unlock()

	for _, h := range t.preorder() {
		if err := ctx.Err(); err != nil {
			t.mu.Lock()
			t.initialized = false
			t.mu.Unlock()
			return err
		}
		t.initNode(ctx, h)
	}
	return nil
}

// Initialized reports whether InitAll has been called
func (t *Tree) Initialized() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.initialized
}

// ExecuteAll runs Execute on every node in pre-order. Nodes attached after
// InitAll are initialized right before their first Execute.
func (t *Tree) ExecuteAll(ctx context.Context) error {
	for _, h := range t.preorder() {
		if err := ctx.Err(); err != nil {
			return err
		}
		t.initNode(ctx, h)

		t.mu.RLock()
		n, ok := t.getLocked(h)
		var b Behavior
		if ok {
			b = n.behavior
		}
		t.mu.RUnlock()

		if b != nil {
			t.invoke(ctx, h, phaseExecute, b.Execute)
		}
	}
	return nil
}

// Faults returns the number of behavior errors and panics absorbed so far
func (t *Tree) Faults() int64 {
	return t.faults.Load()
}

// LastFault returns the most recent fault recorded on h
func (t *Tree) LastFault(h Handle) error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if n, ok := t.getLocked(h); ok {
		return n.lastFault
	}
	return nil
}

func (t *Tree) preorder() []Handle {
	t.mu.RLock()
	defer t.mu.RUnlock()
	order := make([]Handle, 0, t.live)
	for _, r := range t.roots {
		t.walkLocked(r, 0, func(n NodeInfo) bool {
			order = append(order, n.Handle)
			return true
		})
	}
	return order
}

func (t *Tree) initNode(ctx context.Context, h Handle) {
	t.mu.Lock()
	n, ok := t.getLocked(h)
	if !ok || n.state != StateCreated {
		t.mu.Unlock()
		return
	}
	n.state = StateInitialized
	b := n.behavior
	t.mu.Unlock()

	if b != nil {
		t.invoke(ctx, h, phaseInit, b.Init)
	}
}

func (t *Tree) invoke(ctx context.Context, h Handle, phase string, fn func(context.Context) error) {
	defer func() {
		if r := recover(); r != nil {
			t.recordFault(h, phase, fmt.Errorf("panic: %v", r))
		}
	}()
	if err := fn(ctx); err != nil {
		t.recordFault(h, phase, err)
	}
}

func (t *Tree) recordFault(h Handle, phase string, err error) {
	t.faults.Add(1)

	t.mu.Lock()
	path := ""
	if n, ok := t.getLocked(h); ok {
		n.lastFault = err
		path = n.path
	}
	t.mu.Unlock()

	t.logger.Warn("Behavior fault absorbed", "phase", phase, "node", path, "error", err)
	if t.metrics != nil {
		t.metrics.BehaviorFaults.WithLabelValues(phase).Inc()
	}
}
