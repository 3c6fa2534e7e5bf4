package component

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/c360/simucore/errors"
	"github.com/c360/simucore/metric"
)

// Handle addresses a node inside its Tree. Handles are never reused, so a
// handle to a destroyed node stays invalid.
type Handle int32

// NoHandle is the parent of a root node.
const NoHandle Handle = -1

// State is the lifecycle state of a single node
type State uint8

const (
	// StateCreated nodes have not run Init yet
	StateCreated State = iota
	// StateInitialized nodes have run Init and take part in ExecuteAll
	StateInitialized
	// StateDestroyed nodes were removed with Destroy
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateInitialized:
		return "initialized"
	case StateDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

type node struct {
	name      string
	path      string
	kind      Kind
	id        ID
	parent    Handle
	children  []Handle
	behavior  Behavior
	state     State
	lastFault error
}

// Tree is an arena-backed component tree
type Tree struct {
	mu          sync.RWMutex
	nodes       []node
	roots       []Handle
	byID        map[ID]Handle
	live        int
	initialized bool

	faults  atomic.Int64
	logger  *slog.Logger
	metrics *metric.Metrics
}

// Option configures a Tree
type Option func(*Tree)

// WithMetrics counts behavior faults in the registry's core metrics
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(t *Tree) {
		if registry != nil {
			t.metrics = registry.CoreMetrics()
		}
	}
}

// NewTree creates an empty tree. A nil logger falls back to slog.Default().
func NewTree(logger *slog.Logger, opts ...Option) *Tree {
	if logger == nil {
		logger = slog.Default()
	}
	t := &Tree{
		byID:   make(map[ID]Handle),
		logger: logger.With("component", "tree"),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// NewRoot creates a parentless component node whose path is its name
func (t *Tree) NewRoot(name string, b Behavior) (Handle, error) {
	return t.add(NoHandle, name, KindComponent, b)
}

// Attach creates a child of parent. The link is permanent.
func (t *Tree) Attach(parent Handle, name string, kind Kind, b Behavior) (Handle, error) {
	if parent == NoHandle {
		return NoHandle, errors.WrapInvalid(errors.ErrUnknownComponent, "Tree", "Attach", "parent lookup")
	}
	return t.add(parent, name, kind, b)
}

func (t *Tree) add(parent Handle, name string, kind Kind, b Behavior) (Handle, error) {
	if name == "" {
		return NoHandle, errors.WrapInvalid(errors.ErrInvalidData, "Tree", "Attach", "empty name")
	}
	if int(kind) >= len(kindNames) {
		return NoHandle, errors.WrapInvalid(
			fmt.Errorf("%w: kind %d", errors.ErrInvalidData, kind), "Tree", "Attach", "kind check")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	path := name
	if parent != NoHandle {
		p, ok := t.getLocked(parent)
		if !ok {
			return NoHandle, errors.WrapInvalid(
				fmt.Errorf("%w: handle %d", errors.ErrUnknownComponent, parent), "Tree", "Attach", "parent lookup")
		}
		path = p.path + PathSeparator + name
	}

	id := IdentityOf(path)
	if other, exists := t.byID[id]; exists {
		return NoHandle, errors.WrapInvalid(
			fmt.Errorf("%w: %q and %q share id %d", errors.ErrIdentityCollision, path, t.nodes[other].path, id),
			"Tree", "Attach", "identity check")
	}

	h := Handle(len(t.nodes))
	t.nodes = append(t.nodes, node{
		name:     name,
		path:     path,
		kind:     kind,
		id:       id,
		parent:   parent,
		behavior: b,
	})
	t.byID[id] = h
	t.live++

	if parent == NoHandle {
		t.roots = append(t.roots, h)
	} else {
		t.nodes[parent].children = append(t.nodes[parent].children, h)
	}
	return h, nil
}

func (t *Tree) getLocked(h Handle) (*node, bool) {
	if h < 0 || int(h) >= len(t.nodes) {
		return nil, false
	}
	n := &t.nodes[h]
	if n.state == StateDestroyed {
		return nil, false
	}
	return n, true
}

// Valid reports whether h addresses a live node
func (t *Tree) Valid(h Handle) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.getLocked(h)
	return ok
}

// Name returns the node's own name, or "" for an invalid handle
func (t *Tree) Name(h Handle) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if n, ok := t.getLocked(h); ok {
		return n.name
	}
	return ""
}

// FullName returns the ancestor names joined with PathSeparator
func (t *Tree) FullName(h Handle) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if n, ok := t.getLocked(h); ok {
		return n.path
	}
	return ""
}

// Kind returns the node's role
func (t *Tree) Kind(h Handle) Kind {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if n, ok := t.getLocked(h); ok {
		return n.kind
	}
	return KindComponent
}

// ID returns the node's identity, or NoID for an invalid handle
func (t *Tree) ID(h Handle) ID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if n, ok := t.getLocked(h); ok {
		return n.id
	}
	return NoID
}

// State returns the node's lifecycle state
func (t *Tree) State(h Handle) State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if h < 0 || int(h) >= len(t.nodes) {
		return StateDestroyed
	}
	return t.nodes[h].state
}

// Parent returns the parent handle; false for roots and invalid handles
func (t *Tree) Parent(h Handle) (Handle, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n, ok := t.getLocked(h)
	if !ok || n.parent == NoHandle {
		return NoHandle, false
	}
	return n.parent, true
}

// Children returns a copy of the node's children in attachment order
func (t *Tree) Children(h Handle) []Handle {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n, ok := t.getLocked(h)
	if !ok || len(n.children) == 0 {
		return nil
	}
	out := make([]Handle, len(n.children))
	copy(out, n.children)
	return out
}

// Roots returns the root handles in creation order
func (t *Tree) Roots() []Handle {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Handle, len(t.roots))
	copy(out, t.roots)
	return out
}

// Lookup finds a live node by identity
func (t *Tree) Lookup(id ID) (Handle, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	h, ok := t.byID[id]
	return h, ok
}

// Len returns the number of live nodes
func (t *Tree) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.live
}

// NodeInfo is a read-only copy of a node's attributes
type NodeInfo struct {
	Handle Handle
	Name   string
	Path   string
	Kind   Kind
	ID     ID
	Parent Handle
	Depth  int
}

// Info returns a copy of the node's attributes
func (t *Tree) Info(h Handle) (NodeInfo, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n, ok := t.getLocked(h)
	if !ok {
		return NodeInfo{}, false
	}
	return n.info(h, 0), true
}

func (n *node) info(h Handle, depth int) NodeInfo {
	return NodeInfo{
		Handle: h,
		Name:   n.name,
		Path:   n.path,
		Kind:   n.kind,
		ID:     n.id,
		Parent: n.parent,
		Depth:  depth,
	}
}

// Walk visits root and its descendants in pre-order; Depth is relative to
// root. Returning false from fn skips that node's children. The tree is
// read-locked for the duration, so fn must not call back into the tree.
func (t *Tree) Walk(root Handle, fn func(NodeInfo) bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if _, ok := t.getLocked(root); !ok {
		return
	}
	t.walkLocked(root, 0, fn)
}

func (t *Tree) walkLocked(h Handle, depth int, fn func(NodeInfo) bool) {
	n := &t.nodes[h]
	if !fn(n.info(h, depth)) {
		return
	}
	for _, c := range n.children {
		t.walkLocked(c, depth+1, fn)
	}
}

// Destroy removes h and its subtree and returns the released identities in
// pre-order. Destroying an invalid handle returns nil.
func (t *Tree) Destroy(h Handle) []ID {
	t.mu.Lock()
	defer t.mu.Unlock()

	n, ok := t.getLocked(h)
	if !ok {
		return nil
	}

	if n.parent == NoHandle {
		t.roots = removeHandle(t.roots, h)
	} else {
		p := &t.nodes[n.parent]
		p.children = removeHandle(p.children, h)
	}

	var released []ID
	t.walkLocked(h, 0, func(info NodeInfo) bool {
		released = append(released, info.ID)
		return true
	})
	for _, id := range released {
		d := t.byID[id]
		delete(t.byID, id)
		dn := &t.nodes[d]
		dn.state = StateDestroyed
		dn.behavior = nil
		dn.children = nil
		t.live--
	}
	return released
}

func removeHandle(hs []Handle, h Handle) []Handle {
	for i, v := range hs {
		if v == h {
			return append(hs[:i], hs[i+1:]...)
		}
	}
	return hs
}

// Describe renders the subtree as an indented outline, for logs and the CLI
func (t *Tree) Describe(root Handle) string {
	var b strings.Builder
	t.Walk(root, func(n NodeInfo) bool {
		fmt.Fprintf(&b, "%s%s [%s] id=%d\n", strings.Repeat("  ", n.Depth), n.Name, n.Kind, n.ID)
		return true
	})
	return b.String()
}
