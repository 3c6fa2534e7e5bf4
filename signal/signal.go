// Package signal implements typed, introspectable values that live as leaf
// nodes of a component tree.
//
// A Signal[T] has one of five roles taken from component.Kind: internal
// input, internal output, physical input, physical output or parameter.
// Outputs fan out to the inputs they are connected to; every SetValue on an
// output is pushed synchronously, in connection order, to those inputs.
//
// Only physical inputs, physical outputs and parameters accept external
// writes through SetValueFromString. Internal inputs and outputs report
// StatusReadOnly and keep their value.
package signal

import (
	"fmt"
	"sync"

	"github.com/c360/simucore/component"
	"github.com/c360/simucore/errors"
)

// Base is the type-erased view of a signal used by the registry and the
// snapshot serializer.
type Base interface {
	ID() component.ID
	Handle() component.Handle
	Name() string
	Role() component.Kind
	Type() Type
	TypeName() string
	ValueString() string
	SetValueFromString(s string) Result
	ConnectedIDs() []component.ID
	Writable() bool
}

// Registrar indexes signals by identity. registry.Registry implements it.
type Registrar interface {
	Register(sig Base) error
}

// Signal is a typed value attached to a component tree
type Signal[T Value] struct {
	tree   *component.Tree
	handle component.Handle
	id     component.ID
	name   string
	role   component.Kind
	typ    Type

	mu        sync.RWMutex
	value     T
	last      T
	firstRead bool
	inputs    []*Signal[T]
}

var _ Base = (*Signal[int])(nil)

// NewInput creates an internal input fed by an output through ConnectTo
func NewInput[T Value](tree *component.Tree, reg Registrar, parent component.Handle, name string, initial T) (*Signal[T], error) {
	return newSignal(tree, reg, parent, name, component.KindInput, initial)
}

// NewOutput creates an internal output that drives connected inputs
func NewOutput[T Value](tree *component.Tree, reg Registrar, parent component.Handle, name string, initial T) (*Signal[T], error) {
	return newSignal(tree, reg, parent, name, component.KindOutput, initial)
}

// NewPhysicalInput creates an externally writable input
func NewPhysicalInput[T Value](tree *component.Tree, reg Registrar, parent component.Handle, name string, initial T) (*Signal[T], error) {
	return newSignal(tree, reg, parent, name, component.KindPhysicalInput, initial)
}

// NewPhysicalOutput creates an externally writable output
func NewPhysicalOutput[T Value](tree *component.Tree, reg Registrar, parent component.Handle, name string, initial T) (*Signal[T], error) {
	return newSignal(tree, reg, parent, name, component.KindPhysicalOutput, initial)
}

// NewParameter creates an externally tunable value
func NewParameter[T Value](tree *component.Tree, reg Registrar, parent component.Handle, name string, initial T) (*Signal[T], error) {
	return newSignal(tree, reg, parent, name, component.KindParameter, initial)
}

// newSignal attaches the signal node to parent and registers it. If
// registration fails the node is removed again. A nil registrar skips
// registration.
func newSignal[T Value](tree *component.Tree, reg Registrar, parent component.Handle,
	name string, role component.Kind, initial T) (*Signal[T], error) {

	if tree == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Signal", "New", "tree check")
	}

	h, err := tree.Attach(parent, name, role, nil)
	if err != nil {
		return nil, err
	}

	s := &Signal[T]{
		tree:      tree,
		handle:    h,
		id:        tree.ID(h),
		name:      name,
		role:      role,
		typ:       TypeOf[T](),
		value:     initial,
		last:      initial,
		firstRead: true,
	}

	if reg != nil {
		if err := reg.Register(s); err != nil {
			tree.Destroy(h)
			return nil, err
		}
	}
	return s, nil
}

// ID returns the signal's identity
func (s *Signal[T]) ID() component.ID { return s.id }

// Handle returns the signal's node in the tree
func (s *Signal[T]) Handle() component.Handle { return s.handle }

// Name returns the signal's own name
func (s *Signal[T]) Name() string { return s.name }

// FullName returns the signal's full path
func (s *Signal[T]) FullName() string { return s.tree.FullName(s.handle) }

// Role returns the signal's kind
func (s *Signal[T]) Role() component.Kind { return s.role }

// Type returns the value type tag
func (s *Signal[T]) Type() Type { return s.typ }

// TypeName returns the value type name
func (s *Signal[T]) TypeName() string { return s.typ.String() }

// Writable reports whether SetValueFromString may change the value
func (s *Signal[T]) Writable() bool { return s.role.IsExternallyWritable() }

// Value returns the current value
func (s *Signal[T]) Value() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// SetValue stores v, keeping the previous value for change detection, and
// pushes v to every connected input in connection order.
func (s *Signal[T]) SetValue(v T) {
	s.mu.Lock()
	s.last = s.value
	s.value = v
	targets := s.inputs
	s.mu.Unlock()

	for _, in := range targets {
		in.SetValue(v)
	}
}

// ValueHasChanged returns true on its first call, then whether the last
// SetValue changed the value.
func (s *Signal[T]) ValueHasChanged() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.firstRead {
		s.firstRead = false
		return true
	}
	return s.value != s.last
}

// ValueString formats the current value
func (s *Signal[T]) ValueString() string {
	return FormatValue(s.Value())
}

// SetValueFromString parses str and applies it. This is the only mutation
// path open to observers.
func (s *Signal[T]) SetValueFromString(str string) Result {
	if !s.Writable() {
		return Result{
			Status:  StatusReadOnly,
			Message: fmt.Sprintf("signal %d (%s) is %s and read-only", s.id, s.name, s.role),
		}
	}

	v, err := ParseValue[T](str)
	if err != nil {
		return Result{
			Status:  StatusUnsupportedType,
			Message: fmt.Sprintf("signal %d (%s): cannot use %q as %s: %v", s.id, s.name, str, s.typ, err),
		}
	}

	s.SetValue(v)
	return Result{
		Status:  StatusSuccess,
		Message: fmt.Sprintf("signal %d (%s) set to %s", s.id, s.name, FormatValue(v)),
	}
}

// ConnectTo binds s to input: s must be an output role and input an input
// role. The input receives s's current value immediately. Bindings cannot
// be removed; connecting the same pair twice is rejected.
func (s *Signal[T]) ConnectTo(input *Signal[T]) error {
	if input == nil {
		return errors.WrapInvalid(errors.ErrInvalidBinding, "Signal", "ConnectTo", "nil input")
	}
	if !s.role.IsOutputRole() {
		return errors.WrapInvalid(
			fmt.Errorf("%w: source %s is %s", errors.ErrInvalidBinding, s.name, s.role),
			"Signal", "ConnectTo", "source role check")
	}
	if !input.role.IsInputRole() {
		return errors.WrapInvalid(
			fmt.Errorf("%w: target %s is %s", errors.ErrInvalidBinding, input.name, input.role),
			"Signal", "ConnectTo", "target role check")
	}

	s.mu.Lock()
	for _, existing := range s.inputs {
		if existing == input {
			s.mu.Unlock()
			return errors.WrapInvalid(
				fmt.Errorf("%w: %s already drives %s", errors.ErrInvalidBinding, s.name, input.name),
				"Signal", "ConnectTo", "duplicate check")
		}
	}
	// Copy on append so SetValue can range over its snapshot unlocked.
	next := make([]*Signal[T], len(s.inputs), len(s.inputs)+1)
	copy(next, s.inputs)
	s.inputs = append(next, input)
	current := s.value
	s.mu.Unlock()

	input.SetValue(current)
	return nil
}

// ConnectedIDs returns the identities of connected inputs in connection order
func (s *Signal[T]) ConnectedIDs() []component.ID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.inputs) == 0 {
		return nil
	}
	ids := make([]component.ID, len(s.inputs))
	for i, in := range s.inputs {
		ids[i] = in.id
	}
	return ids
}
