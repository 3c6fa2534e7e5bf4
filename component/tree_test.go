package component

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	simerrors "github.com/c360/simucore/errors"
	"github.com/c360/simucore/metric"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recorder is a Behavior that appends "<name>:<phase>" to a shared log.
type recorder struct {
	name string
	log  *[]string
	mu   *sync.Mutex
	err  error
	boom bool
}

func (r recorder) note(phase string) {
	r.mu.Lock()
	*r.log = append(*r.log, r.name+":"+phase)
	r.mu.Unlock()
}

func (r recorder) Init(context.Context) error {
	r.note("init")
	return nil
}

func (r recorder) Execute(context.Context) error {
	r.note("exec")
	if r.boom {
		panic("exploded")
	}
	return r.err
}

func TestIdentityOf(t *testing.T) {
	tests := []struct {
		path string
		want ID
	}{
		{"a", 3826002220},
		{"plant", 3150636434},
		{"plant->pump", 740070959},
		{"plant->pump->speed", 2234464867},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IdentityOf(tt.path), tt.path)
	}
}

func TestTree_IdentityIsDeterministic(t *testing.T) {
	build := func() []ID {
		tree := NewTree(quietLogger())
		root, err := tree.NewRoot("plant", nil)
		require.NoError(t, err)
		pump, err := tree.Attach(root, "pump", KindComponent, nil)
		require.NoError(t, err)
		speed, err := tree.Attach(pump, "speed", KindOutput, nil)
		require.NoError(t, err)
		return []ID{tree.ID(root), tree.ID(pump), tree.ID(speed)}
	}

	first, second := build(), build()
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("identities differ between builds (-first +second):\n%s", diff)
	}
	assert.Equal(t, IdentityOf("plant->pump->speed"), first[2])
}

func TestTree_FullNameAndAccessors(t *testing.T) {
	tree := NewTree(quietLogger())
	root, err := tree.NewRoot("plant", nil)
	require.NoError(t, err)
	pump, err := tree.Attach(root, "pump", KindComponent, nil)
	require.NoError(t, err)
	speed, err := tree.Attach(pump, "speed", KindParameter, nil)
	require.NoError(t, err)

	assert.Equal(t, "plant", tree.FullName(root))
	assert.Equal(t, "plant->pump->speed", tree.FullName(speed))
	assert.Equal(t, "speed", tree.Name(speed))
	assert.Equal(t, KindParameter, tree.Kind(speed))

	parent, ok := tree.Parent(speed)
	require.True(t, ok)
	assert.Equal(t, pump, parent)

	_, ok = tree.Parent(root)
	assert.False(t, ok)

	assert.Equal(t, []Handle{pump}, tree.Children(root))
	assert.Equal(t, []Handle{root}, tree.Roots())
	assert.Equal(t, 3, tree.Len())

	h, ok := tree.Lookup(tree.ID(speed))
	require.True(t, ok)
	assert.Equal(t, speed, h)

	info, ok := tree.Info(speed)
	require.True(t, ok)
	assert.Equal(t, "plant->pump->speed", info.Path)
	assert.Equal(t, pump, info.Parent)
}

func TestTree_AttachErrors(t *testing.T) {
	tree := NewTree(quietLogger())
	root, err := tree.NewRoot("plant", nil)
	require.NoError(t, err)
	_, err = tree.Attach(root, "pump", KindComponent, nil)
	require.NoError(t, err)

	tests := []struct {
		name   string
		parent Handle
		child  string
		kind   Kind
		target error
	}{
		{"duplicate sibling", root, "pump", KindComponent, simerrors.ErrIdentityCollision},
		{"empty name", root, "", KindComponent, simerrors.ErrInvalidData},
		{"unknown parent", Handle(42), "x", KindComponent, simerrors.ErrUnknownComponent},
		{"no parent", NoHandle, "x", KindComponent, simerrors.ErrUnknownComponent},
		{"bad kind", root, "x", Kind(99), simerrors.ErrInvalidData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tree.Attach(tt.parent, tt.child, tt.kind, nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.target)
			assert.True(t, simerrors.IsInvalid(err))
		})
	}

	_, err = tree.NewRoot("plant", nil)
	assert.ErrorIs(t, err, simerrors.ErrIdentityCollision)
	assert.Equal(t, 2, tree.Len())
}

func TestTree_SameNameUnderDifferentParents(t *testing.T) {
	tree := NewTree(quietLogger())
	root, _ := tree.NewRoot("plant", nil)
	a, _ := tree.Attach(root, "a", KindComponent, nil)
	b, _ := tree.Attach(root, "b", KindComponent, nil)

	x1, err := tree.Attach(a, "value", KindOutput, nil)
	require.NoError(t, err)
	x2, err := tree.Attach(b, "value", KindOutput, nil)
	require.NoError(t, err)
	assert.NotEqual(t, tree.ID(x1), tree.ID(x2))
}

func TestTree_LifecycleOrder(t *testing.T) {
	var (
		log []string
		mu  sync.Mutex
	)
	rec := func(name string) recorder { return recorder{name: name, log: &log, mu: &mu} }

	tree := NewTree(quietLogger())
	root, _ := tree.NewRoot("root", rec("root"))
	a, _ := tree.Attach(root, "a", KindComponent, rec("a"))
	_, _ = tree.Attach(a, "a1", KindComponent, rec("a1"))
	_, _ = tree.Attach(root, "b", KindComponent, rec("b"))

	ctx := context.Background()
	require.NoError(t, tree.InitAll(ctx))
	require.NoError(t, tree.ExecuteAll(ctx))

	want := []string{
		"root:init", "a:init", "a1:init", "b:init",
		"root:exec", "a:exec", "a1:exec", "b:exec",
	}
	assert.Equal(t, want, log)
	assert.Equal(t, StateInitialized, tree.State(root))
}

func TestTree_InitAllOnlyOnce(t *testing.T) {
	var (
		log []string
		mu  sync.Mutex
	)
	tree := NewTree(quietLogger())
	_, _ = tree.NewRoot("root", recorder{name: "root", log: &log, mu: &mu})

	require.NoError(t, tree.InitAll(context.Background()))
	err := tree.InitAll(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, simerrors.ErrAlreadyInitialized)
	assert.Equal(t, []string{"root:init"}, log)
	assert.True(t, tree.Initialized())
}

func TestTree_LateAttachInitializedOnce(t *testing.T) {
	var (
		log []string
		mu  sync.Mutex
	)
	tree := NewTree(quietLogger())
	root, _ := tree.NewRoot("root", nil)
	require.NoError(t, tree.InitAll(context.Background()))

	_, err := tree.Attach(root, "late", KindComponent, recorder{name: "late", log: &log, mu: &mu})
	require.NoError(t, err)

	require.NoError(t, tree.ExecuteAll(context.Background()))
	require.NoError(t, tree.ExecuteAll(context.Background()))
	assert.Equal(t, []string{"late:init", "late:exec", "late:exec"}, log)
}

func TestTree_FaultsAreAbsorbed(t *testing.T) {
	var (
		log []string
		mu  sync.Mutex
	)
	reg := metric.NewMetricsRegistry()
	tree := NewTree(quietLogger(), WithMetrics(reg))

	failure := errors.New("sensor offline")
	root, _ := tree.NewRoot("root", recorder{name: "root", log: &log, mu: &mu, err: failure})
	bad, _ := tree.Attach(root, "bad", KindComponent, recorder{name: "bad", log: &log, mu: &mu, boom: true})
	_, _ = tree.Attach(bad, "child", KindComponent, recorder{name: "child", log: &log, mu: &mu})
	_, _ = tree.Attach(root, "sibling", KindComponent, recorder{name: "sibling", log: &log, mu: &mu})

	ctx := context.Background()
	require.NoError(t, tree.InitAll(ctx))
	require.NoError(t, tree.ExecuteAll(ctx))

	assert.Contains(t, log, "child:exec")
	assert.Contains(t, log, "sibling:exec")
	assert.Equal(t, int64(2), tree.Faults())
	assert.ErrorIs(t, tree.LastFault(root), failure)
	require.Error(t, tree.LastFault(bad))
	assert.Contains(t, tree.LastFault(bad).Error(), "panic: exploded")

	families, err := reg.PrometheusRegistry().Gather()
	require.NoError(t, err)
	var faults float64
	for _, mf := range families {
		if mf.GetName() == "simucore_component_behavior_faults_total" {
			for _, m := range mf.GetMetric() {
				faults += m.GetCounter().GetValue()
			}
		}
	}
	assert.Equal(t, 2.0, faults)
}

func TestTree_ExecuteAllStopsOnCancel(t *testing.T) {
	tree := NewTree(quietLogger())
	_, _ = tree.NewRoot("root", nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, tree.ExecuteAll(ctx), context.Canceled)
	assert.ErrorIs(t, tree.InitAll(ctx), context.Canceled)
}

func TestTree_InitAllResumesAfterCancel(t *testing.T) {
	var (
		log []string
		mu  sync.Mutex
	)
	tree := NewTree(quietLogger())
	root, _ := tree.NewRoot("root", recorder{name: "root", log: &log, mu: &mu})
	_, _ = tree.Attach(root, "child", KindComponent, recorder{name: "child", log: &log, mu: &mu})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, tree.InitAll(ctx), context.Canceled)
	assert.False(t, tree.Initialized())

	require.NoError(t, tree.InitAll(context.Background()))
	assert.True(t, tree.Initialized())
	assert.Equal(t, []string{"root:init", "child:init"}, log)
}

func TestTree_Destroy(t *testing.T) {
	tree := NewTree(quietLogger())
	root, _ := tree.NewRoot("plant", nil)
	pump, _ := tree.Attach(root, "pump", KindComponent, nil)
	speed, _ := tree.Attach(pump, "speed", KindOutput, nil)
	valve, _ := tree.Attach(root, "valve", KindComponent, nil)

	released := tree.Destroy(pump)
	assert.Equal(t, []ID{IdentityOf("plant->pump"), IdentityOf("plant->pump->speed")}, released)

	assert.False(t, tree.Valid(pump))
	assert.False(t, tree.Valid(speed))
	assert.Equal(t, StateDestroyed, tree.State(speed))
	assert.Equal(t, []Handle{valve}, tree.Children(root))
	assert.Equal(t, 2, tree.Len())

	_, ok := tree.Lookup(IdentityOf("plant->pump->speed"))
	assert.False(t, ok)
	assert.Nil(t, tree.Destroy(pump))

	// The name is free again after destruction
	_, err := tree.Attach(root, "pump", KindComponent, nil)
	assert.NoError(t, err)
}

func TestTree_Walk(t *testing.T) {
	tree := NewTree(quietLogger())
	root, _ := tree.NewRoot("plant", nil)
	pump, _ := tree.Attach(root, "pump", KindComponent, nil)
	_, _ = tree.Attach(pump, "speed", KindOutput, nil)
	_, _ = tree.Attach(root, "valve", KindComponent, nil)

	var visited []string
	tree.Walk(root, func(n NodeInfo) bool {
		visited = append(visited, n.Name)
		return n.Name != "pump"
	})
	assert.Equal(t, []string{"plant", "pump", "valve"}, visited)

	want := "plant [Component] id=3150636434\n" +
		"  pump [Component] id=740070959\n" +
		"    speed [Output] id=2234464867\n" +
		"  valve [Component] id=" + IdentityOf("plant->valve").String() + "\n"
	assert.Equal(t, want, tree.Describe(root))
}

func TestKind(t *testing.T) {
	assert.Equal(t, "PhysicalInputs", KindPhysicalInput.Plural())
	assert.Equal(t, "Components", KindComponent.Plural())
	assert.Equal(t, "Unknown", Kind(77).String())
	assert.False(t, KindComponent.IsSignal())
	assert.True(t, KindParameter.IsExternallyWritable())
	assert.False(t, KindOutput.IsExternallyWritable())
	assert.True(t, KindPhysicalOutput.IsOutputRole())
	assert.True(t, KindPhysicalInput.IsInputRole())
}
