package registry

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/simucore/component"
	"github.com/c360/simucore/errors"
	"github.com/c360/simucore/metric"
	"github.com/c360/simucore/signal"
)

func newTree(t *testing.T) (*component.Tree, component.Handle) {
	t.Helper()
	tree := component.NewTree(slog.New(slog.NewTextHandler(io.Discard, nil)))
	root, err := tree.NewRoot("plant", nil)
	require.NoError(t, err)
	return tree, root
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRegistry_RegisterAndFind(t *testing.T) {
	tree, root := newTree(t)
	reg := New(quiet())

	sig, err := signal.NewParameter(tree, reg, root, "gain", 1.0)
	require.NoError(t, err)

	found, ok := reg.Find(sig.ID())
	require.True(t, ok)
	assert.Equal(t, sig.ID(), found.ID())
	assert.Equal(t, 1, reg.Len())

	_, ok = reg.Find(component.ID(12345))
	assert.False(t, ok)
}

func TestRegistry_CollisionRejected(t *testing.T) {
	treeA, rootA := newTree(t)
	treeB, rootB := newTree(t)
	reg := New(quiet())

	first, err := signal.NewParameter(treeA, reg, rootA, "gain", 1)
	require.NoError(t, err)

	// Same path in a second tree hashes to the same identity
	_, err = signal.NewParameter(treeB, reg, rootB, "gain", 2)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrIdentityCollision)

	found, _ := reg.Find(first.ID())
	assert.Equal(t, "1", found.ValueString(), "original registration is kept")

	// The rejected signal's node was rolled back
	_, ok := treeB.Lookup(first.ID())
	assert.False(t, ok)

	assert.Error(t, reg.Register(nil))
}

func TestRegistry_ChangeValue(t *testing.T) {
	tree, root := newTree(t)
	metrics := metric.NewMetricsRegistry()
	reg := New(quiet(), WithMetrics(metrics))

	param, _ := signal.NewParameter(tree, reg, root, "gain", 1)
	out, _ := signal.NewOutput(tree, reg, root, "flow", 1)

	res, ok := reg.ChangeValue(param.ID(), "42")
	require.True(t, ok)
	assert.True(t, res.OK())
	assert.Equal(t, 42, param.Value())

	res, ok = reg.ChangeValue(out.ID(), "42")
	require.True(t, ok)
	assert.Equal(t, signal.StatusReadOnly, res.Status)
	assert.Equal(t, 1, out.Value())

	res, ok = reg.ChangeValue(param.ID(), "lots")
	require.True(t, ok)
	assert.Equal(t, signal.StatusUnsupportedType, res.Status)

	res, ok = reg.ChangeValue(component.ID(7), "1")
	assert.False(t, ok)
	assert.Equal(t, signal.Result{}, res)

	families, err := metrics.PrometheusRegistry().Gather()
	require.NoError(t, err)
	outcomes := map[string]float64{}
	var signals float64
	for _, mf := range families {
		switch mf.GetName() {
		case "simucore_engine_mutations_total":
			for _, m := range mf.GetMetric() {
				outcomes[m.GetLabel()[0].GetValue()] = m.GetCounter().GetValue()
			}
		case "simucore_registry_signals":
			signals = mf.GetMetric()[0].GetGauge().GetValue()
		}
	}
	assert.Equal(t, map[string]float64{
		"success":          1,
		"read_only":        1,
		"unsupported_type": 1,
		"unknown_id":       1,
	}, outcomes)
	assert.Equal(t, 2.0, signals)
}

func TestRegistry_UnregisterAfterDestroy(t *testing.T) {
	tree, root := newTree(t)
	reg := New(quiet())

	pump, err := tree.Attach(root, "pump", component.KindComponent, nil)
	require.NoError(t, err)
	speed, _ := signal.NewOutput(tree, reg, pump, "speed", 0)
	_, _ = signal.NewInput(tree, reg, pump, "cmd", 0)
	keep, _ := signal.NewParameter(tree, reg, root, "gain", 0)

	removed := reg.UnregisterAll(tree.Destroy(pump))
	assert.Equal(t, 2, removed)
	assert.Equal(t, []component.ID{keep.ID()}, reg.IDs())

	_, ok := reg.ChangeValue(speed.ID(), "1")
	assert.False(t, ok)

	assert.True(t, reg.Unregister(keep.ID()))
	assert.False(t, reg.Unregister(keep.ID()))
	assert.Zero(t, reg.Len())
}

func TestRegistry_IDsSorted(t *testing.T) {
	tree, root := newTree(t)
	reg := New(quiet())
	for i := 0; i < 10; i++ {
		_, err := signal.NewParameter(tree, reg, root, fmt.Sprintf("p%d", i), i)
		require.NoError(t, err)
	}

	ids := reg.IDs()
	require.Len(t, ids, 10)
	for i := 1; i < len(ids); i++ {
		assert.Less(t, ids[i-1], ids[i])
	}
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	tree, root := newTree(t)
	reg := New(quiet())
	params := make([]*signal.Signal[int], 8)
	for i := range params {
		p, err := signal.NewParameter(tree, reg, root, fmt.Sprintf("p%d", i), 0)
		require.NoError(t, err)
		params[i] = p
	}

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				reg.ChangeValue(params[(w+i)%len(params)].ID(), fmt.Sprint(i))
				_ = reg.IDs()
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, len(params), reg.Len())
}
