package signal_test

import (
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/simucore/component"
	"github.com/c360/simucore/errors"
	"github.com/c360/simucore/registry"
	"github.com/c360/simucore/signal"
)

type fixture struct {
	tree *component.Tree
	reg  *registry.Registry
	root component.Handle
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tree := component.NewTree(logger)
	root, err := tree.NewRoot("plant", nil)
	require.NoError(t, err)
	return fixture{tree: tree, reg: registry.New(logger), root: root}
}

func TestSignal_ChangeDetectionLatch(t *testing.T) {
	f := newFixture(t)
	sig, err := signal.NewParameter(f.tree, f.reg, f.root, "setpoint", 0)
	require.NoError(t, err)

	assert.True(t, sig.ValueHasChanged(), "first query reports a change")
	assert.False(t, sig.ValueHasChanged(), "nothing changed since construction")

	sig.SetValue(5)
	assert.True(t, sig.ValueHasChanged())
	assert.True(t, sig.ValueHasChanged(), "query does not clear the change")

	sig.SetValue(5)
	assert.False(t, sig.ValueHasChanged())
}

func TestSignal_FanOutInConnectionOrder(t *testing.T) {
	f := newFixture(t)
	out, err := signal.NewOutput(f.tree, f.reg, f.root, "flow", 1.5)
	require.NoError(t, err)
	in1, err := signal.NewInput(f.tree, f.reg, f.root, "gauge", 0.0)
	require.NoError(t, err)
	in2, err := signal.NewInput(f.tree, f.reg, f.root, "logger", 0.0)
	require.NoError(t, err)

	require.NoError(t, out.ConnectTo(in1))
	require.NoError(t, out.ConnectTo(in2))

	// Binding pushes the current value immediately
	assert.Equal(t, 1.5, in1.Value())
	assert.Equal(t, 1.5, in2.Value())

	out.SetValue(7.25)
	assert.Equal(t, 7.25, in1.Value())
	assert.Equal(t, 7.25, in2.Value())
	assert.Equal(t, []component.ID{in1.ID(), in2.ID()}, out.ConnectedIDs())
	assert.Nil(t, in1.ConnectedIDs())
}

func TestSignal_ConnectToRoleRules(t *testing.T) {
	f := newFixture(t)
	out, _ := signal.NewOutput(f.tree, f.reg, f.root, "out", 0)
	pout, _ := signal.NewPhysicalOutput(f.tree, f.reg, f.root, "pout", 0)
	in, _ := signal.NewInput(f.tree, f.reg, f.root, "in", 0)
	pin, _ := signal.NewPhysicalInput(f.tree, f.reg, f.root, "pin", 0)
	param, _ := signal.NewParameter(f.tree, f.reg, f.root, "param", 0)

	tests := []struct {
		name    string
		src     *signal.Signal[int]
		dst     *signal.Signal[int]
		wantErr bool
	}{
		{"output to input", out, in, false},
		{"output to physical input", out, pin, false},
		{"physical output to input", pout, in, false},
		{"input as source", in, pin, true},
		{"parameter as source", param, in, true},
		{"output to output", out, pout, true},
		{"output to parameter", out, param, true},
		{"nil target", out, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.src.ConnectTo(tt.dst)
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, errors.ErrInvalidBinding)
		})
	}

	err := out.ConnectTo(in)
	assert.ErrorIs(t, err, errors.ErrInvalidBinding, "duplicate binding")
}

func TestSignal_SetValueFromString(t *testing.T) {
	f := newFixture(t)
	in, _ := signal.NewInput(f.tree, f.reg, f.root, "in", int32(3))
	out, _ := signal.NewOutput(f.tree, f.reg, f.root, "out", int32(3))
	pin, _ := signal.NewPhysicalInput(f.tree, f.reg, f.root, "pin", int32(3))
	pout, _ := signal.NewPhysicalOutput(f.tree, f.reg, f.root, "pout", int32(3))
	param, _ := signal.NewParameter(f.tree, f.reg, f.root, "param", int32(3))

	for _, s := range []*signal.Signal[int32]{in, out} {
		res := s.SetValueFromString("9")
		assert.Equal(t, signal.StatusReadOnly, res.Status, s.Name())
		assert.Equal(t, int32(3), s.Value(), "read-only value must not change")
		assert.ErrorIs(t, res.Err(), errors.ErrReadOnly)
		assert.False(t, s.Writable())
	}

	for _, s := range []*signal.Signal[int32]{pin, pout, param} {
		res := s.SetValueFromString("9")
		assert.True(t, res.OK(), s.Name())
		assert.NoError(t, res.Err())
		assert.Equal(t, int32(9), s.Value())
		assert.True(t, s.Writable())
	}

	res := param.SetValueFromString("nine")
	assert.Equal(t, signal.StatusUnsupportedType, res.Status)
	assert.ErrorIs(t, res.Err(), errors.ErrUnsupportedType)
	assert.Equal(t, int32(9), param.Value())

	res = param.SetValueFromString("4000000000")
	assert.Equal(t, signal.StatusUnsupportedType, res.Status, "out of range for int32")
}

func TestSignal_BoolRoundTrip(t *testing.T) {
	f := newFixture(t)
	sig, err := signal.NewPhysicalInput(f.tree, f.reg, f.root, "enable", false)
	require.NoError(t, err)

	assert.Equal(t, "false", sig.ValueString())
	require.True(t, sig.SetValueFromString("true").OK())
	assert.True(t, sig.Value())
	assert.Equal(t, "true", sig.ValueString())
	assert.Equal(t, "bool", sig.TypeName())
}

func TestSignal_StringPassThrough(t *testing.T) {
	f := newFixture(t)
	sig, err := signal.NewParameter(f.tree, f.reg, f.root, "label", "idle")
	require.NoError(t, err)

	require.True(t, sig.SetValueFromString("pumping 3 m/s").OK())
	assert.Equal(t, "pumping 3 m/s", sig.ValueString())
	assert.Equal(t, signal.TypeString, sig.Type())
}

func TestSignal_Identity(t *testing.T) {
	f := newFixture(t)
	sig, err := signal.NewOutput(f.tree, f.reg, f.root, "speed", uint16(0))
	require.NoError(t, err)

	assert.Equal(t, component.IdentityOf("plant->speed"), sig.ID())
	assert.Equal(t, "plant->speed", sig.FullName())
	assert.Equal(t, component.KindOutput, sig.Role())
	assert.Equal(t, component.KindOutput, f.tree.Kind(sig.Handle()))

	found, ok := f.reg.Find(sig.ID())
	require.True(t, ok)
	assert.Same(t, sig, found)
}

func TestSignal_DuplicateNameRejected(t *testing.T) {
	f := newFixture(t)
	_, err := signal.NewOutput(f.tree, f.reg, f.root, "speed", 0)
	require.NoError(t, err)

	_, err = signal.NewInput(f.tree, f.reg, f.root, "speed", 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrIdentityCollision)
	assert.Equal(t, 1, f.reg.Len())
}

func TestSignal_NilTree(t *testing.T) {
	_, err := signal.NewOutput[int](nil, nil, component.NoHandle, "x", 0)
	assert.Error(t, err)
}

func TestSignal_ConcurrentSetAndRead(t *testing.T) {
	f := newFixture(t)
	out, _ := signal.NewOutput(f.tree, f.reg, f.root, "out", 0)
	in, _ := signal.NewInput(f.tree, f.reg, f.root, "in", 0)
	require.NoError(t, out.ConnectTo(in))

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				out.SetValue(i)
			}
		}()
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				_ = in.ValueString()
				_ = out.ConnectedIDs()
			}
		}()
	}
	wg.Wait()
}

func TestFormatAndParse(t *testing.T) {
	assert.Equal(t, "-12", signal.FormatValue(int8(-12)))
	assert.Equal(t, "255", signal.FormatValue(uint8(255)))
	assert.Equal(t, "0.1", signal.FormatValue(0.1))
	assert.Equal(t, "2.5", signal.FormatValue(float32(2.5)))
	assert.Equal(t, "1000000", signal.FormatValue(1e6))

	v, err := signal.ParseValue[float64]("3.75")
	require.NoError(t, err)
	assert.Equal(t, 3.75, v)

	u, err := signal.ParseValue[uint64]("18446744073709551615")
	require.NoError(t, err)
	assert.Equal(t, uint64(18446744073709551615), u)

	_, err = signal.ParseValue[uint8]("-1")
	assert.Error(t, err)

	assert.Equal(t, "float32", signal.TypeOf[float32]().String())
	assert.Equal(t, "unsupported", signal.Type(200).String())
}
