package builtins

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/gatesched/internal/interp"
	"github.com/roach88/gatesched/internal/ir"
	"github.com/roach88/gatesched/internal/retype"
	"github.com/roach88/gatesched/internal/scheduler"
	"github.com/roach88/gatesched/internal/verifier"
)

// countingRuntime wraps GrowElements and counts its calls.
func countingRuntime(calls *int) interp.Runtime {
	return interp.Runtime{RuntimeGrowElements: func(args []interp.Value) (interp.Value, error) {
		*calls++
		return GrowElements(args)
	}}
}

func compile(t *testing.T, argc int, typed bool) (*ir.Circuit, scheduler.ControlFlowGraph) {
	t.Helper()
	c := BuildArrayPush(argc)
	require.Empty(t, verifier.Verify(c))
	if typed {
		retype.RunConvertPhase(retype.RunRetypePhase(c))
	}
	res, err := scheduler.Run(c, scheduler.WithVerifier(true))
	require.NoError(t, err)
	return c, res.CFG
}

func TestBuildArrayPush_RejectsArgc(t *testing.T) {
	assert.Panics(t, func() { BuildArrayPush(0) })
	assert.Panics(t, func() { BuildArrayPush(MaxPushArgs + 1) })
}

func TestBuildArrayPush_Schedules(t *testing.T) {
	for argc := 1; argc <= MaxPushArgs; argc++ {
		t.Run(fmt.Sprint(argc), func(t *testing.T) {
			_, cfg := compile(t, argc, false)
			// entry, branch arms, grow call, merge
			assert.GreaterOrEqual(t, len(cfg), 4)
		})
	}
}

func TestArrayPush_FastPath(t *testing.T) {
	for _, typed := range []bool{false, true} {
		t.Run(fmt.Sprintf("typed=%t", typed), func(t *testing.T) {
			c, cfg := compile(t, 2, typed)
			calls := 0
			in := interp.New(c, cfg, interp.WithRuntime(countingRuntime(&calls)))

			a := interp.NewArray(8, interp.TaggedInt(1), interp.TaggedInt(2), interp.TaggedInt(3))
			got, err := in.Call(interp.Object(a), interp.TaggedInt(7), interp.TaggedDouble(0.5))
			require.NoError(t, err)

			if typed {
				assert.Equal(t, interp.TaggedInt(5), got)
			} else {
				assert.Equal(t, interp.Int32(5), got)
			}
			assert.Zero(t, calls, "capacity was sufficient")
			assert.Equal(t, int32(5), a.Length)
			assert.Equal(t, int32(8), a.Capacity)
			assert.Equal(t, []interp.Value{
				interp.TaggedInt(1), interp.TaggedInt(2), interp.TaggedInt(3),
				interp.TaggedInt(7), interp.TaggedDouble(0.5),
			}, a.Values())
		})
	}
}

func TestArrayPush_Grows(t *testing.T) {
	for _, typed := range []bool{false, true} {
		t.Run(fmt.Sprintf("typed=%t", typed), func(t *testing.T) {
			c, cfg := compile(t, 1, typed)
			calls := 0
			in := interp.New(c, cfg, interp.WithRuntime(countingRuntime(&calls)))

			a := interp.NewArray(2, interp.TaggedInt(1), interp.TaggedInt(2))
			_, err := in.Call(interp.Object(a), interp.Null())
			require.NoError(t, err)
			assert.Equal(t, 1, calls)
			assert.Equal(t, int32(3), a.Length)
			assert.Equal(t, int32(2+1+16), a.Capacity)
			assert.Equal(t, interp.Null(), a.Values()[2])

			// the next push fits again
			_, err = in.Call(interp.Object(a), interp.Undefined())
			require.NoError(t, err)
			assert.Equal(t, 1, calls)
			assert.Equal(t, int32(4), a.Length)
		})
	}
}

func TestArrayPush_RepeatedPushes(t *testing.T) {
	c, cfg := compile(t, 4, true)
	in := interp.New(c, cfg, interp.WithRuntime(Runtime()))

	a := interp.NewArray(0)
	for i := 0; i < 25; i++ {
		base := int32(4 * i)
		got, err := in.Call(interp.Object(a),
			interp.TaggedInt(base), interp.TaggedInt(base+1), interp.TaggedInt(base+2), interp.TaggedInt(base+3))
		require.NoError(t, err)
		require.Equal(t, interp.TaggedInt(base+4), got)
	}
	require.Len(t, a.Values(), 100)
	for i, v := range a.Values() {
		assert.Equal(t, interp.TaggedInt(int32(i)), v)
	}
}

func TestArrayPush_MissingRuntimeFailsOnlyOnGrow(t *testing.T) {
	c, cfg := compile(t, 1, false)
	in := interp.New(c, cfg)

	_, err := in.Call(interp.Object(interp.NewArray(4)), interp.TaggedInt(1))
	require.NoError(t, err)

	_, err = in.Call(interp.Object(interp.NewArray(0)), interp.TaggedInt(1))
	require.Error(t, err)
	assert.Equal(t, interp.ErrCodeUnsupported, interp.CodeOf(err))
}

func TestGrowElements(t *testing.T) {
	a := interp.NewArray(4)
	_, err := GrowElements([]interp.Value{interp.Object(a), interp.Int32(100)})
	require.NoError(t, err)
	assert.Equal(t, int32(100), a.Capacity)

	_, err = GrowElements([]interp.Value{interp.Int32(1), interp.Int32(1)})
	assert.Error(t, err)
}
