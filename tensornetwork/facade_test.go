package tensornetwork

import (
	"errors"
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jpacold/qrack/gate"
	"github.com/jpacold/qrack/internal/qrand"
	"github.com/jpacold/qrack/qerr"
)

var pauliX = gate.Matrix2x2{{0, 1}, {1, 0}}
var hadamard = gate.Matrix2x2{
	{complex(1/math.Sqrt2, 0), complex(1/math.Sqrt2, 0)},
	{complex(1/math.Sqrt2, 0), complex(-1/math.Sqrt2, 0)},
}

func newFacade(t *testing.T, n int) *Facade {
	t.Helper()
	f, err := New(NewConfig(), n, qrand.New(3, 5), false, false)
	require.NoError(t, err)
	return f
}

func TestNewRejectsOverCapacity(t *testing.T) {
	cfg := NewConfig()
	cfg.Engine.MaxQubits = 1
	_, err := New(cfg, 2, nil, false, false)
	assert.True(t, errors.Is(err, qerr.Capacity))
}

func TestMtrxRejectsOutOfRangeQubit(t *testing.T) {
	f := newFacade(t, 2)
	err := f.Mtrx(hadamard, 5)
	assert.True(t, errors.Is(err, qerr.OutOfRange))
}

func TestMcMtrxRejectsControlEqualsTarget(t *testing.T) {
	f := newFacade(t, 2)
	err := f.McMtrx(pauliX, []int{0}, 0)
	assert.True(t, errors.Is(err, gate.ErrControlIsTarget))
}

func TestHadamardOnZeroState(t *testing.T) {
	f := newFacade(t, 1)
	require.NoError(t, f.Mtrx(hadamard, 0))

	a0, err := f.GetAmplitude(0)
	require.NoError(t, err)
	a1, err := f.GetAmplitude(1)
	require.NoError(t, err)
	assert.InDelta(t, 0.707107, real(a0), 1e-6)
	assert.InDelta(t, 0.707107, real(a1), 1e-6)
}

func TestBellState(t *testing.T) {
	f := newFacade(t, 2)
	require.NoError(t, f.Mtrx(hadamard, 0))
	require.NoError(t, f.McMtrx(pauliX, []int{0}, 1))

	a00, _ := f.GetAmplitude(0)
	a11, _ := f.GetAmplitude(3)
	assert.InDelta(t, 0.707107, cmplx.Abs(a00), 1e-6)
	assert.InDelta(t, 0.707107, cmplx.Abs(a11), 1e-6)

	p0, err := f.Prob(0)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, p0, 1e-6)
}

func TestSwapViaThreeMcMtrx(t *testing.T) {
	f := newFacade(t, 2)
	require.NoError(t, f.SetPermutation(1, 0)) // |01>
	require.NoError(t, f.McMtrx(pauliX, []int{0}, 1))
	require.NoError(t, f.McMtrx(pauliX, []int{1}, 0))
	require.NoError(t, f.McMtrx(pauliX, []int{0}, 1))

	a, err := f.GetAmplitude(2) // |10>
	require.NoError(t, err)
	assert.InDelta(t, 1.0, cmplx.Abs(a), 1e-9)
}

func TestMeasurementLayering(t *testing.T) {
	f := newFacade(t, 2)
	require.NoError(t, f.Mtrx(hadamard, 0))

	r, err := f.ForceM(0, true, true, true)
	require.NoError(t, err)
	assert.True(t, r)

	require.NoError(t, f.Mtrx(hadamard, 0))

	require.Equal(t, 1, f.GetMeasurementCount())
	assert.GreaterOrEqual(t, f.LayerCount(), 2, "the second H must route to a new layer after the forced measurement")

	a0, err := f.GetAmplitude(0)
	require.NoError(t, err)
	a1, err := f.GetAmplitude(1)
	require.NoError(t, err)
	assert.InDelta(t, 0.707107, cmplx.Abs(a0), 1e-6)
	assert.InDelta(t, 0.707107, cmplx.Abs(a1), 1e-6)
}

func TestGHZProbability(t *testing.T) {
	f := newFacade(t, 3)
	require.NoError(t, f.Mtrx(hadamard, 0))
	require.NoError(t, f.McMtrx(pauliX, []int{0}, 1))
	require.NoError(t, f.McMtrx(pauliX, []int{1}, 2))

	p0, err := f.ProbAll(0b000)
	require.NoError(t, err)
	p7, err := f.ProbAll(0b111)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, p0, 1e-6)
	assert.InDelta(t, 0.5, p7, 1e-6)
}

func TestSetQuantumStateNotImplemented(t *testing.T) {
	f := newFacade(t, 1)
	err := f.SetQuantumState([]complex128{1, 0})
	assert.True(t, errors.Is(err, qerr.NotImplemented))
}

func TestAllocateGrowsQubitCountAndPreservesState(t *testing.T) {
	f := newFacade(t, 1)
	require.NoError(t, f.SetPermutation(1, 0)) // |1>
	require.NoError(t, f.Allocate(0, 1))

	assert.Equal(t, 2, f.QubitCount())
	a, err := f.GetAmplitude(0b10) // original qubit moved up by 1
	require.NoError(t, err)
	assert.InDelta(t, 1.0, cmplx.Abs(a), 1e-9)
}

func TestFSimFoldsBackAsNewBaseline(t *testing.T) {
	f := newFacade(t, 2)
	require.NoError(t, f.Mtrx(hadamard, 0))
	require.NoError(t, f.McMtrx(pauliX, []int{0}, 1))
	require.NoError(t, f.FSim(math.Pi/4, math.Pi/8, 0, 1))

	require.NoError(t, f.Mtrx(hadamard, 0))

	var total float64
	for i := 0; i < 4; i++ {
		a, err := f.GetAmplitude(i)
		require.NoError(t, err)
		total += cmplx.Abs(a) * cmplx.Abs(a)
	}
	assert.InDelta(t, 1.0, total, 1e-9)
}

func TestCloneIsIndependent(t *testing.T) {
	f := newFacade(t, 1)
	require.NoError(t, f.Mtrx(hadamard, 0))
	clone := f.Clone()

	require.NoError(t, clone.Mtrx(hadamard, 0))

	a, err := f.GetAmplitude(0)
	require.NoError(t, err)
	assert.InDelta(t, 0.707107, cmplx.Abs(a), 1e-6, "the original facade must be unaffected by the clone's extra gate")

	ca, err := clone.GetAmplitude(0)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, cmplx.Abs(ca), 1e-6, "H*H on the clone returns to |0>")
}
