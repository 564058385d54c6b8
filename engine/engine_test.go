package engine

import (
	"errors"
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jpacold/qrack/internal/qrand"
	"github.com/jpacold/qrack/qerr"
)

var pauliX = Matrix2x2{{0, 1}, {1, 0}}
var hadamard = Matrix2x2{
	{complex(1/math.Sqrt2, 0), complex(1/math.Sqrt2, 0)},
	{complex(1/math.Sqrt2, 0), complex(-1/math.Sqrt2, 0)},
}

func newTestEngine(t *testing.T, n int) *Engine {
	t.Helper()
	e, err := New(NewConfig(), n, 0, qrand.New(7, 11), 1, false, false)
	require.NoError(t, err)
	return e
}

func TestNewRejectsCapacityOverflow(t *testing.T) {
	cfg := NewConfig()
	cfg.MaxQubits = 2
	_, err := New(cfg, 3, 0, nil, 1, false, false)
	assert.True(t, errors.Is(err, qerr.Capacity))
}

func TestNewZeroQubitEngine(t *testing.T) {
	e, err := New(NewConfig(), 0, 0, nil, 1, false, false)
	require.NoError(t, err)
	assert.True(t, e.IsZeroState())
	assert.Equal(t, 1, e.MaxPower())
}

func TestSetPermutationAndGetAmplitude(t *testing.T) {
	e := newTestEngine(t, 2)
	require.NoError(t, e.SetPermutation(3, 1))

	a, err := e.GetAmplitude(3)
	require.NoError(t, err)
	assert.Equal(t, complex(1.0, 0.0), a)

	other, err := e.GetAmplitude(0)
	require.NoError(t, err)
	assert.Equal(t, complex128(0), other)
}

func TestHadamardOnZeroState(t *testing.T) {
	e := newTestEngine(t, 1)
	require.NoError(t, e.Mtrx(hadamard, 0))

	a0, err := e.GetAmplitude(0)
	require.NoError(t, err)
	a1, err := e.GetAmplitude(1)
	require.NoError(t, err)
	assert.InDelta(t, 0.707107, real(a0), 1e-6)
	assert.InDelta(t, 0.707107, real(a1), 1e-6)
}

func TestBellStateViaHadamardThenMcMtrx(t *testing.T) {
	e := newTestEngine(t, 2)
	require.NoError(t, e.Mtrx(hadamard, 0))
	require.NoError(t, e.McMtrx(pauliX, []int{0}, 1))

	a00, _ := e.GetAmplitude(0)
	a01, _ := e.GetAmplitude(1)
	a10, _ := e.GetAmplitude(2)
	a11, _ := e.GetAmplitude(3)
	assert.InDelta(t, 0.707107, cmplx.Abs(a00), 1e-6)
	assert.InDelta(t, 0, cmplx.Abs(a01), 1e-6)
	assert.InDelta(t, 0, cmplx.Abs(a10), 1e-6)
	assert.InDelta(t, 0.707107, cmplx.Abs(a11), 1e-6)

	p0, err := e.Prob(0)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, p0, 1e-6)

	parity, err := e.ProbParity(0b11)
	require.NoError(t, err)
	assert.InDelta(t, 0, parity, 1e-6)
}

func TestGHZProbability(t *testing.T) {
	e := newTestEngine(t, 3)
	require.NoError(t, e.Mtrx(hadamard, 0))
	require.NoError(t, e.McMtrx(pauliX, []int{0}, 1))
	require.NoError(t, e.McMtrx(pauliX, []int{1}, 2))

	p0, err := e.ProbAll(0b000)
	require.NoError(t, err)
	p7, err := e.ProbAll(0b111)
	require.NoError(t, err)
	p1, err := e.ProbAll(0b001)
	require.NoError(t, err)

	assert.InDelta(t, 0.5, p0, 1e-6)
	assert.InDelta(t, 0.5, p7, 1e-6)
	assert.InDelta(t, 0, p1, 1e-6)
}

func TestMacMtrxAppliesOnZeroControls(t *testing.T) {
	e := newTestEngine(t, 2)
	require.NoError(t, e.MacMtrx(pauliX, []int{0}, 1))

	a, err := e.GetAmplitude(2) // |10>: control q0=0, target q1 flipped
	require.NoError(t, err)
	assert.InDelta(t, 1.0, cmplx.Abs(a), 1e-9)
}

func TestSwap(t *testing.T) {
	e := newTestEngine(t, 2)
	require.NoError(t, e.SetPermutation(1, 1)) // |01>
	require.NoError(t, e.Swap(0, 1))

	a, err := e.GetAmplitude(2) // |10>
	require.NoError(t, err)
	assert.InDelta(t, 1.0, cmplx.Abs(a), 1e-9)
}

func TestXMask(t *testing.T) {
	e := newTestEngine(t, 2)
	require.NoError(t, e.SetPermutation(0, 1))
	require.NoError(t, e.XMask(0b11))

	a, err := e.GetAmplitude(3)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, cmplx.Abs(a), 1e-9)
}

func TestUniformlyControlledSingleBitMatchesMcMtrxAtFullPattern(t *testing.T) {
	e := newTestEngine(t, 2)
	require.NoError(t, e.SetPermutation(0b11, 1))
	require.NoError(t, e.UniformlyControlledSingleBit([]int{0}, 1, []Matrix2x2{Matrix2x2{{1, 0}, {0, 1}}, pauliX}))

	a, err := e.GetAmplitude(0b01)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, cmplx.Abs(a), 1e-9)
}

func TestForceMeasurementIdempotence(t *testing.T) {
	e := newTestEngine(t, 1)
	require.NoError(t, e.Mtrx(hadamard, 0))

	r, err := e.ForceM(0, true, true, true)
	require.NoError(t, err)
	assert.True(t, r)

	p, err := e.Prob(0)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, p, 1e-9)
}

func TestMAllCollapsesToASingleBasisState(t *testing.T) {
	e := newTestEngine(t, 2)
	require.NoError(t, e.Mtrx(hadamard, 0))
	require.NoError(t, e.McMtrx(pauliX, []int{0}, 1))

	perm, err := e.MAll()
	require.NoError(t, err)
	assert.True(t, perm == 0 || perm == 3, "Bell state collapses to |00> or |11>")

	p, err := e.ProbAll(perm)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, p, 1e-9)
}

func TestComposeAtEnd(t *testing.T) {
	a := newTestEngine(t, 1)
	require.NoError(t, a.SetPermutation(1, 1))
	b := newTestEngine(t, 1)
	require.NoError(t, b.SetPermutation(1, 1))

	off, err := a.Compose(b)
	require.NoError(t, err)
	assert.Equal(t, 1, off)

	amp, err := a.GetAmplitude(0b11)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, cmplx.Abs(amp), 1e-9)
}

func TestDecomposeSeparableState(t *testing.T) {
	e := newTestEngine(t, 2)
	require.NoError(t, e.SetPermutation(0b10, 1))

	dest := newTestEngine(t, 1)
	require.NoError(t, e.Decompose(1, 1, dest))

	assert.Equal(t, 1, e.QubitCount())
	rem, err := e.GetAmplitude(0)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, cmplx.Abs(rem), 1e-9)

	partAmp, err := dest.GetAmplitude(1)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, cmplx.Abs(partAmp), 1e-9)
}

func TestDisposeProjectsOntoPermutation(t *testing.T) {
	e := newTestEngine(t, 2)
	require.NoError(t, e.SetPermutation(0b10, 1))
	require.NoError(t, e.Dispose(1, 1, 1))

	assert.Equal(t, 1, e.QubitCount())
	rem, err := e.GetAmplitude(0)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, cmplx.Abs(rem), 1e-9)
}

func TestSumSqrDiffIdenticalStatesIsZero(t *testing.T) {
	a := newTestEngine(t, 1)
	require.NoError(t, a.Mtrx(hadamard, 0))
	b := a.Clone()

	diff, err := a.SumSqrDiff(b)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, diff, 1e-9)
}

func TestSumSqrDiffOrthogonalStatesIsOne(t *testing.T) {
	a := newTestEngine(t, 1)
	require.NoError(t, a.SetPermutation(0, 1))
	b := newTestEngine(t, 1)
	require.NoError(t, b.SetPermutation(1, 1))

	diff, err := a.SumSqrDiff(b)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, diff, 1e-9)
}

func TestSumSqrDiffShapeMismatch(t *testing.T) {
	a := newTestEngine(t, 1)
	b := newTestEngine(t, 2)
	_, err := a.SumSqrDiff(b)
	assert.True(t, errors.Is(err, qerr.ShapeMismatch))
}

func TestFSimPreservesNormalization(t *testing.T) {
	e := newTestEngine(t, 2)
	require.NoError(t, e.Mtrx(hadamard, 0))
	require.NoError(t, e.McMtrx(pauliX, []int{0}, 1))
	require.NoError(t, e.FSim(math.Pi/4, math.Pi/8, 0, 1))

	var total float64
	for i := 0; i < e.MaxPower(); i++ {
		a, err := e.GetAmplitude(i)
		require.NoError(t, err)
		total += cmplx.Abs(a) * cmplx.Abs(a)
	}
	assert.InDelta(t, 1.0, total, 1e-9)
}

func TestPhaseParityLeavesProbabilitiesUnchanged(t *testing.T) {
	e := newTestEngine(t, 2)
	require.NoError(t, e.Mtrx(hadamard, 0))
	require.NoError(t, e.Mtrx(hadamard, 1))
	require.NoError(t, e.PhaseParity(math.Pi/3, 0b11))

	p, err := e.ProbAll(0b01)
	require.NoError(t, err)
	assert.InDelta(t, 0.25, p, 1e-6, "phase shifts don't change probabilities")
}

func TestUpdateRunningNormAndNormalizeState(t *testing.T) {
	e := newTestEngine(t, 1)
	require.NoError(t, e.SetAmplitude(0, 2))
	require.NoError(t, e.SetAmplitude(1, 0))

	require.NoError(t, e.UpdateRunningNorm(-1))
	require.NoError(t, e.NormalizeState(-1, -1, 0))

	a, err := e.GetAmplitude(0)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, cmplx.Abs(a), 1e-9)
}

func TestGetSetQuantumState(t *testing.T) {
	e := newTestEngine(t, 1)
	in := []complex128{complex(0.6, 0), complex(0.8, 0)}
	require.NoError(t, e.SetQuantumState(in))

	out := make([]complex128, 2)
	require.NoError(t, e.GetQuantumState(out))
	assert.Equal(t, in, out)
}
