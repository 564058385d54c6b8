package gate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pauliX = Matrix2x2{{0, 1}, {1, 0}}

func TestSingleShape(t *testing.T) {
	g := Single(2, pauliX)
	assert.True(t, g.IsSingleQubit())
	assert.False(t, g.IsUniformlyControlled())
	assert.False(t, g.IsSwap())
}

func TestSwapShape(t *testing.T) {
	g := Swap(1, 3)
	assert.True(t, g.IsSwap())
	a, b := g.SwapQubits()
	assert.Equal(t, 1, a)
	assert.Equal(t, 3, b)
	assert.False(t, g.IsSingleQubit())
	assert.False(t, g.IsUniformlyControlled())
}

func TestUniformlyControlledShape(t *testing.T) {
	g, err := New(0, []int{1, 2}, map[int]Matrix2x2{3: pauliX})
	require.NoError(t, err)
	assert.True(t, g.IsUniformlyControlled())
	assert.False(t, g.IsSingleQubit())
	assert.False(t, g.IsSwap())
}

func TestNewRejectsControlEqualsTarget(t *testing.T) {
	_, err := New(1, []int{1}, nil)
	assert.True(t, errors.Is(err, ErrControlIsTarget))
}

func TestNewRejectsPayloadKeyOutOfRange(t *testing.T) {
	_, err := New(0, []int{1}, map[int]Matrix2x2{5: pauliX})
	assert.True(t, errors.Is(err, ErrPayloadKeyRange))
}

func TestNewSortsAndDedupsControls(t *testing.T) {
	g, err := New(0, []int{3, 1, 3, 2}, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, g.Controls)
}

func TestIsIdentity(t *testing.T) {
	assert.True(t, Identity(0).IsIdentity(1e-10))
	assert.False(t, Single(0, pauliX).IsIdentity(1e-10))

	empty, err := New(0, nil, map[int]Matrix2x2{})
	require.NoError(t, err)
	assert.True(t, empty.IsIdentity(1e-10))

	withControls, err := New(0, []int{1}, map[int]Matrix2x2{1: Identity2x2})
	require.NoError(t, err)
	assert.False(t, withControls.IsIdentity(1e-10))
}

func TestDenseFillsMissingKeysWithIdentity(t *testing.T) {
	g, err := New(0, []int{1, 2}, map[int]Matrix2x2{2: pauliX})
	require.NoError(t, err)
	dense := g.Dense()
	require.Len(t, dense, 4)
	assert.Equal(t, Identity2x2, dense[0])
	assert.Equal(t, Identity2x2, dense[1])
	assert.Equal(t, pauliX, dense[2])
	assert.Equal(t, Identity2x2, dense[3])
}

func TestCloneSharesThenCopiesOnWrite(t *testing.T) {
	g := Single(0, pauliX)
	clone := g.Clone()

	clone.Clear()

	assert.True(t, clone.IsIdentity(1e-10))
	assert.False(t, g.IsIdentity(1e-10), "mutating the clone must not affect the original")
}

func TestCanCombineSameTargetAndControls(t *testing.T) {
	a, err := New(0, []int{1}, map[int]Matrix2x2{1: pauliX})
	require.NoError(t, err)
	b, err := New(0, []int{1}, map[int]Matrix2x2{1: pauliX})
	require.NoError(t, err)
	assert.True(t, a.CanCombine(b, false))
}

func TestCanCombineDifferentTargetFails(t *testing.T) {
	a := Single(0, pauliX)
	b := Single(1, pauliX)
	assert.False(t, a.CanCombine(b, false))
}

func TestCanCombineSwapRequiresFlagAndSamePair(t *testing.T) {
	a := Swap(0, 1)
	b := Swap(1, 0)
	assert.False(t, a.CanCombine(b, false))
	assert.True(t, a.CanCombine(b, true))

	c := Swap(0, 2)
	assert.False(t, a.CanCombine(c, true))
}

func TestTryCombineXXCollapsesToIdentity(t *testing.T) {
	a := Single(0, pauliX)
	b := Single(0, pauliX)
	collapsed := a.TryCombine(b, 1e-10)
	assert.True(t, collapsed)
	assert.True(t, a.IsIdentity(1e-10))
}

func TestTryCombineSwapSwapCollapses(t *testing.T) {
	a := Swap(0, 1)
	b := Swap(0, 1)
	collapsed := a.TryCombine(b, 1e-10)
	assert.True(t, collapsed)
}

func TestEq(t *testing.T) {
	a := Single(0, pauliX)
	b := Single(0, pauliX)
	assert.True(t, a.Eq(b, 1e-10))

	c := Single(0, Identity2x2)
	assert.False(t, a.Eq(c, 1e-10))
}

func TestReferencesAndQubitSet(t *testing.T) {
	g, err := New(0, []int{1, 2}, map[int]Matrix2x2{0: pauliX})
	require.NoError(t, err)
	assert.True(t, g.References(0))
	assert.True(t, g.References(2))
	assert.False(t, g.References(3))
	assert.ElementsMatch(t, []int{0, 1, 2}, g.QubitSet())
}

func TestIsPhaseOnlyOn(t *testing.T) {
	phase := Single(0, Matrix2x2{{1, 0}, {0, -1}})
	assert.True(t, phase.IsPhaseOnlyOn(1e-10))

	notPhase := Single(0, pauliX)
	assert.False(t, notPhase.IsPhaseOnlyOn(1e-10))
}
