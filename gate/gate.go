// Package gate implements the Gate Record: one logical gate as a target
// qubit, an ascending control set, and a per-control-pattern 2x2 payload
// table. The shape (single-qubit / uniformly-controlled / swap) is derived
// from content, never stored as a tag, matching spec §3.
package gate

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"sync/atomic"
)

// Matrix2x2 is the wire format for a gate payload: [[m00,m01],[m10,m11]] in
// row-major order, matching spec §6's "4 complex numbers in row-major order".
type Matrix2x2 [2][2]complex128

// Identity2x2 is the 2x2 identity matrix.
var Identity2x2 = Matrix2x2{{1, 0}, {0, 1}}

// ErrControlIsTarget is returned when a caller tries to construct a gate
// whose control set contains its own target qubit.
var ErrControlIsTarget = errors.New("gate: control set contains target qubit")

// ErrPayloadKeyRange is returned when a payload key falls outside
// [0, 2^|controls|).
var ErrPayloadKeyRange = errors.New("gate: payload key out of range for control count")

// payloadTable is the shared-ownership backing store for a gate's payloads.
// Multiple *Gate values may point at the same table after Clone(); any
// mutation copies the table first if it is shared (§9's clone-on-write).
type payloadTable struct {
	refs atomic.Int32
	m    map[int]Matrix2x2
}

// Gate is one logical gate record.
type Gate struct {
	Target   int
	Controls []int // ascending, de-duplicated, never contains Target
	pt       *payloadTable
}

// New builds a gate from an explicit target, control set, and payload
// table keyed by control pattern. controls is sorted and de-duplicated.
// Returns ErrControlIsTarget or ErrPayloadKeyRange on an invalid shape.
func New(target int, controls []int, payloads map[int]Matrix2x2) (*Gate, error) {
	ctrl := slices.Clone(controls)
	slices.Sort(ctrl)
	ctrl = slices.Compact(ctrl)
	for _, c := range ctrl {
		if c == target {
			return nil, ErrControlIsTarget
		}
	}
	limit := 1 << len(ctrl)
	m := make(map[int]Matrix2x2, len(payloads))
	for k, v := range payloads {
		if k < 0 || k >= limit {
			return nil, fmt.Errorf("%w: key %d, controls %d", ErrPayloadKeyRange, k, len(ctrl))
		}
		m[k] = v
	}
	return &Gate{
		Target:   target,
		Controls: ctrl,
		pt:       &payloadTable{m: m},
	}, nil
}

// Single builds a single-qubit gate: empty controls, one payload at key 0.
func Single(target int, m Matrix2x2) *Gate {
	g, _ := New(target, nil, map[int]Matrix2x2{0: m})
	return g
}

// Identity builds a single-qubit identity gate on target.
func Identity(target int) *Gate {
	return Single(target, Identity2x2)
}

// Swap builds a swap gate: empty payload table, target plus one control.
// Shape is derived (IsSwap) from having zero payloads and exactly two
// qubits referenced.
func Swap(a, b int) *Gate {
	g, _ := New(a, []int{b}, map[int]Matrix2x2{})
	return g
}

// UniformlyControlled builds a gate whose payload depends on the control
// pattern; missing keys denote identity for that pattern.
func UniformlyControlled(target int, controls []int, payloads map[int]Matrix2x2) (*Gate, error) {
	return New(target, controls, payloads)
}

// Payload returns the matrix for control pattern key and whether an
// explicit entry exists (false means identity-for-that-pattern).
func (g *Gate) Payload(key int) (Matrix2x2, bool) {
	m, ok := g.pt.m[key]
	return m, ok
}

// PayloadCount returns the number of explicit payload entries.
func (g *Gate) PayloadCount() int {
	return len(g.pt.m)
}

// PayloadKeys returns the explicit payload keys in ascending order.
func (g *Gate) PayloadKeys() []int {
	keys := make([]int, 0, len(g.pt.m))
	for k := range g.pt.m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// IsSingleQubit reports whether g has no controls (one payload at key 0).
func (g *Gate) IsSingleQubit() bool {
	return len(g.Controls) == 0
}

// IsUniformlyControlled reports whether g has at least one control and at
// least one payload entry (a gate with zero payloads and exactly one
// control is a swap, not a uniformly controlled gate).
func (g *Gate) IsUniformlyControlled() bool {
	return len(g.Controls) > 0 && len(g.pt.m) > 0
}

// IsSwap reports whether g is shaped like a swap: no payloads, exactly one
// control (so exactly two qubits are referenced total).
func (g *Gate) IsSwap() bool {
	return len(g.pt.m) == 0 && len(g.Controls) == 1
}

// SwapQubits returns the two qubits a swap-shaped gate exchanges.
func (g *Gate) SwapQubits() (int, int) {
	return g.Target, g.Controls[0]
}

// IsIdentity reports whether g is a no-op: no controls, and its one payload
// (if present) equals the identity matrix within eps. A single-qubit gate
// with zero payloads is also identity (spec: "empty-payload-non-swap as
// identity via explicit clear").
func (g *Gate) IsIdentity(eps float64) bool {
	if len(g.Controls) != 0 {
		return false
	}
	if len(g.pt.m) == 0 {
		return true
	}
	m, ok := g.pt.m[0]
	if !ok {
		return true
	}
	return matrixIsIdentity(m, eps)
}

func matrixIsIdentity(m Matrix2x2, eps float64) bool {
	return closeTo(m[0][0], 1, eps) && closeTo(m[0][1], 0, eps) &&
		closeTo(m[1][0], 0, eps) && closeTo(m[1][1], 1, eps)
}

func closeTo(a, b complex128, eps float64) bool {
	d := a - b
	re, im := real(d), imag(d)
	return re*re+im*im <= eps*eps
}

// IsPhaseOnlyOn reports whether every explicit payload of g is phase-only
// with respect to the off-diagonal terms (|m01| < eps and |m10| < eps),
// used by the circuit layer's commutation test.
func (g *Gate) IsPhaseOnlyOn(eps float64) bool {
	for _, m := range g.pt.m {
		if absC(m[0][1]) >= eps || absC(m[1][0]) >= eps {
			return false
		}
	}
	return true
}

func absC(c complex128) float64 {
	re, im := real(c), imag(c)
	return math.Sqrt(re*re + im*im)
}

// References reports whether g touches the given qubit, as target or
// control.
func (g *Gate) References(qubit int) bool {
	if g.Target == qubit {
		return true
	}
	for _, c := range g.Controls {
		if c == qubit {
			return true
		}
	}
	return false
}

// QubitSet returns all qubits g touches (target plus controls), unordered.
func (g *Gate) QubitSet() []int {
	out := make([]int, 0, 1+len(g.Controls))
	out = append(out, g.Target)
	out = append(out, g.Controls...)
	return out
}

// Clone returns a new *Gate sharing this gate's payload table (incrementing
// its refcount). Any later mutation on either gate copies the table first.
func (g *Gate) Clone() *Gate {
	g.pt.refs.Add(1)
	return &Gate{Target: g.Target, Controls: slices.Clone(g.Controls), pt: g.pt}
}

// mutate gives fn exclusive access to this gate's payload map, copying the
// table first if another clone shares it (clone-on-write, spec §9).
func (g *Gate) mutate(fn func(m map[int]Matrix2x2)) {
	if g.pt.refs.Load() > 0 {
		cp := make(map[int]Matrix2x2, len(g.pt.m))
		for k, v := range g.pt.m {
			cp[k] = v
		}
		g.pt.refs.Add(-1)
		g.pt = &payloadTable{m: cp}
	}
	fn(g.pt.m)
}

// Clear empties the payload table in place, turning g into an
// empty-payload-non-swap identity.
func (g *Gate) Clear() {
	g.mutate(func(m map[int]Matrix2x2) {
		for k := range m {
			delete(m, k)
		}
	})
}

// Dense expands the payload table into a dense array of length
// 2^len(Controls), filling missing keys with the identity matrix. This is
// the shape the uniformly-controlled kernel needs (spec §9: "callers expand
// it densely into 4*2^|controls| for the uniform kernel").
func (g *Gate) Dense() []Matrix2x2 {
	n := 1 << len(g.Controls)
	out := make([]Matrix2x2, n)
	for i := range out {
		out[i] = Identity2x2
	}
	for k, v := range g.pt.m {
		out[k] = v
	}
	return out
}

// mulMatrix2x2 multiplies a*b (row-major 2x2).
func mulMatrix2x2(a, b Matrix2x2) Matrix2x2 {
	return Matrix2x2{
		{
			a[0][0]*b[0][0] + a[0][1]*b[1][0],
			a[0][0]*b[0][1] + a[0][1]*b[1][1],
		},
		{
			a[1][0]*b[0][0] + a[1][1]*b[1][0],
			a[1][0]*b[0][1] + a[1][1]*b[1][1],
		},
	}
}

// CanCombine reports whether g and h are fusible: either both are
// swap-shaped over the same qubit pair (disabled by default, see
// circuit.EnableSwapFusion), or they share the same target and control set.
func (g *Gate) CanCombine(h *Gate, swapFusion bool) bool {
	if g.IsSwap() && h.IsSwap() {
		if !swapFusion {
			return false
		}
		ga, gb := g.SwapQubits()
		ha, hb := h.SwapQubits()
		return (ga == ha && gb == hb) || (ga == hb && gb == ha)
	}
	if g.Target != h.Target {
		return false
	}
	return sameQubitSet(g.Controls, h.Controls)
}

func sameQubitSet(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	as, bs := slices.Clone(a), slices.Clone(b)
	slices.Sort(as)
	slices.Sort(bs)
	return slices.Equal(as, bs)
}

// TryCombine fuses h into g in place (g := g followed by h, i.e. h*g per
// control pattern) and reports whether the result collapsed to identity.
// Precondition: g.CanCombine(h, swapFusion) is true. Swap+swap fusion
// collapses to identity directly; matching-target/control fusion multiplies
// payloads per pattern key and zero-tests the product against identity.
func (g *Gate) TryCombine(h *Gate, eps float64) (collapsedToIdentity bool) {
	if g.IsSwap() && h.IsSwap() {
		g.Clear()
		return true
	}

	dg := g.Dense()
	dh := h.Dense()
	n := len(dg)
	fused := make(map[int]Matrix2x2, n)
	for i := 0; i < n; i++ {
		m := mulMatrix2x2(dh[i], dg[i])
		if !matrixIsIdentity(m, eps) {
			fused[i] = m
		}
	}
	g.mutate(func(dst map[int]Matrix2x2) {
		for k := range dst {
			delete(dst, k)
		}
		for k, v := range fused {
			dst[k] = v
		}
	})
	return len(fused) == 0
}

// Eq reports approximate equality of two gates' payload tables, used by
// tests. It does not compare Target/Controls.
func (g *Gate) Eq(h *Gate, eps float64) bool {
	gk, hk := g.PayloadKeys(), h.PayloadKeys()
	if len(gk) != len(hk) {
		return false
	}
	for _, k := range gk {
		gm, _ := g.Payload(k)
		hm, ok := h.Payload(k)
		if !ok {
			return false
		}
		for r := 0; r < 2; r++ {
			for c := 0; c < 2; c++ {
				if !closeTo(gm[r][c], hm[r][c], eps) {
					return false
				}
			}
		}
	}
	return true
}
