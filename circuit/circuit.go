// Package circuit implements the Circuit layer: an ordered list of gate
// records that performs local commutation/fusion optimization on insertion
// and later replays itself onto an engine. See spec §4.2.
package circuit

import (
	"github.com/jpacold/qrack/engine"
	"github.com/jpacold/qrack/gate"
	"github.com/jpacold/qrack/internal/tol"
)

// EnableSwapFusion toggles whether two swap gates over the same qubit pair
// fuse to identity on Append. Disabled by default, matching the reference
// (spec §9 Open Question: "intentionally disabled... commented out").
var EnableSwapFusion = false

// Circuit is an ordered gate list. N is 1 + the highest qubit index any
// gate has ever referenced.
type Circuit struct {
	N     int
	Gates []*gate.Gate
}

// New returns an empty circuit.
func New() *Circuit {
	return &Circuit{}
}

// Clone duplicates the gate list (sharing payload tables via gate.Clone,
// so later fusion on either circuit clone-on-writes).
func (c *Circuit) Clone() *Circuit {
	out := &Circuit{N: c.N, Gates: make([]*gate.Gate, len(c.Gates))}
	for i, g := range c.Gates {
		out.Gates[i] = g.Clone()
	}
	return out
}

func (c *Circuit) touch(qubits ...int) {
	for _, q := range qubits {
		if q+1 > c.N {
			c.N = q + 1
		}
	}
}

// Append inserts g, applying identity-drop and the commute-and-fuse sweep
// described in spec §4.2. When g lands in the list the circuit stores g
// itself, not a copy, so later changes the caller makes to g show in the
// circuit. When g fuses into an earlier gate, that gate's payload table is
// rewritten (copied first if a clone shares it) and g is not kept.
func (c *Circuit) Append(g *gate.Gate) {
	c.touch(g.QubitSet()...)

	if g.IsIdentity(tol.Eps) {
		return
	}

	for i := len(c.Gates) - 1; i >= 0; i-- {
		h := c.Gates[i]
		if !commutes(g, h) {
			break
		}
		if g.CanCombine(h, EnableSwapFusion) {
			collapsed := h.TryCombine(g, tol.Eps)
			if collapsed {
				c.Gates = append(c.Gates[:i], c.Gates[i+1:]...)
			}
			return
		}
	}

	c.Gates = append(c.Gates, g)
}

// commutes reports whether g commutes past h (spec §4.2's three rules).
func commutes(g, h *gate.Gate) bool {
	if disjoint(g.QubitSet(), h.QubitSet()) {
		return true
	}
	if g.IsSwap() || h.IsSwap() {
		if !g.IsSwap() || !h.IsSwap() {
			return false
		}
		ga, gb := g.SwapQubits()
		ha, hb := h.SwapQubits()
		return (ga == ha && gb == hb) || (ga == hb && gb == ha)
	}
	if g.Target == h.Target && g.IsPhaseOnlyOn(tol.Eps) && h.IsPhaseOnlyOn(tol.Eps) {
		return true
	}
	if contains(h.Controls, g.Target) && g.IsPhaseOnlyOn(tol.Eps) {
		return true
	}
	if contains(g.Controls, h.Target) && h.IsPhaseOnlyOn(tol.Eps) {
		return true
	}
	return false
}

func disjoint(a, b []int) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return false
			}
		}
	}
	return true
}

func contains(s []int, v int) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

// Run replays the circuit's gate list onto e, dispatching each gate record
// to the matching engine primitive per spec §4.2: single-qubit payload ->
// Mtrx, controlled payload at the full-ones pattern -> McMtrx, at the
// zero pattern -> MacMtrx, mixed keys -> UniformlyControlledSingleBit.
func (c *Circuit) Run(e *engine.Engine) error {
	for _, g := range c.Gates {
		if err := runGate(e, g); err != nil {
			return err
		}
	}
	return nil
}

func runGate(e *engine.Engine, g *gate.Gate) error {
	switch {
	case g.IsSwap():
		a, b := g.SwapQubits()
		return e.Swap(a, b)
	case g.IsSingleQubit():
		m, ok := g.Payload(0)
		if !ok {
			return nil // empty-payload-non-swap is identity (spec §3)
		}
		return e.Mtrx(toEngineMatrix(m), g.Target)
	case len(g.PayloadKeys()) == 1:
		keys := g.PayloadKeys()
		key := keys[0]
		full := (1 << len(g.Controls)) - 1
		m, _ := g.Payload(key)
		switch key {
		case full:
			return e.McMtrx(toEngineMatrix(m), g.Controls, g.Target)
		case 0:
			return e.MacMtrx(toEngineMatrix(m), g.Controls, g.Target)
		default:
			return e.UniformlyControlledSingleBit(g.Controls, g.Target, denseToEngine(g.Dense()))
		}
	default:
		return e.UniformlyControlledSingleBit(g.Controls, g.Target, denseToEngine(g.Dense()))
	}
}

func toEngineMatrix(m gate.Matrix2x2) engine.Matrix2x2 {
	return engine.Matrix2x2{{m[0][0], m[0][1]}, {m[1][0], m[1][1]}}
}

func denseToEngine(d []gate.Matrix2x2) []engine.Matrix2x2 {
	out := make([]engine.Matrix2x2, len(d))
	for i, m := range d {
		out[i] = toEngineMatrix(m)
	}
	return out
}
