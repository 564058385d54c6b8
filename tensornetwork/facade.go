// Package tensornetwork implements the Deferred Tensor-Network Front-End: a
// façade that buffers gate submissions into per-measurement-layer circuits,
// dispatches them on a single-consumer worker, and materializes the state
// vector lazily.
package tensornetwork

import (
	"fmt"

	"github.com/theapemachine/errnie"

	"github.com/jpacold/qrack/circuit"
	"github.com/jpacold/qrack/engine"
	"github.com/jpacold/qrack/gate"
	"github.com/jpacold/qrack/internal/qrand"
	"github.com/jpacold/qrack/qerr"
)

// Facade is the tensor-network front-end. Circuits[i] holds gates that may
// depend on Measurements[0..i-1]'s recorded outcomes but none after;
// len(Measurements) == len(Circuits)-1 is the invariant spec §4.3 names.
type Facade struct {
	cfg                  Config
	n                    int
	rng                  *qrand.Source
	doNormalize          bool
	randomizeGlobalPhase bool

	dq *dispatchQueue

	circuits     []*circuit.Circuit
	measurements []map[int]bool

	// base is the materialized starting point for the next layer stack
	// build; nil means "start from |0...0>". Gate submissions never touch
	// it; only a hard-boundary operation (FSim, which has no circuit-layer
	// representation) folds a materialized engine back in here.
	base *engine.Engine

	layerStack *engine.Engine
}

// New constructs a façade over qubitCount qubits.
func New(cfg Config, qubitCount int, rng *qrand.Source, doNormalize, randomizeGlobalPhase bool) (*Facade, error) {
	if qubitCount > cfg.Engine.MaxQubits {
		return nil, fmt.Errorf("tensornetwork: %d qubits exceeds configured maximum %d: %w", qubitCount, cfg.Engine.MaxQubits, qerr.Capacity)
	}
	f := &Facade{
		cfg:                  cfg,
		n:                    qubitCount,
		rng:                  rng,
		doNormalize:          doNormalize,
		randomizeGlobalPhase: randomizeGlobalPhase,
		dq:                   newDispatchQueue(),
		circuits:             []*circuit.Circuit{circuit.New()},
	}
	errnie.Info("tensornetwork.New - qubits %d", qubitCount)
	return f, nil
}

// QubitCount returns N.
func (f *Facade) QubitCount() int { return f.n }

// GetMeasurementCount finishes the queue and returns the number of recorded
// measurement layers.
func (f *Facade) GetMeasurementCount() int {
	f.dq.Finish()
	return len(f.measurements)
}

// LayerCount finishes the queue and returns the number of circuit layers.
func (f *Facade) LayerCount() int {
	f.dq.Finish()
	return len(f.circuits)
}

// Clone finishes the queue and deep-clones the circuit/measurement lists
// (and the materialized cache, if any) into a new façade with its own
// dispatch queue.
func (f *Facade) Clone() *Facade {
	f.dq.Finish()
	nf := &Facade{
		cfg:                  f.cfg,
		n:                    f.n,
		rng:                  f.rng,
		doNormalize:          f.doNormalize,
		randomizeGlobalPhase: f.randomizeGlobalPhase,
		dq:                   newDispatchQueue(),
	}
	nf.circuits = make([]*circuit.Circuit, len(f.circuits))
	for i, c := range f.circuits {
		nf.circuits[i] = c.Clone()
	}
	nf.measurements = make([]map[int]bool, len(f.measurements))
	for i, m := range f.measurements {
		cp := make(map[int]bool, len(m))
		for k, v := range m {
			cp[k] = v
		}
		nf.measurements[i] = cp
	}
	if f.base != nil {
		nf.base = f.base.Clone()
	}
	if f.layerStack != nil {
		nf.layerStack = f.layerStack.Clone()
	}
	return nf
}

func (f *Facade) checkQubit(q int) error {
	if q < 0 || q >= f.n {
		return fmt.Errorf("tensornetwork: qubit %d out of range for %d qubits: %w", q, f.n, qerr.OutOfRange)
	}
	return nil
}

// routeLayer implements spec §4.3's append policy: walk measurement
// records newest to oldest; the newest one touching target or any control
// routes the gate one layer past it. No match routes to layer 0. Only the
// consumer goroutine ever calls this.
func (f *Facade) routeLayer(target int, controls []int) int {
	for i := len(f.measurements) - 1; i >= 0; i-- {
		if f.measurements[i][target] {
			return i + 1
		}
		for _, c := range controls {
			if f.measurements[i][c] {
				return i + 1
			}
		}
	}
	return 0
}

func (f *Facade) ensureLayer(idx int) {
	for len(f.circuits) <= idx {
		f.circuits = append(f.circuits, circuit.New())
	}
}

func (f *Facade) routeAndAppend(g *gate.Gate) {
	idx := f.routeLayer(g.Target, g.Controls)
	f.ensureLayer(idx)
	f.circuits[idx].Append(g)
}

// submitGate validates synchronously (spec §9: validation happens on the
// submitting thread, never inside a dispatched closure) and enqueues the
// routing+append as a single consumer-thread closure.
func (f *Facade) submitGate(target int, controls []int, payloads map[int]gate.Matrix2x2) error {
	if err := f.checkQubit(target); err != nil {
		return err
	}
	for _, c := range controls {
		if err := f.checkQubit(c); err != nil {
			return err
		}
		if c == target {
			return gate.ErrControlIsTarget
		}
	}
	g, err := gate.New(target, controls, payloads)
	if err != nil {
		return err
	}
	f.layerStack = nil
	f.dq.submit(func() { f.routeAndAppend(g) })
	return nil
}

// Mtrx submits a single-qubit gate.
func (f *Facade) Mtrx(m gate.Matrix2x2, target int) error {
	return f.submitGate(target, nil, map[int]gate.Matrix2x2{0: m})
}

// McMtrx submits m controlled on every qubit in controls reading 1.
func (f *Facade) McMtrx(m gate.Matrix2x2, controls []int, target int) error {
	full := (1 << len(controls)) - 1
	return f.submitGate(target, controls, map[int]gate.Matrix2x2{full: m})
}

// MacMtrx submits m controlled on every qubit in controls reading 0.
func (f *Facade) MacMtrx(m gate.Matrix2x2, controls []int, target int) error {
	return f.submitGate(target, controls, map[int]gate.Matrix2x2{0: m})
}

// McPhase submits the diagonal shortcut diag(topLeft, bottomRight).
func (f *Facade) McPhase(controls []int, topLeft, bottomRight complex128, target int) error {
	return f.McMtrx(gate.Matrix2x2{{topLeft, 0}, {0, bottomRight}}, controls, target)
}

// MacPhase is McPhase's anti-control counterpart.
func (f *Facade) MacPhase(controls []int, topLeft, bottomRight complex128, target int) error {
	return f.MacMtrx(gate.Matrix2x2{{topLeft, 0}, {0, bottomRight}}, controls, target)
}

// McInvert submits the anti-diagonal shortcut [[0,topRight],[bottomLeft,0]].
func (f *Facade) McInvert(controls []int, topRight, bottomLeft complex128, target int) error {
	return f.McMtrx(gate.Matrix2x2{{0, topRight}, {bottomLeft, 0}}, controls, target)
}

// MacInvert is McInvert's anti-control counterpart.
func (f *Facade) MacInvert(controls []int, topRight, bottomLeft complex128, target int) error {
	return f.MacMtrx(gate.Matrix2x2{{0, topRight}, {bottomLeft, 0}}, controls, target)
}

// Swap submits a swap gate, the Gate Record's third first-class shape.
func (f *Facade) Swap(a, b int) error {
	if err := f.checkQubit(a); err != nil {
		return err
	}
	if err := f.checkQubit(b); err != nil {
		return err
	}
	g := gate.Swap(a, b)
	f.layerStack = nil
	f.dq.submit(func() { f.routeAndAppend(g) })
	return nil
}

// FSim submits the fermionic-simulation gate. Unlike every other
// gate-submission method, FSim has no representation in the Gate Record
// model (it mixes amplitudes across control patterns, which single-target/
// uniformly-controlled payloads cannot express), so it is a hard
// materialization boundary: it finishes the queue, materializes, applies
// engine.FSim directly to the live engine, and folds the result back in as
// the new baseline for future materialization.
func (f *Facade) FSim(theta, phi float64, q1, q2 int) error {
	if err := f.checkQubit(q1); err != nil {
		return err
	}
	if err := f.checkQubit(q2); err != nil {
		return err
	}

	var ferr error
	f.dq.submit(func() {
		if err := f.ensureMaterialized(); err != nil {
			ferr = err
			return
		}
		if err := f.layerStack.FSim(theta, phi, q1, q2); err != nil {
			ferr = err
			return
		}
		f.base = f.layerStack.Clone()
		f.circuits = []*circuit.Circuit{circuit.New()}
		f.measurements = nil
	})
	f.dq.Finish()
	return ferr
}

// SetQuantumState is not implemented on the façade, matching the
// reference's documented behavior (spec §9 Open Question).
func (f *Facade) SetQuantumState(in []complex128) error {
	return fmt.Errorf("tensornetwork: SetQuantumState: %w", qerr.NotImplemented)
}

// SetPermutation clears all circuits and measurements and records the base
// permutation as X gates on the needed qubits in layer 0, optionally
// followed by a global phase gate.
func (f *Facade) SetPermutation(p int, phase complex128) error {
	if p < 0 || p >= (1<<f.n) {
		return fmt.Errorf("tensornetwork: permutation %d out of range for %d qubits: %w", p, f.n, qerr.OutOfRange)
	}
	f.layerStack = nil
	f.dq.submit(func() {
		f.base = nil
		f.measurements = nil
		f.circuits = []*circuit.Circuit{circuit.New()}
		for q := 0; q < f.n; q++ {
			if p&(1<<q) != 0 {
				f.circuits[0].Append(gate.Single(q, gate.Matrix2x2{{0, 1}, {1, 0}}))
			}
		}
		if phase != 0 && f.n > 0 {
			f.circuits[0].Append(gate.Single(0, gate.Matrix2x2{{phase, 0}, {0, phase}}))
		}
	})
	return nil
}

// makeLayerStack builds a fresh engine starting from base (or |0...0> if
// base is nil), replays every circuit layer in order, and applies each
// layer's recorded forced measurements before moving to the next (spec
// §4.3's materialization procedure).
func (f *Facade) makeLayerStack() (*engine.Engine, error) {
	var e *engine.Engine
	if f.base != nil {
		e = f.base.Clone()
	} else {
		var err error
		e, err = engine.New(f.cfg.Engine, f.n, 0, f.rng, 1, f.doNormalize, f.randomizeGlobalPhase)
		if err != nil {
			return nil, err
		}
	}

	for i, c := range f.circuits {
		if err := c.Run(e); err != nil {
			return nil, err
		}
		if i >= len(f.measurements) {
			continue
		}
		for q, v := range f.measurements[i] {
			if _, err := e.ForceM(q, v, true, true); err != nil {
				return nil, err
			}
		}
	}
	return e, nil
}

// ensureMaterialized lazily builds and caches the layer stack. Callers must
// hold the consumer goroutine's exclusive access (i.e. run inside a
// dispatched closure).
func (f *Facade) ensureMaterialized() error {
	if f.layerStack != nil {
		return nil
	}
	e, err := f.makeLayerStack()
	if err != nil {
		return err
	}
	f.layerStack = e
	return nil
}

// ForceM finishes the queue, materializes, force-measures qubit on the live
// engine, and records the outcome as a new measurement layer so later gate
// submissions route past it.
func (f *Facade) ForceM(qubit int, result bool, doForce, doApply bool) (bool, error) {
	if err := f.checkQubit(qubit); err != nil {
		return false, err
	}
	var (
		r    bool
		ferr error
	)
	f.dq.submit(func() {
		if err := f.ensureMaterialized(); err != nil {
			ferr = err
			return
		}
		r, ferr = f.layerStack.ForceM(qubit, result, doForce, doApply)
		if ferr != nil {
			return
		}
		f.measurements = append(f.measurements, map[int]bool{qubit: r})
		f.ensureLayer(len(f.measurements))
	})
	f.dq.Finish()
	return r, ferr
}

// MAll finishes the queue, materializes, measures every qubit, and records
// the full outcome as a new measurement layer.
func (f *Facade) MAll() (int, error) {
	var (
		perm int
		ferr error
	)
	f.dq.submit(func() {
		if err := f.ensureMaterialized(); err != nil {
			ferr = err
			return
		}
		perm, ferr = f.layerStack.MAll()
		if ferr != nil {
			return
		}
		layer := make(map[int]bool, f.n)
		for q := 0; q < f.n; q++ {
			layer[q] = perm&(1<<q) != 0
		}
		f.measurements = append(f.measurements, layer)
		f.ensureLayer(len(f.measurements))
	})
	f.dq.Finish()
	return perm, ferr
}

// Prob finishes the queue, materializes, and returns P(qubit == 1).
func (f *Facade) Prob(qubit int) (float64, error) {
	if err := f.checkQubit(qubit); err != nil {
		return 0, err
	}
	var (
		p    float64
		ferr error
	)
	f.dq.submit(func() {
		if err := f.ensureMaterialized(); err != nil {
			ferr = err
			return
		}
		p, ferr = f.layerStack.Prob(qubit)
	})
	f.dq.Finish()
	return p, ferr
}

// ProbAll finishes the queue, materializes, and returns P(register == p).
func (f *Facade) ProbAll(p int) (float64, error) {
	var (
		out  float64
		ferr error
	)
	f.dq.submit(func() {
		if err := f.ensureMaterialized(); err != nil {
			ferr = err
			return
		}
		out, ferr = f.layerStack.ProbAll(p)
	})
	f.dq.Finish()
	return out, ferr
}

// GetAmplitude finishes the queue, materializes, and returns the amplitude
// at permutation p.
func (f *Facade) GetAmplitude(p int) (complex128, error) {
	var (
		out  complex128
		ferr error
	)
	f.dq.submit(func() {
		if err := f.ensureMaterialized(); err != nil {
			ferr = err
			return
		}
		out, ferr = f.layerStack.GetAmplitude(p)
	})
	f.dq.Finish()
	return out, ferr
}

// MultiShotMeasureMask finishes the queue, materializes, and samples shots
// outcomes over the qubits named by qpowsSorted into out.
func (f *Facade) MultiShotMeasureMask(qpowsSorted []int, shots int, out []int) error {
	var ferr error
	f.dq.submit(func() {
		if err := f.ensureMaterialized(); err != nil {
			ferr = err
			return
		}
		ferr = f.layerStack.MultiShotMeasureMask(qpowsSorted, shots, out)
	})
	f.dq.Finish()
	return ferr
}

// SumSqrDiff finishes both queues, materializes both façades, and returns
// 1 - |<this|other>|^2.
func (f *Facade) SumSqrDiff(other *Facade) (float64, error) {
	other.dq.Finish()
	if err := other.ensureMaterializedLocked(); err != nil {
		return 0, err
	}
	var (
		out  float64
		ferr error
	)
	f.dq.submit(func() {
		if err := f.ensureMaterialized(); err != nil {
			ferr = err
			return
		}
		out, ferr = f.layerStack.SumSqrDiff(other.layerStack)
	})
	f.dq.Finish()
	return out, ferr
}

// ensureMaterializedLocked runs ensureMaterialized via the consumer
// goroutine, used when a caller needs another façade's cache populated
// before reading it directly from outside that façade's own closures.
func (f *Facade) ensureMaterializedLocked() error {
	var ferr error
	f.dq.submit(func() { ferr = f.ensureMaterialized() })
	f.dq.Finish()
	return ferr
}

// Allocate grows the register by length qubits, emitting swap gates to
// relocate existing qubits [start, old N) out of the newly inserted range
// when start is below the old qubit count.
func (f *Facade) Allocate(start, length int) error {
	if length == 0 {
		return nil
	}
	if start < 0 || start > f.n {
		return fmt.Errorf("tensornetwork: Allocate start %d out of range for %d qubits: %w", start, f.n, qerr.OutOfRange)
	}
	oldN := f.n
	f.n += length
	f.layerStack = nil
	f.dq.submit(func() {
		if f.base != nil {
			grown, err := engine.New(f.cfg.Engine, length, 0, f.rng, 1, f.doNormalize, f.randomizeGlobalPhase)
			if err == nil {
				f.base.Compose(grown)
			}
		}
		for i := oldN - 1; i >= start; i-- {
			f.routeAndAppend(gate.Swap(i, i+length))
		}
	})
	return nil
}
