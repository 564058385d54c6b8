// Package engine implements the Amplitude Engine: a dense complex
// state-vector over 2^N basis states with gate application, measurement,
// and partial-trace/tensor-product composition. It is the leaf the circuit
// and tensor-network layers replay onto.
package engine

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/theapemachine/errnie"

	"github.com/jpacold/qrack/amp"
	"github.com/jpacold/qrack/internal/envcfg"
	"github.com/jpacold/qrack/internal/parfor"
	"github.com/jpacold/qrack/internal/qrand"
	"github.com/jpacold/qrack/internal/tol"
	"github.com/jpacold/qrack/qerr"
)

// Matrix2x2 is the engine-local 2x2 complex matrix shape. Kept distinct from
// gate.Matrix2x2 so this package never imports gate (circuit converts
// between the two at the boundary).
type Matrix2x2 [2][2]complex128

// Config carries the environment-backed knobs spec §6 lists on the engine
// constructor, plus the amplitude floor every identity/phase/normalize test
// uses.
type Config struct {
	MaxQubits  int
	NormThresh float64
	Eps        float64
}

// NewConfig reads QRACK_MAX_CPU_QB via internal/envcfg, matching
// qpool.NewConfig()'s named-field-struct-with-constructor shape.
func NewConfig() Config {
	return Config{
		MaxQubits:  envcfg.MaxCPUQubits(),
		NormThresh: 0,
		Eps:        tol.Eps,
	}
}

// normUnset is the "unspecified" sentinel for the nrm/threshold parameters
// that spec's C++ origin passes as REAL1_DEFAULT_ARG (a negative value,
// since norms and thresholds are never negative in this engine).
const normUnset = -1

// Engine is the mutable state-vector register. A nil store is the
// zero-amplitude sentinel (spec §3/§9): the identically-zero vector held
// without allocation.
type Engine struct {
	cfg                  Config
	n                    int
	m                    int
	store                *amp.Store
	runningNorm          float64 // NaN = stale/unknown
	doNormalize          bool
	randomizeGlobalPhase bool
	rng                  *qrand.Source
}

// New constructs an Engine of qubitCount qubits, failing with qerr.Capacity
// if qubitCount exceeds cfg.MaxQubits. qubitCount == 0 yields the
// zero-amplitude engine (spec §6). phaseFac == 0 means "unspecified": a
// uniform random phase is drawn when randomizeGlobalPhase is set, else 1.
func New(cfg Config, qubitCount, initPerm int, rng *qrand.Source, phaseFac complex128, doNormalize, randomizeGlobalPhase bool) (*Engine, error) {
	if qubitCount > cfg.MaxQubits {
		return nil, fmt.Errorf("engine: %d qubits exceeds configured maximum %d: %w", qubitCount, cfg.MaxQubits, qerr.Capacity)
	}

	e := &Engine{
		cfg:                  cfg,
		n:                    qubitCount,
		m:                    1 << qubitCount,
		runningNorm:          0,
		doNormalize:          doNormalize,
		randomizeGlobalPhase: randomizeGlobalPhase,
		rng:                  rng,
	}

	if qubitCount == 0 {
		errnie.Info("engine.New - zero-amplitude engine")
		return e, nil
	}

	if err := e.SetPermutation(initPerm, phaseFac); err != nil {
		return nil, err
	}

	errnie.Info("engine.New - qubits %d, initPerm %d", qubitCount, initPerm)
	return e, nil
}

// Clone returns an independent deep copy, used by the façade to fold a
// materialized state back in as a new baseline (e.g. after an operation,
// like FSim, that has no circuit-layer representation).
func (e *Engine) Clone() *Engine {
	return &Engine{
		cfg:                  e.cfg,
		n:                    e.n,
		m:                    e.m,
		store:                e.store.Clone(),
		runningNorm:          e.runningNorm,
		doNormalize:          e.doNormalize,
		randomizeGlobalPhase: e.randomizeGlobalPhase,
		rng:                  e.rng,
	}
}

// QubitCount returns N.
func (e *Engine) QubitCount() int { return e.n }

// MaxPower returns M = 2^N.
func (e *Engine) MaxPower() int { return e.m }

// IsZeroState reports whether the engine's store is the absent sentinel.
func (e *Engine) IsZeroState() bool { return e.store == nil }

func (e *Engine) checkPerm(p int) error {
	if p < 0 || p >= e.m {
		return fmt.Errorf("engine: permutation %d out of range for %d qubits: %w", p, e.n, qerr.OutOfRange)
	}
	return nil
}

func (e *Engine) checkQubit(q int) error {
	if q < 0 || q >= e.n {
		return fmt.Errorf("engine: qubit %d out of range for %d qubits: %w", q, e.n, qerr.OutOfRange)
	}
	return nil
}

func abs2(c complex128) float64 {
	re, im := real(c), imag(c)
	return re*re + im*im
}

// SetPermutation resets the engine to basis state |p>. phase == 0 means
// "unspecified": a uniform random phase is drawn when randomizeGlobalPhase
// is on, else the amplitude is 1.
func (e *Engine) SetPermutation(p int, phase complex128) error {
	if err := e.checkPerm(p); err != nil {
		return err
	}
	if e.m == 0 {
		return nil
	}
	if e.store == nil {
		e.store = amp.NewStore(e.m)
	} else {
		e.store.Clear()
	}

	ph := phase
	if ph == 0 {
		if e.randomizeGlobalPhase {
			ph = cmplx.Rect(1, 2*math.Pi*e.rng.Float64())
		} else {
			ph = 1
		}
	}
	e.store.Write(p, ph)
	e.runningNorm = 1
	return nil
}

// GetAmplitude returns the amplitude at permutation p.
func (e *Engine) GetAmplitude(p int) (complex128, error) {
	if err := e.checkPerm(p); err != nil {
		return 0, err
	}
	if e.store == nil {
		return 0, nil
	}
	return e.store.Read(p), nil
}

// SetAmplitude writes the amplitude at permutation p, updating the running
// norm by the delta in |c|^2 when the running norm is currently known.
func (e *Engine) SetAmplitude(p int, c complex128) error {
	if err := e.checkPerm(p); err != nil {
		return err
	}
	if e.store == nil {
		if c == 0 {
			return nil
		}
		e.store = amp.NewStore(e.m)
	}
	old := e.store.Read(p)
	if !math.IsNaN(e.runningNorm) {
		e.runningNorm += abs2(c) - abs2(old)
	}
	e.store.Write(p, c)
	return nil
}

// GetQuantumState bulk-copies amplitudes into out, which must have length M.
func (e *Engine) GetQuantumState(out []complex128) error {
	if len(out) != e.m {
		return fmt.Errorf("engine: GetQuantumState expects length %d, got %d: %w", e.m, len(out), qerr.ShapeMismatch)
	}
	if e.store == nil {
		for i := range out {
			out[i] = 0
		}
		return nil
	}
	e.store.CopyOut(out)
	return nil
}

// SetQuantumState overwrites the amplitude vector from in, which must have
// length M. The running norm becomes stale (recomputed on demand) since an
// arbitrary bulk overwrite need not be unitary.
func (e *Engine) SetQuantumState(in []complex128) error {
	if len(in) != e.m {
		return fmt.Errorf("engine: SetQuantumState expects length %d, got %d: %w", e.m, len(in), qerr.ShapeMismatch)
	}
	if e.store == nil {
		e.store = amp.NewStore(e.m)
	}
	e.store.CopyIn(in)
	e.runningNorm = math.NaN()
	return nil
}

// GetProbs bulk-copies |amplitude|^2 into out, which must have length M.
func (e *Engine) GetProbs(out []float64) error {
	if len(out) != e.m {
		return fmt.Errorf("engine: GetProbs expects length %d, got %d: %w", e.m, len(out), qerr.ShapeMismatch)
	}
	if e.store == nil {
		for i := range out {
			out[i] = 0
		}
		return nil
	}
	for i := range out {
		out[i] = abs2(e.store.Read(i))
	}
	return nil
}

// Apply2x2 is the universal gate kernel (spec §4.1). qpowsSorted lists the
// bit powers that stay fixed across the sweep (the controls plus the
// target's own bit); offset1/offset2 are the two base indices the fixed
// bits contribute once the skipped positions are re-inserted. The diagonal
// and anti-diagonal specializations are bit-for-bit distinct code paths so
// the zero multiplies they would otherwise do are never executed.
func (e *Engine) Apply2x2(offset1, offset2 int, mat Matrix2x2, qpowsSorted []int, doCalcNorm bool, normThresh float64) error {
	if e.store == nil {
		return nil
	}

	diagonal := mat[0][1] == 0 && mat[1][0] == 0
	antiDiagonal := mat[0][0] == 0 && mat[1][1] == 0

	n := e.m >> len(qpowsSorted)
	workers := parfor.Workers()
	norms := make([]float64, workers)

	// Only a single-qubit gate sweeps the whole vector; a controlled sweep
	// covers one control subspace and neither rescales nor re-sums the norm.
	singleQubit := len(qpowsSorted) == 1
	doCalcNorm = doCalcNorm && singleQubit
	applyNorm := singleQubit && e.doNormalize && !math.IsNaN(e.runningNorm) && e.runningNorm > 0
	var invNorm float64
	if applyNorm {
		invNorm = 1 / math.Sqrt(e.runningNorm)
	}

	parfor.RangeMasked(n, qpowsSorted, func(workerID, _, idx int) {
		i1, i2 := idx+offset1, idx+offset2
		a, b := e.store.Read2(i1, i2)

		var na, nb complex128
		switch {
		case diagonal:
			na = mat[0][0] * a
			nb = mat[1][1] * b
		case antiDiagonal:
			na = mat[0][1] * b
			nb = mat[1][0] * a
		default:
			na = mat[0][0]*a + mat[0][1]*b
			nb = mat[1][0]*a + mat[1][1]*b
		}

		if applyNorm {
			na *= complex(invNorm, 0)
			nb *= complex(invNorm, 0)
		}

		if doCalcNorm {
			if normThresh > 0 {
				if abs2(na) < normThresh {
					na = 0
				}
				if abs2(nb) < normThresh {
					nb = 0
				}
			}
			norms[workerID] += abs2(na) + abs2(nb)
		}

		e.store.Write2(i1, i2, na, nb)
	})

	if doCalcNorm {
		var total float64
		for _, v := range norms {
			total += v
		}
		e.runningNorm = total
		if e.runningNorm <= e.cfg.Eps {
			e.store = nil
			e.runningNorm = 0
		}
	}

	return nil
}
