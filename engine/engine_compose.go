package engine

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/jpacold/qrack/amp"
	"github.com/jpacold/qrack/internal/parfor"
	"github.com/jpacold/qrack/qerr"
)

// Compose extends e by appending other's qubits above e's (a Kronecker
// product), returning the qubit index other's qubit 0 now occupies.
func (e *Engine) Compose(other *Engine) (int, error) {
	return e.ComposeAt(other, e.n)
}

// ComposeAt inserts other's qubits starting at bit index start (start may
// equal e.n, the Compose-at-end case), returning start. When other is nil or
// has no qubits, nothing is inserted and e.n is returned.
func (e *Engine) ComposeAt(other *Engine, start int) (int, error) {
	if other == nil || other.n == 0 {
		return e.n, nil
	}
	if start < 0 || start > e.n {
		return 0, fmt.Errorf("engine: ComposeAt start %d out of range for %d qubits: %w", start, e.n, qerr.OutOfRange)
	}

	nq := e.n + other.n
	if nq > e.cfg.MaxQubits {
		return 0, fmt.Errorf("engine: compose to %d qubits exceeds configured maximum %d: %w", nq, e.cfg.MaxQubits, qerr.Capacity)
	}

	if e.n == 0 {
		e.n, e.m = other.n, other.m
		e.runningNorm = other.runningNorm
		e.store = other.store.Clone()
		return 0, nil
	}

	oldN := e.n
	oN := other.n
	nm := 1 << nq

	if e.doNormalize {
		if err := e.NormalizeState(normUnset, normUnset, 0); err != nil {
			return 0, err
		}
	}
	if other.doNormalize && other.runningNorm != 1 {
		if err := other.NormalizeState(normUnset, normUnset, 0); err != nil {
			return 0, err
		}
	}

	if e.store == nil || other.store == nil {
		e.store = nil
		e.n, e.m = nq, nm
		e.runningNorm = 0
		return start, nil
	}

	out := amp.NewStore(nm)
	if start == oldN {
		startMask := e.m - 1
		parfor.Range(nm, func(_, begin, end int) {
			for lcv := begin; lcv < end; lcv++ {
				a := e.store.Read(lcv & startMask)
				b := other.store.Read((lcv &^ startMask) >> oldN)
				out.Write(lcv, a*b)
			}
		})
	} else {
		startMask := (1 << start) - 1
		midMask := ((1 << oN) - 1) << start
		endMask := (nm - 1) &^ (startMask | midMask)
		parfor.Range(nm, func(_, begin, end int) {
			for lcv := begin; lcv < end; lcv++ {
				a := e.store.Read((lcv & startMask) | ((lcv & endMask) >> oN))
				b := other.store.Read((lcv & midMask) >> start)
				out.Write(lcv, a*b)
			}
		})
	}

	e.store = out
	e.n, e.m = nq, nm
	e.runningNorm = 1
	return start, nil
}

// ComposeMany composes each engine in others onto the end of e in order,
// returning the qubit offset each was placed at.
func (e *Engine) ComposeMany(others []*Engine) ([]int, error) {
	offsets := make([]int, len(others))
	for i, o := range others {
		off, err := e.Compose(o)
		if err != nil {
			return nil, err
		}
		offsets[i] = off
	}
	return offsets, nil
}

func interleave(start, length, r, k int) int {
	lowMask := (1 << start) - 1
	low := r & lowMask
	upper := r >> start
	return low | (k << start) | (upper << (start + length))
}

// Decompose removes qubits [start, start+length) from e via a Schmidt-rank-1
// probability-weighted angle-averaging projection (spec §4.1). dest, if
// non-nil, must already be allocated to exactly length qubits in the |0>
// permutation and receives the traced-out marginal. This is exact only when
// the traced subsystem is separable; otherwise residual entanglement is
// silently discarded, per spec's documented precondition.
func (e *Engine) Decompose(start, length int, dest *Engine) error {
	for q := start; q < start+length; q++ {
		if err := e.checkQubit(q); err != nil {
			return err
		}
	}
	if length == 0 {
		return nil
	}
	if dest != nil && dest.n != length {
		return fmt.Errorf("engine: Decompose destination has %d qubits, need %d: %w", dest.n, length, qerr.ShapeMismatch)
	}

	nRem := e.n - length
	if e.store == nil {
		e.n, e.m = nRem, 1<<nRem
		e.runningNorm = 0
		if dest != nil {
			dest.store = nil
			dest.runningNorm = 0
		}
		return nil
	}

	numPart := 1 << length
	numRem := 1 << nRem

	probR := make([]float64, numRem)
	angleR := make([]float64, numRem)
	probK := make([]float64, numPart)
	angleK := make([]float64, numPart)

	for r := 0; r < numRem; r++ {
		for k := 0; k < numPart; k++ {
			a := e.store.Read(interleave(start, length, r, k))
			p := abs2(a)
			probR[r] += p
			angleR[r] += p * cmplx.Phase(a)
			probK[k] += p
			angleK[k] += p * cmplx.Phase(a)
		}
	}

	remStore := amp.NewStore(numRem)
	var remNorm float64
	for r := 0; r < numRem; r++ {
		if probR[r] > e.cfg.Eps {
			angleR[r] /= probR[r]
		}
		remStore.Write(r, cmplx.Rect(math.Sqrt(probR[r]), angleR[r]))
		remNorm += probR[r]
	}

	if dest != nil {
		partStore := amp.NewStore(numPart)
		for k := 0; k < numPart; k++ {
			if probK[k] > e.cfg.Eps {
				angleK[k] /= probK[k]
			}
			partStore.Write(k, cmplx.Rect(math.Sqrt(probK[k]), angleK[k]))
		}
		dest.store = partStore
		dest.runningNorm = 1
	}

	e.store = remStore
	e.n, e.m = nRem, numRem
	e.runningNorm = remNorm
	return nil
}

// Dispose removes qubits [start, start+length) from e, keeping only the
// amplitudes consistent with perm on the disposed qubits (a sharp
// projection, not a trace). The running norm is left stale since this does
// not renormalize (spec §4.1: "subsequent gates assume running-norm is
// stale and recompute on demand").
func (e *Engine) Dispose(start, length, perm int) error {
	for q := start; q < start+length; q++ {
		if err := e.checkQubit(q); err != nil {
			return err
		}
	}
	if length == 0 {
		return nil
	}

	nRem := e.n - length
	numRem := 1 << nRem

	if e.store == nil {
		e.n, e.m = nRem, numRem
		e.runningNorm = 0
		return nil
	}

	out := amp.NewStore(numRem)
	for r := 0; r < numRem; r++ {
		out.Write(r, e.store.Read(interleave(start, length, r, perm)))
	}

	e.store = out
	e.n, e.m = nRem, numRem
	e.runningNorm = math.NaN()
	return nil
}
