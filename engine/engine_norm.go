package engine

import (
	"math"
	"math/cmplx"

	"github.com/jpacold/qrack/internal/parfor"
)

// UpdateRunningNorm recomputes the running norm from the amplitude vector,
// clamping any component whose squared magnitude falls below threshold
// (normUnset selects cfg.NormThresh). A total norm at or below the floor ε
// collapses the engine to the zero-state sentinel.
func (e *Engine) UpdateRunningNorm(threshold float64) error {
	if e.store == nil {
		e.runningNorm = 0
		return nil
	}
	thresh := threshold
	if thresh < 0 {
		thresh = e.cfg.NormThresh
	}

	workers := parfor.Workers()
	sums := make([]float64, workers)
	parfor.Range(e.m, func(workerID, begin, end int) {
		var sum float64
		for i := begin; i < end; i++ {
			v := e.store.Read(i)
			if thresh > 0 && abs2(v) < thresh {
				e.store.Write(i, 0)
				continue
			}
			sum += abs2(v)
		}
		sums[workerID] += sum
	})
	var total float64
	for _, v := range sums {
		total += v
	}
	e.runningNorm = total
	if e.runningNorm <= e.cfg.Eps {
		e.store = nil
		e.runningNorm = 0
	}
	return nil
}

// NormalizeState rescales every amplitude so the running norm becomes 1,
// optionally pinning a global phase. nrm < 0 means "use the running norm",
// recomputing it first if it is stale; threshold < 0 means "use cfg.NormThresh".
func (e *Engine) NormalizeState(nrm, threshold, phaseArg float64) error {
	if e.store == nil {
		return nil
	}

	if math.IsNaN(e.runningNorm) && nrm < 0 {
		if err := e.UpdateRunningNorm(normUnset); err != nil {
			return err
		}
	}

	n := nrm
	if n < 0 {
		n = e.runningNorm
	}
	if n <= e.cfg.Eps {
		e.store = nil
		e.runningNorm = 0
		return nil
	}
	if math.Abs(1-n) <= e.cfg.Eps && phaseArg*phaseArg <= e.cfg.Eps {
		return nil
	}

	thresh := threshold
	if thresh < 0 {
		thresh = e.cfg.NormThresh
	}

	inv := 1 / math.Sqrt(n)
	cNrm := cmplx.Rect(inv, phaseArg)

	parfor.Range(e.m, func(_, begin, end int) {
		for i := begin; i < end; i++ {
			v := e.store.Read(i)
			if thresh > 0 && abs2(v) < thresh {
				v = 0
			}
			e.store.Write(i, cNrm*v)
		}
	})

	e.runningNorm = 1
	return nil
}
