package engine

import (
	"fmt"
	"math/bits"

	"github.com/jpacold/qrack/internal/parfor"
	"github.com/jpacold/qrack/qerr"
)

func clampProb(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// Prob returns the probability that qubit reads 1.
func (e *Engine) Prob(qubit int) (float64, error) {
	if err := e.checkQubit(qubit); err != nil {
		return 0, err
	}
	if e.doNormalize {
		if err := e.NormalizeState(normUnset, normUnset, 0); err != nil {
			return 0, err
		}
	}
	if e.store == nil {
		return 0, nil
	}

	qpow := 1 << qubit
	n := e.m >> 1
	workers := parfor.Workers()
	sums := make([]float64, workers)
	parfor.RangeMasked(n, []int{qpow}, func(workerID, _, idx int) {
		sums[workerID] += abs2(e.store.Read(idx | qpow))
	})
	var total float64
	for _, v := range sums {
		total += v
	}
	return clampProb(total), nil
}

// CtrlOrAntiProb returns the probability that target reads 1, conditioned
// on control reading controlState.
func (e *Engine) CtrlOrAntiProb(controlState bool, control, target int) (float64, error) {
	if err := e.checkQubit(control); err != nil {
		return 0, err
	}
	if e.store == nil {
		return 0, nil
	}
	controlProb, err := e.Prob(control)
	if err != nil {
		return 0, err
	}
	if !controlState {
		controlProb = 1 - controlProb
	}
	if controlProb <= e.cfg.Eps {
		return 0, nil
	}
	if 1-controlProb <= e.cfg.Eps {
		return e.Prob(target)
	}
	if err := e.checkQubit(target); err != nil {
		return 0, err
	}

	qControlPower := 1 << control
	qControlMask := 0
	if controlState {
		qControlMask = qControlPower
	}
	qPower := 1 << target

	workers := parfor.Workers()
	sums := make([]float64, workers)
	n := e.m >> 1
	parfor.RangeMasked(n, []int{qPower}, func(workerID, _, idx int) {
		if idx&qControlPower == qControlMask {
			sums[workerID] += abs2(e.store.Read(idx | qPower))
		}
	})
	var total float64
	for _, v := range sums {
		total += v
	}
	return clampProb(total / controlProb), nil
}

// ProbReg returns the probability that the length-qubit register starting
// at start holds permutation.
func (e *Engine) ProbReg(start, length, permutation int) (float64, error) {
	for q := start; q < start+length; q++ {
		if err := e.checkQubit(q); err != nil {
			return 0, err
		}
	}
	if e.store == nil {
		return 0, nil
	}
	qpows := make([]int, length)
	for i := 0; i < length; i++ {
		qpows[i] = 1 << (start + i)
	}
	permBits := permutation << start

	workers := parfor.Workers()
	sums := make([]float64, workers)
	n := e.m >> length
	parfor.RangeMasked(n, qpows, func(workerID, _, idx int) {
		sums[workerID] += abs2(e.store.Read(idx | permBits))
	})
	var total float64
	for _, v := range sums {
		total += v
	}
	return clampProb(total), nil
}

// ProbMask returns the probability that the bits selected by mask equal
// permutation (permutation's bits outside mask are ignored).
func (e *Engine) ProbMask(mask, permutation int) (float64, error) {
	if err := e.checkPerm(mask); err != nil {
		return 0, err
	}
	if e.store == nil {
		return 0, nil
	}
	qpows := bitPowers(mask)
	workers := parfor.Workers()
	sums := make([]float64, workers)
	n := e.m >> len(qpows)
	permBits := permutation & mask
	parfor.RangeMasked(n, qpows, func(workerID, _, idx int) {
		sums[workerID] += abs2(e.store.Read(idx | permBits))
	})
	var total float64
	for _, v := range sums {
		total += v
	}
	return clampProb(total), nil
}

// ProbParity returns the probability that popcount(i & mask) is odd.
func (e *Engine) ProbParity(mask int) (float64, error) {
	if err := e.checkPerm(mask); err != nil {
		return 0, err
	}
	if e.store == nil || mask == 0 {
		return 0, nil
	}
	workers := parfor.Workers()
	sums := make([]float64, workers)
	parfor.Range(e.m, func(workerID, begin, end int) {
		for i := begin; i < end; i++ {
			if bits.OnesCount(uint(i&mask))&1 == 1 {
				sums[workerID] += abs2(e.store.Read(i))
			}
		}
	})
	var total float64
	for _, v := range sums {
		total += v
	}
	return clampProb(total), nil
}

// ProbAll returns the probability of basis state p directly (no
// normalize-on-read pass; callers that need it normalized call Prob-family
// helpers or NormalizeState first, as MAll does).
func (e *Engine) ProbAll(p int) (float64, error) {
	if err := e.checkPerm(p); err != nil {
		return 0, err
	}
	if e.store == nil {
		return 0, nil
	}
	return clampProb(abs2(e.store.Read(p))), nil
}

// MAll collapses the register by sequential sampling and returns the chosen
// permutation.
func (e *Engine) MAll() (int, error) {
	if e.doNormalize {
		if err := e.NormalizeState(normUnset, normUnset, 0); err != nil {
			return 0, err
		}
	}
	if e.store == nil {
		return 0, nil
	}

	u := e.randFloat()
	var total float64
	lastNonzero := e.m - 1
	for p := 0; p < e.m; p++ {
		part, _ := e.ProbAll(p)
		if part > e.cfg.Eps {
			total += part
			if total > u || (1-total) <= e.cfg.Eps {
				if err := e.SetPermutation(p, 1); err != nil {
					return 0, err
				}
				return p, nil
			}
			lastNonzero = p
		}
	}
	if err := e.SetPermutation(lastNonzero, 1); err != nil {
		return 0, err
	}
	return lastNonzero, nil
}

func (e *Engine) randFloat() float64 {
	return e.rng.Float64()
}

// ForceM forces (or samples, if !doForce) qubit to result and collapses the
// register accordingly when doApply is set.
func (e *Engine) ForceM(qubit int, result bool, doForce, doApply bool) (bool, error) {
	if err := e.checkQubit(qubit); err != nil {
		return false, err
	}
	if e.store == nil {
		return result, nil
	}
	if !doForce {
		p1, err := e.Prob(qubit)
		if err != nil {
			return false, err
		}
		result = e.randFloat() <= p1
	}
	if !doApply {
		return result, nil
	}

	qpow := 1 << qubit
	keepMask := 0
	if result {
		keepMask = qpow
	}
	chances := make([]float64, parfor.Workers())
	parfor.Range(e.m, func(workerID, begin, end int) {
		for i := begin; i < end; i++ {
			if i&qpow == keepMask {
				chances[workerID] += abs2(e.store.Read(i))
			} else {
				e.store.Write(i, 0)
			}
		}
	})
	var oneChance float64
	for _, v := range chances {
		oneChance += v
	}
	e.runningNorm = oneChance
	if e.runningNorm <= e.cfg.Eps {
		e.store = nil
		e.runningNorm = 0
	}
	if !e.doNormalize {
		if err := e.NormalizeState(normUnset, normUnset, 0); err != nil {
			return false, err
		}
	}
	return result, nil
}

// ForceMParity forces (or samples) the parity of the masked bits and
// collapses the register accordingly.
func (e *Engine) ForceMParity(mask int, result bool, doForce bool) (bool, error) {
	if err := e.checkPerm(mask); err != nil {
		return false, err
	}
	if e.store == nil || mask == 0 {
		return false, nil
	}
	if !doForce {
		p, err := e.ProbParity(mask)
		if err != nil {
			return false, err
		}
		result = e.randFloat() <= p
	}

	chances := make([]float64, parfor.Workers())
	parfor.Range(e.m, func(workerID, begin, end int) {
		for i := begin; i < end; i++ {
			odd := bits.OnesCount(uint(i&mask))&1 == 1
			if odd == result {
				chances[workerID] += abs2(e.store.Read(i))
			} else {
				e.store.Write(i, 0)
			}
		}
	})
	var oddChance float64
	for _, v := range chances {
		oddChance += v
	}
	e.runningNorm = oddChance
	if e.runningNorm <= e.cfg.Eps {
		e.store = nil
		e.runningNorm = 0
	}
	if !e.doNormalize {
		if err := e.NormalizeState(normUnset, normUnset, 0); err != nil {
			return false, err
		}
	}
	return result, nil
}

// MultiShotMeasureMask samples the bits selected by qpowsSorted shots times
// without collapsing the register, accumulating counts per pattern into
// out (len(out) must equal 2^len(qpowsSorted)).
func (e *Engine) MultiShotMeasureMask(qpowsSorted []int, shots int, out []int) error {
	numPatterns := 1 << len(qpowsSorted)
	if len(out) != numPatterns {
		return fmt.Errorf("engine: MultiShotMeasureMask expects %d buckets, got %d: %w", numPatterns, len(out), qerr.ShapeMismatch)
	}
	if e.store == nil {
		return nil
	}

	probs := make([]float64, numPatterns)
	for i := 0; i < e.m; i++ {
		pattern := 0
		for j, p := range qpowsSorted {
			if i&p != 0 {
				pattern |= 1 << j
			}
		}
		probs[pattern] += abs2(e.store.Read(i))
	}

	for s := 0; s < shots; s++ {
		u := e.randFloat()
		var total float64
		chosen := numPatterns - 1
		for pattern, p := range probs {
			total += p
			if total > u {
				chosen = pattern
				break
			}
		}
		out[chosen]++
	}
	return nil
}

// SumSqrDiff returns 1 - |<psi|phi>|^2 between e and other.
func (e *Engine) SumSqrDiff(other *Engine) (float64, error) {
	if other == nil {
		return 1, nil
	}
	if e == other {
		return 0, nil
	}
	if e.n != other.n {
		return 0, fmt.Errorf("engine: SumSqrDiff qubit counts %d and %d differ: %w", e.n, other.n, qerr.ShapeMismatch)
	}
	if e.doNormalize {
		if err := e.NormalizeState(normUnset, normUnset, 0); err != nil {
			return 0, err
		}
	}
	if other.doNormalize {
		if err := other.NormalizeState(normUnset, normUnset, 0); err != nil {
			return 0, err
		}
	}
	if e.store == nil || other.store == nil {
		return 1, nil
	}

	workers := parfor.Workers()
	partsRe := make([]float64, workers)
	partsIm := make([]float64, workers)
	parfor.Range(e.m, func(workerID, begin, end int) {
		var re, im float64
		for i := begin; i < end; i++ {
			a := e.store.Read(i)
			b := other.store.Read(i)
			prod := complex(real(a), -imag(a)) * b
			re += real(prod)
			im += imag(prod)
		}
		partsRe[workerID] += re
		partsIm[workerID] += im
	})
	var re, im float64
	for i := range partsRe {
		re += partsRe[i]
		im += partsIm[i]
	}
	inner := re*re + im*im
	return clampProb(1 - inner), nil
}
