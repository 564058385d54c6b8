// Package parfor is the parallel-loop primitive spec'd as an external
// collaborator: par_for(range, body) and par_for_mask(range, skip_set, body).
// Workers own disjoint contiguous index ranges and never write to each
// other's regions, so kernels built on top of Range/RangeMasked need no
// synchronization beyond the final barrier.
package parfor

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Workers returns the number of partitions a loop is split across. Mirrors
// the teacher pack's row-parallel worker-pool sizing (GOMAXPROCS), grounded
// in SpiralTorch's parallelBinary and the tensor_parallel.go reference.
func Workers() int {
	n := runtime.GOMAXPROCS(0)
	if n < 1 {
		return 1
	}
	return n
}

// Range partitions [0, n) into contiguous, worker-owned chunks and runs body
// once per chunk concurrently. body(workerID, begin, end) must only touch
// indices in [begin, end) (and their masked counterparts, for callers using
// ExpandIndex) — this is the disjointness guarantee the amplitude kernels
// rely on to skip locking.
func Range(n int, body func(workerID, begin, end int)) {
	if n <= 0 {
		return
	}
	workers := Workers()
	if workers > n {
		workers = n
	}
	chunk := (n + workers - 1) / workers

	g := new(errgroup.Group)
	for w := 0; w < workers; w++ {
		begin := w * chunk
		if begin >= n {
			break
		}
		end := begin + chunk
		if end > n {
			end = n
		}
		workerID, b, e := w, begin, end
		g.Go(func() error {
			body(workerID, b, e)
			return nil
		})
	}
	_ = g.Wait() // body never errors; kernels validate before dispatch (spec §7)
}

// ExpandIndex interleaves the bits of lcv around a sorted list of powers of
// two (qpowsSorted) that must read as zero in the result. This is the
// "expand lcv into a full index" step par_for_mask performs: each qpow in
// turn opens a zero bit at its position in the growing index.
func ExpandIndex(lcv int, qpowsSorted []int) int {
	idx := lcv
	for _, p := range qpowsSorted {
		lowMask := p - 1
		low := idx & lowMask
		high := (idx &^ lowMask) << 1
		idx = high | low
	}
	return idx
}

// RangeMasked is par_for_mask: it runs Range over [0, n) where n is already
// the reduced iteration count (M >> len(qpowsSorted)), expanding each lcv to
// its full-index counterpart before calling body.
func RangeMasked(n int, qpowsSorted []int, body func(workerID, lcv, idx int)) {
	Range(n, func(workerID, begin, end int) {
		for lcv := begin; lcv < end; lcv++ {
			body(workerID, lcv, ExpandIndex(lcv, qpowsSorted))
		}
	})
}
