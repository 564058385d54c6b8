// Package qerr defines the sentinel error kinds shared by the engine,
// circuit, and tensor-network layers. Call sites wrap these with context via
// fmt.Errorf("...: %w", ...); callers test with errors.Is.
package qerr

import "errors"

var (
	// OutOfRange is returned when a qubit index, permutation, offset, or
	// mask exceeds the bounds implied by the current qubit count.
	OutOfRange = errors.New("qrack: index out of range")

	// Capacity is returned when an operation (typically Compose) would grow
	// the qubit count past the configured maximum.
	Capacity = errors.New("qrack: qubit capacity exceeded")

	// NotImplemented is returned by façade operations with no tensor-network
	// backing, such as the façade's SetQuantumState.
	NotImplemented = errors.New("qrack: not implemented")

	// ShapeMismatch is returned when sizes disagree: SumSqrDiff on engines
	// of different qubit counts, a Decompose destination of the wrong
	// width, or a caller buffer or matrix list of the wrong length.
	ShapeMismatch = errors.New("qrack: shape mismatch")
)
