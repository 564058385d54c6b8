// Package envcfg reads the process-level environment variables spec'd for
// the engine and façade. Process configuration itself is an external
// collaborator (spec §1); this package is the narrow seam the core reads
// through, so tests can bypass it entirely by constructing Config values
// directly instead of setting process environment.
package envcfg

import (
	"os"
	"strconv"
)

// DefaultMaxCPUQubits is used when QRACK_MAX_CPU_QB is unset or unparsable.
const DefaultMaxCPUQubits = 30

// DefaultTensorNetworkThreshold is used when
// QRACK_QTENSORNETWORK_THRESHOLD_QB is unset or unparsable.
const DefaultTensorNetworkThreshold = 27

// MaxCPUQubits returns the QRACK_MAX_CPU_QB hard cap on engine qubit count.
func MaxCPUQubits() int {
	return intFromEnv("QRACK_MAX_CPU_QB", DefaultMaxCPUQubits)
}

// TensorNetworkThreshold returns the qubit count above which partial-qubit
// façade queries may skip full layer-stack materialization.
func TensorNetworkThreshold() int {
	return intFromEnv("QRACK_QTENSORNETWORK_THRESHOLD_QB", DefaultTensorNetworkThreshold)
}

func intFromEnv(name string, fallback int) int {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
