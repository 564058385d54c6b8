package tensornetwork

import (
	"github.com/jpacold/qrack/engine"
	"github.com/jpacold/qrack/internal/envcfg"
)

// Config carries the façade's environment-backed knobs, mirroring
// qpool.Config's named-field shape.
type Config struct {
	// MaterializeThresholdQB is QRACK_QTENSORNETWORK_THRESHOLD_QB: above
	// this qubit count, partial-qubit queries may skip full materialization.
	// The façade does not read this value: every query materializes the
	// full layer stack.
	MaterializeThresholdQB int
	Engine                 engine.Config
}

// NewConfig reads QRACK_QTENSORNETWORK_THRESHOLD_QB and the engine's own
// QRACK_MAX_CPU_QB via internal/envcfg.
func NewConfig() Config {
	return Config{
		MaterializeThresholdQB: envcfg.TensorNetworkThreshold(),
		Engine:                 engine.NewConfig(),
	}
}
