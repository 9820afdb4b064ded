package optimizer

import (
	"gonum.org/v1/gonum/diff/fd"
)

// GradientStrategy selects how gradients are estimated when the objective
// has no analytic gradient.
type GradientStrategy string

const (
	// StrategyCentral uses central finite differences (two evaluations per
	// parameter).
	StrategyCentral GradientStrategy = "central"
	// StrategyForward uses forward finite differences (one extra
	// evaluation per parameter).
	StrategyForward GradientStrategy = "forward"
	// StrategyParameterShift is the exact two-point shift rule for
	// objectives built from single-use half-angle rotation gates. The VQE
	// driver constructs it; this package only names it.
	StrategyParameterShift GradientStrategy = "parameter-shift"
)

// ValidStrategy reports whether s names a known gradient strategy.
func ValidStrategy(s GradientStrategy) bool {
	switch s {
	case StrategyCentral, StrategyForward, StrategyParameterShift:
		return true
	}
	return false
}

// FiniteDifference builds a finite-difference gradient for f using the given
// strategy. step of zero picks the formula's default. Parameter-shift is not
// a finite-difference formula; callers asking for it here get central
// differences, the documented fallback.
func FiniteDifference(f Objective, strategy GradientStrategy, step float64) Gradient {
	formula := fd.Central
	if strategy == StrategyForward {
		formula = fd.Forward
	}
	settings := &fd.Settings{Formula: formula, Step: step}
	return func(grad, x []float64) {
		fd.Gradient(grad, func(p []float64) float64 { return f(p) }, x, settings)
	}
}
