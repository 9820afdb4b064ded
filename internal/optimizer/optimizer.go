// Package optimizer provides classical minimizers behind a single factory,
// mirroring named-optimizer construction: Create("l-bfgs", Options{...}).
//
// Most algorithms delegate to gonum's optimize package; SPSA is implemented
// locally because gonum has no stochastic-approximation method.
package optimizer

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/optimize"
)

// Objective is the function being minimized.
type Objective func(x []float64) float64

// Gradient fills grad with the gradient of the objective at x.
type Gradient func(grad, x []float64)

// Options configures an optimizer. Zero values select defaults.
type Options struct {
	MaxEvals int     // Cap on objective evaluations (0 = no cap)
	Step     float64 // Initial step / perturbation size where applicable
	Seed     int64   // Seed for stochastic methods
}

// Result reports the outcome of a minimization.
type Result struct {
	X           []float64
	F           float64
	Evaluations int
	Status      string
	Converged   bool
}

// Optimizer minimizes an objective from a starting point. grad may be nil;
// gradient-based methods then fall back to central finite differences.
type Optimizer interface {
	Name() string
	Minimize(ctx context.Context, f Objective, grad Gradient, x0 []float64) (Result, error)
}

// Create builds a named optimizer. Supported names: "nelder-mead", "bfgs",
// "l-bfgs", "cg", "cmaes", "spsa".
func Create(name string, opts Options) (Optimizer, error) {
	switch name {
	case "nelder-mead":
		return &gonumOptimizer{name: name, method: &optimize.NelderMead{}, opts: opts}, nil
	case "bfgs":
		return &gonumOptimizer{name: name, method: &optimize.BFGS{}, opts: opts, needsGrad: true}, nil
	case "l-bfgs":
		return &gonumOptimizer{name: name, method: &optimize.LBFGS{}, opts: opts, needsGrad: true}, nil
	case "cg":
		return &gonumOptimizer{name: name, method: &optimize.CG{}, opts: opts, needsGrad: true}, nil
	case "cmaes":
		return &gonumOptimizer{name: name, method: &optimize.CmaEsChol{}, opts: opts}, nil
	case "spsa":
		return newSPSA(opts), nil
	default:
		return nil, fmt.Errorf("unknown optimizer %q", name)
	}
}

// gonumOptimizer adapts a gonum optimize.Method.
type gonumOptimizer struct {
	name      string
	method    optimize.Method
	opts      Options
	needsGrad bool
}

func (g *gonumOptimizer) Name() string { return g.name }

// acceptable statuses; IterationLimit and FunctionEvaluationLimit count as
// success when the caller asked for an evaluation cap, matching the
// semantics of a max-evals stopping rule.
func (g *gonumOptimizer) acceptable(status optimize.Status) bool {
	switch status {
	case optimize.Success, optimize.GradientThreshold, optimize.FunctionConvergence, optimize.StepConvergence:
		return true
	case optimize.FunctionEvaluationLimit, optimize.IterationLimit:
		return g.opts.MaxEvals > 0
	}
	return false
}

func (g *gonumOptimizer) Minimize(ctx context.Context, f Objective, grad Gradient, x0 []float64) (Result, error) {
	if len(x0) == 0 {
		return Result{}, fmt.Errorf("empty initial parameter vector")
	}
	if g.needsGrad && grad == nil {
		grad = FiniteDifference(f, StrategyCentral, g.opts.Step)
	}

	evals := 0
	cancelled := false
	objective := func(x []float64) float64 {
		if ctx.Err() != nil {
			cancelled = true
			return math.Inf(1)
		}
		evals++
		return f(x)
	}

	problem := optimize.Problem{Func: objective}
	if g.needsGrad {
		problem.Grad = func(dst, x []float64) { grad(dst, x) }
	}

	settings := &optimize.Settings{}
	if g.opts.MaxEvals > 0 {
		settings.FuncEvaluations = g.opts.MaxEvals
	}

	initial := append([]float64(nil), x0...)
	result, err := optimize.Minimize(problem, initial, settings, g.method)
	if cancelled {
		return Result{}, ctx.Err()
	}
	if err != nil && result == nil {
		return Result{}, fmt.Errorf("%s failed: %w", g.name, err)
	}

	// Gradient methods can fail on flat or noisy landscapes; retry with
	// Nelder-Mead before giving up.
	if err != nil || !g.acceptable(result.Status) {
		if g.name != "nelder-mead" {
			result, err = optimize.Minimize(problem, initial, settings, &optimize.NelderMead{})
			if cancelled {
				return Result{}, ctx.Err()
			}
		}
		if err != nil {
			return Result{}, fmt.Errorf("%s failed: %w", g.name, err)
		}
		if !g.acceptable(result.Status) {
			return Result{}, fmt.Errorf("%s did not converge: status=%v", g.name, result.Status)
		}
	}

	return Result{
		X:           append([]float64(nil), result.X...),
		F:           result.F,
		Evaluations: evals,
		Status:      result.Status.String(),
		Converged:   true,
	}, nil
}
