package optimizer

import (
	"context"
	"math"
	"math/rand"
)

// spsa implements simultaneous perturbation stochastic approximation.
// Each iteration estimates the gradient from two objective evaluations with
// a random simultaneous perturbation, which keeps the cost independent of
// the parameter count and tolerates sampling noise in the objective.
type spsa struct {
	maxEvals int
	step     float64
	seed     int64
}

// Standard SPSA gain-sequence constants (Spall's recommended defaults).
const (
	spsaAlpha     = 0.602
	spsaGamma     = 0.101
	spsaStability = 10.0
)

func newSPSA(opts Options) *spsa {
	maxEvals := opts.MaxEvals
	if maxEvals <= 0 {
		maxEvals = 200
	}
	step := opts.Step
	if step <= 0 {
		step = 0.1
	}
	return &spsa{maxEvals: maxEvals, step: step, seed: opts.Seed}
}

func (s *spsa) Name() string { return "spsa" }

func (s *spsa) Minimize(ctx context.Context, f Objective, _ Gradient, x0 []float64) (Result, error) {
	n := len(x0)
	rng := rand.New(rand.NewSource(s.seed))

	x := append([]float64(nil), x0...)
	bestX := append([]float64(nil), x0...)

	evals := 0
	eval := func(p []float64) float64 {
		evals++
		return f(p)
	}

	bestF := eval(bestX)

	a := s.step
	c := s.step / 2
	// Three evaluations per iteration: the two perturbed points plus the
	// best-so-far check at the updated iterate.
	iterations := (s.maxEvals - 1) / 3

	delta := make([]float64, n)
	plus := make([]float64, n)
	minus := make([]float64, n)

	for k := 0; k < iterations; k++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		ak := a / math.Pow(float64(k+1)+spsaStability, spsaAlpha)
		ck := c / math.Pow(float64(k+1), spsaGamma)

		for i := 0; i < n; i++ {
			if rng.Intn(2) == 0 {
				delta[i] = 1
			} else {
				delta[i] = -1
			}
			plus[i] = x[i] + ck*delta[i]
			minus[i] = x[i] - ck*delta[i]
		}

		diff := eval(plus) - eval(minus)
		for i := 0; i < n; i++ {
			x[i] -= ak * diff / (2 * ck * delta[i])
		}

		if value := eval(x); value < bestF {
			bestF = value
			copy(bestX, x)
		}
	}

	return Result{
		X:           bestX,
		F:           bestF,
		Evaluations: evals,
		Status:      "FunctionEvaluationLimit",
		Converged:   true,
	}, nil
}
