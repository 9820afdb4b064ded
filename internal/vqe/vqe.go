// Package vqe implements the hybrid variational eigensolver driver: a
// classical optimization loop over quantum-circuit energy evaluations.
//
// A driver is built from an ansatz kernel and a Hamiltonian, mirroring
// VQE(ansatz, H) construction, and minimizes the energy
// <psi(theta)|H|psi(theta)> starting from caller-supplied initial
// parameters. Every objective evaluation is recorded so callers can inspect
// the parameter sets and energies seen during optimization.
package vqe

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/qvarlab/qvar/internal/ansatz"
	"github.com/qvarlab/qvar/internal/backend"
	"github.com/qvarlab/qvar/internal/backend/statevector"
	"github.com/qvarlab/qvar/internal/estimator"
	"github.com/qvarlab/qvar/internal/optimizer"
	"github.com/qvarlab/qvar/internal/pauli"
)

// paramEps is the tolerance under which two parameter vectors are the same
// point for the unique-history accessors.
const paramEps = 1e-10

// Iteration is one recorded objective evaluation.
type Iteration struct {
	Seq    int       `json:"seq"`
	Energy float64   `json:"energy"`
	StdErr float64   `json:"std_err,omitempty"`
	Params []float64 `json:"params"`
}

// EnergyPoint pairs an observed energy with the parameters that produced it.
type EnergyPoint struct {
	Energy float64   `json:"energy"`
	Params []float64 `json:"params"`
}

// Result is the outcome of an optimization run.
type Result struct {
	Energy      float64   `json:"energy"`
	Params      []float64 `json:"params"`
	Evaluations int       `json:"evaluations"`
	Converged   bool      `json:"converged"`
}

// Option configures a driver.
type Option func(*VQE)

// WithBackend selects the execution backend. Default is a fresh statevector
// simulator.
func WithBackend(b backend.Backend) Option {
	return func(v *VQE) { v.backend = b }
}

// WithShots selects sampled estimation with the given shot count. The
// default of zero keeps exact expectation values.
func WithShots(shots int) Option {
	return func(v *VQE) { v.shots = shots }
}

// WithOptimizer sets the optimizer used by Execute.
func WithOptimizer(opt optimizer.Optimizer) Option {
	return func(v *VQE) { v.opt = opt }
}

// WithGradientStrategy selects how gradients are estimated for
// gradient-based optimizers.
func WithGradientStrategy(s optimizer.GradientStrategy) Option {
	return func(v *VQE) { v.strategy = s }
}

// WithProgress installs a hook invoked after every recorded evaluation.
// The hook must not retain the iteration's parameter slice.
func WithProgress(hook func(Iteration)) Option {
	return func(v *VQE) { v.progress = hook }
}

// VQE is a variational eigensolver instance. It is safe for one Execute at
// a time; the history accessors may be called concurrently with Execute.
type VQE struct {
	ansatz   ansatz.Ansatz
	op       pauli.Operator
	backend  backend.Backend
	shots    int
	opt      optimizer.Optimizer
	strategy optimizer.GradientStrategy
	progress func(Iteration)

	mu      sync.RWMutex
	history []Iteration
}

// New creates a driver for the ansatz and Hamiltonian.
func New(a ansatz.Ansatz, op pauli.Operator, opts ...Option) (*VQE, error) {
	if !op.IsHermitian() {
		return nil, fmt.Errorf("hamiltonian %s is not Hermitian", op)
	}
	if op.NumQubits() > a.Qubits {
		return nil, fmt.Errorf("hamiltonian acts on %d qubits but ansatz %s has %d",
			op.NumQubits(), a.Name, a.Qubits)
	}

	v := &VQE{
		ansatz:   a,
		op:       op,
		strategy: optimizer.StrategyCentral,
	}
	for _, opt := range opts {
		opt(v)
	}

	if v.backend == nil {
		v.backend = statevector.New(statevector.Config{})
	}
	if v.opt == nil {
		// Gradient-free default; callers pick gradient methods explicitly.
		opt, err := optimizer.Create("nelder-mead", optimizer.Options{})
		if err != nil {
			return nil, err
		}
		v.opt = opt
	}
	if !optimizer.ValidStrategy(v.strategy) {
		return nil, fmt.Errorf("unknown gradient strategy %q", v.strategy)
	}
	if v.shots < 0 {
		return nil, fmt.Errorf("shots cannot be negative, got %d", v.shots)
	}
	return v, nil
}

// Execute runs the optimization from the initial parameters with the
// driver's optimizer.
func (v *VQE) Execute(ctx context.Context, initial []float64) (Result, error) {
	return v.ExecuteWith(ctx, v.opt, initial)
}

// ExecuteWith runs the optimization with an explicit optimizer, mirroring
// the execute(optimizer, initial) overload.
func (v *VQE) ExecuteWith(ctx context.Context, opt optimizer.Optimizer, initial []float64) (Result, error) {
	if len(initial) != v.ansatz.Params {
		return Result{}, fmt.Errorf("ansatz %s expects %d parameters, got %d",
			v.ansatz.Name, v.ansatz.Params, len(initial))
	}

	est, err := estimator.New(v.backend, v.op, v.shots)
	if err != nil {
		return Result{}, err
	}

	var evalMu sync.Mutex
	var firstErr error

	energy := func(x []float64) float64 {
		if ctx.Err() != nil {
			return math.Inf(1)
		}
		value, stdErr, err := v.evaluate(ctx, est, x)
		if err != nil {
			evalMu.Lock()
			if firstErr == nil {
				firstErr = err
			}
			evalMu.Unlock()
			return math.Inf(1)
		}
		v.record(x, value, stdErr)
		return value
	}

	grad := v.gradient(energy)

	res, err := opt.Minimize(ctx, energy, grad, initial)
	evalMu.Lock()
	recordedErr := firstErr
	evalMu.Unlock()
	if recordedErr != nil {
		return Result{}, recordedErr
	}
	if err != nil {
		return Result{}, err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Result{}, ctxErr
	}

	return Result{
		Energy:      res.F,
		Params:      res.X,
		Evaluations: res.Evaluations,
		Converged:   res.Converged,
	}, nil
}

// Future is a pending asynchronous execution.
type Future struct {
	done   chan struct{}
	result Result
	err    error
}

// Done is closed when the execution finishes.
func (f *Future) Done() <-chan struct{} { return f.done }

// Wait blocks until the execution finishes and returns its outcome.
func (f *Future) Wait() (Result, error) {
	<-f.done
	return f.result, f.err
}

// ExecuteAsync starts the optimization in a goroutine and returns a future.
func (v *VQE) ExecuteAsync(ctx context.Context, initial []float64) *Future {
	f := &Future{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		f.result, f.err = v.Execute(ctx, initial)
	}()
	return f
}

// evaluate computes the energy at x.
func (v *VQE) evaluate(ctx context.Context, est *estimator.Estimator, x []float64) (float64, float64, error) {
	c, err := v.ansatz.Circuit(x)
	if err != nil {
		return 0, 0, err
	}
	e, err := est.Expectation(ctx, c)
	if err != nil {
		return 0, 0, err
	}
	return e.Value, e.StdErr, nil
}

// gradient builds the gradient function for the configured strategy.
// Parameter-shift requires an ansatz where every parameter feeds exactly one
// half-angle rotation gate; otherwise the driver falls back to central
// differences.
func (v *VQE) gradient(energy optimizer.Objective) optimizer.Gradient {
	strategy := v.strategy
	if strategy == optimizer.StrategyParameterShift && !v.ansatz.ShiftRule {
		strategy = optimizer.StrategyCentral
	}

	if strategy == optimizer.StrategyParameterShift {
		return func(grad, x []float64) {
			shifted := append([]float64(nil), x...)
			for j := range x {
				shifted[j] = x[j] + math.Pi/2
				plus := energy(shifted)
				shifted[j] = x[j] - math.Pi/2
				minus := energy(shifted)
				shifted[j] = x[j]
				grad[j] = (plus - minus) / 2
			}
		}
	}

	return optimizer.FiniteDifference(energy, strategy, 0)
}

// record appends one evaluation to the history and fires the progress hook.
func (v *VQE) record(x []float64, energy, stdErr float64) {
	params := append([]float64(nil), x...)
	v.mu.Lock()
	it := Iteration{Seq: len(v.history), Energy: energy, StdErr: stdErr, Params: params}
	v.history = append(v.history, it)
	hook := v.progress
	v.mu.Unlock()

	if hook != nil {
		hook(it)
	}
}

// History returns a copy of every recorded evaluation in order.
func (v *VQE) History() []Iteration {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]Iteration, len(v.history))
	copy(out, v.history)
	return out
}

// UniqueParameters returns the distinct parameter vectors executed during
// optimization, in first-seen order.
func (v *VQE) UniqueParameters() [][]float64 {
	v.mu.RLock()
	defer v.mu.RUnlock()

	var unique [][]float64
	for _, it := range v.history {
		if !containsParams(unique, it.Params) {
			unique = append(unique, append([]float64(nil), it.Params...))
		}
	}
	return unique
}

// UniqueEnergies returns the energies for the distinct parameter vectors,
// in first-seen order.
func (v *VQE) UniqueEnergies() []EnergyPoint {
	v.mu.RLock()
	defer v.mu.RUnlock()

	var seen [][]float64
	var out []EnergyPoint
	for _, it := range v.history {
		if !containsParams(seen, it.Params) {
			seen = append(seen, it.Params)
			out = append(out, EnergyPoint{
				Energy: it.Energy,
				Params: append([]float64(nil), it.Params...),
			})
		}
	}
	return out
}

func containsParams(set [][]float64, params []float64) bool {
	for _, existing := range set {
		if sameParams(existing, params) {
			return true
		}
	}
	return false
}

func sameParams(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Abs(a[i]-b[i]) > paramEps {
			return false
		}
	}
	return true
}
