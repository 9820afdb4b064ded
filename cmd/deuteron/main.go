// Package main runs the deuteron binding-energy demo: the N=2 deuteron
// Hamiltonian is minimized with three ansatz and optimizer combinations,
// and each result is checked against the known ground-state energy.
package main

import (
	"context"
	"fmt"
	"math"
	"os"

	"github.com/qvarlab/qvar/internal/ansatz"
	"github.com/qvarlab/qvar/internal/optimizer"
	"github.com/qvarlab/qvar/internal/pauli"
	"github.com/qvarlab/qvar/internal/vqe"
	"github.com/qvarlab/qvar/pkg/logger"
)

const (
	groundEnergy = -1.74886
	tolerance    = 0.1
)

var deuteron = pauli.MustParse("5.907 - 2.1433 X0X1 - 2.1433 Y0Y1 + 0.21829 Z0 - 6.125 Z1")

func main() {
	log := logger.New(logger.Config{Level: "info", Pretty: true})
	registry := ansatz.DefaultRegistry()
	ctx := context.Background()

	ok := true

	// RY ansatz with the default simplex optimizer.
	ry, _ := registry.Get("deuteron-ry")
	solver, err := vqe.New(ry, deuteron)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build solver")
	}
	res, err := solver.Execute(ctx, []float64{0.0})
	if err != nil {
		log.Fatal().Err(err).Msg("RY minimization failed")
	}
	ok = report("deuteron-ry / nelder-mead", res) && ok

	// UCC-style ansatz, run through the async API.
	ucc, _ := registry.Get("deuteron-ucc")
	uccSolver, err := vqe.New(ucc, deuteron)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build solver")
	}
	future := uccSolver.ExecuteAsync(ctx, []float64{0.0})
	<-future.Done()
	res, err = future.Wait()
	if err != nil {
		log.Fatal().Err(err).Msg("UCC minimization failed")
	}
	ok = report("deuteron-ucc / nelder-mead", res) && ok

	// RY ansatz again, with L-BFGS on central-difference gradients and a
	// tight evaluation budget, started away from zero.
	lbfgs, err := optimizer.Create("l-bfgs", optimizer.Options{MaxEvals: 20})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create optimizer")
	}
	grad, err := vqe.New(ry, deuteron,
		vqe.WithOptimizer(lbfgs),
		vqe.WithGradientStrategy(optimizer.StrategyCentral),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build solver")
	}
	res, err = grad.Execute(ctx, []float64{0.55})
	if err != nil {
		log.Fatal().Err(err).Msg("L-BFGS minimization failed")
	}
	ok = report("deuteron-ry / l-bfgs", res) && ok

	energies := grad.UniqueEnergies()
	params := grad.UniqueParameters()
	fmt.Printf("\nL-BFGS visited %d unique points:\n", len(energies))
	for i, pt := range energies {
		fmt.Printf("  theta = %+.6f  <H> = %+.6f\n", params[i][0], pt.Energy)
	}

	if !ok {
		os.Exit(1)
	}
}

func report(label string, res vqe.Result) bool {
	fmt.Printf("%-28s <H>(theta*) = %+.6f  theta* = %+.6f  (%d evaluations)\n",
		label, res.Energy, res.Params[0], res.Evaluations)
	if math.Abs(res.Energy-groundEnergy) >= tolerance {
		fmt.Printf("%-28s FAILED: expected %.5f within %.2f\n", label, groundEnergy, tolerance)
		return false
	}
	return true
}
