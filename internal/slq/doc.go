// Package slq implements an iterative Sequential-Linear-Quadratic solver
// (Gauss-Newton multiple shooting) for finite-horizon nonlinear
// optimal-control problems.
//
// Each iteration alternates four phases:
//
//  1. forward rollout of the nonlinear dynamics under the current policy
//  2. per-step linearization and cost quadratization, partitioned across
//     worker goroutines
//  3. a Riccati backward pass producing feedback gains and feedforward
//     corrections, with eigenvalue-monitored Hessian regularization
//  4. a backtracking line search that accepts the first step size with
//     sufficient cost decrease
//
// The result is a locally optimal trajectory together with a time-varying
// affine feedback policy that stabilizes it.
//
// # Usage
//
//	prob, _ := slq.NewProblem(tf, x0, sys, costFn, linearSys)
//	solver, _ := slq.New(prob, slq.DefaultSettings())
//	solver.SetInitialGuess(initialPolicy)
//	sol, err := solver.Solve()
//
// # Thread Safety
//
// A Solver is not safe for concurrent use. Internally it parallelizes
// per-step work over Settings.NThreads goroutines, cloning the problem's
// dynamics and cost evaluators so no scratch state is shared.
package slq
