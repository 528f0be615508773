package main

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/23skdu/longbow-pdist/internal/op"
	"github.com/23skdu/longbow-pdist/internal/reference"
	"github.com/23skdu/longbow-pdist/internal/tensor"
)

// randomMatrix builds a seeded n x m matrix with values in [-10, 10),
// matching the distribution the accuracy thresholds were chosen for.
func randomMatrix(n, m int, dtype string, seed int64) (*tensor.Matrix, error) {
	dt, err := tensor.ParseDType(dtype)
	if err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(seed))
	flat := make([]float32, n*m)
	for i := range flat {
		flat[i] = rng.Float32()*20 - 10
	}

	if dt == tensor.Float16 {
		return tensor.NewFloat16FromFloat32(n, m, flat)
	}
	return tensor.NewFloat32(n, m, flat)
}

// runVerify computes the same matrix on the parallel engine and on the
// sequential oracle and compares them within the dtype tolerance.
func runVerify(operator *op.Operator, n, m int, p float32, dtype string, seed int64) error {
	x, err := randomMatrix(n, m, dtype, seed)
	if err != nil {
		return err
	}

	log.Info().Int("n", n).Int("m", m).Float64("p", float64(p)).Str("dtype", dtype).Msg("Verifying engine against CPU oracle")

	y, err := operator.Compute(context.Background(), x, p)
	if err != nil {
		return err
	}

	want := reference.Pdist(x, p)
	rep := reference.Compare(want, y.Float32(), reference.Tolerance(x.DType, p))

	log.Info().
		Float64("max_abs_err", rep.MaxAbsErr).
		Int("checked", rep.Checked).
		Int("mismatches", rep.Mismatches).
		Msg("Verification report")

	if !rep.Pass() {
		return fmt.Errorf("verify: %d of %d distances exceed tolerance (max abs err %g)", rep.Mismatches, rep.Checked, rep.MaxAbsErr)
	}
	log.Info().Msg("PASS")
	return nil
}

// runBench times the parallel engine against the sequential oracle.
func runBench(operator *op.Operator, n, m int, p float32, dtype string, seed int64) error {
	x, err := randomMatrix(n, m, dtype, seed)
	if err != nil {
		return err
	}

	// Warmup
	if _, err := operator.Compute(context.Background(), x, p); err != nil {
		return err
	}

	start := time.Now()
	if _, err := operator.Compute(context.Background(), x, p); err != nil {
		return err
	}
	engineTime := time.Since(start)

	start = time.Now()
	_ = reference.Pdist(x, p)
	oracleTime := time.Since(start)

	log.Info().
		Int("n", n).Int("m", m).Float64("p", float64(p)).
		Int("units", operator.TotalUnits).
		Dur("engine", engineTime).
		Dur("oracle", oracleTime).
		Float64("speedup", oracleTime.Seconds()/engineTime.Seconds()).
		Msg("Benchmark complete")
	return nil
}
