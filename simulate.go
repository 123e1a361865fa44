package main

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/agrilens/internal/outcome"
	"github.com/example/agrilens/internal/report"
)

func newSimulateCommand() *cobra.Command {
	var (
		kind string
		runs int
		seed uint64
	)
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Draw outcomes from the simulated analyzer and print their distribution",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			k, err := outcome.ParseKind(kind)
			if err != nil {
				return err
			}
			if runs <= 0 {
				return fmt.Errorf("runs must be positive, got %d", runs)
			}
			if !cmd.Flags().Changed("seed") {
				seed = uint64(time.Now().UnixNano())
			}
			return runSimulation(cmd.Context(), cmd.OutOrStdout(), k, runs, seed)
		},
	}
	cmd.Flags().StringVar(&kind, "kind", string(outcome.KindDisease), "analysis kind: disease or grade")
	cmd.Flags().IntVar(&runs, "runs", 10000, "number of simulated analyses")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "random seed (defaults to the current time)")
	return cmd
}

func runSimulation(ctx context.Context, w io.Writer, kind outcome.Kind, runs int, seed uint64) error {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	selector := outcome.NewRandomSelector(rng.Float64)

	counts := make(map[string]int64)
	for i := 0; i < runs; i++ {
		result, err := selector.Select(ctx, outcome.Request{Kind: kind})
		if err != nil {
			return err
		}
		counts[result.Label()]++
	}

	expected := outcome.ExpectedShares(kind)
	shares := make([]report.Share, 0, len(expected))
	for _, label := range outcome.Labels(kind) {
		shares = append(shares, report.Share{Label: label, Count: counts[label], Expected: expected[label]})
	}
	return report.WriteDistribution(w, kind, shares)
}
