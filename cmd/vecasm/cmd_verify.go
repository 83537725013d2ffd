package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tangzhangming/vecasm/internal/jit/simd"
)

type verifyCmd struct {
	gs      *globalState
	inputs  int
	seed    uint64
	verbose bool
}

func (c *verifyCmd) run(_ *cobra.Command, args []string) error {
	gs := c.gs
	ops := simd.AllOps()
	if len(args) > 0 {
		ops = ops[:0]
		for _, name := range args {
			op, err := simd.ParseOp(name)
			if err != nil {
				return err
			}
			ops = append(ops, op)
		}
	}

	inputs := simd.Inputs(c.inputs, c.seed)
	failed := 0
	for _, op := range ops {
		rep := simd.Verify([]simd.Op{op}, inputs)
		status := gs.pass.Sprint("PASS")
		if len(rep.Mismatches) > 0 {
			status = gs.fail.Sprint("FAIL")
			failed++
		}
		fmt.Fprintf(gs.stdout, "%s  %-28s %6d runs\n", status, op, rep.Runs)
		for i, mm := range rep.Mismatches {
			if !c.verbose && i >= 3 {
				fmt.Fprintf(gs.stdout, "      ... %d more\n", len(rep.Mismatches)-i)
				break
			}
			fmt.Fprintf(gs.stdout, "      %s\n", mm)
		}
		gs.logger.Debug("verified", zap.Stringer("op", op), zap.Int("runs", rep.Runs), zap.Int("mismatches", len(rep.Mismatches)))
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d ops", errVerifyFailed, failed, len(ops))
	}
	return nil
}

func getCmdVerify(gs *globalState) *cobra.Command {
	c := &verifyCmd{gs: gs}
	cmd := &cobra.Command{
		Use:   "verify [OP...]",
		Short: "Check every aliasing combination against the reference semantics",
		Long: `Enumerate the register aliasing combinations each helper accepts, emit them
with and without AVX, run them on the simulator and compare the destination
with the reference result. Both paths must also agree bit for bit.`,
		RunE: c.run,
	}
	cmd.Flags().IntVar(&c.inputs, "inputs", 64, "number of input vector pairs per combination")
	cmd.Flags().Uint64Var(&c.seed, "seed", 1, "random seed for the generated inputs")
	cmd.Flags().BoolVarP(&c.verbose, "verbose", "v", false, "print every mismatch")
	return cmd
}
