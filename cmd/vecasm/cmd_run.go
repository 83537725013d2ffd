package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tangzhangming/vecasm/internal/jit/simd"
	"github.com/tangzhangming/vecasm/internal/jit/vsim"
)

type runCmd struct {
	gs   *globalState
	regs regFlags
}

func (c *runCmd) run(_ *cobra.Command, args []string) error {
	gs := c.gs
	op, err := simd.ParseOp(args[0])
	if err != nil {
		return err
	}
	if !op.Unary() && len(args) < 3 {
		return fmt.Errorf("%s takes two vector operands", op)
	}
	a, err := vsim.ParseV128(args[1])
	if err != nil {
		return err
	}
	b := a
	if len(args) > 2 {
		if b, err = vsim.ParseV128(args[2]); err != nil {
			return err
		}
	}
	dst, src1, src2, scratch, err := c.regs.parse(op)
	if err != nil {
		return err
	}

	res, err := simd.Run(simd.Case{
		Op: op, Dst: dst, Src1: src1, Src2: src2, Scratch: scratch,
		Features:  gs.oracle.Features(),
		Mode:      gs.mode,
		Unchecked: !gs.cfg.Checked,
	}, a, b)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	gs.logger.Debug("simulated", zap.Stringer("op", op), zap.Int("insts", len(res.Insts)))

	w := op.LaneWidth()
	out := gs.stdout
	fmt.Fprintf(out, "got   %s  %s\n", res.Got, res.Got.Lanes(w))
	fmt.Fprintf(out, "want  %s  %s\n", res.Want, res.Want.Lanes(w))
	if !res.OK() {
		fmt.Fprintf(out, "%s clobbered=%v\n", gs.fail.Sprint("FAIL"), res.Clobber)
		return errVerifyFailed
	}
	fmt.Fprintln(out, gs.pass.Sprint("PASS"))
	return nil
}

func getCmdRun(gs *globalState) *cobra.Command {
	c := &runCmd{gs: gs}
	cmd := &cobra.Command{
		Use:   "run OP A [B]",
		Short: "Emit a vector operation and execute it on the simulator",
		Long: `Emit OP, run the recorded instructions on the SIMD simulator and compare
the destination with the lane-wise reference result. Vectors are 32 hex
digits with the lowest byte first; underscores and spaces are ignored.`,
		Args: cobra.RangeArgs(2, 3),
		RunE: c.run,
	}
	c.regs.register(cmd)
	return cmd
}
