package main

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tangzhangming/vecasm/internal/jit/platform"
	"github.com/tangzhangming/vecasm/internal/jit/simd"
)

// regFlags 寄存器分配参数，emit 和 run 共用
type regFlags struct {
	dst, src1, src2, scratch string
}

func (f *regFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.dst, "dst", "xmm0", "destination register")
	cmd.Flags().StringVar(&f.src1, "src1", "xmm1", "first source register")
	cmd.Flags().StringVar(&f.src2, "src2", "xmm2", "second source register (ignored by unary ops)")
	cmd.Flags().StringVar(&f.scratch, "scratch", "xmm3", "scratch register")
}

// parse 一元操作的 src2 固定为 src1
func (f *regFlags) parse(op simd.Op) (dst, src1, src2, scratch platform.XMMRegister, err error) {
	names := []string{f.dst, f.src1, f.src2, f.scratch}
	regs := make([]platform.XMMRegister, len(names))
	for i, n := range names {
		if regs[i], err = platform.ParseXMM(n); err != nil {
			return
		}
	}
	dst, src1, src2, scratch = regs[0], regs[1], regs[2], regs[3]
	if op.Unary() {
		src2 = src1
	}
	return
}

type emitCmd struct {
	gs      *globalState
	regs    regFlags
	hexOnly bool
}

func (c *emitCmd) run(_ *cobra.Command, args []string) error {
	gs := c.gs
	op, err := simd.ParseOp(args[0])
	if err != nil {
		return err
	}
	dst, src1, src2, scratch, err := c.regs.parse(op)
	if err != nil {
		return err
	}

	features := gs.oracle.Features()
	asm := platform.NewX64Assembler(features,
		platform.WithMode(gs.mode),
		platform.WithChecks(gs.cfg.Checked),
	)
	m := simd.NewMacroAssembler(asm, features, simd.WithChecks(gs.cfg.Checked))
	var lowerErr error
	if err := platform.Catch(func() {
		lowerErr = m.Lower(op, dst, src1, src2, scratch)
	}); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if lowerErr != nil {
		return lowerErr
	}

	gs.logger.Debug("emitted",
		zap.Stringer("op", op),
		zap.Int("bytes", asm.Len()),
		zap.Int("insts", len(asm.Insts())),
	)
	if c.hexOnly {
		_, err = fmt.Fprintln(gs.stdout, hex.EncodeToString(asm.Code()))
		return err
	}
	_, err = fmt.Fprint(gs.stdout, asm.Listing())
	return err
}

func getCmdEmit(gs *globalState) *cobra.Command {
	c := &emitCmd{gs: gs}
	cmd := &cobra.Command{
		Use:   "emit OP",
		Short: "Emit the instruction sequence for a vector operation",
		Long: `Emit the machine code for OP with the given register assignment and print
an offset, bytes and Intel syntax listing. The CPU features and target mode
come from the global flags or the config file.`,
		Example: "  vecasm emit i16x8.extmul_high_i8x16_s --dst xmm0 --src1 xmm1 --src2 xmm2 --scratch xmm3 --features avx",
		Args:    cobra.ExactArgs(1),
		RunE:    c.run,
	}
	c.regs.register(cmd)
	cmd.Flags().BoolVar(&c.hexOnly, "hex", false, "print only the hex encoded code")
	return cmd
}
