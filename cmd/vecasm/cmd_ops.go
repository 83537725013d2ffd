package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tangzhangming/vecasm/internal/jit/simd"
)

type opsCmd struct {
	gs *globalState
}

func (c *opsCmd) run(_ *cobra.Command, _ []string) error {
	for _, op := range simd.AllOps() {
		h := op.Helper()
		var notes []string
		if op.Unary() {
			notes = append(notes, "unary")
		}
		if h.UsesScratch() {
			notes = append(notes, "scratch")
		}
		if simd.DstMustBeSrc1(h, false) {
			notes = append(notes, "sse:dst=src1")
		}
		if _, err := fmt.Fprintf(c.gs.stdout, "%-28s %-30s i%-3d %s\n",
			op, h, op.LaneWidth(), strings.Join(notes, ",")); err != nil {
			return err
		}
	}
	return nil
}

func getCmdOps(gs *globalState) *cobra.Command {
	c := &opsCmd{gs: gs}
	return &cobra.Command{
		Use:   "ops",
		Short: "List the supported vector operations",
		Args:  cobra.NoArgs,
		RunE:  c.run,
	}
}
