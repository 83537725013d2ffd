package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tangzhangming/vecasm/internal/ptrcompr"
)

// 压缩方案名
const (
	schemeHeap = "heap"
	schemeCode = "code"
)

// ptrFlags ptr 子命令共用的参数
type ptrFlags struct {
	scheme string
}

func (f *ptrFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.scheme, "scheme", schemeHeap, "compression scheme: heap or code")
}

// codec 笼子的压缩接口
type codec interface {
	Base() ptrcompr.CageBase
	Compress(ptrcompr.Address) (ptrcompr.Tagged32, error)
	Decompress(ptrcompr.Tagged32) ptrcompr.Address
}

var errNoCage = errors.New("cage not registered")

func (f *ptrFlags) codec(gs *globalState) (codec, error) {
	switch f.scheme {
	case schemeHeap:
		if c, ok := gs.cages.HeapCage(); ok {
			return c, nil
		}
		return nil, fmt.Errorf("%w: heap", errNoCage)
	case schemeCode:
		if c, ok := gs.cages.CodeCage(); ok {
			return c, nil
		}
		return nil, fmt.Errorf("%w: code", errNoCage)
	}
	return nil, fmt.Errorf("unknown scheme %q (want %s or %s)", f.scheme, schemeHeap, schemeCode)
}

func parseWord(s string, bits int) (uint64, error) {
	v, err := strconv.ParseUint(s, 0, bits)
	if err != nil {
		return 0, fmt.Errorf("invalid %d-bit value %q: %w", bits, s, err)
	}
	return v, nil
}

func getCmdPtr(_ *globalState) *cobra.Command {
	return &cobra.Command{
		Use:   "ptr",
		Short: "Compress and decompress tagged pointers",
		Long: `Compress and decompress tagged values with the cages from the config file.
The heap scheme uses a 4 GiB aligned cage; the code scheme allows a cage
that straddles a 4 GiB boundary.`,
	}
}

// ============================================================================
// compress
// ============================================================================

type ptrCompressCmd struct {
	gs *globalState
	ptrFlags
}

func (c *ptrCompressCmd) run(_ *cobra.Command, args []string) error {
	v, err := parseWord(args[0], 64)
	if err != nil {
		return err
	}
	cc, err := c.codec(c.gs)
	if err != nil {
		return err
	}
	raw, err := cc.Compress(ptrcompr.Address(v))
	if err != nil {
		return err
	}
	c.gs.logger.Debug("compressed", zap.String("scheme", c.scheme), zap.Stringer("base", ptrcompr.Address(cc.Base())))
	_, err = fmt.Fprintf(c.gs.stdout, "0x%08x  %s\n", uint32(raw), raw)
	return err
}

func getCmdPtrCompress(gs *globalState) *cobra.Command {
	c := &ptrCompressCmd{gs: gs}
	cmd := &cobra.Command{
		Use:   "compress ADDR",
		Short: "Compress a full tagged value to 32 bits",
		Args:  cobra.ExactArgs(1),
		RunE:  c.run,
	}
	c.register(cmd)
	return cmd
}

// ============================================================================
// decompress
// ============================================================================

type ptrDecompressCmd struct {
	gs *globalState
	ptrFlags
}

func (c *ptrDecompressCmd) run(_ *cobra.Command, args []string) error {
	v, err := parseWord(args[0], 32)
	if err != nil {
		return err
	}
	cc, err := c.codec(c.gs)
	if err != nil {
		return err
	}
	raw := ptrcompr.Tagged32(v)
	_, err = fmt.Fprintf(c.gs.stdout, "%s  %s\n", cc.Decompress(raw), raw)
	return err
}

func getCmdPtrDecompress(gs *globalState) *cobra.Command {
	c := &ptrDecompressCmd{gs: gs}
	cmd := &cobra.Command{
		Use:   "decompress RAW",
		Short: "Decompress a 32-bit tagged value",
		Args:  cobra.ExactArgs(1),
		RunE:  c.run,
	}
	c.register(cmd)
	return cmd
}

// ============================================================================
// intermediate
// ============================================================================

type ptrIntermediateCmd struct {
	gs *globalState
}

func (c *ptrIntermediateCmd) run(_ *cobra.Command, args []string) error {
	v, err := parseWord(args[0], 64)
	if err != nil {
		return err
	}
	cage, ok := c.gs.cages.HeapCage()
	if !ok {
		return fmt.Errorf("%w: heap", errNoCage)
	}
	var werr error
	ptrcompr.HeapScheme{}.ProcessIntermediatePointers(cage.Base(), ptrcompr.Address(v), func(a ptrcompr.Address) {
		if werr == nil {
			_, werr = fmt.Fprintln(c.gs.stdout, a)
		}
	})
	return werr
}

func getCmdPtrIntermediate(gs *globalState) *cobra.Command {
	c := &ptrIntermediateCmd{gs: gs}
	return &cobra.Command{
		Use:   "intermediate WORD",
		Short: "Print the candidate heap pointers hidden in a 64-bit word",
		Long: `Treat both 32-bit halves of WORD as compressed heap values and print their
decompressed form, the way a conservative stack scan visits intermediate
values left behind by decompression.`,
		Args: cobra.ExactArgs(1),
		RunE: c.run,
	}
}
