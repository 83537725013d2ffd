package simd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tangzhangming/vecasm/internal/cpu"
	"github.com/tangzhangming/vecasm/internal/jit/platform"
	"github.com/tangzhangming/vecasm/internal/jit/vsim"
)

const (
	x1 = platform.X1
	x2 = platform.X2
	x3 = platform.X3
	x4 = platform.X4
)

// emit 在给定特性下用 X64Assembler 发射，返回记录的指令
func emit(t *testing.T, features cpu.Features, fn func(m *MacroAssembler)) *platform.X64Assembler {
	t.Helper()
	asm := platform.NewX64Assembler(features)
	err := platform.Catch(func() { fn(NewMacroAssembler(asm, features)) })
	require.NoError(t, err)
	return asm
}

// simulate 直接在寄存器机上执行宏汇编
func simulate(t *testing.T, features cpu.Features, init map[platform.XMMRegister]vsim.V128, fn func(m *MacroAssembler)) *vsim.Machine {
	t.Helper()
	mach := vsim.NewMachine(features)
	for r, v := range init {
		mach.SetReg(r, v)
	}
	fn(NewMacroAssembler(mach, features))
	return mach
}

func ops(asm *platform.X64Assembler) []platform.SIMDOp {
	var out []platform.SIMDOp
	for _, in := range asm.Insts() {
		out = append(out, in.Op)
	}
	return out
}

var bothPaths = []struct {
	name     string
	features cpu.Features
}{
	{"avx", FeaturesAVX},
	{"sse", FeaturesSSE},
}

// TestExtMulHighScenario 高半 8 位扩展乘法：[9..16] × [10..17]
func TestExtMulHighScenario(t *testing.T) {
	src1 := vsim.FromBytes(0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x10)
	src2 := vsim.FromBytes(0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x10, 0x11)
	want := vsim.FromU16(90, 110, 132, 156, 182, 210, 240, 272)

	for _, p := range bothPaths {
		t.Run(p.name, func(t *testing.T) {
			init := map[platform.XMMRegister]vsim.V128{x1: src1, x2: src2}
			s := simulate(t, p.features, init, func(m *MacroAssembler) { m.I16x8ExtMulHighS(x3, x1, x2, x4) })
			assert.Equal(t, want, s.Reg(x3))

			u := simulate(t, p.features, init, func(m *MacroAssembler) { m.I16x8ExtMulHighU(x3, x1, x2, x4) })
			assert.Equal(t, want, u.Reg(x3))

			assert.Equal(t, src1, u.Reg(x1))
			assert.Equal(t, src2, u.Reg(x2))
		})
	}
}

// TestI32x4ExtMulScenario 低半有符号 16 位扩展乘法
func TestI32x4ExtMulScenario(t *testing.T) {
	src1 := vsim.FromU16(0xFFFF, 0x0002)
	src2 := vsim.FromU16(0x0003, 0x0004)
	for _, p := range bothPaths {
		t.Run(p.name, func(t *testing.T) {
			// SSE 路径要求 dst == src1
			init := map[platform.XMMRegister]vsim.V128{x1: src1, x2: src2}
			mach := simulate(t, p.features, init, func(m *MacroAssembler) { m.I32x4ExtMul(x1, x1, x2, x4, true, true) })
			got := mach.Reg(x1)
			assert.Equal(t, "[-3 8 0 0]", got.Lanes(32))
			assert.Equal(t, src2, mach.Reg(x2))
		})
	}
}

// TestI64x2ExtMulScenario 低半无符号 32 位扩展乘法
func TestI64x2ExtMulScenario(t *testing.T) {
	src1 := vsim.FromU32(0xFFFFFFFF, 0, 0, 0)
	src2 := vsim.FromU32(0x2, 0, 0, 0)
	for _, p := range bothPaths {
		t.Run(p.name, func(t *testing.T) {
			init := map[platform.XMMRegister]vsim.V128{x1: src1, x2: src2}
			mach := simulate(t, p.features, init, func(m *MacroAssembler) { m.I64x2ExtMul(x3, x1, x2, x4, true, false) })
			assert.Equal(t, vsim.FromU64(0x1FFFFFFFE, 0), mach.Reg(x3))
		})
	}
}

// TestAliasingMatrix 全部重叠组合 × 两条路径 × 输入，与参考语义逐位比较
func TestAliasingMatrix(t *testing.T) {
	inputs := Inputs(16, 42)
	for _, op := range AllOps() {
		t.Run(op.String(), func(t *testing.T) {
			cases := AliasCases(op, FeaturesAVX)
			require.NotEmpty(t, cases)
			rep := Verify([]Op{op}, inputs)
			assert.Greater(t, rep.Runs, len(cases))
			for _, mm := range rep.Mismatches {
				t.Error(mm)
			}
		})
	}
}

// TestAliasCasesIncludeSelfMultiply src1 == src2 的组合一定被枚举
func TestAliasCasesIncludeSelfMultiply(t *testing.T) {
	var same, sameScratchIsDst bool
	for _, c := range AliasCases(OpI16x8ExtMulHighI8x16S, FeaturesAVX) {
		if c.Src1 == c.Src2 {
			same = true
			if c.Scratch == c.Dst {
				sameScratchIsDst = true
			}
		}
	}
	assert.True(t, same)
	assert.True(t, sameScratchIsDst)
}

// TestPathInstructionSets SSE 路径不发射 VEX 指令，AVX 路径只发射 VEX 指令
func TestPathInstructionSets(t *testing.T) {
	vec := Inputs(1, 7)[0]
	for _, op := range AllOps() {
		for _, c := range AliasCases(op, FeaturesSSE) {
			res, err := Run(c, vec[0], vec[1])
			require.NoError(t, err, c.String())
			for _, in := range res.Insts {
				assert.False(t, in.Op.IsVEX(), "%s: %s", c, in)
			}
		}
		for _, c := range AliasCases(op, FeaturesAVX) {
			res, err := Run(c, vec[0], vec[1])
			require.NoError(t, err, c.String())
			for _, in := range res.Insts {
				assert.True(t, in.Op.IsVEX(), "%s: %s", c, in)
			}
		}
	}
}

// TestCodeSizeBounded 每个组合的机器码都不超过 40 字节
func TestCodeSizeBounded(t *testing.T) {
	vec := Inputs(1, 9)[0]
	for _, op := range AllOps() {
		for _, features := range []cpu.Features{FeaturesAVX, FeaturesSSE} {
			for _, c := range AliasCases(op, features) {
				// 扩展寄存器需要额外的前缀字节
				c.Dst += platform.X8
				c.Src1 += platform.X8
				c.Src2 += platform.X8
				c.Scratch += platform.X8
				res, err := Run(c, vec[0], vec[1])
				require.NoError(t, err, c.String())
				assert.LessOrEqual(t, len(res.Code), 40, c.String())
				assert.True(t, res.OK(), c.String())
			}
		}
	}
}

// TestI32x4ExtMulSSERequiresDstIsSrc1 SSE 路径 dst != src1 触发断言
func TestI32x4ExtMulSSERequiresDstIsSrc1(t *testing.T) {
	asm := platform.NewX64Assembler(FeaturesSSE)
	m := NewMacroAssembler(asm, FeaturesSSE)
	err := platform.Catch(func() { m.I32x4ExtMul(x3, x1, x2, x4, true, true) })
	assert.ErrorIs(t, err, platform.ErrAliasing)
	assert.Empty(t, asm.Code())

	// AVX 路径没有这个要求
	asm = emit(t, FeaturesAVX, func(m *MacroAssembler) { m.I32x4ExtMul(x3, x1, x2, x4, true, true) })
	assert.Equal(t, []platform.SIMDOp{platform.VPMULLW, platform.VPMULHW, platform.VPUNPCKLWD}, ops(asm))
}

// TestScratchContractViolations 违反 scratch 约定触发断言
func TestScratchContractViolations(t *testing.T) {
	tests := []struct {
		name string
		fn   func(m *MacroAssembler)
	}{
		{"extmul_high_s scratch=dst", func(m *MacroAssembler) { m.I16x8ExtMulHighS(x3, x1, x2, x3) }},
		{"extmul_high_u scratch=src2", func(m *MacroAssembler) { m.I16x8ExtMulHighU(x3, x1, x2, x2) }},
		{"i32x4 scratch=src2", func(m *MacroAssembler) { m.I32x4ExtMul(x1, x1, x2, x2, false, false) }},
		{"i64x2 scratch=dst", func(m *MacroAssembler) { m.I64x2ExtMul(x3, x1, x2, x3, false, true) }},
		{"u8 convert dst=src=scratch", func(m *MacroAssembler) { m.I16x8UConvertI8x16High(x1, x1, x1) }},
		{"u16 convert dst=src=scratch", func(m *MacroAssembler) { m.I32x4UConvertI16x8High(x1, x1, x1) }},
		{"u32 convert scratch=src", func(m *MacroAssembler) { m.I64x2UConvertI32x4High(x3, x1, x1) }},
	}
	for _, tt := range tests {
		for _, p := range bothPaths {
			t.Run(tt.name+"/"+p.name, func(t *testing.T) {
				asm := platform.NewX64Assembler(p.features)
				err := platform.Catch(func() { tt.fn(NewMacroAssembler(asm, p.features)) })
				assert.ErrorIs(t, err, platform.ErrAliasing)
			})
		}
	}

	// 关闭断言后不检查约定
	asm := platform.NewX64Assembler(FeaturesAVX)
	m := NewMacroAssembler(asm, FeaturesAVX, WithChecks(false))
	assert.NoError(t, platform.Catch(func() { m.I16x8ExtMulHighS(x3, x1, x2, x3) }))
}

// TestSelfMultiplyNeedsNoScratch src1 == src2 时 scratch 不被写入
func TestSelfMultiplyNeedsNoScratch(t *testing.T) {
	for _, p := range bothPaths {
		t.Run(p.name, func(t *testing.T) {
			asm := emit(t, p.features, func(m *MacroAssembler) {
				m.I16x8ExtMulHighS(x3, x1, x1, x4)
				m.I16x8ExtMulHighU(x3, x1, x1, x1)
				m.I64x2ExtMul(x3, x1, x1, x4, false, false)
			})
			for _, in := range asm.Insts() {
				assert.NotEqual(t, x4, in.Dst, in.String())
			}
		})
	}
}

// TestHighHalfMove dst == src 用 movhlps，否则用 pshufd 0xEE
func TestHighHalfMove(t *testing.T) {
	asm := emit(t, FeaturesSSE, func(m *MacroAssembler) { m.I16x8SConvertI8x16High(x1, x1) })
	assert.Equal(t, []platform.SIMDOp{platform.MOVHLPS, platform.PMOVSXBW}, ops(asm))

	asm = emit(t, FeaturesSSE, func(m *MacroAssembler) { m.I32x4SConvertI16x8High(x3, x1) })
	require.Equal(t, []platform.SIMDOp{platform.PSHUFD, platform.PMOVSXWD}, ops(asm))
	assert.Equal(t, uint8(0xEE), asm.Insts()[0].Imm)

	asm = emit(t, FeaturesAVX, func(m *MacroAssembler) { m.I16x8SConvertI8x16High(x3, x1) })
	assert.Equal(t, []platform.SIMDOp{platform.VPUNPCKHBW, platform.VPSRAW}, ops(asm))

	asm = emit(t, FeaturesAVX, func(m *MacroAssembler) { m.I64x2SConvertI32x4High(x3, x1) })
	assert.Equal(t, []platform.SIMDOp{platform.VPUNPCKHQDQ, platform.VPMOVSXDQ}, ops(asm))
}

// TestUnsignedConvertZeroRegister dst == src 时用 xorps 清零 scratch
func TestUnsignedConvertZeroRegister(t *testing.T) {
	asm := emit(t, FeaturesSSE, func(m *MacroAssembler) { m.I16x8UConvertI8x16High(x1, x1, x4) })
	assert.Equal(t, []platform.SIMDOp{platform.XORPS, platform.PUNPCKHBW}, ops(asm))

	asm = emit(t, FeaturesSSE, func(m *MacroAssembler) { m.I16x8UConvertI8x16High(x3, x1, x3) })
	assert.Equal(t, []platform.SIMDOp{platform.PSHUFD, platform.PMOVZXBW}, ops(asm))

	asm = emit(t, FeaturesAVX, func(m *MacroAssembler) { m.I32x4UConvertI16x8High(x3, x1, x3) })
	assert.Equal(t, []platform.SIMDOp{platform.VPXOR, platform.VPUNPCKHWD}, ops(asm))
	assert.Equal(t, x3, asm.Insts()[0].Dst)
}

// TestAliasedUConvertIsSSE2Only 重叠分支只用 SSE2 指令，不需要 SSE4.1
func TestAliasedUConvertIsSSE2Only(t *testing.T) {
	asm := emit(t, cpu.Baseline, func(m *MacroAssembler) {
		m.I32x4UConvertI16x8High(x1, x1, x4)
		m.I16x8UConvertI8x16High(x2, x2, x4)
		m.I64x2UConvertI32x4High(x3, x1, x4)
		m.I64x2ExtMul(x3, x1, x2, x4, true, false)
	})
	for _, in := range asm.Insts() {
		assert.Equal(t, cpu.SSE2, in.Op.Feature(), in.String())
	}

	// 非重叠分支需要 SSE4.1
	asm = platform.NewX64Assembler(cpu.Baseline)
	err := platform.Catch(func() { NewMacroAssembler(asm, cpu.Baseline).I32x4UConvertI16x8High(x3, x1, x4) })
	assert.ErrorIs(t, err, platform.ErrFeatureUnsupported)
}

// TestScopesReleased 每个辅助函数返回后特性作用域都已释放
func TestScopesReleased(t *testing.T) {
	for _, p := range bothPaths {
		asm := emit(t, p.features, func(m *MacroAssembler) {
			m.I16x8SConvertI8x16High(x3, x1)
			m.I64x2ExtMul(x3, x1, x2, x4, false, true)
			m.I32x4ExtMul(x1, x1, x2, x4, false, false)
		})
		assert.False(t, asm.IsEnabled(cpu.AVX), p.name)
		assert.False(t, asm.IsEnabled(cpu.SSE41), p.name)
	}
}

// TestScratchAllowedTable 约定表
func TestScratchAllowedTable(t *testing.T) {
	assert.True(t, ScratchAllowed(HelperI16x8ExtMulHighS, x3, x1, x1, x3))
	assert.False(t, ScratchAllowed(HelperI16x8ExtMulHighS, x3, x1, x2, x3))
	assert.True(t, ScratchAllowed(HelperI16x8ExtMulHighS, x3, x1, x2, x2))
	assert.False(t, ScratchAllowed(HelperI16x8ExtMulHighU, x3, x1, x2, x1))
	assert.True(t, ScratchAllowed(HelperI16x8ExtMulHighU, x1, x1, x1, x1))
	assert.True(t, ScratchAllowed(HelperI16x8UConvertI8x16High, x3, x1, x1, x3))
	assert.False(t, ScratchAllowed(HelperI32x4ExtMul, x1, x1, x1, x1))
	assert.True(t, ScratchAllowed(HelperI32x4SConvertI16x8High, x1, x1, x1, x1))
	assert.False(t, ScratchAllowed(HelperI64x2UConvertI32x4High, x3, x1, x1, x3))

	assert.True(t, DstMustBeSrc1(HelperI32x4ExtMul, false))
	assert.False(t, DstMustBeSrc1(HelperI32x4ExtMul, true))
	assert.False(t, DstMustBeSrc1(HelperI64x2ExtMul, false))
}

// TestClassify 重叠分类
func TestClassify(t *testing.T) {
	assert.Equal(t, distinct, classify(x3, x1, x2))
	assert.Equal(t, dstIsSrc1, classify(x1, x1, x2))
	assert.Equal(t, dstIsSrc2, classify(x2, x1, x2))
	assert.Equal(t, sameSources, classify(x3, x1, x1))
	assert.Equal(t, allSame, classify(x1, x1, x1))
	assert.Equal(t, "dst=src1=src2", allSame.String())
}
