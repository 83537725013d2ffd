package simd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tangzhangming/vecasm/internal/jit/platform"
	"github.com/tangzhangming/vecasm/internal/jit/vsim"
)

// TestParseOp 操作名称往返
func TestParseOp(t *testing.T) {
	for _, op := range AllOps() {
		got, err := ParseOp(op.String())
		require.NoError(t, err)
		assert.Equal(t, op, got)
	}
	_, err := ParseOp("i8x16.popcnt")
	assert.ErrorIs(t, err, ErrUnknownOp)
	assert.Len(t, AllOps(), 16)
}

// TestOpMetadata 操作的辅助函数与通道宽度
func TestOpMetadata(t *testing.T) {
	assert.Equal(t, HelperI32x4ExtMul, OpI32x4ExtMulHighI16x8U.Helper())
	assert.Equal(t, 64, OpI64x2ExtendHighI32x4S.LaneWidth())
	assert.True(t, OpI16x8ExtendHighI8x16U.Unary())
	assert.False(t, OpI64x2ExtMulLowI32x4S.Unary())
}

// TestLowerUnknownOp 未知操作返回错误
func TestLowerUnknownOp(t *testing.T) {
	m := NewMacroAssembler(platform.NewX64Assembler(FeaturesAVX), FeaturesAVX)
	err := m.Lower(numOps, x1, x1, x2, x3)
	assert.ErrorIs(t, err, ErrUnknownOp)
	assert.False(t, m.Allowed(numOps, x1, x1, x2, x3))
}

// TestLowerI32x4WithoutAVX 没有 AVX 时先把 src1 搬到 dst
func TestLowerI32x4WithoutAVX(t *testing.T) {
	asm := platform.NewX64Assembler(FeaturesSSE)
	m := NewMacroAssembler(asm, FeaturesSSE)
	require.NoError(t, m.Lower(OpI32x4ExtMulLowI16x8S, x3, x1, x2, x4))
	insts := asm.Insts()
	require.NotEmpty(t, insts)
	assert.Equal(t, platform.MOVAPS, insts[0].Op)
	assert.Equal(t, x3, insts[0].Dst)
	assert.Equal(t, x1, insts[0].Src1)

	// dst == src2 时交换源，不需要额外的 movaps
	asm.Reset()
	require.NoError(t, m.Lower(OpI32x4ExtMulLowI16x8S, x2, x1, x2, x4))
	assert.Len(t, asm.Insts(), 4)

	// scratch 不能是复制后的 dst
	assert.False(t, m.Allowed(OpI32x4ExtMulLowI16x8S, x3, x1, x2, x3))
	assert.True(t, NewMacroAssembler(nil, FeaturesAVX).Allowed(OpI32x4ExtMulLowI16x8S, x3, x1, x2, x4))
}

// TestRunCaseModeAndChecks Run 使用 Case 的目标模式和断言开关
func TestRunCaseModeAndChecks(t *testing.T) {
	var a vsim.V128
	c := Case{Op: OpI16x8ExtMulHighI8x16S, Dst: platform.X8, Src1: x1, Src2: x2, Scratch: x3, Features: FeaturesAVX}
	_, err := Run(c, a, a)
	require.NoError(t, err)

	c.Mode = platform.Mode32
	_, err = Run(c, a, a)
	assert.ErrorIs(t, err, platform.ErrInvalidRegister)

	// scratch == dst 违反重叠约定，关闭断言后仍然发射
	c = Case{Op: OpI16x8ExtMulHighI8x16S, Dst: x3, Src1: x1, Src2: x2, Scratch: x3, Features: FeaturesAVX}
	_, err = Run(c, a, a)
	assert.ErrorIs(t, err, platform.ErrAliasing)
	c.Unchecked = true
	res, err := Run(c, a, a)
	require.NoError(t, err)
	assert.NotEmpty(t, res.Insts)
}

// TestReference 参考语义
func TestReference(t *testing.T) {
	a := vsim.FromU32(0x80000000, 0xFFFFFFFF, 0x7FFFFFFF, 0xFFFFFFFF)
	b := vsim.FromU32(2, 3, 2, 0xFFFFFFFF)

	lo := Reference(OpI64x2ExtMulLowI32x4S, a, b)
	assert.Equal(t, int64(-1)<<32, lo.I64(0))
	assert.Equal(t, int64(-3), lo.I64(1))

	hi := Reference(OpI64x2ExtMulHighI32x4U, a, b)
	assert.Equal(t, uint64(0xFFFFFFFE), hi.U64(0))
	assert.Equal(t, uint64(0xFFFFFFFE00000001), hi.U64(1))

	ext := Reference(OpI32x4ExtendHighI16x8S, vsim.FromU16(0, 0, 0, 0, 0x8000, 1, 0xFFFF, 2), vsim.V128{})
	assert.Equal(t, "[-32768 1 -1 2]", ext.Lanes(32))

	uext := Reference(OpI16x8ExtendHighI8x16U, vsim.FromBytes(0, 0, 0, 0, 0, 0, 0, 0, 0xFF, 0x80), vsim.V128{})
	assert.Equal(t, uint16(0xFF), uext.U16(0))
	assert.Equal(t, uint16(0x80), uext.U16(1))
}

// TestInputs 输入生成是确定的
func TestInputs(t *testing.T) {
	a := Inputs(10, 3)
	b := Inputs(10, 3)
	assert.Len(t, a, 10)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a[9], Inputs(10, 4)[9])
	assert.Len(t, Inputs(2, 3), 2)
}
