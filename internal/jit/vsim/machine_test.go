package vsim

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tangzhangming/vecasm/internal/cpu"
	"github.com/tangzhangming/vecasm/internal/jit/platform"
)

func bytesSeq(start byte) V128 {
	var v V128
	for i := range v {
		v[i] = start + byte(i)
	}
	return v
}

// TestV128Lanes 测试通道访问（小端序）
func TestV128Lanes(t *testing.T) {
	v := FromU32(0x04030201, 0x08070605, 0xFFFFFFFF, 0x80000000)
	assert.Equal(t, uint8(0x01), v.U8(0))
	assert.Equal(t, uint16(0x0201), v.U16(0))
	assert.Equal(t, int32(-1), v.I32(2))
	assert.Equal(t, int32(-2147483648), v.I32(3))
	assert.Equal(t, uint64(0x0807060504030201), v.U64(0))

	v.SetU16(7, 0xBEEF)
	assert.Equal(t, uint16(0xBEEF), v.U16(7))
	assert.Equal(t, int16(-16657), v.I16(7))
}

// TestParseV128 测试十六进制解析与格式化
func TestParseV128(t *testing.T) {
	v := bytesSeq(0)
	s := v.String()
	assert.Equal(t, "000102030405060708090a0b0c0d0e0f", s)

	got, err := ParseV128("0x0001_0203 0405_0607 0809_0a0b 0c0d_0e0f")
	require.NoError(t, err)
	assert.Equal(t, v, got)

	_, err = ParseV128("00")
	assert.Error(t, err)
	_, err = ParseV128("zz0102030405060708090a0b0c0d0e0f")
	assert.Error(t, err)
}

// TestLanesFormat 测试有符号通道格式
func TestLanesFormat(t *testing.T) {
	v := FromU32(uint32(0xFFFFFFFD), 8, 0, 0)
	assert.Equal(t, "[-3 8 0 0]", v.Lanes(32))
}

// TestUnpackHigh 测试高半交错
func TestUnpackHigh(t *testing.T) {
	m := NewMachine(cpu.Baseline)
	m.SetReg(platform.X1, bytesSeq(0x00))
	m.SetReg(platform.X2, bytesSeq(0x10))
	m.RegReg(platform.PUNPCKHBW, platform.X1, platform.X2)

	got := m.Reg(platform.X1)
	for i := 0; i < 8; i++ {
		assert.Equal(t, byte(8+i), got[2*i])
		assert.Equal(t, byte(0x18+i), got[2*i+1])
	}
	assert.Equal(t, 1, m.Executed())
}

// TestShifts 测试立即数移位
func TestShifts(t *testing.T) {
	m := NewMachine(cpu.Of(cpu.AVX))
	m.SetReg(platform.X1, FromU16(0x8000, 0x7FFF, 0x0100, 0xFF00, 0, 0, 0, 0))

	m.RegRegImm(platform.VPSRAW, platform.X2, platform.X1, 8)
	assert.Equal(t, FromU16(0xFF80, 0x007F, 0x0001, 0xFFFF, 0, 0, 0, 0), m.Reg(platform.X2))

	m.RegRegImm(platform.VPSRLW, platform.X3, platform.X1, 8)
	assert.Equal(t, FromU16(0x0080, 0x007F, 0x0001, 0x00FF, 0, 0, 0, 0), m.Reg(platform.X3))

	// 移位量超出通道宽度
	m.RegImm(platform.PSRLW, platform.X1, 16)
	assert.Equal(t, V128{}, m.Reg(platform.X1))
}

// TestPshufd 测试 pshufd 的选择掩码
func TestPshufd(t *testing.T) {
	m := NewMachine(cpu.Baseline)
	m.SetReg(platform.X1, FromU32(10, 11, 12, 13))
	m.RegRegImm(platform.PSHUFD, platform.X2, platform.X1, 0xEE)
	assert.Equal(t, FromU32(12, 13, 12, 13), m.Reg(platform.X2))
	m.RegRegImm(platform.PSHUFD, platform.X2, platform.X1, 0x50)
	assert.Equal(t, FromU32(10, 10, 11, 11), m.Reg(platform.X2))
	m.RegRegImm(platform.PSHUFD, platform.X2, platform.X1, 0xFA)
	assert.Equal(t, FromU32(12, 12, 13, 13), m.Reg(platform.X2))
}

// TestMultiplies 测试各种乘法
func TestMultiplies(t *testing.T) {
	m := NewMachine(cpu.Of(cpu.SSE41))
	m.SetReg(platform.X1, FromU16(0xFFFF, 300, 2, 0, 0, 0, 0, 0))
	m.SetReg(platform.X2, FromU16(0xFFFF, 300, 0x8000, 0, 0, 0, 0, 0))

	m.RegReg(platform.MOVAPS, platform.X3, platform.X1)
	m.RegReg(platform.PMULLW, platform.X3, platform.X2)
	assert.Equal(t, FromU16(1, uint16(90000&0xFFFF), 0, 0, 0, 0, 0, 0), m.Reg(platform.X3))

	m.RegReg(platform.MOVAPS, platform.X3, platform.X1)
	m.RegReg(platform.PMULHW, platform.X3, platform.X2)
	assert.Equal(t, FromU16(0, 1, 0xFFFF, 0, 0, 0, 0, 0), m.Reg(platform.X3))

	m.RegReg(platform.MOVAPS, platform.X3, platform.X1)
	m.RegReg(platform.PMULHUW, platform.X3, platform.X2)
	assert.Equal(t, FromU16(0xFFFE, 1, 1, 0, 0, 0, 0, 0), m.Reg(platform.X3))

	m.SetReg(platform.X4, FromU32(0xFFFFFFFF, 7, 2, 7))
	m.SetReg(platform.X5, FromU32(0xFFFFFFFF, 7, 3, 7))
	m.RegReg(platform.MOVAPS, platform.X6, platform.X4)
	m.RegReg(platform.PMULUDQ, platform.X6, platform.X5)
	assert.Equal(t, FromU64(0xFFFFFFFE00000001, 6), m.Reg(platform.X6))

	m.RegReg(platform.MOVAPS, platform.X6, platform.X4)
	m.RegReg(platform.PMULDQ, platform.X6, platform.X5)
	assert.Equal(t, FromU64(1, 6), m.Reg(platform.X6))
}

// TestExtend 测试 pmovsx/pmovzx 与 movhlps
func TestExtend(t *testing.T) {
	m := NewMachine(cpu.Of(cpu.SSE41))
	var v V128
	v[8] = 0xFF
	v[9] = 0x7F
	m.SetReg(platform.X1, v)
	m.RegReg(platform.MOVHLPS, platform.X1, platform.X1)
	m.RegReg(platform.MOVAPS, platform.X2, platform.X1)
	m.RegReg(platform.PMOVSXBW, platform.X1, platform.X1)
	m.RegReg(platform.PMOVZXBW, platform.X2, platform.X2)
	assert.Equal(t, FromU16(0xFFFF, 0x7F, 0, 0, 0, 0, 0, 0), m.Reg(platform.X1))
	assert.Equal(t, FromU16(0xFF, 0x7F, 0, 0, 0, 0, 0, 0), m.Reg(platform.X2))
}

// TestIllegalInstruction 执行 CPU 不支持的指令
func TestIllegalInstruction(t *testing.T) {
	m := NewMachine(cpu.Baseline)

	var err error
	func() {
		defer func() { err, _ = recover().(error) }()
		m.RegRegReg(platform.VPXOR, platform.X0, platform.X0, platform.X0)
	}()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIllegalInstruction))

	err = nil
	func() {
		defer func() { err, _ = recover().(error) }()
		m.EnterFeature(cpu.SSE41)
	}()
	assert.ErrorIs(t, err, ErrIllegalInstruction)
	assert.Equal(t, 0, m.Executed())
}

// TestRunRecorded 执行汇编器记录的指令与直接驱动结果相同
func TestRunRecorded(t *testing.T) {
	features := cpu.Of(cpu.AVX)
	asm := platform.NewX64Assembler(features)
	release := asm.EnterFeature(cpu.AVX)
	asm.RegRegReg(platform.VPUNPCKHBW, platform.X2, platform.X1, platform.X1)
	asm.RegRegImm(platform.VPSRAW, platform.X2, platform.X2, 8)
	release()

	a := NewMachine(features)
	b := NewMachine(features)
	a.SetReg(platform.X1, bytesSeq(0xF0))
	b.SetReg(platform.X1, bytesSeq(0xF0))

	a.Run(asm.Insts())
	b.RegRegReg(platform.VPUNPCKHBW, platform.X2, platform.X1, platform.X1)
	b.RegRegImm(platform.VPSRAW, platform.X2, platform.X2, 8)
	assert.Equal(t, a.Regs(), b.Regs())
	assert.Equal(t, int16(-8), a.Reg(platform.X2).I16(0))
}
