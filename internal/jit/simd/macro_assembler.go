// macro_assembler.go - SIMD 宏汇编器
//
// 本文件把没有单条硬件指令对应的 128 位向量操作展开为原始 SIMD 指令序列。
//
// 每个辅助函数：
// - 入口处查询一次 AVX，选择三操作数 VEX 路径或两操作数 SSE 路径
// - 结果写入 dst，scratch 视为被破坏，其它寄存器保持不变
// - 两条路径的结果逐位相同
// - 容忍 dst/src1/src2/scratch 之间的重叠（ScratchAllowed 列出的除外）

package simd

import (
	"github.com/tangzhangming/vecasm/internal/cpu"
	"github.com/tangzhangming/vecasm/internal/jit/platform"
)

// MacroAssembler SIMD 宏汇编器
type MacroAssembler struct {
	asm      platform.SIMDAssembler
	features cpu.Features
	checked  bool
}

// Option 宏汇编器选项
type Option func(*MacroAssembler)

// WithChecks 开启或关闭调试断言（默认开启）
func WithChecks(on bool) Option {
	return func(m *MacroAssembler) { m.checked = on }
}

// NewMacroAssembler 创建宏汇编器。features 为 CPU 特性表，只读。
func NewMacroAssembler(asm platform.SIMDAssembler, features cpu.Features, opts ...Option) *MacroAssembler {
	m := &MacroAssembler{asm: asm, features: features | cpu.Baseline, checked: true}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Features 返回 CPU 特性表
func (m *MacroAssembler) Features() cpu.Features {
	return m.features
}

// Assembler 返回底层汇编器
func (m *MacroAssembler) Assembler() platform.SIMDAssembler {
	return m.asm
}

func (m *MacroAssembler) avx() bool {
	return m.features.IsSupported(cpu.AVX)
}

// require 校验寄存器重叠约定
func (m *MacroAssembler) require(h Helper, dst, src1, src2, scratch platform.XMMRegister) {
	if !m.checked {
		return
	}
	if !ScratchAllowed(h, dst, src1, src2, scratch) {
		platform.Assertf(platform.ErrAliasing, "%s(dst=%s, src1=%s, src2=%s, scratch=%s)", h, dst, src1, src2, scratch)
	}
	if DstMustBeSrc1(h, m.avx()) && dst != src1 {
		platform.Assertf(platform.ErrAliasing, "%s without AVX requires dst == src1, got dst=%s src1=%s", h, dst, src1)
	}
}

// ============================================================================
// I16x8 扩展乘法
// ============================================================================

// I16x8ExtMulHighS 取两个源的高 8 个字节，符号扩展为 16 位后逐通道相乘
func (m *MacroAssembler) I16x8ExtMulHighS(dst, src1, src2, scratch platform.XMMRegister) {
	m.require(HelperI16x8ExtMulHighS, dst, src1, src2, scratch)
	alias := classify(dst, src1, src2)
	if m.avx() {
		defer m.asm.EnterFeature(cpu.AVX)()
		if alias == sameSources || alias == allSame {
			m.vpunpckhbw(dst, src1, src1)
			m.vpsraw(dst, dst, 8)
			m.vpmullw(dst, dst, dst)
			return
		}
		// 乘法可交换；scratch 先写，不能再作为后读的源
		if scratch == src2 {
			src1, src2 = src2, src1
		}
		m.vpunpckhbw(scratch, src1, src1)
		m.vpsraw(scratch, scratch, 8)
		m.vpunpckhbw(dst, src2, src2)
		m.vpsraw(dst, dst, 8)
		m.vpmullw(dst, dst, scratch)
		return
	}

	switch alias {
	case sameSources, allSame:
		if dst != src1 {
			m.movaps(dst, src1)
		}
		m.punpckhbw(dst, dst)
		m.psraw(dst, 8)
		m.pmullw(dst, dst)
		return
	case dstIsSrc2:
		src1, src2 = src2, src1
	case distinct:
		m.movaps(dst, src1)
	}
	if scratch != src2 {
		m.movaps(scratch, src2)
	}
	m.punpckhbw(dst, dst)
	m.psraw(dst, 8)
	m.punpckhbw(scratch, scratch)
	m.psraw(scratch, 8)
	m.pmullw(dst, scratch)
}

// I16x8ExtMulHighU 取两个源的高 8 个字节，零扩展为 16 位后逐通道相乘
func (m *MacroAssembler) I16x8ExtMulHighU(dst, src1, src2, scratch platform.XMMRegister) {
	m.require(HelperI16x8ExtMulHighU, dst, src1, src2, scratch)
	alias := classify(dst, src1, src2)
	if m.avx() {
		defer m.asm.EnterFeature(cpu.AVX)()
		switch alias {
		case sameSources, allSame:
			if scratch == src1 {
				m.vpunpckhbw(dst, src1, src1)
				m.vpsrlw(dst, dst, 8)
			} else {
				m.vpxor(scratch, scratch, scratch)
				m.vpunpckhbw(dst, src1, scratch)
			}
			m.vpmullw(dst, dst, dst)
			return
		case dstIsSrc2:
			// 先写 dst 再读 src2，所以交换两个源
			src1, src2 = src2, src1
		}
		m.vpxor(scratch, scratch, scratch)
		m.vpunpckhbw(dst, src1, scratch)
		m.vpunpckhbw(scratch, src2, scratch)
		m.vpmullw(dst, dst, scratch)
		return
	}

	switch alias {
	case sameSources, allSame:
		if dst != src1 {
			m.movaps(dst, src1)
		}
		if scratch == dst {
			m.punpckhbw(dst, dst)
			m.psrlw(dst, 8)
		} else {
			m.xorps(scratch, scratch)
			m.punpckhbw(dst, scratch)
		}
		m.pmullw(dst, dst)
		return
	case dstIsSrc2:
		// 交换后 dst == src1
		src1, src2 = src2, src1
	case distinct:
		m.movaps(dst, src1)
	}
	m.xorps(scratch, scratch)
	m.punpckhbw(dst, scratch)
	m.punpckhbw(scratch, src2)
	m.psrlw(scratch, 8)
	m.pmullw(dst, scratch)
}

// ============================================================================
// 高半部分扩展
// ============================================================================

// I16x8SConvertI8x16High 高 8 个字节符号扩展为 16 位
func (m *MacroAssembler) I16x8SConvertI8x16High(dst, src platform.XMMRegister) {
	if m.avx() {
		defer m.asm.EnterFeature(cpu.AVX)()
		// src = |a|b|c|d|e|f|g|h|i|j|k|l|m|n|o|p| (high)
		// dst = |i|i|j|j|k|k|l|l|m|m|n|n|o|o|p|p|
		m.vpunpckhbw(dst, src, src)
		m.vpsraw(dst, dst, 8)
		return
	}
	defer m.asm.EnterFeature(cpu.SSE41)()
	m.moveHighHalf(dst, src)
	m.asm.RegReg(platform.PMOVSXBW, dst, dst)
}

// I16x8UConvertI8x16High 高 8 个字节零扩展为 16 位
func (m *MacroAssembler) I16x8UConvertI8x16High(dst, src, scratch platform.XMMRegister) {
	m.require(HelperI16x8UConvertI8x16High, dst, src, src, scratch)
	if m.avx() {
		defer m.asm.EnterFeature(cpu.AVX)()
		// tmp = |0|0|0|0|0|0|0|0 | 0|0|0|0|0|0|0|0|
		// src = |a|b|c|d|e|f|g|h | i|j|k|l|m|n|o|p|
		// dst = |0|i|0|j|0|k|0|l | 0|m|0|n|0|o|0|p|
		tmp := dst
		if dst == src {
			tmp = scratch
		}
		m.vpxor(tmp, tmp, tmp)
		m.vpunpckhbw(dst, src, tmp)
		return
	}
	if dst == src {
		// xorps 可以在比 pshufd 更多的端口上执行
		m.xorps(scratch, scratch)
		m.punpckhbw(dst, scratch)
		return
	}
	defer m.asm.EnterFeature(cpu.SSE41)()
	// 不依赖 dst
	m.pshufd(dst, src, 0xEE)
	m.asm.RegReg(platform.PMOVZXBW, dst, dst)
}

// I32x4SConvertI16x8High 高 4 个 16 位通道符号扩展为 32 位
func (m *MacroAssembler) I32x4SConvertI16x8High(dst, src platform.XMMRegister) {
	if m.avx() {
		defer m.asm.EnterFeature(cpu.AVX)()
		// src = |a|b|c|d|e|f|g|h| (high)
		// dst = |e|e|f|f|g|g|h|h|
		m.vpunpckhwd(dst, src, src)
		m.asm.RegRegImm(platform.VPSRAD, dst, dst, 16)
		return
	}
	defer m.asm.EnterFeature(cpu.SSE41)()
	m.moveHighHalf(dst, src)
	m.asm.RegReg(platform.PMOVSXWD, dst, dst)
}

// I32x4UConvertI16x8High 高 4 个 16 位通道零扩展为 32 位
func (m *MacroAssembler) I32x4UConvertI16x8High(dst, src, scratch platform.XMMRegister) {
	m.require(HelperI32x4UConvertI16x8High, dst, src, src, scratch)
	if m.avx() {
		defer m.asm.EnterFeature(cpu.AVX)()
		// scratch = |0|0|0|0|0|0|0|0|
		// src     = |a|b|c|d|e|f|g|h|
		// dst     = |0|e|0|f|0|g|0|h|
		tmp := dst
		if dst == src {
			tmp = scratch
		}
		m.vpxor(tmp, tmp, tmp)
		m.vpunpckhwd(dst, src, tmp)
		return
	}
	if dst == src {
		// 只用 SSE2 指令，不需要 SSE4.1 作用域
		m.xorps(scratch, scratch)
		m.asm.RegReg(platform.PUNPCKHWD, dst, scratch)
		return
	}
	defer m.asm.EnterFeature(cpu.SSE41)()
	m.pshufd(dst, src, 0xEE)
	m.asm.RegReg(platform.PMOVZXWD, dst, dst)
}

// I64x2SConvertI32x4High 高 2 个 32 位通道符号扩展为 64 位
func (m *MacroAssembler) I64x2SConvertI32x4High(dst, src platform.XMMRegister) {
	if m.avx() {
		defer m.asm.EnterFeature(cpu.AVX)()
		m.asm.RegRegReg(platform.VPUNPCKHQDQ, dst, src, src)
		m.asm.RegReg(platform.VPMOVSXDQ, dst, dst)
		return
	}
	defer m.asm.EnterFeature(cpu.SSE41)()
	m.moveHighHalf(dst, src)
	m.asm.RegReg(platform.PMOVSXDQ, dst, dst)
}

// I64x2UConvertI32x4High 高 2 个 32 位通道零扩展为 64 位
func (m *MacroAssembler) I64x2UConvertI32x4High(dst, src, scratch platform.XMMRegister) {
	m.require(HelperI64x2UConvertI32x4High, dst, src, src, scratch)
	if m.avx() {
		defer m.asm.EnterFeature(cpu.AVX)()
		m.vpxor(scratch, scratch, scratch)
		m.asm.RegRegReg(platform.VPUNPCKHDQ, dst, src, scratch)
		return
	}
	if dst != src {
		m.movaps(dst, src)
	}
	m.xorps(scratch, scratch)
	m.asm.RegReg(platform.PUNPCKHDQ, dst, scratch)
}

// moveHighHalf 把 src 的高 64 位移到 dst 的低 64 位
func (m *MacroAssembler) moveHighHalf(dst, src platform.XMMRegister) {
	if dst == src {
		// 比 pshufd 短 2 个字节，但依赖 dst
		m.asm.RegReg(platform.MOVHLPS, dst, src)
		return
	}
	// 不依赖 dst
	m.pshufd(dst, src, 0xEE)
}

// ============================================================================
// I32x4 / I64x2 扩展乘法
// ============================================================================

// I32x4ExtMul 16 位通道扩展乘法，结果为 32 位通道
//  1. 低 16 位乘积（pmullw）和高 16 位乘积（pmulhw/pmulhuw）分别放在 scratch 和 dst 中
//     AVX 路径低位在 scratch，SSE 路径高位在 scratch
//  2. 以低位在前交错两者
//
// 没有 AVX 时要求 dst == src1。
func (m *MacroAssembler) I32x4ExtMul(dst, src1, src2, scratch platform.XMMRegister, low, isSigned bool) {
	m.require(HelperI32x4ExtMul, dst, src1, src2, scratch)
	if m.avx() {
		defer m.asm.EnterFeature(cpu.AVX)()
		m.vpmullw(scratch, src1, src2)
		if isSigned {
			m.asm.RegRegReg(platform.VPMULHW, dst, src1, src2)
		} else {
			m.asm.RegRegReg(platform.VPMULHUW, dst, src1, src2)
		}
		if low {
			m.asm.RegRegReg(platform.VPUNPCKLWD, dst, scratch, dst)
		} else {
			m.vpunpckhwd(dst, scratch, dst)
		}
		return
	}
	// 高位乘积先算：dst == src2 时 pmullw 会覆盖 src2
	m.movaps(scratch, src1)
	if isSigned {
		m.asm.RegReg(platform.PMULHW, scratch, src2)
	} else {
		m.asm.RegReg(platform.PMULHUW, scratch, src2)
	}
	m.pmullw(dst, src2)
	if low {
		m.asm.RegReg(platform.PUNPCKLWD, dst, scratch)
	} else {
		m.asm.RegReg(platform.PUNPCKHWD, dst, scratch)
	}
}

// I64x2ExtMul 32 位通道扩展乘法，结果为 64 位通道
// 1. 把参与运算的通道复制到每个 64 位通道的偶数位置
// 2. pmuldq（有符号，SSE4.1）或 pmuludq（无符号，SSE2）
// 没有 AVX 时使用不破坏源的 pshufd 代替 punpckldq/punpckhdq。
func (m *MacroAssembler) I64x2ExtMul(dst, src1, src2, scratch platform.XMMRegister, low, isSigned bool) {
	m.require(HelperI64x2ExtMul, dst, src1, src2, scratch)
	if m.avx() {
		defer m.asm.EnterFeature(cpu.AVX)()
		unpack, mul := platform.VPUNPCKHDQ, platform.VPMULUDQ
		if low {
			unpack = platform.VPUNPCKLDQ
		}
		if isSigned {
			mul = platform.VPMULDQ
		}
		if src1 == src2 {
			m.asm.RegRegReg(unpack, dst, src1, src1)
			m.asm.RegRegReg(mul, dst, dst, dst)
			return
		}
		if scratch == src2 {
			src1, src2 = src2, src1
		}
		m.asm.RegRegReg(unpack, scratch, src1, src1)
		m.asm.RegRegReg(unpack, dst, src2, src2)
		m.asm.RegRegReg(mul, dst, scratch, dst)
		return
	}

	// 0x50 复制通道 0、1 到 [0,0,1,1]；0xFA 复制通道 2、3 到 [2,2,3,3]
	mask := uint8(0xFA)
	if low {
		mask = 0x50
	}
	other := scratch
	if src1 == src2 {
		other = dst
		m.pshufd(dst, src1, mask)
	} else {
		if scratch == src2 {
			src1, src2 = src2, src1
		}
		m.pshufd(scratch, src1, mask)
		m.pshufd(dst, src2, mask)
	}
	if isSigned {
		defer m.asm.EnterFeature(cpu.SSE41)()
		m.asm.RegReg(platform.PMULDQ, dst, other)
		return
	}
	m.asm.RegReg(platform.PMULUDQ, dst, other)
}

// ============================================================================
// 助记符
// ============================================================================

func (m *MacroAssembler) movaps(dst, src platform.XMMRegister) {
	m.asm.RegReg(platform.MOVAPS, dst, src)
}

func (m *MacroAssembler) xorps(dst, src platform.XMMRegister) {
	m.asm.RegReg(platform.XORPS, dst, src)
}

func (m *MacroAssembler) pshufd(dst, src platform.XMMRegister, imm uint8) {
	m.asm.RegRegImm(platform.PSHUFD, dst, src, imm)
}

func (m *MacroAssembler) punpckhbw(dst, src platform.XMMRegister) {
	m.asm.RegReg(platform.PUNPCKHBW, dst, src)
}

func (m *MacroAssembler) psraw(dst platform.XMMRegister, imm uint8) {
	m.asm.RegImm(platform.PSRAW, dst, imm)
}

func (m *MacroAssembler) psrlw(dst platform.XMMRegister, imm uint8) {
	m.asm.RegImm(platform.PSRLW, dst, imm)
}

func (m *MacroAssembler) pmullw(dst, src platform.XMMRegister) {
	m.asm.RegReg(platform.PMULLW, dst, src)
}

func (m *MacroAssembler) vpxor(dst, src1, src2 platform.XMMRegister) {
	m.asm.RegRegReg(platform.VPXOR, dst, src1, src2)
}

func (m *MacroAssembler) vpunpckhbw(dst, src1, src2 platform.XMMRegister) {
	m.asm.RegRegReg(platform.VPUNPCKHBW, dst, src1, src2)
}

func (m *MacroAssembler) vpunpckhwd(dst, src1, src2 platform.XMMRegister) {
	m.asm.RegRegReg(platform.VPUNPCKHWD, dst, src1, src2)
}

func (m *MacroAssembler) vpsraw(dst, src platform.XMMRegister, imm uint8) {
	m.asm.RegRegImm(platform.VPSRAW, dst, src, imm)
}

func (m *MacroAssembler) vpsrlw(dst, src platform.XMMRegister, imm uint8) {
	m.asm.RegRegImm(platform.VPSRLW, dst, src, imm)
}

func (m *MacroAssembler) vpmullw(dst, src1, src2 platform.XMMRegister) {
	m.asm.RegRegReg(platform.VPMULLW, dst, src1, src2)
}
