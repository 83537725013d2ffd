// x86_64_asm.go - x86 SIMD 汇编器
//
// 本文件把 SIMDAssembler 的原始指令编码为 ia32/x64 机器码。
//
// 传统 SSE 编码格式：
// [66] [REX] 0F [38] [操作码] [ModR/M] [立即数]
//
// VEX 编码格式（AVX）：
// C5 [R vvvv L pp]                       两字节形式，只能用于 0F 映射且 rm 不是扩展寄存器
// C4 [R X B mmmmm] [W vvvv L pp]         三字节形式
// R/X/B/vvvv 均为取反存储

package platform

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/tangzhangming/vecasm/internal/cpu"
)

// ============================================================================
// x86 SIMD 汇编器
// ============================================================================

// X64Assembler x86 SIMD 汇编器
type X64Assembler struct {
	code     []byte
	insts    []Inst
	mode     Mode
	features cpu.Features // CPU 特性表（只读）
	enabled  cpu.Features // 当前作用域内启用的特性
	checked  bool         // 是否执行调试断言
}

// AssemblerOption 汇编器选项
type AssemblerOption func(*X64Assembler)

// WithMode 设置目标模式
func WithMode(m Mode) AssemblerOption {
	return func(a *X64Assembler) { a.mode = m }
}

// WithChecks 开启或关闭调试断言
func WithChecks(on bool) AssemblerOption {
	return func(a *X64Assembler) { a.checked = on }
}

var _ SIMDAssembler = (*X64Assembler)(nil)

// NewX64Assembler 创建汇编器
func NewX64Assembler(features cpu.Features, opts ...AssemblerOption) *X64Assembler {
	a := &X64Assembler{
		code:     make([]byte, 0, 64),
		mode:     Mode64,
		features: features | cpu.Baseline,
		enabled:  cpu.Baseline,
		checked:  true,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Reset 重置汇编器
func (a *X64Assembler) Reset() {
	a.code = a.code[:0]
	a.insts = a.insts[:0]
	a.enabled = cpu.Baseline
}

// Code 获取生成的机器码
func (a *X64Assembler) Code() []byte {
	return a.code
}

// Len 返回当前代码长度
func (a *X64Assembler) Len() int {
	return len(a.code)
}

// Mode 返回目标模式
func (a *X64Assembler) Mode() Mode {
	return a.mode
}

// Features 返回 CPU 特性表
func (a *X64Assembler) Features() cpu.Features {
	return a.features
}

// Insts 返回已发射指令的记录
func (a *X64Assembler) Insts() []Inst {
	return a.insts
}

// Listing 返回带偏移和机器码的反汇编清单
func (a *X64Assembler) Listing() string {
	var sb strings.Builder
	for _, in := range a.insts {
		raw := hex.EncodeToString(a.code[in.Offset : in.Offset+in.Len])
		fmt.Fprintf(&sb, "%04x  %-12s  %s\n", in.Offset, raw, in)
	}
	return sb.String()
}

// ============================================================================
// 特性作用域
// ============================================================================

// EnterFeature 进入特性作用域
// 在作用域内可以发射依赖该特性的指令。返回的函数恢复进入前的状态。
func (a *X64Assembler) EnterFeature(f cpu.Feature) func() {
	if a.checked && !a.features.IsSupported(f) {
		Assertf(ErrFeatureUnsupported, "%s not in %s", f, a.features)
	}
	prev := a.enabled
	a.enabled = a.enabled.With(f)
	return func() { a.enabled = prev }
}

// IsEnabled 特性当前是否在作用域内
func (a *X64Assembler) IsEnabled(f cpu.Feature) bool {
	return a.enabled.IsSupported(f)
}

// ============================================================================
// SIMDAssembler 实现
// ============================================================================

// RegReg op dst, src
func (a *X64Assembler) RegReg(op SIMDOp, dst, src XMMRegister) {
	info := a.check(op, FormRR, dst, src)
	start := len(a.code)
	if info.vex {
		a.emitVEX(info, dst, RegNone, src)
	} else {
		a.emitLegacy(info, dst.lowBits(), dst.isExtended(), src)
	}
	a.record(Inst{Op: op, Dst: dst, Src1: src, Src2: RegNone}, start)
}

// RegRegReg vop dst, src1, src2
func (a *X64Assembler) RegRegReg(op SIMDOp, dst, src1, src2 XMMRegister) {
	info := a.check(op, FormRRR, dst, src1, src2)
	start := len(a.code)
	a.emitVEX(info, dst, src1, src2)
	a.record(Inst{Op: op, Dst: dst, Src1: src1, Src2: src2}, start)
}

// RegImm op dst, imm8（immediate 形式的移位：ModRM.reg 是 /digit，rm 是 dst）
func (a *X64Assembler) RegImm(op SIMDOp, dst XMMRegister, imm uint8) {
	info := a.check(op, FormRI, dst)
	start := len(a.code)
	a.emitLegacy(info, byte(info.digit), false, dst)
	a.emit(imm)
	a.record(Inst{Op: op, Dst: dst, Src1: RegNone, Src2: RegNone, Imm: imm}, start)
}

// RegRegImm op dst, src, imm8
func (a *X64Assembler) RegRegImm(op SIMDOp, dst, src XMMRegister, imm uint8) {
	info := a.check(op, FormRRI, dst, src)
	start := len(a.code)
	switch {
	case info.vex && info.digit >= 0:
		// VEX.NDD: vvvv 是目标，rm 是源
		a.emitVEXDigit(info, dst, src)
	case info.vex:
		a.emitVEX(info, dst, RegNone, src)
	default:
		a.emitLegacy(info, dst.lowBits(), dst.isExtended(), src)
	}
	a.emit(imm)
	a.record(Inst{Op: op, Dst: dst, Src1: src, Src2: RegNone, Imm: imm}, start)
}

// ============================================================================
// 底层编码方法
// ============================================================================

func (a *X64Assembler) emit(bytes ...byte) {
	a.code = append(a.code, bytes...)
}

func (a *X64Assembler) record(in Inst, start int) {
	in.Offset = start
	in.Len = len(a.code) - start
	a.insts = append(a.insts, in)
}

// check 校验形式、特性作用域和寄存器
func (a *X64Assembler) check(op SIMDOp, form Form, regs ...XMMRegister) *opInfo {
	info := op.info()
	if !op.Valid() || info.form != form {
		Assertf(ErrWrongForm, "%s used as %s", op, form)
	}
	for _, r := range regs {
		if !r.Valid(a.mode) {
			Assertf(ErrInvalidRegister, "%s in %s mode", r, a.mode)
		}
	}
	if a.checked && !a.enabled.IsSupported(info.feature) {
		Assertf(ErrFeatureNotEnabled, "%s needs %s", op, info.feature)
	}
	return info
}

// rex 构造 REX 前缀
// w: 64 位操作数
// r: 扩展 ModR/M.reg
// x: 扩展 SIB.index
// b: 扩展 ModR/M.r/m
func rex(w, r, x, b bool) byte {
	var v byte = 0x40
	if w {
		v |= 0x08
	}
	if r {
		v |= 0x04
	}
	if x {
		v |= 0x02
	}
	if b {
		v |= 0x01
	}
	return v
}

// modrm 构造 ModR/M 字节
// mod: 寻址模式 (0-3)，寄存器直接寻址为 3
func modrm(mod, reg, rm byte) byte {
	return (mod << 6) | ((reg & 0x7) << 3) | (rm & 0x7)
}

// emitLegacy 传统 SSE 编码。reg 为 ModRM.reg 字段（寄存器低 3 位或 /digit）。
func (a *X64Assembler) emitLegacy(info *opInfo, reg byte, regExt bool, rm XMMRegister) {
	if info.prefix == prefix66 {
		a.emit(0x66)
	}
	if regExt || rm.isExtended() {
		a.emit(rex(false, regExt, false, rm.isExtended()))
	}
	a.emit(0x0F)
	if info.omap == map0F38 {
		a.emit(0x38)
	}
	a.emit(info.opcode, modrm(3, reg, rm.lowBits()))
}

// emitVEX VEX 编码：reg=dst，vvvv=src1（RegNone 表示未使用），rm=src2
func (a *X64Assembler) emitVEX(info *opInfo, reg, vvvv, rm XMMRegister) {
	v := byte(0)
	if vvvv != RegNone {
		v = byte(vvvv)
	}
	a.vexPrefix(info, reg.isExtended(), rm.isExtended(), v)
	a.emit(info.opcode, modrm(3, reg.lowBits(), rm.lowBits()))
}

// emitVEXDigit VEX 立即数移位：vvvv=dst，reg=/digit，rm=src
func (a *X64Assembler) emitVEXDigit(info *opInfo, dst, src XMMRegister) {
	a.vexPrefix(info, false, src.isExtended(), byte(dst))
	a.emit(info.opcode, modrm(3, byte(info.digit), src.lowBits()))
}

func (a *X64Assembler) vexPrefix(info *opInfo, r, b bool, vvvv byte) {
	pp := byte(0)
	if info.prefix == prefix66 {
		pp = 1
	}
	// L=0 (128 位)
	low := (^vvvv&0xF)<<3 | pp
	if info.omap == map0F && !b {
		a.emit(0xC5, inv(r)<<7|low)
		return
	}
	// W=0
	a.emit(0xC4, inv(r)<<7|1<<6|inv(b)<<5|byte(info.omap), low)
}

func inv(bit bool) byte {
	if bit {
		return 0
	}
	return 1
}
