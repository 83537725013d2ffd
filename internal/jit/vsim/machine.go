// machine.go - SIMD 解释器
//
// Machine 模拟 16 个 XMM 寄存器，把 SIMDAssembler 的每条指令立即执行。
// 执行 CPU 不支持的指令会以 ErrIllegalInstruction panic（相当于 #UD）。

package vsim

import (
	"errors"
	"fmt"

	"github.com/tangzhangming/vecasm/internal/cpu"
	"github.com/tangzhangming/vecasm/internal/jit/platform"
)

// ErrIllegalInstruction 执行了 CPU 不支持的指令
var ErrIllegalInstruction = errors.New("illegal instruction")

// Machine SIMD 寄存器机
type Machine struct {
	regs     [platform.NumXMMRegisters]V128
	features cpu.Features
	executed int
}

var _ platform.SIMDAssembler = (*Machine)(nil)

// NewMachine 创建寄存器机
func NewMachine(features cpu.Features) *Machine {
	return &Machine{features: features | cpu.Baseline}
}

// Reg 读取寄存器
func (m *Machine) Reg(r platform.XMMRegister) V128 { return m.regs[r] }

// SetReg 写入寄存器
func (m *Machine) SetReg(r platform.XMMRegister, v V128) { m.regs[r] = v }

// Regs 返回全部寄存器的快照
func (m *Machine) Regs() [platform.NumXMMRegisters]V128 { return m.regs }

// Executed 返回已执行的指令条数
func (m *Machine) Executed() int { return m.executed }

// EnterFeature 解释器没有作用域概念，只检查特性是否存在
func (m *Machine) EnterFeature(f cpu.Feature) func() {
	if !m.features.IsSupported(f) {
		panic(fmt.Errorf("%w: feature scope %s on %s", ErrIllegalInstruction, f, m.features))
	}
	return func() {}
}

// Run 执行一组已记录的指令
func (m *Machine) Run(insts []platform.Inst) {
	platform.Replay(m, insts)
}

func (m *Machine) exec(op platform.SIMDOp) {
	if !m.features.IsSupported(op.Feature()) {
		panic(fmt.Errorf("%w: %s needs %s", ErrIllegalInstruction, op, op.Feature()))
	}
	m.executed++
}

// RegReg op dst, src
func (m *Machine) RegReg(op platform.SIMDOp, dst, src platform.XMMRegister) {
	m.exec(op)
	d, s := m.regs[dst], m.regs[src]
	switch op {
	case platform.MOVAPS, platform.VMOVAPS:
		m.regs[dst] = s
	case platform.MOVHLPS:
		copy(d[0:8], s[8:16])
		m.regs[dst] = d
	case platform.PMOVSXBW, platform.VPMOVSXBW:
		m.regs[dst] = extend(s, 1, true)
	case platform.PMOVSXWD, platform.VPMOVSXWD:
		m.regs[dst] = extend(s, 2, true)
	case platform.PMOVSXDQ, platform.VPMOVSXDQ:
		m.regs[dst] = extend(s, 4, true)
	case platform.PMOVZXBW, platform.VPMOVZXBW:
		m.regs[dst] = extend(s, 1, false)
	case platform.PMOVZXWD, platform.VPMOVZXWD:
		m.regs[dst] = extend(s, 2, false)
	case platform.PMOVZXDQ, platform.VPMOVZXDQ:
		m.regs[dst] = extend(s, 4, false)
	default:
		fn, ok := binaryOps[op]
		if !ok || op.IsVEX() {
			panic(fmt.Errorf("vsim: %s is not a two-operand instruction", op))
		}
		m.regs[dst] = fn(d, s)
	}
}

// RegRegReg vop dst, src1, src2
func (m *Machine) RegRegReg(op platform.SIMDOp, dst, src1, src2 platform.XMMRegister) {
	m.exec(op)
	fn, ok := binaryOps[op]
	if !ok || !op.IsVEX() {
		panic(fmt.Errorf("vsim: %s is not a three-operand instruction", op))
	}
	m.regs[dst] = fn(m.regs[src1], m.regs[src2])
}

// RegImm op dst, imm8
func (m *Machine) RegImm(op platform.SIMDOp, dst platform.XMMRegister, imm uint8) {
	m.exec(op)
	fn, ok := shiftOps[op]
	if !ok {
		panic(fmt.Errorf("vsim: %s is not an immediate shift", op))
	}
	m.regs[dst] = fn(m.regs[dst], imm)
}

// RegRegImm op dst, src, imm8
func (m *Machine) RegRegImm(op platform.SIMDOp, dst, src platform.XMMRegister, imm uint8) {
	m.exec(op)
	if op == platform.PSHUFD || op == platform.VPSHUFD {
		m.regs[dst] = pshufd(m.regs[src], imm)
		return
	}
	fn, ok := shiftOps[op]
	if !ok {
		panic(fmt.Errorf("vsim: %s is not a reg,reg,imm8 instruction", op))
	}
	m.regs[dst] = fn(m.regs[src], imm)
}

// ============================================================================
// 指令语义
// ============================================================================

var binaryOps = map[platform.SIMDOp]func(a, b V128) V128{
	platform.XORPS:       xor,
	platform.PXOR:        xor,
	platform.VXORPS:      xor,
	platform.VPXOR:       xor,
	platform.PUNPCKLBW:   unpack(1, false),
	platform.PUNPCKLWD:   unpack(2, false),
	platform.PUNPCKLDQ:   unpack(4, false),
	platform.PUNPCKHBW:   unpack(1, true),
	platform.PUNPCKHWD:   unpack(2, true),
	platform.PUNPCKHDQ:   unpack(4, true),
	platform.PUNPCKHQDQ:  unpack(8, true),
	platform.VPUNPCKLBW:  unpack(1, false),
	platform.VPUNPCKLWD:  unpack(2, false),
	platform.VPUNPCKLDQ:  unpack(4, false),
	platform.VPUNPCKHBW:  unpack(1, true),
	platform.VPUNPCKHWD:  unpack(2, true),
	platform.VPUNPCKHDQ:  unpack(4, true),
	platform.VPUNPCKHQDQ: unpack(8, true),
	platform.PMULLW:      mullw,
	platform.VPMULLW:     mullw,
	platform.PMULHW:      mulhw,
	platform.VPMULHW:     mulhw,
	platform.PMULHUW:     mulhuw,
	platform.VPMULHUW:    mulhuw,
	platform.PMULDQ:      muldq,
	platform.VPMULDQ:     muldq,
	platform.PMULUDQ:     muludq,
	platform.VPMULUDQ:    muludq,
}

var shiftOps = map[platform.SIMDOp]func(v V128, n uint8) V128{
	platform.PSRAW:  sraw,
	platform.VPSRAW: sraw,
	platform.PSRAD:  srad,
	platform.VPSRAD: srad,
	platform.PSRLW:  srlw,
	platform.VPSRLW: srlw,
}

func xor(a, b V128) V128 {
	for i := range a {
		a[i] ^= b[i]
	}
	return a
}

// unpack 交错 a、b 的低半（或高半）通道，w 为通道字节数
func unpack(w int, high bool) func(a, b V128) V128 {
	return func(a, b V128) V128 {
		var r V128
		base := 0
		if high {
			base = 8
		}
		for i := 0; i < 8/w; i++ {
			copy(r[2*i*w:(2*i+1)*w], a[base+i*w:base+(i+1)*w])
			copy(r[(2*i+1)*w:(2*i+2)*w], b[base+i*w:base+(i+1)*w])
		}
		return r
	}
}

// extend 把低 64 位的通道符号/零扩展为两倍宽度
func extend(v V128, w int, signed bool) V128 {
	var r V128
	for i := 0; i < 8/w; i++ {
		switch w {
		case 1:
			x := uint16(v.U8(i))
			if signed {
				x = uint16(int16(v.I8(i)))
			}
			r.SetU16(i, x)
		case 2:
			x := uint32(v.U16(i))
			if signed {
				x = uint32(int32(v.I16(i)))
			}
			r.SetU32(i, x)
		case 4:
			x := uint64(v.U32(i))
			if signed {
				x = uint64(int64(v.I32(i)))
			}
			r.SetU64(i, x)
		}
	}
	return r
}

func pshufd(v V128, imm uint8) V128 {
	var r V128
	for i := 0; i < 4; i++ {
		r.SetU32(i, v.U32(int(imm>>(2*i))&3))
	}
	return r
}

func sraw(v V128, n uint8) V128 {
	if n > 15 {
		n = 15
	}
	for i := 0; i < 8; i++ {
		v.SetU16(i, uint16(v.I16(i)>>n))
	}
	return v
}

func srad(v V128, n uint8) V128 {
	if n > 31 {
		n = 31
	}
	for i := 0; i < 4; i++ {
		v.SetU32(i, uint32(v.I32(i)>>n))
	}
	return v
}

func srlw(v V128, n uint8) V128 {
	for i := 0; i < 8; i++ {
		if n > 15 {
			v.SetU16(i, 0)
		} else {
			v.SetU16(i, v.U16(i)>>n)
		}
	}
	return v
}

func mullw(a, b V128) V128 {
	for i := 0; i < 8; i++ {
		a.SetU16(i, uint16(int32(a.I16(i))*int32(b.I16(i))))
	}
	return a
}

func mulhw(a, b V128) V128 {
	for i := 0; i < 8; i++ {
		a.SetU16(i, uint16((int32(a.I16(i))*int32(b.I16(i)))>>16))
	}
	return a
}

func mulhuw(a, b V128) V128 {
	for i := 0; i < 8; i++ {
		a.SetU16(i, uint16((uint32(a.U16(i))*uint32(b.U16(i)))>>16))
	}
	return a
}

// muldq 偶数 32 位通道的有符号乘法，结果为 64 位
func muldq(a, b V128) V128 {
	var r V128
	for i := 0; i < 2; i++ {
		r.SetU64(i, uint64(int64(a.I32(2*i))*int64(b.I32(2*i))))
	}
	return r
}

func muludq(a, b V128) V128 {
	var r V128
	for i := 0; i < 2; i++ {
		r.SetU64(i, uint64(a.U32(2*i))*uint64(b.U32(2*i)))
	}
	return r
}
