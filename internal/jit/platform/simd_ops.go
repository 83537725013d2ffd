// simd_ops.go - SIMD 操作码表
//
// 每个操作码记录了它的操作数形式、依赖的 CPU 特性以及编码所需的字段。
// 传统 SSE 编码：[66] [REX] 0F [38] op ModRM [ib]
// VEX 编码：    C5/C4 前缀 op ModRM [ib]，pp/mmmmm 由表中字段给出

package platform

import "github.com/tangzhangming/vecasm/internal/cpu"

// Form 操作数形式
type Form uint8

const (
	FormRR  Form = iota // op dst, src
	FormRRR             // vop dst, src1, src2
	FormRI              // op dst, imm8
	FormRRI             // op dst, src, imm8
)

func (f Form) String() string {
	switch f {
	case FormRR:
		return "reg,reg"
	case FormRRR:
		return "reg,reg,reg"
	case FormRI:
		return "reg,imm8"
	case FormRRI:
		return "reg,reg,imm8"
	}
	return "form?"
}

// SIMDOp SIMD 操作码
type SIMDOp uint8

const (
	OpInvalid SIMDOp = iota

	// 传统 SSE 两操作数形式
	MOVAPS
	MOVHLPS
	XORPS
	PXOR
	PSHUFD
	PUNPCKLBW
	PUNPCKLWD
	PUNPCKLDQ
	PUNPCKHBW
	PUNPCKHWD
	PUNPCKHDQ
	PUNPCKHQDQ
	PSRAW
	PSRAD
	PSRLW
	PMULLW
	PMULHW
	PMULHUW
	PMULDQ
	PMULUDQ
	PMOVSXBW
	PMOVSXWD
	PMOVSXDQ
	PMOVZXBW
	PMOVZXWD
	PMOVZXDQ

	// AVX 三操作数形式
	VMOVAPS
	VXORPS
	VPXOR
	VPSHUFD
	VPUNPCKLBW
	VPUNPCKLWD
	VPUNPCKLDQ
	VPUNPCKHBW
	VPUNPCKHWD
	VPUNPCKHDQ
	VPUNPCKHQDQ
	VPSRAW
	VPSRAD
	VPSRLW
	VPMULLW
	VPMULHW
	VPMULHUW
	VPMULDQ
	VPMULUDQ
	VPMOVSXBW
	VPMOVSXWD
	VPMOVSXDQ
	VPMOVZXBW
	VPMOVZXWD
	VPMOVZXDQ

	numSIMDOps
)

type legacyPrefix uint8

const (
	prefixNone legacyPrefix = iota
	prefix66
)

// opMap 操作码映射，取值与 VEX.mmmmm 一致
type opMap uint8

const (
	map0F   opMap = 1
	map0F38 opMap = 2
)

type opInfo struct {
	name    string
	form    Form
	feature cpu.Feature
	vex     bool
	prefix  legacyPrefix
	omap    opMap
	opcode  byte
	digit   int8 // 立即数移位的 ModRM.reg 扩展，-1 表示无
}

var opTable = [numSIMDOps]opInfo{
	MOVAPS:     {"movaps", FormRR, cpu.SSE2, false, prefixNone, map0F, 0x28, -1},
	MOVHLPS:    {"movhlps", FormRR, cpu.SSE2, false, prefixNone, map0F, 0x12, -1},
	XORPS:      {"xorps", FormRR, cpu.SSE2, false, prefixNone, map0F, 0x57, -1},
	PXOR:       {"pxor", FormRR, cpu.SSE2, false, prefix66, map0F, 0xEF, -1},
	PSHUFD:     {"pshufd", FormRRI, cpu.SSE2, false, prefix66, map0F, 0x70, -1},
	PUNPCKLBW:  {"punpcklbw", FormRR, cpu.SSE2, false, prefix66, map0F, 0x60, -1},
	PUNPCKLWD:  {"punpcklwd", FormRR, cpu.SSE2, false, prefix66, map0F, 0x61, -1},
	PUNPCKLDQ:  {"punpckldq", FormRR, cpu.SSE2, false, prefix66, map0F, 0x62, -1},
	PUNPCKHBW:  {"punpckhbw", FormRR, cpu.SSE2, false, prefix66, map0F, 0x68, -1},
	PUNPCKHWD:  {"punpckhwd", FormRR, cpu.SSE2, false, prefix66, map0F, 0x69, -1},
	PUNPCKHDQ:  {"punpckhdq", FormRR, cpu.SSE2, false, prefix66, map0F, 0x6A, -1},
	PUNPCKHQDQ: {"punpckhqdq", FormRR, cpu.SSE2, false, prefix66, map0F, 0x6D, -1},
	PSRAW:      {"psraw", FormRI, cpu.SSE2, false, prefix66, map0F, 0x71, 4},
	PSRAD:      {"psrad", FormRI, cpu.SSE2, false, prefix66, map0F, 0x72, 4},
	PSRLW:      {"psrlw", FormRI, cpu.SSE2, false, prefix66, map0F, 0x71, 2},
	PMULLW:     {"pmullw", FormRR, cpu.SSE2, false, prefix66, map0F, 0xD5, -1},
	PMULHW:     {"pmulhw", FormRR, cpu.SSE2, false, prefix66, map0F, 0xE5, -1},
	PMULHUW:    {"pmulhuw", FormRR, cpu.SSE2, false, prefix66, map0F, 0xE4, -1},
	PMULDQ:     {"pmuldq", FormRR, cpu.SSE41, false, prefix66, map0F38, 0x28, -1},
	PMULUDQ:    {"pmuludq", FormRR, cpu.SSE2, false, prefix66, map0F, 0xF4, -1},
	PMOVSXBW:   {"pmovsxbw", FormRR, cpu.SSE41, false, prefix66, map0F38, 0x20, -1},
	PMOVSXWD:   {"pmovsxwd", FormRR, cpu.SSE41, false, prefix66, map0F38, 0x23, -1},
	PMOVSXDQ:   {"pmovsxdq", FormRR, cpu.SSE41, false, prefix66, map0F38, 0x25, -1},
	PMOVZXBW:   {"pmovzxbw", FormRR, cpu.SSE41, false, prefix66, map0F38, 0x30, -1},
	PMOVZXWD:   {"pmovzxwd", FormRR, cpu.SSE41, false, prefix66, map0F38, 0x33, -1},
	PMOVZXDQ:   {"pmovzxdq", FormRR, cpu.SSE41, false, prefix66, map0F38, 0x35, -1},

	VMOVAPS:     {"vmovaps", FormRR, cpu.AVX, true, prefixNone, map0F, 0x28, -1},
	VXORPS:      {"vxorps", FormRRR, cpu.AVX, true, prefixNone, map0F, 0x57, -1},
	VPXOR:       {"vpxor", FormRRR, cpu.AVX, true, prefix66, map0F, 0xEF, -1},
	VPSHUFD:     {"vpshufd", FormRRI, cpu.AVX, true, prefix66, map0F, 0x70, -1},
	VPUNPCKLBW:  {"vpunpcklbw", FormRRR, cpu.AVX, true, prefix66, map0F, 0x60, -1},
	VPUNPCKLWD:  {"vpunpcklwd", FormRRR, cpu.AVX, true, prefix66, map0F, 0x61, -1},
	VPUNPCKLDQ:  {"vpunpckldq", FormRRR, cpu.AVX, true, prefix66, map0F, 0x62, -1},
	VPUNPCKHBW:  {"vpunpckhbw", FormRRR, cpu.AVX, true, prefix66, map0F, 0x68, -1},
	VPUNPCKHWD:  {"vpunpckhwd", FormRRR, cpu.AVX, true, prefix66, map0F, 0x69, -1},
	VPUNPCKHDQ:  {"vpunpckhdq", FormRRR, cpu.AVX, true, prefix66, map0F, 0x6A, -1},
	VPUNPCKHQDQ: {"vpunpckhqdq", FormRRR, cpu.AVX, true, prefix66, map0F, 0x6D, -1},
	VPSRAW:      {"vpsraw", FormRRI, cpu.AVX, true, prefix66, map0F, 0x71, 4},
	VPSRAD:      {"vpsrad", FormRRI, cpu.AVX, true, prefix66, map0F, 0x72, 4},
	VPSRLW:      {"vpsrlw", FormRRI, cpu.AVX, true, prefix66, map0F, 0x71, 2},
	VPMULLW:     {"vpmullw", FormRRR, cpu.AVX, true, prefix66, map0F, 0xD5, -1},
	VPMULHW:     {"vpmulhw", FormRRR, cpu.AVX, true, prefix66, map0F, 0xE5, -1},
	VPMULHUW:    {"vpmulhuw", FormRRR, cpu.AVX, true, prefix66, map0F, 0xE4, -1},
	VPMULDQ:     {"vpmuldq", FormRRR, cpu.AVX, true, prefix66, map0F38, 0x28, -1},
	VPMULUDQ:    {"vpmuludq", FormRRR, cpu.AVX, true, prefix66, map0F, 0xF4, -1},
	VPMOVSXBW:   {"vpmovsxbw", FormRR, cpu.AVX, true, prefix66, map0F38, 0x20, -1},
	VPMOVSXWD:   {"vpmovsxwd", FormRR, cpu.AVX, true, prefix66, map0F38, 0x23, -1},
	VPMOVSXDQ:   {"vpmovsxdq", FormRR, cpu.AVX, true, prefix66, map0F38, 0x25, -1},
	VPMOVZXBW:   {"vpmovzxbw", FormRR, cpu.AVX, true, prefix66, map0F38, 0x30, -1},
	VPMOVZXWD:   {"vpmovzxwd", FormRR, cpu.AVX, true, prefix66, map0F38, 0x33, -1},
	VPMOVZXDQ:   {"vpmovzxdq", FormRR, cpu.AVX, true, prefix66, map0F38, 0x35, -1},
}

func (op SIMDOp) info() *opInfo {
	if op == OpInvalid || op >= numSIMDOps {
		return &opTable[OpInvalid]
	}
	return &opTable[op]
}

// String 返回助记符
func (op SIMDOp) String() string {
	if name := op.info().name; name != "" {
		return name
	}
	return "invalid"
}

// Form 返回操作数形式
func (op SIMDOp) Form() Form { return op.info().form }

// Feature 返回执行该指令所需的 CPU 特性
func (op SIMDOp) Feature() cpu.Feature { return op.info().feature }

// IsVEX 是否是 VEX 编码的 AVX 指令
func (op SIMDOp) IsVEX() bool { return op.info().vex }

// Valid 是否是已定义的操作码
func (op SIMDOp) Valid() bool { return op > OpInvalid && op < numSIMDOps }

// AllOps 返回所有已定义的操作码
func AllOps() []SIMDOp {
	ops := make([]SIMDOp, 0, numSIMDOps-1)
	for op := OpInvalid + 1; op < numSIMDOps; op++ {
		ops = append(ops, op)
	}
	return ops
}
