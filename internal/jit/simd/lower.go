// lower.go - 向量操作到宏汇编辅助函数的映射
//
// 名称沿用 WebAssembly SIMD 的写法，例如 i32x4.extmul_low_i16x8_s。

package simd

import (
	"errors"
	"fmt"

	"github.com/tangzhangming/vecasm/internal/jit/platform"
)

// Op 高层向量操作
type Op uint8

const (
	OpI16x8ExtMulHighI8x16S Op = iota
	OpI16x8ExtMulHighI8x16U
	OpI32x4ExtMulLowI16x8S
	OpI32x4ExtMulLowI16x8U
	OpI32x4ExtMulHighI16x8S
	OpI32x4ExtMulHighI16x8U
	OpI64x2ExtMulLowI32x4S
	OpI64x2ExtMulLowI32x4U
	OpI64x2ExtMulHighI32x4S
	OpI64x2ExtMulHighI32x4U
	OpI16x8ExtendHighI8x16S
	OpI16x8ExtendHighI8x16U
	OpI32x4ExtendHighI16x8S
	OpI32x4ExtendHighI16x8U
	OpI64x2ExtendHighI32x4S
	OpI64x2ExtendHighI32x4U

	numOps
)

// opDesc 操作描述
type opDesc struct {
	name   string
	helper Helper
	low    bool
	signed bool
	width  int // 结果通道位宽
}

var opDescs = [numOps]opDesc{
	OpI16x8ExtMulHighI8x16S: {"i16x8.extmul_high_i8x16_s", HelperI16x8ExtMulHighS, false, true, 16},
	OpI16x8ExtMulHighI8x16U: {"i16x8.extmul_high_i8x16_u", HelperI16x8ExtMulHighU, false, false, 16},
	OpI32x4ExtMulLowI16x8S:  {"i32x4.extmul_low_i16x8_s", HelperI32x4ExtMul, true, true, 32},
	OpI32x4ExtMulLowI16x8U:  {"i32x4.extmul_low_i16x8_u", HelperI32x4ExtMul, true, false, 32},
	OpI32x4ExtMulHighI16x8S: {"i32x4.extmul_high_i16x8_s", HelperI32x4ExtMul, false, true, 32},
	OpI32x4ExtMulHighI16x8U: {"i32x4.extmul_high_i16x8_u", HelperI32x4ExtMul, false, false, 32},
	OpI64x2ExtMulLowI32x4S:  {"i64x2.extmul_low_i32x4_s", HelperI64x2ExtMul, true, true, 64},
	OpI64x2ExtMulLowI32x4U:  {"i64x2.extmul_low_i32x4_u", HelperI64x2ExtMul, true, false, 64},
	OpI64x2ExtMulHighI32x4S: {"i64x2.extmul_high_i32x4_s", HelperI64x2ExtMul, false, true, 64},
	OpI64x2ExtMulHighI32x4U: {"i64x2.extmul_high_i32x4_u", HelperI64x2ExtMul, false, false, 64},
	OpI16x8ExtendHighI8x16S: {"i16x8.extend_high_i8x16_s", HelperI16x8SConvertI8x16High, false, true, 16},
	OpI16x8ExtendHighI8x16U: {"i16x8.extend_high_i8x16_u", HelperI16x8UConvertI8x16High, false, false, 16},
	OpI32x4ExtendHighI16x8S: {"i32x4.extend_high_i16x8_s", HelperI32x4SConvertI16x8High, false, true, 32},
	OpI32x4ExtendHighI16x8U: {"i32x4.extend_high_i16x8_u", HelperI32x4UConvertI16x8High, false, false, 32},
	OpI64x2ExtendHighI32x4S: {"i64x2.extend_high_i32x4_s", HelperI64x2SConvertI32x4High, false, true, 64},
	OpI64x2ExtendHighI32x4U: {"i64x2.extend_high_i32x4_u", HelperI64x2UConvertI32x4High, false, false, 64},
}

// ErrUnknownOp 无法识别的操作
var ErrUnknownOp = errors.New("unknown vector op")

// AllOps 返回所有操作
func AllOps() []Op {
	ops := make([]Op, numOps)
	for i := range ops {
		ops[i] = Op(i)
	}
	return ops
}

// ParseOp 按名称查找操作
func ParseOp(name string) (Op, error) {
	for i, d := range opDescs {
		if d.name == name {
			return Op(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownOp, name)
}

func (op Op) String() string {
	if op < numOps {
		return opDescs[op].name
	}
	return "op?"
}

// Helper 返回实现该操作的辅助函数
func (op Op) Helper() Helper { return opDescs[op].helper }

// Unary 是否只有一个源操作数
func (op Op) Unary() bool { return opDescs[op].helper.Unary() }

// LaneWidth 结果通道位宽
func (op Op) LaneWidth() int { return opDescs[op].width }

// Lower 发射 op 的指令序列。一元操作忽略 src2。
// 没有 AVX 时，I32x4 扩展乘法需要 dst == src1：这里先把 src1 搬到 dst
// （dst == src2 时交换两个源，乘法可交换）。
func (m *MacroAssembler) Lower(op Op, dst, src1, src2, scratch platform.XMMRegister) error {
	if op >= numOps {
		return fmt.Errorf("%w: %d", ErrUnknownOp, op)
	}
	d := opDescs[op]
	switch d.helper {
	case HelperI16x8ExtMulHighS:
		m.I16x8ExtMulHighS(dst, src1, src2, scratch)
	case HelperI16x8ExtMulHighU:
		m.I16x8ExtMulHighU(dst, src1, src2, scratch)
	case HelperI32x4ExtMul:
		if DstMustBeSrc1(d.helper, m.avx()) && dst != src1 {
			if dst == src2 {
				src1, src2 = src2, src1
			} else {
				m.movaps(dst, src1)
				src1 = dst
			}
		}
		m.I32x4ExtMul(dst, src1, src2, scratch, d.low, d.signed)
	case HelperI64x2ExtMul:
		m.I64x2ExtMul(dst, src1, src2, scratch, d.low, d.signed)
	case HelperI16x8SConvertI8x16High:
		m.I16x8SConvertI8x16High(dst, src1)
	case HelperI16x8UConvertI8x16High:
		m.I16x8UConvertI8x16High(dst, src1, scratch)
	case HelperI32x4SConvertI16x8High:
		m.I32x4SConvertI16x8High(dst, src1)
	case HelperI32x4UConvertI16x8High:
		m.I32x4UConvertI16x8High(dst, src1, scratch)
	case HelperI64x2SConvertI32x4High:
		m.I64x2SConvertI32x4High(dst, src1)
	case HelperI64x2UConvertI32x4High:
		m.I64x2UConvertI32x4High(dst, src1, scratch)
	}
	return nil
}

// Allowed 报告 Lower(op, ...) 对这组寄存器是否合法
func (m *MacroAssembler) Allowed(op Op, dst, src1, src2, scratch platform.XMMRegister) bool {
	if op >= numOps {
		return false
	}
	h := opDescs[op].helper
	if h.Unary() {
		src2 = src1
	}
	if DstMustBeSrc1(h, m.avx()) && dst != src1 && dst != src2 {
		// Lower 会把 src1 复制到 dst，dst 不能是 scratch 也不能再作为源读取
		return scratch != dst && scratch != src1 && scratch != src2
	}
	return ScratchAllowed(h, dst, src1, src2, scratch)
}
