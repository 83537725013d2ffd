package simd

import "github.com/tangzhangming/vecasm/internal/jit/platform"

// aliasing dst/src1/src2 之间的重叠关系
type aliasing uint8

const (
	distinct    aliasing = iota // 三者互不相同
	dstIsSrc1                   // dst == src1 != src2
	dstIsSrc2                   // dst == src2 != src1
	sameSources                 // src1 == src2 != dst
	allSame                     // dst == src1 == src2
)

func classify(dst, src1, src2 platform.XMMRegister) aliasing {
	switch {
	case src1 == src2 && dst == src1:
		return allSame
	case src1 == src2:
		return sameSources
	case dst == src1:
		return dstIsSrc1
	case dst == src2:
		return dstIsSrc2
	}
	return distinct
}

func (a aliasing) String() string {
	switch a {
	case distinct:
		return "distinct"
	case dstIsSrc1:
		return "dst=src1"
	case dstIsSrc2:
		return "dst=src2"
	case sameSources:
		return "src1=src2"
	case allSame:
		return "dst=src1=src2"
	}
	return "aliasing?"
}

// ============================================================================
// 辅助函数与 scratch 约定
// ============================================================================

// Helper 宏汇编辅助函数
type Helper uint8

const (
	HelperI16x8ExtMulHighS Helper = iota
	HelperI16x8ExtMulHighU
	HelperI16x8SConvertI8x16High
	HelperI16x8UConvertI8x16High
	HelperI32x4ExtMul
	HelperI32x4SConvertI16x8High
	HelperI32x4UConvertI16x8High
	HelperI64x2ExtMul
	HelperI64x2SConvertI32x4High
	HelperI64x2UConvertI32x4High

	numHelpers
)

var helperNames = [numHelpers]string{
	"I16x8ExtMulHighS",
	"I16x8ExtMulHighU",
	"I16x8SConvertI8x16High",
	"I16x8UConvertI8x16High",
	"I32x4ExtMul",
	"I32x4SConvertI16x8High",
	"I32x4UConvertI16x8High",
	"I64x2ExtMul",
	"I64x2SConvertI32x4High",
	"I64x2UConvertI32x4High",
}

func (h Helper) String() string {
	if h < numHelpers {
		return helperNames[h]
	}
	return "helper?"
}

// Unary 是否只有一个源操作数
func (h Helper) Unary() bool {
	switch h {
	case HelperI16x8SConvertI8x16High, HelperI16x8UConvertI8x16High,
		HelperI32x4SConvertI16x8High, HelperI32x4UConvertI16x8High,
		HelperI64x2SConvertI32x4High, HelperI64x2UConvertI32x4High:
		return true
	}
	return false
}

// UsesScratch 是否需要调用者提供 scratch
func (h Helper) UsesScratch() bool {
	switch h {
	case HelperI16x8SConvertI8x16High, HelperI32x4SConvertI16x8High, HelperI64x2SConvertI32x4High:
		return false
	}
	return true
}

// ScratchAllowed 报告给定的寄存器组合是否满足辅助函数的约定。
// 一元辅助函数的 src2 必须与 src1 相同。
// 这里不包含 I32x4ExtMul 在 SSE 路径上的 dst == src1 要求，见 DstMustBeSrc1。
func ScratchAllowed(h Helper, dst, src1, src2, scratch platform.XMMRegister) bool {
	if !h.UsesScratch() {
		return true
	}
	switch h {
	case HelperI16x8ExtMulHighS, HelperI64x2ExtMul:
		return src1 == src2 || scratch != dst
	case HelperI16x8ExtMulHighU:
		return src1 == src2 || (scratch != dst && scratch != src1 && scratch != src2)
	case HelperI16x8UConvertI8x16High, HelperI32x4UConvertI16x8High:
		return dst != src1 || scratch != dst
	case HelperI32x4ExtMul:
		return scratch != dst && scratch != src1 && scratch != src2
	case HelperI64x2UConvertI32x4High:
		return scratch != dst && scratch != src1
	}
	return false
}

// DstMustBeSrc1 辅助函数在给定特性下是否要求 dst == src1
func DstMustBeSrc1(h Helper, avx bool) bool {
	return h == HelperI32x4ExtMul && !avx
}
