package simd

import "github.com/tangzhangming/vecasm/internal/jit/vsim"

// Reference 直接按通道计算 op 的结果，用来和发射的指令序列比对。
// 一元操作忽略 b。
func Reference(op Op, a, b vsim.V128) vsim.V128 {
	var r vsim.V128
	d := opDescs[op]
	switch d.helper {
	case HelperI16x8ExtMulHighS:
		for i := 0; i < 8; i++ {
			r.SetU16(i, uint16(int16(a.I8(8+i))*int16(b.I8(8+i))))
		}
	case HelperI16x8ExtMulHighU:
		for i := 0; i < 8; i++ {
			r.SetU16(i, uint16(a.U8(8+i))*uint16(b.U8(8+i)))
		}
	case HelperI32x4ExtMul:
		off := 4
		if d.low {
			off = 0
		}
		for i := 0; i < 4; i++ {
			if d.signed {
				r.SetU32(i, uint32(int32(a.I16(off+i))*int32(b.I16(off+i))))
			} else {
				r.SetU32(i, uint32(a.U16(off+i))*uint32(b.U16(off+i)))
			}
		}
	case HelperI64x2ExtMul:
		off := 2
		if d.low {
			off = 0
		}
		for i := 0; i < 2; i++ {
			if d.signed {
				r.SetU64(i, uint64(int64(a.I32(off+i))*int64(b.I32(off+i))))
			} else {
				r.SetU64(i, uint64(a.U32(off+i))*uint64(b.U32(off+i)))
			}
		}
	case HelperI16x8SConvertI8x16High:
		for i := 0; i < 8; i++ {
			r.SetU16(i, uint16(int16(a.I8(8+i))))
		}
	case HelperI16x8UConvertI8x16High:
		for i := 0; i < 8; i++ {
			r.SetU16(i, uint16(a.U8(8+i)))
		}
	case HelperI32x4SConvertI16x8High:
		for i := 0; i < 4; i++ {
			r.SetU32(i, uint32(int32(a.I16(4+i))))
		}
	case HelperI32x4UConvertI16x8High:
		for i := 0; i < 4; i++ {
			r.SetU32(i, uint32(a.U16(4+i)))
		}
	case HelperI64x2SConvertI32x4High:
		for i := 0; i < 2; i++ {
			r.SetU64(i, uint64(int64(a.I32(2+i))))
		}
	case HelperI64x2UConvertI32x4High:
		for i := 0; i < 2; i++ {
			r.SetU64(i, uint64(a.U32(2+i)))
		}
	}
	return r
}
