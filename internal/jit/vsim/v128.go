// Package vsim 提供 128 位 SIMD 寄存器的解释执行
package vsim

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
)

// V128 128 位向量，小端序存储
type V128 [16]byte

// U8 返回第 i 个 8 位通道
func (v V128) U8(i int) uint8 { return v[i] }

// I8 返回第 i 个有符号 8 位通道
func (v V128) I8(i int) int8 { return int8(v[i]) }

// U16 返回第 i 个 16 位通道
func (v V128) U16(i int) uint16 { return binary.LittleEndian.Uint16(v[2*i:]) }

// I16 返回第 i 个有符号 16 位通道
func (v V128) I16(i int) int16 { return int16(v.U16(i)) }

// U32 返回第 i 个 32 位通道
func (v V128) U32(i int) uint32 { return binary.LittleEndian.Uint32(v[4*i:]) }

// I32 返回第 i 个有符号 32 位通道
func (v V128) I32(i int) int32 { return int32(v.U32(i)) }

// U64 返回第 i 个 64 位通道
func (v V128) U64(i int) uint64 { return binary.LittleEndian.Uint64(v[8*i:]) }

// I64 返回第 i 个有符号 64 位通道
func (v V128) I64(i int) int64 { return int64(v.U64(i)) }

func (v *V128) SetU8(i int, x uint8)   { v[i] = x }
func (v *V128) SetU16(i int, x uint16) { binary.LittleEndian.PutUint16(v[2*i:], x) }
func (v *V128) SetU32(i int, x uint32) { binary.LittleEndian.PutUint32(v[4*i:], x) }
func (v *V128) SetU64(i int, x uint64) { binary.LittleEndian.PutUint64(v[8*i:], x) }

// FromBytes 由 16 个字节通道构造向量
func FromBytes(b ...uint8) V128 {
	var v V128
	copy(v[:], b)
	return v
}

// FromU16 由 8 个 16 位通道构造向量，不足的通道为 0
func FromU16(lanes ...uint16) V128 {
	var v V128
	for i, x := range lanes {
		v.SetU16(i, x)
	}
	return v
}

// FromU32 由 4 个 32 位通道构造向量
func FromU32(lanes ...uint32) V128 {
	var v V128
	for i, x := range lanes {
		v.SetU32(i, x)
	}
	return v
}

// FromU64 由 2 个 64 位通道构造向量
func FromU64(lo, hi uint64) V128 {
	var v V128
	v.SetU64(0, lo)
	v.SetU64(1, hi)
	return v
}

// String 以 32 个十六进制数字输出，最低字节在最左边
func (v V128) String() string {
	return hex.EncodeToString(v[:])
}

// Lanes 按给定通道宽度（8/16/32/64）格式化为十进制有符号值
func (v V128) Lanes(width int) string {
	var parts []string
	switch width {
	case 8:
		for i := 0; i < 16; i++ {
			parts = append(parts, fmt.Sprint(v.I8(i)))
		}
	case 16:
		for i := 0; i < 8; i++ {
			parts = append(parts, fmt.Sprint(v.I16(i)))
		}
	case 32:
		for i := 0; i < 4; i++ {
			parts = append(parts, fmt.Sprint(v.I32(i)))
		}
	default:
		for i := 0; i < 2; i++ {
			parts = append(parts, fmt.Sprint(v.I64(i)))
		}
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// ParseV128 解析 32 个十六进制数字（允许下划线和空格分隔）
func ParseV128(s string) (V128, error) {
	var v V128
	clean := strings.NewReplacer("_", "", " ", "", "0x", "").Replace(s)
	if len(clean) != 32 {
		return v, fmt.Errorf("vector literal must have 32 hex digits, got %d", len(clean))
	}
	if _, err := hex.Decode(v[:], []byte(clean)); err != nil {
		return v, fmt.Errorf("invalid vector literal: %w", err)
	}
	return v, nil
}
