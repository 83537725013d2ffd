// tagged.go - 标记值与 Smi 编码
//
// 标记值的低位区分 Smi 与堆对象引用：
//   ...xxx0  Smi（31 位小整数，左移 1 位）
//   ...xx01  强引用
//   ...xx11  弱引用
// 压缩后的 32 位值保留全部标记位。

package ptrcompr

import (
	"errors"
	"fmt"
)

// Address 完整宽度的地址或标记值
type Address uint64

// Tagged32 压缩后的 32 位标记值
type Tagged32 uint32

// 标记位
const (
	SmiTag     = 0
	SmiTagMask = 1
	SmiShift   = 1

	HeapObjectTag      = 1
	WeakHeapObjectTag  = 3
	HeapObjectTagMask  = 3
	WeakHeapObjectMask = 2

	// ClearedWeakRef 被清除的弱引用的低 32 位
	ClearedWeakRef Tagged32 = 3
)

// Smi 取值范围（31 位）
const (
	SmiMinValue = -(1 << 30)
	SmiMaxValue = 1<<30 - 1
)

// 4 GiB
const cageSize = 1 << 32

// 低 32 位掩码
const lowMask = cageSize - 1

// ErrSmiRange Smi 超出 31 位范围
var ErrSmiRange = errors.New("value out of smi range")

type word interface {
	~uint32 | ~uint64
}

// IsSmi 是否是 Smi
func IsSmi[T word](v T) bool { return v&SmiTagMask == SmiTag }

// IsHeapObject 是否是堆对象引用（强或弱）
func IsHeapObject[T word](v T) bool { return v&SmiTagMask == HeapObjectTag }

// IsStrong 是否是强引用
func IsStrong[T word](v T) bool { return v&HeapObjectTagMask == HeapObjectTag }

// IsWeak 是否是弱引用（包括已清除的）
func IsWeak[T word](v T) bool { return v&HeapObjectTagMask == WeakHeapObjectTag }

// IsCleared 是否是已清除的弱引用
func IsCleared(v Tagged32) bool { return v == ClearedWeakRef }

// ClearWeak 去掉弱引用位，得到强引用
func ClearWeak[T word](v T) T { return v &^ WeakHeapObjectMask }

// MakeWeak 强引用转为弱引用
func MakeWeak[T word](v T) T { return v | WeakHeapObjectMask }

// EncodeSmi 把整数编码为压缩 Smi
func EncodeSmi(v int64) (Tagged32, error) {
	if v < SmiMinValue || v > SmiMaxValue {
		return 0, fmt.Errorf("%w: %d", ErrSmiRange, v)
	}
	return Tagged32(uint32(int32(v) << SmiShift)), nil
}

// DecodeSmi 解码压缩 Smi
func DecodeSmi(t Tagged32) int32 {
	return int32(t) >> SmiShift
}

// DecodeSmiFull 解码完整宽度的 Smi（解压后的值）
func DecodeSmiFull(a Address) int64 {
	return int64(a) >> SmiShift
}

func (t Tagged32) String() string {
	switch {
	case IsSmi(t):
		return fmt.Sprintf("smi(%d)", DecodeSmi(t))
	case IsCleared(t):
		return "cleared"
	case IsWeak(t):
		return fmt.Sprintf("weak(0x%08x)", uint32(t))
	}
	return fmt.Sprintf("strong(0x%08x)", uint32(t))
}

func (a Address) String() string {
	return fmt.Sprintf("0x%016x", uint64(a))
}
